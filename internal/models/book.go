// Package models defines core data structures for books, documents, chunks,
// vectors, and the chat event protocol.
package models

import "time"

// Book is a catalog record for a physical book in the library.
type Book struct {
	ID            int64     `json:"id" db:"id"`
	Title         string    `json:"title" db:"title"`
	Author        string    `json:"author" db:"author"`
	RackLocation  string    `json:"rack_location" db:"rack_location"`
	Category      string    `json:"category" db:"category"`
	Description   string    `json:"description" db:"description"`
	PublishedYear string    `json:"published_year" db:"published_year"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// BookFilter narrows book listings. Search matches title, author, or category
// as a substring; Category matches exactly. Zero values mean no filtering.
type BookFilter struct {
	Search   string
	Category string
}
