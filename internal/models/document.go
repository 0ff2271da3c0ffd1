package models

import "time"

// Document ingestion statuses.
const (
	DocumentStatusPending    = "pending"
	DocumentStatusProcessing = "processing"
	DocumentStatusCompleted  = "completed"
	DocumentStatusFailed     = "failed"
)

// Document is an uploaded PDF tracked through ingestion.
type Document struct {
	ID          int64     `json:"id" db:"id"`
	Filename    string    `json:"filename" db:"filename"`
	Filepath    string    `json:"filepath" db:"filepath"`
	FileSize    int64     `json:"file_size" db:"file_size"`
	PagesCount  int       `json:"pages_count" db:"pages_count"`
	ChunksCount int       `json:"chunks_count" db:"chunks_count"`
	Status      string    `json:"status" db:"status"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// Chunk is a bounded slice of extracted page text, the unit of embedding.
// Text is cleaned and trimmed; Page is 1-based; ChunkIndex runs across the
// whole document, not per page.
type Chunk struct {
	Text       string `json:"text"`
	Page       int    `json:"page"`
	ChunkIndex int    `json:"chunk_index"`
	Filename   string `json:"filename"`
}
