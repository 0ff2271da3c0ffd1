// Package storage defines the persistence interface for the book catalog and
// uploaded documents.
package storage

import (
	"context"

	"github.com/pustakalab/pustaka/internal/models"
)

// Storage defines catalog and document persistence operations.
type Storage interface {
	// Book operations
	ListBooks(ctx context.Context, filter models.BookFilter) ([]models.Book, error)
	GetBook(ctx context.Context, id int64) (*models.Book, error)
	CreateBook(ctx context.Context, book *models.Book) error

	// Document operations
	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, id int64) (*models.Document, error)
	ListDocuments(ctx context.Context) ([]models.Document, error)
	UpdateDocumentStatus(ctx context.Context, id int64, status string) error
	UpdateDocumentResult(ctx context.Context, id int64, pagesCount, chunksCount int, status string) error
	DeleteDocument(ctx context.Context, id int64) error

	// Stats
	CountBooks(ctx context.Context) (int64, error)
	CountDocuments(ctx context.Context) (int64, error)

	Close() error
}
