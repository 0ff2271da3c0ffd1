// Package storage provides SQLite implementation of the Storage interface.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pustakalab/pustaka/internal/models"
)

// SQLiteStorage implements Storage using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes
// the schema. Parent directories are created if they do not exist. An empty
// books table is seeded with the starter catalog.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	s := &SQLiteStorage{db: db}
	if err := s.seedBooks(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to seed books: %w", err)
	}
	return s, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS books (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		author TEXT NOT NULL,
		rack_location TEXT,
		category TEXT,
		description TEXT,
		published_year TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_books_category ON books(category);

	CREATE TABLE IF NOT EXISTS documents (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		filename TEXT NOT NULL,
		filepath TEXT NOT NULL,
		file_size INTEGER NOT NULL,
		pages_count INTEGER NOT NULL DEFAULT 0,
		chunks_count INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'pending',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);
	`
	_, err := db.Exec(schema)
	return err
}

// seedBooks inserts the starter catalog when the books table is empty.
func (s *SQLiteStorage) seedBooks(ctx context.Context) error {
	count, err := s.CountBooks(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	for _, book := range seedCatalog {
		if err := s.CreateBook(ctx, &book); err != nil {
			return err
		}
	}
	return nil
}

// ListBooks returns books matching the filter, newest first. Search matches
// title, author, or category as a substring.
func (s *SQLiteStorage) ListBooks(ctx context.Context, filter models.BookFilter) ([]models.Book, error) {
	query := `SELECT id, title, author, rack_location, category, description, published_year, created_at, updated_at
	          FROM books`
	var conds []string
	var args []interface{}
	if filter.Search != "" {
		conds = append(conds, `(title LIKE ? OR author LIKE ? OR category LIKE ?)`)
		like := "%" + filter.Search + "%"
		args = append(args, like, like, like)
	}
	if filter.Category != "" {
		conds = append(conds, `category = ?`)
		args = append(args, filter.Category)
	}
	for i, c := range conds {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	query += " ORDER BY id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var books []models.Book
	for rows.Next() {
		var b models.Book
		if err := rows.Scan(&b.ID, &b.Title, &b.Author, &b.RackLocation, &b.Category,
			&b.Description, &b.PublishedYear, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		books = append(books, b)
	}
	return books, rows.Err()
}

// GetBook returns a book by ID.
func (s *SQLiteStorage) GetBook(ctx context.Context, id int64) (*models.Book, error) {
	var b models.Book
	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, author, rack_location, category, description, published_year, created_at, updated_at
		 FROM books WHERE id = ?`, id,
	).Scan(&b.ID, &b.Title, &b.Author, &b.RackLocation, &b.Category,
		&b.Description, &b.PublishedYear, &b.CreatedAt, &b.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("book not found: %d", id)
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// CreateBook inserts a book and fills in its assigned ID.
func (s *SQLiteStorage) CreateBook(ctx context.Context, book *models.Book) error {
	now := time.Now()
	book.CreatedAt = now
	book.UpdatedAt = now

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO books (title, author, rack_location, category, description, published_year, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		book.Title, book.Author, book.RackLocation, book.Category,
		book.Description, book.PublishedYear, book.CreatedAt, book.UpdatedAt,
	)
	if err != nil {
		return err
	}
	book.ID, err = result.LastInsertId()
	return err
}

// CreateDocument inserts a document record and fills in its assigned ID.
func (s *SQLiteStorage) CreateDocument(ctx context.Context, doc *models.Document) error {
	now := time.Now()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	if doc.Status == "" {
		doc.Status = models.DocumentStatusPending
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (filename, filepath, file_size, pages_count, chunks_count, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.Filename, doc.Filepath, doc.FileSize, doc.PagesCount, doc.ChunksCount,
		doc.Status, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return err
	}
	doc.ID, err = result.LastInsertId()
	return err
}

// GetDocument returns a document by ID.
func (s *SQLiteStorage) GetDocument(ctx context.Context, id int64) (*models.Document, error) {
	var d models.Document
	err := s.db.QueryRowContext(ctx,
		`SELECT id, filename, filepath, file_size, pages_count, chunks_count, status, created_at, updated_at
		 FROM documents WHERE id = ?`, id,
	).Scan(&d.ID, &d.Filename, &d.Filepath, &d.FileSize, &d.PagesCount,
		&d.ChunksCount, &d.Status, &d.CreatedAt, &d.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("document not found: %d", id)
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// ListDocuments returns all documents, newest first.
func (s *SQLiteStorage) ListDocuments(ctx context.Context) ([]models.Document, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, filename, filepath, file_size, pages_count, chunks_count, status, created_at, updated_at
		 FROM documents ORDER BY id DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		var d models.Document
		if err := rows.Scan(&d.ID, &d.Filename, &d.Filepath, &d.FileSize, &d.PagesCount,
			&d.ChunksCount, &d.Status, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// UpdateDocumentStatus sets the ingestion status of a document.
func (s *SQLiteStorage) UpdateDocumentStatus(ctx context.Context, id int64, status string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE documents SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now(), id,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("document not found: %d", id)
	}
	return nil
}

// UpdateDocumentResult records the outcome of an ingestion run.
func (s *SQLiteStorage) UpdateDocumentResult(ctx context.Context, id int64, pagesCount, chunksCount int, status string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE documents SET pages_count = ?, chunks_count = ?, status = ?, updated_at = ? WHERE id = ?`,
		pagesCount, chunksCount, status, time.Now(), id,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return fmt.Errorf("document not found: %d", id)
	}
	return nil
}

// DeleteDocument removes a document record by ID.
func (s *SQLiteStorage) DeleteDocument(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	return err
}

// CountBooks returns the total number of books.
func (s *SQLiteStorage) CountBooks(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM books`).Scan(&count)
	return count, err
}

// CountDocuments returns the total number of documents.
func (s *SQLiteStorage) CountDocuments(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&count)
	return count, err
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
