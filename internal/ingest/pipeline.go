// Package ingest turns PDFs and catalog records into embedded vectors in the
// index, tracking document status in storage along the way.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/pustakalab/pustaka/internal/chunker"
	"github.com/pustakalab/pustaka/internal/config"
	"github.com/pustakalab/pustaka/internal/embedding"
	"github.com/pustakalab/pustaka/internal/extract"
	"github.com/pustakalab/pustaka/internal/models"
	"github.com/pustakalab/pustaka/internal/storage"
	"github.com/pustakalab/pustaka/internal/vector"
)

// ErrNoText marks a PDF from which no usable text could be extracted.
var ErrNoText = errors.New("no text extracted")

// Pipeline runs extraction, chunking, embedding, and upserting.
type Pipeline struct {
	store        storage.Storage
	embedder     embedding.Embedder
	index        vector.Index
	chunker      *chunker.Chunker
	batchSize    int
	embedDelay   time.Duration
	documentsDir string
	logger       *zap.Logger

	// extractPages is swappable for tests.
	extractPages func(path string) ([]string, error)
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Pipeline) { p.logger = logger }
}

// WithExtractor replaces the PDF page extractor.
func WithExtractor(fn func(path string) ([]string, error)) Option {
	return func(p *Pipeline) { p.extractPages = fn }
}

func NewPipeline(store storage.Storage, embedder embedding.Embedder, index vector.Index, cfg *config.IngestConfig, opts ...Option) *Pipeline {
	p := &Pipeline{
		store:        store,
		embedder:     embedder,
		index:        index,
		chunker:      chunker.NewChunker(cfg.ChunkSize, cfg.ChunkOverlap),
		batchSize:    cfg.BatchSize,
		embedDelay:   cfg.EmbedDelay,
		logger:       zap.NewNop(),
		extractPages: extract.Pages,
	}
	if p.batchSize <= 0 {
		p.batchSize = 10
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Result summarizes one ingestion run. ChunksCount is the number of chunks
// produced; UpsertedCount is how many made it into the index. They differ
// when embeddings fail or batches cannot be upserted.
type Result struct {
	PagesCount    int `json:"pages_count"`
	ChunksCount   int `json:"chunks_count"`
	UpsertedCount int `json:"upserted_count"`
}

// ProcessPDF extracts, cleans, and chunks a PDF. The chunk index runs across
// the whole document so vector IDs stay unique per file.
func (p *Pipeline) ProcessPDF(path, filename string) ([]models.Chunk, int, error) {
	pages, err := p.extractPages(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to extract pages: %w", err)
	}

	var chunks []models.Chunk
	index := 0
	for i, page := range pages {
		cleaned := chunker.CleanText(page)
		if cleaned == "" {
			continue
		}
		pageChunks := p.chunker.Chunk(cleaned, i+1, filename, index)
		chunks = append(chunks, pageChunks...)
		index += len(pageChunks)
	}
	return chunks, len(pages), nil
}

// IngestDocument runs the full pipeline for a stored document. Status moves
// to processing, then completed or failed. Chunks whose embedding fails are
// skipped; a failed batch upsert is logged and the run continues.
func (p *Pipeline) IngestDocument(ctx context.Context, doc *models.Document) (*Result, error) {
	if err := p.store.UpdateDocumentStatus(ctx, doc.ID, models.DocumentStatusProcessing); err != nil {
		return nil, fmt.Errorf("failed to mark document processing: %w", err)
	}

	chunks, pagesCount, err := p.ProcessPDF(doc.Filepath, doc.Filename)
	if err != nil {
		_ = p.store.UpdateDocumentStatus(ctx, doc.ID, models.DocumentStatusFailed)
		return nil, err
	}
	if len(chunks) == 0 {
		_ = p.store.UpdateDocumentStatus(ctx, doc.ID, models.DocumentStatusFailed)
		return nil, fmt.Errorf("%w from %s", ErrNoText, doc.Filename)
	}

	upserted := p.upsertChunks(ctx, doc, chunks)

	result := &Result{PagesCount: pagesCount, ChunksCount: len(chunks), UpsertedCount: upserted}
	if err := p.store.UpdateDocumentResult(ctx, doc.ID, pagesCount, len(chunks), models.DocumentStatusCompleted); err != nil {
		return result, fmt.Errorf("failed to record ingestion result: %w", err)
	}

	p.logger.Info("document ingested",
		zap.Int64("document_id", doc.ID),
		zap.String("filename", doc.Filename),
		zap.Int("pages", pagesCount),
		zap.Int("chunks", len(chunks)),
		zap.Int("upserted", upserted))
	return result, nil
}

func (p *Pipeline) upsertChunks(ctx context.Context, doc *models.Document, chunks []models.Chunk) int {
	upserted := 0
	for start := 0; start < len(chunks); start += p.batchSize {
		end := start + p.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}

		batch := make([]models.Vector, 0, end-start)
		for _, chunk := range chunks[start:end] {
			values := p.embedder.Embed(ctx, chunk.Text)
			if len(values) == 0 {
				p.logger.Warn("skipping chunk with failed embedding",
					zap.Int64("document_id", doc.ID),
					zap.Int("chunk_index", chunk.ChunkIndex))
				continue
			}
			batch = append(batch, models.Vector{
				ID:     fmt.Sprintf("doc-%d-chunk-%d", doc.ID, chunk.ChunkIndex),
				Values: values,
				Metadata: map[string]interface{}{
					models.MetaSourceType:   models.SourceTypePDF,
					models.MetaDocumentID:   doc.ID,
					models.MetaFilename:     doc.Filename,
					models.MetaPage:         chunk.Page,
					models.MetaChunkIndex:   chunk.ChunkIndex,
					models.MetaContentChunk: chunk.Text,
				},
			})
		}
		if len(batch) == 0 {
			continue
		}

		if err := p.index.Upsert(ctx, batch); err != nil {
			p.logger.Error("batch upsert failed",
				zap.Int64("document_id", doc.ID),
				zap.Int("batch_start", start),
				zap.Error(err))
			continue
		}
		upserted += len(batch)

		if p.embedDelay > 0 && start+p.batchSize < len(chunks) {
			select {
			case <-time.After(p.embedDelay):
			case <-ctx.Done():
				return upserted
			}
		}
	}
	return upserted
}

// IngestBook embeds a catalog record as a small set of descriptive chunks.
func (p *Pipeline) IngestBook(ctx context.Context, book *models.Book) (int, error) {
	chunks := bookChunks(book)

	batch := make([]models.Vector, 0, len(chunks))
	for i, text := range chunks {
		values := p.embedder.Embed(ctx, text)
		if len(values) == 0 {
			p.logger.Warn("skipping book chunk with failed embedding",
				zap.Int64("book_id", book.ID), zap.Int("chunk_index", i))
			continue
		}
		batch = append(batch, models.Vector{
			ID:     fmt.Sprintf("book-%d-chunk-%d", book.ID, i),
			Values: values,
			Metadata: map[string]interface{}{
				models.MetaItemID:       book.ID,
				models.MetaCategory:     book.Category,
				models.MetaChunkIndex:   i,
				models.MetaContentChunk: text,
			},
		})
	}
	if len(batch) == 0 {
		return 0, fmt.Errorf("no embeddings produced for book %d", book.ID)
	}

	if err := p.index.Upsert(ctx, batch); err != nil {
		return 0, fmt.Errorf("failed to upsert book vectors: %w", err)
	}
	return len(batch), nil
}

// bookChunks renders a catalog record as embedding units: a metadata chunk, a
// title-focused chunk, and the description on its own when it is long enough
// to stand alone.
func bookChunks(book *models.Book) []string {
	chunks := []string{
		fmt.Sprintf("Book: %s. Author: %s. Category: %s. Published: %s. "+
			"Location: Rack %s. Description: %s",
			book.Title, book.Author, book.Category, book.PublishedYear,
			book.RackLocation, book.Description),
		fmt.Sprintf("The book titled \"%s\" was written by %s and belongs to the %s category.",
			book.Title, book.Author, book.Category),
	}
	if len(book.Description) > 50 {
		chunks = append(chunks, fmt.Sprintf("About \"%s\": %s", book.Title, book.Description))
	}
	return chunks
}

// ReingestBooks wipes the index and re-embeds the entire catalog. Uploaded
// document vectors are wiped too and must be re-ingested separately.
func (p *Pipeline) ReingestBooks(ctx context.Context) (int, error) {
	if err := p.index.DeleteAll(ctx); err != nil {
		return 0, fmt.Errorf("failed to clear index: %w", err)
	}

	books, err := p.store.ListBooks(ctx, models.BookFilter{})
	if err != nil {
		return 0, fmt.Errorf("failed to list books: %w", err)
	}

	total := 0
	for i := range books {
		n, err := p.IngestBook(ctx, &books[i])
		if err != nil {
			p.logger.Error("failed to ingest book",
				zap.Int64("book_id", books[i].ID), zap.Error(err))
			continue
		}
		total += n

		if p.embedDelay > 0 && i < len(books)-1 {
			select {
			case <-time.After(p.embedDelay):
			case <-ctx.Done():
				return total, ctx.Err()
			}
		}
	}
	p.logger.Info("catalog reingested", zap.Int("books", len(books)), zap.Int("vectors", total))
	return total, nil
}

// DeleteDocument removes a document's vectors, its file, and its record.
// Vector IDs are reconstructed from the stored chunk count.
func (p *Pipeline) DeleteDocument(ctx context.Context, id int64) error {
	doc, err := p.store.GetDocument(ctx, id)
	if err != nil {
		return err
	}

	if doc.ChunksCount > 0 {
		ids := make([]string, doc.ChunksCount)
		for i := 0; i < doc.ChunksCount; i++ {
			ids[i] = fmt.Sprintf("doc-%d-chunk-%d", doc.ID, i)
		}
		if err := p.index.DeleteByIDs(ctx, ids); err != nil {
			p.logger.Error("failed to delete document vectors",
				zap.Int64("document_id", id), zap.Error(err))
		}
	}

	if doc.Filepath != "" {
		if err := os.Remove(doc.Filepath); err != nil && !os.IsNotExist(err) {
			p.logger.Warn("failed to remove document file",
				zap.String("path", doc.Filepath), zap.Error(err))
		}
	}

	return p.store.DeleteDocument(ctx, id)
}
