package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pustakalab/pustaka/internal/config"
	"github.com/pustakalab/pustaka/internal/embedding"
	"github.com/pustakalab/pustaka/internal/models"
	"github.com/pustakalab/pustaka/internal/storage"
	"github.com/pustakalab/pustaka/internal/vector"
)

func testConfig() *config.IngestConfig {
	return &config.IngestConfig{ChunkSize: 100, ChunkOverlap: 10, BatchSize: 3, EmbedDelay: 0}
}

func newTestStore(t *testing.T) storage.Storage {
	t.Helper()
	s, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "library.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func fakePages(pages ...string) func(string) ([]string, error) {
	return func(string) ([]string, error) { return pages, nil }
}

func createDoc(t *testing.T, store storage.Storage) *models.Document {
	t.Helper()
	doc := &models.Document{Filename: "test.pdf", Filepath: "/tmp/test.pdf", FileSize: 100}
	if err := store.CreateDocument(context.Background(), doc); err != nil {
		t.Fatal(err)
	}
	return doc
}

func TestProcessPDFCarriesIndexAcrossPages(t *testing.T) {
	p := NewPipeline(nil, nil, nil, testConfig(),
		WithExtractor(fakePages(
			strings.Repeat("a", 250),
			"", // empty page skipped
			strings.Repeat("b", 150),
		)))

	chunks, pages, err := p.ProcessPDF("ignored", "test.pdf")
	if err != nil {
		t.Fatalf("ProcessPDF() error = %v", err)
	}
	if pages != 3 {
		t.Errorf("pages = %d, want 3", pages)
	}
	if len(chunks) < 3 {
		t.Fatalf("got %d chunks, want several", len(chunks))
	}
	for i, c := range chunks {
		if c.ChunkIndex != i {
			t.Errorf("chunk %d has index %d, want contiguous indexes across pages", i, c.ChunkIndex)
		}
	}
	if chunks[0].Page != 1 {
		t.Errorf("first chunk page = %d, want 1", chunks[0].Page)
	}
	last := chunks[len(chunks)-1]
	if last.Page != 3 {
		t.Errorf("last chunk page = %d, want 3", last.Page)
	}
}

func TestIngestDocument(t *testing.T) {
	store := newTestStore(t)
	idx := vector.NewMemoryIndex()
	p := NewPipeline(store, embedding.NewMockEmbedder(8), idx, testConfig(),
		WithExtractor(fakePages(strings.Repeat("hello world. ", 30))))

	doc := createDoc(t, store)
	result, err := p.IngestDocument(context.Background(), doc)
	if err != nil {
		t.Fatalf("IngestDocument() error = %v", err)
	}
	if result.ChunksCount == 0 || result.UpsertedCount != result.ChunksCount {
		t.Errorf("result = %+v", result)
	}
	if idx.Len() != result.UpsertedCount {
		t.Errorf("index holds %d vectors, want %d", idx.Len(), result.UpsertedCount)
	}

	got, err := store.GetDocument(context.Background(), doc.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != models.DocumentStatusCompleted {
		t.Errorf("status = %s, want completed", got.Status)
	}
	if got.ChunksCount != result.ChunksCount || got.PagesCount != 1 {
		t.Errorf("stored counts = %+v", got)
	}
}

func TestIngestDocumentIdempotent(t *testing.T) {
	store := newTestStore(t)
	idx := vector.NewMemoryIndex()
	p := NewPipeline(store, embedding.NewMockEmbedder(8), idx, testConfig(),
		WithExtractor(fakePages(strings.Repeat("same content. ", 40))))

	doc := createDoc(t, store)
	first, err := p.IngestDocument(context.Background(), doc)
	if err != nil {
		t.Fatal(err)
	}
	countAfterFirst := idx.Len()

	second, err := p.IngestDocument(context.Background(), doc)
	if err != nil {
		t.Fatal(err)
	}
	if second.ChunksCount != first.ChunksCount {
		t.Errorf("re-ingest produced %d chunks, want %d", second.ChunksCount, first.ChunksCount)
	}
	if idx.Len() != countAfterFirst {
		t.Errorf("index grew to %d on re-ingest, want %d (same IDs overwrite)", idx.Len(), countAfterFirst)
	}
}

func TestIngestDocumentNoText(t *testing.T) {
	store := newTestStore(t)
	p := NewPipeline(store, embedding.NewMockEmbedder(8), vector.NewMemoryIndex(), testConfig(),
		WithExtractor(fakePages("", "  \n ")))

	doc := createDoc(t, store)
	if _, err := p.IngestDocument(context.Background(), doc); err == nil {
		t.Fatal("IngestDocument() with no text should fail")
	}
	got, _ := store.GetDocument(context.Background(), doc.ID)
	if got.Status != models.DocumentStatusFailed {
		t.Errorf("status = %s, want failed", got.Status)
	}
}

func TestIngestDocumentExtractError(t *testing.T) {
	store := newTestStore(t)
	p := NewPipeline(store, embedding.NewMockEmbedder(8), vector.NewMemoryIndex(), testConfig(),
		WithExtractor(func(string) ([]string, error) { return nil, errors.New("corrupt file") }))

	doc := createDoc(t, store)
	if _, err := p.IngestDocument(context.Background(), doc); err == nil {
		t.Fatal("IngestDocument() should propagate extraction error")
	}
	got, _ := store.GetDocument(context.Background(), doc.ID)
	if got.Status != models.DocumentStatusFailed {
		t.Errorf("status = %s, want failed", got.Status)
	}
}

func TestIngestDocumentSkipsFailedEmbeddings(t *testing.T) {
	store := newTestStore(t)
	idx := vector.NewMemoryIndex()
	p := NewPipeline(store, embedding.FailingEmbedder{}, idx, testConfig(),
		WithExtractor(fakePages(strings.Repeat("text. ", 50))))

	doc := createDoc(t, store)
	result, err := p.IngestDocument(context.Background(), doc)
	if err != nil {
		t.Fatalf("IngestDocument() error = %v", err)
	}
	if result.UpsertedCount != 0 {
		t.Errorf("upserted = %d, want 0 with failing embedder", result.UpsertedCount)
	}
	if result.ChunksCount == 0 {
		t.Error("chunks count should still reflect produced chunks")
	}
	got, _ := store.GetDocument(context.Background(), doc.ID)
	if got.Status != models.DocumentStatusCompleted {
		t.Errorf("status = %s, want completed (skips are not fatal)", got.Status)
	}
}

// emptyEmbedder returns a non-nil empty slice, as a 200 provider response
// with no values decodes to.
type emptyEmbedder struct{}

func (emptyEmbedder) Embed(ctx context.Context, text string) []float64 { return []float64{} }

func (emptyEmbedder) Dimensions() int { return 0 }

func TestIngestDocumentSkipsEmptyEmbeddings(t *testing.T) {
	store := newTestStore(t)
	idx := vector.NewMemoryIndex()
	p := NewPipeline(store, emptyEmbedder{}, idx, testConfig(),
		WithExtractor(fakePages(strings.Repeat("text. ", 50))))

	doc := createDoc(t, store)
	result, err := p.IngestDocument(context.Background(), doc)
	if err != nil {
		t.Fatalf("IngestDocument() error = %v", err)
	}
	if result.UpsertedCount != 0 {
		t.Errorf("upserted = %d, want 0 (empty vectors are failures)", result.UpsertedCount)
	}
	if idx.Len() != 0 {
		t.Errorf("index holds %d vectors, want 0", idx.Len())
	}
}

// flakyIndex fails every upsert to verify the run continues per batch.
type flakyIndex struct {
	*vector.MemoryIndex
	failures int
}

func (f *flakyIndex) Upsert(ctx context.Context, vectors []models.Vector) error {
	f.failures++
	return fmt.Errorf("upsert rejected")
}

func TestIngestDocumentContinuesPastUpsertErrors(t *testing.T) {
	store := newTestStore(t)
	idx := &flakyIndex{MemoryIndex: vector.NewMemoryIndex()}
	p := NewPipeline(store, embedding.NewMockEmbedder(8), idx, testConfig(),
		WithExtractor(fakePages(strings.Repeat("words here. ", 60))))

	doc := createDoc(t, store)
	result, err := p.IngestDocument(context.Background(), doc)
	if err != nil {
		t.Fatalf("IngestDocument() error = %v", err)
	}
	if result.UpsertedCount != 0 {
		t.Errorf("upserted = %d, want 0", result.UpsertedCount)
	}
	if f := idx.failures; f < 2 {
		t.Errorf("upsert attempted %d times, want all batches tried", f)
	}
}

func TestIngestBook(t *testing.T) {
	idx := vector.NewMemoryIndex()
	p := NewPipeline(nil, embedding.NewMockEmbedder(8), idx, testConfig())

	book := &models.Book{ID: 3, Title: "Dune", Author: "Frank Herbert",
		RackLocation: "F3", Category: "Fiction", PublishedYear: "1965",
		Description: "Science fiction epic of politics, religion, and ecology on the desert planet Arrakis."}
	n, err := p.IngestBook(context.Background(), book)
	if err != nil {
		t.Fatalf("IngestBook() error = %v", err)
	}
	if n != 3 {
		t.Errorf("IngestBook() upserted %d vectors, want 3", n)
	}

	matches := idx.Query(context.Background(), p.embedder.Embed(context.Background(), "Dune"), 10, nil)
	for _, m := range matches {
		if !strings.HasPrefix(m.ID, "book-3-chunk-") {
			t.Errorf("vector ID = %s", m.ID)
		}
		if m.Metadata[models.MetaItemID] != int64(3) {
			t.Errorf("item_id = %v", m.Metadata[models.MetaItemID])
		}
		if _, ok := m.Metadata[models.MetaSourceType]; ok {
			t.Error("book vectors must not carry source_type")
		}
	}
}

func TestBookChunks(t *testing.T) {
	long := &models.Book{ID: 1, Title: "Clean Code", Author: "Robert C. Martin",
		RackLocation: "A1", Category: "Software Engineering", PublishedYear: "2008",
		Description: "A handbook of agile software craftsmanship covering naming, functions, comments, and refactoring."}
	chunks := bookChunks(long)
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks for long description, want 3", len(chunks))
	}
	if !strings.Contains(chunks[0], "Location: Rack A1") {
		t.Errorf("metadata chunk = %q", chunks[0])
	}
	if !strings.Contains(chunks[1], "was written by Robert C. Martin") {
		t.Errorf("title chunk = %q", chunks[1])
	}
	if !strings.HasPrefix(chunks[2], "About \"Clean Code\":") {
		t.Errorf("description chunk = %q", chunks[2])
	}

	short := &models.Book{ID: 2, Title: "Dune", Author: "Frank Herbert",
		RackLocation: "F3", Category: "Fiction", Description: "Epic.", PublishedYear: "1965"}
	chunks = bookChunks(short)
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks for short description, want 2 (no standalone description)", len(chunks))
	}
	for _, c := range chunks {
		if strings.HasPrefix(c, "About ") {
			t.Errorf("short description got its own chunk: %q", c)
		}
	}
}

func TestReingestBooks(t *testing.T) {
	store := newTestStore(t)
	idx := vector.NewMemoryIndex()
	p := NewPipeline(store, embedding.NewMockEmbedder(8), idx, testConfig())

	// Stale vector that the wipe must remove.
	if err := idx.Upsert(context.Background(), []models.Vector{{ID: "stale", Values: []float64{1}}}); err != nil {
		t.Fatal(err)
	}

	total, err := p.ReingestBooks(context.Background())
	if err != nil {
		t.Fatalf("ReingestBooks() error = %v", err)
	}
	books, _ := store.ListBooks(context.Background(), models.BookFilter{})
	if total != len(books)*3 {
		t.Errorf("total vectors = %d, want %d", total, len(books)*3)
	}
	if idx.Len() != total {
		t.Errorf("index holds %d vectors, want %d (stale wiped)", idx.Len(), total)
	}
}

func TestDeleteDocument(t *testing.T) {
	store := newTestStore(t)
	idx := vector.NewMemoryIndex()

	file := filepath.Join(t.TempDir(), "doc.pdf")
	if err := os.WriteFile(file, []byte("pdf"), 0644); err != nil {
		t.Fatal(err)
	}

	doc := &models.Document{Filename: "doc.pdf", Filepath: file, FileSize: 3}
	if err := store.CreateDocument(context.Background(), doc); err != nil {
		t.Fatal(err)
	}

	p := NewPipeline(store, embedding.NewMockEmbedder(8), idx, testConfig(),
		WithExtractor(fakePages("short text for one chunk")))
	result, err := p.IngestDocument(context.Background(), doc)
	if err != nil {
		t.Fatal(err)
	}
	if idx.Len() != result.UpsertedCount {
		t.Fatal("setup mismatch")
	}

	if err := p.DeleteDocument(context.Background(), doc.ID); err != nil {
		t.Fatalf("DeleteDocument() error = %v", err)
	}
	if idx.Len() != 0 {
		t.Errorf("index holds %d vectors after delete, want 0", idx.Len())
	}
	if _, err := os.Stat(file); !os.IsNotExist(err) {
		t.Error("document file not removed")
	}
	if _, err := store.GetDocument(context.Background(), doc.ID); err == nil {
		t.Error("document record not removed")
	}
}
