package rag

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/pustakalab/pustaka/internal/models"
)

// BookStore provides the catalog lookups the context builder needs.
type BookStore interface {
	ListBooks(ctx context.Context, filter models.BookFilter) ([]models.Book, error)
	GetBook(ctx context.Context, id int64) (*models.Book, error)
}

// DocumentStore resolves document IDs referenced by vector matches.
type DocumentStore interface {
	GetDocument(ctx context.Context, id int64) (*models.Document, error)
}

// ContextBuilder turns vector matches into prompt context and citation
// sources. When retrieval finds nothing it falls back to the whole catalog so
// the model can still answer collection-level questions.
type ContextBuilder struct {
	books     BookStore
	documents DocumentStore
}

func NewContextBuilder(books BookStore, documents DocumentStore) *ContextBuilder {
	return &ContextBuilder{books: books, documents: documents}
}

// BuildContext assembles the prompt context from matches, one section per
// match in score order. With zero matches it lists every book in the catalog
// instead.
func (b *ContextBuilder) BuildContext(ctx context.Context, matches []models.Match) string {
	if len(matches) == 0 {
		return b.allBooksContext(ctx)
	}

	var sb strings.Builder
	var bookIDs, docIDs []int64
	seenBooks := make(map[int64]bool)
	seenDocs := make(map[int64]bool)
	for _, m := range matches {
		chunk := metaString(m.Metadata, models.MetaContentChunk)
		if chunk == "" {
			continue
		}
		if metaString(m.Metadata, models.MetaSourceType) == models.SourceTypePDF {
			filename := metaString(m.Metadata, models.MetaFilename)
			page := metaInt(m.Metadata, models.MetaPage)
			fmt.Fprintf(&sb, "Relevant content from PDF \"%s\" (page %d, score: %s):\n%s\n\n",
				filename, page, formatScore(m.Score), chunk)
			if id := metaInt64(m.Metadata, models.MetaDocumentID); id > 0 && !seenDocs[id] {
				seenDocs[id] = true
				docIDs = append(docIDs, id)
			}
			continue
		}
		fmt.Fprintf(&sb, "Relevant content chunk (score: %s):\n%s\n\n", formatScore(m.Score), chunk)
		if id := metaInt64(m.Metadata, models.MetaItemID); id > 0 && !seenBooks[id] {
			seenBooks[id] = true
			bookIDs = append(bookIDs, id)
		}
	}
	b.appendReferences(ctx, &sb, bookIDs, docIDs)
	return strings.TrimSpace(sb.String())
}

// appendReferences adds a compact record list for every book and document the
// matches touched, in first-seen order.
func (b *ContextBuilder) appendReferences(ctx context.Context, sb *strings.Builder, bookIDs, docIDs []int64) {
	wroteBooks := false
	for _, id := range bookIDs {
		book, err := b.books.GetBook(ctx, id)
		if err != nil || book == nil {
			continue
		}
		if !wroteBooks {
			sb.WriteString("\nReferenced Books:\n")
			wroteBooks = true
		}
		fmt.Fprintf(sb, "- [%d] \"%s\" by %s (Category: %s, Rack: %s)\n",
			book.ID, book.Title, book.Author, book.Category, book.RackLocation)
	}
	wroteDocs := false
	for _, id := range docIDs {
		doc, err := b.documents.GetDocument(ctx, id)
		if err != nil || doc == nil {
			continue
		}
		if !wroteDocs {
			sb.WriteString("\nReferenced PDF Documents:\n")
			wroteDocs = true
		}
		fmt.Fprintf(sb, "- [%d] \"%s\" (%d pages)\n", doc.ID, doc.Filename, doc.PagesCount)
	}
}

// allBooksContext formats the full catalog as fallback context.
func (b *ContextBuilder) allBooksContext(ctx context.Context) string {
	books, err := b.books.ListBooks(ctx, models.BookFilter{})
	if err != nil || len(books) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("Books available in the library:\n")
	for _, bk := range books {
		fmt.Fprintf(&sb, "- \"%s\" by %s (%s), category %s, rack %s. %s\n",
			bk.Title, bk.Author, bk.PublishedYear, bk.Category, bk.RackLocation, bk.Description)
	}
	return strings.TrimSpace(sb.String())
}

// ExtractSources builds deduplicated citations from matches, keeping the
// first (highest scoring) hit per record. With zero matches it returns every
// book with a nil score so the UI shows where the fallback answer came from.
func (b *ContextBuilder) ExtractSources(ctx context.Context, matches []models.Match) []models.Source {
	if len(matches) == 0 {
		return b.allBooksSources(ctx)
	}

	seen := make(map[string]bool)
	sources := make([]models.Source, 0, len(matches))
	for _, m := range matches {
		var src *models.Source
		var key string
		if metaString(m.Metadata, models.MetaSourceType) == models.SourceTypePDF {
			id := metaInt64(m.Metadata, models.MetaDocumentID)
			key = fmt.Sprintf("doc-%d", id)
			src = b.documentSource(ctx, id, m)
		} else {
			id := metaInt64(m.Metadata, models.MetaItemID)
			key = fmt.Sprintf("book-%d", id)
			src = b.bookSource(ctx, id, m)
		}
		if src == nil || seen[key] {
			continue
		}
		seen[key] = true
		sources = append(sources, *src)
	}
	return sources
}

// documentSource builds a citation for a PDF match. Matches whose document
// record no longer exists produce no source.
func (b *ContextBuilder) documentSource(ctx context.Context, id int64, m models.Match) *models.Source {
	if id == 0 {
		return nil
	}
	doc, err := b.documents.GetDocument(ctx, id)
	if err != nil || doc == nil {
		return nil
	}
	score := roundScore(m.Score)
	src := &models.Source{
		Type:     models.SourceTypePDF,
		ID:       doc.ID,
		Filename: doc.Filename,
		Score:    &score,
	}
	if page := metaInt(m.Metadata, models.MetaPage); page > 0 {
		src.Page = &page
	}
	return src
}

// bookSource builds a citation for a catalog match, skipped when the book
// record is gone.
func (b *ContextBuilder) bookSource(ctx context.Context, id int64, m models.Match) *models.Source {
	if id == 0 {
		return nil
	}
	book, err := b.books.GetBook(ctx, id)
	if err != nil || book == nil {
		return nil
	}
	score := roundScore(m.Score)
	return &models.Source{
		Type:         "book",
		ID:           book.ID,
		Title:        book.Title,
		Author:       book.Author,
		Category:     book.Category,
		RackLocation: book.RackLocation,
		Score:        &score,
	}
}

func (b *ContextBuilder) allBooksSources(ctx context.Context) []models.Source {
	books, err := b.books.ListBooks(ctx, models.BookFilter{})
	if err != nil {
		return nil
	}
	sources := make([]models.Source, 0, len(books))
	for _, bk := range books {
		sources = append(sources, models.Source{
			Type:         "book",
			ID:           bk.ID,
			Title:        bk.Title,
			Author:       bk.Author,
			Category:     bk.Category,
			RackLocation: bk.RackLocation,
			Score:        nil,
		})
	}
	return sources
}

// roundScore truncates display scores to four decimal places.
func roundScore(s float64) float64 {
	return math.Round(s*10000) / 10000
}

// formatScore renders a rounded score without trailing zeros.
func formatScore(s float64) string {
	return strconv.FormatFloat(roundScore(s), 'f', -1, 64)
}

func metaString(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// metaInt64 reads a numeric metadata value. JSON decoding yields float64.
func metaInt64(m map[string]interface{}, key string) int64 {
	switch v := m[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	}
	return 0
}

func metaInt(m map[string]interface{}, key string) int {
	return int(metaInt64(m, key))
}
