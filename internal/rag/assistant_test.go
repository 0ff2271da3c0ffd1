package rag

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/pustakalab/pustaka/internal/embedding"
	"github.com/pustakalab/pustaka/internal/models"
	"github.com/pustakalab/pustaka/internal/vector"
)

type fakeStore struct {
	books     []models.Book
	documents map[int64]*models.Document
}

func (f *fakeStore) ListBooks(ctx context.Context, filter models.BookFilter) ([]models.Book, error) {
	return f.books, nil
}

func (f *fakeStore) GetBook(ctx context.Context, id int64) (*models.Book, error) {
	for i := range f.books {
		if f.books[i].ID == id {
			return &f.books[i], nil
		}
	}
	return nil, fmt.Errorf("book %d not found", id)
}

func (f *fakeStore) GetDocument(ctx context.Context, id int64) (*models.Document, error) {
	if d, ok := f.documents[id]; ok {
		return d, nil
	}
	return nil, fmt.Errorf("document %d not found", id)
}

type scriptedCompleter struct {
	fragments  []string
	lastSystem string
	lastUser   string
}

func (s *scriptedCompleter) StreamCompletion(ctx context.Context, systemPrompt, userPrompt string, emit func(models.StreamEvent) bool) {
	s.lastSystem, s.lastUser = systemPrompt, userPrompt
	for _, f := range s.fragments {
		if !emit(models.TextEvent(f)) {
			return
		}
	}
	emit(models.DoneEvent())
}

func (s *scriptedCompleter) Generate(ctx context.Context, systemPrompt, userPrompt string) string {
	s.lastSystem, s.lastUser = systemPrompt, userPrompt
	return strings.Join(s.fragments, "")
}

func testBooks() []models.Book {
	return []models.Book{
		{ID: 1, Title: "Clean Code", Author: "Robert C. Martin", Category: "Software", RackLocation: "A1"},
		{ID: 2, Title: "Dune", Author: "Frank Herbert", Category: "Fiction", RackLocation: "F3"},
	}
}

func drain(stream *EventStream) []models.StreamEvent {
	defer stream.Close()
	var events []models.StreamEvent
	for {
		ev, ok := stream.Next()
		if !ok {
			return events
		}
		events = append(events, ev)
	}
}

func newTestAssistant(store *fakeStore, embedder embedding.Embedder, idx vector.Index, completer *scriptedCompleter) *Assistant {
	return NewAssistant(embedder, idx, completer, NewContextBuilder(store, store))
}

func seedIndex(t *testing.T, idx vector.Index, embedder embedding.Embedder) {
	t.Helper()
	vectors := []models.Vector{
		{
			ID:     "doc-7-chunk-0",
			Values: embedder.Embed(context.Background(), "refactoring functions"),
			Metadata: map[string]interface{}{
				models.MetaSourceType:   models.SourceTypePDF,
				models.MetaDocumentID:   float64(7),
				models.MetaFilename:     "clean-code-notes.pdf",
				models.MetaPage:         float64(3),
				models.MetaChunkIndex:   float64(0),
				models.MetaContentChunk: "Functions should be small and do one thing.",
			},
		},
		{
			ID:     "book-1-chunk-0",
			Values: embedder.Embed(context.Background(), "clean code book"),
			Metadata: map[string]interface{}{
				models.MetaItemID:       float64(1),
				models.MetaCategory:     "Software",
				models.MetaContentChunk: "Clean Code by Robert C. Martin, rack A1.",
			},
		},
	}
	if err := idx.Upsert(context.Background(), vectors); err != nil {
		t.Fatal(err)
	}
}

func TestAskStreamsSourcesTextDone(t *testing.T) {
	store := &fakeStore{books: testBooks(), documents: map[int64]*models.Document{
		7: {ID: 7, Filename: "clean-code-notes.pdf"},
	}}
	embedder := embedding.NewMockEmbedder(16)
	idx := vector.NewMemoryIndex()
	seedIndex(t, idx, embedder)
	completer := &scriptedCompleter{fragments: []string{"Fungsi ", "harus kecil."}}

	assistant := newTestAssistant(store, embedder, idx, completer)
	events := drain(assistant.Ask(context.Background(), "refactoring functions", ModeAll))

	if len(events) < 3 {
		t.Fatalf("got %d events: %+v", len(events), events)
	}
	if events[0].Type != models.EventSources {
		t.Fatalf("first event = %s, want sources", events[0].Type)
	}
	var textCount, doneCount int
	for _, ev := range events[1:] {
		switch ev.Type {
		case models.EventText:
			textCount++
		case models.EventDone:
			doneCount++
		default:
			t.Errorf("unexpected event %+v", ev)
		}
	}
	if textCount != 2 {
		t.Errorf("text events = %d, want 2", textCount)
	}
	if doneCount != 1 {
		t.Errorf("done events = %d, want exactly 1", doneCount)
	}
	if events[len(events)-1].Type != models.EventDone {
		t.Error("stream did not end with done")
	}
	if !strings.Contains(completer.lastSystem, "INDONESIAN") {
		t.Error("system prompt missing language instruction")
	}
	if !strings.Contains(completer.lastUser, "refactoring functions") {
		t.Error("question missing from user prompt")
	}
}

func TestAskEmptyMatchesFallsBackToAllBooks(t *testing.T) {
	store := &fakeStore{books: testBooks()}
	embedder := embedding.NewMockEmbedder(16)
	idx := vector.NewMemoryIndex() // empty index, zero matches
	completer := &scriptedCompleter{fragments: []string{"Ada dua buku."}}

	assistant := newTestAssistant(store, embedder, idx, completer)
	events := drain(assistant.Ask(context.Background(), "what books do you have", ModeAll))

	if events[0].Type != models.EventSources {
		t.Fatalf("first event = %s, want sources", events[0].Type)
	}
	sources, ok := events[0].Content.([]models.Source)
	if !ok {
		t.Fatalf("sources content = %T", events[0].Content)
	}
	if len(sources) != 2 {
		t.Fatalf("fallback sources = %d, want all %d books", len(sources), 2)
	}
	for _, src := range sources {
		if src.Score != nil {
			t.Errorf("fallback source %d has score %v, want nil", src.ID, *src.Score)
		}
		if src.Type != "book" {
			t.Errorf("fallback source type = %s, want book", src.Type)
		}
	}
	if !strings.Contains(completer.lastUser, "Clean Code") || !strings.Contains(completer.lastUser, "Dune") {
		t.Error("fallback context missing catalog books")
	}

	var doneCount int
	sawText := false
	for _, ev := range events[1:] {
		if ev.Type == models.EventText {
			sawText = true
		}
		if ev.Type == models.EventDone {
			doneCount++
		}
	}
	if !sawText || doneCount != 1 {
		t.Errorf("events after sources = %+v, want text then exactly one done", events[1:])
	}
}

func TestAskEmbeddingFailureSingleError(t *testing.T) {
	store := &fakeStore{books: testBooks()}
	idx := vector.NewMemoryIndex()
	completer := &scriptedCompleter{fragments: []string{"should not run"}}

	assistant := newTestAssistant(store, embedding.FailingEmbedder{}, idx, completer)
	events := drain(assistant.Ask(context.Background(), "anything", ModeAll))

	if len(events) != 1 {
		t.Fatalf("got %d events, want exactly 1: %+v", len(events), events)
	}
	if events[0].Type != models.EventError {
		t.Errorf("event = %+v, want error", events[0])
	}
	if events[0].Content != AnswerEmbeddingFailed {
		t.Errorf("error message = %v", events[0].Content)
	}
}

// emptyEmbedder returns an empty non-nil vector, which must count as failure
// the same way nil does.
type emptyEmbedder struct{}

func (emptyEmbedder) Embed(ctx context.Context, text string) []float64 { return []float64{} }

func (emptyEmbedder) Dimensions() int { return 0 }

func TestAskEmptyEmbeddingSingleError(t *testing.T) {
	store := &fakeStore{books: testBooks()}
	completer := &scriptedCompleter{fragments: []string{"should not run"}}

	assistant := newTestAssistant(store, emptyEmbedder{}, vector.NewMemoryIndex(), completer)
	events := drain(assistant.Ask(context.Background(), "anything", ModeAll))

	if len(events) != 1 || events[0].Type != models.EventError {
		t.Fatalf("got %+v, want exactly one error event", events)
	}
	if events[0].Content != AnswerEmbeddingFailed {
		t.Errorf("error message = %v", events[0].Content)
	}
}

func TestSystemPromptFixesCitationPolicy(t *testing.T) {
	for _, want := range []string{
		"title and author",
		"filename and page number",
		"rack location",
		"INDONESIAN",
	} {
		if !strings.Contains(SystemPrompt, want) {
			t.Errorf("system prompt missing %q", want)
		}
	}
}

func TestAskCloseAbandonsProducer(t *testing.T) {
	store := &fakeStore{books: testBooks(), documents: map[int64]*models.Document{}}
	embedder := embedding.NewMockEmbedder(16)
	idx := vector.NewMemoryIndex()
	seedIndex(t, idx, embedder)
	completer := &scriptedCompleter{fragments: []string{"a", "b", "c", "d"}}

	assistant := newTestAssistant(store, embedder, idx, completer)
	stream := assistant.Ask(context.Background(), "q", ModeAll)

	if _, ok := stream.Next(); !ok {
		t.Fatal("expected at least one event")
	}
	stream.Close()
	// Producer must unblock and finish; draining afterwards terminates.
	for {
		if _, ok := stream.Next(); !ok {
			break
		}
	}
}

func TestAskSearchModes(t *testing.T) {
	store := &fakeStore{books: testBooks(), documents: map[int64]*models.Document{
		7: {ID: 7, Filename: "clean-code-notes.pdf"},
	}}
	embedder := embedding.NewMockEmbedder(16)
	idx := vector.NewMemoryIndex()
	seedIndex(t, idx, embedder)
	completer := &scriptedCompleter{fragments: []string{"ok"}}
	assistant := newTestAssistant(store, embedder, idx, completer)

	result := assistant.AskSync(context.Background(), "clean code", ModePDF)
	for _, src := range result.Sources {
		if src.Type != models.SourceTypePDF {
			t.Errorf("pdf mode returned source type %s", src.Type)
		}
	}

	result = assistant.AskSync(context.Background(), "clean code", ModeDatabase)
	for _, src := range result.Sources {
		if src.Type != "book" {
			t.Errorf("database mode returned source type %s", src.Type)
		}
	}
}

func TestAskSyncEmbeddingFailure(t *testing.T) {
	store := &fakeStore{books: testBooks()}
	assistant := newTestAssistant(store, embedding.FailingEmbedder{}, vector.NewMemoryIndex(), &scriptedCompleter{})

	result := assistant.AskSync(context.Background(), "q", ModeAll)
	if result.Answer != AnswerEmbeddingFailed {
		t.Errorf("answer = %q", result.Answer)
	}
	if result.Sources == nil || len(result.Sources) != 0 {
		t.Errorf("sources = %v, want empty non-nil", result.Sources)
	}
}

func TestParseSearchMode(t *testing.T) {
	cases := map[string]SearchMode{
		"all":      ModeAll,
		"pdf":      ModePDF,
		"database": ModeDatabase,
		"":         ModeAll,
		"garbage":  ModeAll,
	}
	for in, want := range cases {
		if got := ParseSearchMode(in); got != want {
			t.Errorf("ParseSearchMode(%q) = %s, want %s", in, got, want)
		}
	}
}
