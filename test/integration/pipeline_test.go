// Package integration provides end-to-end tests over real storage and the
// in-memory vector index, with the Gemini endpoints stubbed by httptest.
package integration

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pustakalab/pustaka/internal/config"
	"github.com/pustakalab/pustaka/internal/embedding"
	"github.com/pustakalab/pustaka/internal/ingest"
	"github.com/pustakalab/pustaka/internal/llm"
	"github.com/pustakalab/pustaka/internal/models"
	"github.com/pustakalab/pustaka/internal/rag"
	"github.com/pustakalab/pustaka/internal/storage"
	"github.com/pustakalab/pustaka/internal/vector"
)

func TestIntegration_IngestAndAsk(t *testing.T) {
	dir := t.TempDir()

	store, err := storage.NewSQLiteStorage(filepath.Join(dir, "library.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	embedder := embedding.NewMockEmbedder(16)
	idx := vector.NewMemoryIndex()

	// Stub Gemini: streams two SSE frames for any completion request.
	gemini := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "streamGenerateContent") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, `data: {"candidates":[{"content":{"parts":[{"text":"Buku itu ada "}]}}]}`+"\n\n")
		io.WriteString(w, `data: {"candidates":[{"content":{"parts":[{"text":"di rak A1."}]}}]}`+"\n\n")
	}))
	defer gemini.Close()

	ingestCfg := &config.IngestConfig{ChunkSize: 200, ChunkOverlap: 20, BatchSize: 10}
	pipeline := ingest.NewPipeline(store, embedder, idx, ingestCfg,
		ingest.WithDocumentsDir(filepath.Join(dir, "documents")),
		ingest.WithExtractor(func(string) ([]string, error) {
			return []string{
				"Clean Code explains how to name variables and keep functions small. " +
					"Chapter three covers functions in depth.",
				"The second page discusses comments and formatting at length.",
			}, nil
		}))

	ctx := context.Background()

	// Upload and ingest a document.
	doc, err := pipeline.SaveUpload(ctx, strings.NewReader("%PDF-1.4 stub"), "clean-code-notes.pdf")
	if err != nil {
		t.Fatal(err)
	}
	result, err := pipeline.IngestDocument(ctx, doc)
	if err != nil {
		t.Fatal(err)
	}
	if result.PagesCount != 2 || result.UpsertedCount == 0 {
		t.Fatalf("result = %+v", result)
	}

	// Embed the seeded catalog too.
	if _, err := pipeline.ReingestBooks(ctx); err != nil {
		t.Fatal(err)
	}
	// ReingestBooks wipes the index, so the document comes back afterwards.
	if _, err := pipeline.IngestDocument(ctx, doc); err != nil {
		t.Fatal(err)
	}

	chat := llm.NewGeminiClient(
		&config.GeminiConfig{BaseURL: gemini.URL, APIKey: "test", ChatModel: "models/gemini-1.5-flash"},
		&config.ChatConfig{Temperature: 0.7, MaxOutputTokens: 1024, Timeout: 0},
		nil,
	)
	assistant := rag.NewAssistant(embedder, idx, chat, rag.NewContextBuilder(store, store))

	stream := assistant.Ask(ctx, "how should functions be named", rag.ModeAll)
	defer stream.Close()

	var events []models.StreamEvent
	for {
		ev, ok := stream.Next()
		if !ok {
			break
		}
		events = append(events, ev)
	}

	if len(events) < 3 {
		t.Fatalf("got %d events: %+v", len(events), events)
	}
	if events[0].Type != models.EventSources {
		t.Errorf("first event = %s, want sources", events[0].Type)
	}
	if events[len(events)-1].Type != models.EventDone {
		t.Errorf("last event = %s, want done", events[len(events)-1].Type)
	}
	var text strings.Builder
	for _, ev := range events {
		if ev.Type == models.EventText {
			text.WriteString(ev.Content.(string))
		}
	}
	if text.String() != "Buku itu ada di rak A1." {
		t.Errorf("answer = %q", text.String())
	}

	// Delete the document and confirm its vectors are gone from retrieval in
	// pdf mode.
	if err := pipeline.DeleteDocument(ctx, doc.ID); err != nil {
		t.Fatal(err)
	}
	matches := idx.Query(ctx, embedder.Embed(ctx, "functions"), 10,
		vector.EqFilter(models.MetaSourceType, models.SourceTypePDF))
	if len(matches) != 0 {
		t.Errorf("pdf matches after delete = %d, want 0", len(matches))
	}
}
