package rag

import (
	"context"

	"go.uber.org/zap"

	"github.com/pustakalab/pustaka/internal/embedding"
	"github.com/pustakalab/pustaka/internal/llm"
	"github.com/pustakalab/pustaka/internal/models"
	"github.com/pustakalab/pustaka/internal/vector"
	"github.com/pustakalab/pustaka/pkg/utils"
)

// SearchMode narrows retrieval to one corpus half.
type SearchMode string

const (
	ModeAll      SearchMode = "all"      // no filter
	ModePDF      SearchMode = "pdf"      // uploaded documents only
	ModeDatabase SearchMode = "database" // catalog books only
)

// ParseSearchMode maps a request string to a mode, defaulting to all.
func ParseSearchMode(s string) SearchMode {
	switch SearchMode(s) {
	case ModePDF:
		return ModePDF
	case ModeDatabase:
		return ModeDatabase
	default:
		return ModeAll
	}
}

func (m SearchMode) filter() map[string]interface{} {
	switch m {
	case ModePDF:
		return vector.EqFilter(models.MetaSourceType, models.SourceTypePDF)
	case ModeDatabase:
		return vector.NeFilter(models.MetaSourceType, models.SourceTypePDF)
	default:
		return nil
	}
}

// Assistant answers library questions over the vector index.
type Assistant struct {
	embedder  embedding.Embedder
	index     vector.Index
	completer llm.Completer
	builder   *ContextBuilder
	topK      int
	logger    *zap.Logger
}

// Option configures an Assistant.
type Option func(*Assistant)

// WithLogger sets the logger. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(a *Assistant) { a.logger = logger }
}

// WithTopK overrides the number of matches retrieved per question.
func WithTopK(k int) Option {
	return func(a *Assistant) { a.topK = k }
}

func NewAssistant(embedder embedding.Embedder, index vector.Index, completer llm.Completer, builder *ContextBuilder, opts ...Option) *Assistant {
	a := &Assistant{
		embedder:  embedder,
		index:     index,
		completer: completer,
		builder:   builder,
		topK:      5,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Ask answers a question as a pull-based event stream: one sources event,
// zero or more text events, then exactly one done. If the question cannot be
// embedded the stream carries a single error event instead. The caller must
// drain or Close the stream.
func (a *Assistant) Ask(ctx context.Context, question string, mode SearchMode) *EventStream {
	ctx, cancel := context.WithCancel(ctx)
	stream := newEventStream(cancel)

	go func() {
		defer stream.finish()
		defer cancel()

		queryVector := a.embedder.Embed(ctx, question)
		if len(queryVector) == 0 {
			a.logger.Warn("question embedding failed", zap.String("question", utils.Truncate(question, 120)))
			stream.send(models.ErrorEvent(AnswerEmbeddingFailed))
			return
		}

		matches := a.index.Query(ctx, queryVector, a.topK, mode.filter())
		a.logger.Debug("retrieved matches",
			zap.Int("count", len(matches)),
			zap.String("mode", string(mode)))

		sources := a.builder.ExtractSources(ctx, matches)
		if !stream.send(models.SourcesEvent(sources)) {
			return
		}

		contextText := a.builder.BuildContext(ctx, matches)
		prompt := BuildUserPrompt(contextText, question)
		a.completer.StreamCompletion(ctx, SystemPrompt, prompt, stream.send)
	}()

	return stream
}

// SyncAnswer is the non-streaming chat result.
type SyncAnswer struct {
	Answer  string          `json:"answer"`
	Sources []models.Source `json:"sources"`
}

// AskSync answers a question in one shot. Provider failures degrade to
// fallback answer text; sources are returned whenever retrieval succeeded,
// even if generation did not.
func (a *Assistant) AskSync(ctx context.Context, question string, mode SearchMode) SyncAnswer {
	queryVector := a.embedder.Embed(ctx, question)
	if len(queryVector) == 0 {
		a.logger.Warn("question embedding failed", zap.String("question", utils.Truncate(question, 120)))
		return SyncAnswer{Answer: AnswerEmbeddingFailed, Sources: []models.Source{}}
	}

	matches := a.index.Query(ctx, queryVector, a.topK, mode.filter())
	sources := a.builder.ExtractSources(ctx, matches)
	if sources == nil {
		sources = []models.Source{}
	}

	contextText := a.builder.BuildContext(ctx, matches)
	answer := a.completer.Generate(ctx, SystemPrompt, BuildUserPrompt(contextText, question))
	return SyncAnswer{Answer: answer, Sources: sources}
}
