// Package llm provides the Gemini chat completion client used for retrieval
// augmented answering.
package llm

import (
	"context"

	"github.com/pustakalab/pustaka/internal/models"
)

// Fallback answers returned when the provider produces nothing usable.
const (
	AnswerEmptyResponse = "Sorry, I could not generate a response."
	AnswerGenerateError = "An error occurred while generating the response."
)

// Completer generates answers from an assembled prompt.
// StreamCompletion must emit zero or more text events followed by exactly one
// done event, or events followed by a single error event with no done.
// Emit returning false means the consumer has gone away and streaming stops.
type Completer interface {
	StreamCompletion(ctx context.Context, systemPrompt, userPrompt string, emit func(models.StreamEvent) bool)
	Generate(ctx context.Context, systemPrompt, userPrompt string) string
}
