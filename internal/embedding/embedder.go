// Package embedding provides text embedding via the Gemini API.
package embedding

import "context"

// Embedder produces vector embeddings for text. A nil or empty result
// signals failure; callers must check before use. Failures never surface as
// errors here so downstream logic always has a well-formed value.
type Embedder interface {
	Embed(ctx context.Context, text string) []float64
	Dimensions() int
}
