package embedding

import (
	"context"
	"hash/fnv"
	"math"
)

// MockEmbedder is a deterministic embedder for tests. The same text always
// gets the same unit-length vector, so similarity is stable across runs.
type MockEmbedder struct {
	dimensions int
}

// NewMockEmbedder returns an embedder producing deterministic embeddings of
// the given dimension.
func NewMockEmbedder(dimensions int) *MockEmbedder {
	if dimensions <= 0 {
		dimensions = 768
	}
	return &MockEmbedder{dimensions: dimensions}
}

// Embed returns a deterministic embedding derived from the text hash.
func (e *MockEmbedder) Embed(ctx context.Context, text string) []float64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(text))
	seed := int(h.Sum32() % 100000)

	emb := make([]float64, e.dimensions)
	for i := 0; i < e.dimensions; i++ {
		emb[i] = math.Sin(float64(seed*(i+1)))*0.1 + 0.01
	}
	var sum float64
	for _, v := range emb {
		sum += v * v
	}
	if sum > 0 {
		norm := 1.0 / math.Sqrt(sum)
		for i := range emb {
			emb[i] *= norm
		}
	}
	return emb
}

// Dimensions returns the embedding dimension.
func (e *MockEmbedder) Dimensions() int {
	return e.dimensions
}

// FailingEmbedder always returns nil, simulating an unreachable provider.
type FailingEmbedder struct{}

// Embed always fails.
func (FailingEmbedder) Embed(ctx context.Context, text string) []float64 { return nil }

// Dimensions returns 0.
func (FailingEmbedder) Dimensions() int { return 0 }
