package vector

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/pustakalab/pustaka/internal/models"
)

// MemoryIndex is an in-process Index for tests and small deployments.
// Vectors are matched by cosine similarity.
type MemoryIndex struct {
	mu      sync.RWMutex
	vectors map[string]models.Vector
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{vectors: make(map[string]models.Vector)}
}

func (m *MemoryIndex) Upsert(ctx context.Context, vectors []models.Vector) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range vectors {
		m.vectors[v.ID] = v
	}
	return nil
}

func (m *MemoryIndex) Query(ctx context.Context, vector []float64, topK int, filter map[string]interface{}) []models.Match {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matches := make([]models.Match, 0, len(m.vectors))
	for _, v := range m.vectors {
		if !matchesFilter(v.Metadata, filter) {
			continue
		}
		score := cosineSimilarity(vector, v.Values)
		matches = append(matches, models.Match{ID: v.ID, Score: score, Metadata: v.Metadata})
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}
	return matches
}

func (m *MemoryIndex) DeleteByIDs(ctx context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.vectors, id)
	}
	return nil
}

func (m *MemoryIndex) DeleteAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vectors = make(map[string]models.Vector)
	return nil
}

// Len reports the number of stored vectors.
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.vectors)
}

// matchesFilter evaluates Pinecone-style {field: {"$eq"|"$ne": value}}
// conditions. $ne also matches vectors that lack the field entirely.
func matchesFilter(metadata map[string]interface{}, filter map[string]interface{}) bool {
	for field, cond := range filter {
		ops, ok := cond.(map[string]interface{})
		if !ok {
			return false
		}
		val, present := metadata[field]
		for op, want := range ops {
			switch op {
			case "$eq":
				if !present || val != want {
					return false
				}
			case "$ne":
				if present && val == want {
					return false
				}
			default:
				return false
			}
		}
	}
	return true
}

func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
