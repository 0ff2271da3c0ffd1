// Package vector provides the vector index client used for similarity retrieval.
package vector

import (
	"context"

	"github.com/pustakalab/pustaka/internal/models"
)

// Index defines vector upsert, similarity query, and maintenance operations.
// Query degrades to an empty match list on provider failure so downstream
// logic always has a well-formed result; the write operations return errors
// for the caller to log and move past.
type Index interface {
	Upsert(ctx context.Context, vectors []models.Vector) error
	Query(ctx context.Context, vector []float64, topK int, filter map[string]interface{}) []models.Match
	DeleteByIDs(ctx context.Context, ids []string) error
	DeleteAll(ctx context.Context) error
}

// EqFilter returns a filter matching vectors whose metadata field equals value.
func EqFilter(field string, value interface{}) map[string]interface{} {
	return map[string]interface{}{field: map[string]interface{}{"$eq": value}}
}

// NeFilter returns a filter matching vectors whose metadata field differs
// from value, including vectors without the field.
func NeFilter(field string, value interface{}) map[string]interface{} {
	return map[string]interface{}{field: map[string]interface{}{"$ne": value}}
}
