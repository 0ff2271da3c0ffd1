package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/pustakalab/pustaka/internal/config"
	"github.com/pustakalab/pustaka/internal/models"
)

// PineconeIndex is a REST client for a Pinecone-compatible vector index.
type PineconeIndex struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *zap.Logger
}

// NewPineconeIndex creates a client from config. logger may be nil.
func NewPineconeIndex(cfg *config.PineconeConfig, logger *zap.Logger) *PineconeIndex {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PineconeIndex{
		baseURL: cfg.Host,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: 30 * time.Second},
		logger:  logger,
	}
}

// Upsert inserts or overwrites vectors by ID.
func (p *PineconeIndex) Upsert(ctx context.Context, vectors []models.Vector) error {
	body := map[string]interface{}{"vectors": vectors}
	if err := p.post(ctx, "/vectors/upsert", body, nil); err != nil {
		return fmt.Errorf("upsert failed: %w", err)
	}
	return nil
}

type queryResponse struct {
	Matches []models.Match `json:"matches"`
}

// Query returns up to topK matches for the query vector, most similar first.
// filter may be nil. On any provider failure the result is an empty list.
func (p *PineconeIndex) Query(ctx context.Context, vector []float64, topK int, filter map[string]interface{}) []models.Match {
	body := map[string]interface{}{
		"vector":          vector,
		"topK":            topK,
		"includeMetadata": true,
	}
	if len(filter) > 0 {
		body["filter"] = filter
	}
	var out queryResponse
	if err := p.post(ctx, "/query", body, &out); err != nil {
		p.logger.Error("vector query failed", zap.Error(err))
		return nil
	}
	return out.Matches
}

// DeleteByIDs removes vectors by ID. Best-effort maintenance operation.
func (p *PineconeIndex) DeleteByIDs(ctx context.Context, ids []string) error {
	body := map[string]interface{}{"ids": ids}
	if err := p.post(ctx, "/vectors/delete", body, nil); err != nil {
		return fmt.Errorf("delete failed: %w", err)
	}
	return nil
}

// DeleteAll removes every vector in the index.
func (p *PineconeIndex) DeleteAll(ctx context.Context) error {
	body := map[string]interface{}{"deleteAll": true}
	if err := p.post(ctx, "/vectors/delete", body, nil); err != nil {
		return fmt.Errorf("delete all failed: %w", err)
	}
	return nil
}

func (p *PineconeIndex) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Api-Key", p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(b))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
