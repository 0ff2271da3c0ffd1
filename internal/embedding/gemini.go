package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/pustakalab/pustaka/internal/config"
)

// GeminiEmbedder calls the Gemini embedContent endpoint.
type GeminiEmbedder struct {
	baseURL    string
	apiKey     string
	model      string
	dimensions int
	client     *http.Client
	logger     *zap.Logger
}

// NewGeminiEmbedder creates an embedder from config. logger may be nil.
func NewGeminiEmbedder(cfg *config.GeminiConfig, logger *zap.Logger) *GeminiEmbedder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GeminiEmbedder{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		model:      cfg.EmbeddingModel,
		dimensions: cfg.Dimensions,
		client:     &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

type embedRequest struct {
	Content  embedContent `json:"content"`
	TaskType string       `json:"taskType"`
	Title    string       `json:"title"`
}

type embedContent struct {
	Parts []textPart `json:"parts"`
}

type textPart struct {
	Text string `json:"text"`
}

type embedResponse struct {
	Embedding struct {
		Values []float64 `json:"values"`
	} `json:"embedding"`
}

// Embed returns the embedding vector for text, or nil when the provider call
// fails for any reason (transport error, non-2xx status, malformed body).
func (e *GeminiEmbedder) Embed(ctx context.Context, text string) []float64 {
	payload := embedRequest{
		Content:  embedContent{Parts: []textPart{{Text: text}}},
		TaskType: "RETRIEVAL_DOCUMENT",
		Title:    "Embedding",
	}
	data, err := json.Marshal(payload)
	if err != nil {
		e.logger.Error("embedding marshal failed", zap.Error(err))
		return nil
	}

	url := fmt.Sprintf("%s/%s:embedContent?key=%s", e.baseURL, e.model, e.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		e.logger.Error("embedding request build failed", zap.Error(err))
		return nil
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		e.logger.Error("embedding request failed", zap.Error(err))
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		e.logger.Error("embedding request rejected", zap.Int("status", resp.StatusCode))
		return nil
	}

	var out embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		e.logger.Error("embedding response decode failed", zap.Error(err))
		return nil
	}
	if len(out.Embedding.Values) == 0 {
		e.logger.Error("embedding response contained no values")
		return nil
	}
	return out.Embedding.Values
}

// Dimensions returns the configured embedding dimension.
func (e *GeminiEmbedder) Dimensions() int {
	return e.dimensions
}
