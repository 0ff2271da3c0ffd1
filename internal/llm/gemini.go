package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/pustakalab/pustaka/internal/config"
	"github.com/pustakalab/pustaka/internal/models"
)

// GeminiClient talks to the Gemini generateContent endpoints.
type GeminiClient struct {
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	maxTokens   int
	client      *http.Client
	logger      *zap.Logger
}

// NewGeminiClient creates a chat client from config. logger may be nil.
func NewGeminiClient(cfg *config.GeminiConfig, chat *config.ChatConfig, logger *zap.Logger) *GeminiClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GeminiClient{
		baseURL:     cfg.BaseURL,
		apiKey:      cfg.APIKey,
		model:       cfg.ChatModel,
		temperature: chat.Temperature,
		maxTokens:   chat.MaxOutputTokens,
		client:      &http.Client{Timeout: chat.Timeout},
		logger:      logger,
	}
}

type generateRequest struct {
	SystemInstruction *content         `json:"system_instruction,omitempty"`
	Contents          []content        `json:"contents"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

func (g *GeminiClient) buildRequest(systemPrompt, userPrompt string) generateRequest {
	req := generateRequest{
		Contents: []content{
			{Role: "user", Parts: []part{{Text: userPrompt}}},
		},
		GenerationConfig: generationConfig{
			Temperature:     g.temperature,
			MaxOutputTokens: g.maxTokens,
		},
	}
	if systemPrompt != "" {
		req.SystemInstruction = &content{Parts: []part{{Text: systemPrompt}}}
	}
	return req
}

// StreamCompletion calls streamGenerateContent with SSE framing and forwards
// text deltas as events. On a clean end of stream a single done event is
// emitted. On an error status or mid-stream read failure a single error event
// is emitted instead, with no done after it.
func (g *GeminiClient) StreamCompletion(ctx context.Context, systemPrompt, userPrompt string, emit func(models.StreamEvent) bool) {
	body, err := json.Marshal(g.buildRequest(systemPrompt, userPrompt))
	if err != nil {
		g.logger.Error("failed to marshal stream request", zap.Error(err))
		emit(models.ErrorEvent("Gemini API Error: request encoding failed"))
		return
	}

	url := fmt.Sprintf("%s/%s:streamGenerateContent?alt=sse&key=%s", g.baseURL, g.model, g.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		emit(models.ErrorEvent("Gemini API Error: invalid request"))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.Error("stream request failed", zap.Error(err))
		emit(models.ErrorEvent("Gemini API Error: request failed"))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		g.logger.Error("stream request returned error status", zap.Int("status", resp.StatusCode))
		emit(models.ErrorEvent(fmt.Sprintf("Gemini API Error: %d", resp.StatusCode)))
		return
	}

	consumeSSE(resp.Body, g.logger, emit)
}

// consumeSSE reads the response body in arbitrary sized reads, reassembles
// newline delimited frames, and emits text events for each data frame that
// decodes to a candidate text part. Malformed frames are dropped. The event
// sequence does not depend on how the body is split across reads.
func consumeSSE(r io.Reader, logger *zap.Logger, emit func(models.StreamEvent) bool) {
	var buffer []byte
	chunk := make([]byte, 4096)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			buffer = append(buffer, chunk[:n]...)
			for {
				nl := bytes.IndexByte(buffer, '\n')
				if nl < 0 {
					break
				}
				line := strings.TrimRight(string(buffer[:nl]), "\r")
				buffer = buffer[nl+1:]
				if !handleLine(line, logger, emit) {
					return
				}
			}
		}
		if err == io.EOF {
			if rest := strings.TrimRight(string(buffer), "\r"); rest != "" {
				if !handleLine(rest, logger, emit) {
					return
				}
			}
			emit(models.DoneEvent())
			return
		}
		if err != nil {
			logger.Error("stream read failed", zap.Error(err))
			emit(models.ErrorEvent("Gemini API Error: stream interrupted"))
			return
		}
	}
}

func handleLine(line string, logger *zap.Logger, emit func(models.StreamEvent) bool) bool {
	const prefix = "data: "
	if !strings.HasPrefix(line, prefix) {
		return true
	}
	payload := line[len(prefix):]
	if payload == "" || payload == "[DONE]" {
		return true
	}
	var resp generateResponse
	if err := json.Unmarshal([]byte(payload), &resp); err != nil {
		logger.Debug("dropping malformed stream frame", zap.Error(err))
		return true
	}
	text := extractText(&resp)
	if text == "" {
		return true
	}
	return emit(models.TextEvent(text))
}

func extractText(resp *generateResponse) string {
	if len(resp.Candidates) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String()
}

// Generate calls the synchronous generateContent endpoint and returns the
// answer text. Every failure mode maps to a fallback answer so callers always
// have something to show.
func (g *GeminiClient) Generate(ctx context.Context, systemPrompt, userPrompt string) string {
	body, err := json.Marshal(g.buildRequest(systemPrompt, userPrompt))
	if err != nil {
		g.logger.Error("failed to marshal generate request", zap.Error(err))
		return AnswerGenerateError
	}

	url := fmt.Sprintf("%s/%s:generateContent?key=%s", g.baseURL, g.model, g.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return AnswerGenerateError
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.Error("generate request failed", zap.Error(err))
		return AnswerGenerateError
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		g.logger.Error("generate returned error status", zap.Int("status", resp.StatusCode))
		return AnswerGenerateError
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		g.logger.Error("failed to decode generate response", zap.Error(err))
		return AnswerGenerateError
	}

	text := extractText(&out)
	if strings.TrimSpace(text) == "" {
		return AnswerEmptyResponse
	}
	return text
}

type modelsResponse struct {
	Models []ModelInfo `json:"models"`
}

// ModelInfo describes a model available on the Gemini API.
type ModelInfo struct {
	Name                       string   `json:"name"`
	DisplayName                string   `json:"displayName"`
	Description                string   `json:"description"`
	SupportedGenerationMethods []string `json:"supportedGenerationMethods"`
}

// ListModels returns the models the API key has access to.
func (g *GeminiClient) ListModels(ctx context.Context) ([]ModelInfo, error) {
	url := fmt.Sprintf("%s/models?key=%s", g.baseURL, g.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var out modelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return out.Models, nil
}
