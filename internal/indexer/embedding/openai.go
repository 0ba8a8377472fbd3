package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/pkg/config"
	"github.com/sashabaranov/go-openai"
)

// DefaultOpenAIDimensions is the native size of text-embedding-3-small.
const DefaultOpenAIDimensions = 1536

// OpenAI embeds text with the OpenAI embeddings API or a compatible server.
type OpenAI struct {
	client *openai.Client
	model  string
	dims   int
	logger *slog.Logger
}

func NewOpenAI(cfg config.EmbeddingConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is not set")
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = string(openai.SmallEmbedding3)
	}
	dims := cfg.Dimensions
	if dims <= 0 {
		dims = DefaultOpenAIDimensions
	}
	slog.Info("initializing openai embedder", "model", model, "dimensions", dims)
	return &OpenAI{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
		dims:   dims,
		logger: slog.Default().With("component", "embedding", "provider", "openai"),
	}, nil
}

func (o *OpenAI) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	req := openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(o.model),
	}
	if o.dims != DefaultOpenAIDimensions {
		req.Dimensions = o.dims
	}
	resp, err := o.client.CreateEmbeddings(ctx, req)
	if err != nil {
		o.logger.Error("embedding call failed", "inputs", len(texts), "error", err)
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai returned %d embeddings for %d inputs", len(resp.Data), len(texts))
	}
	out := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("openai returned out-of-range index %d", d.Index)
		}
		if len(d.Embedding) != o.dims {
			return nil, fmt.Errorf("openai returned %d dimensions, want %d", len(d.Embedding), o.dims)
		}
		out[d.Index] = d.Embedding
	}
	o.logger.Debug("embedded batch", "inputs", len(texts), "tokens", resp.Usage.TotalTokens)
	return out, nil
}

func (o *OpenAI) Dimensions() int { return o.dims }

func (o *OpenAI) Model() string { return o.model }

// Retryable reports whether err from Embed is worth retrying: rate limits,
// server errors and transport failures are; client errors and caller
// cancellation are not.
func Retryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}
	return true
}
