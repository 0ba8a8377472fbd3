// Package embedding turns chunk and query text into dense vectors. The
// builder and the retriever depend only on the Embedder interface.
package embedding

import (
	"context"
	"errors"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/etp-requirements-engine/pkg/config"
)

// ErrDisabled is returned by New when no dense backend is configured.
var ErrDisabled = errors.New("embedding provider disabled")

// Embedder produces one vector per input text, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Model() string
}

// New builds the embedder named by cfg.Provider. Provider "none" returns
// ErrDisabled, which callers treat as lexical-only operation.
func New(cfg config.EmbeddingConfig) (Embedder, error) {
	switch cfg.Provider {
	case "", "none":
		return nil, ErrDisabled
	case "openai":
		return NewOpenAI(cfg)
	case "hash":
		return NewHashing(cfg.Dimensions), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}

// EmbedOne embeds a single text.
func EmbedOne(ctx context.Context, e Embedder, text string) ([]float32, error) {
	vecs, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for 1 input", len(vecs))
	}
	return vecs[0], nil
}
