// Package embedding turns text into fixed-length, unit-normalized vectors.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
)

var (
	// ErrEmptyEmbedding indicates the provider returned no vector.
	ErrEmptyEmbedding = errors.New("empty embedding")
	// ErrUnknownProvider indicates an unsupported provider name.
	ErrUnknownProvider = errors.New("unknown embedding provider")
)

// Embedder produces an embedding vector for a piece of text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Func adapts an ordinary function to the Embedder interface.
type Func func(ctx context.Context, text string) ([]float32, error)

func (f Func) Embed(ctx context.Context, text string) ([]float32, error) {
	return f(ctx, text)
}

// New creates the configured embedder.
func New(cfg *Config) (Embedder, error) {
	client := &http.Client{Timeout: cfg.TimeoutDuration()}
	base := strings.TrimSuffix(cfg.BaseURL, "/")

	switch cfg.Provider {
	case ProviderOllama:
		return &Ollama{url: base + "/api/embeddings", model: cfg.Model, client: client}, nil
	case ProviderOpenAI:
		return &OpenAI{url: base + "/embeddings", model: cfg.Model, token: cfg.Token, client: client}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, cfg.Provider)
	}
}

// Normalize scales vec to unit length. Zero vectors are returned unchanged.
func Normalize(vec []float64) []float32 {
	var magnitude float64
	for _, v := range vec {
		magnitude += v * v
	}
	magnitude = math.Sqrt(magnitude)

	out := make([]float32, len(vec))
	for i, v := range vec {
		if magnitude == 0 {
			out[i] = float32(v)
			continue
		}
		out[i] = float32(v / magnitude)
	}
	return out
}
