// Package embedding provides dense text embeddings for semantic matching.
// The backend is optional: when no API key is configured the engine runs in
// degraded mode and semantic matching is disabled.
package embedding

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	domerrors "github.com/ulinhsu/kpmatch-go/internal/errors"
)

const (
	// DefaultModel is the embedding model used when none is configured
	DefaultModel = "text-embedding-3-small"

	// DefaultDimensions is the requested output dimension
	DefaultDimensions = 768

	// Retry configuration for transient errors
	defaultMaxRetries   = 3
	defaultInitialDelay = 1 * time.Second
	defaultBackoff      = 2.0
)

// Embedder turns text into a fixed-length dense vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Model() string
	Dimensions() int
}

// OpenAIEmbedder generates embeddings via the OpenAI embeddings API.
type OpenAIEmbedder struct {
	client openai.Client
	model  string
	dims   int
}

// NewOpenAI creates an embedder backed by the OpenAI API.
// Returns an error if apiKey is empty; callers treat that as degraded mode,
// not a fatal condition.
func NewOpenAI(apiKey, model string, dims int) (*OpenAIEmbedder, error) {
	if apiKey == "" {
		return nil, domerrors.ErrEmbeddingUnavailable
	}
	if model == "" {
		model = DefaultModel
	}
	if dims <= 0 {
		dims = DefaultDimensions
	}
	return &OpenAIEmbedder{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
		dims:   dims,
	}, nil
}

// Model returns the configured embedding model name.
func (e *OpenAIEmbedder) Model() string {
	return e.model
}

// Dimensions returns the requested embedding dimensionality.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.dims
}

// Embed generates an embedding vector for the given text.
// Uses exponential backoff for transient errors.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("empty or whitespace-only text cannot be embedded: %w", domerrors.ErrInvalidInput)
	}

	var lastErr error
	delay := defaultInitialDelay

	for attempt := 0; attempt <= defaultMaxRetries; attempt++ {
		vec, err := e.embedOnce(ctx, text)
		if err == nil {
			return vec, nil
		}
		lastErr = err

		if ctx.Err() != nil || attempt == defaultMaxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay = time.Duration(float64(delay) * defaultBackoff)
	}

	return nil, domerrors.NewBackendError("openai", lastErr)
}

func (e *OpenAIEmbedder) embedOnce(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{
			OfString: openai.String(text),
		},
		Model:      openai.EmbeddingModel(e.model),
		Dimensions: openai.Int(int64(e.dims)),
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embedding response contained no data")
	}

	raw := resp.Data[0].Embedding
	vec := make([]float32, len(raw))
	for i, v := range raw {
		vec[i] = float32(v)
	}
	return vec, nil
}
