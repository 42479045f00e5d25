// Package embedder produces vector embeddings for percepts and memory
// content.
//
// Providers: ollama (local HTTP), gemini (genai SDK), hash (deterministic
// offline fallback), and mock for tests. All providers emit fixed-dimension
// float32 vectors suitable for the vector index.
package embedder

import (
	"context"
	"fmt"

	"github.com/cortexkit/cortex/pkg/config"
)

// Embedder produces vector embeddings from text.
type Embedder interface {
	// Embed converts text to a vector embedding.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch converts multiple texts to vector embeddings.
	// More efficient than calling Embed multiple times.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the embedding vector dimension.
	Dimension() int

	// Model returns the model name being used.
	Model() string

	// Close releases any resources held by the embedder.
	Close() error
}

// New creates an Embedder for the configured provider.
func New(cfg *config.EmbedderConfig) (Embedder, error) {
	switch cfg.Provider {
	case config.EmbedderProviderOllama:
		return NewOllama(cfg), nil
	case config.EmbedderProviderGemini:
		return NewGemini(cfg)
	case config.EmbedderProviderHash:
		return NewHash(cfg.Dimension), nil
	case config.EmbedderProviderMock:
		return NewMock(cfg.Dimension), nil
	default:
		return nil, fmt.Errorf("unknown embedder provider: %s", cfg.Provider)
	}
}
