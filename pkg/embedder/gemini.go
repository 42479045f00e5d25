package embedder

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/cortexkit/cortex/pkg/config"
)

// Gemini embeds text using the Google GenAI SDK.
type Gemini struct {
	client    *genai.Client
	model     string
	dimension int
}

// NewGemini creates an embedder backed by the Gemini embedding API.
func NewGemini(cfg *config.EmbedderConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	// Constructors shouldn't require context
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Gemini{
		client:    client,
		model:     cfg.Model,
		dimension: cfg.Dimension,
	}, nil
}

// Embed requests an embedding for a single text.
func (e *Gemini) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds multiple texts in one call.
func (e *Gemini) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}

	result, err := e.client.Models.EmbedContent(ctx, e.model, contents,
		&genai.EmbedContentConfig{
			TaskType: "SEMANTIC_SIMILARITY",
		},
	)
	if err != nil {
		return nil, fmt.Errorf("Gemini embedding failed: %w", err)
	}

	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(result.Embeddings))
	}

	out := make([][]float32, len(result.Embeddings))
	for i, emb := range result.Embeddings {
		out[i] = emb.Values
	}
	return out, nil
}

// Dimension returns the configured embedding dimension.
func (e *Gemini) Dimension() int {
	return e.dimension
}

// Model returns the embedding model name.
func (e *Gemini) Model() string {
	return e.model
}

// Close releases resources.
func (e *Gemini) Close() error {
	return nil
}

var _ Embedder = (*Gemini)(nil)
