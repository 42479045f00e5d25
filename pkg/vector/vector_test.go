package vector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cortexkit/cortex/pkg/config"
)

func newTestProvider(t *testing.T) *ChromemProvider {
	t.Helper()
	p, err := NewChromemProvider(config.ChromemConfig{})
	require.NoError(t, err)
	return p
}

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		cfg      *config.VectorConfig
		wantName string
		wantErr  bool
	}{
		{
			name:     "nil config returns nil provider",
			cfg:      nil,
			wantName: "nil",
		},
		{
			name:     "chromem",
			cfg:      &config.VectorConfig{Provider: config.VectorProviderChromem},
			wantName: "chromem",
		},
		{
			name:    "unknown provider",
			cfg:     &config.VectorConfig{Provider: "faiss"},
			wantErr: true,
		},
		{
			name:    "pinecone without credentials",
			cfg:     &config.VectorConfig{Provider: config.VectorProviderPinecone},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, p.Name())
		})
	}
}

func TestChromemUpsertAndSearch(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	err := p.Upsert(ctx, "test", "doc-1", []float32{1, 0, 0}, map[string]any{
		"content": "the first document",
		"source":  "unit",
	})
	require.NoError(t, err)

	err = p.Upsert(ctx, "test", "doc-2", []float32{0, 1, 0}, map[string]any{
		"content": "the second document",
		"source":  "unit",
	})
	require.NoError(t, err)

	results, err := p.Search(ctx, "test", []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "doc-1", results[0].ID)
	assert.Equal(t, "the first document", results[0].Content)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestChromemSearchTopKClamped(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	require.NoError(t, p.Upsert(ctx, "test", "only", []float32{1, 0}, map[string]any{"content": "lonely"}))

	// Asking for more hits than documents must not error.
	results, err := p.Search(ctx, "test", []float32{1, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestChromemSearchEmptyCollection(t *testing.T) {
	p := newTestProvider(t)

	results, err := p.Search(context.Background(), "empty", []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestChromemSearchWithFilter(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	require.NoError(t, p.Upsert(ctx, "test", "a", []float32{1, 0}, map[string]any{"content": "alpha", "kind": "semantic"}))
	require.NoError(t, p.Upsert(ctx, "test", "b", []float32{0.9, 0.1}, map[string]any{"content": "beta", "kind": "episodic"}))

	results, err := p.SearchWithFilter(ctx, "test", []float32{1, 0}, 5, map[string]any{"kind": "episodic"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b", results[0].ID)
}

func TestChromemDelete(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	require.NoError(t, p.Upsert(ctx, "test", "gone", []float32{1, 0}, map[string]any{"content": "x"}))
	require.NoError(t, p.Delete(ctx, "test", "gone"))

	results, err := p.Search(ctx, "test", []float32{1, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestChromemDeleteByFilter(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	require.NoError(t, p.Upsert(ctx, "test", "a", []float32{1, 0}, map[string]any{"content": "a", "user": "u1"}))
	require.NoError(t, p.Upsert(ctx, "test", "b", []float32{0, 1}, map[string]any{"content": "b", "user": "u2"}))

	require.NoError(t, p.DeleteByFilter(ctx, "test", map[string]any{"user": "u1"}))

	results, err := p.Search(ctx, "test", []float32{1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b", results[0].ID)
}

func TestNilProvider(t *testing.T) {
	var p Provider = NilProvider{}
	ctx := context.Background()

	assert.NoError(t, p.Upsert(ctx, "c", "id", []float32{1}, nil))

	results, err := p.Search(ctx, "c", []float32{1}, 5)
	assert.NoError(t, err)
	assert.Nil(t, results)

	assert.Equal(t, "nil", p.Name())
	assert.NoError(t, p.Close())
}
