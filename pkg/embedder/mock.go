package embedder

import (
	"context"
	"sync"
)

// Mock is a test embedder that records calls and returns canned or
// hash-derived vectors.
type Mock struct {
	mu        sync.Mutex
	dimension int
	fallback  *Hash

	// Fixed, when set, is returned for every Embed call.
	Fixed []float32

	// Err, when set, is returned from every call.
	Err error

	// Calls records each embedded text in order.
	Calls []string
}

// NewMock creates a mock embedder with the given dimension.
func NewMock(dimension int) *Mock {
	if dimension <= 0 {
		dimension = 768
	}
	return &Mock{
		dimension: dimension,
		fallback:  NewHash(dimension),
	}
}

// Embed records the call and returns the fixed or hash-derived vector.
func (m *Mock) Embed(ctx context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, text)
	fixed := m.Fixed
	errv := m.Err
	m.mu.Unlock()

	if errv != nil {
		return nil, errv
	}
	if fixed != nil {
		out := make([]float32, len(fixed))
		copy(out, fixed)
		return out, nil
	}
	return m.fallback.Embed(ctx, text)
}

// EmbedBatch embeds each text via Embed.
func (m *Mock) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := m.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// CallCount returns how many Embed calls were made.
func (m *Mock) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// Dimension returns the embedding vector dimension.
func (m *Mock) Dimension() int {
	return m.dimension
}

// Model returns the provider identifier.
func (m *Mock) Model() string {
	return "mock"
}

// Close is a no-op.
func (m *Mock) Close() error {
	return nil
}

var _ Embedder = (*Mock)(nil)
