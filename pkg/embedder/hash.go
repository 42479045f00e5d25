package embedder

import (
	"context"
	"crypto/md5"
	"encoding/hex"
)

// Hash is a deterministic, offline embedder. It maps text to the MD5
// digest's hex nibble pairs normalized into [0, 1], right-padded with
// zeros to the configured dimension.
//
// Vectors carry no semantic signal; they only give stable, repeatable
// positions so retrieval and novelty checks behave deterministically
// without a model.
type Hash struct {
	dimension int
}

// NewHash creates a hash embedder with the given dimension.
func NewHash(dimension int) *Hash {
	if dimension <= 0 {
		dimension = 768
	}
	return &Hash{dimension: dimension}
}

// Embed returns the deterministic embedding for text.
func (h *Hash) Embed(ctx context.Context, text string) ([]float32, error) {
	sum := md5.Sum([]byte(text))
	digest := hex.EncodeToString(sum[:])

	embedding := make([]float32, 0, h.dimension)
	for i := 0; i+2 <= len(digest) && len(embedding) < h.dimension; i += 2 {
		val := float32(hexByte(digest[i], digest[i+1])) / 255.0
		embedding = append(embedding, val)
	}

	for len(embedding) < h.dimension {
		embedding = append(embedding, 0)
	}
	return embedding, nil
}

// EmbedBatch embeds each text independently.
func (h *Hash) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := h.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = vec
	}
	return out, nil
}

// Dimension returns the embedding vector dimension.
func (h *Hash) Dimension() int {
	return h.dimension
}

// Model returns the provider identifier.
func (h *Hash) Model() string {
	return "hash-md5"
}

// Close is a no-op.
func (h *Hash) Close() error {
	return nil
}

func hexByte(hi, lo byte) byte {
	return hexNibble(hi)<<4 | hexNibble(lo)
}

func hexNibble(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	}
	return 0
}

var _ Embedder = (*Hash)(nil)
