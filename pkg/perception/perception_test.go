package perception

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cortexkit/cortex/pkg/embedder"
)

func TestDetectModality(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Modality
	}{
		{"plain question", "What is the capital of France?", ModalityText},
		{"fenced code block", "```\nprint('hi')\n```", ModalityCode},
		{"inline code", "run `go build` first", ModalityCode},
		{"python def", "def handle(x): return x", ModalityCode},
		{"import statement", "import strings and use them", ModalityCode},
		{"image extension", "look at diagram.png please", ModalityImage},
		{"image keyword", "can you describe this picture", ModalityImage},
		{"audio extension", "transcribe talk.mp3", ModalityAudio},
		{"audio keyword", "what does this sound like", ModalityAudio},
		{"code beats image", "```py\nimg = load('photo.png')\n```", ModalityCode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectModality(tt.input))
		})
	}
}

func TestTokenize(t *testing.T) {
	t.Run("text is lowercased", func(t *testing.T) {
		tokens := Tokenize("Hello, World!", ModalityText)
		assert.Equal(t, []string{"hello", ",", "world", "!"}, tokens)
	})

	t.Run("code keeps case", func(t *testing.T) {
		tokens := Tokenize("func Main()", ModalityCode)
		assert.Equal(t, []string{"func", "Main", "(", ")"}, tokens)
	})
}

func TestAdapterProcess(t *testing.T) {
	a := NewAdapter(embedder.NewMock(8))

	p, err := a.Process(context.Background(), "How do neurons fire?", Metadata{
		SessionID: "s1",
		UserID:    "u1",
	})
	require.NoError(t, err)

	assert.NotEmpty(t, p.ID)
	assert.Equal(t, ModalityText, p.Modality)
	assert.Equal(t, "How do neurons fire?", p.RawText)
	assert.NotEmpty(t, p.Tokens)
	assert.Len(t, p.Embedding, 8)
	assert.Equal(t, "s1", p.SessionID)
	assert.Equal(t, "u1", p.UserID)
	assert.NotNil(t, p.PrivacyFlags)
	assert.False(t, p.CreatedAt.IsZero())
}

func TestAdapterProcessEmptyInput(t *testing.T) {
	a := NewAdapter(nil)

	_, err := a.Process(context.Background(), "   ", Metadata{})
	assert.Error(t, err)
}

func TestAdapterEmbedderFallback(t *testing.T) {
	failing := embedder.NewMock(8)
	failing.Err = errors.New("upstream down")

	a := NewAdapter(failing)

	p, err := a.Process(context.Background(), "hello", Metadata{})
	require.NoError(t, err)

	// Hash fallback pads to the default dimension.
	assert.Len(t, p.Embedding, EmbeddingDim)
}

func TestAdapterNilEmbedderUsesHash(t *testing.T) {
	a := NewAdapter(nil)

	p1, err := a.Process(context.Background(), "same text", Metadata{})
	require.NoError(t, err)
	p2, err := a.Process(context.Background(), "same text", Metadata{})
	require.NoError(t, err)

	// Hash embedding is deterministic.
	assert.Equal(t, p1.Embedding, p2.Embedding)
	assert.Len(t, p1.Embedding, EmbeddingDim)

	for _, v := range p1.Embedding {
		assert.GreaterOrEqual(t, v, float32(0))
		assert.LessOrEqual(t, v, float32(1))
	}
}

func TestExtractIntentFeatures(t *testing.T) {
	a := NewAdapter(nil)

	p, err := a.Process(context.Background(),
		"Please help me design an algorithm, this is urgent and important?", Metadata{})
	require.NoError(t, err)

	f := ExtractIntentFeatures(p)

	assert.True(t, f.HasQuestion)
	assert.True(t, f.HasImperative)
	assert.True(t, f.HasTechnicalTerms)
	assert.Equal(t, 2, f.Sentiment.Urgent)
	assert.Greater(t, f.ComplexityScore, 0.0)
	assert.Equal(t, len(p.RawText), f.Length)
	assert.Equal(t, len(p.Tokens), f.TokenCount)
}

func TestComplexityScoreCapped(t *testing.T) {
	long := ""
	for i := 0; i < 60; i++ {
		long += "extraordinarily complicated terminology "
	}
	assert.Equal(t, 1.0, ComplexityScore(long))

	assert.Less(t, ComplexityScore("hi there."), 0.5)
}
