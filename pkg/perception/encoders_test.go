package perception

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustPercept(t *testing.T, text string) *Percept {
	t.Helper()
	p, err := NewAdapter(nil).Process(context.Background(), text, Metadata{})
	require.NoError(t, err)
	return p
}

func TestTextEncoder(t *testing.T) {
	p := mustPercept(t, "I definitely love this research study. What a great experiment?")

	f := EncodePercept(p)

	require.NotNil(t, f.Text)
	assert.Nil(t, f.Code)

	assert.Greater(t, f.Text.TopicScores["science"], 0.0)
	assert.True(t, f.Text.Syntactic.IsQuestion)
	assert.Greater(t, f.Text.Syntactic.QuestionWordCount, 0)
	assert.Equal(t, "positive", f.Text.Contextual.EmotionalTone)
	assert.Greater(t, f.Text.Contextual.ConfidenceScore, 0)
	assert.Greater(t, f.Text.Linguistic.TotalWords, 5)
	assert.InDelta(t, 1.0, f.Text.Abstractness+f.Text.Concreteness, 1e-9)
}

func TestTextEncoderNegativeTone(t *testing.T) {
	p := mustPercept(t, "this is terrible and awful, I hate it")

	f := EncodePercept(p)
	require.NotNil(t, f.Text)
	assert.Equal(t, "negative", f.Text.Contextual.EmotionalTone)
}

func TestCodeEncoder(t *testing.T) {
	code := "def add(a, b):\n    # sum two values\n    if a > 0:\n        return a + b\n    return b"
	p := mustPercept(t, code)
	require.Equal(t, ModalityCode, p.Modality)

	f := EncodePercept(p)

	require.NotNil(t, f.Code)
	assert.Nil(t, f.Text)

	assert.Equal(t, "python", f.Code.Language.Detected)
	assert.Greater(t, f.Code.Language.Confidence, 0.0)
	assert.Equal(t, 5, f.Code.Structure.TotalLines)
	assert.Equal(t, 1, f.Code.Structure.CommentLines)
	assert.Greater(t, f.Code.Complexity.ControlFlowCount, 0)
	assert.Greater(t, f.Code.Complexity.FunctionCount, 0)
}

func TestMultimodalEncoder(t *testing.T) {
	p := mustPercept(t, "Here is how the parser works in detail, with an example you can run: `parse(input)`")
	f := EncoderFor(ModalityMultimodal).Encode(p)

	assert.Equal(t, ModalityMultimodal, f.Modality)
	require.NotNil(t, f.CrossModal)
	assert.True(t, f.CrossModal.HasCode)
	assert.True(t, f.CrossModal.HasText)
	assert.True(t, f.CrossModal.IsMixedContent)
	assert.GreaterOrEqual(t, f.CrossModal.ContentBalance, 0.0)
	assert.LessOrEqual(t, f.CrossModal.ContentBalance, 1.0)
}

func TestEncoderForDefaultsToText(t *testing.T) {
	assert.IsType(t, textEncoder{}, EncoderFor(ModalityImage))
	assert.IsType(t, textEncoder{}, EncoderFor(ModalityAudio))
	assert.IsType(t, codeEncoder{}, EncoderFor(ModalityCode))
}
