package reasoner

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cortexkit/cortex/pkg/llm"
	"github.com/cortexkit/cortex/pkg/neuromod"
	"github.com/cortexkit/cortex/pkg/perception"
)

func testBundle(text string) *ContextBundle {
	return &ContextBundle{
		Percept: &perception.Percept{
			ID:       "p1",
			Modality: perception.ModalityText,
			RawText:  text,
		},
		Labels:         []string{"logical"},
		ReasoningDepth: "shallow",
	}
}

func TestNewUnknownType(t *testing.T) {
	_, err := New(AgentType("psychic"), llm.NewMockProvider(nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown agent type")
}

func TestNewKnownTypes(t *testing.T) {
	for _, at := range Types {
		r, err := New(at, llm.NewMockProvider(nil))
		require.NoError(t, err)
		assert.Equal(t, at, r.Type())
	}
}

func TestRunBuildsPromptFromBundle(t *testing.T) {
	mock := llm.NewMockProvider(nil)
	r, err := New(Logical, mock)
	require.NoError(t, err)

	bundle := testBundle("Why does ice float on water?")
	bundle.WorkingMemory = []string{"user asked about density before"}

	out, err := r.Run(context.Background(), bundle, nil)
	require.NoError(t, err)
	assert.Equal(t, Logical, out.Agent)

	reqs := mock.Requests()
	require.Len(t, reqs, 1)
	prompt := reqs[0].Prompt
	assert.Contains(t, prompt, "Logical Analysis Expert")
	assert.Contains(t, prompt, "Why does ice float on water?")
	assert.Contains(t, prompt, "logical consistency")
	assert.Contains(t, prompt, "Reasoning Depth: shallow")
	assert.Contains(t, prompt, "user asked about density before")
	assert.Contains(t, prompt, "No relevant memories found.")
}

func TestRunPropagatesGatewayError(t *testing.T) {
	mock := llm.NewMockProvider(nil)
	mock.Err = assert.AnError
	r, err := New(Creative, mock)
	require.NoError(t, err)

	_, err = r.Run(context.Background(), testBundle("q"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "creative reasoner")
}

func TestExtractTrace(t *testing.T) {
	r, err := New(Logical, llm.NewMockProvider(nil))
	require.NoError(t, err)

	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "numbered steps",
			text: "Intro line\n1. First check the premise\n2. Then weigh evidence\nclosing",
			want: []string{"1. First check the premise", "2. Then weigh evidence"},
		},
		{
			name: "bulleted steps",
			text: "- one consideration\n* another consideration",
			want: []string{"- one consideration", "* another consideration"},
		},
		{
			name: "step keyword",
			text: "The first step is to simplify\nnothing else here",
			want: []string{"The first step is to simplify"},
		},
		{
			name: "sentence fallback",
			text: "Ice is less dense than water. That is why it floats",
			want: []string{"Ice is less dense than water.", "That is why it floats."},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.extractTrace(tt.text))
		})
	}
}

func TestExtractTraceCapped(t *testing.T) {
	r, err := New(Logical, llm.NewMockProvider(nil))
	require.NoError(t, err)

	text := "a. b. c. d. e. f. g. h"
	trace := r.extractTrace(text)
	assert.Len(t, trace, 5)
}

func TestScoreConfidence(t *testing.T) {
	r, err := New(Logical, llm.NewMockProvider(nil))
	require.NoError(t, err)

	text := "maybe this works"
	trace := r.extractTrace(text) // one sentence
	require.Len(t, trace, 1)

	// (0.5 + 16/500 + 1/3 + 0.9 + 1.0) / 5
	got := r.scoreConfidence(text, trace, nil)
	assert.InDelta(t, 0.553066, got, 1e-5)
}

func TestScoreConfidenceModulated(t *testing.T) {
	r, err := New(Logical, llm.NewMockProvider(nil))
	require.NoError(t, err)

	text := "definitely a clearly structured answer"
	base := r.scoreConfidence(text, []string{"s1", "s2", "s3"}, nil)
	halved := r.scoreConfidence(text, []string{"s1", "s2", "s3"}, neuromod.Modulation{"confidence": 0.5})
	assert.InDelta(t, base*0.5, halved, 1e-9)

	boosted := r.scoreConfidence(strings.Repeat("certainly clear. ", 40), []string{"a", "b", "c"}, neuromod.Modulation{"confidence": 2.0})
	assert.LessOrEqual(t, boosted, 1.0)
}

func TestExtractCitations(t *testing.T) {
	text := "As shown in [1] and (Smith 2020), according to the panel report, results hold."
	citations := extractCitations(text)
	require.NotEmpty(t, citations)
	assert.Equal(t, "1", citations[0].Source)
	for _, c := range citations {
		assert.InDelta(t, 0.8, c.Score, 1e-9)
		assert.Equal(t, "text_reference", c.Type)
	}
}

func TestExtractCitationsCapped(t *testing.T) {
	text := "[1] [2] [3] [4] [5] [6] [7]"
	assert.Len(t, extractCitations(text), 5)
}

func TestMatchMemoryHits(t *testing.T) {
	bundle := testBundle("q")
	bundle.Memories = map[string][]MemoryHit{
		"semantic": {
			{ID: "m1", Snippet: "the capital of france is paris"},
			{ID: "m2", Snippet: "quantum entanglement pairs particles"},
		},
	}

	hits := matchMemoryHits("The capital of France is Paris, as every atlas shows.", bundle)
	require.Len(t, hits, 1)
	assert.Equal(t, "m1", hits[0].ID)
	assert.Equal(t, "semantic", hits[0].Kind)
	assert.InDelta(t, 0.5, hits[0].Score, 1e-9) // 5 shared words / 10
}

func TestMatchMemoryHitsTruncatesSnippet(t *testing.T) {
	long := strings.Repeat("shared words appear here ", 10)
	bundle := testBundle("q")
	bundle.Memories = map[string][]MemoryHit{"episodic": {{ID: "m1", Snippet: long}}}

	hits := matchMemoryHits("shared words appear here too", bundle)
	require.Len(t, hits, 1)
	assert.LessOrEqual(t, len(hits[0].Snippet), snippetLimit+3)
	assert.True(t, strings.HasSuffix(hits[0].Snippet, "..."))
}

func TestSanitizeElidesConfidenceTokens(t *testing.T) {
	out := &AgentOutput{TextDraft: "I rate this 0.85 overall, version v0.5 unaffected."}
	Sanitize(out)
	assert.Equal(t, "I rate this [confidence elided] overall, version v0.5 unaffected.", out.TextDraft)
	assert.Equal(t, "balanced assessment.", out.ConfidenceRationale)
}

func TestBuildRationale(t *testing.T) {
	r := buildRationale([]string{"a", "b"}, neuromod.Modulation{"attention_factor": 1.1, "explore_factor": 1.2})
	assert.Equal(t, "2 reasoning steps, heightened attention, some exploration.", r)

	assert.Equal(t, "balanced assessment.", buildRationale(nil, nil))
}

func TestSummarizeMemories(t *testing.T) {
	memories := map[string][]MemoryHit{
		"semantic": {{ID: "a"}, {ID: "b"}},
		"episodic": {{ID: "c"}},
	}
	assert.Equal(t, "Episodic: 1 items; Semantic: 2 items", summarizeMemories(memories))
	assert.Equal(t, "No relevant memories found.", summarizeMemories(nil))
}
