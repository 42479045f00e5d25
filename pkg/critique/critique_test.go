package critique

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cortexkit/cortex/pkg/llm"
	"github.com/cortexkit/cortex/pkg/reasoner"
)

func logicalOutput(text string, confidence float64) *reasoner.AgentOutput {
	return &reasoner.AgentOutput{
		Agent:          reasoner.Logical,
		TextDraft:      text,
		ReasoningTrace: []string{"1. premise", "2. conclusion"},
		Confidence:     confidence,
		CreatedAt:      time.Now(),
	}
}

// groundedDraft satisfies the logical agent's specialized criteria.
const groundedDraft = "The logical structure rests on strong evidence and sound reasoning."

func TestReviewPassesCleanOutput(t *testing.T) {
	mock := llm.NewMockProvider(nil)
	mock.Enqueue(`{"pass": true, "issues": [], "suggested_edits": []}`)
	m := NewManager(mock)

	res := m.Review(context.Background(), logicalOutput(groundedDraft, 0.7))
	assert.True(t, res.Critique.Passed)
	assert.Empty(t, res.Critique.Issues)
	assert.False(t, res.Critique.Escalate)
	assert.Equal(t, groundedDraft, res.Output.TextDraft)
	assert.Equal(t, 1, mock.CallCount())

	reqs := mock.Requests()
	assert.True(t, reqs[0].ForceJSON)
}

func TestReviewRewritesFailingOutput(t *testing.T) {
	mock := llm.NewMockProvider(nil)
	mock.Enqueue(
		`{"pass": false, "issues": ["contradiction in claim"], "suggested_edits": ["remove the second claim"]}`,
		"A cleaner logical argument built on evidence and sound reasoning.",
		`{"pass": true, "issues": [], "suggested_edits": []}`,
	)
	m := NewManager(mock)

	res := m.Review(context.Background(), logicalOutput(groundedDraft, 0.5))
	assert.True(t, res.Critique.Passed)
	assert.False(t, res.Critique.Escalate)
	assert.Equal(t, "A cleaner logical argument built on evidence and sound reasoning.", res.Output.TextDraft)
	assert.InDelta(t, 0.6, res.Output.Confidence, 1e-9)
	assert.Equal(t, 1, res.Output.Iteration)
	assert.Equal(t, 3, mock.CallCount())
}

func TestReviewEscalatesAfterFailedRewrite(t *testing.T) {
	mock := llm.NewMockProvider(nil)
	mock.Enqueue(
		`{"pass": false, "issues": ["factual error"], "suggested_edits": []}`,
		"Still a flawed draft with the same evidence gap but logical reasoning words.",
		`{"pass": false, "issues": ["still wrong"], "suggested_edits": []}`,
	)
	m := NewManager(mock)

	res := m.Review(context.Background(), logicalOutput(groundedDraft, 0.5))
	assert.False(t, res.Critique.Passed)
	assert.True(t, res.Critique.Escalate)
	assert.Contains(t, res.Output.TextDraft, "Still a flawed draft")
}

func TestReviewCriticUnavailablePasses(t *testing.T) {
	mock := llm.NewMockProvider(nil)
	mock.Err = assert.AnError
	m := NewManager(mock)

	out := logicalOutput("anything", 0.4)
	res := m.Review(context.Background(), out)
	assert.True(t, res.Critique.Passed)
	assert.Empty(t, res.Critique.Issues)
	assert.Zero(t, res.Critique.ConfidenceImpact)
	assert.Same(t, out, res.Output)
}

func TestCritiqueFallsBackToLegacySections(t *testing.T) {
	mock := llm.NewMockProvider(nil)
	mock.Enqueue(
		"this critic refuses to emit JSON",
		"ISSUES:\n- Contradiction between premise and conclusion\n\nSUGGESTED_EDITS:\n- Drop the second paragraph",
	)
	m := NewManager(mock)

	crit := m.critique(context.Background(), logicalOutput(groundedDraft, 0.5))
	assert.False(t, crit.Passed)
	assert.Contains(t, crit.Issues, "Contradiction between premise and conclusion")
	assert.Contains(t, crit.SuggestedEdits, "Drop the second paragraph")
	assert.Equal(t, 2, mock.CallCount())
}

func TestParseCritiqueSections(t *testing.T) {
	issues, edits := parseCritiqueSections("preamble\nISSUES:\n- first issue\n- second issue\nSUGGESTED_EDITS:\n- one edit")
	assert.Equal(t, []string{"first issue", "second issue"}, issues)
	assert.Equal(t, []string{"one edit"}, edits)
}

func TestParseCritiqueSectionsHeuristic(t *testing.T) {
	issues, edits := parseCritiqueSections("There is a problem with the premise. The tone is fine.")
	require.Len(t, issues, 1)
	assert.Contains(t, issues[0], "problem with the premise")
	assert.Empty(t, edits)

	issues, _ = parseCritiqueSections("No significant issues found.")
	assert.Empty(t, issues)
}

func TestVerdictMinorIssuesPass(t *testing.T) {
	m := NewManager(llm.NewMockProvider(nil))
	assert.True(t, m.verdict(nil))
	assert.True(t, m.verdict([]string{"minor phrasing nit", "another minor point"}))
	assert.False(t, m.verdict([]string{"minor nit", "a real contradiction"}))
}

func TestVerdictMaxAllowedIssuesOverride(t *testing.T) {
	m := NewManager(llm.NewMockProvider(nil), WithMaxAllowedIssues(2))
	assert.True(t, m.verdict([]string{"wrong claim", "unclear part"}))
	assert.False(t, m.verdict([]string{"wrong", "unclear", "incomplete"}))

	m.SetMaxAllowedIssues(nil)
	assert.False(t, m.verdict([]string{"wrong claim", "unclear part"}))
}

func TestSpecializedIssues(t *testing.T) {
	out := logicalOutput("Blah blah nothing relevant here.", 0.5)
	issues := specializedIssues(out)
	require.Len(t, issues, 4)
	assert.Contains(t, issues, "Missing logical consistency considerations")
	assert.Contains(t, issues, "Missing evidence quality considerations")
	assert.Contains(t, issues, "Missing reasoning validity considerations")
	assert.Contains(t, issues, "Insufficient logical perspective (only 0 relevant terms)")

	assert.Empty(t, specializedIssues(logicalOutput(groundedDraft, 0.5)))
}

func TestConfidenceImpact(t *testing.T) {
	impact := confidenceImpact(
		[]string{"factual error found", "unclear phrasing", "minor nitpick"},
		[]string{"fix the second sentence"},
	)
	assert.InDelta(t, -0.45, impact, 1e-9)

	assert.Zero(t, confidenceImpact(nil, []string{"edit"}))

	clamped := confidenceImpact([]string{"error one", "error two"}, nil)
	assert.InDelta(t, -0.5, clamped, 1e-9)
}

func TestStats(t *testing.T) {
	mock := llm.NewMockProvider(nil)
	mock.Enqueue(
		`{"pass": true, "issues": [], "suggested_edits": []}`,
		`{"pass": false, "issues": ["wrong claim", "unclear part"], "suggested_edits": []}`,
		"a rewrite draft",
		`{"pass": true, "issues": [], "suggested_edits": []}`,
	)
	m := NewManager(mock, WithMaxAllowedIssues(0))

	m.Review(context.Background(), logicalOutput(groundedDraft, 0.7))
	m.Review(context.Background(), logicalOutput(groundedDraft, 0.7))

	stats := m.Stats()
	assert.Equal(t, 2, stats.TotalCritiques)
	assert.InDelta(t, 0.5, stats.PassRate, 1e-9)
	assert.InDelta(t, 1.0, stats.AvgIssues, 1e-9)
	assert.InDelta(t, 0.5, stats.RecentPassRate, 1e-9)
}

func TestStatsEmpty(t *testing.T) {
	m := NewManager(llm.NewMockProvider(nil))
	assert.Equal(t, Stats{}, m.Stats())
}

func TestReviewAll(t *testing.T) {
	mock := llm.NewMockProvider(nil)
	mock.Enqueue(
		`{"pass": true, "issues": [], "suggested_edits": []}`,
		`{"pass": true, "issues": [], "suggested_edits": []}`,
	)
	m := NewManager(mock)

	results := m.ReviewAll(context.Background(), []*reasoner.AgentOutput{
		logicalOutput(groundedDraft, 0.6),
		logicalOutput(groundedDraft, 0.8),
	})
	require.Len(t, results, 2)
	for _, res := range results {
		assert.True(t, res.Critique.Passed)
	}
}
