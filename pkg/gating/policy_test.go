package gating

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cortexkit/cortex/pkg/neuromod"
	"github.com/cortexkit/cortex/pkg/reasoner"
	"github.com/cortexkit/cortex/pkg/workspace"
)

func restingState() neuromod.State {
	return neuromod.State{AttentionGain: 1.0, ExploreNoise: 0.2, RewardSignal: 0.0}
}

func restingContext() Context {
	return Context{Neuromod: restingState(), ResourceBudget: 100}
}

func logicalItem(confidence float64) *workspace.BroadcastItem {
	return workspace.NewItem("a candidate draft", []reasoner.AgentType{reasoner.Logical}, confidence)
}

func TestDeterministicGateAdmitsAtRest(t *testing.T) {
	p := NewDeterministicPolicy(nil)
	gated, confidence, reason := p.ShouldGate(logicalItem(0.5), restingContext())

	assert.True(t, gated)
	assert.InDelta(t, 0.5, confidence, 1e-9, "resting modulators leave confidence unchanged")
	assert.Contains(t, reason, "Confidence: 0.50")
	assert.Contains(t, reason, "Priority boost: 1.00")
}

func TestDeterministicGateRejectsBelowThreshold(t *testing.T) {
	p := NewDeterministicPolicy(nil)
	gated, confidence, reason := p.ShouldGate(logicalItem(0.2), restingContext())

	assert.False(t, gated)
	assert.InDelta(t, 0.2, confidence, 1e-9)
	assert.Contains(t, reason, "Below confidence threshold")
}

func TestNeuromodAdjustments(t *testing.T) {
	tests := []struct {
		name         string
		state        neuromod.State
		contributors []reasoner.AgentType
		confidence   float64
		want         float64
	}{
		{
			name:         "high attention sharpens",
			state:        neuromod.State{AttentionGain: 2.0},
			contributors: []reasoner.AgentType{reasoner.Logical},
			confidence:   0.5,
			want:         0.65, // ×(1 + 0.3)
		},
		{
			name:         "low attention dulls",
			state:        neuromod.State{AttentionGain: 0.5},
			contributors: []reasoner.AgentType{reasoner.Logical},
			confidence:   0.5,
			want:         0.425, // ×(1 − 0.15)
		},
		{
			name:         "exploration favors creative",
			state:        neuromod.State{AttentionGain: 1.0, ExploreNoise: 0.5},
			contributors: []reasoner.AgentType{reasoner.Creative},
			confidence:   0.5,
			want:         0.55, // ×(1 + 0.1)
		},
		{
			name:         "exploration favors strategic",
			state:        neuromod.State{AttentionGain: 1.0, ExploreNoise: 0.5},
			contributors: []reasoner.AgentType{reasoner.Strategic},
			confidence:   0.5,
			want:         0.55,
		},
		{
			name:         "exploration ignores logical",
			state:        neuromod.State{AttentionGain: 1.0, ExploreNoise: 0.5},
			contributors: []reasoner.AgentType{reasoner.Logical},
			confidence:   0.5,
			want:         0.5,
		},
		{
			name:         "positive reward boosts",
			state:        neuromod.State{AttentionGain: 1.0, RewardSignal: 1.0},
			contributors: []reasoner.AgentType{reasoner.Logical},
			confidence:   0.5,
			want:         0.55, // ×(1 + 0.1)
		},
		{
			name:         "negative reward is inert",
			state:        neuromod.State{AttentionGain: 1.0, RewardSignal: -1.0},
			contributors: []reasoner.AgentType{reasoner.Logical},
			confidence:   0.5,
			want:         0.5,
		},
		{
			name:         "capped at one",
			state:        neuromod.State{AttentionGain: 2.0},
			contributors: []reasoner.AgentType{reasoner.Logical},
			confidence:   0.9,
			want:         1.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := applyNeuromodAdjustments(tt.confidence, tt.state, tt.contributors)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestSpeculativeRatioLimit(t *testing.T) {
	p := NewDeterministicPolicy(nil)
	item := logicalItem(0.5)
	item.Speculative = true

	ctx := restingContext()
	ctx.SpeculativeRatio = 0.5
	gated, _, reason := p.ShouldGate(item, ctx)
	assert.False(t, gated)
	assert.Contains(t, reason, "Speculative ratio limit exceeded")

	ctx.SpeculativeRatio = 0.4
	gated, _, _ = p.ShouldGate(item, ctx)
	assert.True(t, gated, "below the ratio cap speculative items pass")
}

func TestLowBudgetRequiresHighConfidence(t *testing.T) {
	p := NewDeterministicPolicy(nil)
	ctx := restingContext()
	ctx.ResourceBudget = 0.05

	gated, _, reason := p.ShouldGate(logicalItem(0.5), ctx)
	assert.False(t, gated)
	assert.Contains(t, reason, "Low resource budget")

	gated, _, _ = p.ShouldGate(logicalItem(0.8), ctx)
	assert.True(t, gated, "high confidence clears a drained budget")
}

func TestPriorityBoostOnIntentMatch(t *testing.T) {
	tests := []struct {
		name         string
		intents      []string
		contributors []reasoner.AgentType
		wantBoost    float64
	}{
		{"logical match", []string{"logical"}, []reasoner.AgentType{reasoner.Logical}, 1.2},
		{"creative match", []string{"creative"}, []reasoner.AgentType{reasoner.Creative}, 1.2},
		{"factual boosts verifier", []string{"factual"}, []reasoner.AgentType{reasoner.Verifier}, 1.2},
		{"personal boosts emotional", []string{"personal"}, []reasoner.AgentType{reasoner.Emotional}, 1.2},
		{"no match", []string{"logical"}, []reasoner.AgentType{reasoner.Creative}, 1.0},
		{"unknown intent ignored", []string{"metaphysical"}, []reasoner.AgentType{reasoner.Logical}, 1.0},
		{
			"matches compound",
			[]string{"logical", "factual"},
			[]reasoner.AgentType{reasoner.Logical, reasoner.Verifier},
			1.44,
		},
	}

	p := NewDeterministicPolicy(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.priorityBoostFor(tt.contributors, tt.intents)
			assert.InDelta(t, tt.wantBoost, got, 1e-9)
		})
	}
}

func TestBoostAppliedAfterThresholdCheck(t *testing.T) {
	p := NewDeterministicPolicy(nil)
	ctx := restingContext()
	ctx.QueryIntent = []string{"logical"}

	// 0.25 fails the threshold before any boost could rescue it.
	gated, _, reason := p.ShouldGate(logicalItem(0.25), ctx)
	assert.False(t, gated)
	assert.Contains(t, reason, "Below confidence threshold")

	// 0.5 passes and the boost lifts the final confidence.
	gated, confidence, _ := p.ShouldGate(logicalItem(0.5), ctx)
	assert.True(t, gated)
	assert.InDelta(t, 0.6, confidence, 1e-9)
}

func TestAgentOutputCandidate(t *testing.T) {
	p := NewDeterministicPolicy(nil)
	out := &reasoner.AgentOutput{Agent: reasoner.Creative, Confidence: 0.5}

	state := neuromod.State{AttentionGain: 1.0, ExploreNoise: 0.5}
	gated, confidence, _ := p.ShouldGate(out, Context{Neuromod: state, ResourceBudget: 100})
	assert.True(t, gated)
	assert.InDelta(t, 0.55, confidence, 1e-9, "agent is the sole contributor")
}

func TestUnknownCandidateRejected(t *testing.T) {
	p := NewDeterministicPolicy(nil)
	gated, confidence, reason := p.ShouldGate("a string", restingContext())
	assert.False(t, gated)
	assert.Zero(t, confidence)
	assert.Equal(t, "Unknown candidate type", reason)
}

func TestAdaptiveNeutralWithoutHistory(t *testing.T) {
	p := NewAdaptivePolicy(nil)
	gated, confidence, reason := p.ShouldGate(logicalItem(0.5), restingContext())

	assert.True(t, gated)
	assert.InDelta(t, 0.5, confidence, 1e-9, "neutral rate leaves confidence unscaled")
	assert.Contains(t, reason, "(adaptive: 0.50)")
	assert.InDelta(t, 0.3, p.Threshold(), 1e-9, "no drift at the neutral rate")
}

func TestAdaptiveLoosensOnSuccess(t *testing.T) {
	p := NewAdaptivePolicy(nil)
	for i := 0; i < 5; i++ {
		p.RecordFeedback("item", true)
	}

	gated, confidence, _ := p.ShouldGate(logicalItem(0.5), restingContext())
	assert.True(t, gated)
	assert.InDelta(t, 0.475, confidence, 1e-9, "×0.95 at a high success rate")
	assert.InDelta(t, 0.297, p.Threshold(), 1e-9, "threshold drifts down 1%")
}

func TestAdaptiveTightensOnFailure(t *testing.T) {
	p := NewAdaptivePolicy(nil)
	for i := 0; i < 5; i++ {
		p.RecordFeedback("item", false)
	}

	gated, confidence, _ := p.ShouldGate(logicalItem(0.5), restingContext())
	assert.True(t, gated)
	assert.InDelta(t, 0.525, confidence, 1e-9, "×1.05 at a low success rate")
	assert.InDelta(t, 0.303, p.Threshold(), 1e-9, "threshold drifts up 1%")
}

func TestAdaptiveRescalingCanReject(t *testing.T) {
	p := NewAdaptivePolicy(nil)
	for i := 0; i < 5; i++ {
		p.RecordFeedback("item", true)
	}

	// 0.31 clears the 0.3 threshold, but ×0.95 drops it back below.
	gated, confidence, _ := p.ShouldGate(logicalItem(0.31), restingContext())
	assert.False(t, gated)
	assert.InDelta(t, 0.2945, confidence, 1e-9)
}

func TestAdaptiveThresholdClamped(t *testing.T) {
	p := NewAdaptivePolicy(nil)
	p.threshold = 0.895
	for i := 0; i < 5; i++ {
		p.RecordFeedback("item", false)
	}

	for i := 0; i < 10; i++ {
		p.ShouldGate(logicalItem(0.9), restingContext())
	}
	assert.InDelta(t, 0.9, p.Threshold(), 1e-9, "clamped at the ceiling")

	p.threshold = 0.101
	p.successes, p.failures = nil, nil
	for i := 0; i < 5; i++ {
		p.RecordFeedback("item", true)
	}
	for i := 0; i < 10; i++ {
		p.ShouldGate(logicalItem(0.9), restingContext())
	}
	assert.InDelta(t, 0.1, p.Threshold(), 1e-9, "clamped at the floor")
}

func TestRecordFeedbackPrunesOldHistory(t *testing.T) {
	p := NewAdaptivePolicy(nil)
	p.successes = []time.Time{time.Now().Add(-25 * time.Hour)}
	p.failures = []time.Time{time.Now().Add(-25 * time.Hour)}

	p.RecordFeedback("item", true)

	require.Len(t, p.successes, 1, "stale success dropped, fresh one kept")
	assert.Empty(t, p.failures)
}

func TestRecentSuccessRateIgnoresOldOutcomes(t *testing.T) {
	p := NewAdaptivePolicy(nil)
	// Outcomes beyond the hour window are retained but not counted.
	p.failures = []time.Time{time.Now().Add(-2 * time.Hour)}
	p.successes = []time.Time{time.Now()}

	p.mu.Lock()
	rate := p.recentSuccessRateLocked()
	p.mu.Unlock()
	assert.InDelta(t, 1.0, rate, 1e-9)
}
