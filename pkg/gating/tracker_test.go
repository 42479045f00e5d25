package gating

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/cortexkit/cortex/pkg/reasoner"
	"github.com/cortexkit/cortex/pkg/workspace"
)

func TestEstimateCost(t *testing.T) {
	item := workspace.NewItem(strings.Repeat("x", 500), nil, 0.5)
	assert.InDelta(t, 2.0, EstimateCost(item), 1e-9, "1 + (1−0.5) + 500/1000")

	out := &reasoner.AgentOutput{
		Confidence:     0.5,
		ReasoningTrace: []string{"a", "b", "c", "d", "e"},
	}
	assert.InDelta(t, 1.5, EstimateCost(out), 1e-9, "0.5 + (1−0.5) + 5/10")

	assert.InDelta(t, 1.0, EstimateCost("something else"), 1e-9)
}

func TestConsumeDebitsBudget(t *testing.T) {
	tr := NewResourceTracker(100, 0.1)
	tr.Consume(workspace.NewItem(strings.Repeat("x", 500), nil, 0.5))

	assert.InDelta(t, 98.0, tr.RemainingBudget(), 0.01)
}

func TestBudgetNeverNegative(t *testing.T) {
	tr := NewResourceTracker(1, 0.1)
	tr.Consume(workspace.NewItem(strings.Repeat("x", 5000), nil, 0.0))

	assert.GreaterOrEqual(t, tr.RemainingBudget(), 0.0)
	assert.InDelta(t, 0.0, tr.RemainingBudget(), 0.01)
}

func TestBudgetRestoresOverTime(t *testing.T) {
	tr := NewResourceTracker(100, 0.1)
	tr.budget = 20
	tr.lastUpdate = time.Now().Add(-5 * time.Minute)

	// 0.1 × 5 min × 100 = 50 restored.
	assert.InDelta(t, 70.0, tr.RemainingBudget(), 0.1)
}

func TestBudgetRestorationCapped(t *testing.T) {
	tr := NewResourceTracker(100, 0.1)
	tr.budget = 95
	tr.lastUpdate = time.Now().Add(-time.Hour)

	assert.InDelta(t, 100.0, tr.RemainingBudget(), 1e-6)
}

func TestSpeculativeRatio(t *testing.T) {
	tr := NewResourceTracker(100, 0.1)
	assert.Zero(t, tr.SpeculativeRatio())

	plain := workspace.NewItem("plain", nil, 0.5)
	spec := workspace.NewItem("speculative", nil, 0.5)
	spec.Speculative = true
	tr.Consume(plain)
	tr.Consume(spec)

	assert.InDelta(t, 0.5, tr.SpeculativeRatio(), 1e-9)
}

func TestSpeculativeRatioIgnoresOldEntries(t *testing.T) {
	tr := NewResourceTracker(100, 0.1)
	spec := workspace.NewItem("speculative", nil, 0.5)
	spec.Speculative = true
	tr.Consume(spec)
	tr.history[0].at = time.Now().Add(-10 * time.Minute)

	assert.Zero(t, tr.SpeculativeRatio(), "entries beyond the window drop out")
}

func TestUsageStats(t *testing.T) {
	tr := NewResourceTracker(100, 0.1)
	tr.Consume(workspace.NewItem(strings.Repeat("x", 500), nil, 0.5))

	usage := tr.Usage()
	assert.InDelta(t, 98.0, usage.CurrentBudget, 0.01)
	assert.InDelta(t, 100.0, usage.MaxBudget, 1e-9)
	assert.InDelta(t, 0.02, usage.UsagePercentage, 0.001)
	assert.Equal(t, 1, usage.RecentConsumption)
}

func TestTrackerDefaults(t *testing.T) {
	tr := NewResourceTracker(0, 0)
	assert.InDelta(t, 100.0, tr.RemainingBudget(), 1e-6)
}
