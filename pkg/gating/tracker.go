package gating

import (
	"sync"
	"time"

	"github.com/cortexkit/cortex/pkg/reasoner"
	"github.com/cortexkit/cortex/pkg/workspace"
)

const (
	consumptionHistoryLimit = 1000
	consumptionWindow       = 5 * time.Minute
)

// consumption is one debit against the budget.
type consumption struct {
	at          time.Time
	cost        float64
	speculative bool
}

// UsageStats summarizes the budget position.
type UsageStats struct {
	CurrentBudget     float64 `json:"current_budget"`
	MaxBudget         float64 `json:"max_budget"`
	UsagePercentage   float64 `json:"usage_percentage"`
	RecentConsumption int     `json:"recent_consumption"`
}

// ResourceTracker meters admission cost against a budget that restores
// toward its ceiling over time. All methods are safe for concurrent use.
type ResourceTracker struct {
	mu          sync.Mutex
	maxBudget   float64
	budget      float64
	restoreRate float64 // fraction of max restored per minute
	lastUpdate  time.Time
	history     []consumption
}

// NewResourceTracker builds a tracker starting at full budget.
// Non-positive arguments fall back to defaults.
func NewResourceTracker(maxBudget, restoreRate float64) *ResourceTracker {
	if maxBudget <= 0 {
		maxBudget = 100
	}
	if restoreRate <= 0 {
		restoreRate = 0.1
	}
	return &ResourceTracker{
		maxBudget:   maxBudget,
		budget:      maxBudget,
		restoreRate: restoreRate,
		lastUpdate:  time.Now(),
	}
}

// Consume debits the estimated cost of the item. The budget never goes
// negative.
func (t *ResourceTracker) Consume(item any) {
	cost := EstimateCost(item)
	speculative := false
	if b, ok := item.(*workspace.BroadcastItem); ok {
		speculative = b.Speculative
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.restoreLocked()
	t.budget = max(0, t.budget-cost)
	t.history = append(t.history, consumption{at: time.Now(), cost: cost, speculative: speculative})
	if len(t.history) > consumptionHistoryLimit {
		t.history = t.history[len(t.history)-consumptionHistoryLimit:]
	}
}

// EstimateCost prices a candidate: low confidence and long content cost
// more. Unknown types cost one unit.
func EstimateCost(item any) float64 {
	switch c := item.(type) {
	case *workspace.BroadcastItem:
		return 1.0 + (1.0 - c.Confidence) + float64(len(c.Text))/1000.0
	case *reasoner.AgentOutput:
		return 0.5 + (1.0 - c.Confidence) + float64(len(c.ReasoningTrace))/10.0
	default:
		return 1.0
	}
}

// RemainingBudget restores elapsed budget and returns the balance.
func (t *ResourceTracker) RemainingBudget() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.restoreLocked()
	return t.budget
}

// SpeculativeRatio reports the fraction of recent admissions that were
// speculative.
func (t *ResourceTracker) SpeculativeRatio() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	cutoff := time.Now().Add(-consumptionWindow)
	total, speculative := 0, 0
	for _, c := range t.history {
		if c.at.Before(cutoff) {
			continue
		}
		total++
		if c.speculative {
			speculative++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(speculative) / float64(total)
}

// Usage reports the budget position after restoration.
func (t *ResourceTracker) Usage() UsageStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.restoreLocked()
	cutoff := time.Now().Add(-consumptionWindow)
	recent := 0
	for _, c := range t.history {
		if !c.at.Before(cutoff) {
			recent++
		}
	}
	return UsageStats{
		CurrentBudget:     t.budget,
		MaxBudget:         t.maxBudget,
		UsagePercentage:   (t.maxBudget - t.budget) / t.maxBudget,
		RecentConsumption: recent,
	}
}

// restoreLocked credits the budget for elapsed time. Caller must hold
// the lock.
func (t *ResourceTracker) restoreLocked() {
	now := time.Now()
	minutes := now.Sub(t.lastUpdate).Minutes()
	if minutes <= 0 {
		return
	}
	t.budget = min(t.maxBudget, t.budget+t.restoreRate*minutes*t.maxBudget)
	t.lastUpdate = now
}
