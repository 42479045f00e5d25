// Package gating decides which candidate content reaches the global
// workspace, playing the selective-admission role between reasoning and
// broadcast.
//
// Admission runs in two stages. A hard quality gate first rejects any
// broadcast candidate that carries neither a passing critique nor a
// passing verifier report; blocked candidates land in a bounded
// quarantine with their reasons. Survivors then face a policy gate whose
// thresholds are modulated by the neuromodulator state, the query
// intents, a restoring resource budget, and (optionally) the recent
// outcome rate.
package gating

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cortexkit/cortex/pkg/config"
	"github.com/cortexkit/cortex/pkg/workspace"
)

const (
	decisionHistoryLimit = 1000
	decisionRateWindow   = 5 * time.Minute
)

// Decision records one gating evaluation.
type Decision struct {
	ItemType   string    `json:"item_type"`
	Gated      bool      `json:"gated"`
	Confidence float64   `json:"confidence"`
	Reason     string    `json:"reason"`
	Cost       float64   `json:"cost"`
	Timestamp  time.Time `json:"timestamp"`
}

// QuarantinedItem is a candidate blocked by the quality gate.
type QuarantinedItem struct {
	Item   *workspace.BroadcastItem `json:"item"`
	Reason string                   `json:"reason"`
	At     time.Time                `json:"at"`
}

// Stats summarizes gating activity.
type Stats struct {
	TotalDecisions   int        `json:"total_decisions"`
	GatingRate       float64    `json:"gating_rate"`
	AvgConfidence    float64    `json:"avg_confidence"`
	RecentPerMinute  float64    `json:"recent_per_minute"`
	QuarantineLength int        `json:"quarantine_length"`
	ResourceUsage    UsageStats `json:"resource_usage"`
}

// feedbackRecorder is implemented by policies that learn from outcomes.
type feedbackRecorder interface {
	RecordFeedback(itemID string, success bool)
}

// Engine coordinates the quality gate, the policy gate, the resource
// tracker, and the quarantine. All methods are safe for concurrent use.
type Engine struct {
	mu            sync.Mutex
	policy        Policy
	tracker       *ResourceTracker
	history       []Decision
	quarantine    []QuarantinedItem
	quarantineCap int
}

// Option adjusts engine construction.
type Option func(*Engine)

// WithPolicy overrides the config-selected policy.
func WithPolicy(p Policy) Option {
	return func(e *Engine) { e.policy = p }
}

// NewEngine builds an engine from cfg; nil uses defaults. cfg.Adaptive
// selects the learning policy, otherwise the deterministic one.
func NewEngine(cfg *config.GatingConfig, opts ...Option) *Engine {
	if cfg == nil {
		cfg = &config.GatingConfig{}
	}
	cfg.SetDefaults()

	var policy Policy
	if cfg.Adaptive {
		policy = NewAdaptivePolicy(cfg)
	} else {
		policy = NewDeterministicPolicy(cfg)
	}
	e := &Engine{
		policy:        policy,
		tracker:       NewResourceTracker(cfg.MaxBudget, cfg.BudgetRestoreRate),
		quarantineCap: cfg.QuarantineCap,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// EvaluateCandidates gates a batch of broadcast candidates and returns
// the admitted ones in order. Candidates failing the quality gate are
// quarantined and never reach the policy gate.
func (e *Engine) EvaluateCandidates(candidates []*workspace.BroadcastItem, ctx Context) []*workspace.BroadcastItem {
	ctx.ResourceBudget = e.tracker.RemainingBudget()
	ctx.SpeculativeRatio = e.tracker.SpeculativeRatio()

	var admitted []*workspace.BroadcastItem
	for _, candidate := range candidates {
		if reason, ok := qualityGate(candidate); !ok {
			e.quarantineItem(candidate, reason)
			e.record(candidate, false, 0, reason)
			slog.Debug("Candidate quarantined", "item", candidate.ID, "reason", reason)
			continue
		}

		gated, confidence, reason := e.policy.ShouldGate(candidate, ctx)
		e.record(candidate, gated, confidence, reason)
		if gated {
			admitted = append(admitted, candidate)
			e.tracker.Consume(candidate)
		}
	}
	return admitted
}

// EvaluateSingle gates one candidate of any supported type, bypassing
// the quality gate. Used for pre-screening agent outputs.
func (e *Engine) EvaluateSingle(item any, ctx Context) (bool, float64, string) {
	ctx.ResourceBudget = e.tracker.RemainingBudget()
	ctx.SpeculativeRatio = e.tracker.SpeculativeRatio()

	gated, confidence, reason := e.policy.ShouldGate(item, ctx)
	e.record(item, gated, confidence, reason)
	if gated {
		e.tracker.Consume(item)
	}
	return gated, confidence, reason
}

// RecordFeedback forwards an outcome to the policy when it learns.
func (e *Engine) RecordFeedback(itemID string, success bool) {
	if rec, ok := e.policy.(feedbackRecorder); ok {
		rec.RecordFeedback(itemID, success)
	}
}

// Quarantine returns a copy of the blocked candidates.
func (e *Engine) Quarantine() []QuarantinedItem {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]QuarantinedItem, len(e.quarantine))
	copy(out, e.quarantine)
	return out
}

// ClearQuarantine empties the quarantine at a cycle boundary.
func (e *Engine) ClearQuarantine() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.quarantine = nil
}

// Tracker exposes the resource tracker.
func (e *Engine) Tracker() *ResourceTracker { return e.tracker }

// Stats reports gating activity and the budget position.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	history := make([]Decision, len(e.history))
	copy(history, e.history)
	quarantined := len(e.quarantine)
	e.mu.Unlock()

	stats := Stats{
		TotalDecisions:   len(history),
		QuarantineLength: quarantined,
		ResourceUsage:    e.tracker.Usage(),
	}
	if len(history) == 0 {
		return stats
	}
	gated := 0
	cutoff := time.Now().Add(-decisionRateWindow)
	recent := 0
	for _, d := range history {
		if d.Gated {
			gated++
		}
		stats.AvgConfidence += d.Confidence
		if !d.Timestamp.Before(cutoff) {
			recent++
		}
	}
	stats.GatingRate = float64(gated) / float64(len(history))
	stats.AvgConfidence /= float64(len(history))
	stats.RecentPerMinute = float64(recent) / decisionRateWindow.Minutes()
	return stats
}

// qualityGate requires a passing critique or verifier report in the
// candidate metadata. Returns the blocking reason when it fails.
func qualityGate(item *workspace.BroadcastItem) (string, bool) {
	if metaPassed(item.Metadata["agent_critique"]) || metaPassed(item.Metadata["agentCritique"]) {
		return "", true
	}
	if metaPassed(item.Metadata["verifier"]) {
		return "", true
	}
	return "Blocked by quality gate: no critic or verifier pass", false
}

// metaPassed reads a {"passed": true} marker from a metadata value.
func metaPassed(v any) bool {
	m, ok := v.(map[string]any)
	if !ok {
		return false
	}
	passed, ok := m["passed"].(bool)
	return ok && passed
}

func (e *Engine) quarantineItem(item *workspace.BroadcastItem, reason string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.quarantine = append(e.quarantine, QuarantinedItem{Item: item, Reason: reason, At: time.Now()})
	if len(e.quarantine) > e.quarantineCap {
		e.quarantine = e.quarantine[len(e.quarantine)-e.quarantineCap:]
	}
}

func (e *Engine) record(item any, gated bool, confidence float64, reason string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.history = append(e.history, Decision{
		ItemType:   fmt.Sprintf("%T", item),
		Gated:      gated,
		Confidence: confidence,
		Reason:     reason,
		Cost:       EstimateCost(item),
		Timestamp:  time.Now(),
	})
	if len(e.history) > decisionHistoryLimit {
		e.history = e.history[len(e.history)-decisionHistoryLimit:]
	}
}
