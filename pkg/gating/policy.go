package gating

import (
	"fmt"
	"sync"
	"time"

	"github.com/cortexkit/cortex/pkg/config"
	"github.com/cortexkit/cortex/pkg/neuromod"
	"github.com/cortexkit/cortex/pkg/reasoner"
	"github.com/cortexkit/cortex/pkg/workspace"
)

// Context carries the state a policy evaluates a candidate against. The
// engine fills ResourceBudget and SpeculativeRatio from its tracker; the
// orchestrator supplies the neuromodulator snapshot and query intents.
type Context struct {
	Neuromod         neuromod.State
	QueryIntent      []string
	ResourceBudget   float64
	SpeculativeRatio float64
}

// Policy decides whether a candidate passes the gate. Candidates are
// *workspace.BroadcastItem or *reasoner.AgentOutput; anything else is
// rejected. The returned confidence is the fully adjusted value and the
// reason explains the verdict.
type Policy interface {
	ShouldGate(candidate any, ctx Context) (bool, float64, string)
}

// DeterministicPolicy applies fixed thresholds modulated by the
// neuromodulator state.
type DeterministicPolicy struct {
	minConfidence       float64
	maxSpeculativeRatio float64
	priorityBoost       float64
}

// NewDeterministicPolicy builds a policy from cfg; nil uses defaults.
func NewDeterministicPolicy(cfg *config.GatingConfig) *DeterministicPolicy {
	if cfg == nil {
		cfg = &config.GatingConfig{}
	}
	cfg.SetDefaults()
	return &DeterministicPolicy{
		minConfidence:       cfg.MinConfidence,
		maxSpeculativeRatio: cfg.MaxSpeculativeRatio,
		priorityBoost:       cfg.PriorityBoost,
	}
}

// ShouldGate applies the deterministic rules with the static threshold.
func (p *DeterministicPolicy) ShouldGate(candidate any, ctx Context) (bool, float64, string) {
	return p.evaluate(candidate, ctx, p.minConfidence)
}

// evaluate runs the rule chain against the given admission threshold.
func (p *DeterministicPolicy) evaluate(candidate any, ctx Context, threshold float64) (bool, float64, string) {
	var (
		confidence   float64
		speculative  bool
		contributors []reasoner.AgentType
	)
	switch c := candidate.(type) {
	case *workspace.BroadcastItem:
		confidence = c.Confidence
		speculative = c.Speculative
		contributors = c.Contributors
	case *reasoner.AgentOutput:
		confidence = c.Confidence
		contributors = []reasoner.AgentType{c.Agent}
	default:
		return false, 0, "Unknown candidate type"
	}

	adjusted := applyNeuromodAdjustments(confidence, ctx.Neuromod, contributors)

	if adjusted < threshold {
		return false, adjusted, fmt.Sprintf("Below confidence threshold (%.2f < %.2f)", adjusted, threshold)
	}
	if speculative && ctx.SpeculativeRatio >= p.maxSpeculativeRatio {
		return false, adjusted, fmt.Sprintf("Speculative ratio limit exceeded (%.2f >= %.2f)", ctx.SpeculativeRatio, p.maxSpeculativeRatio)
	}
	if ctx.ResourceBudget < 0.1 && adjusted < 0.7 {
		return false, adjusted, "Low resource budget, only high-confidence items allowed"
	}

	boost := p.priorityBoostFor(contributors, ctx.QueryIntent)
	final := adjusted * boost

	gated := final >= threshold
	reason := fmt.Sprintf("Confidence: %.2f, Speculative: %t, Priority boost: %.2f", final, speculative, boost)
	return gated, final, reason
}

// applyNeuromodAdjustments scales confidence by the current modulator
// levels: attention sharpens selectivity for everyone, exploration favors
// creative and strategic contributors, and positive reward favors
// recently successful content.
func applyNeuromodAdjustments(confidence float64, state neuromod.State, contributors []reasoner.AgentType) float64 {
	adjusted := confidence

	attentionFactor := 1.0 + (state.AttentionGain-1.0)*0.3
	adjusted *= attentionFactor

	if hasAgent(contributors, reasoner.Creative) || hasAgent(contributors, reasoner.Strategic) {
		adjusted *= 1.0 + state.ExploreNoise*0.2
	}
	if state.RewardSignal > 0 {
		adjusted *= 1.0 + state.RewardSignal*0.1
	}
	return min(adjusted, 1.0)
}

// priorityBoostFor multiplies the boost once per intent↔contributor match.
func (p *DeterministicPolicy) priorityBoostFor(contributors []reasoner.AgentType, intents []string) float64 {
	boost := 1.0
	for _, intent := range intents {
		var wanted reasoner.AgentType
		switch intent {
		case "logical":
			wanted = reasoner.Logical
		case "creative":
			wanted = reasoner.Creative
		case "factual":
			wanted = reasoner.Verifier
		case "personal":
			wanted = reasoner.Emotional
		default:
			continue
		}
		if hasAgent(contributors, wanted) {
			boost *= p.priorityBoost
		}
	}
	return boost
}

func hasAgent(contributors []reasoner.AgentType, agent reasoner.AgentType) bool {
	for _, a := range contributors {
		if a == agent {
			return true
		}
	}
	return false
}

// AdaptivePolicy drifts its admission threshold with the recent outcome
// rate: a high success rate loosens the gate, a low one tightens it.
type AdaptivePolicy struct {
	DeterministicPolicy

	mu        sync.Mutex
	threshold float64
	successes []time.Time
	failures  []time.Time
}

// Outcome history windows.
const (
	successRateWindow = time.Hour
	feedbackRetention = 24 * time.Hour
)

// NewAdaptivePolicy builds an adaptive policy from cfg; nil uses defaults.
func NewAdaptivePolicy(cfg *config.GatingConfig) *AdaptivePolicy {
	base := NewDeterministicPolicy(cfg)
	return &AdaptivePolicy{
		DeterministicPolicy: *base,
		threshold:           base.minConfidence,
	}
}

// ShouldGate evaluates against the drifted threshold, rescales the
// confidence by the recent success rate, and accepts only when the
// rescaled value still clears the threshold. The threshold drifts for
// the next decision afterwards.
func (p *AdaptivePolicy) ShouldGate(candidate any, ctx Context) (bool, float64, string) {
	p.mu.Lock()
	rate := p.recentSuccessRateLocked()
	threshold := p.threshold
	switch {
	case rate > 0.8:
		p.threshold *= 0.99
	case rate < 0.5:
		p.threshold *= 1.01
	}
	p.threshold = max(0.1, min(0.9, p.threshold))
	p.mu.Unlock()

	gated, confidence, reason := p.evaluate(candidate, ctx, threshold)

	factor := 1.0
	switch {
	case rate > 0.8:
		factor = 0.95
	case rate < 0.5:
		factor = 1.05
	}
	adaptive := confidence * factor
	if gated {
		gated = adaptive >= threshold
	}
	return gated, adaptive, fmt.Sprintf("%s (adaptive: %.2f)", reason, adaptive)
}

// RecordFeedback stores one outcome for threshold adaptation. History
// older than a day is discarded.
func (p *AdaptivePolicy) RecordFeedback(itemID string, success bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := time.Now()
	if success {
		p.successes = append(p.successes, now)
	} else {
		p.failures = append(p.failures, now)
	}
	cutoff := now.Add(-feedbackRetention)
	p.successes = pruneBefore(p.successes, cutoff)
	p.failures = pruneBefore(p.failures, cutoff)
}

// Threshold returns the current drifted admission threshold.
func (p *AdaptivePolicy) Threshold() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.threshold
}

// recentSuccessRateLocked computes the outcome rate over the last hour.
// No recorded outcomes yields the neutral 0.5.
func (p *AdaptivePolicy) recentSuccessRateLocked() float64 {
	if len(p.successes) == 0 && len(p.failures) == 0 {
		return 0.5
	}
	cutoff := time.Now().Add(-successRateWindow)
	succ := countAfter(p.successes, cutoff)
	fail := countAfter(p.failures, cutoff)
	if succ+fail == 0 {
		return 0.5
	}
	return float64(succ) / float64(succ+fail)
}

func pruneBefore(ts []time.Time, cutoff time.Time) []time.Time {
	kept := ts[:0]
	for _, t := range ts {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	return kept
}

func countAfter(ts []time.Time, cutoff time.Time) int {
	n := 0
	for _, t := range ts {
		if t.After(cutoff) {
			n++
		}
	}
	return n
}
