// Package neuromod maintains the process-wide neuromodulator levels that
// bias reasoning, gating, and learning across the engine.
//
// Three scalars are tracked: attention gain (selectivity), exploration
// noise (willingness to entertain speculative content), and reward signal
// (recent outcome quality). Levels drift back toward their targets over
// time and move in response to feedback events; components read them
// through ModulateAgentBehavior and ModulateGatingThreshold rather than
// touching raw state.
package neuromod

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/cortexkit/cortex/pkg/config"
)

// Feedback event kinds accepted by ProcessFeedback.
const (
	FeedbackSuccess     = "success"
	FeedbackFailure     = "failure"
	FeedbackUncertainty = "uncertainty"
	FeedbackNovelty     = "novelty"
	FeedbackEngagement  = "user_engagement"
)

const (
	defaultLearningRate = 0.01
	historyLimit        = 1000
)

// State is a snapshot of the neuromodulator levels at a point in time.
type State struct {
	AttentionGain float64   `json:"attention_gain"`
	ExploreNoise  float64   `json:"explore_noise"`
	RewardSignal  float64   `json:"reward_signal"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Update records a single level change for later analysis.
type Update struct {
	Modulator string    `json:"modulator"`
	OldValue  float64   `json:"old_value"`
	NewValue  float64   `json:"new_value"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// bounds holds the clamp range and the resting target for one level.
type bounds struct {
	min, max, target float64
}

func (b bounds) clamp(v float64) float64 {
	return max(b.min, min(b.max, v))
}

var (
	attentionBounds = bounds{min: 0.1, max: 2.0, target: 1.0}
	exploreBounds   = bounds{min: 0.0, max: 1.0, target: 0.2}
	rewardBounds    = bounds{min: -1.0, max: 1.0, target: 0.0}
)

// Modulation carries the parameters handed to a reasoner for one cycle.
// Common keys are confidence, temperature, learning_rate, attention_factor,
// explore_factor and reward_factor; agent-specific keys are added per type.
type Modulation map[string]float64

// Controller owns the neuromodulator state. All methods are safe for
// concurrent use; decay is applied lazily on every read and update.
type Controller struct {
	mu           sync.Mutex
	state        State
	decayRate    float64 // drift toward target per hour
	learningRate float64
	callbacks    []func(State)
	history      []Update
}

// NewController returns a controller at resting targets.
func NewController(cfg *config.NeuromodConfig) *Controller {
	if cfg == nil {
		cfg = &config.NeuromodConfig{}
	}
	cfg.SetDefaults()
	return &Controller{
		state: State{
			AttentionGain: attentionBounds.target,
			ExploreNoise:  exploreBounds.target,
			RewardSignal:  rewardBounds.target,
			UpdatedAt:     time.Now(),
		},
		decayRate:    cfg.DecayRate,
		learningRate: defaultLearningRate,
	}
}

// State applies decay and returns a copy of the current levels.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.applyDecay()
	return c.state
}

// OnUpdate registers a callback invoked after every state change. Panics
// inside callbacks are recovered and logged so one subscriber cannot take
// down an update.
func (c *Controller) OnUpdate(fn func(State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callbacks = append(c.callbacks, fn)
}

// UpdateAttentionGain shifts attention gain by delta, clamped to its range.
func (c *Controller) UpdateAttentionGain(delta float64, reason string) {
	c.mu.Lock()
	c.applyDecay()
	c.shiftLocked("attention_gain", delta, reason)
	state, cbs := c.state, c.callbackSnapshot()
	c.mu.Unlock()
	notify(cbs, state)
}

// UpdateExploreNoise shifts exploration noise by delta, clamped to its range.
func (c *Controller) UpdateExploreNoise(delta float64, reason string) {
	c.mu.Lock()
	c.applyDecay()
	c.shiftLocked("explore_noise", delta, reason)
	state, cbs := c.state, c.callbackSnapshot()
	c.mu.Unlock()
	notify(cbs, state)
}

// UpdateRewardSignal shifts the reward signal by delta, clamped to its range.
func (c *Controller) UpdateRewardSignal(delta float64, reason string) {
	c.mu.Lock()
	c.applyDecay()
	c.shiftLocked("reward_signal", delta, reason)
	state, cbs := c.state, c.callbackSnapshot()
	c.mu.Unlock()
	notify(cbs, state)
}

// ProcessFeedback translates an outcome event into level shifts. Unknown
// kinds are logged and ignored. Value is the event magnitude, typically in
// [0, 1].
func (c *Controller) ProcessFeedback(kind string, value float64) {
	c.mu.Lock()
	c.applyDecay()
	switch kind {
	case FeedbackSuccess:
		c.shiftLocked("reward_signal", value*0.1, "success feedback")
		c.shiftLocked("attention_gain", value*0.05, "success feedback")
	case FeedbackFailure:
		c.shiftLocked("reward_signal", -value*0.1, "failure feedback")
		c.shiftLocked("explore_noise", value*0.1, "failure feedback")
	case FeedbackUncertainty:
		c.shiftLocked("explore_noise", value*0.15, "uncertainty feedback")
		c.shiftLocked("attention_gain", value*0.1, "uncertainty feedback")
	case FeedbackNovelty:
		c.shiftLocked("explore_noise", value*0.2, "novelty feedback")
		c.shiftLocked("reward_signal", value*0.05, "novelty feedback")
	case FeedbackEngagement:
		c.shiftLocked("reward_signal", value*0.08, "engagement feedback")
		c.shiftLocked("attention_gain", value*0.06, "engagement feedback")
	default:
		c.mu.Unlock()
		slog.Warn("unknown feedback kind", "kind", kind)
		return
	}
	state, cbs := c.state, c.callbackSnapshot()
	c.mu.Unlock()
	notify(cbs, state)
}

// ModulateAgentBehavior derives the per-cycle parameters for one reasoner
// from the current levels. Attention gain scales confidence and sharpens
// temperature; the reward signal scales the learning rate.
func (c *Controller) ModulateAgentBehavior(agentType string, baseConfidence, baseTemperature float64) Modulation {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.applyDecay()

	gain := c.state.AttentionGain
	noise := c.state.ExploreNoise
	reward := c.state.RewardSignal

	m := Modulation{
		"confidence":       min(baseConfidence*gain, 1.0),
		"temperature":      min(baseTemperature/max(gain, 0.1), 2.0),
		"learning_rate":    c.learningRate * (1.0 + reward*0.5),
		"attention_factor": gain,
		"explore_factor":   1.0 + noise,
		"reward_factor":    1.0 + reward*0.5,
	}

	switch strings.ToLower(agentType) {
	case "creative":
		m["creativity_boost"] = 1.0 + noise*0.5
		m["novelty_threshold"] = 0.5 - noise*0.3
	case "logical":
		m["precision_boost"] = 1.0 + (gain-1.0)*0.3
		m["confidence_threshold"] = 0.7 + (gain-1.0)*0.2
	case "emotional":
		m["empathy_boost"] = 1.0 + reward*0.4
		m["sensitivity"] = 0.5 + reward*0.3
	case "strategic":
		m["planning_horizon"] = 1.0 + noise*0.3
		m["risk_tolerance"] = 0.5 + reward*0.2
	case "verifier":
		m["verification_strictness"] = 1.0 + (gain-1.0)*0.4
		m["evidence_threshold"] = 0.8 + (gain-1.0)*0.1
	}
	return m
}

// ModulateGatingThreshold adjusts a base admission threshold: higher
// attention gain raises it (more selective), positive reward lowers it
// (more permissive). The result stays within [0.1, 0.9].
func (c *Controller) ModulateGatingThreshold(base float64) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.applyDecay()

	attentionFactor := 1.0 + (c.state.AttentionGain-1.0)*0.3
	rewardFactor := 1.0 - c.state.RewardSignal*0.2
	return max(0.1, min(0.9, base*attentionFactor*rewardFactor))
}

// History returns a copy of the recorded level changes, oldest first.
func (c *Controller) History() []Update {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Update, len(c.history))
	copy(out, c.history)
	return out
}

// shiftLocked applies delta to the named level, clamps it and records the
// change. Caller holds the lock.
func (c *Controller) shiftLocked(modulator string, delta float64, reason string) {
	var target *float64
	var b bounds
	switch modulator {
	case "attention_gain":
		target, b = &c.state.AttentionGain, attentionBounds
	case "explore_noise":
		target, b = &c.state.ExploreNoise, exploreBounds
	case "reward_signal":
		target, b = &c.state.RewardSignal, rewardBounds
	default:
		return
	}
	old := *target
	*target = b.clamp(old + delta)
	c.state.UpdatedAt = time.Now()
	c.history = append(c.history, Update{
		Modulator: modulator,
		OldValue:  old,
		NewValue:  *target,
		Reason:    reason,
		Timestamp: c.state.UpdatedAt,
	})
	if len(c.history) > historyLimit {
		c.history = c.history[len(c.history)-historyLimit:]
	}
}

// applyDecay drifts each level toward its target by decayRate per elapsed
// hour. Caller holds the lock.
func (c *Controller) applyDecay() {
	now := time.Now()
	hours := now.Sub(c.state.UpdatedAt).Hours()
	if hours <= 0 {
		return
	}
	amount := c.decayRate * hours
	c.state.AttentionGain = decayToward(c.state.AttentionGain, attentionBounds.target, amount)
	c.state.ExploreNoise = decayToward(c.state.ExploreNoise, exploreBounds.target, amount)
	c.state.RewardSignal = decayToward(c.state.RewardSignal, rewardBounds.target, amount)
	c.state.UpdatedAt = now
}

func decayToward(current, target, amount float64) float64 {
	if current > target {
		return max(target, current-amount)
	}
	return min(target, current+amount)
}

func (c *Controller) callbackSnapshot() []func(State) {
	cbs := make([]func(State), len(c.callbacks))
	copy(cbs, c.callbacks)
	return cbs
}

func notify(cbs []func(State), state State) {
	for _, fn := range cbs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					slog.Error("neuromodulator callback panicked", "panic", r)
				}
			}()
			fn(state)
		}()
	}
}
