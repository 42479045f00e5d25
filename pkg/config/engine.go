package config

import "fmt"

// Mode names the built-in processing modes.
type Mode string

const (
	ModeConcise    Mode = "concise"
	ModeDetailed   Mode = "detailed"
	ModeCreative   Mode = "creative"
	ModeAnalytical Mode = "analytical"
)

// ModeLoopDepth maps each mode to its reasoning loop depth.
var ModeLoopDepth = map[Mode]int{
	ModeConcise:    1,
	ModeDetailed:   3,
	ModeCreative:   2,
	ModeAnalytical: 3,
}

// EngineConfig configures the cognitive cycle orchestrator.
type EngineConfig struct {
	// MaxIterations caps reasoning iterations regardless of mode.
	MaxIterations int `yaml:"max_iterations,omitempty" json:"max_iterations,omitempty" jsonschema:"title=Max Iterations,description=Hard cap on reasoning iterations,default=5"`

	DefaultMode Mode `yaml:"default_mode,omitempty" json:"default_mode,omitempty" jsonschema:"title=Default Mode,description=Processing mode when unspecified,enum=concise,enum=detailed,enum=creative,enum=analytical,default=concise"`

	// EnableReflection turns the self-critique stage on or off.
	EnableReflection *bool `yaml:"enable_reflection,omitempty" json:"enable_reflection,omitempty" jsonschema:"title=Enable Reflection,description=Run self-critique on reasoner outputs,default=true"`

	// CoherenceThreshold is the meta-coherence acceptance bar.
	CoherenceThreshold float64 `yaml:"coherence_threshold,omitempty" json:"coherence_threshold,omitempty" jsonschema:"title=Coherence Threshold,description=Minimum coherence score,default=0.85"`

	// CriticMaxAllowedIssues overrides the critic pass verdict: a
	// critique with at most this many issues passes. Nil keeps the
	// default verdict.
	CriticMaxAllowedIssues *int `yaml:"critic_max_allowed_issues,omitempty" json:"critic_max_allowed_issues,omitempty" jsonschema:"title=Critic Max Allowed Issues,description=Issue count at or below which a critique passes"`

	// MaxConcurrentAgents bounds parallel reasoner dispatch.
	MaxConcurrentAgents int `yaml:"max_concurrent_agents,omitempty" json:"max_concurrent_agents,omitempty" jsonschema:"title=Max Concurrent Agents,description=Parallel reasoner limit,default=4"`

	// MaxAgents caps how many reasoners one cycle may select.
	MaxAgents int `yaml:"max_agents,omitempty" json:"max_agents,omitempty" jsonschema:"title=Max Agents,description=Reasoner selection cap per cycle,default=8"`

	// RequireCoherent refuses to synthesize from an incoherent
	// workspace instead of degrading gracefully.
	RequireCoherent bool `yaml:"require_coherent,omitempty" json:"require_coherent,omitempty" jsonschema:"title=Require Coherent,description=Fail instead of degrading when incoherent"`
}

// ReflectionEnabled reports whether self-critique runs.
func (c *EngineConfig) ReflectionEnabled() bool {
	return c.EnableReflection == nil || *c.EnableReflection
}

// SetDefaults applies default values.
func (c *EngineConfig) SetDefaults() {
	if c.MaxIterations == 0 {
		c.MaxIterations = 5
	}
	if c.DefaultMode == "" {
		c.DefaultMode = ModeConcise
	}
	if c.EnableReflection == nil {
		c.EnableReflection = BoolPtr(true)
	}
	if c.CoherenceThreshold == 0 {
		c.CoherenceThreshold = 0.85
	}
	if c.MaxConcurrentAgents == 0 {
		c.MaxConcurrentAgents = 4
	}
	if c.MaxAgents == 0 {
		c.MaxAgents = 8
	}
}

// Validate checks the engine configuration.
func (c *EngineConfig) Validate() error {
	if c.MaxIterations < 1 {
		return fmt.Errorf("max_iterations must be at least 1, got %d", c.MaxIterations)
	}
	if _, ok := ModeLoopDepth[c.DefaultMode]; !ok {
		return fmt.Errorf("invalid default_mode %q (valid: concise, detailed, creative, analytical)", c.DefaultMode)
	}
	if c.CoherenceThreshold < 0 || c.CoherenceThreshold > 1 {
		return fmt.Errorf("coherence_threshold must be in [0, 1], got %f", c.CoherenceThreshold)
	}
	if c.CriticMaxAllowedIssues != nil && *c.CriticMaxAllowedIssues < 0 {
		return fmt.Errorf("critic_max_allowed_issues must be non-negative, got %d", *c.CriticMaxAllowedIssues)
	}
	if c.MaxConcurrentAgents < 1 {
		return fmt.Errorf("max_concurrent_agents must be at least 1, got %d", c.MaxConcurrentAgents)
	}
	if c.MaxAgents < 1 {
		return fmt.Errorf("max_agents must be at least 1, got %d", c.MaxAgents)
	}
	return nil
}
