package config

import "fmt"

// NeuromodConfig configures neuromodulator decay.
type NeuromodConfig struct {
	// DecayRate pulls each level toward its target per hour.
	DecayRate float64 `yaml:"decay_rate,omitempty" json:"decay_rate,omitempty" jsonschema:"title=Decay Rate,description=Hourly drift toward target levels,default=0.001"`
}

// SetDefaults applies default values.
func (c *NeuromodConfig) SetDefaults() {
	if c.DecayRate == 0 {
		c.DecayRate = 0.001
	}
}

// Validate checks the neuromodulator configuration.
func (c *NeuromodConfig) Validate() error {
	if c.DecayRate <= 0 || c.DecayRate >= 1 {
		return fmt.Errorf("decay_rate must be in (0, 1), got %f", c.DecayRate)
	}
	return nil
}
