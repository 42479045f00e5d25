package config

import "fmt"

// GatingConfig configures thalamic gating and resource budgeting.
type GatingConfig struct {
	// MinConfidence is the base admission threshold.
	MinConfidence float64 `yaml:"min_confidence,omitempty" json:"min_confidence,omitempty" jsonschema:"title=Min Confidence,description=Base admission threshold,default=0.3"`

	// MaxSpeculativeRatio rejects outputs whose speculative trace
	// ratio meets or exceeds it.
	MaxSpeculativeRatio float64 `yaml:"max_speculative_ratio,omitempty" json:"max_speculative_ratio,omitempty" jsonschema:"title=Max Speculative Ratio,description=Speculative trace ratio cutoff,default=0.5"`

	// PriorityBoost multiplies adjusted confidence when the output
	// type matches the declared intent.
	PriorityBoost float64 `yaml:"priority_boost,omitempty" json:"priority_boost,omitempty" jsonschema:"title=Priority Boost,description=Intent match multiplier,default=1.2"`

	// MaxBudget is the resource pool ceiling.
	MaxBudget float64 `yaml:"max_budget,omitempty" json:"max_budget,omitempty" jsonschema:"title=Max Budget,description=Resource pool ceiling,default=100"`

	// BudgetRestoreRate restores this fraction of MaxBudget per minute.
	BudgetRestoreRate float64 `yaml:"budget_restore_rate,omitempty" json:"budget_restore_rate,omitempty" jsonschema:"title=Budget Restore Rate,description=Fraction of budget restored per minute,default=0.1"`

	// Adaptive drifts the admission threshold with the recent pass
	// rate.
	Adaptive bool `yaml:"adaptive,omitempty" json:"adaptive,omitempty" jsonschema:"title=Adaptive,description=Drift threshold with pass rate"`

	// QuarantineCap bounds the quarantine buffer.
	QuarantineCap int `yaml:"quarantine_cap,omitempty" json:"quarantine_cap,omitempty" jsonschema:"title=Quarantine Cap,description=Quarantine buffer capacity,default=100"`
}

// SetDefaults applies default values.
func (c *GatingConfig) SetDefaults() {
	if c.MinConfidence == 0 {
		c.MinConfidence = 0.3
	}
	if c.MaxSpeculativeRatio == 0 {
		c.MaxSpeculativeRatio = 0.5
	}
	if c.PriorityBoost == 0 {
		c.PriorityBoost = 1.2
	}
	if c.MaxBudget == 0 {
		c.MaxBudget = 100
	}
	if c.BudgetRestoreRate == 0 {
		c.BudgetRestoreRate = 0.1
	}
	if c.QuarantineCap == 0 {
		c.QuarantineCap = 100
	}
}

// Validate checks the gating configuration.
func (c *GatingConfig) Validate() error {
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return fmt.Errorf("min_confidence must be in [0, 1], got %f", c.MinConfidence)
	}
	if c.MaxSpeculativeRatio < 0 || c.MaxSpeculativeRatio > 1 {
		return fmt.Errorf("max_speculative_ratio must be in [0, 1], got %f", c.MaxSpeculativeRatio)
	}
	if c.PriorityBoost < 1 {
		return fmt.Errorf("priority_boost must be at least 1, got %f", c.PriorityBoost)
	}
	if c.MaxBudget <= 0 {
		return fmt.Errorf("max_budget must be positive, got %f", c.MaxBudget)
	}
	if c.BudgetRestoreRate <= 0 || c.BudgetRestoreRate > 1 {
		return fmt.Errorf("budget_restore_rate must be in (0, 1], got %f", c.BudgetRestoreRate)
	}
	if c.QuarantineCap < 1 {
		return fmt.Errorf("quarantine_cap must be at least 1, got %d", c.QuarantineCap)
	}
	return nil
}
