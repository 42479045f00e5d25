package config

import "fmt"

// WorkspaceConfig configures the global workspace and its working
// memory slots.
type WorkspaceConfig struct {
	// MaxItems bounds the broadcast history.
	MaxItems int `yaml:"max_items,omitempty" json:"max_items,omitempty" jsonschema:"title=Max Items,description=Broadcast history capacity,default=1000"`

	// TTLSeconds expires broadcast items.
	TTLSeconds int `yaml:"ttl_seconds,omitempty" json:"ttl_seconds,omitempty" jsonschema:"title=TTL Seconds,description=Broadcast item lifetime,default=3600"`

	// CleanupIntervalSeconds paces the background expiry sweep.
	CleanupIntervalSeconds int `yaml:"cleanup_interval_seconds,omitempty" json:"cleanup_interval_seconds,omitempty" jsonschema:"title=Cleanup Interval Seconds,description=Expiry sweep period,default=300"`

	// WMMaxSlots bounds active representations.
	WMMaxSlots int `yaml:"wm_max_slots,omitempty" json:"wm_max_slots,omitempty" jsonschema:"title=WM Max Slots,description=Active representation slots,default=7"`

	// WMDecayRate is the per-minute activation decay factor.
	WMDecayRate float64 `yaml:"wm_decay_rate,omitempty" json:"wm_decay_rate,omitempty" jsonschema:"title=WM Decay Rate,description=Per-minute activation decay,default=0.1"`
}

// SetDefaults applies default values.
func (c *WorkspaceConfig) SetDefaults() {
	if c.MaxItems == 0 {
		c.MaxItems = 1000
	}
	if c.TTLSeconds == 0 {
		c.TTLSeconds = 3600
	}
	if c.CleanupIntervalSeconds == 0 {
		c.CleanupIntervalSeconds = 300
	}
	if c.WMMaxSlots == 0 {
		c.WMMaxSlots = 7
	}
	if c.WMDecayRate == 0 {
		c.WMDecayRate = 0.1
	}
}

// Validate checks the workspace configuration.
func (c *WorkspaceConfig) Validate() error {
	if c.MaxItems < 1 {
		return fmt.Errorf("max_items must be at least 1, got %d", c.MaxItems)
	}
	if c.TTLSeconds < 1 {
		return fmt.Errorf("ttl_seconds must be at least 1, got %d", c.TTLSeconds)
	}
	if c.CleanupIntervalSeconds < 1 {
		return fmt.Errorf("cleanup_interval_seconds must be at least 1, got %d", c.CleanupIntervalSeconds)
	}
	if c.WMMaxSlots < 1 {
		return fmt.Errorf("wm_max_slots must be at least 1, got %d", c.WMMaxSlots)
	}
	if c.WMDecayRate <= 0 || c.WMDecayRate >= 1 {
		return fmt.Errorf("wm_decay_rate must be in (0, 1), got %f", c.WMDecayRate)
	}
	return nil
}
