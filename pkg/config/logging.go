package config

import "fmt"

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `yaml:"level,omitempty" json:"level,omitempty" jsonschema:"title=Level,description=Minimum log level,enum=debug,enum=info,enum=warn,enum=error,default=info"`

	// Format selects the handler (simple, verbose, json).
	Format string `yaml:"format,omitempty" json:"format,omitempty" jsonschema:"title=Format,description=Log output format,enum=simple,enum=verbose,enum=json,default=simple"`

	// File redirects log output to a file when set. Empty logs to stderr.
	File string `yaml:"file,omitempty" json:"file,omitempty" jsonschema:"title=File,description=Log file path (stderr when empty)"`
}

// SetDefaults applies default values.
func (c *LoggingConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "simple"
	}
}

// Validate checks the logging configuration.
func (c *LoggingConfig) Validate() error {
	switch c.Level {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid level %q (valid: debug, info, warn, error)", c.Level)
	}
	switch c.Format {
	case "", "simple", "verbose", "json":
	default:
		return fmt.Errorf("invalid format %q (valid: simple, verbose, json)", c.Format)
	}
	return nil
}
