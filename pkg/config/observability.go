// Copyright 2025 The CortexKit Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import "fmt"

// ObservabilityConfig configures tracing and metrics.
type ObservabilityConfig struct {
	Tracing TracingConfig `yaml:"tracing,omitempty" json:"tracing,omitempty" jsonschema:"title=Tracing,description=Distributed tracing configuration"`
	Metrics MetricsConfig `yaml:"metrics,omitempty" json:"metrics,omitempty" jsonschema:"title=Metrics,description=Prometheus metrics configuration"`
}

// SetDefaults applies default values.
func (c *ObservabilityConfig) SetDefaults() {
	c.Tracing.SetDefaults()
	c.Metrics.SetDefaults()
}

// Validate checks the observability configuration.
func (c *ObservabilityConfig) Validate() error {
	if err := c.Tracing.Validate(); err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("metrics: %w", err)
	}
	return nil
}

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	// Enabled turns tracing on.
	Enabled bool `yaml:"enabled,omitempty" json:"enabled,omitempty" jsonschema:"title=Enabled,description=Enable distributed tracing,default=false"`

	// Exporter selects the span exporter (otlp, stdout, none).
	Exporter string `yaml:"exporter,omitempty" json:"exporter,omitempty" jsonschema:"title=Exporter,description=Span exporter,enum=otlp,enum=stdout,enum=none,default=otlp"`

	// Endpoint for the OTLP collector.
	Endpoint string `yaml:"endpoint,omitempty" json:"endpoint,omitempty" jsonschema:"title=Endpoint,description=OTLP collector endpoint,default=localhost:4317"`

	// SamplingRate in [0, 1]. 1.0 samples every trace.
	SamplingRate float64 `yaml:"sampling_rate,omitempty" json:"sampling_rate,omitempty" jsonschema:"title=Sampling Rate,description=Trace sampling rate,minimum=0,maximum=1,default=1.0"`

	// ServiceName reported on spans.
	ServiceName string `yaml:"service_name,omitempty" json:"service_name,omitempty" jsonschema:"title=Service Name,description=Service name on spans,default=cortex"`

	// ServiceVersion reported on spans.
	ServiceVersion string `yaml:"service_version,omitempty" json:"service_version,omitempty" jsonschema:"title=Service Version,description=Service version on spans"`

	// Insecure disables TLS for the OTLP connection.
	Insecure *bool `yaml:"insecure,omitempty" json:"insecure,omitempty" jsonschema:"title=Insecure,description=Disable TLS for OTLP export,default=true"`
}

// SetDefaults applies default values.
func (c *TracingConfig) SetDefaults() {
	if c.Exporter == "" {
		c.Exporter = "otlp"
	}
	if c.Endpoint == "" {
		c.Endpoint = "localhost:4317"
	}
	if c.SamplingRate == 0 {
		c.SamplingRate = 1.0
	}
	if c.ServiceName == "" {
		c.ServiceName = "cortex"
	}
	if c.Insecure == nil {
		c.Insecure = BoolPtr(true)
	}
}

// Validate checks the tracing configuration.
func (c *TracingConfig) Validate() error {
	switch c.Exporter {
	case "", "otlp", "stdout", "none":
	default:
		return fmt.Errorf("invalid exporter %q (valid: otlp, stdout, none)", c.Exporter)
	}
	if c.SamplingRate < 0 || c.SamplingRate > 1 {
		return fmt.Errorf("sampling_rate must be in [0, 1], got %v", c.SamplingRate)
	}
	return nil
}

// IsInsecure reports whether the OTLP connection should skip TLS.
func (c *TracingConfig) IsInsecure() bool {
	return c.Insecure == nil || *c.Insecure
}

// MetricsConfig configures the Prometheus metrics endpoint.
type MetricsConfig struct {
	// Enabled turns the /metrics endpoint on.
	Enabled bool `yaml:"enabled,omitempty" json:"enabled,omitempty" jsonschema:"title=Enabled,description=Expose Prometheus metrics,default=false"`

	// Endpoint path for the metrics handler.
	Endpoint string `yaml:"endpoint,omitempty" json:"endpoint,omitempty" jsonschema:"title=Endpoint,description=Metrics handler path,default=/metrics"`

	// Namespace prefixes every metric name.
	Namespace string `yaml:"namespace,omitempty" json:"namespace,omitempty" jsonschema:"title=Namespace,description=Metric name prefix,default=cortex"`
}

// SetDefaults applies default values.
func (c *MetricsConfig) SetDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = "/metrics"
	}
	if c.Namespace == "" {
		c.Namespace = "cortex"
	}
}

// Validate checks the metrics configuration.
func (c *MetricsConfig) Validate() error {
	if c.Endpoint != "" && c.Endpoint[0] != '/' {
		return fmt.Errorf("endpoint must start with '/', got %q", c.Endpoint)
	}
	return nil
}
