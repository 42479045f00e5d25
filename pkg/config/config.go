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

// Package config defines the engine configuration: typed sections with
// defaults and validation, environment overrides, config sources
// (file/consul/etcd/zookeeper), and JSON schema generation.
package config

import (
	"fmt"
)

// Config is the root configuration.
type Config struct {
	LLM           LLMConfig           `yaml:"llm,omitempty" json:"llm,omitempty" jsonschema:"title=LLM,description=Language model gateway configuration"`
	Embedder      EmbedderConfig      `yaml:"embedder,omitempty" json:"embedder,omitempty" jsonschema:"title=Embedder,description=Embedding provider configuration"`
	Vector        VectorConfig        `yaml:"vector,omitempty" json:"vector,omitempty" jsonschema:"title=Vector,description=Vector index provider configuration"`
	Memory        MemoryConfig        `yaml:"memory,omitempty" json:"memory,omitempty" jsonschema:"title=Memory,description=Memory store configuration"`
	Engine        EngineConfig        `yaml:"engine,omitempty" json:"engine,omitempty" jsonschema:"title=Engine,description=Pipeline orchestration configuration"`
	Workspace     WorkspaceConfig     `yaml:"workspace,omitempty" json:"workspace,omitempty" jsonschema:"title=Workspace,description=Global workspace and working memory configuration"`
	Gating        GatingConfig        `yaml:"gating,omitempty" json:"gating,omitempty" jsonschema:"title=Gating,description=Gating engine configuration"`
	Neuromod      NeuromodConfig      `yaml:"neuromod,omitempty" json:"neuromod,omitempty" jsonschema:"title=Neuromodulation,description=Neuromodulation controller configuration"`
	Server        ServerConfig        `yaml:"server,omitempty" json:"server,omitempty" jsonschema:"title=Server,description=HTTP server configuration"`
	Observability ObservabilityConfig `yaml:"observability,omitempty" json:"observability,omitempty" jsonschema:"title=Observability,description=Tracing and metrics configuration"`
	Logging       LoggingConfig       `yaml:"logging,omitempty" json:"logging,omitempty" jsonschema:"title=Logging,description=Logging configuration"`
}

// New returns a Config with environment overrides and defaults applied.
func New() *Config {
	cfg := &Config{}
	cfg.ApplyEnv()
	cfg.SetDefaults()
	return cfg
}

// SetDefaults applies defaults to every section. Memory runs before
// Vector so the default vector path can anchor under the memory root.
func (c *Config) SetDefaults() {
	c.LLM.SetDefaults()
	c.Embedder.SetDefaults()
	c.Memory.SetDefaults()
	c.Vector.SetDefaults(c.Memory.Path)
	c.Engine.SetDefaults()
	c.Workspace.SetDefaults()
	c.Gating.SetDefaults()
	c.Neuromod.SetDefaults()
	c.Server.SetDefaults()
	c.Observability.SetDefaults()
	c.Logging.SetDefaults()
}

// Validate checks every section.
func (c *Config) Validate() error {
	sections := []struct {
		name string
		fn   func() error
	}{
		{"llm", c.LLM.Validate},
		{"embedder", c.Embedder.Validate},
		{"vector", c.Vector.Validate},
		{"memory", c.Memory.Validate},
		{"engine", c.Engine.Validate},
		{"workspace", c.Workspace.Validate},
		{"gating", c.Gating.Validate},
		{"neuromod", c.Neuromod.Validate},
		{"server", c.Server.Validate},
		{"observability", c.Observability.Validate},
		{"logging", c.Logging.Validate},
	}
	for _, s := range sections {
		if err := s.fn(); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return nil
}

// Sanitized returns a copy safe for display: secrets are masked.
func (c *Config) Sanitized() *Config {
	out := *c
	out.LLM.APIKey = maskSecret(c.LLM.APIKey)
	out.Embedder.APIKey = maskSecret(c.Embedder.APIKey)
	out.Vector.Qdrant.APIKey = maskSecret(c.Vector.Qdrant.APIKey)
	out.Vector.Pinecone.APIKey = maskSecret(c.Vector.Pinecone.APIKey)
	out.Memory.EncryptionKey = maskSecret(c.Memory.EncryptionKey)
	return &out
}

func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + "****"
}

// BoolPtr returns a pointer to b.
func BoolPtr(b bool) *bool { return &b }

// Float64Ptr returns a pointer to f.
func Float64Ptr(f float64) *float64 { return &f }

// IntPtr returns a pointer to i.
func IntPtr(i int) *int { return &i }
