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

// EmbedderProvider identifies the embedding provider type.
type EmbedderProvider string

const (
	EmbedderProviderOllama EmbedderProvider = "ollama"
	EmbedderProviderGemini EmbedderProvider = "gemini"
	// EmbedderProviderHash is the deterministic content-hash fallback.
	// No network, stable vectors; suitable for tests and offline runs.
	EmbedderProviderHash EmbedderProvider = "hash"
	EmbedderProviderMock EmbedderProvider = "mock"
)

// EmbedderConfig configures the embedding provider.
type EmbedderConfig struct {
	Provider EmbedderProvider `yaml:"provider,omitempty" json:"provider,omitempty" jsonschema:"title=Provider,description=Embedding provider,enum=ollama,enum=gemini,enum=hash,enum=mock,default=hash"`

	Model string `yaml:"model,omitempty" json:"model,omitempty" jsonschema:"title=Model,description=Embedding model identifier"`

	APIKey string `yaml:"api_key,omitempty" json:"api_key,omitempty" jsonschema:"title=API Key,description=API key (use ${ENV_VAR})"`

	Host string `yaml:"host,omitempty" json:"host,omitempty" jsonschema:"title=Host,description=Provider host URL"`

	// Dimension of produced vectors.
	Dimension int `yaml:"dimension,omitempty" json:"dimension,omitempty" jsonschema:"title=Dimension,description=Embedding vector dimension,default=768"`

	// Timeout per call, in seconds.
	Timeout int `yaml:"timeout,omitempty" json:"timeout,omitempty" jsonschema:"title=Timeout,description=Per-call timeout in seconds,default=30"`

	// MaxRetries on transient failures.
	MaxRetries int `yaml:"max_retries,omitempty" json:"max_retries,omitempty" jsonschema:"title=Max Retries,description=Max retries on transient failures,default=3"`
}

// SetDefaults applies default values.
func (c *EmbedderConfig) SetDefaults() {
	if c.Provider == "" {
		c.Provider = EmbedderProviderHash
	}
	if c.Model == "" {
		switch c.Provider {
		case EmbedderProviderOllama:
			c.Model = "nomic-embed-text"
		case EmbedderProviderGemini:
			c.Model = "text-embedding-004"
		}
	}
	if c.Host == "" && c.Provider == EmbedderProviderOllama {
		c.Host = ollamaHostFromEnv()
	}
	if c.APIKey == "" && c.Provider == EmbedderProviderGemini {
		c.APIKey = llmAPIKeyFromEnv(LLMProviderGemini)
	}
	if c.Dimension == 0 {
		c.Dimension = 768
	}
	if c.Timeout == 0 {
		c.Timeout = 30
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
}

// Validate checks the embedder configuration.
func (c *EmbedderConfig) Validate() error {
	switch c.Provider {
	case EmbedderProviderOllama, EmbedderProviderGemini, EmbedderProviderHash, EmbedderProviderMock:
	default:
		return fmt.Errorf("invalid provider %q (valid: ollama, gemini, hash, mock)", c.Provider)
	}
	if c.Provider == EmbedderProviderGemini && c.APIKey == "" {
		return fmt.Errorf("api_key is required for provider %q", c.Provider)
	}
	if c.Dimension <= 0 {
		return fmt.Errorf("dimension must be positive, got %d", c.Dimension)
	}
	return nil
}
