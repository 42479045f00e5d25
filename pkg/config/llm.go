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

import (
	"fmt"
	"os"
)

// LLMProvider identifies the LLM provider type.
type LLMProvider string

const (
	LLMProviderGemini LLMProvider = "gemini"
	LLMProviderOllama LLMProvider = "ollama"
	LLMProviderMock   LLMProvider = "mock"
	LLMProviderPlugin LLMProvider = "plugin"
)

// LLMConfig configures the LLM gateway.
type LLMConfig struct {
	// Provider type (gemini, ollama, mock, plugin).
	Provider LLMProvider `yaml:"provider,omitempty" json:"provider,omitempty" jsonschema:"title=Provider,description=LLM provider,enum=gemini,enum=ollama,enum=mock,enum=plugin"`

	// Model name (e.g. "gemini-2.0-flash", "llama3.2").
	Model string `yaml:"model,omitempty" json:"model,omitempty" jsonschema:"title=Model,description=Model identifier"`

	// APIKey for authentication. Supports ${VAR} expansion.
	APIKey string `yaml:"api_key,omitempty" json:"api_key,omitempty" jsonschema:"title=API Key,description=API key (use ${ENV_VAR})"`

	// Host for self-hosted providers (ollama).
	Host string `yaml:"host,omitempty" json:"host,omitempty" jsonschema:"title=Host,description=Provider host URL"`

	// Temperature for generation.
	Temperature *float64 `yaml:"temperature,omitempty" json:"temperature,omitempty" jsonschema:"title=Temperature,description=Sampling temperature,minimum=0,maximum=2,default=0.7"`

	// MaxTokens limits response length.
	MaxTokens int `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty" jsonschema:"title=Max Tokens,description=Maximum tokens to generate,minimum=1,default=2048"`

	// Timeout per call, in seconds.
	Timeout int `yaml:"timeout,omitempty" json:"timeout,omitempty" jsonschema:"title=Timeout,description=Per-call timeout in seconds,default=60"`

	// Retries on transient failures.
	Retries int `yaml:"retries,omitempty" json:"retries,omitempty" jsonschema:"title=Retries,description=Max retries on transient failures,default=5"`

	// PluginPath is the provider plugin binary (provider=plugin).
	PluginPath string `yaml:"plugin_path,omitempty" json:"plugin_path,omitempty" jsonschema:"title=Plugin Path,description=Path to an external provider plugin binary"`
}

// SetDefaults applies default values, auto-detecting the provider from the
// environment when unset.
func (c *LLMConfig) SetDefaults() {
	if c.Provider == "" {
		c.Provider = detectLLMProviderFromEnv()
	}

	if c.Model == "" {
		switch c.Provider {
		case LLMProviderGemini:
			c.Model = "gemini-2.0-flash"
		case LLMProviderOllama:
			c.Model = "llama3.2"
		case LLMProviderMock:
			c.Model = "mock"
		}
	}

	if c.APIKey == "" {
		c.APIKey = llmAPIKeyFromEnv(c.Provider)
	}

	if c.Host == "" && c.Provider == LLMProviderOllama {
		c.Host = ollamaHostFromEnv()
	}

	if c.Temperature == nil {
		c.Temperature = Float64Ptr(0.7)
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 2048
	}
	if c.Timeout == 0 {
		c.Timeout = 60
	}
	if c.Retries == 0 {
		c.Retries = 5
	}
}

// Validate checks the LLM configuration.
func (c *LLMConfig) Validate() error {
	switch c.Provider {
	case LLMProviderGemini, LLMProviderOllama, LLMProviderMock, LLMProviderPlugin:
	default:
		return fmt.Errorf("invalid provider %q (valid: gemini, ollama, mock, plugin)", c.Provider)
	}

	if c.Provider == LLMProviderGemini && c.APIKey == "" {
		return fmt.Errorf("api_key is required for provider %q", c.Provider)
	}
	if c.Provider == LLMProviderPlugin && c.PluginPath == "" {
		return fmt.Errorf("plugin_path is required for provider %q", c.Provider)
	}
	if c.Temperature != nil && (*c.Temperature < 0 || *c.Temperature > 2) {
		return fmt.Errorf("temperature must be in [0, 2], got %v", *c.Temperature)
	}
	if c.Retries < 0 {
		return fmt.Errorf("retries must be >= 0, got %d", c.Retries)
	}
	return nil
}

func detectLLMProviderFromEnv() LLMProvider {
	if p := os.Getenv("LLM_PROVIDER"); p != "" {
		return LLMProvider(p)
	}
	if os.Getenv("LLM_API_KEY") != "" || os.Getenv("GEMINI_API_KEY") != "" || os.Getenv("GOOGLE_API_KEY") != "" {
		return LLMProviderGemini
	}
	if os.Getenv("OLLAMA_HOST") != "" {
		return LLMProviderOllama
	}
	return LLMProviderMock
}

func llmAPIKeyFromEnv(provider LLMProvider) string {
	if key := os.Getenv("LLM_API_KEY"); key != "" {
		return key
	}
	if provider == LLMProviderGemini {
		if key := os.Getenv("GEMINI_API_KEY"); key != "" {
			return key
		}
		return os.Getenv("GOOGLE_API_KEY")
	}
	return ""
}

func ollamaHostFromEnv() string {
	if host := os.Getenv("OLLAMA_HOST"); host != "" {
		return host
	}
	return "http://localhost:11434"
}
