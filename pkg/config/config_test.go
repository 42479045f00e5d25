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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAppliesDefaults(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "")
	t.Setenv("LLM_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")
	t.Setenv("OLLAMA_HOST", "")

	cfg := New()

	assert.Equal(t, LLMProviderMock, cfg.LLM.Provider)
	assert.Equal(t, 5, cfg.LLM.Retries)
	assert.Equal(t, 60, cfg.LLM.Timeout)
	assert.Equal(t, EmbedderProviderHash, cfg.Embedder.Provider)
	assert.Equal(t, 768, cfg.Embedder.Dimension)
	assert.Equal(t, VectorProviderChromem, cfg.Vector.Provider)
	assert.True(t, cfg.Memory.IsEnabled())
	assert.Equal(t, "memory/", cfg.Memory.Path)
	assert.Equal(t, 1000, cfg.Memory.MaxEntries)
	assert.Equal(t, 7, cfg.Memory.WorkingMemorySlots)
	assert.Equal(t, 5, cfg.Engine.MaxIterations)
	assert.Equal(t, ModeConcise, cfg.Engine.DefaultMode)
	assert.True(t, cfg.Engine.ReflectionEnabled())
	assert.InDelta(t, 0.3, cfg.Gating.MinConfidence, 1e-9)
	assert.Equal(t, 1000, cfg.Workspace.MaxItems)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "cortex", cfg.Observability.Metrics.Namespace)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid defaults",
			mutate: func(c *Config) {},
		},
		{
			name:    "bad llm provider",
			mutate:  func(c *Config) { c.LLM.Provider = "bogus" },
			wantErr: "llm",
		},
		{
			name:    "bad temperature",
			mutate:  func(c *Config) { c.LLM.Temperature = Float64Ptr(3.5) },
			wantErr: "temperature",
		},
		{
			name:    "bad mode",
			mutate:  func(c *Config) { c.Engine.DefaultMode = "extreme" },
			wantErr: "engine",
		},
		{
			name:    "bad coherence threshold",
			mutate:  func(c *Config) { c.Engine.CoherenceThreshold = 1.5 },
			wantErr: "engine",
		},
		{
			name:    "bad sampling rate",
			mutate:  func(c *Config) { c.Observability.Tracing.SamplingRate = 2 },
			wantErr: "observability",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "loud" },
			wantErr: "logging",
		},
		{
			name:    "bad encryption key length",
			mutate:  func(c *Config) { c.Memory.EncryptionKey = "short" },
			wantErr: "memory",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("LLM_PROVIDER", "")
			t.Setenv("LLM_API_KEY", "")
			t.Setenv("GEMINI_API_KEY", "")
			t.Setenv("GOOGLE_API_KEY", "")

			cfg := New()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSanitizedMasksSecrets(t *testing.T) {
	cfg := New()
	cfg.LLM.APIKey = "supersecretkey123"
	cfg.Memory.EncryptionKey = "0123456789abcdef"
	cfg.Vector.Qdrant.APIKey = "qd"

	masked := cfg.Sanitized()

	assert.Equal(t, "supe****", masked.LLM.APIKey)
	assert.Equal(t, "0123****", masked.Memory.EncryptionKey)
	assert.Equal(t, "****", masked.Vector.Qdrant.APIKey)

	// Original untouched.
	assert.Equal(t, "supersecretkey123", cfg.LLM.APIKey)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "ollama")
	t.Setenv("LLM_MODEL", "llama3.2")
	t.Setenv("LLM_TEMPERATURE", "0.9")
	t.Setenv("LLM_MAX_TOKENS", "512")
	t.Setenv("MEMORY_ENABLED", "false")
	t.Setenv("MEMORY_PATH", "/tmp/cortex-mem")
	t.Setenv("MAX_MEMORY_ENTRIES", "42")
	t.Setenv("COHERENCE_THRESHOLD", "0.5")
	t.Setenv("CRITIC_MAX_ALLOWED_ISSUES", "2")
	t.Setenv("LOG_LEVEL", "WARN")

	cfg := &Config{}
	cfg.ApplyEnv()

	assert.Equal(t, LLMProviderOllama, cfg.LLM.Provider)
	assert.Equal(t, "llama3.2", cfg.LLM.Model)
	require.NotNil(t, cfg.LLM.Temperature)
	assert.InDelta(t, 0.9, *cfg.LLM.Temperature, 1e-9)
	assert.Equal(t, 512, cfg.LLM.MaxTokens)
	require.NotNil(t, cfg.Memory.Enabled)
	assert.False(t, *cfg.Memory.Enabled)
	assert.Equal(t, "/tmp/cortex-mem", cfg.Memory.Path)
	assert.Equal(t, 42, cfg.Memory.MaxEntries)
	assert.InDelta(t, 0.5, cfg.Engine.CoherenceThreshold, 1e-9)
	require.NotNil(t, cfg.Engine.CriticMaxAllowedIssues)
	assert.Equal(t, 2, *cfg.Engine.CriticMaxAllowedIssues)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestModeLoopDepth(t *testing.T) {
	assert.Equal(t, 1, ModeLoopDepth[ModeConcise])
	assert.Equal(t, 3, ModeLoopDepth[ModeDetailed])
	assert.Equal(t, 2, ModeLoopDepth[ModeCreative])
	assert.Equal(t, 3, ModeLoopDepth[ModeAnalytical])
}
