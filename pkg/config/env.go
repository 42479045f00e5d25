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
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads environment variables from .env files.
//
// Search order (first found wins):
//  1. Explicit paths if provided
//  2. .env in current directory
//  3. .env in home directory (~/.env)
//
// Idempotent and safe to call multiple times. Existing environment
// variables are NOT overwritten.
func LoadDotEnv(paths ...string) error {
	for _, path := range paths {
		if path != "" {
			if err := loadIfExists(path); err != nil {
				return err
			}
		}
	}

	if err := loadIfExists(".env"); err != nil {
		return err
	}

	if home, err := os.UserHomeDir(); err == nil {
		if err := loadIfExists(filepath.Join(home, ".env")); err != nil {
			return err
		}
	}

	return nil
}

// loadIfExists loads a .env file if it exists, without overwriting
// existing environment variables.
func loadIfExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	if err := godotenv.Load(path); err != nil {
		// .env is optional
		slog.Debug("Failed to load .env file", "path", path, "error", err)
		return nil
	}

	slog.Debug("Loaded environment from .env", "path", path)
	return nil
}

// ApplyEnv overrides configuration fields from environment variables.
// Only variables that are actually set take effect, so file-based
// values survive unless explicitly overridden.
func (c *Config) ApplyEnv() {
	// LLM
	envString("LLM_API_KEY", &c.LLM.APIKey)
	if v, ok := os.LookupEnv("LLM_PROVIDER"); ok && v != "" {
		c.LLM.Provider = LLMProvider(strings.ToLower(v))
	}
	envString("LLM_MODEL", &c.LLM.Model)
	if v, ok := envFloat("LLM_TEMPERATURE"); ok {
		c.LLM.Temperature = Float64Ptr(v)
	}
	envInt("LLM_MAX_TOKENS", &c.LLM.MaxTokens)
	envInt("LLM_TIMEOUT_S", &c.LLM.Timeout)
	envInt("LLM_RETRIES", &c.LLM.Retries)

	// Memory
	if v, ok := envBool("MEMORY_ENABLED"); ok {
		c.Memory.Enabled = BoolPtr(v)
	}
	envString("MEMORY_PATH", &c.Memory.Path)
	envInt("MAX_MEMORY_ENTRIES", &c.Memory.MaxEntries)

	// Engine
	envInt("MAX_ITERATIONS", &c.Engine.MaxIterations)
	if v, ok := os.LookupEnv("DEFAULT_MODE"); ok && v != "" {
		c.Engine.DefaultMode = Mode(strings.ToLower(v))
	}
	if v, ok := envBool("ENABLE_REFLECTION"); ok {
		c.Engine.EnableReflection = BoolPtr(v)
	}
	if v, ok := envFloat("COHERENCE_THRESHOLD"); ok {
		c.Engine.CoherenceThreshold = v
	}
	if v, ok := os.LookupEnv("CRITIC_MAX_ALLOWED_ISSUES"); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Engine.CriticMaxAllowedIssues = IntPtr(n)
		}
	}
	envInt("MAX_CONCURRENT_AGENTS", &c.Engine.MaxConcurrentAgents)

	// Logging
	if v, ok := os.LookupEnv("LOG_LEVEL"); ok && v != "" {
		c.Logging.Level = strings.ToLower(v)
	}
	envString("LOG_FILE", &c.Logging.File)
	if v, ok := envBool("DEBUG"); ok && v {
		c.Logging.Level = "debug"
	}
}

func envString(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envFloat(key string) (float64, bool) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func envBool(key string) (bool, bool) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return false, false
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	}
	return false, false
}
