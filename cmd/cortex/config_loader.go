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

package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cortexkit/cortex/pkg/config"
)

// loadConfig resolves configuration for a command. With a path it loads
// the file through a watchable loader; without one it builds the default
// configuration from environment variables. The returned loader is nil
// in the env-only case.
func loadConfig(ctx context.Context, path string) (*config.Config, *config.Loader, error) {
	if path != "" {
		cfg, loader, err := config.LoadConfigFile(ctx, path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to load config: %w", err)
		}
		slog.Info("Loaded configuration", "path", path)
		return cfg, loader, nil
	}

	cfg := config.New()
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil, nil
}
