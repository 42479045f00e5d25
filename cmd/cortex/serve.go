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

	"github.com/cortexkit/cortex/pkg/config"
	"github.com/cortexkit/cortex/pkg/engine"
	"github.com/cortexkit/cortex/pkg/observability"
	"github.com/cortexkit/cortex/pkg/server"
)

// ServeCmd starts the HTTP server.
type ServeCmd struct {
	Host  string `help:"Host to bind to (overrides config)."`
	Port  int    `short:"p" help:"Port to listen on (overrides config)."`
	Watch bool   `help:"Watch the config source and hot-reload on change."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx := context.Background()

	cfg, loader, err := loadConfig(ctx, cli.Config)
	if err != nil {
		return err
	}
	if loader != nil {
		defer loader.Close()
	}

	opts := server.Options{
		Config: cfg,
		Host:   c.Host,
		Port:   c.Port,
	}
	if c.Watch {
		if loader == nil {
			return fmt.Errorf("--watch requires --config")
		}
		opts.Loader = loader
	}

	if cfg.Observability.Metrics.Enabled || cfg.Observability.Tracing.Enabled {
		obs := observability.NewManager(cfg.Observability)
		if err := obs.Initialize(ctx); err != nil {
			return fmt.Errorf("failed to initialize observability: %w", err)
		}
		defer func() { _ = obs.Shutdown(context.Background()) }()
		opts.EngineOptions = append(opts.EngineOptions, engine.WithObservability(obs))
	}

	srv, err := server.New(opts)
	if err != nil {
		return err
	}
	if err := srv.Start(ctx); err != nil {
		return err
	}

	printServerInfo(srv.Addr(), cfg, c.Watch)

	// The server handles shutdown signals itself; block until it is done.
	srv.Wait()
	return nil
}

func printServerInfo(addr string, cfg *config.Config, watch bool) {
	fmt.Printf("\ncortex server ready\n")
	fmt.Printf("   Health:   http://%s/health\n", addr)
	fmt.Printf("   Query:    http://%s/query\n", addr)
	fmt.Printf("   Agents:   http://%s/agents\n", addr)
	if cfg.Memory.IsEnabled() {
		fmt.Printf("   Memory:   http://%s/memory/search\n", addr)
	}
	if cfg.Observability.Metrics.Enabled {
		fmt.Printf("   Metrics:  http://%s/metrics\n", addr)
	}
	if watch {
		fmt.Printf("   Reload:   watching config source\n")
	}
	fmt.Println("\nPress Ctrl+C to stop")
}
