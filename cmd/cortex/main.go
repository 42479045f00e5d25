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

// Command cortex runs the brain-inspired cognitive orchestration engine.
//
// Usage:
//
//	cortex process --query "why do ferries float?" --mode detailed
//	cortex serve --config cortex.yaml --watch
//	cortex memory search --query "ferry schedules"
//	cortex stdin
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/cortexkit/cortex/pkg/config"
)

// CLI defines the command-line interface.
type CLI struct {
	Version     VersionCmd     `cmd:"" help:"Show version information."`
	Process     ProcessCmd     `cmd:"" help:"Process a single query."`
	Interactive InteractiveCmd `cmd:"" help:"Start an interactive session."`
	Serve       ServeCmd       `cmd:"" help:"Start the HTTP server."`
	ConfigInfo  ConfigInfoCmd  `cmd:"" name:"config-info" help:"Show the resolved configuration."`
	ConfigTool  ConfigCmd      `cmd:"" name:"config" help:"Configuration tooling."`
	Memory      MemoryCmd      `cmd:"" help:"Memory store commands."`
	Stdin       StdinCmd       `cmd:"" help:"Process jobs from stdin, one JSON object per line."`

	Config    string `short:"c" help:"Path to config file." type:"path"`
	LogLevel  string `help:"Log level (debug, info, warn, error)." default:"info"`
	LogFile   string `help:"Log file path (empty = stderr)."`
	LogFormat string `help:"Log format (simple, verbose, or json)." default:"simple"`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	version := "dev"
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "(devel)" && info.Main.Version != "" {
			version = info.Main.Version
		}
	}
	fmt.Printf("cortex version %s\n", version)
	return nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("Shutting down...")
		cancel()
	}()
	return ctx, cancel
}

func main() {
	_ = config.LoadDotEnv()

	cli := CLI{}
	kctx := kong.Parse(&cli,
		kong.Name("cortex"),
		kong.Description("Brain-inspired cognitive orchestration engine."),
		kong.UsageOnError(),
	)

	// Initialize the logger before any command runs so config loading
	// itself logs through the configured handler.
	cleanup, err := initLogger(cli.LogLevel, cli.LogFile, cli.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	if cleanup != nil {
		defer cleanup()
	}

	err = kctx.Run(&cli)
	kctx.FatalIfErrorf(err)
}
