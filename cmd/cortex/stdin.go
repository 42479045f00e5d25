package main

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/cortexkit/cortex/pkg/engine"
	"github.com/cortexkit/cortex/pkg/stdio"
)

// StdinCmd processes jobs from stdin, one JSON object per line, and
// writes event frames to stdout. Logs go to stderr.
type StdinCmd struct{}

func (c *StdinCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()

	cfg, loader, err := loadConfig(ctx, cli.Config)
	if err != nil {
		return err
	}
	if loader != nil {
		defer loader.Close()
	}

	eng, err := engine.New(cfg)
	if err != nil {
		return err
	}
	defer eng.Close()

	runner := stdio.NewRunner(eng, os.Stdin, os.Stdout, slog.Default())
	if err := runner.Run(ctx); err != nil {
		// A shutdown signal cancels the context mid-read; that is a
		// clean exit, not a failure.
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}
	return nil
}
