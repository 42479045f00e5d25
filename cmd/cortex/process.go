package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cortexkit/cortex/pkg/config"
	"github.com/cortexkit/cortex/pkg/engine"
)

// ProcessCmd runs a single query through the cognitive pipeline.
type ProcessCmd struct {
	Query        string `short:"q" required:"" help:"Query to process."`
	Mode         string `short:"m" help:"Processing mode (concise, detailed, creative, analytical)." default:"concise"`
	Iterations   int    `short:"i" help:"Reasoning iterations (defaults to the mode's loop depth)."`
	Memory       bool   `help:"Allow the cycle to write memory."`
	OutputFormat string `name:"output-format" help:"Output format." enum:"text,json" default:"text"`
	User         string `help:"User id for memory scoping." default:"cli_user"`
}

func (c *ProcessCmd) Run(cli *CLI) error {
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

	res, err := eng.Process(ctx, &engine.Request{
		Query:            c.Query,
		Mode:             config.Mode(c.Mode),
		Iterations:       c.Iterations,
		UserID:           c.User,
		AllowMemoryWrite: c.Memory,
	})
	if err != nil {
		return err
	}

	if c.OutputFormat == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	fmt.Println(res.FinalAnswer)
	return nil
}

// InteractiveCmd runs a read-eval-print loop over the same pipeline.
type InteractiveCmd struct {
	Mode string `short:"m" help:"Processing mode (concise, detailed, creative, analytical)." default:"concise"`
	User string `help:"User id for memory scoping." default:"interactive_user"`
}

func (c *InteractiveCmd) Run(cli *CLI) error {
	ctx := context.Background()

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

	reader := bufio.NewReader(os.Stdin)

	fmt.Println("\ncortex interactive session")
	fmt.Println("Type your queries below. Commands:")
	fmt.Println("  /quit or /exit - end the session")
	fmt.Println("  /clear - clear working memory")
	fmt.Println()

	// All turns share one session so episodic events thread together.
	// The engine mints the id on the first turn.
	var sessionID string

	for {
		fmt.Print("You: ")

		input, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				fmt.Println()
				return nil
			}
			return fmt.Errorf("failed to read input: %w", err)
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			switch input {
			case "/quit", "/exit":
				fmt.Println("Session ended")
				return nil
			case "/clear":
				c.clearWorkingMemory(ctx, eng)
				continue
			default:
				fmt.Printf("Unknown command: %s\n", input)
				continue
			}
		}

		res, err := eng.Process(ctx, &engine.Request{
			Query:            input,
			Mode:             config.Mode(c.Mode),
			UserID:           c.User,
			SessionID:        sessionID,
			AllowMemoryWrite: true,
		})
		if err != nil {
			fmt.Printf("Error: %v\n\n", err)
			continue
		}
		if res.SessionID != "" {
			sessionID = res.SessionID
		}

		fmt.Printf("\ncortex: %s\n\n", res.FinalAnswer)
	}
}

func (c *InteractiveCmd) clearWorkingMemory(ctx context.Context, eng *engine.Engine) {
	store := eng.Store()
	if store == nil {
		fmt.Println("Memory is disabled")
		return
	}
	n, err := store.WMClear(ctx, c.User)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("Cleared %d working memory entries\n", n)
}
