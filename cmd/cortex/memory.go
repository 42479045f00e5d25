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
	"encoding/json"
	"fmt"
	"os"

	"github.com/cortexkit/cortex/pkg/embedder"
	"github.com/cortexkit/cortex/pkg/llm"
	"github.com/cortexkit/cortex/pkg/memory"
	"github.com/cortexkit/cortex/pkg/vector"
)

// MemoryCmd groups the memory store subcommands.
type MemoryCmd struct {
	Search       MemorySearchCmd      `cmd:"" help:"Search memory by similarity."`
	Write        MemoryWriteCmd       `cmd:"" help:"Write a memory item."`
	Delete       MemoryDeleteCmd      `cmd:"" help:"Hard-delete a memory item and its chunks."`
	RebuildIndex MemoryRebuildCmd     `cmd:"" name:"rebuild-index" help:"Rebuild the vector index from stored chunks."`
	Consolidate  MemoryConsolidateCmd `cmd:"" help:"Consolidate episodic items into semantic facts."`
	Prune        MemoryPruneCmd       `cmd:"" help:"Prune stale low-importance items."`
	WM           MemoryWMCmd          `cmd:"" name:"wm" help:"Working memory commands."`
	Export       MemoryExportCmd      `cmd:"" help:"Export memory items as JSONL."`
	Stats        MemoryStatsCmd       `cmd:"" help:"Show memory statistics."`
	Maintain     MemoryMaintainCmd    `cmd:"" help:"Run the full maintenance cycle."`
	Ingest       MemoryIngestCmd      `cmd:"" help:"Ingest documents into semantic memory."`
}

// openStore opens the memory store without building the full engine, so
// memory commands work without LLM credentials. The gateway is attached
// only when one can be built; consolidation falls back to extraction
// otherwise.
func openStore(ctx context.Context, cli *CLI) (*memory.Store, func(), error) {
	cfg, loader, err := loadConfig(ctx, cli.Config)
	if err != nil {
		return nil, nil, err
	}

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	if loader != nil {
		closers = append(closers, func() { _ = loader.Close() })
	}

	if !cfg.Memory.IsEnabled() {
		cleanup()
		return nil, nil, fmt.Errorf("memory is disabled in configuration")
	}

	emb, err := embedder.New(&cfg.Embedder)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to build embedder: %w", err)
	}
	closers = append(closers, func() { _ = emb.Close() })

	vec, err := vector.New(&cfg.Vector)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to build vector provider: %w", err)
	}
	closers = append(closers, func() { _ = vec.Close() })

	store, err := memory.Open(&cfg.Memory, emb, vec)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("failed to open memory store: %w", err)
	}
	closers = append(closers, func() { _ = store.Close() })

	if gw, err := llm.New(&cfg.LLM); err == nil {
		store.SetGateway(gw)
		closers = append(closers, func() { _ = gw.Close() })
	}

	return store, cleanup, nil
}

// MemorySearchCmd searches memory by similarity.
type MemorySearchCmd struct {
	Query string `short:"q" required:"" help:"Search query."`
	K     int    `help:"Number of hits (defaults to the configured top-k)."`
}

func (c *MemorySearchCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()

	store, cleanup, err := openStore(ctx, cli)
	if err != nil {
		return err
	}
	defer cleanup()

	hits, err := store.Retrieve(ctx, c.Query, c.K)
	if err != nil {
		return err
	}
	if len(hits) == 0 {
		fmt.Println("No hits")
		return nil
	}
	for _, hit := range hits {
		fmt.Printf("%6.3f  [%s] %s\n", hit.Score, hit.Kind, hit.ChunkText)
	}
	return nil
}

// MemoryWriteCmd writes a single memory item. Running the command is the
// consent.
type MemoryWriteCmd struct {
	Text       string   `required:"" help:"Memory text."`
	Kind       string   `help:"Memory kind (episodic, semantic, reflective, procedural)." default:"episodic"`
	Tags       []string `help:"Tags (comma-separated)."`
	Importance float64  `help:"Importance in [0,1]." default:"0.6"`
}

func (c *MemoryWriteCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()

	store, cleanup, err := openStore(ctx, cli)
	if err != nil {
		return err
	}
	defer cleanup()

	id, err := store.Write(ctx, memory.WriteRequest{
		Kind:       memory.Kind(c.Kind),
		Text:       c.Text,
		Tags:       c.Tags,
		Importance: c.Importance,
		Consent:    true,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Wrote memory: %s\n", id)
	return nil
}

// MemoryDeleteCmd hard-deletes a memory item.
type MemoryDeleteCmd struct {
	ID string `arg:"" help:"Memory id."`
}

func (c *MemoryDeleteCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()

	store, cleanup, err := openStore(ctx, cli)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := store.Delete(ctx, c.ID); err != nil {
		return err
	}
	fmt.Printf("Deleted: %s\n", c.ID)
	return nil
}

// MemoryRebuildCmd rebuilds the vector index from stored chunks.
type MemoryRebuildCmd struct{}

func (c *MemoryRebuildCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()

	store, cleanup, err := openStore(ctx, cli)
	if err != nil {
		return err
	}
	defer cleanup()

	n, err := store.RebuildIndex(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Rebuilt index with %d vectors\n", n)
	return nil
}

// MemoryConsolidateCmd groups episodic items into semantic facts.
type MemoryConsolidateCmd struct{}

func (c *MemoryConsolidateCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()

	store, cleanup, err := openStore(ctx, cli)
	if err != nil {
		return err
	}
	defer cleanup()

	n, err := store.Consolidate(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Created %d semantic facts\n", n)
	return nil
}

// MemoryPruneCmd tombstones stale low-importance items.
type MemoryPruneCmd struct{}

func (c *MemoryPruneCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()

	store, cleanup, err := openStore(ctx, cli)
	if err != nil {
		return err
	}
	defer cleanup()

	n, err := store.Prune(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Pruned %d items\n", n)
	return nil
}

// MemoryWMCmd groups working memory subcommands.
type MemoryWMCmd struct {
	Get   MemoryWMGetCmd   `cmd:"" help:"Show working memory entries."`
	Add   MemoryWMAddCmd   `cmd:"" help:"Add working memory entries."`
	Clear MemoryWMClearCmd `cmd:"" help:"Clear working memory."`
}

// MemoryWMGetCmd shows a user's working memory.
type MemoryWMGetCmd struct {
	User string `required:"" help:"User id."`
	Cap  int    `help:"Slot capacity (defaults to the configured slots)."`
}

func (c *MemoryWMGetCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()

	store, cleanup, err := openStore(ctx, cli)
	if err != nil {
		return err
	}
	defer cleanup()

	entries, err := store.WMGet(ctx, c.User, c.Cap)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("<empty>")
		return nil
	}
	for _, entry := range entries {
		fmt.Println(entry)
	}
	return nil
}

// MemoryWMAddCmd adds entries to a user's working memory.
type MemoryWMAddCmd struct {
	User    string   `required:"" help:"User id."`
	Entries []string `arg:"" help:"Entries to add."`
	Cap     int      `help:"Slot capacity (defaults to the configured slots)."`
}

func (c *MemoryWMAddCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()

	store, cleanup, err := openStore(ctx, cli)
	if err != nil {
		return err
	}
	defer cleanup()

	if err := store.WMAdd(ctx, c.User, c.Entries, c.Cap); err != nil {
		return err
	}
	fmt.Println("OK")
	return nil
}

// MemoryWMClearCmd clears a user's working memory.
type MemoryWMClearCmd struct {
	User string `required:"" help:"User id."`
}

func (c *MemoryWMClearCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()

	store, cleanup, err := openStore(ctx, cli)
	if err != nil {
		return err
	}
	defer cleanup()

	n, err := store.WMClear(ctx, c.User)
	if err != nil {
		return err
	}
	fmt.Printf("Cleared %d entries\n", n)
	return nil
}

// MemoryExportCmd exports memory to stdout. Without a session id the
// whole store is exported as JSONL; with one, that session's events as
// indented JSON.
type MemoryExportCmd struct {
	SessionID string `name:"session-id" help:"Export a single session's events instead."`
}

func (c *MemoryExportCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()

	store, cleanup, err := openStore(ctx, cli)
	if err != nil {
		return err
	}
	defer cleanup()

	if c.SessionID != "" {
		events, err := store.GetSessionEvents(ctx, c.SessionID)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(events)
	}

	n, err := store.Export(ctx, os.Stdout)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Exported %d items\n", n)
	return nil
}

// MemoryStatsCmd prints store statistics.
type MemoryStatsCmd struct{}

func (c *MemoryStatsCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()

	store, cleanup, err := openStore(ctx, cli)
	if err != nil {
		return err
	}
	defer cleanup()

	stats, err := store.Stats(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(stats)
}

// MemoryMaintainCmd runs consolidation, pruning, and conditional index
// rebuild in one pass.
type MemoryMaintainCmd struct{}

func (c *MemoryMaintainCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()

	store, cleanup, err := openStore(ctx, cli)
	if err != nil {
		return err
	}
	defer cleanup()

	report, err := store.Maintain(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// MemoryIngestCmd parses documents under a path into semantic memories.
type MemoryIngestCmd struct {
	Path string `arg:"" type:"path" help:"File or directory to ingest."`
}

func (c *MemoryIngestCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()

	store, cleanup, err := openStore(ctx, cli)
	if err != nil {
		return err
	}
	defer cleanup()

	results, err := store.IngestPath(ctx, c.Path)
	if err != nil {
		return err
	}

	ingested := 0
	for _, r := range results {
		switch {
		case r.Skipped:
			fmt.Printf("skip  %s\n", r.Path)
		case r.Error != "":
			fmt.Printf("fail  %s: %s\n", r.Path, r.Error)
		default:
			fmt.Printf("ok    %s -> %s\n", r.Path, r.MemoryID)
			ingested++
		}
	}
	fmt.Printf("Ingested %d of %d files\n", ingested, len(results))
	return nil
}
