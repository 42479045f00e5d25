// Package cortex provides a brain-inspired cognitive orchestration engine.
//
// Cortex turns a single natural-language query into a vetted answer by
// coordinating specialized reasoning agents through a layered pipeline:
// perception, parallel local reasoning, self-critique, cross-agent coherence
// analysis, gating, global-workspace broadcast, working-memory integration,
// and synthesis. Global scalar modulators ("neuromodulators") bias agent
// behavior and gating thresholds, and a feedback loop updates them after
// every cycle.
//
// # Quick Start
//
// Install cortex:
//
//	go install github.com/cortexkit/cortex/cmd/cortex@latest
//
// Process a query:
//
//	export LLM_PROVIDER=gemini
//	export LLM_API_KEY=...
//	cortex process --query "Plan a migration from monolith to services"
//
// Start the HTTP server:
//
//	cortex serve --port 8080
//
// # Using as Go Library
//
// Import specific packages:
//
//	import (
//	    "github.com/cortexkit/cortex/pkg/engine"
//	    "github.com/cortexkit/cortex/pkg/config"
//	    "github.com/cortexkit/cortex/pkg/memory"
//	)
//
// # Architecture
//
// The pipeline mirrors coarse brain structure:
//
//	Percept → Context → Classifier → Local Reasoners (parallel)
//	       → Critique → Coherence → Gating → Global Workspace
//	       → Working Memory → Synthesis
//
// Reasoners, embedders, vector indexes, and LLM providers are pluggable;
// the mock provider and hash embedder make the whole pipeline runnable
// offline and deterministic under test.
//
// # Documentation
//
// See the package documentation of pkg/engine for the orchestration
// contract, and pkg/memory for the persistence model.
package cortex
