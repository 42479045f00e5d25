// Package engine runs the cognitive cycle. A cycle turns one query into a
// vetted answer: perception builds a percept, the classifier routes it, a
// selected set of reasoners drafts candidates in parallel, the critic and
// the coherence engine vet them, the gating engine admits or quarantines
// them, admitted items are broadcast into the global workspace, and a final
// synthesis pass composes the answer from the gated material. Neuromodulator
// levels bias every stage and are updated from the cycle's outcome.
package engine

import (
	"fmt"
	"sync"

	"github.com/cortexkit/cortex/pkg/classifier"
	"github.com/cortexkit/cortex/pkg/coherence"
	"github.com/cortexkit/cortex/pkg/config"
	"github.com/cortexkit/cortex/pkg/critique"
	"github.com/cortexkit/cortex/pkg/embedder"
	"github.com/cortexkit/cortex/pkg/gating"
	"github.com/cortexkit/cortex/pkg/llm"
	"github.com/cortexkit/cortex/pkg/memory"
	"github.com/cortexkit/cortex/pkg/neuromod"
	"github.com/cortexkit/cortex/pkg/observability"
	"github.com/cortexkit/cortex/pkg/perception"
	"github.com/cortexkit/cortex/pkg/precontext"
	"github.com/cortexkit/cortex/pkg/reasoner"
	"github.com/cortexkit/cortex/pkg/vector"
	"github.com/cortexkit/cortex/pkg/workspace"
)

// Engine wires the pipeline stages together and runs query cycles. One
// engine serves many queries; per-cycle state lives on the stack, shared
// state (workspace, neuromodulators, gating history, memory) persists
// across cycles.
type Engine struct {
	cfg      *config.Config
	gateway  llm.Provider
	embed    embedder.Embedder
	vec      vector.Provider
	store    *memory.Store
	adapter  *perception.Adapter
	pre      *precontext.Preprocessor
	classify *classifier.Classifier
	critic   *critique.Manager
	coherer  *coherence.Engine
	neuro    *neuromod.Controller
	gate     *gating.Engine
	ws       *workspace.Manager
	obs      *observability.Manager

	mu         sync.Mutex
	seenLabels map[string]bool
	cycles     int
}

// Option overrides a collaborator before the remaining ones are built
// from configuration.
type Option func(*Engine)

// WithGateway supplies the LLM provider.
func WithGateway(p llm.Provider) Option {
	return func(e *Engine) { e.gateway = p }
}

// WithEmbedder supplies the embedding provider.
func WithEmbedder(emb embedder.Embedder) Option {
	return func(e *Engine) { e.embed = emb }
}

// WithVectorProvider supplies the vector index.
func WithVectorProvider(p vector.Provider) Option {
	return func(e *Engine) { e.vec = p }
}

// WithStore supplies an already-open memory store.
func WithStore(s *memory.Store) Option {
	return func(e *Engine) { e.store = s }
}

// WithObservability supplies the tracing and metrics manager.
func WithObservability(m *observability.Manager) Option {
	return func(e *Engine) { e.obs = m }
}

// New builds an engine from cfg, constructing every collaborator no option
// supplied. A nil cfg uses defaults with environment overrides applied.
func New(cfg *config.Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = config.New()
	} else {
		cfg.SetDefaults()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
	}

	e := &Engine{cfg: cfg, seenLabels: make(map[string]bool)}
	for _, opt := range opts {
		opt(e)
	}

	if e.obs == nil {
		e.obs = observability.NoopManager()
	}
	if e.gateway == nil {
		gw, err := llm.New(&cfg.LLM)
		if err != nil {
			return nil, fmt.Errorf("failed to build LLM gateway: %w", err)
		}
		e.gateway = gw
	}
	if e.embed == nil {
		emb, err := embedder.New(&cfg.Embedder)
		if err != nil {
			return nil, fmt.Errorf("failed to build embedder: %w", err)
		}
		e.embed = emb
	}
	if e.vec == nil {
		vp, err := vector.New(&cfg.Vector)
		if err != nil {
			return nil, fmt.Errorf("failed to build vector provider: %w", err)
		}
		e.vec = vp
	}
	if e.store == nil && cfg.Memory.IsEnabled() {
		st, err := memory.Open(&cfg.Memory, e.embed, e.vec)
		if err != nil {
			return nil, fmt.Errorf("failed to open memory store: %w", err)
		}
		e.store = st
	}
	if e.store != nil {
		e.store.SetGateway(e.gateway)
	}

	e.adapter = perception.NewAdapter(e.embed)

	var src precontext.MemorySource
	if e.store != nil {
		src = e.store
	}
	e.pre = precontext.New(src,
		precontext.WithTopK(cfg.Memory.TopK),
		precontext.WithWMCap(cfg.Memory.WorkingMemorySlots),
		precontext.WithModel(cfg.LLM.Model),
	)

	// The classifier gets a source-less preprocessor so the cycle updates
	// working memory exactly once; memory context reaches it as an argument.
	e.classify = classifier.New(e.gateway, precontext.New(nil,
		precontext.WithWMCap(cfg.Memory.WorkingMemorySlots),
		precontext.WithModel(cfg.LLM.Model)))

	var copts []critique.Option
	if cfg.Engine.CriticMaxAllowedIssues != nil {
		copts = append(copts, critique.WithMaxAllowedIssues(*cfg.Engine.CriticMaxAllowedIssues))
	}
	e.critic = critique.NewManager(e.gateway, copts...)
	e.coherer = coherence.NewEngine(e.gateway, cfg.Engine.CoherenceThreshold)
	e.neuro = neuromod.NewController(&cfg.Neuromod)
	e.gate = gating.NewEngine(&cfg.Gating)
	e.ws = workspace.NewManager(&cfg.Workspace)

	return e, nil
}

// Config returns the active configuration.
func (e *Engine) Config() *config.Config { return e.cfg }

// Store returns the memory store, or nil when memory is disabled.
func (e *Engine) Store() *memory.Store { return e.store }

// Workspace returns the workspace manager.
func (e *Engine) Workspace() *workspace.Manager { return e.ws }

// Neuromod returns the neuromodulation controller.
func (e *Engine) Neuromod() *neuromod.Controller { return e.neuro }

// Gating returns the gating engine.
func (e *Engine) Gating() *gating.Engine { return e.gate }

// Observability returns the tracing and metrics manager.
func (e *Engine) Observability() *observability.Manager { return e.obs }

// Health reports a liveness snapshot for the server's health endpoint.
func (e *Engine) Health() map[string]any {
	e.mu.Lock()
	cycles := e.cycles
	e.mu.Unlock()
	return map[string]any{
		"status":           "ok",
		"configured":       true,
		"memory_enabled":   e.store != nil,
		"agents_available": len(reasoner.Types),
		"cycles_processed": cycles,
	}
}

// AgentInfo describes one reasoner for discovery endpoints.
type AgentInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Agents lists every reasoner with its role description.
func Agents() []AgentInfo {
	infos := make([]AgentInfo, 0, len(reasoner.Types))
	for _, t := range reasoner.Types {
		infos = append(infos, AgentInfo{Name: string(t), Description: reasoner.RoleFor(t)})
	}
	return infos
}

// Close releases every collaborator the engine holds: the memory store,
// the vector provider, the embedder, and the LLM gateway.
func (e *Engine) Close() error {
	var firstErr error
	if e.store != nil {
		if err := e.store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if e.vec != nil {
		if err := e.vec.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if e.embed != nil {
		if err := e.embed.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if e.gateway != nil {
		if err := e.gateway.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
