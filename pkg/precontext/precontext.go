// Package precontext assembles the lightweight context bundle gathered
// before classification: timestamp, user profile, recent episodic
// summaries, retrieved memory snippets, procedural hints, and the
// working-memory ring, which it also updates on every call.
package precontext

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	// DefaultTopK memory snippets retrieved per query.
	DefaultTopK = 5

	// DefaultWMCap bounds the working-memory ring.
	DefaultWMCap = 7

	episodeTailLimit    = 5
	previewLimit        = 280
	proceduralHintLimit = 10

	// Token budgets for the prompt-facing memory sections. In estimate
	// mode (no encoding) a token counts as four characters.
	episodeSummaryTokens = 100
	snippetSectionTokens = 512
	wmSectionTokens      = 512
)

// Context is the pre-classification bundle.
type Context struct {
	Timestamp       string            `json:"timestamp"`
	UserID          string            `json:"userId,omitempty"`
	UserProfile     map[string]any    `json:"userProfile,omitempty"`
	RecentMemory    []string          `json:"recentMemory,omitempty"`
	Snippets        []string          `json:"snippets,omitempty"`
	WorkingMemory   []string          `json:"workingMemory,omitempty"`
	ProceduralHints []string          `json:"proceduralHints,omitempty"`
	Env             map[string]string `json:"env"`
	RawTextPreview  string            `json:"rawTextPreview"`
}

// MemorySource is the slice of the memory store the preprocessor
// consumes. A nil source produces a bundle without memory sections.
type MemorySource interface {
	// RetrieveSnippets returns up to k chunk texts relevant to the query.
	RetrieveSnippets(ctx context.Context, query string, k int) ([]string, error)

	// RecentEpisodes returns summaries of the n most recent episodic events.
	RecentEpisodes(ctx context.Context, n int) ([]string, error)

	// WMAdd appends entries to the user's persistent working-memory ring.
	WMAdd(ctx context.Context, userID string, entries []string, capacity int) error

	// WMGet reads the user's ring, most recent last.
	WMGet(ctx context.Context, userID string, capacity int) ([]string, error)

	// ProceduralHints lists up to limit registered procedure names.
	ProceduralHints(ctx context.Context, limit int) ([]string, error)
}

// Preprocessor builds Context bundles. Anonymous queries (empty user
// ID) share an in-process ring; identified users get the persistent
// ring in the memory store.
type Preprocessor struct {
	mem         MemorySource
	budget      *TokenBudget
	profilePath string
	topK        int
	wmCap       int

	mu         sync.Mutex
	globalRing []string
}

// Option configures a Preprocessor.
type Option func(*Preprocessor)

// WithTopK sets how many memory snippets are retrieved per call.
func WithTopK(k int) Option {
	return func(p *Preprocessor) {
		if k > 0 {
			p.topK = k
		}
	}
}

// WithWMCap sets the working-memory ring capacity.
func WithWMCap(capacity int) Option {
	return func(p *Preprocessor) {
		if capacity > 0 {
			p.wmCap = capacity
		}
	}
}

// WithProfilePath points at the directory holding user_info.json.
func WithProfilePath(dir string) Option {
	return func(p *Preprocessor) {
		p.profilePath = dir
	}
}

// WithModel selects the tokenizer for the section budgets. Without it
// the budget runs in estimate mode.
func WithModel(model string) Option {
	return func(p *Preprocessor) {
		p.budget = NewTokenBudget(model)
	}
}

func New(mem MemorySource, opts ...Option) *Preprocessor {
	p := &Preprocessor{
		mem:    mem,
		budget: &TokenBudget{},
		topK:   DefaultTopK,
		wmCap:  DefaultWMCap,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Preprocess gathers the bundle for one query and updates the
// working-memory ring with the query text plus retrieved snippets.
// The prompt-facing memory sections are trimmed by token count.
// Memory failures degrade to empty sections, never errors.
func (p *Preprocessor) Preprocess(ctx context.Context, userID, text string) *Context {
	bundle := &Context{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		UserID:    userID,
		Env: map[string]string{
			"app":     "cortex",
			"version": "base",
		},
		RawTextPreview: truncate(text, previewLimit),
	}

	if profile := p.readProfile(); len(profile) > 0 {
		bundle.UserProfile = profile
	}

	var snippets []string
	if p.mem != nil {
		var err error

		bundle.RecentMemory, err = p.recentSummaries(ctx)
		if err != nil {
			slog.Debug("Episodic tail unavailable", "error", err)
		}

		snippets, err = p.mem.RetrieveSnippets(ctx, text, p.topK)
		if err != nil {
			slog.Debug("Snippet retrieval unavailable", "error", err)
			snippets = nil
		}
		snippets = p.budget.FitTop(snippets, snippetSectionTokens)
		bundle.Snippets = snippets

		bundle.ProceduralHints, err = p.mem.ProceduralHints(ctx, proceduralHintLimit)
		if err != nil {
			slog.Debug("Procedural hints unavailable", "error", err)
		}
	}

	entries := append([]string{text}, snippets...)
	ring := p.updateWorkingMemory(ctx, userID, entries)
	bundle.WorkingMemory = p.budget.FitLines(ring, wmSectionTokens)

	return bundle
}

// updateWorkingMemory appends entries and returns the resulting ring,
// truncated to the cap with the most recent entries kept.
func (p *Preprocessor) updateWorkingMemory(ctx context.Context, userID string, entries []string) []string {
	if userID != "" && p.mem != nil {
		if err := p.mem.WMAdd(ctx, userID, entries, p.wmCap); err != nil {
			slog.Debug("Working memory update failed", "user", userID, "error", err)
		}
		ring, err := p.mem.WMGet(ctx, userID, p.wmCap)
		if err != nil {
			slog.Debug("Working memory read failed", "user", userID, "error", err)
			return nil
		}
		return ring
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.globalRing = append(p.globalRing, entries...)
	if len(p.globalRing) > p.wmCap {
		p.globalRing = p.globalRing[len(p.globalRing)-p.wmCap:]
	}

	out := make([]string, len(p.globalRing))
	copy(out, p.globalRing)
	return out
}

func (p *Preprocessor) recentSummaries(ctx context.Context) ([]string, error) {
	episodes, err := p.mem.RecentEpisodes(ctx, episodeTailLimit)
	if err != nil {
		return nil, err
	}

	summaries := make([]string, 0, len(episodes))
	for _, e := range episodes {
		if e == "" {
			continue
		}
		summaries = append(summaries, p.budget.Truncate(e, episodeSummaryTokens))
	}
	return summaries, nil
}

// readProfile loads user_info.json when present. Missing or malformed
// files are treated as "no profile".
func (p *Preprocessor) readProfile() map[string]any {
	if p.profilePath == "" {
		return nil
	}

	data, err := os.ReadFile(filepath.Join(p.profilePath, "user_info.json"))
	if err != nil {
		return nil
	}

	var profile map[string]any
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil
	}
	return profile
}

// String renders the bundle as JSON for prompt embedding.
func (c *Context) String() string {
	data, err := json.Marshal(c)
	if err != nil {
		return "{}"
	}
	return string(data)
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
