// Package critique implements the self-evaluation pass that runs over every
// reasoner output before it competes for broadcast.
//
// Each output is judged three ways, strongest parser first: a structured
// critic that returns strict JSON, a legacy critic with labeled sections,
// and a keyword heuristic over the raw reply. Specialized per-agent checks
// are layered on top. A failing output gets one rewrite and one re-review;
// an output that still fails is escalated rather than retried again.
package critique

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/cortexkit/cortex/pkg/llm"
	"github.com/cortexkit/cortex/pkg/reasoner"
)

const (
	historyLimit     = 1000
	recentWindow     = 100
	minFocusKeywords = 2
)

// Critique is the verdict on one agent output.
type Critique struct {
	Agent            reasoner.AgentType `json:"agent"`
	Passed           bool               `json:"passed"`
	Issues           []string           `json:"issues,omitempty"`
	SuggestedEdits   []string           `json:"suggested_edits,omitempty"`
	ConfidenceImpact float64            `json:"confidence_impact"`
	Escalate         bool               `json:"escalate,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
}

// Result pairs a critique with the output it approved — the original when
// it passed, the rewritten one otherwise.
type Result struct {
	Critique *Critique
	Output   *reasoner.AgentOutput
}

// Stats summarizes recent critic behavior.
type Stats struct {
	TotalCritiques int     `json:"total_critiques"`
	PassRate       float64 `json:"pass_rate"`
	AvgIssues      float64 `json:"avg_issues"`
	RecentPassRate float64 `json:"recent_pass_rate"`
}

var (
	highSeverityWords   = []string{"error", "contradiction", "inconsistent", "wrong", "incorrect"}
	mediumSeverityWords = []string{"unclear", "vague", "missing", "incomplete"}
	lowSeverityWords    = []string{"minor", "suggestion", "improvement"}

	heuristicIssueWords = []string{"issue", "problem", "concern", "error"}

	specializedKeywords = map[reasoner.AgentType][]string{
		reasoner.Logical:   {"logical", "evidence", "proof", "reasoning", "valid", "sound"},
		reasoner.Emotional: {"emotion", "feel", "empathy", "human", "personal"},
		reasoner.Creative:  {"creative", "novel", "original", "innovative", "imaginative"},
		reasoner.Strategic: {"strategy", "plan", "long-term", "resource", "risk"},
		reasoner.Verifier:  {"fact", "verify", "source", "evidence", "accurate"},
		reasoner.Arbiter:   {"fair", "balanced", "neutral", "resolve", "compromise"},
	}

	fallbackFocus    = []string{"general quality", "clarity", "accuracy"}
	fallbackKeywords = []string{"quality", "clear", "accurate"}
)

// Manager runs critiques and rewrites and keeps rolling statistics.
type Manager struct {
	gateway llm.Provider

	// maxAllowedIssues, when set, overrides the pass verdict: a critique
	// with at most this many issues passes.
	maxAllowedIssues *int

	mu      sync.Mutex
	history []record
}

type record struct {
	passed bool
	issues int
}

// Option adjusts manager construction.
type Option func(*Manager)

// WithMaxAllowedIssues loosens the pass verdict to an issue-count bound.
func WithMaxAllowedIssues(n int) Option {
	return func(m *Manager) { m.maxAllowedIssues = &n }
}

// NewManager builds a critique manager backed by the language gateway.
func NewManager(gateway llm.Provider, opts ...Option) *Manager {
	m := &Manager{gateway: gateway}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetMaxAllowedIssues changes the pass-verdict override at runtime. A nil
// value restores the default verdict.
func (m *Manager) SetMaxAllowedIssues(n *int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.maxAllowedIssues = n
}

// Review critiques one output and, when it fails, rewrites it once and
// re-reviews the rewrite. A rewrite that still fails is returned with
// Escalate set; callers decide what to do with escalated content.
func (m *Manager) Review(ctx context.Context, out *reasoner.AgentOutput) Result {
	crit := m.critique(ctx, out)
	m.record(crit)

	if crit.Passed {
		return Result{Critique: crit, Output: out}
	}

	rewritten, err := m.rewrite(ctx, out, crit)
	if err != nil {
		slog.Warn("rewrite failed, keeping original output", "agent", out.Agent, "error", err)
		crit.Escalate = true
		return Result{Critique: crit, Output: out}
	}

	second := m.critique(ctx, rewritten)
	if !second.Passed {
		second.Escalate = true
	}
	return Result{Critique: second, Output: rewritten}
}

// ReviewAll critiques outputs in order.
func (m *Manager) ReviewAll(ctx context.Context, outputs []*reasoner.AgentOutput) []Result {
	results := make([]Result, 0, len(outputs))
	for _, out := range outputs {
		results = append(results, m.Review(ctx, out))
	}
	return results
}

// Stats reports rolling critique statistics over the retained history.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.history) == 0 {
		return Stats{}
	}

	passed, issues := 0, 0
	for _, r := range m.history {
		if r.passed {
			passed++
		}
		issues += r.issues
	}

	recent := m.history
	if len(recent) > recentWindow {
		recent = recent[len(recent)-recentWindow:]
	}
	recentPassed := 0
	for _, r := range recent {
		if r.passed {
			recentPassed++
		}
	}

	return Stats{
		TotalCritiques: len(m.history),
		PassRate:       float64(passed) / float64(len(m.history)),
		AvgIssues:      float64(issues) / float64(len(m.history)),
		RecentPassRate: float64(recentPassed) / float64(len(recent)),
	}
}

// critique runs the tiered critics plus specialized checks over one output.
func (m *Manager) critique(ctx context.Context, out *reasoner.AgentOutput) *Critique {
	issues, edits, ok := m.structuredCritic(ctx, out)
	if !ok {
		var err error
		issues, edits, err = m.legacyCritic(ctx, out)
		if err != nil {
			// Critic entirely unavailable: treat as passed rather than
			// block the cycle on review machinery.
			slog.Warn("critic unavailable, passing output unreviewed", "agent", out.Agent, "error", err)
			return &Critique{Agent: out.Agent, Passed: true, CreatedAt: time.Now()}
		}
	}

	issues = append(issues, specializedIssues(out)...)

	crit := &Critique{
		Agent:            out.Agent,
		Passed:           m.verdict(issues),
		Issues:           issues,
		SuggestedEdits:   edits,
		ConfidenceImpact: confidenceImpact(issues, edits),
		CreatedAt:        time.Now(),
	}
	return crit
}

// verdict decides pass/fail: no issues, or only minor ones, passes. A
// configured max_allowed_issues bound overrides that rule.
func (m *Manager) verdict(issues []string) bool {
	m.mu.Lock()
	maxAllowed := m.maxAllowedIssues
	m.mu.Unlock()

	if maxAllowed != nil {
		return len(issues) <= *maxAllowed
	}
	if len(issues) == 0 {
		return true
	}
	for _, issue := range issues {
		if !strings.Contains(strings.ToLower(issue), "minor") {
			return false
		}
	}
	return true
}

// structuredCritic asks for a strict JSON verdict. ok is false when the
// call or the parse fails and the legacy critic should run.
func (m *Manager) structuredCritic(ctx context.Context, out *reasoner.AgentOutput) (issues, edits []string, ok bool) {
	draft, _ := json.Marshal(out.TextDraft)
	trace, _ := json.Marshal(out.ReasoningTrace)

	prompt := fmt.Sprintf(`You are an automated critic. Input: AGENT_OUTPUT (JSON) and CONTEXT.
Return JSON strictly in this schema:
{"pass": true|false, "issues": ["short reason"], "suggested_edits": ["exact sentences to remove/replace or rewrite instructions"]}
Focus on: unsupported factual claims, inconsistency between reasoning trace and conclusion, overconfident language, format compliance.

AGENT_OUTPUT:
{
  "agent": %q,
  "textDraft": %s,
  "reasoningTrace": %s,
  "confidence": %.2f
}`, out.Agent, draft, trace, out.Confidence)

	resp, err := m.gateway.Generate(ctx, &llm.Request{Prompt: prompt, ForceJSON: true})
	if err != nil {
		return nil, nil, false
	}

	start := strings.Index(resp.Text, "{")
	end := strings.LastIndex(resp.Text, "}")
	if start < 0 || end <= start {
		return nil, nil, false
	}

	var parsed struct {
		Pass           bool     `json:"pass"`
		Issues         []string `json:"issues"`
		SuggestedEdits []string `json:"suggested_edits"`
	}
	if err := json.Unmarshal([]byte(resp.Text[start:end+1]), &parsed); err != nil {
		return nil, nil, false
	}
	return parsed.Issues, parsed.SuggestedEdits, true
}

// legacyCritic prompts for labeled ISSUES / SUGGESTED_EDITS sections and
// falls back to scanning sentences for problem keywords.
func (m *Manager) legacyCritic(ctx context.Context, out *reasoner.AgentOutput) (issues, edits []string, err error) {
	var traceLines strings.Builder
	for _, step := range out.ReasoningTrace {
		fmt.Fprintf(&traceLines, "- %s\n", step)
	}

	prompt := fmt.Sprintf(`You are a quality control expert for %s reasoning. Critique the following output for quality issues: contradictions, vague statements, missing evidence, logical fallacies, inappropriate tone, missing considerations, and overconfidence or underconfidence.

If no significant issues are found, respond with "No significant issues found."

Output format:
ISSUES:
- [Issue]: [Description] - [Suggestion]

SUGGESTED_EDITS:
- [Edit]

AGENT OUTPUT TO CRITIQUE:
Agent: %s
Confidence: %.2f
Response: %s

Reasoning Trace:
%s
Citations: %d
Memory Hits: %d

Please provide your critique:`,
		out.Agent, out.Agent, out.Confidence, out.TextDraft, traceLines.String(), len(out.Citations), len(out.MemoryHits))

	resp, err := m.gateway.Generate(ctx, &llm.Request{Prompt: prompt})
	if err != nil {
		return nil, nil, fmt.Errorf("legacy critic: %w", err)
	}

	issues, edits = parseCritiqueSections(resp.Text)
	return issues, edits, nil
}

// parseCritiqueSections reads the labeled critique format; when neither
// section is present it harvests sentences that mention problems.
func parseCritiqueSections(text string) (issues, edits []string) {
	section := ""
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		upper := strings.ToUpper(line)
		switch {
		case strings.HasPrefix(upper, "ISSUES:"):
			section = "issues"
		case strings.HasPrefix(upper, "SUGGESTED_EDITS:"):
			section = "edits"
		case strings.HasPrefix(line, "- "):
			content := strings.TrimSpace(line[2:])
			if content == "" {
				continue
			}
			switch section {
			case "issues":
				issues = append(issues, content)
			case "edits":
				edits = append(edits, content)
			}
		}
	}

	if len(issues) == 0 && len(edits) == 0 && !strings.Contains(strings.ToLower(text), "no significant issues") {
		for _, sentence := range strings.Split(text, ".") {
			sentence = strings.TrimSpace(sentence)
			if sentence == "" {
				continue
			}
			lower := strings.ToLower(sentence)
			for _, w := range heuristicIssueWords {
				if strings.Contains(lower, w) {
					issues = append(issues, sentence)
					break
				}
			}
		}
	}
	return issues, edits
}

// specializedIssues applies the agent's focus criteria: every focus area
// must surface in the draft (directly or through related keywords), and the
// draft needs at least two terms from the agent's vocabulary.
func specializedIssues(out *reasoner.AgentOutput) []string {
	focus := reasoner.FocusFor(out.Agent)
	keywords, ok := specializedKeywords[out.Agent]
	if !ok {
		focus, keywords = fallbackFocus, fallbackKeywords
	}

	text := strings.ToLower(out.TextDraft)
	var issues []string

	keywordHit := false
	for _, k := range keywords {
		if strings.Contains(text, k) {
			keywordHit = true
			break
		}
	}
	for _, f := range focus {
		if !strings.Contains(text, f) && !keywordHit {
			issues = append(issues, fmt.Sprintf("Missing %s considerations", f))
		}
	}

	keywordCount := 0
	for _, k := range keywords {
		if strings.Contains(text, k) {
			keywordCount++
		}
	}
	if keywordCount < minFocusKeywords {
		issues = append(issues, fmt.Sprintf("Insufficient %s perspective (only %d relevant terms)", out.Agent, keywordCount))
	}
	return issues
}

// confidenceImpact weighs issues by severity keyword and credits suggested
// edits. Bounded to [-0.5, 0.5].
func confidenceImpact(issues, edits []string) float64 {
	if len(issues) == 0 {
		return 0
	}

	high, medium, low := 0, 0, 0
	for _, issue := range issues {
		lower := strings.ToLower(issue)
		if containsAny(lower, highSeverityWords) {
			high++
		}
		if containsAny(lower, mediumSeverityWords) {
			medium++
		}
		if containsAny(lower, lowSeverityWords) {
			low++
		}
	}

	impact := -(float64(high)*0.3 + float64(medium)*0.15 + float64(low)*0.05)
	impact += float64(len(edits)) * 0.05
	return max(-0.5, min(0.5, impact))
}

// rewrite asks the gateway to address the critique and builds the improved
// output: slightly higher confidence, next iteration, citations carried.
func (m *Manager) rewrite(ctx context.Context, out *reasoner.AgentOutput, crit *Critique) (*reasoner.AgentOutput, error) {
	var issueLines, editLines strings.Builder
	for _, issue := range crit.Issues {
		fmt.Fprintf(&issueLines, "- %s\n", issue)
	}
	for _, edit := range crit.SuggestedEdits {
		fmt.Fprintf(&editLines, "- %s\n", edit)
	}

	prompt := fmt.Sprintf(`You are a %s reasoning expert. Rewrite the following output to address the critique issues while maintaining the core message and improving quality. Provide a complete, improved version of the response.

ORIGINAL OUTPUT:
%s

CRITIQUE ISSUES:
%s
SUGGESTED EDITS:
%s
Please provide the improved version:`,
		out.Agent, out.TextDraft, issueLines.String(), editLines.String())

	resp, err := m.gateway.Generate(ctx, &llm.Request{Prompt: prompt})
	if err != nil {
		return nil, fmt.Errorf("rewrite: %w", err)
	}

	rewritten := &reasoner.AgentOutput{
		Agent:               out.Agent,
		TextDraft:           resp.Text,
		ReasoningTrace:      reasoner.ExtractTrace(resp.Text, 0),
		Confidence:          min(1.0, out.Confidence+0.1),
		ConfidenceRationale: out.ConfidenceRationale,
		Citations:           out.Citations,
		MemoryHits:          out.MemoryHits,
		Iteration:           out.Iteration + 1,
		CreatedAt:           time.Now(),
	}
	reasoner.Sanitize(rewritten)
	return rewritten, nil
}

func (m *Manager) record(crit *Critique) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = append(m.history, record{passed: crit.Passed, issues: len(crit.Issues)})
	if len(m.history) > historyLimit {
		m.history = m.history[len(m.history)-historyLimit:]
	}
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
