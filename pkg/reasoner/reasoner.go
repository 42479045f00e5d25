// Package reasoner implements the local reasoner suite: six specialist
// agents that each produce a candidate micro-answer for a query.
//
// Every reasoner follows the same path — build a role-specific prompt from
// the context bundle, call the language gateway, extract a reasoning trace,
// score confidence, and collect citations and memory hits. Reasoners run
// concurrently under a bounded worker pool; a failed reasoner degrades to a
// zero-confidence output instead of failing the cycle.
package reasoner

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/cortexkit/cortex/pkg/llm"
	"github.com/cortexkit/cortex/pkg/neuromod"
	"github.com/cortexkit/cortex/pkg/perception"
)

// AgentType identifies one reasoning specialist.
type AgentType string

const (
	Logical   AgentType = "logical"
	Emotional AgentType = "emotional"
	Creative  AgentType = "creative"
	Strategic AgentType = "strategic"
	Verifier  AgentType = "verifier"
	Arbiter   AgentType = "arbiter"
)

// Types lists every agent type in dispatch order.
var Types = []AgentType{Logical, Emotional, Creative, Strategic, Verifier, Arbiter}

const (
	defaultConfidenceThreshold = 0.3
	defaultMaxReasoningSteps   = 5
	maxCitations               = 5
	maxMemoryHits              = 5
	memoryHitMinOverlap        = 3
	snippetLimit               = 100
)

// Citation points at a source referenced by a draft.
type Citation struct {
	Source string  `json:"source"`
	Score  float64 `json:"score"`
	Type   string  `json:"type"`
}

// MemoryHit links a draft back to a retrieved memory.
type MemoryHit struct {
	ID      string  `json:"id"`
	Score   float64 `json:"score"`
	Kind    string  `json:"kind"`
	Snippet string  `json:"snippet"`
}

// ContextBundle is the preprocessed input shared by all reasoners in a
// cycle: the percept plus retrieved memories, classifier labels, and the
// user's working-memory entries.
type ContextBundle struct {
	Percept          *perception.Percept    `json:"percept"`
	Memories         map[string][]MemoryHit `json:"memories,omitempty"`
	Labels           []string               `json:"labels,omitempty"`
	LabelConfidences map[string]float64     `json:"label_confidences,omitempty"`
	ReasoningDepth   string                 `json:"reasoning_depth"`
	WorkingMemory    []string               `json:"working_memory,omitempty"`
}

// AgentOutput is one reasoner's candidate answer.
type AgentOutput struct {
	Agent               AgentType      `json:"agent"`
	TextDraft           string         `json:"text_draft"`
	ReasoningTrace      []string       `json:"reasoning_trace"`
	Confidence          float64        `json:"confidence"`
	ConfidenceRationale string         `json:"confidence_rationale"`
	Citations           []Citation     `json:"citations,omitempty"`
	MemoryHits          []MemoryHit    `json:"memory_hits,omitempty"`
	Iteration           int            `json:"iteration"`
	Metadata            map[string]any `json:"metadata,omitempty"`
	CreatedAt           time.Time      `json:"created_at"`
}

// SetMeta attaches a metadata entry, allocating the map on first use.
func (o *AgentOutput) SetMeta(key string, value any) {
	if o.Metadata == nil {
		o.Metadata = make(map[string]any)
	}
	o.Metadata[key] = value
}

// profile fixes the persona of one agent type.
type profile struct {
	role    string
	mission string
	focus   []string
}

var profiles = map[AgentType]profile{
	Logical: {
		role:    "Logical Analysis Expert",
		mission: "provide systematic, evidence-based analysis",
		focus:   []string{"logical consistency", "evidence quality", "reasoning validity"},
	},
	Emotional: {
		role:    "Emotional Intelligence Specialist",
		mission: "understand and address the emotional dimension and human impact",
		focus:   []string{"empathy", "emotional intelligence", "human impact"},
	},
	Creative: {
		role:    "Creative Innovation Expert",
		mission: "generate novel, imaginative directions",
		focus:   []string{"originality", "innovation", "imagination"},
	},
	Strategic: {
		role:    "Strategic Planning Specialist",
		mission: "think long-term about plans, resources and tradeoffs",
		focus:   []string{"long-term thinking", "resource optimization", "risk"},
	},
	Verifier: {
		role:    "Fact-Checking and Verification Expert",
		mission: "validate claims and ensure accuracy",
		focus:   []string{"factual accuracy", "source verification", "evidence quality"},
	},
	Arbiter: {
		role:    "Conflict Resolution and Arbitration Expert",
		mission: "reconcile conflicting perspectives into a fair synthesis",
		focus:   []string{"fairness", "balance", "conflict resolution"},
	},
}

// FocusFor returns the focus list used to judge an agent's output. Unknown
// types get an empty list.
func FocusFor(t AgentType) []string {
	return profiles[t].focus
}

// RoleFor returns the persona string of an agent type.
func RoleFor(t AgentType) string {
	return profiles[t].role
}

var (
	confidenceTokenPattern = regexp.MustCompile(`\b0\.\d+\b`)
	numberedStepPattern    = regexp.MustCompile(`^\d+[\.)]\s`)

	citationPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\[(\d+)\]`),
		regexp.MustCompile(`\(([^)]+)\)`),
		regexp.MustCompile(`(?i)according to ([^,.]+)`),
		regexp.MustCompile(`(?i)as stated in ([^,.]+)`),
		regexp.MustCompile(`(?i)research shows ([^,.]+)`),
	}

	uncertaintyWords = []string{"maybe", "perhaps", "might", "could", "unclear", "not sure", "possibly"}
	certaintyWords   = []string{"definitely", "certainly", "sure", "clearly", "obviously", "confident"}
)

// Reasoner is one specialist agent.
type Reasoner struct {
	agentType AgentType
	profile   profile
	gateway   llm.Provider
	maxSteps  int
	threshold float64
}

// New builds a reasoner of the given type backed by the language gateway.
func New(t AgentType, gateway llm.Provider) (*Reasoner, error) {
	p, ok := profiles[t]
	if !ok {
		return nil, fmt.Errorf("unknown agent type: %s", t)
	}
	return &Reasoner{
		agentType: t,
		profile:   p,
		gateway:   gateway,
		maxSteps:  defaultMaxReasoningSteps,
		threshold: defaultConfidenceThreshold,
	}, nil
}

// Type returns the agent type.
func (r *Reasoner) Type() AgentType { return r.agentType }

// Run produces this reasoner's candidate answer for the bundle. Modulation
// biases confidence scoring and sampling temperature; a nil modulation
// leaves both neutral.
func (r *Reasoner) Run(ctx context.Context, bundle *ContextBundle, mod neuromod.Modulation) (*AgentOutput, error) {
	prompt := r.buildPrompt(bundle, mod)

	req := &llm.Request{
		Prompt:      prompt,
		Temperature: modValue(mod, "temperature", 0.7),
	}
	resp, err := r.gateway.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%s reasoner: %w", r.agentType, err)
	}

	trace := r.extractTrace(resp.Text)
	out := &AgentOutput{
		Agent:               r.agentType,
		TextDraft:           resp.Text,
		ReasoningTrace:      trace,
		Confidence:          r.scoreConfidence(resp.Text, trace, mod),
		ConfidenceRationale: buildRationale(trace, mod),
		Citations:           extractCitations(resp.Text),
		MemoryHits:          matchMemoryHits(resp.Text, bundle),
		CreatedAt:           time.Now(),
	}
	Sanitize(out)
	return out, nil
}

// buildPrompt renders the role persona, query, and context into one prompt.
func (r *Reasoner) buildPrompt(bundle *ContextBundle, mod neuromod.Modulation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a %s. Your role is to %s.\n\nFocus on:\n", strings.ToLower(r.profile.role), r.profile.mission)
	for _, f := range r.profile.focus {
		fmt.Fprintf(&b, "- %s\n", f)
	}

	fmt.Fprintf(&b, "\nRole: %s\nQuery: %s\n", r.profile.role, bundle.Percept.RawText)

	b.WriteString("\nContext:\n")
	fmt.Fprintf(&b, "- Modality: %s\n", bundle.Percept.Modality)
	fmt.Fprintf(&b, "- Reasoning Depth: %s\n", bundle.ReasoningDepth)
	fmt.Fprintf(&b, "- Labels: %s\n", strings.Join(bundle.Labels, ", "))
	fmt.Fprintf(&b, "- Memory Context: %s\n", summarizeMemories(bundle.Memories))
	if len(bundle.WorkingMemory) > 0 {
		fmt.Fprintf(&b, "- Working Memory: %s\n", strings.Join(bundle.WorkingMemory, " | "))
	}

	b.WriteString("\nInstructions:\n")
	fmt.Fprintf(&b, "- Provide a clear, focused response from your %s perspective\n", strings.ToLower(r.profile.role))
	b.WriteString("- Show your reasoning steps clearly\n")
	b.WriteString("- Be confident but acknowledge uncertainty when appropriate\n")
	fmt.Fprintf(&b, "- Confidence level should be: %.2f\n", modValue(mod, "confidence", 1.0))
	fmt.Fprintf(&b, "- Temperature for creativity: %.2f\n", modValue(mod, "temperature", 0.7))
	b.WriteString("\nResponse:")
	return b.String()
}

func (r *Reasoner) extractTrace(text string) []string {
	return ExtractTrace(text, r.maxSteps)
}

// ExtractTrace pulls reasoning steps out of a draft: numbered or bulleted
// lines and lines that mention steps or reasoning. When none are present
// the draft is split into sentences instead. Capped at maxSteps.
func ExtractTrace(text string, maxSteps int) []string {
	if maxSteps < 1 {
		maxSteps = defaultMaxReasoningSteps
	}

	var steps []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)
		if numberedStepPattern.MatchString(line) ||
			strings.HasPrefix(line, "-") || strings.HasPrefix(line, "*") || strings.HasPrefix(line, "•") ||
			strings.Contains(lower, "step") || strings.Contains(lower, "reasoning") {
			steps = append(steps, line)
		}
	}

	if len(steps) == 0 {
		for _, sentence := range strings.Split(text, ".") {
			sentence = strings.TrimSpace(sentence)
			if sentence == "" {
				continue
			}
			steps = append(steps, sentence+".")
			if len(steps) == maxSteps {
				break
			}
		}
	}

	if len(steps) > maxSteps {
		steps = steps[:maxSteps]
	}
	return steps
}

// scoreConfidence combines length, trace depth, and hedging/certainty
// language into one score, then applies the neuromodulated confidence
// factor. Stays within [0, 1].
func (r *Reasoner) scoreConfidence(text string, trace []string, mod neuromod.Modulation) float64 {
	lower := strings.ToLower(text)

	lengthFactor := min(float64(len(text))/500.0, 1.0)
	traceFactor := min(float64(len(trace))/3.0, 1.0)

	uncertaintyHits := 0
	for _, w := range uncertaintyWords {
		if strings.Contains(lower, w) {
			uncertaintyHits++
		}
	}
	uncertaintyFactor := max(0.0, 1.0-float64(uncertaintyHits)*0.1)

	certaintyHits := 0
	for _, w := range certaintyWords {
		if strings.Contains(lower, w) {
			certaintyHits++
		}
	}
	certaintyFactor := min(1.0, 1.0+float64(certaintyHits)*0.05)

	confidence := (0.5 + lengthFactor + traceFactor + uncertaintyFactor + certaintyFactor) / 5.0
	confidence *= modValue(mod, "confidence", 1.0)
	return max(0.0, min(1.0, confidence))
}

// buildRationale explains the confidence score in words, never numbers.
func buildRationale(trace []string, mod neuromod.Modulation) string {
	var reasons []string
	if len(trace) > 0 {
		reasons = append(reasons, fmt.Sprintf("%d reasoning steps", len(trace)))
	}
	if mod["attention_factor"] != 0 {
		reasons = append(reasons, "heightened attention")
	}
	if mod["explore_factor"] > 1.0 {
		reasons = append(reasons, "some exploration")
	}
	if len(reasons) == 0 {
		reasons = append(reasons, "balanced assessment")
	}
	return strings.Join(reasons, ", ") + "."
}

// extractCitations finds referenced sources: bracketed numbers,
// parentheticals, and attribution phrases.
func extractCitations(text string) []Citation {
	var citations []Citation
	for _, pattern := range citationPatterns {
		for _, match := range pattern.FindAllStringSubmatch(text, -1) {
			citations = append(citations, Citation{
				Source: strings.TrimSpace(match[1]),
				Score:  0.8,
				Type:   "text_reference",
			})
			if len(citations) == maxCitations {
				return citations
			}
		}
	}
	return citations
}

// matchMemoryHits keeps the provided memories the draft actually drew on,
// measured by word overlap. A hit needs at least memoryHitMinOverlap shared
// words; its score grows with the overlap.
func matchMemoryHits(text string, bundle *ContextBundle) []MemoryHit {
	if bundle == nil || len(bundle.Memories) == 0 {
		return nil
	}
	responseWords := wordSet(text)

	var hits []MemoryHit
	for _, kind := range sortedKinds(bundle.Memories) {
		for _, m := range bundle.Memories[kind] {
			memText := strings.ToLower(m.Snippet)
			overlap := 0
			for w := range wordSet(memText) {
				if responseWords[w] {
					overlap++
				}
			}
			if overlap < memoryHitMinOverlap {
				continue
			}
			snippet := memText
			if len(snippet) > snippetLimit {
				snippet = snippet[:snippetLimit] + "..."
			}
			hits = append(hits, MemoryHit{
				ID:      m.ID,
				Score:   min(float64(overlap)/10.0, 1.0),
				Kind:    kind,
				Snippet: snippet,
			})
			if len(hits) == maxMemoryHits {
				return hits
			}
		}
	}
	return hits
}

// summarizeMemories compresses the memory map into a short prompt line.
func summarizeMemories(memories map[string][]MemoryHit) string {
	if len(memories) == 0 {
		return "No relevant memories found."
	}
	var parts []string
	for _, kind := range sortedKinds(memories) {
		if n := len(memories[kind]); n > 0 {
			parts = append(parts, fmt.Sprintf("%s: %d items", capitalize(kind), n))
		}
	}
	if len(parts) == 0 {
		return "No relevant memories found."
	}
	return strings.Join(parts, "; ")
}

func sortedKinds(memories map[string][]MemoryHit) []string {
	kinds := make([]string, 0, len(memories))
	for kind := range memories {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// Sanitize enforces draft policy: bare decimal confidence tokens are
// replaced so numeric scores never leak into prose, and the rationale is
// never left empty.
func Sanitize(out *AgentOutput) {
	out.TextDraft = confidenceTokenPattern.ReplaceAllString(out.TextDraft, "[confidence elided]")
	if out.ConfidenceRationale == "" {
		out.ConfidenceRationale = "balanced assessment."
	}
}

func modValue(mod neuromod.Modulation, key string, fallback float64) float64 {
	if v, ok := mod[key]; ok {
		return v
	}
	return fallback
}

func wordSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		set[w] = true
	}
	return set
}
