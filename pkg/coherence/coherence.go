// Package coherence cross-checks reasoner outputs before synthesis. It
// extracts the key claims each agent makes, detects pairwise conflicts
// (contradiction, inconsistency, missing evidence), asks the language
// gateway for targeted resolutions, and reduces everything to a single
// coherence score the orchestrator gates on.
package coherence

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/cortexkit/cortex/pkg/llm"
	"github.com/cortexkit/cortex/pkg/reasoner"
)

// Conflict types.
const (
	TypeContradiction   = "contradiction"
	TypeInconsistency   = "inconsistency"
	TypeMissingEvidence = "missing_evidence"
)

// Claim-graph edge relations.
const (
	RelationNegates   = "negates"
	RelationQualifies = "qualifies"
	RelationEvidences = "evidences"
)

const (
	// DefaultThreshold is the coherence bar below which a cycle is
	// considered conflicted.
	DefaultThreshold = 0.85

	maxClaims    = 5
	minClaimLen  = 4 // words
	historyLimit = 1000
	recentWindow = 100
)

// Ticket describes one detected conflict between two agents.
type Ticket struct {
	ID                  string               `json:"id"`
	ConflictingAgents   []reasoner.AgentType `json:"conflicting_agents"`
	Type                string               `json:"type"`
	Description         string               `json:"description"`
	Severity            float64              `json:"severity"`
	SuggestedResolution string               `json:"suggested_resolution"`
}

// Resolution is the gateway's answer to one conflict.
type Resolution struct {
	Type       string  `json:"type"`
	ConflictID string  `json:"conflict_id"`
	Resolution string  `json:"resolution"`
	Strategy   string  `json:"strategy"`
	Confidence float64 `json:"confidence"`
}

// Claim is a node in the claim graph: one declarative statement attributed
// to an agent.
type Claim struct {
	ID    string             `json:"id"`
	Agent reasoner.AgentType `json:"agent"`
	Text  string             `json:"text"`
}

// Edge relates two claims. Edges mirror detected conflicts, so future
// detectors can add relations without changing the graph shape.
type Edge struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Relation string `json:"relation"`
}

// Graph holds the claims of one analysis and their detected relations.
type Graph struct {
	Nodes []Claim `json:"nodes,omitempty"`
	Edges []Edge  `json:"edges,omitempty"`
}

// Analysis is the result of one coherence pass.
type Analysis struct {
	CoherenceScore float64       `json:"coherence_score"`
	Conflicts      []*Ticket     `json:"conflicts,omitempty"`
	Resolutions    []*Resolution `json:"resolutions,omitempty"`
	IsCoherent     bool          `json:"is_coherent"`
	Graph          *Graph        `json:"claim_graph,omitempty"`
	AnalyzedAt     time.Time     `json:"analyzed_at"`
}

// Stats summarizes analyses over the retained history.
type Stats struct {
	TotalAnalyses   int     `json:"total_analyses"`
	AvgCoherence    float64 `json:"avg_coherence"`
	ConflictRate    float64 `json:"conflict_rate"`
	RecentCoherence float64 `json:"recent_coherence"`
}

var negationPairs = [][2]string{
	{"is", "is not"}, {"are", "are not"}, {"can", "cannot"},
	{"will", "will not"}, {"should", "should not"}, {"must", "must not"},
}

var oppositePairs = [][2]string{
	{"good", "bad"}, {"right", "wrong"}, {"true", "false"},
	{"correct", "incorrect"}, {"valid", "invalid"}, {"success", "failure"},
}

var inconsistencyIndicators = []string{
	"however", "but", "although", "despite", "on the other hand",
	"conversely", "alternatively", "meanwhile", "in contrast",
}

// Engine detects and resolves conflicts across agent outputs.
type Engine struct {
	gateway   llm.Provider
	threshold float64

	mu      sync.Mutex
	history []analysisRecord
}

type analysisRecord struct {
	score     float64
	conflicts int
}

// NewEngine builds a coherence engine. A non-positive threshold falls back
// to DefaultThreshold.
func NewEngine(gateway llm.Provider, threshold float64) *Engine {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Engine{gateway: gateway, threshold: threshold}
}

// Threshold returns the coherence acceptance bar.
func (e *Engine) Threshold() float64 { return e.threshold }

// Analyze runs conflict detection and resolution over the outputs and
// scores overall coherence.
func (e *Engine) Analyze(ctx context.Context, outputs []*reasoner.AgentOutput) *Analysis {
	conflicts, graph := e.detect(outputs)
	score := e.score(outputs, conflicts)

	var resolutions []*Resolution
	for _, conflict := range conflicts {
		res, err := e.resolve(ctx, conflict, outputs)
		if err != nil {
			slog.Warn("conflict resolution failed", "conflict", conflict.ID, "error", err)
			continue
		}
		resolutions = append(resolutions, res)
	}

	e.record(score, len(conflicts))

	return &Analysis{
		CoherenceScore: score,
		Conflicts:      conflicts,
		Resolutions:    resolutions,
		IsCoherent:     score >= e.threshold,
		Graph:          graph,
		AnalyzedAt:     time.Now(),
	}
}

// Stats reports rolling analysis statistics.
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.history) == 0 {
		return Stats{}
	}

	var scoreSum float64
	conflicted := 0
	for _, r := range e.history {
		scoreSum += r.score
		if r.conflicts > 0 {
			conflicted++
		}
	}

	recent := e.history
	if len(recent) > recentWindow {
		recent = recent[len(recent)-recentWindow:]
	}
	var recentSum float64
	for _, r := range recent {
		recentSum += r.score
	}

	return Stats{
		TotalAnalyses:   len(e.history),
		AvgCoherence:    scoreSum / float64(len(e.history)),
		ConflictRate:    float64(conflicted) / float64(len(e.history)),
		RecentCoherence: recentSum / float64(len(recent)),
	}
}

// detect compares every pair of outputs from distinct agents and returns
// the first conflict found per pair, plus the claim graph.
func (e *Engine) detect(outputs []*reasoner.AgentOutput) ([]*Ticket, *Graph) {
	graph := &Graph{}
	claims := make([][]string, len(outputs))
	for i, out := range outputs {
		claims[i] = ExtractClaims(out.TextDraft)
		for c, text := range claims[i] {
			graph.Nodes = append(graph.Nodes, Claim{
				ID:    claimID(out.Agent, c),
				Agent: out.Agent,
				Text:  text,
			})
		}
	}

	var conflicts []*Ticket
	for i := 0; i < len(outputs); i++ {
		for j := i + 1; j < len(outputs); j++ {
			if outputs[i].Agent == outputs[j].Agent {
				continue
			}
			if t := e.compare(outputs[i], outputs[j], claims[i], claims[j], graph); t != nil {
				conflicts = append(conflicts, t)
			}
		}
	}
	return conflicts, graph
}

// compare checks one output pair, strongest conflict first.
func (e *Engine) compare(a, b *reasoner.AgentOutput, claimsA, claimsB []string, graph *Graph) *Ticket {
	if ca, cb, ok := findPair(claimsA, claimsB, areContradictory); ok {
		graph.Edges = append(graph.Edges, Edge{
			From:     claimID(a.Agent, ca),
			To:       claimID(b.Agent, cb),
			Relation: RelationNegates,
		})
		return &Ticket{
			ID:                  ticketID(TypeContradiction, a.Agent, b.Agent),
			ConflictingAgents:   []reasoner.AgentType{a.Agent, b.Agent},
			Type:                TypeContradiction,
			Description:         fmt.Sprintf("Contradiction between %s and %s", a.Agent, b.Agent),
			Severity:            0.8,
			SuggestedResolution: fmt.Sprintf("Reconcile conflicting claims: '%s' vs '%s'", claimsA[ca], claimsB[cb]),
		}
	}

	if ca, cb, ok := findPair(claimsA, claimsB, areInconsistent); ok {
		graph.Edges = append(graph.Edges, Edge{
			From:     claimID(a.Agent, ca),
			To:       claimID(b.Agent, cb),
			Relation: RelationQualifies,
		})
		return &Ticket{
			ID:                  ticketID(TypeInconsistency, a.Agent, b.Agent),
			ConflictingAgents:   []reasoner.AgentType{a.Agent, b.Agent},
			Type:                TypeInconsistency,
			Description:         fmt.Sprintf("Inconsistency between %s and %s", a.Agent, b.Agent),
			Severity:            0.6,
			SuggestedResolution: fmt.Sprintf("Clarify relationship between: '%s' and '%s'", claimsA[ca], claimsB[cb]),
		}
	}

	evidenceA, evidenceB := hasEvidence(a), hasEvidence(b)
	if evidenceA != evidenceB {
		lacking := b
		if evidenceB {
			lacking = a
		}
		if len(claimsA) > 0 && len(claimsB) > 0 {
			from, to := a, b
			if evidenceB {
				from, to = b, a
			}
			graph.Edges = append(graph.Edges, Edge{
				From:     claimID(from.Agent, 0),
				To:       claimID(to.Agent, 0),
				Relation: RelationEvidences,
			})
		}
		return &Ticket{
			ID:                  ticketID(TypeMissingEvidence, a.Agent, b.Agent),
			ConflictingAgents:   []reasoner.AgentType{a.Agent, b.Agent},
			Type:                TypeMissingEvidence,
			Description:         fmt.Sprintf("%s lacks supporting evidence", lacking.Agent),
			Severity:            0.4,
			SuggestedResolution: fmt.Sprintf("Provide evidence for %s claims", lacking.Agent),
		}
	}

	return nil
}

// resolve asks the gateway to settle one conflict with the strategy that
// matches its type.
func (e *Engine) resolve(ctx context.Context, conflict *Ticket, outputs []*reasoner.AgentOutput) (*Resolution, error) {
	involved := involvedOutputs(conflict, outputs)

	switch conflict.Type {
	case TypeContradiction:
		text, err := e.ask(ctx, arbitrationPrompt(conflict, involved))
		if err != nil {
			return nil, err
		}
		return &Resolution{
			Type:       "contradiction_resolution",
			ConflictID: conflict.ID,
			Resolution: text,
			Strategy:   "arbitration",
			Confidence: 0.7,
		}, nil

	case TypeInconsistency:
		text, err := e.ask(ctx, clarificationPrompt(conflict, involved))
		if err != nil {
			return nil, err
		}
		return &Resolution{
			Type:       "inconsistency_resolution",
			ConflictID: conflict.ID,
			Resolution: text,
			Strategy:   "clarification",
			Confidence: 0.8,
		}, nil

	case TypeMissingEvidence:
		var lacking *reasoner.AgentOutput
		for _, out := range involved {
			if !hasEvidence(out) {
				lacking = out
				break
			}
		}
		if lacking == nil {
			return &Resolution{Type: "no_resolution_needed", ConflictID: conflict.ID, Confidence: 1.0}, nil
		}
		text, err := e.ask(ctx, evidencePrompt(lacking))
		if err != nil {
			return nil, err
		}
		return &Resolution{
			Type:       "evidence_resolution",
			ConflictID: conflict.ID,
			Resolution: text,
			Strategy:   "evidence_generation",
			Confidence: 0.6,
		}, nil

	default:
		return &Resolution{
			Type:       "generic_resolution",
			ConflictID: conflict.ID,
			Resolution: fmt.Sprintf("Generic resolution for %s", conflict.Type),
			Strategy:   "generic",
			Confidence: 0.5,
		}, nil
	}
}

// score reduces confidences, conflicts, and evidence into one coherence
// number in [0, 1].
func (e *Engine) score(outputs []*reasoner.AgentOutput, conflicts []*Ticket) float64 {
	if len(outputs) == 0 {
		return 0
	}

	var confidenceSum float64
	evidenceBonus := 0.0
	for _, out := range outputs {
		confidenceSum += out.Confidence
		if hasEvidence(out) {
			evidenceBonus += 0.1
		}
	}

	penalty := 0.0
	for _, c := range conflicts {
		penalty += c.Severity * 0.2
	}

	score := confidenceSum/float64(len(outputs)) - penalty + evidenceBonus
	return max(0.0, min(1.0, score))
}

// ExtractClaims pulls the key declarative statements out of a draft:
// sentences of at least four words that are neither questions, exclamations,
// nor contrastive asides.
func ExtractClaims(text string) []string {
	var claims []string
	for _, sentence := range strings.Split(text, ".") {
		sentence = strings.TrimSpace(sentence)
		if sentence == "" {
			continue
		}
		if strings.HasPrefix(sentence, "?") || strings.HasPrefix(sentence, "!") {
			continue
		}
		lower := strings.ToLower(sentence)
		if strings.HasPrefix(lower, "however") || strings.HasPrefix(lower, "although") || strings.HasPrefix(lower, "despite") {
			continue
		}
		if len(strings.Fields(sentence)) < minClaimLen {
			continue
		}
		claims = append(claims, sentence)
		if len(claims) == maxClaims {
			break
		}
	}
	return claims
}

func areContradictory(a, b string) bool {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	for _, pair := range negationPairs {
		if strings.Contains(la, pair[0]) && strings.Contains(lb, pair[1]) {
			return true
		}
		if strings.Contains(lb, pair[0]) && strings.Contains(la, pair[1]) {
			return true
		}
	}
	for _, pair := range oppositePairs {
		if strings.Contains(la, pair[0]) && strings.Contains(lb, pair[1]) {
			return true
		}
		if strings.Contains(lb, pair[0]) && strings.Contains(la, pair[1]) {
			return true
		}
	}
	return false
}

func areInconsistent(a, b string) bool {
	la, lb := strings.ToLower(a), strings.ToLower(b)
	for _, indicator := range inconsistencyIndicators {
		if strings.Contains(la, indicator) || strings.Contains(lb, indicator) {
			return true
		}
	}
	return false
}

func findPair(claimsA, claimsB []string, match func(a, b string) bool) (int, int, bool) {
	for i, ca := range claimsA {
		for j, cb := range claimsB {
			if match(ca, cb) {
				return i, j, true
			}
		}
	}
	return 0, 0, false
}

func hasEvidence(out *reasoner.AgentOutput) bool {
	return len(out.Citations) > 0 || len(out.MemoryHits) > 0
}

func involvedOutputs(conflict *Ticket, outputs []*reasoner.AgentOutput) []*reasoner.AgentOutput {
	var involved []*reasoner.AgentOutput
	for _, out := range outputs {
		for _, agent := range conflict.ConflictingAgents {
			if out.Agent == agent {
				involved = append(involved, out)
				break
			}
		}
	}
	return involved
}

func (e *Engine) ask(ctx context.Context, prompt string) (string, error) {
	resp, err := e.gateway.Generate(ctx, &llm.Request{Prompt: prompt})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

func (e *Engine) record(score float64, conflicts int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.history = append(e.history, analysisRecord{score: score, conflicts: conflicts})
	if len(e.history) > historyLimit {
		e.history = e.history[len(e.history)-historyLimit:]
	}
}

func claimID(agent reasoner.AgentType, index int) string {
	return fmt.Sprintf("%s#%d", agent, index)
}

func ticketID(conflictType string, a, b reasoner.AgentType) string {
	return fmt.Sprintf("%s_%s_%s_%d", conflictType, a, b, time.Now().UnixNano())
}

func arbitrationPrompt(conflict *Ticket, outputs []*reasoner.AgentOutput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are an arbitration expert. Resolve the following contradiction between different perspectives.\n\nConflict: %s\n\nConflicting outputs:\n", conflict.Description)
	for _, out := range outputs {
		fmt.Fprintf(&b, "%s: %s\n", out.Agent, out.TextDraft)
	}
	b.WriteString(`
Resolution approach:
1. Identify the core disagreement
2. Find common ground or shared principles
3. Propose a balanced resolution that acknowledges both perspectives
4. Provide a synthesized response that addresses the contradiction

Synthesized resolution:`)
	return b.String()
}

func clarificationPrompt(conflict *Ticket, outputs []*reasoner.AgentOutput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a clarification expert. Resolve the following inconsistency between different perspectives.\n\nInconsistency: %s\n\nConflicting outputs:\n", conflict.Description)
	for _, out := range outputs {
		fmt.Fprintf(&b, "%s: %s\n", out.Agent, out.TextDraft)
	}
	b.WriteString(`
Resolution approach:
1. Identify the specific inconsistency
2. Clarify the relationship between the perspectives
3. Show how they can coexist or complement each other
4. Provide a clear, consistent synthesis

Clarified synthesis:`)
	return b.String()
}

func evidencePrompt(lacking *reasoner.AgentOutput) string {
	return fmt.Sprintf(`You are an evidence generation expert. Help strengthen the following claim with supporting evidence.

Claim needing evidence: %s
Agent: %s

Evidence generation approach:
1. Identify the key claims that need support
2. Suggest specific types of evidence that would strengthen the argument
3. Provide reasoning for why this evidence would be valuable
4. Suggest how to find or generate this evidence

Evidence suggestions:`, lacking.TextDraft, lacking.Agent)
}
