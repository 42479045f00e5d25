package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/cortexkit/cortex/pkg/classifier"
	"github.com/cortexkit/cortex/pkg/coherence"
	"github.com/cortexkit/cortex/pkg/config"
	"github.com/cortexkit/cortex/pkg/critique"
	"github.com/cortexkit/cortex/pkg/gating"
	"github.com/cortexkit/cortex/pkg/llm"
	"github.com/cortexkit/cortex/pkg/memory"
	"github.com/cortexkit/cortex/pkg/neuromod"
	"github.com/cortexkit/cortex/pkg/observability"
	"github.com/cortexkit/cortex/pkg/perception"
	"github.com/cortexkit/cortex/pkg/reasoner"
	"github.com/cortexkit/cortex/pkg/workspace"
)

// ErrEmptyQuery rejects a cycle before any stage runs.
var ErrEmptyQuery = errors.New("query is empty")

const (
	// SpeculativeDisclaimer is carried verbatim by every speculative
	// item and into any synthesis that uses one.
	SpeculativeDisclaimer = "Speculative: low confidence content; treat cautiously."

	speculativeThreshold = 0.6
	earlyStopQuality     = 0.95
	fallbackAnswer       = "I could not produce a vetted answer for this query. Please rephrase or try again."

	baseConfidence = 0.7
)

var decimalTokenPattern = regexp.MustCompile(`\b0\.\d+\b`)

// labelAgents routes classifier labels to reasoner types. Factual queries
// go to the verifier, reflective ones to the arbiter.
var labelAgents = map[string]reasoner.AgentType{
	"logical":    reasoner.Logical,
	"emotional":  reasoner.Emotional,
	"strategic":  reasoner.Strategic,
	"creative":   reasoner.Creative,
	"factual":    reasoner.Verifier,
	"reflective": reasoner.Arbiter,
}

// Request is one query cycle's input.
type Request struct {
	Query string

	// Mode selects the loop depth profile. Empty uses the configured
	// default.
	Mode config.Mode

	// Iterations overrides the mode's loop depth when > 0. The engine's
	// max_iterations cap still applies.
	Iterations int

	UserID    string
	SessionID string

	// AllowMemoryWrite enables persistence of the cycle's outcome.
	AllowMemoryWrite bool

	// OnIteration, when set, receives each iteration trace as it
	// completes.
	OnIteration func(IterationTrace)

	// OnToken, when set, streams synthesis tokens as they arrive.
	OnToken func(agent, token string)
}

// IterationTrace records one reasoning iteration for the response.
type IterationTrace struct {
	Iteration        int      `json:"iteration"`
	Agents           []string `json:"agents"`
	Broadcast        int      `json:"broadcast"`
	Quarantined      int      `json:"quarantined"`
	Conflicts        int      `json:"conflicts"`
	CoherenceScore   float64  `json:"coherence_score"`
	CritiquePassRate float64  `json:"critique_pass_rate"`
	Quality          float64  `json:"quality"`
	DurationMS       int64    `json:"duration_ms"`
}

// Result is the vetted outcome of one cycle.
type Result struct {
	FinalAnswer    string                   `json:"final_answer"`
	IterationTrace []IterationTrace         `json:"iteration_trace"`
	QualityScore   float64                  `json:"quality_score"`
	Coherence      *coherence.Analysis      `json:"coherence,omitempty"`
	Quarantine     []gating.QuarantinedItem `json:"quarantine"`
	MetaReport     map[string]any           `json:"meta_report"`
	Labels         []string                 `json:"labels,omitempty"`
	Mode           config.Mode              `json:"mode"`
	SessionID      string                   `json:"session_id,omitempty"`
	DurationMS     int64                    `json:"duration_ms"`
}

// Process runs one full cognitive cycle. Component failures degrade the
// result instead of aborting it; only invalid input, configuration
// problems, and context cancellation return errors. Cancellation is
// honored between stages and at iteration boundaries; reasoners already
// dispatched finish, but their outputs are discarded.
func (e *Engine) Process(ctx context.Context, req *Request) (*Result, error) {
	start := time.Now()
	if req == nil {
		return nil, errors.New("request is required")
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	mode := req.Mode
	if mode == "" {
		mode = e.cfg.Engine.DefaultMode
	}
	loopDepth, ok := config.ModeLoopDepth[mode]
	if !ok {
		return nil, fmt.Errorf("invalid mode %q (valid: concise, detailed, creative, analytical)", mode)
	}
	if req.Iterations > 0 {
		loopDepth = req.Iterations
	}
	if loopDepth > e.cfg.Engine.MaxIterations {
		loopDepth = e.cfg.Engine.MaxIterations
	}

	metrics := e.obs.GetMetrics()

	// Quarantine is scoped to one cycle.
	e.gate.ClearQuarantine()

	// Stage 1: perception and pre-context. The preprocessor appends the
	// query and its retrieved snippets to the working-memory ring.
	percept, err := e.adapter.Process(ctx, query, perception.Metadata{
		SessionID: req.SessionID,
		UserID:    req.UserID,
	})
	if err != nil {
		return nil, fmt.Errorf("perception failed: %w", err)
	}
	features := perception.ExtractIntentFeatures(percept)
	preCtx := e.pre.Preprocess(ctx, req.UserID, query)

	memories, memoryContext := e.retrieveMemories(ctx, query, metrics)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Stage 2: classification.
	sq := e.classify.Classify(ctx, query, memoryContext, req.UserID)
	depth := resolveDepth(sq, features)

	// Stage 3: agent selection.
	selected := e.selectAgents(sq, depth == "deep")
	reasoners, err := reasoner.ForTypes(e.gateway, selected)
	if err != nil {
		return nil, fmt.Errorf("failed to build reasoners: %w", err)
	}

	bundle := &reasoner.ContextBundle{
		Percept:          percept,
		Memories:         memories,
		Labels:           sq.Labels,
		LabelConfidences: sq.LabelConfidences,
		ReasoningDepth:   depth,
		WorkingMemory:    preCtx.WorkingMemory,
	}

	baseTemp := 0.7
	if e.cfg.LLM.Temperature != nil {
		baseTemp = *e.cfg.LLM.Temperature
	}
	modulate := func(t reasoner.AgentType) neuromod.Modulation {
		return e.neuro.ModulateAgentBehavior(string(t), baseConfidence, baseTemp)
	}

	agentNames := make([]string, len(selected))
	for i, t := range selected {
		agentNames[i] = string(t)
	}

	// Stage 4: the reasoning loop.
	var (
		traces       []IterationTrace
		gatedItems   []*workspace.BroadcastItem
		lastAnalysis *coherence.Analysis
		quality      float64
		escalated    bool
	)

	for iter := 0; iter < loopDepth; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		iterStart := time.Now()

		outputs := reasoner.Dispatch(ctx, reasoners, bundle, modulate, e.cfg.Engine.MaxConcurrentAgents)
		if err := ctx.Err(); err != nil {
			// The cycle was cancelled while reasoners were in flight;
			// their outputs are discarded.
			return nil, err
		}
		dispatchDur := time.Since(iterStart)
		for _, out := range outputs {
			metrics.RecordReasonerRun(ctx, string(out.Agent), dispatchDur, degradedError(out))
		}

		var results []critique.Result
		passRate := 1.0
		if e.cfg.Engine.ReflectionEnabled() {
			results = e.critic.ReviewAll(ctx, outputs)
			passed := 0
			for i, res := range results {
				outputs[i] = res.Output
				if res.Critique.Passed {
					passed++
				}
				if res.Critique.Escalate {
					escalated = true
				}
			}
			if len(results) > 0 {
				passRate = float64(passed) / float64(len(results))
			}
		}

		analysis := e.coherer.Analyze(ctx, outputs)
		lastAnalysis = analysis
		metrics.RecordCoherenceScore(ctx, analysis.CoherenceScore)
		attachResolutions(analysis, outputs)

		candidates := e.buildCandidates(outputs, results, iter)
		admitted := e.gate.EvaluateCandidates(candidates, gating.Context{
			Neuromod:    e.neuro.State(),
			QueryIntent: sq.Labels,
		})
		for i := 0; i < len(candidates)-len(admitted); i++ {
			metrics.RecordGatingDecision(ctx, "rejected")
		}
		for _, item := range admitted {
			e.ws.BroadcastAndStore(item, true)
			gatedItems = append(gatedItems, item)
			metrics.RecordGatingDecision(ctx, "admitted")
			metrics.RecordBroadcast(ctx)
		}

		prevQuality := quality
		quality = cycleQuality(admitted, analysis.CoherenceScore, passRate)

		trace := IterationTrace{
			Iteration:        iter + 1,
			Agents:           agentNames,
			Broadcast:        len(admitted),
			Quarantined:      len(candidates) - len(admitted),
			Conflicts:        len(analysis.Conflicts),
			CoherenceScore:   analysis.CoherenceScore,
			CritiquePassRate: passRate,
			Quality:          quality,
			DurationMS:       time.Since(iterStart).Milliseconds(),
		}
		traces = append(traces, trace)
		if req.OnIteration != nil {
			req.OnIteration(trace)
		}

		if quality >= earlyStopQuality {
			break
		}
		if iter > 0 && len(admitted) == 0 && quality <= prevQuality {
			// Another pass has nothing new to admit.
			break
		}
	}

	coherent := lastAnalysis == nil || lastAnalysis.IsCoherent
	if e.cfg.Engine.RequireCoherent && !coherent {
		return nil, fmt.Errorf("workspace incoherent (score %.2f below threshold %.2f)",
			lastAnalysis.CoherenceScore, e.coherer.Threshold())
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Stage 5: synthesis from the gated material.
	answer, degraded := e.synthesize(ctx, query, gatedItems, mode, req.OnToken)

	// Stage 6: feedback.
	e.neuro.ProcessFeedback(neuromod.FeedbackSuccess, quality)
	if e.recordLabels(sq.Labels) {
		e.neuro.ProcessFeedback(neuromod.FeedbackNovelty, 0.5)
	}
	if lastAnalysis != nil && !lastAnalysis.IsCoherent {
		e.neuro.ProcessFeedback(neuromod.FeedbackUncertainty, 1-lastAnalysis.CoherenceScore)
	}
	for _, item := range gatedItems {
		e.gate.RecordFeedback(item.ID, quality >= 0.7)
	}

	// Stage 7: persistence.
	sessionID := req.SessionID
	if e.store != nil && req.AllowMemoryWrite {
		sessionID = e.persistCycle(ctx, req, query, answer, lastAnalysis, coherent, metrics)
	}

	quarantine := e.gate.Quarantine()
	if quarantine == nil {
		quarantine = []gating.QuarantinedItem{}
	}

	e.mu.Lock()
	e.cycles++
	e.mu.Unlock()

	return &Result{
		FinalAnswer:    answer,
		IterationTrace: traces,
		QualityScore:   quality,
		Coherence:      lastAnalysis,
		Quarantine:     quarantine,
		MetaReport:     e.metaReport(sq, depth, agentNames, len(traces), escalated, degraded),
		Labels:         sq.Labels,
		Mode:           mode,
		SessionID:      sessionID,
		DurationMS:     time.Since(start).Milliseconds(),
	}, nil
}

// retrieveMemories queries the store and shapes the hits for the bundle
// and the classifier prompt. Failures degrade to empty results.
func (e *Engine) retrieveMemories(ctx context.Context, query string, metrics observability.Metrics) (map[string][]reasoner.MemoryHit, string) {
	if e.store == nil {
		return nil, ""
	}
	hits, err := e.store.Retrieve(ctx, query, e.cfg.Memory.TopK)
	if err != nil {
		slog.Warn("Memory retrieval failed", "error", err)
		return nil, ""
	}
	metrics.RecordMemoryOperation(ctx, "retrieve")

	memories := make(map[string][]reasoner.MemoryHit)
	lines := make([]string, 0, len(hits))
	for _, h := range hits {
		kind := string(h.Kind)
		memories[kind] = append(memories[kind], reasoner.MemoryHit{
			ID:      h.MemoryID,
			Score:   h.Score,
			Kind:    kind,
			Snippet: h.ChunkText,
		})
		lines = append(lines, fmt.Sprintf("- [%s] %s", kind, h.ChunkText))
	}
	return memories, strings.Join(lines, "\n")
}

// resolveDepth turns the classifier's depth hint into shallow or deep.
// "auto" goes deep only on strong signals so routine queries stay cheap.
func resolveDepth(sq *classifier.StructuredQuery, features perception.IntentFeatures) string {
	switch sq.ReasoningDepth {
	case "deep", "shallow":
		return sq.ReasoningDepth
	}
	if features.ComplexityScore > 0.7 || len(sq.Labels) > 2 {
		return "deep"
	}
	return "shallow"
}

// selectAgents picks the reasoners for this cycle: always Logical, plus
// one per matched label and the query type, the full suite on deep paths,
// capped at max_agents.
func (e *Engine) selectAgents(sq *classifier.StructuredQuery, deep bool) []reasoner.AgentType {
	selected := []reasoner.AgentType{reasoner.Logical}
	seen := map[reasoner.AgentType]bool{reasoner.Logical: true}
	add := func(t reasoner.AgentType) {
		if !seen[t] && len(selected) < e.cfg.Engine.MaxAgents {
			seen[t] = true
			selected = append(selected, t)
		}
	}

	for _, label := range sq.Labels {
		if t, ok := labelAgents[strings.ToLower(label)]; ok {
			add(t)
		}
	}
	if t, ok := labelAgents[strings.ToLower(sq.QueryType)]; ok {
		add(t)
	}
	if deep {
		for _, t := range reasoner.Types {
			add(t)
		}
	}
	return selected
}

// attachResolutions writes each resolution into the metadata of the
// outputs named by its conflict ticket.
func attachResolutions(analysis *coherence.Analysis, outputs []*reasoner.AgentOutput) {
	if analysis == nil || len(analysis.Resolutions) == 0 {
		return
	}
	tickets := make(map[string]*coherence.Ticket, len(analysis.Conflicts))
	for _, t := range analysis.Conflicts {
		tickets[t.ID] = t
	}
	for _, res := range analysis.Resolutions {
		ticket := tickets[res.ConflictID]
		if ticket == nil {
			continue
		}
		for _, out := range outputs {
			for _, agent := range ticket.ConflictingAgents {
				if out.Agent == agent {
					out.SetMeta("coherence_resolution", map[string]any{
						"conflict_id": res.ConflictID,
						"type":        res.Type,
						"strategy":    res.Strategy,
						"resolution":  res.Resolution,
					})
				}
			}
		}
	}
}

// buildCandidates shapes the iteration's outputs into broadcast candidates
// carrying the metadata the quality gate reads: the item's own critique
// verdict, the verifier's verdict when a verifier ran, and the speculative
// flag with its disclaimer.
func (e *Engine) buildCandidates(outputs []*reasoner.AgentOutput, results []critique.Result, iteration int) []*workspace.BroadcastItem {
	critiques := make(map[reasoner.AgentType]*critique.Critique, len(results))
	for _, res := range results {
		critiques[res.Critique.Agent] = res.Critique
	}

	verifierMeta := verifierVerdict(outputs, critiques)

	candidates := make([]*workspace.BroadcastItem, 0, len(outputs))
	for _, out := range outputs {
		item := workspace.NewItem(out.TextDraft, []reasoner.AgentType{out.Agent}, out.Confidence)
		item.Iteration = iteration + 1

		if crit, ok := critiques[out.Agent]; ok {
			item.SetMeta("agent_critique", map[string]any{
				"passed":            crit.Passed,
				"issues":            crit.Issues,
				"confidence_impact": crit.ConfidenceImpact,
				"escalate":          crit.Escalate,
			})
		} else {
			// Reflection is off; an unreviewed draft counts as passed.
			item.SetMeta("agent_critique", map[string]any{"passed": true, "skipped": true})
		}
		if verifierMeta != nil {
			item.SetMeta("verifier", verifierMeta)
		}
		if res, ok := out.Metadata["coherence_resolution"]; ok {
			item.SetMeta("coherence_resolution", res)
		}
		if out.Confidence < speculativeThreshold {
			item.Speculative = true
			item.SetMeta("speculative", true)
			item.SetMeta("disclaimer", SpeculativeDisclaimer)
		}
		candidates = append(candidates, item)
	}
	return candidates
}

// verifierVerdict derives the shared verifier stamp from the Verifier
// agent's output: it passes when its draft is confident and, if reviewed,
// its critique passed.
func verifierVerdict(outputs []*reasoner.AgentOutput, critiques map[reasoner.AgentType]*critique.Critique) map[string]any {
	for _, out := range outputs {
		if out.Agent != reasoner.Verifier {
			continue
		}
		passed := out.Confidence >= 0.5
		if crit, ok := critiques[reasoner.Verifier]; ok {
			passed = passed && crit.Passed
		}
		return map[string]any{"passed": passed, "confidence": out.Confidence}
	}
	return nil
}

// cycleQuality folds mean broadcast confidence, coherence, and critique
// pass rate into one scalar. A pass that broadcast nothing stays in the
// fallback band.
func cycleQuality(admitted []*workspace.BroadcastItem, coherenceScore, passRate float64) float64 {
	var meanConf float64
	for _, item := range admitted {
		meanConf += item.Confidence
	}
	if len(admitted) > 0 {
		meanConf /= float64(len(admitted))
	}
	quality := (meanConf + coherenceScore + passRate) / 3
	if len(admitted) == 0 && quality > 0.3 {
		quality = 0.3
	}
	if quality < 0 {
		return 0
	}
	if quality > 1 {
		return 1
	}
	return quality
}

// synthesize composes the final answer from the gated items. It returns
// the answer plus a degraded flag set when the gateway could not be used.
func (e *Engine) synthesize(ctx context.Context, query string, items []*workspace.BroadcastItem, mode config.Mode, onToken func(agent, token string)) (string, bool) {
	if len(items) == 0 {
		return fallbackAnswer, true
	}

	sorted := make([]*workspace.BroadcastItem, len(items))
	copy(sorted, items)
	sort.SliceStable(sorted, func(a, b int) bool { return sorted[a].Confidence > sorted[b].Confidence })

	var speculative bool
	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\nVetted drafts:\n", query)
	for _, item := range sorted {
		agent := "unknown"
		if len(item.Contributors) > 0 {
			agent = string(item.Contributors[0])
		}
		fmt.Fprintf(&b, "\n[%s] %s\n", agent, item.Text)
		if item.Speculative {
			speculative = true
			fmt.Fprintf(&b, "%s\n", SpeculativeDisclaimer)
		}
	}
	b.WriteString("\n")
	b.WriteString(modeInstruction(mode))

	req := &llm.Request{
		System: "You are the synthesis stage of a cognitive engine. Compose one final answer " +
			"from the vetted drafts, merging agreements and reconciling overlaps. Keep any " +
			"speculative disclaimer lines verbatim. Never include numeric confidence scores.",
		Prompt: b.String(),
	}

	answer, err := e.generateAnswer(ctx, req, onToken)
	if err != nil {
		slog.Warn("Synthesis failed, falling back to best draft", "error", err)
		answer = sorted[0].Text
		if sorted[0].Speculative {
			answer += "\n\n" + SpeculativeDisclaimer
		}
		return scrubAnswer(answer, speculative), true
	}
	return scrubAnswer(answer, speculative), false
}

// generateAnswer runs the synthesis request, streaming tokens to onToken
// when set.
func (e *Engine) generateAnswer(ctx context.Context, req *llm.Request, onToken func(agent, token string)) (string, error) {
	if onToken == nil {
		resp, err := e.gateway.Generate(ctx, req)
		if err != nil {
			return "", err
		}
		return resp.Text, nil
	}

	stream, err := e.gateway.GenerateStreaming(ctx, req)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for chunk := range stream {
		switch chunk.Type {
		case "text":
			b.WriteString(chunk.Text)
			onToken("synthesis", chunk.Text)
		case "error":
			return "", chunk.Error
		}
	}
	return b.String(), nil
}

// scrubAnswer enforces response policy: no bare decimal confidence tokens,
// and the speculative disclaimer present when speculative content was used.
func scrubAnswer(answer string, speculative bool) string {
	answer = strings.TrimSpace(decimalTokenPattern.ReplaceAllString(answer, "[confidence elided]"))
	if answer == "" {
		answer = fallbackAnswer
	}
	if speculative && !strings.Contains(answer, SpeculativeDisclaimer) {
		answer += "\n\n" + SpeculativeDisclaimer
	}
	return answer
}

// modeInstruction returns the synthesis directive for a response mode.
func modeInstruction(mode config.Mode) string {
	switch mode {
	case config.ModeDetailed:
		return "Write a thorough, well structured answer that covers every vetted point."
	case config.ModeCreative:
		return "Write the answer with an original framing while staying faithful to the drafts."
	case config.ModeAnalytical:
		return "Write the answer as an explicit chain of reasoning steps ending in a conclusion."
	default:
		return "Write a concise, direct answer."
	}
}

// recordLabels marks the cycle's labels as seen and reports whether any
// was new to this engine.
func (e *Engine) recordLabels(labels []string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	novel := false
	for _, label := range labels {
		key := strings.ToLower(label)
		if !e.seenLabels[key] {
			e.seenLabels[key] = true
			novel = true
		}
	}
	return novel
}

// persistCycle writes the cycle's outcome to the memory store and returns
// the session id, minting one when the request had none. The episodic
// record always lands; the semantic summary additionally requires a
// coherent result. Failures are logged, never fatal.
func (e *Engine) persistCycle(ctx context.Context, req *Request, query, answer string, analysis *coherence.Analysis, coherent bool, metrics observability.Metrics) string {
	sessionID, err := e.store.LogEvent(ctx, req.SessionID, req.UserID, "query", map[string]any{"text": query})
	if err != nil {
		slog.Warn("Failed to log query event", "error", err)
		sessionID = req.SessionID
	}
	if _, err := e.store.LogEvent(ctx, sessionID, req.UserID, "answer", map[string]any{"text": answer}); err != nil {
		slog.Warn("Failed to log answer event", "error", err)
	}

	if _, err := e.store.StoreInteraction(ctx, memory.KindEpisodic, query, answer, "", true); err != nil {
		slog.Warn("Failed to store episodic record", "error", err)
	} else {
		metrics.RecordMemoryOperation(ctx, "write")
	}

	if len(answer) > 300 && coherent {
		if _, err := e.store.Write(ctx, memory.WriteRequest{
			Kind:       memory.KindSemantic,
			Text:       answer,
			Tags:       []string{"synthesis"},
			Importance: 0.6,
			Consent:    true,
		}); err != nil {
			slog.Warn("Failed to store semantic summary", "error", err)
		} else {
			metrics.RecordMemoryOperation(ctx, "write")
		}
	}

	if analysis != nil && len(analysis.Resolutions) > 0 {
		note := reflectiveNote(query, analysis)
		if _, err := e.store.Write(ctx, memory.WriteRequest{
			Kind:       memory.KindReflective,
			Text:       note,
			Tags:       []string{"coherence"},
			Importance: 0.5,
			Consent:    true,
		}); err != nil {
			slog.Warn("Failed to store reflective note", "error", err)
		} else {
			metrics.RecordMemoryOperation(ctx, "write")
		}
	}
	return sessionID
}

// reflectiveNote summarizes the cycle's conflict resolutions for the
// reflective memory layer.
func reflectiveNote(query string, analysis *coherence.Analysis) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Resolved %d conflict(s) while answering %q.", len(analysis.Resolutions), query)
	for _, res := range analysis.Resolutions {
		fmt.Fprintf(&b, " [%s] %s", res.Strategy, res.Resolution)
	}
	return b.String()
}

// metaReport assembles the cycle's observability payload.
func (e *Engine) metaReport(sq *classifier.StructuredQuery, depth string, agents []string, iterations int, escalated, degraded bool) map[string]any {
	budget := e.gate.Tracker().RemainingBudget()
	return map[string]any{
		"intent":             sq.Intent,
		"query_type":         sq.QueryType,
		"classifier_conf":    sq.Confidence,
		"depth":              depth,
		"agents":             agents,
		"iterations":         iterations,
		"escalated":          escalated,
		"degraded":           degraded,
		"neuromod":           e.neuro.State(),
		"gating":             e.gate.Stats(),
		"critique":           e.critic.Stats(),
		"coherence":          e.coherer.Stats(),
		"workspace":          e.ws.View(),
		"resource_budget":    budget,
		"resource_exhausted": budget < 0.1,
	}
}

// degradedError reconstructs the failure carried by a degraded output so
// metrics can count it; healthy outputs return nil.
func degradedError(out *reasoner.AgentOutput) error {
	if out.Confidence == 0 && len(out.ReasoningTrace) > 0 &&
		strings.HasPrefix(out.ReasoningTrace[0], "Error occurred") {
		return errors.New(out.ReasoningTrace[0])
	}
	return nil
}
