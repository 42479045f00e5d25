// Package classifier routes queries into the reasoner taxonomy. The
// LLM is asked for strict JSON; every failure mode degrades to a
// well-formed StructuredQuery so the pipeline always proceeds.
package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cortexkit/cortex/pkg/llm"
	"github.com/cortexkit/cortex/pkg/precontext"
)

// QueryTypes is the closed label set. Both query_type and labels are
// drawn from it, lowercased.
var QueryTypes = []string{"logical", "emotional", "strategic", "creative", "factual", "reflective"}

// StructuredQuery is the classifier verdict.
type StructuredQuery struct {
	Intent           string             `json:"intent"`
	QueryType        string             `json:"query_type"`
	Content          string             `json:"content"`
	Metadata         map[string]any     `json:"metadata,omitempty"`
	Confidence       float64            `json:"confidence"`
	Labels           []string           `json:"labels,omitempty"`
	LabelConfidences map[string]float64 `json:"label_confidences,omitempty"`
	ReasoningDepth   string             `json:"reasoning_depth"`
}

// Classifier asks the gateway to classify a query, embedding the
// pre-context bundle in the prompt.
type Classifier struct {
	gateway llm.Provider
	pre     *precontext.Preprocessor
}

func New(gateway llm.Provider, pre *precontext.Preprocessor) *Classifier {
	return &Classifier{
		gateway: gateway,
		pre:     pre,
	}
}

const systemPrompt = `You are a query classifier for a cognitive reasoning engine.
Analyze the user input, integrate any memory context, and classify the query.
Support multi-label routing: a query may map to multiple types.
Respond with strict JSON only, no prose around it.`

// Classify never returns an error: LLM failures yield intent="error",
// malformed responses yield intent="parse_error"; both fall back to
// query_type=logical with depth=auto so routing stays defined.
func (c *Classifier) Classify(ctx context.Context, text, memoryContext, userID string) *StructuredQuery {
	pre := c.pre.Preprocess(ctx, userID, text)

	prompt := c.buildPrompt(text, memoryContext, pre)

	resp, err := c.gateway.Generate(ctx, &llm.Request{
		System:    systemPrompt,
		Prompt:    prompt,
		ForceJSON: true,
	})
	if err != nil {
		slog.Warn("Classifier LLM call failed", "error", err)
		return fallbackQuery(text, "error", map[string]any{"error": err.Error()})
	}

	sq, err := parseStructuredQuery(resp.Text, text)
	if err != nil {
		slog.Warn("Classifier returned unparseable response", "error", err)
		return fallbackQuery(text, "parse_error", map[string]any{
			"raw_response": resp.Text,
			"error":        err.Error(),
		})
	}

	return sq
}

func (c *Classifier) buildPrompt(text, memoryContext string, pre *precontext.Context) string {
	types := "Logical, Emotional, Strategic, Creative, Factual, Reflective"
	if memoryContext == "" {
		memoryContext = "No recent memory context available."
	}

	return fmt.Sprintf(`Classify the query. Valid types: %s.

Extract the core intent, the main content, and relevant metadata. Assign an
overall confidence (0.0-1.0), per-label confidences, and a suggested
reasoning_depth of "shallow", "deep", or "auto".

Memory Context:
%s

Pre-Context (user, time, recent memory, environment):
%s

User Query: %s

Respond in JSON with exactly these keys:
{
    "intent": "main intent of the query (e.g., 'get_information', 'solve_problem', 'express_emotion')",
    "query_type": "primary type (one of %s)",
    "labels": ["zero or more secondary labels, subset of the same types"],
    "label_confidences": {"Logical": 0.85, "Emotional": 0.65},
    "content": "the core content or subject of the query",
    "metadata": {"source": "user_input", "context_summary": "brief summary of memory context if relevant"},
    "confidence": 0.0,
    "reasoning_depth": "one of shallow | deep | auto"
}`, types, memoryContext, pre.String(), text, types)
}

// parseStructuredQuery extracts the JSON payload between the first '{'
// and the last '}' and coerces fields defensively.
func parseStructuredQuery(response, originalText string) (*StructuredQuery, error) {
	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start == -1 || end == -1 || end <= start {
		return nil, fmt.Errorf("no JSON object in response")
	}

	var parsed map[string]any
	if err := json.Unmarshal([]byte(response[start:end+1]), &parsed); err != nil {
		return nil, fmt.Errorf("invalid JSON payload: %w", err)
	}

	sq := &StructuredQuery{
		Intent:         stringField(parsed, "intent", "unknown"),
		QueryType:      strings.ToLower(strings.TrimSpace(stringField(parsed, "query_type", "unknown"))),
		Content:        stringField(parsed, "content", originalText),
		Confidence:     floatField(parsed, "confidence"),
		ReasoningDepth: stringField(parsed, "reasoning_depth", "auto"),
	}

	if md, ok := parsed["metadata"].(map[string]any); ok {
		sq.Metadata = md
	}

	if rawLabels, ok := parsed["labels"].([]any); ok {
		for _, l := range rawLabels {
			if s, ok := l.(string); ok {
				sq.Labels = append(sq.Labels, strings.ToLower(strings.TrimSpace(s)))
			}
		}
	}

	if rawConf, ok := parsed["label_confidences"].(map[string]any); ok {
		sq.LabelConfidences = make(map[string]float64, len(rawConf))
		for k, v := range rawConf {
			if f, ok := toFloat(v); ok {
				sq.LabelConfidences[strings.ToLower(strings.TrimSpace(k))] = f
			}
		}
	}

	return sq, nil
}

func fallbackQuery(text, intent string, metadata map[string]any) *StructuredQuery {
	return &StructuredQuery{
		Intent:         intent,
		QueryType:      "logical",
		Content:        text,
		Metadata:       metadata,
		Confidence:     0,
		ReasoningDepth: "auto",
	}
}

func stringField(m map[string]any, key, fallback string) string {
	if s, ok := m[key].(string); ok && s != "" {
		return s
	}
	return fallback
}

func floatField(m map[string]any, key string) float64 {
	if f, ok := toFloat(m[key]); ok {
		return f
	}
	return 0
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case string:
		var f float64
		if _, err := fmt.Sscanf(n, "%g", &f); err == nil {
			return f, true
		}
	}
	return 0, false
}
