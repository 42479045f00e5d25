package classifier

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cortexkit/cortex/pkg/llm"
	"github.com/cortexkit/cortex/pkg/precontext"
)

func newClassifier(mock *llm.MockProvider) *Classifier {
	return New(mock, precontext.New(nil))
}

func TestClassifyParsesStructuredResponse(t *testing.T) {
	mock := llm.NewMockProvider(nil)
	mock.Enqueue(`Here you go:
{
  "intent": "get_information",
  "query_type": "Logical",
  "labels": ["Factual", " Creative "],
  "label_confidences": {"Logical": 0.85, "Factual": "0.6"},
  "content": "how gating works",
  "metadata": {"source": "user_input"},
  "confidence": 0.9,
  "reasoning_depth": "deep"
}`)

	sq := newClassifier(mock).Classify(context.Background(), "How does gating work?", "", "u1")

	assert.Equal(t, "get_information", sq.Intent)
	assert.Equal(t, "logical", sq.QueryType)
	assert.Equal(t, []string{"factual", "creative"}, sq.Labels)
	assert.InDelta(t, 0.85, sq.LabelConfidences["logical"], 1e-9)
	assert.InDelta(t, 0.6, sq.LabelConfidences["factual"], 1e-9)
	assert.Equal(t, "how gating works", sq.Content)
	assert.InDelta(t, 0.9, sq.Confidence, 1e-9)
	assert.Equal(t, "deep", sq.ReasoningDepth)
}

func TestClassifyParseErrorFallback(t *testing.T) {
	mock := llm.NewMockProvider(nil)
	mock.Enqueue("I think this is a logical query about memory.")

	sq := newClassifier(mock).Classify(context.Background(), "original text", "", "")

	assert.Equal(t, "parse_error", sq.Intent)
	assert.Equal(t, "logical", sq.QueryType)
	assert.Equal(t, "original text", sq.Content)
	assert.Zero(t, sq.Confidence)
	assert.Equal(t, "auto", sq.ReasoningDepth)
	assert.Contains(t, sq.Metadata["raw_response"], "logical query")
}

func TestClassifyInvalidJSONFallback(t *testing.T) {
	mock := llm.NewMockProvider(nil)
	mock.Enqueue(`{"intent": "broken",`)

	sq := newClassifier(mock).Classify(context.Background(), "text", "", "")

	assert.Equal(t, "parse_error", sq.Intent)
}

func TestClassifyLLMErrorFallback(t *testing.T) {
	mock := llm.NewMockProvider(nil)
	mock.Err = errors.New("gateway unavailable")

	sq := newClassifier(mock).Classify(context.Background(), "text", "", "")

	assert.Equal(t, "error", sq.Intent)
	assert.Equal(t, "logical", sq.QueryType)
	assert.Equal(t, "text", sq.Content)
	assert.Zero(t, sq.Confidence)
}

func TestClassifyPromptIncludesContext(t *testing.T) {
	mock := llm.NewMockProvider(nil)
	mock.Enqueue(`{"intent":"x","query_type":"logical","content":"y","confidence":0.5,"reasoning_depth":"shallow"}`)

	newClassifier(mock).Classify(context.Background(), "the query", "remembered fact", "u9")

	requests := mock.Requests()
	require.Len(t, requests, 1)
	assert.Contains(t, requests[0].Prompt, "the query")
	assert.Contains(t, requests[0].Prompt, "remembered fact")
	assert.Contains(t, requests[0].Prompt, `"rawTextPreview":"the query"`)
	assert.True(t, requests[0].ForceJSON)
}

func TestParseStructuredQueryDefaults(t *testing.T) {
	sq, err := parseStructuredQuery(`{"query_type": "FACTUAL"}`, "orig")
	require.NoError(t, err)

	assert.Equal(t, "unknown", sq.Intent)
	assert.Equal(t, "factual", sq.QueryType)
	assert.Equal(t, "orig", sq.Content)
	assert.Equal(t, "auto", sq.ReasoningDepth)
	assert.Empty(t, sq.Labels)
}
