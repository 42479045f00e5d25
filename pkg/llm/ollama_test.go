package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cortexkit/cortex/pkg/config"
)

func ollamaTestConfig(host string) *config.LLMConfig {
	return &config.LLMConfig{
		Provider:    config.LLMProviderOllama,
		Model:       "llama3.2",
		Host:        host,
		Temperature: config.Float64Ptr(0.7),
		MaxTokens:   2000,
		Timeout:     5,
	}
}

func TestNewOllamaProvider(t *testing.T) {
	provider, err := NewOllamaProvider(ollamaTestConfig("http://localhost:11434/"))
	require.NoError(t, err)

	assert.Equal(t, "llama3.2", provider.GetModelName())
	assert.Equal(t, 2000, provider.GetMaxTokens())
	assert.Equal(t, 0.7, provider.GetTemperature())
	assert.Equal(t, "http://localhost:11434", provider.baseURL)
	assert.NoError(t, provider.Close())
}

func TestNewOllamaProviderNilConfig(t *testing.T) {
	_, err := NewOllamaProvider(nil)
	assert.Error(t, err)
}

func TestOllamaGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "POST", r.Method)
		assert.Equal(t, "/api/chat", r.URL.Path)

		var req ollamaRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "llama3.2", req.Model)
		assert.False(t, req.Stream)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "user", req.Messages[1].Role)
		assert.Equal(t, "What is recursion?", req.Messages[1].Content)

		response := ollamaResponse{
			Model:           "llama3.2",
			Message:         ollamaMessage{Role: "assistant", Content: "Recursion is a function calling itself."},
			Done:            true,
			PromptEvalCount: 10,
			EvalCount:       15,
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	provider, err := NewOllamaProvider(ollamaTestConfig(server.URL))
	require.NoError(t, err)

	response, err := provider.Generate(context.Background(), &Request{
		System: "You are a precise assistant.",
		Prompt: "What is recursion?",
	})
	require.NoError(t, err)

	assert.Equal(t, "Recursion is a function calling itself.", response.Text)
	assert.Equal(t, 10, response.Usage.PromptTokens)
	assert.Equal(t, 15, response.Usage.CompletionTokens)
	assert.Equal(t, 25, response.Usage.TotalTokens)
	assert.Equal(t, FinishReasonStop, response.FinishReason)
}

func TestOllamaGenerateAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(ollamaResponse{Error: "model not found"})
	}))
	defer server.Close()

	provider, err := NewOllamaProvider(ollamaTestConfig(server.URL))
	require.NoError(t, err)

	_, err = provider.Generate(context.Background(), &Request{Prompt: "hello"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model not found")
}

func TestOllamaGenerateJSONFormat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "json", req.Format)

		response := ollamaResponse{
			Message: ollamaMessage{Role: "assistant", Content: `{"ok":true}`},
			Done:    true,
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(response)
	}))
	defer server.Close()

	provider, err := NewOllamaProvider(ollamaTestConfig(server.URL))
	require.NoError(t, err)

	response, err := provider.Generate(context.Background(), &Request{Prompt: "classify", ForceJSON: true})
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, response.Text)
}

func TestOllamaGenerateStreaming(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)

		chunks := []ollamaResponse{
			{Message: ollamaMessage{Role: "assistant", Content: "Hello"}},
			{Message: ollamaMessage{Role: "assistant", Content: " world"}},
			{Done: true, PromptEvalCount: 5, EvalCount: 2},
		}
		enc := json.NewEncoder(w)
		for _, chunk := range chunks {
			_ = enc.Encode(chunk)
		}
	}))
	defer server.Close()

	provider, err := NewOllamaProvider(ollamaTestConfig(server.URL))
	require.NoError(t, err)

	ch, err := provider.GenerateStreaming(context.Background(), &Request{Prompt: "hi"})
	require.NoError(t, err)

	var text string
	var doneTokens int
	for chunk := range ch {
		switch chunk.Type {
		case "text":
			text += chunk.Text
		case "done":
			doneTokens = chunk.Tokens
		case "error":
			t.Fatalf("unexpected error chunk: %v", chunk.Error)
		}
	}

	assert.Equal(t, "Hello world", text)
	assert.Equal(t, 7, doneTokens)
}

func TestOllamaBuildRequestTemperatureFallback(t *testing.T) {
	provider, err := NewOllamaProvider(ollamaTestConfig("http://localhost:11434"))
	require.NoError(t, err)

	request := provider.buildRequest(&Request{Prompt: "x"}, false)
	require.NotNil(t, request.Options)
	assert.Equal(t, 0.7, request.Options.Temperature)
	assert.Equal(t, 2000, request.Options.NumPredict)

	request = provider.buildRequest(&Request{Prompt: "x", Temperature: 1.2, MaxTokens: 100}, false)
	require.NotNil(t, request.Options)
	assert.Equal(t, 1.2, request.Options.Temperature)
	assert.Equal(t, 100, request.Options.NumPredict)
}
