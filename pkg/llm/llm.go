// Package llm provides the language model gateway: a provider interface
// with Gemini, Ollama, external-plugin, and mock implementations, plus
// token accounting for prompt budgeting.
package llm

import (
	"context"
)

// Request is a single generation request.
type Request struct {
	// System is prepended as the system instruction.
	System string

	// Prompt is the user-role content.
	Prompt string

	// Temperature overrides the provider default when > 0.
	Temperature float64

	// MaxTokens caps the response length. 0 uses the provider default.
	MaxTokens int

	// ForceJSON constrains the response to a JSON document.
	ForceJSON bool
}

// Usage reports token consumption for one call.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// FinishReason indicates why generation stopped.
type FinishReason string

const (
	FinishReasonStop   FinishReason = "stop"
	FinishReasonLength FinishReason = "length"
	FinishReasonSafety FinishReason = "safety"
	FinishReasonError  FinishReason = "error"
)

// Response is the result of a non-streaming generation.
type Response struct {
	Text         string
	Usage        Usage
	FinishReason FinishReason
}

// StreamChunk is one unit of a streaming response.
type StreamChunk struct {
	// Type is "text", "done", or "error".
	Type string

	// Text carries the delta for "text" chunks.
	Text string

	// Tokens carries the total token count on the "done" chunk.
	Tokens int

	// Error is set on "error" chunks.
	Error error
}

// Provider is the gateway every language model backend implements.
type Provider interface {
	// Generate performs a non-streaming request.
	Generate(ctx context.Context, req *Request) (*Response, error)

	// GenerateStreaming returns a channel of chunks. The channel is closed
	// after a "done" or "error" chunk.
	GenerateStreaming(ctx context.Context, req *Request) (<-chan StreamChunk, error)

	GetModelName() string

	GetMaxTokens() int

	GetTemperature() float64

	Close() error
}
