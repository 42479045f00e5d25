package llm

import (
	"context"
	"strings"
	"sync"

	"github.com/cortexkit/cortex/pkg/config"
)

// MockProvider is an in-process provider for tests and offline runs. It
// replays queued responses, or calls RespondFunc when set, and records
// every request it sees.
type MockProvider struct {
	mu sync.Mutex

	model string

	// RespondFunc, when set, computes the response per request.
	RespondFunc func(req *Request) string

	// Err is returned by every call when set.
	Err error

	queue    []string
	requests []Request
}

func NewMockProvider(cfg *config.LLMConfig) *MockProvider {
	model := "mock"
	if cfg != nil && cfg.Model != "" {
		model = cfg.Model
	}
	return &MockProvider{model: model}
}

// Enqueue appends a canned response. Responses are consumed in order;
// when the queue is empty a generic acknowledgement is returned.
func (p *MockProvider) Enqueue(responses ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queue = append(p.queue, responses...)
}

// Requests returns a copy of all recorded requests.
func (p *MockProvider) Requests() []Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Request, len(p.requests))
	copy(out, p.requests)
	return out
}

func (p *MockProvider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

func (p *MockProvider) Generate(ctx context.Context, req *Request) (*Response, error) {
	text, err := p.next(req)
	if err != nil {
		return nil, err
	}

	promptTokens := len(req.Prompt) / 4
	completionTokens := len(text) / 4
	return &Response{
		Text: text,
		Usage: Usage{
			PromptTokens:     promptTokens,
			CompletionTokens: completionTokens,
			TotalTokens:      promptTokens + completionTokens,
		},
		FinishReason: FinishReasonStop,
	}, nil
}

func (p *MockProvider) GenerateStreaming(ctx context.Context, req *Request) (<-chan StreamChunk, error) {
	text, err := p.next(req)
	if err != nil {
		return nil, err
	}

	outputCh := make(chan StreamChunk, 100)
	go func() {
		defer close(outputCh)
		words := strings.Fields(text)
		for i, word := range words {
			chunk := word
			if i < len(words)-1 {
				chunk += " "
			}
			select {
			case <-ctx.Done():
				outputCh <- StreamChunk{Type: "error", Error: ctx.Err()}
				return
			case outputCh <- StreamChunk{Type: "text", Text: chunk}:
			}
		}
		outputCh <- StreamChunk{Type: "done", Tokens: len(text) / 4}
	}()

	return outputCh, nil
}

func (p *MockProvider) GetModelName() string {
	return p.model
}

func (p *MockProvider) GetMaxTokens() int {
	return 2048
}

func (p *MockProvider) GetTemperature() float64 {
	return 0.7
}

func (p *MockProvider) Close() error {
	return nil
}

func (p *MockProvider) next(req *Request) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.requests = append(p.requests, *req)

	if p.Err != nil {
		return "", p.Err
	}
	if p.RespondFunc != nil {
		return p.RespondFunc(req), nil
	}
	if len(p.queue) > 0 {
		text := p.queue[0]
		p.queue = p.queue[1:]
		return text, nil
	}
	return "Acknowledged: " + truncatePrompt(req.Prompt), nil
}

func truncatePrompt(prompt string) string {
	const max = 80
	if len(prompt) <= max {
		return prompt
	}
	return prompt[:max] + "..."
}
