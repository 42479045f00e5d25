package llm

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/genai"

	"github.com/cortexkit/cortex/pkg/config"
	"github.com/cortexkit/cortex/pkg/observability"
)

// GeminiProvider talks to the Gemini API through the official genai SDK.
type GeminiProvider struct {
	config *config.LLMConfig
	client *genai.Client
}

func NewGeminiProvider(cfg *config.LLMConfig) (*GeminiProvider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key is required (set GEMINI_API_KEY or llm.api_key)")
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey: cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiProvider{
		config: cfg,
		client: client,
	}, nil
}

func (p *GeminiProvider) Generate(ctx context.Context, req *Request) (*Response, error) {
	startTime := time.Now()

	tracer := observability.GetTracer("cortex.llm")
	ctx, span := tracer.Start(ctx, observability.SpanLLMRequest,
		trace.WithAttributes(
			attribute.String(observability.AttrLLMModel, p.config.Model),
			attribute.String("provider", "gemini"),
			attribute.Bool("streaming", false),
		),
	)
	defer span.End()

	contents, genConfig := p.buildRequest(req)

	genResp, err := p.client.Models.GenerateContent(ctx, p.config.Model, contents, genConfig)
	duration := time.Since(startTime)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		observability.GetGlobalMetrics().RecordLLMCall(ctx, p.config.Model, duration, 0, 0, err)
		return nil, fmt.Errorf("Gemini generation failed: %w", err)
	}

	response, err := p.parseResponse(genResp)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		observability.GetGlobalMetrics().RecordLLMCall(ctx, p.config.Model, duration, 0, 0, err)
		return nil, err
	}

	span.SetAttributes(
		attribute.Int(observability.AttrLLMTokensInput, response.Usage.PromptTokens),
		attribute.Int(observability.AttrLLMTokensOutput, response.Usage.CompletionTokens),
	)
	span.SetStatus(codes.Ok, "success")
	observability.GetGlobalMetrics().RecordLLMCall(ctx, p.config.Model, duration,
		response.Usage.PromptTokens, response.Usage.CompletionTokens, nil)

	return response, nil
}

func (p *GeminiProvider) GenerateStreaming(ctx context.Context, req *Request) (<-chan StreamChunk, error) {
	contents, genConfig := p.buildRequest(req)

	outputCh := make(chan StreamChunk, 100)

	go func() {
		defer close(outputCh)

		var totalTokens int
		for genResp, err := range p.client.Models.GenerateContentStream(ctx, p.config.Model, contents, genConfig) {
			if err != nil {
				outputCh <- StreamChunk{Type: "error", Error: fmt.Errorf("Gemini streaming error: %w", err)}
				return
			}
			if genResp.UsageMetadata != nil {
				totalTokens = int(genResp.UsageMetadata.TotalTokenCount)
			}
			if text := extractText(genResp); text != "" {
				outputCh <- StreamChunk{Type: "text", Text: text}
			}
		}

		outputCh <- StreamChunk{Type: "done", Tokens: totalTokens}
	}()

	return outputCh, nil
}

func (p *GeminiProvider) GetModelName() string {
	return p.config.Model
}

func (p *GeminiProvider) GetMaxTokens() int {
	return p.config.MaxTokens
}

func (p *GeminiProvider) GetTemperature() float64 {
	if p.config.Temperature != nil {
		return *p.config.Temperature
	}
	return 0
}

func (p *GeminiProvider) Close() error {
	// The genai client holds no connection that needs closing.
	return nil
}

func (p *GeminiProvider) buildRequest(req *Request) ([]*genai.Content, *genai.GenerateContentConfig) {
	contents := []*genai.Content{
		{
			Parts: []*genai.Part{{Text: req.Prompt}},
			Role:  "user",
		},
	}

	genConfig := &genai.GenerateContentConfig{}

	if req.System != "" {
		genConfig.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.System}},
		}
	}

	temperature := req.Temperature
	if temperature <= 0 && p.config.Temperature != nil {
		temperature = *p.config.Temperature
	}
	if temperature > 0 {
		genConfig.Temperature = genai.Ptr(float32(temperature))
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = p.config.MaxTokens
	}
	if maxTokens > 0 {
		genConfig.MaxOutputTokens = int32(maxTokens)
	}

	if req.ForceJSON {
		genConfig.ResponseMIMEType = "application/json"
	}

	return contents, genConfig
}

func (p *GeminiProvider) parseResponse(genResp *genai.GenerateContentResponse) (*Response, error) {
	if len(genResp.Candidates) == 0 {
		return nil, fmt.Errorf("no candidates in Gemini response")
	}

	candidate := genResp.Candidates[0]

	response := &Response{
		Text:         extractText(genResp),
		FinishReason: mapFinishReason(candidate.FinishReason),
	}

	if genResp.UsageMetadata != nil {
		response.Usage = Usage{
			PromptTokens:     int(genResp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(genResp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(genResp.UsageMetadata.TotalTokenCount),
		}
	}

	return response, nil
}

func extractText(genResp *genai.GenerateContentResponse) string {
	if len(genResp.Candidates) == 0 || genResp.Candidates[0].Content == nil {
		return ""
	}

	var text string
	for _, part := range genResp.Candidates[0].Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		text += part.Text
	}
	return text
}

func mapFinishReason(reason genai.FinishReason) FinishReason {
	switch reason {
	case genai.FinishReasonStop:
		return FinishReasonStop
	case genai.FinishReasonMaxTokens:
		return FinishReasonLength
	case genai.FinishReasonSafety:
		return FinishReasonSafety
	default:
		return FinishReasonStop
	}
}
