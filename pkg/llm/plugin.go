package llm

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/hashicorp/go-hclog"
	goplugin "github.com/hashicorp/go-plugin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/cortexkit/cortex/pkg/config"
	"github.com/cortexkit/cortex/pkg/observability"
	cortexplugin "github.com/cortexkit/cortex/pkg/plugin"
)

// PluginProvider proxies generation to an external provider binary over
// go-plugin's net/rpc transport.
type PluginProvider struct {
	config *config.LLMConfig
	client *goplugin.Client
	raw    cortexplugin.Provider
	info   cortexplugin.InfoReply
}

func NewPluginProvider(cfg *config.LLMConfig) (*PluginProvider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if cfg.PluginPath == "" {
		return nil, fmt.Errorf("plugin_path is required for the plugin provider")
	}

	client := goplugin.NewClient(&goplugin.ClientConfig{
		HandshakeConfig: cortexplugin.Handshake,
		Plugins:         cortexplugin.PluginMap,
		Cmd:             exec.Command(cfg.PluginPath),
		AllowedProtocols: []goplugin.Protocol{
			goplugin.ProtocolNetRPC,
		},
		Logger: hclog.New(&hclog.LoggerOptions{
			Name:   "cortex-plugin",
			Level:  hclog.Warn,
			Output: os.Stderr,
		}),
	})

	rpcClient, err := client.Client()
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("failed to start plugin %s: %w", cfg.PluginPath, err)
	}

	raw, err := rpcClient.Dispense("llm")
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("failed to dispense plugin: %w", err)
	}

	provider, ok := raw.(cortexplugin.Provider)
	if !ok {
		client.Kill()
		return nil, fmt.Errorf("plugin does not implement the LLM provider interface")
	}

	info, err := provider.Info()
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("failed to query plugin info: %w", err)
	}

	return &PluginProvider{
		config: cfg,
		client: client,
		raw:    provider,
		info:   info,
	}, nil
}

func (p *PluginProvider) Generate(ctx context.Context, req *Request) (*Response, error) {
	startTime := time.Now()

	tracer := observability.GetTracer("cortex.llm")
	ctx, span := tracer.Start(ctx, observability.SpanLLMRequest,
		trace.WithAttributes(
			attribute.String(observability.AttrLLMModel, p.GetModelName()),
			attribute.String("provider", "plugin"),
			attribute.Bool("streaming", false),
		),
	)
	defer span.End()

	args := cortexplugin.GenerateArgs{
		System:      req.System,
		Prompt:      req.Prompt,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		ForceJSON:   req.ForceJSON,
	}

	type result struct {
		reply cortexplugin.GenerateReply
		err   error
	}
	resultCh := make(chan result, 1)
	go func() {
		reply, err := p.raw.Generate(args)
		resultCh <- result{reply: reply, err: err}
	}()

	var res result
	select {
	case <-ctx.Done():
		res = result{err: ctx.Err()}
	case res = <-resultCh:
	}
	duration := time.Since(startTime)

	if res.err != nil {
		span.RecordError(res.err)
		span.SetStatus(codes.Error, res.err.Error())
		observability.GetGlobalMetrics().RecordLLMCall(ctx, p.GetModelName(), duration, 0, 0, res.err)
		return nil, fmt.Errorf("plugin generation failed: %w", res.err)
	}

	reply := res.reply
	span.SetAttributes(
		attribute.Int(observability.AttrLLMTokensInput, reply.PromptTokens),
		attribute.Int(observability.AttrLLMTokensOutput, reply.CompletionTokens),
	)
	span.SetStatus(codes.Ok, "success")
	observability.GetGlobalMetrics().RecordLLMCall(ctx, p.GetModelName(), duration,
		reply.PromptTokens, reply.CompletionTokens, nil)

	finishReason := FinishReason(reply.FinishReason)
	if finishReason == "" {
		finishReason = FinishReasonStop
	}

	return &Response{
		Text: reply.Text,
		Usage: Usage{
			PromptTokens:     reply.PromptTokens,
			CompletionTokens: reply.CompletionTokens,
			TotalTokens:      reply.PromptTokens + reply.CompletionTokens,
		},
		FinishReason: finishReason,
	}, nil
}

// GenerateStreaming emits the whole plugin response as a single chunk:
// the net/rpc transport has no streaming surface.
func (p *PluginProvider) GenerateStreaming(ctx context.Context, req *Request) (<-chan StreamChunk, error) {
	outputCh := make(chan StreamChunk, 2)

	go func() {
		defer close(outputCh)

		response, err := p.Generate(ctx, req)
		if err != nil {
			outputCh <- StreamChunk{Type: "error", Error: err}
			return
		}
		if response.Text != "" {
			outputCh <- StreamChunk{Type: "text", Text: response.Text}
		}
		outputCh <- StreamChunk{Type: "done", Tokens: response.Usage.TotalTokens}
	}()

	return outputCh, nil
}

func (p *PluginProvider) GetModelName() string {
	if p.info.Model != "" {
		return p.info.Model
	}
	return p.config.Model
}

func (p *PluginProvider) GetMaxTokens() int {
	if p.info.MaxTokens > 0 {
		return p.info.MaxTokens
	}
	return p.config.MaxTokens
}

func (p *PluginProvider) GetTemperature() float64 {
	if p.info.Temperature > 0 {
		return p.info.Temperature
	}
	if p.config.Temperature != nil {
		return *p.config.Temperature
	}
	return 0
}

func (p *PluginProvider) Close() error {
	if p.client != nil {
		p.client.Kill()
	}
	return nil
}
