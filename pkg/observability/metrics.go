// Copyright 2025 The CortexKit Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package observability

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/cortexkit/cortex/pkg/config"
)

var (
	globalMetrics Metrics = NoopMetrics{}
	metricsMu     sync.RWMutex
)

// Metrics records engine-level measurements.
type Metrics interface {
	// RecordLLMCall records one gateway call with duration and token usage.
	RecordLLMCall(ctx context.Context, model string, duration time.Duration, inputTokens, outputTokens int, err error)

	// RecordReasonerRun records one reasoning agent execution.
	RecordReasonerRun(ctx context.Context, agent string, duration time.Duration, err error)

	// RecordGatingDecision counts an admit/reject/quarantine decision.
	RecordGatingDecision(ctx context.Context, decision string)

	// RecordBroadcast counts a workspace broadcast.
	RecordBroadcast(ctx context.Context)

	// RecordMemoryOperation counts a memory store operation by kind.
	RecordMemoryOperation(ctx context.Context, op string)

	// RecordCoherenceScore sets the last observed coherence score.
	RecordCoherenceScore(ctx context.Context, score float64)

	// RecordHTTPRequest records one served HTTP request.
	RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration)

	// Handler serves the metrics endpoint.
	Handler() http.Handler
}

// OTELMetrics implements Metrics on an OTEL meter bridged to a dedicated
// Prometheus registry.
type OTELMetrics struct {
	registry *prometheus.Registry

	llmDuration     metric.Float64Histogram
	llmInputTokens  metric.Int64Counter
	llmOutputTokens metric.Int64Counter
	llmErrors       metric.Int64Counter

	reasonerDuration metric.Float64Histogram
	reasonerCalls    metric.Int64Counter

	gatingDecisions metric.Int64Counter
	broadcasts      metric.Int64Counter
	memoryOps       metric.Int64Counter
	coherenceScore  metric.Float64Gauge

	httpDuration metric.Float64Histogram
}

// InitMetrics builds the OTEL meter and instruments. When disabled it
// returns NoopMetrics.
func InitMetrics(cfg config.MetricsConfig) (Metrics, error) {
	if !cfg.Enabled {
		return NoopMetrics{}, nil
	}

	registry := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(exporter),
	)
	meter := meterProvider.Meter(cfg.Namespace)

	ns := cfg.Namespace
	m := &OTELMetrics{registry: registry}

	if m.llmDuration, err = meter.Float64Histogram(
		ns+"_llm_request_duration_seconds",
		metric.WithDescription("LLM request duration in seconds"),
	); err != nil {
		return nil, fmt.Errorf("failed to create llm duration histogram: %w", err)
	}

	if m.llmInputTokens, err = meter.Int64Counter(
		ns+"_llm_tokens_input_total",
		metric.WithDescription("Total input tokens sent to the LLM"),
	); err != nil {
		return nil, fmt.Errorf("failed to create llm input tokens counter: %w", err)
	}

	if m.llmOutputTokens, err = meter.Int64Counter(
		ns+"_llm_tokens_output_total",
		metric.WithDescription("Total output tokens from the LLM"),
	); err != nil {
		return nil, fmt.Errorf("failed to create llm output tokens counter: %w", err)
	}

	if m.llmErrors, err = meter.Int64Counter(
		ns+"_llm_errors_total",
		metric.WithDescription("Total LLM errors"),
	); err != nil {
		return nil, fmt.Errorf("failed to create llm errors counter: %w", err)
	}

	if m.reasonerDuration, err = meter.Float64Histogram(
		ns+"_reasoner_duration_seconds",
		metric.WithDescription("Reasoning agent run duration in seconds"),
	); err != nil {
		return nil, fmt.Errorf("failed to create reasoner duration histogram: %w", err)
	}

	if m.reasonerCalls, err = meter.Int64Counter(
		ns+"_reasoner_calls_total",
		metric.WithDescription("Total reasoning agent runs"),
	); err != nil {
		return nil, fmt.Errorf("failed to create reasoner calls counter: %w", err)
	}

	if m.gatingDecisions, err = meter.Int64Counter(
		ns+"_gating_decisions_total",
		metric.WithDescription("Total gating decisions by outcome"),
	); err != nil {
		return nil, fmt.Errorf("failed to create gating decisions counter: %w", err)
	}

	if m.broadcasts, err = meter.Int64Counter(
		ns+"_broadcasts_total",
		metric.WithDescription("Total workspace broadcasts"),
	); err != nil {
		return nil, fmt.Errorf("failed to create broadcasts counter: %w", err)
	}

	if m.memoryOps, err = meter.Int64Counter(
		ns+"_memory_operations_total",
		metric.WithDescription("Total memory store operations by kind"),
	); err != nil {
		return nil, fmt.Errorf("failed to create memory operations counter: %w", err)
	}

	if m.coherenceScore, err = meter.Float64Gauge(
		ns+"_coherence_score",
		metric.WithDescription("Last observed meta-coherence score"),
	); err != nil {
		return nil, fmt.Errorf("failed to create coherence score gauge: %w", err)
	}

	if m.httpDuration, err = meter.Float64Histogram(
		ns+"_http_request_duration_seconds",
		metric.WithDescription("HTTP request duration in seconds"),
	); err != nil {
		return nil, fmt.Errorf("failed to create http duration histogram: %w", err)
	}

	return m, nil
}

func (m *OTELMetrics) RecordLLMCall(ctx context.Context, model string, duration time.Duration, inputTokens, outputTokens int, err error) {
	if m == nil || m.llmDuration == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String("model", model))
	m.llmDuration.Record(ctx, duration.Seconds(), attrs)
	m.llmInputTokens.Add(ctx, int64(inputTokens), attrs)
	m.llmOutputTokens.Add(ctx, int64(outputTokens), attrs)
	if err != nil {
		m.llmErrors.Add(ctx, 1, attrs)
	}
}

func (m *OTELMetrics) RecordReasonerRun(ctx context.Context, agent string, duration time.Duration, err error) {
	if m == nil || m.reasonerDuration == nil {
		return
	}

	attrs := metric.WithAttributes(
		attribute.String("agent", agent),
		attribute.Bool("error", err != nil),
	)
	m.reasonerDuration.Record(ctx, duration.Seconds(), attrs)
	m.reasonerCalls.Add(ctx, 1, attrs)
}

func (m *OTELMetrics) RecordGatingDecision(ctx context.Context, decision string) {
	if m == nil || m.gatingDecisions == nil {
		return
	}
	m.gatingDecisions.Add(ctx, 1, metric.WithAttributes(attribute.String("decision", decision)))
}

func (m *OTELMetrics) RecordBroadcast(ctx context.Context) {
	if m == nil || m.broadcasts == nil {
		return
	}
	m.broadcasts.Add(ctx, 1)
}

func (m *OTELMetrics) RecordMemoryOperation(ctx context.Context, op string) {
	if m == nil || m.memoryOps == nil {
		return
	}
	m.memoryOps.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op)))
}

func (m *OTELMetrics) RecordCoherenceScore(ctx context.Context, score float64) {
	if m == nil || m.coherenceScore == nil {
		return
	}
	m.coherenceScore.Record(ctx, score)
}

func (m *OTELMetrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration) {
	if m == nil || m.httpDuration == nil {
		return
	}
	m.httpDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("path", path),
		attribute.Int("status", statusCode),
	))
}

// Handler serves the backing Prometheus registry.
func (m *OTELMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// SetGlobalMetrics installs the process-wide metrics recorder.
func SetGlobalMetrics(m Metrics) {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	globalMetrics = m
}

// GetGlobalMetrics returns the process-wide metrics recorder.
func GetGlobalMetrics() Metrics {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	return globalMetrics
}

var _ Metrics = (*OTELMetrics)(nil)
