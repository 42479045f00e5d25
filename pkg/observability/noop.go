package observability

import (
	"context"
	"net/http"
	"time"
)

// NoopMetrics is a Metrics implementation that records nothing.
type NoopMetrics struct{}

func (NoopMetrics) RecordLLMCall(_ context.Context, _ string, _ time.Duration, _, _ int, _ error) {
}

func (NoopMetrics) RecordReasonerRun(_ context.Context, _ string, _ time.Duration, _ error) {}

func (NoopMetrics) RecordGatingDecision(_ context.Context, _ string) {}

func (NoopMetrics) RecordBroadcast(_ context.Context) {}

func (NoopMetrics) RecordMemoryOperation(_ context.Context, _ string) {}

func (NoopMetrics) RecordCoherenceScore(_ context.Context, _ float64) {}

func (NoopMetrics) RecordHTTPRequest(_ context.Context, _, _ string, _ int, _ time.Duration) {}

// Handler returns 503 Service Unavailable.
func (NoopMetrics) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("metrics not enabled"))
	})
}

var _ Metrics = NoopMetrics{}
