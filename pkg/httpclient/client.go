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

// Package httpclient provides an HTTP client with retry and backoff for
// provider APIs. Retries apply only to transient conditions (rate limits,
// timeouts, server errors); everything else returns immediately.
package httpclient

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"time"
)

// RetryStrategy selects how a failed attempt is retried.
type RetryStrategy int

const (
	// NoRetry fails immediately.
	NoRetry RetryStrategy = iota
	// QuickRetry retries up to twice with short fixed delays. Used for
	// transient server errors.
	QuickRetry
	// BackoffRetry honors rate-limit headers when present, otherwise
	// backs off exponentially with jitter. Used for rate limiting.
	BackoffRetry
)

// RateLimitInfo carries retry hints parsed from response headers.
type RateLimitInfo struct {
	RetryAfter time.Duration
	ResetTime  int64
}

// HeaderParser extracts rate-limit hints from response headers.
type HeaderParser func(http.Header) RateLimitInfo

// StrategyFunc maps an HTTP status code to a retry strategy.
type StrategyFunc func(statusCode int) RetryStrategy

// Client wraps http.Client with retry behavior.
type Client struct {
	client       *http.Client
	maxRetries   int
	baseDelay    time.Duration
	headerParser HeaderParser
	strategyFunc StrategyFunc
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) { c.client = client }
}

// WithTimeout sets the per-request timeout on the underlying client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) { c.client.Timeout = timeout }
}

// WithMaxRetries sets the retry budget (attempts beyond the first).
func WithMaxRetries(max int) Option {
	return func(c *Client) { c.maxRetries = max }
}

// WithBaseDelay sets the base delay for exponential backoff.
func WithBaseDelay(delay time.Duration) Option {
	return func(c *Client) { c.baseDelay = delay }
}

// WithHeaderParser sets the rate-limit header parser.
func WithHeaderParser(parser HeaderParser) Option {
	return func(c *Client) { c.headerParser = parser }
}

// WithStrategy replaces the status → strategy mapping.
func WithStrategy(fn StrategyFunc) Option {
	return func(c *Client) { c.strategyFunc = fn }
}

// New creates a Client. Defaults: 60 s timeout, 5 retries, 2 s base delay,
// DefaultStrategy, standard Retry-After parsing.
func New(opts ...Option) *Client {
	c := &Client{
		client:       &http.Client{Timeout: 60 * time.Second},
		maxRetries:   5,
		baseDelay:    2 * time.Second,
		headerParser: ParseStandardHeaders,
		strategyFunc: DefaultStrategy,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DefaultStrategy retries rate limits and service unavailability with
// backoff, transient server errors quickly, and nothing else.
func DefaultStrategy(statusCode int) RetryStrategy {
	switch statusCode {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable:
		return BackoffRetry
	case http.StatusRequestTimeout, http.StatusInternalServerError,
		http.StatusBadGateway, http.StatusGatewayTimeout:
		return QuickRetry
	default:
		return NoRetry
	}
}

// Do executes the request, retrying per strategy. Request bodies are
// re-created through req.GetBody on each retry. The request context is
// honored while waiting between attempts.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("recreating request body for retry: %w", err)
			}
			req.Body = body
		}

		resp, strategy, hints, err := c.attempt(req)
		if err == nil || strategy == NoRetry {
			return resp, err
		}
		lastErr = err

		if attempt >= c.maxRetries {
			return resp, &RetryableError{
				StatusCode: statusOf(resp),
				Message:    fmt.Sprintf("max retries (%d) exceeded", c.maxRetries),
				RetryAfter: c.delayFor(strategy, attempt, hints),
				Err:        err,
			}
		}

		delay := c.delayFor(strategy, attempt, hints)
		if delay <= 0 {
			return resp, err
		}
		if resp != nil {
			resp.Body.Close()
		}

		slog.Debug("Retrying request",
			"url", req.URL.String(), "status", statusOf(resp),
			"attempt", attempt+1, "max", c.maxRetries, "delay", delay)

		select {
		case <-req.Context().Done():
			return nil, req.Context().Err()
		case <-time.After(delay):
		}
	}
	return nil, &RetryableError{
		Message: fmt.Sprintf("max retries (%d) exceeded", c.maxRetries),
		Err:     lastErr,
	}
}

func (c *Client) attempt(req *http.Request) (*http.Response, RetryStrategy, RateLimitInfo, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		// Transport errors (refused, reset, timeout) are transient.
		return nil, QuickRetry, RateLimitInfo{}, err
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, NoRetry, RateLimitInfo{}, nil
	}

	var hints RateLimitInfo
	if c.headerParser != nil {
		hints = c.headerParser(resp.Header)
	}
	return resp, c.strategyFunc(resp.StatusCode), hints, fmt.Errorf("HTTP %d", resp.StatusCode)
}

func (c *Client) delayFor(strategy RetryStrategy, attempt int, hints RateLimitInfo) time.Duration {
	switch strategy {
	case BackoffRetry:
		if hints.RetryAfter > 0 {
			return hints.RetryAfter
		}
		if hints.ResetTime > 0 {
			if until := time.Until(time.Unix(hints.ResetTime, 0)); until > 0 {
				return until
			}
		}
		exp := time.Duration(math.Pow(2, float64(attempt))) * c.baseDelay
		jitter := time.Duration(rand.Float64() * 0.1 * float64(exp))
		return exp + jitter
	case QuickRetry:
		if attempt >= 2 {
			return 0
		}
		return time.Duration(attempt+1) * time.Second
	default:
		return 0
	}
}

func statusOf(resp *http.Response) int {
	if resp == nil {
		return 0
	}
	return resp.StatusCode
}
