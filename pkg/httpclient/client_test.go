package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Options(t *testing.T) {
	tests := []struct {
		name     string
		options  []Option
		validate func(t *testing.T, c *Client)
	}{
		{
			name:    "defaults",
			options: nil,
			validate: func(t *testing.T, c *Client) {
				assert.Equal(t, 5, c.maxRetries)
				assert.Equal(t, 2*time.Second, c.baseDelay)
				assert.Equal(t, 60*time.Second, c.client.Timeout)
				assert.NotNil(t, c.strategyFunc)
				assert.NotNil(t, c.headerParser)
			},
		},
		{
			name:    "custom retries and delay",
			options: []Option{WithMaxRetries(2), WithBaseDelay(time.Second)},
			validate: func(t *testing.T, c *Client) {
				assert.Equal(t, 2, c.maxRetries)
				assert.Equal(t, time.Second, c.baseDelay)
			},
		},
		{
			name:    "custom timeout",
			options: []Option{WithTimeout(10 * time.Second)},
			validate: func(t *testing.T, c *Client) {
				assert.Equal(t, 10*time.Second, c.client.Timeout)
			},
		},
		{
			name: "custom strategy",
			options: []Option{WithStrategy(func(code int) RetryStrategy {
				return BackoffRetry
			})},
			validate: func(t *testing.T, c *Client) {
				assert.Equal(t, BackoffRetry, c.strategyFunc(404))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.validate(t, New(tt.options...))
		})
	}
}

func TestDefaultStrategy(t *testing.T) {
	tests := []struct {
		status int
		want   RetryStrategy
	}{
		{http.StatusTooManyRequests, BackoffRetry},
		{http.StatusServiceUnavailable, BackoffRetry},
		{http.StatusInternalServerError, QuickRetry},
		{http.StatusBadGateway, QuickRetry},
		{http.StatusGatewayTimeout, QuickRetry},
		{http.StatusRequestTimeout, QuickRetry},
		{http.StatusBadRequest, NoRetry},
		{http.StatusUnauthorized, NoRetry},
		{http.StatusNotFound, NoRetry},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DefaultStrategy(tt.status), "status %d", tt.status)
	}
}

func TestDo_SucceedsAfterServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(WithMaxRetries(3), WithBaseDelay(time.Millisecond))
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := c.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int32(2), calls.Load())
}

func TestDo_NoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	c := New(WithMaxRetries(3), WithBaseDelay(time.Millisecond))
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := c.Do(req)
	require.Error(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestDo_HonorsRetryAfterHeader(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(WithMaxRetries(2), WithBaseDelay(time.Millisecond))
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := c.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, int32(2), calls.Load())
}

func TestDo_ContextCancelDuringBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	c := New(WithMaxRetries(3))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	start := time.Now()
	_, err = c.Do(req) //nolint:bodyclose // error path
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestRetryableError(t *testing.T) {
	err := &RetryableError{StatusCode: 429, Message: "rate limited", RetryAfter: 3 * time.Second}
	assert.Contains(t, err.Error(), "429")
	assert.Contains(t, err.Error(), "retry after")
	assert.True(t, err.IsRetryable())
}

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.True(t, IsTransient(&RetryableError{StatusCode: 429}))
	assert.True(t, IsTransient(context.DeadlineExceeded))
	assert.False(t, IsTransient(assert.AnError))
}

func TestParseStandardHeaders(t *testing.T) {
	h := http.Header{}
	h.Set("Retry-After", "7")
	h.Set("X-RateLimit-Reset", "1700000000")

	info := ParseStandardHeaders(h)
	assert.Equal(t, 7*time.Second, info.RetryAfter)
	assert.Equal(t, int64(1700000000), info.ResetTime)

	empty := ParseStandardHeaders(http.Header{})
	assert.Zero(t, empty.RetryAfter)
	assert.Zero(t, empty.ResetTime)
}
