package httpclient

import (
	"net/http"
	"strconv"
	"time"
)

// ParseStandardHeaders reads the common Retry-After header (seconds or
// HTTP-date) and X-RateLimit-Reset (unix seconds).
func ParseStandardHeaders(headers http.Header) RateLimitInfo {
	info := RateLimitInfo{}

	if retryAfter := headers.Get("Retry-After"); retryAfter != "" {
		if seconds, err := strconv.Atoi(retryAfter); err == nil {
			info.RetryAfter = time.Duration(seconds) * time.Second
		} else if at, err := http.ParseTime(retryAfter); err == nil {
			if until := time.Until(at); until > 0 {
				info.RetryAfter = until
			}
		}
	}

	if reset := headers.Get("X-RateLimit-Reset"); reset != "" {
		if unix, err := strconv.ParseInt(reset, 10, 64); err == nil {
			info.ResetTime = unix
		}
	}

	return info
}
