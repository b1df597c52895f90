package resilience

import (
	"errors"
	"net/http"
	"time"
)

// StatusCoder is implemented by provider errors that carry the HTTP status
// of the failed response.
type StatusCoder interface {
	error
	HTTPStatus() int
}

// RetryHinter is implemented by provider errors whose response named a
// Retry-After delay.
type RetryHinter interface {
	RetryAfter() time.Duration
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var sc StatusCoder
	if errors.As(err, &sc) {
		return sc.HTTPStatus()
	}
	return 0
}

// IsRetryableStatus reports whether err carries a status worth retrying:
// 408, 429 and the 500, 502, 503 and 504 gateway family. Errors without a
// status are transport or caller failures and are never retried.
func IsRetryableStatus(err error) bool {
	switch StatusOf(err) {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

// retryHint returns the delay a provider asked for, or 0.
func retryHint(err error) time.Duration {
	var h RetryHinter
	if errors.As(err, &h) {
		if d := h.RetryAfter(); d > 0 {
			return d
		}
	}
	return 0
}
