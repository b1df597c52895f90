package jobboard

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const maxErrorBody = 512

// APIError is returned for any non-2xx response from a job board.
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
	// Wait is the parsed Retry-After header, if any.
	Wait time.Duration
}

func newAPIError(provider string, status int, body []byte) *APIError {
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return &APIError{Provider: provider, StatusCode: status, Body: string(body)}
}

func (e *APIError) Error() string {
	return fmt.Sprintf("jobboard: %s api error: %d %s", e.Provider, e.StatusCode, http.StatusText(e.StatusCode))
}

// RetryAfter exposes the provider's requested delay to the retry policy.
func (e *APIError) RetryAfter() time.Duration {
	return e.Wait
}

// parseRetryAfter reads the delay-seconds or HTTP-date form of Retry-After.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil && t.After(now) {
		return t.Sub(now)
	}
	return 0
}

// HTTPStatus exposes the status code to the retry policy.
func (e *APIError) HTTPStatus() int {
	return e.StatusCode
}

// IsAuthError reports whether err is a 401 or 403 from a job board.
func IsAuthError(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden
	}
	return false
}

// IsNotFound reports whether err is a 404 from a job board.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}
