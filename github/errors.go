package github

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Common errors
var (
	ErrTransport = errors.New("github transport error")
	ErrDecode    = errors.New("github response decode error")
)

// RateLimit represents GitHub's rate limit information
type RateLimit struct {
	Limit      int
	Remaining  int
	Reset      time.Time
	RetryAfter time.Duration
}

// TransportError is returned for any failed exchange with GitHub: a network
// failure (StatusCode 0) or a non-2xx response.
type TransportError struct {
	StatusCode int
	Cause      error
	RateLimit  RateLimit
}

func (e *TransportError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("github request failed: %v", e.Cause)
	}
	if e.Cause != nil {
		return fmt.Sprintf("github http error %d: %v", e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("github http error %d", e.StatusCode)
}

func (e *TransportError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrTransport}
	}
	return []error{ErrTransport, e.Cause}
}

// RateLimited reports whether the response was a primary or secondary rate limit.
func (e *TransportError) RateLimited() bool {
	switch e.StatusCode {
	case http.StatusTooManyRequests:
		return true
	case http.StatusForbidden:
		return e.RateLimit.RetryAfter > 0 || (e.RateLimit.Limit > 0 && e.RateLimit.Remaining == 0)
	}
	return false
}

// Retryable reports whether repeating the same request may succeed.
func (e *TransportError) Retryable() bool {
	if e.StatusCode == 0 {
		return true
	}
	if e.RateLimited() {
		return true
	}
	switch e.StatusCode {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// DecodeError is returned when a payload is not a parseable response envelope.
type DecodeError struct {
	Cause error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode github response: %v", e.Cause)
}

func (e *DecodeError) Unwrap() []error {
	return []error{ErrDecode, e.Cause}
}

// parseRateLimit parses rate limit information from response headers
func parseRateLimit(h http.Header) RateLimit {
	limit, _ := strconv.Atoi(h.Get("X-RateLimit-Limit"))
	remaining, _ := strconv.Atoi(h.Get("X-RateLimit-Remaining"))
	reset, _ := strconv.ParseInt(h.Get("X-RateLimit-Reset"), 10, 64)
	retryAfter, _ := strconv.Atoi(h.Get("Retry-After"))

	rl := RateLimit{
		Limit:      limit,
		Remaining:  remaining,
		RetryAfter: time.Duration(retryAfter) * time.Second,
	}
	if reset > 0 {
		rl.Reset = time.Unix(reset, 0)
	}
	return rl
}
