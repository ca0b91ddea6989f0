package github

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"issuesync/logger"
)

// Poster is anything that can send a GraphQL document to GitHub.
type Poster interface {
	PostGraphQL(ctx context.Context, query string) ([]byte, error)
}

// RetryConfig configures the retry behavior for API calls
type RetryConfig struct {
	// MaxRetries is the maximum number of retry attempts
	MaxRetries int
	// InitialBackoff is the initial backoff duration
	InitialBackoff time.Duration
	// MaxBackoff caps both computed backoff and server-requested waits
	MaxBackoff time.Duration
	// BackoffMultiplier is the multiplier for exponential backoff
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        3,
		InitialBackoff:    1 * time.Second,
		MaxBackoff:        60 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// RetryClient wraps a Poster with exponential backoff on retryable
// transport errors, honoring Retry-After and rate limit reset headers.
type RetryClient struct {
	next   Poster
	config RetryConfig
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewRetryClient creates a new RetryClient with the given configuration
func NewRetryClient(next Poster, config RetryConfig) *RetryClient {
	if config.BackoffMultiplier < 1 {
		config.BackoffMultiplier = 1
	}
	return &RetryClient{
		next:   next,
		config: config,
		now:    time.Now,
		sleep:  sleepContext,
	}
}

// PostGraphQL implements Poster with retry logic
func (r *RetryClient) PostGraphQL(ctx context.Context, query string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		body, err := r.next.PostGraphQL(ctx, query)
		if err == nil {
			return body, nil
		}
		lastErr = err

		var terr *TransportError
		if !errors.As(err, &terr) || !terr.Retryable() {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, err
		}
		if attempt == r.config.MaxRetries {
			break
		}

		wait := r.backoff(attempt, terr)
		logger.Warn("Retrying GitHub request",
			zap.Int("attempt", attempt+1),
			zap.Int("max_retries", r.config.MaxRetries),
			zap.Int("status_code", terr.StatusCode),
			zap.Bool("rate_limited", terr.RateLimited()),
			zap.Duration("wait", wait))

		if err := r.sleep(ctx, wait); err != nil {
			return nil, lastErr
		}
	}

	return nil, fmt.Errorf("failed after %d retries: %w", r.config.MaxRetries, lastErr)
}

// backoff calculates the wait before the next attempt
func (r *RetryClient) backoff(attempt int, terr *TransportError) time.Duration {
	if terr.RateLimited() {
		if terr.RateLimit.RetryAfter > 0 {
			return r.capped(terr.RateLimit.RetryAfter)
		}
		if !terr.RateLimit.Reset.IsZero() {
			if until := terr.RateLimit.Reset.Sub(r.now()); until > 0 {
				return r.capped(until)
			}
		}
	}

	backoff := float64(r.config.InitialBackoff) * math.Pow(r.config.BackoffMultiplier, float64(attempt))
	if backoff > float64(r.config.MaxBackoff) {
		backoff = float64(r.config.MaxBackoff)
	}

	// ±10% jitter
	backoff += backoff * 0.1 * (2*rand.Float64() - 1)
	return time.Duration(backoff)
}

func (r *RetryClient) capped(d time.Duration) time.Duration {
	if r.config.MaxBackoff > 0 && d > r.config.MaxBackoff {
		return r.config.MaxBackoff
	}
	return d
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
