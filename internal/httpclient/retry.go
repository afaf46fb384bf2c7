package httpclient

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/ternarybob/arbor"
)

// RetryPolicy bounds how transient upstream failures are retried. A request
// is retried on network errors and on the configured status codes; any other
// failure aborts immediately.
type RetryPolicy struct {
	MaxAttempts          int
	InitialBackoff       time.Duration
	BackoffMultiplier    float64
	MaxBackoff           time.Duration
	RetryableStatusCodes map[int]bool
}

// NewRetryPolicy returns the default policy: three attempts, backoff that
// doubles from one second, retrying 429 and the 5xx family.
func NewRetryPolicy() *RetryPolicy {
	return &RetryPolicy{
		MaxAttempts:       3,
		InitialBackoff:    1 * time.Second,
		BackoffMultiplier: 2.0,
		MaxBackoff:        30 * time.Second,
		RetryableStatusCodes: map[int]bool{
			429: true,
			500: true,
			502: true,
			503: true,
			504: true,
		},
	}
}

// Retryable reports whether a failure class may be retried at all.
// statusCode zero means the request never completed (network error).
func (p *RetryPolicy) Retryable(statusCode int) bool {
	if statusCode == 0 {
		return true
	}
	return p.RetryableStatusCodes[statusCode]
}

// ShouldRetry reports whether a failed attempt may be retried: the failure
// class must be retryable and budget must remain.
func (p *RetryPolicy) ShouldRetry(statusCode int, attempt int) bool {
	return attempt < p.MaxAttempts-1 && p.Retryable(statusCode)
}

// Backoff returns the sleep before the next attempt: the doubling backoff
// counter, plus one second per attempt already made, plus up to one second
// of jitter so parallel workers do not re-hit the upstream in lockstep.
func (p *RetryPolicy) Backoff(attempt int) time.Duration {
	backoff := float64(p.InitialBackoff)
	for i := 0; i < attempt; i++ {
		backoff *= p.BackoffMultiplier
	}

	delay := time.Duration(backoff) +
		time.Duration(attempt)*time.Second +
		time.Duration(rand.Float64()*float64(time.Second))

	if delay > p.MaxBackoff {
		delay = p.MaxBackoff
	}
	return delay
}

// Execute runs fn until it succeeds, the retry budget is exhausted, or the
// context is cancelled. fn returns the HTTP status code it observed (zero if
// the request never completed) together with its error. When the budget runs
// out the returned error wraps ErrUnavailable.
func (p *RetryPolicy) Execute(ctx context.Context, logger arbor.ILogger, url string, fn func() (int, error)) error {
	var lastErr error

	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		statusCode, err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !p.Retryable(statusCode) {
			return err
		}
		if attempt == p.MaxAttempts-1 {
			break
		}

		delay := p.Backoff(attempt)
		logger.Warn().
			Str("url", url).
			Int("attempt", attempt+1).
			Int("status", statusCode).
			Str("delay", delay.String()).
			Err(err).
			Msg("Request failed, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return fmt.Errorf("%w: %s: %v", ErrUnavailable, url, lastErr)
}
