package crawler

import (
	"context"
	"crypto/rand"
	"errors"
	"math"
	"math/big"
	"time"
)

// FixedRetryPolicy retries every transient error a bounded number of times
// with the same delay between attempts.
type FixedRetryPolicy struct {
	maxRetries int
	delay      time.Duration
}

// NewFixedRetryPolicy builds a policy allowing maxRetries retries after the
// first attempt.
func NewFixedRetryPolicy(maxRetries int, delay time.Duration) *FixedRetryPolicy {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &FixedRetryPolicy{maxRetries: maxRetries, delay: delay}
}

// ShouldRetry decides whether the error is retryable after attempt attempts.
func (p *FixedRetryPolicy) ShouldRetry(err error, attempt int) bool {
	return retryable(err) && attempt <= p.maxRetries
}

// Backoff returns the wait duration before the next attempt.
func (p *FixedRetryPolicy) Backoff(int) time.Duration {
	return p.delay
}

// ExponentialRetryPolicy implements RetryPolicy with jittered backoff.
type ExponentialRetryPolicy struct {
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// NewExponentialRetryPolicy builds a jittered exponential policy.
func NewExponentialRetryPolicy(maxRetries int, baseDelay, maxDelay time.Duration) *ExponentialRetryPolicy {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if baseDelay <= 0 {
		baseDelay = 250 * time.Millisecond
	}
	if maxDelay < baseDelay {
		maxDelay = baseDelay
	}
	return &ExponentialRetryPolicy{
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		maxDelay:   maxDelay,
	}
}

// ShouldRetry decides whether the error is retryable after attempt attempts.
func (p *ExponentialRetryPolicy) ShouldRetry(err error, attempt int) bool {
	return retryable(err) && attempt <= p.maxRetries
}

// Backoff returns the wait duration before the next attempt.
func (p *ExponentialRetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(p.baseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(p.maxDelay) {
		delay = float64(p.maxDelay)
	}
	jitter := p.randomJitter(time.Duration(delay) / 2)
	return time.Duration(delay/2) + jitter
}

func (p *ExponentialRetryPolicy) randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	bound := big.NewInt(int64(limit))
	n, err := rand.Int(rand.Reader, bound)
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}

// retryable treats timeouts, connection errors and bad statuses alike; only
// caller cancellation and payload errors are final.
func retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, ErrMalformedPayload) || errors.Is(err, ErrNoData) {
		return false
	}
	return true
}
