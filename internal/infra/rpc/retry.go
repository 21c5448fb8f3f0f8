package rpc

import (
	"context"
	"strings"
	"time"
)

// RetryConfig defines retry behavior for outbound chain RPC calls.
type RetryConfig struct {
	MaxAttempts     int
	InitialDelay    time.Duration
	MaxDelay        time.Duration
	BackoffFactor   float64
	RetryableErrors []string
}

// DefaultRetryConfig provides sensible defaults. The substrings cover
// rate limiting, upstream 5xx, timeouts and dropped connections.
var DefaultRetryConfig = RetryConfig{
	MaxAttempts:   5,
	InitialDelay:  1 * time.Second,
	MaxDelay:      30 * time.Second,
	BackoffFactor: 2.0,
	RetryableErrors: []string{
		"429", "500", "502", "503", "504",
		"timeout", "connection reset", "econnreset",
	},
}

// Retryable reports whether err matches one of the configured retryable
// substrings. Matching is case-insensitive.
func (c RetryConfig) Retryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, sub := range c.RetryableErrors {
		if strings.Contains(msg, strings.ToLower(sub)) {
			return true
		}
	}
	return false
}

// WithRetry executes fn with bounded exponential backoff. Non-retryable
// errors, and the last retryable error once attempts are exhausted,
// propagate unchanged. Only chain RPC calls go through here; store
// failures are the caller's concern.
func WithRetry[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	delay := cfg.InitialDelay

	for attempt := 0; ; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}

		if attempt >= cfg.MaxAttempts-1 || !cfg.Retryable(err) {
			return zero, err
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * cfg.BackoffFactor)
		if delay > cfg.MaxDelay {
			delay = cfg.MaxDelay
		}
	}
}

// IsUnsupportedFilter reports whether a subscription error means the
// provider rejected the "mentions" filter style outright. This is the
// signal for the realtime indexer to disable itself permanently instead
// of reconnecting.
func IsUnsupportedFilter(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "-32602") || strings.Contains(msg, "invalid mentions")
}
