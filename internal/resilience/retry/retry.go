// Package retry provides retry logic with exponential backoff and jitter.
// It handles transient upstream failures by automatically retrying failed
// operations while failing fast on client errors.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"time"
)

// Config holds the configuration for retry logic.
type Config struct {
	// MaxAttempts is the total number of attempts, including the first call
	MaxAttempts int

	// InitialBackoff is the base delay before the first retry
	InitialBackoff time.Duration

	// MaxBackoff caps the delay between attempts
	MaxBackoff time.Duration
}

// DefaultConfig returns the default retry configuration: 3 attempts
// starting at a 1 second backoff.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:    3,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
	}
}

// APIConfig returns configuration for social platform API calls.
func APIConfig() Config {
	return Config{
		MaxAttempts:    3,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
	}
}

// GeneratorConfig returns configuration for language-model API calls.
// Moderate retry due to cost considerations.
func GeneratorConfig() Config {
	return Config{
		MaxAttempts:    3,
		InitialBackoff: 2 * time.Second,
		MaxBackoff:     10 * time.Second,
	}
}

// WithBackoff executes fn with bounded retries and exponential backoff.
// The delay before retry n is initialBackoff * 2^(n-1), multiplied by a
// uniform random factor in [0.5, 1.0] to avoid synchronized retry storms.
//
// Non-retryable failures (4xx other than 429, context cancellation) abort
// immediately. When all attempts are exhausted the last observed error is
// returned as-is, so callers can still branch on its status code.
func WithBackoff(ctx context.Context, cfg Config, fn func() error) error {
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		lastErr = fn()

		if lastErr == nil {
			if attempt > 1 {
				slog.Info("operation succeeded after retry",
					slog.Int("attempt", attempt))
			}
			return nil
		}

		if !IsRetryable(lastErr) {
			slog.Warn("non-retryable error, aborting",
				slog.Int("attempt", attempt),
				slog.Any("error", lastErr))
			return lastErr
		}

		if attempt == cfg.MaxAttempts {
			break
		}

		delay := backoffDelay(cfg, attempt)
		slog.Warn("operation failed, retrying",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", cfg.MaxAttempts),
			slog.Duration("delay", delay),
			slog.Any("error", lastErr))

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return fmt.Errorf("retry aborted: %w", ctx.Err())
		}
	}

	slog.Error("max retry attempts exhausted",
		slog.Int("max_attempts", cfg.MaxAttempts),
		slog.Any("error", lastErr))
	return lastErr
}

// backoffDelay computes the sleep before the retry following attempt.
func backoffDelay(cfg Config, attempt int) time.Duration {
	delay := time.Duration(float64(cfg.InitialBackoff) * math.Pow(2, float64(attempt-1)))
	if delay > cfg.MaxBackoff {
		delay = cfg.MaxBackoff
	}
	// #nosec G404 -- math/rand is acceptable for backoff jitter;
	// cryptographic randomness is not required here.
	factor := 0.5 + rand.Float64()*0.5
	return time.Duration(float64(delay) * factor)
}

// IsRetryable determines whether an error is worth retrying. Client errors
// other than 429 are permanent and never retried; everything else (5xx,
// 429, network failures, unclassified errors) is considered transient.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.StatusCode == http.StatusTooManyRequests {
			return true
		}
		if httpErr.StatusCode >= 400 && httpErr.StatusCode < 500 {
			return false
		}
	}

	return true
}

// HTTPError represents an upstream HTTP failure with its status code.
type HTTPError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}
