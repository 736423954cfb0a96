// Package ratelimit throttles outbound calls to the social platform API
// with a token bucket. It wraps golang.org/x/time/rate, which refills the
// bucket lazily and blocks waiters until a token is available.
package ratelimit

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"
)

// Limiter is a blocking token bucket shared by all workflow cycles.
// Capacity C refilled over window W yields an effective rate of C/W
// tokens per second.
type Limiter struct {
	limiter  *rate.Limiter
	capacity int
}

// New creates a Limiter holding at most capacity tokens, refilled evenly
// over the given window.
//
// Example:
//
//	limiter := ratelimit.New(100, time.Minute) // 100 requests per minute
func New(capacity int, window time.Duration) *Limiter {
	perSecond := float64(capacity) / window.Seconds()
	return &Limiter{
		limiter:  rate.NewLimiter(rate.Limit(perSecond), capacity),
		capacity: capacity,
	}
}

// Acquire blocks until a token is available, then consumes it. It returns
// a non-nil error only if ctx is canceled or its deadline would expire
// before a token becomes available. Safe for concurrent callers.
func (l *Limiter) Acquire(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}

// NotifyRateLimited drains the bucket to zero. Called when the upstream
// returns 429, so subsequent callers wait out the externally observed
// limit window instead of hammering the API.
func (l *Limiter) NotifyRateLimited() {
	now := time.Now()
	if n := int(l.limiter.TokensAt(now)); n > 0 {
		l.limiter.AllowN(now, n)
	}
	slog.Info("upstream rate limit hit, token bucket drained",
		slog.Int("capacity", l.capacity))
}

// Available returns the number of whole tokens currently in the bucket.
func (l *Limiter) Available() int {
	n := int(l.limiter.Tokens())
	if n < 0 {
		return 0
	}
	return n
}

// Capacity returns the configured bucket capacity.
func (l *Limiter) Capacity() int {
	return l.capacity
}
