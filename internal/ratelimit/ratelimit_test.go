package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestAcquireConsumesTokens(t *testing.T) {
	l := New(2, time.Minute)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := l.Acquire(ctx); err != nil {
			t.Fatalf("acquire %d failed: %v", i+1, err)
		}
	}

	if got := l.Available(); got != 0 {
		t.Errorf("expected empty bucket, got %d tokens", got)
	}
}

func TestAcquireBlocksUntilRefill(t *testing.T) {
	// 10 tokens per second: one token becomes available after ~100ms.
	l := New(1, 100*time.Millisecond)
	ctx := context.Background()

	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}

	start := time.Now()
	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("second acquire failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("second acquire returned after %v, expected it to block for the refill", elapsed)
	}
}

func TestAcquireRespectsContext(t *testing.T) {
	l := New(1, time.Hour)
	ctx := context.Background()

	if err := l.Acquire(ctx); err != nil {
		t.Fatalf("first acquire failed: %v", err)
	}

	cancelCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if err := l.Acquire(cancelCtx); err == nil {
		t.Error("expected acquire to fail when context expires before a token is available")
	}
}

func TestNotifyRateLimitedDrainsBucket(t *testing.T) {
	l := New(10, time.Minute)

	if got := l.Available(); got != 10 {
		t.Fatalf("expected full bucket, got %d", got)
	}

	l.NotifyRateLimited()

	if got := l.Available(); got != 0 {
		t.Errorf("expected drained bucket, got %d tokens", got)
	}
}
