package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testConfig() Config {
	return Config{
		MaxAttempts:    3,
		InitialBackoff: 5 * time.Millisecond,
		MaxBackoff:     50 * time.Millisecond,
	}
}

func TestWithBackoff_Success(t *testing.T) {
	attempts := 0
	err := WithBackoff(context.Background(), testConfig(), func() error {
		attempts++
		return nil
	})

	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
}

func TestWithBackoff_SuccessAfterRetry(t *testing.T) {
	attempts := 0
	err := WithBackoff(context.Background(), testConfig(), func() error {
		attempts++
		if attempts < 3 {
			return &HTTPError{StatusCode: 500, Message: "Server Error"}
		}
		return nil
	})

	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestWithBackoff_SurfacesLastError(t *testing.T) {
	attempts := 0
	testErr := &HTTPError{StatusCode: 503, Message: "Service Unavailable"}
	err := WithBackoff(context.Background(), testConfig(), func() error {
		attempts++
		return testErr
	})

	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
	// The last observed failure surfaces as-is so callers can branch on
	// the status code.
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != 503 {
		t.Errorf("expected the 503 HTTPError to surface, got %v", err)
	}
}

func TestWithBackoff_ClientErrorNotRetried(t *testing.T) {
	attempts := 0
	testErr := &HTTPError{StatusCode: 400, Message: "Bad Request"}
	err := WithBackoff(context.Background(), testConfig(), func() error {
		attempts++
		return testErr
	})

	if attempts != 1 {
		t.Errorf("expected 1 attempt (non-retryable), got %d", attempts)
	}
	if err != testErr {
		t.Errorf("expected same error, got %v", err)
	}
}

func TestWithBackoff_RateLimitRetried(t *testing.T) {
	attempts := 0
	err := WithBackoff(context.Background(), testConfig(), func() error {
		attempts++
		return &HTTPError{StatusCode: 429, Message: "Too Many Requests"}
	})

	if attempts != 3 {
		t.Errorf("expected 429 to be retried 3 times, got %d attempts", attempts)
	}
	if err == nil {
		t.Error("expected error after exhausting retries")
	}
}

func TestWithBackoff_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	errCh := make(chan error, 1)
	go func() {
		errCh <- WithBackoff(ctx, Config{
			MaxAttempts:    5,
			InitialBackoff: 1 * time.Second,
			MaxBackoff:     10 * time.Second,
		}, func() error {
			attempts++
			return &HTTPError{StatusCode: 500, Message: "Server Error"}
		})
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("retry did not abort on context cancellation")
	}

	if attempts != 1 {
		t.Errorf("expected 1 attempt before cancellation, got %d", attempts)
	}
}

func TestBackoffDelay_Increases(t *testing.T) {
	cfg := Config{
		MaxAttempts:    5,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
	}

	// With jitter in [0.5, 1.0], the minimum delay for attempt n is
	// initial * 2^(n-1) * 0.5; the expected delay strictly increases.
	for attempt := 1; attempt <= 4; attempt++ {
		d := backoffDelay(cfg, attempt)
		lower := time.Duration(float64(cfg.InitialBackoff) * float64(int(1)<<(attempt-1)) / 2)
		upper := cfg.InitialBackoff * time.Duration(int(1)<<(attempt-1))
		if d < lower || d > upper {
			t.Errorf("attempt %d: delay %v outside [%v, %v]", attempt, d, lower, upper)
		}
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"nil", nil, false},
		{"500", &HTTPError{StatusCode: 500}, true},
		{"429", &HTTPError{StatusCode: 429}, true},
		{"404", &HTTPError{StatusCode: 404}, false},
		{"401", &HTTPError{StatusCode: 401}, false},
		{"network", errors.New("connection reset by peer"), true},
		{"canceled", context.Canceled, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.retryable {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.retryable)
			}
		})
	}
}
