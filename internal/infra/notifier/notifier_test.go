package notifier

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"replyflow/internal/errclass"
)

// recordingSink captures every delivered message for assertions.
type recordingSink struct {
	mu       sync.Mutex
	messages []string
	critical []bool
}

func (r *recordingSink) Send(_ context.Context, message string, critical bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, message)
	r.critical = append(r.critical, critical)
	return nil
}

func (r *recordingSink) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages)
}

func (r *recordingSink) last() (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.messages) == 0 {
		return "", false
	}
	return r.messages[len(r.messages)-1], r.critical[len(r.critical)-1]
}

func testAlert(category errclass.Category, message string) Alert {
	return Alert{
		CorrelationID: "corr-123",
		Category:      category,
		Message:       message,
		Timestamp:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Context:       map[string]string{"comment_id": "c1"},
	}
}

func TestNotifyCriticalDeliversImmediately(t *testing.T) {
	sink := &recordingSink{}
	s := NewService(Config{Enabled: true, FlushInterval: time.Hour}, sink)
	defer s.Shutdown(context.Background())

	s.NotifyCritical(context.Background(), testAlert(errclass.Authentication, "token expired"))

	require.Equal(t, 1, sink.count())
	msg, critical := sink.last()
	assert.True(t, critical)
	assert.Contains(t, msg, "=== CRITICAL ERROR ===")
	assert.Contains(t, msg, "Correlation ID: corr-123")
	assert.Contains(t, msg, "Category: AUTHENTICATION")
	assert.Contains(t, msg, "Message: token expired")
}

func TestWarningsAreBatchedUntilFlush(t *testing.T) {
	sink := &recordingSink{}
	s := NewService(Config{Enabled: true, FlushInterval: time.Hour}, sink)
	defer s.Shutdown(context.Background())

	s.QueueWarning(testAlert(errclass.RateLimit, "upstream throttling"))
	s.QueueWarning(testAlert(errclass.NetworkError, "connection reset"))

	assert.Equal(t, 0, sink.count(), "warnings must not be delivered before a flush")
	assert.Equal(t, 2, s.PendingWarnings())

	s.Flush(context.Background())

	require.Equal(t, 1, sink.count(), "a flush sends one batched message")
	msg, critical := sink.last()
	assert.False(t, critical)
	assert.Contains(t, msg, "Total Warnings: 2")
	assert.Contains(t, msg, "[RATE_LIMIT] upstream throttling")
	assert.Contains(t, msg, "[NETWORK_ERROR] connection reset")
	assert.Equal(t, 0, s.PendingWarnings())
}

func TestFlushWithEmptyQueueSendsNothing(t *testing.T) {
	sink := &recordingSink{}
	s := NewService(Config{Enabled: true, FlushInterval: time.Hour}, sink)
	defer s.Shutdown(context.Background())

	s.Flush(context.Background())
	assert.Equal(t, 0, sink.count())
}

func TestDisabledServiceDropsEverything(t *testing.T) {
	sink := &recordingSink{}
	s := NewService(Config{Enabled: false, FlushInterval: time.Hour}, sink)
	defer s.Shutdown(context.Background())

	s.NotifyCritical(context.Background(), testAlert(errclass.Authentication, "token expired"))
	s.QueueWarning(testAlert(errclass.RateLimit, "throttled"))
	s.Flush(context.Background())

	assert.Equal(t, 0, sink.count())
	assert.Equal(t, 0, s.PendingWarnings())
}

func TestShutdownFlushesRemainingWarnings(t *testing.T) {
	sink := &recordingSink{}
	s := NewService(Config{Enabled: true, FlushInterval: time.Hour}, sink)

	s.QueueWarning(testAlert(errclass.StorageError, "disk full"))
	s.Shutdown(context.Background())

	require.Equal(t, 1, sink.count())
	msg, _ := sink.last()
	assert.Contains(t, msg, "disk full")
}

func TestPeriodicFlush(t *testing.T) {
	sink := &recordingSink{}
	s := NewService(Config{Enabled: true, FlushInterval: 30 * time.Millisecond}, sink)
	defer s.Shutdown(context.Background())

	s.QueueWarning(testAlert(errclass.RateLimit, "throttled"))

	assert.Eventually(t, func() bool {
		return sink.count() == 1
	}, time.Second, 10*time.Millisecond, "the flush loop should deliver the batch")
}

func TestDispatchFansOutToAllSinks(t *testing.T) {
	first := &recordingSink{}
	second := &recordingSink{}
	s := NewService(Config{Enabled: true, FlushInterval: time.Hour}, first, second)
	defer s.Shutdown(context.Background())

	s.NotifyCritical(context.Background(), testAlert(errclass.ConfigurationError, "missing api key"))

	assert.Equal(t, 1, first.count())
	assert.Equal(t, 1, second.count())
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10, "..."))
	assert.Equal(t, "abcd...", truncate(strings.Repeat("abcd", 10), 7, "..."))
}
