// Package notifier delivers operator alerts about workflow failures.
// Critical alerts go out immediately; warnings are queued and flushed as a
// single batched message on a fixed interval. Delivery channels (Slack,
// log) are pluggable through the Sink interface.
package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"replyflow/internal/errclass"
	"replyflow/internal/observability/metrics"
)

// Alert describes one classified failure heading to an operator.
type Alert struct {
	// CorrelationID ties the alert back to the workflow cycle that
	// produced it
	CorrelationID string

	// Category is the classified failure family
	Category errclass.Category

	// Message is the human-readable failure description
	Message string

	// Timestamp is when the failure was observed
	Timestamp time.Time

	// Context carries extra key/value detail (comment id, operation)
	Context map[string]string
}

// Sink is a single delivery channel for alert messages.
// Implementations handle their own rate limiting and retries.
type Sink interface {
	// Send delivers a formatted alert message. critical distinguishes
	// page-worthy messages from batched warnings.
	Send(ctx context.Context, message string, critical bool) error
}

// Config holds the notification service settings.
type Config struct {
	// Enabled short-circuits all delivery when false
	Enabled bool

	// FlushInterval is how often queued warnings are batched and sent
	FlushInterval time.Duration
}

// DefaultConfig returns notifications disabled with an hourly warning
// flush, matching the conservative production default.
func DefaultConfig() Config {
	return Config{
		Enabled:       false,
		FlushInterval: time.Hour,
	}
}

// Service fans alerts out to the configured sinks.
type Service struct {
	cfg   Config
	sinks []Sink

	mu       sync.Mutex
	warnings []Alert

	done   chan struct{}
	closed sync.Once
}

// NewService creates a notification service and starts the warning flush
// loop. Call Shutdown to stop it and flush any remaining warnings.
func NewService(cfg Config, sinks ...Sink) *Service {
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = time.Hour
	}

	s := &Service{
		cfg:   cfg,
		sinks: sinks,
		done:  make(chan struct{}),
	}
	go s.flushLoop()

	slog.Info("notification service initialized",
		slog.Bool("enabled", cfg.Enabled),
		slog.Int("sinks", len(sinks)),
		slog.Duration("flush_interval", cfg.FlushInterval))
	return s
}

// NotifyCritical sends an alert to every sink immediately.
func (s *Service) NotifyCritical(ctx context.Context, alert Alert) {
	if !s.cfg.Enabled {
		slog.Debug("notifications disabled, skipping critical alert",
			slog.String("correlation_id", alert.CorrelationID))
		return
	}

	slog.Info("sending critical alert",
		slog.String("correlation_id", alert.CorrelationID),
		slog.String("category", string(alert.Category)))

	s.dispatch(ctx, formatCritical(alert), true)
}

// QueueWarning adds an alert to the batch sent on the next flush.
func (s *Service) QueueWarning(alert Alert) {
	if !s.cfg.Enabled {
		return
	}

	s.mu.Lock()
	s.warnings = append(s.warnings, alert)
	s.mu.Unlock()

	slog.Debug("queued warning alert",
		slog.String("correlation_id", alert.CorrelationID),
		slog.String("category", string(alert.Category)))
}

// PendingWarnings returns the number of warnings waiting for the next
// flush.
func (s *Service) PendingWarnings() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.warnings)
}

// Flush sends any queued warnings now instead of waiting for the ticker.
func (s *Service) Flush(ctx context.Context) {
	s.mu.Lock()
	batch := s.warnings
	s.warnings = nil
	s.mu.Unlock()

	if len(batch) == 0 {
		return
	}

	slog.Info("flushing batched warnings", slog.Int("count", len(batch)))
	s.dispatch(ctx, formatBatch(batch), false)
}

// Shutdown stops the flush loop and delivers any queued warnings.
func (s *Service) Shutdown(ctx context.Context) {
	s.closed.Do(func() {
		close(s.done)
	})
	s.Flush(ctx)
	slog.Info("notification service stopped")
}

func (s *Service) flushLoop() {
	ticker := time.NewTicker(s.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Flush(context.Background())
		case <-s.done:
			return
		}
	}
}

// dispatch sends one message to every sink concurrently. A failing sink
// is logged and counted but never fails the others.
func (s *Service) dispatch(ctx context.Context, message string, critical bool) {
	severity := "warning"
	if critical {
		severity = "critical"
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, sink := range s.sinks {
		sink := sink
		g.Go(func() error {
			if err := sink.Send(ctx, message, critical); err != nil {
				slog.Error("alert delivery failed",
					slog.String("severity", severity),
					slog.Any("error", err))
				metrics.RecordNotificationSent(severity, false)
				return nil
			}
			metrics.RecordNotificationSent(severity, true)
			return nil
		})
	}
	_ = g.Wait()
}

func formatCritical(alert Alert) string {
	var b strings.Builder

	b.WriteString("=== CRITICAL ERROR ===\n")
	fmt.Fprintf(&b, "Correlation ID: %s\n", alert.CorrelationID)
	fmt.Fprintf(&b, "Category: %s\n", alert.Category)
	fmt.Fprintf(&b, "Timestamp: %s\n", alert.Timestamp.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Message: %s\n", alert.Message)
	if len(alert.Context) > 0 {
		fmt.Fprintf(&b, "Context: %v\n", alert.Context)
	}
	b.WriteString("=====================")

	return b.String()
}

func formatBatch(warnings []Alert) string {
	var b strings.Builder

	b.WriteString("=== BATCHED WARNING NOTIFICATIONS ===\n")
	fmt.Fprintf(&b, "Total Warnings: %d\n\n", len(warnings))
	for _, w := range warnings {
		fmt.Fprintf(&b, "- [%s] %s (%s)\n", w.Category, w.Message, w.CorrelationID)
	}
	b.WriteString("=====================================")

	return b.String()
}
