package notifier

import (
	"context"
	"log/slog"
)

// LogSink writes alerts to the structured log. It is the default channel
// when no webhook is configured.
type LogSink struct{}

// NewLogSink creates a log-backed sink.
func NewLogSink() *LogSink {
	return &LogSink{}
}

// Send implements the Sink interface.
func (l *LogSink) Send(_ context.Context, message string, critical bool) error {
	if critical {
		slog.Error("CRITICAL ERROR NOTIFICATION", slog.String("notification", message))
	} else {
		slog.Warn("BATCHED WARNING NOTIFICATIONS", slog.String("notification", message))
	}
	return nil
}
