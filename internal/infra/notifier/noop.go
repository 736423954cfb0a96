package notifier

import "context"

// NoOpSink discards all alerts. Used in tests and when notifications are
// fully disabled, so callers never need a nil check.
type NoOpSink struct{}

// NewNoOpSink creates a NoOpSink.
func NewNoOpSink() *NoOpSink {
	return &NoOpSink{}
}

// Send does nothing and returns nil.
func (n *NoOpSink) Send(context.Context, string, bool) error {
	return nil
}
