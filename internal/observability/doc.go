// Package observability provides the observability infrastructure for the
// reply workflow: structured logging and Prometheus metrics.
//
// Subpackages:
//   - logging: Structured logging utilities with slog
//   - metrics: Prometheus metrics registry and recorders
//
// Example usage:
//
//	import (
//	    "replyflow/internal/observability/logging"
//	    "replyflow/internal/observability/metrics"
//	)
//
//	func main() {
//	    logger := logging.NewLogger()
//	    logger.Info("application started")
//
//	    metrics.RecordPollCycle(true, elapsed)
//	}
package observability
