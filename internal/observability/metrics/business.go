package metrics

import (
	"time"

	"github.com/sony/gobreaker"
)

// RecordPollCycle records one completed poll cycle and its duration.
func RecordPollCycle(success bool, duration time.Duration) {
	PollCyclesTotal.WithLabelValues(outcome(success)).Inc()
	PollCycleDuration.Observe(duration.Seconds())
}

// RecordCommentProcessed records a comment reaching a final status for this
// cycle. Status is the interaction status string (e.g. "POSTED", "FAILED").
func RecordCommentProcessed(status string) {
	CommentsProcessedTotal.WithLabelValues(status).Inc()
}

// RecordReplyPosted records a reply post attempt.
func RecordReplyPosted(success bool) {
	RepliesPostedTotal.WithLabelValues(outcome(success)).Inc()
}

// RecordResponseGenerated records a generation attempt against a provider
// ("openai" or "claude") with its latency.
func RecordResponseGenerated(provider string, success bool, duration time.Duration) {
	ResponsesGeneratedTotal.WithLabelValues(provider, outcome(success)).Inc()
	GenerationDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordConfidenceScore observes the confidence score of a generated response.
func RecordConfidenceScore(score float64) {
	GenerationConfidence.Observe(score)
}

// UpdateCircuitBreakerState updates the state gauge for a named breaker.
func UpdateCircuitBreakerState(name string, state gobreaker.State) {
	var v float64
	switch state {
	case gobreaker.StateClosed:
		v = 0
	case gobreaker.StateHalfOpen:
		v = 1
	case gobreaker.StateOpen:
		v = 2
	}
	CircuitBreakerState.WithLabelValues(name).Set(v)
}

// RecordRateLimitHit records an upstream 429 response.
func RecordRateLimitHit() {
	RateLimitHitsTotal.Inc()
}

// UpdateRateLimiterTokens updates the available-token gauge.
func UpdateRateLimiterTokens(tokens int) {
	RateLimiterTokens.Set(float64(tokens))
}

// RecordRetry records one retry attempt beyond the first for an operation.
func RecordRetry(operation string) {
	RetriesTotal.WithLabelValues(operation).Inc()
}

// UpdateActiveInteractions updates the active-history-size gauge.
func UpdateActiveInteractions(count int) {
	InteractionsActive.Set(float64(count))
}

// RecordArchivedInteractions records interactions moved to an archive file.
func RecordArchivedInteractions(count int) {
	InteractionsArchivedTotal.Add(float64(count))
}

// RecordNotificationSent records a dispatched notification.
// Severity is "critical" or "warning".
func RecordNotificationSent(severity string, success bool) {
	NotificationsSentTotal.WithLabelValues(severity, outcome(success)).Inc()
}

// RecordError records a classified error by category.
func RecordError(category string) {
	ErrorsTotal.WithLabelValues(category).Inc()
}

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
