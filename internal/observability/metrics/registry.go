// Package metrics provides centralized Prometheus metrics for the application.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Workflow metrics track poll cycles and comment processing outcomes
var (
	// PollCyclesTotal counts poll cycles by outcome ("success" or "failure")
	PollCyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workflow_poll_cycles_total",
			Help: "Total number of comment poll cycles",
		},
		[]string{"status"},
	)

	// PollCycleDuration measures the wall time of a full poll cycle
	PollCycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "workflow_poll_cycle_duration_seconds",
			Help:    "Duration of a comment poll cycle in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// CommentsProcessedTotal counts processed comments by final status
	CommentsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workflow_comments_processed_total",
			Help: "Total number of comments processed, by interaction status",
		},
		[]string{"status"},
	)

	// RepliesPostedTotal counts reply post attempts by outcome
	RepliesPostedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workflow_replies_posted_total",
			Help: "Total number of reply post attempts",
		},
		[]string{"status"},
	)
)

// Generation metrics track the LLM response generation path
var (
	// ResponsesGeneratedTotal counts generation attempts by provider and outcome
	ResponsesGeneratedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "generator_responses_total",
			Help: "Total number of response generation attempts",
		},
		[]string{"provider", "status"},
	)

	// GenerationDuration measures response generation latency per provider
	GenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "generator_duration_seconds",
			Help:    "Response generation duration in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		},
		[]string{"provider"},
	)

	// GenerationConfidence observes the confidence score of generated responses
	GenerationConfidence = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "generator_confidence_score",
			Help:    "Confidence score distribution of generated responses",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		},
	)
)

// Resilience metrics expose circuit breaker and rate limiter state
var (
	// CircuitBreakerState reports the current state per breaker
	// (0=closed, 1=half-open, 2=open)
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	// RateLimitHitsTotal counts upstream 429 responses observed
	RateLimitHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rate_limit_hits_total",
			Help: "Total number of upstream rate limit (429) responses",
		},
	)

	// RateLimiterTokens reports the tokens currently available in the bucket
	RateLimiterTokens = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rate_limiter_tokens_available",
			Help: "Tokens currently available in the API rate limiter",
		},
	)

	// RetriesTotal counts retry attempts beyond the first, by operation
	RetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retries_total",
			Help: "Total number of retry attempts beyond the first",
		},
		[]string{"operation"},
	)
)

// Storage and notification metrics
var (
	// InteractionsActive reports the size of the active interaction list
	InteractionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "history_interactions_active",
			Help: "Number of interactions in the active history list",
		},
	)

	// InteractionsArchivedTotal counts interactions moved to archive files
	InteractionsArchivedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "history_interactions_archived_total",
			Help: "Total number of interactions moved to archive files",
		},
	)

	// NotificationsSentTotal counts dispatched notifications by severity
	NotificationsSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_sent_total",
			Help: "Total number of notifications dispatched",
		},
		[]string{"severity", "status"},
	)

	// ErrorsTotal counts classified errors by category
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of classified errors",
		},
		[]string{"category"},
	)
)
