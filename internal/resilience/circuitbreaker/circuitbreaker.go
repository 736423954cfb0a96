// Package circuitbreaker provides circuit breaker protection for remote-call
// families. It uses the github.com/sony/gobreaker library to prevent
// hammering an upstream that is already failing.
package circuitbreaker

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/sony/gobreaker"
)

// ErrOpen is returned by Execute when the circuit is open and the reset
// timeout has not elapsed. It lets callers distinguish "upstream is down"
// from an ordinary call failure.
var ErrOpen = gobreaker.ErrOpenState

// Config holds the configuration for a circuit breaker.
type Config struct {
	// Name is the circuit breaker name for logging and the registry key
	Name string

	// FailureThreshold is the number of consecutive failures in the closed
	// state that trips the circuit open
	FailureThreshold uint32

	// ResetTimeout is how long to stay open before allowing a probe call
	ResetTimeout time.Duration

	// SuccessThreshold is the number of consecutive successes in the
	// half-open state required to close the circuit again
	SuccessThreshold uint32
}

// DefaultConfig returns the default breaker configuration: open after 5
// consecutive failures, probe after 60 seconds, close after 3 successes.
func DefaultConfig(name string) Config {
	return Config{
		Name:             name,
		FailureThreshold: 5,
		ResetTimeout:     60 * time.Second,
		SuccessThreshold: 3,
	}
}

// SocialAPIConfig returns configuration for the social platform API.
func SocialAPIConfig() Config {
	return Config{
		Name:             "social-api",
		FailureThreshold: 5,
		ResetTimeout:     60 * time.Second,
		SuccessThreshold: 3,
	}
}

// GeneratorConfig returns configuration for language-model API calls.
// More conservative reset timeout because generation quota errors tend
// to persist longer than transient network blips.
func GeneratorConfig() Config {
	return Config{
		Name:             "response-generator",
		FailureThreshold: 5,
		ResetTimeout:     120 * time.Second,
		SuccessThreshold: 3,
	}
}

// CircuitBreaker wraps gobreaker.CircuitBreaker with consecutive-failure
// trip semantics. Any success in the closed state resets the failure count;
// a single failure while probing reopens the circuit.
type CircuitBreaker struct {
	mu      sync.Mutex
	breaker *gobreaker.CircuitBreaker
	cfg     Config
}

// New creates a new circuit breaker with the given configuration.
func New(cfg Config) *CircuitBreaker {
	return &CircuitBreaker{
		breaker: newInner(cfg),
		cfg:     cfg,
	}
}

func newInner(cfg Config) *gobreaker.CircuitBreaker {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.SuccessThreshold,
		Timeout:     cfg.ResetTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			slog.Warn("circuit breaker state changed",
				slog.String("circuit", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	}
	return gobreaker.NewCircuitBreaker(settings)
}

func (cb *CircuitBreaker) inner() *gobreaker.CircuitBreaker {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.breaker
}

// Execute runs the given function through the circuit breaker. If the
// circuit is open it returns ErrOpen immediately without invoking fn;
// otherwise fn's own error is propagated unchanged.
func (cb *CircuitBreaker) Execute(fn func() (interface{}, error)) (interface{}, error) {
	return cb.inner().Execute(fn)
}

// State returns the current state of the circuit breaker.
func (cb *CircuitBreaker) State() gobreaker.State {
	return cb.inner().State()
}

// Name returns the name of the circuit breaker.
func (cb *CircuitBreaker) Name() string {
	return cb.cfg.Name
}

// IsOpen returns true if the circuit breaker is in the open state.
func (cb *CircuitBreaker) IsOpen() bool {
	return cb.State() == gobreaker.StateOpen
}

// Reset forces the breaker back to the closed state with cleared counts.
// In-flight calls complete against the old breaker instance.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	cb.breaker = newInner(cb.cfg)
	cb.mu.Unlock()
	slog.Info("circuit breaker reset", slog.String("circuit", cb.cfg.Name))
}

// IsOpenError reports whether err was produced by the breaker rejecting the
// call rather than by the wrapped operation itself.
func IsOpenError(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}
