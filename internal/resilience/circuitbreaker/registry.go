package circuitbreaker

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// Registry manages one circuit breaker per logical remote-call family,
// keyed by service name. Breakers are created lazily with the default
// configuration on first use.
type Registry struct {
	mu       sync.Mutex
	breakers map[string]*CircuitBreaker
}

// NewRegistry creates an empty circuit breaker registry.
func NewRegistry() *Registry {
	return &Registry{breakers: make(map[string]*CircuitBreaker)}
}

// GetOrCreate returns the breaker for serviceName, creating it with
// DefaultConfig if it does not exist yet.
func (r *Registry) GetOrCreate(serviceName string) *CircuitBreaker {
	return r.GetOrCreateWithConfig(serviceName, DefaultConfig(serviceName))
}

// GetOrCreateWithConfig returns the breaker for serviceName, creating it
// with cfg if it does not exist yet. An existing breaker keeps its original
// configuration.
func (r *Registry) GetOrCreateWithConfig(serviceName string, cfg Config) *CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cb, ok := r.breakers[serviceName]; ok {
		return cb
	}

	slog.Info("creating circuit breaker", slog.String("service", serviceName))
	cfg.Name = serviceName
	cb := New(cfg)
	r.breakers[serviceName] = cb
	return cb
}

// Get returns the breaker for serviceName, or nil if none exists.
func (r *Registry) Get(serviceName string) *CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.breakers[serviceName]
}

// ResetAll forces every registered breaker back to the closed state.
func (r *Registry) ResetAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, cb := range r.breakers {
		cb.Reset()
	}
}

// Status returns a human-readable snapshot of all registered breakers,
// one "name: STATE" line per breaker in name order.
func (r *Registry) Status() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	names := make([]string, 0, len(r.breakers))
	for name := range r.breakers {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	for _, name := range names {
		fmt.Fprintf(&sb, "%s: %s\n", name, r.breakers[name].State())
	}
	return sb.String()
}
