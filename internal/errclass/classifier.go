// Package errclass maps failures to a category and a criticality, which
// together drive the notification policy: critical errors page immediately,
// the rest are batched.
package errclass

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"syscall"

	"replyflow/internal/domain/entity"
	"replyflow/internal/resilience/circuitbreaker"
	"replyflow/internal/resilience/retry"
)

// Category identifies the broad failure family of an error.
type Category string

const (
	Authentication     Category = "AUTHENTICATION"
	RateLimit          Category = "RATE_LIMIT"
	NotFound           Category = "NOT_FOUND"
	ExternalService    Category = "EXTERNAL_SERVICE"
	GenerationError    Category = "GENERATION_ERROR"
	StorageError       Category = "STORAGE_ERROR"
	ConfigurationError Category = "CONFIGURATION_ERROR"
	NetworkError       Category = "NETWORK_ERROR"
	Unknown            Category = "UNKNOWN"
)

// Classify maps err to its category and whether it is critical.
// Classification priority: explicit HTTP status code, then error type,
// then message-substring heuristics.
func Classify(err error) (Category, bool) {
	category := categorize(err)
	return category, isCritical(category, err)
}

func categorize(err error) Category {
	if err == nil {
		return Unknown
	}

	var httpErr *retry.HTTPError
	if errors.As(err, &httpErr) {
		switch {
		case httpErr.StatusCode == 401 || httpErr.StatusCode == 403:
			return Authentication
		case httpErr.StatusCode == 429:
			return RateLimit
		case httpErr.StatusCode == 404:
			return NotFound
		case httpErr.StatusCode >= 500:
			return ExternalService
		}
	}

	// An open circuit means the upstream is already known to be down.
	if circuitbreaker.IsOpenError(err) {
		return ExternalService
	}

	if errors.Is(err, entity.ErrInvalidInput) {
		return ConfigurationError
	}

	var netErr net.Error
	if errors.As(err, &netErr) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) {
		return NetworkError
	}

	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "llm") || strings.Contains(msg, "openai") ||
		strings.Contains(msg, "claude") || strings.Contains(msg, "token limit") ||
		strings.Contains(msg, "model"):
		return GenerationError
	case strings.Contains(msg, "storage") || strings.Contains(msg, "database") ||
		strings.Contains(msg, "file") || strings.Contains(msg, "disk"):
		return StorageError
	}

	return Unknown
}

// isCritical applies the notification policy. Authentication and
// configuration failures always page; service-side failures page unless
// the message indicates a transient condition.
func isCritical(category Category, err error) bool {
	switch category {
	case Authentication, ConfigurationError:
		return true
	case ExternalService, GenerationError, StorageError:
		if circuitbreaker.IsOpenError(err) {
			// Transient by construction; paging on every open circuit
			// would defeat the breaker.
			return false
		}
		msg := strings.ToLower(err.Error())
		return !strings.Contains(msg, "timeout") && !strings.Contains(msg, "temporary")
	default:
		return false
	}
}

// IsTransient reports whether err looks like a condition that a later poll
// can reasonably expect to succeed on.
func IsTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	category := categorize(err)
	return category == RateLimit || category == NetworkError ||
		category == ExternalService
}
