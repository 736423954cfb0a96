package errclass

import (
	"errors"
	"fmt"
	"testing"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"

	"replyflow/internal/domain/entity"
	"replyflow/internal/resilience/retry"
)

func TestClassifyStatusCodes(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		category Category
		critical bool
	}{
		{"unauthorized", 401, Authentication, true},
		{"forbidden", 403, Authentication, true},
		{"rate limited", 429, RateLimit, false},
		{"not found", 404, NotFound, false},
		{"server error", 500, ExternalService, true},
		{"bad gateway", 502, ExternalService, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := &retry.HTTPError{StatusCode: tt.status, Message: "upstream error"}
			category, critical := Classify(err)
			assert.Equal(t, tt.category, category)
			assert.Equal(t, tt.critical, critical)
		})
	}
}

func TestClassifyWrappedStatusCode(t *testing.T) {
	err := fmt.Errorf("fetch comments: %w", &retry.HTTPError{StatusCode: 401, Message: "expired token"})
	category, critical := Classify(err)
	assert.Equal(t, Authentication, category)
	assert.True(t, critical)
}

func TestClassifyConfigurationError(t *testing.T) {
	category, critical := Classify(&entity.ValidationError{Field: "postId", Message: "is required"})
	assert.Equal(t, ConfigurationError, category)
	assert.True(t, critical)
}

func TestClassifyMessageHeuristics(t *testing.T) {
	category, critical := Classify(errors.New("openai completion failed"))
	assert.Equal(t, GenerationError, category)
	assert.True(t, critical)

	category, critical = Classify(errors.New("failed to persist interactions file"))
	assert.Equal(t, StorageError, category)
	assert.True(t, critical)

	// Transient wording downgrades criticality.
	_, critical = Classify(errors.New("storage write timeout"))
	assert.False(t, critical)

	category, critical = Classify(errors.New("something odd happened"))
	assert.Equal(t, Unknown, category)
	assert.False(t, critical)
}

func TestClassifyOpenCircuit(t *testing.T) {
	category, critical := Classify(gobreaker.ErrOpenState)
	assert.Equal(t, ExternalService, category)
	assert.False(t, critical, "an open circuit is transient and must not page")
}
