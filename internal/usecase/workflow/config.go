package workflow

import (
	"strings"
	"time"

	"replyflow/internal/domain/entity"
)

// Config describes one reply-automation workflow: which post to watch,
// how often, and how replies are approved and posted.
type Config struct {
	// PostID is the post whose comments are polled. Required.
	PostID string

	// PollInterval is the delay between poll cycles
	PollInterval time.Duration

	// RequireManualApproval forces every draft through the approval gate
	RequireManualApproval bool

	// TonePreference is passed to the response generator
	TonePreference string

	// ManualReviewKeywords force approval for comments containing any of
	// them (case-insensitive substring match)
	ManualReviewKeywords []string

	// MaxRetries bounds reply post attempts per comment
	MaxRetries int

	// RetryBackoff is the base delay of the reply post retry ladder
	RetryBackoff time.Duration
}

// DefaultConfig returns the workflow defaults: poll every five minutes,
// post automatically in a witty tone, three post attempts with a two
// second base backoff.
func DefaultConfig(postID string) Config {
	return Config{
		PostID:         postID,
		PollInterval:   300 * time.Second,
		TonePreference: "witty",
		MaxRetries:     3,
		RetryBackoff:   2 * time.Second,
	}
}

// Validate checks required fields and fills unset ones with defaults.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.PostID) == "" {
		return &entity.ValidationError{Field: "postId", Message: "is required"}
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 300 * time.Second
	}
	if c.TonePreference == "" {
		c.TonePreference = "witty"
	}
	if c.MaxRetries < 1 {
		c.MaxRetries = 3
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 2 * time.Second
	}
	return nil
}

// requiresManualReview reports whether the comment text contains any of
// the configured review keywords.
func (c *Config) requiresManualReview(commentText string) bool {
	if len(c.ManualReviewKeywords) == 0 {
		return false
	}
	lower := strings.ToLower(commentText)
	for _, keyword := range c.ManualReviewKeywords {
		if keyword == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(keyword)) {
			return true
		}
	}
	return false
}
