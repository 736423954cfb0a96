package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

// SlackConfig contains configuration for the Slack webhook sink.
type SlackConfig struct {
	// WebhookURL is the Slack Incoming Webhook URL
	WebhookURL string

	// Timeout is the HTTP request timeout for Slack API calls
	Timeout time.Duration
}

// SlackSink delivers alerts to a Slack channel via Incoming Webhook.
// Slack allows one webhook message per second, so the sink carries its
// own limiter independent of the platform API limiter.
type SlackSink struct {
	config      SlackConfig
	httpClient  *http.Client
	rateLimiter *RateLimiter
}

// NewSlackSink creates a Slack webhook sink.
func NewSlackSink(config SlackConfig) *SlackSink {
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	return &SlackSink{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		rateLimiter: NewRateLimiter(1.0, 1), // Slack webhook limit: 1 msg/s
	}
}

// slackPayload is the Block Kit JSON body posted to the webhook.
type slackPayload struct {
	Text   string       `json:"text"`
	Blocks []slackBlock `json:"blocks"`
}

type slackBlock struct {
	Type string           `json:"type"`
	Text *slackTextObject `json:"text,omitempty"`
}

type slackTextObject struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

const (
	maxSectionTextLength = 3000
	maxFallbackLength    = 150

	slackTruncationSuffix = "..."
)

// Send implements the Sink interface.
func (s *SlackSink) Send(ctx context.Context, message string, critical bool) error {
	if err := s.rateLimiter.Allow(ctx); err != nil {
		return fmt.Errorf("rate limiter error: %w", err)
	}
	return s.sendWithRetry(ctx, message, critical)
}

func (s *SlackSink) buildPayload(message string, critical bool) slackPayload {
	header := ":warning: Workflow warning"
	if critical {
		header = ":rotating_light: Critical workflow error"
	}

	fallback := truncate(header+" - "+message, maxFallbackLength, slackTruncationSuffix)
	sectionText := truncate(fmt.Sprintf("*%s*\n```%s```", header, message),
		maxSectionTextLength, slackTruncationSuffix)

	return slackPayload{
		Text: fallback,
		Blocks: []slackBlock{
			{
				Type: "section",
				Text: &slackTextObject{Type: "mrkdwn", Text: sectionText},
			},
		},
	}
}

// sendWithRetry delivers the message with a small bounded retry: 429
// honors Retry-After, 5xx and network errors back off linearly, other
// 4xx fail immediately.
func (s *SlackSink) sendWithRetry(ctx context.Context, message string, critical bool) error {
	const (
		maxAttempts = 2
		baseDelay   = 5 * time.Second
	)

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := s.send(ctx, message, critical)
		if err == nil {
			slog.Debug("slack alert delivered", slog.Int("attempt", attempt))
			return nil
		}
		lastErr = err

		if rateLimitErr, ok := is429Error(err); ok {
			slog.Warn("slack rate limit hit, backing off",
				slog.Duration("retry_after", rateLimitErr.RetryAfter),
				slog.Int("attempt", attempt))
			select {
			case <-time.After(rateLimitErr.RetryAfter):
				continue
			case <-ctx.Done():
				return fmt.Errorf("context canceled during rate limit backoff: %w", ctx.Err())
			}
		}

		if !isRetryableError(err) {
			return err
		}

		if attempt < maxAttempts {
			delay := baseDelay * time.Duration(attempt)
			slog.Warn("slack delivery failed, retrying",
				slog.Any("error", err),
				slog.Duration("delay", delay))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return fmt.Errorf("context canceled during retry backoff: %w", ctx.Err())
			}
		}
	}

	return fmt.Errorf("slack delivery failed after %d attempts: %w", maxAttempts, lastErr)
}

func (s *SlackSink) send(ctx context.Context, message string, critical bool) error {
	jsonData, err := json.Marshal(s.buildPayload(message, critical))
	if err != nil {
		return fmt.Errorf("marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.WebhookURL, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("create http request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return &RateLimitError{
			Message:    "Slack rate limit exceeded",
			RetryAfter: retryAfterDuration(resp),
		}
	}

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return &ClientError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("Slack API client error: %s", string(body)),
		}
	}

	return &ServerError{
		StatusCode: resp.StatusCode,
		Message:    fmt.Sprintf("Slack API server error: %s", string(body)),
	}
}

// retryAfterDuration reads the Retry-After header, defaulting to one
// second when absent or malformed.
func retryAfterDuration(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if seconds, err := strconv.Atoi(v); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	return time.Second
}
