// Package socialapi implements the HTTP client for the social platform
// REST API. Reads (comments, posts) run through the rate limiter, the
// circuit breaker and the retry policy; reply posts skip the breaker so a
// cold circuit never blocks an already-generated response.
package socialapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"replyflow/internal/domain/entity"
	"replyflow/internal/observability/metrics"
	"replyflow/internal/ratelimit"
	"replyflow/internal/resilience/circuitbreaker"
	"replyflow/internal/resilience/retry"
)

const maxResponseBody = 10 << 20 // 10MB

// Config holds the connection settings for the platform API.
type Config struct {
	// BaseURL is the API root, e.g. "https://api.linkedin.com/v2"
	BaseURL string

	// AccessToken is the OAuth bearer token sent with every request
	AccessToken string

	// ActorURN identifies the posting identity in reply bodies
	ActorURN string

	// Timeout bounds a single HTTP round trip
	Timeout time.Duration
}

// DefaultConfig returns the production API endpoint with a 30 second
// request timeout.
func DefaultConfig() Config {
	return Config{
		BaseURL: "https://api.linkedin.com/v2",
		Timeout: 30 * time.Second,
	}
}

// Client is the platform API client. Safe for concurrent use.
type Client struct {
	cfg      Config
	client   *http.Client
	limiter  *ratelimit.Limiter
	breaker  *circuitbreaker.CircuitBreaker
	retryCfg retry.Config
}

// New creates a platform API client. The rate limiter and circuit breaker
// are shared with the caller so their state reflects all traffic.
func New(cfg Config, limiter *ratelimit.Limiter, breaker *circuitbreaker.CircuitBreaker) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, &entity.ValidationError{Field: "baseUrl", Message: "must not be blank"}
	}
	if strings.TrimSpace(cfg.AccessToken) == "" {
		return nil, &entity.ValidationError{Field: "accessToken", Message: "must not be blank"}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Client{
		cfg:      cfg,
		client:   &http.Client{Timeout: cfg.Timeout},
		limiter:  limiter,
		breaker:  breaker,
		retryCfg: retry.APIConfig(),
	}, nil
}

// FetchComments returns all comments on the given post.
func (c *Client) FetchComments(ctx context.Context, postID string) ([]entity.Comment, error) {
	if strings.TrimSpace(postID) == "" {
		return nil, &entity.ValidationError{Field: "postId", Message: "must not be blank"}
	}

	slog.Debug("fetching comments", slog.String("post_id", postID))
	path := "/socialActions/" + url.PathEscape(postID) + "/comments"

	body, err := c.protectedGet(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("fetch comments for post %s: %w", postID, err)
	}

	comments, err := parseComments(body, postID)
	if err != nil {
		return nil, fmt.Errorf("fetch comments for post %s: %w", postID, err)
	}

	slog.Info("fetched comments",
		slog.String("post_id", postID),
		slog.Int("count", len(comments)))
	return comments, nil
}

// FetchPost returns the post itself, used as context for response
// generation.
func (c *Client) FetchPost(ctx context.Context, postID string) (*entity.Post, error) {
	if strings.TrimSpace(postID) == "" {
		return nil, &entity.ValidationError{Field: "postId", Message: "must not be blank"}
	}

	slog.Debug("fetching post", slog.String("post_id", postID))

	body, err := c.protectedGet(ctx, "/ugcPosts/"+url.PathEscape(postID))
	if err != nil {
		return nil, fmt.Errorf("fetch post %s: %w", postID, err)
	}

	post, err := parsePost(body)
	if err != nil {
		return nil, fmt.Errorf("fetch post %s: %w", postID, err)
	}
	return post, nil
}

// PostReply posts a reply under the given comment. HTTP-level failures are
// reported in the returned PostResult with a nil error so the caller can
// apply its own retry policy; a non-nil error means the call never reached
// the API (rate limiter abort, request construction failure).
func (c *Client) PostReply(ctx context.Context, commentID, text string) (*entity.PostResult, error) {
	if strings.TrimSpace(commentID) == "" {
		return nil, &entity.ValidationError{Field: "commentId", Message: "must not be blank"}
	}

	if err := c.limiter.Acquire(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	metrics.UpdateRateLimiterTokens(c.limiter.Available())

	payload := map[string]interface{}{
		"actor":   c.cfg.ActorURN,
		"object":  commentID,
		"message": map[string]string{"text": text},
	}
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal reply body: %w", err)
	}

	path := "/socialActions/" + url.PathEscape(commentID) + "/comments"
	var body []byte
	err = retry.WithBackoff(ctx, c.retryCfg, func() error {
		var opErr error
		body, opErr = c.do(ctx, http.MethodPost, path, reqBody)
		return opErr
	})
	if err != nil {
		var httpErr *retry.HTTPError
		if errors.As(err, &httpErr) {
			slog.Error("failed to post reply",
				slog.String("comment_id", commentID),
				slog.Int("status", httpErr.StatusCode),
				slog.String("message", httpErr.Message))
			return &entity.PostResult{
				Success:      false,
				ErrorMessage: httpErr.Message,
				StatusCode:   httpErr.StatusCode,
			}, nil
		}
		return nil, fmt.Errorf("post reply to comment %s: %w", commentID, err)
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(body, &created); err != nil {
		// The reply landed; a malformed body only costs us the id.
		slog.Warn("could not parse reply response", slog.Any("error", err))
	}

	slog.Info("posted reply",
		slog.String("comment_id", commentID),
		slog.String("response_id", created.ID))
	return &entity.PostResult{Success: true, ResponseID: created.ID}, nil
}

// protectedGet runs a GET through limiter, breaker and retry, in that
// order: the limiter throttles before the breaker sees the call, and each
// retry attempt counts as one breaker-observed operation.
func (c *Client) protectedGet(ctx context.Context, path string) ([]byte, error) {
	if err := c.limiter.Acquire(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	metrics.UpdateRateLimiterTokens(c.limiter.Available())

	result, err := c.breaker.Execute(func() (interface{}, error) {
		var body []byte
		retryErr := retry.WithBackoff(ctx, c.retryCfg, func() error {
			var opErr error
			body, opErr = c.do(ctx, http.MethodGet, path, nil)
			return opErr
		})
		return body, retryErr
	})
	metrics.UpdateCircuitBreakerState(c.breaker.Name(), c.breaker.State())
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

// do performs a single HTTP round trip. Non-2xx responses become
// *retry.HTTPError; a 429 additionally drains the shared rate limiter.
func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		if resp.StatusCode == http.StatusTooManyRequests {
			slog.Warn("rate limit exceeded, draining local bucket")
			c.limiter.NotifyRateLimited()
			metrics.RecordRateLimitHit()
		}
		msg := strings.TrimSpace(string(data))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &retry.HTTPError{StatusCode: resp.StatusCode, Message: msg}
	}

	return data, nil
}
