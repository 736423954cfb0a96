// Package workflow contains the comment-reply orchestrator: it polls a
// post for new comments, generates reply drafts, routes them through the
// approval gate or posts them directly, and records every outcome in the
// interaction history.
package workflow

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"replyflow/internal/domain/entity"
	"replyflow/internal/errclass"
	"replyflow/internal/infra/notifier"
	"replyflow/internal/observability/metrics"
)

// RemoteClient is the platform API surface the orchestrator consumes.
type RemoteClient interface {
	FetchComments(ctx context.Context, postID string) ([]entity.Comment, error)
	FetchPost(ctx context.Context, postID string) (*entity.Post, error)
	PostReply(ctx context.Context, commentID, text string) (*entity.PostResult, error)
}

// ResponseGenerator produces a reply draft for a comment.
type ResponseGenerator interface {
	Generate(ctx context.Context, post *entity.Post, comment entity.Comment, tone string) (*entity.GeneratedResponse, error)
}

// HistoryStore persists interactions and the processed-comment set.
type HistoryStore interface {
	Save(interaction *entity.Interaction) error
	IsProcessed(commentID string) bool
	MarkProcessed(commentID string) error
}

// AlertService receives classified failures for operator notification.
type AlertService interface {
	NotifyCritical(ctx context.Context, alert notifier.Alert)
	QueueWarning(alert notifier.Alert)
}

// PendingItem is the single draft waiting for a human decision. Capacity
// is exactly one: a new draft needing review replaces any prior one.
type PendingItem struct {
	Post     *entity.Post
	Comment  entity.Comment
	Response *entity.GeneratedResponse
}

// Orchestrator drives the poll/generate/approve/post cycle. All state
// transitions happen under one lock; the poll loop goroutine is owned by
// StartPolling and stopped by StopPolling.
type Orchestrator struct {
	client    RemoteClient
	generator ResponseGenerator
	store     HistoryStore
	alerts    AlertService

	mu      sync.Mutex
	cfg     *Config
	pending *PendingItem

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewOrchestrator wires the orchestrator to its collaborators.
func NewOrchestrator(client RemoteClient, generator ResponseGenerator, store HistoryStore, alerts AlertService) *Orchestrator {
	return &Orchestrator{
		client:    client,
		generator: generator,
		store:     store,
		alerts:    alerts,
	}
}

// StartPolling validates the configuration and starts the poll loop. It
// fails if polling is already active. The loop runs one cycle
// immediately, then on every PollInterval tick. ctx bounds in-flight
// work: canceling it aborts processing, while StopPolling only prevents
// further ticks.
func (o *Orchestrator) StartPolling(ctx context.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	o.mu.Lock()
	if o.cfg != nil {
		o.mu.Unlock()
		return &entity.ValidationError{Field: "polling", Message: "already active"}
	}
	o.cfg = &cfg

	tickCtx, cancel := context.WithCancel(context.Background())
	o.cancel = cancel
	o.mu.Unlock()

	slog.Info("polling started",
		slog.String("post_id", cfg.PostID),
		slog.Duration("interval", cfg.PollInterval),
		slog.Bool("require_manual_approval", cfg.RequireManualApproval))

	o.wg.Add(1)
	go o.loop(ctx, tickCtx, cfg.PollInterval)
	return nil
}

// StopPolling stops the poll loop and clears the configuration. An
// in-flight cycle finishes first. Calling it while stopped is a no-op.
func (o *Orchestrator) StopPolling() {
	o.mu.Lock()
	cancel := o.cancel
	o.cancel = nil
	o.mu.Unlock()

	if cancel == nil {
		return
	}

	slog.Info("stopping polling")
	cancel()
	o.wg.Wait()

	o.mu.Lock()
	o.cfg = nil
	o.mu.Unlock()
	slog.Info("polling stopped")
}

// IsPolling reports whether the poll loop is active.
func (o *Orchestrator) IsPolling() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cfg != nil
}

// Config returns a copy of the active workflow configuration, or nil
// when stopped.
func (o *Orchestrator) Config() *Config {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cfg == nil {
		return nil
	}
	cfg := *o.cfg
	return &cfg
}

// Pending returns the draft currently waiting for a decision, or nil.
func (o *Orchestrator) Pending() *PendingItem {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.pending == nil {
		return nil
	}
	item := *o.pending
	return &item
}

// PendingResponse returns the draft response awaiting approval, or nil.
func (o *Orchestrator) PendingResponse() *entity.GeneratedResponse {
	if item := o.Pending(); item != nil {
		return item.Response
	}
	return nil
}

// PendingComment returns the comment awaiting approval, or nil.
func (o *Orchestrator) PendingComment() *entity.Comment {
	if item := o.Pending(); item != nil {
		comment := item.Comment
		return &comment
	}
	return nil
}

func (o *Orchestrator) loop(workCtx, tickCtx context.Context, interval time.Duration) {
	defer o.wg.Done()

	o.Poll(workCtx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			o.Poll(workCtx)
		case <-tickCtx.Done():
			return
		case <-workCtx.Done():
			return
		}
	}
}

// Poll runs one cycle: fetch comments, drop the already-processed, and
// push each remaining comment through the workflow. A no-op when
// polling is stopped. One comment's failure never aborts the rest of
// the batch.
func (o *Orchestrator) Poll(ctx context.Context) {
	o.mu.Lock()
	if o.cfg == nil {
		o.mu.Unlock()
		return
	}
	cfg := *o.cfg
	o.mu.Unlock()

	start := time.Now()
	slog.Info("polling for new comments", slog.String("post_id", cfg.PostID))

	comments, err := o.client.FetchComments(ctx, cfg.PostID)
	if err != nil {
		o.reportFailure(ctx, err, map[string]string{
			"post_id":   cfg.PostID,
			"operation": "fetch_comments",
		})
		metrics.RecordPollCycle(false, time.Since(start))
		return
	}

	unprocessed := make([]entity.Comment, 0, len(comments))
	for _, comment := range comments {
		if !o.store.IsProcessed(comment.ID) {
			unprocessed = append(unprocessed, comment)
		}
	}
	slog.Info("fetched comments",
		slog.String("post_id", cfg.PostID),
		slog.Int("total", len(comments)),
		slog.Int("unprocessed", len(unprocessed)))

	for _, comment := range unprocessed {
		o.processComment(ctx, &cfg, comment)
	}

	metrics.RecordPollCycle(true, time.Since(start))
}

// processComment pushes one comment through fetch-post, generate, and
// the approval or auto-post branch. Failures are classified, alerted
// and recorded as a FAILED interaction for this comment only.
func (o *Orchestrator) processComment(ctx context.Context, cfg *Config, comment entity.Comment) {
	correlationID := uuid.New().String()
	log := slog.With(
		slog.String("correlation_id", correlationID),
		slog.String("comment_id", comment.ID))

	log.Info("processing comment", slog.String("commenter", comment.AuthorName))

	post, err := o.client.FetchPost(ctx, comment.PostID)
	if err != nil {
		o.recordCommentFailure(ctx, comment, correlationID, err)
		return
	}

	response, err := o.generator.Generate(ctx, post, comment, cfg.TonePreference)
	if err != nil {
		o.recordCommentFailure(ctx, comment, correlationID, err)
		return
	}
	log.Info("generated response",
		slog.Int("length", len(response.Text)),
		slog.Float64("confidence", response.ConfidenceScore))

	interaction := newInteraction(cfg, post, comment, response)
	interaction.Status = entity.StatusGenerated
	interaction.SetMeta("correlation_id", correlationID)
	if err := o.store.Save(interaction); err != nil {
		o.recordCommentFailure(ctx, comment, correlationID, err)
		return
	}

	if cfg.RequireManualApproval || cfg.requiresManualReview(comment.Text) {
		o.stashPending(post, comment, response)
		metrics.RecordCommentProcessed(string(entity.StatusGenerated))
		return
	}

	o.autoPost(ctx, cfg, comment, response, correlationID)
}

// stashPending stores the draft in the single approval slot, replacing
// any earlier draft that was still waiting.
func (o *Orchestrator) stashPending(post *entity.Post, comment entity.Comment, response *entity.GeneratedResponse) {
	o.mu.Lock()
	if o.pending != nil {
		slog.Warn("replacing pending item awaiting approval",
			slog.String("replaced_comment_id", o.pending.Comment.ID),
			slog.String("comment_id", comment.ID))
	}
	o.pending = &PendingItem{Post: post, Comment: comment, Response: response}
	o.mu.Unlock()

	slog.Info("=== MANUAL APPROVAL REQUIRED ===",
		slog.String("comment_id", comment.ID),
		slog.String("commenter", comment.AuthorName),
		slog.String("comment", comment.Text),
		slog.String("response", response.Text),
		slog.Float64("confidence", response.ConfidenceScore),
		slog.String("warnings", strings.Join(response.Warnings, ", ")))
}

// autoPost posts the reply with the bounded retry policy and records the
// terminal interaction.
func (o *Orchestrator) autoPost(ctx context.Context, cfg *Config, comment entity.Comment, response *entity.GeneratedResponse, correlationID string) {
	result := o.postWithRetry(ctx, cfg, comment.ID, response.Text)

	if result.Success {
		if err := o.store.MarkProcessed(comment.ID); err != nil {
			slog.Error("failed to mark comment processed",
				slog.String("comment_id", comment.ID),
				slog.Any("error", err))
		}

		posted := newInteractionForComment(comment, response)
		posted.Status = entity.StatusPosted
		posted.PostedResponse = response.Text
		posted.SetMeta("response_id", result.ResponseID)
		posted.SetMeta("correlation_id", correlationID)
		if err := o.store.Save(posted); err != nil {
			slog.Error("failed to save posted interaction", slog.Any("error", err))
		}

		metrics.RecordReplyPosted(true)
		metrics.RecordCommentProcessed(string(entity.StatusPosted))
		slog.Info("posted response",
			slog.String("comment_id", comment.ID),
			slog.String("response_id", result.ResponseID))
		return
	}

	failed := newInteractionForComment(comment, response)
	failed.Status = entity.StatusFailed
	failed.SetMeta("error", result.ErrorMessage)
	failed.SetMeta("status_code", strconv.Itoa(result.StatusCode))
	failed.SetMeta("correlation_id", correlationID)
	if err := o.store.Save(failed); err != nil {
		slog.Error("failed to save failed interaction", slog.Any("error", err))
	}

	metrics.RecordReplyPosted(false)
	metrics.RecordCommentProcessed(string(entity.StatusFailed))
	slog.Error("failed to post response",
		slog.String("comment_id", comment.ID),
		slog.String("error", result.ErrorMessage),
		slog.Int("status_code", result.StatusCode))
}

// Approve posts the pending draft. On success the comment is marked
// processed and a POSTED interaction tagged manually_approved is
// appended; on failure a FAILED interaction is appended instead. Either
// outcome clears the pending slot. Returns false, without error, when
// nothing is pending.
func (o *Orchestrator) Approve(ctx context.Context) bool {
	o.mu.Lock()
	item := o.pending
	o.pending = nil
	cfg := o.cfg
	o.mu.Unlock()

	if item == nil {
		slog.Warn("no pending response to approve")
		return false
	}
	if cfg == nil {
		fallback := DefaultConfig(item.Post.ID)
		cfg = &fallback
	}

	slog.Info("approving response", slog.String("comment_id", item.Comment.ID))
	result := o.postWithRetry(ctx, cfg, item.Comment.ID, item.Response.Text)

	if result.Success {
		if err := o.store.MarkProcessed(item.Comment.ID); err != nil {
			slog.Error("failed to mark comment processed",
				slog.String("comment_id", item.Comment.ID),
				slog.Any("error", err))
		}

		posted := newInteraction(cfg, item.Post, item.Comment, item.Response)
		posted.Status = entity.StatusPosted
		posted.PostedResponse = item.Response.Text
		posted.SetMeta("response_id", result.ResponseID)
		posted.SetMeta("manually_approved", "true")
		if err := o.store.Save(posted); err != nil {
			slog.Error("failed to save posted interaction", slog.Any("error", err))
		}

		metrics.RecordReplyPosted(true)
		metrics.RecordCommentProcessed(string(entity.StatusPosted))
		slog.Info("posted approved response", slog.String("comment_id", item.Comment.ID))
		return true
	}

	failed := newInteraction(cfg, item.Post, item.Comment, item.Response)
	failed.Status = entity.StatusFailed
	failed.SetMeta("error", result.ErrorMessage)
	failed.SetMeta("manually_approved", "true")
	if err := o.store.Save(failed); err != nil {
		slog.Error("failed to save failed interaction", slog.Any("error", err))
	}

	metrics.RecordReplyPosted(false)
	metrics.RecordCommentProcessed(string(entity.StatusFailed))
	slog.Error("failed to post approved response",
		slog.String("comment_id", item.Comment.ID),
		slog.String("error", result.ErrorMessage))
	return false
}

// Reject discards the pending draft, appending a REJECTED interaction
// tagged manually_rejected. The comment is not marked processed, so a
// later poll may pick it up again. Returns false when nothing is
// pending.
func (o *Orchestrator) Reject() bool {
	o.mu.Lock()
	item := o.pending
	o.pending = nil
	cfg := o.cfg
	o.mu.Unlock()

	if item == nil {
		slog.Warn("no pending response to reject")
		return false
	}
	if cfg == nil {
		fallback := DefaultConfig(item.Post.ID)
		cfg = &fallback
	}

	slog.Info("rejecting response", slog.String("comment_id", item.Comment.ID))

	rejected := newInteraction(cfg, item.Post, item.Comment, item.Response)
	rejected.Status = entity.StatusRejected
	rejected.SetMeta("manually_rejected", "true")
	if err := o.store.Save(rejected); err != nil {
		slog.Error("failed to save rejected interaction", slog.Any("error", err))
	}

	metrics.RecordCommentProcessed(string(entity.StatusRejected))
	return true
}

// postWithRetry posts a reply with the workflow's own retry policy:
// plain exponential backoff without jitter, never retrying a 4xx other
// than 429. Transport-level retries already happened inside the client;
// this ladder spans whole post attempts.
func (o *Orchestrator) postWithRetry(ctx context.Context, cfg *Config, commentID, text string) *entity.PostResult {
	var result *entity.PostResult

	for attempt := 1; attempt <= cfg.MaxRetries; attempt++ {
		slog.Info("posting response",
			slog.String("comment_id", commentID),
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", cfg.MaxRetries))

		res, err := o.client.PostReply(ctx, commentID, text)
		if err != nil {
			res = &entity.PostResult{Success: false, ErrorMessage: err.Error()}
		}
		result = res

		if res.Success {
			return res
		}
		if res.StatusCode >= 400 && res.StatusCode < 500 && res.StatusCode != 429 {
			slog.Error("client error, not retrying",
				slog.Int("status_code", res.StatusCode))
			return res
		}
		if ctx.Err() != nil {
			return res
		}

		if attempt < cfg.MaxRetries {
			delay := cfg.RetryBackoff * time.Duration(1<<(attempt-1))
			slog.Info("retrying reply post", slog.Duration("delay", delay))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return res
			}
		}
	}

	slog.Error("failed to post response after all attempts",
		slog.String("comment_id", commentID),
		slog.Int("max_attempts", cfg.MaxRetries))
	return result
}

// recordCommentFailure classifies and alerts a per-comment failure and
// appends a FAILED interaction so the history shows the attempt.
func (o *Orchestrator) recordCommentFailure(ctx context.Context, comment entity.Comment, correlationID string, err error) {
	category, critical := errclass.Classify(err)
	metrics.RecordError(string(category))

	slog.Error("failed to process comment",
		slog.String("correlation_id", correlationID),
		slog.String("comment_id", comment.ID),
		slog.String("category", string(category)),
		slog.Bool("critical", critical),
		slog.Any("error", err))

	alert := notifier.Alert{
		CorrelationID: correlationID,
		Category:      category,
		Message:       err.Error(),
		Timestamp:     time.Now(),
		Context: map[string]string{
			"comment_id":     comment.ID,
			"post_id":        comment.PostID,
			"commenter_name": comment.AuthorName,
		},
	}
	if critical {
		o.alerts.NotifyCritical(ctx, alert)
	} else {
		o.alerts.QueueWarning(alert)
	}

	failed := &entity.Interaction{
		ID:            uuid.New().String(),
		PostID:        comment.PostID,
		CommentID:     comment.ID,
		CommenterName: comment.AuthorName,
		CommentText:   comment.Text,
		Timestamp:     time.Now().UTC(),
		Status:        entity.StatusFailed,
	}
	failed.SetMeta("error", err.Error())
	failed.SetMeta("correlation_id", correlationID)
	if saveErr := o.store.Save(failed); saveErr != nil {
		slog.Error("failed to save failed interaction", slog.Any("error", saveErr))
	}

	metrics.RecordCommentProcessed(string(entity.StatusFailed))
}

// reportFailure classifies and alerts a cycle-level failure that has no
// single comment to pin it on.
func (o *Orchestrator) reportFailure(ctx context.Context, err error, extra map[string]string) {
	category, critical := errclass.Classify(err)
	metrics.RecordError(string(category))

	slog.Error("poll cycle failed",
		slog.String("category", string(category)),
		slog.Bool("critical", critical),
		slog.Any("error", err))

	alert := notifier.Alert{
		CorrelationID: uuid.New().String(),
		Category:      category,
		Message:       err.Error(),
		Timestamp:     time.Now(),
		Context:       extra,
	}
	if critical {
		o.alerts.NotifyCritical(ctx, alert)
	} else {
		o.alerts.QueueWarning(alert)
	}
}

// newInteraction builds the GENERATED-stage interaction record with the
// draft metadata attached.
func newInteraction(cfg *Config, post *entity.Post, comment entity.Comment, response *entity.GeneratedResponse) *entity.Interaction {
	interaction := &entity.Interaction{
		ID:                uuid.New().String(),
		PostID:            post.ID,
		CommentID:         comment.ID,
		CommenterName:     comment.AuthorName,
		CommentText:       comment.Text,
		GeneratedResponse: response.Text,
		Timestamp:         time.Now().UTC(),
	}

	interaction.SetMeta("confidence_score", strconv.FormatFloat(response.ConfidenceScore, 'f', -1, 64))
	if response.Reasoning != "" {
		interaction.SetMeta("reasoning", response.Reasoning)
	}
	if response.HasWarnings() {
		interaction.SetMeta("warnings", strings.Join(response.Warnings, "; "))
	}
	interaction.SetMeta("tone_preference", cfg.TonePreference)

	return interaction
}

// newInteractionForComment builds a terminal interaction record when the
// post context is no longer needed.
func newInteractionForComment(comment entity.Comment, response *entity.GeneratedResponse) *entity.Interaction {
	return &entity.Interaction{
		ID:                uuid.New().String(),
		PostID:            comment.PostID,
		CommentID:         comment.ID,
		CommenterName:     comment.AuthorName,
		CommentText:       comment.Text,
		GeneratedResponse: response.Text,
		Timestamp:         time.Now().UTC(),
	}
}
