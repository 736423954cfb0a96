package generator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"replyflow/internal/domain/entity"
	"replyflow/internal/observability/metrics"
	"replyflow/internal/resilience/circuitbreaker"
	"replyflow/internal/resilience/retry"
)

// Claude generates reply drafts using Anthropic's Messages API. It shares
// the prompt construction, validation and fallback ladder with the OpenAI
// generator.
type Claude struct {
	client   anthropic.Client
	cfg      Config
	breaker  *circuitbreaker.CircuitBreaker
	retryCfg retry.Config
}

// NewClaude creates a Claude-backed generator. Unset model names default
// to Claude Sonnet with a Haiku fallback.
func NewClaude(cfg Config) (*Claude, error) {
	if cfg.PrimaryModel == "" {
		cfg.PrimaryModel = "claude-sonnet-4-5-20250929"
	}
	if cfg.FallbackModel == "" {
		cfg.FallbackModel = "claude-3-5-haiku-latest"
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	slog.Info("initialized claude generator",
		slog.String("model", cfg.PrimaryModel),
		slog.String("fallback_model", cfg.FallbackModel),
		slog.Float64("temperature", cfg.Temperature))

	return &Claude{
		client:   anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		cfg:      cfg,
		breaker:  circuitbreaker.New(circuitbreaker.GeneratorConfig()),
		retryCfg: retry.GeneratorConfig(),
	}, nil
}

// Generate produces a reply draft for the comment in the context of its
// post. Same degradation ladder as the OpenAI generator.
func (g *Claude) Generate(ctx context.Context, post *entity.Post, comment entity.Comment, tone string) (*entity.GeneratedResponse, error) {
	slog.Info("generating response",
		slog.String("comment_id", comment.ID),
		slog.String("post_id", post.ID))
	start := time.Now()

	theme := g.analyzeTheme(ctx, post)
	prompt := buildPrompt(post, comment, tone, theme)

	text, err := g.call(ctx, prompt, g.cfg.PrimaryModel)
	if err == nil && !validDraft(text) {
		slog.Warn("draft failed validation, regenerating",
			slog.String("comment_id", comment.ID))
		text, err = g.call(ctx, prompt, g.cfg.PrimaryModel)
	}
	if err == nil {
		response := &entity.GeneratedResponse{
			Text:            text,
			ConfidenceScore: primaryConfidence,
			Reasoning:       fmt.Sprintf("Generated using %s with theme: %s", g.cfg.PrimaryModel, theme),
		}
		annotate(response, comment)
		metrics.RecordResponseGenerated("claude", true, time.Since(start))
		metrics.RecordConfidenceScore(response.ConfidenceScore)
		return response, nil
	}

	slog.Error("primary model failed, trying fallback",
		slog.String("model", g.cfg.PrimaryModel),
		slog.Any("error", err))

	prompt = buildPrompt(post, comment, tone, "general")
	text, err = g.call(ctx, prompt, g.cfg.FallbackModel)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("generate response: %w", ctx.Err())
		}
		slog.Error("fallback model also failed, using template",
			slog.String("model", g.cfg.FallbackModel),
			slog.Any("error", err))
		metrics.RecordResponseGenerated("claude", false, time.Since(start))
		return templateResponse(comment), nil
	}

	response := &entity.GeneratedResponse{
		Text:            text,
		ConfidenceScore: fallbackConfidence,
		Reasoning:       "Generated using fallback model " + g.cfg.FallbackModel,
	}
	response.AddWarning("Primary model unavailable, used fallback model")
	annotate(response, comment)
	metrics.RecordResponseGenerated("claude", true, time.Since(start))
	metrics.RecordConfidenceScore(response.ConfidenceScore)
	return response, nil
}

func (g *Claude) analyzeTheme(ctx context.Context, post *entity.Post) string {
	theme, err := g.call(ctx, buildThemePrompt(post), g.cfg.PrimaryModel)
	if err != nil {
		slog.Warn("theme analysis failed, using default",
			slog.String("post_id", post.ID),
			slog.Any("error", err))
		return defaultTheme
	}
	return theme
}

// call executes one Messages API call through retry and circuit breaker.
func (g *Claude) call(ctx context.Context, prompt, model string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
	defer cancel()

	var result string
	retryErr := retry.WithBackoff(ctx, g.retryCfg, func() error {
		cbResult, err := g.breaker.Execute(func() (interface{}, error) {
			return g.doCall(ctx, prompt, model)
		})
		if err != nil {
			return err
		}
		result = cbResult.(string)
		return nil
	})
	if retryErr != nil {
		return "", fmt.Errorf("claude completion failed: %w", retryErr)
	}
	return result, nil
}

func (g *Claude) doCall(ctx context.Context, prompt, model string) (string, error) {
	message, err := g.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(model),
		MaxTokens:   int64(g.cfg.MaxTokens),
		Temperature: anthropic.Float(g.cfg.Temperature),
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewTextBlock(prompt),
			),
		},
	})
	if err != nil {
		return "", fmt.Errorf("claude api error: %w", err)
	}
	if len(message.Content) == 0 {
		return "", fmt.Errorf("claude api returned empty response")
	}

	textBlock, ok := message.Content[0].AsAny().(anthropic.TextBlock)
	if !ok {
		return "", fmt.Errorf("claude api returned unexpected response type")
	}
	return strings.TrimSpace(textBlock.Text), nil
}
