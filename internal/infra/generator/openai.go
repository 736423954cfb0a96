package generator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"replyflow/internal/domain/entity"
	"replyflow/internal/observability/metrics"
	"replyflow/internal/resilience/circuitbreaker"
	"replyflow/internal/resilience/retry"
)

// OpenAI generates reply drafts using OpenAI's chat completion API.
// Calls run through a circuit breaker and retry logic; when the primary
// model keeps failing, the draft falls back to a cheaper model and
// finally to a static template.
type OpenAI struct {
	client   *openai.Client
	cfg      Config
	breaker  *circuitbreaker.CircuitBreaker
	retryCfg retry.Config
}

// NewOpenAI creates an OpenAI-backed generator. Unset model names default
// to gpt-4 with a gpt-3.5-turbo fallback.
func NewOpenAI(cfg Config) (*OpenAI, error) {
	if cfg.PrimaryModel == "" {
		cfg.PrimaryModel = openai.GPT4
	}
	if cfg.FallbackModel == "" {
		cfg.FallbackModel = openai.GPT3Dot5Turbo
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	slog.Info("initialized openai generator",
		slog.String("model", cfg.PrimaryModel),
		slog.String("fallback_model", cfg.FallbackModel),
		slog.Float64("temperature", cfg.Temperature))

	return &OpenAI{
		client:   openai.NewClient(cfg.APIKey),
		cfg:      cfg,
		breaker:  circuitbreaker.New(circuitbreaker.GeneratorConfig()),
		retryCfg: retry.GeneratorConfig(),
	}, nil
}

// Generate produces a reply draft for the comment in the context of its
// post. A failing primary model degrades to the fallback model, then to a
// template; only context cancellation surfaces as an error.
func (g *OpenAI) Generate(ctx context.Context, post *entity.Post, comment entity.Comment, tone string) (*entity.GeneratedResponse, error) {
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
		metrics.RecordResponseGenerated("openai", true, time.Since(start))
		metrics.RecordConfidenceScore(response.ConfidenceScore)
		return response, nil
	}

	slog.Error("primary model failed, trying fallback",
		slog.String("model", g.cfg.PrimaryModel),
		slog.Any("error", err))
	return g.generateWithFallback(ctx, post, comment, tone, start)
}

// generateWithFallback retries the draft on the fallback model and
// degrades to a template when that fails too.
func (g *OpenAI) generateWithFallback(ctx context.Context, post *entity.Post, comment entity.Comment, tone string, start time.Time) (*entity.GeneratedResponse, error) {
	prompt := buildPrompt(post, comment, tone, "general")

	text, err := g.call(ctx, prompt, g.cfg.FallbackModel)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("generate response: %w", ctx.Err())
		}
		slog.Error("fallback model also failed, using template",
			slog.String("model", g.cfg.FallbackModel),
			slog.Any("error", err))
		metrics.RecordResponseGenerated("openai", false, time.Since(start))
		return templateResponse(comment), nil
	}

	response := &entity.GeneratedResponse{
		Text:            text,
		ConfidenceScore: fallbackConfidence,
		Reasoning:       "Generated using fallback model " + g.cfg.FallbackModel,
	}
	response.AddWarning("Primary model unavailable, used fallback model")
	annotate(response, comment)
	metrics.RecordResponseGenerated("openai", true, time.Since(start))
	metrics.RecordConfidenceScore(response.ConfidenceScore)
	return response, nil
}

// analyzeTheme asks the model for the post's theme. Failures fall back to
// a generic theme instead of failing the draft.
func (g *OpenAI) analyzeTheme(ctx context.Context, post *entity.Post) string {
	theme, err := g.call(ctx, buildThemePrompt(post), g.cfg.PrimaryModel)
	if err != nil {
		slog.Warn("theme analysis failed, using default",
			slog.String("post_id", post.ID),
			slog.Any("error", err))
		return defaultTheme
	}
	return theme
}

// call executes one chat completion through retry and circuit breaker.
func (g *OpenAI) call(ctx context.Context, prompt, model string) (string, error) {
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
		return "", fmt.Errorf("openai completion failed: %w", retryErr)
	}
	return result, nil
}

func (g *OpenAI) doCall(ctx context.Context, prompt, model string) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       model,
		Temperature: float32(g.cfg.Temperature),
		MaxTokens:   g.cfg.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai api returned empty response")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
