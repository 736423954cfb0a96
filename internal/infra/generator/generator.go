// Package generator produces reply drafts for comments using a language
// model. Two providers are available (OpenAI and Claude); both share the
// same prompt construction, draft validation and fallback ladder: primary
// model, then a cheaper fallback model, then a static template.
package generator

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"replyflow/internal/domain/entity"
	pkgconfig "replyflow/pkg/config"
)

// MaxResponseLength is the hard character limit the platform enforces on
// comment replies.
const MaxResponseLength = 1250

// Confidence scores by generation path. The approval gate compares these
// against its threshold, so fallback and template drafts are deliberately
// scored below typical auto-approve settings.
const (
	primaryConfidence  = 0.85
	fallbackConfidence = 0.65
	templateConfidence = 0.3
)

// defaultTheme is used when theme analysis fails; generation proceeds
// with a generic framing rather than failing the whole draft.
const defaultTheme = "general discussion"

// Config holds the generation parameters shared by both providers.
type Config struct {
	// APIKey authenticates against the provider
	APIKey string

	// PrimaryModel is tried first for every draft
	PrimaryModel string

	// FallbackModel is used when the primary model fails
	FallbackModel string

	// Temperature controls sampling randomness
	Temperature float64

	// MaxTokens bounds the completion length
	MaxTokens int

	// Timeout bounds a single generation call
	Timeout time.Duration
}

// LoadConfig reads generation parameters from the environment. Provider
// specific model defaults are applied by the provider constructors when
// the corresponding variable is unset.
//
// Environment variables:
//   - LLM_MODEL: primary model name
//   - LLM_FALLBACK_MODEL: fallback model name
//   - LLM_TEMPERATURE: sampling temperature (default: 0.7)
//   - LLM_MAX_TOKENS: completion token budget (default: 500)
//   - LLM_TIMEOUT: per-call timeout (default: 60s)
func LoadConfig(apiKey string) Config {
	return Config{
		APIKey:        apiKey,
		PrimaryModel:  pkgconfig.GetEnvString("LLM_MODEL", ""),
		FallbackModel: pkgconfig.GetEnvString("LLM_FALLBACK_MODEL", ""),
		Temperature:   pkgconfig.GetEnvFloat("LLM_TEMPERATURE", 0.7),
		MaxTokens:     pkgconfig.GetEnvInt("LLM_MAX_TOKENS", 500),
		Timeout:       pkgconfig.GetEnvDuration("LLM_TIMEOUT", 60*time.Second),
	}
}

// Validate checks the configuration before a provider is constructed.
func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return &entity.ValidationError{Field: "apiKey", Message: "must not be blank"}
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return &entity.ValidationError{Field: "temperature", Message: "must be between 0 and 2"}
	}
	if c.MaxTokens <= 0 {
		return &entity.ValidationError{Field: "maxTokens", Message: "must be positive"}
	}
	return nil
}

const systemPrompt = "You are a witty social media engagement assistant. Your task is to generate " +
	"responses to comments that:\n" +
	"1. Acknowledge the commenter's specific point\n" +
	"2. Add comedic value aligned with the post's theme\n" +
	"3. Match the specified tone\n" +
	"4. Stay under 1250 characters\n" +
	"5. Remain professional yet entertaining\n\n" +
	"Generate only the response text, without any meta-commentary or explanations."

// buildPrompt assembles the user prompt for draft generation.
func buildPrompt(post *entity.Post, comment entity.Comment, tone, theme string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Original Post: %s\n\n", post.Content)
	if len(post.MediaURLs) > 0 {
		fmt.Fprintf(&b, "Post includes media: %d item(s)\n\n", len(post.MediaURLs))
	}
	if len(post.Metadata) > 0 {
		fmt.Fprintf(&b, "Post metadata: %v\n\n", post.Metadata)
	}
	fmt.Fprintf(&b, "Post Theme: %s\n\n", theme)
	fmt.Fprintf(&b, "Desired Tone: %s\n\n", tone)
	fmt.Fprintf(&b, "Comment from %s: %s\n\n", comment.AuthorName, comment.Text)
	b.WriteString("Generate an appropriate response:")

	return b.String()
}

// buildThemePrompt assembles the prompt for post theme analysis.
func buildThemePrompt(post *entity.Post) string {
	var b strings.Builder

	b.WriteString("Analyze the following social media post and identify its main theme and tone.\n\n")
	fmt.Fprintf(&b, "Post: %s\n\n", post.Content)
	if len(post.MediaURLs) > 0 {
		fmt.Fprintf(&b, "The post includes %d media item(s).\n\n", len(post.MediaURLs))
	}
	b.WriteString("Provide a brief description of the theme and tone (1-2 sentences):")

	return b.String()
}

// validDraft checks a generated draft for basic quality problems: blank
// or trivially short text, text over the platform limit, and refusal or
// error markers leaking from the model.
func validDraft(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		slog.Warn("draft validation failed: empty response")
		return false
	}
	if len(text) > MaxResponseLength {
		slog.Warn("draft validation failed: over length limit",
			slog.Int("length", len(text)),
			slog.Int("limit", MaxResponseLength))
		return false
	}
	if len(trimmed) < 10 {
		slog.Warn("draft validation failed: response too short")
		return false
	}

	lower := strings.ToLower(trimmed)
	if strings.Contains(lower, "[error]") ||
		strings.Contains(lower, "[failed]") ||
		strings.HasPrefix(lower, "i cannot") ||
		strings.HasPrefix(lower, "i can't") {
		slog.Warn("draft validation failed: error marker or refusal")
		return false
	}

	return true
}

var sensitiveKeywords = []string{
	"urgent", "complaint", "refund", "legal", "lawsuit",
	"discrimination", "harassment", "offensive",
}

// containsSensitiveKeywords reports whether a comment touches a topic
// that deserves human eyes regardless of draft quality.
func containsSensitiveKeywords(text string) bool {
	lower := strings.ToLower(text)
	for _, keyword := range sensitiveKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return false
}

// annotate attaches the standard warnings to a finished draft.
func annotate(response *entity.GeneratedResponse, comment entity.Comment) {
	if len(response.Text) > MaxResponseLength*9/10 {
		response.AddWarning("Response is close to maximum length")
	}
	if containsSensitiveKeywords(comment.Text) {
		response.AddWarning("Comment contains potentially sensitive keywords")
	}
}

// templateResponse is the last-resort draft when every model call failed.
func templateResponse(comment entity.Comment) *entity.GeneratedResponse {
	response := &entity.GeneratedResponse{
		Text: fmt.Sprintf(
			"Thanks for your comment, %s! I appreciate you taking the time to share your thoughts.",
			comment.AuthorName),
		ConfidenceScore: templateConfidence,
		Reasoning:       "Template-based fallback response",
	}
	response.AddWarning("LLM unavailable, using template response")
	return response
}
