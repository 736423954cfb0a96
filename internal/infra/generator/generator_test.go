package generator

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"replyflow/internal/domain/entity"
)

func testPost() *entity.Post {
	return &entity.Post{
		ID:        "post-1",
		Content:   "We just shipped our new analytics dashboard!",
		MediaURLs: []string{"https://cdn.example.com/dash.png"},
		Metadata:  map[string]string{"media_type": "IMAGE"},
	}
}

func testComment(text string) entity.Comment {
	return entity.Comment{
		ID:         "c1",
		PostID:     "post-1",
		AuthorName: "Jordan",
		Text:       text,
	}
}

func TestBuildPrompt(t *testing.T) {
	prompt := buildPrompt(testPost(), testComment("love the new charts"), "playful", "product launch")

	assert.Contains(t, prompt, "Original Post: We just shipped our new analytics dashboard!")
	assert.Contains(t, prompt, "Post includes media: 1 item(s)")
	assert.Contains(t, prompt, "Post Theme: product launch")
	assert.Contains(t, prompt, "Desired Tone: playful")
	assert.Contains(t, prompt, "Comment from Jordan: love the new charts")
	assert.True(t, strings.HasSuffix(prompt, "Generate an appropriate response:"))
}

func TestBuildThemePromptOmitsMissingMedia(t *testing.T) {
	post := testPost()
	post.MediaURLs = nil

	prompt := buildThemePrompt(post)
	assert.NotContains(t, prompt, "media item(s)")
	assert.Contains(t, prompt, post.Content)
}

func TestValidDraft(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		valid bool
	}{
		{"normal response", "Thanks Jordan, the charts practically render themselves!", true},
		{"empty", "", false},
		{"whitespace only", "   \n ", false},
		{"too short", "thanks!", false},
		{"over limit", strings.Repeat("a", MaxResponseLength+1), false},
		{"error marker", "something went wrong [error] please retry", false},
		{"refusal", "I cannot generate a response to this comment.", false},
		{"exactly at limit", strings.Repeat("a", MaxResponseLength), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, validDraft(tt.text))
		})
	}
}

func TestAnnotateWarnsNearLengthLimit(t *testing.T) {
	response := &entity.GeneratedResponse{
		Text:            strings.Repeat("a", MaxResponseLength-10),
		ConfidenceScore: primaryConfidence,
	}
	annotate(response, testComment("nice work"))

	assert.True(t, response.HasWarnings())
	assert.Contains(t, response.Warnings, "Response is close to maximum length")
}

func TestAnnotateWarnsOnSensitiveComment(t *testing.T) {
	response := &entity.GeneratedResponse{Text: "Thanks for flagging, we will follow up directly."}
	annotate(response, testComment("I want a REFUND immediately"))

	assert.Contains(t, response.Warnings, "Comment contains potentially sensitive keywords")

	response = &entity.GeneratedResponse{Text: "Appreciate the kind words!"}
	annotate(response, testComment("great product"))
	assert.False(t, response.HasWarnings())
}

func TestTemplateResponse(t *testing.T) {
	response := templateResponse(testComment("hello"))

	assert.Contains(t, response.Text, "Jordan")
	assert.Equal(t, templateConfidence, response.ConfidenceScore)
	assert.Contains(t, response.Warnings, "LLM unavailable, using template response")
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{APIKey: "sk-test", Temperature: 0.7, MaxTokens: 500, Timeout: time.Minute}
	assert.NoError(t, cfg.Validate())

	cfg.APIKey = " "
	assert.ErrorIs(t, cfg.Validate(), entity.ErrInvalidInput)

	cfg.APIKey = "sk-test"
	cfg.Temperature = 3.5
	assert.ErrorIs(t, cfg.Validate(), entity.ErrInvalidInput)

	cfg.Temperature = 0.7
	cfg.MaxTokens = 0
	assert.ErrorIs(t, cfg.Validate(), entity.ErrInvalidInput)
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg := LoadConfig("sk-test")

	assert.Equal(t, "sk-test", cfg.APIKey)
	assert.InDelta(t, 0.7, cfg.Temperature, 1e-9)
	assert.Equal(t, 500, cfg.MaxTokens)
	assert.Equal(t, 60*time.Second, cfg.Timeout)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("LLM_MODEL", "gpt-4o")
	t.Setenv("LLM_TEMPERATURE", "0.3")
	t.Setenv("LLM_MAX_TOKENS", "800")

	cfg := LoadConfig("sk-test")
	assert.Equal(t, "gpt-4o", cfg.PrimaryModel)
	assert.InDelta(t, 0.3, cfg.Temperature, 1e-9)
	assert.Equal(t, 800, cfg.MaxTokens)
}
