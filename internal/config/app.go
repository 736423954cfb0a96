// Package config loads the application configuration from an optional YAML
// file merged with environment variable overrides. Secrets (API keys,
// tokens, webhook URLs) are only ever read from the environment.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	pkgconfig "replyflow/pkg/config"
)

// AppConfig is the full application configuration.
type AppConfig struct {
	Workflow      WorkflowConfig     `yaml:"workflow"`
	Storage       StorageConfig      `yaml:"storage"`
	Client        ClientConfig       `yaml:"client"`
	Generator     GeneratorConfig    `yaml:"generator"`
	Notifications NotificationConfig `yaml:"notifications"`
	Server        ServerConfig       `yaml:"server"`
}

// WorkflowConfig mirrors the orchestrator settings.
type WorkflowConfig struct {
	PostID                string        `yaml:"post_id"`
	PollInterval          time.Duration `yaml:"poll_interval"`
	RequireManualApproval bool          `yaml:"require_manual_approval"`
	TonePreference        string        `yaml:"tone_preference"`
	ManualReviewKeywords  []string      `yaml:"manual_review_keywords"`
	MaxRetries            int           `yaml:"max_retries"`
	RetryBackoff          time.Duration `yaml:"retry_backoff"`
}

// StorageConfig configures the interaction history store and its export job.
type StorageConfig struct {
	DataDir     string `yaml:"data_dir"`
	MaxCapacity int    `yaml:"max_capacity"`

	// ExportSchedule is a standard five-field cron expression for the
	// daily history export job. Empty disables the job.
	ExportSchedule string `yaml:"export_schedule"`
	ExportFormat   string `yaml:"export_format"`
}

// ClientConfig configures the platform API client. The access token and
// actor URN come from SOCIAL_ACCESS_TOKEN and SOCIAL_ACTOR_URN.
type ClientConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`

	// RateLimitCapacity tokens refill every RateLimitWindow.
	RateLimitCapacity int           `yaml:"rate_limit_capacity"`
	RateLimitWindow   time.Duration `yaml:"rate_limit_window"`
}

// GeneratorConfig selects and tunes the LLM provider. The API key comes
// from OPENAI_API_KEY or ANTHROPIC_API_KEY depending on the provider.
type GeneratorConfig struct {
	Provider      string        `yaml:"provider"`
	Model         string        `yaml:"model"`
	FallbackModel string        `yaml:"fallback_model"`
	Temperature   float64       `yaml:"temperature"`
	MaxTokens     int           `yaml:"max_tokens"`
	Timeout       time.Duration `yaml:"timeout"`
}

// NotificationConfig configures the error notification service. The Slack
// webhook URL comes from SLACK_WEBHOOK_URL.
type NotificationConfig struct {
	Enabled       bool          `yaml:"enabled"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// ServerConfig configures the metrics endpoint.
type ServerConfig struct {
	MetricsAddr string `yaml:"metrics_addr"`
}

// Default returns the configuration used when no YAML file is present.
func Default() *AppConfig {
	return &AppConfig{
		Workflow: WorkflowConfig{
			PollInterval:   300 * time.Second,
			TonePreference: "witty",
			MaxRetries:     3,
			RetryBackoff:   2 * time.Second,
		},
		Storage: StorageConfig{
			DataDir:        "./data",
			MaxCapacity:    1000,
			ExportSchedule: "0 2 * * *",
			ExportFormat:   "json",
		},
		Client: ClientConfig{
			BaseURL:           "https://api.linkedin.com/v2",
			Timeout:           30 * time.Second,
			RateLimitCapacity: 100,
			RateLimitWindow:   time.Minute,
		},
		Generator: GeneratorConfig{
			Provider:    "openai",
			Temperature: 0.7,
			MaxTokens:   500,
			Timeout:     60 * time.Second,
		},
		Notifications: NotificationConfig{
			Enabled:       false,
			FlushInterval: time.Hour,
		},
		Server: ServerConfig{
			MetricsAddr: ":9090",
		},
	}
}

// Load reads the YAML file at path (skipped when path is empty or the file
// does not exist), applies environment overrides, and validates the result.
func Load(path string) (*AppConfig, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path) // #nosec G304 -- path comes from the CLI flag, not user input
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides lets the environment win over the YAML file, keeping
// container deployments configurable without mounting a file.
func (c *AppConfig) applyEnvOverrides() {
	c.Workflow.PostID = pkgconfig.GetEnvString("WORKFLOW_POST_ID", c.Workflow.PostID)
	c.Workflow.PollInterval = pkgconfig.GetEnvDuration("WORKFLOW_POLL_INTERVAL", c.Workflow.PollInterval)
	c.Workflow.RequireManualApproval = pkgconfig.GetEnvBool("WORKFLOW_REQUIRE_MANUAL_APPROVAL", c.Workflow.RequireManualApproval)
	c.Workflow.TonePreference = pkgconfig.GetEnvString("WORKFLOW_TONE", c.Workflow.TonePreference)
	c.Workflow.ManualReviewKeywords = pkgconfig.GetEnvStringList("WORKFLOW_REVIEW_KEYWORDS", c.Workflow.ManualReviewKeywords)
	c.Workflow.MaxRetries = pkgconfig.GetEnvInt("WORKFLOW_MAX_RETRIES", c.Workflow.MaxRetries)
	c.Workflow.RetryBackoff = pkgconfig.GetEnvDuration("WORKFLOW_RETRY_BACKOFF", c.Workflow.RetryBackoff)

	c.Storage.DataDir = pkgconfig.GetEnvString("STORAGE_DATA_DIR", c.Storage.DataDir)
	c.Storage.MaxCapacity = pkgconfig.GetEnvInt("STORAGE_MAX_CAPACITY", c.Storage.MaxCapacity)
	c.Storage.ExportSchedule = pkgconfig.GetEnvString("STORAGE_EXPORT_SCHEDULE", c.Storage.ExportSchedule)
	c.Storage.ExportFormat = pkgconfig.GetEnvString("STORAGE_EXPORT_FORMAT", c.Storage.ExportFormat)

	c.Client.BaseURL = pkgconfig.GetEnvString("SOCIAL_API_BASE_URL", c.Client.BaseURL)
	c.Client.Timeout = pkgconfig.GetEnvDuration("SOCIAL_API_TIMEOUT", c.Client.Timeout)
	c.Client.RateLimitCapacity = pkgconfig.GetEnvInt("SOCIAL_API_RATE_LIMIT", c.Client.RateLimitCapacity)
	c.Client.RateLimitWindow = pkgconfig.GetEnvDuration("SOCIAL_API_RATE_WINDOW", c.Client.RateLimitWindow)

	c.Generator.Provider = pkgconfig.GetEnvString("GENERATOR_TYPE", c.Generator.Provider)
	c.Generator.Model = pkgconfig.GetEnvString("LLM_MODEL", c.Generator.Model)
	c.Generator.FallbackModel = pkgconfig.GetEnvString("LLM_FALLBACK_MODEL", c.Generator.FallbackModel)
	c.Generator.Temperature = pkgconfig.GetEnvFloat("LLM_TEMPERATURE", c.Generator.Temperature)
	c.Generator.MaxTokens = pkgconfig.GetEnvInt("LLM_MAX_TOKENS", c.Generator.MaxTokens)
	c.Generator.Timeout = pkgconfig.GetEnvDuration("LLM_TIMEOUT", c.Generator.Timeout)

	c.Notifications.Enabled = pkgconfig.GetEnvBool("NOTIFICATIONS_ENABLED", c.Notifications.Enabled)
	c.Notifications.FlushInterval = pkgconfig.GetEnvDuration("NOTIFICATIONS_FLUSH_INTERVAL", c.Notifications.FlushInterval)

	c.Server.MetricsAddr = pkgconfig.GetEnvString("METRICS_ADDR", c.Server.MetricsAddr)
}

// Validate checks invariants the rest of the application relies on.
func (c *AppConfig) Validate() error {
	if err := pkgconfig.ValidatePositiveDuration(c.Workflow.PollInterval); err != nil {
		return fmt.Errorf("workflow poll_interval: %w", err)
	}
	if c.Workflow.MaxRetries < 1 {
		return fmt.Errorf("workflow max_retries must be at least 1, got %d", c.Workflow.MaxRetries)
	}
	if c.Storage.MaxCapacity < 1 {
		return fmt.Errorf("storage max_capacity must be at least 1, got %d", c.Storage.MaxCapacity)
	}
	if c.Storage.ExportSchedule != "" {
		if err := validateCronSchedule(c.Storage.ExportSchedule); err != nil {
			return err
		}
	}
	switch c.Storage.ExportFormat {
	case "json", "csv":
	default:
		return fmt.Errorf("storage export_format must be json or csv, got %q", c.Storage.ExportFormat)
	}
	if c.Client.BaseURL == "" {
		return fmt.Errorf("client base_url is required")
	}
	if c.Client.RateLimitCapacity < 1 {
		return fmt.Errorf("client rate_limit_capacity must be at least 1, got %d", c.Client.RateLimitCapacity)
	}
	switch c.Generator.Provider {
	case "openai", "claude":
	default:
		return fmt.Errorf("generator provider must be openai or claude, got %q", c.Generator.Provider)
	}
	if err := pkgconfig.ValidatePositiveDuration(c.Notifications.FlushInterval); err != nil {
		return fmt.Errorf("notifications flush_interval: %w", err)
	}
	return nil
}

// validateCronSchedule parses a five-field cron expression with the same
// parser the scheduler uses, so a config error surfaces at startup rather
// than when the job is registered.
func validateCronSchedule(schedule string) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", schedule, err)
	}
	return nil
}
