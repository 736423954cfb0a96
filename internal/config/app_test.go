package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaultsWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 300*time.Second, cfg.Workflow.PollInterval)
	assert.Equal(t, "witty", cfg.Workflow.TonePreference)
	assert.Equal(t, 1000, cfg.Storage.MaxCapacity)
	assert.Equal(t, "0 2 * * *", cfg.Storage.ExportSchedule)
	assert.Equal(t, "https://api.linkedin.com/v2", cfg.Client.BaseURL)
	assert.Equal(t, 100, cfg.Client.RateLimitCapacity)
	assert.Equal(t, "openai", cfg.Generator.Provider)
	assert.Equal(t, ":9090", cfg.Server.MetricsAddr)
	assert.False(t, cfg.Notifications.Enabled)
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 1000, cfg.Storage.MaxCapacity)
}

func TestLoadParsesYAML(t *testing.T) {
	path := writeConfigFile(t, `
workflow:
  post_id: urn:li:ugcPost:42
  poll_interval: 2m
  require_manual_approval: true
  manual_review_keywords: [urgent, refund]
storage:
  max_capacity: 50
  export_format: csv
generator:
  provider: claude
  temperature: 0.4
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "urn:li:ugcPost:42", cfg.Workflow.PostID)
	assert.Equal(t, 2*time.Minute, cfg.Workflow.PollInterval)
	assert.True(t, cfg.Workflow.RequireManualApproval)
	assert.Equal(t, []string{"urgent", "refund"}, cfg.Workflow.ManualReviewKeywords)
	assert.Equal(t, 50, cfg.Storage.MaxCapacity)
	assert.Equal(t, "csv", cfg.Storage.ExportFormat)
	assert.Equal(t, "claude", cfg.Generator.Provider)
	assert.InDelta(t, 0.4, cfg.Generator.Temperature, 1e-9)

	// Untouched sections keep their defaults.
	assert.Equal(t, 3, cfg.Workflow.MaxRetries)
	assert.Equal(t, ":9090", cfg.Server.MetricsAddr)
}

func TestLoadEnvironmentOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `
workflow:
  post_id: from-file
`)
	t.Setenv("WORKFLOW_POST_ID", "from-env")
	t.Setenv("WORKFLOW_POLL_INTERVAL", "45s")
	t.Setenv("GENERATOR_TYPE", "claude")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Workflow.PostID)
	assert.Equal(t, 45*time.Second, cfg.Workflow.PollInterval)
	assert.Equal(t, "claude", cfg.Generator.Provider)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := writeConfigFile(t, "workflow: [not a mapping")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config")
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*AppConfig)
		want   string
	}{
		{
			name:   "non-positive poll interval",
			mutate: func(c *AppConfig) { c.Workflow.PollInterval = 0 },
			want:   "poll_interval",
		},
		{
			name:   "zero max retries",
			mutate: func(c *AppConfig) { c.Workflow.MaxRetries = 0 },
			want:   "max_retries",
		},
		{
			name:   "zero storage capacity",
			mutate: func(c *AppConfig) { c.Storage.MaxCapacity = 0 },
			want:   "max_capacity",
		},
		{
			name:   "bad cron schedule",
			mutate: func(c *AppConfig) { c.Storage.ExportSchedule = "not a cron" },
			want:   "cron schedule",
		},
		{
			name:   "unknown export format",
			mutate: func(c *AppConfig) { c.Storage.ExportFormat = "xml" },
			want:   "export_format",
		},
		{
			name:   "empty base url",
			mutate: func(c *AppConfig) { c.Client.BaseURL = "" },
			want:   "base_url",
		},
		{
			name:   "unknown provider",
			mutate: func(c *AppConfig) { c.Generator.Provider = "bard" },
			want:   "provider",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestEmptyExportScheduleDisablesJob(t *testing.T) {
	cfg := Default()
	cfg.Storage.ExportSchedule = ""
	assert.NoError(t, cfg.Validate())
}
