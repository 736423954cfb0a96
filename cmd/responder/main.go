package main

import (
	"context"
	"flag"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"replyflow/internal/config"
	"replyflow/internal/infra/generator"
	"replyflow/internal/infra/history"
	"replyflow/internal/infra/notifier"
	"replyflow/internal/infra/socialapi"
	"replyflow/internal/observability/logging"
	"replyflow/internal/ratelimit"
	"replyflow/internal/resilience/circuitbreaker"
	"replyflow/internal/usecase/workflow"
)

func main() {
	logger := logging.NewLogger()
	slog.SetDefault(logger)

	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded",
		slog.String("post_id", cfg.Workflow.PostID),
		slog.Duration("poll_interval", cfg.Workflow.PollInterval),
		slog.Bool("require_manual_approval", cfg.Workflow.RequireManualApproval),
		slog.String("generator", cfg.Generator.Provider))

	store := initStore(logger, cfg)
	breakers := circuitbreaker.NewRegistry()
	client := initClient(logger, cfg, breakers)
	gen := createGenerator(logger, cfg.Generator)
	alerts := initNotifications(logger, cfg)

	orchestrator := workflow.NewOrchestrator(client, gen, store, alerts)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	workflowCfg := workflow.Config{
		PostID:                cfg.Workflow.PostID,
		PollInterval:          cfg.Workflow.PollInterval,
		RequireManualApproval: cfg.Workflow.RequireManualApproval,
		TonePreference:        cfg.Workflow.TonePreference,
		ManualReviewKeywords:  cfg.Workflow.ManualReviewKeywords,
		MaxRetries:            cfg.Workflow.MaxRetries,
		RetryBackoff:          cfg.Workflow.RetryBackoff,
	}
	if err := orchestrator.StartPolling(ctx, workflowCfg); err != nil {
		logger.Error("failed to start polling", slog.Any("error", err))
		os.Exit(1)
	}

	scheduler := startExportScheduler(logger, store, cfg.Storage)
	startAdminServer(ctx, logger, cfg.Server.MetricsAddr, orchestrator, breakers)

	// Block until shutdown is requested.
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	received := <-sig
	logger.Info("shutdown requested", slog.String("signal", received.String()))

	orchestrator.StopPolling()
	if scheduler != nil {
		<-scheduler.Stop().Done()
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	alerts.Shutdown(shutdownCtx)

	logger.Info("shutdown complete")
}

// initStore creates the file-backed interaction history store.
func initStore(logger *slog.Logger, cfg *config.AppConfig) *history.FileStore {
	storeCfg := history.DefaultConfig(cfg.Storage.DataDir)
	storeCfg.MaxCapacity = cfg.Storage.MaxCapacity

	store, err := history.NewFileStore(storeCfg)
	if err != nil {
		logger.Error("failed to initialize history store", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("history store initialized",
		slog.String("dir", storeCfg.Dir),
		slog.Int("max_capacity", storeCfg.MaxCapacity))
	return store
}

// initClient creates the platform API client with its shared rate limiter
// and circuit breaker. The access token comes from SOCIAL_ACCESS_TOKEN.
func initClient(logger *slog.Logger, cfg *config.AppConfig, breakers *circuitbreaker.Registry) *socialapi.Client {
	accessToken := os.Getenv("SOCIAL_ACCESS_TOKEN")
	if accessToken == "" {
		logger.Error("SOCIAL_ACCESS_TOKEN is required")
		os.Exit(1)
	}

	limiter := ratelimit.New(cfg.Client.RateLimitCapacity, cfg.Client.RateLimitWindow)
	breaker := breakers.GetOrCreateWithConfig("social-api", circuitbreaker.SocialAPIConfig())

	client, err := socialapi.New(socialapi.Config{
		BaseURL:     cfg.Client.BaseURL,
		AccessToken: accessToken,
		ActorURN:    os.Getenv("SOCIAL_ACTOR_URN"),
		Timeout:     cfg.Client.Timeout,
	}, limiter, breaker)
	if err != nil {
		logger.Error("failed to initialize API client", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("API client initialized",
		slog.String("base_url", cfg.Client.BaseURL),
		slog.Int("rate_limit_capacity", cfg.Client.RateLimitCapacity),
		slog.Duration("rate_limit_window", cfg.Client.RateLimitWindow))
	return client
}

// createGenerator creates a response generator based on the configured
// provider (GENERATOR_TYPE or generator.provider in the config file).
func createGenerator(logger *slog.Logger, genCfg config.GeneratorConfig) workflow.ResponseGenerator {
	switch genCfg.Provider {
	case "openai":
		apiKey := os.Getenv("OPENAI_API_KEY")
		if apiKey == "" {
			logger.Error("OPENAI_API_KEY is required when generator provider is openai")
			os.Exit(1)
		}
		gen, err := generator.NewOpenAI(generatorConfig(apiKey, genCfg))
		if err != nil {
			logger.Error("failed to initialize OpenAI generator", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("using OpenAI for response generation")
		return gen
	case "claude":
		apiKey := os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			logger.Error("ANTHROPIC_API_KEY is required when generator provider is claude")
			os.Exit(1)
		}
		gen, err := generator.NewClaude(generatorConfig(apiKey, genCfg))
		if err != nil {
			logger.Error("failed to initialize Claude generator", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("using Claude for response generation")
		return gen
	default:
		logger.Error("invalid generator provider",
			slog.String("provider", genCfg.Provider),
			slog.String("expected", "openai or claude"))
		os.Exit(1)
		return nil
	}
}

func generatorConfig(apiKey string, genCfg config.GeneratorConfig) generator.Config {
	return generator.Config{
		APIKey:        apiKey,
		PrimaryModel:  genCfg.Model,
		FallbackModel: genCfg.FallbackModel,
		Temperature:   genCfg.Temperature,
		MaxTokens:     genCfg.MaxTokens,
		Timeout:       genCfg.Timeout,
	}
}

// initNotifications creates the notification service. A log sink is always
// attached; a Slack sink is added when SLACK_WEBHOOK_URL is set and valid.
func initNotifications(logger *slog.Logger, cfg *config.AppConfig) *notifier.Service {
	sinks := []notifier.Sink{notifier.NewLogSink()}

	if webhookURL := os.Getenv("SLACK_WEBHOOK_URL"); webhookURL != "" {
		if err := validateSlackWebhook(webhookURL); err != nil {
			logger.Warn("invalid Slack webhook URL, Slack sink disabled", slog.Any("error", err))
		} else {
			sinks = append(sinks, notifier.NewSlackSink(notifier.SlackConfig{
				WebhookURL: webhookURL,
				Timeout:    30 * time.Second,
			}))
			logger.Info("Slack sink enabled")
		}
	}

	return notifier.NewService(notifier.Config{
		Enabled:       cfg.Notifications.Enabled,
		FlushInterval: cfg.Notifications.FlushInterval,
	}, sinks...)
}

// validateSlackWebhook rejects webhook URLs that are not Slack's.
func validateSlackWebhook(webhookURL string) error {
	u, err := url.Parse(webhookURL)
	if err != nil {
		return err
	}
	if u.Scheme != "https" {
		return errInvalidWebhook("must use HTTPS")
	}
	if u.Host != "hooks.slack.com" {
		return errInvalidWebhook("unexpected host " + u.Host)
	}
	if !strings.HasPrefix(u.Path, "/services/") {
		return errInvalidWebhook("unexpected path " + u.Path)
	}
	return nil
}

type errInvalidWebhook string

func (e errInvalidWebhook) Error() string { return "invalid webhook URL: " + string(e) }

// startExportScheduler registers the daily history export cron job.
// Returns nil when the schedule is empty (job disabled).
func startExportScheduler(logger *slog.Logger, store *history.FileStore, storageCfg config.StorageConfig) *cron.Cron {
	if storageCfg.ExportSchedule == "" {
		logger.Info("history export job disabled")
		return nil
	}

	c := cron.New()
	_, err := c.AddFunc(storageCfg.ExportSchedule, func() {
		path, err := store.Export(storageCfg.ExportFormat)
		if err != nil {
			logger.Error("history export failed", slog.Any("error", err))
			return
		}
		logger.Info("history exported",
			slog.String("path", path),
			slog.String("format", storageCfg.ExportFormat))
	})
	if err != nil {
		logger.Error("failed to register export job", slog.Any("error", err))
		os.Exit(1)
	}
	c.Start()

	logger.Info("history export job scheduled",
		slog.String("schedule", storageCfg.ExportSchedule),
		slog.String("format", storageCfg.ExportFormat))
	return c
}
