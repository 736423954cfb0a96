package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerLevels(t *testing.T) {
	tests := []struct {
		name     string
		logLevel string
	}{
		{name: "default log level (info)", logLevel: ""},
		{name: "debug log level", logLevel: "debug"},
		{name: "invalid log level defaults to info", logLevel: "invalid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.logLevel != "" {
				t.Setenv("LOG_LEVEL", tt.logLevel)
			}
			assert.NotNil(t, NewLogger())
			assert.NotNil(t, NewTextLogger())
		})
	}
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warn"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel(""))
	assert.Equal(t, slog.LevelInfo, parseLevel("garbage"))
}

func TestWithCorrelationID(t *testing.T) {
	var buf bytes.Buffer
	baseLogger := slog.New(slog.NewJSONHandler(&buf, nil))

	ctx := WithCorrelation(context.Background(), "corr-550e8400")
	logger := WithCorrelationID(ctx, baseLogger)
	logger.Info("test message")

	var logEntry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &logEntry))
	assert.Equal(t, "corr-550e8400", logEntry["correlation_id"])
}

func TestWithCorrelationIDEmpty(t *testing.T) {
	var buf bytes.Buffer
	baseLogger := slog.New(slog.NewJSONHandler(&buf, nil))

	logger := WithCorrelationID(context.Background(), baseLogger)
	logger.Info("test message")

	output := buf.String()
	assert.Contains(t, output, "test message")
	assert.NotContains(t, output, "correlation_id")
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	baseLogger := slog.New(slog.NewJSONHandler(&buf, nil))

	logger := WithFields(baseLogger, map[string]interface{}{
		"comment_id": "c-123",
		"attempts":   3,
		"success":    true,
	})
	logger.Info("test message")

	var logEntry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &logEntry))
	assert.Equal(t, "c-123", logEntry["comment_id"])
	assert.Equal(t, float64(3), logEntry["attempts"])
	assert.Equal(t, true, logEntry["success"])
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	ctx := WithLogger(context.Background(), logger)
	retrieved := FromContext(ctx)
	retrieved.Info("test message")
	assert.Contains(t, buf.String(), "test message")

	assert.Equal(t, slog.Default(), FromContext(context.Background()))

	bad := context.WithValue(context.Background(), loggerContextKey, "not a logger")
	assert.Equal(t, slog.Default(), FromContext(bad))
}

func TestDebugLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	logger.Debug("this should not appear")
	logger.Info("this should appear")

	output := buf.String()
	assert.NotContains(t, output, "this should not appear")
	assert.Contains(t, output, "this should appear")
}

func TestMultipleLogEntriesAreValidJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	logger.Info("first message")
	logger.Warn("second message")
	logger.Error("third message")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)

	for i, line := range lines {
		var logEntry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &logEntry), "line %d should be valid JSON", i+1)
		assert.NotEmpty(t, logEntry["msg"])
		assert.NotEmpty(t, logEntry["level"])
		assert.NotEmpty(t, logEntry["time"])
	}
}
