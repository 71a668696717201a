package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" INFO ":  slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"verbose": slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for name, want := range tests {
		assert.Equal(t, want, ParseLevel(name), name)
	}
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(Config{Level: "info", Format: "json", Output: &buf})

	logger.Debug("hidden")
	logger.WithEntity("Book").Info("compiled", slog.Int("functions", 4))

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "compiled", record["msg"])
	assert.Equal(t, "Book", record["entity"])
	assert.EqualValues(t, 4, record["functions"])
}

func TestNewLogger_TextWithProvider(t *testing.T) {
	var buf bytes.Buffer
	provider := sdklog.NewLoggerProvider()
	defer func() { _ = provider.Shutdown(context.Background()) }()

	logger := NewLogger(Config{Level: "debug", Format: "text", Output: &buf, LoggerProvider: provider})
	_, ok := logger.Handler().(*multiHandler)
	require.True(t, ok)

	logger.WithFields(slog.String("step", "pivots")).Debug("step finished")
	assert.Contains(t, buf.String(), "step=pivots")
	assert.Contains(t, buf.String(), "step finished")
}

func TestContextLogger(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()).Logger)

	logger := NewLogger(Config{Output: &bytes.Buffer{}})
	ctx := WithLogger(context.Background(), logger)
	assert.Same(t, logger, FromContext(ctx))
}
