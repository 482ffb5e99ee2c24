package utils

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "server.log")

	logger, err := NewLogger(LoggerConfig{Level: "info", OutputPath: path, Format: "json"})
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("visible", zap.String("company", "acme"))
	require.NoError(t, logger.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"visible"`)
	assert.Contains(t, string(data), `"company":"acme"`)
	assert.NotContains(t, string(data), "hidden")
}

func TestNewLogger_UnknownLevelFallsBackToInfo(t *testing.T) {
	logger, err := NewLogger(LoggerConfig{Level: "chatty", OutputPath: "stderr"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
}

func TestKVLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	kv := NewKVLogger(zap.New(core))

	kv.Info("Request created", "request_id", "req-1", "attempt", 2)
	kv.Error("Delivery failed", "error", errors.New("boom"), 42, "ignored", "dangling")

	entries := logs.AllUntimed()
	require.Len(t, entries, 2)

	info := entries[0].ContextMap()
	assert.Equal(t, "req-1", info["request_id"])
	assert.EqualValues(t, 2, info["attempt"])

	failure := entries[1]
	assert.Equal(t, zapcore.ErrorLevel, failure.Level)
	assert.Equal(t, "boom", failure.ContextMap()["error"])
	assert.Len(t, failure.Context, 1)
}

func TestKVLogger_NilLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		NewKVLogger(nil).Info("nothing", "k", "v")
	})
}
