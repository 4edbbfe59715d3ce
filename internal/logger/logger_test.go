package logger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"lumen-backend/internal/config"
)

func TestNew_FileSink(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "api.log")

	log, err := New(config.LogConfig{
		Level:      "info",
		FilePath:   logPath,
		MaxSizeMB:  1,
		MaxBackups: 1,
		MaxAgeDays: 1,
	}, "api")
	require.NoError(t, err)

	log.Info("booking created")
	log.Debug("hidden at info level")
	_ = log.Sync()

	content, err := os.ReadFile(logPath)
	require.NoError(t, err)

	out := string(content)
	assert.Contains(t, out, "booking created")
	assert.Contains(t, out, `"service":"api"`)
	assert.NotContains(t, out, "hidden at info level")
}

func TestNew_Development(t *testing.T) {
	log, err := New(config.LogConfig{Level: "debug", Dev: true}, "worker")
	require.NoError(t, err)
	assert.True(t, log.Core().Enabled(zapcore.DebugLevel))
}

func TestLevelFromString(t *testing.T) {
	tests := []struct {
		level    string
		expected zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"unknown", zapcore.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			assert.Equal(t, tt.expected, levelFromString(tt.level))
		})
	}
}
