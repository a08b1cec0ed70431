package logger_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signalnine/regress/internal/logger"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want log.Level
	}{
		{"", log.InfoLevel},
		{"debug", log.DebugLevel},
		{"INFO", log.InfoLevel},
		{"warn", log.WarnLevel},
		{"warning", log.WarnLevel},
		{"error", log.ErrorLevel},
	}
	for _, tt := range tests {
		got, err := logger.ParseLevel(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := logger.ParseLevel("verbose")
	assert.Error(t, err)
}

func TestConfigureWritesToFile(t *testing.T) {
	orig := logger.Logger
	t.Cleanup(func() { logger.Logger = orig })

	path := filepath.Join(t.TempDir(), "regress.log")
	require.NoError(t, logger.Configure("debug", path))

	logger.Debug("starting case", "tag", "channel")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "starting case")
	assert.Contains(t, string(data), "tag=channel")
}

func TestConfigureRejectsUnknownLevel(t *testing.T) {
	orig := logger.Logger
	t.Cleanup(func() { logger.Logger = orig })

	assert.Error(t, logger.Configure("loud", ""))
}

func TestSetOutputKeepsLevel(t *testing.T) {
	orig := logger.Logger
	t.Cleanup(func() { logger.Logger = orig })

	require.NoError(t, logger.Configure("warn", ""))
	var buf bytes.Buffer
	logger.SetOutput(&buf)

	logger.Info("hidden")
	logger.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}
