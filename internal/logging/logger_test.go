package logging

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syntrixbase/statussync/internal/config"
)

func captureConsole(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := console
	console = &buf
	t.Cleanup(func() { console = prev })
	return &buf
}

func TestNewLogger_ConsoleOnly(t *testing.T) {
	buf := captureConsole(t)
	cfg := config.DefaultLoggingConfig()
	cfg.Dir = filepath.Join(t.TempDir(), "logs")

	logger, err := NewLogger(cfg)
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("Session activated", "session_id", "s1")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "Session activated session_id=s1")
	_, err = os.Stat(cfg.Dir)
	assert.True(t, os.IsNotExist(err), "log dir is only created for file output")
}

func TestNewLogger_JSONConsole(t *testing.T) {
	buf := captureConsole(t)
	cfg := config.DefaultLoggingConfig()
	cfg.Console.Format = "json"

	logger, err := NewLogger(cfg)
	require.NoError(t, err)
	logger.Warn("Push channel unavailable")

	assert.Contains(t, buf.String(), `"msg":"Push channel unavailable"`)
}

func TestNewLogger_Files(t *testing.T) {
	captureConsole(t)
	cfg := config.DefaultLoggingConfig()
	cfg.Dir = filepath.Join(t.TempDir(), "logs")
	cfg.File.Enabled = true
	cfg.File.Level = "debug"

	logger, err := NewLogger(cfg)
	require.NoError(t, err)
	logger.Debug("debug line")
	logger.Error("error line")
	require.NoError(t, Shutdown())

	main, err := os.ReadFile(filepath.Join(cfg.Dir, mainLogFile))
	require.NoError(t, err)
	assert.Contains(t, string(main), "debug line")
	assert.Contains(t, string(main), "error line")

	errs, err := os.ReadFile(filepath.Join(cfg.Dir, errorLogFile))
	require.NoError(t, err)
	assert.NotContains(t, string(errs), "debug line")
	assert.Contains(t, string(errs), "error line")
}

func TestNewLogger_NoOutputs(t *testing.T) {
	cfg := config.DefaultLoggingConfig()
	cfg.Console.Enabled = false

	logger, err := NewLogger(cfg)
	require.NoError(t, err)
	assert.False(t, logger.Enabled(context.Background(), slog.LevelError))
}

func TestNewLogger_BadDir(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0644))

	cfg := config.DefaultLoggingConfig()
	cfg.File.Enabled = true
	cfg.Dir = filepath.Join(file, "logs")

	_, err := NewLogger(cfg)
	assert.Error(t, err)
}

func TestInitialize(t *testing.T) {
	buf := captureConsole(t)
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	cfg := config.DefaultLoggingConfig()
	require.NoError(t, Initialize(cfg))
	slog.Info("via default")
	assert.Contains(t, buf.String(), "via default")
	assert.NoError(t, Shutdown())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelInfo, parseLevel("info"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warn"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("bogus"))
}
