package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekisa-team/stickerforge/internal/env"
	"github.com/ekisa-team/stickerforge/internal/envvar"
)

func TestNew_ProductionWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(env.Production, WithConsole(&buf), WithLevel(slog.LevelInfo))

	log.Info("sticker stored", "path", "out/generated_sticker_1.png")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "sticker stored", record["msg"])
	assert.Equal(t, "out/generated_sticker_1.png", record["path"])
}

func TestNew_DevelopmentRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := New(env.Development, WithConsole(&buf), WithLevel(slog.LevelWarn))

	log.Info("hidden")
	assert.Empty(t, buf.String())

	log.Warn("visible")
	assert.Contains(t, buf.String(), "visible")
}

func TestNew_LogToFile(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "test.log")

	log := New(env.Development,
		WithConsole(&buf),
		WithLevel(slog.LevelInfo),
		WithLogToFile(true),
		WithLogFile(path),
	).With("component", "test")

	log.Info("written twice")

	assert.Contains(t, buf.String(), "written twice")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"component":"test"`)
}

func TestLevelFromEnv(t *testing.T) {
	t.Setenv(envvar.StickerforgeLogLevel, "debug")
	assert.Equal(t, slog.LevelDebug, LevelFromEnv())

	t.Setenv(envvar.StickerforgeLogLevel, "")
	assert.Equal(t, slog.LevelInfo, LevelFromEnv())
}
