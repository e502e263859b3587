package utils

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	copilot "github.com/github/copilot-sdk/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keepDefaultLogger(t *testing.T) {
	old := slog.Default()
	t.Cleanup(func() { slog.SetDefault(old) })
}

func TestConfigureLogging_Stderr(t *testing.T) {
	keepDefaultLogger(t)

	var buf bytes.Buffer
	closer, err := ConfigureLogging(LogOptions{Stderr: &buf})
	require.NoError(t, err)
	defer closer.Close() //nolint:errcheck

	slog.Debug("hidden")
	slog.Info("shown", "job", "abc")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "msg=shown")
	assert.Contains(t, out, "job=abc")
}

func TestConfigureLogging_DebugFile(t *testing.T) {
	keepDefaultLogger(t)

	file := filepath.Join(t.TempDir(), "logs", "aemforge.log")
	closer, err := ConfigureLogging(LogOptions{Debug: true, File: file, MaxSizeMB: 1})
	require.NoError(t, err)

	slog.Debug("stage started", "stage", "component-generation")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(file)
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &entry))
	assert.Equal(t, "DEBUG", entry["level"])
	assert.Equal(t, "stage started", entry["msg"])
	assert.Equal(t, "component-generation", entry["stage"])
}

func TestSessionToSlog(t *testing.T) {
	keepDefaultLogger(t)

	var buf bytes.Buffer
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})))
	SessionToSlog(copilot.SessionEvent{Type: copilot.SessionEventType("assistant.message")})
	assert.Zero(t, buf.Len())

	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	content := `{"htl": "<div></div>"}`
	SessionToSlog(copilot.SessionEvent{
		Type: copilot.SessionEventType("assistant.message"),
		Data: copilot.Data{Content: &content},
	})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "Generator session event", entry["msg"])
	assert.Equal(t, "assistant.message", entry["type"])
	assert.Equal(t, content, entry["content"])
	assert.NotContains(t, entry, "toolName")
}

func TestAddIf(t *testing.T) {
	attrs := []any{"stage", "review"}
	assert.Equal(t, attrs, addIf(attrs, "score", (*int)(nil)))

	v := 90
	assert.Equal(t, []any{"stage", "review", "score", 90}, addIf(attrs, "score", &v))
}
