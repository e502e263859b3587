package utils

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	copilot "github.com/github/copilot-sdk/go"
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogOptions configures the process-wide logger.
type LogOptions struct {
	Debug bool
	// File, when set, receives JSON log lines through a rotating writer
	// instead of text lines on Stderr.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Stderr     io.Writer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// ConfigureLogging installs the default slog logger. The returned closer
// flushes and closes the log file, if any.
func ConfigureLogging(opts LogOptions) (io.Closer, error) {
	level := slog.LevelInfo
	if opts.Debug {
		level = slog.LevelDebug
	}
	handlerOpts := &slog.HandlerOptions{Level: level}

	if opts.File == "" {
		out := opts.Stderr
		if out == nil {
			out = os.Stderr
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(out, handlerOpts)))
		return nopCloser{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
		return nil, err
	}
	w := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(w, handlerOpts)))
	return w, nil
}

// SessionToSlog mirrors copilot session events to the debug log.
func SessionToSlog(event copilot.SessionEvent) {
	if !slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		return
	}

	attrs := []any{"type", event.Type}
	attrs = addIf(attrs, "content", event.Data.Content)
	attrs = addIf(attrs, "deltaContent", event.Data.DeltaContent)
	attrs = addIf(attrs, "toolName", event.Data.ToolName)
	attrs = addIf(attrs, "toolCallID", event.Data.ToolCallID)

	slog.Debug("Generator session event", attrs...)
}

func addIf[T any](attrs []any, name string, v *T) []any {
	if v != nil {
		attrs = append(attrs, name, *v)
	}
	return attrs
}
