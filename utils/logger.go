package utils

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LoggerOptions configures NewLogger
type LoggerOptions struct {
	Level      string // debug, info, warn, error
	Format     string // json, text
	Output     string // stdout, file, both
	FilePath   string
	MaxSize    int // MB
	MaxBackups int
	MaxAge     int // days
	Compress   bool
}

// NewLogger builds the application logger. File output goes through lumberjack so
// rotation happens in-process.
func NewLogger(opts LoggerOptions) (*slog.Logger, io.Closer) {
	var (
		writers []io.Writer
		closer  io.Closer = nopCloser{}
	)

	switch opts.Output {
	case "file", "both":
		lj := &lumberjack.Logger{
			Filename:   opts.FilePath,
			MaxSize:    opts.MaxSize,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAge,
			Compress:   opts.Compress,
		}
		writers = append(writers, lj)
		closer = lj
		if opts.Output == "both" {
			writers = append(writers, os.Stdout)
		}
	default:
		writers = append(writers, os.Stdout)
	}

	handlerOpts := &slog.HandlerOptions{Level: parseLevel(opts.Level)}
	out := io.MultiWriter(writers...)

	var h slog.Handler
	if strings.EqualFold(opts.Format, "text") {
		h = slog.NewTextHandler(out, handlerOpts)
	} else {
		h = slog.NewJSONHandler(out, handlerOpts)
	}
	return slog.New(h), closer
}

// NopLogger returns a logger that discards everything
func NopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// LoggerFromContext decorates the logger with request-scoped attributes found in ctx
func LoggerFromContext(ctx context.Context, base *slog.Logger) *slog.Logger {
	if base == nil {
		base = slog.Default()
	}
	if ctx == nil {
		return base
	}
	if v, ok := ctx.Value(RequestIDKey).(string); ok && v != "" {
		base = base.With("request_id", v)
	}
	if v, ok := ctx.Value(ActorIDKey).(uint); ok && v != 0 {
		base = base.With("actor_id", v)
	}
	return base
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
