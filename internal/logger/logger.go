package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Default rotation parameters for the console's own log file.
const (
	DefaultMaxSizeMB  = 10 // MB
	DefaultMaxBackups = 3  // number of backup files
	DefaultMaxAgeDays = 7  // days
)

// Config describes the console's logging destinations. Console output goes
// to stderr; File additionally writes JSON records to a rotating file.
// Rotation parameters follow lumberjack semantics.
type Config struct {
	Level      string // debug, info, warn, error (default info)
	NoColor    bool   // disable ANSI colors on console output
	File       string // optional rotating log file path
	MaxSizeMB  int    // megabytes before rotation (default 10)
	MaxBackups int    // number of backups to keep (default 3)
	MaxAgeDays int    // days to keep (default 7)
	Compress   bool   // gzip rotated files
}

// New builds the console's slog.Logger. The returned closer owns the
// rotating file writer, if any.
func New(cfg Config) (*slog.Logger, io.Closer, error) {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}

	var console slog.Handler
	if cfg.NoColor {
		console = slog.NewTextHandler(os.Stderr, opts)
	} else {
		console = NewColorTextHandler(os.Stderr, opts)
	}

	if cfg.File == "" {
		return slog.New(console), nopCloser{}, nil
	}

	file := &lj.Logger{
		Filename:   cfg.File,
		MaxSize:    valOr(cfg.MaxSizeMB, DefaultMaxSizeMB),
		MaxBackups: valOr(cfg.MaxBackups, DefaultMaxBackups),
		MaxAge:     valOr(cfg.MaxAgeDays, DefaultMaxAgeDays),
		Compress:   cfg.Compress,
	}
	handlers := multiHandler{console, slog.NewJSONHandler(file, opts)}
	return slog.New(handlers), file, nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func valOr(v int, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// multiHandler fans records out to each handler.
type multiHandler []slog.Handler

func (m multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m multiHandler) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	for _, h := range m {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(multiHandler, len(m))
	for i, h := range m {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (m multiHandler) WithGroup(name string) slog.Handler {
	out := make(multiHandler, len(m))
	for i, h := range m {
		out[i] = h.WithGroup(name)
	}
	return out
}
