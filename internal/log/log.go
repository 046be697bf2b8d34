// Package log provides structured logging for go-narrate.
// It wraps slog with sensible defaults for production use.
package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config selects level, format and an optional rotating log file.
type Config struct {
	Level      string // debug, info, warn, error
	Format     string // text or json; empty picks json when GO_ENV=production
	File       string // empty logs to stdout only
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

var (
	mu     sync.Mutex
	logger *slog.Logger
	closer io.Closer
)

// Init installs the global logger and returns it.
// Calling Init again replaces the previous logger.
func Init(cfg Config) *slog.Logger {
	mu.Lock()
	defer mu.Unlock()

	if closer != nil {
		closer.Close()
		closer = nil
	}

	var out io.Writer = os.Stdout
	if cfg.File != "" {
		file := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    orDefault(cfg.MaxSizeMB, 64),
			MaxBackups: orDefault(cfg.MaxBackups, 3),
			MaxAge:     orDefault(cfg.MaxAgeDays, 7),
			Compress:   true,
		}
		closer = file
		out = io.MultiWriter(os.Stdout, file)
	}

	logger = New(out, cfg)
	slog.SetDefault(logger)
	return logger
}

// New builds a logger writing to w without touching the global one.
func New(w io.Writer, cfg Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: ParseLevel(cfg.Level),
	}

	format := strings.ToLower(cfg.Format)
	if format == "" && os.Getenv("GO_ENV") == "production" {
		format = "json"
	}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// ParseLevel maps a level name to a slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

// L returns the global logger instance.
func L() *slog.Logger {
	mu.Lock()
	defer mu.Unlock()
	if logger == nil {
		return slog.Default()
	}
	return logger
}

// Discard returns a logger that drops everything. Useful in tests.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// Close flushes and closes the log file, if any.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if closer == nil {
		return nil
	}
	err := closer.Close()
	closer = nil
	return err
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
