package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/reliefdesk/reliefdesk-backend/internal/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

var logger *slog.Logger

// Init installs the process logger. An empty Filename logs to stdout only;
// otherwise output goes to a rolling file, mirrored to stdout in text format.
func Init(cfg *config.LoggingConfig, service string) error {
	l, err := New(cfg)
	if err != nil {
		return err
	}
	if service != "" {
		l = l.With("service", service)
	}
	logger = l
	slog.SetDefault(logger)
	return nil
}

// New builds a logger without installing it.
func New(cfg *config.LoggingConfig) (*slog.Logger, error) {
	var writer io.Writer = os.Stdout
	if cfg.Filename != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Filename), 0755); err != nil {
			return nil, err
		}
		roller := &lumberjack.Logger{
			Filename:   cfg.Filename,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
		}
		writer = roller
		if cfg.Format != "json" {
			writer = io.MultiWriter(os.Stdout, roller)
		}
	}
	return slog.New(newHandler(writer, cfg.Format, parseLevel(cfg.Level))), nil
}

func newHandler(w io.Writer, format string, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	if format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

func parseLevel(level string) slog.Level {
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

func Debug(msg string, args ...any) {
	if logger != nil {
		logger.Debug(msg, args...)
	}
}

func Info(msg string, args ...any) {
	if logger != nil {
		logger.Info(msg, args...)
	}
}

func Warn(msg string, args ...any) {
	if logger != nil {
		logger.Warn(msg, args...)
	}
}

func Error(msg string, args ...any) {
	if logger != nil {
		logger.Error(msg, args...)
	}
}

func With(args ...any) *slog.Logger {
	if logger != nil {
		return logger.With(args...)
	}
	return slog.Default().With(args...)
}
