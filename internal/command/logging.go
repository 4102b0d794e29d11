package command

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/joeycumines/bte/internal/config"
)

// resolveLogger builds the process logger. Flag values take precedence over
// the log-level and log-format config options.
func resolveLogger(w io.Writer, flagLevel, flagFormat string, cfg *config.Config) (*slog.Logger, error) {
	levelStr, format := flagLevel, flagFormat
	if levelStr == "" {
		levelStr = cfg.String("", "log-level")
	}
	if format == "" {
		format = cfg.String("", "log-format")
	}

	var level slog.Level
	switch strings.ToLower(levelStr) {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, fmt.Errorf("invalid log level: %s", levelStr)
	}

	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(format) {
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format: %s", format)
	}
}
