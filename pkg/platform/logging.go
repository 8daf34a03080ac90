package platform

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// parseLevel maps a logging.level value to a slog level.
func parseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("logging.level %q must be debug, info, warn or error", level)
	}
}

// NewLogger builds a logger writing to w as configured.
func NewLogger(cfg LoggingConfig, w io.Writer) *slog.Logger {
	level, _ := parseLevel(cfg.Level)
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// SetupLogging installs the configured logger as the slog default.
func SetupLogging(cfg LoggingConfig, w io.Writer) {
	slog.SetDefault(NewLogger(cfg, w))
}
