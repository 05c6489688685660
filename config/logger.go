package config

import (
	"io"
	"log/slog"
	"strings"
)

// NewLogger builds the JSON logger used across the service
func NewLogger(w io.Writer, level string) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: ParseLogLevel(level),
	}))
}

// ParseLogLevel maps LOG_LEVEL to a slog level, info for unknown values
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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
