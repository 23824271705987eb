package internal

import (
	"io"
	"log/slog"
	"strings"
)

// NewLogger builds the process-wide logger. Development gets a readable
// text handler; everything else emits JSON tagged with the service name
// so log aggregation can filter on it. Debug level also turns on source
// locations.
func NewLogger(w io.Writer, env string, level string) *slog.Logger {
	logLevel := parseLevel(level)

	opts := &slog.HandlerOptions{
		Level:     logLevel,
		AddSource: logLevel == slog.LevelDebug,
	}

	if env == "development" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts)).
		With("service", "sampixels", "env", env)
}

func parseLevel(level string) slog.Level {
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
