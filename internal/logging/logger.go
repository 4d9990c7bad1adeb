package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Level is the process log level; the REPL's !debug directive toggles
// it at runtime.
var Level slog.LevelVar

// NewLogger builds the process logger. The level comes from
// ECLAIR_LOG_LEVEL; timestamps are stripped for cleaner interactive
// output.
func NewLogger() *slog.Logger {
	level := slog.LevelWarn

	if val := strings.ToLower(os.Getenv("ECLAIR_LOG_LEVEL")); val != "" {
		switch val {
		case "debug":
			level = slog.LevelDebug
		case "info":
			level = slog.LevelInfo
		case "warn", "warning":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		default:
			// unknown value, keep default
		}
	}

	Level.Set(level)
	opts := &slog.HandlerOptions{
		Level: &Level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return a
		},
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, opts))
	slog.SetDefault(logger)
	return logger
}
