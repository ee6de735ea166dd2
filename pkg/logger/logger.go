package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// HandlerFactory builds a slog.Handler for the resolved level.
type HandlerFactory func(level slog.Level) slog.Handler

func New(level string, handler HandlerFactory) *slog.Logger {
	h := handler(getSlogLevel(level))
	return slog.New(h)
}

// NewTextHandler is the local-development handler.
func NewTextHandler(level slog.Level) slog.Handler {
	return slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
}

// NewTestHandler discards everything.
func NewTestHandler(level slog.Level) slog.Handler {
	return slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: level})
}

// HandlerFor maps a LOGFORMAT value to a factory. Unknown values fall back to
// the Cloud Run JSON handler.
func HandlerFor(format string) HandlerFactory {
	switch strings.ToLower(format) {
	case "text":
		return NewTextHandler
	default:
		return NewCloudRunHandler
	}
}

func getSlogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
