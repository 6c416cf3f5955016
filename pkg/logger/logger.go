// Package logger provides the process-wide structured logger.
// It wraps log/slog so every component logs through the same handler,
// configured once at startup from application settings.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var (
	global *slog.Logger
	mu     sync.RWMutex
)

// Init configures the global logger. Call once during startup, before any
// component starts producing events. The writer is usually os.Stdout; tests
// pass io.Discard.
func Init(level, format string, w io.Writer) {
	if w == nil {
		w = os.Stdout
	}

	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}

	mu.Lock()
	global = slog.New(handler)
	mu.Unlock()

	slog.SetDefault(L())
}

// L returns the global logger. Components derive scoped loggers from it
// with L().With("component", ...).
func L() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()

	if global == nil {
		return slog.Default()
	}
	return global
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
