package logging

import (
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

var (
	runtimeLogger atomic.Pointer[slog.Logger]
	runtimeLevel  = new(slog.LevelVar)
)

func init() {
	runtimeLevel.Set(slog.LevelInfo)
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: runtimeLevel,
	})
	logger := slog.New(handler).With("component", "metacall")
	runtimeLogger.Store(logger)
}

// Runtime returns the logger for daemon/loader/adapter lifecycle events.
// It is distinct from Default(), which logs individual dispatches.
func Runtime() *slog.Logger {
	return runtimeLogger.Load()
}

// SetRuntimeLevel changes the minimum level Runtime() emits at.
func SetRuntimeLevel(level slog.Level) {
	runtimeLevel.Set(level)
}

// SetRuntimeLevelFromString sets the runtime level from a config string:
// "debug", "info", "warn" or "error" (case-insensitive). Unrecognized
// values leave the current level untouched.
func SetRuntimeLevelFromString(level string) {
	switch strings.ToLower(level) {
	case "debug":
		runtimeLevel.Set(slog.LevelDebug)
	case "info":
		runtimeLevel.Set(slog.LevelInfo)
	case "warn", "warning":
		runtimeLevel.Set(slog.LevelWarn)
	case "error":
		runtimeLevel.Set(slog.LevelError)
	}
}
