package logging

import (
	"log/slog"
	"os"
)

// Configure rebuilds the runtime logger from config.LoggingConfig fields.
// format is "text" (default) or "json"; level is one of
// SetRuntimeLevelFromString's accepted values.
func Configure(format, level string) {
	SetRuntimeLevelFromString(level)

	opts := &slog.HandlerOptions{
		Level: runtimeLevel,
	}

	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	default:
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	runtimeLogger.Store(slog.New(handler).With("component", "metacall"))
}

// WithTrace returns the runtime logger annotated with trace/span IDs, for
// call sites inside a traced request. Returns the bare runtime logger when
// traceID is empty.
func WithTrace(traceID, spanID string) *slog.Logger {
	l := runtimeLogger.Load()
	if traceID == "" {
		return l
	}
	args := []any{"trace_id", traceID}
	if spanID != "" {
		args = append(args, "span_id", spanID)
	}
	return l.With(args...)
}
