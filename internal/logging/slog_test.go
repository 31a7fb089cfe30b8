package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"strings"
	"testing"
)

func TestSetRuntimeLevelFromStringRecognizedValues(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for input, want := range cases {
		SetRuntimeLevelFromString(input)
		if runtimeLevel.Level() != want {
			t.Fatalf("SetRuntimeLevelFromString(%q): level = %v, want %v", input, runtimeLevel.Level(), want)
		}
	}
}

func TestSetRuntimeLevelFromStringUnknownLeavesLevelUnchanged(t *testing.T) {
	SetRuntimeLevel(slog.LevelWarn)
	SetRuntimeLevelFromString("nonsense")
	if runtimeLevel.Level() != slog.LevelWarn {
		t.Fatalf("unknown level string changed the level to %v", runtimeLevel.Level())
	}
}

func TestRuntimeReturnsStoredLogger(t *testing.T) {
	if Runtime() == nil {
		t.Fatal("Runtime() returned nil")
	}
}

func TestConfigureJSONFormatEmitsComponentField(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "stderr")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	defer f.Close()
	orig := os.Stderr
	os.Stderr = f
	Configure("json", "info")
	os.Stderr = orig
	defer Configure("text", "info")

	Runtime().Info("hello")

	data, err := os.ReadFile(f.Name())
	if err != nil {
		t.Fatalf("read temp file: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded["component"] != "metacall" {
		t.Fatalf("expected component=metacall, got %v", decoded["component"])
	}
}

func TestConfigureUnknownFormatDefaultsToText(t *testing.T) {
	Configure("yaml", "info")
	defer Configure("text", "info")

	if Runtime() == nil {
		t.Fatal("Runtime() returned nil after Configure with unknown format")
	}
	if _, ok := Runtime().Handler().(*slog.TextHandler); !ok {
		t.Fatalf("handler = %T, want *slog.TextHandler", Runtime().Handler())
	}
}

func TestWithTraceAddsTraceAndSpanFields(t *testing.T) {
	var buf bytes.Buffer
	runtimeLogger.Store(slog.New(slog.NewTextHandler(&buf, nil)))
	defer Configure("text", "info")

	WithTrace("trace-1", "span-1").Info("event")

	out := buf.String()
	if !strings.Contains(out, "trace_id=trace-1") || !strings.Contains(out, "span_id=span-1") {
		t.Fatalf("expected trace/span fields in output, got: %s", out)
	}
}

func TestWithTraceWithoutTraceIDReturnsBareLogger(t *testing.T) {
	base := Runtime()
	if got := WithTrace("", ""); got != base {
		t.Fatal("expected WithTrace with empty traceID to return the bare runtime logger")
	}
}
