package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

// CallLog represents a single metacall/metacall_await dispatch.
type CallLog struct {
	Timestamp  time.Time `json:"timestamp"`
	TraceID    string    `json:"trace_id,omitempty"`
	SpanID     string    `json:"span_id,omitempty"`
	Tag        string    `json:"tag"`
	Function   string    `json:"function"`
	DurationMs int64     `json:"duration_ms"`
	Async      bool      `json:"async"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
	FromCache  bool      `json:"from_cache,omitempty"`
}

// Logger handles per-call logging, separate from the operational logger
// returned by Runtime().
type Logger struct {
	mu      sync.Mutex
	enabled bool
	file    *os.File
	console bool
}

var defaultLogger = &Logger{enabled: true, console: true}

// Default returns the default call logger.
func Default() *Logger {
	return defaultLogger
}

// SetOutput sets the log output file.
func (l *Logger) SetOutput(path string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		l.file.Close()
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	l.file = f
	return nil
}

// SetConsole enables/disables console output.
func (l *Logger) SetConsole(enabled bool) {
	l.mu.Lock()
	l.console = enabled
	l.mu.Unlock()
}

// Log writes a call log entry.
func (l *Logger) Log(entry *CallLog) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.enabled {
		return
	}

	entry.Timestamp = time.Now()

	if l.console {
		status := "✓"
		if !entry.Success {
			status = "✗"
		}
		cache := ""
		if entry.FromCache {
			cache = " [cached]"
		}
		fmt.Printf("[call] %s %s/%s %dms%s\n",
			status, entry.Tag, entry.Function, entry.DurationMs, cache)
		if entry.Error != "" {
			fmt.Printf("[call]   error: %s\n", entry.Error)
		}
	}

	if l.file != nil {
		data, _ := json.Marshal(entry)
		l.file.Write(append(data, '\n'))
	}
}

// Close closes the log file.
func (l *Logger) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
}
