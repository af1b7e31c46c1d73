// Package logging wraps log/slog with JSON output, file rotation, and
// persistent attribute chaining so engine components can tag every line
// with the session, participant, and round they are working on.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Recognized log levels, in increasing severity.
const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

var slogLevels = map[string]slog.Level{
	LevelDebug: slog.LevelDebug,
	LevelInfo:  slog.LevelInfo,
	LevelWarn:  slog.LevelWarn,
	LevelError: slog.LevelError,
}

// ParseLevel normalizes a level string to one of the Level constants,
// defaulting to INFO.
func ParseLevel(level string) string {
	up := strings.ToUpper(level)
	if _, ok := slogLevels[up]; ok {
		return up
	}
	return LevelInfo
}

// ValidLevels lists the accepted log level strings.
func ValidLevels() []string {
	return []string{LevelDebug, LevelInfo, LevelWarn, LevelError}
}

// Logger emits JSON log records carrying a chain of persistent
// attributes. Derived loggers share the underlying writer; the chain
// itself is immutable, so Logger values are safe for concurrent use.
type Logger struct {
	sl    *slog.Logger
	out   *RotatingWriter
	chain []slog.Attr

	mu sync.Mutex // serializes Close against the writer
}

// NewLogger writes JSON records to {dir}/tetra.log, rotated per the
// given RotationConfig. Records below the given level are dropped.
// An empty dir sends output to stderr with rotation disabled.
func NewLogger(dir, level string, rotation RotationConfig) (*Logger, error) {
	var sink io.Writer = os.Stderr
	var out *RotatingWriter
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		var err error
		out, err = NewRotatingWriter(filepath.Join(dir, "tetra.log"), rotation)
		if err != nil {
			return nil, err
		}
		sink = out
	}

	handler := slog.NewJSONHandler(sink, &slog.HandlerOptions{
		Level: slogLevels[ParseLevel(level)],
	})
	return &Logger{sl: slog.New(handler), out: out}, nil
}

// NopLogger discards everything. Used in tests and when logging is
// disabled in config.
func NopLogger() *Logger {
	return &Logger{sl: slog.New(slog.NewJSONHandler(io.Discard, nil))}
}

// derive returns a child logger whose chain is the parent's plus attrs.
func (l *Logger) derive(attrs ...slog.Attr) *Logger {
	chain := make([]slog.Attr, 0, len(l.chain)+len(attrs))
	chain = append(chain, l.chain...)
	chain = append(chain, attrs...)
	return &Logger{sl: l.sl, out: l.out, chain: chain}
}

// WithSession tags all records with the session ID.
func (l *Logger) WithSession(sessionID string) *Logger {
	return l.derive(slog.String("session_id", sessionID))
}

// WithParticipant tags all records with the participant ID.
func (l *Logger) WithParticipant(participantID string) *Logger {
	return l.derive(slog.String("participant_id", participantID))
}

// WithRound tags all records with the round number.
func (l *Logger) WithRound(round int) *Logger {
	return l.derive(slog.Int("round", round))
}

// WithModel tags all records with the backend model ID.
func (l *Logger) WithModel(model string) *Logger {
	return l.derive(slog.String("model", model))
}

// With tags all records with alternating key-value pairs. Keys that
// are not strings are skipped along with their values.
func (l *Logger) With(args ...any) *Logger {
	attrs := make([]slog.Attr, 0, len(args)/2)
	for i := 0; i+1 < len(args); i += 2 {
		if key, ok := args[i].(string); ok {
			attrs = append(attrs, slog.Any(key, args[i+1]))
		}
	}
	if len(attrs) == 0 {
		return l
	}
	return l.derive(attrs...)
}

func (l *Logger) Debug(msg string, args ...any) { l.log(slog.LevelDebug, msg, args...) }
func (l *Logger) Info(msg string, args ...any)  { l.log(slog.LevelInfo, msg, args...) }
func (l *Logger) Warn(msg string, args ...any)  { l.log(slog.LevelWarn, msg, args...) }
func (l *Logger) Error(msg string, args ...any) { l.log(slog.LevelError, msg, args...) }

func (l *Logger) log(level slog.Level, msg string, args ...any) {
	merged := make([]any, 0, len(l.chain)*2+len(args))
	for _, attr := range l.chain {
		merged = append(merged, attr.Key, attr.Value.Any())
	}
	merged = append(merged, args...)
	l.sl.Log(context.Background(), level, msg, merged...)
}

// Close flushes and closes the log file. No-op for stderr and nop
// loggers, and on repeated calls.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.out == nil {
		return nil
	}
	err := l.out.Close()
	l.out = nil
	if err != nil {
		return fmt.Errorf("close log writer: %w", err)
	}
	return nil
}
