package logging

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewLogger(t *testing.T) {
	t.Run("creates log file in directory", func(t *testing.T) {
		dir := t.TempDir()
		logger, err := NewLogger(dir, LevelInfo, DefaultRotationConfig())
		if err != nil {
			t.Fatalf("NewLogger failed: %v", err)
		}
		defer logger.Close()

		logger.Info("test message")

		if _, err := os.Stat(filepath.Join(dir, "tetra.log")); err != nil {
			t.Errorf("expected log file to exist: %v", err)
		}
	})

	t.Run("creates missing directory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "logs")
		logger, err := NewLogger(dir, LevelInfo, DefaultRotationConfig())
		if err != nil {
			t.Fatalf("NewLogger failed: %v", err)
		}
		defer logger.Close()

		if _, err := os.Stat(dir); err != nil {
			t.Errorf("expected directory to exist: %v", err)
		}
	})

	t.Run("empty directory writes to stderr", func(t *testing.T) {
		logger, err := NewLogger("", LevelInfo, DefaultRotationConfig())
		if err != nil {
			t.Fatalf("NewLogger failed: %v", err)
		}
		if err := logger.Close(); err != nil {
			t.Errorf("Close should be a no-op without a file: %v", err)
		}
	})
}

func TestLoggerLevels(t *testing.T) {
	tests := []struct {
		level    string
		expected []string
		filtered []string
	}{
		{LevelDebug, []string{"debug msg", "info msg", "warn msg", "error msg"}, nil},
		{LevelInfo, []string{"info msg", "warn msg", "error msg"}, []string{"debug msg"}},
		{LevelWarn, []string{"warn msg", "error msg"}, []string{"debug msg", "info msg"}},
		{LevelError, []string{"error msg"}, []string{"debug msg", "info msg", "warn msg"}},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			dir := t.TempDir()
			logger, err := NewLogger(dir, tt.level, DefaultRotationConfig())
			if err != nil {
				t.Fatalf("NewLogger failed: %v", err)
			}

			logger.Debug("debug msg")
			logger.Info("info msg")
			logger.Warn("warn msg")
			logger.Error("error msg")
			logger.Close()

			content := readLogFile(t, dir)
			for _, want := range tt.expected {
				if !strings.Contains(content, want) {
					t.Errorf("expected log to contain %q", want)
				}
			}
			for _, unwanted := range tt.filtered {
				if strings.Contains(content, unwanted) {
					t.Errorf("expected log to filter out %q", unwanted)
				}
			}
		})
	}
}

func TestLoggerAttributeChaining(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewLogger(dir, LevelDebug, DefaultRotationConfig())
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	child := logger.WithSession("sess-1").WithParticipant("claude").WithRound(3)
	child.Info("turn completed", "tokens", 42)
	logger.Close()

	entry := firstLogEntry(t, dir)

	if entry["session_id"] != "sess-1" {
		t.Errorf("session_id = %v, want sess-1", entry["session_id"])
	}
	if entry["participant_id"] != "claude" {
		t.Errorf("participant_id = %v, want claude", entry["participant_id"])
	}
	if entry["round"] != float64(3) {
		t.Errorf("round = %v, want 3", entry["round"])
	}
	if entry["tokens"] != float64(42) {
		t.Errorf("tokens = %v, want 42", entry["tokens"])
	}
}

func TestLoggerChildIsolation(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewLogger(dir, LevelDebug, DefaultRotationConfig())
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}

	_ = logger.WithSession("sess-1")
	logger.Info("parent message")
	logger.Close()

	entry := firstLogEntry(t, dir)
	if _, ok := entry["session_id"]; ok {
		t.Error("parent logger should not carry child attributes")
	}
}

func TestLoggerWith(t *testing.T) {
	t.Run("adds pairs", func(t *testing.T) {
		dir := t.TempDir()
		logger, err := NewLogger(dir, LevelDebug, DefaultRotationConfig())
		if err != nil {
			t.Fatalf("NewLogger failed: %v", err)
		}

		logger.With("model", "claude-opus", "attempt", 2).Info("retrying")
		logger.Close()

		entry := firstLogEntry(t, dir)
		if entry["model"] != "claude-opus" {
			t.Errorf("model = %v, want claude-opus", entry["model"])
		}
		if entry["attempt"] != float64(2) {
			t.Errorf("attempt = %v, want 2", entry["attempt"])
		}
	})

	t.Run("no args returns same logger", func(t *testing.T) {
		logger := NopLogger()
		if logger.With() != logger {
			t.Error("With() without args should return the receiver")
		}
	})
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"Warn", LevelWarn},
		{"error", LevelError},
		{"bogus", LevelInfo},
		{"", LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.expected {
			t.Errorf("ParseLevel(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestNopLogger(t *testing.T) {
	logger := NopLogger()
	logger.Info("discarded")
	logger.WithSession("s").WithRound(1).Error("also discarded")
	if err := logger.Close(); err != nil {
		t.Errorf("Close on NopLogger: %v", err)
	}
}

// readLogFile returns the full contents of the log file in dir.
func readLogFile(t *testing.T, dir string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, "tetra.log"))
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	return string(data)
}

// firstLogEntry parses the first JSON line of the log file in dir.
func firstLogEntry(t *testing.T, dir string) map[string]any {
	t.Helper()
	f, err := os.Open(filepath.Join(dir, "tetra.log"))
	if err != nil {
		t.Fatalf("failed to open log file: %v", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		t.Fatal("log file is empty")
	}

	var entry map[string]any
	if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log entry: %v", err)
	}
	return entry
}
