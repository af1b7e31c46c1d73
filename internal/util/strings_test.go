package util

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
)

func TestTruncateString(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		maxLen int
		want   string
	}{
		{"short string unchanged", "hello", 10, "hello"},
		{"exact length unchanged", "hello", 5, "hello"},
		{"long string clipped", "hello world", 8, "hello..."},
		{"maxLen at ellipsis width", "hello", 3, "..."},
		{"maxLen below ellipsis width", "hello", 1, "..."},
		{"zero maxLen", "hello", 0, "..."},
		{"empty input", "", 10, ""},
		{"multibyte runes counted as one", "日本語のテキスト", 6, "日本語..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TruncateString(tt.input, tt.maxLen); got != tt.want {
				t.Errorf("TruncateString(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.want)
			}
		})
	}
}

func TestTruncateANSI(t *testing.T) {
	styled := lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Render("hello world")

	tests := []struct {
		name     string
		input    string
		maxWidth int
		want     string
	}{
		{"plain short string unchanged", "hello", 10, "hello"},
		{"plain long string clipped", "hello world", 8, "hello..."},
		{"width at ellipsis", "hello", 3, "..."},
		{"empty input", "", 5, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TruncateANSI(tt.input, tt.maxWidth); got != tt.want {
				t.Errorf("TruncateANSI(%q, %d) = %q, want %q", tt.input, tt.maxWidth, got, tt.want)
			}
		})
	}

	t.Run("styled string keeps escapes within width", func(t *testing.T) {
		got := TruncateANSI(styled, 8)
		if w := lipgloss.Width(got); w > 8 {
			t.Errorf("width = %d, want <= 8", w)
		}
		if !strings.Contains(got, "hello") {
			t.Errorf("clipped output %q lost its visible text", got)
		}
	})

	t.Run("styled string within width unchanged", func(t *testing.T) {
		if got := TruncateANSI(styled, 20); got != styled {
			t.Errorf("TruncateANSI altered a string already within width")
		}
	})
}
