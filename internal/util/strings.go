// Package util holds small string helpers shared by the CLI rendering
// code.
package util

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

const ellipsis = "..."

// TruncateString clips s to maxLen runes, appending "..." when it was
// clipped. It counts runes, not columns; use TruncateANSI for styled
// terminal output.
func TruncateString(s string, maxLen int) string {
	if maxLen <= len(ellipsis) {
		return ellipsis
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-len(ellipsis)]) + ellipsis
}

// TruncateANSI clips s to maxWidth visual columns, appending "..." when
// it was clipped. Escape sequences and wide characters are measured
// correctly, so styled speaker labels survive truncation intact.
func TruncateANSI(s string, maxWidth int) string {
	if maxWidth <= len(ellipsis) {
		return ellipsis
	}
	if lipgloss.Width(s) <= maxWidth {
		return s
	}
	// ansi.Truncate counts the tail toward the final width.
	return ansi.Truncate(s, maxWidth, ellipsis)
}
