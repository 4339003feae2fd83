package transcribe

import (
	"fmt"
	"strings"
)

// FormatTimestamped renders spans as one "[MM:SS] text" line each, switching
// to "[HH:MM:SS]" past the first hour. Lines are joined with newlines. This
// format is consumed by downstream clients and must not change.
func FormatTimestamped(spans []Span) string {
	lines := make([]string, 0, len(spans))
	for _, sp := range spans {
		lines = append(lines, timestamp(sp.Start)+" "+sp.Text)
	}
	return strings.Join(lines, "\n")
}

// PlainText joins non-empty span texts with single spaces. Spans whose text
// is empty after trimming stay in the span list but are skipped here.
func PlainText(spans []Span) string {
	parts := make([]string, 0, len(spans))
	for _, sp := range spans {
		if strings.TrimSpace(sp.Text) != "" {
			parts = append(parts, sp.Text)
		}
	}
	return strings.Join(parts, " ")
}

func timestamp(start float64) string {
	total := int(start) // truncate, not round
	h := total / 3600
	m := total % 3600 / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("[%02d:%02d:%02d]", h, m, s)
	}
	return fmt.Sprintf("[%02d:%02d]", m, s)
}
