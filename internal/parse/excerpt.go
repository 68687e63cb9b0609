package parse

import "strings"

// BuildTextExcerpt whitespace-normalizes the text and bounds it to limit
// characters. Truncated excerpts end in "..." and the returned string's
// total length equals the limit exactly. Returns nil for empty text.
func BuildTextExcerpt(text string, limit int) *string {
	s := NormalizeWhitespace(text)
	if s == "" {
		return nil
	}
	if limit > 0 && len(s) > limit {
		if limit <= 3 {
			s = s[:limit]
		} else {
			s = s[:limit-3] + "..."
		}
	}
	return &s
}

// NormalizeWhitespace collapses all runs of whitespace to single spaces and
// trims the ends.
func NormalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
