package news

import (
	"html"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// CleanText unescapes HTML entities, normalizes to NFC and collapses whitespace.
func CleanText(s string) string {
	if s == "" {
		return ""
	}
	s = norm.NFC.String(html.UnescapeString(s))
	return strings.Join(strings.Fields(s), " ")
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if n <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
