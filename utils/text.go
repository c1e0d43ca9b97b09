package utils

import "strings"

// Snippet returns a prefix of s at most maxRunes runes long, with an ellipsis
// appended when s was truncated. Rune-safe so multi-byte text is never cut
// mid-character.
func Snippet(s string, maxRunes int) string {
	s = strings.TrimSpace(s)
	if maxRunes <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	return strings.TrimSpace(string(runes[:maxRunes])) + "..."
}
