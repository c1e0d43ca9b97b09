package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSnippet(t *testing.T) {
	assert.Equal(t, "short", Snippet("short", 100))
	assert.Equal(t, "trimmed", Snippet("  trimmed  ", 100))
	assert.Equal(t, "", Snippet("anything", 0))

	long := strings.Repeat("word ", 100)
	got := Snippet(long, 20)
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.LessOrEqual(t, len([]rune(got)), 20+len("..."))
}

func TestSnippetMultibyte(t *testing.T) {
	s := strings.Repeat("héllo wörld ", 30)
	got := Snippet(s, 25)
	assert.True(t, strings.HasSuffix(got, "..."))
	// Truncation must never split a multi-byte rune.
	for _, r := range got {
		assert.NotEqual(t, '�', r)
	}
}
