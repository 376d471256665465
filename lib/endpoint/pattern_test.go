package endpoint

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPatternMatch(t *testing.T) {
	tests := []struct {
		pattern string
		key     string
		want    bool
	}{
		{"*", "plain", true},
		{"*", "user/1", true},
		{"*", "a/b/c", true},
		{"", "a/b/c", true},
		{"user:*", "user:1/x", true},
		{"user:*", "other", false},
		{"h?llo", "hello", true},
		{"h?llo", "h/llo", true},
		{"h?llo", "heello", false},
		{"h[ae]llo", "hallo", true},
		{"h[ae]llo", "hillo", false},
		{"h[^e]llo", "hallo", true},
		{"h[^e]llo", "hello", false},
		{"h[a-b]llo", "hbllo", true},
		{`h\*llo`, "h*llo", true},
		{`h\*llo`, "hello", false},
		{"{a,b}", "{a,b}", true},
		{"{a,b}", "a", false},
	}

	for _, tt := range tests {
		p, err := CompilePattern(tt.pattern)
		require.NoError(t, err, tt.pattern)
		assert.Equal(t, tt.want, p.Match(tt.key), "%q ~ %q", tt.pattern, tt.key)
	}
}

func TestPatternPrefix(t *testing.T) {
	tests := map[string]string{
		"user:*": "user:",
		"*":      "",
		"abc":    "abc",
		"a[bc]":  "a",
		`a\*b`:   "a",
	}
	for pattern, want := range tests {
		p, err := CompilePattern(pattern)
		require.NoError(t, err)
		assert.Equal(t, want, p.Prefix(), pattern)
	}
}

func TestPatternInvalid(t *testing.T) {
	for _, pattern := range []string{"user:[", "user:[ab", `user:\`} {
		_, err := CompilePattern(pattern)
		require.Error(t, err, pattern)
		assert.ErrorIs(t, err, ErrInvalidOperation)
	}
}
