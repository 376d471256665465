package endpoint

import (
	"errors"
	"strings"

	"github.com/gobwas/glob"
)

// Pattern is a compiled key pattern with the glob semantics of the redis
// SCAN MATCH option: '*' matches any sequence (including '/'), '?' matches a
// single character, '[abc]', '[a-z]' and '[^a]' match character classes and
// '\' escapes the next character. Keys have no separators.
type Pattern struct {
	raw    string
	glob   glob.Glob
	prefix string
}

// CompilePattern compiles a key pattern, the empty pattern matches every key.
// Invalid patterns return an error with code RetCInvalidOperation.
func CompilePattern(pattern string) (*Pattern, error) {
	if pattern == "" {
		pattern = "*"
	}
	syntax, err := toGlobSyntax(pattern)
	if err != nil {
		return nil, Errorf(RetCInvalidOperation, "invalid pattern %q: %v", pattern, err)
	}
	g, err := glob.Compile(syntax)
	if err != nil {
		return nil, Errorf(RetCInvalidOperation, "invalid pattern %q: %v", pattern, err)
	}
	return &Pattern{raw: pattern, glob: g, prefix: literalPrefix(pattern)}, nil
}

// Match reports whether key matches the pattern
func (p *Pattern) Match(key string) bool {
	return p.glob.Match(key)
}

// Prefix returns the literal prefix every matching key starts with.
// It can be used to narrow ordered iterations.
func (p *Pattern) Prefix() string {
	return p.prefix
}

func (p *Pattern) String() string {
	return p.raw
}

// toGlobSyntax rewrites the redis syntax into the one of gobwas/glob:
// class negation '^' becomes '!' and braces, which are plain characters in
// redis, are escaped. Unclosed classes and a trailing '\' are rejected.
func toGlobSyntax(pattern string) (string, error) {
	var sb strings.Builder
	sb.Grow(len(pattern) + 4)

	inClass := false
	for i := 0; i < len(pattern); i++ {
		c := pattern[i]
		switch {
		case c == '\\':
			if i+1 == len(pattern) {
				return "", errors.New("trailing escape character")
			}
			sb.WriteByte(c)
			i++
			sb.WriteByte(pattern[i])
		case inClass:
			if c == ']' {
				inClass = false
			}
			sb.WriteByte(c)
		case c == '[':
			inClass = true
			sb.WriteByte(c)
			if i+1 < len(pattern) && pattern[i+1] == '^' {
				sb.WriteByte('!')
				i++
			}
		case c == '{', c == '}':
			sb.WriteByte('\\')
			sb.WriteByte(c)
		default:
			sb.WriteByte(c)
		}
	}
	if inClass {
		return "", errors.New("unclosed character class")
	}
	return sb.String(), nil
}

// literalPrefix returns the part of a pattern before the first meta character
func literalPrefix(pattern string) string {
	if i := strings.IndexAny(pattern, `*?[\`); i >= 0 {
		return pattern[:i]
	}
	return pattern
}
