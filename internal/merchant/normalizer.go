// Package merchant turns noisy merchant strings into comparable keys.
package merchant

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// Alias rewrites a family of merchant spellings to one canonical form.
type Alias struct {
	Pattern     string
	Replacement string
	// Collapse replaces the whole string when true; otherwise only the matched prefix is rewritten.
	Collapse bool
}

type compiledAlias struct {
	re          *regexp.Regexp
	replacement string
	collapse    bool
}

// DefaultAliases returns the built-in alias table. Patterns run against the
// uppercased, punctuation-free string in order; the first match wins.
func DefaultAliases() []Alias {
	return []Alias{
		{Pattern: `^AMZN\b`, Replacement: "AMAZON", Collapse: true},
		{Pattern: `^AMAZON\s+EU\b`, Replacement: "AMAZON", Collapse: true},
		{Pattern: `^AMAZON`, Replacement: "AMAZON", Collapse: true},
		{Pattern: `^EASY\s*PARK`, Replacement: "EASYPARK"},
		{Pattern: `^NETFLIX`, Replacement: "NETFLIX", Collapse: true},
		{Pattern: `^SPOTIFY`, Replacement: "SPOTIFY", Collapse: true},
	}
}

// Normalizer canonicalizes merchant strings using an ordered alias table.
type Normalizer struct {
	aliases []compiledAlias
}

// NewNormalizer compiles the given alias table.
func NewNormalizer(aliases []Alias) (*Normalizer, error) {
	n := &Normalizer{aliases: make([]compiledAlias, 0, len(aliases))}
	for _, a := range aliases {
		re, err := regexp.Compile(a.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid alias pattern %q: %w", a.Pattern, err)
		}
		n.aliases = append(n.aliases, compiledAlias{
			re:          re,
			replacement: a.Replacement,
			collapse:    a.Collapse,
		})
	}
	return n, nil
}

// MustNewNormalizer is like NewNormalizer but panics on an invalid pattern.
func MustNewNormalizer(aliases []Alias) *Normalizer {
	n, err := NewNormalizer(aliases)
	if err != nil {
		panic(err)
	}
	return n
}

var defaultNormalizer = MustNewNormalizer(DefaultAliases())

// Default returns the normalizer built from DefaultAliases.
func Default() *Normalizer {
	return defaultNormalizer
}

// Normalize uppercases raw, strips punctuation, collapses whitespace and applies the alias table.
func (n *Normalizer) Normalize(raw string) string {
	s := clean(raw)
	if s == "" {
		return ""
	}

	for _, a := range n.aliases {
		loc := a.re.FindStringIndex(s)
		if loc == nil {
			continue
		}
		if a.collapse {
			return a.replacement
		}
		return strings.Join(strings.Fields(s[:loc[0]]+a.replacement+s[loc[1]:]), " ")
	}

	return s
}

// Tokenize splits the normalized form of raw on whitespace.
func (n *Normalizer) Tokenize(raw string) []string {
	return strings.Fields(n.Normalize(raw))
}

// Stem returns the first normalized token when it is at least two characters long.
func (n *Normalizer) Stem(raw string) string {
	tokens := n.Tokenize(raw)
	if len(tokens) == 0 {
		return ""
	}
	if len([]rune(tokens[0])) < 2 {
		return ""
	}
	return tokens[0]
}

// Normalize applies the default normalizer.
func Normalize(raw string) string {
	return defaultNormalizer.Normalize(raw)
}

// Tokenize applies the default normalizer.
func Tokenize(raw string) []string {
	return defaultNormalizer.Tokenize(raw)
}

// Stem applies the default normalizer.
func Stem(raw string) string {
	return defaultNormalizer.Stem(raw)
}

// clean uppercases, drops everything that is not a letter, digit, underscore or
// whitespace, and collapses runs of whitespace into single spaces.
func clean(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range strings.ToUpper(raw) {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '_':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
