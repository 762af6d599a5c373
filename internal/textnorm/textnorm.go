// Package textnorm folds Spanish text for keyword matching.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MinKeywordLen is the minimum rune length for a query token to count as a keyword.
const MinKeywordLen = 4

// Fold lower-cases s, removes diacritics (á→a, ñ→n) and collapses any run of
// non-alphanumeric characters to a single space.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	out = strings.ToLower(out)

	var b strings.Builder
	b.Grow(len(out))
	prevSpace := true
	for _, r := range out {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			prevSpace = false
			continue
		}
		if !prevSpace {
			b.WriteByte(' ')
			prevSpace = true
		}
	}
	return strings.TrimSpace(b.String())
}

// Keywords returns the folded tokens of query with at least MinKeywordLen
// runes, deduplicated, in order of first appearance.
func Keywords(query string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, tok := range strings.Fields(Fold(query)) {
		if len([]rune(tok)) < MinKeywordLen || seen[tok] {
			continue
		}
		seen[tok] = true
		out = append(out, tok)
	}
	return out
}

// ContainsAny reports whether the folded text contains any of the keywords.
// Keywords are expected to be folded already.
func ContainsAny(text string, keywords []string) bool {
	folded := Fold(text)
	for _, k := range keywords {
		if k != "" && strings.Contains(folded, k) {
			return true
		}
	}
	return false
}
