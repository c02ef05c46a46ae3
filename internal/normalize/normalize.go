// Package normalize canonicalizes user-supplied strings before they are
// stored or used as lookup keys.
package normalize

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Name returns the canonical form of a person or user name: NFC-composed,
// trimmed, with inner whitespace runs collapsed to a single space.
// Case is preserved, so "Frank Herbert" and "frank herbert" stay distinct.
func Name(s string) string {
	s = norm.NFC.String(s)
	return strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
}

// Genres drops empty and duplicate tags, keeping the first-seen order.
// Tags are matched exactly, so they are otherwise stored as given.
func Genres(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, g := range in {
		if g == "" {
			continue
		}
		if _, dup := seen[g]; dup {
			continue
		}
		seen[g] = struct{}{}
		out = append(out, g)
	}
	return out
}
