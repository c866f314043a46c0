// Package normalize folds free-text names (organisations, sectors, admin
// units) into a canonical form used for lookups and fuzzy comparison.
//
// Folding is lossy and deterministic:
//   - combining marks are stripped (é -> e)
//   - remaining non-ASCII letters are transliterated (ß -> ss)
//   - everything is lowercased
//   - apostrophes are dropped so "Children's" and "Childrens" agree
//   - any other run of non-alphanumeric characters becomes one space
//   - leading and trailing space is trimmed
package normalize

import (
	"strings"
	"unicode"

	"github.com/mozillazg/go-unidecode"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Name returns the canonical comparison form of s.
func Name(s string) string {
	if s == "" {
		return ""
	}
	if folded, _, err := transform.String(stripMarks, s); err == nil {
		s = folded
	}
	s = strings.ToLower(unidecode.Unidecode(s))

	var b strings.Builder
	b.Grow(len(s))
	gap := false
	for _, r := range s {
		switch {
		case r == '\'' || r == '`':
			continue
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			if gap && b.Len() > 0 {
				b.WriteByte(' ')
			}
			gap = false
			b.WriteRune(r)
		default:
			gap = true
		}
	}
	return b.String()
}
