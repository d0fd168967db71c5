// Package normalize turns raw outlet names into comparison keys.
//
// A key is the lower-cased, whitespace-trimmed name. Group representatives and
// canonical lookups additionally cut the key to a fixed number of runes, which
// mirrors the length of the canonical name column. Both sides of the lookup must
// use the same Normalizer so that truncation agrees.
package normalize

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultMaxLength is the rune length of the canonical name column.
const DefaultMaxLength = 145

// Normalizer folds and truncates names. The zero value is not usable; call New.
type Normalizer struct {
	maxLength int
}

// New returns a Normalizer that truncates to maxLength runes.
// A non-positive maxLength falls back to DefaultMaxLength.
func New(maxLength int) *Normalizer {
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}
	return &Normalizer{maxLength: maxLength}
}

// MaxLength returns the truncation length in runes.
func (n *Normalizer) MaxLength() int {
	return n.maxLength
}

// Normalize lower-cases raw without regard to locale and strips leading and
// trailing whitespace. It never fails.
func (n *Normalizer) Normalize(raw string) string {
	// cases.Caser keeps state between calls, so each call gets its own.
	folded := cases.Lower(language.Und).String(raw)
	return strings.TrimSpace(folded)
}

// Truncate cuts key to the first MaxLength runes.
func (n *Normalizer) Truncate(key string) string {
	if utf8.RuneCountInString(key) <= n.maxLength {
		return key
	}
	count := 0
	for i := range key {
		if count == n.maxLength {
			return key[:i]
		}
		count++
	}
	return key
}

// Key is Truncate(Normalize(raw)), the form persisted in the canonical table.
func (n *Normalizer) Key(raw string) string {
	return n.Truncate(n.Normalize(raw))
}
