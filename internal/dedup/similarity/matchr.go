package similarity

import (
	"unicode/utf8"

	"github.com/antzucaro/matchr"
)

// Levenshtein scores 100 * (1 - distance / max(len(a), len(b))).
type Levenshtein struct{}

func (Levenshtein) Score(a, b string) float64 {
	if a == b {
		return 100
	}
	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	distance := matchr.Levenshtein(a, b)
	return (1 - float64(distance)/float64(longest)) * 100
}

// JaroWinkler scales the Jaro-Winkler similarity to 0..100.
type JaroWinkler struct{}

func (JaroWinkler) Score(a, b string) float64 {
	if a == b {
		return 100
	}
	return matchr.JaroWinkler(a, b, false) * 100
}
