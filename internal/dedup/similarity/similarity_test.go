package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestByName(t *testing.T) {
	for _, name := range []string{MetricRatio, MetricLevenshtein, MetricJaroWinkler} {
		t.Run(name, func(t *testing.T) {
			scorer, err := ByName(name)
			require.NoError(t, err)
			assert.Equal(t, 100.0, scorer.Score("cafe rio", "cafe rio"))
		})
	}

	_, err := ByName("soundex")
	assert.ErrorContains(t, err, `unknown similarity metric "soundex"`)
}

func TestNames(t *testing.T) {
	assert.Equal(t, []string{"jaro-winkler", "levenshtein", "ratio"}, Names())
}

func TestOnlyRatioCompiles(t *testing.T) {
	_, ok := Scorer(Ratio{}).(Compiler)
	assert.True(t, ok)
	_, ok = Scorer(Levenshtein{}).(Compiler)
	assert.False(t, ok)
}

func TestLevenshtein(t *testing.T) {
	assert.InDelta(t, (1-3.0/7)*100, Levenshtein{}.Score("kitten", "sitting"), 1e-9)
	assert.Equal(t, 100.0, Levenshtein{}.Score("", ""))
	assert.Equal(t, 0.0, Levenshtein{}.Score("abc", ""))
}

func TestJaroWinkler(t *testing.T) {
	assert.InDelta(t, 96.11, JaroWinkler{}.Score("martha", "marhta"), 0.01)
	assert.Equal(t, 100.0, JaroWinkler{}.Score("", ""))
	assert.Less(t, JaroWinkler{}.Score("cafe rio", "burger hut"), 85.0)
}

func TestScorerFunc(t *testing.T) {
	exact := ScorerFunc(func(a, b string) float64 {
		if a == b {
			return 100
		}
		return 0
	})
	assert.Equal(t, 100.0, exact.Score("x", "x"))
	assert.Equal(t, 0.0, exact.Score("x", "y"))
}
