// Package similarity scores how alike two normalized names are on a 0..100 scale.
//
// Clustering depends only on the Scorer capability so metrics can be swapped
// without touching the clustering code. Ratio is the reference metric.
package similarity

import (
	"fmt"
	"sort"
)

// Scorer returns a similarity in [0, 100] where 100 means identical.
type Scorer interface {
	Score(a, b string) float64
}

// Compiler is implemented by scorers that can preprocess one side of a
// comparison. The returned Pattern may report 0 for any candidate whose score
// is provably below cutoff.
type Compiler interface {
	Compile(key string, cutoff float64) Pattern
}

// Pattern scores candidates against a precompiled key.
type Pattern interface {
	Score(candidate string) float64
}

// ScorerFunc adapts a plain function to Scorer.
type ScorerFunc func(a, b string) float64

func (f ScorerFunc) Score(a, b string) float64 {
	return f(a, b)
}

// Metric names accepted by ByName.
const (
	MetricRatio       = "ratio"
	MetricLevenshtein = "levenshtein"
	MetricJaroWinkler = "jaro-winkler"
)

var metrics = map[string]func() Scorer{
	MetricRatio:       func() Scorer { return Ratio{} },
	MetricLevenshtein: func() Scorer { return Levenshtein{} },
	MetricJaroWinkler: func() Scorer { return JaroWinkler{} },
}

// ByName returns the scorer registered under name.
func ByName(name string) (Scorer, error) {
	build, ok := metrics[name]
	if !ok {
		return nil, fmt.Errorf("unknown similarity metric %q (known: %v)", name, Names())
	}
	return build(), nil
}

// Names lists the registered metric names in sorted order.
func Names() []string {
	names := make([]string, 0, len(metrics))
	for name := range metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
