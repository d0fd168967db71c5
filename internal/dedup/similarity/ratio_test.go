package similarity

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

func TestRatioKnownValues(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{name: "one appended char", a: "this is a test", b: "this is a test!", want: 96.55172413793103},
		{name: "double space", a: "cafe rio", b: "cafe  rio", want: 94.11764705882352},
		{name: "trailing punctuation", a: "cafe rio", b: "cafe rio!!", want: 88.88888888888889},
		{name: "identical", a: "burger hut", b: "burger hut", want: 100},
		{name: "both empty", a: "", b: "", want: 100},
		{name: "one empty", a: "abc", b: "", want: 0},
		{name: "disjoint", a: "abc", b: "xyz", want: 0},
		{name: "cyrillic counts runes", a: "кафе", b: "кафе!", want: 88.88888888888889},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Ratio{}.Score(tt.a, tt.b), 1e-9)
			assert.InDelta(t, tt.want, Ratio{}.Score(tt.b, tt.a), 1e-9, "symmetric")
		})
	}
}

func TestRatioLongStringsSpanBlocks(t *testing.T) {
	a := strings.Repeat("abcdefghij", 20)
	b := a[:150] + "X" + a[150:]

	// 200 + 201 runes sharing all 200 of a.
	assert.InDelta(t, (1-1.0/401)*100, Ratio{}.Score(a, b), 1e-9)
}

func TestCompiledPatternCutoff(t *testing.T) {
	p := Ratio{}.Compile("cafe rio", 90)

	assert.InDelta(t, 94.11764705882352, p.Score("cafe  rio"), 1e-9, "above cutoff keeps the exact score")
	assert.Zero(t, p.Score("cafe rio!!"), "88.9 is below the cutoff")
	assert.Zero(t, p.Score("c"), "length bound alone rules this out")
	assert.Equal(t, 100.0, p.Score("cafe rio"))
}

func lcsNaive(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			switch {
			case ra[i-1] == rb[j-1]:
				cur[j] = prev[j-1] + 1
			case prev[j] >= cur[j-1]:
				cur[j] = prev[j]
			default:
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}

func ratioNaive(a, b string) float64 {
	lensum := len([]rune(a)) + len([]rune(b))
	if lensum == 0 {
		return 100
	}
	return indelRatio(lensum, lcsNaive(a, b))
}

func genText() gopter.Gen {
	char := gen.OneGenOf(
		gen.RuneRange('a', 'd'),
		gen.RuneRange(' ', ' '),
		gen.RuneRange('ж', 'й'),
	)
	return gen.SliceOf(char).Map(func(rs []rune) string {
		return string(rs)
	})
}

func TestRatioProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300
	parameters.MaxSize = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("bit-parallel score equals the dynamic-programming score", prop.ForAll(
		func(a, b string) bool {
			return Ratio{}.Score(a, b) == ratioNaive(a, b)
		},
		genText(), genText(),
	))

	properties.Property("score is symmetric and bounded", prop.ForAll(
		func(a, b string) bool {
			s := Ratio{}.Score(a, b)
			return s == Ratio{}.Score(b, a) && s >= 0 && s <= 100
		},
		genText(), genText(),
	))

	properties.Property("compiled pattern agrees with Score at and above the cutoff", prop.ForAll(
		func(a, b string) bool {
			exact := Ratio{}.Score(a, b)
			got := Ratio{}.Compile(a, 85).Score(b)
			if exact >= 85 {
				return got == exact
			}
			return got == 0
		},
		genText(), genText(),
	))

	properties.TestingRun(t)
}

func BenchmarkCompiledRatio(b *testing.B) {
	key := "торговая точка продукты на углу 24 часа"
	candidates := []string{
		"торговая точка продукты на углу",
		"магазин у дома",
		"продукты 24 часа на углу улицы",
	}
	b.ReportAllocs()
	for b.Loop() {
		p := Ratio{}.Compile(key, 85)
		for _, c := range candidates {
			_ = p.Score(c)
		}
	}
}
