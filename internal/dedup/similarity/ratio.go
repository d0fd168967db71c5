package similarity

import (
	"math/bits"
	"unicode/utf8"
)

// Ratio is the Indel-normalized similarity:
//
//	100 * (1 - (len(a) + len(b) - 2*LCS(a, b)) / (len(a) + len(b)))
//
// with lengths counted in runes and 100 for two empty strings. Values match
// rapidfuzz fuzz.ratio with no preprocessing.
type Ratio struct{}

func (Ratio) Score(a, b string) float64 {
	return newRatioPattern(a, 0).Score(b)
}

// Compile precomputes the match vectors of key. Candidates whose length alone
// bounds the score below cutoff score 0 without running the LCS.
func (Ratio) Compile(key string, cutoff float64) Pattern {
	return newRatioPattern(key, cutoff)
}

type ratioPattern struct {
	length int
	blocks int
	cutoff float64
	ascii  []uint64 // 128*blocks, rune-major
	other  map[rune][]uint64
	row    []uint64
}

func newRatioPattern(key string, cutoff float64) *ratioPattern {
	length := utf8.RuneCountInString(key)
	blocks := (length + 63) / 64
	p := &ratioPattern{
		length: length,
		blocks: blocks,
		cutoff: cutoff,
		ascii:  make([]uint64, 128*blocks),
		row:    make([]uint64, blocks),
	}
	pos := 0
	for _, r := range key {
		word, bit := pos/64, uint(pos%64)
		if r < utf8.RuneSelf {
			p.ascii[int(r)*blocks+word] |= 1 << bit
		} else {
			if p.other == nil {
				p.other = make(map[rune][]uint64)
			}
			vec, ok := p.other[r]
			if !ok {
				vec = make([]uint64, blocks)
				p.other[r] = vec
			}
			vec[word] |= 1 << bit
		}
		pos++
	}
	return p
}

func (p *ratioPattern) match(r rune) []uint64 {
	if r >= 0 && r < utf8.RuneSelf {
		return p.ascii[int(r)*p.blocks : int(r+1)*p.blocks]
	}
	return p.other[r]
}

func (p *ratioPattern) Score(candidate string) float64 {
	n := utf8.RuneCountInString(candidate)
	lensum := p.length + n
	if lensum == 0 {
		return 100
	}
	if p.cutoff > 0 && indelRatio(lensum, min(p.length, n)) < p.cutoff {
		return 0
	}
	score := indelRatio(lensum, p.lcs(candidate))
	if score < p.cutoff {
		return 0
	}
	return score
}

// lcs runs the bit-parallel LCS length computation (Hyyrö) over all blocks.
func (p *ratioPattern) lcs(candidate string) int {
	if p.length == 0 || candidate == "" {
		return 0
	}
	v := p.row
	for i := range v {
		v[i] = ^uint64(0)
	}
	for _, r := range candidate {
		pm := p.match(r)
		if pm == nil {
			continue
		}
		var carry uint64
		for w := range v {
			u := v[w] & pm[w]
			sum, c := bits.Add64(v[w], u, carry)
			v[w] = sum | (v[w] - u)
			carry = c
		}
	}
	lcs := 0
	for w := range v {
		zeros := ^v[w]
		if w == p.blocks-1 && p.length%64 != 0 {
			zeros &= (uint64(1) << uint(p.length%64)) - 1
		}
		lcs += bits.OnesCount64(zeros)
	}
	return lcs
}

func indelRatio(lensum, lcs int) float64 {
	dist := lensum - 2*lcs
	return (1 - float64(dist)/float64(lensum)) * 100
}
