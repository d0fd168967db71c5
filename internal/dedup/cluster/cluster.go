// Package cluster implements greedy first-match clustering of normalized names.
//
// Each incoming key is compared with the representative of every existing
// group in creation order and joins the first group scoring at or above the
// threshold. Otherwise it opens a new group at the end. The result depends on
// input order; the same ordered input always yields the same groups.
package cluster

import (
	"outletdedup/internal/dedup/models"
	"outletdedup/internal/dedup/normalize"
	"outletdedup/internal/dedup/similarity"
)

// DefaultThreshold is the minimum score for joining a group.
const DefaultThreshold = 85

// Accumulator is the fold state of one clustering pass. It is owned by the
// caller and is not safe for concurrent use.
type Accumulator struct {
	scorer     similarity.Scorer
	compiler   similarity.Compiler
	normalizer *normalize.Normalizer
	threshold  float64

	groups     []*models.Group
	assignment map[models.RecordID]int
	duplicates int
}

// Option configures an Accumulator.
type Option func(*Accumulator)

// WithThreshold sets the join threshold on the 0..100 scale.
func WithThreshold(threshold float64) Option {
	return func(a *Accumulator) {
		a.threshold = threshold
	}
}

// WithScorer replaces the similarity metric.
func WithScorer(scorer similarity.Scorer) Option {
	return func(a *Accumulator) {
		if scorer != nil {
			a.scorer = scorer
		}
	}
}

// WithNormalizer sets the normalizer whose truncation produces representatives.
func WithNormalizer(n *normalize.Normalizer) Option {
	return func(a *Accumulator) {
		if n != nil {
			a.normalizer = n
		}
	}
}

// NewAccumulator returns an empty accumulator using Ratio, DefaultThreshold and
// a normalizer with the default maximum length unless overridden.
func NewAccumulator(opts ...Option) *Accumulator {
	a := &Accumulator{
		scorer:     similarity.Ratio{},
		normalizer: normalize.New(normalize.DefaultMaxLength),
		threshold:  DefaultThreshold,
		assignment: make(map[models.RecordID]int),
	}
	for _, opt := range opts {
		opt(a)
	}
	if c, ok := a.scorer.(similarity.Compiler); ok {
		a.compiler = c
	}
	return a
}

// Add places one record and returns the index of its group.
func (a *Accumulator) Add(id models.RecordID, key string) int {
	idx := a.find(key)
	if idx < 0 {
		a.groups = append(a.groups, &models.Group{
			Representative: a.normalizer.Truncate(key),
		})
		idx = len(a.groups) - 1
	}
	group := a.groups[idx]
	group.Members = append(group.Members, id)

	if _, seen := a.assignment[id]; seen {
		a.duplicates++
	} else {
		a.assignment[id] = idx
	}
	return idx
}

func (a *Accumulator) find(key string) int {
	if a.compiler != nil {
		pattern := a.compiler.Compile(key, a.threshold)
		for i, g := range a.groups {
			if pattern.Score(g.Representative) >= a.threshold {
				return i
			}
		}
		return -1
	}
	for i, g := range a.groups {
		if a.scorer.Score(key, g.Representative) >= a.threshold {
			return i
		}
	}
	return -1
}

// Groups returns the groups in creation order. The slice is shared with the
// accumulator.
func (a *Accumulator) Groups() []*models.Group {
	return a.groups
}

// Assignment returns the record id to group index mapping. For a record id
// seen more than once the first occurrence decides.
func (a *Accumulator) Assignment() map[models.RecordID]int {
	return a.assignment
}

// Duplicates returns how many record occurrences reused an id already seen.
func (a *Accumulator) Duplicates() int {
	return a.duplicates
}

// Len returns the number of groups formed so far.
func (a *Accumulator) Len() int {
	return len(a.groups)
}

// LargestGroup returns the member count of the biggest group, 0 when empty.
func (a *Accumulator) LargestGroup() int {
	largest := 0
	for _, g := range a.groups {
		largest = max(largest, g.Size())
	}
	return largest
}

// Result is the output of Cluster.
type Result struct {
	Groups     []*models.Group
	Assignment map[models.RecordID]int
	Duplicates int
}

// Cluster folds records, in order, through a fresh accumulator.
func Cluster(records []models.KeyedRecord, opts ...Option) *Result {
	acc := NewAccumulator(opts...)
	for _, r := range records {
		acc.Add(r.ID, r.Key)
	}
	return &Result{
		Groups:     acc.Groups(),
		Assignment: acc.Assignment(),
		Duplicates: acc.Duplicates(),
	}
}
