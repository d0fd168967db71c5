package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"outletdedup/internal/dedup/models"
	"outletdedup/internal/dedup/normalize"
)

// persisted mimics a freshly reset canonical table: ids 1..n in name order.
func persisted(names []string) []models.CanonicalName {
	table := make([]models.CanonicalName, len(names))
	for i, name := range names {
		table[i] = models.CanonicalName{ID: models.CanonicalID(i + 1), Name: name}
	}
	return table
}

func TestResolveAssignsEveryMember(t *testing.T) {
	n := normalize.New(normalize.DefaultMaxLength)
	res := Cluster(normalized("Cafe Rio", "Burger Hut", "cafe  rio"))

	resolution := Resolve(res, persisted(Names(res.Groups)), n)

	assert.Equal(t, []models.Assignment{
		{RecordID: 1, CanonicalID: 1},
		{RecordID: 3, CanonicalID: 1},
		{RecordID: 2, CanonicalID: 2},
	}, resolution.Assignments)
	assert.Empty(t, resolution.Unassigned)
	assert.Empty(t, resolution.Misses)
	assert.Zero(t, resolution.Collisions)
	for _, g := range res.Groups {
		assert.True(t, g.IsResolved())
	}
}

func TestResolveTruncationCollisionFirstWrittenWins(t *testing.T) {
	n := normalize.New(4)
	// Different enough to open two groups, identical once cut to 4 runes.
	res := Cluster(keyed("abcdwxyz", "abcdqrst"), WithNormalizer(n))
	require.Len(t, res.Groups, 2)
	require.Equal(t, []string{"abcd", "abcd"}, Names(res.Groups))

	resolution := Resolve(res, persisted(Names(res.Groups)), n)

	assert.Equal(t, 1, resolution.Collisions)
	assert.Equal(t, []models.Assignment{
		{RecordID: 1, CanonicalID: 1},
		{RecordID: 2, CanonicalID: 1},
	}, resolution.Assignments)
	assert.Equal(t, models.CanonicalID(1), *res.Groups[1].Canonical)
}

func TestResolveMissWhenCutEndsInWhitespace(t *testing.T) {
	n := normalize.New(4)
	res := Cluster(keyed("abc def", "zzzzzzz"), WithNormalizer(n))
	require.Equal(t, []string{"abc ", "zzzz"}, Names(res.Groups))

	resolution := Resolve(res, persisted(Names(res.Groups)), n)

	assert.Equal(t, []int{0}, resolution.Misses)
	assert.Equal(t, []models.RecordID{1}, resolution.Unassigned)
	assert.Equal(t, []models.Assignment{{RecordID: 2, CanonicalID: 2}}, resolution.Assignments)
	assert.False(t, res.Groups[0].IsResolved())
}

func TestResolveEmptyRepresentative(t *testing.T) {
	n := normalize.New(normalize.DefaultMaxLength)
	res := Cluster(normalized("", "  "))

	resolution := Resolve(res, persisted(Names(res.Groups)), n)

	assert.Equal(t, []models.Assignment{
		{RecordID: 1, CanonicalID: 1},
		{RecordID: 2, CanonicalID: 1},
	}, resolution.Assignments)
}

func TestResolveDuplicateIDEmittedOnce(t *testing.T) {
	n := normalize.New(normalize.DefaultMaxLength)
	acc := NewAccumulator()
	acc.Add(1, "alpha")
	acc.Add(1, "zzzz")
	acc.Add(2, "zzzz")
	res := &Result{Groups: acc.Groups(), Assignment: acc.Assignment(), Duplicates: acc.Duplicates()}

	resolution := Resolve(res, persisted(Names(res.Groups)), n)

	assert.Equal(t, []models.Assignment{
		{RecordID: 1, CanonicalID: 1},
		{RecordID: 2, CanonicalID: 2},
	}, resolution.Assignments)
}

func TestResolveAgainstEmptyTable(t *testing.T) {
	n := normalize.New(normalize.DefaultMaxLength)
	res := Cluster(normalized("a", "b"))

	resolution := Resolve(res, nil, n)

	assert.Empty(t, resolution.Assignments)
	assert.Equal(t, []models.RecordID{1, 2}, resolution.Unassigned)
	assert.Equal(t, []int{0, 1}, resolution.Misses)
}
