package cluster

import (
	"outletdedup/internal/dedup/models"
	"outletdedup/internal/dedup/normalize"
)

// Resolution is the outcome of matching groups back to the canonical table.
type Resolution struct {
	// Assignments lists every record with a canonical id, in group order then
	// member order.
	Assignments []models.Assignment
	// Unassigned lists records whose group found no canonical row.
	Unassigned []models.RecordID
	// Misses holds the indexes of groups without a canonical row.
	Misses []int
	// Collisions counts groups whose truncated representative equals that of an
	// earlier group. They resolve to the same canonical id.
	Collisions int
}

// Resolve sets Group.Canonical for every group of res by exact lookup of its
// truncated representative in table, and derives the per-record assignments.
//
// Table text is passed through n.Key before lookup, as it would be read back
// from storage. When several rows share a key the first row in table order wins,
// so with a freshly reset table the earliest written group provides the id.
// Resolve never fails; unmatched groups are reported in Misses.
func Resolve(res *Result, table []models.CanonicalName, n *normalize.Normalizer) *Resolution {
	lookup := make(map[string]models.CanonicalID, len(table))
	for _, row := range table {
		key := n.Key(row.Name)
		if _, ok := lookup[key]; !ok {
			lookup[key] = row.ID
		}
	}

	out := &Resolution{}
	seenKeys := make(map[string]struct{}, len(res.Groups))
	emitted := make(map[models.RecordID]struct{}, len(res.Assignment))

	for idx, g := range res.Groups {
		key := n.Truncate(g.Representative)
		if _, dup := seenKeys[key]; dup {
			out.Collisions++
		}
		seenKeys[key] = struct{}{}

		canonicalID, ok := lookup[key]
		if ok {
			id := canonicalID
			g.Canonical = &id
		} else {
			g.Canonical = nil
			out.Misses = append(out.Misses, idx)
		}

		for _, recordID := range g.Members {
			if owner, known := res.Assignment[recordID]; known && owner != idx {
				continue
			}
			if _, done := emitted[recordID]; done {
				continue
			}
			emitted[recordID] = struct{}{}
			if ok {
				out.Assignments = append(out.Assignments, models.Assignment{
					RecordID:    recordID,
					CanonicalID: canonicalID,
				})
			} else {
				out.Unassigned = append(out.Unassigned, recordID)
			}
		}
	}
	return out
}

// Names returns the representatives in creation order, the rows to persist in
// the canonical table.
func Names(groups []*models.Group) []string {
	names := make([]string, len(groups))
	for i, g := range groups {
		names[i] = g.Representative
	}
	return names
}
