package models

import (
	"time"

	"github.com/google/uuid"
)

// RecordID is the stable identifier of a source record as assigned by the record store.
type RecordID int64

// CanonicalID identifies a row of the canonical name table.
type CanonicalID int64

// RunID identifies one deduplication run.
type RunID uuid.UUID

// NewRunID returns a fresh random run identifier.
func NewRunID() RunID {
	return RunID(uuid.New())
}

func (r RunID) String() string {
	return uuid.UUID(r).String()
}

// MarshalText renders the run id as its canonical UUID string.
func (r RunID) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// Record is one raw outlet name read from the record store.
type Record struct {
	ID      RecordID
	RawName string
}

// KeyedRecord pairs a record id with its normalized comparison key.
type KeyedRecord struct {
	ID  RecordID
	Key string
}

// Group is a similarity cluster built during one run.
//
// Invariants:
//   - Representative is the truncated key of the record that opened the group
//     and never changes
//   - Members keep discovery order
//   - Canonical is nil until the canonical table has been read back and the
//     representative resolved against it
type Group struct {
	Representative string
	Members        []RecordID
	Canonical      *CanonicalID
}

// Size returns the number of member occurrences in the group.
func (g *Group) Size() int {
	return len(g.Members)
}

// IsResolved reports whether the group has a canonical id.
func (g *Group) IsResolved() bool {
	return g.Canonical != nil
}

// CanonicalName is one row of the canonical name table.
type CanonicalName struct {
	ID   CanonicalID
	Name string
}

// Assignment links a record to the canonical entity of its group.
type Assignment struct {
	RecordID    RecordID
	CanonicalID CanonicalID
}

// Summary holds the aggregate counters of a completed run.
type Summary struct {
	RunID             RunID         `json:"run_id"`
	StartedAt         time.Time     `json:"started_at"`
	Duration          time.Duration `json:"duration_ns"`
	Metric            string        `json:"metric"`
	Threshold         float64       `json:"threshold"`
	TotalRecords      int           `json:"total_records"`
	Groups            int           `json:"groups"`
	LargestGroup      int           `json:"largest_group"`
	RecordsUpdated    int64         `json:"records_updated"`
	Unassigned        int           `json:"unassigned"`
	LookupMisses      int           `json:"lookup_misses"`
	Collisions        int           `json:"collisions"`
	DuplicateRecordID int           `json:"duplicate_record_ids"`
}
