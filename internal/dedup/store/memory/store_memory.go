package memory

import (
	"context"
	"sync"

	"outletdedup/internal/dedup/models"
)

// InMemory keeps records and the canonical table in process memory. It
// implements both ports.RecordStore and ports.CanonicalStore and is used for
// tests and dry runs.
type InMemory struct {
	mu        sync.RWMutex
	records   []models.Record
	groupOf   map[models.RecordID]models.CanonicalID
	canonical []models.CanonicalName
	nextID    models.CanonicalID
	// canonicalFilter, when set, rewrites names as they are stored, to mimic
	// storage that does not round-trip text exactly.
	canonicalFilter func(string) string
}

type Option func(*InMemory)

// WithCanonicalFilter applies fn to each canonical name on write.
func WithCanonicalFilter(fn func(string) string) Option {
	return func(s *InMemory) {
		s.canonicalFilter = fn
	}
}

// NewInMemory returns a store seeded with records, kept in the given order.
func NewInMemory(records []models.Record, opts ...Option) *InMemory {
	s := &InMemory{
		records: append([]models.Record(nil), records...),
		groupOf: make(map[models.RecordID]models.CanonicalID),
		nextID:  1,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FromNames seeds a store with ids 1..n in name order.
func FromNames(names ...string) *InMemory {
	records := make([]models.Record, len(names))
	for i, name := range names {
		records[i] = models.Record{ID: models.RecordID(i + 1), RawName: name}
	}
	return NewInMemory(records)
}

func (s *InMemory) ListRecords(_ context.Context) ([]models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Record(nil), s.records...), nil
}

// AssignGroups counts one update per assignment whose record exists.
func (s *InMemory) AssignGroups(_ context.Context, assignments []models.Assignment) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	known := make(map[models.RecordID]struct{}, len(s.records))
	for _, r := range s.records {
		known[r.ID] = struct{}{}
	}
	var updated int64
	for _, a := range assignments {
		if _, ok := known[a.RecordID]; !ok {
			continue
		}
		s.groupOf[a.RecordID] = a.CanonicalID
		updated++
	}
	return updated, nil
}

func (s *InMemory) PersistCanonical(_ context.Context, names []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.canonical = make([]models.CanonicalName, 0, len(names))
	s.nextID = 1
	for _, name := range names {
		if s.canonicalFilter != nil {
			name = s.canonicalFilter(name)
		}
		s.canonical = append(s.canonical, models.CanonicalName{ID: s.nextID, Name: name})
		s.nextID++
	}
	return nil
}

func (s *InMemory) ReadCanonical(_ context.Context) ([]models.CanonicalName, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.CanonicalName(nil), s.canonical...), nil
}

// GroupOf returns the canonical id assigned to a record, if any.
func (s *InMemory) GroupOf(id models.RecordID) (models.CanonicalID, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	canonicalID, ok := s.groupOf[id]
	return canonicalID, ok
}
