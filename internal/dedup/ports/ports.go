// Package ports defines the collaborators of a deduplication run.
// Stores, the run lock and the summary publisher are injected into the service
// through these interfaces so the run can be exercised against in-memory fakes.
package ports

//go:generate mockgen -source=ports.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"outletdedup/internal/dedup/models"
)

// RecordStore reads raw outlet records and stores their group assignment.
type RecordStore interface {
	// ListRecords returns every source record in a stable order.
	ListRecords(ctx context.Context) ([]models.Record, error)

	// AssignGroups writes the canonical id of each record and returns the number
	// of rows the store actually updated.
	AssignGroups(ctx context.Context, assignments []models.Assignment) (int64, error)
}

// CanonicalStore holds the canonical name table.
//
// PersistCanonical must complete before ReadCanonical is called; the ids read
// back are the ones back-assignment resolves against.
type CanonicalStore interface {
	// PersistCanonical clears the table, resets its id sequence and appends
	// names in order.
	PersistCanonical(ctx context.Context, names []string) error

	// ReadCanonical returns the table ordered by id.
	ReadCanonical(ctx context.Context) ([]models.CanonicalName, error)
}

// Locker serialises runs. Acquire returns sentinel.ErrConflict while another
// run holds the lock.
type Locker interface {
	Acquire(ctx context.Context) (release func(context.Context) error, err error)
}

// SummaryPublisher announces completed runs.
type SummaryPublisher interface {
	Publish(ctx context.Context, summary models.Summary) error
}

// Transactor runs fn so that every store call made with the ctx it receives
// commits or rolls back together.
type Transactor interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}
