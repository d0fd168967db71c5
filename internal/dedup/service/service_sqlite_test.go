package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/suite"

	"outletdedup/internal/dedup/models"
	"outletdedup/internal/dedup/ports"
	"outletdedup/internal/dedup/store"
	"outletdedup/internal/dedup/store/sqlite"
	txcontext "outletdedup/pkg/platform/tx"
)

// cancelAfterPersist cancels the run's caller right after the canonical table
// has been rewritten.
type cancelAfterPersist struct {
	ports.CanonicalStore
	cancel context.CancelFunc
}

func (c cancelAfterPersist) PersistCanonical(ctx context.Context, names []string) error {
	err := c.CanonicalStore.PersistCanonical(ctx, names)
	c.cancel()
	return err
}

// failAfterAssign writes the assignments and then reports a storage error.
type failAfterAssign struct {
	ports.RecordStore
	err error
}

func (f failAfterAssign) AssignGroups(ctx context.Context, assignments []models.Assignment) (int64, error) {
	if _, err := f.RecordStore.AssignGroups(ctx, assignments); err != nil {
		return 0, err
	}
	return 0, f.err
}

// WriteConsistencySuite checks that record ids never point at names from a
// different run than the canonical table they reference.
type WriteConsistencySuite struct {
	suite.Suite
	ctx   context.Context
	db    *sql.DB
	store *sqlite.SQLiteStore
}

func TestWriteConsistencySuite(t *testing.T) {
	suite.Run(t, new(WriteConsistencySuite))
}

func (s *WriteConsistencySuite) SetupTest() {
	s.ctx = context.Background()
	db, err := sql.Open("sqlite3", filepath.Join(s.T().TempDir(), "outlets.db"))
	s.Require().NoError(err)
	db.SetMaxOpenConns(1)
	s.T().Cleanup(func() { _ = db.Close() })
	s.db = db
	s.store = sqlite.NewSQLite(db, store.DefaultTables())
	s.Require().NoError(s.store.EnsureSchema(s.ctx, 145))

	s.Require().NoError(s.store.AddRecords(s.ctx, []string{"Burger Hut", "Cafe Rio"}))
	_, err = s.newService(s.store, s.store).Run(s.ctx)
	s.Require().NoError(err)

	_, err = s.db.Exec(`UPDATE outlets SET raw_name = 'Cafe Rio' WHERE id = 1`)
	s.Require().NoError(err)
	s.Require().NoError(s.store.AddRecords(s.ctx, []string{"Zeta Bar"}))
}

func (s *WriteConsistencySuite) newService(records ports.RecordStore, canonical ports.CanonicalStore) *Service {
	svc, err := New(records, canonical,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithTransactor(txcontext.NewTransactor(s.db)),
	)
	s.Require().NoError(err)
	return svc
}

// assignedNames maps each record's raw name to the canonical name its group
// id points at.
func (s *WriteConsistencySuite) assignedNames() map[int64]string {
	rows, err := s.db.Query(`SELECT o.id, COALESCE(c.clean_name, '')
		FROM outlets o LEFT JOIN outlets_clean c ON c.id = o.outlet_clean_id
		ORDER BY o.id`)
	s.Require().NoError(err)
	defer rows.Close()
	out := map[int64]string{}
	for rows.Next() {
		var id int64
		var name string
		s.Require().NoError(rows.Scan(&id, &name))
		out[id] = name
	}
	s.Require().NoError(rows.Err())
	return out
}

func (s *WriteConsistencySuite) TestCallerCancelledAfterCanonicalRewrite() {
	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	summary, err := s.newService(s.store, cancelAfterPersist{s.store, cancel}).Run(ctx)

	s.Require().NoError(err)
	s.Equal(2, summary.Groups)
	s.Equal(map[int64]string{1: "cafe rio", 2: "cafe rio", 3: "zeta bar"}, s.assignedNames())
}

func (s *WriteConsistencySuite) TestAssignFailureRollsBackCanonicalTable() {
	before := s.assignedNames()
	boom := errors.New("disk I/O error")

	_, err := s.newService(failAfterAssign{s.store, boom}, s.store).Run(s.ctx)

	s.Require().ErrorIs(err, boom)
	s.Equal(before, s.assignedNames())
	table, err := s.store.ReadCanonical(s.ctx)
	s.Require().NoError(err)
	s.Equal([]models.CanonicalName{{ID: 1, Name: "burger hut"}, {ID: 2, Name: "cafe rio"}}, table)
}
