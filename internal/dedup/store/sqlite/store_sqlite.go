package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"outletdedup/internal/dedup/models"
	"outletdedup/internal/dedup/store"
	txcontext "outletdedup/pkg/platform/tx"
)

// SQLiteStore keeps records and the canonical table in a SQLite file.
// It implements ports.RecordStore and ports.CanonicalStore.
type SQLiteStore struct {
	db     *sql.DB
	tables store.Tables
	quoted store.Tables
}

// NewSQLite constructs a SQLite-backed store over the given tables.
func NewSQLite(db *sql.DB, tables store.Tables) *SQLiteStore {
	return &SQLiteStore{
		db:     db,
		tables: tables,
		quoted: tables.Quoted(),
	}
}

// EnsureSchema creates both tables when missing. The canonical table uses
// AUTOINCREMENT so its sequence can be reset between runs.
func (s *SQLiteStore) EnsureSchema(ctx context.Context, maxNameLength int) error {
	q := s.quoted
	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			%s INTEGER PRIMARY KEY AUTOINCREMENT,
			%s TEXT NOT NULL DEFAULT '',
			%s INTEGER NULL
		)`, q.Records, q.RecordID, q.RecordName, q.RecordGroup),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			%s INTEGER PRIMARY KEY AUTOINCREMENT,
			%s VARCHAR(%d) NOT NULL
		)`, q.Canonical, q.CanonicalID, q.CanonicalName, maxNameLength),
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStore) ListRecords(ctx context.Context) ([]models.Record, error) {
	q := s.quoted
	query := fmt.Sprintf(`SELECT %s, COALESCE(%s, '') FROM %s ORDER BY %s`,
		q.RecordID, q.RecordName, q.Records, q.RecordID)

	rows, err := txcontext.ExecutorFrom(ctx, s.db).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var records []models.Record
	for rows.Next() {
		var r models.Record
		if err := rows.Scan(&r.ID, &r.RawName); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}

// AssignGroups issues one prepared UPDATE per record inside a transaction and
// sums the affected rows.
func (s *SQLiteStore) AssignGroups(ctx context.Context, assignments []models.Assignment) (int64, error) {
	if len(assignments) == 0 {
		return 0, nil
	}
	q := s.quoted
	query := fmt.Sprintf(`UPDATE %s SET %s = ? WHERE %s = ?`, q.Records, q.RecordGroup, q.RecordID)

	var updated int64
	err := txcontext.Run(ctx, s.db, func(ctx context.Context) error {
		stmt, err := txcontext.ExecutorFrom(ctx, s.db).PrepareContext(ctx, query)
		if err != nil {
			return fmt.Errorf("prepare group update: %w", err)
		}
		defer stmt.Close()

		for _, a := range assignments {
			res, err := stmt.ExecContext(ctx, int64(a.CanonicalID), int64(a.RecordID))
			if err != nil {
				return fmt.Errorf("update record %d: %w", a.RecordID, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("rows affected: %w", err)
			}
			updated += n
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return updated, nil
}

// PersistCanonical empties the canonical table, resets its AUTOINCREMENT
// counter and inserts names in order, in one transaction.
func (s *SQLiteStore) PersistCanonical(ctx context.Context, names []string) error {
	q := s.quoted
	return txcontext.Run(ctx, s.db, func(ctx context.Context) error {
		exec := txcontext.ExecutorFrom(ctx, s.db)
		if _, err := exec.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, q.Canonical)); err != nil {
			return fmt.Errorf("clear canonical table: %w", err)
		}
		if err := resetSequence(ctx, exec, s.tables.Canonical); err != nil {
			return err
		}
		if len(names) == 0 {
			return nil
		}
		stmt, err := exec.PrepareContext(ctx,
			fmt.Sprintf(`INSERT INTO %s (%s) VALUES (?)`, q.Canonical, q.CanonicalName))
		if err != nil {
			return fmt.Errorf("prepare canonical insert: %w", err)
		}
		defer stmt.Close()
		for _, name := range names {
			if _, err := stmt.ExecContext(ctx, name); err != nil {
				return fmt.Errorf("insert canonical name: %w", err)
			}
		}
		return nil
	})
}

// resetSequence clears the AUTOINCREMENT counter of table. sqlite_sequence
// only exists once some AUTOINCREMENT table has been created.
func resetSequence(ctx context.Context, exec txcontext.Executor, table string) error {
	rows, err := exec.QueryContext(ctx,
		`SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = 'sqlite_sequence'`)
	if err != nil {
		return fmt.Errorf("look up sqlite_sequence: %w", err)
	}
	exists := rows.Next()
	if err := rows.Close(); err != nil {
		return fmt.Errorf("look up sqlite_sequence: %w", err)
	}
	if !exists {
		return nil
	}
	if _, err := exec.ExecContext(ctx, `DELETE FROM sqlite_sequence WHERE name = ?`, table); err != nil {
		return fmt.Errorf("reset canonical id sequence: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ReadCanonical(ctx context.Context) ([]models.CanonicalName, error) {
	q := s.quoted
	query := fmt.Sprintf(`SELECT %s, %s FROM %s ORDER BY %s`,
		q.CanonicalID, q.CanonicalName, q.Canonical, q.CanonicalID)

	rows, err := txcontext.ExecutorFrom(ctx, s.db).QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query canonical names: %w", err)
	}
	defer rows.Close()

	var table []models.CanonicalName
	for rows.Next() {
		var row models.CanonicalName
		if err := rows.Scan(&row.ID, &row.Name); err != nil {
			return nil, fmt.Errorf("scan canonical name: %w", err)
		}
		table = append(table, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate canonical names: %w", err)
	}
	return table, nil
}

// AddRecords inserts raw names in order and is used to seed fixtures.
func (s *SQLiteStore) AddRecords(ctx context.Context, names []string) error {
	q := s.quoted
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (?)`, q.Records, q.RecordName)
	return txcontext.Run(ctx, s.db, func(ctx context.Context) error {
		stmt, err := txcontext.ExecutorFrom(ctx, s.db).PrepareContext(ctx, query)
		if err != nil {
			return fmt.Errorf("prepare record insert: %w", err)
		}
		defer stmt.Close()
		for _, name := range names {
			if _, err := stmt.ExecContext(ctx, name); err != nil {
				return fmt.Errorf("insert record: %w", err)
			}
		}
		return nil
	})
}
