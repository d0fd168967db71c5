package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"outletdedup/internal/dedup/models"
	"outletdedup/internal/dedup/store"
	txcontext "outletdedup/pkg/platform/tx"
)

// assignBatchSize bounds the array parameters of one UPDATE statement.
const assignBatchSize = 5000

// PostgresStore reads outlet records and maintains the canonical table in
// PostgreSQL. It implements ports.RecordStore and ports.CanonicalStore.
type PostgresStore struct {
	db     *sql.DB
	quoted store.Tables
}

// NewPostgres constructs a PostgreSQL-backed store over the given tables.
func NewPostgres(db *sql.DB, tables store.Tables) *PostgresStore {
	return &PostgresStore{
		db:     db,
		quoted: tables.Quoted(),
	}
}

// EnsureSchema creates both tables when missing. The canonical name column is
// limited to maxNameLength characters.
func (s *PostgresStore) EnsureSchema(ctx context.Context, maxNameLength int) error {
	q := s.quoted
	statements := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			%s BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
			%s TEXT NOT NULL DEFAULT '',
			%s BIGINT NULL
		)`, q.Records, q.RecordID, q.RecordName, q.RecordGroup),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			%s BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
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

func (s *PostgresStore) ListRecords(ctx context.Context) ([]models.Record, error) {
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

// AssignGroups updates the group column in batches, joining against unnest of
// two parallel arrays instead of issuing one UPDATE per record.
func (s *PostgresStore) AssignGroups(ctx context.Context, assignments []models.Assignment) (int64, error) {
	if len(assignments) == 0 {
		return 0, nil
	}
	q := s.quoted
	query := fmt.Sprintf(`
		UPDATE %s AS r SET %s = u.canonical_id
		FROM unnest($1::bigint[], $2::bigint[]) AS u(record_id, canonical_id)
		WHERE r.%s = u.record_id
	`, q.Records, q.RecordGroup, q.RecordID)

	var updated int64
	err := txcontext.Run(ctx, s.db, func(ctx context.Context) error {
		exec := txcontext.ExecutorFrom(ctx, s.db)
		for start := 0; start < len(assignments); start += assignBatchSize {
			batch := assignments[start:min(start+assignBatchSize, len(assignments))]
			recordIDs := make([]int64, len(batch))
			canonicalIDs := make([]int64, len(batch))
			for i, a := range batch {
				recordIDs[i] = int64(a.RecordID)
				canonicalIDs[i] = int64(a.CanonicalID)
			}
			res, err := exec.ExecContext(ctx, query, pq.Array(recordIDs), pq.Array(canonicalIDs))
			if err != nil {
				return fmt.Errorf("update record groups: %w", err)
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

// PersistCanonical truncates the canonical table, restarting its identity at 1,
// and inserts names preserving their order, all in one transaction.
func (s *PostgresStore) PersistCanonical(ctx context.Context, names []string) error {
	q := s.quoted
	return txcontext.Run(ctx, s.db, func(ctx context.Context) error {
		exec := txcontext.ExecutorFrom(ctx, s.db)
		if _, err := exec.ExecContext(ctx, fmt.Sprintf(`TRUNCATE TABLE %s RESTART IDENTITY`, q.Canonical)); err != nil {
			return fmt.Errorf("clear canonical table: %w", err)
		}
		if len(names) == 0 {
			return nil
		}
		insert := fmt.Sprintf(`
			INSERT INTO %s (%s)
			SELECT name FROM unnest($1::text[]) WITH ORDINALITY AS t(name, ord)
			ORDER BY ord
		`, q.Canonical, q.CanonicalName)
		if _, err := exec.ExecContext(ctx, insert, pq.Array(names)); err != nil {
			return fmt.Errorf("insert canonical names: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) ReadCanonical(ctx context.Context) ([]models.CanonicalName, error) {
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
func (s *PostgresStore) AddRecords(ctx context.Context, names []string) error {
	q := s.quoted
	query := fmt.Sprintf(`
		INSERT INTO %s (%s)
		SELECT name FROM unnest($1::text[]) WITH ORDINALITY AS t(name, ord)
		ORDER BY ord
	`, q.Records, q.RecordName)
	if _, err := s.db.ExecContext(ctx, query, pq.Array(names)); err != nil {
		return fmt.Errorf("insert records: %w", err)
	}
	return nil
}
