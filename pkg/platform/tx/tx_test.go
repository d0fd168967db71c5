package tx

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "tx.db"))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Exec(`CREATE TABLE names (name TEXT NOT NULL)`)
	require.NoError(t, err)
	return db
}

func count(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT count(*) FROM names`).Scan(&n))
	return n
}

func insert(ctx context.Context, db *sql.DB, name string) error {
	_, err := ExecutorFrom(ctx, db).ExecContext(ctx, `INSERT INTO names (name) VALUES (?)`, name)
	return err
}

func TestRunCommits(t *testing.T) {
	db := openDB(t)
	err := Run(context.Background(), db, func(ctx context.Context) error {
		_, ok := From(ctx)
		assert.True(t, ok)
		return insert(ctx, db, "a")
	})
	require.NoError(t, err)
	assert.Equal(t, 1, count(t, db))
}

func TestRunRollsBackOnError(t *testing.T) {
	db := openDB(t)
	abort := errors.New("abort")
	err := Run(context.Background(), db, func(ctx context.Context) error {
		require.NoError(t, insert(ctx, db, "a"))
		return abort
	})
	require.ErrorIs(t, err, abort)
	assert.Equal(t, 0, count(t, db))
}

func TestNestedRunJoinsOuterTransaction(t *testing.T) {
	db := openDB(t)
	abort := errors.New("abort")
	err := Run(context.Background(), db, func(ctx context.Context) error {
		require.NoError(t, Run(ctx, db, func(ctx context.Context) error {
			return insert(ctx, db, "inner")
		}))
		return abort
	})
	require.ErrorIs(t, err, abort)
	assert.Equal(t, 0, count(t, db), "inner work is rolled back with the outer transaction")
}

func TestExecutorFromWithoutTx(t *testing.T) {
	db := openDB(t)
	assert.Same(t, db, ExecutorFrom(context.Background(), db))
	assert.Equal(t, context.Background(), WithTx(context.Background(), nil))
}

func TestTransactorRollsBackEveryStatement(t *testing.T) {
	db := openDB(t)
	abort := errors.New("abort")
	err := NewTransactor(db).RunInTx(context.Background(), func(ctx context.Context) error {
		require.NoError(t, insert(ctx, db, "a"))
		require.NoError(t, insert(ctx, db, "b"))
		return abort
	})
	require.ErrorIs(t, err, abort)
	assert.Equal(t, 0, count(t, db))
}
