package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSeed(t *testing.T, lines string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "names.txt")
	require.NoError(t, os.WriteFile(path, []byte(lines), 0o600))
	return path
}

func TestRunCommandMemoryDriver(t *testing.T) {
	seed := writeSeed(t, "Cafe Rio\ncafe  rio\nCAFE RIO!!\nBurger Hut\n")

	var out bytes.Buffer
	err := run(context.Background(), []string{"run", "-driver", "memory", "-names", seed, "-log-level", "error"}, &out)
	require.NoError(t, err)

	assert.Regexp(t, `Total records:\s+4\n`, out.String())
	assert.Regexp(t, `Canonical groups:\s+2\n`, out.String())
	assert.Regexp(t, `Largest group:\s+3\n`, out.String())
	assert.Regexp(t, `Records updated:\s+4\n`, out.String())
}

func TestRunCommandJSON(t *testing.T) {
	seed := writeSeed(t, "alpha\nalpha \nbeta\n")

	var out bytes.Buffer
	err := run(context.Background(), []string{"run", "-driver", "memory", "-names", seed, "-json", "-log-level", "error"}, &out)
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &body))
	assert.EqualValues(t, 3, body["total_records"])
	assert.EqualValues(t, 2, body["groups"])
	assert.Equal(t, "ratio", body["metric"])
}

func TestRunCommandErrors(t *testing.T) {
	t.Run("memory driver without seed", func(t *testing.T) {
		err := run(context.Background(), []string{"run", "-driver", "memory"}, &bytes.Buffer{})
		assert.ErrorContains(t, err, "-names")
	})

	t.Run("unknown metric", func(t *testing.T) {
		err := run(context.Background(), []string{"run", "-driver", "memory", "-metric", "soundex"}, &bytes.Buffer{})
		assert.ErrorContains(t, err, "unknown similarity metric")
	})

	t.Run("NaN threshold", func(t *testing.T) {
		err := run(context.Background(), []string{"run", "-driver", "memory", "-threshold", "NaN"}, &bytes.Buffer{})
		assert.ErrorContains(t, err, "outside [0, 100]")
	})

	t.Run("unknown command", func(t *testing.T) {
		err := run(context.Background(), []string{"explode"}, &bytes.Buffer{})
		assert.ErrorContains(t, err, "unknown command")
	})

	t.Run("schema rejects memory driver", func(t *testing.T) {
		err := run(context.Background(), []string{"schema", "-driver", "memory"}, &bytes.Buffer{})
		assert.ErrorContains(t, err, "postgres or sqlite")
	})
}

func TestSchemaThenRunOnSQLite(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "outlets.db")
	ctx := context.Background()

	require.NoError(t, run(ctx, []string{"schema", "-driver", "sqlite", "-dsn", dsn, "-log-level", "error"}, &bytes.Buffer{}))

	var out bytes.Buffer
	require.NoError(t, run(ctx, []string{"run", "-driver", "sqlite", "-dsn", dsn, "-log-level", "error"}, &out))
	assert.Regexp(t, `Total records:\s+0\n`, out.String())
	assert.Regexp(t, `Canonical groups:\s+0\n`, out.String())
}
