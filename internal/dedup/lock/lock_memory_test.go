package lock

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"outletdedup/pkg/platform/sentinel"
)

func TestInMemoryLock(t *testing.T) {
	ctx := context.Background()
	l := NewInMemory()

	release, err := l.Acquire(ctx)
	require.NoError(t, err)

	_, err = l.Acquire(ctx)
	assert.ErrorIs(t, err, sentinel.ErrConflict, "second acquire is refused, not queued")

	require.NoError(t, release(ctx))
	require.NoError(t, release(ctx), "release is idempotent")

	again, err := l.Acquire(ctx)
	require.NoError(t, err)
	require.NoError(t, again(ctx))
}
