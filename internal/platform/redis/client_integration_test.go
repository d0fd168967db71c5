//go:build integration

package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"outletdedup/internal/platform/config"
	"outletdedup/pkg/testutil/containers"
)

func TestNewConnectsAndReportsHealth(t *testing.T) {
	container := containers.GetManager().GetRedis(t)
	ctx := context.Background()

	client, err := New(ctx, config.RedisConfig{
		URL:         container.URL,
		PoolSize:    4,
		DialTimeout: 2 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, client.Health(ctx))
	require.Equal(t, 4, client.Options().PoolSize)
}
