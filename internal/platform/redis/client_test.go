package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"proptoken/internal/platform/config"
)

func TestNew(t *testing.T) {
	ctx := context.Background()

	t.Run("not configured", func(t *testing.T) {
		client, err := New(ctx, config.RedisConfig{})
		require.NoError(t, err)
		assert.Nil(t, client)
	})

	t.Run("connects and reports health", func(t *testing.T) {
		mr := miniredis.RunT(t)
		client, err := New(ctx, config.RedisConfig{URL: "redis://" + mr.Addr(), PoolSize: 2})
		require.NoError(t, err)
		t.Cleanup(func() { _ = client.Close() })
		assert.Equal(t, 2, client.Options().PoolSize)

		assert.NoError(t, client.Health(ctx))
		mr.Close()
		assert.Error(t, client.Health(ctx))
	})

	t.Run("bad url", func(t *testing.T) {
		_, err := New(ctx, config.RedisConfig{URL: "://nope"})
		assert.Error(t, err)
	})

	t.Run("unreachable server", func(t *testing.T) {
		mr := miniredis.RunT(t)
		addr := mr.Addr()
		mr.Close()
		_, err := New(ctx, config.RedisConfig{URL: "redis://" + addr, DialTimeout: 200 * time.Millisecond})
		require.Error(t, err)
		assert.Contains(t, err.Error(), addr)
	})
}
