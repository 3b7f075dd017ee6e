package redisdenylist_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fenixedu/fenix-auth/adapters/redisdenylist"
)

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return srv, client
}

func TestDenylist_RevokeAndCheck(t *testing.T) {
	srv, client := setupRedis(t)
	denylist := redisdenylist.New(client)
	ctx := context.Background()

	t.Run("unknown token is not revoked", func(t *testing.T) {
		revoked, err := denylist.IsRevoked(ctx, "token-a")
		require.NoError(t, err)
		assert.False(t, revoked)
	})

	t.Run("revoked token is reported with prefix key and ttl", func(t *testing.T) {
		require.NoError(t, denylist.Revoke(ctx, "token-a", time.Minute))

		revoked, err := denylist.IsRevoked(ctx, "token-a")
		require.NoError(t, err)
		assert.True(t, revoked)

		assert.True(t, srv.Exists("blacklist:token-a"))
		assert.Equal(t, time.Minute, srv.TTL("blacklist:token-a"))
	})

	t.Run("revocation is per token", func(t *testing.T) {
		revoked, err := denylist.IsRevoked(ctx, "token-b")
		require.NoError(t, err)
		assert.False(t, revoked)
	})

	t.Run("entry lapses after ttl", func(t *testing.T) {
		require.NoError(t, denylist.Revoke(ctx, "token-c", 30*time.Second))
		srv.FastForward(31 * time.Second)

		revoked, err := denylist.IsRevoked(ctx, "token-c")
		require.NoError(t, err)
		assert.False(t, revoked)
	})

	t.Run("non positive ttl is a no-op", func(t *testing.T) {
		require.NoError(t, denylist.Revoke(ctx, "token-d", 0))
		assert.False(t, srv.Exists("blacklist:token-d"))
	})
}

func TestDenylist_CustomPrefix(t *testing.T) {
	srv, client := setupRedis(t)
	denylist := redisdenylist.NewWithPrefix(client, "revoked:")

	require.NoError(t, denylist.Revoke(context.Background(), "tok", time.Hour))
	assert.True(t, srv.Exists("revoked:tok"))
	assert.NoError(t, denylist.Ping(context.Background()))
}

func TestDenylist_StoreFailure(t *testing.T) {
	srv, client := setupRedis(t)
	denylist := redisdenylist.New(client)
	srv.Close()

	_, err := denylist.IsRevoked(context.Background(), "tok")
	assert.Error(t, err)
}
