package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedisStoreTest(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, "events:", time.Hour), mr
}

func TestRedisStore_Claim(t *testing.T) {
	store, mr := setupRedisStoreTest(t)
	ctx := context.Background()

	first, err := store.Claim(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, first)
	assert.True(t, mr.Exists("events:evt-1"))

	second, err := store.Claim(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, second)

	other, err := store.Claim(ctx, "evt-2")
	require.NoError(t, err)
	assert.True(t, other)
}

func TestRedisStore_ClaimExpires(t *testing.T) {
	store, mr := setupRedisStoreTest(t)
	ctx := context.Background()

	_, err := store.Claim(ctx, "evt-1")
	require.NoError(t, err)
	mr.FastForward(2 * time.Hour)

	again, err := store.Claim(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, again)
}

func TestRedisStore_Release(t *testing.T) {
	store, _ := setupRedisStoreTest(t)
	ctx := context.Background()

	_, err := store.Claim(ctx, "evt-1")
	require.NoError(t, err)
	require.NoError(t, store.Release(ctx, "evt-1"))

	again, err := store.Claim(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, again)
}

func TestRedisStore_ClaimFailsWhenRedisDown(t *testing.T) {
	store, mr := setupRedisStoreTest(t)
	mr.Close()

	_, err := store.Claim(context.Background(), "evt-1")
	assert.Error(t, err)
}
