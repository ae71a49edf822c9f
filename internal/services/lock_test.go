package services

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRedisLocker_Exclusive(t *testing.T) {
	mr, client := newRedis(t)
	locker := NewRedisLocker(client)
	ctx := context.Background()

	release, ok, err := locker.Acquire(ctx, "job", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, mr.Exists(LockKeyPrefix+"job"))

	_, ok, err = locker.Acquire(ctx, "job", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, release(ctx))
	assert.False(t, mr.Exists(LockKeyPrefix+"job"))

	_, ok, err = locker.Acquire(ctx, "job", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLocker_ReleaseKeepsForeignLease(t *testing.T) {
	mr, client := newRedis(t)
	locker := NewRedisLocker(client)
	ctx := context.Background()

	release, ok, err := locker.Acquire(ctx, "job", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)
	_, ok, err = locker.Acquire(ctx, "job", time.Minute)
	require.NoError(t, err)
	require.True(t, ok, "expired lease is free")

	require.NoError(t, release(ctx))
	assert.True(t, mr.Exists(LockKeyPrefix+"job"), "stale holder must not release the new lease")
}

func TestRedisLocker_Unavailable(t *testing.T) {
	mr, client := newRedis(t)
	mr.Close()

	_, ok, err := NewRedisLocker(client).Acquire(context.Background(), "job", time.Minute)
	assert.Error(t, err)
	assert.False(t, ok)
}
