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

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return client, mr
}

func TestRedisLocker_ExclusiveUntilReleased(t *testing.T) {
	client, mr := setupTestRedis(t)
	locker := NewRedisLocker(client, "test:")
	ctx := context.Background()

	release, err := locker.TryLock(ctx, "load-batch:1:2", 10*time.Second)
	require.NoError(t, err)
	require.NotNil(t, release)
	assert.True(t, mr.Exists("test:lock:load-batch:1:2"))

	second, err := locker.TryLock(ctx, "load-batch:1:2", 10*time.Second)
	require.NoError(t, err)
	assert.Nil(t, second)

	other, err := locker.TryLock(ctx, "load-batch:1:3", 10*time.Second)
	require.NoError(t, err)
	require.NotNil(t, other)

	require.NoError(t, release(ctx))
	assert.False(t, mr.Exists("test:lock:load-batch:1:2"))

	again, err := locker.TryLock(ctx, "load-batch:1:2", 10*time.Second)
	require.NoError(t, err)
	assert.NotNil(t, again)
}

func TestRedisLocker_ReleaseKeepsForeignLock(t *testing.T) {
	client, mr := setupTestRedis(t)
	locker := NewRedisLocker(client, "")
	ctx := context.Background()

	release, err := locker.TryLock(ctx, "k", time.Second)
	require.NoError(t, err)
	require.NotNil(t, release)

	// lease expires and someone else takes it
	mr.FastForward(2 * time.Second)
	foreign, err := locker.TryLock(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, foreign)

	require.NoError(t, release(ctx))
	assert.True(t, mr.Exists("lock:k"))
}

func TestRedisLocker_ErrorWhenRedisDown(t *testing.T) {
	client, mr := setupTestRedis(t)
	mr.Close()

	_, err := NewRedisLocker(client, "").TryLock(context.Background(), "k", time.Second)
	assert.Error(t, err)
}

func TestLocalLocker(t *testing.T) {
	locker := NewLocalLocker()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	locker.nowFn = func() time.Time { return now }
	ctx := context.Background()

	release, err := locker.TryLock(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, release)

	blocked, err := locker.TryLock(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Nil(t, blocked)

	now = now.Add(2 * time.Minute)
	stolen, err := locker.TryLock(ctx, "k", time.Minute)
	require.NoError(t, err)
	require.NotNil(t, stolen)

	// stale release must not drop the new holder
	require.NoError(t, release(ctx))
	blocked, err = locker.TryLock(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.Nil(t, blocked)

	require.NoError(t, stolen(ctx))
	free, err := locker.TryLock(ctx, "k", time.Minute)
	require.NoError(t, err)
	assert.NotNil(t, free)
}
