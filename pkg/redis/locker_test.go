package redis_test

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/reviewkit/pkg/redis"
)

func testLocker(t *testing.T, ttl time.Duration) *redis.Locker {
	t.Helper()

	url := os.Getenv("REDIS_TEST_URL")
	if url == "" {
		t.Skip("REDIS_TEST_URL not set")
	}

	cfg := redis.Config{
		ConnectionURL:    url,
		RetryAttempts:    1,
		ConnectTimeout:   5 * time.Second,
		LockPrefix:       "reviewkit-test:" + uuid.NewString() + ":",
		LockTTL:          ttl,
		LockPollInterval: 5 * time.Millisecond,
	}
	client, err := redis.Connect(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return redis.NewLocker(client, cfg)
}

func TestConnect_EmptyURL(t *testing.T) {
	t.Parallel()

	_, err := redis.Connect(context.Background(), redis.Config{})
	assert.ErrorIs(t, err, redis.ErrEmptyConnectionURL)
}

func TestConnect_BadURL(t *testing.T) {
	t.Parallel()

	_, err := redis.Connect(context.Background(), redis.Config{ConnectionURL: "mysql://nope"})
	assert.ErrorIs(t, err, redis.ErrFailedToParseRedisConnString)
}

func TestLocker_Serializes(t *testing.T) {
	t.Parallel()

	locker := testLocker(t, 10*time.Second)
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		inside  atomic.Int32
		maxSeen atomic.Int32
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locker.Lock(ctx, "item")
			if !assert.NoError(t, err) {
				return
			}
			n := inside.Add(1)
			if n > maxSeen.Load() {
				maxSeen.Store(n)
			}
			time.Sleep(2 * time.Millisecond)
			inside.Add(-1)
			assert.NoError(t, release(ctx))
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxSeen.Load())
	held, err := locker.Held(ctx, "item")
	require.NoError(t, err)
	assert.False(t, held)
}

func TestLocker_ContextCancel(t *testing.T) {
	t.Parallel()

	locker := testLocker(t, 10*time.Second)
	ctx := context.Background()

	release, err := locker.Lock(ctx, "busy")
	require.NoError(t, err)
	defer release(ctx) //nolint:errcheck

	waitCtx, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(waitCtx, "busy")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLocker_ExpiredRelease(t *testing.T) {
	t.Parallel()

	locker := testLocker(t, 20*time.Millisecond)
	ctx := context.Background()

	release, err := locker.Lock(ctx, "short")
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)

	other, err := locker.Lock(ctx, "short")
	require.NoError(t, err)

	assert.ErrorIs(t, release(ctx), redis.ErrLockNotHeld)
	assert.ErrorIs(t, release(ctx), redis.ErrLockNotHeld, "release is idempotent")

	held, err := locker.Held(ctx, "short")
	require.NoError(t, err)
	assert.True(t, held, "a stale release must not drop someone else's lock")
	assert.NoError(t, other(ctx))
}
