package lock_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/asheth-dev/backend-daan/internal/lock"
)

func newLocker(t *testing.T) (*lock.Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return &lock.Locker{Client: rdb, TTL: time.Minute}, mr
}

func TestAcquireAndRelease(t *testing.T) {
	locker, _ := newLocker(t)
	ctx := context.Background()

	lease, err := locker.Acquire(ctx, "sweep")
	require.NoError(t, err)

	_, err = locker.Acquire(ctx, "sweep")
	require.True(t, errors.Is(err, lock.ErrNotAcquired))

	require.NoError(t, lease.Release(ctx))

	_, err = locker.Acquire(ctx, "sweep")
	require.NoError(t, err)
}

func TestReleaseAfterExpiryDoesNotStealNewHolder(t *testing.T) {
	locker, mr := newLocker(t)
	ctx := context.Background()

	stale, err := locker.Acquire(ctx, "sweep")
	require.NoError(t, err)

	// The lock expires and another worker takes it over.
	mr.FastForward(2 * time.Minute)
	fresh, err := locker.Acquire(ctx, "sweep")
	require.NoError(t, err)

	// The stale holder's release must not evict the new holder.
	require.NoError(t, stale.Release(ctx))
	_, err = locker.Acquire(ctx, "sweep")
	require.True(t, errors.Is(err, lock.ErrNotAcquired))

	require.NoError(t, fresh.Release(ctx))
}
