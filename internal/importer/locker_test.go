package importer

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestMemoryLocker(t *testing.T) {
	ctx := context.Background()
	locker := NewMemoryLocker()

	lease, err := locker.Acquire(ctx, 1)
	require.NoError(t, err)
	_, err = locker.Acquire(ctx, 1)
	require.ErrorIs(t, err, ErrConcurrencyConflict)

	other, err := locker.Acquire(ctx, 2)
	require.NoError(t, err)
	require.NoError(t, other.Release(ctx))

	require.NoError(t, lease.Refresh(ctx))
	require.NoError(t, lease.Release(ctx))
	require.NoError(t, lease.Release(ctx))
	lease, err = locker.Acquire(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, lease.Release(ctx))
}

func TestRedisLocker(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	locker := NewRedisLocker(rdb, time.Minute)
	lease, err := locker.Acquire(ctx, 9)
	require.NoError(t, err)
	require.True(t, mr.Exists("vendorsync:import:vendor:9"))

	_, err = NewRedisLocker(rdb, time.Minute).Acquire(ctx, 9)
	require.ErrorIs(t, err, ErrConcurrencyConflict)

	require.NoError(t, lease.Refresh(ctx))
	require.NoError(t, lease.Release(ctx))
	require.False(t, mr.Exists("vendorsync:import:vendor:9"))

	lease, err = locker.Acquire(ctx, 9)
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)
	require.NoError(t, lease.Release(ctx), "releasing an expired lease is not an error")
}
