package importer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/odyssey-erp/vendorsync/internal/shared"
	"github.com/redis/go-redis/v9"
)

// VendorLocker grants the per-vendor exclusion a run holds until it finishes.
type VendorLocker interface {
	Acquire(ctx context.Context, vendorID int64) (Lease, error)
}

// Lease is a held vendor lock.
type Lease interface {
	Refresh(ctx context.Context) error
	Release(ctx context.Context) error
}

// MemoryLocker serialises runs inside one process.
type MemoryLocker struct {
	locks *shared.KeyedMutex
}

// NewMemoryLocker constructs a MemoryLocker.
func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{locks: shared.NewKeyedMutex()}
}

func (l *MemoryLocker) Acquire(_ context.Context, vendorID int64) (Lease, error) {
	unlock, ok := l.locks.TryLock(shared.VendorImportLockKey(vendorID))
	if !ok {
		return nil, ErrConcurrencyConflict
	}
	return &memoryLease{unlock: unlock}, nil
}

type memoryLease struct {
	unlock func()
}

func (l *memoryLease) Refresh(context.Context) error { return nil }

func (l *memoryLease) Release(context.Context) error {
	if l.unlock != nil {
		l.unlock()
		l.unlock = nil
	}
	return nil
}

// RedisLocker serialises runs across workers through redislock.
type RedisLocker struct {
	client *redislock.Client
	ttl    time.Duration
}

// NewRedisLocker builds a locker whose leases expire after ttl unless refreshed.
func NewRedisLocker(rdb *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisLocker{client: redislock.New(rdb), ttl: ttl}
}

func (l *RedisLocker) Acquire(ctx context.Context, vendorID int64) (Lease, error) {
	lock, err := l.client.Obtain(ctx, shared.VendorImportLockKey(vendorID), l.ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrConcurrencyConflict
	}
	if err != nil {
		return nil, fmt.Errorf("importer: obtain vendor lock: %w", err)
	}
	return &redisLease{lock: lock, ttl: l.ttl}, nil
}

type redisLease struct {
	lock *redislock.Lock
	ttl  time.Duration
}

func (l *redisLease) Refresh(ctx context.Context) error {
	return l.lock.Refresh(ctx, l.ttl, nil)
}

func (l *redisLease) Release(ctx context.Context) error {
	err := l.lock.Release(ctx)
	if errors.Is(err, redislock.ErrLockNotHeld) {
		return nil
	}
	return err
}
