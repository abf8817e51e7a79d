package shared

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/vendorsync/internal/platform/db"
)

// ErrIdempotencyConflict indicates a duplicate key.
var ErrIdempotencyConflict = errors.New("idempotent request already processed")

// IdempotencyGuard claims request keys once per module.
type IdempotencyGuard interface {
	CheckAndInsert(ctx context.Context, key, module string) error
	Delete(ctx context.Context, key, module string) error
}

const defaultKeyTTL = 24 * time.Hour

// IdempotencyStore persists claimed keys in PostgreSQL. A key older than the
// TTL may be claimed again, matching the expiry the Redis guard gets for free.
type IdempotencyStore struct {
	pool *pgxpool.Pool
	ttl  time.Duration
	now  func() time.Time
}

// NewIdempotencyStore constructs the store. ttl <= 0 uses 24h.
func NewIdempotencyStore(pool *pgxpool.Pool, ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = defaultKeyTTL
	}
	return &IdempotencyStore{pool: pool, ttl: ttl, now: time.Now}
}

// CheckAndInsert claims key for module, or reports ErrIdempotencyConflict
// while an unexpired claim exists.
func (s *IdempotencyStore) CheckAndInsert(ctx context.Context, key, module string) error {
	if s == nil || s.pool == nil {
		return errors.New("idempotency store not initialised")
	}
	if err := checkIdempotencyArgs(key, module); err != nil {
		return err
	}
	now := s.now()
	tag, err := s.pool.Exec(ctx, `INSERT INTO idempotency_keys (key, module, created_at) VALUES ($1, $2, $3)
ON CONFLICT (key, module) DO UPDATE SET created_at = EXCLUDED.created_at
WHERE idempotency_keys.created_at < $4`, key, module, now, now.Add(-s.ttl))
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return ErrIdempotencyConflict
		}
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrIdempotencyConflict
	}
	return nil
}

// Cleanup removes entries older than olderThan.
func (s *IdempotencyStore) Cleanup(ctx context.Context, olderThan time.Duration) error {
	if s == nil || s.pool == nil {
		return nil
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM idempotency_keys WHERE created_at < $1`, s.now().Add(-olderThan))
	return err
}

// Delete releases a key after the request it guarded failed.
func (s *IdempotencyStore) Delete(ctx context.Context, key, module string) error {
	if s == nil || s.pool == nil {
		return nil
	}
	if err := checkIdempotencyArgs(key, module); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM idempotency_keys WHERE key = $1 AND module = $2`, key, module)
	return err
}

// MemoryIdempotency keeps claimed keys in process without expiry.
type MemoryIdempotency struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

// NewMemoryIdempotency constructs MemoryIdempotency.
func NewMemoryIdempotency() *MemoryIdempotency {
	return &MemoryIdempotency{keys: make(map[string]struct{})}
}

func (m *MemoryIdempotency) CheckAndInsert(_ context.Context, key, module string) error {
	if err := checkIdempotencyArgs(key, module); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	id := scopedKey(key, module)
	if _, ok := m.keys[id]; ok {
		return ErrIdempotencyConflict
	}
	m.keys[id] = struct{}{}
	return nil
}

func (m *MemoryIdempotency) Delete(_ context.Context, key, module string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, scopedKey(key, module))
	return nil
}

func scopedKey(key, module string) string {
	return module + "\x00" + key
}

func checkIdempotencyArgs(key, module string) error {
	if key == "" {
		return errors.New("idempotency key required")
	}
	if module == "" {
		return errors.New("idempotency module required")
	}
	return nil
}
