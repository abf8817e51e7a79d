package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/vendorsync/internal/shared"
)

// New creates a new Redis client.
func New(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("platform/cache: ping: %w", err)
	}

	return client, nil
}

// Idempotency claims request keys in Redis with a retention window.
type Idempotency struct {
	client *redis.Client
	ttl    time.Duration
}

// NewIdempotency constructs a Redis backed idempotency guard.
func NewIdempotency(client *redis.Client, ttl time.Duration) *Idempotency {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Idempotency{client: client, ttl: ttl}
}

func (i *Idempotency) CheckAndInsert(ctx context.Context, key, module string) error {
	if key == "" || module == "" {
		return errors.New("platform/cache: idempotency key and module required")
	}
	ok, err := i.client.SetNX(ctx, idempotencyKey(key, module), time.Now().UTC().Format(time.RFC3339), i.ttl).Result()
	if err != nil {
		return fmt.Errorf("platform/cache: claim idempotency key: %w", err)
	}
	if !ok {
		return shared.ErrIdempotencyConflict
	}
	return nil
}

func (i *Idempotency) Delete(ctx context.Context, key, module string) error {
	return i.client.Del(ctx, idempotencyKey(key, module)).Err()
}

func idempotencyKey(key, module string) string {
	return "vendorsync:idempotency:" + module + ":" + key
}
