package shared

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryIdempotency(t *testing.T) {
	ctx := context.Background()
	guard := NewMemoryIdempotency()

	require.NoError(t, guard.CheckAndInsert(ctx, "1:req-1", "vendor_import"))
	require.ErrorIs(t, guard.CheckAndInsert(ctx, "1:req-1", "vendor_import"), ErrIdempotencyConflict)
	require.NoError(t, guard.CheckAndInsert(ctx, "1:req-1", "offer_reprice"), "keys are scoped per module")

	require.NoError(t, guard.Delete(ctx, "1:req-1", "vendor_import"))
	require.NoError(t, guard.CheckAndInsert(ctx, "1:req-1", "vendor_import"))

	require.Error(t, guard.CheckAndInsert(ctx, "", "vendor_import"))
	require.Error(t, guard.CheckAndInsert(ctx, "k", ""))
}

func TestIdempotencyStoreWithoutPool(t *testing.T) {
	ctx := context.Background()
	var nilStore *IdempotencyStore
	require.Error(t, nilStore.CheckAndInsert(ctx, "k", "m"))
	require.NoError(t, nilStore.Delete(ctx, "k", "m"))
	require.NoError(t, nilStore.Cleanup(ctx, 0))

	store := NewIdempotencyStore(nil, 0)
	require.Equal(t, defaultKeyTTL, store.ttl)
	require.Error(t, store.CheckAndInsert(ctx, "k", "m"))
}
