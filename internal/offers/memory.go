package offers

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/odyssey-erp/vendorsync/internal/catalog"
	"github.com/odyssey-erp/vendorsync/internal/shared"
)

// MemoryRepository keeps offers in process. Transactions do not roll back;
// LockProduct serialises writers per product for the span of WithTx.
type MemoryRepository struct {
	mu      sync.RWMutex
	nextID  int64
	offers  map[int64]Offer
	locks   *shared.KeyedMutex
	catalog catalog.Store
}

// NewMemoryRepository binds offers to a catalog store.
func NewMemoryRepository(store catalog.Store) *MemoryRepository {
	return &MemoryRepository{
		offers:  make(map[int64]Offer),
		locks:   shared.NewKeyedMutex(),
		catalog: store,
	}
}

func (r *MemoryRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx := &memoryTx{repo: r, held: make(map[int64]func())}
	defer tx.release()
	return fn(ctx, tx)
}

func (r *MemoryRepository) Get(_ context.Context, id int64) (Offer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.offers[id]
	if !ok {
		return Offer{}, ErrNotFound
	}
	return o, nil
}

func (r *MemoryRepository) FindByVendorKey(_ context.Context, vendorID int64, key string) (Offer, error) {
	if key == "" {
		return Offer{}, ErrNotFound
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	var (
		best  Offer
		found bool
	)
	for _, o := range r.offers {
		if o.VendorID == vendorID && o.VendorProductKey == key && (!found || o.ID < best.ID) {
			best, found = o, true
		}
	}
	if !found {
		return Offer{}, ErrNotFound
	}
	return best, nil
}

func (r *MemoryRepository) ListByProduct(_ context.Context, productID int64) ([]Offer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byProduct(productID), nil
}

func (r *MemoryRepository) ListProductIDs(_ context.Context, vendorID int64) ([]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	seen := make(map[int64]struct{})
	var ids []int64
	for _, o := range r.offers {
		if vendorID != 0 && o.VendorID != vendorID {
			continue
		}
		if _, ok := seen[o.ProductID]; !ok {
			seen[o.ProductID] = struct{}{}
			ids = append(ids, o.ProductID)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

func (r *MemoryRepository) byProduct(productID int64) []Offer {
	var out []Offer
	for _, o := range r.offers {
		if o.ProductID == productID {
			out = append(out, o)
		}
	}
	slices.SortFunc(out, func(a, b Offer) int { return compareInt64(a.ID, b.ID) })
	return out
}

type memoryTx struct {
	repo *MemoryRepository
	held map[int64]func()
}

func (t *memoryTx) release() {
	for _, unlock := range t.held {
		unlock()
	}
}

func (t *memoryTx) Catalog() catalog.Store { return t.repo.catalog }

func (t *memoryTx) Get(ctx context.Context, id int64) (Offer, error) {
	return t.repo.Get(ctx, id)
}

func (t *memoryTx) FindByVendorKey(ctx context.Context, vendorID int64, key string) (Offer, error) {
	return t.repo.FindByVendorKey(ctx, vendorID, key)
}

func (t *memoryTx) LockProduct(ctx context.Context, productID int64) ([]Offer, error) {
	if _, err := t.repo.catalog.Get(ctx, productID); err != nil {
		return nil, err
	}
	if _, ok := t.held[productID]; !ok {
		t.held[productID] = t.repo.locks.Lock(shared.ProductOffersLockKey(productID))
	}
	return t.repo.ListByProduct(ctx, productID)
}

func (t *memoryTx) Insert(_ context.Context, o Offer) (Offer, error) {
	r := t.repo
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.offers {
		if existing.VendorID == o.VendorID && existing.ProductID == o.ProductID {
			return Offer{}, ErrDuplicate
		}
	}
	r.nextID++
	now := time.Now().UTC()
	o.ID = r.nextID
	o.CreatedAt = now
	o.UpdatedAt = now
	r.offers[o.ID] = o
	return o, nil
}

func (t *memoryTx) Update(_ context.Context, o Offer) error {
	r := t.repo
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.offers[o.ID]
	if !ok {
		return ErrNotFound
	}
	o.VendorID = existing.VendorID
	o.ProductID = existing.ProductID
	o.IsPrimary = existing.IsPrimary
	o.CreatedAt = existing.CreatedAt
	o.UpdatedAt = time.Now().UTC()
	r.offers[o.ID] = o
	return nil
}

func (t *memoryTx) SetPrimary(_ context.Context, productID, offerID int64) error {
	r := t.repo
	r.mu.Lock()
	defer r.mu.Unlock()
	target, ok := r.offers[offerID]
	if !ok || target.ProductID != productID {
		return ErrNotFound
	}
	for id, o := range r.offers {
		if o.ProductID != productID {
			continue
		}
		o.IsPrimary = id == offerID
		r.offers[id] = o
	}
	return nil
}

func (t *memoryTx) DeleteByVendor(_ context.Context, vendorID int64) (int, error) {
	r := t.repo
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, o := range r.offers {
		if o.VendorID == vendorID {
			delete(r.offers, id)
			n++
		}
	}
	return n, nil
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
