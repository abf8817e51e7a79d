package catalog

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// MemoryStore is an in-process Store for previews, local runs and tests.
type MemoryStore struct {
	mu       sync.RWMutex
	nextID   int64
	products map[int64]Product
}

// NewMemoryStore seeds the store with products. Seeded ids are kept.
func NewMemoryStore(seed ...Product) *MemoryStore {
	s := &MemoryStore{products: make(map[int64]Product)}
	for _, p := range seed {
		if p.ID == 0 {
			s.nextID++
			p.ID = s.nextID
		}
		if p.ID > s.nextID {
			s.nextID = p.ID
		}
		s.products[p.ID] = p
	}
	return s
}

func (s *MemoryStore) Get(_ context.Context, id int64) (Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return Product{}, ErrNotFound
	}
	return p, nil
}

func (s *MemoryStore) FindBySKU(_ context.Context, sku string) (Product, error) {
	return s.find(func(p Product) bool { return sku != "" && p.SKU == sku })
}

func (s *MemoryStore) FindByBarcode(_ context.Context, barcode string) (Product, error) {
	return s.find(func(p Product) bool { return barcode != "" && p.Barcode == barcode })
}

func (s *MemoryStore) find(match func(Product) bool) (Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var (
		best  Product
		found bool
	)
	for _, p := range s.products {
		if match(p) && (!found || p.ID < best.ID) {
			best, found = p, true
		}
	}
	if !found {
		return Product{}, ErrNotFound
	}
	return best, nil
}

func (s *MemoryStore) Create(_ context.Context, product Product) (Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.products {
		if (product.SKU != "" && p.SKU == product.SKU) || (product.Barcode != "" && p.Barcode == product.Barcode) {
			return Product{}, ErrDuplicate
		}
	}
	s.nextID++
	now := time.Now().UTC()
	product.ID = s.nextID
	product.CreatedAt = now
	product.UpdatedAt = now
	s.products[product.ID] = product
	return product, nil
}

func (s *MemoryStore) UpdatePricing(_ context.Context, id int64, update PricingUpdate) error {
	return s.update(id, func(p *Product) {
		p.SalePrice = update.SalePrice
		p.Cost = update.Cost
		at := update.SyncedAt
		p.LastVendorSync = &at
	})
}

func (s *MemoryStore) MarkSynced(_ context.Context, id int64, at time.Time) error {
	return s.update(id, func(p *Product) { p.LastVendorSync = &at })
}

func (s *MemoryStore) SetSalePrice(_ context.Context, id int64, price decimal.Decimal) error {
	return s.update(id, func(p *Product) { p.SalePrice = price })
}

func (s *MemoryStore) AttachImage(_ context.Context, id int64, image []byte) error {
	return s.update(id, func(p *Product) { p.Image = append([]byte(nil), image...) })
}

func (s *MemoryStore) update(id int64, fn func(*Product)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return ErrNotFound
	}
	fn(&p)
	p.UpdatedAt = time.Now().UTC()
	s.products[id] = p
	return nil
}

// Len reports the number of stored products.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.products)
}
