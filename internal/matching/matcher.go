package matching

import (
	"context"
	"errors"

	"github.com/odyssey-erp/vendorsync/internal/catalog"
	"github.com/odyssey-erp/vendorsync/internal/offers"
	"github.com/odyssey-erp/vendorsync/internal/vendors"
)

// ProductFinder is the catalog lookup surface used for matching.
type ProductFinder interface {
	Get(ctx context.Context, id int64) (catalog.Product, error)
	FindBySKU(ctx context.Context, sku string) (catalog.Product, error)
	FindByBarcode(ctx context.Context, barcode string) (catalog.Product, error)
}

// OfferFinder resolves an existing vendor offer by its vendor-side key.
type OfferFinder interface {
	FindByVendorKey(ctx context.Context, vendorID int64, key string) (offers.Offer, error)
}

// Fallback is an optional external matching step run after the exact lookups.
type Fallback func(ctx context.Context, record vendors.NormalizedProduct, vendorID int64) (*catalog.Product, error)

// Matcher links normalized records to catalog products. The first exact hit
// wins: SKU, then barcode, then the vendor's own product key.
type Matcher struct {
	products ProductFinder
	offers   OfferFinder
	fallback Fallback
}

// NewMatcher constructs a Matcher. fallback may be nil.
func NewMatcher(products ProductFinder, offerFinder OfferFinder, fallback Fallback) *Matcher {
	return &Matcher{products: products, offers: offerFinder, fallback: fallback}
}

// Match returns the linked product or nil when nothing matches.
func (m *Matcher) Match(ctx context.Context, record vendors.NormalizedProduct, vendorID int64) (*catalog.Product, error) {
	if record.SKU != "" {
		p, err := m.products.FindBySKU(ctx, record.SKU)
		if hit, err := found(p, err); hit != nil || err != nil {
			return hit, err
		}
	}
	if record.Barcode != "" {
		p, err := m.products.FindByBarcode(ctx, record.Barcode)
		if hit, err := found(p, err); hit != nil || err != nil {
			return hit, err
		}
	}
	if record.VendorProductKey != "" && m.offers != nil {
		offer, err := m.offers.FindByVendorKey(ctx, vendorID, record.VendorProductKey)
		switch {
		case err == nil:
			p, err := m.products.Get(ctx, offer.ProductID)
			if hit, err := found(p, err); hit != nil || err != nil {
				return hit, err
			}
		case !errors.Is(err, offers.ErrNotFound):
			return nil, err
		}
	}
	if m.fallback != nil {
		return m.fallback(ctx, record, vendorID)
	}
	return nil, nil
}

func found(p catalog.Product, err error) (*catalog.Product, error) {
	if err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}
