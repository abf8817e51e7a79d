package catalog

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Product is the sellable catalog item vendors are reconciled against.
type Product struct {
	ID             int64
	SKU            string
	Barcode        string
	CategoryID     *int64
	Name           string
	Description    string
	SalePrice      decimal.Decimal
	Cost           decimal.Decimal
	Weight         decimal.Decimal
	IsImported     bool
	LastVendorSync *time.Time
	Image          []byte
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// PricingUpdate carries the fields a vendor sync may overwrite.
type PricingUpdate struct {
	SalePrice decimal.Decimal
	Cost      decimal.Decimal
	SyncedAt  time.Time
}

var (
	// ErrNotFound indicates no product matched the lookup.
	ErrNotFound = errors.New("catalog: product not found")
	// ErrDuplicate indicates the SKU or barcode is already taken.
	ErrDuplicate = errors.New("catalog: duplicate sku or barcode")
)
