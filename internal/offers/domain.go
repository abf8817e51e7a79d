package offers

import (
	"errors"
	"time"

	"github.com/odyssey-erp/vendorsync/internal/catalog"
	"github.com/odyssey-erp/vendorsync/internal/vendors"
	"github.com/shopspring/decimal"
)

// SyncStatus tracks the last vendor sync of an offer.
type SyncStatus string

const (
	SyncSynced  SyncStatus = "synced"
	SyncPending SyncStatus = "pending"
	SyncError   SyncStatus = "error"
)

// Offer is one vendor's cost and stock knowledge about one catalog product.
type Offer struct {
	ID               int64               `json:"id"`
	VendorID         int64               `json:"vendor_id"`
	ProductID        int64               `json:"product_id"`
	VendorProductKey string              `json:"vendor_product_key"`
	VendorURL        string              `json:"vendor_url"`
	VendorSKU        string              `json:"vendor_sku"`
	VendorBarcode    string              `json:"vendor_barcode"`
	VendorName       string              `json:"vendor_name"`
	VendorBrand      string              `json:"vendor_brand"`
	VendorCategory   string              `json:"vendor_category"`
	Cost             decimal.Decimal     `json:"cost"`
	Currency         string              `json:"currency"`
	CalculatedPrice  decimal.Decimal     `json:"calculated_price"`
	QtyAvailable     decimal.Decimal     `json:"qty_available"`
	Weight           decimal.Decimal     `json:"weight"`
	StockStatus      vendors.StockStatus `json:"stock_status"`
	IsPrimary        bool                `json:"is_primary"`
	LastSyncAt       time.Time           `json:"last_sync_at"`
	SyncStatus       SyncStatus          `json:"sync_status"`
	SyncError        string              `json:"sync_error,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

// Policy controls what a reconcile may write.
type Policy struct {
	AutoCreate bool
	AutoUpdate bool
	// UpdatePrices also writes the computed sale price and cost to the catalog.
	UpdatePrices bool
}

// Result reports the outcome of reconciling one record.
type Result struct {
	Product *catalog.Product
	Offer   *Offer
	Created bool
	Updated bool
}

// PriceSource selects the cost a bulk reprice starts from.
type PriceSource string

const (
	SourceBestOffer    PriceSource = "best_offer"
	SourcePrimaryOffer PriceSource = "primary_offer"
	SourceManual       PriceSource = "manual"
)

// RepriceRequest scopes a bulk sale-price refresh. VendorID takes precedence
// over ProductIDs; with neither every product that has an offer is included.
type RepriceRequest struct {
	VendorID    int64           `json:"vendor_id"`
	ProductIDs  []int64         `json:"product_ids"`
	Source      PriceSource     `json:"source" validate:"required,oneof=best_offer primary_offer manual"`
	ManualPrice decimal.Decimal `json:"manual_price"`
	ApplyRules  bool            `json:"apply_rules"`
	Preview     bool            `json:"preview"`
}

// RepriceLine is a product whose sale price would change.
type RepriceLine struct {
	ProductID     int64           `json:"product_id"`
	CurrentPrice  decimal.Decimal `json:"current_price"`
	NewPrice      decimal.Decimal `json:"new_price"`
	Change        decimal.Decimal `json:"change"`
	ChangePercent decimal.Decimal `json:"change_percent"`
}

// RepriceSummary totals a bulk reprice.
type RepriceSummary struct {
	Lines   []RepriceLine `json:"lines"`
	Updated int           `json:"updated"`
	Failed  int           `json:"failed"`
	Preview bool          `json:"preview"`
}

var (
	// ErrNotFound indicates a missing offer.
	ErrNotFound = errors.New("offers: offer not found")
	// ErrDuplicate indicates the vendor already has an offer for the product.
	ErrDuplicate = errors.New("offers: duplicate vendor offer")
	// ErrInvalidReprice rejects a malformed reprice request.
	ErrInvalidReprice = errors.New("offers: invalid reprice request")
	// ErrSyncFailed reports an offer that could not be refreshed from its vendor.
	ErrSyncFailed = errors.New("offers: vendor sync failed")
	// ErrNoCalculatedPrice rejects applying an offer that was never priced.
	ErrNoCalculatedPrice = errors.New("offers: offer has no calculated price")
)
