package vendors

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Type selects the adapter variant for a vendor.
type Type string

const (
	TypeAmazon  Type = "amazon"
	TypeEbay    Type = "ebay"
	TypeShopify Type = "shopify"
	TypeGeneric Type = "generic"
)

// Frequency is the scheduled import cadence.
type Frequency string

const (
	FrequencyManual  Frequency = "manual"
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// StockStatus reports vendor-side availability.
type StockStatus string

const (
	StockInStock      StockStatus = "in_stock"
	StockOutOfStock   StockStatus = "out_of_stock"
	StockLimited      StockStatus = "limited"
	StockPreorder     StockStatus = "preorder"
	StockDiscontinued StockStatus = "discontinued"
)

// Sellable reports whether an offer in this state can fulfil an order.
func (s StockStatus) Sellable() bool {
	return s == StockInStock || s == StockLimited
}

// RawRecord is one unparsed item in the layout of its vendor type.
type RawRecord = json.RawMessage

// NormalizedProduct is the vendor-neutral shape of a fetched record.
type NormalizedProduct struct {
	VendorProductKey string
	VendorURL        string
	Name             string
	Description      string
	Cost             decimal.Decimal
	Currency         string
	ImageURL         string
	SKU              string
	Barcode          string
	Brand            string
	Category         string
	Weight           decimal.Decimal
	QtyAvailable     decimal.Decimal
	StockStatus      StockStatus
}

// Filters drop records before pricing. Zero price bounds are disabled.
type Filters struct {
	MinPrice        decimal.Decimal `json:"min_price"`
	MaxPrice        decimal.Decimal `json:"max_price"`
	ExcludeKeywords []string        `json:"exclude_keywords"`
	ExcludeBrands   []string        `json:"exclude_brands"`
}

// Config describes one vendor connection and its import policy.
type Config struct {
	ID                 int64      `json:"id" validate:"required,gt=0"`
	Name               string     `json:"name" validate:"required"`
	Active             bool       `json:"active"`
	Type               Type       `json:"type" validate:"required,oneof=amazon ebay shopify generic"`
	WebsiteURL         string     `json:"website_url" validate:"required,url"`
	APIEndpoint        string     `json:"api_endpoint" validate:"omitempty,url"`
	APIKey             string     `json:"api_key"`
	APISecret          string     `json:"api_secret"`
	AccessToken        string     `json:"access_token"`
	AmazonAssociateTag string     `json:"amazon_associate_tag"`
	AmazonMarketplace  string     `json:"amazon_marketplace"`
	EbaySiteID         string     `json:"ebay_site_id"`
	ShopifyStoreName   string     `json:"shopify_store_name"`
	ProductListURL     string     `json:"product_list_url" validate:"omitempty,url"`
	Frequency          Frequency  `json:"import_frequency" validate:"omitempty,oneof=manual daily weekly monthly"`
	LastImportAt       *time.Time `json:"last_import_at,omitempty"`
	AutoCreate         bool       `json:"auto_create_products"`
	AutoUpdate         bool       `json:"auto_update"`
	UpdatePrices       bool       `json:"auto_update_prices"`
	Filters            Filters    `json:"filters"`
	// Feed is the JSON record feed: a file path or an http(s) URL.
	Feed string `json:"feed"`
}

// NextImportAt returns when the vendor is next due. ok is false for manual
// vendors and for vendors that never ran.
func (c Config) NextImportAt() (time.Time, bool) {
	if c.LastImportAt == nil {
		return time.Time{}, false
	}
	last := *c.LastImportAt
	switch c.Frequency {
	case FrequencyDaily:
		return last.Add(24 * time.Hour), true
	case FrequencyWeekly:
		return last.Add(7 * 24 * time.Hour), true
	case FrequencyMonthly:
		return last.Add(30 * 24 * time.Hour), true
	}
	return time.Time{}, false
}

// Due reports whether a scheduled import should run at now.
func (c Config) Due(now time.Time) bool {
	if !c.Active || c.Frequency == "" || c.Frequency == FrequencyManual {
		return false
	}
	next, ok := c.NextImportAt()
	if !ok {
		return true
	}
	return !now.Before(next)
}

// ErrConfiguration marks vendor settings that prevent a run from starting.
var ErrConfiguration = errors.New("vendors: invalid configuration")

// ConfigurationError reports a missing credential or malformed setting.
type ConfigurationError struct {
	VendorID int64
	Field    string
	Reason   string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("vendors: vendor %d: %s %s", e.VendorID, e.Field, e.Reason)
}

// Unwrap lets callers match ErrConfiguration.
func (e *ConfigurationError) Unwrap() error {
	return ErrConfiguration
}
