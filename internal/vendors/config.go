package vendors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// ErrNotFound indicates an unknown vendor id.
var ErrNotFound = errors.New("vendors: vendor not found")

// Validate checks struct rules then the credentials each vendor type needs.
func Validate(cfg Config) error {
	if err := validate.Struct(cfg); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return &ConfigurationError{VendorID: cfg.ID, Field: fe.Field(), Reason: "failed " + fe.Tag()}
		}
		return &ConfigurationError{VendorID: cfg.ID, Field: "vendor", Reason: err.Error()}
	}
	if cfg.Filters.MinPrice.IsNegative() || cfg.Filters.MaxPrice.IsNegative() {
		return &ConfigurationError{VendorID: cfg.ID, Field: "filters", Reason: "price bounds cannot be negative"}
	}
	if !cfg.Filters.MaxPrice.IsZero() && cfg.Filters.MinPrice.GreaterThan(cfg.Filters.MaxPrice) {
		return &ConfigurationError{VendorID: cfg.ID, Field: "filters", Reason: "min_price cannot exceed max_price"}
	}
	return checkCredentials(cfg)
}

func checkCredentials(cfg Config) error {
	missing := func(field string) error {
		return &ConfigurationError{VendorID: cfg.ID, Field: field, Reason: "is required for " + string(cfg.Type)}
	}
	switch cfg.Type {
	case TypeAmazon:
		switch {
		case cfg.APIKey == "":
			return missing("api_key")
		case cfg.APISecret == "":
			return missing("api_secret")
		case cfg.AmazonAssociateTag == "":
			return missing("amazon_associate_tag")
		}
	case TypeEbay:
		if cfg.APIKey == "" {
			return missing("api_key")
		}
	case TypeShopify:
		switch {
		case cfg.ShopifyStoreName == "":
			return missing("shopify_store_name")
		case cfg.AccessToken == "":
			return missing("access_token")
		}
	case TypeGeneric:
		if cfg.ProductListURL == "" {
			return missing("product_list_url")
		}
	}
	return nil
}

// Registry holds validated vendor configuration in memory.
type Registry struct {
	mu      sync.RWMutex
	vendors map[int64]Config
}

// NewRegistry validates every config and rejects duplicate ids.
func NewRegistry(configs []Config) (*Registry, error) {
	reg := &Registry{vendors: make(map[int64]Config, len(configs))}
	for _, cfg := range configs {
		if err := Validate(cfg); err != nil {
			return nil, err
		}
		if _, dup := reg.vendors[cfg.ID]; dup {
			return nil, &ConfigurationError{VendorID: cfg.ID, Field: "id", Reason: "is duplicated"}
		}
		if cfg.Frequency == "" {
			cfg.Frequency = FrequencyManual
		}
		reg.vendors[cfg.ID] = cfg
	}
	return reg, nil
}

// LoadFile reads a JSON array of vendor configs from path.
func LoadFile(path string) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("vendors: read config: %w", err)
	}
	var configs []Config
	if err := json.Unmarshal(raw, &configs); err != nil {
		return nil, fmt.Errorf("vendors: decode config: %w", err)
	}
	return NewRegistry(configs)
}

// Get returns the vendor config for id.
func (r *Registry) Get(_ context.Context, id int64) (Config, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.vendors[id]
	if !ok {
		return Config{}, ErrNotFound
	}
	return cfg, nil
}

// List returns every vendor ordered by id.
func (r *Registry) List(_ context.Context) ([]Config, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Config, 0, len(r.vendors))
	for _, cfg := range r.vendors {
		out = append(out, cfg)
	}
	slices.SortFunc(out, func(a, b Config) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
	return out, nil
}

// MarkImported records a completed import.
func (r *Registry) MarkImported(_ context.Context, id int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cfg, ok := r.vendors[id]
	if !ok {
		return ErrNotFound
	}
	at = at.UTC()
	cfg.LastImportAt = &at
	r.vendors[id] = cfg
	return nil
}
