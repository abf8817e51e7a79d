package offers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/odyssey-erp/vendorsync/internal/catalog"
	"github.com/odyssey-erp/vendorsync/internal/pricing"
	"github.com/odyssey-erp/vendorsync/internal/vendors"
	"github.com/shopspring/decimal"
)

// Quoter prices a cost in a category and vendor context.
type Quoter interface {
	Quote(cost decimal.Decimal, category, vendor *int64) (pricing.Quote, error)
}

// Reconciler writes vendor knowledge into offers and the catalog.
type Reconciler struct {
	repo     Repository
	catalog  catalog.Store
	quoter   Quoter
	logger   *slog.Logger
	validate *validator.Validate
	now      func() time.Time

	adapters       VendorAdapters
	adapterTimeout time.Duration
}

// NewReconciler constructs a Reconciler. quoter may be nil when bulk
// repricing with rules is not needed.
func NewReconciler(repo Repository, store catalog.Store, quoter Quoter, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		repo:     repo,
		catalog:  store,
		quoter:   quoter,
		logger:   logger,
		validate: validator.New(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Reconcile applies one normalized record for vendorID. matched is the result
// of product matching and may be nil. price is the computed sale price.
func (r *Reconciler) Reconcile(ctx context.Context, record vendors.NormalizedProduct, vendorID int64, matched *catalog.Product, policy Policy, price decimal.Decimal) (Result, error) {
	switch {
	case matched == nil && !policy.AutoCreate:
		return Result{}, nil
	case matched == nil:
		return r.create(ctx, record, vendorID, price)
	case !policy.AutoUpdate:
		product := *matched
		return Result{Product: &product}, nil
	}
	return r.update(ctx, record, vendorID, matched.ID, policy, price)
}

func (r *Reconciler) create(ctx context.Context, record vendors.NormalizedProduct, vendorID int64, price decimal.Decimal) (Result, error) {
	var result Result
	err := r.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		now := r.now()
		product, err := tx.Catalog().Create(ctx, catalog.Product{
			SKU:            record.SKU,
			Barcode:        record.Barcode,
			Name:           record.Name,
			Description:    record.Description,
			SalePrice:      price,
			Cost:           record.Cost,
			Weight:         record.Weight,
			IsImported:     true,
			LastVendorSync: &now,
		})
		if err != nil {
			return fmt.Errorf("offers: create product: %w", err)
		}
		offer, err := tx.Insert(ctx, newOffer(record, vendorID, product.ID, price, now))
		if err != nil {
			return err
		}
		result = Result{Product: &product, Offer: &offer, Created: true}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	r.logger.Debug("vendor product created",
		slog.Int64("vendor_id", vendorID),
		slog.String("vendor_product_key", record.VendorProductKey),
		slog.Int64("product_id", result.Product.ID))
	return result, nil
}

func (r *Reconciler) update(ctx context.Context, record vendors.NormalizedProduct, vendorID, productID int64, policy Policy, price decimal.Decimal) (Result, error) {
	var result Result
	err := r.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		existing, err := tx.LockProduct(ctx, productID)
		if err != nil {
			return err
		}
		now := r.now()
		var offer Offer
		if current, ok := forVendor(existing, vendorID); ok {
			offer = current
			applyRecord(&offer, record, price, now)
			if err := tx.Update(ctx, offer); err != nil {
				return err
			}
		} else {
			offer, err = tx.Insert(ctx, newOffer(record, vendorID, productID, price, now))
			if err != nil {
				return err
			}
		}
		store := tx.Catalog()
		if policy.UpdatePrices {
			err = store.UpdatePricing(ctx, productID, catalog.PricingUpdate{SalePrice: price, Cost: record.Cost, SyncedAt: now})
		} else {
			err = store.MarkSynced(ctx, productID, now)
		}
		if err != nil {
			return fmt.Errorf("offers: update product %d: %w", productID, err)
		}
		product, err := store.Get(ctx, productID)
		if err != nil {
			return err
		}
		result = Result{Product: &product, Offer: &offer, Updated: true}
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	return result, nil
}

func forVendor(offers []Offer, vendorID int64) (Offer, bool) {
	for _, o := range offers {
		if o.VendorID == vendorID {
			return o, true
		}
	}
	return Offer{}, false
}

func newOffer(record vendors.NormalizedProduct, vendorID, productID int64, price decimal.Decimal, now time.Time) Offer {
	o := Offer{VendorID: vendorID, ProductID: productID}
	applyRecord(&o, record, price, now)
	return o
}

func applyRecord(o *Offer, record vendors.NormalizedProduct, price decimal.Decimal, now time.Time) {
	o.VendorProductKey = record.VendorProductKey
	o.VendorURL = record.VendorURL
	o.VendorSKU = record.SKU
	o.VendorBarcode = record.Barcode
	o.VendorName = record.Name
	o.VendorBrand = record.Brand
	o.VendorCategory = record.Category
	o.Cost = record.Cost
	o.Currency = record.Currency
	o.CalculatedPrice = price
	o.QtyAvailable = record.QtyAvailable
	o.Weight = record.Weight
	o.StockStatus = record.StockStatus
	if o.StockStatus == "" {
		o.StockStatus = vendors.StockInStock
	}
	o.LastSyncAt = now
	o.SyncStatus = SyncSynced
	o.SyncError = ""
}

// SetPrimary makes offerID the product's primary offer and clears every other
// primary flag of that product inside one locked transaction.
func (r *Reconciler) SetPrimary(ctx context.Context, offerID int64) (Offer, error) {
	var offer Offer
	err := r.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		target, err := tx.Get(ctx, offerID)
		if err != nil {
			return err
		}
		locked, err := tx.LockProduct(ctx, target.ProductID)
		if err != nil {
			return err
		}
		target, ok := byID(locked, offerID)
		if !ok {
			return ErrNotFound
		}
		if err := tx.SetPrimary(ctx, target.ProductID, target.ID); err != nil {
			return err
		}
		target.IsPrimary = true
		offer = target
		return nil
	})
	return offer, err
}

// BestOffer returns the cheapest sellable offer of a product or nil.
func (r *Reconciler) BestOffer(ctx context.Context, productID int64) (*Offer, error) {
	list, err := r.repo.ListByProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	return SelectBest(list), nil
}

// SelectBest picks the minimum cost among in_stock and limited offers. Ties
// go to the earliest sync, then the lowest vendor id.
func SelectBest(list []Offer) *Offer {
	var best *Offer
	for i := range list {
		o := list[i]
		if !o.StockStatus.Sellable() {
			continue
		}
		if best == nil || better(o, *best) {
			best = &o
		}
	}
	return best
}

func better(a, b Offer) bool {
	if c := a.Cost.Cmp(b.Cost); c != 0 {
		return c < 0
	}
	if !a.LastSyncAt.Equal(b.LastSyncAt) {
		return a.LastSyncAt.Before(b.LastSyncAt)
	}
	return a.VendorID < b.VendorID
}

// PrimaryOffer returns the product's primary offer or nil.
func (r *Reconciler) PrimaryOffer(ctx context.Context, productID int64) (*Offer, error) {
	list, err := r.repo.ListByProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	for i := range list {
		if list[i].IsPrimary {
			o := list[i]
			return &o, nil
		}
	}
	return nil, nil
}

// RecordSyncError flags the vendor's offer for key as failed.
func (r *Reconciler) RecordSyncError(ctx context.Context, vendorID int64, key string, cause error) error {
	if cause == nil {
		return nil
	}
	return r.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		offer, err := tx.FindByVendorKey(ctx, vendorID, key)
		if err != nil {
			return err
		}
		if _, err := tx.LockProduct(ctx, offer.ProductID); err != nil {
			return err
		}
		offer.SyncStatus = SyncError
		offer.SyncError = cause.Error()
		return tx.Update(ctx, offer)
	})
}

// RemoveVendor deletes every offer of a vendor and returns how many went.
func (r *Reconciler) RemoveVendor(ctx context.Context, vendorID int64) (int, error) {
	var removed int
	err := r.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		n, err := tx.DeleteByVendor(ctx, vendorID)
		removed = n
		return err
	})
	if err != nil {
		return 0, err
	}
	r.logger.Info("vendor offers removed", slog.Int64("vendor_id", vendorID), slog.Int("count", removed))
	return removed, nil
}

// Reprice recomputes sale prices from offer costs. With Preview set nothing
// is written and Updated stays zero.
func (r *Reconciler) Reprice(ctx context.Context, req RepriceRequest) (RepriceSummary, error) {
	if err := r.validate.Struct(req); err != nil {
		return RepriceSummary{}, fmt.Errorf("%w: %w", ErrInvalidReprice, err)
	}
	if req.Source == SourceManual && req.ManualPrice.IsNegative() {
		return RepriceSummary{}, fmt.Errorf("%w: manual price cannot be negative", ErrInvalidReprice)
	}
	if req.ApplyRules && req.Source != SourceManual && r.quoter == nil {
		return RepriceSummary{}, fmt.Errorf("%w: no pricing rules configured", ErrInvalidReprice)
	}

	ids := req.ProductIDs
	if req.VendorID != 0 || len(ids) == 0 {
		var err error
		ids, err = r.repo.ListProductIDs(ctx, req.VendorID)
		if err != nil {
			return RepriceSummary{}, err
		}
	}

	summary := RepriceSummary{Preview: req.Preview}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		line, ok, err := r.repriceLine(ctx, id, req)
		if err != nil {
			summary.Failed++
			r.logger.Error("reprice product", slog.Int64("product_id", id), slog.Any("error", err))
			continue
		}
		if !ok {
			continue
		}
		summary.Lines = append(summary.Lines, line)
		if req.Preview {
			continue
		}
		if err := r.catalog.SetSalePrice(ctx, id, line.NewPrice); err != nil {
			summary.Failed++
			r.logger.Error("update sale price", slog.Int64("product_id", id), slog.Any("error", err))
			continue
		}
		summary.Updated++
	}
	return summary, nil
}

func (r *Reconciler) repriceLine(ctx context.Context, productID int64, req RepriceRequest) (RepriceLine, bool, error) {
	product, err := r.catalog.Get(ctx, productID)
	if err != nil {
		return RepriceLine{}, false, err
	}
	var newPrice decimal.Decimal
	switch req.Source {
	case SourceManual:
		newPrice = req.ManualPrice
	default:
		var offer *Offer
		if req.Source == SourcePrimaryOffer {
			offer, err = r.PrimaryOffer(ctx, productID)
		} else {
			offer, err = r.BestOffer(ctx, productID)
		}
		if err != nil {
			return RepriceLine{}, false, err
		}
		if offer == nil {
			return RepriceLine{}, false, nil
		}
		newPrice = offer.Cost
		if req.ApplyRules {
			vendorID := offer.VendorID
			quote, err := r.quoter.Quote(offer.Cost, product.CategoryID, &vendorID)
			if err != nil {
				return RepriceLine{}, false, err
			}
			newPrice = quote.Price
		}
	}
	if newPrice.Equal(product.SalePrice) {
		return RepriceLine{}, false, nil
	}
	change := newPrice.Sub(product.SalePrice)
	pct := decimal.Zero
	if product.SalePrice.IsPositive() {
		pct = change.Div(product.SalePrice).Mul(decimal.NewFromInt(100)).Round(2)
	}
	return RepriceLine{
		ProductID:     productID,
		CurrentPrice:  product.SalePrice,
		NewPrice:      newPrice,
		Change:        change,
		ChangePercent: pct,
	}, true, nil
}

// IsNotFound reports whether err means a missing offer or product.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, catalog.ErrNotFound)
}
