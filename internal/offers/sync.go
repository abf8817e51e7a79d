package offers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/odyssey-erp/vendorsync/internal/catalog"
	"github.com/odyssey-erp/vendorsync/internal/vendors"
	"github.com/shopspring/decimal"
)

const defaultSyncTimeout = 30 * time.Second

// VendorAdapters builds the adapter of a vendor by id.
type VendorAdapters func(ctx context.Context, vendorID int64) (vendors.Adapter, error)

// WithAdapters enables single offer syncs. timeout bounds the feed fetch.
func (r *Reconciler) WithAdapters(adapters VendorAdapters, timeout time.Duration) *Reconciler {
	if timeout <= 0 {
		timeout = defaultSyncTimeout
	}
	r.adapters = adapters
	r.adapterTimeout = timeout
	return r
}

// SyncOffer refetches the vendor feed and refreshes offerID from the record
// carrying its vendor product key. The product itself is left untouched. A
// record that cannot be fetched, found or priced marks the offer as errored.
func (r *Reconciler) SyncOffer(ctx context.Context, offerID int64) (Offer, error) {
	offer, err := r.repo.Get(ctx, offerID)
	if err != nil {
		return Offer{}, err
	}
	record, price, err := r.refetch(ctx, offer)
	if err != nil {
		if syncErr := r.RecordSyncError(context.WithoutCancel(ctx), offer.VendorID, offer.VendorProductKey, err); syncErr != nil {
			r.logger.Warn("record offer sync error", slog.Int64("offer_id", offerID), slog.Any("error", syncErr))
		}
		return Offer{}, fmt.Errorf("%w: offer %d: %w", ErrSyncFailed, offerID, err)
	}

	var synced Offer
	err = r.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		locked, err := tx.LockProduct(ctx, offer.ProductID)
		if err != nil {
			return err
		}
		current, ok := byID(locked, offerID)
		if !ok {
			return ErrNotFound
		}
		applyRecord(&current, record, price, r.now())
		if err := tx.Update(ctx, current); err != nil {
			return err
		}
		synced = current
		return nil
	})
	if err != nil {
		return Offer{}, err
	}
	r.logger.Info("vendor offer synced",
		slog.Int64("offer_id", offerID),
		slog.Int64("vendor_id", offer.VendorID),
		slog.String("vendor_product_key", offer.VendorProductKey))
	return synced, nil
}

func (r *Reconciler) refetch(ctx context.Context, offer Offer) (vendors.NormalizedProduct, decimal.Decimal, error) {
	if r.adapters == nil {
		return vendors.NormalizedProduct{}, decimal.Zero, errors.New("vendor feeds are not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, r.adapterTimeout)
	defer cancel()

	adapter, err := r.adapters(ctx, offer.VendorID)
	if err != nil {
		return vendors.NormalizedProduct{}, decimal.Zero, err
	}
	raw, err := adapter.FetchRecords(ctx)
	if err != nil {
		return vendors.NormalizedProduct{}, decimal.Zero, err
	}
	for _, item := range raw {
		record, err := adapter.Normalize(item)
		if err != nil || record.VendorProductKey != offer.VendorProductKey {
			continue
		}
		price, err := r.priceFor(ctx, offer, record.Cost)
		if err != nil {
			return vendors.NormalizedProduct{}, decimal.Zero, err
		}
		return record, price, nil
	}
	return vendors.NormalizedProduct{}, decimal.Zero, fmt.Errorf("vendor no longer lists %q", offer.VendorProductKey)
}

// priceFor quotes cost in the product's category. Without a quoter the
// offer keeps its previous calculated price.
func (r *Reconciler) priceFor(ctx context.Context, offer Offer, cost decimal.Decimal) (decimal.Decimal, error) {
	if r.quoter == nil {
		return offer.CalculatedPrice, nil
	}
	product, err := r.catalog.Get(ctx, offer.ProductID)
	if err != nil {
		return decimal.Zero, err
	}
	vendorID := offer.VendorID
	quote, err := r.quoter.Quote(cost, product.CategoryID, &vendorID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("price: %w", err)
	}
	return quote.Price, nil
}

// ApplyOfferPrice sets the product's sale price to the offer's calculated
// price and returns the updated product.
func (r *Reconciler) ApplyOfferPrice(ctx context.Context, offerID int64) (catalog.Product, error) {
	offer, err := r.repo.Get(ctx, offerID)
	if err != nil {
		return catalog.Product{}, err
	}
	if !offer.CalculatedPrice.IsPositive() {
		return catalog.Product{}, fmt.Errorf("%w: offer %d", ErrNoCalculatedPrice, offerID)
	}
	if err := r.catalog.SetSalePrice(ctx, offer.ProductID, offer.CalculatedPrice); err != nil {
		return catalog.Product{}, fmt.Errorf("offers: apply offer %d price: %w", offerID, err)
	}
	r.logger.Info("offer price applied",
		slog.Int64("offer_id", offerID),
		slog.Int64("product_id", offer.ProductID),
		slog.String("sale_price", offer.CalculatedPrice.String()))
	return r.catalog.Get(ctx, offer.ProductID)
}

func byID(list []Offer, id int64) (Offer, bool) {
	for _, o := range list {
		if o.ID == id {
			return o, true
		}
	}
	return Offer{}, false
}
