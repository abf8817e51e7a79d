package offers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/odyssey-erp/vendorsync/internal/catalog"
	"github.com/odyssey-erp/vendorsync/internal/platform/db"
	"github.com/odyssey-erp/vendorsync/internal/vendors"
)

// Repository reads offers and opens write transactions.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Offer, error)
	FindByVendorKey(ctx context.Context, vendorID int64, key string) (Offer, error)
	ListByProduct(ctx context.Context, productID int64) ([]Offer, error)
	ListProductIDs(ctx context.Context, vendorID int64) ([]int64, error)
}

// TxRepository exposes the writes performed inside one transaction. Offers
// of a product are only modified after LockProduct returned for it.
type TxRepository interface {
	Get(ctx context.Context, id int64) (Offer, error)
	FindByVendorKey(ctx context.Context, vendorID int64, key string) (Offer, error)
	LockProduct(ctx context.Context, productID int64) ([]Offer, error)
	Insert(ctx context.Context, offer Offer) (Offer, error)
	Update(ctx context.Context, offer Offer) error
	SetPrimary(ctx context.Context, productID, offerID int64) error
	DeleteByVendor(ctx context.Context, vendorID int64) (int, error)
	Catalog() catalog.Store
}

type dbtx = catalog.DBTX

// PGRepository persists offers in PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
	db   dbtx
}

// NewPGRepository constructs PGRepository.
func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool, db: pool}
}

// WithTx runs fn in a repeatable-read transaction shared with the catalog.
func (r *PGRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &pgTx{db: tx, catalog: catalog.NewRepository(tx)})
	})
}

func (r *PGRepository) Get(ctx context.Context, id int64) (Offer, error) {
	return getOffer(ctx, r.db, id)
}

func (r *PGRepository) FindByVendorKey(ctx context.Context, vendorID int64, key string) (Offer, error) {
	return findByVendorKey(ctx, r.db, vendorID, key)
}

func (r *PGRepository) ListByProduct(ctx context.Context, productID int64) ([]Offer, error) {
	return queryOffers(ctx, r.db, `SELECT `+offerColumns+` FROM vendor_offers WHERE product_id = $1 ORDER BY id`, productID)
}

func (r *PGRepository) ListProductIDs(ctx context.Context, vendorID int64) ([]int64, error) {
	query := `SELECT DISTINCT product_id FROM vendor_offers WHERE ($1 = 0 OR vendor_id = $1) ORDER BY product_id`
	rows, err := r.db.Query(ctx, query, vendorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type pgTx struct {
	db      dbtx
	catalog *catalog.Repository
}

func (t *pgTx) Catalog() catalog.Store { return t.catalog }

func (t *pgTx) Get(ctx context.Context, id int64) (Offer, error) {
	return getOffer(ctx, t.db, id)
}

func (t *pgTx) FindByVendorKey(ctx context.Context, vendorID int64, key string) (Offer, error) {
	return findByVendorKey(ctx, t.db, vendorID, key)
}

// LockProduct takes the product row lock first so concurrent writers for the
// same product queue even when it has no offers yet.
func (t *pgTx) LockProduct(ctx context.Context, productID int64) ([]Offer, error) {
	var id int64
	if err := t.db.QueryRow(ctx, `SELECT id FROM catalog_products WHERE id = $1 FOR UPDATE`, productID).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, catalog.ErrNotFound
		}
		return nil, err
	}
	return queryOffers(ctx, t.db, `SELECT `+offerColumns+` FROM vendor_offers WHERE product_id = $1 ORDER BY id FOR UPDATE`, productID)
}

func (t *pgTx) Insert(ctx context.Context, o Offer) (Offer, error) {
	now := time.Now().UTC()
	query := `INSERT INTO vendor_offers (vendor_id, product_id, vendor_product_key, vendor_url, vendor_sku, vendor_barcode,
vendor_name, vendor_brand, vendor_category, cost, currency, calculated_price, qty_available, weight, stock_status,
is_primary, last_sync_at, sync_status, sync_error, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $20) RETURNING id`
	err := t.db.QueryRow(ctx, query,
		o.VendorID, o.ProductID, o.VendorProductKey, o.VendorURL, o.VendorSKU, o.VendorBarcode,
		o.VendorName, o.VendorBrand, o.VendorCategory, o.Cost, o.Currency, o.CalculatedPrice, o.QtyAvailable, o.Weight,
		string(o.StockStatus), o.IsPrimary, o.LastSyncAt, string(o.SyncStatus), o.SyncError, now,
	).Scan(&o.ID)
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return Offer{}, ErrDuplicate
		}
		return Offer{}, fmt.Errorf("offers: insert: %w", err)
	}
	o.CreatedAt = now
	o.UpdatedAt = now
	return o, nil
}

func (t *pgTx) Update(ctx context.Context, o Offer) error {
	query := `UPDATE vendor_offers SET vendor_product_key = $1, vendor_url = $2, vendor_sku = $3, vendor_barcode = $4,
vendor_name = $5, vendor_brand = $6, vendor_category = $7, cost = $8, currency = $9, calculated_price = $10,
qty_available = $11, weight = $12, stock_status = $13, last_sync_at = $14, sync_status = $15, sync_error = $16, updated_at = $17
WHERE id = $18`
	tag, err := t.db.Exec(ctx, query,
		o.VendorProductKey, o.VendorURL, o.VendorSKU, o.VendorBarcode, o.VendorName, o.VendorBrand, o.VendorCategory,
		o.Cost, o.Currency, o.CalculatedPrice, o.QtyAvailable, o.Weight, string(o.StockStatus), o.LastSyncAt,
		string(o.SyncStatus), o.SyncError, time.Now().UTC(), o.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetPrimary clears before setting so the partial unique index never sees two primaries.
func (t *pgTx) SetPrimary(ctx context.Context, productID, offerID int64) error {
	if _, err := t.db.Exec(ctx, `UPDATE vendor_offers SET is_primary = FALSE WHERE product_id = $1 AND id <> $2 AND is_primary`, productID, offerID); err != nil {
		return fmt.Errorf("offers: clear primary: %w", err)
	}
	tag, err := t.db.Exec(ctx, `UPDATE vendor_offers SET is_primary = TRUE WHERE id = $1 AND product_id = $2`, offerID, productID)
	if err != nil {
		return fmt.Errorf("offers: set primary: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *pgTx) DeleteByVendor(ctx context.Context, vendorID int64) (int, error) {
	tag, err := t.db.Exec(ctx, `DELETE FROM vendor_offers WHERE vendor_id = $1`, vendorID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

const offerColumns = `id, vendor_id, product_id, vendor_product_key, vendor_url, vendor_sku, vendor_barcode, vendor_name,
vendor_brand, vendor_category, cost, currency, calculated_price, qty_available, weight, stock_status, is_primary,
last_sync_at, sync_status, sync_error, created_at, updated_at`

func getOffer(ctx context.Context, q dbtx, id int64) (Offer, error) {
	return scanOffer(q.QueryRow(ctx, `SELECT `+offerColumns+` FROM vendor_offers WHERE id = $1`, id))
}

func findByVendorKey(ctx context.Context, q dbtx, vendorID int64, key string) (Offer, error) {
	if key == "" {
		return Offer{}, ErrNotFound
	}
	return scanOffer(q.QueryRow(ctx, `SELECT `+offerColumns+` FROM vendor_offers WHERE vendor_id = $1 AND vendor_product_key = $2 ORDER BY id LIMIT 1`, vendorID, key))
}

func queryOffers(ctx context.Context, q dbtx, query string, args ...any) ([]Offer, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Offer
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func scanOffer(row pgx.Row) (Offer, error) {
	var (
		o                 Offer
		stock, syncStatus string
	)
	err := row.Scan(&o.ID, &o.VendorID, &o.ProductID, &o.VendorProductKey, &o.VendorURL, &o.VendorSKU, &o.VendorBarcode,
		&o.VendorName, &o.VendorBrand, &o.VendorCategory, &o.Cost, &o.Currency, &o.CalculatedPrice, &o.QtyAvailable,
		&o.Weight, &stock, &o.IsPrimary, &o.LastSyncAt, &syncStatus, &o.SyncError, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Offer{}, ErrNotFound
		}
		return Offer{}, err
	}
	o.StockStatus = vendors.StockStatus(stock)
	o.SyncStatus = SyncStatus(syncStatus)
	return o, nil
}
