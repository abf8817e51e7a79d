package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/vendorsync/internal/platform/db"
)

// Store is the catalog surface the importer and reconciler depend on.
type Store interface {
	Get(ctx context.Context, id int64) (Product, error)
	FindBySKU(ctx context.Context, sku string) (Product, error)
	FindByBarcode(ctx context.Context, barcode string) (Product, error)
	Create(ctx context.Context, product Product) (Product, error)
	UpdatePricing(ctx context.Context, id int64, update PricingUpdate) error
	MarkSynced(ctx context.Context, id int64, at time.Time) error
	SetSalePrice(ctx context.Context, id int64, price decimal.Decimal) error
	AttachImage(ctx context.Context, id int64, image []byte) error
}

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository persists products in PostgreSQL.
type Repository struct {
	db DBTX
}

// NewRepository binds the repository to a pool or an open transaction.
func NewRepository(db DBTX) *Repository {
	return &Repository{db: db}
}

const productColumns = `id, sku, barcode, category_id, name, description, sale_price, cost, weight, is_imported, last_vendor_sync, created_at, updated_at`

func (r *Repository) Get(ctx context.Context, id int64) (Product, error) {
	return r.scanOne(ctx, `SELECT `+productColumns+` FROM catalog_products WHERE id = $1`, id)
}

func (r *Repository) FindBySKU(ctx context.Context, sku string) (Product, error) {
	if sku == "" {
		return Product{}, ErrNotFound
	}
	return r.scanOne(ctx, `SELECT `+productColumns+` FROM catalog_products WHERE sku = $1`, sku)
}

func (r *Repository) FindByBarcode(ctx context.Context, barcode string) (Product, error) {
	if barcode == "" {
		return Product{}, ErrNotFound
	}
	return r.scanOne(ctx, `SELECT `+productColumns+` FROM catalog_products WHERE barcode = $1`, barcode)
}

func (r *Repository) Create(ctx context.Context, product Product) (Product, error) {
	now := time.Now().UTC()
	query := `INSERT INTO catalog_products (sku, barcode, category_id, name, description, sale_price, cost, weight, is_imported, last_vendor_sync, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11) RETURNING id`
	err := r.db.QueryRow(ctx, query,
		nullable(product.SKU), nullable(product.Barcode), product.CategoryID, product.Name, product.Description,
		product.SalePrice, product.Cost, product.Weight, product.IsImported, product.LastVendorSync, now,
	).Scan(&product.ID)
	if err != nil {
		if db.IsUniqueViolation(err, "") {
			return Product{}, ErrDuplicate
		}
		return Product{}, fmt.Errorf("catalog: insert product: %w", err)
	}
	product.CreatedAt = now
	product.UpdatedAt = now
	return product, nil
}

func (r *Repository) UpdatePricing(ctx context.Context, id int64, update PricingUpdate) error {
	tag, err := r.db.Exec(ctx, `UPDATE catalog_products SET sale_price = $1, cost = $2, last_vendor_sync = $3, updated_at = $4 WHERE id = $5`,
		update.SalePrice, update.Cost, update.SyncedAt, time.Now().UTC(), id)
	return affected(tag, err)
}

func (r *Repository) MarkSynced(ctx context.Context, id int64, at time.Time) error {
	tag, err := r.db.Exec(ctx, `UPDATE catalog_products SET last_vendor_sync = $1, updated_at = $2 WHERE id = $3`, at, time.Now().UTC(), id)
	return affected(tag, err)
}

func (r *Repository) SetSalePrice(ctx context.Context, id int64, price decimal.Decimal) error {
	tag, err := r.db.Exec(ctx, `UPDATE catalog_products SET sale_price = $1, updated_at = $2 WHERE id = $3`, price, time.Now().UTC(), id)
	return affected(tag, err)
}

func (r *Repository) AttachImage(ctx context.Context, id int64, image []byte) error {
	tag, err := r.db.Exec(ctx, `UPDATE catalog_products SET image = $1, updated_at = $2 WHERE id = $3`, image, time.Now().UTC(), id)
	return affected(tag, err)
}

func (r *Repository) scanOne(ctx context.Context, query string, arg any) (Product, error) {
	var (
		p            Product
		sku, barcode *string
	)
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&p.ID, &sku, &barcode, &p.CategoryID, &p.Name, &p.Description,
		&p.SalePrice, &p.Cost, &p.Weight, &p.IsImported, &p.LastVendorSync, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, err
	}
	if sku != nil {
		p.SKU = *sku
	}
	if barcode != nil {
		p.Barcode = *barcode
	}
	return p, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func affected(tag pgconn.CommandTag, err error) error {
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
