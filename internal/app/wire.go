package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/vendorsync/internal/catalog"
	"github.com/odyssey-erp/vendorsync/internal/importer"
	jobmetrics "github.com/odyssey-erp/vendorsync/internal/jobs"
	"github.com/odyssey-erp/vendorsync/internal/matching"
	"github.com/odyssey-erp/vendorsync/internal/offers"
	"github.com/odyssey-erp/vendorsync/internal/platform/cache"
	"github.com/odyssey-erp/vendorsync/internal/platform/storage"
	"github.com/odyssey-erp/vendorsync/internal/pricing"
	"github.com/odyssey-erp/vendorsync/internal/shared"
	"github.com/odyssey-erp/vendorsync/internal/vendors"
)

// Services holds the domain components shared by the API and the worker.
type Services struct {
	Vendors    *vendors.DurableRegistry
	Catalog    *catalog.Repository
	Offers     *offers.PGRepository
	Reconciler *offers.Reconciler
	Importer   *importer.Service
	JobMetrics *jobmetrics.Metrics
}

// BuildServices loads vendor and pricing configuration and wires the import
// pipeline over PostgreSQL and Redis.
func BuildServices(ctx context.Context, cfg *Config, logger *slog.Logger, pool *pgxpool.Pool, rdb *redis.Client, registerer prometheus.Registerer) (*Services, error) {
	registry, err := vendors.LoadFile(cfg.VendorsFile)
	if err != nil {
		return nil, err
	}
	rules, err := pricing.LoadRulesFile(cfg.RulesFile)
	if err != nil {
		return nil, err
	}
	pricer := pricing.NewPricer(pricing.NewResolver(rules), pricing.NewCalculator(logger))

	vendorRepo := vendors.NewDurableRegistry(registry, vendors.NewPGImportLog(pool))
	catalogRepo := catalog.NewRepository(pool)
	offerRepo := offers.NewPGRepository(pool)
	reconciler := offers.NewReconciler(offerRepo, catalogRepo, pricer, logger)
	metrics := jobmetrics.NewMetrics(registerer)

	var images importer.ImageStore = catalogRepo
	if store := cfg.ImageStore(); store.Enabled() {
		bucket, err := storage.NewImageBucket(store)
		if err != nil {
			return nil, err
		}
		if err := bucket.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		images = bucket
	}

	feedClient := &http.Client{Timeout: cfg.AdapterTimeout}
	imageClient := &http.Client{Timeout: 15 * time.Second}
	adapters := vendors.NewAdapterFactory(feedClient)
	reconciler.WithAdapters(func(ctx context.Context, vendorID int64) (vendors.Adapter, error) {
		vendor, err := vendorRepo.Get(ctx, vendorID)
		if err != nil {
			return nil, err
		}
		return adapters(vendor)
	}, cfg.AdapterTimeout)

	service := importer.NewService(importer.Dependencies{
		Vendors:        vendorRepo,
		Adapters:       adapters,
		Matcher:        matching.NewMatcher(catalogRepo, offerRepo, nil),
		Reconciler:     reconciler,
		Pricer:         pricer,
		Locker:         importer.NewRedisLocker(rdb, cfg.ImportLockTTL),
		Runs:           importer.NewPGRuns(pool),
		Images:         importer.NewHTTPImageFetcher(imageClient, cfg.ImageFetchRate),
		ImageStore:     images,
		Metrics:        metrics,
		Logger:         logger,
		AdapterTimeout: cfg.AdapterTimeout,
		DueConcurrency: cfg.DueConcurrency,
	})
	if err := vendorRepo.Restore(ctx); err != nil {
		return nil, fmt.Errorf("restore vendor import times: %w", err)
	}

	return &Services{
		Vendors:    vendorRepo,
		Catalog:    catalogRepo,
		Offers:     offerRepo,
		Reconciler: reconciler,
		Importer:   service,
		JobMetrics: metrics,
	}, nil
}

// NewIdempotencyGuard returns the request key store named by
// IDEMPOTENCY_BACKEND.
func NewIdempotencyGuard(cfg *Config, pool *pgxpool.Pool, rdb *redis.Client) shared.IdempotencyGuard {
	if cfg.IdempotencyBackend == "postgres" {
		return shared.NewIdempotencyStore(pool, cfg.IdempotencyTTL)
	}
	return cache.NewIdempotency(rdb, cfg.IdempotencyTTL)
}
