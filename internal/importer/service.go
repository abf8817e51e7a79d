package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/odyssey-erp/vendorsync/internal/catalog"
	jobmetrics "github.com/odyssey-erp/vendorsync/internal/jobs"
	"github.com/odyssey-erp/vendorsync/internal/offers"
	"github.com/odyssey-erp/vendorsync/internal/pricing"
	"github.com/odyssey-erp/vendorsync/internal/vendors"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const (
	defaultAdapterTimeout = 30 * time.Second
	defaultDueConcurrency = 4
)

// VendorRepository provides vendor configuration to the importer.
type VendorRepository interface {
	Get(ctx context.Context, id int64) (vendors.Config, error)
	List(ctx context.Context) ([]vendors.Config, error)
	MarkImported(ctx context.Context, id int64, at time.Time) error
}

// AdapterFactory builds the adapter for a vendor configuration.
type AdapterFactory func(cfg vendors.Config) (vendors.Adapter, error)

// Matcher locates the catalog product a record refers to.
type Matcher interface {
	Match(ctx context.Context, record vendors.NormalizedProduct, vendorID int64) (*catalog.Product, error)
}

// Reconciler applies records to offers and the catalog.
type Reconciler interface {
	Reconcile(ctx context.Context, record vendors.NormalizedProduct, vendorID int64, matched *catalog.Product, policy offers.Policy, price decimal.Decimal) (offers.Result, error)
	RecordSyncError(ctx context.Context, vendorID int64, key string, cause error) error
}

// Pricer turns a vendor cost into a sale price.
type Pricer interface {
	Quote(cost decimal.Decimal, category, vendor *int64) (pricing.Quote, error)
}

// ImageFetcher downloads product images.
type ImageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// ImageStore receives fetched images for created products.
type ImageStore interface {
	AttachImage(ctx context.Context, id int64, image []byte) error
}

// Dependencies wires the collaborators of a Service. Vendors, Adapters,
// Matcher, Reconciler, Pricer and Locker are required.
type Dependencies struct {
	Vendors        VendorRepository
	Adapters       AdapterFactory
	Matcher        Matcher
	Reconciler     Reconciler
	Pricer         Pricer
	Locker         VendorLocker
	Runs           RunRepository
	Images         ImageFetcher
	ImageStore     ImageStore
	Metrics        *jobmetrics.Metrics
	Logger         *slog.Logger
	AdapterTimeout time.Duration
	DueConcurrency int
}

// Service orchestrates vendor import runs.
type Service struct {
	deps     Dependencies
	logger   *slog.Logger
	validate *validator.Validate
	now      func() time.Time

	mu     sync.Mutex
	active map[string]context.CancelFunc
}

// NewService constructs the import orchestrator.
func NewService(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.AdapterTimeout <= 0 {
		deps.AdapterTimeout = defaultAdapterTimeout
	}
	if deps.DueConcurrency <= 0 {
		deps.DueConcurrency = defaultDueConcurrency
	}
	return &Service{
		deps:     deps,
		logger:   deps.Logger,
		validate: validator.New(),
		now:      func() time.Time { return time.Now().UTC() },
		active:   make(map[string]context.CancelFunc),
	}
}

// WithNow overrides the clock.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// RunImport imports every record the vendor offers. Per-record failures are
// tallied, the returned error is reserved for failures of the run itself.
func (s *Service) RunImport(ctx context.Context, vendorID int64, opts Options) (Summary, error) {
	return s.start(ctx, vendorID, opts, false)
}

// PreviewImport matches and prices the vendor's records without writing
// anything. Created and Updated count what a real run would do.
func (s *Service) PreviewImport(ctx context.Context, vendorID int64, opts Options) (Summary, error) {
	return s.start(ctx, vendorID, opts, true)
}

// Cancel stops an in-progress run at the next record boundary.
func (s *Service) Cancel(runID string) error {
	s.mu.Lock()
	cancel, ok := s.active[runID]
	s.mu.Unlock()
	if !ok {
		return ErrRunNotFound
	}
	cancel()
	return nil
}

// TestConnection checks the vendor's credentials and that its record source
// answers within the adapter timeout.
func (s *Service) TestConnection(ctx context.Context, vendorID int64) error {
	cfg, err := s.deps.Vendors.Get(ctx, vendorID)
	if err != nil {
		return fmt.Errorf("importer: load vendor %d: %w", vendorID, err)
	}
	if err := vendors.Validate(cfg); err != nil {
		return err
	}
	adapter, err := s.deps.Adapters(cfg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, s.deps.AdapterTimeout)
	defer cancel()
	if err := adapter.TestConnection(ctx); err != nil {
		if errors.Is(err, vendors.ErrConfiguration) {
			return err
		}
		s.logger.Warn("vendor connection test failed", slog.Int64("vendor_id", vendorID), slog.Any("error", err))
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	return nil
}

// Run returns a persisted run summary.
func (s *Service) Run(ctx context.Context, runID string) (Summary, error) {
	if s.deps.Runs == nil {
		return Summary{}, ErrRunNotFound
	}
	return s.deps.Runs.Get(ctx, runID)
}

// RunDue imports every vendor whose cadence has elapsed. Vendors run
// concurrently, a vendor already importing elsewhere is left alone.
func (s *Service) RunDue(ctx context.Context) ([]Summary, error) {
	list, err := s.deps.Vendors.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("importer: list vendors: %w", err)
	}
	now := s.now()

	var (
		mu        sync.Mutex
		summaries []Summary
		errs      []error
	)
	var g errgroup.Group
	g.SetLimit(s.deps.DueConcurrency)
	for _, cfg := range list {
		if !cfg.Due(now) {
			continue
		}
		vendorID := cfg.ID
		g.Go(func() error {
			summary, err := s.RunImport(ctx, vendorID, Options{Mode: ModeFull})
			mu.Lock()
			defer mu.Unlock()
			if errors.Is(err, ErrConcurrencyConflict) {
				s.logger.Info("scheduled import skipped, vendor busy", slog.Int64("vendor_id", vendorID))
				return nil
			}
			if summary.RunID != "" {
				summaries = append(summaries, summary)
			}
			if err != nil {
				errs = append(errs, err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return summaries, errors.Join(errs...)
}

func (s *Service) start(ctx context.Context, vendorID int64, opts Options, dryRun bool) (Summary, error) {
	if err := s.validate.Struct(opts); err != nil {
		return Summary{}, fmt.Errorf("%w: %w", ErrInvalidOptions, err)
	}
	if opts.Mode == "" {
		opts.Mode = ModeFull
	}
	cfg, err := s.deps.Vendors.Get(ctx, vendorID)
	if err != nil {
		return Summary{}, fmt.Errorf("importer: load vendor %d: %w", vendorID, err)
	}
	if !cfg.Active {
		return Summary{}, &vendors.ConfigurationError{VendorID: cfg.ID, Field: "active", Reason: "vendor is inactive"}
	}
	if err := vendors.Validate(cfg); err != nil {
		return Summary{}, err
	}
	adapter, err := s.deps.Adapters(cfg)
	if err != nil {
		return Summary{}, err
	}

	var lease Lease
	if !dryRun {
		lease, err = s.deps.Locker.Acquire(ctx, cfg.ID)
		if err != nil {
			if errors.Is(err, ErrConcurrencyConflict) {
				s.deps.Metrics.LockConflict(cfg.ID)
			}
			return Summary{}, err
		}
		defer func() {
			if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
				s.logger.Warn("release vendor lock", slog.Int64("vendor_id", cfg.ID), slog.Any("error", err))
			}
		}()
	}

	job := "vendor_import"
	if dryRun {
		job = "vendor_preview"
	}
	tracker := s.deps.Metrics.Track(job)
	summary, err := s.execute(ctx, cfg, adapter, opts, dryRun, lease)
	if !dryRun {
		s.deps.Metrics.ImportFinished(cfg.ID, string(summary.State))
	}
	return summary, tracker.End(err)
}

func (s *Service) execute(ctx context.Context, cfg vendors.Config, adapter vendors.Adapter, opts Options, dryRun bool, lease Lease) (Summary, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	summary := Summary{
		RunID:      uuid.NewString(),
		VendorID:   cfg.ID,
		VendorName: cfg.Name,
		Mode:       opts.Mode,
		DryRun:     dryRun,
		State:      StateDraft,
		StartedAt:  s.now(),
	}
	s.register(summary.RunID, cancel)
	defer s.unregister(summary.RunID)

	logger := s.logger.With(slog.Int64("vendor_id", cfg.ID), slog.String("run_id", summary.RunID))
	summary.State = StateInProgress
	logger.Info("vendor import started", slog.String("mode", string(opts.Mode)), slog.Bool("dry_run", dryRun))

	fetchCtx, cancelFetch := context.WithTimeout(runCtx, s.deps.AdapterTimeout)
	records, err := adapter.FetchRecords(fetchCtx)
	cancelFetch()
	if err != nil {
		if runCtx.Err() != nil {
			return s.finish(ctx, &summary, StateCancelled, logger), nil
		}
		summary.Error = err.Error()
		return s.finish(ctx, &summary, StateFailed, logger), fmt.Errorf("importer: fetch vendor %d records: %w", cfg.ID, err)
	}
	summary.Fetched = len(records)
	if opts.MaxRecords > 0 && len(records) > opts.MaxRecords {
		records = records[:opts.MaxRecords]
	}

	flt := newFilter(cfg.Filters)
	p := &processor{svc: s, cfg: cfg, adapter: adapter, filter: flt, policy: modePolicy(cfg, opts.Mode), dryRun: dryRun, logger: logger}
	// Cancellation takes effect between records, the record in flight finishes.
	recordCtx := context.WithoutCancel(runCtx)

	for i, raw := range records {
		if runCtx.Err() != nil {
			return s.finish(ctx, &summary, StateCancelled, logger), nil
		}
		if lease != nil && i > 0 {
			if err := lease.Refresh(recordCtx); err != nil {
				summary.Error = "vendor lock lost: " + err.Error()
				return s.finish(ctx, &summary, StateFailed, logger), fmt.Errorf("importer: refresh vendor %d lock: %w", cfg.ID, err)
			}
		}
		line := p.processSafely(recordCtx, i, raw)
		summary.tally(line)
		s.deps.Metrics.AddRecords(cfg.ID, string(line.State), 1)
	}

	if !summary.closed() {
		summary.Error = ErrAccounting.Error()
		return s.finish(ctx, &summary, StateFailed, logger), ErrAccounting
	}
	summary = s.finish(ctx, &summary, StateDone, logger)
	if !dryRun {
		if err := s.deps.Vendors.MarkImported(context.WithoutCancel(ctx), cfg.ID, *summary.FinishedAt); err != nil {
			logger.Warn("mark vendor imported", slog.Any("error", err))
		}
	}
	return summary, nil
}

// modePolicy resolves the write policy of a run. Restricted modes override
// the vendor's own create and update flags.
func modePolicy(cfg vendors.Config, mode Mode) offers.Policy {
	policy := offers.Policy{AutoCreate: cfg.AutoCreate, AutoUpdate: cfg.AutoUpdate, UpdatePrices: cfg.UpdatePrices}
	switch mode {
	case ModeUpdateOnly:
		policy.AutoCreate, policy.AutoUpdate = false, true
	case ModeNewOnly:
		policy.AutoCreate, policy.AutoUpdate = true, false
	}
	return policy
}

func (s *Service) finish(ctx context.Context, summary *Summary, state State, logger *slog.Logger) Summary {
	at := s.now()
	summary.State = state
	summary.FinishedAt = &at
	if s.deps.Runs != nil && !summary.DryRun {
		if err := s.deps.Runs.Save(context.WithoutCancel(ctx), *summary); err != nil {
			logger.Warn("persist import run", slog.Any("error", err))
		}
	}
	logger.Info("vendor import finished",
		slog.String("state", string(state)),
		slog.Int("found", summary.Found),
		slog.Int("created", summary.Created),
		slog.Int("updated", summary.Updated),
		slog.Int("skipped", summary.Skipped),
		slog.Int("failed", summary.Failed),
		slog.Duration("duration", summary.Duration()),
	)
	return *summary
}

func (s *Service) register(runID string, cancel context.CancelFunc) {
	s.mu.Lock()
	s.active[runID] = cancel
	s.mu.Unlock()
}

func (s *Service) unregister(runID string) {
	s.mu.Lock()
	delete(s.active, runID)
	s.mu.Unlock()
}

// processor turns one raw record into a tallied line.
type processor struct {
	svc     *Service
	cfg     vendors.Config
	adapter vendors.Adapter
	filter  *filter
	policy  offers.Policy
	dryRun  bool
	logger  *slog.Logger
}

// processSafely turns a panic in any stage of the record into a failed line.
func (p *processor) processSafely(ctx context.Context, index int, raw vendors.RawRecord) (line Line) {
	key := fmt.Sprintf("#%d", index)
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("vendor record panicked", slog.String("record_key", key), slog.Any("panic", r))
			line = p.fail(ctx, Line{VendorProductKey: key}, fmt.Errorf("panic: %v", r), false)
		}
	}()
	return p.process(ctx, index, raw, &key)
}

func (p *processor) process(ctx context.Context, index int, raw vendors.RawRecord, key *string) Line {
	record, err := p.normalize(ctx, raw)
	if err != nil {
		return p.fail(ctx, Line{VendorProductKey: fmt.Sprintf("#%d", index)}, err, false)
	}
	*key = record.VendorProductKey
	line := Line{
		VendorProductKey: record.VendorProductKey,
		Name:             record.Name,
		SKU:              record.SKU,
		VendorCost:       record.Cost,
	}
	if reason, skip := p.filter.reject(record); skip {
		line.State = LineSkipped
		line.Reason = reason
		return line
	}

	matched, err := p.svc.deps.Matcher.Match(ctx, record, p.cfg.ID)
	if err != nil {
		return p.fail(ctx, line, fmt.Errorf("match: %w", err), false)
	}
	var category *int64
	if matched != nil {
		line.ProductID = matched.ID
		category = matched.CategoryID
	}
	vendorID := p.cfg.ID
	quote, err := p.svc.deps.Pricer.Quote(record.Cost, category, &vendorID)
	if err != nil {
		return p.fail(ctx, line, fmt.Errorf("price: %w", err), matched != nil)
	}
	line.CalculatedPrice = quote.Price
	line.RuleID = quote.RuleID

	if p.dryRun {
		return p.preview(line, matched)
	}

	result, err := p.svc.deps.Reconciler.Reconcile(ctx, record, p.cfg.ID, matched, p.policy, quote.Price)
	if err != nil {
		return p.fail(ctx, line, fmt.Errorf("reconcile: %w", err), matched != nil)
	}
	if result.Product != nil {
		line.ProductID = result.Product.ID
	}
	switch {
	case result.Created:
		line.State = LineCreated
		p.attachImage(ctx, line.ProductID, record.ImageURL)
	case result.Updated:
		line.State = LineUpdated
	default:
		line.State = LineSkipped
		line.Reason = p.noopReason(matched)
	}
	return line
}

func (p *processor) preview(line Line, matched *catalog.Product) Line {
	switch {
	case matched == nil && p.policy.AutoCreate:
		line.State = LineCreated
	case matched != nil && p.policy.AutoUpdate:
		line.State = LineUpdated
	default:
		line.State = LineSkipped
		line.Reason = p.noopReason(matched)
	}
	return line
}

func (p *processor) noopReason(matched *catalog.Product) string {
	if matched == nil {
		return "no matching product and product creation disabled"
	}
	return "matched product and updates disabled"
}

// normalize bounds a single Normalize call by the adapter timeout.
func (p *processor) normalize(ctx context.Context, raw vendors.RawRecord) (vendors.NormalizedProduct, error) {
	ctx, cancel := context.WithTimeout(ctx, p.svc.deps.AdapterTimeout)
	defer cancel()

	type outcome struct {
		product vendors.NormalizedProduct
		err     error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("normalize panic: %v", r)}
			}
		}()
		product, err := p.adapter.Normalize(raw)
		done <- outcome{product: product, err: err}
	}()
	select {
	case out := <-done:
		if out.err != nil {
			return vendors.NormalizedProduct{}, fmt.Errorf("normalize: %w", out.err)
		}
		return out.product, nil
	case <-ctx.Done():
		return vendors.NormalizedProduct{}, fmt.Errorf("normalize: %w", ctx.Err())
	}
}

func (p *processor) fail(ctx context.Context, line Line, err error, known bool) Line {
	recErr := &RecordError{VendorID: p.cfg.ID, RecordKey: line.VendorProductKey, Err: err}
	line.State = LineFailed
	line.Error = recErr.Error()
	p.logger.Warn("vendor record failed", slog.String("record_key", line.VendorProductKey), slog.Any("error", err))
	if known && !p.dryRun {
		if syncErr := p.svc.deps.Reconciler.RecordSyncError(context.WithoutCancel(ctx), p.cfg.ID, line.VendorProductKey, err); syncErr != nil && !offers.IsNotFound(syncErr) {
			p.logger.Warn("record offer sync error", slog.String("record_key", line.VendorProductKey), slog.Any("error", syncErr))
		}
	}
	return line
}

func (p *processor) attachImage(ctx context.Context, productID int64, url string) {
	if url == "" || productID == 0 || p.svc.deps.Images == nil || p.svc.deps.ImageStore == nil {
		return
	}
	image, err := p.svc.deps.Images.Fetch(ctx, url)
	if err != nil {
		p.logger.Debug("product image unavailable", slog.String("url", url), slog.Any("error", err))
		return
	}
	if err := p.svc.deps.ImageStore.AttachImage(ctx, productID, image); err != nil {
		p.logger.Warn("attach product image", slog.Int64("product_id", productID), slog.Any("error", err))
	}
}
