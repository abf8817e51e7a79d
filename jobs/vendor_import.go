package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/vendorsync/internal/importer"
	jobmetrics "github.com/odyssey-erp/vendorsync/internal/jobs"
	"github.com/odyssey-erp/vendorsync/internal/vendors"
)

const sweepJob = "vendor_sweep"

// Importer is the slice of the import orchestrator used by jobs.
type Importer interface {
	RunImport(ctx context.Context, vendorID int64, opts importer.Options) (importer.Summary, error)
	RunDue(ctx context.Context) ([]importer.Summary, error)
}

// VendorImportJob executes import and sweep tasks.
type VendorImportJob struct {
	Importer Importer
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
}

// NewVendorImportJob initialises the import handlers. Single imports are
// tracked by the importer itself; metrics here cover the sweep.
func NewVendorImportJob(imp Importer, logger *slog.Logger, metrics *jobmetrics.Metrics) *VendorImportJob {
	return &VendorImportJob{Importer: imp, Logger: logger, Metrics: metrics}
}

// Handle executes TaskVendorImport. A vendor already importing or a broken
// vendor configuration is not retried.
func (j *VendorImportJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Importer == nil {
		return errors.New("vendor import: handler not configured")
	}
	payload, err := decodeVendorImport(t)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	logger := j.logger().With(slog.Int64("vendor_id", payload.VendorID))

	summary, err := j.Importer.RunImport(ctx, payload.VendorID, importer.Options{Mode: payload.Mode, MaxRecords: payload.MaxRecords})
	switch {
	case errors.Is(err, importer.ErrConcurrencyConflict):
		logger.Info("vendor import already running, task dropped")
		return nil
	case errors.Is(err, vendors.ErrConfiguration), errors.Is(err, vendors.ErrNotFound), errors.Is(err, importer.ErrInvalidOptions):
		logger.Error("vendor import rejected", slog.Any("error", err))
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	case err != nil:
		logger.Error("vendor import failed", slog.String("run_id", summary.RunID), slog.Any("error", err))
		return err
	}
	logger.Info("vendor import task done",
		slog.String("run_id", summary.RunID),
		slog.String("state", string(summary.State)),
		slog.Int("found", summary.Found),
	)
	return nil
}

// HandleSweep executes TaskVendorSweep.
func (j *VendorImportJob) HandleSweep(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.Importer == nil {
		return errors.New("vendor sweep: handler not configured")
	}
	tracker := j.Metrics.Track(sweepJob)
	summaries, err := j.Importer.RunDue(ctx)
	j.logger().Info("vendor sweep finished", slog.Int("runs", len(summaries)), slog.Any("error", err))
	return tracker.End(err)
}

func (j *VendorImportJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
