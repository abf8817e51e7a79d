package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/vendorsync/internal/jobs"
)

// KeyPruner deletes idempotency keys older than the retention window.
type KeyPruner interface {
	Cleanup(ctx context.Context, olderThan time.Duration) error
}

// IdempotencyCleanupJob prunes stored idempotency keys.
type IdempotencyCleanupJob struct {
	Store     KeyPruner
	Retention time.Duration
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewIdempotencyCleanupJob wires dependencies for the cleanup handler.
func NewIdempotencyCleanupJob(store KeyPruner, retention time.Duration, logger *slog.Logger, metrics *jobmetrics.Metrics) *IdempotencyCleanupJob {
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	return &IdempotencyCleanupJob{Store: store, Retention: retention, Logger: logger, Metrics: metrics}
}

// Handle executes TaskIdempotencyCleanup.
func (j *IdempotencyCleanupJob) Handle(ctx context.Context, _ *asynq.Task) (err error) {
	if j == nil || j.Store == nil {
		return errors.New("idempotency cleanup: handler not configured")
	}
	if j.Metrics != nil {
		tracker := j.Metrics.Track(TaskIdempotencyCleanup)
		defer func() { err = tracker.End(err) }()
	}
	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if err := j.Store.Cleanup(ctx, j.Retention); err != nil {
		logger.Error("prune idempotency keys", slog.Any("error", err))
		return err
	}
	logger.Info("pruned idempotency keys", slog.Duration("retention", j.Retention))
	return nil
}
