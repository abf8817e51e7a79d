package jobs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/vendorsync/internal/importer"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskVendorImport runs one vendor import.
	TaskVendorImport = "vendorsync:import"
	// TaskVendorSweep imports every vendor whose cadence has elapsed.
	TaskVendorSweep = "vendorsync:sweep"
	// TaskIdempotencyCleanup prunes expired idempotency keys.
	TaskIdempotencyCleanup = "vendorsync:idempotency_cleanup"

	importUniqueFor = 30 * time.Minute
)

// VendorImportPayload identifies the vendor and mode of an import task.
type VendorImportPayload struct {
	VendorID   int64         `json:"vendor_id"`
	Mode       importer.Mode `json:"mode,omitempty"`
	MaxRecords int           `json:"max_records,omitempty"`
}

// NewVendorImportTask builds an import task. Duplicate tasks for the same
// vendor are collapsed while one is queued.
func NewVendorImportTask(payload VendorImportPayload) (*asynq.Task, error) {
	if payload.VendorID <= 0 {
		return nil, fmt.Errorf("jobs: vendor id required")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskVendorImport, body,
		asynq.Queue(QueueDefault),
		asynq.Unique(importUniqueFor),
		asynq.MaxRetry(3),
	), nil
}

// NewVendorSweepTask builds the task that runs due vendors.
func NewVendorSweepTask() *asynq.Task {
	return asynq.NewTask(TaskVendorSweep, nil, asynq.Queue(QueueDefault), asynq.MaxRetry(1))
}

// NewIdempotencyCleanupTask builds the key pruning task.
func NewIdempotencyCleanupTask() *asynq.Task {
	return asynq.NewTask(TaskIdempotencyCleanup, nil, asynq.Queue(QueueDefault), asynq.MaxRetry(1))
}

func decodeVendorImport(t *asynq.Task) (VendorImportPayload, error) {
	var payload VendorImportPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return payload, err
	}
	if payload.VendorID <= 0 {
		return payload, fmt.Errorf("jobs: vendor id required")
	}
	return payload, nil
}
