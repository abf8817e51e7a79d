package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/vendorsync/internal/importer"
	"github.com/odyssey-erp/vendorsync/internal/vendors"
)

type stubImporter struct {
	calls   []importer.Options
	vendors []int64
	err     error
	swept   int
}

func (s *stubImporter) RunImport(_ context.Context, vendorID int64, opts importer.Options) (importer.Summary, error) {
	s.vendors = append(s.vendors, vendorID)
	s.calls = append(s.calls, opts)
	return importer.Summary{RunID: "run-1", VendorID: vendorID, State: importer.StateDone}, s.err
}

func (s *stubImporter) RunDue(context.Context) ([]importer.Summary, error) {
	s.swept++
	return nil, s.err
}

func TestVendorImportTaskPayload(t *testing.T) {
	task, err := NewVendorImportTask(VendorImportPayload{VendorID: 7, Mode: importer.ModeNewOnly})
	require.NoError(t, err)
	require.Equal(t, TaskVendorImport, task.Type())

	var payload VendorImportPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	require.Equal(t, int64(7), payload.VendorID)
	require.Equal(t, importer.ModeNewOnly, payload.Mode)

	_, err = NewVendorImportTask(VendorImportPayload{})
	require.Error(t, err)
}

func TestVendorImportJobHandle(t *testing.T) {
	ctx := context.Background()
	imp := &stubImporter{}
	job := NewVendorImportJob(imp, nil, nil)

	task, err := NewVendorImportTask(VendorImportPayload{VendorID: 3, MaxRecords: 10})
	require.NoError(t, err)
	require.NoError(t, job.Handle(ctx, task))
	require.Equal(t, []int64{3}, imp.vendors)
	require.Equal(t, 10, imp.calls[0].MaxRecords)

	err = job.Handle(ctx, asynq.NewTask(TaskVendorImport, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)

	imp.err = importer.ErrConcurrencyConflict
	require.NoError(t, job.Handle(ctx, task), "a busy vendor is not retried")

	imp.err = &vendors.ConfigurationError{VendorID: 3, Field: "api_key", Reason: "is required"}
	require.ErrorIs(t, job.Handle(ctx, task), asynq.SkipRetry)

	boom := errors.New("fetch failed")
	imp.err = boom
	err = job.Handle(ctx, task)
	require.ErrorIs(t, err, boom)
	require.NotErrorIs(t, err, asynq.SkipRetry)
}

func TestVendorImportJobSweep(t *testing.T) {
	imp := &stubImporter{}
	job := NewVendorImportJob(imp, nil, nil)
	require.NoError(t, job.HandleSweep(context.Background(), NewVendorSweepTask()))
	require.Equal(t, 1, imp.swept)

	var nilJob *VendorImportJob
	require.Error(t, nilJob.HandleSweep(context.Background(), NewVendorSweepTask()))
}

func TestVendorSchedule(t *testing.T) {
	configs := []vendors.Config{
		{ID: 1, Active: true, Frequency: vendors.FrequencyDaily},
		{ID: 2, Active: true, Frequency: vendors.FrequencyWeekly},
		{ID: 3, Active: true, Frequency: vendors.FrequencyMonthly},
		{ID: 4, Active: true, Frequency: vendors.FrequencyManual},
		{ID: 5, Active: false, Frequency: vendors.FrequencyDaily},
	}
	regs, err := VendorSchedule(configs)
	require.NoError(t, err)
	require.Len(t, regs, 4)
	require.Equal(t, SweepSpec, regs[0].Spec)
	require.Equal(t, TaskVendorSweep, regs[0].Task.Type())

	specs := []string{regs[1].Spec, regs[2].Spec, regs[3].Spec}
	require.Equal(t, []string{"0 3 * * *", "0 3 * * 1", "0 3 1 * *"}, specs)

	_, ok := CronSpec(vendors.FrequencyManual)
	require.False(t, ok)
}
