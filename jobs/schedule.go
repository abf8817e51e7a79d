package jobs

import (
	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/vendorsync/internal/vendors"
)

// SweepSpec runs the due-vendor sweep at the top of every hour.
const SweepSpec = "0 * * * *"

// CronSpec maps an import cadence to a cron expression. Manual vendors have
// no schedule.
func CronSpec(freq vendors.Frequency) (string, bool) {
	switch freq {
	case vendors.FrequencyDaily:
		return "0 3 * * *", true
	case vendors.FrequencyWeekly:
		return "0 3 * * 1", true
	case vendors.FrequencyMonthly:
		return "0 3 1 * *", true
	}
	return "", false
}

// VendorSchedule builds the cron registrations for active vendors plus the
// hourly sweep catching runs missed while no worker was up.
func VendorSchedule(configs []vendors.Config) ([]CronRegistration, error) {
	out := []CronRegistration{{Spec: SweepSpec, Task: NewVendorSweepTask()}}
	for _, cfg := range configs {
		if !cfg.Active {
			continue
		}
		spec, ok := CronSpec(cfg.Frequency)
		if !ok {
			continue
		}
		task, err := NewVendorImportTask(VendorImportPayload{VendorID: cfg.ID})
		if err != nil {
			return nil, err
		}
		out = append(out, CronRegistration{Spec: spec, Task: task, Options: []asynq.Option{asynq.MaxRetry(3)}})
	}
	return out, nil
}
