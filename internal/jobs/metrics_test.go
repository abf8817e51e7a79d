package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	require.NoError(t, m.Track("vendor_import").End(nil))
	boom := errors.New("boom")
	require.ErrorIs(t, m.Track("vendor_import").End(boom), boom)

	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("vendor_import", "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("vendor_import", "failure")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("vendor_import")))
}

func TestAddRecords(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.AddRecords(7, "created", 3)
	m.AddRecords(7, "created", 0)
	m.AddRecords(7, "skipped", 1)

	require.Equal(t, 3.0, testutil.ToFloat64(m.records.WithLabelValues("7", "created")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.records.WithLabelValues("7", "skipped")))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.AddRecords(1, "created", 1)
	require.NoError(t, m.Track("noop").End(nil))
}

func TestTrackerInflightAndLastSuccess(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	tracker := m.Track("vendor_sweep")
	require.Equal(t, 1.0, testutil.ToFloat64(m.inflight.WithLabelValues("vendor_sweep")))
	require.NoError(t, tracker.End(nil))
	require.Equal(t, 0.0, testutil.ToFloat64(m.inflight.WithLabelValues("vendor_sweep")))
	require.Greater(t, testutil.ToFloat64(m.lastSuccess.WithLabelValues("vendor_sweep")), 0.0)
}

func TestImportStatesAndLockConflicts(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.ImportFinished(4, "done")
	m.ImportFinished(4, "failed")
	m.ImportFinished(4, "")
	m.LockConflict(4)

	require.Equal(t, 1.0, testutil.ToFloat64(m.importStates.WithLabelValues("4", "done")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.importStates.WithLabelValues("4", "failed")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.lockConflicts.WithLabelValues("4")))

	var nilMetrics *Metrics
	nilMetrics.ImportFinished(1, "done")
	nilMetrics.LockConflict(1)
}
