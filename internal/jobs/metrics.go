// Package jobmetrics instruments imports and background jobs.
package jobmetrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "vendorsync"

// Metrics exposes Prometheus collectors for imports and background jobs.
type Metrics struct {
	runs          *prometheus.CounterVec
	failures      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	inflight      *prometheus.GaugeVec
	lastSuccess   *prometheus.GaugeVec
	records       *prometheus.CounterVec
	importStates  *prometheus.CounterVec
	lockConflicts *prometheus.CounterVec
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the collectors on registerer, or once on the default
// registerer when it is nil.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultMetrics = buildMetrics(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return buildMetrics(registerer)
}

// Tracker instruments a single job run. A nil Metrics yields a tracker that
// records nothing.
type Tracker struct {
	metrics *Metrics
	job     string
	start   time.Time
}

// Track starts a tracker for job and counts it as in flight until End.
func (m *Metrics) Track(job string) *Tracker {
	t := &Tracker{metrics: m, job: job, start: time.Now()}
	if m != nil && job != "" {
		m.inflight.WithLabelValues(job).Inc()
	}
	return t
}

// End records the outcome and returns err untouched.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil || t.job == "" {
		return err
	}
	m := t.metrics
	m.inflight.WithLabelValues(t.job).Dec()
	m.duration.WithLabelValues(t.job).Observe(time.Since(t.start).Seconds())
	if err != nil {
		m.failures.WithLabelValues(t.job).Inc()
		m.runs.WithLabelValues(t.job, "failure").Inc()
		return err
	}
	m.runs.WithLabelValues(t.job, "success").Inc()
	m.lastSuccess.WithLabelValues(t.job).SetToCurrentTime()
	return nil
}

// AddRecords counts processed vendor records by line outcome.
func (m *Metrics) AddRecords(vendorID int64, outcome string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.records.WithLabelValues(vendorLabel(vendorID), outcome).Add(float64(count))
}

// ImportFinished counts a finished run by its terminal state.
func (m *Metrics) ImportFinished(vendorID int64, state string) {
	if m == nil || state == "" {
		return
	}
	m.importStates.WithLabelValues(vendorLabel(vendorID), state).Inc()
}

// LockConflict counts an import refused because the vendor was already
// importing.
func (m *Metrics) LockConflict(vendorID int64) {
	if m == nil {
		return
	}
	m.lockConflicts.WithLabelValues(vendorLabel(vendorID)).Inc()
}

func vendorLabel(v int64) string {
	return strconv.FormatInt(v, 10)
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Job executions by job name and status.",
		}, []string{"job", "status"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_failures_total",
			Help:      "Failed job executions.",
		}, []string{"job"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Job execution time in seconds.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 180, 600},
		}, []string{"job"}),
		inflight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_in_flight",
			Help:      "Jobs currently executing.",
		}, []string{"job"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "job_last_success_timestamp_seconds",
			Help:      "Unix time of the last successful execution.",
		}, []string{"job"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_records_total",
			Help:      "Vendor records processed by imports grouped by vendor and outcome.",
		}, []string{"vendor", "outcome"}),
		importStates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_runs_total",
			Help:      "Finished import runs by vendor and terminal state.",
		}, []string{"vendor", "state"}),
		lockConflicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "import_lock_conflicts_total",
			Help:      "Imports refused because the vendor lock was held.",
		}, []string{"vendor"}),
	}
	registerer.MustRegister(m.runs, m.failures, m.duration, m.inflight, m.lastSuccess,
		m.records, m.importStates, m.lockConflicts)
	return m
}
