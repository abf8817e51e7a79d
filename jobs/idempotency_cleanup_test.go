package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/odyssey-erp/vendorsync/internal/jobs"
)

type stubPruner struct {
	olderThan time.Duration
	err       error
}

func (s *stubPruner) Cleanup(_ context.Context, olderThan time.Duration) error {
	s.olderThan = olderThan
	return s.err
}

func TestIdempotencyCleanupJob(t *testing.T) {
	store := &stubPruner{}
	metrics := jobmetrics.NewMetrics(prometheus.NewRegistry())
	job := NewIdempotencyCleanupJob(store, 0, nil, metrics)

	require.NoError(t, job.Handle(context.Background(), NewIdempotencyCleanupTask()))
	require.Equal(t, 24*time.Hour, store.olderThan)

	store.err = errors.New("db down")
	require.Error(t, job.Handle(context.Background(), NewIdempotencyCleanupTask()))

	var nilJob *IdempotencyCleanupJob
	require.Error(t, nilJob.Handle(context.Background(), NewIdempotencyCleanupTask()))
}
