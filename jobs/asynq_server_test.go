package jobs

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/vendorsync/internal/importer"
)

func TestHealthWithoutInspector(t *testing.T) {
	r := chi.NewRouter()
	NewHandler(nil, nil).MountRoutes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, QueueDefault, body["queue"])
	require.EqualValues(t, 0, body["pending"])
}

func TestIsTaskFailure(t *testing.T) {
	require.False(t, isTaskFailure(nil))
	require.False(t, isTaskFailure(fmt.Errorf("%w: import already queued", importer.ErrConcurrencyConflict)))
	require.True(t, isTaskFailure(errors.New("feed down")))
}

func TestNewWorkerRejectsBadCron(t *testing.T) {
	_, err := NewWorker(WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: "127.0.0.1:0"},
		Cron:      []CronRegistration{{Spec: "every tuesday", Task: NewVendorSweepTask()}},
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), TaskVendorSweep)

	w, err := NewWorker(WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: "127.0.0.1:0"},
		Cron:      []CronRegistration{{Spec: SweepSpec, Task: NewVendorSweepTask()}, {Spec: "", Task: nil}},
	})
	require.NoError(t, err)
	require.NotNil(t, w.scheduler)
}
