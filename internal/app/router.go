package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/odyssey-erp/vendorsync/internal/importer"
	"github.com/odyssey-erp/vendorsync/internal/observability"
	"github.com/odyssey-erp/vendorsync/internal/offers"
	"github.com/odyssey-erp/vendorsync/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	ImportHandler   *importer.Handler
	OffersHandler   *offers.Handler
	JobHandler      *jobs.Handler
	Metrics         *observability.Metrics
	DisableRequestLog bool
}

// NewRouter constructs the chi.Router with vendorsync defaults. Health and
// metrics stay outside the API key guard.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	if !params.DisableRequestLog {
		r.Use(chimw.Logger)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	var hash string
	if params.Config != nil {
		hash = params.Config.APIKeyHash
	}
	r.Group(func(r chi.Router) {
		r.Use(APIKeyGuard(hash, params.Logger))
		if params.ImportHandler != nil {
			params.ImportHandler.MountRoutes(r)
		}
		if params.OffersHandler != nil {
			params.OffersHandler.MountRoutes(r)
		}
		if params.JobHandler != nil {
			r.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	return r
}
