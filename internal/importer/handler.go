package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/vendorsync/internal/platform/httpx"
	"github.com/odyssey-erp/vendorsync/internal/shared"
	"github.com/odyssey-erp/vendorsync/internal/vendors"
)

const idempotencyModule = "vendor_import"

// IdempotencyHeader carries the client key that deduplicates import triggers.
const IdempotencyHeader = "Idempotency-Key"

// Enqueuer queues imports for the background worker.
type Enqueuer interface {
	EnqueueImport(ctx context.Context, vendorID int64, opts Options) (string, error)
}

// ImportRequest is the body accepted by the import and preview endpoints.
type ImportRequest struct {
	Options
	Async bool `json:"async"`
}

// Handler exposes import runs over HTTP.
type Handler struct {
	logger      *slog.Logger
	service     *Service
	enqueuer    Enqueuer
	idempotency shared.IdempotencyGuard
}

// NewHandler constructs the import handler. enqueuer and idempotency are
// optional.
func NewHandler(logger *slog.Logger, service *Service, enqueuer Enqueuer, idempotency shared.IdempotencyGuard) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, enqueuer: enqueuer, idempotency: idempotency}
}

// MountRoutes attaches import routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/vendors/{id}/import", h.Import)
	r.Post("/vendors/{id}/preview", h.Preview)
	r.Post("/vendors/{id}/test-connection", h.TestConnection)
	r.Get("/vendors/{id}/runs", h.ListRuns)
	r.Get("/runs/{runID}", h.ShowRun)
	r.Post("/runs/{runID}/cancel", h.Cancel)
}

func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	vendorID, req, ok := h.parseImport(w, r)
	if !ok {
		return
	}

	key := r.Header.Get(IdempotencyHeader)
	if key != "" && h.idempotency != nil {
		scoped := strconv.FormatInt(vendorID, 10) + ":" + key
		if err := h.idempotency.CheckAndInsert(r.Context(), scoped, idempotencyModule); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrDuplicate, err))
				return
			}
			h.logger.Error("claim idempotency key", slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		key = scoped
	} else {
		key = ""
	}
	release := func() {
		if key != "" {
			if err := h.idempotency.Delete(context.WithoutCancel(r.Context()), key, idempotencyModule); err != nil {
				h.logger.Warn("release idempotency key", slog.Any("error", err))
			}
		}
	}

	if req.Async {
		if h.enqueuer == nil {
			release()
			httpx.RespondError(w, fmt.Errorf("%w: background imports are not configured", httpx.ErrValidation))
			return
		}
		taskID, err := h.enqueuer.EnqueueImport(r.Context(), vendorID, req.Options)
		if err != nil {
			release()
			h.logger.Error("enqueue vendor import", slog.Int64("vendor_id", vendorID), slog.Any("error", err))
			respondImportError(w, err)
			return
		}
		httpx.JSON(w, http.StatusAccepted, map[string]any{"task_id": taskID, "vendor_id": vendorID})
		return
	}

	summary, err := h.service.RunImport(r.Context(), vendorID, req.Options)
	if err != nil && summary.RunID == "" {
		release()
	}
	h.respondRun(w, summary, err)
}

func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	vendorID, req, ok := h.parseImport(w, r)
	if !ok {
		return
	}
	summary, err := h.service.PreviewImport(r.Context(), vendorID, req.Options)
	h.respondRun(w, summary, err)
}

func (h *Handler) TestConnection(w http.ResponseWriter, r *http.Request) {
	vendorID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || vendorID <= 0 {
		httpx.RespondError(w, fmt.Errorf("%w: invalid vendor id", httpx.ErrValidation))
		return
	}
	if err := h.service.TestConnection(r.Context(), vendorID); err != nil {
		respondImportError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"vendor_id": vendorID, "status": "ok"})
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	if err := h.service.Cancel(runID); err != nil {
		respondImportError(w, err)
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]string{"run_id": runID, "status": "cancelling"})
}

func (h *Handler) ShowRun(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.Run(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		respondImportError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	vendorID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || vendorID <= 0 {
		httpx.RespondError(w, fmt.Errorf("%w: invalid vendor id", httpx.ErrValidation))
		return
	}
	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if h.service.deps.Runs == nil {
		httpx.JSON(w, http.StatusOK, []Summary{})
		return
	}
	runs, err := h.service.deps.Runs.ListByVendor(r.Context(), vendorID, limit)
	if err != nil {
		h.logger.Error("list import runs", slog.Int64("vendor_id", vendorID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	for i := range runs {
		runs[i].Lines = nil
	}
	if runs == nil {
		runs = []Summary{}
	}
	httpx.JSON(w, http.StatusOK, runs)
}

func (h *Handler) parseImport(w http.ResponseWriter, r *http.Request) (int64, ImportRequest, bool) {
	vendorID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || vendorID <= 0 {
		httpx.RespondError(w, fmt.Errorf("%w: invalid vendor id", httpx.ErrValidation))
		return 0, ImportRequest{}, false
	}
	var req ImportRequest
	if err := httpx.DecodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return 0, ImportRequest{}, false
	}
	return vendorID, req, true
}

func (h *Handler) respondRun(w http.ResponseWriter, summary Summary, err error) {
	switch {
	case err == nil:
		httpx.JSON(w, http.StatusOK, summary)
	case summary.RunID != "":
		h.logger.Warn("vendor import run failed", slog.String("run_id", summary.RunID), slog.Any("error", err))
		httpx.JSON(w, http.StatusBadGateway, summary)
	default:
		respondImportError(w, err)
	}
}

func respondImportError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrConcurrencyConflict):
		err = fmt.Errorf("%w: %v", httpx.ErrConflict, err)
	case errors.Is(err, ErrRunNotFound), errors.Is(err, vendors.ErrNotFound):
		err = fmt.Errorf("%w: %v", httpx.ErrNotFound, err)
	case errors.Is(err, ErrInvalidOptions), errors.Is(err, vendors.ErrConfiguration):
		err = fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	case errors.Is(err, ErrConnectionFailed):
		err = fmt.Errorf("%w: %v", httpx.ErrUpstream, err)
	}
	httpx.RespondError(w, err)
}
