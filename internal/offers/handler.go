package offers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/vendorsync/internal/catalog"
	"github.com/odyssey-erp/vendorsync/internal/platform/httpx"
)

// Handler exposes offer queries and maintenance over HTTP.
type Handler struct {
	logger     *slog.Logger
	reconciler *Reconciler
	repo       Repository
}

// NewHandler constructs the offers handler.
func NewHandler(logger *slog.Logger, reconciler *Reconciler, repo Repository) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, reconciler: reconciler, repo: repo}
}

// MountRoutes attaches offer routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/products/{id}/offers", h.List)
	r.Get("/products/{id}/offers/best", h.Best)
	r.Get("/products/{id}/offers/primary", h.Primary)
	r.Post("/offers/{id}/primary", h.SetPrimary)
	r.Post("/offers/{id}/sync", h.Sync)
	r.Post("/offers/{id}/apply-price", h.ApplyPrice)
	r.Post("/vendors/{id}/reprice", h.Reprice)
	r.Post("/reprice", h.Reprice)
	r.Delete("/vendors/{id}/offers", h.RemoveVendor)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	productID, ok := pathID(w, r)
	if !ok {
		return
	}
	list, err := h.repo.ListByProduct(r.Context(), productID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	if list == nil {
		list = []Offer{}
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) Best(w http.ResponseWriter, r *http.Request) {
	productID, ok := pathID(w, r)
	if !ok {
		return
	}
	best, err := h.reconciler.BestOffer(r.Context(), productID)
	h.respondOffer(w, best, err, "no sellable offer")
}

func (h *Handler) Primary(w http.ResponseWriter, r *http.Request) {
	productID, ok := pathID(w, r)
	if !ok {
		return
	}
	primary, err := h.reconciler.PrimaryOffer(r.Context(), productID)
	h.respondOffer(w, primary, err, "no primary offer")
}

func (h *Handler) SetPrimary(w http.ResponseWriter, r *http.Request) {
	offerID, ok := pathID(w, r)
	if !ok {
		return
	}
	offer, err := h.reconciler.SetPrimary(r.Context(), offerID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, offer)
}

func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	offerID, ok := pathID(w, r)
	if !ok {
		return
	}
	offer, err := h.reconciler.SyncOffer(r.Context(), offerID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, offer)
}

func (h *Handler) ApplyPrice(w http.ResponseWriter, r *http.Request) {
	offerID, ok := pathID(w, r)
	if !ok {
		return
	}
	product, err := h.reconciler.ApplyOfferPrice(r.Context(), offerID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

func (h *Handler) Reprice(w http.ResponseWriter, r *http.Request) {
	var req RepriceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: %v", httpx.ErrValidation, err))
		return
	}
	if chi.URLParam(r, "id") != "" {
		vendorID, ok := pathID(w, r)
		if !ok {
			return
		}
		req.VendorID = vendorID
	}
	summary, err := h.reconciler.Reprice(r.Context(), req)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) RemoveVendor(w http.ResponseWriter, r *http.Request) {
	vendorID, ok := pathID(w, r)
	if !ok {
		return
	}
	removed, err := h.reconciler.RemoveVendor(r.Context(), vendorID)
	if err != nil {
		h.respondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"vendor_id": vendorID, "removed": removed})
}

func (h *Handler) respondOffer(w http.ResponseWriter, offer *Offer, err error, missing string) {
	if err != nil {
		h.respondError(w, err)
		return
	}
	if offer == nil {
		httpx.RespondError(w, fmt.Errorf("%w: %s", httpx.ErrNotFound, missing))
		return
	}
	httpx.JSON(w, http.StatusOK, offer)
}

func (h *Handler) respondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, catalog.ErrNotFound):
		err = fmt.Errorf("%w: %v", httpx.ErrNotFound, err)
	case errors.Is(err, ErrInvalidReprice), errors.Is(err, ErrNoCalculatedPrice):
		err = fmt.Errorf("%w: %v", httpx.ErrValidation, err)
	case errors.Is(err, ErrDuplicate):
		err = fmt.Errorf("%w: %v", httpx.ErrDuplicate, err)
	case errors.Is(err, ErrSyncFailed):
		h.logger.Warn("offer sync failed", slog.Any("error", err))
		err = fmt.Errorf("%w: %v", httpx.ErrUpstream, err)
	default:
		h.logger.Error("offers request failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.RespondError(w, fmt.Errorf("%w: invalid id", httpx.ErrValidation))
		return 0, false
	}
	return id, true
}
