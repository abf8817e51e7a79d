package offers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/vendorsync/internal/vendors"
)

func feedAdapters(t *testing.T, items ...map[string]string) VendorAdapters {
	t.Helper()
	src := make(vendors.StaticSource, 0, len(items))
	for _, item := range items {
		raw, err := json.Marshal(item)
		require.NoError(t, err)
		src = append(src, raw)
	}
	return func(_ context.Context, vendorID int64) (vendors.Adapter, error) {
		return vendors.NewAdapter(vendors.Config{ID: vendorID, Type: vendors.TypeGeneric}, src)
	}
}

func seedOffer(t *testing.T, rec *Reconciler) Result {
	t.Helper()
	first, err := rec.Reconcile(context.Background(), sampleRecord(), 7, nil, Policy{AutoCreate: true}, dec("13"))
	require.NoError(t, err)
	return first
}

func TestSyncOfferRefreshesFromFeed(t *testing.T) {
	ctx := context.Background()
	rec, repo, store := newTestReconciler(t)
	seeded := seedOffer(t, rec)
	rec.WithAdapters(feedAdapters(t,
		map[string]string{"sku": "OTHER", "name": "Other", "price": "1"},
		map[string]string{"sku": "V-100", "name": "Desk Lamp Pro", "price": "20"},
	), 0)

	synced, err := rec.SyncOffer(ctx, seeded.Offer.ID)
	require.NoError(t, err)
	require.Equal(t, SyncSynced, synced.SyncStatus)
	require.True(t, synced.Cost.Equal(dec("20")))
	require.True(t, synced.CalculatedPrice.Equal(dec("26")))
	require.Equal(t, "Desk Lamp Pro", synced.VendorName)

	stored, err := repo.Get(ctx, seeded.Offer.ID)
	require.NoError(t, err)
	require.True(t, stored.Cost.Equal(dec("20")))

	product, err := store.Get(ctx, seeded.Product.ID)
	require.NoError(t, err)
	require.True(t, product.SalePrice.Equal(dec("13")), "syncing an offer does not reprice the product")

	_, err = rec.SyncOffer(ctx, 999)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSyncOfferMarksMissingRecord(t *testing.T) {
	ctx := context.Background()
	rec, repo, _ := newTestReconciler(t)
	seeded := seedOffer(t, rec)
	rec.WithAdapters(feedAdapters(t, map[string]string{"sku": "OTHER", "name": "Other", "price": "1"}), 0)

	_, err := rec.SyncOffer(ctx, seeded.Offer.ID)
	require.ErrorIs(t, err, ErrSyncFailed)

	stored, err := repo.Get(ctx, seeded.Offer.ID)
	require.NoError(t, err)
	require.Equal(t, SyncError, stored.SyncStatus)
	require.Contains(t, stored.SyncError, `no longer lists "V-100"`)
	require.True(t, stored.Cost.Equal(dec("10")))
}

func TestSyncOfferWithoutFeeds(t *testing.T) {
	rec, _, _ := newTestReconciler(t)
	seeded := seedOffer(t, rec)
	_, err := rec.SyncOffer(context.Background(), seeded.Offer.ID)
	require.ErrorIs(t, err, ErrSyncFailed)
}

func TestApplyOfferPrice(t *testing.T) {
	ctx := context.Background()
	rec, repo, store := newTestReconciler(t)
	seeded := seedOffer(t, rec)
	require.NoError(t, store.SetSalePrice(ctx, seeded.Product.ID, dec("99")))

	product, err := rec.ApplyOfferPrice(ctx, seeded.Offer.ID)
	require.NoError(t, err)
	require.True(t, product.SalePrice.Equal(dec("13")))

	unpriced := addOffer(t, repo, Offer{VendorID: 8, ProductID: seeded.Product.ID, VendorProductKey: "X"})
	_, err = rec.ApplyOfferPrice(ctx, unpriced.ID)
	require.ErrorIs(t, err, ErrNoCalculatedPrice)

	_, err = rec.ApplyOfferPrice(ctx, 999)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestHandlerSyncAndApplyPrice(t *testing.T) {
	rec, repo, _ := newTestReconciler(t)
	seeded := seedOffer(t, rec)
	rec.WithAdapters(feedAdapters(t, map[string]string{"sku": "V-100", "name": "Desk Lamp", "price": "20"}), 0)
	router := chi.NewRouter()
	NewHandler(nil, rec, repo).MountRoutes(router)
	id := strconv.FormatInt(seeded.Offer.ID, 10)

	resp := serve(t, router, http.MethodPost, "/offers/"+id+"/sync", "")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var synced Offer
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &synced))
	require.True(t, synced.CalculatedPrice.Equal(dec("26")))

	resp = serve(t, router, http.MethodPost, "/offers/"+id+"/apply-price", "")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	require.Contains(t, resp.Body.String(), `"26"`)

	require.Equal(t, http.StatusNotFound, serve(t, router, http.MethodPost, "/offers/999/sync", "").Code)
	require.Equal(t, http.StatusNotFound, serve(t, router, http.MethodPost, "/offers/999/apply-price", "").Code)

	rec.WithAdapters(feedAdapters(t), 0)
	resp = serve(t, router, http.MethodPost, "/offers/"+id+"/sync", "")
	require.Equal(t, http.StatusBadGateway, resp.Code)

	unpriced := addOffer(t, repo, Offer{VendorID: 8, ProductID: seeded.Product.ID, VendorProductKey: "X"})
	resp = serve(t, router, http.MethodPost, "/offers/"+strconv.FormatInt(unpriced.ID, 10)+"/apply-price", "")
	require.Equal(t, http.StatusBadRequest, resp.Code)
}
