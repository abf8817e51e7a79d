package vendors

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHTTPSourceSendsVendorCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Shopify-Access-Token") != "token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`[{"id":1,"title":"Desk"},{"id":2,"title":"Chair"}]`))
	}))
	defer srv.Close()

	cfg := shopifyConfig()
	cfg.Feed = srv.URL
	source, err := SourceFor(cfg, srv.Client())
	require.NoError(t, err)
	require.IsType(t, HTTPSource{}, source)

	require.NoError(t, source.Ping(context.Background()))
	records, err := source.Records(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)

	cfg.AccessToken = "wrong"
	source, err = SourceFor(cfg, srv.Client())
	require.NoError(t, err)
	_, err = source.Records(context.Background())
	require.ErrorContains(t, err, "unexpected status 401")
}

func TestSourceForFallsBackToFiles(t *testing.T) {
	cfg := shopifyConfig()
	_, err := SourceFor(cfg, nil)
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	require.Equal(t, "feed", cfgErr.Field)

	cfg.Feed = "feeds/shop.json"
	source, err := SourceFor(cfg, nil)
	require.NoError(t, err)
	require.Equal(t, FileSource{Path: "feeds/shop.json"}, source)

	adapter, err := NewAdapterFactory(nil)(cfg)
	require.NoError(t, err)
	require.NotNil(t, adapter)
}
