package vendors

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func shopifyConfig() Config {
	return Config{
		ID:               3,
		Name:             "Shop",
		Active:           true,
		Type:             TypeShopify,
		WebsiteURL:       "https://acme.myshopify.com",
		ShopifyStoreName: "acme",
		AccessToken:      "token",
	}
}

func TestValidateRequiresCredentialsPerType(t *testing.T) {
	cases := []struct {
		name  string
		cfg   Config
		field string
	}{
		{"amazon secret", Config{ID: 1, Name: "a", Type: TypeAmazon, WebsiteURL: "https://amazon.com", APIKey: "k"}, "api_secret"},
		{"ebay key", Config{ID: 1, Name: "e", Type: TypeEbay, WebsiteURL: "https://ebay.com"}, "api_key"},
		{"shopify token", Config{ID: 1, Name: "s", Type: TypeShopify, WebsiteURL: "https://x.myshopify.com", ShopifyStoreName: "x"}, "access_token"},
		{"generic list url", Config{ID: 1, Name: "g", Type: TypeGeneric, WebsiteURL: "https://example.com"}, "product_list_url"},
		{"bad url", Config{ID: 1, Name: "g", Type: TypeGeneric, WebsiteURL: "not a url"}, "WebsiteURL"},
		{"unknown type", Config{ID: 1, Name: "g", Type: "ftp", WebsiteURL: "https://example.com"}, "Type"},
		{"filter bounds", Config{ID: 1, Name: "e", Type: TypeEbay, WebsiteURL: "https://ebay.com", APIKey: "k",
			Filters: Filters{MinPrice: decimal.NewFromInt(10), MaxPrice: decimal.NewFromInt(5)}}, "filters"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.cfg)
			require.ErrorIs(t, err, ErrConfiguration)
			var cfgErr *ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			require.Equal(t, tc.field, cfgErr.Field)
		})
	}
	require.NoError(t, Validate(shopifyConfig()))
}

func TestNextImportAtAndDue(t *testing.T) {
	last := time.Date(2024, 5, 1, 3, 0, 0, 0, time.UTC)
	cfg := Config{Active: true, Frequency: FrequencyWeekly, LastImportAt: &last}

	next, ok := cfg.NextImportAt()
	require.True(t, ok)
	require.Equal(t, last.AddDate(0, 0, 7), next)
	require.False(t, cfg.Due(last.Add(6*24*time.Hour)))
	require.True(t, cfg.Due(next))

	cfg.Frequency = FrequencyMonthly
	next, _ = cfg.NextImportAt()
	require.Equal(t, last.Add(30*24*time.Hour), next)

	cfg.Frequency = FrequencyManual
	_, ok = cfg.NextImportAt()
	require.False(t, ok)
	require.False(t, cfg.Due(last.AddDate(1, 0, 0)))

	never := Config{Active: true, Frequency: FrequencyDaily}
	require.True(t, never.Due(last))
	never.Active = false
	require.False(t, never.Due(last))
}

func TestRegistry(t *testing.T) {
	ctx := context.Background()
	reg, err := NewRegistry([]Config{shopifyConfig()})
	require.NoError(t, err)

	cfg, err := reg.Get(ctx, 3)
	require.NoError(t, err)
	require.Equal(t, FrequencyManual, cfg.Frequency)

	at := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	require.NoError(t, reg.MarkImported(ctx, 3, at))
	cfg, _ = reg.Get(ctx, 3)
	require.Equal(t, at, *cfg.LastImportAt)

	_, err = reg.Get(ctx, 99)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = NewRegistry([]Config{shopifyConfig(), shopifyConfig()})
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestNewAdapterRejectsUnknownType(t *testing.T) {
	_, err := NewAdapter(Config{ID: 1, Type: "ftp"}, StaticSource{})
	require.ErrorIs(t, err, ErrConfiguration)
	_, err = NewAdapter(shopifyConfig(), nil)
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestShopifyNormalize(t *testing.T) {
	adapter, err := NewAdapter(shopifyConfig(), StaticSource{})
	require.NoError(t, err)

	raw := RawRecord(`{"id": 6612, "handle": "blue-mug", "title": "Blue Mug", "vendor": "Acme",
		"product_type": "Kitchen", "body_html": "<p>Glazed <b>stoneware</b> &amp; dishwasher safe</p><script>x()</script>",
		"variants": [{"sku": "MUG-1", "barcode": "4006381333931", "price": "7.50", "weight": 0.4, "inventory_quantity": 12}],
		"images": [{"src": "https://cdn.example.com/mug.jpg"}]}`)
	got, err := adapter.Normalize(raw)
	require.NoError(t, err)
	require.Equal(t, "6612", got.VendorProductKey)
	require.Equal(t, "https://acme.myshopify.com/products/blue-mug", got.VendorURL)
	require.Equal(t, "Glazed stoneware & dishwasher safe", got.Description)
	require.Equal(t, "MUG-1", got.SKU)
	require.Equal(t, "4006381333931", got.Barcode)
	require.True(t, got.Cost.Equal(decimal.RequireFromString("7.5")))
	require.Equal(t, StockInStock, got.StockStatus)
	require.Equal(t, "Acme", got.Brand)

	_, err = adapter.Normalize(RawRecord(`{"title": "no id"}`))
	require.ErrorIs(t, err, ErrMalformedRecord)
	_, err = adapter.Normalize(RawRecord(`not json`))
	require.ErrorIs(t, err, ErrMalformedRecord)
}

func TestAmazonNormalize(t *testing.T) {
	cfg := Config{ID: 1, Name: "amz", Type: TypeAmazon, WebsiteURL: "https://amazon.com", APIKey: "k", APISecret: "s", AmazonAssociateTag: "t"}
	adapter, err := NewAdapter(cfg, StaticSource{})
	require.NoError(t, err)

	got, err := adapter.Normalize(RawRecord(`{"ASIN": "B00X", "DetailPageURL": "https://amazon.com/dp/B00X",
		"ItemInfo": {"Title": {"DisplayValue": "Lamp"}, "Features": {"DisplayValues": ["LED", "Dimmable"]},
			"ByLineInfo": {"Brand": {"DisplayValue": "Lumo"}}},
		"Offers": {"Listings": [{"Price": {"Amount": 19.99, "Currency": "EUR"}, "Availability": {"Type": "Now"}}]}}`))
	require.NoError(t, err)
	require.Equal(t, "B00X", got.VendorProductKey)
	require.Equal(t, "B00X", got.SKU)
	require.Equal(t, "EUR", got.Currency)
	require.Equal(t, "LED\nDimmable", got.Description)
	require.Equal(t, StockInStock, got.StockStatus)
	require.True(t, got.Cost.Equal(decimal.RequireFromString("19.99")))

	got, err = adapter.Normalize(RawRecord(`{"ASIN": "B00Y"}`))
	require.NoError(t, err)
	require.Equal(t, unknownProductName, got.Name)
	require.Equal(t, StockOutOfStock, got.StockStatus)
}

func TestEbayAndGenericNormalize(t *testing.T) {
	ebay, err := NewAdapter(Config{ID: 2, Type: TypeEbay}, StaticSource{})
	require.NoError(t, err)
	got, err := ebay.Normalize(RawRecord(`{"itemId": "123", "title": "Cam", "sellingStatus": {"currentPrice": {"value": "55.10", "currencyId": "GBP"}}}`))
	require.NoError(t, err)
	require.Equal(t, "GBP", got.Currency)
	require.True(t, got.Cost.Equal(decimal.RequireFromString("55.1")))

	generic, err := NewAdapter(Config{ID: 4, Type: TypeGeneric}, StaticSource{})
	require.NoError(t, err)
	got, err = generic.Normalize(RawRecord(`{"url": "https://shop.example.com/p/1", "name": " Chair ", "price": "$1,299.90"}`))
	require.NoError(t, err)
	require.Equal(t, "https://shop.example.com/p/1", got.VendorProductKey)
	require.Equal(t, "Chair", got.Name)
	require.True(t, got.Cost.Equal(decimal.RequireFromString("1299.9")))

	got, err = generic.Normalize(RawRecord(`{"sku": "CH-2", "price": "12,50 EUR"}`))
	require.NoError(t, err)
	require.Equal(t, "CH-2", got.VendorProductKey)
	require.True(t, got.Cost.Equal(decimal.RequireFromString("12.5")))

	_, err = generic.Normalize(RawRecord(`{"name": "anonymous"}`))
	require.ErrorIs(t, err, ErrMalformedRecord)
}

func TestFileSourceAndConnection(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "feed.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"id": 1}, {"id": 2}]`), 0o600))

	adapter, err := NewAdapter(shopifyConfig(), FileSource{Path: path})
	require.NoError(t, err)
	require.NoError(t, adapter.TestConnection(ctx))
	records, err := adapter.FetchRecords(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)

	missing, err := NewAdapter(shopifyConfig(), FileSource{Path: filepath.Join(t.TempDir(), "absent.json")})
	require.NoError(t, err)
	require.Error(t, missing.TestConnection(ctx))
	_, err = missing.FetchRecords(ctx)
	require.Error(t, err)

	cfg := shopifyConfig()
	cfg.AccessToken = ""
	noToken, err := NewAdapter(cfg, FileSource{Path: path})
	require.NoError(t, err)
	require.ErrorIs(t, noToken.TestConnection(ctx), ErrConfiguration)
}

func TestStripHTML(t *testing.T) {
	require.Equal(t, "plain text", StripHTML("  plain \n text "))
	require.Equal(t, "a b c", StripHTML("<ul><li>a</li><li>b</li></ul><br/>c<style>p{}</style>"))
}
