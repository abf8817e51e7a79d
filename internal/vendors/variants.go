package vendors

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// amazonAdapter reads Product Advertising API items.
type amazonAdapter struct {
	baseAdapter
}

type amazonItem struct {
	ASIN          string `json:"ASIN"`
	DetailPageURL string `json:"DetailPageURL"`
	ItemInfo      struct {
		Title struct {
			DisplayValue string
		}
		Features struct {
			DisplayValues []string
		}
		ByLineInfo struct {
			Brand struct {
				DisplayValue string
			}
		}
		ProductInfo struct {
			ItemDimensions struct {
				Weight struct {
					DisplayValue decimal.Decimal
				}
			}
		}
	}
	Offers struct {
		Listings []struct {
			Price struct {
				Amount   decimal.Decimal
				Currency string
			}
			Availability struct {
				Type string
			}
		}
	}
	Images struct {
		Primary struct {
			Large struct {
				URL string
			}
		}
	}
}

func (a *amazonAdapter) Normalize(raw RawRecord) (NormalizedProduct, error) {
	var item amazonItem
	if err := decodeRecord(raw, &item); err != nil {
		return NormalizedProduct{}, err
	}
	if item.ASIN == "" {
		return NormalizedProduct{}, fmt.Errorf("%w: missing ASIN", ErrMalformedRecord)
	}
	out := NormalizedProduct{
		VendorProductKey: item.ASIN,
		VendorURL:        item.DetailPageURL,
		Name:             orDefault(item.ItemInfo.Title.DisplayValue, unknownProductName),
		Description:      strings.Join(item.ItemInfo.Features.DisplayValues, "\n"),
		Currency:         "USD",
		ImageURL:         item.Images.Primary.Large.URL,
		SKU:              item.ASIN,
		Barcode:          item.ASIN,
		Brand:            item.ItemInfo.ByLineInfo.Brand.DisplayValue,
		Weight:           item.ItemInfo.ProductInfo.ItemDimensions.Weight.DisplayValue,
		StockStatus:      StockOutOfStock,
	}
	if len(item.Offers.Listings) > 0 {
		listing := item.Offers.Listings[0]
		out.Cost = listing.Price.Amount
		out.Currency = orDefault(listing.Price.Currency, "USD")
		if listing.Availability.Type == "Now" {
			out.StockStatus = StockInStock
			out.QtyAvailable = decimal.NewFromInt(1)
		}
	}
	return out, nil
}

// ebayAdapter reads Finding API search results.
type ebayAdapter struct {
	baseAdapter
}

type ebayItem struct {
	ItemID        string `json:"itemId"`
	ViewItemURL   string `json:"viewItemURL"`
	Title         string `json:"title"`
	Description   string `json:"description"`
	GalleryURL    string `json:"galleryURL"`
	SellingStatus struct {
		CurrentPrice struct {
			Value      decimal.Decimal `json:"value"`
			CurrencyID string          `json:"currencyId"`
		} `json:"currentPrice"`
	} `json:"sellingStatus"`
}

func (a *ebayAdapter) Normalize(raw RawRecord) (NormalizedProduct, error) {
	var item ebayItem
	if err := decodeRecord(raw, &item); err != nil {
		return NormalizedProduct{}, err
	}
	if item.ItemID == "" {
		return NormalizedProduct{}, fmt.Errorf("%w: missing itemId", ErrMalformedRecord)
	}
	return NormalizedProduct{
		VendorProductKey: item.ItemID,
		VendorURL:        item.ViewItemURL,
		Name:             orDefault(item.Title, unknownProductName),
		Description:      StripHTML(item.Description),
		Cost:             item.SellingStatus.CurrentPrice.Value,
		Currency:         orDefault(item.SellingStatus.CurrentPrice.CurrencyID, "USD"),
		ImageURL:         item.GalleryURL,
		SKU:              item.ItemID,
		StockStatus:      StockInStock,
	}, nil
}

// shopifyAdapter reads Admin API product documents.
type shopifyAdapter struct {
	baseAdapter
}

type shopifyProduct struct {
	ID          json.Number `json:"id"`
	Handle      string      `json:"handle"`
	Title       string      `json:"title"`
	BodyHTML    string      `json:"body_html"`
	Vendor      string      `json:"vendor"`
	ProductType string      `json:"product_type"`
	Variants    []struct {
		SKU               string          `json:"sku"`
		Barcode           string          `json:"barcode"`
		Price             decimal.Decimal `json:"price"`
		Weight            decimal.Decimal `json:"weight"`
		InventoryQuantity int64           `json:"inventory_quantity"`
	} `json:"variants"`
	Images []struct {
		Src string `json:"src"`
	} `json:"images"`
}

func (a *shopifyAdapter) Normalize(raw RawRecord) (NormalizedProduct, error) {
	var item shopifyProduct
	if err := decodeRecord(raw, &item); err != nil {
		return NormalizedProduct{}, err
	}
	if item.ID == "" {
		return NormalizedProduct{}, fmt.Errorf("%w: missing id", ErrMalformedRecord)
	}
	out := NormalizedProduct{
		VendorProductKey: item.ID.String(),
		VendorURL:        fmt.Sprintf("https://%s.myshopify.com/products/%s", a.cfg.ShopifyStoreName, item.Handle),
		Name:             orDefault(item.Title, unknownProductName),
		Description:      StripHTML(item.BodyHTML),
		Currency:         "USD",
		Brand:            item.Vendor,
		Category:         item.ProductType,
		StockStatus:      StockOutOfStock,
	}
	if len(item.Variants) > 0 {
		v := item.Variants[0]
		out.SKU = v.SKU
		out.Barcode = v.Barcode
		out.Cost = v.Price
		out.Weight = v.Weight
		out.QtyAvailable = decimal.NewFromInt(v.InventoryQuantity)
		if v.InventoryQuantity > 0 {
			out.StockStatus = StockInStock
		}
	}
	if len(item.Images) > 0 {
		out.ImageURL = item.Images[0].Src
	}
	return out, nil
}

// genericAdapter reads fields already extracted from a scraped page.
type genericAdapter struct {
	baseAdapter
}

type scrapedItem struct {
	URL         string `json:"url"`
	Name        string `json:"name"`
	Price       string `json:"price"`
	Description string `json:"description"`
	Image       string `json:"image"`
	SKU         string `json:"sku"`
	EAN         string `json:"ean"`
	Category    string `json:"category"`
	Brand       string `json:"brand"`
}

func (a *genericAdapter) Normalize(raw RawRecord) (NormalizedProduct, error) {
	var item scrapedItem
	if err := decodeRecord(raw, &item); err != nil {
		return NormalizedProduct{}, err
	}
	sku := strings.TrimSpace(item.SKU)
	key := orDefault(sku, strings.TrimSpace(item.URL))
	if key == "" {
		return NormalizedProduct{}, fmt.Errorf("%w: missing sku and url", ErrMalformedRecord)
	}
	return NormalizedProduct{
		VendorProductKey: key,
		VendorURL:        item.URL,
		Name:             orDefault(item.Name, unknownProductName),
		Description:      StripHTML(item.Description),
		Cost:             parseLooseDecimal(item.Price),
		ImageURL:         item.Image,
		SKU:              sku,
		Barcode:          strings.TrimSpace(item.EAN),
		Brand:            strings.TrimSpace(item.Brand),
		Category:         strings.TrimSpace(item.Category),
		StockStatus:      StockInStock,
	}, nil
}
