package importer

import (
	"strings"

	"github.com/odyssey-erp/vendorsync/internal/vendors"
	"golang.org/x/text/cases"
)

// filter applies vendor exclusion rules with Unicode case folding. A filter
// holds a stateful caser and belongs to one run.
type filter struct {
	cfg      vendors.Filters
	fold     cases.Caser
	keywords []string
	brands   map[string]struct{}
}

func newFilter(cfg vendors.Filters) *filter {
	f := &filter{cfg: cfg, fold: cases.Fold(), brands: make(map[string]struct{})}
	for _, kw := range cfg.ExcludeKeywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			f.keywords = append(f.keywords, f.fold.String(kw))
		}
	}
	for _, brand := range cfg.ExcludeBrands {
		if brand = strings.TrimSpace(brand); brand != "" {
			f.brands[f.fold.String(brand)] = struct{}{}
		}
	}
	return f
}

// reject returns a reason when the record must be skipped.
func (f *filter) reject(p vendors.NormalizedProduct) (string, bool) {
	if f.cfg.MinPrice.IsPositive() && p.Cost.LessThan(f.cfg.MinPrice) {
		return "cost below minimum price", true
	}
	if f.cfg.MaxPrice.IsPositive() && p.Cost.GreaterThan(f.cfg.MaxPrice) {
		return "cost above maximum price", true
	}
	if len(f.keywords) > 0 {
		name := f.fold.String(p.Name)
		desc := f.fold.String(p.Description)
		for _, kw := range f.keywords {
			if strings.Contains(name, kw) || strings.Contains(desc, kw) {
				return "excluded keyword " + kw, true
			}
		}
	}
	if len(f.brands) > 0 && p.Brand != "" {
		if _, ok := f.brands[f.fold.String(strings.TrimSpace(p.Brand))]; ok {
			return "excluded brand", true
		}
	}
	return "", false
}
