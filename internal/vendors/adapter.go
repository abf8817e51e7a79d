package vendors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/net/html"
)

// ErrMalformedRecord marks a raw record the adapter cannot normalize.
var ErrMalformedRecord = errors.New("vendors: malformed record")

const unknownProductName = "Unknown Product"

// Adapter is the capability every vendor type provides.
type Adapter interface {
	TestConnection(ctx context.Context) error
	FetchRecords(ctx context.Context) ([]RawRecord, error)
	Normalize(raw RawRecord) (NormalizedProduct, error)
}

// RecordSource delivers the raw payloads for an adapter. Transport is the
// source's concern; adapters only know the record layout.
type RecordSource interface {
	Ping(ctx context.Context) error
	Records(ctx context.Context) ([]RawRecord, error)
}

// NewAdapter returns the variant for cfg.Type reading from source.
func NewAdapter(cfg Config, source RecordSource) (Adapter, error) {
	if source == nil {
		return nil, &ConfigurationError{VendorID: cfg.ID, Field: "source", Reason: "is not configured"}
	}
	base := baseAdapter{cfg: cfg, source: source}
	switch cfg.Type {
	case TypeAmazon:
		return &amazonAdapter{baseAdapter: base}, nil
	case TypeEbay:
		return &ebayAdapter{baseAdapter: base}, nil
	case TypeShopify:
		return &shopifyAdapter{baseAdapter: base}, nil
	case TypeGeneric:
		return &genericAdapter{baseAdapter: base}, nil
	}
	return nil, &ConfigurationError{VendorID: cfg.ID, Field: "type", Reason: fmt.Sprintf("%q is not supported", cfg.Type)}
}

type baseAdapter struct {
	cfg    Config
	source RecordSource
}

func (a baseAdapter) TestConnection(ctx context.Context) error {
	if err := checkCredentials(a.cfg); err != nil {
		return err
	}
	if err := a.source.Ping(ctx); err != nil {
		return fmt.Errorf("vendors: vendor %d: connection test: %w", a.cfg.ID, err)
	}
	return nil
}

func (a baseAdapter) FetchRecords(ctx context.Context) ([]RawRecord, error) {
	records, err := a.source.Records(ctx)
	if err != nil {
		return nil, fmt.Errorf("vendors: vendor %d: fetch records: %w", a.cfg.ID, err)
	}
	return records, nil
}

func decodeRecord(raw RawRecord, dst any) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedRecord, err)
	}
	return nil
}

func orDefault(s, fallback string) string {
	if s = strings.TrimSpace(s); s == "" {
		return fallback
	}
	return s
}

// FileSource reads a JSON array of raw records from disk.
type FileSource struct {
	Path string
}

// Ping confirms the feed exists.
func (s FileSource) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := os.Stat(s.Path)
	return err
}

// Records returns every element of the feed.
func (s FileSource) Records(ctx context.Context) ([]RawRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, err
	}
	var records []RawRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("decode feed %s: %w", s.Path, err)
	}
	return records, nil
}

// StaticSource serves a fixed record list, handy for previews and tests.
type StaticSource []RawRecord

func (s StaticSource) Ping(ctx context.Context) error { return ctx.Err() }

func (s StaticSource) Records(ctx context.Context) ([]RawRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]RawRecord(nil), s...), nil
}

// StripHTML returns the visible text of an HTML fragment with whitespace
// collapsed. Script and style bodies are dropped.
func StripHTML(fragment string) string {
	if !strings.ContainsAny(fragment, "<&") {
		return strings.Join(strings.Fields(fragment), " ")
	}
	z := html.NewTokenizer(strings.NewReader(fragment))
	var b strings.Builder
	skip := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(b.String()), " ")
		case html.StartTagToken:
			name, _ := z.TagName()
			if tag := string(name); tag == "script" || tag == "style" {
				skip++
			}
			b.WriteByte(' ')
		case html.EndTagToken:
			name, _ := z.TagName()
			if tag := string(name); (tag == "script" || tag == "style") && skip > 0 {
				skip--
			}
			b.WriteByte(' ')
		case html.SelfClosingTagToken:
			b.WriteByte(' ')
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		}
	}
}

// parseLooseDecimal reads a price scraped as text such as "$1,299.90" or
// "12,50 EUR". Unparseable input yields zero.
func parseLooseDecimal(text string) decimal.Decimal {
	var b strings.Builder
	for _, r := range text {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' {
			b.WriteRune(r)
		}
	}
	clean := b.String()
	if strings.Contains(clean, ".") && strings.Contains(clean, ",") {
		clean = strings.ReplaceAll(clean, ",", "")
	} else {
		clean = strings.ReplaceAll(clean, ",", ".")
	}
	value, err := decimal.NewFromString(clean)
	if err != nil {
		return decimal.Zero
	}
	return value
}
