package vendors

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const maxFeedBytes = 64 << 20

// HTTPSource fetches a JSON array of raw records from a URL.
type HTTPSource struct {
	URL    string
	Client *http.Client
	Header http.Header
}

// Ping issues the feed request and discards the body.
func (s HTTPSource) Ping(ctx context.Context) error {
	resp, err := s.get(ctx)
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	return resp.Body.Close()
}

// Records downloads and decodes the feed.
func (s HTTPSource) Records(ctx context.Context) ([]RawRecord, error) {
	resp, err := s.get(ctx)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var records []RawRecord
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxFeedBytes)).Decode(&records); err != nil {
		return nil, fmt.Errorf("decode feed %s: %w", s.URL, err)
	}
	return records, nil
}

func (s HTTPSource) get(ctx context.Context) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	for key, values := range s.Header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	client := s.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("feed %s: unexpected status %d", s.URL, resp.StatusCode)
	}
	return resp, nil
}

// SourceFor picks the record source named by cfg.Feed. URLs are fetched
// over HTTP with the vendor's credentials, anything else is a file path.
func SourceFor(cfg Config, client *http.Client) (RecordSource, error) {
	feed := strings.TrimSpace(cfg.Feed)
	switch {
	case feed == "":
		return nil, &ConfigurationError{VendorID: cfg.ID, Field: "feed", Reason: "is required"}
	case strings.HasPrefix(feed, "http://"), strings.HasPrefix(feed, "https://"):
		header := http.Header{}
		switch cfg.Type {
		case TypeShopify:
			header.Set("X-Shopify-Access-Token", cfg.AccessToken)
		case TypeEbay, TypeAmazon:
			header.Set("Authorization", "Bearer "+cfg.APIKey)
		}
		return HTTPSource{URL: feed, Client: client, Header: header}, nil
	}
	return FileSource{Path: feed}, nil
}

// NewAdapterFactory returns a constructor building adapters over SourceFor.
func NewAdapterFactory(client *http.Client) func(Config) (Adapter, error) {
	return func(cfg Config) (Adapter, error) {
		source, err := SourceFor(cfg, client)
		if err != nil {
			return nil, err
		}
		return NewAdapter(cfg, source)
	}
}
