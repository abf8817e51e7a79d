package importer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/disintegration/imaging"
	"golang.org/x/time/rate"
)

const (
	maxImageBytes = 10 << 20
	imageWidth    = 800
)

// ErrImageUnavailable is returned when a vendor image cannot be used.
var ErrImageUnavailable = errors.New("importer: image unavailable")

// HTTPImageFetcher downloads vendor images and stores them as JPEG scaled
// down to a fixed width. Requests share one rate limiter.
type HTTPImageFetcher struct {
	client  *http.Client
	limiter *rate.Limiter
}

// NewHTTPImageFetcher builds a fetcher allowing perSecond downloads.
func NewHTTPImageFetcher(client *http.Client, perSecond float64) *HTTPImageFetcher {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &HTTPImageFetcher{client: client, limiter: rate.NewLimiter(limit, 1)}
}

func (f *HTTPImageFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrImageUnavailable, err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrImageUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrImageUnavailable, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrImageUnavailable, err)
	}
	return scaleImage(data)
}

func scaleImage(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: decode: %w", ErrImageUnavailable, err)
	}
	if img.Bounds().Dx() > imageWidth {
		img = imaging.Resize(img, imageWidth, 0, imaging.Lanczos)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG); err != nil {
		return nil, fmt.Errorf("%w: encode: %w", ErrImageUnavailable, err)
	}
	return buf.Bytes(), nil
}
