package importer

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestHTTPImageFetcherScalesDown(t *testing.T) {
	large := pngBytes(t, 1600, 400)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.png" {
			http.NotFound(w, r)
			return
		}
		if r.URL.Path == "/broken.png" {
			_, _ = w.Write([]byte("not an image"))
			return
		}
		_, _ = w.Write(large)
	}))
	t.Cleanup(srv.Close)

	fetcher := NewHTTPImageFetcher(srv.Client(), 0)
	data, err := fetcher.Fetch(context.Background(), srv.URL+"/large.png")
	require.NoError(t, err)
	img, err := imaging.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	require.Equal(t, imageWidth, img.Bounds().Dx())
	require.Equal(t, 200, img.Bounds().Dy())

	_, err = fetcher.Fetch(context.Background(), srv.URL+"/missing.png")
	require.ErrorIs(t, err, ErrImageUnavailable)
	_, err = fetcher.Fetch(context.Background(), srv.URL+"/broken.png")
	require.ErrorIs(t, err, ErrImageUnavailable)
}
