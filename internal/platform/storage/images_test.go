package storage

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type objectServer struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func (s *objectServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		w.WriteHeader(http.StatusNotImplemented)
		return
	}
	body, err := readPayload(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	s.objects[r.URL.Path] = body
	s.types[r.URL.Path] = r.Header.Get("Content-Type")
	s.mu.Unlock()
	w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
	w.WriteHeader(http.StatusOK)
}

// readPayload returns the object bytes of a PUT. Over plain HTTP the client
// streams signed aws-chunked frames: "<hex size>;chunk-signature=...\r\n",
// the data, "\r\n", ending with a zero sized frame and optional trailers.
func readPayload(r *http.Request) ([]byte, error) {
	if !strings.HasPrefix(r.Header.Get("X-Amz-Content-Sha256"), "STREAMING-") {
		return io.ReadAll(r.Body)
	}
	var out bytes.Buffer
	br := bufio.NewReader(r.Body)
	for {
		header, err := br.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("chunk header: %w", err)
		}
		sizeHex, _, _ := strings.Cut(strings.TrimRight(header, "\r\n"), ";")
		size, err := strconv.ParseInt(sizeHex, 16, 64)
		if err != nil {
			return nil, fmt.Errorf("chunk size %q: %w", sizeHex, err)
		}
		if size == 0 {
			break
		}
		if _, err := io.CopyN(&out, br, size); err != nil {
			return nil, fmt.Errorf("chunk data: %w", err)
		}
		if _, err := br.Discard(2); err != nil {
			return nil, fmt.Errorf("chunk trailer: %w", err)
		}
	}
	if decoded := r.Header.Get("X-Amz-Decoded-Content-Length"); decoded != "" && decoded != strconv.Itoa(out.Len()) {
		return nil, fmt.Errorf("decoded length %s, got %d bytes", decoded, out.Len())
	}
	return out.Bytes(), nil
}

func TestImageBucketUploadsByProductID(t *testing.T) {
	fake := &objectServer{objects: map[string][]byte{}, types: map[string]string{}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	bucket, err := NewImageBucket(Config{
		Endpoint:  strings.TrimPrefix(srv.URL, "http://"),
		AccessKey: "access",
		SecretKey: "secret",
		Bucket:    "catalog",
	})
	require.NoError(t, err)

	require.NoError(t, bucket.AttachImage(context.Background(), 42, []byte("jpeg-bytes")))
	require.Equal(t, []byte("jpeg-bytes"), fake.objects["/catalog/products/42.jpg"])
	require.Equal(t, "image/jpeg", fake.types["/catalog/products/42.jpg"])
}

func TestNewImageBucketRequiresConfig(t *testing.T) {
	_, err := NewImageBucket(Config{Endpoint: "localhost:9000"})
	require.Error(t, err)
	require.False(t, Config{Bucket: "x"}.Enabled())
	require.Equal(t, "products/7.jpg", ProductImageKey(7))
}

func TestReadPayloadDecodesChunkedFrames(t *testing.T) {
	body := "5;chunk-signature=aa\r\nhello\r\n6;chunk-signature=bb\r\n world\r\n0;chunk-signature=cc\r\n\r\n"
	req := httptest.NewRequest(http.MethodPut, "/catalog/products/1.jpg", strings.NewReader(body))
	req.Header.Set("X-Amz-Content-Sha256", "STREAMING-AWS4-HMAC-SHA256-PAYLOAD")
	req.Header.Set("X-Amz-Decoded-Content-Length", "11")

	got, err := readPayload(req)
	require.NoError(t, err)
	require.Equal(t, "hello world", string(got))

	req = httptest.NewRequest(http.MethodPut, "/catalog/products/1.jpg", strings.NewReader(body))
	req.Header.Set("X-Amz-Content-Sha256", "STREAMING-AWS4-HMAC-SHA256-PAYLOAD")
	req.Header.Set("X-Amz-Decoded-Content-Length", "12")
	_, err = readPayload(req)
	require.Error(t, err)
}
