package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/odyssey-erp/vendorsync/internal/importer"
	"github.com/odyssey-erp/vendorsync/internal/vendors"
)

// ConnectionOptions defines the flags of the test-connection command.
type ConnectionOptions struct {
	VendorsFile string
	VendorID    int64
	Timeout     time.Duration
	Client      *http.Client
	Stdout      io.Writer
	Stderr      io.Writer
}

// TestConnectionCommand checks that a configured vendor's feed answers.
// It returns 0 when the vendor is reachable, 10 when the check fails and 1
// on usage or configuration errors.
func TestConnectionCommand(ctx context.Context, opts ConnectionOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.VendorsFile == "" || opts.VendorID <= 0 {
		_, _ = fmt.Fprintln(opts.Stderr, "test-connection: --vendors and --vendor are required")
		return 1
	}
	registry, err := vendors.LoadFile(opts.VendorsFile)
	if err != nil {
		_, _ = fmt.Fprintf(opts.Stderr, "test-connection: %v\n", err)
		return 1
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	service := importer.NewService(importer.Dependencies{
		Vendors:        registry,
		Adapters:       vendors.NewAdapterFactory(client),
		AdapterTimeout: opts.Timeout,
	})

	err = service.TestConnection(ctx, opts.VendorID)
	switch {
	case err == nil:
		_, _ = fmt.Fprintf(opts.Stdout, "vendor %d: connection ok\n", opts.VendorID)
		return 0
	case errors.Is(err, importer.ErrConnectionFailed):
		_, _ = fmt.Fprintf(opts.Stdout, "vendor %d: connection failed: %v\n", opts.VendorID, err)
		return 10
	default:
		_, _ = fmt.Fprintf(opts.Stderr, "test-connection: %v\n", err)
		return 1
	}
}
