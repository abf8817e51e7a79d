package vendors

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ImportLog stores the last successful import time per vendor.
type ImportLog interface {
	LastImports(ctx context.Context) (map[int64]time.Time, error)
	SaveImport(ctx context.Context, vendorID int64, at time.Time) error
}

// DurableRegistry mirrors import times into an ImportLog so schedules
// survive restarts and are shared between the API and the worker.
type DurableRegistry struct {
	*Registry
	log ImportLog
}

// NewDurableRegistry wraps reg with log.
func NewDurableRegistry(reg *Registry, log ImportLog) *DurableRegistry {
	return &DurableRegistry{Registry: reg, log: log}
}

// List refreshes import times from the log before listing.
func (d *DurableRegistry) List(ctx context.Context) ([]Config, error) {
	if err := d.Restore(ctx); err != nil {
		return nil, err
	}
	return d.Registry.List(ctx)
}

// MarkImported writes the log first then updates the in-memory entry.
func (d *DurableRegistry) MarkImported(ctx context.Context, id int64, at time.Time) error {
	if _, err := d.Registry.Get(ctx, id); err != nil {
		return err
	}
	if err := d.log.SaveImport(ctx, id, at); err != nil {
		return fmt.Errorf("vendors: save import time: %w", err)
	}
	return d.Registry.MarkImported(ctx, id, at)
}

// Restore loads import times from the log. Entries for vendors no longer
// configured are ignored.
func (d *DurableRegistry) Restore(ctx context.Context) error {
	times, err := d.log.LastImports(ctx)
	if err != nil {
		return fmt.Errorf("vendors: load import times: %w", err)
	}
	for id, at := range times {
		if err := d.Registry.MarkImported(ctx, id, at); err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
	}
	return nil
}

// PGImportLog keeps import times in the vendor_import_state table.
type PGImportLog struct {
	pool *pgxpool.Pool
}

// NewPGImportLog constructs the PostgreSQL import log.
func NewPGImportLog(pool *pgxpool.Pool) *PGImportLog {
	return &PGImportLog{pool: pool}
}

func (l *PGImportLog) LastImports(ctx context.Context) (map[int64]time.Time, error) {
	rows, err := l.pool.Query(ctx, `SELECT vendor_id, last_import_at FROM vendor_import_state`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64]time.Time)
	for rows.Next() {
		var (
			id int64
			at time.Time
		)
		if err := rows.Scan(&id, &at); err != nil {
			return nil, err
		}
		out[id] = at
	}
	return out, rows.Err()
}

func (l *PGImportLog) SaveImport(ctx context.Context, vendorID int64, at time.Time) error {
	_, err := l.pool.Exec(ctx, `INSERT INTO vendor_import_state (vendor_id, last_import_at) VALUES ($1, $2)
ON CONFLICT (vendor_id) DO UPDATE SET last_import_at = GREATEST(vendor_import_state.last_import_at, EXCLUDED.last_import_at)`, vendorID, at.UTC())
	return err
}

// MemoryImportLog is an in-process ImportLog.
type MemoryImportLog struct {
	mu    sync.Mutex
	times map[int64]time.Time
}

// NewMemoryImportLog constructs an empty log.
func NewMemoryImportLog() *MemoryImportLog {
	return &MemoryImportLog{times: make(map[int64]time.Time)}
}

func (m *MemoryImportLog) LastImports(context.Context) (map[int64]time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[int64]time.Time, len(m.times))
	for id, at := range m.times {
		out[id] = at
	}
	return out, nil
}

func (m *MemoryImportLog) SaveImport(_ context.Context, vendorID int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.times[vendorID]; !ok || at.After(prev) {
		m.times[vendorID] = at.UTC()
	}
	return nil
}
