package importer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/odyssey-erp/vendorsync/internal/platform/db"
)

// RunRepository keeps the import log of finished runs.
type RunRepository interface {
	Save(ctx context.Context, summary Summary) error
	Get(ctx context.Context, runID string) (Summary, error)
	ListByVendor(ctx context.Context, vendorID int64, limit int) ([]Summary, error)
}

// MemoryRuns is an in-process RunRepository.
type MemoryRuns struct {
	mu   sync.RWMutex
	runs map[string]Summary
}

// NewMemoryRuns constructs MemoryRuns.
func NewMemoryRuns() *MemoryRuns {
	return &MemoryRuns{runs: make(map[string]Summary)}
}

func (m *MemoryRuns) Save(_ context.Context, summary Summary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	summary.Lines = append([]Line(nil), summary.Lines...)
	m.runs[summary.RunID] = summary
	return nil
}

func (m *MemoryRuns) Get(_ context.Context, runID string) (Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	summary, ok := m.runs[runID]
	if !ok {
		return Summary{}, ErrRunNotFound
	}
	return summary, nil
}

func (m *MemoryRuns) ListByVendor(_ context.Context, vendorID int64, limit int) ([]Summary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Summary
	for _, summary := range m.runs {
		if summary.VendorID == vendorID {
			out = append(out, summary)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// PGRuns stores runs in import_runs and import_run_lines.
type PGRuns struct {
	pool *pgxpool.Pool
}

// NewPGRuns constructs PGRuns.
func NewPGRuns(pool *pgxpool.Pool) *PGRuns {
	return &PGRuns{pool: pool}
}

const runColumns = `id, vendor_id, vendor_name, mode, state, fetched, found, created, updated, skipped, failed, error, started_at, finished_at`

func (r *PGRuns) Save(ctx context.Context, summary Summary) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `INSERT INTO import_runs (`+runColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
ON CONFLICT (id) DO UPDATE SET state = EXCLUDED.state, fetched = EXCLUDED.fetched, found = EXCLUDED.found,
created = EXCLUDED.created, updated = EXCLUDED.updated, skipped = EXCLUDED.skipped, failed = EXCLUDED.failed,
error = EXCLUDED.error, finished_at = EXCLUDED.finished_at`,
			summary.RunID, summary.VendorID, summary.VendorName, summary.Mode, summary.State,
			summary.Fetched, summary.Found, summary.Created, summary.Updated, summary.Skipped, summary.Failed,
			summary.Error, summary.StartedAt, summary.FinishedAt)
		if err != nil {
			return fmt.Errorf("importer: save run: %w", err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM import_run_lines WHERE run_id = $1`, summary.RunID); err != nil {
			return fmt.Errorf("importer: reset run lines: %w", err)
		}
		rows := make([][]any, 0, len(summary.Lines))
		for i, line := range summary.Lines {
			rows = append(rows, []any{
				summary.RunID, i, line.VendorProductKey, line.Name, line.SKU, line.ProductID,
				line.State, line.VendorCost, line.CalculatedPrice, line.RuleID, line.Reason, line.Error,
			})
		}
		_, err = tx.CopyFrom(ctx, pgx.Identifier{"import_run_lines"}, []string{
			"run_id", "position", "vendor_product_key", "name", "sku", "product_id",
			"state", "vendor_cost", "calculated_price", "rule_id", "reason", "error",
		}, pgx.CopyFromRows(rows))
		if err != nil {
			return fmt.Errorf("importer: save run lines: %w", err)
		}
		return nil
	})
}

func (r *PGRuns) Get(ctx context.Context, runID string) (Summary, error) {
	summary, err := scanRun(r.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM import_runs WHERE id = $1`, runID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Summary{}, ErrRunNotFound
	}
	if err != nil {
		return Summary{}, err
	}
	rows, err := r.pool.Query(ctx, `SELECT vendor_product_key, name, sku, product_id, state, vendor_cost,
calculated_price, rule_id, reason, error FROM import_run_lines WHERE run_id = $1 ORDER BY position`, runID)
	if err != nil {
		return Summary{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line Line
		if err := rows.Scan(&line.VendorProductKey, &line.Name, &line.SKU, &line.ProductID, &line.State,
			&line.VendorCost, &line.CalculatedPrice, &line.RuleID, &line.Reason, &line.Error); err != nil {
			return Summary{}, err
		}
		summary.Lines = append(summary.Lines, line)
	}
	return summary, rows.Err()
}

func (r *PGRuns) ListByVendor(ctx context.Context, vendorID int64, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.pool.Query(ctx, `SELECT `+runColumns+` FROM import_runs WHERE vendor_id = $1
ORDER BY started_at DESC LIMIT $2`, vendorID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Summary
	for rows.Next() {
		summary, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, summary)
	}
	return out, rows.Err()
}

func scanRun(row pgx.Row) (Summary, error) {
	var s Summary
	err := row.Scan(&s.RunID, &s.VendorID, &s.VendorName, &s.Mode, &s.State, &s.Fetched, &s.Found,
		&s.Created, &s.Updated, &s.Skipped, &s.Failed, &s.Error, &s.StartedAt, &s.FinishedAt)
	return s, err
}
