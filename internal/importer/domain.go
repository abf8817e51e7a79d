package importer

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// State is the lifecycle of an import run.
type State string

const (
	StateDraft      State = "draft"
	StateInProgress State = "in_progress"
	StateDone       State = "done"
	StateFailed     State = "failed"
	StateCancelled  State = "cancelled"
)

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed || s == StateCancelled
}

// Mode narrows what a run may write.
type Mode string

const (
	ModeFull       Mode = "full"
	ModeUpdateOnly Mode = "update_only"
	ModeNewOnly    Mode = "new_only"
)

// LineState is the outcome of one record.
type LineState string

const (
	LineCreated LineState = "created"
	LineUpdated LineState = "updated"
	LineSkipped LineState = "skipped"
	LineFailed  LineState = "failed"
)

// Options tune a single run. Zero means a full, unlimited run.
type Options struct {
	Mode       Mode `json:"mode" validate:"omitempty,oneof=full update_only new_only"`
	MaxRecords int  `json:"max_records" validate:"gte=0"`
}

// Line records what happened to one vendor record.
type Line struct {
	VendorProductKey string          `json:"vendor_product_key"`
	Name             string          `json:"name"`
	SKU              string          `json:"sku,omitempty"`
	ProductID        int64           `json:"product_id,omitempty"`
	State            LineState       `json:"state"`
	VendorCost       decimal.Decimal `json:"vendor_cost"`
	CalculatedPrice  decimal.Decimal `json:"calculated_price"`
	RuleID           int64           `json:"rule_id,omitempty"`
	Reason           string          `json:"reason,omitempty"`
	Error            string          `json:"error,omitempty"`
}

// Summary is the finalized report of a run. Found counts attempted records
// and always equals Created+Updated+Skipped+Failed.
type Summary struct {
	RunID      string     `json:"run_id"`
	VendorID   int64      `json:"vendor_id"`
	VendorName string     `json:"vendor_name"`
	Mode       Mode       `json:"mode"`
	DryRun     bool       `json:"dry_run"`
	State      State      `json:"state"`
	Fetched    int        `json:"fetched"`
	Found      int        `json:"found"`
	Created    int        `json:"created"`
	Updated    int        `json:"updated"`
	Skipped    int        `json:"skipped"`
	Failed     int        `json:"failed"`
	Lines      []Line     `json:"lines"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Duration is the wall time of a finished run.
func (s Summary) Duration() time.Duration {
	if s.FinishedAt == nil {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

func (s *Summary) tally(line Line) {
	s.Found++
	switch line.State {
	case LineCreated:
		s.Created++
	case LineUpdated:
		s.Updated++
	case LineSkipped:
		s.Skipped++
	default:
		s.Failed++
	}
	s.Lines = append(s.Lines, line)
}

func (s Summary) closed() bool {
	return s.Found == s.Created+s.Updated+s.Skipped+s.Failed && s.Found == len(s.Lines)
}

var (
	// ErrConcurrencyConflict rejects a run while the vendor has one in progress.
	ErrConcurrencyConflict = errors.New("importer: vendor import already in progress")
	// ErrRunNotFound indicates an unknown or finished run id.
	ErrRunNotFound = errors.New("importer: run not found")
	// ErrAccounting signals a broken found == created+updated+skipped+failed total.
	ErrAccounting = errors.New("importer: run totals do not add up")
	// ErrInvalidOptions rejects malformed run options.
	ErrInvalidOptions = errors.New("importer: invalid options")
	// ErrConnectionFailed reports a vendor whose source did not answer.
	ErrConnectionFailed = errors.New("importer: vendor connection failed")
)

// RecordError is a failure confined to one vendor record.
type RecordError struct {
	VendorID  int64
	RecordKey string
	Err       error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("importer: vendor %d record %q: %v", e.VendorID, e.RecordKey, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}
