package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/odyssey-erp/vendorsync/internal/pricing"
	"github.com/odyssey-erp/vendorsync/internal/vendors"
	schedule "github.com/odyssey-erp/vendorsync/jobs"
)

// ValidateOptions defines the flags of the validate command.
type ValidateOptions struct {
	VendorsFile string
	RulesFile   string
	JSONOutput  bool
	Stdout      io.Writer
	Stderr      io.Writer
}

// ValidateSummary is the JSON report of the validate command.
type ValidateSummary struct {
	OK      bool            `json:"ok"`
	Vendors []VendorSummary `json:"vendors"`
	Rules   int             `json:"rules"`
	Errors  []string        `json:"errors,omitempty"`
}

// VendorSummary describes one configured vendor.
type VendorSummary struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Active   bool   `json:"active"`
	Schedule string `json:"schedule,omitempty"`
}

// ValidateCommand loads the vendor and pricing files and reports problems.
// It returns the process exit code: 0 when valid, 10 when a file is
// rejected and 1 on usage errors.
func ValidateCommand(opts ValidateOptions) int {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.VendorsFile == "" && opts.RulesFile == "" {
		_, _ = fmt.Fprintln(opts.Stderr, "validate: --vendors or --rules is required")
		return 1
	}

	summary := ValidateSummary{OK: true, Vendors: []VendorSummary{}}
	if opts.VendorsFile != "" {
		if reg, err := vendors.LoadFile(opts.VendorsFile); err != nil {
			summary.OK = false
			summary.Errors = append(summary.Errors, err.Error())
		} else {
			summary.Vendors = describeVendors(reg)
		}
	}
	if opts.RulesFile != "" {
		if rules, err := pricing.LoadRulesFile(opts.RulesFile); err != nil {
			summary.OK = false
			summary.Errors = append(summary.Errors, err.Error())
		} else {
			summary.Rules = len(rules)
		}
	}

	if opts.JSONOutput {
		if err := json.NewEncoder(opts.Stdout).Encode(summary); err != nil {
			_, _ = fmt.Fprintf(opts.Stderr, "validate: encode json: %v\n", err)
			return 1
		}
	} else {
		renderValidateHuman(opts.Stdout, summary)
	}
	if !summary.OK {
		return 10
	}
	return 0
}

func describeVendors(reg *vendors.Registry) []VendorSummary {
	configs, _ := reg.List(context.Background())
	out := make([]VendorSummary, 0, len(configs))
	for _, cfg := range configs {
		spec, _ := schedule.CronSpec(cfg.Frequency)
		out = append(out, VendorSummary{ID: cfg.ID, Name: cfg.Name, Type: string(cfg.Type), Active: cfg.Active, Schedule: spec})
	}
	return out
}

func renderValidateHuman(w io.Writer, summary ValidateSummary) {
	for _, v := range summary.Vendors {
		state := "inactive"
		if v.Active {
			state = "active"
		}
		sched := v.Schedule
		if sched == "" {
			sched = "manual"
		}
		_, _ = fmt.Fprintf(w, "vendor %d %s (%s, %s, %s)\n", v.ID, v.Name, v.Type, state, sched)
	}
	if summary.Rules > 0 {
		_, _ = fmt.Fprintf(w, "%d pricing rules\n", summary.Rules)
	}
	for _, e := range summary.Errors {
		_, _ = fmt.Fprintf(w, "error: %s\n", e)
	}
	if summary.OK {
		_, _ = fmt.Fprintln(w, "configuration ok")
	}
}
