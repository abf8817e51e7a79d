package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Method enumerates supported pricing strategies.
type Method string

const (
	// MethodPercentage adds a markup percentage to cost.
	MethodPercentage Method = "percentage"
	// MethodFixed adds a fixed amount to cost.
	MethodFixed Method = "fixed"
	// MethodFormula evaluates a compiled expression over cost.
	MethodFormula Method = "formula"
)

// RoundingMethod enumerates rounding policies applied after floors.
type RoundingMethod string

const (
	RoundingNone    RoundingMethod = "none"
	RoundingUp      RoundingMethod = "up"
	RoundingDown    RoundingMethod = "down"
	RoundingNearest RoundingMethod = "nearest"
)

// Rule is a cost-range scoped pricing tier. Rules are read-only once loaded.
type Rule struct {
	ID                  int64                      `json:"id" validate:"required,gt=0"`
	Name                string                     `json:"name" validate:"required"`
	Active              bool                       `json:"active"`
	Sequence            int                        `json:"sequence"`
	MinCost             decimal.Decimal            `json:"min_cost"`
	MaxCost             decimal.Decimal            `json:"max_cost"`
	Method              Method                     `json:"method" validate:"required,oneof=percentage fixed formula"`
	MarkupPercentage    decimal.Decimal            `json:"markup_percentage"`
	FixedAmount         decimal.Decimal            `json:"fixed_amount"`
	Formula             string                     `json:"formula"`
	Constants           map[string]decimal.Decimal `json:"constants"`
	Rounding            RoundingMethod             `json:"rounding" validate:"omitempty,oneof=none up down nearest"`
	RoundingPrecision   decimal.Decimal            `json:"rounding_precision"`
	MinProfitAmount     decimal.Decimal            `json:"min_profit_amount"`
	MinProfitPercentage decimal.Decimal            `json:"min_profit_percentage"`
	CategoryIDs         []int64                    `json:"category_ids" validate:"dive,gt=0"`
	VendorIDs           []int64                    `json:"vendor_ids" validate:"dive,gt=0"`

	compiled *Formula
}

// Contains reports whether cost falls inside the rule range. A zero MaxCost is unbounded.
func (r Rule) Contains(cost decimal.Decimal) bool {
	if cost.LessThan(r.MinCost) {
		return false
	}
	return r.MaxCost.IsZero() || cost.LessThanOrEqual(r.MaxCost)
}

// Compiled returns the formula compiled at load time, if any.
func (r Rule) Compiled() *Formula {
	return r.compiled
}

// Quote is the outcome of pricing one cost in a given context.
type Quote struct {
	Cost     decimal.Decimal
	Price    decimal.Decimal
	RuleID   int64
	Fallback bool
}

var (
	// ErrInvalidFormula indicates an expression outside the whitelisted grammar.
	ErrInvalidFormula = errors.New("pricing: invalid formula")
	// ErrNegativeCost indicates a negative vendor cost.
	ErrNegativeCost = errors.New("pricing: cost must be >= 0")
	// ErrValidation marks configuration-time rule rejections.
	ErrValidation = errors.New("pricing: invalid rule")
)

// ValidationError reports a rule rejected while loading configuration.
type ValidationError struct {
	RuleID int64
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("pricing: rule %d: %s %s", e.RuleID, e.Field, e.Reason)
}

// Unwrap lets callers match ErrValidation.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// FormulaEvaluationError is raised when a compiled formula fails for a cost.
type FormulaEvaluationError struct {
	RuleID int64
	Err    error
}

func (e *FormulaEvaluationError) Error() string {
	return fmt.Sprintf("pricing: rule %d formula evaluation: %v", e.RuleID, e.Err)
}

func (e *FormulaEvaluationError) Unwrap() error {
	return e.Err
}
