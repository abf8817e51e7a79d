package pricing

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)

	// FallbackMarkup is applied when no rule matches a cost.
	FallbackMarkup = decimal.RequireFromString("1.3")
)

// FallbackPrice is the documented price when no rule applies.
func FallbackPrice(cost decimal.Decimal) decimal.Decimal {
	return cost.Mul(FallbackMarkup)
}

// Calculator computes sale prices from a selected rule.
type Calculator struct {
	logger *slog.Logger
}

// NewCalculator builds a Calculator. A nil logger falls back to slog.Default.
func NewCalculator(logger *slog.Logger) *Calculator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Calculator{logger: logger}
}

// Price applies the rule method, profit floors, then rounding.
func (c *Calculator) Price(cost decimal.Decimal, rule Rule) (decimal.Decimal, error) {
	if cost.IsNegative() {
		return decimal.Zero, ErrNegativeCost
	}
	price, err := c.base(cost, rule)
	if err != nil {
		return decimal.Zero, err
	}
	price = applyFloors(cost, price, rule)
	return Round(price, rule.Rounding, rule.RoundingPrecision), nil
}

func (c *Calculator) base(cost decimal.Decimal, rule Rule) (decimal.Decimal, error) {
	switch rule.Method {
	case MethodFixed:
		return cost.Add(rule.FixedAmount), nil
	case MethodFormula:
		if rule.Formula == "" {
			return markup(cost, rule.MarkupPercentage), nil
		}
		formula := rule.compiled
		if formula == nil {
			compiled, err := CompileFormula(rule.Formula, rule.Constants)
			if err != nil {
				return decimal.Zero, fmt.Errorf("pricing: rule %d: %w", rule.ID, err)
			}
			formula = compiled
		}
		price, err := formula.Eval(cost)
		if err == nil && price.IsNegative() {
			err = errors.New("negative result")
		}
		if err != nil {
			evalErr := &FormulaEvaluationError{RuleID: rule.ID, Err: err}
			c.logger.Error("evaluate price formula",
				slog.Int64("rule_id", rule.ID),
				slog.String("rule", rule.Name),
				slog.String("cost", cost.String()),
				slog.Any("error", evalErr))
			return markup(cost, rule.MarkupPercentage), nil
		}
		return price, nil
	default:
		return markup(cost, rule.MarkupPercentage), nil
	}
}

func markup(cost, pct decimal.Decimal) decimal.Decimal {
	return cost.Mul(one.Add(pct.Div(hundred)))
}

// applyFloors enforces minimum profit. Both floors apply when configured.
func applyFloors(cost, price decimal.Decimal, rule Rule) decimal.Decimal {
	if rule.MinProfitAmount.IsPositive() {
		price = decimal.Max(price, cost.Add(rule.MinProfitAmount))
	}
	if rule.MinProfitPercentage.IsPositive() {
		price = decimal.Max(price, markup(cost, rule.MinProfitPercentage))
	}
	return price
}

// Round snaps price to a multiple of precision. Non-positive precision or
// RoundingNone leaves the price untouched. Nearest rounds half away from zero.
func Round(price decimal.Decimal, method RoundingMethod, precision decimal.Decimal) decimal.Decimal {
	if !precision.IsPositive() {
		return price
	}
	steps := price.Div(precision)
	switch method {
	case RoundingUp:
		return steps.Ceil().Mul(precision)
	case RoundingDown:
		return steps.Floor().Mul(precision)
	case RoundingNearest:
		return steps.Round(0).Mul(precision)
	default:
		return price
	}
}

// ProfitMargin returns (price-cost)/cost as a percentage, zero when either side is not positive.
func ProfitMargin(cost, price decimal.Decimal) decimal.Decimal {
	if !cost.IsPositive() || !price.IsPositive() {
		return decimal.Zero
	}
	return price.Sub(cost).Div(cost).Mul(hundred).Round(2)
}
