package pricing

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// LoadRules validates rule configuration and compiles formulas. It is the
// only place rules are checked; the engine trusts its input afterwards.
func LoadRules(rules []Rule) ([]Rule, error) {
	loaded := make([]Rule, 0, len(rules))
	seen := make(map[int64]struct{}, len(rules))
	for _, rule := range rules {
		if err := validateRule(rule); err != nil {
			return nil, err
		}
		if _, dup := seen[rule.ID]; dup {
			return nil, &ValidationError{RuleID: rule.ID, Field: "id", Reason: "is duplicated"}
		}
		seen[rule.ID] = struct{}{}
		if rule.Rounding == "" {
			rule.Rounding = RoundingNone
		}
		if rule.Method == MethodFormula && rule.Formula != "" {
			compiled, err := CompileFormula(rule.Formula, rule.Constants)
			if err != nil {
				return nil, fmt.Errorf("%w: %w", &ValidationError{RuleID: rule.ID, Field: "formula", Reason: "does not compile"}, err)
			}
			rule.compiled = compiled
		}
		loaded = append(loaded, rule)
	}
	return loaded, nil
}

// LoadRulesFile reads a JSON array of rules from path.
func LoadRulesFile(path string) ([]Rule, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pricing: read rules: %w", err)
	}
	var rules []Rule
	if err := json.Unmarshal(raw, &rules); err != nil {
		return nil, fmt.Errorf("pricing: decode rules: %w", err)
	}
	return LoadRules(rules)
}

func validateRule(rule Rule) error {
	if err := validate.Struct(rule); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return &ValidationError{RuleID: rule.ID, Field: fe.Field(), Reason: "failed " + fe.Tag()}
		}
		return &ValidationError{RuleID: rule.ID, Field: "rule", Reason: err.Error()}
	}
	switch {
	case rule.MinCost.IsNegative():
		return &ValidationError{RuleID: rule.ID, Field: "min_cost", Reason: "must be >= 0"}
	case rule.MaxCost.IsNegative():
		return &ValidationError{RuleID: rule.ID, Field: "max_cost", Reason: "must be >= 0"}
	case !rule.MaxCost.IsZero() && rule.MinCost.GreaterThan(rule.MaxCost):
		return &ValidationError{RuleID: rule.ID, Field: "min_cost", Reason: "cannot be greater than max_cost"}
	case rule.Method == MethodPercentage && rule.MarkupPercentage.IsNegative():
		return &ValidationError{RuleID: rule.ID, Field: "markup_percentage", Reason: "cannot be negative"}
	case rule.RoundingPrecision.IsNegative():
		return &ValidationError{RuleID: rule.ID, Field: "rounding_precision", Reason: "cannot be negative"}
	case rule.MinProfitAmount.IsNegative() || rule.MinProfitPercentage.IsNegative():
		return &ValidationError{RuleID: rule.ID, Field: "min_profit", Reason: "cannot be negative"}
	}
	return nil
}
