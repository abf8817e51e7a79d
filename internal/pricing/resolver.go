package pricing

import (
	"slices"

	"github.com/shopspring/decimal"
)

// Resolver selects the single most specific rule applicable to a cost.
type Resolver struct {
	rules []Rule
}

// NewResolver copies rules into tie-break order: ascending sequence, then
// descending min cost, then ascending id. Input order never matters.
func NewResolver(rules []Rule) *Resolver {
	sorted := slices.Clone(rules)
	slices.SortStableFunc(sorted, compareRules)
	return &Resolver{rules: sorted}
}

func compareRules(a, b Rule) int {
	if a.Sequence != b.Sequence {
		if a.Sequence < b.Sequence {
			return -1
		}
		return 1
	}
	if c := b.MinCost.Cmp(a.MinCost); c != 0 {
		return c
	}
	switch {
	case a.ID < b.ID:
		return -1
	case a.ID > b.ID:
		return 1
	}
	return 0
}

// Rules returns the rules in resolution order.
func (r *Resolver) Rules() []Rule {
	return slices.Clone(r.rules)
}

const (
	rankSpecific = iota
	rankGeneral
	rankUnbound
	rankExcluded
)

// Resolve returns the winning rule for cost in the optional category and
// vendor context. ok is false when nothing applies.
func (r *Resolver) Resolve(cost decimal.Decimal, category, vendor *int64) (Rule, bool) {
	best := -1
	bestRank := rankExcluded
	for i, rule := range r.rules {
		if !rule.Active || !rule.Contains(cost) {
			continue
		}
		rank := specificity(rule, category, vendor)
		if rank < bestRank {
			best, bestRank = i, rank
			if rank == rankSpecific {
				break
			}
		}
	}
	if best < 0 {
		return Rule{}, false
	}
	return r.rules[best], true
}

// specificity ranks a rule for the context. A scoped rule whose scope
// excludes the supplied context never applies; a scoped rule with no context
// for that dimension applies only after every unscoped rule.
func specificity(rule Rule, category, vendor *int64) int {
	catScoped := len(rule.CategoryIDs) > 0
	vendorScoped := len(rule.VendorIDs) > 0
	if catScoped && category != nil && !slices.Contains(rule.CategoryIDs, *category) {
		return rankExcluded
	}
	if vendorScoped && vendor != nil && !slices.Contains(rule.VendorIDs, *vendor) {
		return rankExcluded
	}
	if (catScoped && category != nil) || (vendorScoped && vendor != nil) {
		return rankSpecific
	}
	if catScoped || vendorScoped {
		return rankUnbound
	}
	return rankGeneral
}

// Pricer combines resolution and calculation with the no-rule fallback.
type Pricer struct {
	resolver   *Resolver
	calculator *Calculator
}

// NewPricer builds a Pricer.
func NewPricer(resolver *Resolver, calculator *Calculator) *Pricer {
	return &Pricer{resolver: resolver, calculator: calculator}
}

// Quote prices cost for the context. When no rule matches the fallback
// markup applies and Quote.Fallback is set.
func (p *Pricer) Quote(cost decimal.Decimal, category, vendor *int64) (Quote, error) {
	if cost.IsNegative() {
		return Quote{}, ErrNegativeCost
	}
	rule, ok := p.resolver.Resolve(cost, category, vendor)
	if !ok {
		return Quote{Cost: cost, Price: FallbackPrice(cost), Fallback: true}, nil
	}
	price, err := p.calculator.Price(cost, rule)
	if err != nil {
		return Quote{}, err
	}
	return Quote{Cost: cost, Price: price, RuleID: rule.ID}, nil
}
