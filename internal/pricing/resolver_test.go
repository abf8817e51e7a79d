package pricing

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func ptr(v int64) *int64 { return &v }

func TestSpecificRuleBeatsLowerMinCost(t *testing.T) {
	resolver := NewResolver([]Rule{
		{ID: 1, Name: "A", Active: true, Sequence: 1, MinCost: d("0"), Method: MethodPercentage},
		{ID: 2, Name: "B", Active: true, Sequence: 1, MinCost: d("40"), Method: MethodPercentage, CategoryIDs: []int64{9}},
	})
	rule, ok := resolver.Resolve(d("50"), ptr(9), nil)
	require.True(t, ok)
	require.Equal(t, int64(2), rule.ID)
}

func TestSpecificityOutranksSequence(t *testing.T) {
	resolver := NewResolver([]Rule{
		{ID: 1, Active: true, Sequence: 1, Method: MethodPercentage},
		{ID: 2, Active: true, Sequence: 50, Method: MethodPercentage, VendorIDs: []int64{3}},
	})
	rule, ok := resolver.Resolve(d("10"), nil, ptr(3))
	require.True(t, ok)
	require.Equal(t, int64(2), rule.ID)
}

func TestScopedRuleForOtherContextIsExcluded(t *testing.T) {
	resolver := NewResolver([]Rule{
		{ID: 1, Active: true, Sequence: 1, Method: MethodPercentage, CategoryIDs: []int64{5}},
		{ID: 2, Active: true, Sequence: 9, Method: MethodPercentage},
	})
	rule, ok := resolver.Resolve(d("10"), ptr(6), nil)
	require.True(t, ok)
	require.Equal(t, int64(2), rule.ID)

	resolver = NewResolver([]Rule{{ID: 1, Active: true, Method: MethodPercentage, VendorIDs: []int64{5}}})
	_, ok = resolver.Resolve(d("10"), nil, ptr(6))
	require.False(t, ok)
}

func TestUnboundScopedRuleRanksAfterGeneral(t *testing.T) {
	resolver := NewResolver([]Rule{
		{ID: 1, Active: true, Sequence: 1, Method: MethodPercentage, CategoryIDs: []int64{5}},
		{ID: 2, Active: true, Sequence: 9, Method: MethodPercentage},
	})
	rule, ok := resolver.Resolve(d("10"), nil, ptr(1))
	require.True(t, ok)
	require.Equal(t, int64(2), rule.ID)

	resolver = NewResolver([]Rule{{ID: 1, Active: true, Method: MethodPercentage, CategoryIDs: []int64{5}}})
	rule, ok = resolver.Resolve(d("10"), nil, nil)
	require.True(t, ok)
	require.Equal(t, int64(1), rule.ID)
}

func TestTieBreakBySequenceThenMinCost(t *testing.T) {
	resolver := NewResolver([]Rule{
		{ID: 1, Active: true, Sequence: 2, MinCost: d("0"), Method: MethodPercentage},
		{ID: 2, Active: true, Sequence: 1, MinCost: d("0"), Method: MethodPercentage},
		{ID: 3, Active: true, Sequence: 1, MinCost: d("5"), Method: MethodPercentage},
	})
	rule, ok := resolver.Resolve(d("10"), nil, nil)
	require.True(t, ok)
	require.Equal(t, int64(3), rule.ID)
}

func TestInactiveAndOutOfRangeIgnored(t *testing.T) {
	resolver := NewResolver([]Rule{
		{ID: 1, Active: false, Method: MethodPercentage},
		{ID: 2, Active: true, MinCost: d("0"), MaxCost: d("9.99"), Method: MethodPercentage},
		{ID: 3, Active: true, MinCost: d("20"), Method: MethodPercentage},
	})
	_, ok := resolver.Resolve(d("10"), nil, nil)
	require.False(t, ok)

	rule, ok := resolver.Resolve(d("9.99"), nil, nil)
	require.True(t, ok)
	require.Equal(t, int64(2), rule.ID)
}

func TestResolveIndependentOfConfigurationOrder(t *testing.T) {
	rules := []Rule{
		{ID: 1, Active: true, Sequence: 10, MinCost: d("0"), Method: MethodPercentage},
		{ID: 2, Active: true, Sequence: 10, MinCost: d("25"), MaxCost: d("100"), Method: MethodPercentage},
		{ID: 3, Active: true, Sequence: 5, MinCost: d("0"), MaxCost: d("30"), Method: MethodPercentage, VendorIDs: []int64{2}},
		{ID: 4, Active: true, Sequence: 5, MinCost: d("10"), Method: MethodPercentage, CategoryIDs: []int64{1}},
		{ID: 5, Active: true, Sequence: 10, MinCost: d("25"), Method: MethodPercentage},
	}
	costs := []string{"0", "5", "10", "24.99", "25", "30", "31", "100", "101"}
	contexts := []struct{ cat, vendor *int64 }{{nil, nil}, {ptr(1), nil}, {nil, ptr(2)}, {ptr(1), ptr(2)}, {ptr(7), ptr(8)}}

	baseline := NewResolver(rules)
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 20; i++ {
		shuffled := append([]Rule(nil), rules...)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		other := NewResolver(shuffled)
		for _, c := range costs {
			for _, ctx := range contexts {
				want, wantOK := baseline.Resolve(d(c), ctx.cat, ctx.vendor)
				got, gotOK := other.Resolve(d(c), ctx.cat, ctx.vendor)
				require.Equal(t, wantOK, gotOK)
				require.Equal(t, want.ID, got.ID)
				if gotOK {
					require.True(t, got.Contains(d(c)))
				}
			}
		}
	}
}

func TestPricerFallback(t *testing.T) {
	pricer := NewPricer(NewResolver(nil), NewCalculator(nil))
	quote, err := pricer.Quote(d("10"), nil, nil)
	require.NoError(t, err)
	require.True(t, quote.Fallback)
	requireDecimal(t, "13", quote.Price)
	require.Zero(t, quote.RuleID)

	pricer = NewPricer(NewResolver([]Rule{{ID: 4, Active: true, Method: MethodFixed, FixedAmount: d("1")}}), NewCalculator(nil))
	quote, err = pricer.Quote(decimal.NewFromInt(10), nil, nil)
	require.NoError(t, err)
	require.False(t, quote.Fallback)
	require.Equal(t, int64(4), quote.RuleID)
	requireDecimal(t, "11", quote.Price)
}
