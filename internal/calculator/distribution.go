package calculator

import (
	"sort"

	"FlowSentinel/internal/model"

	"github.com/shopspring/decimal"
)

// Distribution summarizes a list of non-negative balances. Whales are
// balances at or above whaleThreshold. The input slice is not modified.
func Distribution(balances []decimal.Decimal, whaleThreshold decimal.Decimal) model.RichListStats {
	n := len(balances)
	stats := model.RichListStats{
		TotalBalance:  decimal.Zero,
		MeanBalance:   decimal.Zero,
		MedianBalance: decimal.Zero,
		AccountCount:  n,
	}
	if n == 0 {
		return stats
	}

	sorted := make([]decimal.Decimal, n)
	copy(sorted, balances)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].LessThan(sorted[j]) })

	total := decimal.Zero
	for _, b := range sorted {
		total = total.Add(b)
		if b.GreaterThanOrEqual(whaleThreshold) {
			stats.WhaleCount++
		}
	}

	stats.TotalBalance = total
	stats.MeanBalance = total.Div(decimal.NewFromInt(int64(n)))
	stats.MedianBalance = sorted[(n-1)/2]
	stats.GiniCoefficient = Gini(sorted, total)
	return stats
}

// Gini computes the Gini coefficient of ascending balances summing to total,
// rounded to 4 decimals. It is 0 for an empty list or a zero total.
func Gini(sortedAsc []decimal.Decimal, total decimal.Decimal) float64 {
	n := len(sortedAsc)
	if n == 0 || total.IsZero() {
		return 0
	}
	weighted := decimal.Zero
	for i, b := range sortedAsc {
		weighted = weighted.Add(b.Mul(decimal.NewFromInt(int64(i + 1))))
	}
	nd := decimal.NewFromInt(int64(n))
	num := weighted.Mul(decimal.NewFromInt(2)).Sub(nd.Add(decimal.NewFromInt(1)).Mul(total))
	g := num.Div(nd.Mul(total))
	return g.Round(4).InexactFloat64()
}
