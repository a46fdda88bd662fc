package evaluator

import (
	"sort"

	"github.com/shopspring/decimal"
)

var fourDecimalPlaces = int32(4)

// applyAllocationConstraint implements spec.md §4.4's post-processing
// step: reduce investable weight by the cash buffer, clip per-asset
// weights to [min, max], drop anything below min and renormalise the
// remainder to sum to 1-cashBuffer, then round to 4 decimal places. If
// no investable asset remains the result collapses to {cash: 1}.
func applyAllocationConstraint(cs []candidate, c AllocationConstraint) (map[string]decimal.Decimal, []string, error) {
	investable := decimal.NewFromInt(1).Sub(c.CashBuffer)

	kept := make([]candidate, 0, len(cs))
	var excluded []string
	for _, cand := range cs {
		w := cand.Weight
		if c.MaxAllocation.IsPositive() && w.GreaterThan(c.MaxAllocation) {
			w = c.MaxAllocation
		}
		if w.LessThan(c.MinAllocation) {
			excluded = append(excluded, cand.Ticker)
			continue
		}
		cand.Weight = w
		kept = append(kept, cand)
	}
	sort.Strings(excluded)

	if len(kept) == 0 {
		return map[string]decimal.Decimal{"cash": decimal.NewFromInt(1)}, excluded, nil
	}

	rawSum := decimal.Zero
	for _, cand := range kept {
		rawSum = rawSum.Add(cand.Weight)
	}
	if rawSum.IsZero() {
		return map[string]decimal.Decimal{"cash": decimal.NewFromInt(1)}, excluded, nil
	}

	weights := make(map[string]decimal.Decimal, len(kept)+1)
	scale := investable.Div(rawSum)
	allocated := decimal.Zero
	for _, cand := range kept {
		w := cand.Weight.Mul(scale).Round(fourDecimalPlaces)
		weights[cand.Ticker] = w
		allocated = allocated.Add(w)
	}

	if remainder := decimal.NewFromInt(1).Sub(allocated); !remainder.IsZero() {
		weights["cash"] = remainder.Round(fourDecimalPlaces)
	}

	return weights, excluded, nil
}
