// Package planner implements the Order Planner (C6, spec.md §4.6):
// turns target weights and current positions into a deterministic,
// buying-power-bounded list of order intents.
package planner

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/atlas-desktop/trading-backend/pkg/types"
	"github.com/atlas-desktop/trading-backend/pkg/utils"
)

// Position is the planner's minimal view of a current holding.
type Position struct {
	Ticker   string
	Quantity decimal.Decimal
	Price    decimal.Decimal
}

// orderDelta is one ticker's signed dollar delta before share-quantity
// rounding.
type orderDelta struct {
	ticker   string
	value    decimal.Decimal
	refPrice decimal.Decimal
}

// Plan computes the ordered list of order intents for moving from
// current positions to target weights, given total account equity and
// available buying power (spec.md §4.6). minOrderDollars suppresses
// noise trades below that absolute dollar delta.
func Plan(equity decimal.Decimal, current []Position, targets map[string]decimal.Decimal, referencePrices map[string]decimal.Decimal, buyingPower, minOrderDollars decimal.Decimal) []types.OrderIntent {
	byTicker := make(map[string]Position, len(current))
	for _, p := range current {
		byTicker[p.Ticker] = p
	}

	tickers := unionTickers(byTicker, targets)

	deltas := make([]orderDelta, 0, len(tickers))

	for _, ticker := range tickers {
		if ticker == "cash" {
			continue
		}
		target := targets[ticker]
		pos, held := byTicker[ticker]

		targetValue := equity.Mul(target)
		currentValue := decimal.Zero
		refPrice := referencePrices[ticker]
		if held {
			currentValue = pos.Quantity.Mul(pos.Price)
			if refPrice.IsZero() {
				refPrice = pos.Price
			}
		}
		if refPrice.IsZero() {
			continue // cannot size an order with no reference price
		}

		deltaValue := targetValue.Sub(currentValue)
		if deltaValue.Abs().LessThan(minOrderDollars) {
			continue
		}
		deltas = append(deltas, orderDelta{ticker: ticker, value: deltaValue, refPrice: refPrice})
	}

	scaleBuys(deltas, buyingPower)

	sells := make([]orderDelta, 0, len(deltas))
	buys := make([]orderDelta, 0, len(deltas))
	for _, d := range deltas {
		if d.value.IsNegative() {
			sells = append(sells, d)
		} else if !d.value.IsZero() {
			buys = append(buys, d)
		}
	}

	// Sells first (spec.md §4.6: "release buying power"); order among
	// sells is deterministic by ticker for a stable plan.
	sort.Slice(sells, func(i, j int) bool { return sells[i].ticker < sells[j].ticker })
	// Buys in decreasing |delta_value|, ties broken by ticker.
	sort.Slice(buys, func(i, j int) bool {
		if buys[i].value.Abs().Equal(buys[j].value.Abs()) {
			return buys[i].ticker < buys[j].ticker
		}
		return buys[i].value.Abs().GreaterThan(buys[j].value.Abs())
	})

	intents := make([]types.OrderIntent, 0, len(sells)+len(buys))
	for _, d := range sells {
		intents = append(intents, toIntent(d.ticker, d.value, d.refPrice))
	}
	for _, d := range buys {
		intents = append(intents, toIntent(d.ticker, d.value, d.refPrice))
	}
	return intents
}

func toIntent(ticker string, deltaValue, refPrice decimal.Decimal) types.OrderIntent {
	shares := utils.RoundSharesTowardZero(deltaValue.Div(refPrice))
	return types.OrderIntent{
		Ticker:         ticker,
		SignedQuantity: shares,
		ReferencePrice: refPrice,
	}
}

// scaleBuys ensures the sum of positive deltas never exceeds available
// buying power; if it would, every positive delta is scaled down
// proportionally (spec.md §4.6 "never over-spends").
func scaleBuys(deltas []orderDelta, buyingPower decimal.Decimal) {
	positiveSum := decimal.Zero
	for _, d := range deltas {
		if d.value.IsPositive() {
			positiveSum = positiveSum.Add(d.value)
		}
	}
	if positiveSum.LessThanOrEqual(buyingPower) || positiveSum.IsZero() {
		return
	}
	scale := buyingPower.Div(positiveSum)
	for i := range deltas {
		if deltas[i].value.IsPositive() {
			deltas[i].value = deltas[i].value.Mul(scale)
		}
	}
}

func unionTickers(current map[string]Position, targets map[string]decimal.Decimal) []string {
	seen := make(map[string]bool, len(current)+len(targets))
	out := make([]string, 0, len(current)+len(targets))
	for t := range current {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	for t := range targets {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	sort.Strings(out) // deterministic iteration before delta-based reordering
	return out
}
