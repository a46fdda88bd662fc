// Package arbiter implements the Rebalance Arbiter (C5, spec.md §4.5):
// a pure decision of whether a symphony should rebalance today given
// its policy, its last known target weights, and current positions.
package arbiter

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// exchangeLocation is the calendar spec.md §4.5 pins time-based rules
// to ("Calendar is exchange local (US/Eastern)").
var exchangeLocation = mustLoadLocation("America/New_York")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Decide returns (execute, reason) for whether symphony should
// rebalance today, given its last-persisted target weights and
// current positions' market values (spec.md §4.5). asOf is the
// wall-clock evaluation date; it is converted to exchange-local time
// before any calendar comparison.
func Decide(symphony *types.Symphony, positions []*types.Position, asOf time.Time) (bool, string) {
	local := asOf.In(exchangeLocation)

	if symphony.Policy.Threshold != nil {
		return decideThreshold(symphony, positions, local)
	}
	return decideTimeBased(symphony.Policy.Frequency, local)
}

func decideTimeBased(freq types.RebalanceFrequency, local time.Time) (bool, string) {
	switch freq {
	case types.FrequencyDaily:
		return true, "daily schedule"
	case types.FrequencyWeekly:
		if local.Weekday() == time.Monday {
			return true, "weekly schedule: Monday"
		}
		return false, "weekly schedule: not Monday"
	case types.FrequencyMonthly:
		if local.Day() == 1 {
			return true, "monthly schedule: first of month"
		}
		return false, "monthly schedule: not first of month"
	case types.FrequencyQuarterly:
		if local.Day() == 1 && isQuarterStartMonth(local.Month()) {
			return true, "quarterly schedule: first of quarter"
		}
		return false, "quarterly schedule: not first of quarter"
	case types.FrequencyYearly:
		if local.Day() == 1 && local.Month() == time.January {
			return true, "yearly schedule: Jan 1"
		}
		return false, "yearly schedule: not Jan 1"
	default:
		return false, fmt.Sprintf("unrecognized rebalance frequency %q", freq)
	}
}

func isQuarterStartMonth(m time.Month) bool {
	switch m {
	case time.January, time.April, time.July, time.October:
		return true
	default:
		return false
	}
}

// decideThreshold compares current market-value weights against the
// symphony's last-persisted target weights (Symphony.LastTargets) — a
// full tree re-evaluation is not required just to test eligibility.
// With no positions, a rebalance always triggers (initial
// allocation). MinRebalanceAgeDays forces a rebalance once that many
// days have elapsed with zero drift (SPEC_FULL.md §D.5).
func decideThreshold(symphony *types.Symphony, positions []*types.Position, local time.Time) (bool, string) {
	if len(positions) == 0 {
		return true, "no existing positions: initial allocation"
	}

	current := currentWeights(positions)
	targets := symphony.LastTargets
	if targets == nil {
		targets = map[string]decimal.Decimal{}
	}

	maxDeviation := decimal.Zero
	tickers := unionTickers(current, targets)
	for _, t := range tickers {
		dev := current[t].Sub(targets[t]).Abs()
		if dev.GreaterThan(maxDeviation) {
			maxDeviation = dev
		}
	}

	corridor := symphony.Policy.Threshold.CorridorWidth
	if maxDeviation.GreaterThan(corridor) {
		return true, fmt.Sprintf("drift %s exceeds corridor %s", maxDeviation.String(), corridor.String())
	}

	if symphony.Policy.MinRebalanceAgeDays > 0 && !symphony.LastExecutedAt.IsZero() {
		age := local.Sub(symphony.LastExecutedAt.In(exchangeLocation))
		if age >= time.Duration(symphony.Policy.MinRebalanceAgeDays)*24*time.Hour {
			return true, fmt.Sprintf("forced rebalance: %d days since last execution", symphony.Policy.MinRebalanceAgeDays)
		}
	}

	return false, fmt.Sprintf("drift %s within corridor %s", maxDeviation.String(), corridor.String())
}

func currentWeights(positions []*types.Position) map[string]decimal.Decimal {
	total := decimal.Zero
	values := make(map[string]decimal.Decimal, len(positions))
	for _, p := range positions {
		v := p.MarketValue()
		values[p.Ticker] = v
		total = total.Add(v)
	}
	weights := make(map[string]decimal.Decimal, len(values))
	if total.IsZero() {
		return weights
	}
	for ticker, v := range values {
		weights[ticker] = v.Div(total)
	}
	return weights
}

func unionTickers(a, b map[string]decimal.Decimal) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for t := range a {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	for t := range b {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}
