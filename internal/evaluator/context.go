// Package evaluator implements the Tree Evaluator (C4, spec.md §4.4): a
// pure function from (annotated tree, data context, as-of date) to an
// EvaluationResult. Evaluation is expressed as rewrite rules over a
// working set of candidate assets, matching the shape named in
// spec.md §4.4 rather than a generic tree-visitor interface.
package evaluator

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/atlas-desktop/trading-backend/internal/indicators"
	"github.com/atlas-desktop/trading-backend/internal/tree"
	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// DataContext is the pre-populated market-data view the evaluator reads
// against (spec.md §4.4: "map ticker -> AssetSnapshot, plus helpers for
// metric lookup"). Built by the caller from the Market-Data Facade
// using the tree's Requirement Manifest; the evaluator never fetches
// data itself.
type DataContext struct {
	AsOf      time.Time
	Snapshots map[string]*types.AssetSnapshot
}

// Snapshot returns the asset snapshot for ticker, or false if it is not
// in the context (treated as a missing value by callers).
func (c *DataContext) Snapshot(ticker string) (*types.AssetSnapshot, bool) {
	s, ok := c.Snapshots[ticker]
	return s, ok
}

// Metric resolves a tree.Source against the data context, returning
// (value, ok=false) on any missing dependency: an absent snapshot, too
// short a history for the requested window, or an unresolved
// benchmark. Values are memoized on the snapshot so repeated lookups
// of the same (fn, window) pair within one evaluation are cheap.
func (c *DataContext) Metric(src tree.Source) (decimal.Decimal, bool) {
	if src.IsLiteral() {
		return *src.Literal, true
	}
	snap, ok := c.Snapshot(src.Ticker)
	if !ok {
		return decimal.Zero, false
	}

	param := ""
	var benchSnap *types.AssetSnapshot
	if src.Benchmark != "" {
		param = src.Benchmark
		benchSnap, ok = c.Snapshot(src.Benchmark)
		if !ok {
			return decimal.Zero, false
		}
	}

	if v, ok := snap.IndicatorCached(string(src.MetricFn), src.Window, param); ok {
		return v, true
	}

	v, ok := computeMetric(snap, benchSnap, src.MetricFn, src.Window)
	if !ok {
		return decimal.Zero, false
	}
	snap.MemoizeIndicator(string(src.MetricFn), src.Window, param, v)
	return v, true
}

func closesFloat(snap *types.AssetSnapshot) []float64 {
	out := make([]float64, len(snap.HistoricalCloses))
	for i, c := range snap.HistoricalCloses {
		f, _ := c.Float64()
		out[i] = f
	}
	return out
}

func computeMetric(snap, bench *types.AssetSnapshot, fn tree.MetricFn, window int) (decimal.Decimal, bool) {
	closes := closesFloat(snap)
	returns := indicators.CalculateReturns(closes)

	switch fn {
	case tree.MetricCurrentPrice:
		return snap.CurrentPrice, true
	case tree.MetricSMA:
		v, ok := indicators.SMA(closes, window)
		return indicators.ToDecimal(v), ok
	case tree.MetricEMA:
		v, ok := indicators.EMA(closes, window)
		return indicators.ToDecimal(v), ok
	case tree.MetricRSI:
		v, ok := indicators.RSI(closes, window)
		return indicators.ToDecimal(v), ok
	case tree.MetricStdevPrice:
		v, ok := indicators.Stdev(closes, window)
		return indicators.ToDecimal(v), ok
	case tree.MetricStdevReturn:
		v, ok := indicators.Stdev(returns, window)
		return indicators.ToDecimal(v), ok
	case tree.MetricVolatility:
		v, ok := indicators.Volatility(returns, window)
		return indicators.ToDecimal(v), ok
	case tree.MetricMaxDrawdown:
		v, ok := indicators.MaxDrawdown(closes, window)
		return indicators.ToDecimal(v), ok
	case tree.MetricCumulativeReturn:
		v, ok := indicators.CumulativeReturn(closes, window)
		return indicators.ToDecimal(v), ok
	case tree.MetricMovingAverageReturn:
		v, ok := indicators.MovingAverageReturn(returns, window)
		return indicators.ToDecimal(v), ok
	case tree.MetricSharpe:
		v, ok := indicators.Sharpe(returns, window, 0.02)
		return indicators.ToDecimal(v), ok
	case tree.MetricBeta:
		if bench == nil {
			return decimal.Zero, false
		}
		v, ok := indicators.Beta(returns, indicators.CalculateReturns(closesFloat(bench)), window)
		return indicators.ToDecimal(v), ok
	case tree.MetricAlpha:
		if bench == nil {
			return decimal.Zero, false
		}
		v, ok := indicators.Alpha(returns, indicators.CalculateReturns(closesFloat(bench)), window)
		return indicators.ToDecimal(v), ok
	case tree.MetricCorrelation:
		if bench == nil {
			return decimal.Zero, false
		}
		v, ok := indicators.Correlation(returns, indicators.CalculateReturns(closesFloat(bench)), window)
		return indicators.ToDecimal(v), ok
	default:
		return decimal.Zero, false
	}
}
