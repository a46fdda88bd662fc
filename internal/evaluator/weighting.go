package evaluator

import (
	"github.com/shopspring/decimal"

	"github.com/atlas-desktop/trading-backend/internal/tree"
)

// rewriteWeightEqual assigns 1/k to each of the k assets produced by
// the node's children (spec.md §4.4 rule 5, "Equal").
func rewriteWeightEqual(s *tree.Step, ctx *DataContext, ws *workingSet) error {
	sub := &workingSet{}
	for _, c := range s.Children {
		if err := rewrite(c, ctx, sub); err != nil {
			return err
		}
	}
	ws.trace = append(ws.trace, sub.trace...)

	k := len(sub.candidates)
	if k == 0 {
		return nil
	}
	each := decimal.NewFromInt(1).Div(decimal.NewFromInt(int64(k)))
	for i := range sub.candidates {
		sub.candidates[i].Weight = each
	}
	ws.candidates = append(ws.candidates, sub.candidates...)
	return nil
}

// rewriteWeightSpecified passes through node-carried weights; if any
// asset is missing from the working set its weight is redistributed
// proportionally to the remaining assets (spec.md §4.4 rule 5,
// "Specified").
func rewriteWeightSpecified(s *tree.Step, ctx *DataContext, ws *workingSet) error {
	specified := make(map[string]decimal.Decimal)
	for _, c := range s.Children {
		if c.Kind == tree.KindAsset && c.Weight != nil {
			specified[c.Ticker] = *c.Weight
		}
	}

	sub := &workingSet{}
	for _, c := range s.Children {
		if err := rewrite(c, ctx, sub); err != nil {
			return err
		}
	}
	ws.trace = append(ws.trace, sub.trace...)

	present := decimal.Zero
	for _, c := range sub.candidates {
		present = present.Add(specified[c.Ticker])
	}
	if present.IsZero() {
		ws.log("wt-cash-specified %s: no specified-weight assets present, dropping", s.ID)
		return nil
	}

	for i := range sub.candidates {
		w := specified[sub.candidates[i].Ticker]
		sub.candidates[i].Weight = w.Div(present)
	}
	ws.candidates = append(ws.candidates, sub.candidates...)
	return nil
}

// rewriteWeightInverseVol weights each asset proportional to 1/volatility;
// assets with undefined volatility drop out before normalisation
// (spec.md §4.4 rule 5, "InverseVol"/"RiskParity").
func rewriteWeightInverseVol(s *tree.Step, ctx *DataContext, ws *workingSet) error {
	window := s.WindowDays
	if window == 0 {
		window = 20
	}
	return weightByInverse(s, ctx, ws, tree.MetricVolatility, window)
}

func weightByInverse(s *tree.Step, ctx *DataContext, ws *workingSet, fn tree.MetricFn, window int) error {
	sub := &workingSet{}
	for _, c := range s.Children {
		if err := rewrite(c, ctx, sub); err != nil {
			return err
		}
	}
	ws.trace = append(ws.trace, sub.trace...)

	inv := make([]decimal.Decimal, 0, len(sub.candidates))
	kept := make([]candidate, 0, len(sub.candidates))
	total := decimal.Zero

	for _, c := range sub.candidates {
		v, ok := ctx.Metric(tree.Source{MetricFn: fn, Window: window, Ticker: c.Ticker})
		if !ok || v.IsZero() {
			ws.log("%s %s: dropping %s, %s undefined or zero", s.Kind, s.ID, c.Ticker, fn)
			continue
		}
		i := decimal.NewFromInt(1).Div(v)
		inv = append(inv, i)
		kept = append(kept, c)
		total = total.Add(i)
	}
	if total.IsZero() {
		return nil
	}
	for i, c := range kept {
		c.Weight = inv[i].Div(total)
		ws.candidates = append(ws.candidates, c)
	}
	return nil
}

// rewriteWeightMarketCap weights each asset proportional to market
// capitalisation; assets with a missing cap drop out (spec.md §4.4
// rule 5, "MarketCap").
func rewriteWeightMarketCap(s *tree.Step, ctx *DataContext, ws *workingSet) error {
	sub := &workingSet{}
	for _, c := range s.Children {
		if err := rewrite(c, ctx, sub); err != nil {
			return err
		}
	}
	ws.trace = append(ws.trace, sub.trace...)

	caps := make([]decimal.Decimal, 0, len(sub.candidates))
	kept := make([]candidate, 0, len(sub.candidates))
	total := decimal.Zero

	for _, c := range sub.candidates {
		snap, ok := ctx.Snapshot(c.Ticker)
		if !ok || snap.MarketCap == nil {
			ws.log("wt-market-cap %s: dropping %s, market cap unavailable", s.ID, c.Ticker)
			continue
		}
		caps = append(caps, *snap.MarketCap)
		kept = append(kept, c)
		total = total.Add(*snap.MarketCap)
	}
	if total.IsZero() {
		return nil
	}
	for i, c := range kept {
		c.Weight = caps[i].Div(total)
		ws.candidates = append(ws.candidates, c)
	}
	return nil
}

// rewriteWeightScore weights assets proportional to a chosen metric's
// positive score (SPEC_FULL.md §C, grounded on original_source's
// "weight by signal strength" variant). Zero, negative or undefined scores
// drop out before normalisation, matching the fail-closed convention
// of the other weighting steps.
func rewriteWeightScore(s *tree.Step, ctx *DataContext, ws *workingSet) error {
	window := s.WindowDays
	if window == 0 {
		window = 20
	}
	fn := s.SortFn
	if fn == "" {
		fn = tree.MetricCumulativeReturn
	}

	sub := &workingSet{}
	for _, c := range s.Children {
		if err := rewrite(c, ctx, sub); err != nil {
			return err
		}
	}
	ws.trace = append(ws.trace, sub.trace...)

	scores := make([]decimal.Decimal, 0, len(sub.candidates))
	kept := make([]candidate, 0, len(sub.candidates))
	total := decimal.Zero

	for _, c := range sub.candidates {
		v, ok := ctx.Metric(tree.Source{MetricFn: fn, Window: window, Ticker: c.Ticker})
		if !ok || !v.IsPositive() {
			ws.log("wt-score %s: dropping %s, non-positive or undefined %s", s.ID, c.Ticker, fn)
			continue
		}
		scores = append(scores, v)
		kept = append(kept, c)
		total = total.Add(v)
	}
	if total.IsZero() {
		return nil
	}
	for i, c := range kept {
		c.Weight = scores[i].Div(total)
		ws.candidates = append(ws.candidates, c)
	}
	return nil
}
