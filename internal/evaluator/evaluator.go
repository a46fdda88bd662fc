package evaluator

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/atlas-desktop/trading-backend/internal/engineerr"
	"github.com/atlas-desktop/trading-backend/internal/tree"
	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// candidate is one asset moving through the working set, carrying a
// score (set by Filter when it ranks) and a weight (set only by
// weighting steps).
type candidate struct {
	Ticker string
	Score  decimal.Decimal
	Weight decimal.Decimal
}

// workingSet is the rewrite state threaded through the tree, plus a
// trace log (spec.md §4.4 "identical EvaluationResult including trace
// ordering").
type workingSet struct {
	candidates []candidate
	trace      []string
}

func (w *workingSet) log(format string, args ...interface{}) {
	w.trace = append(w.trace, fmt.Sprintf(format, args...))
}

// AllocationConstraint carries the cash-buffer / min-max clip defaults
// applied after the root's children are processed (spec.md §4.4). A
// symphony's root policy may override any field; zero-value fields
// fall back to these engine defaults.
type AllocationConstraint struct {
	CashBuffer    decimal.Decimal
	MinAllocation decimal.Decimal
	MaxAllocation decimal.Decimal
}

// DefaultAllocationConstraint is the engine-wide fallback: no cash
// buffer, no floor, no ceiling.
func DefaultAllocationConstraint() AllocationConstraint {
	return AllocationConstraint{
		CashBuffer:    decimal.Zero,
		MinAllocation: decimal.Zero,
		MaxAllocation: decimal.NewFromInt(1),
	}
}

// Evaluate interprets root against ctx and returns target weights. It
// is pure: identical (root, ctx) always yields an identical result,
// including trace order. No partial result is ever returned on
// failure (spec.md §4.4).
func Evaluate(root *tree.Step, ctx *DataContext, defaults AllocationConstraint) (*types.EvaluationResult, error) {
	if root == nil || root.Kind != tree.KindRoot {
		return nil, engineerr.New(engineerr.KindStructure, "evaluator requires a root step")
	}

	ws := &workingSet{}
	for _, child := range root.Children {
		if err := rewrite(child, ctx, ws); err != nil {
			return nil, err
		}
	}

	constraint := resolveConstraint(root.Policy, defaults)
	weights, excluded, err := applyAllocationConstraint(ws.candidates, constraint)
	if err != nil {
		return nil, err
	}

	return &types.EvaluationResult{
		Weights:        weights,
		ExcludedAssets: excluded,
		Trace:          ws.trace,
	}, nil
}

func resolveConstraint(policy tree.RebalancePolicy, defaults AllocationConstraint) AllocationConstraint {
	c := defaults
	if policy.CashBuffer != nil {
		c.CashBuffer = *policy.CashBuffer
	}
	if policy.MinAllocation != nil {
		c.MinAllocation = *policy.MinAllocation
	}
	if policy.MaxAllocation != nil {
		c.MaxAllocation = *policy.MaxAllocation
	}
	return c
}

// rewrite dispatches a single tree node against the working set,
// appending or replacing candidates per the rewrite rules of
// spec.md §4.4.
func rewrite(s *tree.Step, ctx *DataContext, ws *workingSet) error {
	switch s.Kind {
	case tree.KindAsset:
		ws.candidates = append(ws.candidates, candidate{Ticker: s.Ticker})
		return nil

	case tree.KindGroup:
		return rewriteChildrenMerged(s, ctx, ws)

	case tree.KindIf:
		return rewriteIf(s, ctx, ws)

	case tree.KindFilter:
		return rewriteFilter(s, ctx, ws)

	case tree.KindScreen:
		return rewriteScreen(s, ctx, ws)

	case tree.KindGroupSelect:
		return rewriteGroupSelect(s, ctx, ws)

	case tree.KindWeightCashEqual:
		return rewriteWeightEqual(s, ctx, ws)
	case tree.KindWeightSpecified:
		return rewriteWeightSpecified(s, ctx, ws)
	case tree.KindWeightInverseVol:
		return rewriteWeightInverseVol(s, ctx, ws)
	case tree.KindWeightMarketCap:
		return rewriteWeightMarketCap(s, ctx, ws)
	case tree.KindWeightRiskParity:
		return rewriteWeightInverseVol(s, ctx, ws) // spec.md §4.4: same as InverseVol at this fidelity
	case tree.KindWeightScore:
		return rewriteWeightScore(s, ctx, ws)

	default:
		return engineerr.New(engineerr.KindStructure, fmt.Sprintf("evaluator cannot rewrite step kind %q", s.Kind))
	}
}

// rewriteChildrenMerged evaluates s's children into a fresh sub-working
// set, then merges the result into ws: duplicate tickers collapse with
// weights summed (spec.md §4.4 rule 2, "Group").
func rewriteChildrenMerged(s *tree.Step, ctx *DataContext, ws *workingSet) error {
	sub := &workingSet{}
	for _, c := range s.Children {
		if err := rewrite(c, ctx, sub); err != nil {
			return err
		}
	}
	ws.trace = append(ws.trace, sub.trace...)
	mergeInto(ws, sub.candidates)
	return nil
}

func mergeInto(ws *workingSet, incoming []candidate) {
	index := make(map[string]int, len(ws.candidates))
	for i, c := range ws.candidates {
		index[c.Ticker] = i
	}
	for _, c := range incoming {
		if i, ok := index[c.Ticker]; ok {
			ws.candidates[i].Weight = ws.candidates[i].Weight.Add(c.Weight)
			continue
		}
		index[c.Ticker] = len(ws.candidates)
		ws.candidates = append(ws.candidates, c)
	}
}

// rewriteIf evaluates the condition on the then-child and descends
// into whichever branch applies. Missing values fail-closed: the
// condition is treated as false (spec.md §4.4 rule 3).
func rewriteIf(s *tree.Step, ctx *DataContext, ws *workingSet) error {
	var thenChild, elseChild *tree.Step
	for _, c := range s.Children {
		if c.IsElse {
			elseChild = c
		} else {
			thenChild = c
		}
	}
	if thenChild == nil || elseChild == nil {
		return engineerr.New(engineerr.KindStructure, "if step missing then/else child")
	}

	result, ok := evaluateCondition(thenChild.Condition, ctx)
	if !ok {
		ws.log("if %s: condition undefined, fail-closed to else branch", s.ID)
		return rewriteChildrenMerged(elseChild, ctx, ws)
	}
	if result {
		ws.log("if %s: condition true, then branch", s.ID)
		return rewriteChildrenMerged(thenChild, ctx, ws)
	}
	ws.log("if %s: condition false, else branch", s.ID)
	return rewriteChildrenMerged(elseChild, ctx, ws)
}

func evaluateCondition(cond *tree.Condition, ctx *DataContext) (result bool, ok bool) {
	if cond == nil {
		return false, false
	}
	lhs, ok := ctx.Metric(cond.LHS)
	if !ok {
		return false, false
	}
	rhs, ok := ctx.Metric(cond.RHS)
	if !ok {
		return false, false
	}
	switch cond.Comparator {
	case tree.CmpLT:
		return lhs.LessThan(rhs), true
	case tree.CmpLE:
		return lhs.LessThanOrEqual(rhs), true
	case tree.CmpEQ:
		return lhs.Equal(rhs), true
	case tree.CmpNE:
		return !lhs.Equal(rhs), true
	case tree.CmpGE:
		return lhs.GreaterThanOrEqual(rhs), true
	case tree.CmpGT:
		return lhs.GreaterThan(rhs), true
	default:
		return false, false
	}
}

// rewriteFilter ranks each child's asset(s) by the filter's sort
// function and keeps the first n (spec.md §4.4 rule 4). Assets with an
// undefined score are dropped before ranking rather than treated as
// zero, consistent with the no-value signaling contract.
func rewriteFilter(s *tree.Step, ctx *DataContext, ws *workingSet) error {
	sub := &workingSet{}
	for _, c := range s.Children {
		if err := rewrite(c, ctx, sub); err != nil {
			return err
		}
	}
	ws.trace = append(ws.trace, sub.trace...)

	scored := make([]candidate, 0, len(sub.candidates))
	for _, c := range sub.candidates {
		v, ok := ctx.Metric(tree.Source{MetricFn: s.SortFn, Window: s.SortFnWindow, Ticker: c.Ticker})
		if !ok {
			ws.log("filter %s: dropping %s, %s undefined", s.ID, c.Ticker, s.SortFn)
			continue
		}
		c.Score = v
		scored = append(scored, c)
	}

	sortCandidates(scored, s.Select)

	n := len(scored)
	if s.Select != tree.SelectorAll && s.SelectN < n {
		n = s.SelectN
	}
	ws.log("filter %s: keeping %d of %d by %s", s.ID, n, len(scored), s.SortFn)
	ws.candidates = append(ws.candidates, scored[:n]...)
	return nil
}

// sortCandidates orders by score descending ("top") or ascending
// (every other selector, "random" included, for determinism); ties
// break by ticker lexical order.
func sortCandidates(cs []candidate, sel tree.Selector) {
	descending := sel == tree.SelectorTop
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].Score.Equal(cs[j].Score) {
			return cs[i].Ticker < cs[j].Ticker
		}
		if descending {
			return cs[i].Score.GreaterThan(cs[j].Score)
		}
		return cs[i].Score.LessThan(cs[j].Score)
	})
}

// rewriteScreen narrows a universe by fixed/indicator criteria before
// ranking (SPEC_FULL.md §C). Assets failing any criterion, or whose
// required value is undefined, are dropped.
func rewriteScreen(s *tree.Step, ctx *DataContext, ws *workingSet) error {
	sub := &workingSet{}
	for _, c := range s.Children {
		if err := rewrite(c, ctx, sub); err != nil {
			return err
		}
	}
	ws.trace = append(ws.trace, sub.trace...)

	for _, c := range sub.candidates {
		if passesScreen(c.Ticker, s.ScreenCriteria, ctx) {
			ws.candidates = append(ws.candidates, c)
		} else {
			ws.log("screen %s: dropping %s", s.ID, c.Ticker)
		}
	}
	return nil
}

func passesScreen(ticker string, criteria []tree.ScreenCriterion, ctx *DataContext) bool {
	snap, ok := ctx.Snapshot(ticker)
	if !ok {
		return false
	}
	for _, c := range criteria {
		switch c.Kind {
		case "price":
			if !withinBounds(snap.CurrentPrice, c.Min, c.Max) {
				return false
			}
		case "volume":
			if !withinBounds(snap.Volume, c.Min, c.Max) {
				return false
			}
		case "market-cap":
			if snap.MarketCap == nil || !withinBounds(*snap.MarketCap, c.Min, c.Max) {
				return false
			}
		case "indicator":
			v, ok := ctx.Metric(tree.Source{MetricFn: c.Indicator, Window: c.Window, Ticker: ticker})
			if !ok {
				return false
			}
			if !compareThreshold(v, c.Comparator, c.Threshold) {
				return false
			}
		}
	}
	return true
}

func withinBounds(v decimal.Decimal, min, max *decimal.Decimal) bool {
	if min != nil && v.LessThan(*min) {
		return false
	}
	if max != nil && v.GreaterThan(*max) {
		return false
	}
	return true
}

func compareThreshold(v decimal.Decimal, cmp tree.Comparator, threshold decimal.Decimal) bool {
	switch cmp {
	case tree.CmpLT:
		return v.LessThan(threshold)
	case tree.CmpLE:
		return v.LessThanOrEqual(threshold)
	case tree.CmpEQ:
		return v.Equal(threshold)
	case tree.CmpNE:
		return !v.Equal(threshold)
	case tree.CmpGE:
		return v.GreaterThanOrEqual(threshold)
	case tree.CmpGT:
		return v.GreaterThan(threshold)
	default:
		return false
	}
}

// rewriteGroupSelect keeps the single best-scoring child subtree by a
// metric (SPEC_FULL.md §C, Group-Select), evaluating each child
// independently and picking the one whose members' mean metric value
// (see aggregateScore) is highest.
func rewriteGroupSelect(s *tree.Step, ctx *DataContext, ws *workingSet) error {
	var best *workingSet
	var bestScore decimal.Decimal
	haveBest := false

	for _, child := range s.Children {
		sub := &workingSet{}
		if err := rewrite(child, ctx, sub); err != nil {
			return err
		}
		if len(sub.candidates) == 0 {
			continue
		}
		window := s.WindowDays
		if window == 0 {
			window = 20
		}
		score, ok := aggregateScore(sub.candidates, s.GroupSelectBy, window, ctx)
		if !ok {
			continue
		}
		if !haveBest || score.GreaterThan(bestScore) {
			best = sub
			bestScore = score
			haveBest = true
		}
	}

	if best == nil {
		ws.log("group-select %s: no candidate group had a defined score", s.ID)
		return nil
	}
	ws.trace = append(ws.trace, best.trace...)
	ws.candidates = append(ws.candidates, best.candidates...)
	return nil
}

// aggregateScore scores a candidate group by the mean of its members'
// metric values; members with an undefined value are skipped.
func aggregateScore(cs []candidate, fn tree.MetricFn, window int, ctx *DataContext) (decimal.Decimal, bool) {
	sum := decimal.Zero
	n := 0
	for _, c := range cs {
		v, ok := ctx.Metric(tree.Source{MetricFn: fn, Window: window, Ticker: c.Ticker})
		if !ok {
			continue
		}
		sum = sum.Add(v)
		n++
	}
	if n == 0 {
		return decimal.Zero, false
	}
	return sum.Div(decimal.NewFromInt(int64(n))), true
}
