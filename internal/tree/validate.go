package tree

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/atlas-desktop/trading-backend/internal/engineerr"
)

const (
	maxTotalSteps  = 1000
	maxDepth       = 20
	maxUniqueAssets = 100
	minWindow      = 1
	maxWindow      = 252
)

// weightSumTolerance is the 10^-3 tolerance spec.md §3/§8 requires for
// Weight-Specified child weights and renormalised weights.
var weightSumTolerance = decimal.NewFromFloat(0.001)

// Validate runs the structural, bounds, metric-parameter and cycle
// checks of spec.md §4.3 against a parsed tree, returning a
// *engineerr.Error with one of the enumerated kinds on the first
// failure found.
func Validate(root *Step) error {
	if root == nil {
		return engineerr.New(engineerr.KindStructure, "nil tree")
	}
	if root.Kind != KindRoot {
		return engineerr.New(engineerr.KindStructure, "tree root must be a root step")
	}
	if len(root.Children) == 0 {
		return engineerr.New(engineerr.KindStructure, "root must have at least one child")
	}
	if root.Policy.CashBuffer != nil {
		half := decimal.NewFromFloat(0.5)
		if root.Policy.CashBuffer.IsNegative() || root.Policy.CashBuffer.GreaterThanOrEqual(half) {
			return engineerr.New(engineerr.KindBounds, "cash buffer must be in [0, 0.5)")
		}
	}

	visited := make(map[*Step]bool)
	totalSteps := 0
	uniqueAssets := make(map[string]bool)

	var walk func(s *Step, depth int) error
	walk = func(s *Step, depth int) error {
		if visited[s] {
			return engineerr.New(engineerr.KindCycle, "reference loop detected in tree")
		}
		visited[s] = true

		totalSteps++
		if totalSteps > maxTotalSteps {
			return engineerr.New(engineerr.KindBounds, fmt.Sprintf("total steps exceed %d", maxTotalSteps))
		}
		if depth > maxDepth {
			return engineerr.New(engineerr.KindBounds, fmt.Sprintf("tree depth exceeds %d", maxDepth))
		}

		if err := validateStructure(s); err != nil {
			return err
		}
		if err := validateMetrics(s); err != nil {
			return err
		}

		if s.Kind == KindAsset {
			uniqueAssets[s.Ticker] = true
			if len(uniqueAssets) > maxUniqueAssets {
				return engineerr.New(engineerr.KindBounds, fmt.Sprintf("unique assets exceed %d", maxUniqueAssets))
			}
		}

		for _, c := range s.Children {
			if err := walk(c, depth+1); err != nil {
				return err
			}
		}
		return nil
	}

	return walk(root, 0)
}

func validateStructure(s *Step) error {
	switch s.Kind {
	case KindIf:
		if len(s.Children) != 2 {
			return engineerr.New(engineerr.KindStructure, "if step must have exactly two children")
		}
		elseCount := 0
		for _, c := range s.Children {
			if c.Kind != KindIfChild {
				return engineerr.New(engineerr.KindStructure, "if step children must be if-child nodes")
			}
			if c.IsElse {
				elseCount++
			}
		}
		if elseCount != 1 {
			return engineerr.New(engineerr.KindStructure, "if step must have exactly one else child")
		}

	case KindFilter:
		n := len(s.Children)
		switch s.Select {
		case SelectorAll:
			// no count restriction
		case SelectorTop, SelectorBottom, SelectorRandom:
			if s.SelectN < 0 || s.SelectN > n {
				return engineerr.New(engineerr.KindStructure, "filter select-n out of [0, children-count] range")
			}
		default:
			return engineerr.New(engineerr.KindStructure, fmt.Sprintf("unknown filter selector %q", s.Select))
		}

	case KindWeightSpecified:
		sum := decimal.Zero
		any := false
		for _, c := range s.Children {
			if c.Kind == KindAsset && c.Weight != nil {
				sum = sum.Add(*c.Weight)
				any = true
			}
		}
		if any && sum.Sub(decimal.NewFromInt(1)).Abs().GreaterThan(weightSumTolerance) {
			return engineerr.New(engineerr.KindStructure, "wt-cash-specified child weights must sum to 1 within 1e-3")
		}
	}
	return nil
}

func validateMetrics(s *Step) error {
	checkSource := func(src Source) error {
		if src.IsLiteral() {
			return nil
		}
		if !allMetricFns[src.MetricFn] {
			return engineerr.New(engineerr.KindMetric, fmt.Sprintf("unknown metric function %q", src.MetricFn))
		}
		if src.Window < minWindow || src.Window > maxWindow {
			return engineerr.New(engineerr.KindBounds, fmt.Sprintf("metric window %d out of [%d,%d]", src.Window, minWindow, maxWindow))
		}
		if benchmarkRequired[src.MetricFn] && src.Benchmark == "" {
			return engineerr.New(engineerr.KindMetric, fmt.Sprintf("metric %q requires a benchmark ticker", src.MetricFn))
		}
		return nil
	}

	if s.Kind == KindIfChild && s.Condition != nil {
		if err := checkSource(s.Condition.LHS); err != nil {
			return err
		}
		if err := checkSource(s.Condition.RHS); err != nil {
			return err
		}
	}

	if s.Kind == KindFilter {
		if !allMetricFns[s.SortFn] {
			return engineerr.New(engineerr.KindMetric, fmt.Sprintf("unknown filter metric %q", s.SortFn))
		}
		if s.SortFnWindow < minWindow || s.SortFnWindow > maxWindow {
			return engineerr.New(engineerr.KindBounds, fmt.Sprintf("filter window %d out of [%d,%d]", s.SortFnWindow, minWindow, maxWindow))
		}
	}

	if s.Kind == KindGroupSelect {
		if !allMetricFns[s.GroupSelectBy] {
			return engineerr.New(engineerr.KindMetric, fmt.Sprintf("unknown group-select metric %q", s.GroupSelectBy))
		}
	}

	for _, c := range s.ScreenCriteria {
		if c.Kind == "indicator" {
			if !allMetricFns[c.Indicator] {
				return engineerr.New(engineerr.KindMetric, fmt.Sprintf("unknown screen indicator %q", c.Indicator))
			}
			if c.Window < minWindow || c.Window > maxWindow {
				return engineerr.New(engineerr.KindBounds, fmt.Sprintf("screen window %d out of [%d,%d]", c.Window, minWindow, maxWindow))
			}
		}
	}

	return nil
}
