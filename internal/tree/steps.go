// Package tree implements the typed Strategy Tree model of spec.md §3
// and its parser/validator (C3, spec.md §4.3). Steps are represented as
// a tagged sum type rather than a class hierarchy, per the design note
// in spec.md §9: the evaluator dispatches on StepKind.
package tree

import "github.com/shopspring/decimal"

// StepKind discriminates the Step variants of spec.md §3 plus the
// Screen/Weight-Score/Group-Select additions of SPEC_FULL.md §C.
type StepKind string

const (
	KindRoot           StepKind = "root"
	KindAsset          StepKind = "asset"
	KindGroup          StepKind = "group"
	KindIf             StepKind = "if"
	KindIfChild        StepKind = "if-child"
	KindFilter         StepKind = "filter"
	KindScreen         StepKind = "screen"
	KindGroupSelect    StepKind = "group-select"
	KindWeightCashEqual      StepKind = "wt-cash-equal"
	KindWeightSpecified      StepKind = "wt-cash-specified"
	KindWeightInverseVol     StepKind = "wt-inverse-vol"
	KindWeightMarketCap      StepKind = "wt-market-cap"
	KindWeightRiskParity     StepKind = "wt-risk-parity"
	KindWeightScore          StepKind = "wt-score"
)

// Comparator is one of the six comparison operators spec.md §3 names.
type Comparator string

const (
	CmpLT Comparator = "<"
	CmpLE Comparator = "<="
	CmpEQ Comparator = "="
	CmpNE Comparator = "!="
	CmpGE Comparator = ">="
	CmpGT Comparator = ">"
)

// MetricFn is one of the closed set of metric functions spec.md §3 names.
type MetricFn string

const (
	MetricCurrentPrice        MetricFn = "current-price"
	MetricCumulativeReturn    MetricFn = "cumulative-return"
	MetricEMA                 MetricFn = "ema"
	MetricSMA                 MetricFn = "sma"
	MetricMaxDrawdown         MetricFn = "max-drawdown"
	MetricMovingAverageReturn MetricFn = "moving-average-return"
	MetricRSI                 MetricFn = "rsi"
	MetricStdevPrice          MetricFn = "stdev-price"
	MetricStdevReturn         MetricFn = "stdev-return"
	MetricSharpe              MetricFn = "sharpe"
	MetricVolatility          MetricFn = "volatility"
	MetricBeta                MetricFn = "beta"
	MetricAlpha               MetricFn = "alpha"
	MetricCorrelation         MetricFn = "correlation"
)

// benchmarkRequired is the subset of MetricFn that must carry a
// benchmark ticker (spec.md §4.3 "Metric-parameter validation").
var benchmarkRequired = map[MetricFn]bool{
	MetricBeta:        true,
	MetricAlpha:       true,
	MetricCorrelation: true,
}

// allMetricFns is the closed set used by validation.
var allMetricFns = map[MetricFn]bool{
	MetricCurrentPrice: true, MetricCumulativeReturn: true, MetricEMA: true,
	MetricSMA: true, MetricMaxDrawdown: true, MetricMovingAverageReturn: true,
	MetricRSI: true, MetricStdevPrice: true, MetricStdevReturn: true,
	MetricSharpe: true, MetricVolatility: true, MetricBeta: true,
	MetricAlpha: true, MetricCorrelation: true,
}

// Selector is a Filter step's retention rule.
type Selector string

const (
	SelectorTop    Selector = "top"
	SelectorBottom Selector = "bottom"
	SelectorAll    Selector = "all"
	SelectorRandom Selector = "random"
)

// Source is either a literal decimal or a metric lookup on a ticker
// (spec.md §3 "IfChild").
type Source struct {
	Literal  *decimal.Decimal
	MetricFn MetricFn
	Window   int
	Ticker   string
	Benchmark string
}

// IsLiteral reports whether this source is a bare literal value.
func (s Source) IsLiteral() bool { return s.Literal != nil }

// Condition is an IfChild's comparison: (lhs, comparator, rhs).
type Condition struct {
	LHS        Source
	Comparator Comparator
	RHS        Source
}

// Step is a single node of the strategy tree. Every node carries a
// stable ID, optional name, and ordered children. Kind-specific fields
// are populated according to Kind; unused fields are zero.
type Step struct {
	ID       string
	Kind     StepKind
	Name     string
	Children []*Step

	// Root
	Policy RebalancePolicy

	// Asset
	Ticker   string
	Exchange string
	Weight   *decimal.Decimal // optional rational weight, num/den pre-reduced to decimal

	// IfChild
	IsElse    bool
	Condition *Condition

	// Filter
	SortFn       MetricFn
	SortFnWindow int
	Select       Selector
	SelectN      int

	// Screen (SPEC_FULL.md §C)
	ScreenCriteria []ScreenCriterion

	// Weighting steps
	WindowDays int

	// Group-Select (SPEC_FULL.md §C)
	GroupSelectBy MetricFn
}

// ScreenCriterion narrows a universe before ranking (SPEC_FULL.md §C,
// grounded on original_source/algorithms/executor.py's screening step).
type ScreenCriterion struct {
	Kind      string // "price", "volume", "market-cap", "indicator"
	Min       *decimal.Decimal
	Max       *decimal.Decimal
	Indicator MetricFn
	Window    int
	Comparator Comparator
	Threshold decimal.Decimal
}

// RebalancePolicy mirrors types.RebalancePolicy but lives on the tree's
// root node as parsed from the symphony JSON (spec.md §6).
type RebalancePolicy struct {
	Frequency           string
	CorridorWidth       decimal.Decimal
	IsThreshold         bool
	MinRebalanceAgeDays int

	// Allocation constraint (spec.md §4.4): optional per-symphony
	// overrides of the engine's cash-buffer/min/max-allocation
	// defaults. Nil means "use the engine default".
	CashBuffer    *decimal.Decimal
	MinAllocation *decimal.Decimal
	MaxAllocation *decimal.Decimal
}
