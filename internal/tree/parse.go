package tree

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/atlas-desktop/trading-backend/internal/engineerr"
)

// rawStep mirrors the Symphony JSON ingest format of spec.md §6: a tree
// of objects each carrying id/step/name?/children?, with kind-specific
// fields left as generic JSON so the evaluator never does string-keyed
// access at runtime (spec.md §9 "two-phase parser").
type rawStep struct {
	ID       string            `json:"id"`
	Step     string            `json:"step"`
	Name     string            `json:"name,omitempty"`
	Children []rawStep         `json:"children,omitempty"`

	// root
	Rebalance *rawRebalance `json:"rebalance,omitempty"`

	// asset
	Ticker   string         `json:"ticker,omitempty"`
	Exchange string         `json:"exchange,omitempty"`
	Weight   *rawRational   `json:"weight,omitempty"`

	// filter
	SortByFn       string `json:"sort-by-fn,omitempty"`
	SortByFnParams *rawFnParams `json:"sort-by-fn-params,omitempty"`
	SelectFn       string `json:"select-fn,omitempty"`
	SelectN        *int   `json:"select-n,omitempty"`

	// screen
	Criteria []rawCriterion `json:"criteria,omitempty"`

	// if-child
	IsElseCondition *bool   `json:"is-else-condition,omitempty"`
	LHSFn           string  `json:"lhs-fn,omitempty"`
	LHSFnParams     *rawFnParams `json:"lhs-fn-params,omitempty"`
	LHSVal          *float64 `json:"lhs-val,omitempty"`
	Comparator      string  `json:"comparator,omitempty"`
	RHSFn           string  `json:"rhs-fn,omitempty"`
	RHSFnParams     *rawFnParams `json:"rhs-fn-params,omitempty"`
	RHSVal          *float64 `json:"rhs-val,omitempty"`
	RHSFixedValue   *float64 `json:"rhs-fixed-value,omitempty"`

	// weighting
	WindowDays *int `json:"window-days,omitempty"`

	// group-select
	GroupSelectBy string `json:"group-select-by,omitempty"`
}

type rawRebalance struct {
	Frequency           string   `json:"frequency,omitempty"`
	CorridorWidth       *float64 `json:"corridor-width,omitempty"`
	MinRebalanceAgeDays int      `json:"min-rebalance-age-days,omitempty"`
	CashBuffer          *float64 `json:"cash-buffer,omitempty"`
	MinAllocation       *float64 `json:"min-allocation,omitempty"`
	MaxAllocation       *float64 `json:"max-allocation,omitempty"`
}

type rawRational struct {
	Num int64 `json:"num"`
	Den int64 `json:"den"`
}

type rawFnParams struct {
	Window    int    `json:"window,omitempty"`
	Benchmark string `json:"benchmark,omitempty"`
}

type rawCriterion struct {
	Kind       string   `json:"kind"`
	Min        *float64 `json:"min,omitempty"`
	Max        *float64 `json:"max,omitempty"`
	Indicator  string   `json:"indicator,omitempty"`
	Window     int      `json:"window,omitempty"`
	Comparator string   `json:"comparator,omitempty"`
	Threshold  float64  `json:"threshold,omitempty"`
}

// Parse decodes symphony JSON into the typed Step tree (unvalidated).
// Callers must run Validate before treating the result as safe to
// evaluate.
func Parse(data []byte) (*Step, error) {
	var raw rawStep
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, engineerr.Wrap(engineerr.KindParse, "malformed symphony JSON", err)
	}
	return convert(&raw)
}

func convert(raw *rawStep) (*Step, error) {
	kind := StepKind(raw.Step)
	step := &Step{
		ID:   raw.ID,
		Kind: kind,
		Name: raw.Name,
	}

	switch kind {
	case KindRoot:
		if raw.Rebalance == nil {
			return nil, engineerr.New(engineerr.KindParse, "root step missing rebalance policy")
		}
		step.Policy = RebalancePolicy{
			Frequency:           raw.Rebalance.Frequency,
			MinRebalanceAgeDays: raw.Rebalance.MinRebalanceAgeDays,
		}
		if raw.Rebalance.CorridorWidth != nil {
			step.Policy.IsThreshold = true
			step.Policy.CorridorWidth = decimal.NewFromFloat(*raw.Rebalance.CorridorWidth)
		}
		if raw.Rebalance.CashBuffer != nil {
			v := decimal.NewFromFloat(*raw.Rebalance.CashBuffer)
			step.Policy.CashBuffer = &v
		}
		if raw.Rebalance.MinAllocation != nil {
			v := decimal.NewFromFloat(*raw.Rebalance.MinAllocation)
			step.Policy.MinAllocation = &v
		}
		if raw.Rebalance.MaxAllocation != nil {
			v := decimal.NewFromFloat(*raw.Rebalance.MaxAllocation)
			step.Policy.MaxAllocation = &v
		}

	case KindAsset:
		if raw.Ticker == "" {
			return nil, engineerr.New(engineerr.KindParse, "asset step missing ticker")
		}
		step.Ticker = raw.Ticker
		step.Exchange = raw.Exchange
		if raw.Weight != nil {
			if raw.Weight.Den == 0 {
				return nil, engineerr.New(engineerr.KindParse, "asset weight has zero denominator")
			}
			w := decimal.NewFromInt(raw.Weight.Num).Div(decimal.NewFromInt(raw.Weight.Den))
			step.Weight = &w
		}

	case KindGroup:
		// transparent container; nothing extra to parse

	case KindIf:
		// then/else live in children

	case KindIfChild:
		isElse := raw.IsElseCondition != nil && *raw.IsElseCondition
		step.IsElse = isElse
		if !isElse {
			cond, err := convertCondition(raw)
			if err != nil {
				return nil, err
			}
			step.Condition = cond
		}

	case KindFilter:
		step.SortFn = MetricFn(raw.SortByFn)
		if raw.SortByFnParams != nil {
			step.SortFnWindow = raw.SortByFnParams.Window
		}
		step.Select = Selector(raw.SelectFn)
		if raw.SelectN != nil {
			step.SelectN = *raw.SelectN
		}

	case KindScreen:
		for _, c := range raw.Criteria {
			criterion := ScreenCriterion{
				Kind:       c.Kind,
				Indicator:  MetricFn(c.Indicator),
				Window:     c.Window,
				Comparator: Comparator(c.Comparator),
				Threshold:  decimal.NewFromFloat(c.Threshold),
			}
			if c.Min != nil {
				m := decimal.NewFromFloat(*c.Min)
				criterion.Min = &m
			}
			if c.Max != nil {
				m := decimal.NewFromFloat(*c.Max)
				criterion.Max = &m
			}
			step.ScreenCriteria = append(step.ScreenCriteria, criterion)
		}

	case KindGroupSelect:
		step.GroupSelectBy = MetricFn(raw.GroupSelectBy)

	case KindWeightCashEqual, KindWeightSpecified, KindWeightInverseVol,
		KindWeightMarketCap, KindWeightRiskParity, KindWeightScore:
		if raw.WindowDays != nil {
			step.WindowDays = *raw.WindowDays
		}

	default:
		return nil, engineerr.New(engineerr.KindParse, fmt.Sprintf("unknown step kind %q", raw.Step))
	}

	for i := range raw.Children {
		child, err := convert(&raw.Children[i])
		if err != nil {
			return nil, err
		}
		step.Children = append(step.Children, child)
	}

	return step, nil
}

func convertCondition(raw *rawStep) (*Condition, error) {
	lhs := Source{MetricFn: MetricFn(raw.LHSFn)}
	if raw.LHSFnParams != nil {
		lhs.Window = raw.LHSFnParams.Window
		lhs.Benchmark = raw.LHSFnParams.Benchmark
	}
	if raw.LHSFn == "" && raw.LHSVal != nil {
		v := decimal.NewFromFloat(*raw.LHSVal)
		lhs.Literal = &v
	} else {
		lhs.Ticker = raw.Ticker
	}

	rhs := Source{MetricFn: MetricFn(raw.RHSFn)}
	if raw.RHSFnParams != nil {
		rhs.Window = raw.RHSFnParams.Window
		rhs.Benchmark = raw.RHSFnParams.Benchmark
	}
	switch {
	case raw.RHSFixedValue != nil:
		v := decimal.NewFromFloat(*raw.RHSFixedValue)
		rhs.Literal = &v
	case raw.RHSVal != nil && raw.RHSFn == "":
		v := decimal.NewFromFloat(*raw.RHSVal)
		rhs.Literal = &v
	}

	if raw.Comparator == "" {
		return nil, engineerr.New(engineerr.KindParse, "if-child condition missing comparator")
	}

	return &Condition{LHS: lhs, Comparator: Comparator(raw.Comparator), RHS: rhs}, nil
}

// Serialize renders the typed tree back to the ingest JSON shape. The
// round-trip law (spec.md §8) requires only that Parse(Serialize(t))
// produce a semantically-equal tree, not byte-identical JSON.
func Serialize(step *Step) ([]byte, error) {
	raw := toRaw(step)
	return json.Marshal(raw)
}

func toRaw(step *Step) *rawStep {
	raw := &rawStep{ID: step.ID, Step: string(step.Kind), Name: step.Name}

	switch step.Kind {
	case KindRoot:
		reb := &rawRebalance{Frequency: step.Policy.Frequency, MinRebalanceAgeDays: step.Policy.MinRebalanceAgeDays}
		if step.Policy.IsThreshold {
			cw, _ := step.Policy.CorridorWidth.Float64()
			reb.CorridorWidth = &cw
		}
		if step.Policy.CashBuffer != nil {
			v, _ := step.Policy.CashBuffer.Float64()
			reb.CashBuffer = &v
		}
		if step.Policy.MinAllocation != nil {
			v, _ := step.Policy.MinAllocation.Float64()
			reb.MinAllocation = &v
		}
		if step.Policy.MaxAllocation != nil {
			v, _ := step.Policy.MaxAllocation.Float64()
			reb.MaxAllocation = &v
		}
		raw.Rebalance = reb

	case KindAsset:
		raw.Ticker = step.Ticker
		raw.Exchange = step.Exchange
		if step.Weight != nil {
			// Represent as an exact rational with denominator 10^6.
			den := int64(1000000)
			num := step.Weight.Mul(decimal.NewFromInt(den)).IntPart()
			raw.Weight = &rawRational{Num: num, Den: den}
		}

	case KindIfChild:
		isElse := step.IsElse
		raw.IsElseCondition = &isElse
		if step.Condition != nil {
			raw.Comparator = string(step.Condition.Comparator)
			raw.LHSFn = string(step.Condition.LHS.MetricFn)
			if step.Condition.LHS.IsLiteral() {
				v, _ := step.Condition.LHS.Literal.Float64()
				raw.LHSVal = &v
			} else {
				raw.Ticker = step.Condition.LHS.Ticker
				raw.LHSFnParams = &rawFnParams{Window: step.Condition.LHS.Window, Benchmark: step.Condition.LHS.Benchmark}
			}
			if step.Condition.RHS.IsLiteral() {
				v, _ := step.Condition.RHS.Literal.Float64()
				raw.RHSFixedValue = &v
			} else {
				raw.RHSFn = string(step.Condition.RHS.MetricFn)
				raw.RHSFnParams = &rawFnParams{Window: step.Condition.RHS.Window, Benchmark: step.Condition.RHS.Benchmark}
			}
		}

	case KindFilter:
		raw.SortByFn = string(step.SortFn)
		raw.SortByFnParams = &rawFnParams{Window: step.SortFnWindow}
		raw.SelectFn = string(step.Select)
		n := step.SelectN
		raw.SelectN = &n

	case KindScreen:
		for _, c := range step.ScreenCriteria {
			rc := rawCriterion{Kind: c.Kind, Indicator: string(c.Indicator), Window: c.Window, Comparator: string(c.Comparator)}
			t, _ := c.Threshold.Float64()
			rc.Threshold = t
			if c.Min != nil {
				m, _ := c.Min.Float64()
				rc.Min = &m
			}
			if c.Max != nil {
				m, _ := c.Max.Float64()
				rc.Max = &m
			}
			raw.Criteria = append(raw.Criteria, rc)
		}

	case KindGroupSelect:
		raw.GroupSelectBy = string(step.GroupSelectBy)

	case KindWeightCashEqual, KindWeightSpecified, KindWeightInverseVol,
		KindWeightMarketCap, KindWeightRiskParity, KindWeightScore:
		wd := step.WindowDays
		raw.WindowDays = &wd
	}

	for _, child := range step.Children {
		raw.Children = append(raw.Children, *toRaw(child))
	}

	return raw
}
