package evaluator

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlas-desktop/trading-backend/internal/tree"
	"github.com/atlas-desktop/trading-backend/pkg/types"
)

func closesOf(vals ...float64) []decimal.Decimal {
	out := make([]decimal.Decimal, len(vals))
	for i, v := range vals {
		out[i] = decimal.NewFromFloat(v)
	}
	return out
}

func snapshot(ticker string, price float64, closes ...float64) *types.AssetSnapshot {
	return &types.AssetSnapshot{
		Ticker:           ticker,
		AsOf:             time.Now(),
		CurrentPrice:     decimal.NewFromFloat(price),
		HistoricalCloses: closesOf(closes...),
	}
}

func TestEvaluateEqualWeightTwoAssets(t *testing.T) {
	root := &tree.Step{
		Kind: tree.KindRoot,
		Children: []*tree.Step{
			{
				Kind: tree.KindWeightCashEqual,
				Children: []*tree.Step{
					{Kind: tree.KindAsset, Ticker: "AAA"},
					{Kind: tree.KindAsset, Ticker: "BBB"},
				},
			},
		},
	}
	ctx := &DataContext{Snapshots: map[string]*types.AssetSnapshot{
		"AAA": snapshot("AAA", 100),
		"BBB": snapshot("BBB", 50),
	}}

	result, err := Evaluate(root, ctx, DefaultAllocationConstraint())
	require.NoError(t, err)
	assert.True(t, result.Weights["AAA"].Equal(decimal.NewFromFloat(0.5)))
	assert.True(t, result.Weights["BBB"].Equal(decimal.NewFromFloat(0.5)))
}

func TestEvaluateIfFailsClosedOnMissingData(t *testing.T) {
	root := &tree.Step{
		Kind: tree.KindRoot,
		Children: []*tree.Step{
			{
				Kind: tree.KindIf,
				Children: []*tree.Step{
					{
						Kind: tree.KindIfChild,
						Condition: &tree.Condition{
							LHS:        tree.Source{MetricFn: tree.MetricRSI, Window: 14, Ticker: "MISSING"},
							Comparator: tree.CmpGT,
							RHS:        tree.Source{Literal: decPtr(50)},
						},
						Children: []*tree.Step{{Kind: tree.KindAsset, Ticker: "AAA"}},
					},
					{
						Kind:   tree.KindIfChild,
						IsElse: true,
						Children: []*tree.Step{
							{Kind: tree.KindWeightCashEqual, Children: []*tree.Step{{Kind: tree.KindAsset, Ticker: "BBB"}}},
						},
					},
				},
			},
		},
	}
	ctx := &DataContext{Snapshots: map[string]*types.AssetSnapshot{
		"BBB": snapshot("BBB", 10),
	}}

	result, err := Evaluate(root, ctx, DefaultAllocationConstraint())
	require.NoError(t, err)
	assert.True(t, result.Weights["BBB"].Equal(decimal.NewFromInt(1)))
}

func TestEvaluateFilterKeepsTopByScore(t *testing.T) {
	root := &tree.Step{
		Kind: tree.KindRoot,
		Children: []*tree.Step{
			{
				Kind: tree.KindWeightCashEqual,
				Children: []*tree.Step{
					{
						Kind:         tree.KindFilter,
						SortFn:       tree.MetricCumulativeReturn,
						SortFnWindow: 2,
						Select:       tree.SelectorTop,
						SelectN:      1,
						Children: []*tree.Step{
							{Kind: tree.KindAsset, Ticker: "AAA"},
							{Kind: tree.KindAsset, Ticker: "BBB"},
						},
					},
				},
			},
		},
	}
	ctx := &DataContext{Snapshots: map[string]*types.AssetSnapshot{
		"AAA": snapshot("AAA", 110, 110, 100, 90), // 2-day cum return (110-90)/90 ≈ 0.22
		"BBB": snapshot("BBB", 95, 95, 100, 90),   // 2-day cum return (95-90)/90 ≈ 0.056
	}}

	result, err := Evaluate(root, ctx, DefaultAllocationConstraint())
	require.NoError(t, err)
	assert.True(t, result.Weights["AAA"].Equal(decimal.NewFromInt(1)))
	assert.NotContains(t, result.Weights, "BBB")
}

func TestEvaluateEmptyWorkingSetCollapsesToCash(t *testing.T) {
	root := &tree.Step{
		Kind: tree.KindRoot,
		Children: []*tree.Step{
			{
				Kind: tree.KindWeightInverseVol,
				Children: []*tree.Step{
					{Kind: tree.KindAsset, Ticker: "AAA"},
				},
			},
		},
	}
	ctx := &DataContext{Snapshots: map[string]*types.AssetSnapshot{
		"AAA": snapshot("AAA", 100, 100), // too short a history for volatility
	}}

	result, err := Evaluate(root, ctx, DefaultAllocationConstraint())
	require.NoError(t, err)
	assert.Equal(t, decimal.NewFromInt(1), result.Weights["cash"])
}

func TestEvaluateCashBufferReservesCash(t *testing.T) {
	root := &tree.Step{
		Kind: tree.KindRoot,
		Policy: tree.RebalancePolicy{
			CashBuffer: decPtr(0.1),
		},
		Children: []*tree.Step{
			{
				Kind: tree.KindWeightCashEqual,
				Children: []*tree.Step{
					{Kind: tree.KindAsset, Ticker: "AAA"},
				},
			},
		},
	}
	ctx := &DataContext{Snapshots: map[string]*types.AssetSnapshot{
		"AAA": snapshot("AAA", 100),
	}}

	result, err := Evaluate(root, ctx, DefaultAllocationConstraint())
	require.NoError(t, err)
	assert.True(t, result.Weights["AAA"].Equal(decimal.NewFromFloat(0.9)))
	assert.True(t, result.Weights["cash"].Equal(decimal.NewFromFloat(0.1)))
}

func decPtr(v float64) *decimal.Decimal {
	d := decimal.NewFromFloat(v)
	return &d
}
