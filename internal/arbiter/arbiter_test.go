package arbiter

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/atlas-desktop/trading-backend/pkg/types"
)

func TestDecideDailyAlwaysTriggers(t *testing.T) {
	s := &types.Symphony{Policy: types.RebalancePolicy{Frequency: types.FrequencyDaily}}
	ok, _ := Decide(s, nil, time.Date(2026, 7, 29, 16, 0, 0, 0, time.UTC))
	assert.True(t, ok)
}

func TestDecideWeeklyOnlyMonday(t *testing.T) {
	s := &types.Symphony{Policy: types.RebalancePolicy{Frequency: types.FrequencyWeekly}}
	monday := time.Date(2026, 8, 3, 16, 0, 0, 0, time.UTC) // Monday
	tuesday := time.Date(2026, 8, 4, 16, 0, 0, 0, time.UTC)

	ok, _ := Decide(s, nil, monday)
	assert.True(t, ok)
	ok, _ = Decide(s, nil, tuesday)
	assert.False(t, ok)
}

func TestDecideThresholdNoPositionsAlwaysTriggers(t *testing.T) {
	s := &types.Symphony{Policy: types.RebalancePolicy{Threshold: &types.ThresholdPolicy{CorridorWidth: decimal.NewFromFloat(0.05)}}}
	ok, reason := Decide(s, nil, time.Now())
	assert.True(t, ok)
	assert.Contains(t, reason, "initial allocation")
}

func TestDecideThresholdWithinCorridorDoesNotTrigger(t *testing.T) {
	s := &types.Symphony{
		Policy: types.RebalancePolicy{Threshold: &types.ThresholdPolicy{CorridorWidth: decimal.NewFromFloat(0.1)}},
		LastTargets: map[string]decimal.Decimal{
			"AAA": decimal.NewFromFloat(0.5),
			"BBB": decimal.NewFromFloat(0.5),
		},
	}
	positions := []*types.Position{
		{Ticker: "AAA", Quantity: decimal.NewFromInt(10), LastMark: decimal.NewFromInt(10)}, // 100
		{Ticker: "BBB", Quantity: decimal.NewFromInt(10), LastMark: decimal.NewFromInt(10)}, // 100
	}
	ok, _ := Decide(s, positions, time.Now())
	assert.False(t, ok)
}

func TestDecideThresholdExceedingCorridorTriggers(t *testing.T) {
	s := &types.Symphony{
		Policy: types.RebalancePolicy{Threshold: &types.ThresholdPolicy{CorridorWidth: decimal.NewFromFloat(0.05)}},
		LastTargets: map[string]decimal.Decimal{
			"AAA": decimal.NewFromFloat(0.5),
			"BBB": decimal.NewFromFloat(0.5),
		},
	}
	positions := []*types.Position{
		{Ticker: "AAA", Quantity: decimal.NewFromInt(80), LastMark: decimal.NewFromInt(1)}, // 80
		{Ticker: "BBB", Quantity: decimal.NewFromInt(20), LastMark: decimal.NewFromInt(1)}, // 20
	}
	ok, reason := Decide(s, positions, time.Now())
	assert.True(t, ok)
	assert.Contains(t, reason, "exceeds corridor")
}

func TestDecideThresholdForcedByMinRebalanceAge(t *testing.T) {
	s := &types.Symphony{
		Policy: types.RebalancePolicy{
			Threshold:           &types.ThresholdPolicy{CorridorWidth: decimal.NewFromFloat(0.5)},
			MinRebalanceAgeDays: 7,
		},
		LastTargets: map[string]decimal.Decimal{"AAA": decimal.NewFromFloat(1)},
		LastExecutedAt: time.Now().Add(-8 * 24 * time.Hour),
	}
	positions := []*types.Position{
		{Ticker: "AAA", Quantity: decimal.NewFromInt(10), LastMark: decimal.NewFromInt(10)},
	}
	ok, reason := Decide(s, positions, time.Now())
	assert.True(t, ok)
	assert.Contains(t, reason, "forced rebalance:")
}
