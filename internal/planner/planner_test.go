package planner

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v string) decimal.Decimal {
	dec, err := decimal.NewFromString(v)
	if err != nil {
		panic(err)
	}
	return dec
}

func TestPlanSkipsBelowMinOrderDollars(t *testing.T) {
	intents := Plan(
		d("10000"),
		[]Position{{Ticker: "AAA", Quantity: d("10"), Price: d("100")}}, // 1000 held, target 1005
		map[string]decimal.Decimal{"AAA": d("0.1005")},
		map[string]decimal.Decimal{"AAA": d("100")},
		d("10000"), d("10"),
	)
	assert.Empty(t, intents)
}

func TestPlanSellsBeforeBuys(t *testing.T) {
	intents := Plan(
		d("10000"),
		[]Position{{Ticker: "AAA", Quantity: d("50"), Price: d("100")}}, // 5000 held
		map[string]decimal.Decimal{"AAA": d("0"), "BBB": d("0.5")},
		map[string]decimal.Decimal{"AAA": d("100"), "BBB": d("50")},
		d("10000"), d("10"),
	)
	require.Len(t, intents, 2)
	assert.Equal(t, "AAA", intents[0].Ticker)
	assert.True(t, intents[0].SignedQuantity.IsNegative())
	assert.Equal(t, "BBB", intents[1].Ticker)
	assert.True(t, intents[1].SignedQuantity.IsPositive())
}

func TestPlanNeverOverspendsBuyingPower(t *testing.T) {
	intents := Plan(
		d("10000"),
		nil,
		map[string]decimal.Decimal{"AAA": d("0.5"), "BBB": d("0.5")},
		map[string]decimal.Decimal{"AAA": d("100"), "BBB": d("100")},
		d("3000"), d("10"), // only 3000 buying power for 10000 worth of targets
	)
	total := decimal.Zero
	for _, i := range intents {
		total = total.Add(i.SignedQuantity.Mul(i.ReferencePrice))
	}
	assert.True(t, total.LessThanOrEqual(d("3000")))
}

func TestPlanWholeShareRoundingTowardZero(t *testing.T) {
	intents := Plan(
		d("1000"),
		nil,
		map[string]decimal.Decimal{"AAA": d("0.33")},
		map[string]decimal.Decimal{"AAA": d("100")},
		d("1000"), d("10"),
	)
	require.Len(t, intents, 1)
	assert.True(t, intents[0].SignedQuantity.Equal(d("3"))) // 330/100 = 3.3 -> 3
}
