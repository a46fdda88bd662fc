package execution

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/atlas-desktop/trading-backend/internal/broker"
	"github.com/atlas-desktop/trading-backend/pkg/types"
)

type constPrice struct{ price decimal.Decimal }

func (c constPrice) CurrentPrice(ctx context.Context, ticker string) (decimal.Decimal, error) {
	return c.price, nil
}

func TestSymphonyExecutorFillsMarketBuy(t *testing.T) {
	brk := broker.NewPaperBroker(decimal.NewFromInt(10000), constPrice{price: decimal.NewFromInt(100)}, zap.NewNop())
	exec := NewSymphonyExecutor(brk, zap.NewNop(), 50*time.Millisecond)

	intents := []types.OrderIntent{
		{Ticker: "AAA", SignedQuantity: decimal.NewFromInt(10), ReferencePrice: decimal.NewFromInt(100)},
	}
	result, err := exec.Run(context.Background(), "sym-1", intents, time.Now().Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, result.Orders, 1)
	assert.Equal(t, types.OrderStatusFilled, result.Orders[0].Status)
	assert.Contains(t, result.UpdatedPositions, "AAA")
}

func TestSymphonyExecutorDownsizesBuyWhenCashShort(t *testing.T) {
	brk := broker.NewPaperBroker(decimal.NewFromInt(500), constPrice{price: decimal.NewFromInt(100)}, zap.NewNop())
	exec := NewSymphonyExecutor(brk, zap.NewNop(), 50*time.Millisecond)

	intents := []types.OrderIntent{
		{Ticker: "AAA", SignedQuantity: decimal.NewFromInt(10), ReferencePrice: decimal.NewFromInt(100)}, // wants 1000, only 500 cash
	}
	result, err := exec.Run(context.Background(), "sym-1", intents, time.Now().Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, result.Orders, 1)
	assert.True(t, result.Orders[0].FilledQty.LessThanOrEqual(decimal.NewFromInt(5)))
}
