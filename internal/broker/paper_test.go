package broker

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/atlas-desktop/trading-backend/pkg/types"
)

type fixedPriceSource struct {
	price decimal.Decimal
}

func (f fixedPriceSource) CurrentPrice(ctx context.Context, ticker string) (decimal.Decimal, error) {
	return f.price, nil
}

func TestPaperBrokerMarketBuyFillsAndUpdatesCash(t *testing.T) {
	b := NewPaperBroker(decimal.NewFromInt(10000), fixedPriceSource{price: decimal.NewFromInt(100)}, zap.NewNop())

	order, err := b.SubmitOrder(context.Background(), OrderRequest{
		ClientOrderID: "c1", Ticker: "AAA", Quantity: decimal.NewFromInt(10),
		Side: types.OrderSideBuy, Type: types.OrderTypeMarket, TimeInForce: types.TimeInForceDay,
	})
	require.NoError(t, err)
	assert.Equal(t, types.OrderStatusFilled, order.Status)

	acct, err := b.Account(context.Background())
	require.NoError(t, err)
	assert.True(t, acct.Cash.Equal(decimal.NewFromInt(9000)))
}

func TestPaperBrokerRejectsSellWithoutPosition(t *testing.T) {
	b := NewPaperBroker(decimal.NewFromInt(1000), fixedPriceSource{price: decimal.NewFromInt(10)}, zap.NewNop())

	order, err := b.SubmitOrder(context.Background(), OrderRequest{
		ClientOrderID: "c1", Ticker: "AAA", Quantity: decimal.NewFromInt(5),
		Side: types.OrderSideSell, Type: types.OrderTypeMarket, TimeInForce: types.TimeInForceDay,
	})
	require.NoError(t, err)
	assert.Equal(t, types.OrderStatusRejected, order.Status)
}

func TestPaperBrokerClosePositionSellsFullQuantity(t *testing.T) {
	b := NewPaperBroker(decimal.NewFromInt(10000), fixedPriceSource{price: decimal.NewFromInt(50)}, zap.NewNop())
	_, err := b.SubmitOrder(context.Background(), OrderRequest{
		ClientOrderID: "c1", Ticker: "AAA", Quantity: decimal.NewFromInt(20),
		Side: types.OrderSideBuy, Type: types.OrderTypeMarket, TimeInForce: types.TimeInForceDay,
	})
	require.NoError(t, err)

	order, err := b.ClosePosition(context.Background(), "AAA")
	require.NoError(t, err)
	assert.Equal(t, types.OrderStatusFilled, order.Status)

	positions, err := b.ListPositions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, positions)
}
