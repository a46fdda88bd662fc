// Package broker defines the Broker port (spec.md §6) and a
// paper-trading adapter used by the Trade Executor (C7).
package broker

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// Broker is the port every execution venue implements: account state,
// positions, and order lifecycle operations (spec.md §6). OAuth bearer
// refresh is out-of-band and not part of this interface; PaperBroker
// needs no credentials.
type Broker interface {
	Account(ctx context.Context) (types.Account, error)
	ListPositions(ctx context.Context) ([]types.BrokerPosition, error)
	SubmitOrder(ctx context.Context, req OrderRequest) (types.Order, error)
	GetOrder(ctx context.Context, brokerOrderID string) (types.Order, error)
	CancelOrder(ctx context.Context, brokerOrderID string) error
	CancelAllOrders(ctx context.Context) error
	ClosePosition(ctx context.Context, ticker string) (types.Order, error)
	CloseAllPositions(ctx context.Context) ([]types.Order, error)
}

// OrderRequest is the submission payload for Broker.SubmitOrder
// (spec.md §6).
type OrderRequest struct {
	ClientOrderID string
	Ticker        string
	Quantity      decimal.Decimal
	Side          types.OrderSide
	Type          types.OrderType
	TimeInForce   types.TimeInForce
	LimitPrice    *decimal.Decimal
}
