package broker

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/atlas-desktop/trading-backend/internal/engineerr"
	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// PriceSource supplies the paper broker with a current price per
// ticker, so fills happen at a realistic reference price instead of
// the submitted limit.
type PriceSource interface {
	CurrentPrice(ctx context.Context, ticker string) (decimal.Decimal, error)
}

// PaperBroker is an in-memory broker adapter that fills market orders
// immediately at the current reference price, simulating the
// paper-trading venue named in spec.md §6. It carries its own cash and
// position ledger, independent of the persistent store.
type PaperBroker struct {
	mu        sync.Mutex
	logger    *zap.Logger
	prices    PriceSource
	cash      decimal.Decimal
	positions map[string]types.BrokerPosition
	orders    map[string]types.Order
}

// NewPaperBroker seeds a paper account with startingCash and no positions.
func NewPaperBroker(startingCash decimal.Decimal, prices PriceSource, logger *zap.Logger) *PaperBroker {
	return &PaperBroker{
		logger:    logger,
		prices:    prices,
		cash:      startingCash,
		positions: make(map[string]types.BrokerPosition),
		orders:    make(map[string]types.Order),
	}
}

func (b *PaperBroker) Account(ctx context.Context) (types.Account, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	equity := b.cash
	for _, p := range b.positions {
		equity = equity.Add(p.MarketValue)
	}
	return types.Account{
		Equity:      equity,
		Cash:        b.cash,
		BuyingPower: b.cash,
	}, nil
}

func (b *PaperBroker) ListPositions(ctx context.Context) ([]types.BrokerPosition, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]types.BrokerPosition, 0, len(b.positions))
	for _, p := range b.positions {
		out = append(out, p)
	}
	return out, nil
}

// SubmitOrder fills market orders immediately at the current price
// (spec.md §6's paper-trading contract). Limit orders fill only if the
// current price satisfies the limit, otherwise they are left pending
// and the caller's executor polls GetOrder.
func (b *PaperBroker) SubmitOrder(ctx context.Context, req OrderRequest) (types.Order, error) {
	price, err := b.prices.CurrentPrice(ctx, req.Ticker)
	if err != nil {
		return types.Order{}, engineerr.Wrap(engineerr.KindBrokerUnreachable, "paper broker could not price order", err)
	}

	order := types.Order{
		ClientOrderID: req.ClientOrderID,
		BrokerOrderID: uuid.NewString(),
		Ticker:        req.Ticker,
		Side:          req.Side,
		Type:          req.Type,
		TimeInForce:   req.TimeInForce,
		Quantity:      req.Quantity,
		IntendedPrice: price,
		Status:        types.OrderStatusPending,
		SubmittedAt:   time.Now(),
	}

	fillable := req.Type == types.OrderTypeMarket || limitSatisfied(req, price)
	if !fillable {
		b.mu.Lock()
		b.orders[order.BrokerOrderID] = order
		b.mu.Unlock()
		return order, nil
	}

	if err := b.applyFill(&order, req, price); err != nil {
		order.Status = types.OrderStatusRejected
		order.ErrorText = err.Error()
		b.mu.Lock()
		b.orders[order.BrokerOrderID] = order
		b.mu.Unlock()
		return order, nil
	}

	b.mu.Lock()
	b.orders[order.BrokerOrderID] = order
	b.mu.Unlock()
	return order, nil
}

func limitSatisfied(req OrderRequest, price decimal.Decimal) bool {
	if req.LimitPrice == nil {
		return true
	}
	if req.Side == types.OrderSideBuy {
		return price.LessThanOrEqual(*req.LimitPrice)
	}
	return price.GreaterThanOrEqual(*req.LimitPrice)
}

func (b *PaperBroker) applyFill(order *types.Order, req OrderRequest, price decimal.Decimal) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	cost := req.Quantity.Mul(price)
	if req.Side == types.OrderSideBuy {
		if cost.GreaterThan(b.cash) {
			return engineerr.New(engineerr.KindBrokerRejected, "insufficient buying power")
		}
		b.cash = b.cash.Sub(cost)
		b.addToPosition(req.Ticker, req.Quantity, price)
	} else {
		pos, held := b.positions[req.Ticker]
		if !held || pos.Quantity.LessThan(req.Quantity) {
			return engineerr.New(engineerr.KindBrokerRejected, "insufficient position to sell")
		}
		b.cash = b.cash.Add(cost)
		b.addToPosition(req.Ticker, req.Quantity.Neg(), price)
	}

	now := time.Now()
	order.Status = types.OrderStatusFilled
	order.FilledQty = req.Quantity
	order.AvgFillPrice = price
	order.FilledAt = &now
	return nil
}

func (b *PaperBroker) addToPosition(ticker string, deltaQty, price decimal.Decimal) {
	pos := b.positions[ticker]
	pos.Ticker = ticker
	newQty := pos.Quantity.Add(deltaQty)
	if newQty.IsZero() {
		delete(b.positions, ticker)
		return
	}
	pos.Quantity = newQty
	pos.CurrentPrice = price
	pos.MarketValue = newQty.Mul(price)
	b.positions[ticker] = pos
}

func (b *PaperBroker) GetOrder(ctx context.Context, brokerOrderID string) (types.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	order, ok := b.orders[brokerOrderID]
	if !ok {
		return types.Order{}, engineerr.New(engineerr.KindBrokerRejected, "unknown order id")
	}
	return order, nil
}

func (b *PaperBroker) CancelOrder(ctx context.Context, brokerOrderID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	order, ok := b.orders[brokerOrderID]
	if !ok {
		return engineerr.New(engineerr.KindBrokerRejected, "unknown order id")
	}
	if order.Status.IsTerminal() {
		return nil
	}
	order.Status = types.OrderStatusCancelled
	b.orders[brokerOrderID] = order
	return nil
}

func (b *PaperBroker) CancelAllOrders(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, order := range b.orders {
		if !order.Status.IsTerminal() {
			order.Status = types.OrderStatusCancelled
			b.orders[id] = order
		}
	}
	return nil
}

func (b *PaperBroker) ClosePosition(ctx context.Context, ticker string) (types.Order, error) {
	b.mu.Lock()
	pos, held := b.positions[ticker]
	b.mu.Unlock()
	if !held {
		return types.Order{}, engineerr.New(engineerr.KindBrokerRejected, "no position to close")
	}
	return b.SubmitOrder(ctx, OrderRequest{
		ClientOrderID: uuid.NewString(),
		Ticker:        ticker,
		Quantity:      pos.Quantity.Abs(),
		Side:          types.OrderSideSell,
		Type:          types.OrderTypeMarket,
		TimeInForce:   types.TimeInForceDay,
	})
}

func (b *PaperBroker) CloseAllPositions(ctx context.Context) ([]types.Order, error) {
	b.mu.Lock()
	tickers := make([]string, 0, len(b.positions))
	for t := range b.positions {
		tickers = append(tickers, t)
	}
	b.mu.Unlock()

	orders := make([]types.Order, 0, len(tickers))
	for _, t := range tickers {
		order, err := b.ClosePosition(ctx, t)
		if err != nil {
			b.logger.Warn("failed to close position", zap.String("ticker", t), zap.Error(err))
			continue
		}
		orders = append(orders, order)
	}
	return orders, nil
}
