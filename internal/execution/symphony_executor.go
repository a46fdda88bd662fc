package execution

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/atlas-desktop/trading-backend/internal/broker"
	"github.com/atlas-desktop/trading-backend/internal/engineerr"
	"github.com/atlas-desktop/trading-backend/internal/events"
	"github.com/atlas-desktop/trading-backend/internal/metrics"
	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// SymphonyExecutor owns the order lifecycle within one execution
// attempt (C7, spec.md §4.7): submit, poll to terminal state, update
// positions. It talks to a broker.Broker port and persists nothing.
type SymphonyExecutor struct {
	logger       *zap.Logger
	brk          broker.Broker
	bus          *events.EventBus
	pollInterval time.Duration
}

// NewSymphonyExecutor builds an executor polling at pollInterval
// (spec.md §4.7 names "e.g. 1s"). Until WithEventBus attaches a bus,
// lifecycle events are not published (useful in tests).
func NewSymphonyExecutor(brk broker.Broker, logger *zap.Logger, pollInterval time.Duration) *SymphonyExecutor {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &SymphonyExecutor{logger: logger, brk: brk, pollInterval: pollInterval}
}

// WithEventBus attaches a bus that Run will publish lifecycle events
// to (execution-started/order-placed/order-filled/symphony-completed).
func (e *SymphonyExecutor) WithEventBus(bus *events.EventBus) *SymphonyExecutor {
	e.bus = bus
	return e
}

func (e *SymphonyExecutor) publish(event events.Event) {
	if e.bus != nil {
		e.bus.Publish(event)
	}
}

// Result is the per-symphony outcome of one execution attempt.
type Result struct {
	Orders           []types.Order
	UpdatedPositions map[string]types.Position
	PartialFailures  []string
}

// Run submits intents in order (planner guarantees sells precede
// buys), then polls every non-terminal order until it reaches a
// terminal state or deadline. Orders are not persisted as pending; they
// are only returned in Result.Orders.
// Submission of new orders stops once (deadline - 30s) is reached
// (spec.md §4.7's timeout policy); already-submitted orders keep
// polling until deadline.
func (e *SymphonyExecutor) Run(ctx context.Context, symphonyID string, intents []types.OrderIntent, deadline time.Time) (*Result, error) {
	cutoff := deadline.Add(-30 * time.Second)
	result := &Result{UpdatedPositions: make(map[string]types.Position)}
	e.publish(events.NewExecutionStartedEvent(symphonyID, ""))

	var submitted []types.Order
	availableCash, err := e.availableCash(ctx)
	if err != nil {
		return nil, err
	}

	for _, intent := range intents {
		if time.Now().After(cutoff) {
			e.logger.Warn("execution cutoff reached, skipping remaining intents",
				zap.String("symphony", symphonyID), zap.String("ticker", intent.Ticker))
			break
		}

		req := intentToRequest(intent, symphonyID)
		if req.Side == types.OrderSideBuy {
			cost := intent.SignedQuantity.Mul(intent.ReferencePrice)
			if cost.GreaterThan(availableCash) {
				// a prior sell in this plan failed to free the cash this
				// buy assumed; downsize proportionally rather than
				// over-spend (spec.md §4.7 "Ordering invariant").
				req.Quantity = req.Quantity.Mul(availableCash).Div(cost).Truncate(0)
				if req.Quantity.IsZero() {
					e.logger.Warn("skipping buy: no buying power remains", zap.String("ticker", intent.Ticker))
					continue
				}
			}
		}

		order, err := e.brk.SubmitOrder(ctx, req)
		if err != nil {
			result.PartialFailures = append(result.PartialFailures, fmt.Sprintf("%s: submit failed: %v", intent.Ticker, err))
			metrics.OrdersPlaced.WithLabelValues(string(req.Side), "submit_error").Inc()
			continue
		}
		e.publish(events.NewOrderPlacedEvent(symphonyID, req.Ticker, string(req.Side), req.Quantity))
		if req.Side == types.OrderSideSell && order.Status == types.OrderStatusFilled {
			availableCash = availableCash.Add(order.FilledQty.Mul(order.AvgFillPrice))
		}
		submitted = append(submitted, order)
	}

	for i := range submitted {
		final, err := e.pollToTerminal(ctx, submitted[i], deadline)
		if err != nil {
			result.PartialFailures = append(result.PartialFailures, err.Error())
		}
		submitted[i] = final
		metrics.OrdersPlaced.WithLabelValues(string(final.Side), string(final.Status)).Inc()
		e.publish(events.NewOrderFilledEvent(symphonyID, final.Ticker, string(final.Status), final.FilledQty, final.AvgFillPrice))
	}
	result.Orders = submitted
	e.publish(events.NewSymphonyCompletedEvent(symphonyID, len(submitted), len(result.PartialFailures)))

	positions, err := e.brk.ListPositions(ctx)
	if err != nil {
		return result, engineerr.Wrap(engineerr.KindBrokerUnreachable, "post-execution position fetch failed", err)
	}
	for _, p := range positions {
		result.UpdatedPositions[p.Ticker] = types.Position{
			SymphonyID:  symphonyID,
			Ticker:      p.Ticker,
			Quantity:    p.Quantity,
			AverageCost: p.AvgEntryPrice,
			LastMark:    p.CurrentPrice,
			UpdatedAt:   time.Now(),
		}
	}

	return result, nil
}

func (e *SymphonyExecutor) availableCash(ctx context.Context) (decimal.Decimal, error) {
	acct, err := e.brk.Account(ctx)
	if err != nil {
		return decimal.Zero, engineerr.Wrap(engineerr.KindBrokerUnreachable, "could not read account", err)
	}
	return acct.BuyingPower, nil
}

func (e *SymphonyExecutor) pollToTerminal(ctx context.Context, order types.Order, deadline time.Time) (types.Order, error) {
	if order.Status.IsTerminal() {
		return order, nil
	}

	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return order, fmt.Errorf("%s: polling cancelled: %w", order.Ticker, ctx.Err())
		case now := <-ticker.C:
			if now.After(deadline) {
				if order.Status == types.OrderStatusPending {
					order.Status = types.OrderStatusPartial
				}
				return order, fmt.Errorf("%s: order %s at deadline, status %s", order.Ticker, order.BrokerOrderID, order.Status)
			}
			latest, err := e.brk.GetOrder(ctx, order.BrokerOrderID)
			if err != nil {
				continue
			}
			order = latest
			if order.Status.IsTerminal() {
				return order, nil
			}
		}
	}
}

func intentToRequest(intent types.OrderIntent, symphonyID string) broker.OrderRequest {
	side := types.OrderSideBuy
	qty := intent.SignedQuantity
	if qty.IsNegative() {
		side = types.OrderSideSell
		qty = qty.Neg()
	}
	return broker.OrderRequest{
		ClientOrderID: fmt.Sprintf("%s-%s", symphonyID, uuid.NewString()),
		Ticker:        intent.Ticker,
		Quantity:      qty,
		Side:          side,
		Type:          types.OrderTypeMarket,
		TimeInForce:   types.TimeInForceDay,
	}
}
