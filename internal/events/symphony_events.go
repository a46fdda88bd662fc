package events

import (
	"github.com/shopspring/decimal"
)

// Symphony lifecycle events (spec.md §4.9's five named event types),
// adapted onto the existing BaseEvent/EventBus plumbing rather than
// forking a separate bus for the rebalancing domain.
const (
	EventTypeExecutionStarted  EventType = "execution_started"
	EventTypeOrderPlaced       EventType = "order_placed"
	EventTypeOrderFilled       EventType = "order_filled"
	EventTypeSymphonyCompleted EventType = "symphony_completed"
	EventTypeLiquidation       EventType = "liquidation_event"
)

// ExecutionStartedEvent marks the beginning of one symphony's
// rebalance window.
type ExecutionStartedEvent struct {
	BaseEvent
	SymphonyID string `json:"symphony_id"`
	UserID     string `json:"user_id"`
}

// OrderPlacedEvent fires when the Trade Executor submits an order to
// the broker, before it reaches a terminal state.
type OrderPlacedEvent struct {
	BaseEvent
	SymphonyID string          `json:"symphony_id"`
	Ticker     string          `json:"ticker"`
	Side       string          `json:"side"`
	Quantity   decimal.Decimal `json:"quantity"`
}

// OrderFilledEvent fires once an order reaches a terminal status.
type OrderFilledEvent struct {
	BaseEvent
	SymphonyID   string          `json:"symphony_id"`
	Ticker       string          `json:"ticker"`
	Status       string          `json:"status"`
	FilledQty    decimal.Decimal `json:"filled_qty"`
	AvgFillPrice decimal.Decimal `json:"avg_fill_price"`
}

// SymphonyCompletedEvent fires once a symphony's rebalance window has
// fully reconciled (all orders terminal or execution cutoff reached).
type SymphonyCompletedEvent struct {
	BaseEvent
	SymphonyID      string `json:"symphony_id"`
	OrdersSubmitted int    `json:"orders_submitted"`
	PartialFailures int    `json:"partial_failures"`
}

// LiquidationEvent mirrors types.LiquidationEvent on the event bus so
// subscribers (alerting, audit log) can react without polling the store.
type LiquidationEvent struct {
	BaseEvent
	SymphonyID  string          `json:"symphony_id"`
	UserID      string          `json:"user_id"`
	Reason      string          `json:"reason"`
	TotalClosed decimal.Decimal `json:"total_closed"`
}

func NewExecutionStartedEvent(symphonyID, userID string) *ExecutionStartedEvent {
	return &ExecutionStartedEvent{
		BaseEvent:  NewBaseEvent(EventTypeExecutionStarted, symphonyID),
		SymphonyID: symphonyID,
		UserID:     userID,
	}
}

func NewOrderPlacedEvent(symphonyID, ticker, side string, quantity decimal.Decimal) *OrderPlacedEvent {
	return &OrderPlacedEvent{
		BaseEvent:  NewBaseEvent(EventTypeOrderPlaced, symphonyID),
		SymphonyID: symphonyID,
		Ticker:     ticker,
		Side:       side,
		Quantity:   quantity,
	}
}

func NewOrderFilledEvent(symphonyID, ticker, status string, filledQty, avgFillPrice decimal.Decimal) *OrderFilledEvent {
	return &OrderFilledEvent{
		BaseEvent:    NewBaseEvent(EventTypeOrderFilled, symphonyID),
		SymphonyID:   symphonyID,
		Ticker:       ticker,
		Status:       status,
		FilledQty:    filledQty,
		AvgFillPrice: avgFillPrice,
	}
}

func NewSymphonyCompletedEvent(symphonyID string, ordersSubmitted, partialFailures int) *SymphonyCompletedEvent {
	return &SymphonyCompletedEvent{
		BaseEvent:       NewBaseEvent(EventTypeSymphonyCompleted, symphonyID),
		SymphonyID:      symphonyID,
		OrdersSubmitted: ordersSubmitted,
		PartialFailures: partialFailures,
	}
}

func NewLiquidationEvent(symphonyID, userID, reason string, totalClosed decimal.Decimal) *LiquidationEvent {
	return &LiquidationEvent{
		BaseEvent:   NewBaseEvent(EventTypeLiquidation, symphonyID),
		SymphonyID:  symphonyID,
		UserID:      userID,
		Reason:      reason,
		TotalClosed: totalClosed,
	}
}
