// Package types provides shared domain type definitions for the
// symphony rebalancing engine.
package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderSide represents buy or sell.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// OrderType represents the type of order submitted to the broker.
type OrderType string

const (
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"
)

// TimeInForce represents the broker time-in-force instruction.
type TimeInForce string

const (
	TimeInForceDay TimeInForce = "day"
	TimeInForceGTC TimeInForce = "gtc"
)

// OrderStatus represents the lifecycle status of an order (spec.md §3).
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusPartial   OrderStatus = "partial"
	OrderStatusFilled    OrderStatus = "filled"
	OrderStatusRejected  OrderStatus = "rejected"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusFailed    OrderStatus = "failed"
)

// IsTerminal reports whether the status will never change again on its own.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusRejected, OrderStatusCancelled, OrderStatusFailed:
		return true
	default:
		return false
	}
}

// RebalanceFrequency is the time-based rebalance schedule token (spec.md §3).
type RebalanceFrequency string

const (
	FrequencyDaily     RebalanceFrequency = "daily"
	FrequencyWeekly    RebalanceFrequency = "weekly"
	FrequencyMonthly   RebalanceFrequency = "monthly"
	FrequencyQuarterly RebalanceFrequency = "quarterly"
	FrequencyYearly    RebalanceFrequency = "yearly"
)

// RebalancePolicy is the symphony's rebalance-eligibility configuration.
// Exactly one of Frequency or CorridorWidth-based threshold mode applies,
// discriminated by Threshold being non-nil.
type RebalancePolicy struct {
	Frequency RebalanceFrequency `json:"frequency,omitempty"`
	Threshold *ThresholdPolicy   `json:"threshold,omitempty"`
	// MinRebalanceAge forces a rebalance after this many days even with
	// zero drift; 0 disables the forced minimum age. Resolves the
	// open question in spec.md §9 about "always skip" corridor behaviour.
	MinRebalanceAgeDays int `json:"minRebalanceAgeDays,omitempty"`
}

// ThresholdPolicy is the drift-triggered rebalance mode.
type ThresholdPolicy struct {
	CorridorWidth decimal.Decimal `json:"corridorWidth"`
}

// Symphony is a persisted, named strategy tree with a rebalance policy
// (spec.md §3). The tree itself lives in the tree package; Symphony
// carries its serialized form plus bookkeeping fields.
type Symphony struct {
	ID              string          `json:"id"`
	OwnerID         string          `json:"ownerId"`
	Name            string          `json:"name"`
	TreeJSON        []byte          `json:"treeJson"`
	Policy          RebalancePolicy `json:"policy"`
	Active          bool            `json:"active"`
	LastExecutedAt  time.Time       `json:"lastExecutedAt,omitempty"`
	ExecutionCount  int             `json:"executionCount"`
	LastError       string          `json:"lastError,omitempty"`
	LastTargets     map[string]decimal.Decimal `json:"lastTargets,omitempty"`
}

// AssetSnapshot holds a (ticker, as-of-date) view of market data: current
// price, historical closes newest-first, volume, optional market cap, and
// a memoized indicator cache (spec.md §3).
type AssetSnapshot struct {
	Ticker            string
	AsOf              time.Time
	CurrentPrice      decimal.Decimal
	HistoricalCloses  []decimal.Decimal // newest first
	Volume            decimal.Decimal
	MarketCap         *decimal.Decimal

	indicators map[indicatorKey]decimal.Decimal
}

type indicatorKey struct {
	Fn     string
	Window int
	Param  string
}

// IndicatorCached returns a previously memoized indicator value.
func (a *AssetSnapshot) IndicatorCached(fn string, window int, param string) (decimal.Decimal, bool) {
	if a.indicators == nil {
		return decimal.Zero, false
	}
	v, ok := a.indicators[indicatorKey{fn, window, param}]
	return v, ok
}

// MemoizeIndicator stores a computed indicator value for reuse.
func (a *AssetSnapshot) MemoizeIndicator(fn string, window int, param string, value decimal.Decimal) {
	if a.indicators == nil {
		a.indicators = make(map[indicatorKey]decimal.Decimal)
	}
	a.indicators[indicatorKey{fn, window, param}] = value
}

// EvaluationResult is the output of evaluating a strategy tree (spec.md §3/§4.4).
type EvaluationResult struct {
	Weights        map[string]decimal.Decimal
	ExcludedAssets []string
	Trace          []string
	Errors         []error
}

// IsCash reports whether the result is the degenerate all-cash allocation.
func (r *EvaluationResult) IsCash() bool {
	if len(r.Weights) != 1 {
		return false
	}
	w, ok := r.Weights["cash"]
	return ok && w.Equal(decimal.NewFromInt(1))
}

// Position is (user, symphony, ticker) -> holding (spec.md §3). Archived
// (removed from the active set) when Quantity crosses exactly zero.
type Position struct {
	UserID      string          `json:"userId"`
	SymphonyID  string          `json:"symphonyId"`
	Ticker      string          `json:"ticker"`
	Quantity    decimal.Decimal `json:"quantity"`
	AverageCost decimal.Decimal `json:"averageCost"`
	LastMark    decimal.Decimal `json:"lastMark"`
	CostBasis   decimal.Decimal `json:"costBasis"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// MarketValue returns quantity * last mark.
func (p *Position) MarketValue() decimal.Decimal {
	return p.Quantity.Mul(p.LastMark)
}

// Order is a single broker order with client-side tracking fields
// (spec.md §3).
type Order struct {
	ClientOrderID string          `json:"clientOrderId"`
	BrokerOrderID string          `json:"brokerOrderId,omitempty"`
	SymphonyID    string          `json:"symphonyId"`
	Ticker        string          `json:"ticker"`
	Side          OrderSide       `json:"side"`
	Type          OrderType       `json:"type"`
	TimeInForce   TimeInForce     `json:"timeInForce"`
	Quantity      decimal.Decimal `json:"quantity"`
	IntendedPrice decimal.Decimal `json:"intendedPrice"`
	FilledQty     decimal.Decimal `json:"filledQty"`
	AvgFillPrice  decimal.Decimal `json:"avgFillPrice"`
	Status        OrderStatus     `json:"status"`
	SubmittedAt   time.Time       `json:"submittedAt"`
	FilledAt      *time.Time      `json:"filledAt,omitempty"`
	ErrorText     string          `json:"errorText,omitempty"`
}

// Trade is an append-only record of a single fill event.
type Trade struct {
	ID          string          `json:"id"`
	OrderID     string          `json:"orderId"`
	SymphonyID  string          `json:"symphonyId"`
	Ticker      string          `json:"ticker"`
	Side        OrderSide       `json:"side"`
	Quantity    decimal.Decimal `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	ExecutedAt  time.Time       `json:"executedAt"`
}

// OrderIntent is the Order Planner's output before submission: a signed
// quantity to trade at a reference price (spec.md §4.6).
type OrderIntent struct {
	Ticker         string
	SignedQuantity decimal.Decimal // positive = buy, negative = sell
	ReferencePrice decimal.Decimal
}

// Account is the broker account snapshot (spec.md §6 Broker port).
type Account struct {
	Equity            decimal.Decimal
	Cash              decimal.Decimal
	BuyingPower       decimal.Decimal
	PatternDayTrader  bool
	TradingBlocked    bool
	AccountBlocked    bool
}

// BrokerPosition is the broker's view of a held position (spec.md §6).
type BrokerPosition struct {
	Ticker        string
	Quantity      decimal.Decimal
	AvgEntryPrice decimal.Decimal
	CurrentPrice  decimal.Decimal
	MarketValue   decimal.Decimal
	UnrealizedPL  decimal.Decimal
}

// ExecutionRecord is the per-symphony per-window audit trail (spec.md §3).
type ExecutionRecord struct {
	SymphonyID      string                     `json:"symphonyId"`
	StartedAt       time.Time                  `json:"startedAt"`
	EndedAt         time.Time                  `json:"endedAt,omitempty"`
	EligibilityOK   bool                       `json:"eligibilityOk"`
	EligibilityWhy  string                     `json:"eligibilityWhy"`
	TargetWeights   map[string]decimal.Decimal `json:"targetWeights,omitempty"`
	PlacedOrders    []Order                    `json:"placedOrders,omitempty"`
	FinalStatus     string                     `json:"finalStatus"`
	Failures        []string                   `json:"failures,omitempty"`
}

// PerformanceMetrics is an append-only per-symphony performance snapshot,
// recorded post-window (spec.md §6 Persistent state, §4.9 step 5).
type PerformanceMetrics struct {
	SymphonyID       string          `json:"symphonyId"`
	AsOf             time.Time       `json:"asOf"`
	TotalReturn      decimal.Decimal `json:"totalReturn"`
	SharpeRatio      decimal.Decimal `json:"sharpeRatio"`
	MaxDrawdown      decimal.Decimal `json:"maxDrawdown"`
}

// LiquidationEvent records a forced liquidation performed by the Failure
// Handler (spec.md §4.8).
type LiquidationEvent struct {
	SymphonyID  string          `json:"symphonyId"`
	UserID      string          `json:"userId"`
	Reason      string          `json:"reason"`
	TotalClosed decimal.Decimal `json:"totalClosed"`
	OccurredAt  time.Time       `json:"occurredAt"`
}

// User owns symphonies and, optionally, broker credentials (spec.md §6
// "enumerate active symphonies whose owner has broker credentials").
// BrokerToken is an OAuth bearer refreshed out-of-band; TokenExpiresAt
// records its expiry. Nothing in this module reads TokenExpiresAt, so no
// refresh-before-use check is made.
type User struct {
	ID              string    `json:"id"`
	Email           string    `json:"email"`
	HasBrokerCreds  bool      `json:"hasBrokerCreds"`
	BrokerToken     string    `json:"brokerToken,omitempty"`
	TokenExpiresAt  time.Time `json:"tokenExpiresAt,omitempty"`
}
