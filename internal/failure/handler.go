// Package failure implements the Failure Handler (C8, spec.md §4.8): a
// closed-taxonomy error classifier and policy table, adapted from the
// kill-switch pattern in internal/execution's risk manager but scoped
// to per-symphony and per-user liquidation instead of trade-level risk
// limits.
package failure

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/atlas-desktop/trading-backend/internal/broker"
	"github.com/atlas-desktop/trading-backend/internal/engineerr"
	"github.com/atlas-desktop/trading-backend/internal/events"
	"github.com/atlas-desktop/trading-backend/internal/metrics"
	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// Action is the Symphony-level disposition the policy table prescribes.
type Action string

const (
	ActionContinue            Action = "continue"
	ActionSuspendUntilValid   Action = "suspend-until-validated"
	ActionDeactivateForReview Action = "deactivate-for-review"
	ActionSkipWindow          Action = "skip-window"
)

// Policy is one row of spec.md §4.8's table.
type Policy struct {
	Liquidate bool
	Retry     bool
	Action    Action
}

// policyTable maps each closed error kind to its disposition.
var policyTable = map[engineerr.Kind]Policy{
	engineerr.KindDataUnavailable:    {Liquidate: true, Retry: true, Action: ActionSuspendUntilValid},
	engineerr.KindEvalError:          {Liquidate: true, Retry: false, Action: ActionDeactivateForReview},
	engineerr.KindPlanOverBudget:     {Liquidate: false, Retry: true, Action: ActionContinue},
	engineerr.KindBrokerRejected:     {Liquidate: false, Retry: false, Action: ActionContinue},
	engineerr.KindBrokerUnreachable:  {Liquidate: true, Retry: true, Action: ActionSkipWindow},
	engineerr.KindTimeout:            {Liquidate: false, Retry: false, Action: ActionContinue},
}

// Handler applies the policy table and, when a policy calls for it,
// liquidates a symphony's or a user's positions via the broker port.
type Handler struct {
	brk    broker.Broker
	bus    *events.EventBus
	logger *zap.Logger
	kill   types.KillSwitchConfig

	// per-symphony counters, reset at the start of each window
	brokerRejects    map[string]int
	unreachablePolls map[string]int
}

// NewHandler builds a Handler bound to one broker connection and the
// engine's kill-switch thresholds (spec.md §4.8's table, tunable via
// types.KillSwitchConfig).
func NewHandler(brk broker.Broker, kill types.KillSwitchConfig, logger *zap.Logger) *Handler {
	return &Handler{
		brk:              brk,
		logger:           logger,
		kill:             kill,
		brokerRejects:    make(map[string]int),
		unreachablePolls: make(map[string]int),
	}
}

// WithEventBus attaches a bus that liquidations are published to.
func (h *Handler) WithEventBus(bus *events.EventBus) *Handler {
	h.bus = bus
	return h
}

// ResetWindow clears per-window counters; call at the start of every
// scheduler window.
func (h *Handler) ResetWindow() {
	h.brokerRejects = make(map[string]int)
	h.unreachablePolls = make(map[string]int)
}

// Classify extracts the error kind; unrecognized errors are treated as
// EvalError (conservative: deactivate and flag for review) rather than
// silently continuing.
func Classify(err error) engineerr.Kind {
	if kind, ok := engineerr.KindOf(err); ok {
		return kind
	}
	return engineerr.KindEvalError
}

// Handle classifies err for symphonyID/userID and applies the policy
// table, performing liquidation through the broker when the policy (or
// an escalated counter) calls for it. It returns the action the
// scheduler should take for this symphony.
func (h *Handler) Handle(ctx context.Context, symphonyID, userID string, err error) Action {
	kind := Classify(err)
	policy, ok := policyTable[kind]
	if !ok {
		policy = policyTable[engineerr.KindEvalError]
	}

	switch kind {
	case engineerr.KindBrokerRejected:
		h.brokerRejects[symphonyID]++
		if h.brokerRejects[symphonyID] >= h.kill.MaxConsecutiveBrokerRejects {
			h.logger.Warn("escalating repeated broker rejects to liquidation",
				zap.String("symphony", symphonyID), zap.Int("count", h.brokerRejects[symphonyID]))
			h.liquidateSymphony(ctx, symphonyID, userID, "repeated broker rejects")
			return ActionDeactivateForReview
		}
		return policy.Action

	case engineerr.KindBrokerUnreachable:
		h.unreachablePolls[symphonyID]++
		if h.unreachablePolls[symphonyID] < h.kill.BrokerUnreachablePollCycles {
			return ActionContinue
		}
	}

	if policy.Liquidate {
		h.liquidateSymphony(ctx, symphonyID, userID, string(kind))
	}
	return policy.Action
}

// liquidateSymphony cancels in-flight orders and submits market sells
// for every non-zero position, then records a LiquidationEvent (spec.md
// §4.8).
func (h *Handler) liquidateSymphony(ctx context.Context, symphonyID, userID, reason string) *types.LiquidationEvent {
	if err := h.brk.CancelAllOrders(ctx); err != nil {
		h.logger.Error("liquidation: cancel all orders failed", zap.Error(err))
	}

	orders, err := h.brk.CloseAllPositions(ctx)
	if err != nil {
		h.logger.Error("liquidation: close all positions failed", zap.Error(err))
	}

	total := decimal.Zero
	for _, o := range orders {
		total = total.Add(o.FilledQty.Mul(o.AvgFillPrice))
	}

	metrics.Liquidations.WithLabelValues(reason).Inc()

	event := &types.LiquidationEvent{
		SymphonyID:  symphonyID,
		UserID:      userID,
		Reason:      reason,
		TotalClosed: total,
		OccurredAt:  time.Now(),
	}
	h.logger.Warn("symphony liquidated",
		zap.String("symphony", symphonyID), zap.String("reason", reason), zap.String("totalClosed", total.String()))

	if h.bus != nil {
		h.bus.Publish(events.NewLiquidationEvent(symphonyID, userID, reason, total))
	}
	return event
}

// LiquidateUser liquidates every active symphony for a user in
// response to a user-level critical error (spec.md §4.8 "A user-level
// critical error liquidates every active symphony for that user").
func (h *Handler) LiquidateUser(ctx context.Context, symphonies []*types.Symphony, reason string) []*types.LiquidationEvent {
	events := make([]*types.LiquidationEvent, 0, len(symphonies))
	for _, s := range symphonies {
		if !s.Active {
			continue
		}
		events = append(events, h.liquidateSymphony(ctx, s.ID, s.OwnerID, reason))
	}
	return events
}
