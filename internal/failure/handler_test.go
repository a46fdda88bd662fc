package failure

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/atlas-desktop/trading-backend/internal/broker"
	"github.com/atlas-desktop/trading-backend/internal/engineerr"
	"github.com/atlas-desktop/trading-backend/pkg/types"
)

type fixedPrice struct{ price decimal.Decimal }

func (f fixedPrice) CurrentPrice(ctx context.Context, ticker string) (decimal.Decimal, error) {
	return f.price, nil
}

func newTestBroker(t *testing.T) broker.Broker {
	t.Helper()
	return broker.NewPaperBroker(decimal.NewFromInt(10000), fixedPrice{price: decimal.NewFromInt(100)}, zap.NewNop())
}

func TestClassifyUnknownErrorDefaultsToEvalError(t *testing.T) {
	assert.Equal(t, engineerr.KindEvalError, Classify(assertErr{}))
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }

func TestHandleDataUnavailableLiquidatesAndSuspends(t *testing.T) {
	brk := newTestBroker(t)
	require.NoError(t, submitBuy(brk, "AAA", 10))

	h := NewHandler(brk, types.DefaultKillSwitchConfig(), zap.NewNop())
	action := h.Handle(context.Background(), "sym-1", "user-1", engineerr.New(engineerr.KindDataUnavailable, "no quote"))

	assert.Equal(t, ActionSuspendUntilValid, action)
	positions, err := brk.ListPositions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, positions)
}

func TestHandleBrokerRejectedContinuesUntilThreshold(t *testing.T) {
	brk := newTestBroker(t)
	require.NoError(t, submitBuy(brk, "AAA", 10))

	kill := types.DefaultKillSwitchConfig()
	kill.MaxConsecutiveBrokerRejects = 2
	h := NewHandler(brk, kill, zap.NewNop())

	action := h.Handle(context.Background(), "sym-1", "user-1", engineerr.New(engineerr.KindBrokerRejected, "insufficient buying power"))
	assert.Equal(t, ActionContinue, action)

	action = h.Handle(context.Background(), "sym-1", "user-1", engineerr.New(engineerr.KindBrokerRejected, "insufficient buying power"))
	assert.Equal(t, ActionDeactivateForReview, action)

	positions, err := brk.ListPositions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, positions)
}

func TestHandleBrokerUnreachableToleratesFewCycles(t *testing.T) {
	brk := newTestBroker(t)
	kill := types.DefaultKillSwitchConfig()
	kill.BrokerUnreachablePollCycles = 3
	h := NewHandler(brk, kill, zap.NewNop())

	for i := 0; i < 2; i++ {
		action := h.Handle(context.Background(), "sym-1", "user-1", engineerr.New(engineerr.KindBrokerUnreachable, "dial timeout"))
		assert.Equal(t, ActionContinue, action)
	}

	action := h.Handle(context.Background(), "sym-1", "user-1", engineerr.New(engineerr.KindBrokerUnreachable, "dial timeout"))
	assert.Equal(t, ActionSkipWindow, action)
}

func TestLiquidateUserSkipsInactiveSymphonies(t *testing.T) {
	brk := newTestBroker(t)
	h := NewHandler(brk, types.DefaultKillSwitchConfig(), zap.NewNop())

	symphonies := []*types.Symphony{
		{ID: "sym-1", OwnerID: "user-1", Active: true},
		{ID: "sym-2", OwnerID: "user-1", Active: false},
	}
	events := h.LiquidateUser(context.Background(), symphonies, "user-level critical error")
	require.Len(t, events, 1)
	assert.Equal(t, "sym-1", events[0].SymphonyID)
}

func TestResetWindowClearsCounters(t *testing.T) {
	brk := newTestBroker(t)
	kill := types.DefaultKillSwitchConfig()
	kill.MaxConsecutiveBrokerRejects = 1
	h := NewHandler(brk, kill, zap.NewNop())

	h.brokerRejects["sym-1"] = 1
	h.ResetWindow()
	assert.Equal(t, 0, h.brokerRejects["sym-1"])
}

func submitBuy(brk broker.Broker, ticker string, qty int64) error {
	_, err := brk.SubmitOrder(context.Background(), broker.OrderRequest{
		ClientOrderID: "seed-" + ticker,
		Ticker:        ticker,
		Quantity:      decimal.NewFromInt(qty),
		Side:          types.OrderSideBuy,
		Type:          types.OrderTypeMarket,
		TimeInForce:   types.TimeInForceDay,
	})
	return err
}
