package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/atlas-desktop/trading-backend/internal/broker"
	"github.com/atlas-desktop/trading-backend/internal/events"
	"github.com/atlas-desktop/trading-backend/internal/failure"
	"github.com/atlas-desktop/trading-backend/internal/marketdata"
	"github.com/atlas-desktop/trading-backend/internal/store"
	"github.com/atlas-desktop/trading-backend/pkg/types"
)

type fakeProvider struct{ price decimal.Decimal }

func (f fakeProvider) Name() string { return "fake" }

func (f fakeProvider) Quote(ctx context.Context, symbol string) (marketdata.Quote, error) {
	return marketdata.Quote{Symbol: symbol, Price: f.price, AsOf: time.Now()}, nil
}

func (f fakeProvider) Historical(ctx context.Context, symbol string, start, end time.Time, interval marketdata.Interval) ([]marketdata.Bar, error) {
	bars := make([]marketdata.Bar, 0, 30)
	for i := 0; i < 30; i++ {
		bars = append(bars, marketdata.Bar{
			Timestamp: start.AddDate(0, 0, i),
			Close:     f.price,
			Volume:    decimal.NewFromInt(1000),
		})
	}
	return bars, nil
}

const singleAssetSymphony = `{
  "id": "root-1", "step": "root", "rebalance": {"frequency": "daily"},
  "children": [
    {
      "id": "wt-1", "step": "wt-cash-equal",
      "children": [
        {"id": "a1", "step": "asset", "ticker": "AAA", "exchange": "NYSE", "name": "Asset A"}
      ]
    }
  ]
}`

func newTestScheduler(t *testing.T) (*Scheduler, *store.Store, *broker.PaperBroker) {
	t.Helper()
	logger := zap.NewNop()

	st, err := store.Open(logger, t.TempDir())
	require.NoError(t, err)

	facade := marketdata.New(
		marketdata.Config{ProviderPriorities: []string{"fake"}, MaxConcurrentFetch: 4},
		map[string]marketdata.Provider{"fake": fakeProvider{price: decimal.NewFromInt(100)}},
		map[string]int{"fake": 120},
		logger,
	)

	brk := broker.NewPaperBroker(decimal.NewFromInt(10000), constBrokerPrice{price: decimal.NewFromInt(100)}, logger)
	bus := events.NewEventBus(logger, events.DefaultEventBusConfig())
	handler := failure.NewHandler(brk, types.DefaultKillSwitchConfig(), logger).WithEventBus(bus)

	cfg := types.DefaultEngineConfig()
	brokers := func(ctx context.Context, u types.User) (broker.Broker, error) { return brk, nil }

	sched := New(logger, cfg, st, facade, handler, bus, brokers)
	return sched, st, brk
}

type constBrokerPrice struct{ price decimal.Decimal }

func (c constBrokerPrice) CurrentPrice(ctx context.Context, ticker string) (decimal.Decimal, error) {
	return c.price, nil
}

func TestRunWindowExecutesEligibleSymphony(t *testing.T) {
	sched, st, brk := newTestScheduler(t)

	require.NoError(t, st.Users.Put(types.User{ID: "user-1", HasBrokerCreds: true}))
	require.NoError(t, st.Symphonies.Put(types.Symphony{
		ID: "sym-1", OwnerID: "user-1", Active: true,
		TreeJSON: []byte(singleAssetSymphony),
		Policy:   types.RebalancePolicy{Frequency: types.FrequencyDaily},
	}))

	asOf := time.Date(2026, 7, 29, 15, 50, 0, 0, time.UTC)
	result, err := sched.RunWindow(context.Background(), asOf, asOf.Add(10*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Attempted)
	assert.Equal(t, 1, result.Succeeded)

	positions, err := brk.ListPositions(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, positions)

	sym, ok := st.Symphonies.Get("sym-1")
	require.True(t, ok)
	assert.Equal(t, 1, sym.ExecutionCount)
	assert.NotEmpty(t, sym.LastTargets)

	reconciled := st.Positions.ListBySymphony("sym-1")
	require.NotEmpty(t, reconciled)
	assert.True(t, reconciled[0].Quantity.IsPositive())

	perf, ok := st.Performance.Latest("sym-1")
	require.True(t, ok)
	assert.Equal(t, "sym-1", perf.SymphonyID)
}

func TestRunWindowSkipsUsersWithoutBrokerCreds(t *testing.T) {
	sched, st, _ := newTestScheduler(t)

	require.NoError(t, st.Symphonies.Put(types.Symphony{
		ID: "sym-1", OwnerID: "user-without-creds", Active: true,
		TreeJSON: []byte(singleAssetSymphony),
		Policy:   types.RebalancePolicy{Frequency: types.FrequencyDaily},
	}))

	asOf := time.Now()
	result, err := sched.RunWindow(context.Background(), asOf, asOf.Add(10*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 0, result.Attempted)
}

func TestRunWindowSkipsIneligibleFrequency(t *testing.T) {
	sched, st, _ := newTestScheduler(t)

	require.NoError(t, st.Users.Put(types.User{ID: "user-1", HasBrokerCreds: true}))
	require.NoError(t, st.Symphonies.Put(types.Symphony{
		ID: "sym-1", OwnerID: "user-1", Active: true,
		TreeJSON: []byte(singleAssetSymphony),
		Policy:   types.RebalancePolicy{Frequency: types.FrequencyMonthly},
	}))

	// A Wednesday that is not the 1st of the month: monthly policy is
	// ineligible.
	asOf := time.Date(2026, 7, 15, 15, 50, 0, 0, time.UTC)
	result, err := sched.RunWindow(context.Background(), asOf, asOf.Add(10*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, result.Attempted)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 0, result.Succeeded)
}
