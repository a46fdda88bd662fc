package store_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/atlas-desktop/trading-backend/internal/store"
	"github.com/atlas-desktop/trading-backend/pkg/types"
)

func TestStoreOpenCreatesEmptyCollections(t *testing.T) {
	s, err := store.Open(zap.NewNop(), t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, s.Symphonies.ListActive())
}

func TestSymphonyRepoRoundTripAndActiveFilter(t *testing.T) {
	s, err := store.Open(zap.NewNop(), t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Symphonies.Put(types.Symphony{ID: "b", OwnerID: "u1", Active: true}))
	require.NoError(t, s.Symphonies.Put(types.Symphony{ID: "a", OwnerID: "u1", Active: true}))
	require.NoError(t, s.Symphonies.Put(types.Symphony{ID: "c", OwnerID: "u1", Active: false}))

	active := s.Symphonies.ListActive()
	require.Len(t, active, 2)
	assert.Equal(t, "a", active[0].ID)
	assert.Equal(t, "b", active[1].ID)
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	s1, err := store.Open(zap.NewNop(), dir)
	require.NoError(t, err)
	require.NoError(t, s1.Users.Put(types.User{ID: "u1", HasBrokerCreds: true}))

	s2, err := store.Open(zap.NewNop(), dir)
	require.NoError(t, err)
	u, ok := s2.Users.Get("u1")
	require.True(t, ok)
	assert.True(t, u.HasBrokerCreds)
}

func TestPositionRepoArchivesZeroQuantity(t *testing.T) {
	s, err := store.Open(zap.NewNop(), t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Positions.Upsert(types.Position{
		SymphonyID: "sym-1", Ticker: "AAA", Quantity: decimal.NewFromInt(10), UpdatedAt: time.Now(),
	}))
	require.Len(t, s.Positions.ListBySymphony("sym-1"), 1)

	require.NoError(t, s.Positions.Upsert(types.Position{
		SymphonyID: "sym-1", Ticker: "AAA", Quantity: decimal.Zero, UpdatedAt: time.Now(),
	}))
	assert.Empty(t, s.Positions.ListBySymphony("sym-1"))
}

func TestTradeRepoAppendOnly(t *testing.T) {
	s, err := store.Open(zap.NewNop(), t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Trades.Append(types.Trade{ID: "t1", SymphonyID: "sym-1", Ticker: "AAA"}))
	require.NoError(t, s.Trades.Append(types.Trade{ID: "t2", SymphonyID: "sym-1", Ticker: "BBB"}))

	trades := s.Trades.ListBySymphony("sym-1")
	require.Len(t, trades, 2)
	assert.Equal(t, "t1", trades[0].ID)
}

func TestPerformanceRepoLatest(t *testing.T) {
	s, err := store.Open(zap.NewNop(), t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Performance.Append(types.PerformanceMetrics{SymphonyID: "sym-1", AsOf: time.Now().Add(-time.Hour)}))
	require.NoError(t, s.Performance.Append(types.PerformanceMetrics{SymphonyID: "sym-1", AsOf: time.Now()}))

	latest, ok := s.Performance.Latest("sym-1")
	require.True(t, ok)
	assert.WithinDuration(t, time.Now(), latest.AsOf, 2*time.Second)
}
