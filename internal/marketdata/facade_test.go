package marketdata

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/atlas-desktop/trading-backend/internal/engineerr"
	"github.com/atlas-desktop/trading-backend/pkg/types"
)

type fakeProvider struct {
	name    string
	quote   Quote
	bars    []Bar
	err     error
	callCnt int
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Quote(ctx context.Context, symbol string) (Quote, error) {
	f.callCnt++
	if f.err != nil {
		return Quote{}, f.err
	}
	return f.quote, nil
}

func (f *fakeProvider) Historical(ctx context.Context, symbol string, start, end time.Time, interval Interval) ([]Bar, error) {
	f.callCnt++
	if f.err != nil {
		return nil, f.err
	}
	return f.bars, nil
}

func newTestFacade(providers map[string]Provider, order []string) *Facade {
	cfg := Config{
		ProviderPriorities: order,
		CacheTTLs:          types.CacheTTLConfig{Quote: time.Minute, Daily: time.Hour},
	}
	budgets := map[string]int{}
	for name := range providers {
		budgets[name] = 600
	}
	return New(cfg, providers, budgets, zap.NewNop())
}

func TestQuoteFallsThroughOnProviderFailure(t *testing.T) {
	a := &fakeProvider{name: "sourceA", err: assertErr("sourceA down")}
	b := &fakeProvider{name: "sourceB", quote: Quote{Symbol: "AAA", Price: decimal.NewFromInt(100)}}
	f := newTestFacade(map[string]Provider{"sourceA": a, "sourceB": b}, []string{"sourceA", "sourceB"})

	q, err := f.Quote(context.Background(), "AAA")
	require.NoError(t, err)
	assert.True(t, q.Price.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, 1, a.callCnt)
	assert.Equal(t, 1, b.callCnt)
}

func TestQuoteCachesAcrossCalls(t *testing.T) {
	a := &fakeProvider{name: "sourceA", quote: Quote{Symbol: "AAA", Price: decimal.NewFromInt(50)}}
	f := newTestFacade(map[string]Provider{"sourceA": a}, []string{"sourceA"})

	_, err := f.Quote(context.Background(), "AAA")
	require.NoError(t, err)
	_, err = f.Quote(context.Background(), "AAA")
	require.NoError(t, err)

	assert.Equal(t, 1, a.callCnt)
}

func TestQuoteAllProvidersFailReturnsDataUnavailable(t *testing.T) {
	a := &fakeProvider{name: "sourceA", err: assertErr("down")}
	f := newTestFacade(map[string]Provider{"sourceA": a}, []string{"sourceA"})

	_, err := f.Quote(context.Background(), "AAA")
	require.Error(t, err)
	kind, ok := engineerr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, engineerr.KindDataUnavailable, kind)
}

func TestBatchQuotesReturnsOneResultPerSymbol(t *testing.T) {
	a := &fakeProvider{name: "sourceA", quote: Quote{Symbol: "AAA", Price: decimal.NewFromInt(10)}}
	f := newTestFacade(map[string]Provider{"sourceA": a}, []string{"sourceA"})

	results := f.BatchQuotes(context.Background(), []string{"AAA", "BBB"})
	require.Len(t, results, 2)
	for _, r := range results {
		assert.NoError(t, r.Err)
	}
}

type assertErrT string

func (e assertErrT) Error() string { return string(e) }

func assertErr(msg string) error { return assertErrT(msg) }
