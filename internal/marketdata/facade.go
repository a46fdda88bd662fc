package marketdata

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/atlas-desktop/trading-backend/internal/engineerr"
	"github.com/atlas-desktop/trading-backend/internal/metrics"
	"github.com/atlas-desktop/trading-backend/pkg/types"
)

// Config configures cache TTLs and provider priority order (spec.md §6).
type Config struct {
	ProviderPriorities []string
	CacheTTLs          types.CacheTTLConfig
	MaxConcurrentFetch int
}

// Facade is the single gateway for price data (C2, spec.md §4.2). It
// owns provider clients, the content-addressed cache, and a
// per-provider rate budget; callers never talk to a Provider directly.
type Facade struct {
	cfg       Config
	providers map[string]Provider
	order     []string
	budgets   map[string]*ProviderBudget
	cache     *Cache
	logger    *zap.Logger
}

// New builds a Facade. providers maps provider name -> client; budgets
// maps provider name -> calls-per-minute ceiling.
func New(cfg Config, providers map[string]Provider, budgets map[string]int, logger *zap.Logger) *Facade {
	f := &Facade{
		cfg:       cfg,
		providers: providers,
		order:     cfg.ProviderPriorities,
		budgets:   make(map[string]*ProviderBudget, len(budgets)),
		cache:     NewCache(),
		logger:    logger,
	}
	for name, limit := range budgets {
		f.budgets[name] = NewProviderBudget(limit)
	}
	return f
}

// Quote returns the latest price, trying the cache then providers in
// priority order; first success wins and is written through to cache
// (spec.md §4.2).
func (f *Facade) Quote(ctx context.Context, symbol string) (Quote, error) {
	key := "quote:" + symbol
	var cached Quote
	if f.cache.Get(key, &cached) {
		metrics.CacheHits.WithLabelValues("quote", "hit").Inc()
		return cached, nil
	}
	metrics.CacheHits.WithLabelValues("quote", "miss").Inc()

	var lastErr error
	for _, name := range f.order {
		p, ok := f.providers[name]
		if !ok {
			continue
		}
		if b, ok := f.budgets[name]; ok {
			if err := b.Wait(ctx); err != nil {
				lastErr = err
				continue
			}
		}
		q, err := p.Quote(ctx, symbol)
		if err != nil {
			metrics.ProviderCalls.WithLabelValues(name, "error").Inc()
			lastErr = err
			continue
		}
		metrics.ProviderCalls.WithLabelValues(name, "ok").Inc()
		f.cache.Set(key, q, f.cfg.CacheTTLs.Quote)
		return q, nil
	}
	return Quote{}, engineerr.Wrap(engineerr.KindDataUnavailable,
		fmt.Sprintf("no provider could quote %s", symbol), lastErr)
}

// Historical returns a date-ordered bar list in [start, end], using a
// cache-wide key (the full provider response) then filtering locally
// so adjacent requests with different windows still share a cache hit
// (spec.md §4.2).
func (f *Facade) Historical(ctx context.Context, symbol string, start, end time.Time, interval Interval) ([]Bar, error) {
	ttl := f.cfg.CacheTTLs.Daily
	if interval == IntervalIntraday {
		ttl = f.cfg.CacheTTLs.Intraday
	}
	key := fmt.Sprintf("historical:%s:%s", symbol, interval)

	var cached []Bar
	if f.cache.Get(key, &cached) {
		metrics.CacheHits.WithLabelValues("historical", "hit").Inc()
		return filterBars(cached, start, end), nil
	}
	metrics.CacheHits.WithLabelValues("historical", "miss").Inc()

	var lastErr error
	for _, name := range f.order {
		p, ok := f.providers[name]
		if !ok {
			continue
		}
		if b, ok := f.budgets[name]; ok {
			if err := b.Wait(ctx); err != nil {
				lastErr = err
				continue
			}
		}
		bars, err := p.Historical(ctx, symbol, start, end, interval)
		if err != nil {
			metrics.ProviderCalls.WithLabelValues(name, "error").Inc()
			lastErr = err
			continue
		}
		metrics.ProviderCalls.WithLabelValues(name, "ok").Inc()
		sort.Slice(bars, func(i, j int) bool { return bars[i].Timestamp.Before(bars[j].Timestamp) })
		f.cache.Set(key, bars, ttl)
		return filterBars(bars, start, end), nil
	}
	return nil, engineerr.Wrap(engineerr.KindDataUnavailable,
		fmt.Sprintf("no provider had history for %s", symbol), lastErr)
}

func filterBars(bars []Bar, start, end time.Time) []Bar {
	out := make([]Bar, 0, len(bars))
	for _, b := range bars {
		if b.Timestamp.Before(start) || b.Timestamp.After(end) {
			continue
		}
		out = append(out, b)
	}
	return out
}

// BatchResult is one symbol's outcome within a BatchQuotes call.
type BatchResult struct {
	Symbol string
	Quote  Quote
	Err    error
}

// BatchQuotes fans out Quote calls with an at-most-N-in-flight
// governor; a failure for one symbol never blocks the others (spec.md
// §4.2 "partial results are allowed").
func (f *Facade) BatchQuotes(ctx context.Context, symbols []string) []BatchResult {
	maxInFlight := f.cfg.MaxConcurrentFetch
	if maxInFlight <= 0 {
		maxInFlight = 8
	}

	sem := make(chan struct{}, maxInFlight)
	results := make([]BatchResult, len(symbols))
	done := make(chan int, len(symbols))

	for i, sym := range symbols {
		sem <- struct{}{}
		go func(i int, sym string) {
			defer func() { <-sem; done <- i }()
			q, err := f.Quote(ctx, sym)
			results[i] = BatchResult{Symbol: sym, Quote: q, Err: err}
		}(i, sym)
	}
	for range symbols {
		<-done
	}
	return results
}

// Indicators fetches daily Historical bars covering window trading days
// before asOf and packs them into an AssetSnapshot (spec.md §4.2). It
// computes no indicator itself; the evaluator memoises indicator values
// on the returned snapshot.
func (f *Facade) Indicators(ctx context.Context, symbol string, window int, asOf time.Time) (*types.AssetSnapshot, error) {
	lookback := time.Duration(window*7/5+30) * 24 * time.Hour // trading days -> calendar days, padded past holidays
	bars, err := f.Historical(ctx, symbol, asOf.Add(-lookback), asOf, IntervalDaily)
	if err != nil {
		return nil, err
	}
	if len(bars) == 0 {
		return nil, engineerr.New(engineerr.KindDataUnavailable, fmt.Sprintf("no historical bars for %s", symbol))
	}

	// bars are date-ordered ascending; snapshots want newest-first.
	closes := make([]decimal.Decimal, len(bars))
	for i, b := range bars {
		closes[len(bars)-1-i] = b.Close
	}

	snap := &types.AssetSnapshot{
		Ticker:           symbol,
		AsOf:             asOf,
		CurrentPrice:     bars[len(bars)-1].Close,
		HistoricalCloses: closes,
		Volume:           bars[len(bars)-1].Volume,
	}
	return snap, nil
}

// Warmup pre-populates the cache for the given symbols ahead of the
// evaluation window (spec.md §4.2 "used at T-5 minutes").
func (f *Facade) Warmup(ctx context.Context, symbols []string, asOf time.Time) {
	for _, sym := range symbols {
		if _, err := f.Quote(ctx, sym); err != nil {
			f.logger.Warn("warmup quote failed", zap.String("symbol", sym), zap.Error(err))
		}
		if _, err := f.Historical(ctx, sym, asOf.AddDate(-1, 0, 0), asOf, IntervalDaily); err != nil {
			f.logger.Warn("warmup historical failed", zap.String("symbol", sym), zap.Error(err))
		}
	}
}

// RateBudgetSnapshot reports calls-this-window per provider for the
// observability surface spec.md §4.2 names.
func (f *Facade) RateBudgetSnapshot() map[string]int64 {
	out := make(map[string]int64, len(f.budgets))
	for name, b := range f.budgets {
		out[name] = b.CallsThisWindow()
	}
	return out
}
