// Package marketdata implements the Market-Data Facade (C2, spec.md
// §4.2): a single gateway over two priced-differently upstream
// providers, a content-addressed cache, and per-provider rate limits.
package marketdata

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Bar is one OHLCV observation.
type Bar struct {
	Timestamp time.Time
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    decimal.Decimal
}

// Quote is the latest-price view of a symbol.
type Quote struct {
	Symbol       string
	Price        decimal.Decimal
	Volume       decimal.Decimal
	DailyChange  decimal.Decimal
	Source       string
	AsOf         time.Time
}

// Interval is a bar granularity token.
type Interval string

const (
	IntervalDaily    Interval = "1d"
	IntervalIntraday Interval = "1m"
)

// Provider is one upstream market-data source. SourceA and SourceB
// implementations differ in coverage (spec.md §4.2) but share this
// contract; the facade treats them interchangeably aside from its
// configured priority order.
type Provider interface {
	Name() string
	Quote(ctx context.Context, symbol string) (Quote, error)
	Historical(ctx context.Context, symbol string, start, end time.Time, interval Interval) ([]Bar, error)
}
