package marketdata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/atlas-desktop/trading-backend/internal/engineerr"
)

// HTTPProvider is a generic REST-backed Provider implementation shared
// by SourceA and SourceB; only the base URL and name differ between
// the two upstream configurations (spec.md §4.2).
type HTTPProvider struct {
	name    string
	baseURL string
	client  *retryablehttp.Client
	logger  *zap.Logger
}

// NewHTTPProvider builds a retrying REST client for one upstream
// provider. retryMax follows the teacher's adapter pattern of a small
// bounded retry budget rather than unlimited backoff.
func NewHTTPProvider(name, baseURL string, logger *zap.Logger) *HTTPProvider {
	client := retryablehttp.NewClient()
	client.RetryMax = 3
	client.Logger = nil // zap is the engine's logger; silence retryablehttp's own stdlib logger
	return &HTTPProvider{name: name, baseURL: baseURL, client: client, logger: logger}
}

func (p *HTTPProvider) Name() string { return p.name }

type quoteResponse struct {
	Symbol      string  `json:"symbol"`
	Price       float64 `json:"price"`
	Volume      float64 `json:"volume"`
	DailyChange float64 `json:"dailyChange"`
}

func (p *HTTPProvider) Quote(ctx context.Context, symbol string) (Quote, error) {
	u := fmt.Sprintf("%s/v1/quote?symbol=%s", p.baseURL, url.QueryEscape(symbol))
	var resp quoteResponse
	if err := p.getJSON(ctx, u, &resp); err != nil {
		return Quote{}, err
	}
	return Quote{
		Symbol:      symbol,
		Price:       decimal.NewFromFloat(resp.Price),
		Volume:      decimal.NewFromFloat(resp.Volume),
		DailyChange: decimal.NewFromFloat(resp.DailyChange),
		Source:      p.name,
		AsOf:        time.Now(),
	}, nil
}

type barResponse struct {
	Timestamp string  `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
	Volume    float64 `json:"volume"`
}

func (p *HTTPProvider) Historical(ctx context.Context, symbol string, start, end time.Time, interval Interval) ([]Bar, error) {
	u := fmt.Sprintf("%s/v1/historical?symbol=%s&start=%s&end=%s&interval=%s",
		p.baseURL, url.QueryEscape(symbol),
		start.Format(time.RFC3339), end.Format(time.RFC3339), interval)

	var rows []barResponse
	if err := p.getJSON(ctx, u, &rows); err != nil {
		return nil, err
	}

	bars := make([]Bar, 0, len(rows))
	for _, r := range rows {
		ts, err := time.Parse(time.RFC3339, r.Timestamp)
		if err != nil {
			continue
		}
		bars = append(bars, Bar{
			Timestamp: ts,
			Open:      decimal.NewFromFloat(r.Open),
			High:      decimal.NewFromFloat(r.High),
			Low:       decimal.NewFromFloat(r.Low),
			Close:     decimal.NewFromFloat(r.Close),
			Volume:    decimal.NewFromFloat(r.Volume),
		})
	}
	return bars, nil
}

func (p *HTTPProvider) getJSON(ctx context.Context, rawURL string, out interface{}) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return engineerr.Wrap(engineerr.KindDataUnavailable, "building provider request", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return engineerr.Wrap(engineerr.KindDataUnavailable, fmt.Sprintf("%s unreachable", p.name), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return engineerr.New(engineerr.KindDataUnavailable,
			fmt.Sprintf("%s returned status %d: %s", p.name, resp.StatusCode, string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return engineerr.Wrap(engineerr.KindDataUnavailable, fmt.Sprintf("%s returned malformed JSON", p.name), err)
	}
	return nil
}
