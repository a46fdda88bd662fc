// Package indicators implements the pure numeric functions over price
// series described in spec.md §4.1 (Indicator Kernel, C1): SMA, EMA,
// RSI, stdev, volatility, max drawdown, cumulative return, Sharpe.
//
// Every function takes a newest-first price or return series and a
// window, and returns an explicit "no value" signal (ok == false) when
// the series is too short, instead of a silent zero — see
// SPEC_FULL.md §D.6 and the boundary-behaviour properties in spec.md §8.
// No function in this package panics.
package indicators

import (
	"math"

	"github.com/shopspring/decimal"
)

// tradingDaysPerYear is used to annualize daily statistics.
const tradingDaysPerYear = 252

// SMA computes the simple moving average of the first w closes (the
// most recent w points of a newest-first series).
func SMA(closes []float64, w int) (float64, bool) {
	if len(closes) < w || w <= 0 {
		return 0, false
	}
	sum := 0.0
	for _, c := range closes[:w] {
		sum += c
	}
	return sum / float64(w), true
}

// EMA seeds with the SMA of the oldest w closes within the window, then
// recurses newer-to-older with multiplier 2/(w+1), per spec.md §4.1
// (see SPEC_FULL.md §D.1 for the documented deviation from the Python
// original, which seeds with a single price instead).
func EMA(closes []float64, w int) (float64, bool) {
	if len(closes) < w || w <= 0 {
		return 0, false
	}
	multiplier := 2.0 / float64(w+1)
	seed, ok := SMA(closes, w)
	if !ok {
		return 0, false
	}
	ema := seed
	for i := w - 2; i >= 0; i-- {
		ema = (closes[i]-ema)*multiplier + ema
	}
	return ema, true
}

// RSI computes the simple (non-smoothed) relative strength index over
// the newest w+1 points. Returns 100 when avg-loss is zero.
func RSI(closes []float64, w int) (float64, bool) {
	if w <= 0 || len(closes) < w+1 {
		return 0, false
	}

	var gainSum, lossSum float64
	for i := 0; i < w; i++ {
		change := closes[i] - closes[i+1]
		if change > 0 {
			gainSum += change
		} else {
			lossSum += -change
		}
	}

	avgGain := gainSum / float64(w)
	avgLoss := lossSum / float64(w)

	if avgLoss == 0 {
		return 100, true
	}

	rs := avgGain / avgLoss
	return 100 - 100/(1+rs), true
}

// Stdev computes the population standard deviation (divide by w, not
// w-1) of the first w values — spec.md §4.1 and SPEC_FULL.md §D.2.
func Stdev(values []float64, w int) (float64, bool) {
	if len(values) < w || w <= 0 {
		return 0, false
	}
	subset := values[:w]
	mean := 0.0
	for _, v := range subset {
		mean += v
	}
	mean /= float64(w)

	variance := 0.0
	for _, v := range subset {
		d := v - mean
		variance += d * d
	}
	variance /= float64(w)

	return math.Sqrt(variance), true
}

// Volatility annualizes the population stdev of returns by sqrt(252).
func Volatility(returns []float64, w int) (float64, bool) {
	sd, ok := Stdev(returns, w)
	if !ok {
		return 0, false
	}
	return sd * math.Sqrt(float64(tradingDaysPerYear)), true
}

// MaxDrawdown scans the trailing w closes chronologically, tracking a
// running peak, and reports the largest (peak-value)/peak as a
// positive fraction.
func MaxDrawdown(closes []float64, w int) (float64, bool) {
	if len(closes) < w || w <= 0 {
		return 0, false
	}
	// Reverse the newest-first window into chronological order.
	window := make([]float64, w)
	for i := 0; i < w; i++ {
		window[i] = closes[w-1-i]
	}

	peak := window[0]
	maxDD := 0.0
	for _, price := range window[1:] {
		if price > peak {
			peak = price
		} else if peak != 0 {
			dd := (peak - price) / peak
			if dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD, true
}

// CumulativeReturn computes (newest-oldest)/oldest over the trailing
// w+1 points, as a fraction (not percentage — see SPEC_FULL.md §D.4).
func CumulativeReturn(closes []float64, w int) (float64, bool) {
	if w <= 0 || len(closes) < w+1 {
		return 0, false
	}
	start := closes[w]
	end := closes[0]
	if start == 0 {
		return 0, false
	}
	return (end - start) / start, true
}

// Sharpe computes the daily excess-mean divided by population stdev,
// annualized, with the default 2%/yr risk-free rate assumed by callers
// that don't override it.
func Sharpe(returns []float64, w int, riskFreeRateAnnual float64) (float64, bool) {
	if len(returns) < w || w <= 0 {
		return 0, false
	}
	window := returns[:w]
	mean := 0.0
	for _, r := range window {
		mean += r
	}
	mean /= float64(w)

	sd, ok := Stdev(window, w)
	if !ok || sd == 0 {
		return 0, false
	}

	dailyRF := riskFreeRateAnnual / float64(tradingDaysPerYear)
	excess := mean - dailyRF
	return (excess * tradingDaysPerYear) / (sd * math.Sqrt(float64(tradingDaysPerYear))), true
}

// Beta computes the covariance of asset returns with market returns
// over market variance.
func Beta(assetReturns, marketReturns []float64, w int) (float64, bool) {
	if len(assetReturns) < w || len(marketReturns) < w || w <= 0 {
		return 0, false
	}
	a := assetReturns[:w]
	m := marketReturns[:w]

	meanA, meanM := 0.0, 0.0
	for i := 0; i < w; i++ {
		meanA += a[i]
		meanM += m[i]
	}
	meanA /= float64(w)
	meanM /= float64(w)

	var cov, varM float64
	for i := 0; i < w; i++ {
		da := a[i] - meanA
		dm := m[i] - meanM
		cov += da * dm
		varM += dm * dm
	}
	cov /= float64(w)
	varM /= float64(w)

	if varM == 0 {
		return 0, false
	}
	return cov / varM, true
}

// Alpha computes Jensen's alpha: asset mean return minus beta times
// market mean return, over the window, annualized by trading days.
func Alpha(assetReturns, marketReturns []float64, w int) (float64, bool) {
	beta, ok := Beta(assetReturns, marketReturns, w)
	if !ok {
		return 0, false
	}
	meanA, okA := meanOf(assetReturns, w)
	meanM, okM := meanOf(marketReturns, w)
	if !okA || !okM {
		return 0, false
	}
	return (meanA - beta*meanM) * tradingDaysPerYear, true
}

// Correlation computes the Pearson correlation coefficient between two
// return series over the window.
func Correlation(a, b []float64, w int) (float64, bool) {
	if len(a) < w || len(b) < w || w <= 0 {
		return 0, false
	}
	as, bs := a[:w], b[:w]
	meanA, meanB := 0.0, 0.0
	for i := 0; i < w; i++ {
		meanA += as[i]
		meanB += bs[i]
	}
	meanA /= float64(w)
	meanB /= float64(w)

	var cov, varA, varB float64
	for i := 0; i < w; i++ {
		da := as[i] - meanA
		db := bs[i] - meanB
		cov += da * db
		varA += da * da
		varB += db * db
	}
	if varA == 0 || varB == 0 {
		return 0, false
	}
	return cov / math.Sqrt(varA*varB), true
}

// MovingAverageReturn is the mean of the first w returns.
func MovingAverageReturn(returns []float64, w int) (float64, bool) {
	return meanOf(returns, w)
}

func meanOf(values []float64, w int) (float64, bool) {
	if len(values) < w || w <= 0 {
		return 0, false
	}
	sum := 0.0
	for _, v := range values[:w] {
		sum += v
	}
	return sum / float64(w), true
}

// CalculateReturns converts a newest-first close series into a
// newest-first return series of length len(closes)-1.
func CalculateReturns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(closes)-1)
	for i := 0; i < len(closes)-1; i++ {
		if closes[i+1] == 0 {
			continue
		}
		returns = append(returns, (closes[i]-closes[i+1])/closes[i+1])
	}
	return returns
}

// ToDecimal rounds a float64 indicator result to a decimal at the
// evaluator boundary, per spec.md §9 ("Conversions happen once at the
// boundary between evaluator and planner").
func ToDecimal(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v)
}
