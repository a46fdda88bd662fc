package indicators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSMAInsufficientDataSignalsNoValue(t *testing.T) {
	_, ok := SMA([]float64{1, 2}, 5)
	assert.False(t, ok, "SMA with len < window must signal no-value, not 0")
}

func TestSMABasic(t *testing.T) {
	v, ok := SMA([]float64{30, 20, 10}, 3)
	require.True(t, ok)
	assert.InDelta(t, 20.0, v, 1e-9)
}

func TestEMASeedsWithSMAOfOldestWindow(t *testing.T) {
	closes := []float64{12, 11, 10} // newest first
	v, ok := EMA(closes, 3)
	require.True(t, ok)
	// seed = SMA(12,11,10) = 11; multiplier = 2/4 = 0.5
	// i=1: ema = (11-11)*0.5+11 = 11
	// i=0: ema = (12-11)*0.5+11 = 11.5
	assert.InDelta(t, 11.5, v, 1e-9)
}

func TestRSIAllUpIsOneHundred(t *testing.T) {
	closes := []float64{15, 14, 13, 12, 11, 10, 9, 8, 7, 6, 5, 4, 3, 2, 1}
	v, ok := RSI(closes, 14)
	require.True(t, ok)
	assert.Equal(t, 100.0, v)
}

func TestRSIAllDownIsNearZero(t *testing.T) {
	closes := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}
	v, ok := RSI(closes, 14)
	require.True(t, ok)
	assert.InDelta(t, 0.0, v, 1e-9)
}

func TestStdevIsPopulationNotSample(t *testing.T) {
	// values: 2,4,4,4,5,5,7,9 -> population stdev = 2.0
	values := []float64{9, 7, 5, 5, 4, 4, 4, 2}
	v, ok := Stdev(values, 8)
	require.True(t, ok)
	assert.InDelta(t, 2.0, v, 1e-9)
}

func TestMaxDrawdownMonotonicIncreaseIsZero(t *testing.T) {
	// newest first, chronologically increasing: 1,2,3,4,5
	closes := []float64{5, 4, 3, 2, 1}
	v, ok := MaxDrawdown(closes, 5)
	require.True(t, ok)
	assert.Equal(t, 0.0, v)
}

func TestCumulativeReturnFraction(t *testing.T) {
	// newest=110, oldest(at w=1)=100 -> 0.10
	closes := []float64{110, 100}
	v, ok := CumulativeReturn(closes, 1)
	require.True(t, ok)
	assert.InDelta(t, 0.10, v, 1e-9)
}

func TestSharpeUndefinedWhenStdevZero(t *testing.T) {
	returns := []float64{0.01, 0.01, 0.01}
	_, ok := Sharpe(returns, 3, 0.02)
	assert.False(t, ok)
}
