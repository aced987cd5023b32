package vcp

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invest-analyzer/internal/model"
	"invest-analyzer/internal/series"
)

// ramp appends n values walking linearly from the last price to target.
func ramp(prices []float64, target float64, n int) []float64 {
	last := prices[len(prices)-1]
	step := (target - last) / float64(n)
	for i := 1; i <= n; i++ {
		prices = append(prices, last+step*float64(i))
	}
	return prices
}

func barsFrom(prices []float64, volumes []int64) []model.Bar {
	bars := make([]model.Bar, len(prices))
	day := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	for i, p := range prices {
		d := decimal.NewFromFloat(p)
		bars[i] = model.Bar{
			Market:    model.MarketHK,
			Code:      "00700",
			TradeDate: day.AddDate(0, 0, i),
			Open:      d,
			High:      d,
			Low:       d,
			Close:     d,
			Volume:    volumes[i],
		}
	}
	return bars
}

// threeContractionSeries builds the canonical positive case: contractions
// of roughly 20%, 12% and 5% depth with volume stepping down, last close
// within 2% of the final contraction high.
func threeContractionSeries(t *testing.T) *series.Series {
	t.Helper()

	prices := []float64{70}
	prices = ramp(prices, 100, 19)   // base run-up, peak at idx 19
	prices = ramp(prices, 80, 8)     // contraction 1: 20%
	prices = ramp(prices, 97, 8)     // recovery high idx 35
	prices = ramp(prices, 85.36, 8)  // contraction 2: ~12%
	prices = ramp(prices, 95, 8)     // recovery high idx 51
	prices = ramp(prices, 90.25, 8)  // contraction 3: 5%
	prices = ramp(prices, 93.5, 8)   // drift back toward the pivot

	volumes := make([]int64, len(prices))
	for i := range volumes {
		switch {
		case i <= 27:
			volumes[i] = 2000
		case i <= 43:
			volumes[i] = 1200
		case i <= 59:
			volumes[i] = 600
		default:
			volumes[i] = 500
		}
	}

	s, err := series.New(barsFrom(prices, volumes))
	require.NoError(t, err)
	return s
}

func TestDetect_ThreeContractions(t *testing.T) {
	s := threeContractionSeries(t)
	det := NewDetector(DefaultConfig())
	res := det.Detect(s)

	require.True(t, res.IsVCP, "signals: %v", res.Signals)
	assert.Equal(t, 3, res.ContractionCount)
	assert.Len(t, res.DepthSequence, 3)
	assert.Equal(t, StageMature, res.Stage)
	assert.GreaterOrEqual(t, res.Score, 70.0)

	assert.InDelta(t, 20.0, res.DepthSequence[0], 1.0)
	assert.InDelta(t, 12.0, res.DepthSequence[1], 1.0)
	assert.InDelta(t, 5.0, res.DepthSequence[2], 1.0)
	assert.InDelta(t, 95.0, res.PivotPrice, 0.01)
	assert.Less(t, res.PivotDistancePct, 2.0)
	assert.Negative(t, res.VolumeTrend)
}

func TestDetect_DepthSequenceNonIncreasing(t *testing.T) {
	s := threeContractionSeries(t)
	res := NewDetector(DefaultConfig()).Detect(s)
	require.True(t, res.IsVCP)
	for i := 1; i < len(res.DepthSequence); i++ {
		assert.LessOrEqual(t, res.DepthSequence[i], res.DepthSequence[i-1])
	}
	assert.Equal(t, res.ContractionCount, len(res.DepthSequence))
}

func TestDetect_InsufficientData(t *testing.T) {
	prices := []float64{10}
	prices = ramp(prices, 20, 20)
	volumes := make([]int64, len(prices))
	for i := range volumes {
		volumes[i] = 100
	}
	s, err := series.New(barsFrom(prices, volumes))
	require.NoError(t, err)

	res := NewDetector(DefaultConfig()).Detect(s)
	assert.False(t, res.IsVCP)
	assert.Equal(t, StageNone, res.Stage)
	assert.Equal(t, 0.0, res.Score)
}

func TestDetect_NoContractionsOnSteadyUptrend(t *testing.T) {
	prices := []float64{50}
	prices = ramp(prices, 150, 80)
	volumes := make([]int64, len(prices))
	for i := range volumes {
		volumes[i] = 1000
	}
	s, err := series.New(barsFrom(prices, volumes))
	require.NoError(t, err)

	res := NewDetector(DefaultConfig()).Detect(s)
	assert.False(t, res.IsVCP)
	assert.Equal(t, 0.0, res.Score)
}

func TestDetect_BreakoutStage(t *testing.T) {
	// Same base pattern, but the tail closes above the pivot.
	prices := []float64{70}
	prices = ramp(prices, 100, 19)
	prices = ramp(prices, 80, 8)
	prices = ramp(prices, 97, 8)
	prices = ramp(prices, 85.36, 8)
	prices = ramp(prices, 95, 8)
	prices = ramp(prices, 90.25, 8)
	prices = ramp(prices, 96.5, 8) // above the 95 pivot

	volumes := make([]int64, len(prices))
	for i := range volumes {
		switch {
		case i <= 27:
			volumes[i] = 2000
		case i <= 43:
			volumes[i] = 1200
		case i <= 59:
			volumes[i] = 600
		default:
			volumes[i] = 900
		}
	}
	s, err := series.New(barsFrom(prices, volumes))
	require.NoError(t, err)

	res := NewDetector(DefaultConfig()).Detect(s)
	assert.Equal(t, StageBreakout, res.Stage)
}

func TestDetect_WiderContractionResetsSequence(t *testing.T) {
	// Second pullback is deeper than the first, so only the suffix from
	// the wider contraction onward survives.
	prices := []float64{60}
	prices = ramp(prices, 100, 19)
	prices = ramp(prices, 90, 8)    // 10%
	prices = ramp(prices, 98, 8)
	prices = ramp(prices, 78.4, 8)  // 20% of 98, wider: resets here
	prices = ramp(prices, 92, 8)
	prices = ramp(prices, 84.64, 8) // 8% of 92
	prices = ramp(prices, 90.5, 8)

	volumes := make([]int64, len(prices))
	for i := range volumes {
		volumes[i] = 1000 - int64(i*5)
	}
	s, err := series.New(barsFrom(prices, volumes))
	require.NoError(t, err)

	res := NewDetector(DefaultConfig()).Detect(s)
	for i := 1; i < len(res.DepthSequence); i++ {
		assert.Less(t, res.DepthSequence[i], res.DepthSequence[i-1])
	}
	if res.ContractionCount > 0 {
		assert.InDelta(t, 20.0, res.DepthSequence[0], 1.5)
	}
}
