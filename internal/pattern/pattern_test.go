package pattern

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invest-analyzer/internal/model"
	"invest-analyzer/internal/series"
)

func ramp(prices []float64, target float64, n int) []float64 {
	last := prices[len(prices)-1]
	step := (target - last) / float64(n)
	for i := 1; i <= n; i++ {
		prices = append(prices, last+step*float64(i))
	}
	return prices
}

func flat(prices []float64, n int) []float64 {
	last := prices[len(prices)-1]
	for i := 0; i < n; i++ {
		prices = append(prices, last)
	}
	return prices
}

func newSeries(t *testing.T, prices []float64) *series.Series {
	t.Helper()
	bars := make([]model.Bar, len(prices))
	day := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	for i, p := range prices {
		d := decimal.NewFromFloat(p)
		bars[i] = model.Bar{
			Market: model.MarketUS, Code: "NVDA",
			TradeDate: day.AddDate(0, 0, i),
			Open:      d, High: d, Low: d, Close: d,
			Volume: 1000,
		}
	}
	s, err := series.New(bars)
	require.NoError(t, err)
	return s
}

func TestSupportResistance_OscillatingRange(t *testing.T) {
	prices := []float64{100}
	prices = ramp(prices, 110, 10)
	prices = ramp(prices, 90, 10)
	prices = ramp(prices, 110, 10)
	prices = ramp(prices, 90, 10)
	prices = ramp(prices, 110, 10)
	prices = ramp(prices, 100, 10)

	res := SupportResistance(newSeries(t, prices), DefaultSRConfig())

	require.NotEmpty(t, res.Supports, "expected a support below the last close")
	require.NotEmpty(t, res.Resistances, "expected a resistance above the last close")
	assert.InDelta(t, 90.0, res.NearestSupport, 2.0)
	assert.InDelta(t, 110.0, res.NearestResistance, 2.0)

	for _, l := range res.Supports {
		assert.Less(t, l.Price, 100.0)
		assert.GreaterOrEqual(t, l.Touches, 2)
	}
	for _, l := range res.Resistances {
		assert.Greater(t, l.Price, 100.0)
	}
}

func TestSupportResistance_StrengthOrdering(t *testing.T) {
	prices := []float64{100}
	prices = ramp(prices, 110, 10)
	prices = ramp(prices, 90, 10)
	prices = ramp(prices, 110, 10)
	prices = ramp(prices, 90, 10)
	prices = ramp(prices, 110, 10)
	prices = ramp(prices, 100, 10)

	res := SupportResistance(newSeries(t, prices), DefaultSRConfig())
	for i := 1; i < len(res.Levels); i++ {
		assert.GreaterOrEqual(t, res.Levels[i-1].Strength, res.Levels[i].Strength)
	}
}

func TestTrendlines_RisingSupport(t *testing.T) {
	prices := []float64{105}
	prices = ramp(prices, 102.5, 5)
	prices = ramp(prices, 115, 5)
	prices = ramp(prices, 107.5, 5)
	prices = ramp(prices, 120, 5)
	prices = ramp(prices, 112.5, 5)
	prices = ramp(prices, 125, 5)
	prices = ramp(prices, 117.5, 5)
	prices = ramp(prices, 122, 5)

	res := Trendlines(newSeries(t, prices), DefaultTrendlineConfig())

	require.NotEmpty(t, res.Trendlines)
	assert.Equal(t, TrendUp, res.OverallTrend)

	var foundSupport bool
	for _, l := range res.Trendlines {
		if l.Type == LevelSupport && l.Direction == TrendUp {
			foundSupport = true
			assert.GreaterOrEqual(t, l.Touches, 2)
			assert.LessOrEqual(t, l.Breaches, DefaultTrendlineConfig().MaxBreaches)
		}
	}
	assert.True(t, foundSupport, "expected an uptrend support line")
}

func TestDetectDoubleTop(t *testing.T) {
	prices := []float64{100}
	prices = flat(prices, 9)
	prices = ramp(prices, 120, 8)
	prices = ramp(prices, 105, 8)
	prices = ramp(prices, 119, 8)
	prices = ramp(prices, 108, 8)

	res := DetectDoubleTopBottom(newSeries(t, prices), DefaultDoubleTopBottomConfig())

	require.True(t, res.Detected)
	assert.Equal(t, DoubleTop, res.Type)
	assert.Equal(t, BiasBearish, res.Bias)
	assert.InDelta(t, 105.0, res.BreakoutPrice, 1.0)
	require.NotNil(t, res.ProjectedTarget)
	assert.Less(t, *res.ProjectedTarget, res.BreakoutPrice)
	assert.Greater(t, res.Score, 50.0)
}

func TestDetectHeadAndShoulders(t *testing.T) {
	prices := []float64{100}
	prices = flat(prices, 4)
	prices = ramp(prices, 110, 8) // left shoulder
	prices = ramp(prices, 100, 8)
	prices = ramp(prices, 120, 8) // head
	prices = ramp(prices, 100, 8)
	prices = ramp(prices, 109, 8) // right shoulder
	prices = ramp(prices, 98, 8)

	res := DetectHeadAndShoulders(newSeries(t, prices), DefaultHeadShouldersConfig())

	require.True(t, res.Detected)
	assert.Equal(t, HeadAndShoulders, res.Type)
	assert.Equal(t, BiasBearish, res.Bias)
	assert.InDelta(t, 100.0, res.BreakoutPrice, 1.0)
	require.NotNil(t, res.ProjectedTarget)
	assert.InDelta(t, 80.0, *res.ProjectedTarget, 2.0)
}

func TestDetectCupAndHandle(t *testing.T) {
	prices := []float64{80}
	prices = ramp(prices, 100, 10) // lead-in to the left rim
	prices = ramp(prices, 80, 12)  // cup down, 20% depth
	prices = ramp(prices, 99, 12)  // cup up to the right rim
	prices = ramp(prices, 94, 6)   // handle
	prices = flat(prices, 4)

	res := DetectCupAndHandle(newSeries(t, prices), DefaultCupHandleConfig())

	require.True(t, res.Detected)
	assert.Equal(t, BiasBullish, res.Bias)
	assert.Greater(t, res.BreakoutPrice, 94.0)
	assert.Less(t, res.BreakoutPrice, 101.0)
	require.NotNil(t, res.ProjectedTarget)
	assert.Greater(t, *res.ProjectedTarget, res.BreakoutPrice)
	require.NotNil(t, res.StopPrice)
	assert.Less(t, *res.StopPrice, res.BreakoutPrice)
}

func TestDetectTriangle_Symmetrical(t *testing.T) {
	prices := []float64{100}
	prices = ramp(prices, 119, 5)
	prices = ramp(prices, 102, 5)
	prices = ramp(prices, 117, 5)
	prices = ramp(prices, 104, 5)
	prices = ramp(prices, 115, 5)
	prices = ramp(prices, 106, 5)
	prices = ramp(prices, 113, 5)
	prices = ramp(prices, 109, 4)

	res := DetectTriangle(newSeries(t, prices), DefaultTriangleConfig())

	require.True(t, res.Detected)
	assert.Equal(t, SymmetricalTriangle, res.Type)
	assert.Equal(t, BiasNeutral, res.Bias)
	conv, ok := res.KeyPoints["convergence"]
	require.True(t, ok)
	assert.Greater(t, conv, 0.7)
}

func TestScanAll_SortsByScore(t *testing.T) {
	prices := []float64{100}
	prices = flat(prices, 9)
	prices = ramp(prices, 120, 8)
	prices = ramp(prices, 105, 8)
	prices = ramp(prices, 119, 8)
	prices = ramp(prices, 108, 8)

	results := ScanAll(newSeries(t, prices))
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
}

func TestPatterns_TooShortSeries(t *testing.T) {
	prices := []float64{100}
	prices = ramp(prices, 105, 5)
	s := newSeries(t, prices)

	assert.False(t, DetectCupAndHandle(s, DefaultCupHandleConfig()).Detected)
	assert.False(t, DetectHeadAndShoulders(s, DefaultHeadShouldersConfig()).Detected)
	assert.False(t, DetectDoubleTopBottom(s, DefaultDoubleTopBottomConfig()).Detected)
	assert.False(t, DetectTriangle(s, DefaultTriangleConfig()).Detected)
}
