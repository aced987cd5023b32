package scorer

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invest-analyzer/internal/model"
	"invest-analyzer/internal/series"
)

func newSeries(t *testing.T, prices []float64, volumes []int64) *series.Series {
	t.Helper()
	bars := make([]model.Bar, len(prices))
	day := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	for i, p := range prices {
		d := decimal.NewFromFloat(p)
		vol := int64(1000)
		if volumes != nil {
			vol = volumes[i]
		}
		bars[i] = model.Bar{
			Market: model.MarketHK, Code: "00700",
			TradeDate: day.AddDate(0, 0, i),
			Open:      d, High: d, Low: d, Close: d,
			Volume: vol,
		}
	}
	s, err := series.New(bars)
	require.NoError(t, err)
	return s
}

func TestScore_UptrendBeatsDowntrend(t *testing.T) {
	n := 130
	up := make([]float64, n)
	down := make([]float64, n)
	for i := 0; i < n; i++ {
		up[i] = 100 + float64(i)*0.8 + 3*math.Sin(float64(i)/4)
		down[i] = 300 - float64(i)*0.8 + 3*math.Sin(float64(i)/4)
	}

	sc := NewScorer(DefaultConfig())
	upRes := sc.Score(newSeries(t, up, nil))
	downRes := sc.Score(newSeries(t, down, nil))

	assert.Greater(t, upRes.Composite, downRes.Composite)
	assert.Greater(t, upRes.TrendScore, downRes.TrendScore)
}

func TestScore_SubscoresBounded(t *testing.T) {
	n := 130
	prices := make([]float64, n)
	for i := 0; i < n; i++ {
		prices[i] = 100 + 20*math.Sin(float64(i)/6)
	}
	res := NewScorer(DefaultConfig()).Score(newSeries(t, prices, nil))

	for name, v := range map[string]float64{
		"trend":      res.TrendScore,
		"momentum":   res.MomentumScore,
		"volatility": res.VolatilityScore,
		"volume":     res.VolumeScore,
		"pattern":    res.PatternScore,
		"composite":  res.Composite,
	} {
		assert.GreaterOrEqual(t, v, 0.0, name)
		assert.LessOrEqual(t, v, 100.0, name)
	}
}

func TestScore_RatingBands(t *testing.T) {
	tests := []struct {
		score float64
		want  Rating
	}{
		{80, RatingStrongBuy},
		{75, RatingStrongBuy},
		{70, RatingBuy},
		{60, RatingBuy},
		{50, RatingHold},
		{45, RatingHold},
		{30, RatingSell},
		{25, RatingSell},
		{10, RatingStrongSell},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ratingFor(tt.score), "score %.0f", tt.score)
	}
}

func TestScore_WeightsConfigurable(t *testing.T) {
	n := 130
	prices := make([]float64, n)
	for i := 0; i < n; i++ {
		prices[i] = 100 + float64(i)*0.5
	}
	s := newSeries(t, prices, nil)

	trendOnly := DefaultConfig()
	trendOnly.WeightMomentum = 0
	trendOnly.WeightVolatility = 0
	trendOnly.WeightVolume = 0
	trendOnly.WeightPattern = 0

	res := NewScorer(trendOnly).Score(s)
	assert.InDelta(t, res.TrendScore, res.Composite, 1e-9)
}

func TestScore_ShortSeriesStaysNeutral(t *testing.T) {
	prices := []float64{100, 101, 102, 101, 100, 99, 100, 101}
	res := NewScorer(DefaultConfig()).Score(newSeries(t, prices, nil))

	assert.Equal(t, RatingHold, ratingFor(res.Composite))
	assert.False(t, res.VCP.IsVCP)
}
