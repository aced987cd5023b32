package indicator

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"invest-analyzer/internal/series"
)

func col(vs ...float64) series.Column {
	return series.Column(vs)
}

func TestSMA(t *testing.T) {
	closes := col(1, 2, 3, 4, 5)
	sma := SMA(closes, 3)

	assert.False(t, sma.Defined(0))
	assert.False(t, sma.Defined(1))
	assert.InDelta(t, 2.0, sma[2], 1e-9)
	assert.InDelta(t, 3.0, sma[3], 1e-9)
	assert.InDelta(t, 4.0, sma[4], 1e-9)
}

func TestSMA_PeriodOne_IsIdentity(t *testing.T) {
	closes := col(3.5, 7.25, 1.0)
	sma := SMA(closes, 1)
	for i := range closes {
		assert.InDelta(t, closes[i], sma[i], 1e-9)
	}
}

func TestEMA_SeededBySMA(t *testing.T) {
	// alpha = 2/(3+1) = 0.5, seed = SMA(1,2,3) = 2
	closes := col(1, 2, 3, 4, 5)
	ema := EMA(closes, 3)

	assert.False(t, ema.Defined(1))
	assert.InDelta(t, 2.0, ema[2], 1e-9)
	assert.InDelta(t, 3.0, ema[3], 1e-9) // 0.5*4 + 0.5*2
	assert.InDelta(t, 4.0, ema[4], 1e-9) // 0.5*5 + 0.5*3
}

func TestEMA_ConvergesOnConstantTail(t *testing.T) {
	closes := make(series.Column, 200)
	closes[0] = 50
	for i := 1; i < len(closes); i++ {
		closes[i] = 100
	}
	ema := EMA(closes, 10)
	assert.InDelta(t, 100.0, ema[len(ema)-1], 1e-6)
}

func TestWMA(t *testing.T) {
	closes := col(1, 2, 3)
	wma := WMA(closes, 3)
	assert.False(t, wma.Defined(1))
	// (1*1 + 2*2 + 3*3) / 6
	assert.InDelta(t, 14.0/6.0, wma[2], 1e-9)
}

func TestRSI_ConstantSeriesIsNeutral(t *testing.T) {
	closes := make(series.Column, 40)
	for i := range closes {
		closes[i] = 42
	}
	rsi := RSI(closes, 14)
	assert.False(t, rsi.Defined(13))
	for i := 14; i < len(rsi); i++ {
		assert.InDelta(t, 50.0, rsi[i], 1e-9)
	}
}

func TestRSI_AllGainsIsHundred(t *testing.T) {
	closes := make(series.Column, 30)
	for i := range closes {
		closes[i] = float64(i + 1)
	}
	rsi := RSI(closes, 14)
	assert.InDelta(t, 100.0, rsi[len(rsi)-1], 1e-9)
}

func TestRSI_Bounded(t *testing.T) {
	closes := col(10, 12, 11, 13, 9, 14, 8, 15, 7, 16, 6, 17, 5, 18, 4, 19, 3, 20)
	rsi := RSI(closes, 14)
	for i := range rsi {
		if rsi.Defined(i) {
			assert.GreaterOrEqual(t, rsi[i], 0.0)
			assert.LessOrEqual(t, rsi[i], 100.0)
		}
	}
}

func TestMACD_HistIsMACDMinusSignal(t *testing.T) {
	closes := make(series.Column, 120)
	for i := range closes {
		closes[i] = 100 + 10*math.Sin(float64(i)/7)
	}
	res := MACD(closes, DefaultMACDConfig())
	for i := range closes {
		if res.Hist.Defined(i) {
			assert.True(t, res.MACD.Defined(i))
			assert.True(t, res.Signal.Defined(i))
			assert.InDelta(t, res.MACD[i]-res.Signal[i], res.Hist[i], 1e-9)
		}
	}
}

func TestMACD_ConstantSeriesFlat(t *testing.T) {
	closes := make(series.Column, 100)
	for i := range closes {
		closes[i] = 55
	}
	res := MACD(closes, DefaultMACDConfig())
	assert.InDelta(t, 0.0, res.Hist.Last(), 1e-9)
	assert.InDelta(t, 0.0, res.MACD.Last(), 1e-9)
	for i := range res.Cross {
		assert.Equal(t, 0.0, res.Cross[i])
	}
}

func TestMACD_CrossMarkers(t *testing.T) {
	// Downtrend then strong uptrend then downtrend again forces both crosses.
	closes := make(series.Column, 0, 160)
	p := 100.0
	for i := 0; i < 60; i++ {
		p -= 0.5
		closes = append(closes, p)
	}
	for i := 0; i < 50; i++ {
		p += 2
		closes = append(closes, p)
	}
	for i := 0; i < 50; i++ {
		p -= 2
		closes = append(closes, p)
	}
	res := MACD(closes, DefaultMACDConfig())

	ups, downs := 0, 0
	for i := range res.Cross {
		switch res.Cross[i] {
		case 1:
			ups++
		case -1:
			downs++
		}
	}
	assert.Greater(t, ups, 0, "expected at least one bullish crossover")
	assert.Greater(t, downs, 0, "expected at least one bearish crossover")
}

func TestOBV_Directional(t *testing.T) {
	closes := col(10, 11, 11, 10, 12)
	volumes := col(100, 200, 150, 300, 400)
	obv := OBV(closes, volumes)

	expected := []float64{0, 200, 200, -100, 300}
	for i, want := range expected {
		assert.InDelta(t, want, obv[i], 1e-9, "OBV[%d]", i)
	}
}

func TestOBV_StepInvariant(t *testing.T) {
	closes := col(5, 6, 4, 4, 9, 3)
	volumes := col(10, 20, 30, 40, 50, 60)
	obv := OBV(closes, volumes)
	for i := 1; i < len(obv); i++ {
		step := obv[i] - obv[i-1]
		switch {
		case closes[i] > closes[i-1]:
			assert.Equal(t, volumes[i], step)
		case closes[i] < closes[i-1]:
			assert.Equal(t, -volumes[i], step)
		default:
			assert.Equal(t, 0.0, step)
		}
	}
}

func TestBollinger_ConstantSeries(t *testing.T) {
	closes := make(series.Column, 30)
	for i := range closes {
		closes[i] = 20
	}
	res := Bollinger(closes, DefaultBollingerConfig())

	last := len(closes) - 1
	assert.InDelta(t, 20.0, res.Middle[last], 1e-9)
	assert.InDelta(t, 20.0, res.Upper[last], 1e-9)
	assert.InDelta(t, 20.0, res.Lower[last], 1e-9)
	assert.InDelta(t, 0.0, res.Bandwidth[last], 1e-9)
	assert.Equal(t, 1.0, res.Squeeze[last])
}

func TestBollinger_BandsOrdered(t *testing.T) {
	closes := make(series.Column, 60)
	for i := range closes {
		closes[i] = 50 + 5*math.Sin(float64(i)/3)
	}
	cfg := DefaultBollingerConfig()
	res := Bollinger(closes, cfg)
	for i := cfg.Period - 1; i < len(closes); i++ {
		assert.LessOrEqual(t, res.Lower[i], res.Middle[i])
		assert.LessOrEqual(t, res.Middle[i], res.Upper[i])
	}
}

func TestStochRSI_Bounds(t *testing.T) {
	closes := make(series.Column, 80)
	for i := range closes {
		closes[i] = 100 + 8*math.Sin(float64(i)/5) + float64(i%3)
	}
	res := StochRSI(closes, DefaultStochRSIConfig())
	for i := range res.K {
		if res.K.Defined(i) {
			assert.GreaterOrEqual(t, res.K[i], 0.0)
			assert.LessOrEqual(t, res.K[i], 100.0)
		}
	}
	assert.True(t, res.D.Defined(len(res.D) - 1))
}

func TestDivergence_Bullish(t *testing.T) {
	// Price makes a new low at the end while the indicator holds higher.
	price := col(10, 9, 8, 9, 7)
	ind := col(100, 90, 80, 95, 85)
	div := Divergence(price, ind, 5)
	assert.Equal(t, 1.0, div[4])
}

func TestDivergence_Bearish(t *testing.T) {
	price := col(10, 11, 12, 11, 13)
	ind := col(100, 110, 120, 105, 115)
	div := Divergence(price, ind, 5)
	assert.Equal(t, -1.0, div[4])
}
