package backtest

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invest-analyzer/internal/model"
)

func bar(day int, price float64) model.Bar {
	d := decimal.NewFromFloat(price)
	return model.Bar{
		Market:    model.MarketUS,
		Code:      "NVDA",
		TradeDate: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC).AddDate(0, 0, day),
		Open:      d, High: d, Low: d, Close: d,
		Volume: 10000,
	}
}

func trendBars() []model.Bar {
	var bars []model.Bar
	day := 0
	price := 120.0
	for i := 0; i < 25; i++ { // decline
		bars = append(bars, bar(day, price))
		price--
		day++
	}
	for i := 0; i < 20; i++ { // rally: golden cross
		bars = append(bars, bar(day, price))
		price += 2
		day++
	}
	for i := 0; i < 20; i++ { // decline: death cross
		bars = append(bars, bar(day, price))
		price -= 2
		day++
	}
	return bars
}

func TestEngine_MACrossRoundTrip(t *testing.T) {
	strat := NewMACrossStrategy(MACrossConfig{ShortPeriod: 5, LongPeriod: 20, Qty: decimal.NewFromInt(100)})
	engine := NewEngine(strat, decimal.NewFromInt(100000), decimal.Zero)
	bars := trendBars()

	res := engine.Run(bars)

	var buys, sells []TradeLogEntry
	for _, tr := range res.Trades {
		require.False(t, tr.Rejected, "unexpected rejected trade: %+v", tr)
		if tr.Side == IntentBuy {
			buys = append(buys, tr)
		} else {
			sells = append(sells, tr)
		}
	}
	require.Len(t, buys, 1, "expected exactly one BUY")
	require.Len(t, sells, 1, "expected exactly one SELL")
	assert.True(t, buys[0].Time.Before(sells[0].Time))

	// Flat at the end: final equity is all cash and matches the curve tail.
	require.Len(t, res.EquityCurve, len(bars))
	last := res.EquityCurve[len(res.EquityCurve)-1]
	assert.True(t, last.Equity.Equal(res.FinalEquity))

	expected := res.InitialCash.
		Sub(buys[0].Qty.Mul(buys[0].Price)).
		Add(sells[0].Qty.Mul(sells[0].Price))
	assert.True(t, res.FinalEquity.Equal(expected),
		"final %s want %s", res.FinalEquity, expected)
}

func TestEngine_EquityCurveIdentity(t *testing.T) {
	strat := NewMACrossStrategy(MACrossConfig{ShortPeriod: 5, LongPeriod: 20, Qty: decimal.NewFromInt(100)})
	engine := NewEngine(strat, decimal.NewFromInt(100000), decimal.Zero)
	bars := trendBars()[:50] // stop while still holding the position

	res := engine.Run(bars)

	// Last equity point equals cash + qty * last close.
	var buyQty decimal.Decimal
	for _, tr := range res.Trades {
		if tr.Side == IntentBuy && !tr.Rejected {
			buyQty = buyQty.Add(tr.Qty)
		}
		if tr.Side == IntentSell && !tr.Rejected {
			buyQty = buyQty.Sub(tr.Qty)
		}
	}
	require.True(t, buyQty.IsPositive(), "test expects an open position at the end")

	lastClose := bars[len(bars)-1].Close
	lastEquity := res.EquityCurve[len(res.EquityCurve)-1].Equity
	cash := res.FinalEquity.Sub(buyQty.Mul(lastClose))
	assert.True(t, lastEquity.Equal(cash.Add(buyQty.Mul(lastClose))))
	assert.True(t, lastEquity.Equal(res.FinalEquity))
}

func TestEngine_RejectsCashNegativeBuy(t *testing.T) {
	strat := NewMACrossStrategy(MACrossConfig{ShortPeriod: 5, LongPeriod: 20, Qty: decimal.NewFromInt(1000)})
	engine := NewEngine(strat, decimal.NewFromInt(1000), decimal.Zero) // far too little cash
	res := engine.Run(trendBars())

	var rejected int
	for _, tr := range res.Trades {
		if tr.Rejected {
			rejected++
			assert.Equal(t, "insufficient cash", tr.Reason)
		}
	}
	assert.Greater(t, rejected, 0, "expected the oversized buy to be rejected")
	assert.True(t, res.FinalEquity.Equal(res.InitialCash))
}

func TestEngine_FeesReduceEquity(t *testing.T) {
	strat := NewMACrossStrategy(MACrossConfig{ShortPeriod: 5, LongPeriod: 20, Qty: decimal.NewFromInt(100)})
	noFee := NewEngine(strat, decimal.NewFromInt(100000), decimal.Zero).Run(trendBars())

	strat2 := NewMACrossStrategy(MACrossConfig{ShortPeriod: 5, LongPeriod: 20, Qty: decimal.NewFromInt(100)})
	withFee := NewEngine(strat2, decimal.NewFromInt(100000), decimal.NewFromFloat(0.001)).Run(trendBars())

	assert.True(t, withFee.FinalEquity.LessThan(noFee.FinalEquity))
}

func TestEngine_MetricsSanity(t *testing.T) {
	strat := NewMACrossStrategy(MACrossConfig{ShortPeriod: 5, LongPeriod: 20, Qty: decimal.NewFromInt(100)})
	res := NewEngine(strat, decimal.NewFromInt(100000), decimal.Zero).Run(trendBars())

	m := res.Metrics
	assert.Equal(t, 1, m.TotalTrades)
	assert.GreaterOrEqual(t, m.MaxDrawdownPct, 0.0)
	assert.LessOrEqual(t, m.MaxDrawdownPct, 1.0)
	// The rally trade is profitable, so total return must be positive.
	assert.True(t, m.TotalReturn.IsPositive())
	assert.Equal(t, 1.0, m.WinRate)
}

func TestEngine_EmptyBars(t *testing.T) {
	strat := NewMACrossStrategy(DefaultMACrossConfig())
	res := NewEngine(strat, decimal.NewFromInt(1000), decimal.Zero).Run(nil)

	assert.Empty(t, res.EquityCurve)
	assert.Empty(t, res.Trades)
	assert.True(t, res.FinalEquity.Equal(decimal.NewFromInt(1000)))
}

func vcpBreakoutBars() []model.Bar {
	var prices []float64
	push := func(target float64, n int) {
		last := prices[len(prices)-1]
		step := (target - last) / float64(n)
		for i := 1; i <= n; i++ {
			prices = append(prices, last+step*float64(i))
		}
	}
	prices = []float64{70}
	push(100, 19)
	push(80, 8)
	push(97, 8)
	push(85.36, 8)
	push(95, 8)
	push(90.25, 8)
	push(96.5, 8) // breakout above the 95 pivot
	push(78, 10)  // collapse: trailing stop

	bars := make([]model.Bar, len(prices))
	for i, p := range prices {
		b := bar(i, p)
		var vol int64
		switch {
		case i <= 27:
			vol = 2000
		case i <= 43:
			vol = 1200
		case i <= 59:
			vol = 600
		default:
			vol = 900
		}
		b.Volume = vol
		bars[i] = b
	}
	return bars
}

func TestEngine_VCPBreakoutStrategy(t *testing.T) {
	cfg := DefaultVCPBreakoutConfig()
	cfg.Window = 60
	cfg.Qty = decimal.NewFromInt(10)
	strat := NewVCPBreakoutStrategy(cfg)

	res := NewEngine(strat, decimal.NewFromInt(10000), decimal.Zero).Run(vcpBreakoutBars())

	var buys, sells int
	for _, tr := range res.Trades {
		if tr.Rejected {
			continue
		}
		if tr.Side == IntentBuy {
			buys++
		} else {
			sells++
		}
	}
	assert.Equal(t, 1, buys, "expected one breakout entry, trades: %+v", res.Trades)
	assert.Equal(t, 1, sells, "expected the trailing stop to fire")
}

func TestNewStrategy_Factory(t *testing.T) {
	s, err := NewStrategy("ma_cross", map[string]interface{}{
		"short_period": 3.0, "long_period": 10.0,
	})
	require.NoError(t, err)
	assert.Equal(t, "MACross(3/10)", s.Name())

	s, err = NewStrategy("vcp_breakout", map[string]interface{}{"min_score": 70.0})
	require.NoError(t, err)
	assert.Equal(t, "VCPBreakout", s.Name())

	_, err = NewStrategy("nope", nil)
	assert.Error(t, err)
}
