package tradestats

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invest-analyzer/internal/model"
)

var baseTime = time.Date(2025, 4, 7, 10, 0, 0, 0, time.UTC)

func fill(dealID string, side model.TradeSide, qty, price float64, dayOffset int) model.Fill {
	return model.Fill{
		AccountID: 1,
		DealID:    dealID,
		TradeTime: baseTime.AddDate(0, 0, dayOffset),
		Market:    model.MarketUS,
		Code:      "NVDA",
		Side:      side,
		Qty:       decimal.NewFromFloat(qty),
		Price:     decimal.NewFromFloat(price),
	}
}

func TestMatch_LIFOSplitsTopLot(t *testing.T) {
	// BUY 100 @10, BUY 100 @12, SELL 150 @15:
	// LIFO closes 100 @12 first, then 50 of the 10 lot.
	fills := []model.Fill{
		fill("d1", model.TradeBuy, 100, 10, 0),
		fill("d2", model.TradeBuy, 100, 12, 1),
		fill("d3", model.TradeSell, 150, 15, 2),
	}
	m := NewMatcher(DefaultMultiplierTable())
	trades := m.Match(fills)

	require.Len(t, trades, 2)
	assert.True(t, trades[0].Qty.Equal(decimal.NewFromInt(100)))
	assert.True(t, trades[0].EntryPrice.Equal(decimal.NewFromInt(12)))
	assert.True(t, trades[1].Qty.Equal(decimal.NewFromInt(50)))
	assert.True(t, trades[1].EntryPrice.Equal(decimal.NewFromInt(10)))

	// net pnl = 100*(15-12) + 50*(15-10) = 550 with zero fees
	total := trades[0].NetPnL.Add(trades[1].NetPnL)
	assert.True(t, total.Equal(decimal.NewFromInt(550)), "got %s", total)

	// 50 shares of the first lot stay open.
	open := m.OpenLots()
	require.Len(t, open, 1)
	assert.True(t, open[0].Qty.Equal(decimal.NewFromInt(50)))
	assert.Empty(t, m.Residuals())
}

func TestMatch_QuantityConservation(t *testing.T) {
	fills := []model.Fill{
		fill("d1", model.TradeBuy, 100, 10, 0),
		fill("d2", model.TradeBuy, 30, 11, 1),
		fill("d3", model.TradeSell, 90, 12, 2),
		fill("d4", model.TradeSell, 70, 13, 3), // 30 more than is open
	}
	m := NewMatcher(DefaultMultiplierTable())
	trades := m.Match(fills)

	paired := decimal.Zero
	for _, tr := range trades {
		paired = paired.Add(tr.Qty)
	}
	openQty := decimal.Zero
	for _, lot := range m.OpenLots() {
		openQty = openQty.Add(lot.Qty)
	}
	residualSell := decimal.Zero
	for _, r := range m.Residuals() {
		residualSell = residualSell.Add(r.Qty)
	}

	// buys: paired + still open = 130; sells: paired + residual = 160
	assert.True(t, paired.Add(openQty).Equal(decimal.NewFromInt(130)))
	assert.True(t, paired.Add(residualSell).Equal(decimal.NewFromInt(160)))
}

func TestMatch_FeeProportioning(t *testing.T) {
	buy := fill("d1", model.TradeBuy, 100, 10, 0)
	buy.Fee = decimal.NewFromInt(10)
	sell := fill("d2", model.TradeSell, 40, 12, 5)
	sell.Fee = decimal.NewFromInt(4)

	m := NewMatcher(DefaultMultiplierTable())
	trades := m.Match([]model.Fill{buy, sell})

	require.Len(t, trades, 1)
	// buy fee share 10*40/100 = 4, sell fee 4 in full
	assert.True(t, trades[0].Fees.Equal(decimal.NewFromInt(8)), "got %s", trades[0].Fees)
	// gross = 40*(12-10) = 80; net = 72
	assert.True(t, trades[0].NetPnL.Equal(decimal.NewFromInt(72)))
	assert.Equal(t, 5, trades[0].HoldDays)
}

func TestMatch_OptionUsesMultiplier(t *testing.T) {
	mk := func(dealID string, side model.TradeSide, qty, price float64, day int) model.Fill {
		f := fill(dealID, side, qty, price, day)
		f.Code = "MU260116C230000"
		return f
	}
	m := NewMatcher(DefaultMultiplierTable())
	trades := m.Match([]model.Fill{
		mk("o1", model.TradeBuy, 2, 1.5, 0),
		mk("o2", model.TradeSell, 2, 2.0, 3),
	})

	require.Len(t, trades, 1)
	assert.Equal(t, InstrumentOption, trades[0].Instrument)
	assert.Equal(t, int64(100), trades[0].Multiplier)
	// gross = (2.0-1.5) * 2 * 100 = 100
	assert.True(t, trades[0].GrossPnL.Equal(decimal.NewFromInt(100)), "got %s", trades[0].GrossPnL)
}

func TestMatch_StockAndOptionQueuesAreSeparate(t *testing.T) {
	stockBuy := fill("s1", model.TradeBuy, 100, 10, 0)
	optSell := fill("o1", model.TradeSell, 100, 10, 1)
	optSell.Code = "NVDA260116C100000"

	m := NewMatcher(DefaultMultiplierTable())
	trades := m.Match([]model.Fill{stockBuy, optSell})

	assert.Empty(t, trades)
	assert.Len(t, m.Residuals(), 1)
	assert.Len(t, m.OpenLots(), 1)
}

func TestClassifyInstrument(t *testing.T) {
	tests := []struct {
		market model.Market
		code   string
		want   Instrument
	}{
		{model.MarketHK, "00700", InstrumentStock},
		{model.MarketHK, "SMC260629C75000", InstrumentOption},
		{model.MarketHK, "TCH260330C650000", InstrumentOption},
		{model.MarketUS, "NVDA", InstrumentStock},
		{model.MarketUS, "MU260116C230000", InstrumentOption},
		{model.MarketUS, "AAPL260116P150000", InstrumentOption},
		{model.MarketA, "600519", InstrumentStock},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyInstrument(tt.market, tt.code))
		})
	}
}

func TestMultiplierTable(t *testing.T) {
	table := MultiplierTable{HK: map[string]int64{"SMC": 2500, "TCH": 100}}

	assert.Equal(t, int64(2500), table.Multiplier(model.MarketHK, "SMC260629C75000", InstrumentOption))
	assert.Equal(t, int64(100), table.Multiplier(model.MarketHK, "TCH260330C650000", InstrumentOption))
	assert.Equal(t, int64(1), table.Multiplier(model.MarketHK, "ZZZ260330C650000", InstrumentOption))
	assert.Equal(t, int64(100), table.Multiplier(model.MarketUS, "MU260116C230000", InstrumentOption))
	assert.Equal(t, int64(1), table.Multiplier(model.MarketHK, "00700", InstrumentStock))
}

func TestStatistics_Basic(t *testing.T) {
	fills := []model.Fill{
		fill("d1", model.TradeBuy, 100, 10, 0),
		fill("d2", model.TradeSell, 100, 15, 10), // +500
		fill("d3", model.TradeBuy, 100, 20, 20),
		fill("d4", model.TradeSell, 100, 18, 24), // -200
		fill("d5", model.TradeBuy, 100, 30, 30),
		fill("d6", model.TradeSell, 100, 33, 33), // +300
	}
	m := NewMatcher(DefaultMultiplierTable())
	trades := m.Match(fills)
	require.Len(t, trades, 3)

	stats := NewCalculator(5).Calculate(trades)

	assert.Equal(t, 3, stats.TotalTrades)
	assert.Equal(t, 2, stats.WinningTrades)
	assert.Equal(t, 1, stats.LosingTrades)
	assert.InDelta(t, 2.0/3.0, stats.WinRate(), 1e-9)
	assert.True(t, stats.TotalProfit.Equal(decimal.NewFromInt(800)))
	assert.True(t, stats.TotalLoss.Equal(decimal.NewFromInt(200)))
	assert.True(t, stats.NetProfit.Equal(decimal.NewFromInt(600)))
	assert.InDelta(t, 4.0, stats.ProfitFactor, 1e-9)

	// expectancy = 2/3*400 - 1/3*200 = 200
	exp, _ := stats.Expectancy.Float64()
	assert.InDelta(t, 200.0, exp, 1e-6)

	assert.Equal(t, 10, stats.MaxHoldDays)
	assert.Equal(t, 3, stats.MinHoldDays)

	require.Contains(t, stats.MarketStats, model.MarketUS)
	assert.Equal(t, 3, stats.MarketStats[model.MarketUS].TotalTrades)

	require.NotEmpty(t, stats.TopWinners)
	assert.True(t, stats.TopWinners[0].NetPnL.Equal(decimal.NewFromInt(500)))
	require.NotEmpty(t, stats.TopLosers)
	assert.True(t, stats.TopLosers[0].NetPnL.Equal(decimal.NewFromInt(-200)))
}

func TestStatistics_HistogramAndMonthly(t *testing.T) {
	fills := []model.Fill{
		fill("d1", model.TradeBuy, 100, 100, 0),
		fill("d2", model.TradeSell, 100, 105, 5), // +5%
		fill("d3", model.TradeBuy, 100, 100, 40),
		fill("d4", model.TradeSell, 100, 85, 45), // -15%
	}
	trades := NewMatcher(DefaultMultiplierTable()).Match(fills)
	stats := NewCalculator(5).Calculate(trades)

	var plusBucket, minusBucket int
	for _, b := range stats.RatioBuckets {
		if b.Name == "0~10%" {
			plusBucket = b.Count
		}
		if b.Name == "-20%~-10%" {
			minusBucket = b.Count
		}
	}
	assert.Equal(t, 1, plusBucket)
	assert.Equal(t, 1, minusBucket)

	require.Len(t, stats.Monthly, 2)
	assert.Less(t, stats.Monthly[0].YearMonth, stats.Monthly[1].YearMonth)
}

func TestStatistics_OptionsSeparated(t *testing.T) {
	opt := func(dealID string, side model.TradeSide, price float64, day int) model.Fill {
		f := fill(dealID, side, 1, price, day)
		f.Code = "MU260116C230000"
		return f
	}
	fills := []model.Fill{
		fill("d1", model.TradeBuy, 100, 10, 0),
		fill("d2", model.TradeSell, 100, 12, 2),
		opt("o1", model.TradeBuy, 1.0, 0),
		opt("o2", model.TradeSell, 1.6, 4),
	}
	trades := NewMatcher(DefaultMultiplierTable()).Match(fills)
	stats := NewCalculator(5).Calculate(trades)

	assert.Equal(t, 1, stats.TotalTrades)
	assert.Equal(t, 1, stats.OptionTotalTrades)
	assert.Equal(t, 1, stats.OptionWinningTrades)
	// option pnl = (1.6-1.0)*1*100 = 60
	assert.True(t, stats.OptionNetProfit.Equal(decimal.NewFromInt(60)), "got %s", stats.OptionNetProfit)
}
