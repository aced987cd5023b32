package tradestats

import (
	"sort"

	"github.com/shopspring/decimal"

	"invest-analyzer/internal/model"
)

// MarketStats 单个市场的统计
type MarketStats struct {
	Market        model.Market    `json:"market"`
	TotalTrades   int             `json:"total_trades"`
	WinningTrades int             `json:"winning_trades"`
	LosingTrades  int             `json:"losing_trades"`
	TotalProfit   decimal.Decimal `json:"total_profit"`
	TotalLoss     decimal.Decimal `json:"total_loss"`
	NetProfit     decimal.Decimal `json:"net_profit"`
}

func (m MarketStats) WinRate() float64 {
	if m.TotalTrades == 0 {
		return 0
	}
	return float64(m.WinningTrades) / float64(m.TotalTrades)
}

// StockStats 单个标的的统计
type StockStats struct {
	Market        model.Market    `json:"market"`
	Code          string          `json:"code"`
	StockName     string          `json:"stock_name,omitempty"`
	TradeCount    int             `json:"trade_count"`
	WinningTrades int             `json:"winning_trades"`
	NetProfit     decimal.Decimal `json:"net_profit"`
}

// MonthlyStats 月度统计，按平仓月份归档
type MonthlyStats struct {
	YearMonth     string          `json:"year_month"`
	TradeCount    int             `json:"trade_count"`
	WinningTrades int             `json:"winning_trades"`
	NetProfit     decimal.Decimal `json:"net_profit"`
}

// RatioBucket 盈亏率直方图的一个区间 [Min, Max)
type RatioBucket struct {
	Name  string  `json:"name"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Count int     `json:"count"`
}

// Statistics 完整统计结果
type Statistics struct {
	TotalTrades     int `json:"total_trades"`
	WinningTrades   int `json:"winning_trades"`
	LosingTrades    int `json:"losing_trades"`
	BreakevenTrades int `json:"breakeven_trades"`

	TotalProfit  decimal.Decimal `json:"total_profit"`
	TotalLoss    decimal.Decimal `json:"total_loss"`
	NetProfit    decimal.Decimal `json:"net_profit"`
	AvgProfit    decimal.Decimal `json:"avg_profit"`
	AvgLoss      decimal.Decimal `json:"avg_loss"`
	ProfitFactor float64         `json:"profit_factor"` // |winSum| / |lossSum|
	Expectancy   decimal.Decimal `json:"expectancy"`

	AvgHoldDays        float64 `json:"avg_hold_days"`
	AvgWinningHoldDays float64 `json:"avg_winning_hold_days"`
	AvgLosingHoldDays  float64 `json:"avg_losing_hold_days"`
	MaxHoldDays        int     `json:"max_hold_days"`
	MinHoldDays        int     `json:"min_hold_days"`

	MarketStats  map[model.Market]*MarketStats `json:"market_stats"`
	StockStats   map[string]*StockStats        `json:"stock_stats"`
	TopWinners   []RoundTrip                   `json:"top_winners"`
	TopLosers    []RoundTrip                   `json:"top_losers"`
	RatioBuckets []RatioBucket                 `json:"ratio_buckets"`
	Monthly      []MonthlyStats                `json:"monthly"`

	OptionTotalTrades   int             `json:"option_total_trades"`
	OptionWinningTrades int             `json:"option_winning_trades"`
	OptionNetProfit     decimal.Decimal `json:"option_net_profit"`

	TotalFees  decimal.Decimal `json:"total_fees"`
	StockFees  decimal.Decimal `json:"stock_fees"`
	OptionFees decimal.Decimal `json:"option_fees"`
}

func (s Statistics) WinRate() float64 {
	if s.TotalTrades == 0 {
		return 0
	}
	return float64(s.WinningTrades) / float64(s.TotalTrades)
}

func (s Statistics) OptionWinRate() float64 {
	if s.OptionTotalTrades == 0 {
		return 0
	}
	return float64(s.OptionWinningTrades) / float64(s.OptionTotalTrades)
}

// ratio histogram boundaries, [min, max)
var ratioBuckets = []RatioBucket{
	{Name: "<-50%", Min: -1e18, Max: -0.5},
	{Name: "-50%~-30%", Min: -0.5, Max: -0.3},
	{Name: "-30%~-20%", Min: -0.3, Max: -0.2},
	{Name: "-20%~-10%", Min: -0.2, Max: -0.1},
	{Name: "-10%~0%", Min: -0.1, Max: 0},
	{Name: "0~10%", Min: 0, Max: 0.1},
	{Name: "10%~20%", Min: 0.1, Max: 0.2},
	{Name: "20%~30%", Min: 0.2, Max: 0.3},
	{Name: "30%~50%", Min: 0.3, Max: 0.5},
	{Name: ">50%", Min: 0.5, Max: 1e18},
}

// Calculator 统计计算器，无状态
type Calculator struct {
	TopN int
}

func NewCalculator(topN int) *Calculator {
	if topN <= 0 {
		topN = 5
	}
	return &Calculator{TopN: topN}
}

// Calculate derives all statistics over paired round trips. Headline
// numbers cover stock trades; options are accumulated separately.
func (c *Calculator) Calculate(trades []RoundTrip) Statistics {
	stats := Statistics{
		MarketStats: map[model.Market]*MarketStats{},
		StockStats:  map[string]*StockStats{},
	}
	if len(trades) == 0 {
		return stats
	}

	var stocks, options []RoundTrip
	for _, t := range trades {
		if t.Instrument == InstrumentOption {
			options = append(options, t)
		} else {
			stocks = append(stocks, t)
		}
	}

	c.overall(stocks, &stats)
	c.options(options, &stats)
	c.holding(stocks, &stats)
	c.markets(stocks, &stats)
	c.perStock(stocks, &stats)
	c.rankings(stocks, &stats)
	c.histogram(stocks, &stats)
	c.monthly(stocks, &stats)

	stats.TotalFees = stats.StockFees.Add(stats.OptionFees)
	return stats
}

func (c *Calculator) overall(trades []RoundTrip, stats *Statistics) {
	stats.TotalTrades = len(trades)
	for _, t := range trades {
		stats.StockFees = stats.StockFees.Add(t.Fees)
		switch {
		case t.NetPnL.IsPositive():
			stats.WinningTrades++
			stats.TotalProfit = stats.TotalProfit.Add(t.NetPnL)
		case t.NetPnL.IsNegative():
			stats.LosingTrades++
			stats.TotalLoss = stats.TotalLoss.Add(t.NetPnL.Abs())
		default:
			stats.BreakevenTrades++
		}
	}
	stats.NetProfit = stats.TotalProfit.Sub(stats.TotalLoss)

	if stats.WinningTrades > 0 {
		stats.AvgProfit = stats.TotalProfit.Div(decimal.NewFromInt(int64(stats.WinningTrades)))
	}
	if stats.LosingTrades > 0 {
		stats.AvgLoss = stats.TotalLoss.Div(decimal.NewFromInt(int64(stats.LosingTrades)))
	}
	if stats.TotalLoss.IsPositive() {
		pf, _ := stats.TotalProfit.Div(stats.TotalLoss).Float64()
		stats.ProfitFactor = pf
	} else if stats.TotalProfit.IsPositive() {
		stats.ProfitFactor = 999
	}

	// expectancy = winRate * avgWin - lossRate * avgLoss
	if stats.TotalTrades > 0 {
		winRate := decimal.NewFromFloat(stats.WinRate())
		lossRate := decimal.NewFromInt(1).Sub(winRate)
		stats.Expectancy = winRate.Mul(stats.AvgProfit).Sub(lossRate.Mul(stats.AvgLoss))
	}
}

func (c *Calculator) options(trades []RoundTrip, stats *Statistics) {
	stats.OptionTotalTrades = len(trades)
	for _, t := range trades {
		if t.NetPnL.IsPositive() {
			stats.OptionWinningTrades++
		}
		stats.OptionNetProfit = stats.OptionNetProfit.Add(t.NetPnL)
		stats.OptionFees = stats.OptionFees.Add(t.Fees)
	}
}

func (c *Calculator) holding(trades []RoundTrip, stats *Statistics) {
	if len(trades) == 0 {
		return
	}
	var total, wins, losses int
	var winDays, lossDays int
	stats.MinHoldDays = trades[0].HoldDays

	for _, t := range trades {
		total += t.HoldDays
		if t.HoldDays > stats.MaxHoldDays {
			stats.MaxHoldDays = t.HoldDays
		}
		if t.HoldDays < stats.MinHoldDays {
			stats.MinHoldDays = t.HoldDays
		}
		if t.NetPnL.IsPositive() {
			wins++
			winDays += t.HoldDays
		} else if t.NetPnL.IsNegative() {
			losses++
			lossDays += t.HoldDays
		}
	}
	stats.AvgHoldDays = float64(total) / float64(len(trades))
	if wins > 0 {
		stats.AvgWinningHoldDays = float64(winDays) / float64(wins)
	}
	if losses > 0 {
		stats.AvgLosingHoldDays = float64(lossDays) / float64(losses)
	}
}

func (c *Calculator) markets(trades []RoundTrip, stats *Statistics) {
	for _, t := range trades {
		ms, ok := stats.MarketStats[t.Market]
		if !ok {
			ms = &MarketStats{Market: t.Market}
			stats.MarketStats[t.Market] = ms
		}
		ms.TotalTrades++
		switch {
		case t.NetPnL.IsPositive():
			ms.WinningTrades++
			ms.TotalProfit = ms.TotalProfit.Add(t.NetPnL)
		case t.NetPnL.IsNegative():
			ms.LosingTrades++
			ms.TotalLoss = ms.TotalLoss.Add(t.NetPnL.Abs())
		}
		ms.NetProfit = ms.NetProfit.Add(t.NetPnL)
	}
}

func (c *Calculator) perStock(trades []RoundTrip, stats *Statistics) {
	for _, t := range trades {
		key := t.FullCode()
		ss, ok := stats.StockStats[key]
		if !ok {
			ss = &StockStats{Market: t.Market, Code: t.Code, StockName: t.StockName}
			stats.StockStats[key] = ss
		}
		ss.TradeCount++
		if t.NetPnL.IsPositive() {
			ss.WinningTrades++
		}
		ss.NetProfit = ss.NetProfit.Add(t.NetPnL)
	}
}

func (c *Calculator) rankings(trades []RoundTrip, stats *Statistics) {
	sorted := make([]RoundTrip, len(trades))
	copy(sorted, trades)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].NetPnL.GreaterThan(sorted[j].NetPnL)
	})

	for i := 0; i < len(sorted) && i < c.TopN; i++ {
		if sorted[i].NetPnL.IsPositive() {
			stats.TopWinners = append(stats.TopWinners, sorted[i])
		}
	}
	for i := 0; i < len(sorted) && i < c.TopN; i++ {
		t := sorted[len(sorted)-1-i]
		if t.NetPnL.IsNegative() {
			stats.TopLosers = append(stats.TopLosers, t)
		}
	}
}

func (c *Calculator) histogram(trades []RoundTrip, stats *Statistics) {
	buckets := make([]RatioBucket, len(ratioBuckets))
	copy(buckets, ratioBuckets)
	for _, t := range trades {
		ratio, _ := t.PnLRatio.Float64()
		for i := range buckets {
			if ratio >= buckets[i].Min && ratio < buckets[i].Max {
				buckets[i].Count++
				break
			}
		}
	}
	stats.RatioBuckets = buckets
}

func (c *Calculator) monthly(trades []RoundTrip, stats *Statistics) {
	byMonth := map[string]*MonthlyStats{}
	for _, t := range trades {
		ym := t.ExitTime.Format("2006-01")
		ms, ok := byMonth[ym]
		if !ok {
			ms = &MonthlyStats{YearMonth: ym}
			byMonth[ym] = ms
		}
		ms.TradeCount++
		if t.NetPnL.IsPositive() {
			ms.WinningTrades++
		}
		ms.NetProfit = ms.NetProfit.Add(t.NetPnL)
	}

	months := make([]string, 0, len(byMonth))
	for ym := range byMonth {
		months = append(months, ym)
	}
	sort.Strings(months)
	for _, ym := range months {
		stats.Monthly = append(stats.Monthly, *byMonth[ym])
	}
}

// TopTradedStocks returns the most frequently traded symbols.
func TopTradedStocks(stats Statistics, topN int) []StockStats {
	out := make([]StockStats, 0, len(stats.StockStats))
	for _, ss := range stats.StockStats {
		out = append(out, *ss)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TradeCount > out[j].TradeCount })
	if len(out) > topN {
		out = out[:topN]
	}
	return out
}

// MostProfitableStocks returns the symbols with the highest net profit.
func MostProfitableStocks(stats Statistics, topN int) []StockStats {
	out := make([]StockStats, 0, len(stats.StockStats))
	for _, ss := range stats.StockStats {
		out = append(out, *ss)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NetProfit.GreaterThan(out[j].NetProfit) })
	if len(out) > topN {
		out = out[:topN]
	}
	return out
}
