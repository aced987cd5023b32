package backtest

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"invest-analyzer/internal/model"
)

// TradeLogEntry 回测成交（或被拒绝的意图）记录
type TradeLogEntry struct {
	Time        time.Time       `json:"time"`
	Code        string          `json:"code"`
	Side        IntentType      `json:"side"`
	Qty         decimal.Decimal `json:"qty"`
	Price       decimal.Decimal `json:"price"`
	Fee         decimal.Decimal `json:"fee"`
	RealizedPnL decimal.Decimal `json:"realized_pnl"`
	Rejected    bool            `json:"rejected"`
	Reason      string          `json:"reason,omitempty"`
}

// EquityPoint 净值曲线上的一个点
type EquityPoint struct {
	Date   time.Time       `json:"date"`
	Equity decimal.Decimal `json:"equity"`
}

// Metrics 回测绩效指标
type Metrics struct {
	TotalReturn    decimal.Decimal `json:"total_return"`
	TotalReturnPct float64         `json:"total_return_pct"`
	CAGR           float64         `json:"cagr"`
	Sharpe         float64         `json:"sharpe"`
	Sortino        float64         `json:"sortino"`
	Calmar         float64         `json:"calmar"`
	MaxDrawdown    decimal.Decimal `json:"max_drawdown"`
	MaxDrawdownPct float64         `json:"max_drawdown_pct"`
	TotalTrades    int             `json:"total_trades"`
	WinningTrades  int             `json:"winning_trades"`
	WinRate        float64         `json:"win_rate"`
}

// Result 回测结果
type Result struct {
	StrategyName string          `json:"strategy_name"`
	InitialCash  decimal.Decimal `json:"initial_cash"`
	FinalEquity  decimal.Decimal `json:"final_equity"`
	EquityCurve  []EquityPoint   `json:"equity_curve"`
	Trades       []TradeLogEntry `json:"trades"`
	Metrics      Metrics         `json:"metrics"`
}

// Engine 单线程回测引擎。意图在当根K线收盘价成交，无滑点基线；
// 会导致现金为负的买入被拒绝并记入交易日志。
type Engine struct {
	strategy    Strategy
	initialCash decimal.Decimal
	feeRate     decimal.Decimal

	cash        decimal.Decimal
	positions   map[string]PositionState
	equityCurve []EquityPoint
	trades      []TradeLogEntry
	logReturns  []float64
}

func NewEngine(strategy Strategy, initialCash, feeRate decimal.Decimal) *Engine {
	return &Engine{
		strategy:    strategy,
		initialCash: initialCash,
		feeRate:     feeRate,
	}
}

// Run replays the bars in order. Bars must be ascending by date.
func (e *Engine) Run(bars []model.Bar) Result {
	e.cash = e.initialCash
	e.positions = map[string]PositionState{}
	e.equityCurve = nil
	e.trades = nil
	e.logReturns = nil

	prevEquity := e.initialCash

	for i, bar := range bars {
		ctx := &Context{Cash: e.cash, Positions: e.clonePositions(), BarIndex: i}
		intents := e.strategy.OnBar(ctx, bar)
		for _, intent := range intents {
			e.execute(intent, bar)
		}

		equity := e.equity(bar)
		e.equityCurve = append(e.equityCurve, EquityPoint{Date: bar.TradeDate, Equity: equity})

		if prevEquity.IsPositive() && equity.IsPositive() {
			pe, _ := prevEquity.Float64()
			ce, _ := equity.Float64()
			e.logReturns = append(e.logReturns, math.Log(ce/pe))
		}
		prevEquity = equity
	}

	finalCtx := &Context{Cash: e.cash, Positions: e.clonePositions(), BarIndex: len(bars)}
	e.strategy.OnEnd(finalCtx)

	finalEquity := e.initialCash
	if len(bars) > 0 {
		finalEquity = e.equity(bars[len(bars)-1])
	}

	res := Result{
		StrategyName: e.strategy.Name(),
		InitialCash:  e.initialCash,
		FinalEquity:  finalEquity,
		EquityCurve:  e.equityCurve,
		Trades:       e.trades,
	}
	res.Metrics = e.metrics(res, bars)
	return res
}

func (e *Engine) clonePositions() map[string]PositionState {
	out := make(map[string]PositionState, len(e.positions))
	for k, v := range e.positions {
		out[k] = v
	}
	return out
}

// equity is cash plus every position marked at the bar close.
func (e *Engine) equity(bar model.Bar) decimal.Decimal {
	total := e.cash
	for _, p := range e.positions {
		total = total.Add(p.Qty.Mul(bar.Close))
	}
	return total
}

func (e *Engine) execute(intent Intent, bar model.Bar) {
	code := bar.FullCode()
	price := bar.Close

	switch intent.Type {
	case IntentBuy:
		cost := intent.Qty.Mul(price)
		fee := cost.Mul(e.feeRate)
		if cost.Add(fee).GreaterThan(e.cash) {
			e.trades = append(e.trades, TradeLogEntry{
				Time: bar.TradeDate, Code: code, Side: IntentBuy,
				Qty: intent.Qty, Price: price,
				Rejected: true, Reason: "insufficient cash",
			})
			return
		}
		e.cash = e.cash.Sub(cost).Sub(fee)

		p := e.positions[code]
		newQty := p.Qty.Add(intent.Qty)
		p.AvgCost = p.AvgCost.Mul(p.Qty).Add(cost).Div(newQty)
		p.Qty = newQty
		e.positions[code] = p

		e.trades = append(e.trades, TradeLogEntry{
			Time: bar.TradeDate, Code: code, Side: IntentBuy,
			Qty: intent.Qty, Price: price, Fee: fee, Reason: intent.Reason,
		})

	case IntentSell:
		p, ok := e.positions[code]
		if !ok || !p.Qty.IsPositive() {
			e.trades = append(e.trades, TradeLogEntry{
				Time: bar.TradeDate, Code: code, Side: IntentSell,
				Qty: intent.Qty, Price: price,
				Rejected: true, Reason: "no position",
			})
			return
		}
		qty := decimal.Min(intent.Qty, p.Qty)
		proceeds := qty.Mul(price)
		fee := proceeds.Mul(e.feeRate)
		realized := price.Sub(p.AvgCost).Mul(qty).Sub(fee)

		e.cash = e.cash.Add(proceeds).Sub(fee)
		p.Qty = p.Qty.Sub(qty)
		if p.Qty.IsZero() {
			delete(e.positions, code)
		} else {
			e.positions[code] = p
		}

		e.trades = append(e.trades, TradeLogEntry{
			Time: bar.TradeDate, Code: code, Side: IntentSell,
			Qty: qty, Price: price, Fee: fee, RealizedPnL: realized, Reason: intent.Reason,
		})
	}
}

const tradingDaysPerYear = 252

func (e *Engine) metrics(res Result, bars []model.Bar) Metrics {
	var m Metrics
	m.TotalReturn = res.FinalEquity.Sub(res.InitialCash)
	if res.InitialCash.IsPositive() {
		pct, _ := m.TotalReturn.Div(res.InitialCash).Float64()
		m.TotalReturnPct = pct
	}

	if len(bars) > 1 {
		days := bars[len(bars)-1].TradeDate.Sub(bars[0].TradeDate).Hours() / 24
		if days > 0 && m.TotalReturnPct > -1 {
			years := days / 365.0
			m.CAGR = math.Pow(1+m.TotalReturnPct, 1/years) - 1
		}
	}

	// Max drawdown over the equity curve.
	if len(res.EquityCurve) > 0 {
		peak := res.EquityCurve[0].Equity
		for _, pt := range res.EquityCurve {
			if pt.Equity.GreaterThan(peak) {
				peak = pt.Equity
			}
			dd := peak.Sub(pt.Equity)
			if dd.GreaterThan(m.MaxDrawdown) {
				m.MaxDrawdown = dd
				if peak.IsPositive() {
					pct, _ := dd.Div(peak).Float64()
					m.MaxDrawdownPct = pct
				}
			}
		}
	}

	// Sharpe / Sortino from daily log-returns, rf = 0.
	if len(e.logReturns) > 1 {
		mean := 0.0
		for _, r := range e.logReturns {
			mean += r
		}
		mean /= float64(len(e.logReturns))

		variance := 0.0
		for _, r := range e.logReturns {
			variance += (r - mean) * (r - mean)
		}
		std := math.Sqrt(variance / float64(len(e.logReturns)))
		if std > 0 {
			m.Sharpe = mean / std * math.Sqrt(tradingDaysPerYear)
		}

		var downside []float64
		for _, r := range e.logReturns {
			if r < 0 {
				downside = append(downside, r)
			}
		}
		if len(downside) > 0 {
			dMean := 0.0
			for _, r := range downside {
				dMean += r
			}
			dMean /= float64(len(downside))
			dVar := 0.0
			for _, r := range downside {
				dVar += (r - dMean) * (r - dMean)
			}
			dStd := math.Sqrt(dVar / float64(len(downside)))
			if dStd > 0 {
				m.Sortino = mean / dStd * math.Sqrt(tradingDaysPerYear)
			}
		}
	}

	if m.MaxDrawdownPct > 0 {
		m.Calmar = m.CAGR / m.MaxDrawdownPct
	}

	for _, t := range res.Trades {
		if t.Rejected || t.Side != IntentSell {
			continue
		}
		m.TotalTrades++
		if t.RealizedPnL.IsPositive() {
			m.WinningTrades++
		}
	}
	if m.TotalTrades > 0 {
		m.WinRate = float64(m.WinningTrades) / float64(m.TotalTrades)
	}
	return m
}
