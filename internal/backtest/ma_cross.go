package backtest

import (
	"fmt"

	"github.com/shopspring/decimal"

	"invest-analyzer/internal/model"
)

// MACrossConfig 双均线策略参数
type MACrossConfig struct {
	ShortPeriod int
	LongPeriod  int
	Qty         decimal.Decimal // fixed position size per entry
}

func DefaultMACrossConfig() MACrossConfig {
	return MACrossConfig{ShortPeriod: 5, LongPeriod: 20, Qty: decimal.NewFromInt(100)}
}

// MACrossStrategy 双均线策略：短均线上穿长均线买入，下穿卖出。
type MACrossStrategy struct {
	cfg    MACrossConfig
	closes []decimal.Decimal
}

func NewMACrossStrategy(cfg MACrossConfig) *MACrossStrategy {
	return &MACrossStrategy{cfg: cfg}
}

func (s *MACrossStrategy) Name() string {
	return fmt.Sprintf("MACross(%d/%d)", s.cfg.ShortPeriod, s.cfg.LongPeriod)
}

func (s *MACrossStrategy) OnBar(ctx *Context, bar model.Bar) []Intent {
	s.closes = append(s.closes, bar.Close)
	if len(s.closes) > s.cfg.LongPeriod+1 {
		s.closes = s.closes[1:]
	}
	if len(s.closes) < s.cfg.LongPeriod+1 {
		return nil
	}

	shortMA := s.ma(s.cfg.ShortPeriod, 0)
	longMA := s.ma(s.cfg.LongPeriod, 0)
	prevShortMA := s.ma(s.cfg.ShortPeriod, 1)
	prevLongMA := s.ma(s.cfg.LongPeriod, 1)

	pos := ctx.Position(bar.FullCode())

	// Golden cross
	if prevShortMA.LessThanOrEqual(prevLongMA) && shortMA.GreaterThan(longMA) && !pos.Qty.IsPositive() {
		return []Intent{{
			Type: IntentBuy, Qty: s.cfg.Qty,
			Reason: fmt.Sprintf("golden cross: MA%d over MA%d", s.cfg.ShortPeriod, s.cfg.LongPeriod),
		}}
	}
	// Death cross
	if prevShortMA.GreaterThanOrEqual(prevLongMA) && shortMA.LessThan(longMA) && pos.Qty.IsPositive() {
		return []Intent{{
			Type: IntentSell, Qty: pos.Qty,
			Reason: fmt.Sprintf("death cross: MA%d under MA%d", s.cfg.ShortPeriod, s.cfg.LongPeriod),
		}}
	}
	return nil
}

func (s *MACrossStrategy) OnEnd(ctx *Context) {}

func (s *MACrossStrategy) ma(period, offset int) decimal.Decimal {
	end := len(s.closes) - offset
	start := end - period
	sum := decimal.Zero
	for i := start; i < end; i++ {
		sum = sum.Add(s.closes[i])
	}
	return sum.Div(decimal.NewFromInt(int64(period)))
}
