// Package backtest replays strategies over historical bars with cash and
// position accounting, producing an equity curve and performance stats.
package backtest

import (
	"fmt"

	"github.com/shopspring/decimal"

	"invest-analyzer/internal/model"
)

// IntentType 交易意图方向
type IntentType string

const (
	IntentBuy  IntentType = "BUY"
	IntentSell IntentType = "SELL"
)

// Intent 策略发出的交易意图，在当根K线收盘价成交
type Intent struct {
	Type   IntentType      `json:"type"`
	Qty    decimal.Decimal `json:"qty"`
	Reason string          `json:"reason,omitempty"`
}

// PositionState 回测中的持仓状态
type PositionState struct {
	Qty     decimal.Decimal `json:"qty"`
	AvgCost decimal.Decimal `json:"avg_cost"`
}

// Context exposes engine state to strategies, read-only by convention.
type Context struct {
	Cash      decimal.Decimal
	Positions map[string]PositionState
	BarIndex  int
}

// Position returns the state for a symbol, zero-valued when flat.
func (c *Context) Position(fullCode string) PositionState {
	return c.Positions[fullCode]
}

// Strategy 回测策略接口
type Strategy interface {
	Name() string
	OnBar(ctx *Context, bar model.Bar) []Intent
	OnEnd(ctx *Context)
}

// NewStrategy builds a strategy by type name from a loose config map.
func NewStrategy(strategyType string, config map[string]interface{}) (Strategy, error) {
	switch strategyType {
	case "ma_cross":
		cfg := DefaultMACrossConfig()
		if v, ok := config["short_period"].(float64); ok {
			cfg.ShortPeriod = int(v)
		}
		if v, ok := config["long_period"].(float64); ok {
			cfg.LongPeriod = int(v)
		}
		if v, ok := config["qty"].(float64); ok {
			cfg.Qty = decimal.NewFromFloat(v)
		}
		return NewMACrossStrategy(cfg), nil
	case "vcp_breakout":
		cfg := DefaultVCPBreakoutConfig()
		if v, ok := config["min_score"].(float64); ok {
			cfg.MinScore = v
		}
		if v, ok := config["trailing_stop_pct"].(float64); ok {
			cfg.TrailingStopPct = v
		}
		if v, ok := config["qty"].(float64); ok {
			cfg.Qty = decimal.NewFromFloat(v)
		}
		return NewVCPBreakoutStrategy(cfg), nil
	default:
		return nil, fmt.Errorf("unknown strategy type: %s", strategyType)
	}
}
