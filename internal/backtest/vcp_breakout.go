package backtest

import (
	"fmt"

	"github.com/shopspring/decimal"

	"invest-analyzer/internal/model"
	"invest-analyzer/internal/series"
	"invest-analyzer/internal/vcp"
)

// VCPBreakoutConfig VCP 突破策略参数
type VCPBreakoutConfig struct {
	Detector        vcp.Config
	Window          int     // bars fed into the detector
	MinScore        float64 // minimum VCP score to trade
	TrailingStopPct float64 // exit when close falls this fraction below the post-entry high
	Qty             decimal.Decimal
}

func DefaultVCPBreakoutConfig() VCPBreakoutConfig {
	return VCPBreakoutConfig{
		Detector:        vcp.DefaultConfig(),
		Window:          90,
		MinScore:        60,
		TrailingStopPct: 0.08,
		Qty:             decimal.NewFromInt(100),
	}
}

// VCPBreakoutStrategy buys when a scored VCP pattern breaks above its
// pivot and exits on a fixed-percent trailing stop.
type VCPBreakoutStrategy struct {
	cfg      VCPBreakoutConfig
	detector *vcp.Detector
	bars     []model.Bar

	inPosition  bool
	highestHigh decimal.Decimal
}

func NewVCPBreakoutStrategy(cfg VCPBreakoutConfig) *VCPBreakoutStrategy {
	return &VCPBreakoutStrategy{
		cfg:      cfg,
		detector: vcp.NewDetector(cfg.Detector),
	}
}

func (s *VCPBreakoutStrategy) Name() string { return "VCPBreakout" }

func (s *VCPBreakoutStrategy) OnBar(ctx *Context, bar model.Bar) []Intent {
	s.bars = append(s.bars, bar)
	if len(s.bars) > s.cfg.Window {
		s.bars = s.bars[1:]
	}

	if s.inPosition {
		if bar.High.GreaterThan(s.highestHigh) {
			s.highestHigh = bar.High
		}
		stop := s.highestHigh.Mul(decimal.NewFromFloat(1 - s.cfg.TrailingStopPct))
		if bar.Close.LessThan(stop) {
			pos := ctx.Position(bar.FullCode())
			if pos.Qty.IsPositive() {
				s.inPosition = false
				return []Intent{{
					Type: IntentSell, Qty: pos.Qty,
					Reason: fmt.Sprintf("trailing stop below %s", stop.StringFixed(2)),
				}}
			}
			s.inPosition = false
		}
		return nil
	}

	if len(s.bars) < s.cfg.Window {
		return nil
	}
	win, err := series.New(s.bars)
	if err != nil {
		return nil
	}
	res := s.detector.Detect(win)
	if !res.IsVCP || res.Score < s.cfg.MinScore {
		return nil
	}
	closePx, _ := bar.Close.Float64()
	if closePx < res.PivotPrice {
		return nil
	}

	s.inPosition = true
	s.highestHigh = bar.High
	return []Intent{{
		Type: IntentBuy, Qty: s.cfg.Qty,
		Reason: fmt.Sprintf("VCP breakout (score %.0f, pivot %.2f)", res.Score, res.PivotPrice),
	}}
}

func (s *VCPBreakoutStrategy) OnEnd(ctx *Context) {}
