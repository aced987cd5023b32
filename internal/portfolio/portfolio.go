// Package portfolio computes per-position metrics, market allocation and
// risk measures over a set of position snapshots.
package portfolio

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"invest-analyzer/internal/model"
)

// RiskLevel 集中度风险分级
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskVeryHigh RiskLevel = "VERY_HIGH"
)

// Config 分析阈值，全部可配置
type Config struct {
	TopNPerformers     int
	SingleWeightWarn   float64 // warn when one position exceeds this weight
	MediumWeightBand   float64 // concentration bands on the largest weight
	HighWeightBand     float64
	VeryHighWeightBand float64
	HHIWarn            float64
	MinPositions       int
	Top5Warn           float64
	LossRatioWarn      float64 // warn when a position's pl_ratio is below this
}

func DefaultConfig() Config {
	return Config{
		TopNPerformers:     5,
		SingleWeightWarn:   0.20,
		MediumWeightBand:   0.10,
		HighWeightBand:     0.20,
		VeryHighWeightBand: 0.30,
		HHIWarn:            2500,
		MinPositions:       5,
		Top5Warn:           0.80,
		LossRatioWarn:      -0.20,
	}
}

// PositionMetrics 单个持仓的衍生指标。Weight 为 0..1 的组合权重。
type PositionMetrics struct {
	Market      model.Market       `json:"market"`
	Code        string             `json:"code"`
	Name        string             `json:"name,omitempty"`
	Qty         decimal.Decimal    `json:"qty"`
	CostPrice   decimal.Decimal    `json:"cost_price"`
	MarketPrice decimal.Decimal    `json:"market_price"`
	MarketValue decimal.Decimal    `json:"market_value"`
	CostValue   decimal.Decimal    `json:"cost_value"`
	PLValue     decimal.Decimal    `json:"pl_value"`
	PLRatio     float64            `json:"pl_ratio"` // fraction
	Weight      float64            `json:"weight"`   // fraction of portfolio market value
	Side        model.PositionSide `json:"position_side"`
}

func (m PositionMetrics) FullCode() string {
	return fmt.Sprintf("%s.%s", m.Market, m.Code)
}

// Summary 组合汇总
type Summary struct {
	PositionCount    int             `json:"position_count"`
	LongCount        int             `json:"long_count"`
	ShortCount       int             `json:"short_count"`
	ProfitableCount  int             `json:"profitable_count"`
	LosingCount      int             `json:"losing_count"`
	WinRate          float64         `json:"win_rate"` // fraction of positions with pl_value > 0
	TotalMarketValue decimal.Decimal `json:"total_market_value"`
	TotalCostValue   decimal.Decimal `json:"total_cost_value"`
	TotalPLValue     decimal.Decimal `json:"total_pl_value"`
	TotalPLRatio     float64         `json:"total_pl_ratio"`
	LargestWeight    float64         `json:"largest_weight"`
	Top5Weight       float64         `json:"top5_weight"`
	AvgPositionSize  decimal.Decimal `json:"avg_position_size"`
	CashBalance      decimal.Decimal `json:"cash_balance,omitempty"`
	TotalAssets      decimal.Decimal `json:"total_assets,omitempty"`
	CashWeight       float64         `json:"cash_weight,omitempty"`
}

// MarketAllocation 按市场分组
type MarketAllocation struct {
	Market        model.Market    `json:"market"`
	PositionCount int             `json:"position_count"`
	MarketValue   decimal.Decimal `json:"market_value"`
	Weight        float64         `json:"weight"`
	PLValue       decimal.Decimal `json:"pl_value"`
	PLRatio       float64         `json:"pl_ratio"`
}

// RiskMetrics 组合风险指标
type RiskMetrics struct {
	ConcentrationRisk    RiskLevel       `json:"concentration_risk"`
	DiversificationScore float64         `json:"diversification_score"` // 0-100
	HHI                  float64         `json:"hhi"`                   // 0-10000
	LargestLossPosition  string          `json:"largest_loss_position,omitempty"`
	LargestLossRatio     float64         `json:"largest_loss_ratio"`
	TotalUnrealizedLoss  decimal.Decimal `json:"total_unrealized_loss"`
	PositionsAtLossRatio float64         `json:"positions_at_loss_ratio"`
	Signals              []string        `json:"signals,omitempty"`
}

// Result 完整分析结果。Top/Bottom 持有 Positions 的下标，不做反向引用。
type Result struct {
	AnalysisDate     time.Time          `json:"analysis_date"`
	Summary          Summary            `json:"summary"`
	Positions        []PositionMetrics  `json:"positions"`
	MarketAllocation []MarketAllocation `json:"market_allocation"`
	Risk             RiskMetrics        `json:"risk_metrics"`
	TopPerformers    []int              `json:"top_performers"`
	BottomPerformers []int              `json:"bottom_performers"`
	Signals          []string           `json:"signals,omitempty"`
}

// Analyzer 组合分析器，无状态、线程安全
type Analyzer struct {
	cfg Config
}

func NewAnalyzer(cfg Config) *Analyzer {
	return &Analyzer{cfg: cfg}
}

// Analyze computes the full result. Positions with zero qty are ignored.
func (a *Analyzer) Analyze(positions []model.Position, snapshot *model.AccountSnapshot, analysisDate time.Time) Result {
	res := Result{AnalysisDate: analysisDate}

	active := make([]model.Position, 0, len(positions))
	for _, p := range positions {
		if !p.Qty.IsZero() {
			active = append(active, p)
		}
	}
	if len(active) == 0 {
		res.Signals = append(res.Signals, "no active positions in portfolio")
		if snapshot != nil {
			res.Summary.CashBalance = snapshot.Cash
			res.Summary.TotalAssets = snapshot.TotalAssets
		}
		return res
	}

	res.Positions = a.positionMetrics(active)
	res.Summary = a.summary(res.Positions, snapshot)
	res.MarketAllocation = a.marketAllocation(res.Positions, res.Summary)
	res.Risk = a.riskMetrics(res.Positions, res.Summary)
	res.TopPerformers, res.BottomPerformers = a.rankPerformers(res.Positions)
	res.Signals = a.signals(res.Summary, res.Risk)
	return res
}

func (a *Analyzer) positionMetrics(positions []model.Position) []PositionMetrics {
	totalMV := decimal.Zero
	for _, p := range positions {
		mv := marketValue(p)
		if mv.IsPositive() {
			totalMV = totalMV.Add(mv)
		}
	}

	out := make([]PositionMetrics, 0, len(positions))
	for _, p := range positions {
		mv := marketValue(p)
		costVal := p.CostPrice.Mul(p.Qty)

		plVal := p.PLValue
		if plVal.IsZero() && !costVal.IsZero() {
			plVal = mv.Sub(costVal).Mul(decimal.NewFromInt(p.Side.Sign()))
		}
		plRatio, _ := p.PLRatio.Float64()
		if plRatio == 0 && !costVal.IsZero() {
			r, _ := plVal.Div(costVal).Float64()
			plRatio = r
		}

		weight := 0.0
		if totalMV.IsPositive() && mv.IsPositive() {
			weight, _ = mv.Div(totalMV).Float64()
		}

		out = append(out, PositionMetrics{
			Market:      p.Market,
			Code:        p.Code,
			Name:        p.StockName,
			Qty:         p.Qty,
			CostPrice:   p.CostPrice,
			MarketPrice: p.MarketPrice,
			MarketValue: mv,
			CostValue:   costVal,
			PLValue:     plVal,
			PLRatio:     plRatio,
			Weight:      weight,
			Side:        p.Side,
		})
	}
	return out
}

func marketValue(p model.Position) decimal.Decimal {
	if !p.MarketValue.IsZero() {
		return p.MarketValue
	}
	return p.MarketPrice.Mul(p.Qty)
}

func (a *Analyzer) summary(metrics []PositionMetrics, snapshot *model.AccountSnapshot) Summary {
	var s Summary
	s.PositionCount = len(metrics)

	for _, m := range metrics {
		if m.Side == model.SideShort {
			s.ShortCount++
		} else {
			s.LongCount++
		}
		if m.PLValue.IsPositive() {
			s.ProfitableCount++
		} else if m.PLValue.IsNegative() {
			s.LosingCount++
		}
		s.TotalMarketValue = s.TotalMarketValue.Add(m.MarketValue)
		s.TotalCostValue = s.TotalCostValue.Add(m.CostValue)
		s.TotalPLValue = s.TotalPLValue.Add(m.PLValue)
	}

	if s.PositionCount > 0 {
		s.WinRate = float64(s.ProfitableCount) / float64(s.PositionCount)
		s.AvgPositionSize = s.TotalMarketValue.Div(decimal.NewFromInt(int64(s.PositionCount)))
	}
	if s.TotalCostValue.IsPositive() {
		s.TotalPLRatio, _ = s.TotalPLValue.Div(s.TotalCostValue).Float64()
	}

	weights := make([]float64, len(metrics))
	for i, m := range metrics {
		weights[i] = m.Weight
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(weights)))
	if len(weights) > 0 {
		s.LargestWeight = weights[0]
		for i := 0; i < len(weights) && i < 5; i++ {
			s.Top5Weight += weights[i]
		}
	}

	if snapshot != nil {
		s.CashBalance = snapshot.Cash
		s.TotalAssets = snapshot.TotalAssets
		if snapshot.TotalAssets.IsPositive() {
			s.CashWeight, _ = snapshot.Cash.Div(snapshot.TotalAssets).Float64()
		}
	}
	return s
}

func (a *Analyzer) marketAllocation(metrics []PositionMetrics, s Summary) []MarketAllocation {
	groups := map[model.Market][]PositionMetrics{}
	for _, m := range metrics {
		groups[m.Market] = append(groups[m.Market], m)
	}

	out := make([]MarketAllocation, 0, len(groups))
	for market, group := range groups {
		alloc := MarketAllocation{Market: market, PositionCount: len(group)}
		cost := decimal.Zero
		for _, m := range group {
			alloc.MarketValue = alloc.MarketValue.Add(m.MarketValue)
			alloc.PLValue = alloc.PLValue.Add(m.PLValue)
			cost = cost.Add(m.CostValue)
		}
		if s.TotalMarketValue.IsPositive() {
			alloc.Weight, _ = alloc.MarketValue.Div(s.TotalMarketValue).Float64()
		}
		if cost.IsPositive() {
			alloc.PLRatio, _ = alloc.PLValue.Div(cost).Float64()
		}
		out = append(out, alloc)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].MarketValue.GreaterThan(out[j].MarketValue)
	})
	return out
}

func (a *Analyzer) riskMetrics(metrics []PositionMetrics, s Summary) RiskMetrics {
	var r RiskMetrics

	for _, m := range metrics {
		r.HHI += m.Weight * m.Weight * 10000
	}

	// Perfect diversification for n positions is HHI = 10000/n.
	minHHI := 10000.0 / float64(len(metrics))
	if r.HHI > minHHI {
		r.DiversificationScore = 100 * (1 - (r.HHI-minHHI)/(10000-minHHI))
		if r.DiversificationScore < 0 {
			r.DiversificationScore = 0
		}
	} else {
		r.DiversificationScore = 100
	}

	switch {
	case s.LargestWeight >= a.cfg.VeryHighWeightBand:
		r.ConcentrationRisk = RiskVeryHigh
	case s.LargestWeight >= a.cfg.HighWeightBand:
		r.ConcentrationRisk = RiskHigh
	case s.LargestWeight >= a.cfg.MediumWeightBand:
		r.ConcentrationRisk = RiskMedium
	default:
		r.ConcentrationRisk = RiskLow
	}

	losing := 0
	for _, m := range metrics {
		if m.PLValue.IsNegative() {
			losing++
			r.TotalUnrealizedLoss = r.TotalUnrealizedLoss.Add(m.PLValue)
		}
		if m.PLRatio < r.LargestLossRatio {
			r.LargestLossRatio = m.PLRatio
			r.LargestLossPosition = m.FullCode()
		}
	}
	r.PositionsAtLossRatio = float64(losing) / float64(len(metrics))

	if r.ConcentrationRisk == RiskHigh || r.ConcentrationRisk == RiskVeryHigh {
		r.Signals = append(r.Signals,
			fmt.Sprintf("high concentration risk: largest position is %.1f%%", s.LargestWeight*100))
	}
	if r.HHI > a.cfg.HHIWarn {
		r.Signals = append(r.Signals, fmt.Sprintf("portfolio is highly concentrated (HHI: %.0f)", r.HHI))
	}
	if r.PositionsAtLossRatio > 0.5 {
		r.Signals = append(r.Signals,
			fmt.Sprintf("%.0f%% of positions are at loss", r.PositionsAtLossRatio*100))
	}
	if r.LargestLossRatio < a.cfg.LossRatioWarn {
		r.Signals = append(r.Signals,
			fmt.Sprintf("large loss position: %s (%.1f%%)", r.LargestLossPosition, r.LargestLossRatio*100))
	}
	return r
}

// rankPerformers orders by pl_ratio, ties broken by absolute pl_value then
// code ascending, and returns index slices into the metrics array.
func (a *Analyzer) rankPerformers(metrics []PositionMetrics) (top, bottom []int) {
	idxs := make([]int, len(metrics))
	for i := range idxs {
		idxs[i] = i
	}
	sort.SliceStable(idxs, func(x, y int) bool {
		mx, my := metrics[idxs[x]], metrics[idxs[y]]
		if mx.PLRatio != my.PLRatio {
			return mx.PLRatio > my.PLRatio
		}
		ax, ay := mx.PLValue.Abs(), my.PLValue.Abs()
		if !ax.Equal(ay) {
			return ax.GreaterThan(ay)
		}
		return mx.Code < my.Code
	})

	n := a.cfg.TopNPerformers
	if n > len(idxs) {
		n = len(idxs)
	}
	top = append(top, idxs[:n]...)
	for i := 0; i < n; i++ {
		bottom = append(bottom, idxs[len(idxs)-1-i])
	}
	return top, bottom
}

func (a *Analyzer) signals(s Summary, r RiskMetrics) []string {
	var signals []string

	if s.TotalPLRatio > 0.20 {
		signals = append(signals, fmt.Sprintf("strong performance: %.1f%% total gain", s.TotalPLRatio*100))
	} else if s.TotalPLRatio < -0.10 {
		signals = append(signals, fmt.Sprintf("underperforming: %.1f%% total loss", s.TotalPLRatio*100))
	}

	if s.WinRate >= 0.7 {
		signals = append(signals, fmt.Sprintf("high win rate: %.0f%% profitable positions", s.WinRate*100))
	} else if s.WinRate <= 0.3 {
		signals = append(signals, fmt.Sprintf("low win rate: %.0f%% profitable positions", s.WinRate*100))
	}

	if s.LargestWeight > a.cfg.SingleWeightWarn {
		signals = append(signals, fmt.Sprintf("single position >%.0f%% of portfolio", a.cfg.SingleWeightWarn*100))
	}
	if s.PositionCount < a.cfg.MinPositions {
		signals = append(signals, fmt.Sprintf("low diversification: fewer than %d positions", a.cfg.MinPositions))
	}
	if s.Top5Weight > a.cfg.Top5Warn {
		signals = append(signals, fmt.Sprintf("top 5 positions represent %.1f%% of portfolio", s.Top5Weight*100))
	}
	if s.CashWeight > 0.5 {
		signals = append(signals, fmt.Sprintf("high cash position: %.1f%%", s.CashWeight*100))
	}

	signals = append(signals, r.Signals...)
	return signals
}
