package pattern

import (
	"math"
	"sort"

	"invest-analyzer/internal/series"
)

// TrendDirection 趋势方向
type TrendDirection string

const (
	TrendUp   TrendDirection = "UP"
	TrendDown TrendDirection = "DOWN"
	TrendFlat TrendDirection = "FLAT"
)

// Trendline 一条检测到的趋势线
type Trendline struct {
	Type       LevelType      `json:"type"` // SUPPORT connects lows, RESISTANCE connects highs
	Direction  TrendDirection `json:"direction"`
	Slope      float64        `json:"slope"`
	Intercept  float64        `json:"intercept"`
	StartIdx   int            `json:"start_idx"`
	EndIdx     int            `json:"end_idx"`
	Touches    int            `json:"touches"`
	TouchIdxs  []int          `json:"touch_idxs"`
	Breaches   int            `json:"breaches"`
	RSquared   float64        `json:"r_squared"`
	CurPrice   float64        `json:"current_price"`
	Strength   float64        `json:"strength"`
	Broken     bool           `json:"broken"`
}

// PriceAt 返回趋势线在 idx 处的价格
func (t Trendline) PriceAt(idx int) float64 {
	return t.Slope*float64(idx) + t.Intercept
}

// TrendlineConfig 趋势线检测参数
type TrendlineConfig struct {
	Window        int
	MinTouches    int
	MaxDeviation  float64 // touch tolerance, fraction of line price
	MaxBreaches   int     // violations allowed before the line is rejected
	Lookback      int
	MinSlope      float64
	MaxTrendlines int
	MinPointGap   int
}

func DefaultTrendlineConfig() TrendlineConfig {
	return TrendlineConfig{
		Window:        5,
		MinTouches:    2,
		MaxDeviation:  0.02,
		MaxBreaches:   2,
		Lookback:      60,
		MinSlope:      0.0001,
		MaxTrendlines: 4,
		MinPointGap:   5,
	}
}

// TrendlineResult 趋势线分析结果
type TrendlineResult struct {
	Trendlines        []Trendline    `json:"trendlines"`
	PrimarySupport    *Trendline     `json:"primary_support,omitempty"`
	PrimaryResistance *Trendline     `json:"primary_resistance,omitempty"`
	OverallTrend      TrendDirection `json:"overall_trend"`
}

// Trendlines fits lines through confirmed swing lows (uptrend support) and
// swing highs (downtrend resistance), scoring each by touches and fit.
func Trendlines(s *series.Series, cfg TrendlineConfig) TrendlineResult {
	res := TrendlineResult{OverallTrend: TrendFlat}
	if s.Len() < cfg.Window*2+2 {
		return res
	}
	w := s.Tail(cfg.Lookback)
	n := w.Len()

	swingHighs := findExtremePoints(w.High, cfg.Window, true)
	swingLows := findExtremePoints(w.Low, cfg.Window, false)

	resistance := fitTrendlines(swingHighs, w.High, LevelResistance, cfg)
	support := fitTrendlines(swingLows, w.Low, LevelSupport, cfg)

	all := append(resistance, support...)
	lastClose := w.Close[n-1]
	for i := range all {
		all[i].CurPrice = all[i].PriceAt(n - 1)
		if all[i].Type == LevelResistance {
			all[i].Broken = lastClose > all[i].CurPrice*1.01
		} else {
			all[i].Broken = lastClose < all[i].CurPrice*0.99
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Strength > all[j].Strength })

	if len(all) > cfg.MaxTrendlines {
		res.Trendlines = all[:cfg.MaxTrendlines]
	} else {
		res.Trendlines = all
	}

	for i := range all {
		l := all[i]
		if l.Broken {
			continue
		}
		if l.Type == LevelSupport && res.PrimarySupport == nil {
			res.PrimarySupport = &all[i]
		}
		if l.Type == LevelResistance && res.PrimaryResistance == nil {
			res.PrimaryResistance = &all[i]
		}
	}

	if len(all) > 0 {
		avgSlope := 0.0
		for _, l := range all {
			avgSlope += l.Slope
		}
		avgSlope /= float64(len(all))
		switch {
		case avgSlope > cfg.MinSlope:
			res.OverallTrend = TrendUp
		case avgSlope < -cfg.MinSlope:
			res.OverallTrend = TrendDown
		}
	}
	return res
}

func fitTrendlines(points []extremePoint, prices series.Column, lt LevelType, cfg TrendlineConfig) []Trendline {
	if len(points) < 2 {
		return nil
	}
	var lines []Trendline

	for i := 0; i < len(points); i++ {
		for j := i + 1; j < len(points); j++ {
			p1, p2 := points[i], points[j]
			if p2.idx-p1.idx < cfg.MinPointGap {
				continue
			}

			slope := (p2.price - p1.price) / float64(p2.idx-p1.idx)
			intercept := p1.price - slope*float64(p1.idx)

			touches, touchIdxs, breaches := evaluateLine(prices, slope, intercept, lt, cfg)
			if breaches > cfg.MaxBreaches || touches < cfg.MinTouches {
				continue
			}

			line := Trendline{
				Type:      lt,
				Slope:     slope,
				Intercept: intercept,
				StartIdx:  p1.idx,
				EndIdx:    p2.idx,
				Touches:   touches,
				TouchIdxs: touchIdxs,
				Breaches:  breaches,
				RSquared:  touchRSquared(prices, touchIdxs, slope, intercept),
			}
			switch {
			case slope > cfg.MinSlope:
				line.Direction = TrendUp
			case slope < -cfg.MinSlope:
				line.Direction = TrendDown
			default:
				line.Direction = TrendFlat
			}
			line.Strength = trendlineStrength(line, len(prices))
			lines = append(lines, line)
		}
	}
	return dedupeLines(lines)
}

func evaluateLine(prices series.Column, slope, intercept float64, lt LevelType, cfg TrendlineConfig) (touches int, touchIdxs []int, breaches int) {
	for k := 0; k < len(prices); k++ {
		linePrice := slope*float64(k) + intercept
		if linePrice == 0 {
			continue
		}
		dev := (prices[k] - linePrice) / linePrice
		if math.Abs(dev) < cfg.MaxDeviation {
			touches++
			touchIdxs = append(touchIdxs, k)
		}
		// A breach is a close-side violation beyond twice the tolerance.
		if lt == LevelSupport && dev < -cfg.MaxDeviation*2 {
			breaches++
		}
		if lt == LevelResistance && dev > cfg.MaxDeviation*2 {
			breaches++
		}
	}
	return touches, touchIdxs, breaches
}

// touchRSquared measures how tightly the touched prices hug the line.
func touchRSquared(prices series.Column, touchIdxs []int, slope, intercept float64) float64 {
	if len(touchIdxs) < 2 {
		return 0
	}
	mean := 0.0
	for _, k := range touchIdxs {
		mean += prices[k]
	}
	mean /= float64(len(touchIdxs))

	var ssRes, ssTot float64
	for _, k := range touchIdxs {
		fit := slope*float64(k) + intercept
		ssRes += (prices[k] - fit) * (prices[k] - fit)
		ssTot += (prices[k] - mean) * (prices[k] - mean)
	}
	if ssTot == 0 {
		return 1
	}
	r2 := 1 - ssRes/ssTot
	if r2 < 0 {
		return 0
	}
	return r2
}

func trendlineStrength(l Trendline, dataLen int) float64 {
	strength := 20.0

	touchBonus := float64(l.Touches-1) * 5
	if touchBonus > 35 {
		touchBonus = 35
	}
	strength += touchBonus

	strength += l.RSquared * 15

	if len(l.TouchIdxs) > 0 {
		lastTouch := l.TouchIdxs[len(l.TouchIdxs)-1]
		recency := float64(dataLen-lastTouch) / float64(dataLen)
		switch {
		case recency < 0.1:
			strength += 20
		case recency < 0.2:
			strength += 15
		case recency < 0.3:
			strength += 10
		case recency < 0.5:
			strength += 5
		}

		span := l.TouchIdxs[len(l.TouchIdxs)-1] - l.TouchIdxs[0]
		spanRatio := float64(span) / float64(dataLen)
		switch {
		case spanRatio > 0.7:
			strength += 10
		case spanRatio > 0.5:
			strength += 7
		case spanRatio > 0.3:
			strength += 3
		}
	}

	if strength > 100 {
		strength = 100
	}
	return strength
}

func dedupeLines(lines []Trendline) []Trendline {
	var unique []Trendline
	for _, line := range lines {
		replaced := false
		dup := false
		for u := range unique {
			if math.Abs(line.Slope-unique[u].Slope) < 0.001 && math.Abs(line.Intercept-unique[u].Intercept) < 1 {
				if line.Strength > unique[u].Strength {
					unique[u] = line
					replaced = true
				}
				dup = true
				break
			}
		}
		if !dup && !replaced {
			unique = append(unique, line)
		}
	}
	return unique
}
