// Package pattern detects geometric price structures: support and
// resistance levels, trend lines, and the classic chart patterns.
package pattern

import (
	"math"
	"sort"

	"invest-analyzer/internal/series"
)

// LevelType 支撑/阻力类型
type LevelType string

const (
	LevelSupport    LevelType = "SUPPORT"
	LevelResistance LevelType = "RESISTANCE"
)

// PriceLevel 一条支撑或阻力位
type PriceLevel struct {
	Price         float64   `json:"price"`
	Type          LevelType `json:"type"`
	Touches       int       `json:"touches"`
	FirstTouchIdx int       `json:"first_touch_idx"`
	LastTouchIdx  int       `json:"last_touch_idx"`
	AvgVolume     float64   `json:"avg_volume"`
	Strength      float64   `json:"strength"`
}

// SRConfig 支撑阻力检测参数
type SRConfig struct {
	Window       int     // local extreme window
	Tolerance    float64 // price proximity for clustering, fraction
	MinTouches   int
	Lookback     int
	RecentWeight float64 // multiplier for levels touched recently
	TopK         int
}

func DefaultSRConfig() SRConfig {
	return SRConfig{
		Window:       5,
		Tolerance:    0.02,
		MinTouches:   2,
		Lookback:     120,
		RecentWeight: 1.5,
		TopK:         5,
	}
}

// SRResult 支撑阻力分析结果
type SRResult struct {
	Levels            []PriceLevel `json:"levels"`
	Supports          []PriceLevel `json:"supports"`
	Resistances       []PriceLevel `json:"resistances"`
	NearestSupport    float64      `json:"nearest_support"`    // 0 when none
	NearestResistance float64      `json:"nearest_resistance"` // 0 when none
}

// SupportResistance clusters swing extremes into levels and ranks them by
// strength = touches * recencyWeight.
func SupportResistance(s *series.Series, cfg SRConfig) SRResult {
	var res SRResult
	if s.Len() < cfg.Window*2+1 {
		return res
	}
	w := s.Tail(cfg.Lookback)
	n := w.Len()

	highs := findExtremePoints(w.High, cfg.Window, true)
	lows := findExtremePoints(w.Low, cfg.Window, false)

	resistances := clusterLevels(highs, w.Volume, LevelResistance, cfg, n)
	supports := clusterLevels(lows, w.Volume, LevelSupport, cfg, n)

	all := append(resistances, supports...)
	kept := all[:0]
	for _, l := range all {
		if l.Touches >= cfg.MinTouches {
			kept = append(kept, l)
		}
	}
	sort.Slice(kept, func(i, j int) bool { return kept[i].Strength > kept[j].Strength })
	res.Levels = kept

	lastClose := w.Close[n-1]
	for _, l := range kept {
		switch {
		case l.Type == LevelSupport && l.Price < lastClose:
			if len(res.Supports) < cfg.TopK {
				res.Supports = append(res.Supports, l)
			}
			if l.Price > res.NearestSupport {
				res.NearestSupport = l.Price
			}
		case l.Type == LevelResistance && l.Price > lastClose:
			if len(res.Resistances) < cfg.TopK {
				res.Resistances = append(res.Resistances, l)
			}
			if res.NearestResistance == 0 || l.Price < res.NearestResistance {
				res.NearestResistance = l.Price
			}
		}
	}
	return res
}

type extremePoint struct {
	idx   int
	price float64
}

func findExtremePoints(prices series.Column, window int, isHigh bool) []extremePoint {
	var points []extremePoint
	for i := window; i < len(prices)-window; i++ {
		var extreme float64
		if isHigh {
			extreme = series.Max(prices, i-window, i+window+1)
		} else {
			extreme = series.Min(prices, i-window, i+window+1)
		}
		if prices[i] == extreme {
			points = append(points, extremePoint{idx: i, price: prices[i]})
		}
	}
	return points
}

func clusterLevels(points []extremePoint, volume series.Column, lt LevelType, cfg SRConfig, dataLen int) []PriceLevel {
	used := make([]bool, len(points))
	var levels []PriceLevel

	for i, p := range points {
		if used[i] {
			continue
		}
		idxs := []int{p.idx}
		prices := []float64{p.price}
		vols := []float64{volume[p.idx]}
		used[i] = true

		for j, q := range points {
			if used[j] {
				continue
			}
			if math.Abs(q.price-p.price)/p.price < cfg.Tolerance {
				idxs = append(idxs, q.idx)
				prices = append(prices, q.price)
				vols = append(vols, volume[q.idx])
				used[j] = true
			}
		}

		first, last := idxs[0], idxs[0]
		var priceSum, volSum float64
		for k, idx := range idxs {
			if idx < first {
				first = idx
			}
			if idx > last {
				last = idx
			}
			priceSum += prices[k]
			volSum += vols[k]
		}

		level := PriceLevel{
			Price:         priceSum / float64(len(prices)),
			Type:          lt,
			Touches:       len(idxs),
			FirstTouchIdx: first,
			LastTouchIdx:  last,
			AvgVolume:     volSum / float64(len(vols)),
		}
		level.Strength = levelStrength(level, cfg, dataLen)
		levels = append(levels, level)
	}
	return levels
}

func levelStrength(l PriceLevel, cfg SRConfig, dataLen int) float64 {
	weight := 1.0
	recency := float64(dataLen-l.LastTouchIdx) / float64(dataLen)
	if recency < 0.2 {
		weight = cfg.RecentWeight
	}
	return float64(l.Touches) * weight
}
