// Package vcp detects volatility contraction patterns: a sequence of
// pullbacks that narrow over time with volume drying up, ending near a
// pivot (breakout) price.
package vcp

import (
	"fmt"
	"math"

	"invest-analyzer/internal/series"
)

// Stage 形态所处阶段
type Stage string

const (
	StageNone     Stage = "none"
	StageForming  Stage = "forming"
	StageMature   Stage = "mature"
	StageBreakout Stage = "breakout"
)

// Contraction 一次回调（高点到低点）
type Contraction struct {
	StartIdx  int     `json:"start_idx"`
	EndIdx    int     `json:"end_idx"`
	HighPrice float64 `json:"high_price"`
	LowPrice  float64 `json:"low_price"`
	DepthPct  float64 `json:"depth_pct"`
	Duration  int     `json:"duration"`
	AvgVolume float64 `json:"avg_volume"`
}

// Result VCP 检测结果
type Result struct {
	IsVCP            bool          `json:"is_vcp"`
	Contractions     []Contraction `json:"contractions"`
	ContractionCount int           `json:"contraction_count"`
	DepthSequence    []float64     `json:"depth_sequence"`
	VolumeTrend      float64       `json:"volume_trend"`      // negative = drying up
	RangeContraction float64       `json:"range_contraction"` // 0..1, informational
	PivotPrice       float64       `json:"pivot_price"`
	PivotDistancePct float64       `json:"pivot_distance_pct"`
	Stage            Stage         `json:"stage"`
	Score            float64       `json:"score"`
	Signals          []string      `json:"signals"`
}

// Config VCP 检测参数
type Config struct {
	MinContractions        int
	MaxContractions        int
	MinDepthPct            float64
	MaxFirstDepthPct       float64
	DepthDecreaseRatio     float64 // each depth must be <= ratio * previous for full credit
	MaxFinalDepthPct       float64
	SwingWindow            int
	MinSwingDistance       int
	Lookback               int
	VolumeDryUpThreshold   float64 // volume trend below this counts as dried up
	PivotDistanceThreshold float64 // max % distance from pivot

	WeightContractions float64
	WeightDepth        float64
	WeightVolume       float64
	WeightPivot        float64
}

func DefaultConfig() Config {
	return Config{
		MinContractions:        2,
		MaxContractions:        5,
		MinDepthPct:            3.0,
		MaxFirstDepthPct:       35.0,
		DepthDecreaseRatio:     0.7,
		MaxFinalDepthPct:       10.0,
		SwingWindow:            5,
		MinSwingDistance:       3,
		Lookback:               120,
		VolumeDryUpThreshold:   -0.2,
		PivotDistanceThreshold: 5.0,
		WeightContractions:     30,
		WeightDepth:            30,
		WeightVolume:           25,
		WeightPivot:            15,
	}
}

const minBars = 50

// Detector finds volatility contraction patterns in a bar series.
type Detector struct {
	cfg Config
}

func NewDetector(cfg Config) *Detector {
	return &Detector{cfg: cfg}
}

// Detect runs the detection over the full series.
func (d *Detector) Detect(s *series.Series) Result {
	res := Result{Stage: StageNone}

	if s.Len() < minBars {
		res.Signals = append(res.Signals, "insufficient data for VCP detection")
		return res
	}

	swingHighs := findSwings(s.High, d.cfg.SwingWindow, d.cfg.MinSwingDistance, true)
	swingLows := findSwings(s.Low, d.cfg.SwingWindow, d.cfg.MinSwingDistance, false)
	if len(swingHighs) < 2 || len(swingLows) < 1 {
		res.Signals = append(res.Signals, "not enough swing points detected")
		return res
	}

	contractions := d.buildContractions(s, swingHighs, swingLows)
	contractions = rightAnchor(contractions)

	res.Contractions = contractions
	res.ContractionCount = len(contractions)
	for _, c := range contractions {
		res.DepthSequence = append(res.DepthSequence, c.DepthPct)
	}

	if len(contractions) == 0 {
		res.Signals = append(res.Signals, "no contractions found")
		return res
	}

	res.VolumeTrend = volumeTrend(contractions)
	res.RangeContraction = rangeContraction(contractions)

	// The pivot is the most recent contraction's high.
	last := contractions[len(contractions)-1]
	res.PivotPrice = last.HighPrice
	closePrice := s.Close[s.Len()-1]
	if closePrice > 0 {
		res.PivotDistancePct = (res.PivotPrice - closePrice) / closePrice * 100
	}

	res.IsVCP = d.validate(&res)
	res.Score = d.score(&res)
	res.Stage = d.stage(&res, closePrice)
	d.addSignals(&res)
	return res
}

func findSwings(prices series.Column, window, minDistance int, isHigh bool) []int {
	var points []int
	for i := window; i < len(prices)-window; i++ {
		var extreme float64
		if isHigh {
			extreme = series.Max(prices, i-window, i+window+1)
		} else {
			extreme = series.Min(prices, i-window, i+window+1)
		}
		if prices[i] != extreme {
			continue
		}
		if len(points) == 0 || i-points[len(points)-1] >= minDistance {
			points = append(points, i)
		}
	}
	return points
}

// buildContractions walks swing lows after the base high, pairing each
// with the most recent confirmed high.
func (d *Detector) buildContractions(s *series.Series, swingHighs, swingLows []int) []Contraction {
	lookbackStart := s.Len() - d.cfg.Lookback
	if lookbackStart < 0 {
		lookbackStart = 0
	}
	var relevant []int
	for _, h := range swingHighs {
		if h >= lookbackStart {
			relevant = append(relevant, h)
		}
	}
	if len(relevant) == 0 {
		return nil
	}

	baseIdx := relevant[0]
	for _, h := range relevant {
		if s.High[h] > s.High[baseIdx] {
			baseIdx = h
		}
	}

	curHighIdx := baseIdx
	curHigh := s.High[baseIdx]
	var out []Contraction

	for _, lowIdx := range swingLows {
		if lowIdx <= curHighIdx {
			continue
		}
		lowPrice := s.Low[lowIdx]
		depth := (curHigh - lowPrice) / curHigh * 100
		if depth < d.cfg.MinDepthPct {
			continue
		}

		out = append(out, Contraction{
			StartIdx:  curHighIdx,
			EndIdx:    lowIdx,
			HighPrice: curHigh,
			LowPrice:  lowPrice,
			DepthPct:  depth,
			Duration:  lowIdx - curHighIdx,
			AvgVolume: series.Mean(s.Volume, curHighIdx, lowIdx+1),
		})

		for _, nextHigh := range swingHighs {
			if nextHigh > lowIdx && s.High[nextHigh] > lowPrice {
				curHighIdx = nextHigh
				curHigh = s.High[nextHigh]
				break
			}
		}

		if len(out) >= d.cfg.MaxContractions {
			break
		}
	}
	return out
}

// rightAnchor restarts the sequence whenever a contraction widens past its
// predecessor or its high exceeds the predecessor's high, so the returned
// suffix always has non-increasing highs and depths.
func rightAnchor(cs []Contraction) []Contraction {
	start := 0
	for i := 1; i < len(cs); i++ {
		if cs[i].DepthPct >= cs[i-1].DepthPct || cs[i].HighPrice > cs[i-1].HighPrice {
			start = i
		}
	}
	return cs[start:]
}

// volumeTrend is the correlation of per-contraction average volume with
// position in the sequence; negative means volume is drying up.
func volumeTrend(cs []Contraction) float64 {
	if len(cs) < 2 {
		return 0
	}
	xs := make([]float64, len(cs))
	ys := make([]float64, len(cs))
	for i, c := range cs {
		xs[i] = float64(i)
		ys[i] = c.AvgVolume
	}
	corr := series.Corr(xs, ys)
	if math.IsNaN(corr) {
		return 0
	}
	return corr
}

func rangeContraction(cs []Contraction) float64 {
	if len(cs) < 2 || cs[0].DepthPct <= 0 {
		return 0
	}
	ratio := 1 - cs[len(cs)-1].DepthPct/cs[0].DepthPct
	if ratio < 0 {
		return 0
	}
	return ratio
}

func (d *Detector) validate(r *Result) bool {
	if r.ContractionCount < d.cfg.MinContractions {
		return false
	}
	if r.DepthSequence[0] > d.cfg.MaxFirstDepthPct {
		return false
	}
	for i := 1; i < len(r.DepthSequence); i++ {
		if r.DepthSequence[i] > r.DepthSequence[i-1]*d.cfg.DepthDecreaseRatio {
			return false
		}
	}
	if r.DepthSequence[len(r.DepthSequence)-1] > d.cfg.MaxFinalDepthPct {
		return false
	}
	// Volume must dry up contraction over contraction.
	for i := 1; i < len(r.Contractions); i++ {
		if r.Contractions[i].AvgVolume >= r.Contractions[i-1].AvgVolume {
			return false
		}
	}
	if math.Abs(r.PivotDistancePct) > d.cfg.PivotDistanceThreshold {
		return false
	}
	return true
}

func (d *Detector) score(r *Result) float64 {
	cfg := d.cfg
	if r.ContractionCount < cfg.MinContractions {
		return 0
	}

	score := 0.0
	n := float64(r.ContractionCount)
	if n > 4 {
		n = 4
	}
	score += n / 4 * cfg.WeightContractions

	if len(r.DepthSequence) >= 2 {
		ideal := true
		for i := 1; i < len(r.DepthSequence); i++ {
			if r.DepthSequence[i] > r.DepthSequence[i-1]*cfg.DepthDecreaseRatio {
				ideal = false
				break
			}
		}
		if ideal {
			score += cfg.WeightDepth
		} else if last, first := r.DepthSequence[len(r.DepthSequence)-1], r.DepthSequence[0]; last < first {
			score += (1 - last/first) * cfg.WeightDepth
		}
	}

	switch {
	case r.VolumeTrend < cfg.VolumeDryUpThreshold:
		score += cfg.WeightVolume
	case r.VolumeTrend < 0:
		score += -r.VolumeTrend * cfg.WeightVolume
	default:
		score += math.Max(0, cfg.WeightVolume-r.VolumeTrend*10)
	}

	if dist := math.Abs(r.PivotDistancePct); dist <= cfg.PivotDistanceThreshold {
		score += (1 - dist/cfg.PivotDistanceThreshold) * cfg.WeightPivot
	}

	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return score
}

func (d *Detector) stage(r *Result, closePrice float64) Stage {
	switch {
	case r.ContractionCount == 0:
		return StageNone
	case r.ContractionCount >= d.cfg.MinContractions && r.PivotPrice > 0 && closePrice >= r.PivotPrice:
		return StageBreakout
	case r.IsVCP:
		return StageMature
	default:
		return StageForming
	}
}

func (d *Detector) addSignals(r *Result) {
	if r.IsVCP {
		r.Signals = append(r.Signals, fmt.Sprintf("VCP detected with %d contractions", r.ContractionCount))
		switch {
		case r.Score >= 80:
			r.Signals = append(r.Signals, "strong VCP setup")
		case r.Score >= 60:
			r.Signals = append(r.Signals, "moderate VCP setup")
		default:
			r.Signals = append(r.Signals, "weak VCP setup")
		}
		if r.VolumeTrend < -0.3 {
			r.Signals = append(r.Signals, "good volume dry-up")
		}
		if math.Abs(r.PivotDistancePct) < 3 {
			r.Signals = append(r.Signals, fmt.Sprintf("near pivot point (%.2f)", r.PivotPrice))
		}
		return
	}

	if r.ContractionCount < d.cfg.MinContractions {
		r.Signals = append(r.Signals, fmt.Sprintf("only %d contractions (need %d)", r.ContractionCount, d.cfg.MinContractions))
	}
	if r.VolumeTrend > 0.3 {
		r.Signals = append(r.Signals, "volume increasing, not ideal for VCP")
	}
	if r.PivotDistancePct > d.cfg.PivotDistanceThreshold {
		r.Signals = append(r.Signals, fmt.Sprintf("price too far from pivot (%.1f%% away)", r.PivotDistancePct))
	}
	if len(r.DepthSequence) > 0 && r.DepthSequence[0] > d.cfg.MaxFirstDepthPct {
		r.Signals = append(r.Signals, fmt.Sprintf("first contraction too deep (%.1f%%)", r.DepthSequence[0]))
	}
}
