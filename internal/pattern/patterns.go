package pattern

import (
	"fmt"
	"math"

	"invest-analyzer/internal/series"
)

// PatternType 形态类型
type PatternType string

const (
	CupAndHandle           PatternType = "CUP_AND_HANDLE"
	HeadAndShoulders       PatternType = "HEAD_AND_SHOULDERS"
	InverseHeadAndShoulder PatternType = "INVERSE_HEAD_AND_SHOULDERS"
	DoubleTop              PatternType = "DOUBLE_TOP"
	DoubleBottom           PatternType = "DOUBLE_BOTTOM"
	AscendingTriangle      PatternType = "ASCENDING_TRIANGLE"
	DescendingTriangle     PatternType = "DESCENDING_TRIANGLE"
	SymmetricalTriangle    PatternType = "SYMMETRICAL_TRIANGLE"
)

// Bias 形态方向性
type Bias string

const (
	BiasBullish Bias = "BULLISH"
	BiasBearish Bias = "BEARISH"
	BiasNeutral Bias = "NEUTRAL"
)

// PatternResult 单个形态的检测结果
type PatternResult struct {
	Type            PatternType        `json:"type"`
	Detected        bool               `json:"detected"`
	Score           float64            `json:"score"` // 0-100
	Bias            Bias               `json:"bias"`
	StartIdx        int                `json:"start_idx"`
	EndIdx          int                `json:"end_idx"`
	BreakoutPrice   float64            `json:"breakout_price,omitempty"`
	ProjectedTarget *float64           `json:"projected_target,omitempty"`
	StopPrice       *float64           `json:"stop_price,omitempty"`
	KeyPoints       map[string]float64 `json:"key_points,omitempty"`
	Description     string             `json:"description,omitempty"`
}

func fptr(v float64) *float64 { return &v }

// CupHandleConfig 杯柄形态参数
type CupHandleConfig struct {
	MinCupDepth       float64
	MaxCupDepth       float64
	MinCupLength      int
	MaxCupLength      int
	HandleDepthRatio  float64
	MinHandleLength   int
	MaxHandleLength   int
	RimTolerance      float64
}

func DefaultCupHandleConfig() CupHandleConfig {
	return CupHandleConfig{
		MinCupDepth:      0.12,
		MaxCupDepth:      0.35,
		MinCupLength:     20,
		MaxCupLength:     60,
		HandleDepthRatio: 0.5,
		MinHandleLength:  5,
		MaxHandleLength:  20,
		RimTolerance:     0.05,
	}
}

// DetectCupAndHandle looks for a U-shaped base followed by a shallow handle.
func DetectCupAndHandle(s *series.Series, cfg CupHandleConfig) PatternResult {
	res := PatternResult{Type: CupAndHandle, Bias: BiasNeutral}
	n := s.Len()
	if n < cfg.MinCupLength+cfg.MinHandleLength {
		return res
	}

	for leftRimIdx := n - cfg.MinCupLength - 5; leftRimIdx > 0; leftRimIdx-- {
		leftRim := s.High[leftRimIdx]

		maxLen := cfg.MaxCupLength
		if room := n - leftRimIdx - 5; room < maxLen {
			maxLen = room
		}
		for cupLen := cfg.MinCupLength; cupLen < maxLen; cupLen++ {
			cupEndIdx := leftRimIdx + cupLen

			bottomIdx := leftRimIdx
			for k := leftRimIdx; k <= cupEndIdx; k++ {
				if s.Low[k] < s.Low[bottomIdx] {
					bottomIdx = k
				}
			}
			cupBottom := s.Low[bottomIdx]
			cupDepth := (leftRim - cupBottom) / leftRim
			if cupDepth < cfg.MinCupDepth || cupDepth > cfg.MaxCupDepth {
				continue
			}

			// U shape: bottom in the middle third
			third := cupLen / 3
			if bottomIdx-leftRimIdx < third || bottomIdx-leftRimIdx > cupLen-third {
				continue
			}

			rightRim := s.High[cupEndIdx]
			rimDiff := math.Abs(rightRim-leftRim) / leftRim
			if rimDiff > cfg.RimTolerance {
				continue
			}

			maxHandle := cfg.MaxHandleLength
			if room := n - cupEndIdx; room < maxHandle {
				maxHandle = room
			}
			for handleLen := cfg.MinHandleLength; handleLen < maxHandle; handleLen++ {
				handleEndIdx := cupEndIdx + handleLen
				if handleEndIdx >= n {
					break
				}
				handleLow := series.Min(s.Low, cupEndIdx, handleEndIdx+1)
				handleDepth := (rightRim - handleLow) / rightRim
				if handleDepth > cupDepth*cfg.HandleDepthRatio {
					continue
				}

				score := 60.0
				if rimDiff < 0.02 {
					score += 10
				}
				if cupDepth >= 0.15 && cupDepth <= 0.30 {
					score += 10
				}
				if handleDepth < cupDepth*0.3 {
					score += 10
				}
				if handleEndIdx >= n-5 {
					score += 10
				}
				if score > 100 {
					score = 100
				}

				breakout := math.Max(leftRim, rightRim)
				res.Detected = true
				res.Score = score
				res.Bias = BiasBullish
				res.StartIdx = leftRimIdx
				res.EndIdx = handleEndIdx
				res.BreakoutPrice = breakout
				res.ProjectedTarget = fptr(breakout + (breakout - cupBottom))
				res.StopPrice = fptr(handleLow * 0.98)
				res.Description = fmt.Sprintf("cup and handle: cup depth %.1f%%, handle depth %.1f%%", cupDepth*100, handleDepth*100)
				res.KeyPoints = map[string]float64{
					"left_rim":   leftRim,
					"cup_bottom": cupBottom,
					"right_rim":  rightRim,
					"handle_low": handleLow,
				}
				return res
			}
		}
	}
	return res
}

// HeadShouldersConfig 头肩形态参数
type HeadShouldersConfig struct {
	MinPatternLength  int
	MaxPatternLength  int
	ShoulderTolerance float64
	HeadMinDiff       float64
	NecklineTolerance float64
	Window            int
}

func DefaultHeadShouldersConfig() HeadShouldersConfig {
	return HeadShouldersConfig{
		MinPatternLength:  30,
		MaxPatternLength:  100,
		ShoulderTolerance: 0.05,
		HeadMinDiff:       0.03,
		NecklineTolerance: 0.05,
		Window:            5,
	}
}

// DetectHeadAndShoulders tries the regular pattern first, then the inverse.
func DetectHeadAndShoulders(s *series.Series, cfg HeadShouldersConfig) PatternResult {
	res := detectHS(s, cfg, false)
	if !res.Detected {
		res = detectHS(s, cfg, true)
	}
	return res
}

func detectHS(s *series.Series, cfg HeadShouldersConfig, inverse bool) PatternResult {
	pt := HeadAndShoulders
	if inverse {
		pt = InverseHeadAndShoulder
	}
	res := PatternResult{Type: pt, Bias: BiasNeutral}

	n := s.Len()
	if n < cfg.MinPatternLength {
		return res
	}

	prices := s.High
	if inverse {
		prices = s.Low
	}
	extremes := findExtremePoints(prices, cfg.Window, !inverse)
	if len(extremes) < 3 {
		return res
	}

	for i := 0; i+2 < len(extremes); i++ {
		ls, head, rs := extremes[i], extremes[i+1], extremes[i+2]

		patternLen := rs.idx - ls.idx
		if patternLen < cfg.MinPatternLength || patternLen > cfg.MaxPatternLength {
			continue
		}

		shoulderDiff := math.Abs(ls.price-rs.price) / math.Max(ls.price, rs.price)
		if shoulderDiff > cfg.ShoulderTolerance {
			continue
		}

		var headDiff float64
		if inverse {
			headDiff = (math.Min(ls.price, rs.price) - head.price) / head.price
		} else {
			headDiff = (head.price - math.Max(ls.price, rs.price)) / math.Max(ls.price, rs.price)
		}
		if headDiff < cfg.HeadMinDiff {
			continue
		}

		var leftNeck, rightNeck float64
		if inverse {
			leftNeck = series.Max(s.High, ls.idx, head.idx)
			rightNeck = series.Max(s.High, head.idx, rs.idx)
		} else {
			leftNeck = series.Min(s.Low, ls.idx, head.idx)
			rightNeck = series.Min(s.Low, head.idx, rs.idx)
		}
		necklineSlope := (rightNeck - leftNeck) / leftNeck
		if math.Abs(necklineSlope) > cfg.NecklineTolerance {
			continue
		}

		neckline := (leftNeck + rightNeck) / 2
		height := math.Abs(head.price - neckline)

		score := 60.0
		if shoulderDiff < 0.02 {
			score += 15
		}
		if headDiff > 0.05 {
			score += 10
		}
		if math.Abs(necklineSlope) < 0.02 {
			score += 10
		}
		if rs.idx >= n-10 {
			score += 5
		}
		if score > 100 {
			score = 100
		}

		res.Detected = true
		res.Score = score
		res.StartIdx = ls.idx
		res.EndIdx = rs.idx
		res.BreakoutPrice = neckline
		if inverse {
			res.Bias = BiasBullish
			res.ProjectedTarget = fptr(neckline + height)
			res.StopPrice = fptr(head.price * 0.98)
		} else {
			res.Bias = BiasBearish
			res.ProjectedTarget = fptr(neckline - height)
			res.StopPrice = fptr(head.price * 1.02)
		}
		res.Description = fmt.Sprintf("head and shoulders (inverse=%v): neckline %.2f", inverse, neckline)
		res.KeyPoints = map[string]float64{
			"left_shoulder":  ls.price,
			"head":           head.price,
			"right_shoulder": rs.price,
			"neckline":       neckline,
		}
		return res
	}
	return res
}

// DoubleTopBottomConfig 双顶双底参数
type DoubleTopBottomConfig struct {
	MinPatternLength int
	MaxPatternLength int
	PeakTolerance    float64
	MinValleyDepth   float64
	Window           int
}

func DefaultDoubleTopBottomConfig() DoubleTopBottomConfig {
	return DoubleTopBottomConfig{
		MinPatternLength: 15,
		MaxPatternLength: 60,
		PeakTolerance:    0.03,
		MinValleyDepth:   0.05,
		Window:           5,
	}
}

// DetectDoubleTopBottom tries a double top first, then a double bottom.
func DetectDoubleTopBottom(s *series.Series, cfg DoubleTopBottomConfig) PatternResult {
	res := detectDouble(s, cfg, true)
	if !res.Detected {
		res = detectDouble(s, cfg, false)
	}
	return res
}

func detectDouble(s *series.Series, cfg DoubleTopBottomConfig, isTop bool) PatternResult {
	pt := DoubleTop
	if !isTop {
		pt = DoubleBottom
	}
	res := PatternResult{Type: pt, Bias: BiasNeutral}

	n := s.Len()
	if n < cfg.MinPatternLength {
		return res
	}

	prices := s.High
	if !isTop {
		prices = s.Low
	}
	extremes := findExtremePoints(prices, cfg.Window, isTop)
	if len(extremes) < 2 {
		return res
	}

	for i := 0; i+1 < len(extremes); i++ {
		first, second := extremes[i], extremes[i+1]

		patternLen := second.idx - first.idx
		if patternLen < cfg.MinPatternLength || patternLen > cfg.MaxPatternLength {
			continue
		}

		peakDiff := math.Abs(first.price-second.price) / math.Max(first.price, second.price)
		if peakDiff > cfg.PeakTolerance {
			continue
		}

		var valley, valleyDepth float64
		if isTop {
			valley = series.Min(s.Low, first.idx, second.idx)
			valleyDepth = (first.price - valley) / first.price
		} else {
			valley = series.Max(s.High, first.idx, second.idx)
			valleyDepth = (valley - first.price) / first.price
		}
		if valleyDepth < cfg.MinValleyDepth {
			continue
		}

		avgPeak := (first.price + second.price) / 2
		height := math.Abs(avgPeak - valley)

		score := 60.0
		if peakDiff < 0.01 {
			score += 20
		}
		if valleyDepth > 0.08 {
			score += 10
		}
		if second.idx >= n-10 {
			score += 10
		}
		if score > 100 {
			score = 100
		}

		res.Detected = true
		res.Score = score
		res.StartIdx = first.idx
		res.EndIdx = second.idx
		res.BreakoutPrice = valley
		if isTop {
			res.Bias = BiasBearish
			res.ProjectedTarget = fptr(valley - height)
			res.StopPrice = fptr(avgPeak * 1.02)
		} else {
			res.Bias = BiasBullish
			res.ProjectedTarget = fptr(valley + height)
			res.StopPrice = fptr(avgPeak * 0.98)
		}
		res.Description = fmt.Sprintf("double %s at %.2f, depth %.1f%%", map[bool]string{true: "top", false: "bottom"}[isTop], avgPeak, valleyDepth*100)
		res.KeyPoints = map[string]float64{
			"first_peak":  first.price,
			"second_peak": second.price,
			"valley":      valley,
		}
		return res
	}
	return res
}

// TriangleConfig 三角形整理参数
type TriangleConfig struct {
	MinPatternLength     int
	MaxPatternLength     int
	MinTouches           int
	ConvergenceThreshold float64
	Window               int
	SlopeTolerance       float64
}

func DefaultTriangleConfig() TriangleConfig {
	return TriangleConfig{
		MinPatternLength:     15,
		MaxPatternLength:     60,
		MinTouches:           4,
		ConvergenceThreshold: 0.7,
		Window:               3,
		SlopeTolerance:       0.001,
	}
}

// DetectTriangle classifies converging swing trendlines as an ascending,
// descending or symmetrical triangle.
func DetectTriangle(s *series.Series, cfg TriangleConfig) PatternResult {
	res := PatternResult{Type: SymmetricalTriangle, Bias: BiasNeutral}
	n := s.Len()
	if n < cfg.MinPatternLength {
		return res
	}

	swingHighs := findExtremePoints(s.High, cfg.Window, true)
	swingLows := findExtremePoints(s.Low, cfg.Window, false)
	if len(swingHighs) < 2 || len(swingLows) < 2 {
		return res
	}

	highSlope, highIntercept := polyfit(swingHighs)
	lowSlope, lowIntercept := polyfit(swingLows)

	var tri PatternType
	var bias Bias
	switch {
	case math.Abs(highSlope) < cfg.SlopeTolerance && lowSlope > cfg.SlopeTolerance:
		tri, bias = AscendingTriangle, BiasBullish
	case highSlope < -cfg.SlopeTolerance && math.Abs(lowSlope) < cfg.SlopeTolerance:
		tri, bias = DescendingTriangle, BiasBearish
	case highSlope < 0 && lowSlope > 0:
		tri, bias = SymmetricalTriangle, BiasNeutral
	default:
		return res
	}

	startWidth := highIntercept - lowIntercept
	if startWidth <= 0 {
		return res
	}
	endHigh := highSlope*float64(n-1) + highIntercept
	endLow := lowSlope*float64(n-1) + lowIntercept
	convergence := 1 - (endHigh-endLow)/startWidth
	if convergence < cfg.ConvergenceThreshold {
		return res
	}

	score := 50.0
	touchCount := len(swingHighs) + len(swingLows)
	if touchCount > 8 {
		touchCount = 8
	}
	score += float64(touchCount) * 5
	if convergence > 0.8 {
		score += 10
	}
	lastSwing := swingHighs[len(swingHighs)-1].idx
	if swingLows[len(swingLows)-1].idx > lastSwing {
		lastSwing = swingLows[len(swingLows)-1].idx
	}
	if lastSwing >= n-10 {
		score += 10
	}
	if score > 100 {
		score = 100
	}

	res.Type = tri
	res.Detected = true
	res.Score = score
	res.Bias = bias
	res.StartIdx = swingHighs[0].idx
	if swingLows[0].idx < res.StartIdx {
		res.StartIdx = swingLows[0].idx
	}
	res.EndIdx = n - 1

	switch tri {
	case AscendingTriangle:
		res.BreakoutPrice = endHigh
		res.ProjectedTarget = fptr(endHigh + startWidth)
		res.StopPrice = fptr(endLow * 0.98)
	case DescendingTriangle:
		res.BreakoutPrice = endLow
		res.ProjectedTarget = fptr(endLow - startWidth)
		res.StopPrice = fptr(endHigh * 1.02)
	default:
		res.BreakoutPrice = (endHigh + endLow) / 2
	}
	res.Description = fmt.Sprintf("%s: convergence %.0f%%", tri, convergence*100)
	res.KeyPoints = map[string]float64{
		"upper_slope": highSlope,
		"lower_slope": lowSlope,
		"convergence": convergence,
	}
	return res
}

// polyfit is a degree-1 least squares fit over swing points.
func polyfit(points []extremePoint) (slope, intercept float64) {
	n := float64(len(points))
	var sx, sy, sxx, sxy float64
	for _, p := range points {
		x := float64(p.idx)
		sx += x
		sy += p.price
		sxx += x * x
		sxy += x * p.price
	}
	den := n*sxx - sx*sx
	if den == 0 {
		return 0, sy / n
	}
	slope = (n*sxy - sx*sy) / den
	intercept = (sy - slope*sx) / n
	return slope, intercept
}

// ScanAll runs every pattern detector and returns the detected ones,
// strongest first.
func ScanAll(s *series.Series) []PatternResult {
	results := []PatternResult{
		DetectCupAndHandle(s, DefaultCupHandleConfig()),
		DetectHeadAndShoulders(s, DefaultHeadShouldersConfig()),
		DetectDoubleTopBottom(s, DefaultDoubleTopBottomConfig()),
		DetectTriangle(s, DefaultTriangleConfig()),
	}
	var detected []PatternResult
	for _, r := range results {
		if r.Detected {
			detected = append(detected, r)
		}
	}
	for i := 0; i < len(detected); i++ {
		for j := i + 1; j < len(detected); j++ {
			if detected[j].Score > detected[i].Score {
				detected[i], detected[j] = detected[j], detected[i]
			}
		}
	}
	return detected
}
