// Package scorer combines indicator and pattern outputs into a single
// per-symbol recommendation.
package scorer

import (
	"fmt"
	"math"

	"invest-analyzer/internal/indicator"
	"invest-analyzer/internal/pattern"
	"invest-analyzer/internal/series"
	"invest-analyzer/internal/vcp"
)

// Rating 评级档位
type Rating string

const (
	RatingStrongBuy  Rating = "strong_buy"
	RatingBuy        Rating = "buy"
	RatingHold       Rating = "hold"
	RatingSell       Rating = "sell"
	RatingStrongSell Rating = "strong_sell"
)

// Config 综合评分参数
type Config struct {
	Window           int
	WeightTrend      float64
	WeightMomentum   float64
	WeightVolatility float64
	WeightVolume     float64
	WeightPattern    float64

	RSIPeriod int
	MACD      indicator.MACDConfig
	Bollinger indicator.BollingerConfig
	VCP       vcp.Config
	Lookback  int // divergence lookback
}

func DefaultConfig() Config {
	return Config{
		Window:           120,
		WeightTrend:      30,
		WeightMomentum:   20,
		WeightVolatility: 10,
		WeightVolume:     15,
		WeightPattern:    25,
		RSIPeriod:        14,
		MACD:             indicator.DefaultMACDConfig(),
		Bollinger:        indicator.DefaultBollingerConfig(),
		VCP:              vcp.DefaultConfig(),
		Lookback:         14,
	}
}

// Result 综合评分结果
type Result struct {
	TrendScore      float64    `json:"trend_score"`
	MomentumScore   float64    `json:"momentum_score"`
	VolatilityScore float64    `json:"volatility_score"`
	VolumeScore     float64    `json:"volume_score"`
	PatternScore    float64    `json:"pattern_score"`
	Composite       float64    `json:"composite"`
	Rating          Rating     `json:"rating"`
	VCP             vcp.Result `json:"vcp"`
	Signals         []string   `json:"signals,omitempty"`
}

// Scorer 无状态评分器
type Scorer struct {
	cfg Config
}

func NewScorer(cfg Config) *Scorer {
	return &Scorer{cfg: cfg}
}

// Score computes the weighted composite over the recent window.
func (sc *Scorer) Score(s *series.Series) Result {
	w := s.Tail(sc.cfg.Window)
	res := Result{}

	res.VCP = vcp.NewDetector(sc.cfg.VCP).Detect(w)

	res.TrendScore = clamp(sc.trendScore(w, &res))
	res.MomentumScore = clamp(sc.momentumScore(w, &res))
	res.VolatilityScore = clamp(sc.volatilityScore(w, &res))
	res.VolumeScore = clamp(sc.volumeScore(w, &res))
	res.PatternScore = clamp(sc.patternScore(w, &res))

	total := sc.cfg.WeightTrend + sc.cfg.WeightMomentum + sc.cfg.WeightVolatility +
		sc.cfg.WeightVolume + sc.cfg.WeightPattern
	if total > 0 {
		res.Composite = (res.TrendScore*sc.cfg.WeightTrend +
			res.MomentumScore*sc.cfg.WeightMomentum +
			res.VolatilityScore*sc.cfg.WeightVolatility +
			res.VolumeScore*sc.cfg.WeightVolume +
			res.PatternScore*sc.cfg.WeightPattern) / total
	}
	res.Rating = ratingFor(res.Composite)
	return res
}

func ratingFor(score float64) Rating {
	switch {
	case score >= 75:
		return RatingStrongBuy
	case score >= 60:
		return RatingBuy
	case score >= 45:
		return RatingHold
	case score >= 25:
		return RatingSell
	default:
		return RatingStrongSell
	}
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// trendScore rewards MA alignment, price above MA20 and a rising MA20.
func (sc *Scorer) trendScore(w *series.Series, res *Result) float64 {
	score := 50.0
	ma5 := indicator.SMA(w.Close, 5)
	ma10 := indicator.SMA(w.Close, 10)
	ma20 := indicator.SMA(w.Close, 20)

	last := w.Len() - 1
	if !ma20.Defined(last) {
		return score
	}

	if ma5.Defined(last) && ma10.Defined(last) {
		switch {
		case ma5[last] > ma10[last] && ma10[last] > ma20[last]:
			score += 25
			res.Signals = append(res.Signals, "bullish MA alignment")
		case ma5[last] < ma10[last] && ma10[last] < ma20[last]:
			score -= 25
			res.Signals = append(res.Signals, "bearish MA alignment")
		}
	}

	if w.Close[last] > ma20[last] {
		score += 15
	} else {
		score -= 15
	}

	if slopeIdx := last - 5; slopeIdx >= 0 && ma20.Defined(slopeIdx) {
		if ma20[last] > ma20[slopeIdx] {
			score += 10
		} else if ma20[last] < ma20[slopeIdx] {
			score -= 10
		}
	}
	return score
}

// momentumScore rates the RSI band and the MACD cross state.
func (sc *Scorer) momentumScore(w *series.Series, res *Result) float64 {
	score := 50.0

	rsi := indicator.RSI(w.Close, sc.cfg.RSIPeriod)
	last := w.Len() - 1
	if rsi.Defined(last) {
		switch {
		case rsi[last] >= 70:
			score -= 10
			res.Signals = append(res.Signals, fmt.Sprintf("RSI overbought (%.0f)", rsi[last]))
		case rsi[last] >= 50:
			score += 15
		case rsi[last] >= 30:
			score -= 5
		default:
			score -= 15
			res.Signals = append(res.Signals, fmt.Sprintf("RSI oversold (%.0f)", rsi[last]))
		}
	}

	macd := indicator.MACD(w.Close, sc.cfg.MACD)
	// Most recent cross within the last 5 bars drives the signal state.
	for i := last; i >= 0 && i > last-5; i-- {
		if macd.Cross[i] == 1 {
			score += 20
			res.Signals = append(res.Signals, "recent MACD bullish crossover")
			break
		}
		if macd.Cross[i] == -1 {
			score -= 20
			res.Signals = append(res.Signals, "recent MACD bearish crossover")
			break
		}
	}
	if macd.MACD.Defined(last) {
		if macd.MACD[last] > 0 {
			score += 15
		} else if macd.MACD[last] < 0 {
			score -= 15
		}
	}
	return score
}

// volatilityScore rates the Bollinger position and band width.
func (sc *Scorer) volatilityScore(w *series.Series, res *Result) float64 {
	score := 50.0
	bb := indicator.Bollinger(w.Close, sc.cfg.Bollinger)
	last := w.Len() - 1
	if !bb.PercentB.Defined(last) {
		return score
	}

	pb := bb.PercentB[last]
	switch {
	case pb > 0.95:
		score -= 20
		res.Signals = append(res.Signals, "price pressing the upper Bollinger band")
	case pb >= 0.2 && pb <= 0.8:
		score += 20
	case pb < 0.05:
		score -= 10
		res.Signals = append(res.Signals, "price at the lower Bollinger band")
	}

	if bb.Squeeze[last] == 1 {
		score += 20
		res.Signals = append(res.Signals, "Bollinger squeeze")
	} else if bb.Bandwidth.Defined(last) && bb.Bandwidth[last] > 25 {
		score -= 10
	}
	return score
}

// volumeScore rates the OBV trend and price/OBV divergence.
func (sc *Scorer) volumeScore(w *series.Series, res *Result) float64 {
	score := 50.0
	obv := indicator.OBV(w.Close, w.Volume)
	last := w.Len() - 1

	backIdx := last - 20
	if backIdx < 0 {
		backIdx = 0
	}
	if last > backIdx {
		switch {
		case obv[last] > obv[backIdx]:
			score += 25
		case obv[last] < obv[backIdx]:
			score -= 25
		}
	}

	div := indicator.Divergence(w.Close, obv, sc.cfg.Lookback)
	if last < len(div) {
		switch div[last] {
		case 1:
			score += 15
			res.Signals = append(res.Signals, "bullish OBV divergence")
		case -1:
			score -= 25
			res.Signals = append(res.Signals, "bearish OBV divergence")
		}
	}
	return score
}

// patternScore is driven by the VCP score with contributions from the
// other detected chart patterns.
func (sc *Scorer) patternScore(w *series.Series, res *Result) float64 {
	score := res.VCP.Score * 0.8
	if res.VCP.IsVCP {
		res.Signals = append(res.Signals,
			fmt.Sprintf("VCP %s (score %.0f)", res.VCP.Stage, res.VCP.Score))
	}

	best := 0.0
	for _, p := range pattern.ScanAll(w) {
		contrib := p.Score * 0.2
		if p.Bias == pattern.BiasBearish {
			contrib = -contrib
		} else if p.Bias == pattern.BiasNeutral {
			contrib = contrib / 2
		}
		if math.Abs(contrib) > math.Abs(best) {
			best = contrib
		}
	}
	return score + best + 20 // baseline keeps a pattern-free chart neutral-ish
}
