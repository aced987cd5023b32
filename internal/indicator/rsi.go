package indicator

import (
	"math"

	"invest-analyzer/internal/series"
)

// RSI 相对强弱指标，Wilder 平滑 (smoothing factor 1/period)。
// avgLoss 为 0 时 RSI = 100；涨跌皆无时取中性值 50。
func RSI(c series.Column, period int) series.Column {
	out := series.NewColumn(len(c))
	if period <= 0 || len(c) <= period {
		return out
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		d := c[i] - c[i-1]
		if d > 0 {
			avgGain += d
		} else {
			avgLoss += -d
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)
	out[period] = rsiValue(avgGain, avgLoss)

	p := float64(period)
	for i := period + 1; i < len(c); i++ {
		d := c[i] - c[i-1]
		gain, loss := 0.0, 0.0
		if d > 0 {
			gain = d
		} else {
			loss = -d
		}
		avgGain = (avgGain*(p-1) + gain) / p
		avgLoss = (avgLoss*(p-1) + loss) / p
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// StochRSIConfig 随机RSI参数
type StochRSIConfig struct {
	RSIPeriod   int
	StochPeriod int
	KPeriod     int
	DPeriod     int
}

func DefaultStochRSIConfig() StochRSIConfig {
	return StochRSIConfig{RSIPeriod: 14, StochPeriod: 14, KPeriod: 3, DPeriod: 3}
}

// StochRSIResult holds the raw stochastic RSI and its smoothed lines.
type StochRSIResult struct {
	StochRSI series.Column
	K        series.Column
	D        series.Column
}

// StochRSI applies the stochastic oscillator formula to RSI values,
// scaled to 0-100, with %K and %D smoothing.
func StochRSI(c series.Column, cfg StochRSIConfig) StochRSIResult {
	rsi := RSI(c, cfg.RSIPeriod)
	raw := series.NewColumn(len(c))

	for i := range rsi {
		if !rsi.Defined(i) || i < cfg.RSIPeriod+cfg.StochPeriod-1 {
			continue
		}
		lo := series.Min(rsi, i-cfg.StochPeriod+1, i+1)
		hi := series.Max(rsi, i-cfg.StochPeriod+1, i+1)
		if hi == lo {
			raw[i] = math.NaN()
			continue
		}
		raw[i] = (rsi[i] - lo) / (hi - lo) * 100
	}

	k := smoothDefined(raw, cfg.KPeriod)
	d := smoothDefined(k, cfg.DPeriod)
	return StochRSIResult{StochRSI: raw, K: k, D: d}
}

// smoothDefined is a rolling mean that skips the NaN prefix.
func smoothDefined(c series.Column, period int) series.Column {
	out := series.NewColumn(len(c))
	start := firstDefined(c)
	if start < 0 || period <= 0 {
		return out
	}
	for i := start + period - 1; i < len(c); i++ {
		out[i] = series.Mean(c, i-period+1, i+1)
	}
	return out
}

// RSIDivergence flags bullish (+1) and bearish (-1) divergences between
// price and RSI over a rolling lookback window.
func RSIDivergence(c series.Column, period, lookback int) series.Column {
	rsi := RSI(c, period)
	return Divergence(c, rsi, lookback)
}
