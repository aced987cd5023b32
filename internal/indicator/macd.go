package indicator

import (
	"invest-analyzer/internal/series"
)

// MACDConfig MACD 参数
type MACDConfig struct {
	Fast   int
	Slow   int
	Signal int
}

func DefaultMACDConfig() MACDConfig {
	return MACDConfig{Fast: 12, Slow: 26, Signal: 9}
}

// MACDResult carries the MACD line, the signal line, the histogram and a
// crossover marker: +1 when MACD crosses above signal, -1 below, 0 otherwise.
type MACDResult struct {
	MACD   series.Column
	Signal series.Column
	Hist   series.Column
	Cross  series.Column
}

// MACD computes EMA(fast) - EMA(slow), the signal EMA and the histogram.
func MACD(c series.Column, cfg MACDConfig) MACDResult {
	n := len(c)
	res := MACDResult{
		MACD:   series.NewColumn(n),
		Signal: series.NewColumn(n),
		Hist:   series.NewColumn(n),
		Cross:  make(series.Column, n),
	}
	emaFast := EMA(c, cfg.Fast)
	emaSlow := EMA(c, cfg.Slow)

	for i := 0; i < n; i++ {
		if emaFast.Defined(i) && emaSlow.Defined(i) {
			res.MACD[i] = emaFast[i] - emaSlow[i]
		}
	}

	res.Signal = emaFrom(res.MACD, cfg.Signal, firstDefined(res.MACD))

	for i := 0; i < n; i++ {
		if res.MACD.Defined(i) && res.Signal.Defined(i) {
			res.Hist[i] = res.MACD[i] - res.Signal[i]
		}
	}

	for i := 1; i < n; i++ {
		if !res.Hist.Defined(i) || !res.Hist.Defined(i-1) {
			continue
		}
		if res.Hist[i] > 0 && res.Hist[i-1] <= 0 {
			res.Cross[i] = 1
		} else if res.Hist[i] < 0 && res.Hist[i-1] >= 0 {
			res.Cross[i] = -1
		}
	}
	return res
}

// MACDHistDivergence flags divergences between price and the MACD histogram.
func MACDHistDivergence(c series.Column, cfg MACDConfig, lookback int) series.Column {
	res := MACD(c, cfg)
	return Divergence(c, res.Hist, lookback)
}
