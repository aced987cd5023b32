package indicator

import (
	"invest-analyzer/internal/series"
)

// BollingerConfig 布林带参数
type BollingerConfig struct {
	Period          int
	StdDev          float64
	SqueezeWidthPct float64 // squeeze when (upper-lower)/middle below this
}

func DefaultBollingerConfig() BollingerConfig {
	return BollingerConfig{Period: 20, StdDev: 2.0, SqueezeWidthPct: 0.05}
}

// BollingerResult carries the three bands plus the derived bandwidth,
// %B position and squeeze flag columns.
type BollingerResult struct {
	Upper     series.Column
	Middle    series.Column
	Lower     series.Column
	Bandwidth series.Column // (upper-lower)/middle * 100
	PercentB  series.Column // (price-lower)/(upper-lower)
	Squeeze   series.Column // 1 when the band width is under the threshold
}

// Bollinger computes the bands: middle = SMA(period),
// upper/lower = middle ± stddev * rolling sample deviation.
func Bollinger(c series.Column, cfg BollingerConfig) BollingerResult {
	n := len(c)
	res := BollingerResult{
		Upper:     series.NewColumn(n),
		Middle:    SMA(c, cfg.Period),
		Lower:     series.NewColumn(n),
		Bandwidth: series.NewColumn(n),
		PercentB:  series.NewColumn(n),
		Squeeze:   make(series.Column, n),
	}

	for i := cfg.Period - 1; i < n; i++ {
		std := series.Stdev(c, i-cfg.Period+1, i+1)
		mid := res.Middle[i]
		res.Upper[i] = mid + cfg.StdDev*std
		res.Lower[i] = mid - cfg.StdDev*std

		width := res.Upper[i] - res.Lower[i]
		if mid != 0 {
			res.Bandwidth[i] = width / mid * 100
			if width/mid < cfg.SqueezeWidthPct {
				res.Squeeze[i] = 1
			}
		}
		if width != 0 {
			res.PercentB[i] = (c[i] - res.Lower[i]) / width
		}
	}
	return res
}
