package indicator

import (
	"invest-analyzer/internal/series"
)

// Divergence marks disagreements between price extremes and an indicator
// over a rolling lookback window:
//
//	+1 bullish: price at its window low while the indicator holds above its low
//	-1 bearish: price at its window high while the indicator sits below its high
func Divergence(price, ind series.Column, lookback int) series.Column {
	n := len(price)
	out := make(series.Column, n)
	if lookback <= 1 || len(ind) != n {
		return out
	}
	for i := lookback - 1; i < n; i++ {
		if !price.Defined(i) || !ind.Defined(i) {
			continue
		}
		pLo := series.Min(price, i-lookback+1, i+1)
		pHi := series.Max(price, i-lookback+1, i+1)
		iLo := series.Min(ind, i-lookback+1, i+1)
		iHi := series.Max(ind, i-lookback+1, i+1)

		if price[i] == pLo && ind[i] > iLo {
			out[i] = 1
		} else if price[i] == pHi && ind[i] < iHi {
			out[i] = -1
		}
	}
	return out
}
