package indicator

import (
	"invest-analyzer/internal/series"
)

// OBV 能量潮。首日取 0，之后按收盘涨跌累加/累减当日成交量。
func OBV(closeCol, volume series.Column) series.Column {
	out := make(series.Column, len(closeCol))
	if len(closeCol) == 0 {
		return out
	}
	out[0] = 0
	for i := 1; i < len(closeCol); i++ {
		switch {
		case closeCol[i] > closeCol[i-1]:
			out[i] = out[i-1] + volume[i]
		case closeCol[i] < closeCol[i-1]:
			out[i] = out[i-1] - volume[i]
		default:
			out[i] = out[i-1]
		}
	}
	return out
}

// OBVWithSignal also returns an EMA signal line of the OBV.
func OBVWithSignal(closeCol, volume series.Column, signalPeriod int) (obv, signal series.Column) {
	obv = OBV(closeCol, volume)
	signal = EMA(obv, signalPeriod)
	return obv, signal
}

// OBVDivergence flags divergences between price and OBV.
func OBVDivergence(closeCol, volume series.Column, lookback int) series.Column {
	obv := OBV(closeCol, volume)
	return Divergence(closeCol, obv, lookback)
}
