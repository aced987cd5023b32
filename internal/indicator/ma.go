// Package indicator computes technical indicators over a bar series.
// Every function returns columns aligned to bar indices. Value columns
// hold NaN for the warm-up prefix; marker columns (MACD cross, Bollinger
// squeeze, divergence) hold 0 where there is no signal.
package indicator

import (
	"math"

	"invest-analyzer/internal/series"
)

// SMA 简单移动平均
func SMA(c series.Column, period int) series.Column {
	out := series.NewColumn(len(c))
	if period <= 0 || len(c) < period {
		return out
	}
	sum := 0.0
	for i := 0; i < len(c); i++ {
		sum += c[i]
		if i >= period {
			sum -= c[i-period]
		}
		if i >= period-1 {
			out[i] = sum / float64(period)
		}
	}
	return out
}

// EMA 指数移动平均，以前 period 个值的 SMA 作为种子，
// 之后按 alpha = 2/(period+1) 递推。
func EMA(c series.Column, period int) series.Column {
	return emaFrom(c, period, firstDefined(c))
}

// emaFrom seeds at the first window of defined values starting at start.
// Used directly for EMA-of-MACD where the input has a NaN prefix.
func emaFrom(c series.Column, period, start int) series.Column {
	out := series.NewColumn(len(c))
	if period <= 0 || start < 0 || len(c)-start < period {
		return out
	}
	seedIdx := start + period - 1
	seed := 0.0
	for i := start; i <= seedIdx; i++ {
		seed += c[i]
	}
	seed /= float64(period)
	out[seedIdx] = seed

	alpha := 2.0 / float64(period+1)
	prev := seed
	for i := seedIdx + 1; i < len(c); i++ {
		prev = alpha*c[i] + (1-alpha)*prev
		out[i] = prev
	}
	return out
}

func firstDefined(c series.Column) int {
	for i, v := range c {
		if !math.IsNaN(v) {
			return i
		}
	}
	return -1
}

// WMA 加权移动平均，权重 1..period，最近的值权重最大
func WMA(c series.Column, period int) series.Column {
	out := series.NewColumn(len(c))
	if period <= 0 || len(c) < period {
		return out
	}
	weightSum := float64(period*(period+1)) / 2
	for i := period - 1; i < len(c); i++ {
		sum := 0.0
		for j := 0; j < period; j++ {
			sum += c[i-period+1+j] * float64(j+1)
		}
		out[i] = sum / weightSum
	}
	return out
}
