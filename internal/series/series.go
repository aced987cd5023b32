// Package series provides the ordered bar container the indicator and
// pattern code computes over. Values before an indicator's warm-up window
// are NaN, never zero.
package series

import (
	"math"

	"invest-analyzer/internal/errs"
	"invest-analyzer/internal/model"
)

// Column is a value series aligned to bar indices. Undefined entries
// (warm-up prefix, division blowups) hold NaN.
type Column []float64

// Defined reports whether the value at i is present.
func (c Column) Defined(i int) bool {
	return i >= 0 && i < len(c) && !math.IsNaN(c[i])
}

// Last returns the last defined value, or NaN when none exists.
func (c Column) Last() float64 {
	for i := len(c) - 1; i >= 0; i-- {
		if !math.IsNaN(c[i]) {
			return c[i]
		}
	}
	return math.NaN()
}

// NewColumn returns a column of n NaNs.
func NewColumn(n int) Column {
	c := make(Column, n)
	for i := range c {
		c[i] = math.NaN()
	}
	return c
}

// Series is an immutable view over ascending daily bars with the raw
// columns extracted once into float64 slices.
type Series struct {
	Bars   []model.Bar
	Open   Column
	High   Column
	Low    Column
	Close  Column
	Volume Column
}

// New builds a Series from bars. Bars must be pre-sorted ascending by
// trade date; unsorted input is an InvalidInput error.
func New(bars []model.Bar) (*Series, error) {
	for i := 1; i < len(bars); i++ {
		if !bars[i].TradeDate.After(bars[i-1].TradeDate) {
			return nil, errs.Invalid(bars[i].FullCode(),
				"bars not sorted ascending at index %d (%s)", i, bars[i].TradeDate.Format("2006-01-02"))
		}
	}

	s := &Series{
		Bars:   bars,
		Open:   make(Column, len(bars)),
		High:   make(Column, len(bars)),
		Low:    make(Column, len(bars)),
		Close:  make(Column, len(bars)),
		Volume: make(Column, len(bars)),
	}
	for i, b := range bars {
		s.Open[i], _ = b.Open.Float64()
		s.High[i], _ = b.High.Float64()
		s.Low[i], _ = b.Low.Float64()
		s.Close[i], _ = b.Close.Float64()
		s.Volume[i] = float64(b.Volume)
	}
	return s, nil
}

func (s *Series) Len() int { return len(s.Bars) }

// Tail returns a view over the last n bars (the whole series when shorter).
func (s *Series) Tail(n int) *Series {
	if n >= s.Len() {
		return s
	}
	start := s.Len() - n
	return &Series{
		Bars:   s.Bars[start:],
		Open:   s.Open[start:],
		High:   s.High[start:],
		Low:    s.Low[start:],
		Close:  s.Close[start:],
		Volume: s.Volume[start:],
	}
}

// Mean averages v[from:to] (half-open), NaN when the window is empty.
func Mean(v Column, from, to int) float64 {
	if from < 0 {
		from = 0
	}
	if to > len(v) {
		to = len(v)
	}
	if to <= from {
		return math.NaN()
	}
	sum := 0.0
	for i := from; i < to; i++ {
		sum += v[i]
	}
	return sum / float64(to-from)
}

// Stdev is the sample standard deviation of v[from:to].
func Stdev(v Column, from, to int) float64 {
	n := to - from
	if n < 2 {
		return math.NaN()
	}
	mean := Mean(v, from, to)
	sumSq := 0.0
	for i := from; i < to; i++ {
		d := v[i] - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(n-1))
}

// Max returns the maximum over v[from:to], NaN when empty.
func Max(v Column, from, to int) float64 {
	if from < 0 {
		from = 0
	}
	if to > len(v) {
		to = len(v)
	}
	if to <= from {
		return math.NaN()
	}
	m := v[from]
	for i := from + 1; i < to; i++ {
		if v[i] > m {
			m = v[i]
		}
	}
	return m
}

// Min returns the minimum over v[from:to], NaN when empty.
func Min(v Column, from, to int) float64 {
	if from < 0 {
		from = 0
	}
	if to > len(v) {
		to = len(v)
	}
	if to <= from {
		return math.NaN()
	}
	m := v[from]
	for i := from + 1; i < to; i++ {
		if v[i] < m {
			m = v[i]
		}
	}
	return m
}

// Corr is the Pearson correlation of x and y (equal length), NaN when
// either side has zero variance.
func Corr(x, y []float64) float64 {
	n := len(x)
	if n != len(y) || n < 2 {
		return math.NaN()
	}
	var mx, my float64
	for i := 0; i < n; i++ {
		mx += x[i]
		my += y[i]
	}
	mx /= float64(n)
	my /= float64(n)
	var sxy, sxx, syy float64
	for i := 0; i < n; i++ {
		dx, dy := x[i]-mx, y[i]-my
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if sxx == 0 || syy == 0 {
		return math.NaN()
	}
	return sxy / math.Sqrt(sxx*syy)
}
