package series

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invest-analyzer/internal/errs"
	"invest-analyzer/internal/model"
)

func mkBars(closes ...float64) []model.Bar {
	day := time.Date(2025, 5, 5, 0, 0, 0, 0, time.UTC)
	bars := make([]model.Bar, len(closes))
	for i, c := range closes {
		d := decimal.NewFromFloat(c)
		bars[i] = model.Bar{
			Market: model.MarketUS, Code: "AAPL",
			TradeDate: day.AddDate(0, 0, i),
			Open:      d, High: d, Low: d, Close: d,
			Volume: 100,
		}
	}
	return bars
}

func TestNew_SortedOK(t *testing.T) {
	s, err := New(mkBars(1, 2, 3))
	require.NoError(t, err)
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, 2.0, s.Close[1])
}

func TestNew_RejectsUnsorted(t *testing.T) {
	bars := mkBars(1, 2, 3)
	bars[1].TradeDate = bars[2].TradeDate.AddDate(0, 0, 5)
	_, err := New(bars)
	require.Error(t, err)
	assert.Equal(t, errs.KindInvalidInput, errs.KindOf(err))
}

func TestNew_RejectsDuplicateDates(t *testing.T) {
	bars := mkBars(1, 2)
	bars[1].TradeDate = bars[0].TradeDate
	_, err := New(bars)
	assert.Error(t, err)
}

func TestTail(t *testing.T) {
	s, err := New(mkBars(1, 2, 3, 4, 5))
	require.NoError(t, err)

	tail := s.Tail(2)
	assert.Equal(t, 2, tail.Len())
	assert.Equal(t, 4.0, tail.Close[0])

	whole := s.Tail(100)
	assert.Equal(t, 5, whole.Len())
}

func TestColumnHelpers(t *testing.T) {
	c := Column{1, 2, 3, 4}
	assert.Equal(t, 2.5, Mean(c, 0, 4))
	assert.Equal(t, 4.0, Max(c, 0, 4))
	assert.Equal(t, 1.0, Min(c, 0, 4))
	assert.True(t, math.IsNaN(Mean(c, 2, 2)))

	sd := Stdev(c, 0, 4)
	assert.InDelta(t, 1.2909944487, sd, 1e-9)
}

func TestColumn_DefinedAndLast(t *testing.T) {
	c := NewColumn(3)
	assert.False(t, c.Defined(0))
	assert.True(t, math.IsNaN(c.Last()))

	c[1] = 7
	assert.True(t, c.Defined(1))
	assert.Equal(t, 7.0, c.Last())
}

func TestCorr(t *testing.T) {
	x := []float64{0, 1, 2, 3}
	assert.InDelta(t, 1.0, Corr(x, []float64{10, 20, 30, 40}), 1e-9)
	assert.InDelta(t, -1.0, Corr(x, []float64{40, 30, 20, 10}), 1e-9)
	assert.True(t, math.IsNaN(Corr(x, []float64{5, 5, 5, 5})))
}
