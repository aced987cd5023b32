// Package processor derives the pre-calculated per-bar columns (moving
// averages, OBV) that the bar store carries alongside raw OHLCV.
package processor

import (
	"context"
	"math"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"invest-analyzer/internal/indicator"
	"invest-analyzer/internal/model"
	"invest-analyzer/internal/series"
)

// ComputeDerived fills MA5/10/20/60 and OBV on a copy of the bars.
// Bars must be ascending; warm-up entries stay nil.
func ComputeDerived(bars []model.Bar) ([]model.Bar, error) {
	s, err := series.New(bars)
	if err != nil {
		return nil, err
	}

	ma5 := indicator.SMA(s.Close, 5)
	ma10 := indicator.SMA(s.Close, 10)
	ma20 := indicator.SMA(s.Close, 20)
	ma60 := indicator.SMA(s.Close, 60)
	obv := indicator.OBV(s.Close, s.Volume)

	out := make([]model.Bar, len(bars))
	copy(out, bars)
	for i := range out {
		out[i].MA5 = toDec(ma5[i])
		out[i].MA10 = toDec(ma10[i])
		out[i].MA20 = toDec(ma20[i])
		out[i].MA60 = toDec(ma60[i])
		v := int64(obv[i])
		out[i].OBV = &v
	}
	return out, nil
}

func toDec(v float64) *decimal.Decimal {
	if math.IsNaN(v) {
		return nil
	}
	d := decimal.NewFromFloat(v)
	return &d
}

// Enricher recomputes and persists derived columns after a symbol sync.
type Enricher struct {
	store  DerivedStore
	logger *zap.Logger
}

// DerivedStore is what the enricher needs from storage.
type DerivedStore interface {
	LoadRecentBars(ctx context.Context, market model.Market, code string, n int) ([]model.Bar, error)
	UpdateBarDerived(ctx context.Context, bars []model.Bar) error
}

func NewEnricher(store DerivedStore, logger *zap.Logger) *Enricher {
	return &Enricher{store: store, logger: logger}
}

// historyWindow covers the longest MA warm-up plus a year of refresh.
const historyWindow = 320

// Enrich recomputes derived columns over the recent history of a symbol.
func (e *Enricher) Enrich(ctx context.Context, market model.Market, code string) error {
	bars, err := e.store.LoadRecentBars(ctx, market, code, historyWindow)
	if err != nil {
		return err
	}
	if len(bars) == 0 {
		return nil
	}
	derived, err := ComputeDerived(bars)
	if err != nil {
		return err
	}
	if err := e.store.UpdateBarDerived(ctx, derived); err != nil {
		return err
	}
	e.logger.Debug("enriched bars",
		zap.String("symbol", string(market)+"."+code), zap.Int("count", len(derived)))
	return nil
}
