package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Market 市场标识
type Market string

const (
	MarketHK Market = "HK"
	MarketUS Market = "US"
	MarketA  Market = "A"
)

func (m Market) Valid() bool {
	switch m {
	case MarketHK, MarketUS, MarketA:
		return true
	}
	return false
}

// Bar 代表一根日K线
type Bar struct {
	Market       Market          `json:"market" db:"market"`
	Code         string          `json:"code" db:"code"`
	TradeDate    time.Time       `json:"trade_date" db:"trade_date"`
	Open         decimal.Decimal `json:"o" db:"open"`
	High         decimal.Decimal `json:"h" db:"high"`
	Low          decimal.Decimal `json:"l" db:"low"`
	Close        decimal.Decimal `json:"c" db:"close"`
	Volume       int64           `json:"v" db:"volume"`
	Amount       decimal.Decimal `json:"amount,omitempty" db:"amount"`
	TurnoverRate decimal.Decimal `json:"turnover_rate,omitempty" db:"turnover_rate"`
	ChangePct    decimal.Decimal `json:"change_pct,omitempty" db:"change_pct"`

	// Pre-calculated columns, filled by the bar enricher when enough
	// history is available. Nil when not computed.
	MA5  *decimal.Decimal `json:"ma5,omitempty" db:"ma5"`
	MA10 *decimal.Decimal `json:"ma10,omitempty" db:"ma10"`
	MA20 *decimal.Decimal `json:"ma20,omitempty" db:"ma20"`
	MA60 *decimal.Decimal `json:"ma60,omitempty" db:"ma60"`
	OBV  *int64           `json:"obv,omitempty" db:"obv"`
}

// FullCode returns the canonical MARKET.CODE form.
func (b Bar) FullCode() string {
	return fmt.Sprintf("%s.%s", b.Market, b.Code)
}

// Validate checks the OHLCV invariants. A violation means the upstream
// payload is corrupt and the bar must never be persisted.
func (b Bar) Validate() error {
	minOC := decimal.Min(b.Open, b.Close)
	maxOC := decimal.Max(b.Open, b.Close)
	if b.Low.GreaterThan(b.High) {
		return fmt.Errorf("bar %s %s: low %s > high %s", b.FullCode(), b.TradeDate.Format("2006-01-02"), b.Low, b.High)
	}
	if b.Low.GreaterThan(minOC) {
		return fmt.Errorf("bar %s %s: low %s above open/close", b.FullCode(), b.TradeDate.Format("2006-01-02"), b.Low)
	}
	if b.High.LessThan(maxOC) {
		return fmt.Errorf("bar %s %s: high %s below open/close", b.FullCode(), b.TradeDate.Format("2006-01-02"), b.High)
	}
	if b.Volume < 0 {
		return fmt.Errorf("bar %s %s: negative volume %d", b.FullCode(), b.TradeDate.Format("2006-01-02"), b.Volume)
	}
	return nil
}
