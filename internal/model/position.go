package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PositionSide 持仓方向
type PositionSide string

const (
	SideLong  PositionSide = "LONG"
	SideShort PositionSide = "SHORT"
)

// Sign returns +1 for long exposure, -1 for short.
func (s PositionSide) Sign() int64 {
	if s == SideShort {
		return -1
	}
	return 1
}

// Position 持仓快照，按 (account, snapshot_date, market, code) 唯一，每日追加
type Position struct {
	ID           int64           `json:"id" db:"id"`
	AccountID    int64           `json:"account_id" db:"account_id"`
	SnapshotDate time.Time       `json:"snapshot_date" db:"snapshot_date"`
	Market       Market          `json:"market" db:"market"`
	Code         string          `json:"code" db:"code"`
	StockName    string          `json:"stock_name,omitempty" db:"stock_name"`
	Qty          decimal.Decimal `json:"qty" db:"qty"`
	CanSellQty   decimal.Decimal `json:"can_sell_qty,omitempty" db:"can_sell_qty"`
	CostPrice    decimal.Decimal `json:"cost_price" db:"cost_price"`
	MarketPrice  decimal.Decimal `json:"market_price" db:"market_price"`
	MarketValue  decimal.Decimal `json:"market_value" db:"market_value"`
	PLValue      decimal.Decimal `json:"pl_value" db:"pl_value"`
	PLRatio      decimal.Decimal `json:"pl_ratio" db:"pl_ratio"`
	Side         PositionSide    `json:"position_side" db:"position_side"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}

func (p Position) FullCode() string {
	return fmt.Sprintf("%s.%s", p.Market, p.Code)
}
