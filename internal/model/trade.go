package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TradeSide 成交方向
type TradeSide string

const (
	TradeBuy  TradeSide = "BUY"
	TradeSell TradeSide = "SELL"
)

// Fill 一笔成交记录。DealID 在账户内唯一，是同步的幂等键。
type Fill struct {
	ID        int64           `json:"id" db:"id"`
	AccountID int64           `json:"account_id" db:"account_id"`
	DealID    string          `json:"deal_id" db:"deal_id"`
	OrderID   string          `json:"order_id,omitempty" db:"order_id"`
	TradeTime time.Time       `json:"trade_time" db:"trade_time"`
	Market    Market          `json:"market" db:"market"`
	Code      string          `json:"code" db:"code"`
	StockName string          `json:"stock_name,omitempty" db:"stock_name"`
	Side      TradeSide       `json:"trd_side" db:"trd_side"`
	Qty       decimal.Decimal `json:"qty" db:"qty"`
	Price     decimal.Decimal `json:"price" db:"price"`
	Amount    decimal.Decimal `json:"amount,omitempty" db:"amount"`
	Fee       decimal.Decimal `json:"fee,omitempty" db:"fee"`
	Currency  string          `json:"currency,omitempty" db:"currency"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

func (f Fill) FullCode() string {
	return fmt.Sprintf("%s.%s", f.Market, f.Code)
}

// Validate rejects fills that can never be paired.
func (f Fill) Validate() error {
	if f.DealID == "" {
		return fmt.Errorf("fill missing deal_id")
	}
	if f.Side != TradeBuy && f.Side != TradeSell {
		return fmt.Errorf("fill %s: bad side %q", f.DealID, f.Side)
	}
	if !f.Qty.IsPositive() {
		return fmt.Errorf("fill %s: qty %s not positive", f.DealID, f.Qty)
	}
	if !f.Price.IsPositive() {
		return fmt.Errorf("fill %s: price %s not positive", f.DealID, f.Price)
	}
	return nil
}
