package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// AlertType 价格提醒类型
type AlertType string

const (
	AlertAbove      AlertType = "ABOVE"
	AlertBelow      AlertType = "BELOW"
	AlertChangeUp   AlertType = "CHANGE_UP"
	AlertChangeDown AlertType = "CHANGE_DOWN"
)

// PriceAlert 价格提醒规则
type PriceAlert struct {
	ID              int64           `json:"id" db:"id"`
	UserID          int64           `json:"user_id" db:"user_id"`
	Market          Market          `json:"market" db:"market"`
	Code            string          `json:"code" db:"code"`
	StockName       string          `json:"stock_name,omitempty" db:"stock_name"`
	AlertType       AlertType       `json:"alert_type" db:"alert_type"`
	TargetPrice     decimal.Decimal `json:"target_price,omitempty" db:"target_price"`
	TargetChangePct decimal.Decimal `json:"target_change_pct,omitempty" db:"target_change_pct"`
	BasePrice       decimal.Decimal `json:"base_price,omitempty" db:"base_price"`
	Notes           string          `json:"notes,omitempty" db:"notes"`
	IsActive        bool            `json:"is_active" db:"is_active"`
	IsTriggered     bool            `json:"is_triggered" db:"is_triggered"`
	TriggeredAt     *time.Time      `json:"triggered_at,omitempty" db:"triggered_at"`
	TriggeredPrice  decimal.Decimal `json:"triggered_price,omitempty" db:"triggered_price"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
}

func (a PriceAlert) FullCode() string {
	return fmt.Sprintf("%s.%s", a.Market, a.Code)
}
