package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// AccountType 账户类型
type AccountType string

const (
	AccountReal     AccountType = "REAL"
	AccountSimulate AccountType = "SIMULATE"
)

// User 对应一个券商平台账号
type User struct {
	ID          int64     `json:"id" db:"id"`
	Username    string    `json:"username" db:"username"`
	DisplayName string    `json:"display_name,omitempty" db:"display_name"`
	IsActive    bool      `json:"is_active" db:"is_active"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Account 交易账户，一个用户可有多个
type Account struct {
	ID          int64       `json:"id" db:"id"`
	UserID      int64       `json:"user_id" db:"user_id"`
	BrokerAccID int64       `json:"broker_acc_id" db:"broker_acc_id"`
	AccountName string      `json:"account_name,omitempty" db:"account_name"`
	AccountType AccountType `json:"account_type" db:"account_type"`
	Market      Market      `json:"market" db:"market"`
	Currency    string      `json:"currency" db:"currency"`
	IsActive    bool        `json:"is_active" db:"is_active"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
}

// AccountSnapshot 账户资金快照，按日追加
type AccountSnapshot struct {
	ID           int64           `json:"id" db:"id"`
	AccountID    int64           `json:"account_id" db:"account_id"`
	SnapshotDate time.Time       `json:"snapshot_date" db:"snapshot_date"`
	TotalAssets  decimal.Decimal `json:"total_assets" db:"total_assets"`
	Cash         decimal.Decimal `json:"cash" db:"cash"`
	MarketValue  decimal.Decimal `json:"market_value" db:"market_value"`
	FrozenCash   decimal.Decimal `json:"frozen_cash,omitempty" db:"frozen_cash"`
	BuyingPower  decimal.Decimal `json:"buying_power,omitempty" db:"buying_power"`
	Currency     string          `json:"currency,omitempty" db:"currency"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}
