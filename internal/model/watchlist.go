package model

import (
	"fmt"
	"time"
)

// WatchlistItem 关注列表条目，(user, market, code) 唯一
type WatchlistItem struct {
	ID        int64     `json:"id" db:"id"`
	UserID    int64     `json:"user_id" db:"user_id"`
	Market    Market    `json:"market" db:"market"`
	Code      string    `json:"code" db:"code"`
	StockName string    `json:"stock_name,omitempty" db:"stock_name"`
	GroupName string    `json:"group_name,omitempty" db:"group_name"`
	Notes     string    `json:"notes,omitempty" db:"notes"`
	SortOrder int       `json:"sort_order" db:"sort_order"`
	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

func (w WatchlistItem) FullCode() string {
	return fmt.Sprintf("%s.%s", w.Market, w.Code)
}
