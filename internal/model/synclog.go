package model

import "time"

// SyncType 同步类型
type SyncType string

const (
	SyncPositions SyncType = "POSITIONS"
	SyncTrades    SyncType = "TRADES"
	SyncKlines    SyncType = "KLINES"
	SyncWatchlist SyncType = "WATCHLIST"
	SyncAll       SyncType = "ALL"
)

// SyncStatus 同步结果状态
type SyncStatus string

const (
	SyncSuccess SyncStatus = "SUCCESS"
	SyncFailed  SyncStatus = "FAILED"
	SyncPartial SyncStatus = "PARTIAL"
)

// SyncLog 同步日志，仅追加
type SyncLog struct {
	ID           int64      `json:"id" db:"id"`
	RunID        string     `json:"run_id" db:"run_id"`
	UserID       *int64     `json:"user_id,omitempty" db:"user_id"`
	SyncType     SyncType   `json:"sync_type" db:"sync_type"`
	Status       SyncStatus `json:"status" db:"status"`
	RecordsCount int        `json:"records_count" db:"records_count"`
	ErrorMessage string     `json:"error_message,omitempty" db:"error_message"`
	StartedAt    time.Time  `json:"started_at" db:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty" db:"finished_at"`
}

// Duration reports how long the sync ran, zero while still open.
func (l SyncLog) Duration() time.Duration {
	if l.FinishedAt == nil {
		return 0
	}
	return l.FinishedAt.Sub(l.StartedAt)
}
