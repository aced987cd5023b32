package storage

import (
	"context"

	"invest-analyzer/internal/model"
)

// AppendSyncLog records a finished sync operation. The table is
// append-only; nothing ever updates a logged row.
func (s *Store) AppendSyncLog(ctx context.Context, log model.SyncLog) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO sync_logs (run_id, user_id, sync_type, status, records_count, error_message, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8)`,
		log.RunID, log.UserID, log.SyncType, log.Status, log.RecordsCount,
		log.ErrorMessage, log.StartedAt, log.FinishedAt)
	return err
}

// LastSyncLog returns the most recent log for a user and sync type.
func (s *Store) LastSyncLog(ctx context.Context, userID int64, syncType model.SyncType) (*model.SyncLog, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, run_id, user_id, sync_type, status, records_count, COALESCE(error_message, ''), started_at, finished_at
		FROM sync_logs
		WHERE user_id = $1 AND sync_type = $2
		ORDER BY started_at DESC LIMIT 1`, userID, syncType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	var l model.SyncLog
	if err := rows.Scan(&l.ID, &l.RunID, &l.UserID, &l.SyncType, &l.Status,
		&l.RecordsCount, &l.ErrorMessage, &l.StartedAt, &l.FinishedAt); err != nil {
		return nil, err
	}
	return &l, nil
}
