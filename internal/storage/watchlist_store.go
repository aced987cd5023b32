package storage

import (
	"context"

	"invest-analyzer/internal/model"
	"invest-analyzer/internal/provider"
)

// ReconcileWatchlist upserts the broker-side watchlist and deactivates
// rows the broker no longer reports, without deleting history. Returns
// the number of newly inserted rows.
func (s *Store) ReconcileWatchlist(ctx context.Context, userID int64, items []provider.WatchItem) (int, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	inserted := 0
	for i, item := range items {
		var wasInserted bool
		err := tx.QueryRow(ctx, `
			INSERT INTO watchlist (user_id, market, code, stock_name, group_name, sort_order, is_active)
			VALUES ($1, $2, $3, $4, $5, $6, TRUE)
			ON CONFLICT (user_id, market, code) DO UPDATE
			SET stock_name = EXCLUDED.stock_name,
			    group_name = EXCLUDED.group_name,
			    sort_order = EXCLUDED.sort_order,
			    is_active = TRUE,
			    updated_at = NOW()
			RETURNING (xmax = 0)`,
			userID, item.Market, item.Code, item.StockName, item.GroupName, i).Scan(&wasInserted)
		if err != nil {
			return 0, wrapDBErr(string(item.Market)+"."+item.Code, err)
		}
		if wasInserted {
			inserted++
		}
	}

	// Anything not reported this round goes inactive.
	codes := make([]string, 0, len(items))
	for _, item := range items {
		codes = append(codes, string(item.Market)+"."+item.Code)
	}
	if _, err := tx.Exec(ctx, `
		UPDATE watchlist SET is_active = FALSE, updated_at = NOW()
		WHERE user_id = $1 AND is_active AND market || '.' || code <> ALL($2)`,
		userID, codes); err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return inserted, nil
}

// ListActiveWatchlist returns a user's active watchlist ordered for display.
func (s *Store) ListActiveWatchlist(ctx context.Context, userID int64) ([]model.WatchlistItem, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, market, code, COALESCE(stock_name, ''), COALESCE(group_name, ''),
		       COALESCE(notes, ''), sort_order, is_active, created_at
		FROM watchlist WHERE user_id = $1 AND is_active
		ORDER BY sort_order, market, code`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.WatchlistItem
	for rows.Next() {
		var w model.WatchlistItem
		if err := rows.Scan(&w.ID, &w.UserID, &w.Market, &w.Code, &w.StockName, &w.GroupName,
			&w.Notes, &w.SortOrder, &w.IsActive, &w.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}
