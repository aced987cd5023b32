package storage

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"invest-analyzer/internal/model"
)

// CreateAlert inserts a price alert rule.
func (s *Store) CreateAlert(ctx context.Context, a model.PriceAlert) (int64, error) {
	var id int64
	err := s.db.QueryRow(ctx, `
		INSERT INTO price_alerts (user_id, market, code, stock_name, alert_type, target_price,
		                          target_change_pct, base_price, notes, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), TRUE)
		RETURNING id`,
		a.UserID, a.Market, a.Code, a.StockName, a.AlertType, a.TargetPrice,
		a.TargetChangePct, a.BasePrice, a.Notes).Scan(&id)
	return id, wrapDBErr(a.FullCode(), err)
}

// ListActiveAlerts returns all active, untriggered alerts, optionally
// scoped to one user (userID = 0 means all users).
func (s *Store) ListActiveAlerts(ctx context.Context, userID int64) ([]model.PriceAlert, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, market, code, COALESCE(stock_name, ''), alert_type,
		       COALESCE(target_price, 0), COALESCE(target_change_pct, 0), COALESCE(base_price, 0),
		       COALESCE(notes, ''), is_active, is_triggered, triggered_at, COALESCE(triggered_price, 0), created_at
		FROM price_alerts
		WHERE is_active AND NOT is_triggered AND ($1 = 0 OR user_id = $1)
		ORDER BY id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.PriceAlert
	for rows.Next() {
		var a model.PriceAlert
		if err := rows.Scan(&a.ID, &a.UserID, &a.Market, &a.Code, &a.StockName, &a.AlertType,
			&a.TargetPrice, &a.TargetChangePct, &a.BasePrice, &a.Notes,
			&a.IsActive, &a.IsTriggered, &a.TriggeredAt, &a.TriggeredPrice, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// MarkAlertTriggered stamps the trigger time and price.
func (s *Store) MarkAlertTriggered(ctx context.Context, alertID int64, at time.Time, price decimal.Decimal) error {
	_, err := s.db.Exec(ctx, `
		UPDATE price_alerts
		SET is_triggered = TRUE, triggered_at = $2, triggered_price = $3, updated_at = NOW()
		WHERE id = $1`, alertID, at, price)
	return err
}

// ResetAlert re-arms a triggered alert.
func (s *Store) ResetAlert(ctx context.Context, alertID int64) error {
	_, err := s.db.Exec(ctx, `
		UPDATE price_alerts
		SET is_triggered = FALSE, triggered_at = NULL, triggered_price = NULL, updated_at = NOW()
		WHERE id = $1`, alertID)
	return err
}
