package storage

import (
	"context"
	"time"

	"invest-analyzer/internal/model"
)

// UpsertBars inserts bars, skipping rows that already exist under the
// (market, code, trade_date) key. Returns the number actually inserted,
// so a repeated sync reports zero records.
func (s *Store) UpsertBars(ctx context.Context, bars []model.Bar) (int, error) {
	if len(bars) == 0 {
		return 0, nil
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	inserted := 0
	for _, b := range bars {
		tag, err := tx.Exec(ctx, `
			INSERT INTO klines (market, code, trade_date, open, high, low, close, volume, amount, turnover_rate, change_pct)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (market, code, trade_date) DO NOTHING`,
			b.Market, b.Code, b.TradeDate, b.Open, b.High, b.Low, b.Close,
			b.Volume, b.Amount, b.TurnoverRate, b.ChangePct)
		if err != nil {
			return 0, wrapDBErr(b.FullCode(), err)
		}
		inserted += int(tag.RowsAffected())
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return inserted, nil
}

// LatestBarDate returns the most recent persisted trade date for a symbol.
func (s *Store) LatestBarDate(ctx context.Context, market model.Market, code string) (time.Time, bool, error) {
	var latest *time.Time
	err := s.db.QueryRow(ctx,
		`SELECT MAX(trade_date) FROM klines WHERE market = $1 AND code = $2`,
		market, code).Scan(&latest)
	if err != nil {
		return time.Time{}, false, err
	}
	if latest == nil {
		return time.Time{}, false, nil
	}
	return *latest, true, nil
}

// LoadBars returns bars for a symbol ascending by date; zero range limits
// are open-ended.
func (s *Store) LoadBars(ctx context.Context, market model.Market, code string, from, to time.Time) ([]model.Bar, error) {
	rows, err := s.db.Query(ctx, `
		SELECT market, code, trade_date, open, high, low, close, volume,
		       COALESCE(amount, 0), COALESCE(turnover_rate, 0), COALESCE(change_pct, 0),
		       ma5, ma10, ma20, ma60, obv
		FROM klines
		WHERE market = $1 AND code = $2
		  AND ($3::date IS NULL OR trade_date >= $3)
		  AND ($4::date IS NULL OR trade_date <= $4)
		ORDER BY trade_date ASC`,
		market, code, nullableDate(from), nullableDate(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bars []model.Bar
	for rows.Next() {
		var b model.Bar
		if err := rows.Scan(&b.Market, &b.Code, &b.TradeDate, &b.Open, &b.High, &b.Low, &b.Close,
			&b.Volume, &b.Amount, &b.TurnoverRate, &b.ChangePct,
			&b.MA5, &b.MA10, &b.MA20, &b.MA60, &b.OBV); err != nil {
			return nil, err
		}
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// LoadRecentBars returns the last n bars ascending.
func (s *Store) LoadRecentBars(ctx context.Context, market model.Market, code string, n int) ([]model.Bar, error) {
	rows, err := s.db.Query(ctx, `
		SELECT market, code, trade_date, open, high, low, close, volume,
		       COALESCE(amount, 0), COALESCE(turnover_rate, 0), COALESCE(change_pct, 0),
		       ma5, ma10, ma20, ma60, obv
		FROM (
			SELECT * FROM klines
			WHERE market = $1 AND code = $2
			ORDER BY trade_date DESC
			LIMIT $3
		) recent
		ORDER BY trade_date ASC`,
		market, code, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bars []model.Bar
	for rows.Next() {
		var b model.Bar
		if err := rows.Scan(&b.Market, &b.Code, &b.TradeDate, &b.Open, &b.High, &b.Low, &b.Close,
			&b.Volume, &b.Amount, &b.TurnoverRate, &b.ChangePct,
			&b.MA5, &b.MA10, &b.MA20, &b.MA60, &b.OBV); err != nil {
			return nil, err
		}
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// UpdateBarDerived fills the pre-calculated MA and OBV columns.
func (s *Store) UpdateBarDerived(ctx context.Context, bars []model.Bar) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, b := range bars {
		if _, err := tx.Exec(ctx, `
			UPDATE klines SET ma5 = $4, ma10 = $5, ma20 = $6, ma60 = $7, obv = $8, updated_at = NOW()
			WHERE market = $1 AND code = $2 AND trade_date = $3`,
			b.Market, b.Code, b.TradeDate, b.MA5, b.MA10, b.MA20, b.MA60, b.OBV); err != nil {
			return wrapDBErr(b.FullCode(), err)
		}
	}
	return tx.Commit(ctx)
}

func nullableDate(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
