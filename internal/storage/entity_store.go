package storage

import (
	"context"
	"time"

	"invest-analyzer/internal/model"
	"invest-analyzer/internal/provider"
)

// CreateUser inserts a user and returns its id.
func (s *Store) CreateUser(ctx context.Context, username, displayName, passwordHash string) (int64, error) {
	var id int64
	err := s.db.QueryRow(ctx, `
		INSERT INTO users (username, display_name, password_hash)
		VALUES ($1, $2, $3) RETURNING id`,
		username, displayName, passwordHash).Scan(&id)
	return id, wrapDBErr(username, err)
}

// GetUserByUsername loads a user and its password hash.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (model.User, string, error) {
	var u model.User
	var hash string
	err := s.db.QueryRow(ctx, `
		SELECT id, username, COALESCE(display_name, ''), is_active, created_at, password_hash
		FROM users WHERE username = $1`, username).
		Scan(&u.ID, &u.Username, &u.DisplayName, &u.IsActive, &u.CreatedAt, &hash)
	return u, hash, err
}

// UpsertAccount registers a broker account under a user.
func (s *Store) UpsertAccount(ctx context.Context, userID int64, acc provider.BrokerAccount) (int64, error) {
	var id int64
	err := s.db.QueryRow(ctx, `
		INSERT INTO accounts (user_id, broker_acc_id, account_name, account_type, market, currency, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE)
		ON CONFLICT (user_id, broker_acc_id) DO UPDATE
		SET account_name = EXCLUDED.account_name,
		    account_type = EXCLUDED.account_type,
		    market = EXCLUDED.market,
		    currency = EXCLUDED.currency,
		    updated_at = NOW()
		RETURNING id`,
		userID, acc.BrokerAccID, acc.AccountName, acc.AccountType, acc.Market, acc.Currency).Scan(&id)
	return id, wrapDBErr(acc.AccountName, err)
}

// ListActiveAccounts returns a user's active accounts.
func (s *Store) ListActiveAccounts(ctx context.Context, userID int64) ([]model.Account, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, user_id, broker_acc_id, COALESCE(account_name, ''), account_type, market, currency, is_active, created_at
		FROM accounts WHERE user_id = $1 AND is_active ORDER BY id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []model.Account
	for rows.Next() {
		var a model.Account
		if err := rows.Scan(&a.ID, &a.UserID, &a.BrokerAccID, &a.AccountName,
			&a.AccountType, &a.Market, &a.Currency, &a.IsActive, &a.CreatedAt); err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// UpsertPositions writes one day's position snapshot for an account.
// Re-syncing the same day refreshes prices in place; the count reports
// newly inserted rows only.
func (s *Store) UpsertPositions(ctx context.Context, accountID int64, snapshotDate time.Time, positions []provider.PositionInfo) (int, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	inserted := 0
	for _, p := range positions {
		var wasInserted bool
		err := tx.QueryRow(ctx, `
			INSERT INTO positions (account_id, snapshot_date, market, code, stock_name, qty, can_sell_qty,
			                       cost_price, market_price, market_value, pl_value, pl_ratio, position_side)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			ON CONFLICT (account_id, snapshot_date, market, code) DO UPDATE
			SET qty = EXCLUDED.qty,
			    can_sell_qty = EXCLUDED.can_sell_qty,
			    cost_price = EXCLUDED.cost_price,
			    market_price = EXCLUDED.market_price,
			    market_value = EXCLUDED.market_value,
			    pl_value = EXCLUDED.pl_value,
			    pl_ratio = EXCLUDED.pl_ratio,
			    stock_name = EXCLUDED.stock_name,
			    position_side = EXCLUDED.position_side
			RETURNING (xmax = 0)`,
			accountID, snapshotDate, p.Market, p.Code, p.StockName, p.Qty, p.CanSellQty,
			p.CostPrice, p.MarketPrice, p.MarketValue, p.PLValue, p.PLRatio, p.Side).Scan(&wasInserted)
		if err != nil {
			return 0, wrapDBErr(string(p.Market)+"."+p.Code, err)
		}
		if wasInserted {
			inserted++
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return inserted, nil
}

// GetPositions loads a day's snapshot across the given accounts.
func (s *Store) GetPositions(ctx context.Context, accountIDs []int64, snapshotDate time.Time) ([]model.Position, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, account_id, snapshot_date, market, code, COALESCE(stock_name, ''), qty,
		       COALESCE(can_sell_qty, 0), COALESCE(cost_price, 0), COALESCE(market_price, 0),
		       COALESCE(market_value, 0), COALESCE(pl_value, 0), COALESCE(pl_ratio, 0), position_side, created_at
		FROM positions
		WHERE account_id = ANY($1) AND snapshot_date = $2
		ORDER BY market, code`, accountIDs, snapshotDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Position
	for rows.Next() {
		var p model.Position
		if err := rows.Scan(&p.ID, &p.AccountID, &p.SnapshotDate, &p.Market, &p.Code, &p.StockName,
			&p.Qty, &p.CanSellQty, &p.CostPrice, &p.MarketPrice, &p.MarketValue,
			&p.PLValue, &p.PLRatio, &p.Side, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// LatestPositionDate returns the most recent snapshot date for a user's accounts.
func (s *Store) LatestPositionDate(ctx context.Context, userID int64) (time.Time, bool, error) {
	var latest *time.Time
	err := s.db.QueryRow(ctx, `
		SELECT MAX(p.snapshot_date)
		FROM positions p JOIN accounts a ON a.id = p.account_id
		WHERE a.user_id = $1`, userID).Scan(&latest)
	if err != nil || latest == nil {
		return time.Time{}, false, err
	}
	return *latest, true, nil
}

// InsertFills appends fills, deduplicated on (account_id, deal_id).
// Returns the number of new rows.
func (s *Store) InsertFills(ctx context.Context, accountID int64, deals []provider.DealInfo) (int, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	inserted := 0
	for _, d := range deals {
		tag, err := tx.Exec(ctx, `
			INSERT INTO trades (account_id, deal_id, order_id, trade_time, market, code, stock_name,
			                    trd_side, qty, price, amount, fee, currency)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
			ON CONFLICT (account_id, deal_id) DO NOTHING`,
			accountID, d.DealID, d.OrderID, d.TradeTime, d.Market, d.Code, d.StockName,
			d.Side, d.Qty, d.Price, d.Amount, d.Fee, d.Currency)
		if err != nil {
			return 0, wrapDBErr(d.DealID, err)
		}
		inserted += int(tag.RowsAffected())
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return inserted, nil
}

// ListFills loads an account's fills over a time range, ascending.
func (s *Store) ListFills(ctx context.Context, accountIDs []int64, from, to time.Time) ([]model.Fill, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, account_id, deal_id, COALESCE(order_id, ''), trade_time, market, code,
		       COALESCE(stock_name, ''), trd_side, qty, price, COALESCE(amount, 0),
		       COALESCE(fee, 0), COALESCE(currency, ''), created_at
		FROM trades
		WHERE account_id = ANY($1)
		  AND ($2::timestamptz IS NULL OR trade_time >= $2)
		  AND ($3::timestamptz IS NULL OR trade_time <= $3)
		ORDER BY trade_time ASC`, accountIDs, nullableDate(from), nullableDate(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Fill
	for rows.Next() {
		var f model.Fill
		if err := rows.Scan(&f.ID, &f.AccountID, &f.DealID, &f.OrderID, &f.TradeTime, &f.Market,
			&f.Code, &f.StockName, &f.Side, &f.Qty, &f.Price, &f.Amount, &f.Fee,
			&f.Currency, &f.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// UpsertAccountSnapshot writes the daily balance snapshot for an account.
func (s *Store) UpsertAccountSnapshot(ctx context.Context, accountID int64, snapshotDate time.Time, info provider.AccountInfo) (bool, error) {
	var inserted bool
	err := s.db.QueryRow(ctx, `
		INSERT INTO account_snapshots (account_id, snapshot_date, total_assets, cash, market_value,
		                               frozen_cash, buying_power, currency)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (account_id, snapshot_date) DO UPDATE
		SET total_assets = EXCLUDED.total_assets,
		    cash = EXCLUDED.cash,
		    market_value = EXCLUDED.market_value,
		    frozen_cash = EXCLUDED.frozen_cash,
		    buying_power = EXCLUDED.buying_power,
		    currency = EXCLUDED.currency
		RETURNING (xmax = 0)`,
		accountID, snapshotDate, info.TotalAssets, info.Cash, info.MarketValue,
		info.FrozenCash, info.BuyingPower, info.Currency).Scan(&inserted)
	return inserted, wrapDBErr("", err)
}

// GetAccountSnapshot loads one account's snapshot for a date.
func (s *Store) GetAccountSnapshot(ctx context.Context, accountID int64, snapshotDate time.Time) (*model.AccountSnapshot, error) {
	var snap model.AccountSnapshot
	err := s.db.QueryRow(ctx, `
		SELECT id, account_id, snapshot_date, COALESCE(total_assets, 0), COALESCE(cash, 0),
		       COALESCE(market_value, 0), COALESCE(frozen_cash, 0), COALESCE(buying_power, 0),
		       COALESCE(currency, ''), created_at
		FROM account_snapshots WHERE account_id = $1 AND snapshot_date = $2`,
		accountID, snapshotDate).
		Scan(&snap.ID, &snap.AccountID, &snap.SnapshotDate, &snap.TotalAssets, &snap.Cash,
			&snap.MarketValue, &snap.FrozenCash, &snap.BuyingPower, &snap.Currency, &snap.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &snap, nil
}
