// Package storage persists bars and user-scoped entities in postgres.
// Every upsert is a single short transaction; uniqueness keys make the
// sync pipeline idempotent.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4/pgxpool"
	"go.uber.org/zap"

	"invest-analyzer/internal/errs"
)

// Store wraps the shared connection pool.
type Store struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func New(db *pgxpool.Pool, logger *zap.Logger) *Store {
	return &Store{db: db, logger: logger}
}

// InitSchema executes the schema script.
func (s *Store) InitSchema(ctx context.Context, sqlFile string) error {
	content, err := os.ReadFile(sqlFile)
	if err != nil {
		return fmt.Errorf("failed to read init script: %w", err)
	}
	if _, err := s.db.Exec(ctx, string(content)); err != nil {
		return fmt.Errorf("failed to execute init script: %w", err)
	}
	s.logger.Info("database schema initialized")
	return nil
}

// wrapDBErr maps uniqueness violations onto the conflict kind so callers
// can retry once, per the recovery policy.
func wrapDBErr(symbol string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return errs.Conflict(symbol, err)
	}
	return err
}
