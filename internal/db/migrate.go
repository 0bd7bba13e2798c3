package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS runtime_state (
		wallet             TEXT PRIMARY KEY,
		day_key            TEXT NOT NULL,
		last_trade_at_ms   BIGINT,
		trades_today       INTEGER NOT NULL DEFAULT 0,
		notional_today_usd DOUBLE PRECISION NOT NULL DEFAULT 0,
		start_value_usd    DOUBLE PRECISION,
		updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS trade_log (
		id           BIGSERIAL PRIMARY KEY,
		timestamp    TIMESTAMPTZ NOT NULL,
		day_key      TEXT NOT NULL,
		tx_hash      TEXT NOT NULL,
		sell_symbol  TEXT NOT NULL,
		buy_symbol   TEXT NOT NULL,
		notional_usd DOUBLE PRECISION NOT NULL,
		est_buy_usd  DOUBLE PRECISION NOT NULL,
		reason       TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS trade_log_day_key_idx ON trade_log (day_key)`,
}

// Migrate creates the agent's tables if they don't exist.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range migrations {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
