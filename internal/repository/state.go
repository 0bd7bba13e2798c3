package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rmarchant/rebal-backend/internal/models"
)

// StateRepo persists one RuntimeState row per wallet.
type StateRepo struct {
	pool *pgxpool.Pool
}

func NewStateRepo(pool *pgxpool.Pool) *StateRepo {
	return &StateRepo{pool: pool}
}

// Load returns the wallet's state, or (nil, nil) when no record exists yet.
// Day rollover is the engine's job; the repo returns the row as stored.
func (r *StateRepo) Load(ctx context.Context, wallet string) (*models.RuntimeState, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT wallet, day_key, last_trade_at_ms, trades_today, notional_today_usd, start_value_usd
		 FROM runtime_state WHERE wallet = $1`,
		wallet,
	)

	var s models.RuntimeState
	err := row.Scan(&s.Wallet, &s.DayKey, &s.LastTradeAtMs,
		&s.TradesToday, &s.NotionalTodayUsd, &s.StartValueUsd)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// Save upserts the wallet's state row.
func (r *StateRepo) Save(ctx context.Context, s *models.RuntimeState) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO runtime_state
		 (wallet, day_key, last_trade_at_ms, trades_today, notional_today_usd, start_value_usd, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,NOW())
		 ON CONFLICT (wallet) DO UPDATE SET
		   day_key = EXCLUDED.day_key,
		   last_trade_at_ms = EXCLUDED.last_trade_at_ms,
		   trades_today = EXCLUDED.trades_today,
		   notional_today_usd = EXCLUDED.notional_today_usd,
		   start_value_usd = EXCLUDED.start_value_usd,
		   updated_at = NOW()`,
		s.Wallet, s.DayKey, s.LastTradeAtMs, s.TradesToday, s.NotionalTodayUsd, s.StartValueUsd,
	)
	return err
}
