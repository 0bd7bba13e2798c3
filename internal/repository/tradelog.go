package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rmarchant/rebal-backend/internal/models"
)

// TradeLogRepo is the append-only log of submitted trades. Rows are only
// ever inserted, never updated or deleted.
type TradeLogRepo struct {
	pool *pgxpool.Pool
}

func NewTradeLogRepo(pool *pgxpool.Pool) *TradeLogRepo {
	return &TradeLogRepo{pool: pool}
}

func (r *TradeLogRepo) Append(ctx context.Context, t *models.TradeRecord) error {
	ts := t.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	dk := t.DayKey
	if dk == "" {
		dk = models.DayKey(ts)
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO trade_log
		 (timestamp, day_key, tx_hash, sell_symbol, buy_symbol, notional_usd, est_buy_usd, reason)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		ts, dk, t.TxHash, t.SellSymbol, t.BuySymbol, t.NotionalUsd, t.EstBuyUsd, t.Reason,
	)
	return err
}

// GetByDay returns trades for a given UTC day key, oldest first.
func (r *TradeLogRepo) GetByDay(ctx context.Context, dayKey string) ([]models.TradeRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, timestamp, day_key, tx_hash, sell_symbol, buy_symbol, notional_usd, est_buy_usd, reason
		 FROM trade_log WHERE day_key = $1 ORDER BY timestamp ASC`,
		dayKey,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTrades(rows)
}

// GetAll returns the most recent trades.
func (r *TradeLogRepo) GetAll(ctx context.Context, limit int) ([]models.TradeRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, timestamp, day_key, tx_hash, sell_symbol, buy_symbol, notional_usd, est_buy_usd, reason
		 FROM trade_log ORDER BY timestamp DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectTrades(rows)
}

// GetStats returns aggregate figures over the whole log.
func (r *TradeLogRepo) GetStats(ctx context.Context) (*models.TradeStats, error) {
	var s models.TradeStats
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*), SUM(notional_usd), AVG(notional_usd), MIN(timestamp), MAX(timestamp)
		 FROM trade_log`,
	).Scan(&s.TotalTrades, &s.TotalNotional, &s.AvgNotional, &s.FirstTrade, &s.LastTrade)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// CountToday returns the number of trades logged for today's UTC day.
func (r *TradeLogRepo) CountToday(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM trade_log WHERE day_key = $1`,
		models.DayKeyNow(),
	).Scan(&count)
	return count, err
}

func collectTrades(rows rowsIter) ([]models.TradeRecord, error) {
	var out []models.TradeRecord
	for rows.Next() {
		var t models.TradeRecord
		if err := rows.Scan(
			&t.ID, &t.Timestamp, &t.DayKey, &t.TxHash,
			&t.SellSymbol, &t.BuySymbol, &t.NotionalUsd, &t.EstBuyUsd, &t.Reason,
		); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
