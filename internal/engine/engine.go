package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rmarchant/rebal-backend/internal/config"
	"github.com/rmarchant/rebal-backend/internal/models"
	"github.com/rmarchant/rebal-backend/internal/notifications"
	"github.com/rmarchant/rebal-backend/internal/risk"
	"github.com/rmarchant/rebal-backend/internal/strategy"
)

// ErrBusy is returned when a tick is requested while another is in flight.
// Ticks never interleave: the caller should retry later, not queue.
var ErrBusy = errors.New("tick already in progress")

// targetSumTolerance is how far the target weights may deviate from 1.
const targetSumTolerance = 0.02

// ChainReader reads token metadata and balances from the chain.
type ChainReader interface {
	Decimals(ctx context.Context, token common.Address) (uint8, error)
	BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error)
	Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error)
}

// TxSubmitter signs and broadcasts transactions. Approve must grant exactly
// the requested amount. WaitMined blocks until mined or its bound elapses.
type TxSubmitter interface {
	Approve(ctx context.Context, token, spender common.Address, amount *big.Int) (string, error)
	WaitMined(ctx context.Context, txHash string) error
	Send(ctx context.Context, to common.Address, data []byte, value *big.Int) (string, error)
}

// QuoteProvider returns executable swap quotes.
type QuoteProvider interface {
	Quote(ctx context.Context, req models.QuoteRequest) (*models.Quote, error)
}

// StateStore persists the per-wallet RuntimeState. Load returns (nil, nil)
// when no record exists yet.
type StateStore interface {
	Load(ctx context.Context, wallet string) (*models.RuntimeState, error)
	Save(ctx context.Context, s *models.RuntimeState) error
}

// TradeLog is the append-only record of submitted trades.
type TradeLog interface {
	Append(ctx context.Context, rec *models.TradeRecord) error
}

// Engine runs rebalancing ticks for a single wallet. A tick runs to
// completion before the next may start; the internal lock covers the whole
// procedure, not just the state write.
type Engine struct {
	wallet common.Address
	chain  ChainReader
	tx     TxSubmitter
	quotes QuoteProvider
	store  StateStore
	trades TradeLog
	notify *notifications.Sender

	now func() time.Time

	mu sync.Mutex
}

func New(wallet common.Address, chain ChainReader, tx TxSubmitter, quotes QuoteProvider, store StateStore, trades TradeLog, notify *notifications.Sender) *Engine {
	return &Engine{
		wallet: wallet,
		chain:  chain,
		tx:     tx,
		quotes: quotes,
		store:  store,
		trades: trades,
		notify: notify,
		now:    time.Now,
	}
}

// RunTick executes one full tick: snapshot, drift selection, proposal,
// policy, execution, state commit. Returns ErrBusy if a tick is already
// running; every other failure mode is folded into the TickResult.
func (e *Engine) RunTick(ctx context.Context, cfg *config.Runtime) (models.TickResult, error) {
	if !e.mu.TryLock() {
		return models.TickResult{}, ErrBusy
	}
	defer e.mu.Unlock()
	return e.tick(ctx, cfg), nil
}

// DryRun executes a tick with the pause flag forced on: the full snapshot
// and proposal pipeline runs, but policy blocks before anything is
// submitted and no state is mutated beyond the first-ever baseline.
func (e *Engine) DryRun(ctx context.Context, cfg *config.Runtime) (models.TickResult, error) {
	forced := *cfg
	forced.Paused = true
	return e.RunTick(ctx, &forced)
}

func (e *Engine) tick(ctx context.Context, cfg *config.Runtime) models.TickResult {
	now := e.now()

	if err := validateTick(cfg); err != nil {
		return models.TickResult{Ok: false, Message: err.Error()}
	}

	snap, decimals, err := e.buildSnapshot(ctx, cfg)
	if err != nil {
		return models.TickResult{Ok: false, Message: err.Error()}
	}

	state, err := e.loadState(ctx, now)
	if err != nil {
		return models.TickResult{Ok: false, Message: err.Error(), Snapshot: snap}
	}

	// The drawdown baseline is captured exactly once, on the first tick
	// ever, and survives day rollovers. This is the only state mutation a
	// non-trading tick may perform.
	if state.StartValueUsd == nil {
		v := snap.PortfolioUsd
		state.StartValueUsd = &v
		if err := e.store.Save(ctx, state); err != nil {
			perr := &ProviderError{Op: "baseline save", Err: err}
			return models.TickResult{Ok: false, Message: perr.Error(), Snapshot: snap}
		}
		fmt.Printf("[TICK] Drawdown baseline captured: $%.2f\n", v)
	}

	if risk.DrawdownBreached(*state.StartValueUsd, snap.PortfolioUsd, cfg.DrawdownStopPct) {
		msg := fmt.Sprintf("drawdown stop triggered (>%.0f%% down from $%.2f), trading disabled",
			cfg.DrawdownStopPct*100, *state.StartValueUsd)
		e.send("CIRCUIT BREAKER: " + msg)
		return models.TickResult{Ok: false, Message: msg, Snapshot: snap}
	}

	sym, delta, found := strategy.SelectDrift(cfg.TargetOrder, cfg.Targets, snap.Alloc)
	if !found {
		return models.TickResult{Ok: true, Message: "no targets configured", Snapshot: snap}
	}
	if math.Abs(delta) < cfg.Band {
		return models.TickResult{Ok: true, Message: "within band, no trade", Snapshot: snap}
	}

	proposed := strategy.Propose(sym, delta, cfg.Base(), cfg.TargetOrder, cfg.Targets, snap.Alloc, cfg.MaxTradeUsd)
	if proposed == nil {
		return models.TickResult{Ok: true,
			Message: fmt.Sprintf("%s drift has no counterparty, no trade", sym), Snapshot: snap}
	}

	if ok, msg := strategy.CheckAffordable(proposed, cfg.Base(), cfg.MinTradeUsd, snap.Balances, snap.PricesUsd); !ok {
		return models.TickResult{Ok: true, Message: msg, Snapshot: snap, Proposed: proposed}
	}

	if v := risk.Evaluate(limitsFrom(cfg), state, proposed, now); v != nil {
		return models.TickResult{Ok: true,
			Message: "trade blocked by policy: " + v.Reason, Snapshot: snap, Proposed: proposed}
	}

	return e.execute(ctx, cfg, snap, decimals, state, proposed, now)
}

func (e *Engine) loadState(ctx context.Context, now time.Time) (*models.RuntimeState, error) {
	state, err := e.store.Load(ctx, e.wallet.Hex())
	if err != nil {
		return nil, &ProviderError{Op: "state load", Err: err}
	}
	if state == nil {
		state = models.NewRuntimeState(e.wallet.Hex(), now)
	}
	if state.RollDay(models.DayKey(now)) {
		fmt.Printf("[TICK] Day rollover to %s, daily counters reset\n", state.DayKey)
	}
	return state, nil
}

func validateTick(cfg *config.Runtime) error {
	var sum float64
	for _, w := range cfg.Targets {
		sum += w
	}
	if math.Abs(sum-1) > targetSumTolerance {
		return &ConfigError{Reason: fmt.Sprintf("targets must sum to ~1 (got %.4f)", sum)}
	}
	if _, ok := cfg.AllowTokens[cfg.Base()]; !ok {
		return &ConfigError{Reason: fmt.Sprintf("base asset %s missing from allowTokens", cfg.Base())}
	}
	return nil
}

func limitsFrom(cfg *config.Runtime) risk.Limits {
	allowed := make(map[string]bool, len(cfg.AllowTokens))
	for sym := range cfg.AllowTokens {
		allowed[sym] = true
	}
	return risk.Limits{
		Paused:              cfg.Paused,
		MinTradeUsd:         cfg.MinTradeUsd,
		MaxTradeUsd:         cfg.MaxTradeUsd,
		MaxDailyNotionalUsd: cfg.MaxDailyNotionalUsd,
		MaxTradesPerDay:     cfg.MaxTradesPerDay,
		CooldownMinutes:     cfg.CooldownMinutes,
		AllowedSymbols:      allowed,
	}
}

func (e *Engine) send(msg string) {
	if e.notify != nil {
		e.notify.Send(msg)
	}
}
