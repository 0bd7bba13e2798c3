package engine

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rmarchant/rebal-backend/internal/config"
	"github.com/rmarchant/rebal-backend/internal/models"
)

// Fractional precision caps for sell amounts. Base amounts are exact USD at
// the stablecoin's own precision; derived token amounts are clamped so the
// probed price's noise doesn't leak into the native integer amount.
const (
	baseAmountFrac  = 6
	tokenAmountFrac = 8
)

// execute runs the post-policy pipeline: firm quote, quote-quality check,
// allowance, swap submission, and only after submission succeeded the
// single state commit and trade-log append.
func (e *Engine) execute(ctx context.Context, cfg *config.Runtime, snap *models.MarketSnapshot, decimals map[string]uint8, state *models.RuntimeState, proposed *models.ProposedTrade, now time.Time) models.TickResult {
	base := cfg.Base()
	sellAddr := cfg.AllowTokens[proposed.SellSymbol]
	buyAddr := cfg.AllowTokens[proposed.BuySymbol]

	var sellAmount *big.Int
	if proposed.SellSymbol == base {
		sellAmount = toUnits(proposed.NotionalUsd, decimals[base], baseAmountFrac)
	} else {
		price := snap.PricesUsd[proposed.SellSymbol]
		sellAmount = toUnits(proposed.NotionalUsd/price, decimals[proposed.SellSymbol], tokenAmountFrac)
	}

	quote, err := e.quotes.Quote(ctx, models.QuoteRequest{
		ChainID:     cfg.ChainID,
		SellToken:   sellAddr,
		BuyToken:    buyAddr,
		SellAmount:  sellAmount,
		Taker:       e.wallet.Hex(),
		SlippageBps: cfg.MaxSlippageBps,
	})
	if err != nil {
		perr := &ProviderError{Op: "firm quote", Err: err}
		return models.TickResult{Ok: false, Message: perr.Error(), Snapshot: snap, Proposed: proposed}
	}

	// Quote quality: if the implied buy value is well below the intended
	// notional, the pool is thin or the impact excessive. Benign skip.
	var buyUsd float64
	if proposed.BuySymbol == base {
		buyUsd = fromUnits(quote.BuyAmount, decimals[base])
	} else {
		buyUsd = fromUnits(quote.BuyAmount, decimals[proposed.BuySymbol]) * snap.PricesUsd[proposed.BuySymbol]
	}
	if buyUsd < proposed.NotionalUsd*cfg.QuoteQualityFloor {
		return models.TickResult{Ok: true,
			Message: fmt.Sprintf("quote too poor ($%.2f for $%.2f notional), skipping", buyUsd, proposed.NotionalUsd),
			Snapshot: snap, Proposed: proposed}
	}

	// Policy already denies on pause; this re-check keeps a forced dry run
	// from ever reaching submission even if the rule set changes.
	if cfg.Paused {
		return models.TickResult{Ok: true, Message: "paused (dry run only)", Snapshot: snap, Proposed: proposed}
	}

	sellToken := common.HexToAddress(sellAddr)
	spender := common.HexToAddress(quote.Spender())

	current, err := e.chain.Allowance(ctx, sellToken, e.wallet, spender)
	if err != nil {
		perr := &ProviderError{Op: "allowance read", Err: err}
		return models.TickResult{Ok: false, Message: perr.Error(), Snapshot: snap, Proposed: proposed}
	}

	if current.Cmp(sellAmount) < 0 {
		// Approve the exact sell amount only. Unlimited approvals hand the
		// spender open-ended authority and are disallowed.
		approveHash, err := e.tx.Approve(ctx, sellToken, spender, sellAmount)
		if err != nil {
			perr := &ProviderError{Op: "approve", Err: err}
			return models.TickResult{Ok: false, Message: perr.Error(), Snapshot: snap, Proposed: proposed}
		}
		fmt.Printf("[EXEC] Approval submitted for %s: %s\n", proposed.SellSymbol, approveHash)

		if err := e.tx.WaitMined(ctx, approveHash); err != nil {
			perr := &ProviderError{
				Op:      "approval receipt",
				Timeout: errors.Is(err, context.DeadlineExceeded),
				Err:     err,
			}
			return models.TickResult{Ok: false, Message: perr.Error(), Snapshot: snap, Proposed: proposed}
		}
	}

	txHash, err := e.tx.Send(ctx, common.HexToAddress(quote.To), quote.Data, quote.Value)
	if err != nil {
		perr := &ProviderError{Op: "swap submission", Err: err}
		return models.TickResult{Ok: false, Message: perr.Error(), Snapshot: snap, Proposed: proposed}
	}

	// Submission confirmed: this is the only point where state mutates and
	// the trade log grows.
	ms := now.UnixMilli()
	state.LastTradeAtMs = &ms
	state.TradesToday++
	state.NotionalTodayUsd += proposed.NotionalUsd

	// The swap is already on chain, so a persistence failure cannot fail the
	// tick. It still has to reach the caller: stale counters let the next
	// tick admit one extra trade past the caps.
	var saveNote string
	if err := e.store.Save(ctx, state); err != nil {
		fmt.Printf("[EXEC] Warning: state save failed after submission: %v\n", err)
		saveNote = fmt.Sprintf(" (state save failed: %v)", err)
	}
	if err := e.trades.Append(ctx, &models.TradeRecord{
		Timestamp:   now,
		DayKey:      models.DayKey(now),
		TxHash:      txHash,
		SellSymbol:  proposed.SellSymbol,
		BuySymbol:   proposed.BuySymbol,
		NotionalUsd: proposed.NotionalUsd,
		EstBuyUsd:   buyUsd,
		Reason:      proposed.Reason,
	}); err != nil {
		fmt.Printf("[EXEC] Warning: trade log append failed: %v\n", err)
	}

	e.send(fmt.Sprintf("Rebalance trade sent: %s -> %s $%.2f (%s) tx %s",
		proposed.SellSymbol, proposed.BuySymbol, proposed.NotionalUsd, proposed.Reason, txHash))

	return models.TickResult{Ok: true,
		Message: "trade sent: " + txHash + saveNote, Snapshot: snap, Proposed: proposed, TxHash: txHash}
}
