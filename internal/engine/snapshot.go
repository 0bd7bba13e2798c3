package engine

import (
	"context"
	"math"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rmarchant/rebal-backend/internal/config"
	"github.com/rmarchant/rebal-backend/internal/models"
)

// Price probes don't need strict slippage; the firm quote at execution time
// does.
const probeSlippageBps = 100

// buildSnapshot reads balances and decimals for every allow-listed token and
// derives a USD price for each non-base symbol from a small probe quote.
// Read-only: a snapshot never mutates state. Any unusable price fails the
// whole tick; drift is never computed from a partial snapshot.
func (e *Engine) buildSnapshot(ctx context.Context, cfg *config.Runtime) (*models.MarketSnapshot, map[string]uint8, error) {
	symbols := make([]string, 0, len(cfg.AllowTokens))
	for sym := range cfg.AllowTokens {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	base := cfg.Base()
	baseAddr := cfg.AllowTokens[base]

	decimals := make(map[string]uint8, len(symbols))
	balances := make(map[string]float64, len(symbols))

	for _, sym := range symbols {
		addr := common.HexToAddress(cfg.AllowTokens[sym])

		dec, err := e.chain.Decimals(ctx, addr)
		if err != nil {
			return nil, nil, &ProviderError{Op: "decimals " + sym, Err: err}
		}
		decimals[sym] = dec

		bal, err := e.chain.BalanceOf(ctx, addr, e.wallet)
		if err != nil {
			return nil, nil, &ProviderError{Op: "balanceOf " + sym, Err: err}
		}
		balances[sym] = fromUnits(bal, dec)
	}

	// The base asset settles every trade and is priced at exactly 1.0 USD;
	// it is never probed.
	prices := map[string]float64{base: 1.0}

	for _, sym := range symbols {
		if sym == base {
			continue
		}

		probe := cfg.ProbeSize(sym)
		q, err := e.quotes.Quote(ctx, models.QuoteRequest{
			ChainID:     cfg.ChainID,
			SellToken:   cfg.AllowTokens[sym],
			BuyToken:    baseAddr,
			SellAmount:  toUnits(probe, decimals[sym], -1),
			Taker:       e.wallet.Hex(),
			SlippageBps: probeSlippageBps,
		})
		if err != nil {
			return nil, nil, &ProviderError{Op: "price probe " + sym, Err: err}
		}

		price := fromUnits(q.BuyAmount, decimals[base]) / probe
		if math.IsNaN(price) || math.IsInf(price, 0) || price <= 0 {
			return nil, nil, &MarketDataError{Symbol: sym, Price: price}
		}
		prices[sym] = price
	}

	values := make(map[string]float64, len(symbols))
	var total float64
	for _, sym := range symbols {
		v := balances[sym] * prices[sym]
		values[sym] = v
		total += v
	}

	alloc := make(map[string]float64, len(symbols))
	for _, sym := range symbols {
		if total > 0 {
			alloc[sym] = values[sym] / total
		} else {
			alloc[sym] = 0
		}
	}

	snap := &models.MarketSnapshot{
		Wallet:       e.wallet.Hex(),
		PortfolioUsd: total,
		Balances:     balances,
		PricesUsd:    prices,
		ValuesUsd:    values,
		Alloc:        alloc,
		Targets:      cfg.Targets,
		Paused:       cfg.Paused,
	}
	return snap, decimals, nil
}
