package strategy

import (
	"fmt"
	"math"

	"github.com/rmarchant/rebal-backend/internal/models"
)

// Balance slack for token sells: the 2% absorbs price-probe imprecision so a
// wallet holding almost exactly the required amount can still trade.
const sellBalanceSlack = 0.98

// SelectDrift finds the symbol with the largest absolute deviation between
// actual and target allocation. Symbols are visited in order, so ties keep
// the first encountered. Symbols carrying no value default to an actual
// allocation of 0. Returns ok=false when there are no targets.
func SelectDrift(order []string, targets, alloc map[string]float64) (symbol string, delta float64, ok bool) {
	for _, sym := range order {
		target, exists := targets[sym]
		if !exists {
			continue
		}
		d := alloc[sym] - target
		if !ok || math.Abs(d) > math.Abs(delta) {
			symbol, delta, ok = sym, d, true
		}
	}
	return symbol, delta, ok
}

// Propose converts a selected drift into a directional trade intent sized to
// notionalUsd. An overweight symbol is sold into the base asset; an
// underweight symbol is bought with the base asset.
//
// When the selected symbol is the base asset itself the direct rule
// degenerates (base would trade against itself), so the proposal redirects to
// the non-base symbol with the largest opposite-signed drift: overweight base
// buys the most underweight token, underweight base sells the most overweight
// token. Returns nil when no such counterparty exists.
func Propose(symbol string, delta float64, base string, order []string, targets, alloc map[string]float64, notionalUsd float64) *models.ProposedTrade {
	if symbol == base {
		symbol, delta = redirectFromBase(delta, base, order, targets, alloc)
		if symbol == "" {
			return nil
		}
	}

	if delta > 0 {
		return &models.ProposedTrade{
			SellSymbol:  symbol,
			BuySymbol:   base,
			NotionalUsd: notionalUsd,
			Reason:      fmt.Sprintf("%s overweight by %.1f%%", symbol, delta*100),
		}
	}
	return &models.ProposedTrade{
		SellSymbol:  base,
		BuySymbol:   symbol,
		NotionalUsd: notionalUsd,
		Reason:      fmt.Sprintf("%s underweight by %.1f%%", symbol, -delta*100),
	}
}

// redirectFromBase picks the non-base symbol whose drift has the opposite
// sign of the base drift and the largest magnitude.
func redirectFromBase(baseDelta float64, base string, order []string, targets, alloc map[string]float64) (string, float64) {
	var bestSym string
	var bestDelta float64

	for _, sym := range order {
		if sym == base {
			continue
		}
		target, exists := targets[sym]
		if !exists {
			continue
		}
		d := alloc[sym] - target
		// Overweight base pairs with underweight tokens and vice versa.
		if baseDelta > 0 && d >= 0 {
			continue
		}
		if baseDelta < 0 && d <= 0 {
			continue
		}
		if bestSym == "" || math.Abs(d) > math.Abs(bestDelta) {
			bestSym, bestDelta = sym, d
		}
	}
	return bestSym, bestDelta
}

// CheckAffordable is the pre-flight balance check for a proposed trade. A
// failure is a benign no-trade outcome, not an error: msg describes what was
// missing.
func CheckAffordable(t *models.ProposedTrade, base string, minTradeUsd float64, balances, prices map[string]float64) (ok bool, msg string) {
	if t.SellSymbol == base {
		if balances[base] < minTradeUsd {
			return false, fmt.Sprintf("not enough %s to buy", base)
		}
		return true, ""
	}

	price := prices[t.SellSymbol]
	if price <= 0 {
		return false, fmt.Sprintf("no price for %s", t.SellSymbol)
	}
	needed := t.NotionalUsd / price
	if balances[t.SellSymbol] < needed*sellBalanceSlack {
		return false, fmt.Sprintf("not enough %s to sell", t.SellSymbol)
	}
	return true, ""
}
