package risk

import (
	"fmt"
	"time"

	"github.com/rmarchant/rebal-backend/internal/models"
)

// Limits holds the policy thresholds for one tick. The engine builds this
// from the runtime config so the evaluation itself stays a pure function.
type Limits struct {
	Paused              bool
	MinTradeUsd         float64
	MaxTradeUsd         float64
	MaxDailyNotionalUsd float64
	MaxTradesPerDay     int
	CooldownMinutes     int
	AllowedSymbols      map[string]bool
}

// Violation is a deliberate policy deny with a machine-readable rule name.
// It is an outcome, not an error: a denied trade is withheld, never retried
// and never mutates state.
type Violation struct {
	Rule   string
	Reason string
}

func (v *Violation) String() string {
	return v.Reason
}

// Evaluate checks a proposed trade against the risk rules in fixed order;
// the first failing rule wins. Returns nil when the trade is allowed.
//
// Rule order: pause flag, minimum size, maximum size, daily notional cap,
// daily trade cap, cooldown, allow-list membership.
func Evaluate(l Limits, state *models.RuntimeState, trade *models.ProposedTrade, now time.Time) *Violation {
	if l.Paused {
		return &Violation{Rule: "paused", Reason: "paused"}
	}
	if trade.NotionalUsd < l.MinTradeUsd {
		return &Violation{Rule: "minTradeUsd",
			Reason: fmt.Sprintf("below minTradeUsd ($%.2f < $%.2f)", trade.NotionalUsd, l.MinTradeUsd)}
	}
	if trade.NotionalUsd > l.MaxTradeUsd {
		return &Violation{Rule: "maxTradeUsd",
			Reason: fmt.Sprintf("exceeds maxTradeUsd ($%.2f > $%.2f)", trade.NotionalUsd, l.MaxTradeUsd)}
	}
	if state.NotionalTodayUsd+trade.NotionalUsd > l.MaxDailyNotionalUsd {
		return &Violation{Rule: "maxDailyNotionalUsd",
			Reason: fmt.Sprintf("exceeds maxDailyNotionalUsd ($%.2f + $%.2f > $%.2f)",
				state.NotionalTodayUsd, trade.NotionalUsd, l.MaxDailyNotionalUsd)}
	}
	if state.TradesToday+1 > l.MaxTradesPerDay {
		return &Violation{Rule: "maxTradesPerDay",
			Reason: fmt.Sprintf("exceeds maxTradesPerDay (%d executed today)", state.TradesToday)}
	}
	if state.LastTradeAtMs != nil {
		elapsed := float64(now.UnixMilli()-*state.LastTradeAtMs) / 60000
		if elapsed < float64(l.CooldownMinutes) {
			return &Violation{Rule: "cooldown",
				Reason: fmt.Sprintf("cooldown %.1fm < %dm", elapsed, l.CooldownMinutes)}
		}
	}
	if !l.AllowedSymbols[trade.SellSymbol] || !l.AllowedSymbols[trade.BuySymbol] {
		return &Violation{Rule: "allowlist", Reason: "token not allowlisted"}
	}
	return nil
}

// DrawdownBreached reports whether portfolio value has fallen below the
// configured fraction of the first-observed baseline. A zero baseline or a
// zero stop fraction disables the breaker.
func DrawdownBreached(startValueUsd, currentUsd, stopPct float64) bool {
	if startValueUsd <= 0 || stopPct <= 0 {
		return false
	}
	return currentUsd < startValueUsd*(1-stopPct)
}
