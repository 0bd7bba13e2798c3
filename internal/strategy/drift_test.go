package strategy

import (
	"math"
	"testing"
)

var order = []string{"USDC", "WETH", "AERO"}

func targets() map[string]float64 {
	return map[string]float64{"USDC": 0.40, "WETH": 0.40, "AERO": 0.20}
}

func TestSelectDrift_PicksLargestAbsolute(t *testing.T) {
	alloc := map[string]float64{"USDC": 0.45, "WETH": 0.30, "AERO": 0.25}
	sym, delta, ok := SelectDrift(order, targets(), alloc)
	if !ok {
		t.Fatal("expected a selection")
	}
	if sym != "WETH" {
		t.Fatalf("expected WETH (-10pp), got %s (%.3f)", sym, delta)
	}
	if math.Abs(delta-(-0.10)) > 1e-9 {
		t.Fatalf("expected delta -0.10, got %.4f", delta)
	}
}

func TestSelectDrift_TieKeepsFirstInOrder(t *testing.T) {
	// 0.125 is an exact binary fraction, so both drifts compare equal and the
	// earlier symbol must win.
	tieTargets := map[string]float64{"USDC": 0.25, "WETH": 0.25, "AERO": 0.50}
	alloc := map[string]float64{"USDC": 0.375, "WETH": 0.125, "AERO": 0.50}
	sym, _, ok := SelectDrift(order, tieTargets, alloc)
	if !ok || sym != "USDC" {
		t.Fatalf("equal +12.5pp/-12.5pp drifts should keep the earlier symbol, got %s", sym)
	}
}

func TestSelectDrift_MissingSymbolsDefaultToZero(t *testing.T) {
	alloc := map[string]float64{"USDC": 1.0}
	sym, delta, ok := SelectDrift(order, targets(), alloc)
	if !ok || sym != "USDC" {
		t.Fatalf("all-in-USDC wallet should select USDC, got %s", sym)
	}
	if delta <= 0 {
		t.Fatalf("USDC should be overweight, got %.3f", delta)
	}
}

func TestSelectDrift_NoTargets(t *testing.T) {
	if _, _, ok := SelectDrift(nil, nil, nil); ok {
		t.Fatal("no targets should return ok=false")
	}
}

func TestPropose_OverweightSellsIntoBase(t *testing.T) {
	p := Propose("WETH", 0.08, "USDC", order, targets(), nil, 25)
	if p == nil {
		t.Fatal("expected a proposal")
	}
	if p.SellSymbol != "WETH" || p.BuySymbol != "USDC" {
		t.Fatalf("expected WETH->USDC, got %s->%s", p.SellSymbol, p.BuySymbol)
	}
	if p.NotionalUsd != 25 {
		t.Fatalf("expected $25 notional, got %.2f", p.NotionalUsd)
	}
	if p.Reason != "WETH overweight by 8.0%" {
		t.Fatalf("unexpected reason: %q", p.Reason)
	}
}

func TestPropose_UnderweightBuysWithBase(t *testing.T) {
	p := Propose("AERO", -0.05, "USDC", order, targets(), nil, 25)
	if p == nil {
		t.Fatal("expected a proposal")
	}
	if p.SellSymbol != "USDC" || p.BuySymbol != "AERO" {
		t.Fatalf("expected USDC->AERO, got %s->%s", p.SellSymbol, p.BuySymbol)
	}
	if p.Reason != "AERO underweight by 5.0%" {
		t.Fatalf("unexpected reason: %q", p.Reason)
	}
}

// The wallet is almost entirely USDC, so USDC carries the largest drift.
// The proposal must redirect into buying the most underweight token instead
// of trading the base against itself.
func TestPropose_OverweightBaseRedirects(t *testing.T) {
	alloc := map[string]float64{"USDC": 0.90, "WETH": 0.05, "AERO": 0.05}
	sym, delta, ok := SelectDrift(order, targets(), alloc)
	if !ok || sym != "USDC" {
		t.Fatalf("expected USDC to carry the largest drift, got %s", sym)
	}

	p := Propose(sym, delta, "USDC", order, targets(), alloc, 25)
	if p == nil {
		t.Fatal("expected a redirected proposal")
	}
	if p.SellSymbol != "USDC" || p.BuySymbol != "WETH" {
		t.Fatalf("expected USDC->WETH (most underweight), got %s->%s", p.SellSymbol, p.BuySymbol)
	}
}

func TestPropose_UnderweightBaseRedirects(t *testing.T) {
	alloc := map[string]float64{"USDC": 0.05, "WETH": 0.70, "AERO": 0.25}
	sym, delta, ok := SelectDrift(order, targets(), alloc)
	if !ok || sym != "USDC" {
		t.Fatalf("expected USDC to carry the largest drift, got %s", sym)
	}

	p := Propose(sym, delta, "USDC", order, targets(), alloc, 25)
	if p == nil {
		t.Fatal("expected a redirected proposal")
	}
	if p.SellSymbol != "WETH" || p.BuySymbol != "USDC" {
		t.Fatalf("expected WETH->USDC (most overweight), got %s->%s", p.SellSymbol, p.BuySymbol)
	}
}

func TestPropose_BaseDriftWithoutCounterparty(t *testing.T) {
	// Base overweight but every token is also at or above target.
	alloc := map[string]float64{"USDC": 0.42, "WETH": 0.40, "AERO": 0.20}
	p := Propose("USDC", 0.02, "USDC", order, targets(), alloc, 25)
	if p != nil {
		t.Fatalf("expected nil proposal, got %+v", p)
	}
}

func TestCheckAffordable_BaseSellNeedsMinBalance(t *testing.T) {
	trade := Propose("AERO", -0.05, "USDC", order, targets(), nil, 25)
	balances := map[string]float64{"USDC": 4.99}
	prices := map[string]float64{"USDC": 1.0}

	ok, msg := CheckAffordable(trade, "USDC", 5, balances, prices)
	if ok {
		t.Fatal("expected affordability failure")
	}
	if msg != "not enough USDC to buy" {
		t.Fatalf("unexpected message: %q", msg)
	}
}

func TestCheckAffordable_TokenSellUsesSlack(t *testing.T) {
	trade := Propose("WETH", 0.08, "USDC", order, targets(), nil, 25)
	prices := map[string]float64{"WETH": 2500}

	// Needs 0.01 WETH; 0.0099 clears the 2% slack, 0.0097 does not.
	ok, _ := CheckAffordable(trade, "USDC", 5, map[string]float64{"WETH": 0.0099}, prices)
	if !ok {
		t.Fatal("balance within slack should be affordable")
	}

	ok, msg := CheckAffordable(trade, "USDC", 5, map[string]float64{"WETH": 0.0097}, prices)
	if ok {
		t.Fatal("balance below slack should fail")
	}
	if msg != "not enough WETH to sell" {
		t.Fatalf("unexpected message: %q", msg)
	}
}

func TestCheckAffordable_MissingPrice(t *testing.T) {
	trade := Propose("WETH", 0.08, "USDC", order, targets(), nil, 25)
	ok, msg := CheckAffordable(trade, "USDC", 5, map[string]float64{"WETH": 1}, map[string]float64{})
	if ok {
		t.Fatal("missing price should fail")
	}
	if msg != "no price for WETH" {
		t.Fatalf("unexpected message: %q", msg)
	}
}
