package filestore

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rmarchant/rebal-backend/internal/models"
)

func TestStateStore_LoadMissingFile(t *testing.T) {
	s := NewStateStore(filepath.Join(t.TempDir(), "state", "agent_state.json"))
	state, err := s.Load(context.Background(), "0xabc")
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if state != nil {
		t.Fatalf("expected nil state, got %+v", state)
	}
}

func TestStateStore_SaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "agent_state.json")
	s := NewStateStore(path)

	ms := int64(1770000000000)
	baseline := 123.45
	in := &models.RuntimeState{
		Wallet:           "0xabc",
		DayKey:           "2026-03-15",
		LastTradeAtMs:    &ms,
		TradesToday:      2,
		NotionalTodayUsd: 50,
		StartValueUsd:    &baseline,
	}
	if err := s.Save(context.Background(), in); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	out, err := s.Load(context.Background(), "0xabc")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if out == nil {
		t.Fatal("expected state")
	}
	if out.DayKey != "2026-03-15" || out.TradesToday != 2 || out.NotionalTodayUsd != 50 {
		t.Fatalf("round-trip mismatch: %+v", out)
	}
	if out.LastTradeAtMs == nil || *out.LastTradeAtMs != ms {
		t.Fatalf("lastTradeAtMs lost: %+v", out.LastTradeAtMs)
	}
	if out.StartValueUsd == nil || *out.StartValueUsd != 123.45 {
		t.Fatalf("startValueUsd lost: %+v", out.StartValueUsd)
	}

	// No stray temp file after the atomic rename.
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatal("temp file left behind")
	}
}

func TestStateStore_DifferentWallet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent_state.json")
	s := NewStateStore(path)

	if err := s.Save(context.Background(), &models.RuntimeState{Wallet: "0xaaa", DayKey: "2026-03-15"}); err != nil {
		t.Fatal(err)
	}

	state, err := s.Load(context.Background(), "0xbbb")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if state != nil {
		t.Fatal("another wallet's record must not be returned")
	}
}

func TestTradeLog_HeaderWrittenOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "trades.csv")
	l := NewTradeLog(path)

	rec := &models.TradeRecord{
		Timestamp:   time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC),
		TxHash:      "0xswap1",
		SellSymbol:  "USDC",
		BuySymbol:   "WETH",
		NotionalUsd: 25,
		EstBuyUsd:   24.8,
		Reason:      "WETH underweight by 25.0%",
	}
	for i := 0; i < 3; i++ {
		if err := l.Append(context.Background(), rec); err != nil {
			t.Fatalf("Append error: %v", err)
		}
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header + 3 rows, got %d lines:\n%s", len(lines), raw)
	}
	if lines[0] != csvHeader {
		t.Fatalf("unexpected header: %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "2026-03-15T12:00:00Z,0xswap1,USDC,WETH,25.00,24.8000,") {
		t.Fatalf("unexpected row: %q", lines[1])
	}
}

func TestTradeLog_SanitizesReason(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trades.csv")
	l := NewTradeLog(path)

	rec := &models.TradeRecord{
		Timestamp: time.Now(),
		TxHash:    "0x1",
		Reason:    "weird, multi\nline reason",
	}
	if err := l.Append(context.Background(), rec); err != nil {
		t.Fatal(err)
	}

	raw, _ := os.ReadFile(path)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	if len(lines) != 2 {
		t.Fatalf("embedded newline broke the row layout:\n%s", raw)
	}
	if strings.Count(lines[1], ",") != 6 {
		t.Fatalf("embedded comma broke the column layout: %q", lines[1])
	}
}
