package models

import "time"

// DayKey returns the UTC calendar day for ts as YYYY-MM-DD.
// Daily counters roll over at 00:00 UTC.
func DayKey(ts time.Time) string {
	return ts.UTC().Format("2006-01-02")
}

// DayKeyNow returns the day key for the current moment.
func DayKeyNow() string {
	return DayKey(time.Now())
}

// RuntimeState is the persisted per-wallet trading state. One record exists
// per wallet; it is read once at the start of a tick and written at most once
// after a trade is confirmed submitted.
type RuntimeState struct {
	Wallet           string   `json:"wallet"`
	DayKey           string   `json:"dayKey"`
	LastTradeAtMs    *int64   `json:"lastTradeAtMs,omitempty"`
	TradesToday      int      `json:"tradesToday"`
	NotionalTodayUsd float64  `json:"notionalTodayUsd"`
	StartValueUsd    *float64 `json:"startValueUsd,omitempty"`
}

// NewRuntimeState returns a fresh record with zeroed counters and no
// drawdown baseline.
func NewRuntimeState(wallet string, now time.Time) *RuntimeState {
	return &RuntimeState{
		Wallet: wallet,
		DayKey: DayKey(now),
	}
}

// RollDay resets the daily counters when the stored day key differs from
// today. LastTradeAtMs and StartValueUsd survive the rollover. Returns true
// if a rollover happened.
func (s *RuntimeState) RollDay(today string) bool {
	if s.DayKey == today {
		return false
	}
	s.DayKey = today
	s.TradesToday = 0
	s.NotionalTodayUsd = 0
	return true
}

// Clone returns a deep copy of the state.
func (s *RuntimeState) Clone() *RuntimeState {
	out := *s
	if s.LastTradeAtMs != nil {
		v := *s.LastTradeAtMs
		out.LastTradeAtMs = &v
	}
	if s.StartValueUsd != nil {
		v := *s.StartValueUsd
		out.StartValueUsd = &v
	}
	return &out
}
