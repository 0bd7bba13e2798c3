package models

import "time"

// TradeRecord is an immutable entry in the append-only trade log, written
// only after a swap transaction was confirmed submitted.
type TradeRecord struct {
	ID          int64     `json:"id,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	DayKey      string    `json:"dayKey"`
	TxHash      string    `json:"txHash"`
	SellSymbol  string    `json:"sellSymbol"`
	BuySymbol   string    `json:"buySymbol"`
	NotionalUsd float64   `json:"notionalUsd"`
	EstBuyUsd   float64   `json:"estBuyUsd"`
	Reason      string    `json:"reason"`
}

// TradeStats are aggregate figures over the trade log, served by the API.
type TradeStats struct {
	TotalTrades   int64      `json:"totalTrades"`
	TotalNotional *float64   `json:"totalNotional"`
	AvgNotional   *float64   `json:"avgNotional"`
	FirstTrade    *time.Time `json:"firstTrade"`
	LastTrade     *time.Time `json:"lastTrade"`
}
