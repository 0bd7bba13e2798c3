package models

// MarketSnapshot is the point-in-time view of the wallet recomputed on every
// tick. All amounts are human-readable (decimal-adjusted) values.
type MarketSnapshot struct {
	Wallet       string             `json:"wallet"`
	PortfolioUsd float64            `json:"portfolioUsd"`
	Balances     map[string]float64 `json:"balances"`
	PricesUsd    map[string]float64 `json:"pricesUsd"`
	ValuesUsd    map[string]float64 `json:"valuesUsd"`
	Alloc        map[string]float64 `json:"alloc"`
	Targets      map[string]float64 `json:"targets"`
	Paused       bool               `json:"paused"`
}

// ProposedTrade is a directional trade intent derived from the largest drift.
// At most one exists per tick.
type ProposedTrade struct {
	SellSymbol  string  `json:"sellSymbol"`
	BuySymbol   string  `json:"buySymbol"`
	NotionalUsd float64 `json:"notionalUsd"`
	Reason      string  `json:"reason"`
}

// TickResult is the structured outcome of a single tick. Ok=false means the
// tick failed hard (config, market data or provider error); blocked and
// no-trade outcomes are Ok=true with a descriptive message.
type TickResult struct {
	Ok       bool            `json:"ok"`
	Message  string          `json:"message"`
	Snapshot *MarketSnapshot `json:"snapshot,omitempty"`
	Proposed *ProposedTrade  `json:"proposed,omitempty"`
	TxHash   string          `json:"txHash,omitempty"`
}
