package models

import "math/big"

// QuoteRequest asks the quote provider for a firm swap quote. Sell and buy
// tokens are contract addresses; SellAmount is in the sell token's native
// integer unit.
type QuoteRequest struct {
	ChainID     int
	SellToken   string
	BuyToken    string
	SellAmount  *big.Int
	Taker       string
	SlippageBps int
}

// Quote is an executable swap quote: the transaction to submit plus the
// contract that must hold the sell-token allowance.
type Quote struct {
	BuyAmount       *big.Int
	SellAmount      *big.Int
	To              string
	Data            []byte
	Value           *big.Int
	AllowanceTarget string
}

// Spender returns the contract that needs the sell-token allowance. Some
// providers settle through a dedicated allowance target; otherwise the swap
// contract itself is the spender.
func (q *Quote) Spender() string {
	if q.AllowanceTarget != "" {
		return q.AllowanceTarget
	}
	return q.To
}
