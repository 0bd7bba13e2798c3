package api

import (
	"fmt"
	"net/http"

	"github.com/rmarchant/rebal-backend/internal/models"
)

type tradeJSON struct {
	T           int64   `json:"t"`
	TxHash      string  `json:"txHash"`
	Sell        string  `json:"sell"`
	Buy         string  `json:"buy"`
	NotionalUsd float64 `json:"notionalUsd"`
	EstBuyUsd   float64 `json:"estBuyUsd"`
	Reason      string  `json:"reason"`
}

func toTradeJSON(trades []models.TradeRecord) []tradeJSON {
	out := make([]tradeJSON, len(trades))
	for i, t := range trades {
		out[i] = tradeJSON{
			T: t.Timestamp.UnixMilli(), TxHash: t.TxHash,
			Sell: t.SellSymbol, Buy: t.BuySymbol,
			NotionalUsd: t.NotionalUsd, EstBuyUsd: t.EstBuyUsd,
			Reason: t.Reason,
		}
	}
	return out
}

func (s *Server) requireHistory(w http.ResponseWriter) bool {
	if s.trades == nil {
		writeError(w, http.StatusServiceUnavailable, "trade history requires the postgres backend")
		return false
	}
	return true
}

func (s *Server) handleTradesToday(w http.ResponseWriter, r *http.Request) {
	if !s.requireHistory(w) {
		return
	}

	trades, err := s.trades.GetByDay(r.Context(), models.DayKeyNow())
	if err != nil {
		fmt.Printf("Error fetching today's trades: %v\n", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch trades")
		return
	}
	writeJSON(w, http.StatusOK, toTradeJSON(trades))
}

func (s *Server) handleTradesByDay(w http.ResponseWriter, r *http.Request) {
	if !s.requireHistory(w) {
		return
	}

	date := r.PathValue("date")
	if !validateDate(date) {
		writeError(w, http.StatusBadRequest, "invalid date format, expected YYYY-MM-DD")
		return
	}

	trades, err := s.trades.GetByDay(r.Context(), date)
	if err != nil {
		fmt.Printf("Error fetching trades for %s: %v\n", date, err)
		writeError(w, http.StatusInternalServerError, "failed to fetch trades")
		return
	}
	writeJSON(w, http.StatusOK, toTradeJSON(trades))
}

func (s *Server) handleAllTrades(w http.ResponseWriter, r *http.Request) {
	if !s.requireHistory(w) {
		return
	}

	limit := parseLimit(r, 100)
	trades, err := s.trades.GetAll(r.Context(), limit)
	if err != nil {
		fmt.Printf("Error fetching all trades: %v\n", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch trades")
		return
	}
	writeJSON(w, http.StatusOK, toTradeJSON(trades))
}

func (s *Server) handleTradeStats(w http.ResponseWriter, r *http.Request) {
	if !s.requireHistory(w) {
		return
	}

	stats, err := s.trades.GetStats(r.Context())
	if err != nil {
		fmt.Printf("Error fetching trade stats: %v\n", err)
		writeError(w, http.StatusInternalServerError, "failed to fetch trade stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
