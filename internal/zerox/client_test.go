package zerox

import (
	"context"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rmarchant/rebal-backend/internal/models"
)

func testRequest() models.QuoteRequest {
	return models.QuoteRequest{
		ChainID:     8453,
		SellToken:   "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
		BuyToken:    "0x4200000000000000000000000000000000000006",
		SellAmount:  big.NewInt(25000000),
		Taker:       "0x1111111111111111111111111111111111111111",
		SlippageBps: 50,
	}
}

func TestQuote_Success(t *testing.T) {
	var gotQuery map[string]string
	var gotAPIKey string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAPIKey = r.Header.Get("0x-api-key")
		gotQuery = map[string]string{}
		for k := range r.URL.Query() {
			gotQuery[k] = r.URL.Query().Get(k)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"buyAmount": "10000000000000000",
			"sellAmount": "25000000",
			"to": "0xDef1C0ded9bec7F1a1670819833240f027b25EfF",
			"data": "0xdeadbeef",
			"value": "0",
			"allowanceTarget": "0x000000000022D473030F116dDEE9F6B43aC78BA3"
		}`))
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("test-key", srv.URL)
	q, err := c.Quote(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Quote error: %v", err)
	}

	if gotAPIKey != "test-key" {
		t.Fatalf("expected api key header, got %q", gotAPIKey)
	}
	if gotQuery["chainId"] != "8453" || gotQuery["sellAmount"] != "25000000" {
		t.Fatalf("unexpected query: %v", gotQuery)
	}
	if gotQuery["takerAddress"] != "0x1111111111111111111111111111111111111111" {
		t.Fatalf("taker not forwarded: %v", gotQuery)
	}
	if gotQuery["slippagePercentage"] != "0.005" {
		t.Fatalf("50 bps should encode as 0.005, got %q", gotQuery["slippagePercentage"])
	}

	if q.BuyAmount.String() != "10000000000000000" {
		t.Fatalf("unexpected buyAmount: %s", q.BuyAmount)
	}
	if len(q.Data) != 4 || q.Data[0] != 0xde {
		t.Fatalf("calldata not decoded: %x", q.Data)
	}
	if q.Spender() != "0x000000000022D473030F116dDEE9F6B43aC78BA3" {
		t.Fatalf("unexpected spender: %s", q.Spender())
	}
}

func TestQuote_SpenderFallsBackToRouter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"buyAmount":"1","sellAmount":"1","to":"0xRouter","data":"0x","value":""}`))
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("", srv.URL)
	q, err := c.Quote(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("Quote error: %v", err)
	}
	if q.Spender() != "0xRouter" {
		t.Fatalf("missing allowanceTarget should fall back to to, got %q", q.Spender())
	}
}

func TestQuote_ClientError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"reason":"insufficient liquidity"}`))
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("", srv.URL)
	if _, err := c.Quote(context.Background(), testRequest()); err == nil {
		t.Fatal("expected error on 400 response")
	}
}

func TestQuote_RetriesServerErrors(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"buyAmount":"1","sellAmount":"1","to":"0xRouter","data":"0x","value":"0"}`))
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("", srv.URL)
	c.retry.BaseDelay = 0
	c.retry.MaxDelay = 0

	if _, err := c.Quote(context.Background(), testRequest()); err != nil {
		t.Fatalf("expected success after retries, got: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestQuote_BadBuyAmount(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"buyAmount":"not-a-number","sellAmount":"1","to":"0xRouter"}`))
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("", srv.URL)
	if _, err := c.Quote(context.Background(), testRequest()); err == nil {
		t.Fatal("expected error on malformed buyAmount")
	}
}
