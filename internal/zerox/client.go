package zerox

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rmarchant/rebal-backend/internal/httputil"
	"github.com/rmarchant/rebal-backend/internal/models"
)

const defaultBaseURL = "https://api.0x.org/swap/v1/quote"

// Client fetches executable swap quotes from the 0x aggregator.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	retry      httputil.RetryConfig
}

func NewClient(apiKey string) *Client {
	return &Client{
		baseURL:    defaultBaseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		retry: httputil.RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   1 * time.Second,
			MaxDelay:    8 * time.Second,
		},
	}
}

// NewClientWithBaseURL is used by tests to point at an httptest server.
func NewClientWithBaseURL(apiKey, baseURL string) *Client {
	c := NewClient(apiKey)
	c.baseURL = baseURL
	return c
}

type quoteResponse struct {
	BuyAmount       string `json:"buyAmount"`
	SellAmount      string `json:"sellAmount"`
	To              string `json:"to"`
	Data            string `json:"data"`
	Value           string `json:"value"`
	AllowanceTarget string `json:"allowanceTarget"`
}

// Quote requests a swap quote. SlippageBps is converted to the 0x
// slippagePercentage parameter; a non-2xx response is a provider error.
func (c *Client) Quote(ctx context.Context, req models.QuoteRequest) (*models.Quote, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, fmt.Errorf("0x base url: %w", err)
	}

	q := u.Query()
	q.Set("chainId", strconv.Itoa(req.ChainID))
	q.Set("sellToken", req.SellToken)
	q.Set("buyToken", req.BuyToken)
	q.Set("sellAmount", req.SellAmount.String())
	if req.Taker != "" {
		q.Set("takerAddress", req.Taker)
	}
	q.Set("slippagePercentage", strconv.FormatFloat(float64(req.SlippageBps)/10000, 'f', -1, 64))
	u.RawQuery = q.Encode()

	resp, err := httputil.Do(ctx, c.httpClient, c.retry, func() (*http.Request, error) {
		r, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, err
		}
		r.Header.Set("Accept", "application/json")
		if c.apiKey != "" {
			r.Header.Set("0x-api-key", c.apiKey)
		}
		return r, nil
	})
	if err != nil {
		return nil, fmt.Errorf("0x quote: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("0x quote returned status %d", resp.StatusCode)
	}

	var body quoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode 0x quote: %w", err)
	}
	return body.toQuote()
}

func (r *quoteResponse) toQuote() (*models.Quote, error) {
	buy, ok := new(big.Int).SetString(r.BuyAmount, 10)
	if !ok {
		return nil, fmt.Errorf("0x quote: bad buyAmount %q", r.BuyAmount)
	}
	sell, ok := new(big.Int).SetString(r.SellAmount, 10)
	if !ok {
		return nil, fmt.Errorf("0x quote: bad sellAmount %q", r.SellAmount)
	}

	value := big.NewInt(0)
	if r.Value != "" {
		v, ok := new(big.Int).SetString(r.Value, 10)
		if !ok {
			return nil, fmt.Errorf("0x quote: bad value %q", r.Value)
		}
		value = v
	}

	if r.To == "" {
		return nil, fmt.Errorf("0x quote: missing to address")
	}

	return &models.Quote{
		BuyAmount:       buy,
		SellAmount:      sell,
		To:              r.To,
		Data:            common.FromHex(r.Data),
		Value:           value,
		AllowanceTarget: r.AllowanceTarget,
	}, nil
}
