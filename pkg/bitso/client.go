// Package bitso is a minimal client for the Bitso v3 REST and websocket
// APIs. It covers the public ticker plus the signed account endpoints the
// trading monitor needs: balances, user trades, and a connectivity probe.
//
// Usage example:
//
//	c := bitso.NewClient(bitso.Config{APIKey: "key", APISecret: "secret"})
//	t, err := c.Ticker(ctx, "btc_mxn")
//	if err != nil { log.Fatal(err) }
//	fmt.Println("BTC/MXN last:", t.Last)
package bitso

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const defaultBaseURL = "https://api.bitso.com"

// Config configures a Client. APIKey/APISecret are only required for the
// signed endpoints; the public ticker works without them.
type Config struct {
	APIKey    string
	APISecret string
	BaseURL   string        // default: https://api.bitso.com
	Timeout   time.Duration // default: 10s
}

// Client talks to the Bitso v3 API.
type Client struct {
	apiKey     string
	apiSecret  string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Bitso API client.
func NewClient(cfg Config) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		apiKey:     cfg.APIKey,
		apiSecret:  cfg.APISecret,
		baseURL:    base,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// APIError is a non-success response from Bitso.
type APIError struct {
	Code    int    `json:"code,string"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bitso: %s (code %d)", e.Message, e.Code)
}

// envelope is the common {success, payload, error} response wrapper.
type envelope struct {
	Success bool            `json:"success"`
	Payload json.RawMessage `json:"payload"`
	Err     *APIError       `json:"error"`
}

// Ticker is the public ticker for one order book.
type Ticker struct {
	Book      string  `json:"book"`
	Last      float64 `json:"last,string"`
	High      float64 `json:"high,string"`
	Low       float64 `json:"low,string"`
	VWAP      float64 `json:"vwap,string"`
	Volume    float64 `json:"volume,string"`
	CreatedAt string  `json:"created_at"`
}

// Balance is one currency's account balance.
type Balance struct {
	Currency  string  `json:"currency"`
	Total     float64 `json:"total,string"`
	Available float64 `json:"available,string"`
	Locked    float64 `json:"locked,string"`
}

// UserTrade is one fill from the account's trade history.
type UserTrade struct {
	OID       string  `json:"oid"`
	Book      string  `json:"book"`
	Side      string  `json:"side"` // "buy" or "sell"
	Price     float64 `json:"price,string"`
	Major     float64 `json:"major,string"`
	Minor     float64 `json:"minor,string"`
	CreatedAt string  `json:"created_at"`
}

// Ticker fetches the public ticker for a book like "btc_mxn".
func (c *Client) Ticker(ctx context.Context, book string) (*Ticker, error) {
	var t Ticker
	if err := c.do(ctx, http.MethodGet, "/v3/ticker/?book="+url.QueryEscape(book), nil, false, &t); err != nil {
		return nil, fmt.Errorf("ticker %s: %w", book, err)
	}
	return &t, nil
}

// Tickers fetches multiple books sequentially, skipping books that error.
// Returns the tickers that succeeded keyed by book.
func (c *Client) Tickers(ctx context.Context, books []string) map[string]*Ticker {
	out := make(map[string]*Ticker, len(books))
	for _, book := range books {
		t, err := c.Ticker(ctx, book)
		if err != nil {
			continue
		}
		out[book] = t
	}
	return out
}

// Balances fetches account balances, dropping zero-balance currencies.
// Requires API credentials.
func (c *Client) Balances(ctx context.Context) ([]Balance, error) {
	var payload struct {
		Balances []struct {
			Currency  string  `json:"currency"`
			Balance   float64 `json:"balance,string"`
			Available float64 `json:"available,string"`
			Locked    float64 `json:"locked,string"`
		} `json:"balances"`
	}
	if err := c.do(ctx, http.MethodGet, "/v3/balance/", nil, true, &payload); err != nil {
		return nil, fmt.Errorf("balance: %w", err)
	}

	out := make([]Balance, 0, len(payload.Balances))
	for _, b := range payload.Balances {
		if b.Balance <= 0 {
			continue
		}
		out = append(out, Balance{
			Currency:  b.Currency,
			Total:     b.Balance,
			Available: b.Available,
			Locked:    b.Locked,
		})
	}
	return out, nil
}

// Holdings returns non-zero balances as an uppercase currency->amount map.
func (c *Client) Holdings(ctx context.Context) (map[string]float64, error) {
	balances, err := c.Balances(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(balances))
	for _, b := range balances {
		out[strings.ToUpper(b.Currency)] = b.Total
	}
	return out, nil
}

// UserTrades fetches the most recent account fills. Requires API credentials.
func (c *Client) UserTrades(ctx context.Context, limit int) ([]UserTrade, error) {
	if limit <= 0 {
		limit = 100
	}
	var trades []UserTrade
	if err := c.do(ctx, http.MethodGet, "/v3/user_trades/?limit="+strconv.Itoa(limit), nil, true, &trades); err != nil {
		return nil, fmt.Errorf("user trades: %w", err)
	}
	return trades, nil
}

// TestConnection probes the signed API. Returns nil when credentials work.
func (c *Client) TestConnection(ctx context.Context) error {
	_, err := c.Balances(ctx)
	return err
}

// do executes one request and decodes the payload into out.
func (c *Client) do(ctx context.Context, method, requestPath string, body []byte, signed bool, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+requestPath, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if signed {
		c.sign(req, method, requestPath, body)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	if !env.Success {
		if env.Err != nil {
			return env.Err
		}
		return fmt.Errorf("request failed with status %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(env.Payload, out)
}

// sign adds the Bitso HMAC-SHA256 auth headers. The signature input is
// timestamp + method + requestPath + body.
func (c *Client) sign(req *http.Request, method, requestPath string, body []byte) {
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	mac := hmac.New(sha256.New, []byte(c.apiSecret))
	mac.Write([]byte(ts))
	mac.Write([]byte(method))
	mac.Write([]byte(requestPath))
	mac.Write(body)

	req.Header.Set("X-Auth", c.apiKey)
	req.Header.Set("X-Signature", hex.EncodeToString(mac.Sum(nil)))
	req.Header.Set("X-Timestamp", ts)
}
