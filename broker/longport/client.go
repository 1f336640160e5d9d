// Package longport implements the broker surface against the LongPort
// OpenAPI REST endpoints. Prices arrive as decimal strings and are parsed
// exactly before conversion to float64 at this boundary.
package longport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/intraday/broker"
	"github.com/rustyeddy/intraday/market"
)

// DefaultBaseURL is the production OpenAPI host.
const DefaultBaseURL = "https://openapi.longportapp.com"

// Client talks to the LongPort OpenAPI.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Option mutates client construction.
type Option func(*Client)

// WithBaseURL points the client at a different host (sandbox, tests).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient substitutes the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

func NewClient(token string, opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type apiCandle struct {
	Timestamp int64  `json:"timestamp"`
	Open      string `json:"open"`
	High      string `json:"high"`
	Low       string `json:"low"`
	Close     string `json:"close"`
	Volume    string `json:"volume"`
	Turnover  string `json:"turnover"`
}

type candlesResponse struct {
	Candles []apiCandle `json:"candlesticks"`
}

type quoteResponse struct {
	Quotes []struct {
		Symbol    string `json:"symbol"`
		LastDone  string `json:"last_done"`
		Timestamp int64  `json:"timestamp"`
	} `json:"secu_quote"`
}

type calendarResponse struct {
	TradingDays     []string `json:"trade_day"`
	HalfTradingDays []string `json:"half_trade_day"`
}

type balanceResponse struct {
	List []struct {
		NetAssets string `json:"net_assets"`
	} `json:"list"`
}

type positionsResponse struct {
	Channels []struct {
		Positions []struct {
			Symbol    string `json:"symbol"`
			Quantity  string `json:"quantity"`
			CostPrice string `json:"cost_price"`
		} `json:"stock_info"`
	} `json:"list"`
}

type orderResponse struct {
	OrderID string `json:"order_id"`
}

// FetchHistoricalBars returns 1-minute candles covering [from, to].
func (c *Client) FetchHistoricalBars(ctx context.Context, symbol string, from, to time.Time) ([]market.RawBar, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("period", "min1")
	q.Set("start_at", fmt.Sprintf("%d", from.Unix()))
	q.Set("end_at", fmt.Sprintf("%d", to.Unix()))

	var resp candlesResponse
	if err := c.get(ctx, "/v1/quote/candlesticks", q, &resp); err != nil {
		return nil, err
	}

	bars := make([]market.RawBar, 0, len(resp.Candles))
	for _, cd := range resp.Candles {
		b, err := cd.toRawBar()
		if err != nil {
			return nil, fmt.Errorf("candle %d: %w", cd.Timestamp, err)
		}
		bars = append(bars, b)
	}
	return bars, nil
}

func (cd apiCandle) toRawBar() (market.RawBar, error) {
	var b market.RawBar
	fields := []struct {
		name string
		raw  string
		dst  *float64
	}{
		{"open", cd.Open, &b.Open},
		{"high", cd.High, &b.High},
		{"low", cd.Low, &b.Low},
		{"close", cd.Close, &b.Close},
		{"volume", cd.Volume, &b.Volume},
		{"turnover", cd.Turnover, &b.Turnover},
	}
	for _, f := range fields {
		d, err := decimal.NewFromString(f.raw)
		if err != nil {
			return b, fmt.Errorf("parse %s %q: %w", f.name, f.raw, err)
		}
		*f.dst, _ = d.Float64()
	}
	b.Time = time.Unix(cd.Timestamp, 0)
	return b, nil
}

// FetchLiveQuote returns the latest trade for symbol.
func (c *Client) FetchLiveQuote(ctx context.Context, symbol string) (broker.Quote, error) {
	q := url.Values{}
	q.Set("symbol", symbol)

	var resp quoteResponse
	if err := c.get(ctx, "/v1/quote/quote", q, &resp); err != nil {
		return broker.Quote{}, err
	}
	if len(resp.Quotes) == 0 {
		return broker.Quote{}, fmt.Errorf("no quote returned for %s", symbol)
	}

	last, err := decimal.NewFromString(resp.Quotes[0].LastDone)
	if err != nil {
		return broker.Quote{}, fmt.Errorf("parse last_done %q: %w", resp.Quotes[0].LastDone, err)
	}
	lastF, _ := last.Float64()

	return broker.Quote{
		Symbol: resp.Quotes[0].Symbol,
		Last:   lastF,
		Time:   time.Unix(resp.Quotes[0].Timestamp, 0),
	}, nil
}

// IsTradingDay consults the exchange calendar; half trading days count.
func (c *Client) IsTradingDay(ctx context.Context, mkt string, day time.Time) (bool, error) {
	q := url.Values{}
	q.Set("market", mkt)
	q.Set("beg_day", day.Format("20060102"))
	q.Set("end_day", day.Format("20060102"))

	var resp calendarResponse
	if err := c.get(ctx, "/v1/trade/market/calendar", q, &resp); err != nil {
		return false, err
	}

	want := day.Format("2006-01-02")
	for _, d := range resp.TradingDays {
		if d == want {
			return true, nil
		}
	}
	for _, d := range resp.HalfTradingDays {
		if d == want {
			return true, nil
		}
	}
	return false, nil
}

// GetAccountBalance returns net assets of the first account channel.
func (c *Client) GetAccountBalance(ctx context.Context) (float64, error) {
	var resp balanceResponse
	if err := c.get(ctx, "/v1/asset/account", nil, &resp); err != nil {
		return 0, err
	}
	if len(resp.List) == 0 {
		return 0, fmt.Errorf("no account in balance response")
	}
	d, err := decimal.NewFromString(resp.List[0].NetAssets)
	if err != nil {
		return 0, fmt.Errorf("parse net_assets %q: %w", resp.List[0].NetAssets, err)
	}
	f, _ := d.Float64()
	return f, nil
}

// GetOpenPositions returns open lots keyed by symbol.
func (c *Client) GetOpenPositions(ctx context.Context) (map[string]broker.PositionLot, error) {
	var resp positionsResponse
	if err := c.get(ctx, "/v1/asset/stock", nil, &resp); err != nil {
		return nil, err
	}

	out := make(map[string]broker.PositionLot)
	for _, ch := range resp.Channels {
		for _, p := range ch.Positions {
			qty, err := decimal.NewFromString(p.Quantity)
			if err != nil {
				return nil, fmt.Errorf("parse quantity %q: %w", p.Quantity, err)
			}
			cost, err := decimal.NewFromString(p.CostPrice)
			if err != nil {
				return nil, fmt.Errorf("parse cost_price %q: %w", p.CostPrice, err)
			}
			qtyF, _ := qty.Float64()
			costF, _ := cost.Float64()
			out[p.Symbol] = broker.PositionLot{
				Symbol:    p.Symbol,
				Quantity:  qtyF,
				CostPrice: costF,
			}
		}
	}
	return out, nil
}

// SubmitOrder places a market order. Present for live deployments; unused
// when the engine runs signal-only.
func (c *Client) SubmitOrder(ctx context.Context, req broker.MarketOrderRequest) (broker.OrderResult, error) {
	body := map[string]any{
		"symbol":             req.Symbol,
		"side":               string(req.Side),
		"order_type":         "MO",
		"submitted_quantity": fmt.Sprintf("%.0f", req.Quantity),
		"time_in_force":      "Day",
	}

	var resp orderResponse
	if err := c.post(ctx, "/v1/trade/order", body, &resp); err != nil {
		return broker.OrderResult{}, err
	}
	return broker.OrderResult{OrderID: resp.OrderID}, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Network-level failures are worth a retry upstream.
		return fmt.Errorf("%s %s: %v: %w", req.Method, req.URL.Path, err, market.ErrTransient)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %v: %w", err, market.ErrTransient)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return fmt.Errorf("%s %s: status %d: %w", req.Method, req.URL.Path, resp.StatusCode, market.ErrTransient)
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("%s %s: status %d: %s", req.Method, req.URL.Path, resp.StatusCode, string(data))
	}

	// The OpenAPI envelope wraps payloads in {code, data}.
	var envelope struct {
		Code int             `json:"code"`
		Msg  string          `json:"message"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}
	if envelope.Code != 0 {
		return fmt.Errorf("%s %s: api code %d: %s", req.Method, req.URL.Path, envelope.Code, envelope.Msg)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return nil
}
