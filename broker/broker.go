// Package broker defines the market-data/brokerage surface the engine
// consumes. Implementations live in subpackages; the engine only sees
// these interfaces.
package broker

import (
	"context"
	"time"

	"github.com/rustyeddy/intraday/market"
)

// Quote is the latest trade for a symbol.
type Quote struct {
	Symbol string
	Last   float64
	Time   time.Time
}

// PositionLot is an open lot reported by the brokerage (live mode only).
type PositionLot struct {
	Symbol    string
	Quantity  float64
	CostPrice float64
}

// OrderSide for submitted orders.
type OrderSide string

const (
	SideBuy  OrderSide = "Buy"
	SideSell OrderSide = "Sell"
)

// MarketOrderRequest is a plain market order.
type MarketOrderRequest struct {
	Symbol   string
	Side     OrderSide
	Quantity float64
}

// OrderResult identifies a submitted order.
type OrderResult struct {
	OrderID string
}

// Client is the full brokerage surface. Order submission is part of the
// surface but unused by signal-only deployments, which write to the outbox
// instead.
type Client interface {
	FetchHistoricalBars(ctx context.Context, symbol string, from, to time.Time) ([]market.RawBar, error)
	FetchLiveQuote(ctx context.Context, symbol string) (Quote, error)
	IsTradingDay(ctx context.Context, mkt string, day time.Time) (bool, error)
	GetAccountBalance(ctx context.Context) (float64, error)
	GetOpenPositions(ctx context.Context) (map[string]PositionLot, error)
	SubmitOrder(ctx context.Context, req MarketOrderRequest) (OrderResult, error)
}
