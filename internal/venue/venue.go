package venue

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of an order.
type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// Bar is one closed price bar, oldest bars first in any slice.
type Bar struct {
	Symbol string
	Close  float64
	Time   time.Time
}

// AccountSnapshot is the venue's view of the account at one instant.
// It is read fresh each loop iteration and never cached beyond it.
type AccountSnapshot struct {
	Balance    decimal.Decimal
	Equity     decimal.Decimal
	Margin     decimal.Decimal
	FreeMargin decimal.Decimal
	Leverage   int
	Currency   string
}

// OrderRequest is a market order with optional protective levels.
// StopLoss/TakeProfit are absolute prices computed by the caller; nil
// means no level is placed.
type OrderRequest struct {
	Symbol     string
	Side       Side
	Volume     decimal.Decimal
	StopLoss   *float64
	TakeProfit *float64
	Deviation  int
	Tag        string
}

// OrderResult reports the venue's answer to a submission. It is used
// once for notification and profit bookkeeping, then discarded.
type OrderResult struct {
	Accepted    bool
	Message     string
	FilledPrice *float64
}

// MarketDataPort fetches recent price history for a symbol.
type MarketDataPort interface {
	// RecentBars returns up to n closed bars for symbol, oldest first.
	RecentBars(ctx context.Context, symbol string, n int) ([]Bar, error)
	// EnsureTradeable makes symbol visible/subscribed on venues that
	// require explicit selection before first use.
	EnsureTradeable(ctx context.Context, symbol string) error
}

// ExecutionPort submits orders and answers account queries.
type ExecutionPort interface {
	Connect(ctx context.Context) error
	AccountSnapshot(ctx context.Context) (AccountSnapshot, error)
	HasOpenPosition(ctx context.Context, symbol string) (bool, error)
	SubmitMarketOrder(ctx context.Context, req OrderRequest) (OrderResult, error)
}

// Venue is the full external trading system surface the session needs.
type Venue interface {
	MarketDataPort
	ExecutionPort
}
