// Package binance adapts Binance USD-M futures to the venue ports.
package binance

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/pasiyamd/forexbot/internal/observ"
	"github.com/pasiyamd/forexbot/internal/venue"
)

type symbolInfo struct {
	pricePrecision    int
	quantityPrecision int
}

// Client implements venue.Venue against the futures REST API, with an
// optional websocket kline cache in front of the bars endpoint. REST
// calls share one limiter so a tight poll interval cannot trip the
// exchange's request weight limits.
type Client struct {
	api      *futures.Client
	limiter  *rate.Limiter
	interval string
	stream   *KlineStream

	mu      sync.Mutex
	symbols map[string]symbolInfo
}

// New builds a client. interval is the kline interval bars are fetched
// at (e.g. "5m"); stream may be nil to always use REST.
func New(apiKey, apiSecret string, testnet bool, interval string, stream *KlineStream) *Client {
	futures.UseTestnet = testnet
	return &Client{
		api:      futures.NewClient(apiKey, apiSecret),
		limiter:  rate.NewLimiter(rate.Every(250*time.Millisecond), 5),
		interval: interval,
		stream:   stream,
		symbols:  map[string]symbolInfo{},
	}
}

func (c *Client) wait(ctx context.Context) error {
	return c.limiter.Wait(ctx)
}

// Connect verifies the venue is reachable.
func (c *Client) Connect(ctx context.Context) error {
	if err := c.wait(ctx); err != nil {
		return &venue.ConnectionError{Err: err}
	}
	if err := c.api.NewPingService().Do(ctx); err != nil {
		return &venue.ConnectionError{Err: err}
	}
	return nil
}

// AccountSnapshot reads the futures account totals.
func (c *Client) AccountSnapshot(ctx context.Context) (venue.AccountSnapshot, error) {
	if err := c.wait(ctx); err != nil {
		return venue.AccountSnapshot{}, &venue.QueryError{Op: "account", Err: err}
	}
	acct, err := c.api.NewGetAccountService().Do(ctx)
	if err != nil {
		return venue.AccountSnapshot{}, &venue.QueryError{Op: "account", Err: err}
	}

	snap := venue.AccountSnapshot{
		Balance:    parseDecimal(acct.TotalWalletBalance),
		Equity:     parseDecimal(acct.TotalMarginBalance),
		Margin:     parseDecimal(acct.TotalInitialMargin),
		FreeMargin: parseDecimal(acct.AvailableBalance),
		Currency:   "USDT",
	}
	return snap, nil
}

// HasOpenPosition reports whether any position amount is non-zero for
// symbol.
func (c *Client) HasOpenPosition(ctx context.Context, symbol string) (bool, error) {
	if err := c.wait(ctx); err != nil {
		return false, &venue.QueryError{Op: "positions", Err: err}
	}
	positions, err := c.api.NewGetPositionRiskService().Symbol(symbol).Do(ctx)
	if err != nil {
		return false, &venue.QueryError{Op: "positions", Err: err}
	}
	for _, pos := range positions {
		amt, _ := strconv.ParseFloat(pos.PositionAmt, 64)
		if amt != 0 {
			return true, nil
		}
	}
	return false, nil
}

// EnsureTradeable resolves and caches the symbol's price/quantity
// precision from exchange info; an unknown symbol is a query error.
func (c *Client) EnsureTradeable(ctx context.Context, symbol string) error {
	c.mu.Lock()
	_, known := c.symbols[symbol]
	c.mu.Unlock()
	if known {
		return nil
	}

	if err := c.wait(ctx); err != nil {
		return &venue.QueryError{Op: "exchange_info", Err: err}
	}
	info, err := c.api.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return &venue.QueryError{Op: "exchange_info", Err: err}
	}
	for _, s := range info.Symbols {
		if s.Symbol != symbol {
			continue
		}
		c.mu.Lock()
		c.symbols[symbol] = symbolInfo{
			pricePrecision:    s.PricePrecision,
			quantityPrecision: s.QuantityPrecision,
		}
		c.mu.Unlock()
		return nil
	}
	return &venue.QueryError{Op: "exchange_info", Err: fmt.Errorf("symbol %s not listed", symbol)}
}

// RecentBars serves from the websocket cache when it is warm enough,
// falling back to a REST kline fetch.
func (c *Client) RecentBars(ctx context.Context, symbol string, n int) ([]venue.Bar, error) {
	if c.stream != nil {
		if bars, ok := c.stream.Bars(symbol, n); ok {
			return bars, nil
		}
	}

	if err := c.wait(ctx); err != nil {
		return nil, &venue.QueryError{Op: "klines", Err: err}
	}
	klines, err := c.api.NewKlinesService().Symbol(symbol).Interval(c.interval).Limit(n).Do(ctx)
	if err != nil {
		return nil, &venue.QueryError{Op: "klines", Err: err}
	}
	bars := make([]venue.Bar, 0, len(klines))
	for _, k := range klines {
		close, _ := strconv.ParseFloat(k.Close, 64)
		bars = append(bars, venue.Bar{
			Symbol: symbol,
			Close:  close,
			Time:   time.UnixMilli(k.CloseTime),
		})
	}
	return bars, nil
}

// SubmitMarketOrder places the market order and then the reduce-only
// protective orders. A protective order failing is reported in the
// result message but does not undo the fill.
func (c *Client) SubmitMarketOrder(ctx context.Context, req venue.OrderRequest) (venue.OrderResult, error) {
	info := c.symbolInfo(req.Symbol)
	qty := req.Volume.Round(int32(info.quantityPrecision)).String()
	side := futures.SideTypeBuy
	closeSide := futures.SideTypeSell
	if req.Side == venue.Sell {
		side = futures.SideTypeSell
		closeSide = futures.SideTypeBuy
	}

	if err := c.wait(ctx); err != nil {
		return venue.OrderResult{}, &venue.ExecutionError{Symbol: req.Symbol, Err: err}
	}
	order, err := c.api.NewCreateOrderService().
		Symbol(req.Symbol).
		Side(side).
		Type(futures.OrderTypeMarket).
		Quantity(qty).
		NewClientOrderID(clientOrderID()).
		NewOrderResponseType(futures.NewOrderRespTypeRESULT).
		Do(ctx)
	if err != nil {
		return venue.OrderResult{Message: err.Error()}, &venue.ExecutionError{Symbol: req.Symbol, Err: err}
	}

	filled, _ := strconv.ParseFloat(order.AvgPrice, 64)
	observ.Log("order_filled", map[string]any{
		"symbol": req.Symbol, "side": string(req.Side), "qty": qty, "price": filled, "order_id": order.OrderID,
	})

	var protectNotes []string
	if req.StopLoss != nil {
		if err := c.placeProtective(ctx, req.Symbol, closeSide, futures.OrderTypeStopMarket, *req.StopLoss, qty, info); err != nil {
			observ.Error("stop_loss_failed", err, map[string]any{"symbol": req.Symbol})
			protectNotes = append(protectNotes, fmt.Sprintf("stop-loss order failed: %v", err))
		}
	}
	if req.TakeProfit != nil {
		if err := c.placeProtective(ctx, req.Symbol, closeSide, futures.OrderTypeTakeProfitMarket, *req.TakeProfit, qty, info); err != nil {
			observ.Error("take_profit_failed", err, map[string]any{"symbol": req.Symbol})
			protectNotes = append(protectNotes, fmt.Sprintf("take-profit order failed: %v", err))
		}
	}

	msg := fmt.Sprintf("Order executed: %s %s lot=%s price=%.5f", req.Side, req.Symbol, qty, filled)
	if len(protectNotes) > 0 {
		msg += "; " + strings.Join(protectNotes, "; ")
	}
	return venue.OrderResult{Accepted: true, Message: msg, FilledPrice: &filled}, nil
}

func (c *Client) placeProtective(ctx context.Context, symbol string, side futures.SideType, orderType futures.OrderType, stopPrice float64, qty string, info symbolInfo) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	_, err := c.api.NewCreateOrderService().
		Symbol(symbol).
		Side(side).
		Type(orderType).
		StopPrice(formatPrice(stopPrice, info.pricePrecision)).
		Quantity(qty).
		ReduceOnly(true).
		WorkingType(futures.WorkingTypeMarkPrice).
		Do(ctx)
	return err
}

func (c *Client) symbolInfo(symbol string) symbolInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	if info, ok := c.symbols[symbol]; ok {
		return info
	}
	// EnsureTradeable normally runs first; 2 decimals is a safe floor
	return symbolInfo{pricePrecision: 2, quantityPrecision: 2}
}

func clientOrderID() string {
	return "autotrade-" + uuid.NewString()[:13]
}

func formatPrice(p float64, precision int) string {
	return strconv.FormatFloat(p, 'f', precision, 64)
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}
	}
	return d
}
