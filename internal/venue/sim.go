package venue

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Sim is a scripted in-memory venue used by tests and by paper mode.
// Every knob is settable; the zero value accepts orders at the last
// bar close and reports an empty account.
type Sim struct {
	mu sync.Mutex

	ConnectErr error

	balance      decimal.Decimal
	currency     string
	barsBySymbol map[string][]Bar
	positions    map[string]bool

	// SubmitErrs fails SubmitMarketOrder for the given symbol.
	SubmitErrs map[string]error
	// ProfitPerFill is added to the balance after each accepted order,
	// emulating an immediately realized P&L.
	ProfitPerFill decimal.Decimal

	submitted []OrderRequest
}

func NewSim(balance decimal.Decimal) *Sim {
	return &Sim{
		balance:      balance,
		currency:     "USD",
		barsBySymbol: map[string][]Bar{},
		positions:    map[string]bool{},
		SubmitErrs:   map[string]error{},
	}
}

// NewPaper builds a sim venue pre-loaded with a deterministic price
// walk per symbol, enough history for any sane SMA window.
func NewPaper(symbols []string, balance decimal.Decimal) *Sim {
	s := NewSim(balance)
	rng := rand.New(rand.NewSource(42))
	now := time.Now()
	for _, sym := range symbols {
		price := 100.0
		bars := make([]Bar, 0, 200)
		for i := 0; i < 200; i++ {
			price += (rng.Float64() - 0.5) * 2
			bars = append(bars, Bar{
				Symbol: sym,
				Close:  price,
				Time:   now.Add(time.Duration(i-200) * time.Minute),
			})
		}
		s.barsBySymbol[sym] = bars
	}
	return s
}

func (s *Sim) SetBars(symbol string, closes []float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bars := make([]Bar, len(closes))
	now := time.Now()
	for i, c := range closes {
		bars[i] = Bar{Symbol: symbol, Close: c, Time: now.Add(time.Duration(i-len(closes)) * time.Minute)}
	}
	s.barsBySymbol[symbol] = bars
}

func (s *Sim) SetPosition(symbol string, open bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions[symbol] = open
}

func (s *Sim) SetBalance(balance decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.balance = balance
}

// Submitted returns a copy of all order requests seen so far.
func (s *Sim) Submitted() []OrderRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]OrderRequest, len(s.submitted))
	copy(out, s.submitted)
	return out
}

func (s *Sim) Connect(ctx context.Context) error {
	if s.ConnectErr != nil {
		return &ConnectionError{Err: s.ConnectErr}
	}
	return nil
}

func (s *Sim) AccountSnapshot(ctx context.Context) (AccountSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return AccountSnapshot{
		Balance:    s.balance,
		Equity:     s.balance,
		FreeMargin: s.balance,
		Leverage:   100,
		Currency:   s.currency,
	}, nil
}

func (s *Sim) HasOpenPosition(ctx context.Context, symbol string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.positions[symbol], nil
}

func (s *Sim) SubmitMarketOrder(ctx context.Context, req OrderRequest) (OrderResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.submitted = append(s.submitted, req)
	if err := s.SubmitErrs[req.Symbol]; err != nil {
		return OrderResult{Accepted: false, Message: err.Error()}, &ExecutionError{Symbol: req.Symbol, Err: err}
	}

	price := 0.0
	if bars := s.barsBySymbol[req.Symbol]; len(bars) > 0 {
		price = bars[len(bars)-1].Close
	}
	s.balance = s.balance.Add(s.ProfitPerFill)
	return OrderResult{
		Accepted:    true,
		Message:     fmt.Sprintf("Order executed: %s %s lot=%s price=%.5f", req.Side, req.Symbol, req.Volume, price),
		FilledPrice: &price,
	}, nil
}

func (s *Sim) RecentBars(ctx context.Context, symbol string, n int) ([]Bar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bars, ok := s.barsBySymbol[symbol]
	if !ok {
		return nil, &QueryError{Op: "bars", Err: fmt.Errorf("no data for %s", symbol)}
	}
	if len(bars) > n {
		bars = bars[len(bars)-n:]
	}
	out := make([]Bar, len(bars))
	copy(out, bars)
	return out, nil
}

func (s *Sim) EnsureTradeable(ctx context.Context, symbol string) error {
	return nil
}
