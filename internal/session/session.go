// Package session owns the trading lifecycle: one state machine that
// starts and stops the per-symbol evaluation loop, tracks daily profit
// against the configured target, and reports every step to the
// operator channel.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pasiyamd/forexbot/internal/config"
	"github.com/pasiyamd/forexbot/internal/notify"
	"github.com/pasiyamd/forexbot/internal/observ"
	"github.com/pasiyamd/forexbot/internal/risk"
	"github.com/pasiyamd/forexbot/internal/signal"
	"github.com/pasiyamd/forexbot/internal/venue"
)

// Mode is the operator-selected trading mode.
type Mode int

const (
	ModeNone Mode = iota
	ModeSafe
	ModeUnlimited
)

func (m Mode) String() string {
	switch m {
	case ModeSafe:
		return "safe"
	case ModeUnlimited:
		return "unlimited"
	default:
		return "none"
	}
}

// ParseMode maps operator input to a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "safe":
		return ModeSafe, nil
	case "unlimited":
		return ModeUnlimited, nil
	default:
		return ModeNone, fmt.Errorf("unknown mode %q", s)
	}
}

type state int

const (
	stateIdle state = iota
	stateStarting
	stateRunning
)

var (
	// ErrAlreadyRunning is returned when start is requested while a
	// session is starting or running.
	ErrAlreadyRunning = errors.New("session already running")
	// ErrStartAborted is returned when a stop command lands while the
	// venue connection is still being established.
	ErrStartAborted = errors.New("start aborted by stop")
)

// barsFetch is how much history each evaluation requests; anything
// comfortably above the slow window works, the engine only reads the
// tail it needs.
const barsFetch = 100

// Config carries the loop parameters, fixed at construction.
type Config struct {
	Symbols      []config.SymbolConfig
	Engine       signal.Engine
	RiskPercent  decimal.Decimal
	MinLot       decimal.Decimal
	DailyTarget  decimal.Decimal
	PollInterval time.Duration
	ErrorBackoff time.Duration
	Deviation    int
}

// Status is the read-only answer to a status query.
type Status struct {
	Running      bool
	Mode         Mode
	StartBalance decimal.Decimal
	TodayProfit  decimal.Decimal
}

// Session is the process-wide trading state machine. All transitions
// go through one mutex; Start uses an Idle->Starting swap under that
// mutex so two concurrent starts can never both launch a loop.
type Session struct {
	mu           sync.Mutex
	state        state
	mode         Mode
	startBalance decimal.Decimal
	cancel       context.CancelFunc
	done         chan struct{}

	cfg   Config
	venue venue.Venue
	table risk.Table
	sink  notify.Sink
}

func New(cfg Config, v venue.Venue, table risk.Table, sink notify.Sink) *Session {
	return &Session{cfg: cfg, venue: v, table: table, sink: sink}
}

// Start connects to the venue, snapshots the starting balance and
// launches the evaluation loop in mode. Returns ErrAlreadyRunning if a
// session is active, or the venue's connection error (session stays
// Idle, no automatic retry).
func (s *Session) Start(ctx context.Context, mode Mode) error {
	s.mu.Lock()
	if s.state != stateIdle {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.state = stateStarting
	s.mu.Unlock()

	snap, err := s.connect(ctx)
	if err != nil {
		s.mu.Lock()
		if s.state == stateStarting {
			s.state = stateIdle
		}
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	if s.state != stateStarting {
		s.mu.Unlock()
		return ErrStartAborted
	}
	loopCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	s.startBalance = snap.Balance
	s.mode = mode
	s.state = stateRunning
	s.mu.Unlock()

	observ.Log("session_start", map[string]any{"mode": mode.String(), "balance": snap.Balance.String()})
	s.sink.Send(notify.SessionStarted(mode.String(), snap))
	go s.run(loopCtx, done)
	return nil
}

func (s *Session) connect(ctx context.Context) (venue.AccountSnapshot, error) {
	if err := s.venue.Connect(ctx); err != nil {
		return venue.AccountSnapshot{}, err
	}
	snap, err := s.venue.AccountSnapshot(ctx)
	if err != nil {
		return venue.AccountSnapshot{}, &venue.ConnectionError{Err: err}
	}
	return snap, nil
}

// Stop forces the session to Idle from any state and reports the prior
// mode. Stopping an idle session is a no-op notification, not an
// error. Stop returns once the loop has actually exited.
func (s *Session) Stop() Mode {
	s.mu.Lock()
	prior := s.mode
	cancel := s.cancel
	done := s.done
	s.state = stateIdle
	s.mode = ModeNone
	s.startBalance = decimal.Decimal{}
	s.cancel = nil
	s.done = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	observ.Log("session_stop", map[string]any{"prior_mode": prior.String()})
	snap, err := s.venue.AccountSnapshot(context.Background())
	if err != nil {
		observ.Error("stop_snapshot_failed", err, nil)
	}
	s.sink.Send(notify.SessionStopped(prior.String(), snap))
	return prior
}

// Status reports the session state and, when running, today's profit
// relative to the start-of-session balance.
func (s *Session) Status(ctx context.Context) Status {
	s.mu.Lock()
	st := Status{
		Running:      s.state == stateRunning,
		Mode:         s.mode,
		StartBalance: s.startBalance,
	}
	s.mu.Unlock()

	if st.Running {
		if snap, err := s.venue.AccountSnapshot(ctx); err == nil {
			st.TodayProfit = snap.Balance.Sub(st.StartBalance)
		}
	}
	return st
}

func (s *Session) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		for _, sym := range s.cfg.Symbols {
			if ctx.Err() != nil {
				return
			}
			if !s.evaluateSymbol(ctx, sym) {
				return
			}
			if !sleepCtx(ctx, s.cfg.PollInterval) {
				return
			}
		}
	}
}

// evaluateSymbol runs one decision cycle for one symbol. It returns
// false only when the loop must stop (daily target reached); venue
// errors notify, back off briefly and move on so one symbol's failure
// never aborts the session.
func (s *Session) evaluateSymbol(ctx context.Context, sym config.SymbolConfig) bool {
	snap, err := s.venue.AccountSnapshot(ctx)
	if err != nil {
		return s.symbolError(ctx, sym.Symbol, err)
	}
	s.sink.Send(notify.PreTrade(sym.Symbol, snap, s.cfg.RiskPercent))

	if err := s.venue.EnsureTradeable(ctx, sym.Symbol); err != nil {
		return s.symbolError(ctx, sym.Symbol, err)
	}

	open, err := s.venue.HasOpenPosition(ctx, sym.Symbol)
	if err != nil {
		return s.symbolError(ctx, sym.Symbol, err)
	}
	if open {
		// one open position per symbol at a time, re-checked next cycle
		observ.Log("position_open_skip", map[string]any{"symbol": sym.Symbol})
		return true
	}

	bars, err := s.venue.RecentBars(ctx, sym.Symbol, barsFetch)
	if err != nil {
		return s.symbolError(ctx, sym.Symbol, err)
	}
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}

	sig := s.cfg.Engine.Evaluate(closes)
	if sig == signal.None {
		s.sink.Send(notify.NoSignal(sym.Symbol))
		return true
	}

	spec := s.table.Spec(sym.Symbol)
	volume := risk.Size(snap.Balance, s.cfg.RiskPercent, sym.StopLossPips, spec.PipValuePerLot, s.cfg.MinLot)
	price := closes[len(closes)-1]
	stopLoss, takeProfit := protectiveLevels(sig, price, spec.Point, sym.StopLossPips, sym.TakeProfitPips)

	s.sink.Send(notify.PlacingOrder(sig.String(), sym.Symbol, volume, sym.StopLossPips, sym.TakeProfitPips))

	req := venue.OrderRequest{
		Symbol:     sym.Symbol,
		Side:       sideOf(sig),
		Volume:     volume,
		StopLoss:   stopLoss,
		TakeProfit: takeProfit,
		Deviation:  s.cfg.Deviation,
		Tag:        "AutoTrade " + sig.String(),
	}
	res, err := s.venue.SubmitMarketOrder(ctx, req)
	if err != nil {
		observ.Error("order_failed", err, map[string]any{"symbol": sym.Symbol})
		s.sink.Send(notify.OrderFailed(sym.Symbol, err.Error()))
	} else {
		observ.Log("order_submitted", map[string]any{"symbol": sym.Symbol, "side": string(req.Side), "lot": volume.String()})
		s.sink.Send(res.Message)
	}

	after, err := s.venue.AccountSnapshot(ctx)
	if err != nil {
		return s.symbolError(ctx, sym.Symbol, err)
	}
	profit := after.Balance.Sub(s.snapshotStartBalance())
	s.sink.Send(notify.ProfitUpdate(profit))

	if profit.GreaterThanOrEqual(s.cfg.DailyTarget) {
		// the designed terminal condition for a trading day
		observ.Log("daily_target_reached", map[string]any{"profit": profit.String()})
		s.sink.Send(notify.TargetReached(profit))
		s.completeTarget()
		return false
	}
	return true
}

// symbolError reports a per-symbol venue error and backs off briefly.
// The loop always continues: no venue error may terminate the session.
func (s *Session) symbolError(ctx context.Context, symbol string, err error) bool {
	observ.Error("symbol_error", err, map[string]any{"symbol": symbol})
	s.sink.Send(notify.SymbolError(symbol, err))
	sleepCtx(ctx, s.cfg.ErrorBackoff)
	return true
}

// completeTarget transitions Running -> Idle after the daily target is
// hit. The loop goroutine returns right after calling this.
func (s *Session) completeTarget() {
	s.mu.Lock()
	var cancel context.CancelFunc
	if s.state == stateRunning {
		cancel = s.cancel
		s.state = stateIdle
		s.mode = ModeNone
		s.startBalance = decimal.Decimal{}
		s.cancel = nil
		s.done = nil
	}
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (s *Session) snapshotStartBalance() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startBalance
}

func sideOf(sig signal.Signal) venue.Side {
	if sig == signal.Sell {
		return venue.Sell
	}
	return venue.Buy
}

// protectiveLevels prices the stop-loss/take-profit distances for a
// fill near price. A zero pip count omits the level.
func protectiveLevels(sig signal.Signal, price, point float64, slPips, tpPips int) (*float64, *float64) {
	var stopLoss, takeProfit *float64
	dir := 1.0
	if sig == signal.Sell {
		dir = -1.0
	}
	if slPips > 0 {
		v := price - dir*float64(slPips)*point
		stopLoss = &v
	}
	if tpPips > 0 {
		v := price + dir*float64(tpPips)*point
		takeProfit = &v
	}
	return stopLoss, takeProfit
}

// sleepCtx waits for d or until ctx is canceled; it reports whether
// the full interval elapsed.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
