package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pasiyamd/forexbot/internal/config"
	"github.com/pasiyamd/forexbot/internal/risk"
	"github.com/pasiyamd/forexbot/internal/signal"
	"github.com/pasiyamd/forexbot/internal/venue"
)

type recordSink struct {
	mu   sync.Mutex
	msgs []string
}

func (r *recordSink) Send(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, text)
}

func (r *recordSink) count(substr string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, m := range r.msgs {
		if strings.Contains(m, substr) {
			n++
		}
	}
	return n
}

// goldenCross is a close series whose last bar crosses the 2-SMA above
// the 3-SMA.
var goldenCross = []float64{12, 12, 12, 12, 12, 8, 20}

func testConfig(symbols ...string) Config {
	cfgSymbols := make([]config.SymbolConfig, len(symbols))
	for i, s := range symbols {
		cfgSymbols[i] = config.SymbolConfig{Symbol: s, StopLossPips: 50, TakeProfitPips: 100}
	}
	return Config{
		Symbols:      cfgSymbols,
		Engine:       signal.Engine{Fast: 2, Slow: 3},
		RiskPercent:  decimal.NewFromInt(1),
		MinLot:       decimal.NewFromFloat(0.01),
		DailyTarget:  decimal.NewFromInt(500),
		PollInterval: time.Millisecond,
		ErrorBackoff: time.Millisecond,
		Deviation:    50,
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestStart_ConcurrentDoubleStart(t *testing.T) {
	sim := venue.NewSim(decimal.NewFromInt(10000))
	sim.SetBars("EURUSD", goldenCross)
	sink := &recordSink{}
	s := New(testConfig("EURUSD"), sim, risk.NewTable(nil), sink)
	defer s.Stop()

	results := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- s.Start(context.Background(), ModeSafe)
		}()
	}
	wg.Wait()
	close(results)

	var ok, rejected int
	for err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrAlreadyRunning):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok, "exactly one start must win")
	assert.Equal(t, 1, rejected)
	assert.Equal(t, 1, sink.count("BOT ON"), "exactly one start notification")
}

func TestStart_ConnectionFailureStaysIdle(t *testing.T) {
	sim := venue.NewSim(decimal.NewFromInt(10000))
	sim.ConnectErr = errors.New("login refused")
	sink := &recordSink{}
	s := New(testConfig("EURUSD"), sim, risk.NewTable(nil), sink)

	err := s.Start(context.Background(), ModeSafe)
	require.Error(t, err)
	var connErr *venue.ConnectionError
	assert.True(t, errors.As(err, &connErr))
	assert.False(t, s.Status(context.Background()).Running)

	// a later start succeeds once the venue is reachable
	sim.ConnectErr = nil
	sim.SetBars("EURUSD", goldenCross)
	require.NoError(t, s.Start(context.Background(), ModeSafe))
	s.Stop()
}

func TestStop_OnIdleIsNoOpNotification(t *testing.T) {
	sim := venue.NewSim(decimal.NewFromInt(10000))
	sink := &recordSink{}
	s := New(testConfig("EURUSD"), sim, risk.NewTable(nil), sink)

	prior := s.Stop()
	assert.Equal(t, ModeNone, prior)
	assert.False(t, s.Status(context.Background()).Running)
	assert.Equal(t, 1, sink.count("STOPPED"))
}

func TestStop_ReportsPriorMode(t *testing.T) {
	sim := venue.NewSim(decimal.NewFromInt(10000))
	sim.SetBars("EURUSD", goldenCross)
	sink := &recordSink{}
	s := New(testConfig("EURUSD"), sim, risk.NewTable(nil), sink)

	require.NoError(t, s.Start(context.Background(), ModeUnlimited))
	prior := s.Stop()
	assert.Equal(t, ModeUnlimited, prior)
	assert.Equal(t, 1, sink.count("Mode was: unlimited"))
}

func TestDailyTargetStopsCycle(t *testing.T) {
	sim := venue.NewSim(decimal.NewFromInt(1000))
	sim.SetBars("XAUUSD", goldenCross)
	sim.SetBars("BTCUSD", goldenCross)
	sim.ProfitPerFill = decimal.NewFromInt(500) // first fill reaches the target
	sink := &recordSink{}
	s := New(testConfig("XAUUSD", "BTCUSD"), sim, risk.NewTable(nil), sink)

	require.NoError(t, s.Start(context.Background(), ModeSafe))
	waitFor(t, func() bool { return sink.count("DAILY TARGET REACHED") == 1 })
	waitFor(t, func() bool { return !s.Status(context.Background()).Running })

	// the remaining symbol of the cycle was never evaluated
	assert.Len(t, sim.Submitted(), 1)
	assert.Equal(t, "XAUUSD", sim.Submitted()[0].Symbol)

	// target shutdown frees the session for a fresh start
	require.NoError(t, s.Start(context.Background(), ModeSafe))
	s.Stop()
}

func TestSubmitFailureDoesNotBlockOtherSymbols(t *testing.T) {
	sim := venue.NewSim(decimal.NewFromInt(10000))
	sim.SetBars("XAUUSD", goldenCross)
	sim.SetBars("EURUSD", goldenCross)
	sim.SubmitErrs["XAUUSD"] = errors.New("not enough margin")
	sink := &recordSink{}
	cfg := testConfig("XAUUSD", "EURUSD")
	cfg.DailyTarget = decimal.NewFromInt(1 << 30)
	s := New(cfg, sim, risk.NewTable(nil), sink)

	require.NoError(t, s.Start(context.Background(), ModeSafe))
	waitFor(t, func() bool { return len(sim.Submitted()) >= 2 })
	s.Stop()

	symbols := map[string]bool{}
	for _, req := range sim.Submitted() {
		symbols[req.Symbol] = true
	}
	assert.True(t, symbols["XAUUSD"] && symbols["EURUSD"], "both symbols evaluated: %v", symbols)
	assert.GreaterOrEqual(t, sink.count("Order failed"), 1)
	assert.GreaterOrEqual(t, sink.count("Order executed"), 1)
}

func TestOpenPositionSkipsSymbol(t *testing.T) {
	sim := venue.NewSim(decimal.NewFromInt(10000))
	sim.SetBars("XAUUSD", goldenCross)
	sim.SetBars("EURUSD", goldenCross)
	sim.SetPosition("XAUUSD", true)
	sink := &recordSink{}
	cfg := testConfig("XAUUSD", "EURUSD")
	cfg.DailyTarget = decimal.NewFromInt(1 << 30)
	s := New(cfg, sim, risk.NewTable(nil), sink)

	require.NoError(t, s.Start(context.Background(), ModeSafe))
	waitFor(t, func() bool { return len(sim.Submitted()) >= 1 })
	s.Stop()

	for _, req := range sim.Submitted() {
		assert.NotEqual(t, "XAUUSD", req.Symbol, "open position must not be pyramided")
	}
}

func TestStatus_ReportsProfit(t *testing.T) {
	sim := venue.NewSim(decimal.NewFromInt(10000))
	// flat series: no signal, no orders, so balance stays put
	sim.SetBars("EURUSD", []float64{1, 1, 1, 1, 1, 1, 1})
	sink := &recordSink{}
	s := New(testConfig("EURUSD"), sim, risk.NewTable(nil), sink)

	st := s.Status(context.Background())
	assert.False(t, st.Running)
	assert.Equal(t, ModeNone, st.Mode)

	require.NoError(t, s.Start(context.Background(), ModeSafe))
	st = s.Status(context.Background())
	assert.True(t, st.Running)
	assert.Equal(t, ModeSafe, st.Mode)
	assert.True(t, st.StartBalance.Equal(decimal.NewFromInt(10000)))
	assert.True(t, st.TodayProfit.IsZero())

	sim.SetBalance(decimal.NewFromInt(10250))
	st = s.Status(context.Background())
	assert.True(t, st.TodayProfit.Equal(decimal.NewFromInt(250)))
	s.Stop()
}

func TestProtectiveLevels(t *testing.T) {
	sl, tp := protectiveLevels(signal.Buy, 2000.0, 0.01, 50, 100)
	require.NotNil(t, sl)
	require.NotNil(t, tp)
	assert.InDelta(t, 1999.5, *sl, 1e-9)
	assert.InDelta(t, 2001.0, *tp, 1e-9)

	sl, tp = protectiveLevels(signal.Sell, 2000.0, 0.01, 50, 100)
	assert.InDelta(t, 2000.5, *sl, 1e-9)
	assert.InDelta(t, 1999.0, *tp, 1e-9)

	// zero pip counts omit the level
	sl, tp = protectiveLevels(signal.Buy, 2000.0, 0.01, 0, 0)
	assert.Nil(t, sl)
	assert.Nil(t, tp)
}
