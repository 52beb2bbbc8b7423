package signal

// Signal is a discrete trading decision derived from price history.
type Signal int

const (
	None Signal = iota
	Buy
	Sell
)

func (s Signal) String() string {
	switch s {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	default:
		return "none"
	}
}

// Engine computes moving-average crossover signals. Fast and Slow are
// the SMA window lengths in bars, Fast < Slow.
type Engine struct {
	Fast int
	Slow int
}

// Evaluate inspects the close series (oldest to newest) and returns Buy
// on a golden cross (fast SMA crossing above slow SMA between the
// previous and current bar), Sell on the symmetric death cross, and
// None otherwise. Fewer than Slow+1 closes is not an error: the caller
// simply waits for more data.
func (e Engine) Evaluate(closes []float64) Signal {
	if len(closes) < e.Slow+1 {
		return None
	}

	fastNow := sma(closes, e.Fast)
	slowNow := sma(closes, e.Slow)
	prev := closes[:len(closes)-1]
	fastPrev := sma(prev, e.Fast)
	slowPrev := sma(prev, e.Slow)

	if fastPrev < slowPrev && fastNow > slowNow {
		return Buy
	}
	if fastPrev > slowPrev && fastNow < slowNow {
		return Sell
	}
	return None
}

// sma averages the last n values; callers guarantee len(values) >= n.
func sma(values []float64, n int) float64 {
	sum := 0.0
	for _, v := range values[len(values)-n:] {
		sum += v
	}
	return sum / float64(n)
}
