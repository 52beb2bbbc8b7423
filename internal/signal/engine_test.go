package signal

import "testing"

func flat(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestEvaluate_GoldenCross(t *testing.T) {
	e := Engine{Fast: 2, Slow: 3}
	// prev bar: fast=(10+10)/2=10 < slow=(10+10+10)/3=10? equal is not
	// below, so shape the tail explicitly: ... 12, 8, 20
	// prev: fast=(12+8)/2=10, slow=(12+12+8)/3=10.67 -> fast below slow
	// now:  fast=(8+20)/2=14, slow=(12+8+20)/3=13.33 -> fast above slow
	closes := append(flat(5, 12), 8, 20)
	if got := e.Evaluate(closes); got != Buy {
		t.Fatalf("want Buy, got %s", got)
	}
}

func TestEvaluate_DeathCross(t *testing.T) {
	e := Engine{Fast: 2, Slow: 3}
	// mirror of the golden cross shape
	closes := append(flat(5, 12), 16, 4)
	if got := e.Evaluate(closes); got != Sell {
		t.Fatalf("want Sell, got %s", got)
	}
}

func TestEvaluate_NoCross(t *testing.T) {
	e := Engine{Fast: 2, Slow: 3}
	cases := map[string][]float64{
		"flat":             flat(10, 100),
		"steady_uptrend":   {1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
		"steady_downtrend": {10, 9, 8, 7, 6, 5, 4, 3, 2, 1},
	}
	for name, closes := range cases {
		if got := e.Evaluate(closes); got != None {
			t.Fatalf("%s: want None, got %s", name, got)
		}
	}
}

func TestEvaluate_TooFewBars(t *testing.T) {
	e := Engine{Fast: 5, Slow: 20}
	for n := 0; n <= e.Slow; n++ {
		if got := e.Evaluate(flat(n, 1.5)); got != None {
			t.Fatalf("n=%d: want None, got %s", n, got)
		}
	}
}
