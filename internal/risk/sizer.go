package risk

import "github.com/shopspring/decimal"

var (
	hundred   = decimal.NewFromInt(100)
	minLotPct = decimal.NewFromFloat(0.01) // a min lot is 1% of a standard lot
)

// Size computes the order volume (in lots) for a trade risking
// riskPercent of balance across stopLossPips pips.
//
//	riskAmount = balance * riskPercent/100
//	volume     = riskAmount / (stopLossPips * pipValuePerLot/100)
//
// rounded to two decimals and clamped to minLot. Degenerate inputs
// (zero stop distance, zero or negative risk) fall back to minLot so a
// misconfigured symbol trades the smallest possible size instead of
// failing the cycle.
func Size(balance, riskPercent decimal.Decimal, stopLossPips int, pipValuePerLot, minLot decimal.Decimal) decimal.Decimal {
	riskAmount := balance.Mul(riskPercent).Div(hundred)
	pipValuePerMinLot := pipValuePerLot.Mul(minLotPct)
	denom := pipValuePerMinLot.Mul(decimal.NewFromInt(int64(stopLossPips)))

	if denom.Sign() <= 0 || riskAmount.Sign() <= 0 {
		return minLot
	}

	volume := riskAmount.Div(denom).Round(2)
	if volume.LessThan(minLot) {
		return minLot
	}
	return volume
}
