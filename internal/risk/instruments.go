package risk

import (
	"github.com/shopspring/decimal"

	"github.com/pasiyamd/forexbot/internal/config"
	"github.com/pasiyamd/forexbot/internal/observ"
)

// InstrumentSpec carries the per-symbol constants that position sizing
// and protective-level pricing depend on. These differ by orders of
// magnitude across asset classes, so they are configuration, not
// hidden logic: the built-in table below is the documented default and
// the instruments section of the config file overrides it.
type InstrumentSpec struct {
	// PipValuePerLot is the account-currency value of one pip for a
	// standard lot.
	PipValuePerLot decimal.Decimal
	// Point is the instrument's minimum price increment, used to turn
	// pip distances into prices.
	Point float64
}

var defaultSpecs = map[string]InstrumentSpec{
	"EURUSD": {PipValuePerLot: decimal.NewFromInt(10), Point: 0.0001},
	"XAUUSD": {PipValuePerLot: decimal.NewFromInt(100), Point: 0.01},
	"BTCUSD": {PipValuePerLot: decimal.NewFromInt(1000), Point: 0.1},
}

var fallbackSpec = InstrumentSpec{PipValuePerLot: decimal.NewFromInt(10), Point: 0.0001}

// Table resolves symbols to their InstrumentSpec.
type Table struct {
	specs map[string]InstrumentSpec
}

// NewTable builds a lookup table from the defaults plus any config
// overrides.
func NewTable(overrides map[string]config.Instrument) Table {
	specs := make(map[string]InstrumentSpec, len(defaultSpecs)+len(overrides))
	for sym, spec := range defaultSpecs {
		specs[sym] = spec
	}
	for sym, ins := range overrides {
		spec := InstrumentSpec{
			PipValuePerLot: decimal.NewFromFloat(ins.PipValuePerLot),
			Point:          ins.Point,
		}
		if spec.PipValuePerLot.Sign() <= 0 {
			spec.PipValuePerLot = fallbackSpec.PipValuePerLot
		}
		if spec.Point <= 0 {
			spec.Point = fallbackSpec.Point
		}
		specs[sym] = spec
	}
	return Table{specs: specs}
}

// Spec returns the instrument constants for symbol, falling back to
// the conservative FX default for unlisted symbols.
func (t Table) Spec(symbol string) InstrumentSpec {
	if spec, ok := t.specs[symbol]; ok {
		return spec
	}
	observ.Warn("instrument_fallback", map[string]any{"symbol": symbol})
	return fallbackSpec
}
