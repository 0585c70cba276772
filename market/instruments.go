// Package market defines the static instrument table and the quote types
// shared by every settlement calculation.
package market

// Instrument holds the per-symbol constants the PnL and margin calculators
// consume. The table is read-only and safe to share without locking.
type Instrument struct {
	Symbol       string
	ContractSize float64 // currency per point for one lot
	PipScale     float64 // price delta to pips, display only
	MinVolume    float64 // lots
	MaxVolume    float64 // lots
	Leverage     float64 // default account leverage for the symbol class
}

// DefaultInstrument is the fallback profile for symbols missing from the
// table: a standard forex contract (100,000 units, 4-decimal pips). Lookup
// reports whether the fallback was used so callers can log it; the fallback
// itself is deliberate, not an error.
var DefaultInstrument = Instrument{
	ContractSize: 100_000,
	PipScale:     10_000,
	MinVolume:    0.01,
	MaxVolume:    100,
	Leverage:     100,
}

var instruments = map[string]Instrument{
	// Major forex pairs.
	"EURUSD": fx("EURUSD"),
	"GBPUSD": fx("GBPUSD"),
	"AUDUSD": fx("AUDUSD"),
	"NZDUSD": fx("NZDUSD"),
	"USDCAD": fx("USDCAD"),
	"USDCHF": fx("USDCHF"),
	"USDJPY": {Symbol: "USDJPY", ContractSize: 100_000, PipScale: 100, MinVolume: 0.01, MaxVolume: 100, Leverage: 100},

	// Precious metals.
	"GOLD":   {Symbol: "GOLD", ContractSize: 100, PipScale: 10, MinVolume: 0.01, MaxVolume: 100, Leverage: 100},
	"SILVER": {Symbol: "SILVER", ContractSize: 100, PipScale: 10, MinVolume: 0.01, MaxVolume: 100, Leverage: 100},

	// Energy.
	"OIL": {Symbol: "OIL", ContractSize: 1_000, PipScale: 1, MinVolume: 0.01, MaxVolume: 100, Leverage: 100},

	// Crypto.
	"BTCUSD": {Symbol: "BTCUSD", ContractSize: 1, PipScale: 1, MinVolume: 0.01, MaxVolume: 100, Leverage: 100},
	"ETHUSD": {Symbol: "ETHUSD", ContractSize: 1, PipScale: 1, MinVolume: 0.01, MaxVolume: 100, Leverage: 100},

	// Equity indices.
	"SPX500": {Symbol: "SPX500", ContractSize: 50, PipScale: 1, MinVolume: 0.01, MaxVolume: 100, Leverage: 100},
	"NASDAQ": {Symbol: "NASDAQ", ContractSize: 50, PipScale: 1, MinVolume: 0.01, MaxVolume: 100, Leverage: 100},
}

func fx(symbol string) Instrument {
	return Instrument{
		Symbol:       symbol,
		ContractSize: 100_000,
		PipScale:     10_000,
		MinVolume:    0.01,
		MaxVolume:    100,
		Leverage:     100,
	}
}

// Lookup returns the instrument metadata for symbol. Unknown symbols fall
// back to DefaultInstrument (with Symbol filled in) and ok reports false.
func Lookup(symbol string) (inst Instrument, ok bool) {
	if inst, ok = instruments[symbol]; ok {
		return inst, true
	}
	inst = DefaultInstrument
	inst.Symbol = symbol
	return inst, false
}

// Symbols returns every symbol in the table.
func Symbols() []string {
	out := make([]string, 0, len(instruments))
	for s := range instruments {
		out = append(out, s)
	}
	return out
}
