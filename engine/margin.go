package engine

import "github.com/propdesk/propdesk/market"

// RequiredMargin is the margin locked by one position:
// volume * contractSize * price / leverage.
func RequiredMargin(volume, price, leverage float64, inst market.Instrument) float64 {
	return volume * inst.ContractSize * price / leverage
}

// UsedMargin aggregates required margin across open positions. Margin is
// computed against each position's open price so the admission figure stays
// stable while the position is held.
func UsedMargin(positions []*Position, leverage float64) float64 {
	var used float64
	for _, p := range positions {
		inst, _ := market.Lookup(p.Symbol)
		used += RequiredMargin(p.Volume, p.OpenPrice, leverage, inst)
	}
	return used
}

// MarginLevel is equity over used margin as a percentage, defined as 0 when
// no margin is in use. Never NaN or Inf.
func MarginLevel(equity, usedMargin float64) float64 {
	if usedMargin <= 0 {
		return 0
	}
	return equity / usedMargin * 100
}
