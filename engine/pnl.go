package engine

import (
	"math"

	"github.com/propdesk/propdesk/market"
)

// ComputePnL converts the price move on a position into gross profit and pip
// distance. Pure and deterministic: every settlement path (open, mark, close,
// stop-out) prices through this one function, and no randomness may ever
// enter it.
func ComputePnL(side Side, volume, openPrice, markPrice float64, inst market.Instrument) (profit, pips float64) {
	diff := (markPrice - openPrice) * side.multiplier()
	pips = math.Round(diff*inst.PipScale*100) / 100
	profit = diff * volume * inst.ContractSize
	return profit, pips
}

// NetProfit is the settlement amount for a close: gross profit minus the
// position's costs.
func NetProfit(gross, commission, swap float64) float64 {
	return gross - commission - swap
}
