package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/propdesk/propdesk/market"
)

func TestComputePnL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		symbol     string
		side       Side
		volume     float64
		openPrice  float64
		markPrice  float64
		wantProfit float64
		wantPips   float64
	}{
		{
			name:   "eurusd_buy_five_pips",
			symbol: "EURUSD", side: Buy, volume: 1.0,
			openPrice: 1.10000, markPrice: 1.10050,
			wantProfit: 50, wantPips: 5,
		},
		{
			name:   "eurusd_sell_five_pips_against",
			symbol: "EURUSD", side: Sell, volume: 1.0,
			openPrice: 1.10000, markPrice: 1.10050,
			wantProfit: -50, wantPips: -5,
		},
		{
			name:   "eurusd_buy_loss",
			symbol: "EURUSD", side: Buy, volume: 0.5,
			openPrice: 1.10000, markPrice: 1.09900,
			wantProfit: -50, wantPips: -10,
		},
		{
			name:   "usdjpy_pip_scale_100",
			symbol: "USDJPY", side: Buy, volume: 1.0,
			openPrice: 148.00, markPrice: 148.50,
			wantProfit: 50000, wantPips: 50,
		},
		{
			name:   "gold_contract_100",
			symbol: "GOLD", side: Buy, volume: 1.0,
			openPrice: 2000.00, markPrice: 2010.00,
			wantProfit: 1000, wantPips: 100,
		},
		{
			name:   "oil_contract_1000",
			symbol: "OIL", side: Sell, volume: 1.0,
			openPrice: 80.00, markPrice: 78.00,
			wantProfit: 2000, wantPips: 2,
		},
		{
			name:   "btc_contract_1",
			symbol: "BTCUSD", side: Buy, volume: 2.0,
			openPrice: 42000, markPrice: 42500,
			wantProfit: 1000, wantPips: 500,
		},
		{
			name:   "spx_contract_50",
			symbol: "SPX500", side: Buy, volume: 1.0,
			openPrice: 4900, markPrice: 4910,
			wantProfit: 500, wantPips: 10,
		},
		{
			name:   "flat_price_zero",
			symbol: "EURUSD", side: Buy, volume: 1.0,
			openPrice: 1.10000, markPrice: 1.10000,
			wantProfit: 0, wantPips: 0,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			inst, _ := market.Lookup(tt.symbol)
			profit, pips := ComputePnL(tt.side, tt.volume, tt.openPrice, tt.markPrice, inst)
			assert.InDelta(t, tt.wantProfit, profit, 1e-6)
			assert.InDelta(t, tt.wantPips, pips, 1e-9)
		})
	}
}

// Closing a BUY and an equal-volume SELL over the same prices must yield
// opposite-signed gross profit.
func TestComputePnLAntisymmetric(t *testing.T) {
	t.Parallel()

	prices := [][2]float64{
		{1.10000, 1.10050},
		{1.10000, 1.09900},
		{148.00, 149.25},
		{2000, 1985.5},
	}
	for _, symbol := range []string{"EURUSD", "USDJPY", "GOLD", "BTCUSD", "SPX500"} {
		inst, _ := market.Lookup(symbol)
		for _, pp := range prices {
			buyProfit, buyPips := ComputePnL(Buy, 1.5, pp[0], pp[1], inst)
			sellProfit, sellPips := ComputePnL(Sell, 1.5, pp[0], pp[1], inst)
			assert.InDelta(t, -buyProfit, sellProfit, 1e-9, "%s %v", symbol, pp)
			assert.InDelta(t, -buyPips, sellPips, 1e-9, "%s %v", symbol, pp)
		}
	}
}

func TestNetProfit(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 43.0, NetProfit(50, 7, 0), 1e-9)
	assert.InDelta(t, -7.0, NetProfit(0, 7, 0), 1e-9)
	assert.InDelta(t, -12.5, NetProfit(-3, 7, 2.5), 1e-9)
}
