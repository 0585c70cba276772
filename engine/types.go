// Package engine is the position and challenge settlement core: it prices
// orders into positions, settles closed positions into trades, maintains
// account balance/equity/margin, and runs the stop-out cascade.
package engine

import (
	"fmt"
	"time"
)

// Side is the direction of a position.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// multiplier returns +1 for BUY, -1 for SELL.
func (s Side) multiplier() float64 {
	if s == Sell {
		return -1
	}
	return 1
}

// ParseSide validates a wire-format side string.
func ParseSide(s string) (Side, error) {
	switch Side(s) {
	case Buy, Sell:
		return Side(s), nil
	}
	return "", fmt.Errorf("invalid side %q", s)
}

// Position is one open market order. It is created on order acceptance,
// updated only by mark-to-market while open, and destroyed when converted
// into a Trade on close.
type Position struct {
	ID         string    `json:"id"`
	AccountID  string    `json:"account_id"`
	Symbol     string    `json:"symbol"`
	Side       Side      `json:"side"`
	Volume     float64   `json:"volume"` // lots, > 0
	OpenPrice  float64   `json:"open_price"`
	StopLoss   *float64  `json:"stop_loss,omitempty"`
	TakeProfit *float64  `json:"take_profit,omitempty"`
	Commission float64   `json:"commission"` // charged at open, settled at close
	Swap       float64   `json:"swap"`
	OpenTime   time.Time `json:"open_time"`

	// Mark-to-market view, refreshed on every mark tick.
	CurrentPrice float64 `json:"current_price"`
	Profit       float64 `json:"profit"` // floating, net of commission and swap
	Pips         float64 `json:"pips"`
}

// Trade is the immutable history record of a closed position. Created
// exactly once per close.
type Trade struct {
	ID         string    `json:"id"`
	AccountID  string    `json:"account_id"`
	Symbol     string    `json:"symbol"`
	Side       Side      `json:"side"`
	Volume     float64   `json:"volume"`
	EntryPrice float64   `json:"entry_price"`
	ExitPrice  float64   `json:"exit_price"`
	Profit     float64   `json:"profit"` // realized, net of commission and swap
	Pips       float64   `json:"pips"`
	Commission float64   `json:"commission"`
	Swap       float64   `json:"swap"`
	OpenTime   time.Time `json:"open_time"`
	CloseTime  time.Time `json:"close_time"`
	Reason     string    `json:"reason"` // MANUAL, STOP_LOSS, TAKE_PROFIT, STOP_OUT
}

// Close reasons recorded on trades.
const (
	ReasonManual     = "MANUAL"
	ReasonStopLoss   = "STOP_LOSS"
	ReasonTakeProfit = "TAKE_PROFIT"
	ReasonStopOut    = "STOP_OUT"
)

// TradingAccount is the per-account ledger. Balance moves only on trade
// close; equity and margin move on every mark tick and on open/close.
type TradingAccount struct {
	ID           string    `json:"id"`
	EnrollmentID string    `json:"enrollment_id"`
	Balance      float64   `json:"balance"`
	Equity       float64   `json:"equity"`
	MarginUsed   float64   `json:"margin_used"`
	FreeMargin   float64   `json:"free_margin"`
	MarginLevel  float64   `json:"margin_level"` // percent; 0 when no margin used
	Leverage     float64   `json:"leverage"`
	Active       bool      `json:"active"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// EquitySnapshot is a point-in-time record of the account metrics, appended
// after every settlement and mark tick.
type EquitySnapshot struct {
	AccountID   string    `json:"account_id"`
	Time        time.Time `json:"time"`
	Balance     float64   `json:"balance"`
	Equity      float64   `json:"equity"`
	MarginUsed  float64   `json:"margin_used"`
	FreeMargin  float64   `json:"free_margin"`
	MarginLevel float64   `json:"margin_level"`
}
