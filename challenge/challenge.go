// Package challenge holds the evaluation rules that decide whether a funded
// account challenge passes, fails, or stays active.
package challenge

import (
	"fmt"
	"time"
)

// Challenge is the purchased rule set for one evaluation. Immutable after
// purchase.
type Challenge struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	AccountSize   float64 `json:"account_size"`    // initial balance
	ProfitTarget  float64 `json:"profit_target"`   // absolute currency delta
	MaxDailyLoss  float64 `json:"max_daily_loss"`  // positive threshold
	MaxTotalLoss  float64 `json:"max_total_loss"`  // positive threshold
	MinTradingDays int    `json:"min_trading_days"` // informational, not enforced here
}

// Status is the lifecycle state of an enrollment. ACTIVE is initial; PASSED
// and FAILED are terminal for evaluation. FUNDED is a later lifecycle stage
// the evaluator never produces.
type Status string

const (
	StatusActive Status = "ACTIVE"
	StatusPassed Status = "PASSED"
	StatusFailed Status = "FAILED"
	StatusFunded Status = "FUNDED"
)

// Terminal reports whether evaluation is finished for this status.
func (s Status) Terminal() bool { return s != StatusActive }

// Enrollment is a trader's attempt at a Challenge.
type Enrollment struct {
	ID             string    `json:"id"`
	ChallengeID    string    `json:"challenge_id"`
	Status         Status    `json:"status"`
	CurrentBalance float64   `json:"current_balance"`
	HighWaterMark  float64   `json:"high_water_mark"`
	StartedAt      time.Time `json:"started_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ApplyBalance mirrors the trading account balance onto the enrollment and
// keeps the high-water mark monotonically non-decreasing.
func (e *Enrollment) ApplyBalance(balance float64, now time.Time) {
	e.CurrentBalance = balance
	if balance > e.HighWaterMark {
		e.HighWaterMark = balance
	}
	e.UpdatedAt = now
}

// Transition moves the enrollment to a new status. Terminal states are
// immutable; a transition out of one is a programming error.
func (e *Enrollment) Transition(to Status, now time.Time) error {
	if e.Status.Terminal() && e.Status != to {
		return fmt.Errorf("enrollment %s: cannot transition %s -> %s", e.ID, e.Status, to)
	}
	e.Status = to
	e.UpdatedAt = now
	return nil
}
