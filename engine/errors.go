package engine

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by ledger operations. Callers match with
// errors.Is / errors.As and map them to user-facing responses; internal
// storage errors are never surfaced verbatim.
var (
	// ErrQuoteUnavailable means the quote port could not answer in time.
	// Retryable.
	ErrQuoteUnavailable = errors.New("quote unavailable")

	// ErrAccountInactive means the account was stopped out or its
	// challenge failed; further opens are rejected.
	ErrAccountInactive = errors.New("trading account not active")

	// ErrPositionNotFound means no open position exists with that id.
	ErrPositionNotFound = errors.New("position not found")

	// ErrAlreadyClosed is the idempotency guard: the position was settled
	// by an earlier close.
	ErrAlreadyClosed = errors.New("position already closed")

	// ErrAccountNotFound, ErrChallengeNotFound and ErrEnrollmentNotFound
	// are returned by the storage port for missing rows.
	ErrAccountNotFound    = errors.New("trading account not found")
	ErrChallengeNotFound  = errors.New("challenge not found")
	ErrEnrollmentNotFound = errors.New("challenge enrollment not found")
)

// InsufficientMarginError rejects an open whose required margin exceeds the
// account's free margin. It carries both figures so the trader can act.
type InsufficientMarginError struct {
	Required float64
	Free     float64
}

func (e *InsufficientMarginError) Error() string {
	return fmt.Sprintf("insufficient margin: required %.2f, free %.2f", e.Required, e.Free)
}

// InvalidVolumeError rejects a volume outside the instrument's bounds before
// any side effect.
type InvalidVolumeError struct {
	Symbol string
	Volume float64
	Min    float64
	Max    float64
}

func (e *InvalidVolumeError) Error() string {
	return fmt.Sprintf("invalid volume %.2f for %s: allowed %.2f to %.2f", e.Volume, e.Symbol, e.Min, e.Max)
}
