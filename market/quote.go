package market

import (
	"context"
	"errors"
	"time"
)

// ErrNoQuote is returned by a QuoteSource that has no price for a symbol.
var ErrNoQuote = errors.New("no quote for symbol")

// Quote is a bid/ask pair for a symbol at a point in time.
type Quote struct {
	Symbol string    `json:"symbol"`
	Bid    float64   `json:"bid"`
	Ask    float64   `json:"ask"`
	Time   time.Time `json:"time"`
}

// Mid returns the midpoint price.
func (q Quote) Mid() float64 { return (q.Bid + q.Ask) / 2 }

// Spread returns ask minus bid.
func (q Quote) Spread() float64 { return q.Ask - q.Bid }

// QuoteSource supplies the latest quote for a symbol. Implementations may
// block on I/O; callers bound them with a context deadline.
type QuoteSource interface {
	Quote(ctx context.Context, symbol string) (Quote, error)
}
