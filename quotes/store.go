// Package quotes provides the simulated quote feed: a latest-quote store and
// a random-walk generator that keeps it fresh. All price randomness in the
// system lives here; the settlement engine only ever sees the bid/ask pairs
// this package publishes.
package quotes

import (
	"context"
	"fmt"
	"sync"

	"github.com/propdesk/propdesk/market"
)

// Store holds the latest quote per symbol.
type Store struct {
	mu     sync.RWMutex
	quotes map[string]market.Quote
}

func NewStore() *Store {
	return &Store{quotes: make(map[string]market.Quote)}
}

// Set publishes q as the latest quote for its symbol.
func (s *Store) Set(q market.Quote) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quotes[q.Symbol] = q
}

// Quote implements market.QuoteSource.
func (s *Store) Quote(_ context.Context, symbol string) (market.Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.quotes[symbol]
	if !ok {
		return market.Quote{}, fmt.Errorf("%q: %w", symbol, market.ErrNoQuote)
	}
	return q, nil
}
