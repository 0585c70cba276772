package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Marker drives periodic mark-to-market ticks. Each tick marks every active
// account; accounts are independent, so they are marked in parallel.
type Marker struct {
	eng      *Engine
	interval time.Duration
	log      *slog.Logger
}

func NewMarker(eng *Engine, interval time.Duration, log *slog.Logger) *Marker {
	if log == nil {
		log = slog.Default()
	}
	return &Marker{eng: eng, interval: interval, log: log}
}

// Run ticks until ctx is done.
func (m *Marker) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

func (m *Marker) tick(ctx context.Context) {
	accounts, err := m.eng.store.ActiveAccounts(ctx)
	if err != nil {
		m.log.Error("mark tick: list accounts", "error", err)
		return
	}

	var wg sync.WaitGroup
	for _, acct := range accounts {
		wg.Add(1)
		go func(accountID string) {
			defer wg.Done()
			if _, err := m.eng.Mark(ctx, accountID); err != nil {
				m.log.Warn("mark tick failed", "account", accountID, "error", err)
			}
		}(acct.ID)
	}
	wg.Wait()
}
