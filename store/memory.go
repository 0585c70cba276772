// Package store provides the storage backends for the settlement engine:
// a transactional SQLite store for real use and a mutex-guarded in-memory
// store for tests and demos. Both satisfy engine.Store.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/propdesk/propdesk/challenge"
	"github.com/propdesk/propdesk/engine"
)

// Memory is an in-process store. All values are copied on the way in and
// out so callers never alias the store's state.
type Memory struct {
	mu          sync.Mutex
	accounts    map[string]engine.TradingAccount
	positions   map[string]engine.Position
	trades      map[string][]engine.Trade // by account, append order
	challenges  map[string]challenge.Challenge
	enrollments map[string]challenge.Enrollment
	equity      []engine.EquitySnapshot
}

func NewMemory() *Memory {
	return &Memory{
		accounts:    make(map[string]engine.TradingAccount),
		positions:   make(map[string]engine.Position),
		trades:      make(map[string][]engine.Trade),
		challenges:  make(map[string]challenge.Challenge),
		enrollments: make(map[string]challenge.Enrollment),
	}
}

func (m *Memory) Account(_ context.Context, id string) (*engine.TradingAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, engine.ErrAccountNotFound
	}
	return &a, nil
}

func (m *Memory) CreateAccount(_ context.Context, a *engine.TradingAccount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[a.ID] = *a
	return nil
}

func (m *Memory) UpdateAccount(_ context.Context, a *engine.TradingAccount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[a.ID]; !ok {
		return engine.ErrAccountNotFound
	}
	m.accounts[a.ID] = *a
	return nil
}

func (m *Memory) ActiveAccounts(_ context.Context) ([]*engine.TradingAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*engine.TradingAccount
	for _, a := range m.accounts {
		if a.Active {
			a := a
			out = append(out, &a)
		}
	}
	return out, nil
}

func (m *Memory) CreatePosition(_ context.Context, p *engine.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions[p.ID] = *p
	return nil
}

func (m *Memory) Position(_ context.Context, id string) (*engine.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.positions[id]
	if !ok {
		return nil, engine.ErrPositionNotFound
	}
	return &p, nil
}

func (m *Memory) PositionsByAccount(_ context.Context, accountID string) ([]*engine.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*engine.Position
	for _, p := range m.positions {
		if p.AccountID == accountID {
			p := p
			out = append(out, &p)
		}
	}
	return out, nil
}

func (m *Memory) UpdatePosition(_ context.Context, p *engine.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.positions[p.ID]; !ok {
		return engine.ErrPositionNotFound
	}
	m.positions[p.ID] = *p
	return nil
}

// SettleClose is all-or-nothing: if the position row is already gone the
// settlement is rejected and nothing else is written.
func (m *Memory) SettleClose(_ context.Context, positionID string, t *engine.Trade, acct *engine.TradingAccount, enr *challenge.Enrollment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.positions[positionID]; !ok {
		return engine.ErrAlreadyClosed
	}
	delete(m.positions, positionID)
	m.trades[t.AccountID] = append(m.trades[t.AccountID], *t)
	m.accounts[acct.ID] = *acct
	m.enrollments[enr.ID] = *enr
	return nil
}

func (m *Memory) TradesByAccount(_ context.Context, accountID string) ([]*engine.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ts := m.trades[accountID]
	out := make([]*engine.Trade, len(ts))
	for i := range ts {
		t := ts[i]
		out[i] = &t
	}
	return out, nil
}

func (m *Memory) TradesClosedSince(_ context.Context, accountID string, since time.Time) ([]*engine.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*engine.Trade
	for _, t := range m.trades[accountID] {
		if !t.CloseTime.Before(since) {
			t := t
			out = append(out, &t)
		}
	}
	return out, nil
}

func (m *Memory) Challenge(_ context.Context, id string) (*challenge.Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.challenges[id]
	if !ok {
		return nil, engine.ErrChallengeNotFound
	}
	return &c, nil
}

func (m *Memory) CreateChallenge(_ context.Context, c *challenge.Challenge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.challenges[c.ID] = *c
	return nil
}

func (m *Memory) Enrollment(_ context.Context, id string) (*challenge.Enrollment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.enrollments[id]
	if !ok {
		return nil, engine.ErrEnrollmentNotFound
	}
	return &e, nil
}

func (m *Memory) CreateEnrollment(_ context.Context, e *challenge.Enrollment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enrollments[e.ID] = *e
	return nil
}

func (m *Memory) UpdateEnrollment(_ context.Context, e *challenge.Enrollment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.enrollments[e.ID]; !ok {
		return engine.ErrEnrollmentNotFound
	}
	m.enrollments[e.ID] = *e
	return nil
}

func (m *Memory) RecordEquity(_ context.Context, snap engine.EquitySnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.equity = append(m.equity, snap)
	return nil
}

// EquityHistory returns the recorded snapshots for an account, oldest first.
func (m *Memory) EquityHistory(accountID string) []engine.EquitySnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []engine.EquitySnapshot
	for _, s := range m.equity {
		if s.AccountID == accountID {
			out = append(out, s)
		}
	}
	return out
}
