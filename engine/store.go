package engine

import (
	"context"
	"time"

	"github.com/propdesk/propdesk/challenge"
)

// Store is the storage port the engine settles against. Implementations live
// in the store package; the engine never assumes a particular backend.
//
// SettleClose is the exactly-once boundary: it must atomically delete the
// position, append the trade, and write the updated account and enrollment.
// If the position row is already gone the whole settlement must roll back
// and return ErrAlreadyClosed.
type Store interface {
	Account(ctx context.Context, id string) (*TradingAccount, error)
	UpdateAccount(ctx context.Context, acct *TradingAccount) error
	ActiveAccounts(ctx context.Context) ([]*TradingAccount, error)

	CreatePosition(ctx context.Context, p *Position) error
	Position(ctx context.Context, id string) (*Position, error)
	PositionsByAccount(ctx context.Context, accountID string) ([]*Position, error)
	UpdatePosition(ctx context.Context, p *Position) error

	SettleClose(ctx context.Context, positionID string, t *Trade, acct *TradingAccount, enr *challenge.Enrollment) error
	TradesByAccount(ctx context.Context, accountID string) ([]*Trade, error)
	TradesClosedSince(ctx context.Context, accountID string, since time.Time) ([]*Trade, error)

	Challenge(ctx context.Context, id string) (*challenge.Challenge, error)
	Enrollment(ctx context.Context, id string) (*challenge.Enrollment, error)
	UpdateEnrollment(ctx context.Context, e *challenge.Enrollment) error

	RecordEquity(ctx context.Context, snap EquitySnapshot) error
}
