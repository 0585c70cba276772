package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/propdesk/propdesk/challenge"
	"github.com/propdesk/propdesk/engine"
)

// SQLite is the durable store. The close settlement runs in a single
// transaction so a failure partway leaves no orphaned position, duplicate
// trade, or stale balance.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	// One writer at a time keeps sqlite's locking out of the picture; the
	// engine already serializes per account above this layer.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error { return s.db.Close() }

func (s *SQLite) Account(ctx context.Context, id string) (*engine.TradingAccount, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, enrollment_id, balance, equity, margin_used, free_margin, margin_level, leverage, active, updated_at
		FROM trading_accounts WHERE id = ?`, id)
	return scanAccount(row)
}

func scanAccount(row *sql.Row) (*engine.TradingAccount, error) {
	var a engine.TradingAccount
	err := row.Scan(&a.ID, &a.EnrollmentID, &a.Balance, &a.Equity, &a.MarginUsed,
		&a.FreeMargin, &a.MarginLevel, &a.Leverage, &a.Active, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, engine.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *SQLite) CreateAccount(ctx context.Context, a *engine.TradingAccount) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trading_accounts
		(id, enrollment_id, balance, equity, margin_used, free_margin, margin_level, leverage, active, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.EnrollmentID, a.Balance, a.Equity, a.MarginUsed,
		a.FreeMargin, a.MarginLevel, a.Leverage, a.Active, a.UpdatedAt)
	return err
}

func (s *SQLite) UpdateAccount(ctx context.Context, a *engine.TradingAccount) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE trading_accounts
		SET balance = ?, equity = ?, margin_used = ?, free_margin = ?, margin_level = ?, leverage = ?, active = ?, updated_at = ?
		WHERE id = ?`,
		a.Balance, a.Equity, a.MarginUsed, a.FreeMargin, a.MarginLevel,
		a.Leverage, a.Active, a.UpdatedAt, a.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return engine.ErrAccountNotFound
	}
	return nil
}

func (s *SQLite) ActiveAccounts(ctx context.Context) ([]*engine.TradingAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, enrollment_id, balance, equity, margin_used, free_margin, margin_level, leverage, active, updated_at
		FROM trading_accounts WHERE active = 1`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*engine.TradingAccount
	for rows.Next() {
		var a engine.TradingAccount
		if err := rows.Scan(&a.ID, &a.EnrollmentID, &a.Balance, &a.Equity, &a.MarginUsed,
			&a.FreeMargin, &a.MarginLevel, &a.Leverage, &a.Active, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}

func (s *SQLite) CreatePosition(ctx context.Context, p *engine.Position) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO positions
		(id, account_id, symbol, side, volume, open_price, stop_loss, take_profit, commission, swap, open_time, current_price, profit, pips)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.AccountID, p.Symbol, p.Side, p.Volume, p.OpenPrice,
		nullable(p.StopLoss), nullable(p.TakeProfit), p.Commission, p.Swap,
		p.OpenTime, p.CurrentPrice, p.Profit, p.Pips)
	return err
}

func nullable(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func (s *SQLite) Position(ctx context.Context, id string) (*engine.Position, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, account_id, symbol, side, volume, open_price, stop_loss, take_profit, commission, swap, open_time, current_price, profit, pips
		FROM positions WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, err
		}
		return nil, engine.ErrPositionNotFound
	}
	return scanPosition(rows)
}

func scanPosition(rows *sql.Rows) (*engine.Position, error) {
	var p engine.Position
	var sl, tp sql.NullFloat64
	if err := rows.Scan(&p.ID, &p.AccountID, &p.Symbol, &p.Side, &p.Volume, &p.OpenPrice,
		&sl, &tp, &p.Commission, &p.Swap, &p.OpenTime, &p.CurrentPrice, &p.Profit, &p.Pips); err != nil {
		return nil, err
	}
	if sl.Valid {
		v := sl.Float64
		p.StopLoss = &v
	}
	if tp.Valid {
		v := tp.Float64
		p.TakeProfit = &v
	}
	return &p, nil
}

func (s *SQLite) PositionsByAccount(ctx context.Context, accountID string) ([]*engine.Position, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, account_id, symbol, side, volume, open_price, stop_loss, take_profit, commission, swap, open_time, current_price, profit, pips
		FROM positions WHERE account_id = ? ORDER BY open_time`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*engine.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLite) UpdatePosition(ctx context.Context, p *engine.Position) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE positions SET current_price = ?, profit = ?, pips = ?, swap = ? WHERE id = ?`,
		p.CurrentPrice, p.Profit, p.Pips, p.Swap, p.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return engine.ErrPositionNotFound
	}
	return nil
}

func (s *SQLite) SettleClose(ctx context.Context, positionID string, t *engine.Trade, acct *engine.TradingAccount, enr *challenge.Enrollment) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM positions WHERE id = ?`, positionID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return engine.ErrAlreadyClosed
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO trades
		(id, account_id, symbol, side, volume, entry_price, exit_price, profit, pips, commission, swap, open_time, close_time, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.AccountID, t.Symbol, t.Side, t.Volume, t.EntryPrice, t.ExitPrice,
		t.Profit, t.Pips, t.Commission, t.Swap, t.OpenTime, t.CloseTime, t.Reason); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE trading_accounts
		SET balance = ?, equity = ?, margin_used = ?, free_margin = ?, margin_level = ?, active = ?, updated_at = ?
		WHERE id = ?`,
		acct.Balance, acct.Equity, acct.MarginUsed, acct.FreeMargin, acct.MarginLevel,
		acct.Active, acct.UpdatedAt, acct.ID); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE challenge_enrollments
		SET current_balance = ?, high_water_mark = ?, updated_at = ?
		WHERE id = ?`,
		enr.CurrentBalance, enr.HighWaterMark, enr.UpdatedAt, enr.ID); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *SQLite) TradesByAccount(ctx context.Context, accountID string) ([]*engine.Trade, error) {
	return s.trades(ctx, `
		SELECT id, account_id, symbol, side, volume, entry_price, exit_price, profit, pips, commission, swap, open_time, close_time, reason
		FROM trades WHERE account_id = ? ORDER BY close_time`, accountID)
}

func (s *SQLite) TradesClosedSince(ctx context.Context, accountID string, since time.Time) ([]*engine.Trade, error) {
	return s.trades(ctx, `
		SELECT id, account_id, symbol, side, volume, entry_price, exit_price, profit, pips, commission, swap, open_time, close_time, reason
		FROM trades WHERE account_id = ? AND close_time >= ? ORDER BY close_time`, accountID, since)
}

func (s *SQLite) trades(ctx context.Context, query string, args ...any) ([]*engine.Trade, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*engine.Trade
	for rows.Next() {
		var t engine.Trade
		if err := rows.Scan(&t.ID, &t.AccountID, &t.Symbol, &t.Side, &t.Volume,
			&t.EntryPrice, &t.ExitPrice, &t.Profit, &t.Pips, &t.Commission, &t.Swap,
			&t.OpenTime, &t.CloseTime, &t.Reason); err != nil {
			return nil, err
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

func (s *SQLite) Challenge(ctx context.Context, id string) (*challenge.Challenge, error) {
	var c challenge.Challenge
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, account_size, profit_target, max_daily_loss, max_total_loss, min_trading_days
		FROM challenges WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &c.AccountSize, &c.ProfitTarget, &c.MaxDailyLoss, &c.MaxTotalLoss, &c.MinTradingDays)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, engine.ErrChallengeNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *SQLite) CreateChallenge(ctx context.Context, c *challenge.Challenge) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO challenges (id, name, account_size, profit_target, max_daily_loss, max_total_loss, min_trading_days)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.AccountSize, c.ProfitTarget, c.MaxDailyLoss, c.MaxTotalLoss, c.MinTradingDays)
	return err
}

func (s *SQLite) Enrollment(ctx context.Context, id string) (*challenge.Enrollment, error) {
	var e challenge.Enrollment
	err := s.db.QueryRowContext(ctx, `
		SELECT id, challenge_id, status, current_balance, high_water_mark, started_at, updated_at
		FROM challenge_enrollments WHERE id = ?`, id).
		Scan(&e.ID, &e.ChallengeID, &e.Status, &e.CurrentBalance, &e.HighWaterMark, &e.StartedAt, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, engine.ErrEnrollmentNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *SQLite) CreateEnrollment(ctx context.Context, e *challenge.Enrollment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO challenge_enrollments (id, challenge_id, status, current_balance, high_water_mark, started_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.ChallengeID, e.Status, e.CurrentBalance, e.HighWaterMark, e.StartedAt, e.UpdatedAt)
	return err
}

func (s *SQLite) UpdateEnrollment(ctx context.Context, e *challenge.Enrollment) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE challenge_enrollments
		SET status = ?, current_balance = ?, high_water_mark = ?, updated_at = ?
		WHERE id = ?`,
		e.Status, e.CurrentBalance, e.HighWaterMark, e.UpdatedAt, e.ID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return engine.ErrEnrollmentNotFound
	}
	return nil
}

func (s *SQLite) RecordEquity(ctx context.Context, snap engine.EquitySnapshot) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO equity (account_id, time, balance, equity, margin_used, free_margin, margin_level)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		snap.AccountID, snap.Time, snap.Balance, snap.Equity,
		snap.MarginUsed, snap.FreeMargin, snap.MarginLevel)
	return err
}
