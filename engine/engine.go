package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/propdesk/propdesk/challenge"
	"github.com/propdesk/propdesk/market"
	"github.com/propdesk/propdesk/pkg/id"
)

// Config tunes the settlement engine.
type Config struct {
	FeePerLot    float64       // commission per lot, charged at open
	StopOutLevel float64       // margin level percent that triggers the cascade
	QuoteTimeout time.Duration // bound on every quote port call
}

// DefaultConfig matches the platform's standard demo terms.
func DefaultConfig() Config {
	return Config{
		FeePerLot:    7,
		StopOutLevel: 50,
		QuoteTimeout: 2 * time.Second,
	}
}

// Engine owns all position and account ledger mutations. Operations on one
// account are serialized behind a per-account mutex; different accounts
// proceed in parallel.
type Engine struct {
	store  Store
	quotes market.QuoteSource
	cfg    Config
	log    *slog.Logger
	now    func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func New(store Store, quotes market.QuoteSource, cfg Config, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		store:  store,
		quotes: quotes,
		cfg:    cfg,
		log:    log,
		now:    func() time.Time { return time.Now().UTC() },
		locks:  make(map[string]*sync.Mutex),
	}
}

func (e *Engine) accountLock(accountID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[accountID]
	if !ok {
		l = &sync.Mutex{}
		e.locks[accountID] = l
	}
	return l
}

// quote fetches a bid/ask pair under the configured timeout. Any failure,
// including the deadline, surfaces as ErrQuoteUnavailable so the per-account
// lock is never held hostage to a stalled quote source.
func (e *Engine) quote(ctx context.Context, symbol string) (market.Quote, error) {
	qctx, cancel := context.WithTimeout(ctx, e.cfg.QuoteTimeout)
	defer cancel()
	q, err := e.quotes.Quote(qctx, symbol)
	if err != nil {
		return market.Quote{}, fmt.Errorf("%w: %s: %v", ErrQuoteUnavailable, symbol, err)
	}
	return q, nil
}

// Quote exposes the current quote for a symbol (read-only, no account lock).
func (e *Engine) Quote(ctx context.Context, symbol string) (market.Quote, error) {
	return e.quote(ctx, symbol)
}

// OpenRequest is an immediate market order.
type OpenRequest struct {
	AccountID  string
	Symbol     string
	Side       Side
	Volume     float64
	StopLoss   *float64
	TakeProfit *float64
}

// Open prices and admits a market order. Open price is the ask for BUY, bid
// for SELL. The order is rejected before any side effect if the volume is out
// of bounds, the account is inactive, or free margin cannot cover the
// required margin.
func (e *Engine) Open(ctx context.Context, req OpenRequest) (*Position, error) {
	inst, known := market.Lookup(req.Symbol)
	if !known {
		e.log.Warn("unknown symbol, using default forex profile", "symbol", req.Symbol)
	}
	if req.Volume <= 0 || req.Volume < inst.MinVolume || req.Volume > inst.MaxVolume {
		return nil, &InvalidVolumeError{Symbol: req.Symbol, Volume: req.Volume, Min: inst.MinVolume, Max: inst.MaxVolume}
	}

	lock := e.accountLock(req.AccountID)
	lock.Lock()
	defer lock.Unlock()

	acct, err := e.store.Account(ctx, req.AccountID)
	if err != nil {
		return nil, err
	}
	if !acct.Active {
		return nil, ErrAccountInactive
	}

	q, err := e.quote(ctx, req.Symbol)
	if err != nil {
		return nil, err
	}
	openPrice := q.Ask
	if req.Side == Sell {
		openPrice = q.Bid
	}

	leverage := acct.Leverage
	if leverage <= 0 {
		leverage = inst.Leverage
	}
	required := RequiredMargin(req.Volume, openPrice, leverage, inst)
	if acct.FreeMargin < required {
		return nil, &InsufficientMarginError{Required: required, Free: acct.FreeMargin}
	}

	now := e.now()
	commission := req.Volume * e.cfg.FeePerLot
	pos := &Position{
		ID:           id.New(),
		AccountID:    req.AccountID,
		Symbol:       req.Symbol,
		Side:         req.Side,
		Volume:       req.Volume,
		OpenPrice:    openPrice,
		StopLoss:     req.StopLoss,
		TakeProfit:   req.TakeProfit,
		Commission:   commission,
		Swap:         0,
		OpenTime:     now,
		CurrentPrice: openPrice,
		Profit:       NetProfit(0, commission, 0),
		Pips:         0,
	}
	if err := e.store.CreatePosition(ctx, pos); err != nil {
		return nil, fmt.Errorf("create position: %w", err)
	}

	if err := e.recomputeLocked(ctx, acct, true); err != nil {
		return nil, err
	}

	e.log.Info("position opened",
		"position", pos.ID, "account", req.AccountID, "symbol", req.Symbol,
		"side", req.Side, "volume", req.Volume, "price", openPrice, "margin", required)
	return pos, nil
}

// Close settles one open position at the current market price: bid for BUY,
// ask for SELL. Exactly once per position; a second close returns
// ErrAlreadyClosed.
func (e *Engine) Close(ctx context.Context, positionID string) (*Trade, error) {
	pos, err := e.store.Position(ctx, positionID)
	if err != nil {
		return nil, err
	}

	lock := e.accountLock(pos.AccountID)
	lock.Lock()
	defer lock.Unlock()

	// Re-read under the lock: a concurrent close may have settled it.
	pos, err = e.store.Position(ctx, positionID)
	if err != nil {
		if errors.Is(err, ErrPositionNotFound) {
			return nil, ErrAlreadyClosed
		}
		return nil, err
	}

	acct, err := e.store.Account(ctx, pos.AccountID)
	if err != nil {
		return nil, err
	}

	trade, err := e.closeLocked(ctx, acct, pos, ReasonManual)
	if err != nil {
		return nil, err
	}
	if err := e.recomputeLocked(ctx, acct, true); err != nil {
		return nil, err
	}
	return trade, nil
}

// closeLocked performs the atomic close settlement. Caller holds the account
// lock and passes the current account row; the row is mutated in place so the
// caller keeps an accurate view.
func (e *Engine) closeLocked(ctx context.Context, acct *TradingAccount, pos *Position, reason string) (*Trade, error) {
	q, err := e.quote(ctx, pos.Symbol)
	if err != nil {
		return nil, err
	}
	closePrice := q.Bid
	if pos.Side == Sell {
		closePrice = q.Ask
	}
	return e.settleLocked(ctx, acct, pos, closePrice, reason)
}

func (e *Engine) settleLocked(ctx context.Context, acct *TradingAccount, pos *Position, closePrice float64, reason string) (*Trade, error) {
	inst, _ := market.Lookup(pos.Symbol)
	gross, pips := ComputePnL(pos.Side, pos.Volume, pos.OpenPrice, closePrice, inst)
	net := NetProfit(gross, pos.Commission, pos.Swap)

	now := e.now()
	trade := &Trade{
		ID:         id.New(),
		AccountID:  pos.AccountID,
		Symbol:     pos.Symbol,
		Side:       pos.Side,
		Volume:     pos.Volume,
		EntryPrice: pos.OpenPrice,
		ExitPrice:  closePrice,
		Profit:     net,
		Pips:       pips,
		Commission: pos.Commission,
		Swap:       pos.Swap,
		OpenTime:   pos.OpenTime,
		CloseTime:  now,
		Reason:     reason,
	}

	enr, err := e.store.Enrollment(ctx, acct.EnrollmentID)
	if err != nil {
		return nil, err
	}

	acct.Balance += net
	acct.UpdatedAt = now
	enr.ApplyBalance(acct.Balance, now)

	if err := e.store.SettleClose(ctx, pos.ID, trade, acct, enr); err != nil {
		// Roll back the in-memory balance so a retry sees the true state.
		acct.Balance -= net
		return nil, err
	}

	e.log.Info("position closed",
		"position", pos.ID, "trade", trade.ID, "account", acct.ID,
		"symbol", pos.Symbol, "profit", net, "pips", pips, "reason", reason)

	if err := e.evaluateLocked(ctx, acct, enr); err != nil {
		return nil, err
	}
	return trade, nil
}

// evaluateLocked runs the challenge rules after a close and applies any
// status transition.
func (e *Engine) evaluateLocked(ctx context.Context, acct *TradingAccount, enr *challenge.Enrollment) error {
	if enr.Status.Terminal() {
		return nil
	}
	ch, err := e.store.Challenge(ctx, enr.ChallengeID)
	if err != nil {
		return err
	}

	dayStart := e.now().Truncate(24 * time.Hour)
	todays, err := e.store.TradesClosedSince(ctx, acct.ID, dayStart)
	if err != nil {
		return err
	}
	var dailyPnL float64
	for _, t := range todays {
		dailyPnL += t.Profit
	}

	out := challenge.Evaluate(*ch, enr.CurrentBalance, dailyPnL)
	if out.Status == challenge.StatusActive {
		return nil
	}

	if err := enr.Transition(out.Status, e.now()); err != nil {
		return err
	}
	if err := e.store.UpdateEnrollment(ctx, enr); err != nil {
		return fmt.Errorf("update enrollment: %w", err)
	}
	if out.Deactivate {
		acct.Active = false
		acct.UpdatedAt = e.now()
		if err := e.store.UpdateAccount(ctx, acct); err != nil {
			return fmt.Errorf("deactivate account: %w", err)
		}
	}
	e.log.Info("challenge evaluated",
		"enrollment", enr.ID, "status", out.Status, "reason", out.Reason,
		"balance", enr.CurrentBalance, "daily_pnl", dailyPnL)
	return nil
}

// Mark refreshes every open position on the account against current quotes,
// fires stop-loss/take-profit closes, recomputes the account metrics, and
// returns the positions still open. Quote failures on individual symbols
// leave the last mark in place rather than failing the whole tick.
func (e *Engine) Mark(ctx context.Context, accountID string) ([]*Position, error) {
	lock := e.accountLock(accountID)
	lock.Lock()
	defer lock.Unlock()

	acct, err := e.store.Account(ctx, accountID)
	if err != nil {
		return nil, err
	}
	positions, err := e.store.PositionsByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	for _, pos := range positions {
		q, err := e.quote(ctx, pos.Symbol)
		if err != nil {
			e.log.Warn("mark skipped, quote unavailable", "position", pos.ID, "symbol", pos.Symbol)
			continue
		}
		// Price the side a trader would receive closing now.
		mark := q.Bid
		if pos.Side == Sell {
			mark = q.Ask
		}

		if reason := triggered(pos, mark); reason != "" {
			if _, err := e.settleLocked(ctx, acct, pos, mark, reason); err != nil {
				return nil, err
			}
			continue
		}

		inst, _ := market.Lookup(pos.Symbol)
		gross, pips := ComputePnL(pos.Side, pos.Volume, pos.OpenPrice, mark, inst)
		pos.CurrentPrice = mark
		pos.Profit = NetProfit(gross, pos.Commission, pos.Swap)
		pos.Pips = pips
		if err := e.store.UpdatePosition(ctx, pos); err != nil {
			return nil, fmt.Errorf("persist mark: %w", err)
		}
	}

	if err := e.recomputeLocked(ctx, acct, true); err != nil {
		return nil, err
	}
	return e.store.PositionsByAccount(ctx, accountID)
}

// triggered reports which protective level, if any, the mark price hit.
func triggered(pos *Position, mark float64) string {
	long := pos.Side == Buy
	if pos.StopLoss != nil {
		if (long && mark <= *pos.StopLoss) || (!long && mark >= *pos.StopLoss) {
			return ReasonStopLoss
		}
	}
	if pos.TakeProfit != nil {
		if (long && mark >= *pos.TakeProfit) || (!long && mark <= *pos.TakeProfit) {
			return ReasonTakeProfit
		}
	}
	return ""
}

// recomputeLocked rebuilds the account metrics from the open position set
// per the ledger invariants, persists the snapshot, and runs the stop-out
// cascade when the margin level breaches the configured floor.
func (e *Engine) recomputeLocked(ctx context.Context, acct *TradingAccount, allowStopOut bool) error {
	positions, err := e.store.PositionsByAccount(ctx, acct.ID)
	if err != nil {
		return err
	}

	equity := acct.Balance
	for _, p := range positions {
		equity += p.Profit
	}
	leverage := acct.Leverage
	if leverage <= 0 {
		leverage = market.DefaultInstrument.Leverage
	}
	used := UsedMargin(positions, leverage)

	acct.Equity = equity
	acct.MarginUsed = used
	acct.FreeMargin = equity - used
	acct.MarginLevel = MarginLevel(equity, used)
	acct.UpdatedAt = e.now()

	if err := e.store.UpdateAccount(ctx, acct); err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	if err := e.store.RecordEquity(ctx, EquitySnapshot{
		AccountID:   acct.ID,
		Time:        acct.UpdatedAt,
		Balance:     acct.Balance,
		Equity:      acct.Equity,
		MarginUsed:  acct.MarginUsed,
		FreeMargin:  acct.FreeMargin,
		MarginLevel: acct.MarginLevel,
	}); err != nil {
		return fmt.Errorf("record equity: %w", err)
	}

	if allowStopOut && used > 0 && acct.MarginLevel < e.cfg.StopOutLevel && len(positions) > 0 {
		return e.stopOutLocked(ctx, acct)
	}
	return nil
}

// stopOutLocked force-closes open positions oldest first until none remain
// or the margin level recovers above the floor. Each forced close settles
// through the normal close path, so trades, balance, enrollment, and
// challenge evaluation all stay consistent.
func (e *Engine) stopOutLocked(ctx context.Context, acct *TradingAccount) error {
	e.log.Warn("stop out triggered", "account", acct.ID, "margin_level", acct.MarginLevel)

	for {
		positions, err := e.store.PositionsByAccount(ctx, acct.ID)
		if err != nil {
			return err
		}
		if len(positions) == 0 || acct.MarginUsed <= 0 || acct.MarginLevel >= e.cfg.StopOutLevel {
			return nil
		}

		sort.Slice(positions, func(i, j int) bool {
			return positions[i].OpenTime.Before(positions[j].OpenTime)
		})

		if _, err := e.closeLocked(ctx, acct, positions[0], ReasonStopOut); err != nil {
			return fmt.Errorf("stop out close: %w", err)
		}
		if err := e.recomputeLocked(ctx, acct, false); err != nil {
			return err
		}
	}
}

// Account returns the current ledger snapshot for an account.
func (e *Engine) Account(ctx context.Context, accountID string) (*TradingAccount, error) {
	lock := e.accountLock(accountID)
	lock.Lock()
	defer lock.Unlock()
	return e.store.Account(ctx, accountID)
}

// Trades returns the account's closed trade history.
func (e *Engine) Trades(ctx context.Context, accountID string) ([]*Trade, error) {
	return e.store.TradesByAccount(ctx, accountID)
}
