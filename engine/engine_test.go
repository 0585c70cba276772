package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propdesk/propdesk/challenge"
	"github.com/propdesk/propdesk/engine"
	"github.com/propdesk/propdesk/market"
	"github.com/propdesk/propdesk/pkg/logx"
	"github.com/propdesk/propdesk/quotes"
	"github.com/propdesk/propdesk/store"
)

type fixture struct {
	eng    *engine.Engine
	store  *store.Memory
	quotes *quotes.Store
	acct   *engine.TradingAccount
	enr    *challenge.Enrollment
}

// newFixture seeds a standard 10k evaluation: profit target 1,000, max daily
// loss 500, max total loss 1,000, leverage 100.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, challenge.Challenge{
		ID:           "ch-1",
		Name:         "Evaluation 10K",
		AccountSize:  10_000,
		ProfitTarget: 1_000,
		MaxDailyLoss: 500,
		MaxTotalLoss: 1_000,
	})
}

func newFixtureWith(t *testing.T, ch challenge.Challenge) *fixture {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC()

	st := store.NewMemory()
	require.NoError(t, st.CreateChallenge(ctx, &ch))

	enr := &challenge.Enrollment{
		ID:             "enr-1",
		ChallengeID:    ch.ID,
		Status:         challenge.StatusActive,
		CurrentBalance: ch.AccountSize,
		HighWaterMark:  ch.AccountSize,
		StartedAt:      now,
		UpdatedAt:      now,
	}
	require.NoError(t, st.CreateEnrollment(ctx, enr))

	acct := &engine.TradingAccount{
		ID:           "acct-1",
		EnrollmentID: enr.ID,
		Balance:      ch.AccountSize,
		Equity:       ch.AccountSize,
		FreeMargin:   ch.AccountSize,
		Leverage:     100,
		Active:       true,
		UpdatedAt:    now,
	}
	require.NoError(t, st.CreateAccount(ctx, acct))

	qs := quotes.NewStore()
	eng := engine.New(st, qs, engine.DefaultConfig(), logx.New("error"))
	return &fixture{eng: eng, store: st, quotes: qs, acct: acct, enr: enr}
}

func (f *fixture) setQuote(t *testing.T, symbol string, bid, ask float64) {
	t.Helper()
	f.quotes.Set(market.Quote{Symbol: symbol, Bid: bid, Ask: ask, Time: time.Now().UTC()})
}

func (f *fixture) open(t *testing.T, req engine.OpenRequest) *engine.Position {
	t.Helper()
	pos, err := f.eng.Open(context.Background(), req)
	require.NoError(t, err)
	return pos
}

func TestOpenRejectsInvalidVolume(t *testing.T) {
	f := newFixture(t)
	f.setQuote(t, "EURUSD", 1.0999, 1.1000)

	for _, volume := range []float64{0, -1, 0.001, 101} {
		_, err := f.eng.Open(context.Background(), engine.OpenRequest{
			AccountID: "acct-1", Symbol: "EURUSD", Side: engine.Buy, Volume: volume,
		})
		var volErr *engine.InvalidVolumeError
		require.ErrorAs(t, err, &volErr, "volume %v", volume)
		assert.Equal(t, 0.01, volErr.Min)
		assert.Equal(t, 100.0, volErr.Max)
	}

	// No side effects before rejection.
	positions, err := f.store.PositionsByAccount(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.Empty(t, positions)
}

func TestOpenRejectsInsufficientMargin(t *testing.T) {
	f := newFixture(t)
	f.setQuote(t, "EURUSD", 1.0999, 1.1000)

	// 10 lots at 1.1000 with 100x leverage needs 11,000 against 10,000 free.
	_, err := f.eng.Open(context.Background(), engine.OpenRequest{
		AccountID: "acct-1", Symbol: "EURUSD", Side: engine.Buy, Volume: 10,
	})
	var marginErr *engine.InsufficientMarginError
	require.ErrorAs(t, err, &marginErr)
	assert.InDelta(t, 11_000, marginErr.Required, 1e-6)
	assert.InDelta(t, 10_000, marginErr.Free, 1e-6)
}

func TestOpenQuoteUnavailable(t *testing.T) {
	f := newFixture(t)

	_, err := f.eng.Open(context.Background(), engine.OpenRequest{
		AccountID: "acct-1", Symbol: "GBPUSD", Side: engine.Buy, Volume: 1,
	})
	assert.ErrorIs(t, err, engine.ErrQuoteUnavailable)
}

func TestOpenPricesBySide(t *testing.T) {
	f := newFixture(t)
	f.setQuote(t, "EURUSD", 1.0999, 1.1001)

	buy := f.open(t, engine.OpenRequest{AccountID: "acct-1", Symbol: "EURUSD", Side: engine.Buy, Volume: 0.5})
	sell := f.open(t, engine.OpenRequest{AccountID: "acct-1", Symbol: "EURUSD", Side: engine.Sell, Volume: 0.5})

	assert.InDelta(t, 1.1001, buy.OpenPrice, 1e-9) // BUY fills on ask
	assert.InDelta(t, 1.0999, sell.OpenPrice, 1e-9)
	assert.InDelta(t, 3.5, buy.Commission, 1e-9) // 0.5 lots * 7/lot
}

func TestOpenUpdatesAccountMetrics(t *testing.T) {
	f := newFixture(t)
	f.setQuote(t, "EURUSD", 1.0999, 1.1000)

	f.open(t, engine.OpenRequest{AccountID: "acct-1", Symbol: "EURUSD", Side: engine.Buy, Volume: 1})

	acct, err := f.eng.Account(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.InDelta(t, 10_000, acct.Balance, 1e-6) // balance untouched by open
	assert.InDelta(t, 9_993, acct.Equity, 1e-6)   // floating -commission
	assert.InDelta(t, 1_100, acct.MarginUsed, 1e-6)
	assert.InDelta(t, 9_993-1_100, acct.FreeMargin, 1e-6)
	assert.InDelta(t, 9_993/1_100*100, acct.MarginLevel, 1e-6)
}

// Opening then closing with no price movement settles to exactly minus the
// commission.
func TestCloseRoundTripCostOnly(t *testing.T) {
	f := newFixture(t)
	f.setQuote(t, "EURUSD", 1.0999, 1.1000)
	pos := f.open(t, engine.OpenRequest{AccountID: "acct-1", Symbol: "EURUSD", Side: engine.Buy, Volume: 1})

	// Close-side bid equals the open-side ask.
	f.setQuote(t, "EURUSD", 1.1000, 1.1002)
	trade, err := f.eng.Close(context.Background(), pos.ID)
	require.NoError(t, err)

	assert.InDelta(t, -7, trade.Profit, 1e-9)
	assert.InDelta(t, 0, trade.Pips, 1e-9)
	assert.Equal(t, engine.ReasonManual, trade.Reason)

	acct, _ := f.eng.Account(context.Background(), "acct-1")
	assert.InDelta(t, 9_993, acct.Balance, 1e-9)
	assert.Equal(t, 0.0, acct.MarginLevel) // no open positions
}

func TestCloseIsExactlyOnce(t *testing.T) {
	f := newFixture(t)
	f.setQuote(t, "EURUSD", 1.0999, 1.1000)
	pos := f.open(t, engine.OpenRequest{AccountID: "acct-1", Symbol: "EURUSD", Side: engine.Buy, Volume: 1})
	f.setQuote(t, "EURUSD", 1.1000, 1.1002)

	_, err := f.eng.Close(context.Background(), pos.ID)
	require.NoError(t, err)

	_, err = f.eng.Close(context.Background(), pos.ID)
	assert.ErrorIs(t, err, engine.ErrPositionNotFound)

	trades, err := f.eng.Trades(context.Background(), "acct-1")
	require.NoError(t, err)
	require.Len(t, trades, 1)

	acct, _ := f.eng.Account(context.Background(), "acct-1")
	assert.InDelta(t, 9_993, acct.Balance, 1e-9) // delta applied once
}

func TestCloseUnknownPosition(t *testing.T) {
	f := newFixture(t)
	_, err := f.eng.Close(context.Background(), "no-such-position")
	assert.ErrorIs(t, err, engine.ErrPositionNotFound)
}

// A sequence of closes reaching +1,000 net profit passes the challenge on
// the closing trade.
func TestProfitTargetPasses(t *testing.T) {
	f := newFixture(t)
	f.setQuote(t, "EURUSD", 1.0999, 1.1000)
	pos := f.open(t, engine.OpenRequest{AccountID: "acct-1", Symbol: "EURUSD", Side: engine.Buy, Volume: 1})

	// 101 pips up: gross 1,010, net 1,003 >= 1,000 target.
	f.setQuote(t, "EURUSD", 1.1101, 1.1103)
	trade, err := f.eng.Close(context.Background(), pos.ID)
	require.NoError(t, err)
	assert.InDelta(t, 1_003, trade.Profit, 1e-6)

	enr, err := f.store.Enrollment(context.Background(), "enr-1")
	require.NoError(t, err)
	assert.Equal(t, challenge.StatusPassed, enr.Status)
	assert.InDelta(t, 11_003, enr.CurrentBalance, 1e-6)
	assert.InDelta(t, 11_003, enr.HighWaterMark, 1e-6)

	// Passing does not deactivate the account.
	acct, _ := f.eng.Account(context.Background(), "acct-1")
	assert.True(t, acct.Active)
}

// Losses reaching the max total loss fail the challenge, deactivate the
// account, and reject further opens.
func TestTotalLossFailsAndDeactivates(t *testing.T) {
	f := newFixture(t)
	f.setQuote(t, "EURUSD", 1.0999, 1.1000)
	pos := f.open(t, engine.OpenRequest{AccountID: "acct-1", Symbol: "EURUSD", Side: engine.Buy, Volume: 1})

	// 101 pips down: net -1,017, drawdown 1,017 >= 1,000.
	f.setQuote(t, "EURUSD", 1.0899, 1.0901)
	_, err := f.eng.Close(context.Background(), pos.ID)
	require.NoError(t, err)

	enr, _ := f.store.Enrollment(context.Background(), "enr-1")
	assert.Equal(t, challenge.StatusFailed, enr.Status)

	acct, _ := f.eng.Account(context.Background(), "acct-1")
	assert.False(t, acct.Active)

	_, err = f.eng.Open(context.Background(), engine.OpenRequest{
		AccountID: "acct-1", Symbol: "EURUSD", Side: engine.Buy, Volume: 0.1,
	})
	assert.ErrorIs(t, err, engine.ErrAccountInactive)
}

func TestDailyLossFails(t *testing.T) {
	f := newFixtureWith(t, challenge.Challenge{
		ID: "ch-1", AccountSize: 10_000, ProfitTarget: 1_000,
		MaxDailyLoss: 500, MaxTotalLoss: 5_000,
	})
	f.setQuote(t, "EURUSD", 1.0999, 1.1000)
	pos := f.open(t, engine.OpenRequest{AccountID: "acct-1", Symbol: "EURUSD", Side: engine.Buy, Volume: 0.5})

	// 100 pips down on half a lot: net -503.50, breaches the 500 daily cap
	// but not the 5,000 total cap.
	f.setQuote(t, "EURUSD", 1.0900, 1.0902)
	_, err := f.eng.Close(context.Background(), pos.ID)
	require.NoError(t, err)

	enr, _ := f.store.Enrollment(context.Background(), "enr-1")
	assert.Equal(t, challenge.StatusFailed, enr.Status)
	acct, _ := f.eng.Account(context.Background(), "acct-1")
	assert.False(t, acct.Active)
}

func TestMarkTriggersStopLoss(t *testing.T) {
	f := newFixture(t)
	f.setQuote(t, "EURUSD", 1.0999, 1.1000)
	sl := 1.0950
	f.open(t, engine.OpenRequest{
		AccountID: "acct-1", Symbol: "EURUSD", Side: engine.Buy, Volume: 0.1, StopLoss: &sl,
	})

	f.setQuote(t, "EURUSD", 1.0949, 1.0951)
	remaining, err := f.eng.Mark(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.Empty(t, remaining)

	trades, _ := f.eng.Trades(context.Background(), "acct-1")
	require.Len(t, trades, 1)
	assert.Equal(t, engine.ReasonStopLoss, trades[0].Reason)
	assert.InDelta(t, 1.0949, trades[0].ExitPrice, 1e-9)
}

func TestMarkTriggersTakeProfit(t *testing.T) {
	f := newFixture(t)
	f.setQuote(t, "EURUSD", 1.0999, 1.1000)
	tp := 1.0950
	f.open(t, engine.OpenRequest{
		AccountID: "acct-1", Symbol: "EURUSD", Side: engine.Sell, Volume: 0.1, TakeProfit: &tp,
	})

	// SELL take-profit fires when the ask falls to the level.
	f.setQuote(t, "EURUSD", 1.0948, 1.0950)
	remaining, err := f.eng.Mark(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.Empty(t, remaining)

	trades, _ := f.eng.Trades(context.Background(), "acct-1")
	require.Len(t, trades, 1)
	assert.Equal(t, engine.ReasonTakeProfit, trades[0].Reason)
}

func TestMarkUpdatesFloatingView(t *testing.T) {
	f := newFixture(t)
	f.setQuote(t, "EURUSD", 1.0999, 1.1000)
	f.open(t, engine.OpenRequest{AccountID: "acct-1", Symbol: "EURUSD", Side: engine.Buy, Volume: 1})

	f.setQuote(t, "EURUSD", 1.1050, 1.1052)
	marked, err := f.eng.Mark(context.Background(), "acct-1")
	require.NoError(t, err)
	require.Len(t, marked, 1)

	assert.InDelta(t, 1.1050, marked[0].CurrentPrice, 1e-9)
	assert.InDelta(t, 500-7, marked[0].Profit, 1e-6) // gross 500 minus commission
	assert.InDelta(t, 50, marked[0].Pips, 1e-9)
}

// A margin level below 50% force-closes the account's positions and, here,
// cascades into a failed challenge.
func TestStopOutCascade(t *testing.T) {
	f := newFixture(t)
	f.setQuote(t, "EURUSD", 1.0999, 1.1000)
	f.open(t, engine.OpenRequest{AccountID: "acct-1", Symbol: "EURUSD", Side: engine.Buy, Volume: 5})

	// 150 pips down on 5 lots: floating -7,535, equity 2,465 against 5,500
	// used margin -> margin level ~44.8%.
	f.setQuote(t, "EURUSD", 1.0850, 1.0852)
	remaining, err := f.eng.Mark(context.Background(), "acct-1")
	require.NoError(t, err)
	assert.Empty(t, remaining)

	trades, _ := f.eng.Trades(context.Background(), "acct-1")
	require.Len(t, trades, 1)
	assert.Equal(t, engine.ReasonStopOut, trades[0].Reason)
	assert.InDelta(t, -7_535, trades[0].Profit, 1e-6)

	acct, _ := f.eng.Account(context.Background(), "acct-1")
	assert.InDelta(t, 2_465, acct.Balance, 1e-6)
	assert.Equal(t, 0.0, acct.MarginLevel)
	assert.False(t, acct.Active) // drawdown breached max total loss

	enr, _ := f.store.Enrollment(context.Background(), "enr-1")
	assert.Equal(t, challenge.StatusFailed, enr.Status)
}

// Stop-out closes oldest positions first.
func TestStopOutOldestFirst(t *testing.T) {
	f := newFixtureWith(t, challenge.Challenge{
		ID: "ch-1", AccountSize: 10_000, ProfitTarget: 50_000,
		MaxDailyLoss: 50_000, MaxTotalLoss: 50_000,
	})
	f.setQuote(t, "EURUSD", 1.0999, 1.1000)

	first := f.open(t, engine.OpenRequest{AccountID: "acct-1", Symbol: "EURUSD", Side: engine.Buy, Volume: 3})
	time.Sleep(2 * time.Millisecond)
	f.open(t, engine.OpenRequest{AccountID: "acct-1", Symbol: "EURUSD", Side: engine.Buy, Volume: 3})

	f.setQuote(t, "EURUSD", 1.0870, 1.0872)
	_, err := f.eng.Mark(context.Background(), "acct-1")
	require.NoError(t, err)

	trades, _ := f.eng.Trades(context.Background(), "acct-1")
	require.NotEmpty(t, trades)
	assert.Equal(t, engine.ReasonStopOut, trades[0].Reason)
	assert.Equal(t, first.OpenTime, trades[0].OpenTime)
}
