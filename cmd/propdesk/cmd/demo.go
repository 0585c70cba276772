package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/propdesk/propdesk/engine"
	"github.com/propdesk/propdesk/market"
	"github.com/propdesk/propdesk/pkg/logx"
	"github.com/propdesk/propdesk/quotes"
	"github.com/propdesk/propdesk/store"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run a scripted challenge session against an in-memory store",
	Long: `Demo seeds a 10k evaluation, opens a EURUSD position, walks the price,
and closes it, printing the ledger after each step. Useful for eyeballing
the settlement math without standing up the server.`,
	RunE: runDemo,
}

func init() {
	rootCmd.AddCommand(demoCmd)
}

func runDemo(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	log := logx.New("warn")

	st := store.NewMemory()
	acct, err := seedDemo(ctx, st)
	if err != nil {
		return err
	}

	quoteStore := quotes.NewStore()
	quoteStore.Set(market.Quote{Symbol: "EURUSD", Bid: 1.0849, Ask: 1.0851, Time: time.Now().UTC()})

	eng := engine.New(st, quoteStore, engine.DefaultConfig(), log)

	fmt.Printf("Account %s  balance $%.2f\n\n", acct.ID, acct.Balance)

	pos, err := eng.Open(ctx, engine.OpenRequest{
		AccountID: acct.ID,
		Symbol:    "EURUSD",
		Side:      engine.Buy,
		Volume:    1.0,
	})
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	fmt.Printf("Opened BUY 1.00 EURUSD @ %.5f (commission $%.2f)\n", pos.OpenPrice, pos.Commission)

	// Walk the price 50 pips up and mark.
	quoteStore.Set(market.Quote{Symbol: "EURUSD", Bid: 1.0899, Ask: 1.0901, Time: time.Now().UTC()})
	marked, err := eng.Mark(ctx, acct.ID)
	if err != nil {
		return fmt.Errorf("mark: %w", err)
	}
	for _, p := range marked {
		fmt.Printf("Marked: price %.5f  floating $%.2f  pips %.2f\n", p.CurrentPrice, p.Profit, p.Pips)
	}

	trade, err := eng.Close(ctx, pos.ID)
	if err != nil {
		return fmt.Errorf("close: %w", err)
	}
	fmt.Printf("Closed @ %.5f  realized $%.2f  pips %.2f\n\n", trade.ExitPrice, trade.Profit, trade.Pips)

	acct, err = eng.Account(ctx, acct.ID)
	if err != nil {
		return err
	}
	fmt.Printf("Final balance $%.2f  equity $%.2f  margin level %.1f%%\n",
		acct.Balance, acct.Equity, acct.MarginLevel)
	return nil
}
