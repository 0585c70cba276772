package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/propdesk/propdesk/api"
	"github.com/propdesk/propdesk/challenge"
	"github.com/propdesk/propdesk/config"
	"github.com/propdesk/propdesk/engine"
	"github.com/propdesk/propdesk/pkg/id"
	"github.com/propdesk/propdesk/pkg/logx"
	"github.com/propdesk/propdesk/quotes"
	"github.com/propdesk/propdesk/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the settlement API, quote feed, and mark loop",
	RunE:  runServe,
}

var (
	serveConfigPath string
	serveSeedDemo   bool
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVarP(&serveConfigPath, "config", "f", "", "path to config file (YAML or JSON)")
	serveCmd.Flags().BoolVar(&serveSeedDemo, "seed-demo", false, "create a demo challenge and account at startup")
}

// provisioner is the store surface needed to seed demo data; both backends
// provide it on top of engine.Store.
type provisioner interface {
	engine.Store
	CreateAccount(ctx context.Context, a *engine.TradingAccount) error
	CreateChallenge(ctx context.Context, c *challenge.Challenge) error
	CreateEnrollment(ctx context.Context, e *challenge.Enrollment) error
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Default()
	if serveConfigPath != "" {
		var err error
		cfg, err = config.LoadFromFile(serveConfigPath)
		if err != nil {
			return err
		}
	}

	log := logx.New(cfg.Log.Level)

	var st provisioner
	switch cfg.Storage.Driver {
	case "memory":
		st = store.NewMemory()
	default:
		db, err := store.NewSQLite(cfg.Storage.Path)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer db.Close()
		st = db
	}

	quoteStore := quotes.NewStore()
	seed := cfg.Quotes.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	feed := quotes.NewFeed(quoteStore, quotes.DefaultProfiles, cfg.Quotes.Interval, seed, log)

	eng := engine.New(st, quoteStore, engine.Config{
		FeePerLot:    cfg.Trading.FeePerLot,
		StopOutLevel: cfg.Trading.StopOutLevel,
		QuoteTimeout: cfg.Trading.QuoteTimeout,
	}, log)
	marker := engine.NewMarker(eng, cfg.Trading.MarkInterval, log)
	server := api.NewServer(cfg.Server.Addr, api.NewHandler(eng, log), log)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if serveSeedDemo {
		acct, err := seedDemo(ctx, st)
		if err != nil {
			return fmt.Errorf("seed demo: %w", err)
		}
		log.Info("demo account seeded", "account", acct.ID, "balance", acct.Balance)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return ignoreCancel(feed.Run(ctx)) })
	g.Go(func() error { return ignoreCancel(marker.Run(ctx)) })
	g.Go(func() error { return server.Run(ctx) })

	return g.Wait()
}

func ignoreCancel(err error) error {
	if err == context.Canceled {
		return nil
	}
	return err
}

// seedDemo provisions a standard 10k evaluation: 1,000 profit target, 500
// max daily loss, 1,000 max total loss.
func seedDemo(ctx context.Context, st provisioner) (*engine.TradingAccount, error) {
	now := time.Now().UTC()

	ch := &challenge.Challenge{
		ID:             id.New(),
		Name:           "Evaluation 10K",
		AccountSize:    10_000,
		ProfitTarget:   1_000,
		MaxDailyLoss:   500,
		MaxTotalLoss:   1_000,
		MinTradingDays: 5,
	}
	if err := st.CreateChallenge(ctx, ch); err != nil {
		return nil, err
	}

	enr := &challenge.Enrollment{
		ID:             id.New(),
		ChallengeID:    ch.ID,
		Status:         challenge.StatusActive,
		CurrentBalance: ch.AccountSize,
		HighWaterMark:  ch.AccountSize,
		StartedAt:      now,
		UpdatedAt:      now,
	}
	if err := st.CreateEnrollment(ctx, enr); err != nil {
		return nil, err
	}

	acct := &engine.TradingAccount{
		ID:           id.New(),
		EnrollmentID: enr.ID,
		Balance:      ch.AccountSize,
		Equity:       ch.AccountSize,
		FreeMargin:   ch.AccountSize,
		Leverage:     100,
		Active:       true,
		UpdatedAt:    now,
	}
	if err := st.CreateAccount(ctx, acct); err != nil {
		return nil, err
	}
	return acct, nil
}
