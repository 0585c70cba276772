package quotes

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"time"

	"github.com/propdesk/propdesk/market"
)

// Profile describes how a symbol's simulated price behaves.
type Profile struct {
	Symbol     string
	BasePrice  float64
	Spread     float64
	Volatility float64 // fraction of price per tick
	Decimals   int
}

// DefaultProfiles covers every symbol in the instrument table with
// plausible demo prices and spreads.
var DefaultProfiles = []Profile{
	{Symbol: "EURUSD", BasePrice: 1.0850, Spread: 0.0002, Volatility: 0.001, Decimals: 5},
	{Symbol: "GBPUSD", BasePrice: 1.2680, Spread: 0.0002, Volatility: 0.0012, Decimals: 5},
	{Symbol: "USDJPY", BasePrice: 148.45, Spread: 0.02, Volatility: 0.002, Decimals: 2},
	{Symbol: "AUDUSD", BasePrice: 0.6495, Spread: 0.0002, Volatility: 0.0008, Decimals: 5},
	{Symbol: "USDCAD", BasePrice: 1.3595, Spread: 0.0002, Volatility: 0.0006, Decimals: 5},
	{Symbol: "USDCHF", BasePrice: 0.8845, Spread: 0.0002, Volatility: 0.001, Decimals: 5},
	{Symbol: "NZDUSD", BasePrice: 0.5845, Spread: 0.0002, Volatility: 0.0009, Decimals: 5},
	{Symbol: "GOLD", BasePrice: 2035.50, Spread: 0.50, Volatility: 0.002, Decimals: 2},
	{Symbol: "SILVER", BasePrice: 23.45, Spread: 0.05, Volatility: 0.003, Decimals: 2},
	{Symbol: "OIL", BasePrice: 78.25, Spread: 0.05, Volatility: 0.004, Decimals: 2},
	{Symbol: "BTCUSD", BasePrice: 42800.00, Spread: 50.00, Volatility: 0.008, Decimals: 2},
	{Symbol: "ETHUSD", BasePrice: 2250.00, Spread: 5.00, Volatility: 0.012, Decimals: 2},
	{Symbol: "SPX500", BasePrice: 4950.00, Spread: 0.50, Volatility: 0.004, Decimals: 2},
	{Symbol: "NASDAQ", BasePrice: 15550.00, Spread: 1.00, Volatility: 0.005, Decimals: 2},
}

// Feed drives a Store with a random walk around each profile's base price.
// The mid price is clamped to ±5% of the base so a long demo session cannot
// drift into absurd territory.
type Feed struct {
	store    *Store
	profiles []Profile
	interval time.Duration
	rng      *rand.Rand
	log      *slog.Logger

	mids map[string]float64
}

func NewFeed(store *Store, profiles []Profile, interval time.Duration, seed int64, log *slog.Logger) *Feed {
	if log == nil {
		log = slog.Default()
	}
	return &Feed{
		store:    store,
		profiles: profiles,
		interval: interval,
		rng:      rand.New(rand.NewSource(seed)),
		log:      log,
		mids:     make(map[string]float64),
	}
}

// Run publishes initial quotes immediately, then ticks until ctx is done.
func (f *Feed) Run(ctx context.Context) error {
	now := time.Now().UTC()
	for _, p := range f.profiles {
		f.mids[p.Symbol] = p.BasePrice
		f.store.Set(f.quote(p, p.BasePrice, now))
	}
	f.log.Info("quote feed started", "symbols", len(f.profiles), "interval", f.interval)

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			f.log.Info("quote feed stopped")
			return ctx.Err()
		case t := <-ticker.C:
			f.tick(t.UTC())
		}
	}
}

func (f *Feed) tick(now time.Time) {
	for _, p := range f.profiles {
		mid := f.mids[p.Symbol]
		mid += (f.rng.Float64() - 0.5) * 2 * p.Volatility * mid

		maxDev := p.BasePrice * 0.05
		mid = math.Max(p.BasePrice-maxDev, math.Min(p.BasePrice+maxDev, mid))

		f.mids[p.Symbol] = mid
		f.store.Set(f.quote(p, mid, now))
	}
}

func (f *Feed) quote(p Profile, mid float64, now time.Time) market.Quote {
	half := p.Spread / 2
	return market.Quote{
		Symbol: p.Symbol,
		Bid:    roundTo(mid-half, p.Decimals),
		Ask:    roundTo(mid+half, p.Decimals),
		Time:   now,
	}
}

func roundTo(x float64, decimals int) float64 {
	pow := math.Pow(10, float64(decimals))
	return math.Round(x*pow) / pow
}
