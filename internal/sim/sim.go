// Package sim drives an engine with concurrent random traders and checks
// that nothing was created or destroyed along the way.
package sim

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"sync/atomic"
	"time"

	. "bourse/internal/common"
	"bourse/internal/engine"
	"bourse/internal/utils"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

var ErrSupplyChanged = errors.New("supply changed")

type Config struct {
	Workers  uint
	Traders  int
	Orders   int // Orders per trader.
	Seed     int64
	Assets   []Asset
	MidPrice int64
	Width    int64 // Prices are drawn from MidPrice +/- Width.

	// Starting balances per trader.
	Cash  int64
	Units int64
}

func DefaultConfig() Config {
	return Config{
		Workers:  4,
		Traders:  8,
		Orders:   1000,
		Seed:     1,
		Assets:   []Asset{"AAPL", "MSFT", "NVDA"},
		MidPrice: 100,
		Width:    10,
		Cash:     1_000_000,
		Units:    1_000,
	}
}

type Stats struct {
	Submitted int64
	Rejected  int64
	Trades    int
	Elapsed   time.Duration
}

// traderTask is one trader's whole session, handed to a pool worker.
type traderTask struct {
	name   string
	seed   int64
	orders int
}

func traderName(i int) string {
	return "trader-" + strconv.Itoa(i)
}

// Seed funds every trader and returns the resulting supply of each asset.
func Seed(eng *engine.Engine, cfg Config) (map[Asset]int64, error) {
	supply := make(map[Asset]int64)
	cash := eng.CashAsset()
	for i := range cfg.Traders {
		name := traderName(i)
		if err := eng.Deposit(name, cash, cfg.Cash); err != nil {
			return nil, fmt.Errorf("seed %s: %w", name, err)
		}
		supply[cash] += cfg.Cash
		for _, asset := range cfg.Assets {
			if err := eng.Deposit(name, asset, cfg.Units); err != nil {
				return nil, fmt.Errorf("seed %s: %w", name, err)
			}
			supply[asset] += cfg.Units
		}
	}
	return supply, nil
}

// Run lets every trader submit its orders, spreading traders over the
// worker pool. Traders on different assets match concurrently.
func Run(ctx context.Context, eng *engine.Engine, cfg Config) (Stats, error) {
	if len(cfg.Assets) == 0 {
		return Stats{}, fmt.Errorf("no assets to trade: %w", ErrInvalidAsset)
	}

	var submitted, rejected atomic.Int64
	tradesBefore := len(eng.Trades())
	start := time.Now()

	t, _ := tomb.WithContext(ctx)
	pool := utils.NewWorkerPool(cfg.Workers)
	pool.Setup(t, func(t *tomb.Tomb, task any) error {
		trader, ok := task.(traderTask)
		if !ok {
			return fmt.Errorf("unexpected task %T", task)
		}

		rng := rand.New(rand.NewSource(trader.seed))
		for range trader.orders {
			if !t.Alive() {
				return nil
			}

			side, asset, quantity, price := randomOrder(rng, cfg)
			submitted.Add(1)
			_, err := eng.SubmitOrder(trader.name, side, asset, quantity, price)
			switch {
			case err == nil:
			case errors.Is(err, ErrInsufficientFunds):
				rejected.Add(1)
			default:
				return err
			}
		}
		return nil
	})

	for i := range cfg.Traders {
		task := traderTask{
			name:   traderName(i),
			seed:   cfg.Seed + int64(i),
			orders: cfg.Orders,
		}
		if !pool.Offer(t, task) {
			break
		}
	}
	pool.Close()
	err := t.Wait()

	stats := Stats{
		Submitted: submitted.Load(),
		Rejected:  rejected.Load(),
		Trades:    len(eng.Trades()) - tradesBefore,
		Elapsed:   time.Since(start),
	}
	log.Info().
		Int64("submitted", stats.Submitted).
		Int64("rejected", stats.Rejected).
		Int("trades", stats.Trades).
		Dur("elapsed", stats.Elapsed).
		Msg("simulation finished")
	return stats, err
}

// Verify checks every asset's supply, balances plus reservations, against
// what was seeded.
func Verify(eng *engine.Engine, supply map[Asset]int64) error {
	snap := eng.Snapshot()
	cash := eng.CashAsset()
	var errs []error
	for asset, want := range supply {
		if got := snap.Supply(asset, cash); got != want {
			errs = append(errs, fmt.Errorf("%s: have %d, seeded %d: %w", asset, got, want, ErrSupplyChanged))
		}
		if got := eng.Supply(asset); got != want {
			errs = append(errs, fmt.Errorf("%s: ledger supply %d, seeded %d: %w", asset, got, want, ErrSupplyChanged))
		}
	}
	return errors.Join(errs...)
}

func randomOrder(rng *rand.Rand, cfg Config) (Side, Asset, int64, int64) {
	side := Side(rng.Intn(2))
	asset := cfg.Assets[rng.Intn(len(cfg.Assets))]
	quantity := rng.Int63n(10) + 1

	price := cfg.MidPrice
	if cfg.Width > 0 {
		price += rng.Int63n(2*cfg.Width+1) - cfg.Width
	}
	if price <= 0 {
		price = 1
	}
	return side, asset, quantity, price
}
