package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"bourse/internal/config"
	"bourse/internal/engine"
	"bourse/internal/report"
	"bourse/internal/sim"
	"bourse/internal/utils"

	"github.com/rs/zerolog/log"
)

func main() {
	// Flags default to the environment, so it is read before parsing.
	cfg := config.Load("")

	simCfg := sim.DefaultConfig()
	workers := flag.Uint("workers", cfg.Simulation.Workers, "Number of pool workers")
	traders := flag.Int("traders", cfg.Simulation.Traders, "Number of traders")
	orders := flag.Int("orders", cfg.Simulation.Orders, "Orders submitted by each trader")
	seed := flag.Int64("seed", cfg.Simulation.Seed, "Seed for deterministic order streams")
	mid := flag.Int64("mid", simCfg.MidPrice, "Mid price orders are drawn around")
	width := flag.Int64("width", simCfg.Width, "Price range either side of the mid")
	quiet := flag.Bool("quiet", false, "Skip printing the venue reports")
	flag.Parse()

	if err := utils.SetupLogger(cfg.Log.Level, cfg.Log.Pretty); err != nil {
		log.Fatal().Err(err).Str("level", cfg.Log.Level).Msg("invalid log level")
	}

	simCfg.Workers = *workers
	simCfg.Traders = *traders
	simCfg.Orders = *orders
	simCfg.Seed = *seed
	simCfg.MidPrice = *mid
	simCfg.Width = *width
	if len(cfg.Venue.Assets) > 0 {
		simCfg.Assets = cfg.Venue.Assets
	}

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer stop()

	eng := engine.New(cfg.Venue.CashAsset, simCfg.Assets...)
	// Every trade would otherwise be logged at info.
	eng.SetReporter(quietReporter{})

	supply, err := sim.Seed(eng, simCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("unable to seed traders")
	}

	stats, err := sim.Run(ctx, eng, simCfg)
	if err != nil {
		log.Fatal().Err(err).Msg("simulation failed")
	}

	if !*quiet {
		if err := report.All(os.Stdout, eng.Snapshot()); err != nil {
			log.Fatal().Err(err).Msg("unable to write reports")
		}
	}

	fmt.Printf("submitted %d orders (%d rejected) in %s, %d trades\n",
		stats.Submitted, stats.Rejected, stats.Elapsed, stats.Trades)
	for _, quote := range eng.Quotes() {
		fmt.Printf("%s: %d resting to buy, %d resting to sell\n",
			quote.Asset, quote.BidDepth, quote.AskDepth)
	}

	if err := sim.Verify(eng, supply); err != nil {
		log.Error().Err(err).Msg("conservation check failed")
		os.Exit(1)
	}
	fmt.Println("conservation check passed")
}
