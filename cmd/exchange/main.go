package main

import (
	"context"
	"flag"
	"io"
	"os"
	"os/signal"
	"syscall"

	"bourse/internal/command"
	"bourse/internal/config"
	"bourse/internal/engine"
	"bourse/internal/utils"

	"github.com/rs/zerolog/log"
)

func main() {
	envPath := flag.String("env", "", "Path to a .env file (default: ./.env if present)")
	script := flag.String("script", "", "File of commands to run (default: stdin)")
	flag.Parse()

	cfg := config.Load(*envPath)
	if err := utils.SetupLogger(cfg.Log.Level, cfg.Log.Pretty); err != nil {
		log.Fatal().Err(err).Str("level", cfg.Log.Level).Msg("invalid log level")
	}

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer stop()

	var in io.Reader = os.Stdin
	if *script != "" {
		f, err := os.Open(*script)
		if err != nil {
			log.Fatal().Err(err).Str("script", *script).Msg("unable to open script")
		}
		defer f.Close()
		in = f
	}

	// Setup the matching engine and a command session in front of it.
	eng := engine.New(cfg.Venue.CashAsset, cfg.Venue.Assets...)
	session := command.NewSession(eng, in, os.Stdout)

	done := make(chan error, 1)
	go func() {
		done <- session.Run(ctx)
	}()

	// A session blocked on stdin cannot see the signal, so do not wait on it.
	select {
	case err := <-done:
		if err != nil {
			log.Error().Err(err).Msg("session failed")
			os.Exit(1)
		}
	case <-ctx.Done():
		log.Info().Msg("interrupted")
	}
}
