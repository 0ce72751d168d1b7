package config

import (
	"os"
	"strconv"
	"strings"

	"bourse/internal/common"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

type Log struct {
	Level  string
	Pretty bool
}

type Venue struct {
	// CashAsset settles every trade and is reserved by buy orders.
	CashAsset common.Asset
	// Assets restricts trading to these symbols. Empty allows any symbol.
	Assets []common.Asset
}

// Simulation drives cmd/simulate.
type Simulation struct {
	Workers uint
	Traders int
	Orders  int
	Seed    int64
}

type Config struct {
	Log        Log
	Venue      Venue
	Simulation Simulation
}

func Default() Config {
	return Config{
		Log: Log{
			Level:  "info",
			Pretty: true,
		},
		Venue: Venue{
			CashAsset: common.USD,
		},
		Simulation: Simulation{
			Workers: 4,
			Traders: 8,
			Orders:  1000,
			Seed:    1,
		},
	}
}

// Load reads configuration from a .env file (if it exists) and the
// environment. Priority: ENV > .env file > defaults. Values that do not parse
// are logged and left at their defaults.
func Load(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil {
			log.Warn().Err(err).Str("path", envPath).Msg("unable to load env file, using environment and defaults")
		}
	} else {
		// A missing ./.env is normal.
		_ = godotenv.Load()
	}

	if v := os.Getenv("BOURSE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	cfg.Log.Pretty = envBool("BOURSE_LOG_PRETTY", cfg.Log.Pretty)

	if v := os.Getenv("BOURSE_CASH_ASSET"); v != "" {
		if asset, err := common.ParseAsset(v); err == nil {
			cfg.Venue.CashAsset = asset
		} else {
			log.Warn().Str("value", v).Msg("ignoring invalid BOURSE_CASH_ASSET")
		}
	}
	if v := os.Getenv("BOURSE_ASSETS"); v != "" {
		cfg.Venue.Assets = parseAssets(v)
	}

	if n := envInt("BOURSE_WORKERS", int64(cfg.Simulation.Workers)); n > 0 {
		cfg.Simulation.Workers = uint(n)
	}
	if n := envInt("BOURSE_TRADERS", int64(cfg.Simulation.Traders)); n > 0 {
		cfg.Simulation.Traders = int(n)
	}
	if n := envInt("BOURSE_ORDERS", int64(cfg.Simulation.Orders)); n > 0 {
		cfg.Simulation.Orders = int(n)
	}
	cfg.Simulation.Seed = envInt("BOURSE_SEED", cfg.Simulation.Seed)

	return cfg
}

func parseAssets(v string) []common.Asset {
	var assets []common.Asset
	for _, field := range strings.Split(v, ",") {
		if strings.TrimSpace(field) == "" {
			continue
		}
		asset, err := common.ParseAsset(field)
		if err != nil {
			log.Warn().Str("value", field).Msg("ignoring invalid asset in BOURSE_ASSETS")
			continue
		}
		assets = append(assets, asset)
	}
	return assets
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("ignoring invalid boolean")
		return def
	}
	return b
}

func envInt(key string, def int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		log.Warn().Str("key", key).Str("value", v).Msg("ignoring invalid integer")
		return def
	}
	return n
}
