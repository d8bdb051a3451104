package cmd

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/martinkersner/dtmx-funding-rate-explorer/config"
)

var cfgFile string

var rootCMD = &cobra.Command{
	Use:   "funding-rate-explorer",
	Short: "Delta-neutral Funding Rate Arbitrage Explorer",
	Long: `Explore the cumulative funding advantage of holding opposite
perpetual-futures positions on two venues. The tool ingests funding-rate
history from vendor CSV exports or exchange backfills, serves a JSON API
with Prometheus metrics, and renders an interactive comparison chart.`,
}

func Execute() {
	err := rootCMD.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCMD.PersistentFlags().StringVar(&cfgFile, "config", "configs/config.yaml", "path to the configuration file")
}

// loadConfig reads and validates the configuration, then applies the
// logging settings. Every subcommand calls it before doing anything else.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	initLogging(cfg.Logging)
	return cfg, nil
}

func initLogging(cfg config.LoggingConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}
