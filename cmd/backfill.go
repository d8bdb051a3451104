package cmd

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/martinkersner/dtmx-funding-rate-explorer/database"
	"github.com/martinkersner/dtmx-funding-rate-explorer/exchange"
	"github.com/martinkersner/dtmx-funding-rate-explorer/ingest"
)

var (
	backfillAsset string
	backfillDays  int
)

var backfillCMD = &cobra.Command{
	Use:   "backfill",
	Short: "Backfill funding-rate history from Binance",
	Long: `Fetch historical funding rates from Binance USDⓈ-M futures and
store them as raw events under the "binance" venue. Rows already present
are skipped, so overlapping ranges are safe to fetch again.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load configuration")
		}

		asset := backfillAsset
		if asset == "" {
			asset = cfg.Defaults.Asset
		}

		if err := database.Init(cfg.Database); err != nil {
			log.Fatal().Err(err).Msg("failed to initialize database")
		}

		end := time.Now().UTC()
		start := end.AddDate(0, 0, -backfillDays)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		log.Info().
			Str("asset", asset).
			Time("start", start).
			Time("end", end).
			Msg("fetching funding history")

		events, err := exchange.NewBinanceClient().FundingHistory(ctx, asset, start, end)
		if err != nil {
			log.Fatal().Err(err).Msg("backfill fetch failed")
		}

		if err := ingest.NewProcessor().StoreEvents(events); err != nil {
			log.Fatal().Err(err).Msg("backfill store failed")
		}
		log.Info().
			Int("events", len(events)).
			Str("venue", exchange.VenueBinance).
			Msg("backfill completed")
	},
}

func init() {
	backfillCMD.Flags().StringVar(&backfillAsset, "asset", "", "asset to backfill (defaults to the configured default asset)")
	backfillCMD.Flags().IntVar(&backfillDays, "days", 30, "days of history to fetch")
	rootCMD.AddCommand(backfillCMD)
}
