package cmd

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/martinkersner/dtmx-funding-rate-explorer/database"
	"github.com/martinkersner/dtmx-funding-rate-explorer/ingest"
)

var ingestCMD = &cobra.Command{
	Use:   "ingest [data-directory]",
	Short: "Ingest funding-rate CSV exports from a directory",
	Long: `Process and ingest DataMaxi+ funding-rate CSV exports (plain or
gzipped) from the given directory into PostgreSQL using parallel workers.
Rows already present are skipped, so re-running over the same files is safe.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		dataDir := args[0]

		cfg, err := loadConfig()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load configuration")
		}
		if err := database.Init(cfg.Database); err != nil {
			log.Fatal().Err(err).Msg("failed to initialize database")
		}

		processor := ingest.NewProcessor()

		log.Info().Str("dir", dataDir).Msg("starting parallel ingestion")
		if err := processor.ProcessDirectory(dataDir); err != nil {
			log.Fatal().Err(err).Msg("ingestion failed")
		}
	},
}

func init() {
	rootCMD.AddCommand(ingestCMD)
}
