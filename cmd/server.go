package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/martinkersner/dtmx-funding-rate-explorer/api"
	"github.com/martinkersner/dtmx-funding-rate-explorer/config"
	"github.com/martinkersner/dtmx-funding-rate-explorer/database"
	"github.com/martinkersner/dtmx-funding-rate-explorer/source"
)

var serverCMD = &cobra.Command{
	Use:   "server",
	Short: "Start the API server and chart UI",
	Long:  `Start the HTTP server that serves the funding comparison API, the interactive chart page and the Prometheus metrics endpoint.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load configuration")
		}

		src, err := buildSource(cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to build event source")
		}
		cache := source.NewTableCache(src)

		// Warm the cache so the first request does not pay for the load.
		// Not fatal: the source may appear later and every request retries.
		warmCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if _, err := cache.Get(warmCtx); err != nil {
			log.Warn().Err(err).Msg("funding data not loadable at startup, will retry per request")
		}
		cancel()

		r := api.SetupRoutes(api.NewHandler(cache, cfg.Defaults))

		log.Info().Str("port", cfg.Server.Port).Msg("starting server")
		if err := r.Run(cfg.Server.Port); err != nil {
			log.Fatal().Err(err).Msg("server stopped")
		}
	},
}

func init() {
	rootCMD.AddCommand(serverCMD)
}

// buildSource constructs the configured event source backend. The database
// backend owns the connection pool for the whole process lifetime.
func buildSource(cfg *config.Config) (source.Source, error) {
	switch cfg.Source.Kind {
	case "csv":
		return source.NewCSVSource(cfg.Source.CSVPath), nil
	case "database":
		if err := database.Init(cfg.Database); err != nil {
			return nil, err
		}
		return source.NewDatabaseSource(database.DB), nil
	}
	return nil, fmt.Errorf("unsupported source kind %q", cfg.Source.Kind)
}
