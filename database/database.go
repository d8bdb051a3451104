package database

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/martinkersner/dtmx-funding-rate-explorer/config"
	"github.com/martinkersner/dtmx-funding-rate-explorer/models"
)

var DB *gorm.DB

// Init connects to postgres and migrates the funding-event schema. The
// connection timezone is pinned to UTC: cross-venue day alignment depends
// on every timestamp being interpreted in the same zone.
func Init(cfg config.DatabaseConfig) error {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable TimeZone=UTC",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name)

	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(25)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)

	if err := DB.AutoMigrate(&models.FundingEvent{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	if err := EnsureIndexes(DB); err != nil {
		log.Warn().Err(err).Msg("failed to ensure secondary indexes")
	}

	log.Info().Str("host", cfg.Host).Str("name", cfg.Name).
		Msg("database connected and migrated")
	return nil
}
