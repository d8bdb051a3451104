package database

import (
	"fmt"

	"gorm.io/gorm"
)

// EnsureIndexes creates the secondary indexes the loaders rely on. The
// unique (venue, asset, timestamp) index comes from the model tags via
// AutoMigrate; these cover per-asset scans and timestamp-ordered reads.
func EnsureIndexes(db *gorm.DB) error {
	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_funding_events_asset_ts
		ON funding_events (asset, timestamp)
	`).Error; err != nil {
		return fmt.Errorf("failed to create asset/timestamp index: %w", err)
	}

	if err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_funding_events_ts
		ON funding_events (timestamp)
	`).Error; err != nil {
		return fmt.Errorf("failed to create timestamp index: %w", err)
	}

	return nil
}
