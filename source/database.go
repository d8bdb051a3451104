package source

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/martinkersner/dtmx-funding-rate-explorer/models"
)

// DatabaseSource loads funding events from the postgres store populated by
// the ingest and backfill commands. Rows are persisted with raw timestamps;
// grid snapping and day derivation happen here on load, identically to the
// CSV path.
type DatabaseSource struct {
	db *gorm.DB
}

// NewDatabaseSource returns a source backed by the given gorm handle.
func NewDatabaseSource(db *gorm.DB) *DatabaseSource {
	return &DatabaseSource{db: db}
}

// Load fetches every stored event and normalizes it into the event table.
func (s *DatabaseSource) Load(ctx context.Context) (models.EventTable, error) {
	var events []models.FundingEvent
	err := s.db.WithContext(ctx).
		Order("venue, asset, timestamp").
		Find(&events).Error
	if err != nil {
		return nil, unavailable(fmt.Errorf("load funding events: %v", err))
	}
	for i := range events {
		events[i].Normalize()
	}
	return models.EventTable(events), nil
}

// Fingerprint is the row count plus the highest row id, which changes on
// every ingest or backfill run.
func (s *DatabaseSource) Fingerprint(ctx context.Context) (string, error) {
	var state struct {
		Count int64
		MaxID int64
	}
	err := s.db.WithContext(ctx).
		Model(&models.FundingEvent{}).
		Select("COUNT(*) AS count, COALESCE(MAX(id), 0) AS max_id").
		Scan(&state).Error
	if err != nil {
		return "", unavailable(fmt.Errorf("fingerprint funding events: %v", err))
	}
	return fmt.Sprintf("rows:%d:max:%d", state.Count, state.MaxID), nil
}
