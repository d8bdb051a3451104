package source

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/martinkersner/dtmx-funding-rate-explorer/metrics"
	"github.com/martinkersner/dtmx-funding-rate-explorer/models"
)

// TableCache keeps the last loaded event table and revalidates the source
// fingerprint on every Get, reloading only when the source changed. The
// cached table is shared between concurrent queries; callers must treat it
// as read-only and derive fresh slices from it.
type TableCache struct {
	src Source

	mu          sync.Mutex
	fingerprint string
	table       models.EventTable
	loaded      bool
}

// NewTableCache wraps a source with fingerprint-keyed caching.
func NewTableCache(src Source) *TableCache {
	return &TableCache{src: src}
}

// Get returns the current event table, reloading it when the source
// fingerprint no longer matches the cached one. A fingerprint or load
// failure is fatal for the query (ErrUnavailable), not silently served
// from stale data.
func (c *TableCache) Get(ctx context.Context) (models.EventTable, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	fp, err := c.src.Fingerprint(ctx)
	if err != nil {
		return nil, err
	}
	if c.loaded && fp == c.fingerprint {
		return c.table, nil
	}

	table, err := c.src.Load(ctx)
	if err != nil {
		metrics.DatasetReloadErrors.Inc()
		return nil, err
	}
	metrics.DatasetReloads.Inc()
	log.Info().Int("events", len(table)).Str("fingerprint", fp).
		Msg("funding event table loaded")

	c.table = table
	c.fingerprint = fp
	c.loaded = true
	return c.table, nil
}
