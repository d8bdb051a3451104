// Package source loads the raw funding-event table the query engine runs
// against. Two backends exist (CSV files as shipped by the data vendor,
// and the postgres store fed by the ingest/backfill commands) plus an
// explicit cache that revalidates a cheap source fingerprint so a changed
// source is picked up without restarting the process.
package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/martinkersner/dtmx-funding-rate-explorer/models"
)

// ErrUnavailable marks the one fatal failure class: the raw event table
// cannot be loaded or parsed. Callers check it with errors.Is; every other
// degenerate condition (missing venue, empty window, no pairs) surfaces as
// an empty result, never as an error.
var ErrUnavailable = errors.New("funding data source unavailable")

// Source produces the normalized event table and a fingerprint that
// changes whenever the underlying data changes.
type Source interface {
	Load(ctx context.Context) (models.EventTable, error)
	Fingerprint(ctx context.Context) (string, error)
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
