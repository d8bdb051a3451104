package source

import (
	"compress/gzip"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/martinkersner/dtmx-funding-rate-explorer/models"
)

// Column names the vendor CSV must carry. Order does not matter; the
// header row is used to locate them.
const (
	colTimestamp = "Timestamp"
	colBase      = "Base"
	colExchange  = "Exchange"
	colRate      = "FundingRate"
)

// CSVSource reads funding events from a vendor CSV export, optionally
// gzip-compressed (a .gz path suffix selects decompression). Timestamps
// are integer millisecond epochs; rates are parsed as decimal text so no
// precision is lost before aggregation.
type CSVSource struct {
	Path string
}

// NewCSVSource returns a source reading from the given file path.
func NewCSVSource(path string) *CSVSource {
	return &CSVSource{Path: path}
}

// Load parses the whole file into a normalized event table. Malformed data
// rows are skipped and counted; a file that cannot be opened or whose
// header is unusable is a fatal ErrUnavailable.
func (s *CSVSource) Load(ctx context.Context) (models.EventTable, error) {
	file, err := os.Open(s.Path)
	if err != nil {
		return nil, unavailable(err)
	}
	defer file.Close()

	var reader io.Reader = file
	if strings.HasSuffix(s.Path, ".gz") {
		gz, err := gzip.NewReader(file)
		if err != nil {
			return nil, unavailable(fmt.Errorf("gunzip %s: %v", s.Path, err))
		}
		defer gz.Close()
		reader = gz
	}

	cr := csv.NewReader(reader)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return nil, unavailable(fmt.Errorf("read header of %s: %v", s.Path, err))
	}
	cols, err := locateColumns(header)
	if err != nil {
		return nil, unavailable(fmt.Errorf("%s: %v", s.Path, err))
	}

	var table models.EventTable
	skipped := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Ragged or unquotable rows are data defects like any other
			// malformed field, not a reason to drop the whole file.
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				skipped++
				continue
			}
			return nil, unavailable(fmt.Errorf("read %s: %v", s.Path, err))
		}
		event, err := parseEvent(record, cols)
		if err != nil {
			skipped++
			continue
		}
		table = append(table, event)
	}

	if skipped > 0 {
		log.Warn().Int("rows", skipped).Str("path", s.Path).
			Msg("skipped malformed funding rows")
	}
	return table, nil
}

// Fingerprint combines path, modification time, and size, so editing or
// replacing the file invalidates any cached table built from it.
func (s *CSVSource) Fingerprint(ctx context.Context) (string, error) {
	info, err := os.Stat(s.Path)
	if err != nil {
		return "", unavailable(err)
	}
	return fmt.Sprintf("%s:%d:%d", s.Path, info.ModTime().UnixNano(), info.Size()), nil
}

type columnIndex struct {
	timestamp, base, exchange, rate int
}

func locateColumns(header []string) (columnIndex, error) {
	idx := columnIndex{timestamp: -1, base: -1, exchange: -1, rate: -1}
	for i, name := range header {
		switch strings.TrimSpace(name) {
		case colTimestamp:
			idx.timestamp = i
		case colBase:
			idx.base = i
		case colExchange:
			idx.exchange = i
		case colRate:
			idx.rate = i
		}
	}
	if idx.timestamp < 0 || idx.base < 0 || idx.exchange < 0 || idx.rate < 0 {
		return idx, fmt.Errorf("header must contain %s, %s, %s, %s columns",
			colTimestamp, colBase, colExchange, colRate)
	}
	return idx, nil
}

func parseEvent(record []string, cols columnIndex) (models.FundingEvent, error) {
	var event models.FundingEvent
	if len(record) <= cols.timestamp || len(record) <= cols.base ||
		len(record) <= cols.exchange || len(record) <= cols.rate {
		return event, fmt.Errorf("short record: %d fields", len(record))
	}

	millis, err := strconv.ParseInt(strings.TrimSpace(record[cols.timestamp]), 10, 64)
	if err != nil {
		return event, fmt.Errorf("invalid timestamp: %w", err)
	}
	rate, err := decimal.NewFromString(strings.TrimSpace(record[cols.rate]))
	if err != nil {
		return event, fmt.Errorf("invalid funding rate: %w", err)
	}
	asset := strings.TrimSpace(record[cols.base])
	venue := strings.TrimSpace(record[cols.exchange])
	if asset == "" || venue == "" {
		return event, fmt.Errorf("empty asset or venue")
	}

	event = models.FundingEvent{
		Timestamp: time.UnixMilli(millis).UTC(),
		Asset:     asset,
		Venue:     venue,
		Rate:      rate,
	}
	event.Normalize()
	return event, nil
}
