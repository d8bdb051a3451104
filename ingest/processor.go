package ingest

import (
	"compress/gzip"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/martinkersner/dtmx-funding-rate-explorer/database"
	"github.com/martinkersner/dtmx-funding-rate-explorer/models"
)

const (
	// Default values - can be overridden by environment variables
	DefaultBatchSize   = 2000
	DefaultWorkerCount = 8
	DefaultFileWorkers = 4
	DefaultBufferSize  = 64
)

// getEnvInt returns environment variable as int or default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getBatchSize() int {
	return getEnvInt("BATCH_SIZE", DefaultBatchSize)
}

func getWorkerCount() int {
	return getEnvInt("WORKER_COUNT", DefaultWorkerCount)
}

func getFileWorkers() int {
	return getEnvInt("FILE_WORKERS", DefaultFileWorkers)
}

func getBufferSize() int {
	return getEnvInt("BUFFER_SIZE", DefaultBufferSize)
}

// FundingRecord is one raw CSV row before parsing. Fields follow the
// vendor export header: Timestamp,Base,Exchange,FundingRate.
type FundingRecord struct {
	Timestamp   string
	Base        string
	Exchange    string
	FundingRate string
}

type Processor struct {
	db             *gorm.DB
	processedRows  int64
	processedFiles int64
}

func NewProcessor() *Processor {
	return &Processor{
		db: database.DB,
	}
}

// ProcessDirectory ingests every funding CSV (plain or gzipped) found in
// dataDir. Files are processed concurrently; rows already present (same
// venue, asset, timestamp) are skipped on conflict so re-running over the
// same exports is idempotent.
func (p *Processor) ProcessDirectory(dataDir string) error {
	startTime := time.Now()

	files, err := filepath.Glob(filepath.Join(dataDir, "*.csv"))
	if err != nil {
		return fmt.Errorf("failed to find CSV files: %w", err)
	}
	gzFiles, err := filepath.Glob(filepath.Join(dataDir, "*.csv.gz"))
	if err != nil {
		return fmt.Errorf("failed to find gzipped CSV files: %w", err)
	}
	files = append(files, gzFiles...)

	if len(files) == 0 {
		return fmt.Errorf("no CSV files found in directory: %s", dataDir)
	}

	fileWorkers := getFileWorkers()
	log.Info().Int("files", len(files)).Int("file_workers", fileWorkers).
		Msg("starting funding data ingestion")

	semaphore := make(chan struct{}, fileWorkers)
	var wg sync.WaitGroup
	errorChan := make(chan error, len(files))

	for _, file := range files {
		wg.Add(1)
		go func(filename string) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			fileStart := time.Now()
			if err := p.ProcessFile(filename); err != nil {
				log.Error().Err(err).Str("file", filename).Msg("failed to process file")
				errorChan <- err
				return
			}

			atomic.AddInt64(&p.processedFiles, 1)
			log.Info().Str("file", filename).Dur("took", time.Since(fileStart)).
				Msg("processed file")
		}(file)
	}

	wg.Wait()
	close(errorChan)

	var failed int
	for range errorChan {
		failed++
	}

	log.Info().
		Int64("files", atomic.LoadInt64(&p.processedFiles)).
		Int64("rows", atomic.LoadInt64(&p.processedRows)).
		Int("failed_files", failed).
		Dur("took", time.Since(startTime)).
		Msg("ingestion finished")

	if failed > 0 {
		return fmt.Errorf("%d of %d files failed to ingest", failed, len(files))
	}
	return p.LogSummary()
}

// ProcessFile streams one CSV file through a parse/insert worker pool.
func (p *Processor) ProcessFile(filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	var src io.Reader = file
	if strings.HasSuffix(filename, ".gz") {
		gz, err := gzip.NewReader(file)
		if err != nil {
			return fmt.Errorf("failed to gunzip file: %w", err)
		}
		defer gz.Close()
		src = gz
	}

	bufferSize := getBufferSize()
	workerCount := getWorkerCount()
	recordChan := make(chan []FundingRecord, bufferSize)
	errorChan := make(chan error, workerCount)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go p.worker(ctx, recordChan, errorChan, &wg)
	}

	readErr := make(chan error, 1)
	go func() {
		defer close(recordChan)

		reader := csv.NewReader(src)
		reader.ReuseRecord = true

		header, err := reader.Read()
		if err != nil {
			readErr <- fmt.Errorf("failed to read header: %w", err)
			return
		}
		cols, err := headerIndex(header)
		if err != nil {
			readErr <- err
			return
		}

		var batch []FundingRecord
		batchSize := getBatchSize()
		for {
			record, err := reader.Read()
			if err == io.EOF {
				break
			}
			if err != nil {
				var parseErr *csv.ParseError
				if errors.As(err, &parseErr) {
					continue
				}
				readErr <- fmt.Errorf("failed to read record: %w", err)
				return
			}
			if len(record) <= cols.max() {
				continue
			}

			batch = append(batch, FundingRecord{
				Timestamp:   strings.TrimSpace(record[cols.timestamp]),
				Base:        strings.TrimSpace(record[cols.base]),
				Exchange:    strings.TrimSpace(record[cols.exchange]),
				FundingRate: strings.TrimSpace(record[cols.rate]),
			})

			if len(batch) >= batchSize {
				batchCopy := make([]FundingRecord, len(batch))
				copy(batchCopy, batch)

				select {
				case recordChan <- batchCopy:
					batch = batch[:0]
				case <-ctx.Done():
					return
				}
			}
		}

		if len(batch) > 0 {
			batchCopy := make([]FundingRecord, len(batch))
			copy(batchCopy, batch)

			select {
			case recordChan <- batchCopy:
			case <-ctx.Done():
			}
		}
		readErr <- nil
	}()

	go func() {
		wg.Wait()
		close(errorChan)
	}()

	for err := range errorChan {
		if err != nil {
			cancel()
			return fmt.Errorf("worker error: %w", err)
		}
	}

	if err := <-readErr; err != nil {
		return err
	}
	return nil
}

func (p *Processor) worker(ctx context.Context, recordChan <-chan []FundingRecord, errorChan chan<- error, wg *sync.WaitGroup) {
	defer wg.Done()

	for {
		select {
		case batch, ok := <-recordChan:
			if !ok {
				return
			}
			if err := p.processBatch(batch); err != nil {
				errorChan <- err
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (p *Processor) processBatch(records []FundingRecord) error {
	if len(records) == 0 {
		return nil
	}

	events := make([]models.FundingEvent, 0, len(records))
	for _, record := range records {
		event, err := p.parseFundingRecord(record)
		if err != nil {
			continue
		}
		events = append(events, event)
	}

	return p.StoreEvents(events)
}

// StoreEvents inserts raw events in one transaction. Duplicate rows (same
// venue, asset, timestamp) are dropped so the same export or backfill range
// can be stored twice safely.
func (p *Processor) StoreEvents(events []models.FundingEvent) error {
	if len(events) == 0 {
		return nil
	}

	atomic.AddInt64(&p.processedRows, int64(len(events)))

	return p.db.Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{DoNothing: true}).
			CreateInBatches(events, len(events)).Error
	})
}

// parseFundingRecord converts one CSV row into a storable event. Raw
// timestamps are stored as-is; grid snapping and day derivation happen at
// load time in the source package.
func (p *Processor) parseFundingRecord(record FundingRecord) (models.FundingEvent, error) {
	var event models.FundingEvent

	millis, err := strconv.ParseInt(record.Timestamp, 10, 64)
	if err != nil {
		return event, fmt.Errorf("invalid timestamp format: %w", err)
	}

	rate, err := decimal.NewFromString(record.FundingRate)
	if err != nil {
		return event, fmt.Errorf("invalid funding rate format: %w", err)
	}

	if record.Base == "" || record.Exchange == "" {
		return event, fmt.Errorf("missing asset or venue")
	}

	event.Timestamp = time.UnixMilli(millis).UTC()
	event.Asset = record.Base
	event.Venue = record.Exchange
	event.Rate = rate
	event.CreatedAt = time.Now()

	return event, nil
}

// LogSummary reports per-venue row counts after an ingest run.
func (p *Processor) LogSummary() error {
	var rows []struct {
		Venue string
		N     int64
	}
	err := p.db.Model(&models.FundingEvent{}).
		Select("venue, COUNT(*) AS n").
		Group("venue").
		Order("venue").
		Scan(&rows).Error
	if err != nil {
		return fmt.Errorf("failed to summarize funding events: %w", err)
	}

	for _, r := range rows {
		log.Info().Str("venue", r.Venue).Int64("events", r.N).Msg("stored funding events")
	}
	return nil
}

type csvColumns struct {
	timestamp, base, exchange, rate int
}

func (c csvColumns) max() int {
	m := c.timestamp
	for _, v := range []int{c.base, c.exchange, c.rate} {
		if v > m {
			m = v
		}
	}
	return m
}

func headerIndex(header []string) (csvColumns, error) {
	cols := csvColumns{timestamp: -1, base: -1, exchange: -1, rate: -1}
	for i, name := range header {
		switch strings.TrimSpace(name) {
		case "Timestamp":
			cols.timestamp = i
		case "Base":
			cols.base = i
		case "Exchange":
			cols.exchange = i
		case "FundingRate":
			cols.rate = i
		}
	}
	if cols.timestamp < 0 || cols.base < 0 || cols.exchange < 0 || cols.rate < 0 {
		return cols, fmt.Errorf("header must contain Timestamp, Base, Exchange, FundingRate columns")
	}
	return cols, nil
}
