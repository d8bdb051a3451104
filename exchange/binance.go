// Package exchange fetches historical funding rates from exchange APIs for
// the backfill command. Only Binance USDⓈ-M futures is implemented; other
// venues arrive through vendor CSV exports.
package exchange

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2/futures"
	"github.com/shopspring/decimal"

	"github.com/martinkersner/dtmx-funding-rate-explorer/models"
)

// VenueBinance is the venue identifier stored for backfilled Binance rows.
const VenueBinance = "binance"

// pageLimit is Binance's maximum page size for funding-rate history.
const pageLimit = 1000

// BinanceClient wraps the public funding-rate history endpoint. No API
// credentials are needed; the endpoint is unauthenticated.
type BinanceClient struct {
	client *futures.Client
}

// NewBinanceClient returns a client against the production futures API.
func NewBinanceClient() *BinanceClient {
	return &BinanceClient{client: futures.NewClient("", "")}
}

// SetBaseURL points the client at a different API host (tests).
func (c *BinanceClient) SetBaseURL(url string) {
	c.client.BaseURL = url
}

// SymbolFor maps an asset to its USDT-margined perpetual symbol.
func SymbolFor(asset string) string {
	return strings.ToUpper(asset) + "USDT"
}

// FundingHistory returns all funding payments for the asset in the closed
// interval [start, end], paging past the exchange's per-request limit.
// Timestamps are stored raw; normalization happens at load time like every
// other source.
func (c *BinanceClient) FundingHistory(ctx context.Context, asset string, start, end time.Time) ([]models.FundingEvent, error) {
	symbol := SymbolFor(asset)
	endMillis := end.UnixMilli()
	cursor := start.UnixMilli()

	var events []models.FundingEvent
	for cursor <= endMillis {
		page, err := c.client.NewFundingRateService().
			Symbol(symbol).
			StartTime(cursor).
			EndTime(endMillis).
			Limit(pageLimit).
			Do(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch funding history for %s: %w", symbol, err)
		}
		if len(page) == 0 {
			break
		}

		for _, r := range page {
			rate, err := decimal.NewFromString(r.FundingRate)
			if err != nil {
				return nil, fmt.Errorf("unparseable funding rate %q for %s: %w", r.FundingRate, symbol, err)
			}
			events = append(events, models.FundingEvent{
				Timestamp: time.UnixMilli(r.FundingTime).UTC(),
				Asset:     strings.ToUpper(asset),
				Venue:     VenueBinance,
				Rate:      rate,
			})
		}

		next := page[len(page)-1].FundingTime + 1
		if next <= cursor {
			break
		}
		cursor = next
		if len(page) < pageLimit {
			break
		}
	}
	return events, nil
}
