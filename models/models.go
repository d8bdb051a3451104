package models

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// TimestampGrid is the resolution raw event timestamps are snapped to
// before a calendar day is derived from them.
const TimestampGrid = 5 * time.Minute

// FundingEvent is one raw funding-rate payment reported by a venue.
// Timestamp and Rate are stored as delivered by the data source; Day is
// derived on load (never persisted) so the day-boundary policy has a
// single source of truth.
type FundingEvent struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	Timestamp time.Time       `gorm:"uniqueIndex:uidx_venue_asset_ts,priority:3" json:"timestamp"`
	Day       time.Time       `gorm:"-" json:"day"`
	Asset     string          `gorm:"uniqueIndex:uidx_venue_asset_ts,priority:2;size:20" json:"asset"`
	Venue     string          `gorm:"uniqueIndex:uidx_venue_asset_ts,priority:1;size:40" json:"venue"`
	Rate      decimal.Decimal `gorm:"type:numeric" json:"rate"`
	CreatedAt time.Time       `json:"created_at"`
}

// DailyFunding is the per-day funding total for one (asset, venue).
// Derived on every query, never persisted.
type DailyFunding struct {
	Asset string          `json:"asset"`
	Venue string          `json:"venue"`
	Day   time.Time       `json:"day"`
	Total decimal.Decimal `json:"total"`
}

// CumulativeFunding extends DailyFunding with the running total of all
// daily totals up to and including Day within the same (asset, venue)
// series. It can decrease: funding rates are signed.
type CumulativeFunding struct {
	DailyFunding
	RunningTotal decimal.Decimal `json:"running_total"`
}

// VenuePairRow is one day of the paired comparison between two venues.
// VenueA < VenueB always holds, so each unordered venue pair appears
// exactly once per asset and day.
type VenuePairRow struct {
	Asset                string          `json:"asset"`
	Day                  time.Time       `json:"day"`
	VenueA               string          `json:"venue_a"`
	VenueB               string          `json:"venue_b"`
	DailyA               decimal.Decimal `json:"daily_a"`
	DailyB               decimal.Decimal `json:"daily_b"`
	CumulativeA          decimal.Decimal `json:"cumulative_a"`
	CumulativeB          decimal.Decimal `json:"cumulative_b"`
	AdvantageLongAShortB decimal.Decimal `json:"advantage_long_a_short_b"`
	AdvantageLongBShortA decimal.Decimal `json:"advantage_long_b_short_a"`
}

// SnapToGrid floors t onto the timestamp grid. Snapping down (instead of
// rounding to nearest) guarantees an event can never migrate across a
// midnight boundary: DayOf(SnapToGrid(t)) == DayOf(t) for every t.
func SnapToGrid(t time.Time) time.Time {
	return t.UTC().Truncate(TimestampGrid)
}

// DayOf returns the UTC midnight of t's calendar day. Every Day value in
// the system is built by this function, which keeps day values directly
// comparable and usable as map keys.
func DayOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// Normalize snaps the event timestamp onto the grid and derives Day.
// Data sources apply it to every row they load.
func (e *FundingEvent) Normalize() {
	e.Timestamp = SnapToGrid(e.Timestamp)
	e.Day = DayOf(e.Timestamp)
}

// EventTable is the in-memory table of raw funding events one query runs
// against. It is read-only once loaded; helpers return fresh slices.
type EventTable []FundingEvent

// From returns a fresh table restricted to events with Timestamp >= floor.
func (t EventTable) From(floor time.Time) EventTable {
	out := make(EventTable, 0, len(t))
	for _, ev := range t {
		if !ev.Timestamp.Before(floor) {
			out = append(out, ev)
		}
	}
	return out
}

// Assets returns the sorted distinct assets present in the table.
func (t EventTable) Assets() []string {
	return t.distinct(func(ev FundingEvent) (string, bool) {
		return ev.Asset, true
	})
}

// Venues returns the sorted distinct venues reporting the given asset.
func (t EventTable) Venues(asset string) []string {
	return t.distinct(func(ev FundingEvent) (string, bool) {
		return ev.Venue, ev.Asset == asset
	})
}

func (t EventTable) distinct(pick func(FundingEvent) (string, bool)) []string {
	seen := make(map[string]struct{})
	for _, ev := range t {
		if v, ok := pick(ev); ok {
			seen[v] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
