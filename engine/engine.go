// Package engine implements the funding comparison pipeline: intersecting
// the observation windows of two venues, rolling raw events up to daily
// totals, accumulating the daily series, and pairing the two venues into
// opposing delta-neutral advantage series.
//
// Every function is pure: the event table is never mutated and all derived
// rows are freshly allocated, so one loaded table can serve concurrent
// queries.
package engine

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/martinkersner/dtmx-funding-rate-explorer/models"
)

type dayExtent struct {
	min, max time.Time
	seen     bool
}

func (x *dayExtent) add(day time.Time) {
	if !x.seen || day.Before(x.min) {
		x.min = day
	}
	if !x.seen || day.After(x.max) {
		x.max = day
	}
	x.seen = true
}

// ObservationWindow returns the maximal closed day range [start, end]
// within which both venues have at least one event for the asset. ok is
// false when either venue has no events for the asset, or when the two
// ranges do not overlap; both cases mean downstream stages produce zero
// rows, never an error.
func ObservationWindow(events models.EventTable, asset, venueA, venueB string) (start, end time.Time, ok bool) {
	var extentA, extentB dayExtent
	for _, ev := range events {
		if ev.Asset != asset {
			continue
		}
		switch ev.Venue {
		case venueA:
			extentA.add(ev.Day)
		case venueB:
			extentB.add(ev.Day)
		}
	}
	if !extentA.seen || !extentB.seen {
		return time.Time{}, time.Time{}, false
	}
	start = extentA.min
	if extentB.min.After(start) {
		start = extentB.min
	}
	end = extentA.max
	if extentB.max.Before(end) {
		end = extentB.max
	}
	if start.After(end) {
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

// DailyTotals restricts the table to the asset, the two venues and the
// closed day range, then sums event rates per (asset, venue, day). Days
// without events produce no row; callers must not assume a dense calendar.
func DailyTotals(events models.EventTable, asset, venueA, venueB string, start, end time.Time) []models.DailyFunding {
	type group struct {
		venue string
		day   time.Time
	}
	totals := make(map[group]decimal.Decimal)
	for _, ev := range events {
		if ev.Asset != asset || (ev.Venue != venueA && ev.Venue != venueB) {
			continue
		}
		if ev.Day.Before(start) || ev.Day.After(end) {
			continue
		}
		k := group{ev.Venue, ev.Day}
		totals[k] = totals[k].Add(ev.Rate)
	}

	rows := make([]models.DailyFunding, 0, len(totals))
	for k, total := range totals {
		rows = append(rows, models.DailyFunding{
			Asset: asset,
			Venue: k.venue,
			Day:   k.day,
			Total: total,
		})
	}
	sortDaily(rows)
	return rows
}

// Accumulate turns daily totals into running totals. The prefix sum is
// computed independently per (asset, venue) series; the input is re-sorted
// here rather than trusting caller order, since an unordered series would
// corrupt the running totals.
func Accumulate(daily []models.DailyFunding) []models.CumulativeFunding {
	sorted := make([]models.DailyFunding, len(daily))
	copy(sorted, daily)
	sortDaily(sorted)

	rows := make([]models.CumulativeFunding, 0, len(sorted))
	running := decimal.Zero
	for i, d := range sorted {
		if i == 0 || d.Asset != sorted[i-1].Asset || d.Venue != sorted[i-1].Venue {
			running = decimal.Zero
		}
		running = running.Add(d.Total)
		rows = append(rows, models.CumulativeFunding{DailyFunding: d, RunningTotal: running})
	}
	return rows
}

// ComposePairs joins the two venues' cumulative series on day and derives
// the opposing advantage columns. The pair is canonicalized so that
// VenueA < VenueB lexicographically, which collapses (X, Y) and (Y, X)
// into one deterministic row per day. A venue paired with itself yields
// nothing, as does a day covered by only one venue.
func ComposePairs(cum []models.CumulativeFunding, asset, venueA, venueB string) []models.VenuePairRow {
	a, b := venueA, venueB
	if b < a {
		a, b = b, a
	}
	if a == b {
		return nil
	}

	sideA := make(map[time.Time]models.CumulativeFunding)
	sideB := make(map[time.Time]models.CumulativeFunding)
	for _, c := range cum {
		if c.Asset != asset {
			continue
		}
		switch c.Venue {
		case a:
			sideA[c.Day] = c
		case b:
			sideB[c.Day] = c
		}
	}

	rows := make([]models.VenuePairRow, 0, len(sideA))
	for day, ca := range sideA {
		cb, ok := sideB[day]
		if !ok {
			continue
		}
		rows = append(rows, models.VenuePairRow{
			Asset:                asset,
			Day:                  day,
			VenueA:               a,
			VenueB:               b,
			DailyA:               ca.Total,
			DailyB:               cb.Total,
			CumulativeA:          ca.RunningTotal,
			CumulativeB:          cb.RunningTotal,
			AdvantageLongAShortB: cb.RunningTotal.Sub(ca.RunningTotal),
			AdvantageLongBShortA: ca.RunningTotal.Sub(cb.RunningTotal),
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Day.Before(rows[j].Day) })
	return rows
}

// Window is the closed day range within which both venues of a pair
// observe the asset.
type Window struct {
	Start time.Time
	End   time.Time
}

// PairSeries runs the full pipeline for one asset and one venue pair over
// an event table the caller has already restricted to the selected start
// date. The window is nil for degenerate selections (a venue with no
// events, non-overlapping ranges, identical venues); the rows are empty
// whenever the window is nil, and may also be empty for a valid window
// when the two venues never report on the same day.
func PairSeries(events models.EventTable, asset, venueA, venueB string) ([]models.VenuePairRow, *Window) {
	start, end, ok := ObservationWindow(events, asset, venueA, venueB)
	if !ok {
		return nil, nil
	}
	daily := DailyTotals(events, asset, venueA, venueB, start, end)
	rows := ComposePairs(Accumulate(daily), asset, venueA, venueB)
	return rows, &Window{Start: start, End: end}
}

func sortDaily(rows []models.DailyFunding) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Asset != rows[j].Asset {
			return rows[i].Asset < rows[j].Asset
		}
		if rows[i].Venue != rows[j].Venue {
			return rows[i].Venue < rows[j].Venue
		}
		return rows[i].Day.Before(rows[j].Day)
	})
}
