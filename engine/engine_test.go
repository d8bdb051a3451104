package engine

import (
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/martinkersner/dtmx-funding-rate-explorer/models"
)

func at(ts string) time.Time {
	parsed, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		panic(err)
	}
	return parsed
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func ev(venue, asset, ts, rate string) models.FundingEvent {
	event := models.FundingEvent{
		Timestamp: at(ts),
		Asset:     asset,
		Venue:     venue,
		Rate:      dec(rate),
	}
	event.Normalize()
	return event
}

// comparisonFixture covers two venues over two shared days. Expected daily
// totals: binance 0.0003 then -0.0004, bybit 0.0001 then 0.0002.
func comparisonFixture() models.EventTable {
	return models.EventTable{
		ev("binance", "BTC", "2025-01-10T00:00:00Z", "0.0001"),
		ev("binance", "BTC", "2025-01-10T08:00:00Z", "0.0002"),
		ev("binance", "BTC", "2025-01-11T00:00:00Z", "-0.0004"),
		ev("bybit", "BTC", "2025-01-10T04:00:00Z", "0.0001"),
		ev("bybit", "BTC", "2025-01-11T04:00:00Z", "0.0002"),
	}
}

func TestObservationWindowIntersection(t *testing.T) {
	events := models.EventTable{
		ev("binance", "BTC", "2025-01-05T00:00:00Z", "0.0001"),
		ev("binance", "BTC", "2025-01-20T00:00:00Z", "0.0001"),
		ev("bybit", "BTC", "2025-01-10T00:00:00Z", "0.0001"),
		ev("bybit", "BTC", "2025-01-30T00:00:00Z", "0.0001"),
	}

	start, end, ok := ObservationWindow(events, "BTC", "binance", "bybit")
	if !ok {
		t.Fatal("expected a window for overlapping venues")
	}
	if !start.Equal(day(2025, time.January, 10)) {
		t.Errorf("expected window start 2025-01-10, got %v", start)
	}
	if !end.Equal(day(2025, time.January, 20)) {
		t.Errorf("expected window end 2025-01-20, got %v", end)
	}

	// The window is a property of the unordered pair.
	start2, end2, ok2 := ObservationWindow(events, "BTC", "bybit", "binance")
	if !ok2 || !start2.Equal(start) || !end2.Equal(end) {
		t.Errorf("expected the same window with swapped venues, got %v..%v ok=%v", start2, end2, ok2)
	}
}

func TestObservationWindowMissingVenue(t *testing.T) {
	events := models.EventTable{
		ev("binance", "BTC", "2025-01-05T00:00:00Z", "0.0001"),
		// bybit reports only another asset, so it has no BTC observations.
		ev("bybit", "ETH", "2025-01-05T00:00:00Z", "0.0001"),
	}

	if _, _, ok := ObservationWindow(events, "BTC", "binance", "bybit"); ok {
		t.Error("expected no window when one venue never reports the asset")
	}
}

func TestObservationWindowDisjointRanges(t *testing.T) {
	events := models.EventTable{
		ev("binance", "BTC", "2025-01-01T00:00:00Z", "0.0001"),
		ev("binance", "BTC", "2025-01-05T00:00:00Z", "0.0001"),
		ev("bybit", "BTC", "2025-01-10T00:00:00Z", "0.0001"),
		ev("bybit", "BTC", "2025-01-12T00:00:00Z", "0.0001"),
	}

	if _, _, ok := ObservationWindow(events, "BTC", "binance", "bybit"); ok {
		t.Error("expected no window when venue ranges do not overlap")
	}
}

func TestDailyTotalsSumsAndFilters(t *testing.T) {
	events := comparisonFixture()
	events = append(events,
		ev("binance", "BTC", "2025-01-01T00:00:00Z", "9.9"), // before window
		ev("bybit", "BTC", "2025-02-01T00:00:00Z", "9.9"),   // after window
		ev("binance", "ETH", "2025-01-10T00:00:00Z", "9.9"), // other asset
		ev("okx", "BTC", "2025-01-10T00:00:00Z", "9.9"),     // other venue
	)

	daily := DailyTotals(events, "BTC", "binance", "bybit",
		day(2025, time.January, 10), day(2025, time.January, 11))

	want := []struct {
		venue string
		day   time.Time
		total string
	}{
		{"binance", day(2025, time.January, 10), "0.0003"},
		{"binance", day(2025, time.January, 11), "-0.0004"},
		{"bybit", day(2025, time.January, 10), "0.0001"},
		{"bybit", day(2025, time.January, 11), "0.0002"},
	}
	if len(daily) != len(want) {
		t.Fatalf("expected %d rows, got %d", len(want), len(daily))
	}
	for i, w := range want {
		row := daily[i]
		if row.Venue != w.venue || !row.Day.Equal(w.day) {
			t.Errorf("row %d: expected %s %s, got %s %s", i, w.venue, w.day, row.Venue, row.Day)
		}
		if !row.Total.Equal(dec(w.total)) {
			t.Errorf("row %d: expected total %s, got %s", i, w.total, row.Total)
		}
	}
}

func TestDailyTotalsNoCalendarFill(t *testing.T) {
	events := models.EventTable{
		ev("binance", "BTC", "2025-01-10T00:00:00Z", "0.0001"),
		ev("binance", "BTC", "2025-01-12T00:00:00Z", "0.0002"),
	}

	daily := DailyTotals(events, "BTC", "binance", "bybit",
		day(2025, time.January, 10), day(2025, time.January, 12))

	if len(daily) != 2 {
		t.Fatalf("expected 2 rows without a synthetic gap day, got %d", len(daily))
	}
	if daily[0].Day.Equal(daily[1].Day) {
		t.Error("expected distinct days")
	}
}

func TestAccumulateRunningTotals(t *testing.T) {
	daily := []models.DailyFunding{
		// Deliberately unordered; Accumulate must sort before summing.
		{Asset: "BTC", Venue: "bybit", Day: day(2025, time.January, 11), Total: dec("0.0002")},
		{Asset: "BTC", Venue: "binance", Day: day(2025, time.January, 11), Total: dec("-0.0004")},
		{Asset: "BTC", Venue: "binance", Day: day(2025, time.January, 10), Total: dec("0.0003")},
		{Asset: "BTC", Venue: "bybit", Day: day(2025, time.January, 10), Total: dec("0.0001")},
	}

	cum := Accumulate(daily)
	if len(cum) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(cum))
	}

	want := []string{"0.0003", "-0.0001", "0.0001", "0.0003"}
	for i, w := range want {
		if !cum[i].RunningTotal.Equal(dec(w)) {
			t.Errorf("row %d: expected running total %s, got %s", i, w, cum[i].RunningTotal)
		}
	}

	// The running total of the last day equals the direct sum of the series.
	binanceSum := dec("0.0003").Add(dec("-0.0004"))
	if !cum[1].RunningTotal.Equal(binanceSum) {
		t.Errorf("expected binance running total %s, got %s", binanceSum, cum[1].RunningTotal)
	}
}

func TestAccumulateResetsPerSeries(t *testing.T) {
	daily := []models.DailyFunding{
		{Asset: "BTC", Venue: "binance", Day: day(2025, time.January, 10), Total: dec("0.5")},
		{Asset: "BTC", Venue: "bybit", Day: day(2025, time.January, 10), Total: dec("0.25")},
		{Asset: "ETH", Venue: "binance", Day: day(2025, time.January, 10), Total: dec("0.125")},
	}

	cum := Accumulate(daily)
	for _, c := range cum {
		if !c.RunningTotal.Equal(c.Total) {
			t.Errorf("%s %s: running total %s leaked from another series (daily %s)",
				c.Asset, c.Venue, c.RunningTotal, c.Total)
		}
	}
}

func TestAccumulateDoesNotMutateInput(t *testing.T) {
	daily := []models.DailyFunding{
		{Asset: "BTC", Venue: "bybit", Day: day(2025, time.January, 11), Total: dec("0.0002")},
		{Asset: "BTC", Venue: "binance", Day: day(2025, time.January, 10), Total: dec("0.0003")},
	}

	Accumulate(daily)

	if daily[0].Venue != "bybit" || daily[1].Venue != "binance" {
		t.Error("input slice was reordered")
	}
}

func TestComposePairsCanonicalOrderAndNegation(t *testing.T) {
	daily := DailyTotals(comparisonFixture(), "BTC", "binance", "bybit",
		day(2025, time.January, 10), day(2025, time.January, 11))
	cum := Accumulate(daily)

	// Venues passed in reverse order must still come out canonical.
	rows := ComposePairs(cum, "BTC", "bybit", "binance")
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}

	for i, row := range rows {
		if row.VenueA != "binance" || row.VenueB != "bybit" {
			t.Errorf("row %d: expected canonical pair binance/bybit, got %s/%s", i, row.VenueA, row.VenueB)
		}
		if !row.AdvantageLongBShortA.Equal(row.AdvantageLongAShortB.Neg()) {
			t.Errorf("row %d: advantages are not exact negations: %s vs %s",
				i, row.AdvantageLongAShortB, row.AdvantageLongBShortA)
		}
	}

	// Cumulative binance: 0.0003, -0.0001. Cumulative bybit: 0.0001, 0.0003.
	wantAB := []string{"-0.0002", "0.0004"}
	for i, w := range wantAB {
		if !rows[i].AdvantageLongAShortB.Equal(dec(w)) {
			t.Errorf("row %d: expected advantage %s, got %s", i, w, rows[i].AdvantageLongAShortB)
		}
	}

	// Both argument orders produce identical rows.
	swapped := ComposePairs(cum, "BTC", "binance", "bybit")
	if len(swapped) != len(rows) {
		t.Fatalf("expected %d rows for swapped arguments, got %d", len(rows), len(swapped))
	}
	for i := range rows {
		if !swapped[i].Day.Equal(rows[i].Day) ||
			!swapped[i].AdvantageLongAShortB.Equal(rows[i].AdvantageLongAShortB) {
			t.Errorf("row %d differs between argument orders", i)
		}
	}
}

func TestComposePairsSameVenue(t *testing.T) {
	cum := Accumulate(DailyTotals(comparisonFixture(), "BTC", "binance", "bybit",
		day(2025, time.January, 10), day(2025, time.January, 11)))

	if rows := ComposePairs(cum, "BTC", "binance", "binance"); len(rows) != 0 {
		t.Errorf("expected no rows for a venue paired with itself, got %d", len(rows))
	}
}

func TestComposePairsSkipsUnsharedDays(t *testing.T) {
	cum := Accumulate([]models.DailyFunding{
		{Asset: "BTC", Venue: "binance", Day: day(2025, time.January, 10), Total: dec("0.0001")},
		{Asset: "BTC", Venue: "binance", Day: day(2025, time.January, 12), Total: dec("0.0001")},
		{Asset: "BTC", Venue: "bybit", Day: day(2025, time.January, 10), Total: dec("0.0002")},
	})

	rows := ComposePairs(cum, "BTC", "binance", "bybit")
	if len(rows) != 1 {
		t.Fatalf("expected only the shared day, got %d rows", len(rows))
	}
	if !rows[0].Day.Equal(day(2025, time.January, 10)) {
		t.Errorf("expected 2025-01-10, got %v", rows[0].Day)
	}
}

func TestPairSeries(t *testing.T) {
	rows, window := PairSeries(comparisonFixture(), "BTC", "binance", "bybit")
	if window == nil {
		t.Fatal("expected a window")
	}
	if !window.Start.Equal(day(2025, time.January, 10)) || !window.End.Equal(day(2025, time.January, 11)) {
		t.Errorf("expected window 2025-01-10..2025-01-11, got %v..%v", window.Start, window.End)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}

	first := rows[0]
	if !first.DailyA.Equal(dec("0.0003")) || !first.DailyB.Equal(dec("0.0001")) {
		t.Errorf("unexpected daily totals on first row: %s / %s", first.DailyA, first.DailyB)
	}
	if !first.CumulativeA.Equal(dec("0.0003")) || !first.CumulativeB.Equal(dec("0.0001")) {
		t.Errorf("unexpected cumulative totals on first row: %s / %s", first.CumulativeA, first.CumulativeB)
	}

	last := rows[1]
	if !last.CumulativeA.Equal(dec("-0.0001")) || !last.CumulativeB.Equal(dec("0.0003")) {
		t.Errorf("unexpected cumulative totals on last row: %s / %s", last.CumulativeA, last.CumulativeB)
	}
	if !last.AdvantageLongAShortB.Equal(dec("0.0004")) {
		t.Errorf("expected advantage 0.0004, got %s", last.AdvantageLongAShortB)
	}
}

func TestPairSeriesSignedRates(t *testing.T) {
	events := models.EventTable{
		ev("deribit", "BTC", "2025-01-10T00:00:00Z", "0.0001"),
		ev("deribit", "BTC", "2025-01-11T00:00:00Z", "0.0002"),
		ev("okx", "BTC", "2025-01-10T00:00:00Z", "-0.0001"),
		ev("okx", "BTC", "2025-01-11T00:00:00Z", "0.0001"),
	}

	rows, window := PairSeries(events, "BTC", "deribit", "okx")
	if window == nil || len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d (window %v)", len(rows), window)
	}

	// okx accumulates -0.0001 then exactly zero; deribit 0.0001 then 0.0003.
	last := rows[1]
	if !last.CumulativeB.Equal(decimal.Zero) {
		t.Errorf("expected a zero cumulative total, got %s", last.CumulativeB)
	}
	if !last.AdvantageLongAShortB.Equal(dec("-0.0003")) {
		t.Errorf("expected advantage -0.0003, got %s", last.AdvantageLongAShortB)
	}
	if !last.AdvantageLongBShortA.Equal(dec("0.0003")) {
		t.Errorf("expected advantage 0.0003, got %s", last.AdvantageLongBShortA)
	}
}

func TestPairSeriesDeterministic(t *testing.T) {
	events := comparisonFixture()

	first, _ := PairSeries(events, "BTC", "binance", "bybit")
	second, _ := PairSeries(events, "BTC", "binance", "bybit")

	if !reflect.DeepEqual(first, second) {
		t.Error("expected identical rows from identical inputs")
	}
}

func TestPairSeriesNoOverlap(t *testing.T) {
	events := models.EventTable{
		ev("binance", "BTC", "2025-01-01T00:00:00Z", "0.0001"),
		ev("bybit", "BTC", "2025-03-01T00:00:00Z", "0.0001"),
	}

	rows, window := PairSeries(events, "BTC", "binance", "bybit")
	if window != nil {
		t.Errorf("expected no window, got %v..%v", window.Start, window.End)
	}
	if len(rows) != 0 {
		t.Errorf("expected no rows, got %d", len(rows))
	}
}
