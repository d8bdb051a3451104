// Package selection resolves user-supplied query selections (asset, venue
// pair, start date) against the choices actually available in the loaded
// data, falling back to computed defaults whenever a supplied value is
// absent or invalid. All functions are pure so the fallback rules are
// testable without the HTTP layer.
package selection

import (
	"sort"
	"time"
)

// Pairs returns every unordered pair of venues in canonical (lexicographic)
// order, sorted. With fewer than two venues there are no pairs.
func Pairs(venues []string) [][2]string {
	sorted := make([]string, len(venues))
	copy(sorted, venues)
	sort.Strings(sorted)

	var pairs [][2]string
	for i := 0; i < len(sorted); i++ {
		for j := i + 1; j < len(sorted); j++ {
			pairs = append(pairs, [2]string{sorted[i], sorted[j]})
		}
	}
	return pairs
}

// ResolveAsset picks the asset to display: the requested one when it is
// available, otherwise the preferred default when available, otherwise the
// lexicographically first available asset. ok is false only when no assets
// exist at all.
func ResolveAsset(available []string, requested, preferred string) (string, bool) {
	if len(available) == 0 {
		return "", false
	}
	if requested != "" && contains(available, requested) {
		return requested, true
	}
	if contains(available, preferred) {
		return preferred, true
	}
	sorted := make([]string, len(available))
	copy(sorted, available)
	sort.Strings(sorted)
	return sorted[0], true
}

// ResolvePair picks the venue pair to display. The requested pair is
// treated as unordered (it is canonicalized before matching), which keeps
// deep links stable regardless of parameter order. Unknown or incomplete
// requests fall back to the first available pair. ok is false when the
// asset has no venue pairs at all.
func ResolvePair(pairs [][2]string, requestedA, requestedB string) ([2]string, bool) {
	if len(pairs) == 0 {
		return [2]string{}, false
	}
	if requestedA != "" && requestedB != "" {
		want := [2]string{requestedA, requestedB}
		if want[1] < want[0] {
			want[0], want[1] = want[1], want[0]
		}
		for _, p := range pairs {
			if p == want {
				return p, true
			}
		}
	}
	return pairs[0], true
}

// ResolveStartDate parses a requested YYYY-MM-DD start date. Values that
// do not parse or fall outside the supported calendar year resolve to
// January 1 of that year (UTC).
func ResolveStartDate(requested string, year int) time.Time {
	fallback := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	if requested == "" {
		return fallback
	}
	parsed, err := time.Parse("2006-01-02", requested)
	if err != nil || parsed.Year() != year {
		return fallback
	}
	return parsed.UTC()
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
