package planner

import (
	"sort"
	"strings"
	"time"

	"github.com/warp/reserve-engine/engine"
)

// =============================================================================
// DUE-MONTH ORDERING
// =============================================================================

// SortByDueMonth orders records so that the entry due soonest relative to the
// reference month comes first, wrapping across the year boundary. Entries
// sharing a rotation position fall back to raw due month, then name.
func SortByDueMonth(records []Record, reference time.Month) {
	sort.SliceStable(records, func(i, j int) bool {
		ri, rj := dueRotation(records[i], reference), dueRotation(records[j], reference)
		if ri != rj {
			return ri < rj
		}
		di, dj := normalizedDueMonth(records[i], reference), normalizedDueMonth(records[j], reference)
		if di != dj {
			return di < dj
		}
		return strings.ToLower(records[i].Name) < strings.ToLower(records[j].Name)
	})
}

func dueRotation(r Record, reference time.Month) int {
	return ((normalizedDueMonth(r, reference) - int(reference)) % 12 + 12) % 12
}

// normalizedDueMonth returns the record's due month in 1..12, falling back to
// the start month and finally the reference month for broken records.
func normalizedDueMonth(r Record, reference time.Month) int {
	if r.DueMonth >= 1 && r.DueMonth <= 12 {
		return r.DueMonth
	}
	if start, err := engine.ParseMonth(r.StartDate); err == nil {
		return int(start.Month())
	}
	return int(reference)
}
