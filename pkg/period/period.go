// Package period maps timestamps onto fixed one week periods.
//
// A period id is the unix timestamp of the period start, always a multiple of Length.
package period

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Length is the duration of one period in seconds.
const Length uint64 = 604800

// Of returns the id of the period containing the unix timestamp ts.
func Of(ts uint64) uint64 {
	return ts / Length * Length
}

// OfTime returns the id of the period containing t.
func OfTime(t time.Time) uint64 {
	return Of(uint64(t.Unix()))
}

// Current returns the id of the period containing the clock's current time.
func Current(clock clockwork.Clock) uint64 {
	return OfTime(clock.Now())
}

// IsAligned returns true if id is a valid, non-zero period id.
func IsAligned(id uint64) bool {
	return id != 0 && id%Length == 0
}

// Next returns the id of the period after id.
func Next(id uint64) uint64 {
	return id + Length
}

// Range returns count consecutive period ids starting at first.
func Range(first uint64, count uint64) []uint64 {
	ids := make([]uint64, 0, count)
	for i := uint64(0); i < count; i++ {
		ids = append(ids, first+i*Length)
	}
	return ids
}

// Time converts a period id back into a UTC time.
func Time(id uint64) time.Time {
	return time.Unix(int64(id), 0).UTC()
}
