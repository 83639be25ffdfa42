// Package availability holds the pure interval arithmetic behind capacity
// checks: the half-open overlap predicate and the sweep-line peak occupancy.
// Nothing in here touches storage.
package availability

import "time"

// Interval is the half-open range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Empty reports whether i contains no instant, i.e. End is not after Start.
func (i Interval) Empty() bool {
	return !i.End.After(i.Start)
}

// Overlaps reports whether [a.Start, a.End) and [b.Start, b.End) share an instant.
// Intervals that only touch (a.End == b.Start) do not overlap.
func Overlaps(a, b Interval) bool {
	return a.Start.Before(b.End) && a.End.After(b.Start)
}

// Clip trims i to window. The second return value is false when nothing of i
// lies inside window.
func Clip(i, window Interval) (Interval, bool) {
	start := i.Start
	if window.Start.After(start) {
		start = window.Start
	}
	end := i.End
	if window.End.Before(end) {
		end = window.End
	}
	clipped := Interval{Start: start, End: end}
	if clipped.Empty() {
		return Interval{}, false
	}
	return clipped, true
}
