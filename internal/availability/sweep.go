package availability

import (
	"cmp"
	"slices"
	"time"
)

type eventKind int

// endEvent sorts before startEvent so a slot freed at T can be claimed at T.
const (
	endEvent eventKind = iota
	startEvent
)

type sweepEvent struct {
	at   time.Time
	kind eventKind
}

// PeakConcurrency returns the maximum number of intervals active at any single
// instant inside window. Every interval is clipped to window first; intervals
// with nothing inside window are ignored.
func PeakConcurrency(window Interval, intervals []Interval) int {
	if window.Empty() || len(intervals) == 0 {
		return 0
	}

	events := make([]sweepEvent, 0, 2*len(intervals))
	for _, iv := range intervals {
		clipped, ok := Clip(iv, window)
		if !ok {
			continue
		}
		events = append(events,
			sweepEvent{at: clipped.Start, kind: startEvent},
			sweepEvent{at: clipped.End, kind: endEvent},
		)
	}

	slices.SortFunc(events, func(a, b sweepEvent) int {
		if c := a.at.Compare(b.at); c != 0 {
			return c
		}
		return cmp.Compare(a.kind, b.kind)
	})

	current, peak := 0, 0
	for _, ev := range events {
		if ev.kind == startEvent {
			current++
			if current > peak {
				peak = current
			}
			continue
		}
		current--
	}
	return peak
}
