package domain

import (
	"sort"
	"time"
)

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Overlaps reports whether [aStart, aEnd) and [bStart, bEnd) intersect with
// positive length. Intervals that only touch do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

func (i Interval) Overlaps(o Interval) bool {
	return Overlaps(i.Start, i.End, o.Start, o.End)
}

func AnyOverlap(candidate Interval, booked []Interval) bool {
	for _, b := range booked {
		if candidate.Overlaps(b) {
			return true
		}
	}
	return false
}

// busyIndex holds booked intervals sorted and merged so that a lookup is a
// binary search instead of a scan.
type busyIndex []Interval

func newBusyIndex(booked []Interval) busyIndex {
	if len(booked) == 0 {
		return nil
	}
	sorted := make([]Interval, 0, len(booked))
	for _, b := range booked {
		if b.End.After(b.Start) {
			sorted = append(sorted, b)
		}
	}
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Start.Before(sorted[j].Start)
	})

	merged := make(busyIndex, 0, len(sorted))
	for _, b := range sorted {
		n := len(merged)
		// Only merge strictly overlapping spans; touching spans stay apart so
		// a candidate fitting exactly between them is not hidden.
		if n > 0 && b.Start.Before(merged[n-1].End) {
			if b.End.After(merged[n-1].End) {
				merged[n-1].End = b.End
			}
			continue
		}
		merged = append(merged, b)
	}
	return merged
}

func (idx busyIndex) conflicts(c Interval) bool {
	i := sort.Search(len(idx), func(i int) bool {
		return idx[i].End.After(c.Start)
	})
	return i < len(idx) && idx[i].Start.Before(c.End)
}
