package domain

import (
	"fmt"
	"time"
)

const SlotStep = 15 * time.Minute

// AvailableSlots lists the start times in the request window, stepping by
// SlotStep from From, whose interval stays on one local day, is admitted by
// the working hours and does not overlap any booked interval. The result is
// ascending and may be empty.
func AvailableSlots(req AppointmentRequest, booked []Interval) ([]time.Time, error) {
	loc, err := req.Location()
	if err != nil {
		return nil, fmt.Errorf("load time zone %q: %w", req.Timezone, err)
	}

	duration := req.Duration()
	slots := make([]time.Time, 0)
	if duration <= 0 {
		return slots, nil
	}

	busy := newBusyIndex(booked)
	for cursor := req.From; !cursor.Add(duration).After(req.To); cursor = cursor.Add(SlotStep) {
		candidate := Interval{Start: cursor, End: cursor.Add(duration)}
		if !SameLocalDay(candidate.Start.In(loc), candidate.End.In(loc)) {
			continue
		}
		if !req.WorkingHours.Admits(candidate.Start, candidate.End, loc) {
			continue
		}
		if busy.conflicts(candidate) {
			continue
		}
		slots = append(slots, cursor.In(loc))
	}
	return slots, nil
}
