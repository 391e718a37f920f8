package domain

import (
	"testing"
	"time"
)

func officeRequest(from, to time.Time, durationMinutes int) AppointmentRequest {
	return AppointmentRequest{
		CraftsmanID:     "craftsman-1",
		ResourceID:      "flat-7",
		Type:            AppointmentTypeRepair,
		DurationMinutes: durationMinutes,
		From:            from,
		To:              to,
		WorkingHours:    WorkingHours{Start: MustClockTime("08:00"), End: MustClockTime("17:00")},
		Timezone:        "UTC",
		Status:          StatusOpen,
	}
}

func everyQuarter(from, through time.Time) []time.Time {
	var out []time.Time
	for t := from; !t.After(through); t = t.Add(SlotStep) {
		out = append(out, t)
	}
	return out
}

func assertSlots(t *testing.T, got, want []time.Time) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("len(slots) = %d, want %d (got %v)", len(got), len(want), got)
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Fatalf("slots[%d] = %s, want %s", i, got[i], want[i])
		}
	}
}

func TestAvailableSlots_FullDayEveryQuarterHour(t *testing.T) {
	req := officeRequest(day(9, 0), day(17, 0), 60)

	got, err := AvailableSlots(req, nil)
	if err != nil {
		t.Fatalf("AvailableSlots error: %v", err)
	}
	assertSlots(t, got, everyQuarter(day(9, 0), day(16, 0)))
}

func TestAvailableSlots_ExcludesBreakOverlap(t *testing.T) {
	req := officeRequest(day(8, 0), day(17, 0), 90)
	req.WorkingHours.Breaks = []Break{{Start: MustClockTime("12:00"), End: MustClockTime("13:00")}}

	got, err := AvailableSlots(req, nil)
	if err != nil {
		t.Fatalf("AvailableSlots error: %v", err)
	}

	want := append(everyQuarter(day(8, 0), day(10, 30)), everyQuarter(day(13, 0), day(15, 30))...)
	assertSlots(t, got, want)
	for _, s := range got {
		if s.Equal(day(11, 30)) {
			t.Fatalf("11:30 overlaps the break and must not be offered")
		}
	}
}

func TestAvailableSlots_SkipsConfirmedBookings(t *testing.T) {
	req := officeRequest(day(9, 0), day(17, 0), 60)
	booked := []Interval{
		{Start: day(10, 0), End: day(11, 0)},
		{Start: day(11, 0), End: day(11, 30)},
	}

	got, err := AvailableSlots(req, booked)
	if err != nil {
		t.Fatalf("AvailableSlots error: %v", err)
	}

	want := append([]time.Time{day(9, 0)}, everyQuarter(day(11, 30), day(16, 0))...)
	assertSlots(t, got, want)
}

func TestAvailableSlots_MatchesLinearScan(t *testing.T) {
	req := officeRequest(day(8, 0), day(17, 0), 45)
	req.WorkingHours.Breaks = []Break{{Start: MustClockTime("12:30"), End: MustClockTime("13:00")}}
	booked := []Interval{
		{Start: day(14, 0), End: day(15, 0)},
		{Start: day(9, 10), End: day(9, 50)},
		{Start: day(14, 30), End: day(14, 45)},
		{Start: day(16, 0), End: day(16, 5)},
	}

	got, err := AvailableSlots(req, booked)
	if err != nil {
		t.Fatalf("AvailableSlots error: %v", err)
	}

	var want []time.Time
	for c := req.From; !c.Add(req.Duration()).After(req.To); c = c.Add(SlotStep) {
		end := c.Add(req.Duration())
		if req.WorkingHours.Admits(c, end, time.UTC) && !AnyOverlap(Interval{Start: c, End: end}, booked) {
			want = append(want, c)
		}
	}
	assertSlots(t, got, want)
}

func TestAvailableSlots_NeverCrossesMidnight(t *testing.T) {
	req := officeRequest(day(22, 0), day(2, 0).Add(24*time.Hour), 60)
	req.WorkingHours = WorkingHours{Start: MustClockTime("00:00"), End: MustClockTime("23:59")}

	got, err := AvailableSlots(req, nil)
	if err != nil {
		t.Fatalf("AvailableSlots error: %v", err)
	}

	next := day(0, 0).Add(24 * time.Hour)
	want := append(everyQuarter(day(22, 0), day(22, 45)), everyQuarter(next, next.Add(time.Hour))...)
	assertSlots(t, got, want)
}

func TestAvailableSlots_EmptyResults(t *testing.T) {
	t.Run("window shorter than duration", func(t *testing.T) {
		got, err := AvailableSlots(officeRequest(day(9, 0), day(9, 30), 60), nil)
		if err != nil {
			t.Fatalf("AvailableSlots error: %v", err)
		}
		if got == nil || len(got) != 0 {
			t.Fatalf("slots = %v, want empty non-nil", got)
		}
	})

	t.Run("window outside working hours", func(t *testing.T) {
		got, err := AvailableSlots(officeRequest(day(17, 0), day(20, 0), 30), nil)
		if err != nil {
			t.Fatalf("AvailableSlots error: %v", err)
		}
		if len(got) != 0 {
			t.Fatalf("slots = %v, want empty", got)
		}
	})
}

func TestAvailableSlots_InvalidTimezone(t *testing.T) {
	req := officeRequest(day(9, 0), day(17, 0), 60)
	req.Timezone = "Not/AZone"

	if _, err := AvailableSlots(req, nil); err == nil {
		t.Fatalf("expected error")
	}
}
