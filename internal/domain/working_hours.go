package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"
)

const clockLayout = "15:04"

// ClockTime is a wall-clock time of day in minutes after midnight.
type ClockTime int

func ParseClockTime(s string) (ClockTime, error) {
	t, err := time.Parse(clockLayout, s)
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q", s)
	}
	return ClockTime(t.Hour()*60 + t.Minute()), nil
}

func MustClockTime(s string) ClockTime {
	c, err := ParseClockTime(s)
	if err != nil {
		panic(err)
	}
	return c
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

func (c ClockTime) sinceMidnight() time.Duration {
	return time.Duration(c) * time.Minute
}

func (c ClockTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *ClockTime) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseClockTime(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

type Break struct {
	Start ClockTime `json:"start"`
	End   ClockTime `json:"end"`
}

// WorkingHours is a day-relative availability window minus its breaks.
type WorkingHours struct {
	Start  ClockTime `json:"start"`
	End    ClockTime `json:"end"`
	Breaks []Break   `json:"breaks,omitempty"`
}

// Validate checks the window and that every break lies inside it.
func (wh WorkingHours) Validate() error {
	if wh.Start < 0 || wh.End >= 24*60 {
		return errors.New("working hours out of range")
	}
	if wh.End <= wh.Start {
		return errors.New("working hours end must be after start")
	}
	for _, b := range wh.Breaks {
		if b.End <= b.Start {
			return fmt.Errorf("break %s-%s: end must be after start", b.Start, b.End)
		}
		if b.Start < wh.Start || b.End > wh.End {
			return fmt.Errorf("break %s-%s outside working hours", b.Start, b.End)
		}
	}
	return nil
}

// Normalized returns a copy with breaks ordered by start.
func (wh WorkingHours) Normalized() WorkingHours {
	out := wh.Clone()
	sort.SliceStable(out.Breaks, func(i, j int) bool {
		if out.Breaks[i].Start == out.Breaks[j].Start {
			return out.Breaks[i].End < out.Breaks[j].End
		}
		return out.Breaks[i].Start < out.Breaks[j].Start
	})
	return out
}

func (wh WorkingHours) Clone() WorkingHours {
	out := wh
	if wh.Breaks != nil {
		out.Breaks = make([]Break, len(wh.Breaks))
		copy(out.Breaks, wh.Breaks)
	}
	return out
}

func (wh WorkingHours) Equal(o WorkingHours) bool {
	if wh.Start != o.Start || wh.End != o.End || len(wh.Breaks) != len(o.Breaks) {
		return false
	}
	for i := range wh.Breaks {
		if wh.Breaks[i] != o.Breaks[i] {
			return false
		}
	}
	return true
}

// Admits reports whether [start, end) can be booked under wh, evaluated on
// the wall clock of loc. Intervals spanning two local calendar days are never
// admitted. Touching a break at an endpoint is allowed.
func (wh WorkingHours) Admits(start, end time.Time, loc *time.Location) bool {
	if !end.After(start) {
		return false
	}
	if loc == nil {
		loc = time.UTC
	}
	ls := start.In(loc)
	le := end.In(loc)
	if !SameLocalDay(ls, le) {
		return false
	}

	s := sinceMidnight(ls)
	e := sinceMidnight(le)
	if s < wh.Start.sinceMidnight() || e > wh.End.sinceMidnight() {
		return false
	}
	for _, b := range wh.Breaks {
		if s < b.End.sinceMidnight() && e > b.Start.sinceMidnight() {
			return false
		}
	}
	return true
}

// SameLocalDay compares calendar dates in the location each time carries.
func SameLocalDay(a, b time.Time) bool {
	y1, m1, d1 := a.Date()
	y2, m2, d2 := b.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

func sinceMidnight(t time.Time) time.Duration {
	h, m, s := t.Clock()
	return time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second +
		time.Duration(t.Nanosecond())
}
