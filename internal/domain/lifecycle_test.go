package domain

import (
	"errors"
	"testing"
	"time"
)

func TestNextStatus_TransitionTable(t *testing.T) {
	statuses := []Status{StatusOpen, StatusConfirmed, StatusDeclined, StatusCancelled}
	ops := []Operation{OperationConfirm, OperationDecline, OperationCancel}

	allowed := map[Status]map[Operation]Status{
		StatusOpen:      {OperationConfirm: StatusConfirmed, OperationDecline: StatusDeclined, OperationCancel: StatusCancelled},
		StatusConfirmed: {OperationCancel: StatusCancelled},
	}

	for _, from := range statuses {
		for _, op := range ops {
			got, err := NextStatus(from, op)
			want, ok := allowed[from][op]
			if ok {
				if err != nil || got != want {
					t.Fatalf("NextStatus(%s, %s) = %q, %v; want %q", from, op, got, err, want)
				}
				continue
			}
			if !errors.Is(err, ErrIllegalState) {
				t.Fatalf("NextStatus(%s, %s) error = %v, want ErrIllegalState", from, op, err)
			}
		}
	}
}

func TestConfirm_SetsInterval(t *testing.T) {
	req := officeRequest(day(9, 0), day(17, 0), 60)

	if err := req.Confirm(day(10, 0), nil); err != nil {
		t.Fatalf("Confirm error: %v", err)
	}
	if req.Status != StatusConfirmed {
		t.Fatalf("status = %s, want %s", req.Status, StatusConfirmed)
	}
	if !req.ConfirmedStart.Equal(day(10, 0)) || !req.ConfirmedEnd.Equal(day(11, 0)) {
		t.Fatalf("confirmed = %v-%v, want 10:00-11:00", req.ConfirmedStart, req.ConfirmedEnd)
	}
	iv, ok := req.ConfirmedInterval()
	if !ok || !iv.Start.Equal(day(10, 0)) {
		t.Fatalf("ConfirmedInterval = %v, %v", iv, ok)
	}
}

func TestConfirm_FailedChecksLeaveRequestUntouched(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(r *AppointmentRequest)
		start     time.Time
		booked    []Interval
		wantCheck Check
	}{
		{
			name:      "not open",
			mutate:    func(r *AppointmentRequest) { r.Status = StatusDeclined },
			start:     day(10, 0),
			wantCheck: CheckStatus,
		},
		{
			name:      "before window",
			start:     day(8, 45),
			wantCheck: CheckWindow,
		},
		{
			name:      "ends after window",
			start:     day(16, 30),
			wantCheck: CheckWindow,
		},
		{
			name: "inside break",
			mutate: func(r *AppointmentRequest) {
				r.WorkingHours.Breaks = []Break{{Start: MustClockTime("12:00"), End: MustClockTime("13:00")}}
			},
			start:     day(11, 30),
			wantCheck: CheckWorkingHours,
		},
		{
			name:      "overlaps confirmed booking",
			start:     day(10, 30),
			booked:    []Interval{{Start: day(10, 0), End: day(11, 0)}},
			wantCheck: CheckConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := officeRequest(day(9, 0), day(17, 0), 60)
			if tt.mutate != nil {
				tt.mutate(&req)
			}
			before := req.Clone()

			err := req.Confirm(tt.start, tt.booked)
			var isErr *IllegalStateError
			if !errors.As(err, &isErr) {
				t.Fatalf("error = %v, want *IllegalStateError", err)
			}
			if isErr.Check != tt.wantCheck {
				t.Fatalf("check = %s, want %s", isErr.Check, tt.wantCheck)
			}
			if req.Status != before.Status || req.ConfirmedStart != nil || req.ConfirmedEnd != nil {
				t.Fatalf("request mutated on failure: %+v", req)
			}
		})
	}
}

func TestConfirm_AdjacentBookingIsNotAConflict(t *testing.T) {
	req := officeRequest(day(9, 0), day(17, 0), 60)
	booked := []Interval{{Start: day(10, 0), End: day(11, 0)}}

	if err := req.Confirm(day(11, 0), booked); err != nil {
		t.Fatalf("Confirm error: %v", err)
	}
}

func TestCancel_ClearsIntervalAndStoresReason(t *testing.T) {
	req := officeRequest(day(9, 0), day(17, 0), 60)
	if err := req.Confirm(day(10, 0), nil); err != nil {
		t.Fatalf("Confirm error: %v", err)
	}

	reason := "Emergency"
	if err := req.Cancel(&reason); err != nil {
		t.Fatalf("Cancel error: %v", err)
	}
	if req.Status != StatusCancelled {
		t.Fatalf("status = %s, want %s", req.Status, StatusCancelled)
	}
	if req.ConfirmedStart != nil || req.ConfirmedEnd != nil {
		t.Fatalf("confirmed interval not cleared")
	}
	if req.CancellationReason == nil || *req.CancellationReason != "Emergency" {
		t.Fatalf("reason = %v, want Emergency", req.CancellationReason)
	}

	if err := req.Cancel(nil); !errors.Is(err, ErrIllegalState) {
		t.Fatalf("second cancel error = %v, want ErrIllegalState", err)
	}
}

func TestDecline_RequiresOpen(t *testing.T) {
	req := officeRequest(day(9, 0), day(17, 0), 60)
	if err := req.Decline(); err != nil {
		t.Fatalf("Decline error: %v", err)
	}
	if err := req.Cancel(nil); !errors.Is(err, ErrIllegalState) {
		t.Fatalf("cancel after decline error = %v, want ErrIllegalState", err)
	}

	confirmed := officeRequest(day(9, 0), day(17, 0), 60)
	if err := confirmed.Confirm(day(9, 0), nil); err != nil {
		t.Fatalf("Confirm error: %v", err)
	}
	if err := confirmed.Decline(); !errors.Is(err, ErrIllegalState) {
		t.Fatalf("decline after confirm error = %v, want ErrIllegalState", err)
	}
	if confirmed.Status != StatusConfirmed {
		t.Fatalf("status = %s, want %s", confirmed.Status, StatusConfirmed)
	}
}
