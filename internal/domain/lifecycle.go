package domain

import (
	"errors"
	"fmt"
	"time"
)

type Operation string

const (
	OperationConfirm Operation = "confirm"
	OperationDecline Operation = "decline"
	OperationCancel  Operation = "cancel"
)

// Check names the precondition an operation failed on.
type Check string

const (
	CheckStatus       Check = "status"
	CheckWindow       Check = "window"
	CheckWorkingHours Check = "working_hours"
	CheckConflict     Check = "conflict"
	CheckConcurrency  Check = "concurrency"
)

var ErrIllegalState = errors.New("illegal state")

type IllegalStateError struct {
	Op     Operation
	Status Status
	Check  Check
	Reason string
}

func (e *IllegalStateError) Error() string {
	return fmt.Sprintf("%s appointment request (status %s): %s", e.Op, e.Status, e.Reason)
}

func (e *IllegalStateError) Is(target error) bool {
	return target == ErrIllegalState
}

func illegal(op Operation, status Status, check Check, reason string) error {
	return &IllegalStateError{Op: op, Status: status, Check: check, Reason: reason}
}

// transitions is the whole booking state machine. DECLINED and CANCELLED
// are terminal.
var transitions = map[Status]map[Operation]Status{
	StatusOpen: {
		OperationConfirm: StatusConfirmed,
		OperationDecline: StatusDeclined,
		OperationCancel:  StatusCancelled,
	},
	StatusConfirmed: {
		OperationCancel: StatusCancelled,
	},
}

func NextStatus(from Status, op Operation) (Status, error) {
	next, ok := transitions[from][op]
	if !ok {
		return "", illegal(op, from, CheckStatus, fmt.Sprintf("%s not allowed from %s", op, from))
	}
	return next, nil
}

// Confirm books [start, start+duration) after checking status, the
// requested window, working hours and the booked intervals of the
// craftsman, in that order. The request is unchanged on error.
func (a *AppointmentRequest) Confirm(start time.Time, booked []Interval) error {
	next, err := NextStatus(a.Status, OperationConfirm)
	if err != nil {
		return err
	}

	end := start.Add(a.Duration())
	if start.Before(a.From) || end.After(a.To) {
		return illegal(OperationConfirm, a.Status, CheckWindow, "slot outside requested window")
	}

	loc, err := a.Location()
	if err != nil {
		return fmt.Errorf("load time zone %q: %w", a.Timezone, err)
	}
	if !a.WorkingHours.Admits(start, end, loc) {
		return illegal(OperationConfirm, a.Status, CheckWorkingHours, "slot outside working hours")
	}

	if AnyOverlap(Interval{Start: start, End: end}, booked) {
		return illegal(OperationConfirm, a.Status, CheckConflict, "slot no longer available")
	}

	s := start.UTC()
	e := end.UTC()
	a.Status = next
	a.ConfirmedStart = &s
	a.ConfirmedEnd = &e
	return nil
}

func (a *AppointmentRequest) Decline() error {
	next, err := NextStatus(a.Status, OperationDecline)
	if err != nil {
		return err
	}
	a.Status = next
	return nil
}

// Cancel clears any confirmed interval and records reason, which may be nil.
func (a *AppointmentRequest) Cancel(reason *string) error {
	next, err := NextStatus(a.Status, OperationCancel)
	if err != nil {
		return err
	}
	a.Status = next
	a.ConfirmedStart = nil
	a.ConfirmedEnd = nil
	if reason != nil {
		r := *reason
		a.CancellationReason = &r
	} else {
		a.CancellationReason = nil
	}
	return nil
}
