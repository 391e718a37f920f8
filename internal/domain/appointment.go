package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const (
	DefaultTimezone          = "UTC"
	MaxCancellationReasonLen = 500
)

type Status string

const (
	StatusOpen      Status = "OPEN"
	StatusConfirmed Status = "CONFIRMED"
	StatusDeclined  Status = "DECLINED"
	StatusCancelled Status = "CANCELLED"
)

type AppointmentType string

const (
	AppointmentTypeInspection   AppointmentType = "INSPECTION"
	AppointmentTypeRepair       AppointmentType = "REPAIR"
	AppointmentTypeMaintenance  AppointmentType = "MAINTENANCE"
	AppointmentTypeInstallation AppointmentType = "INSTALLATION"
	AppointmentTypeConsultation AppointmentType = "CONSULTATION"
)

func (t AppointmentType) Valid() bool {
	switch t {
	case AppointmentTypeInspection,
		AppointmentTypeRepair,
		AppointmentTypeMaintenance,
		AppointmentTypeInstallation,
		AppointmentTypeConsultation:
		return true
	}
	return false
}

// AppointmentRequest is a craftsman booking request. From, To and the
// confirmed interval are instants; their wall-clock view comes from Timezone.
type AppointmentRequest struct {
	bun.BaseModel `bun:"table:appointment_requests" json:"-"`

	ID              uuid.UUID       `bun:"id,pk,type:uuid" json:"id"`
	CraftsmanID     string          `bun:"craftsman_id,notnull" json:"craftsman_id"`
	ResourceID      string          `bun:"resource_id,notnull" json:"resource_id"`
	Type            AppointmentType `bun:"type,notnull" json:"type"`
	DurationMinutes int             `bun:"duration_minutes,notnull" json:"duration_minutes"`
	From            time.Time       `bun:"window_from,notnull" json:"from"`
	To              time.Time       `bun:"window_to,notnull" json:"to"`
	WorkingHours    WorkingHours    `bun:"working_hours,type:jsonb,notnull" json:"working_hours"`
	Timezone        string          `bun:"timezone,notnull" json:"timezone"`

	Status             Status     `bun:"status,notnull" json:"status"`
	ConfirmedStart     *time.Time `bun:"confirmed_start" json:"confirmed_start,omitempty"`
	ConfirmedEnd       *time.Time `bun:"confirmed_end" json:"confirmed_end,omitempty"`
	CancellationReason *string    `bun:"cancellation_reason" json:"cancellation_reason,omitempty"`

	Version   int64     `bun:"version,notnull" json:"version"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`
	UpdatedAt time.Time `bun:"updated_at,notnull" json:"updated_at"`
}

func (a *AppointmentRequest) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if a.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			a.ID = id
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		if a.UpdatedAt.IsZero() {
			a.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		a.UpdatedAt = now
	}
	return nil
}

func (a *AppointmentRequest) Duration() time.Duration {
	return time.Duration(a.DurationMinutes) * time.Minute
}

func (a *AppointmentRequest) Location() (*time.Location, error) {
	if a.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(a.Timezone)
}

// ConfirmedInterval reports the booked interval of a CONFIRMED request.
func (a *AppointmentRequest) ConfirmedInterval() (Interval, bool) {
	if a.Status != StatusConfirmed || a.ConfirmedStart == nil || a.ConfirmedEnd == nil {
		return Interval{}, false
	}
	return Interval{Start: *a.ConfirmedStart, End: *a.ConfirmedEnd}, true
}

// Clone returns a copy that shares no memory with a.
func (a AppointmentRequest) Clone() AppointmentRequest {
	out := a
	out.WorkingHours = a.WorkingHours.Clone()
	if a.ConfirmedStart != nil {
		t := *a.ConfirmedStart
		out.ConfirmedStart = &t
	}
	if a.ConfirmedEnd != nil {
		t := *a.ConfirmedEnd
		out.ConfirmedEnd = &t
	}
	if a.CancellationReason != nil {
		r := *a.CancellationReason
		out.CancellationReason = &r
	}
	return out
}

// SameFacts reports whether two requests were created from the same input.
// Lifecycle fields are ignored.
func (a AppointmentRequest) SameFacts(b AppointmentRequest) bool {
	return a.CraftsmanID == b.CraftsmanID &&
		a.ResourceID == b.ResourceID &&
		a.Type == b.Type &&
		a.DurationMinutes == b.DurationMinutes &&
		a.From.Equal(b.From) &&
		a.To.Equal(b.To) &&
		a.Timezone == b.Timezone &&
		a.WorkingHours.Equal(b.WorkingHours)
}
