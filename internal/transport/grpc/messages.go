package grpc

import "time"

type Break struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// WorkingHours carries clock times as "HH:MM".
type WorkingHours struct {
	Start  string  `json:"start"`
	End    string  `json:"end"`
	Breaks []Break `json:"breaks,omitempty"`
}

type Appointment struct {
	ID                 string       `json:"id"`
	CraftsmanID        string       `json:"craftsman_id"`
	ResourceID         string       `json:"resource_id"`
	Type               string       `json:"type"`
	DurationMinutes    int32        `json:"duration_minutes"`
	From               time.Time    `json:"from"`
	To                 time.Time    `json:"to"`
	WorkingHours       WorkingHours `json:"working_hours"`
	TimeZone           string       `json:"time_zone"`
	Status             string       `json:"status"`
	ConfirmedStart     *time.Time   `json:"confirmed_start,omitempty"`
	ConfirmedEnd       *time.Time   `json:"confirmed_end,omitempty"`
	CancellationReason *string      `json:"cancellation_reason,omitempty"`
	Version            int64        `json:"version"`
	CreatedAt          time.Time    `json:"created_at"`
	UpdatedAt          time.Time    `json:"updated_at"`
}

type CreateAppointmentRequest struct {
	CraftsmanID     string        `json:"craftsman_id"`
	ResourceID      string        `json:"resource_id"`
	Type            string        `json:"type"`
	DurationMinutes int32         `json:"duration_minutes"`
	From            *time.Time    `json:"from"`
	To              *time.Time    `json:"to"`
	WorkingHours    *WorkingHours `json:"working_hours"`
	TimeZone        string        `json:"time_zone,omitempty"`
}

type AppointmentResponse struct {
	Appointment *Appointment `json:"appointment"`
}

type GetAppointmentRequest struct {
	AppointmentID string `json:"appointment_id"`
}

type ListAvailableSlotsRequest struct {
	AppointmentID string `json:"appointment_id"`
}

// Slots are rendered in the time zone of the appointment request.
type ListAvailableSlotsResponse struct {
	Slots []time.Time `json:"slots"`
}

type ConfirmBookingRequest struct {
	AppointmentID string     `json:"appointment_id"`
	SlotStart     *time.Time `json:"slot_start,omitempty"`
}

type DeclineAppointmentRequest struct {
	AppointmentID string `json:"appointment_id"`
}

type CancelAppointmentRequest struct {
	AppointmentID string  `json:"appointment_id"`
	Reason        *string `json:"reason,omitempty"`
}
