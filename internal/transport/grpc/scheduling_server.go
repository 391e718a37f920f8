package grpc

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"craftbook/backend/internal/domain"
	"craftbook/backend/internal/service/scheduling"
	"craftbook/backend/internal/store"
)

// CheckTrailer names the trailer that carries the failed precondition of a
// FailedPrecondition response (status, window, working_hours, conflict or
// concurrency).
const CheckTrailer = "craftbook-check"

type SchedulingServer struct {
	svc schedulingService
	log *slog.Logger
}

type schedulingService interface {
	Create(ctx context.Context, in scheduling.CreateInput) (domain.AppointmentRequest, error)
	Get(ctx context.Context, id uuid.UUID) (domain.AppointmentRequest, error)
	AvailableSlots(ctx context.Context, id uuid.UUID) ([]time.Time, error)
	ConfirmBooking(ctx context.Context, id uuid.UUID, slotStart *time.Time) (domain.AppointmentRequest, error)
	Decline(ctx context.Context, id uuid.UUID) (domain.AppointmentRequest, error)
	Cancel(ctx context.Context, id uuid.UUID, reason *string) (domain.AppointmentRequest, error)
}

func NewSchedulingServer(svc schedulingService, log *slog.Logger) *SchedulingServer {
	if log == nil {
		log = slog.Default()
	}
	return &SchedulingServer{
		svc: svc,
		log: log.With(slog.String("component", "grpc.scheduling")),
	}
}

func (s *SchedulingServer) CreateAppointment(ctx context.Context, req *CreateAppointmentRequest) (*AppointmentResponse, error) {
	log := s.log.With(slog.String("rpc", "CreateAppointment"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	if req.From == nil || req.To == nil {
		log.Warn("invalid request", slog.String("reason", "missing_window"), slog.String("craftsman_id", req.CraftsmanID))
		return nil, status.Error(codes.InvalidArgument, "from and to are required")
	}
	if req.WorkingHours == nil {
		log.Warn("invalid request", slog.String("reason", "missing_working_hours"), slog.String("craftsman_id", req.CraftsmanID))
		return nil, status.Error(codes.InvalidArgument, "working_hours are required")
	}
	hours, err := fromWireWorkingHours(*req.WorkingHours)
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "invalid_working_hours"), slog.Any("err", err))
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	appt, err := s.svc.Create(ctx, scheduling.CreateInput{
		CraftsmanID:     req.CraftsmanID,
		ResourceID:      req.ResourceID,
		Type:            domain.AppointmentType(strings.ToUpper(strings.TrimSpace(req.Type))),
		DurationMinutes: int(req.DurationMinutes),
		From:            *req.From,
		To:              *req.To,
		WorkingHours:    hours,
		TimeZone:        req.TimeZone,
		IdempotencyKey:  idempotencyKey(ctx),
	})
	if err != nil {
		if errors.Is(err, store.ErrIdempotencyConflict) {
			log.Info("appointment create idempotency conflict", slog.String("craftsman_id", req.CraftsmanID))
			return nil, status.Error(codes.FailedPrecondition, "This request key was already used for a different appointment request. Try again.")
		}
		return nil, s.statusError(ctx, log, "appointment create failed", err, slog.String("craftsman_id", req.CraftsmanID))
	}

	log.Info(
		"appointment request created",
		slog.String("appointment_id", appt.ID.String()),
		slog.String("craftsman_id", appt.CraftsmanID),
		slog.Time("from", appt.From),
		slog.Time("to", appt.To),
	)

	return &AppointmentResponse{Appointment: toWireAppointment(appt)}, nil
}

func (s *SchedulingServer) GetAppointment(ctx context.Context, req *GetAppointmentRequest) (*AppointmentResponse, error) {
	log := s.log.With(slog.String("rpc", "GetAppointment"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	id, err := parseAppointmentID(log, req.AppointmentID)
	if err != nil {
		return nil, err
	}

	appt, err := s.svc.Get(ctx, id)
	if err != nil {
		return nil, s.statusError(ctx, log, "appointment get failed", err, slog.String("appointment_id", id.String()))
	}

	log.Debug("appointment request loaded", slog.String("appointment_id", id.String()), slog.String("status", string(appt.Status)))
	return &AppointmentResponse{Appointment: toWireAppointment(appt)}, nil
}

func (s *SchedulingServer) ListAvailableSlots(ctx context.Context, req *ListAvailableSlotsRequest) (*ListAvailableSlotsResponse, error) {
	log := s.log.With(slog.String("rpc", "ListAvailableSlots"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	id, err := parseAppointmentID(log, req.AppointmentID)
	if err != nil {
		return nil, err
	}

	slots, err := s.svc.AvailableSlots(ctx, id)
	if err != nil {
		return nil, s.statusError(ctx, log, "slot computation failed", err, slog.String("appointment_id", id.String()))
	}

	log.Debug("slots listed", slog.String("appointment_id", id.String()), slog.Int("count", len(slots)))
	return &ListAvailableSlotsResponse{Slots: slots}, nil
}

func (s *SchedulingServer) ConfirmBooking(ctx context.Context, req *ConfirmBookingRequest) (*AppointmentResponse, error) {
	log := s.log.With(slog.String("rpc", "ConfirmBooking"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	id, err := parseAppointmentID(log, req.AppointmentID)
	if err != nil {
		return nil, err
	}

	appt, err := s.svc.ConfirmBooking(ctx, id, req.SlotStart)
	if err != nil {
		return nil, s.statusError(ctx, log, "booking confirm failed", err, slog.String("appointment_id", id.String()))
	}

	log.Info(
		"booking confirmed",
		slog.String("appointment_id", id.String()),
		slog.String("craftsman_id", appt.CraftsmanID),
		slog.Time("confirmed_start", *appt.ConfirmedStart),
		slog.Time("confirmed_end", *appt.ConfirmedEnd),
	)
	return &AppointmentResponse{Appointment: toWireAppointment(appt)}, nil
}

func (s *SchedulingServer) DeclineAppointment(ctx context.Context, req *DeclineAppointmentRequest) (*AppointmentResponse, error) {
	log := s.log.With(slog.String("rpc", "DeclineAppointment"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	id, err := parseAppointmentID(log, req.AppointmentID)
	if err != nil {
		return nil, err
	}

	appt, err := s.svc.Decline(ctx, id)
	if err != nil {
		return nil, s.statusError(ctx, log, "appointment decline failed", err, slog.String("appointment_id", id.String()))
	}

	log.Info("appointment request declined", slog.String("appointment_id", id.String()), slog.String("craftsman_id", appt.CraftsmanID))
	return &AppointmentResponse{Appointment: toWireAppointment(appt)}, nil
}

func (s *SchedulingServer) CancelAppointment(ctx context.Context, req *CancelAppointmentRequest) (*AppointmentResponse, error) {
	log := s.log.With(slog.String("rpc", "CancelAppointment"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	id, err := parseAppointmentID(log, req.AppointmentID)
	if err != nil {
		return nil, err
	}

	appt, err := s.svc.Cancel(ctx, id, req.Reason)
	if err != nil {
		return nil, s.statusError(ctx, log, "appointment cancel failed", err, slog.String("appointment_id", id.String()))
	}

	log.Info(
		"appointment request cancelled",
		slog.String("appointment_id", id.String()),
		slog.String("craftsman_id", appt.CraftsmanID),
		slog.Bool("has_reason", appt.CancellationReason != nil),
	)
	return &AppointmentResponse{Appointment: toWireAppointment(appt)}, nil
}

func parseAppointmentID(log *slog.Logger, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "invalid_uuid"))
		return uuid.Nil, status.Error(codes.InvalidArgument, "appointment_id must be a UUID")
	}
	return id, nil
}

// statusError logs err at a level matching its cause and converts it to a
// gRPC status. IllegalState failures also set CheckTrailer.
func (s *SchedulingServer) statusError(ctx context.Context, log *slog.Logger, msg string, err error, attrs ...any) error {
	var vErr *scheduling.ValidationError
	if errors.As(err, &vErr) {
		log.Warn("invalid request", append([]any{slog.Any("err", err)}, attrs...)...)
		return status.Error(codes.InvalidArgument, vErr.Error())
	}

	if errors.Is(err, store.ErrNotFound) {
		log.Info("appointment request not found", attrs...)
		return status.Error(codes.NotFound, "appointment request not found")
	}

	var iErr *domain.IllegalStateError
	if errors.As(err, &iErr) {
		log.Info(
			"operation rejected",
			append([]any{
				slog.String("op", string(iErr.Op)),
				slog.String("status", string(iErr.Status)),
				slog.String("check", string(iErr.Check)),
			}, attrs...)...,
		)
		if tErr := grpc.SetTrailer(ctx, metadata.Pairs(CheckTrailer, string(iErr.Check))); tErr != nil {
			log.Debug("set trailer failed", slog.Any("err", tErr))
		}
		return status.Error(codes.FailedPrecondition, iErr.Error())
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		log.Warn(msg, append([]any{slog.Any("err", err)}, attrs...)...)
		return status.Error(codes.DeadlineExceeded, "request timed out")
	case errors.Is(err, context.Canceled):
		log.Info(msg, append([]any{slog.Any("err", err)}, attrs...)...)
		return status.Error(codes.Canceled, "request cancelled")
	}

	log.Error(msg, append([]any{slog.Any("err", err)}, attrs...)...)
	return status.Error(codes.Internal, "internal error")
}

func idempotencyKey(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get("idempotency-key")
	if len(values) == 0 {
		values = md.Get("x-idempotency-key")
	}
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}

func fromWireWorkingHours(in WorkingHours) (domain.WorkingHours, error) {
	start, err := domain.ParseClockTime(in.Start)
	if err != nil {
		return domain.WorkingHours{}, errors.New("working_hours.start must be HH:MM")
	}
	end, err := domain.ParseClockTime(in.End)
	if err != nil {
		return domain.WorkingHours{}, errors.New("working_hours.end must be HH:MM")
	}

	out := domain.WorkingHours{Start: start, End: end}
	for _, b := range in.Breaks {
		bs, err := domain.ParseClockTime(b.Start)
		if err != nil {
			return domain.WorkingHours{}, errors.New("break start must be HH:MM")
		}
		be, err := domain.ParseClockTime(b.End)
		if err != nil {
			return domain.WorkingHours{}, errors.New("break end must be HH:MM")
		}
		out.Breaks = append(out.Breaks, domain.Break{Start: bs, End: be})
	}
	return out, nil
}

func toWireWorkingHours(wh domain.WorkingHours) WorkingHours {
	out := WorkingHours{Start: wh.Start.String(), End: wh.End.String()}
	for _, b := range wh.Breaks {
		out.Breaks = append(out.Breaks, Break{Start: b.Start.String(), End: b.End.String()})
	}
	return out
}

func toWireAppointment(a domain.AppointmentRequest) *Appointment {
	out := &Appointment{
		ID:                 a.ID.String(),
		CraftsmanID:        a.CraftsmanID,
		ResourceID:         a.ResourceID,
		Type:               string(a.Type),
		DurationMinutes:    int32(a.DurationMinutes),
		From:               a.From.UTC(),
		To:                 a.To.UTC(),
		WorkingHours:       toWireWorkingHours(a.WorkingHours),
		TimeZone:           a.Timezone,
		Status:             string(a.Status),
		CancellationReason: a.CancellationReason,
		Version:            a.Version,
		CreatedAt:          a.CreatedAt.UTC(),
		UpdatedAt:          a.UpdatedAt.UTC(),
	}
	if a.ConfirmedStart != nil {
		t := a.ConfirmedStart.UTC()
		out.ConfirmedStart = &t
	}
	if a.ConfirmedEnd != nil {
		t := a.ConfirmedEnd.UTC()
		out.ConfirmedEnd = &t
	}
	return out
}
