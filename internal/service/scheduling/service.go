package scheduling

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"craftbook/backend/internal/domain"
	"craftbook/backend/internal/store"
)

const maxIdempotencyKeyLen = 256

// A booking never crosses midnight, so nothing longer than a day can ever
// be confirmed.
const maxDurationMinutes = 24 * 60

type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func validationError(msg string) error {
	return &ValidationError{msg: msg}
}

type Service struct {
	repo store.AppointmentRepository
}

func NewService(repo store.AppointmentRepository) *Service {
	return &Service{repo: repo}
}

type CreateInput struct {
	CraftsmanID     string
	ResourceID      string
	Type            domain.AppointmentType
	DurationMinutes int
	From            time.Time
	To              time.Time
	WorkingHours    domain.WorkingHours
	TimeZone        string
	IdempotencyKey  string
}

// Create validates the request facts and stores a new OPEN request.
func (s *Service) Create(ctx context.Context, in CreateInput) (domain.AppointmentRequest, error) {
	craftsmanID := strings.TrimSpace(in.CraftsmanID)
	if craftsmanID == "" {
		return domain.AppointmentRequest{}, validationError("craftsman_id is required")
	}
	resourceID := strings.TrimSpace(in.ResourceID)
	if resourceID == "" {
		return domain.AppointmentRequest{}, validationError("resource_id is required")
	}
	if !in.Type.Valid() {
		return domain.AppointmentRequest{}, validationError("invalid appointment type")
	}
	if in.DurationMinutes <= 0 {
		return domain.AppointmentRequest{}, validationError("duration_minutes must be positive")
	}
	if in.DurationMinutes > maxDurationMinutes {
		return domain.AppointmentRequest{}, validationError("duration_minutes too long")
	}

	from := in.From.UTC()
	to := in.To.UTC()
	if from.IsZero() || to.IsZero() {
		return domain.AppointmentRequest{}, validationError("from and to are required")
	}
	if !to.After(from) {
		return domain.AppointmentRequest{}, validationError("to must be after from")
	}

	tz := strings.TrimSpace(in.TimeZone)
	if tz == "" {
		tz = domain.DefaultTimezone
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return domain.AppointmentRequest{}, validationError("invalid time_zone")
	}

	if err := in.WorkingHours.Validate(); err != nil {
		return domain.AppointmentRequest{}, validationError(err.Error())
	}

	appt := domain.AppointmentRequest{
		CraftsmanID:     craftsmanID,
		ResourceID:      resourceID,
		Type:            in.Type,
		DurationMinutes: in.DurationMinutes,
		From:            from,
		To:              to,
		WorkingHours:    in.WorkingHours.Normalized(),
		Timezone:        tz,
		Status:          domain.StatusOpen,
		Version:         1,
	}

	key := strings.TrimSpace(in.IdempotencyKey)
	if key != "" {
		if len(key) > maxIdempotencyKeyLen {
			return domain.AppointmentRequest{}, validationError("idempotency_key too long")
		}
		appt.ID = uuid.NewSHA1(uuid.NameSpaceOID, []byte("craftbook:create_appointment:"+craftsmanID+":"+key))
	}

	return s.repo.Create(ctx, appt)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (domain.AppointmentRequest, error) {
	return s.repo.FindByID(ctx, id)
}

// AvailableSlots lists the bookable start times of the request against a
// snapshot of the craftsman's confirmed bookings. The result can be stale as
// soon as it returns; ConfirmBooking re-checks.
func (s *Service) AvailableSlots(ctx context.Context, id uuid.UUID) ([]time.Time, error) {
	appt, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	booked, err := s.repo.FindConfirmedByCraftsman(ctx, appt.CraftsmanID, appt.From, appt.To)
	if err != nil {
		return nil, err
	}
	return domain.AvailableSlots(appt, booked)
}

// ConfirmBooking books slotStart, or the start of the requested window when
// slotStart is nil. The conflict check runs against bookings read under the
// craftsman lock.
func (s *Service) ConfirmBooking(ctx context.Context, id uuid.UUID, slotStart *time.Time) (domain.AppointmentRequest, error) {
	return s.mutate(ctx, id, domain.OperationConfirm, func(ctx context.Context, tx store.BookingTx, appt *domain.AppointmentRequest) error {
		start := appt.From
		if slotStart != nil {
			start = slotStart.UTC()
		}
		end := start.Add(appt.Duration())

		booked, err := tx.FindConfirmedByCraftsman(ctx, appt.CraftsmanID, start, end)
		if err != nil {
			return err
		}
		return appt.Confirm(start, booked)
	})
}

func (s *Service) Decline(ctx context.Context, id uuid.UUID) (domain.AppointmentRequest, error) {
	return s.mutate(ctx, id, domain.OperationDecline, func(ctx context.Context, tx store.BookingTx, appt *domain.AppointmentRequest) error {
		return appt.Decline()
	})
}

// Cancel clears the confirmed interval, if any, and records reason.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason *string) (domain.AppointmentRequest, error) {
	if reason != nil && utf8.RuneCountInString(*reason) > domain.MaxCancellationReasonLen {
		return domain.AppointmentRequest{}, validationError("cancellation_reason too long")
	}
	return s.mutate(ctx, id, domain.OperationCancel, func(ctx context.Context, tx store.BookingTx, appt *domain.AppointmentRequest) error {
		return appt.Cancel(reason)
	})
}

type mutation func(ctx context.Context, tx store.BookingTx, appt *domain.AppointmentRequest) error

// mutate reloads the request inside the craftsman transaction, applies fn and
// saves the result. The first read only resolves the craftsman, which never
// changes after creation.
func (s *Service) mutate(ctx context.Context, id uuid.UUID, op domain.Operation, fn mutation) (domain.AppointmentRequest, error) {
	snapshot, err := s.Get(ctx, id)
	if err != nil {
		return domain.AppointmentRequest{}, err
	}

	var out domain.AppointmentRequest
	err = s.repo.InCraftsmanTransaction(ctx, snapshot.CraftsmanID, func(ctx context.Context, tx store.BookingTx) error {
		appt, err := tx.FindByID(ctx, id)
		if err != nil {
			return err
		}
		from := appt.Status
		if err := fn(ctx, tx, &appt); err != nil {
			return err
		}
		saved, err := tx.Save(ctx, appt)
		if err != nil {
			return saveError(op, from, err)
		}
		out = saved
		return nil
	})
	if err != nil {
		return domain.AppointmentRequest{}, err
	}
	return out, nil
}

func saveError(op domain.Operation, status domain.Status, err error) error {
	switch {
	case errors.Is(err, store.ErrOverlap):
		return &domain.IllegalStateError{Op: op, Status: status, Check: domain.CheckConflict, Reason: "slot no longer available"}
	case errors.Is(err, store.ErrConflict):
		return &domain.IllegalStateError{Op: op, Status: status, Check: domain.CheckConcurrency, Reason: "appointment request changed concurrently"}
	default:
		return err
	}
}
