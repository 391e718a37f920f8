package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"craftbook/backend/internal/domain"
)

// AppointmentRepository persists appointment requests. Reads outside
// InCraftsmanTransaction are snapshots and may be stale by the time they
// return.
type AppointmentRepository interface {
	Create(ctx context.Context, appt domain.AppointmentRequest) (domain.AppointmentRequest, error)
	FindByID(ctx context.Context, id uuid.UUID) (domain.AppointmentRequest, error)
	FindConfirmedByCraftsman(ctx context.Context, craftsmanID string, windowStart, windowEnd time.Time) ([]domain.Interval, error)

	// InCraftsmanTransaction runs fn while holding the craftsman's booking
	// lock. Two calls for the same craftsman never run fn concurrently.
	InCraftsmanTransaction(ctx context.Context, craftsmanID string, fn func(ctx context.Context, tx BookingTx) error) error

	Ping(ctx context.Context) error
}

type BookingTx interface {
	FindByID(ctx context.Context, id uuid.UUID) (domain.AppointmentRequest, error)
	FindConfirmedByCraftsman(ctx context.Context, craftsmanID string, windowStart, windowEnd time.Time) ([]domain.Interval, error)

	// Save writes the lifecycle fields of appt if the stored version still
	// equals appt.Version and returns the row with its new version. A stale
	// version yields ErrConflict.
	Save(ctx context.Context, appt domain.AppointmentRequest) (domain.AppointmentRequest, error)
}
