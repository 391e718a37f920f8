// Package memory is an in-process AppointmentRepository for tests and
// single-instance deployments.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"craftbook/backend/internal/domain"
	"craftbook/backend/internal/store"
)

type AppointmentRepo struct {
	mu    sync.RWMutex
	rows  map[uuid.UUID]domain.AppointmentRequest
	locks *keyedMutex
	now   func() time.Time
}

func NewAppointmentRepo() *AppointmentRepo {
	return &AppointmentRepo{
		rows:  make(map[uuid.UUID]domain.AppointmentRequest),
		locks: newKeyedMutex(),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

type bookingTx struct {
	repo *AppointmentRepo
}

func (r *AppointmentRepo) Create(ctx context.Context, appt domain.AppointmentRequest) (domain.AppointmentRequest, error) {
	if err := ctx.Err(); err != nil {
		return domain.AppointmentRequest{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if appt.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return domain.AppointmentRequest{}, err
		}
		appt.ID = id
	}
	if existing, ok := r.rows[appt.ID]; ok {
		if !existing.SameFacts(appt) {
			return domain.AppointmentRequest{}, store.ErrIdempotencyConflict
		}
		return existing.Clone(), nil
	}

	now := r.now()
	if appt.CreatedAt.IsZero() {
		appt.CreatedAt = now
	}
	appt.UpdatedAt = now
	if appt.Version == 0 {
		appt.Version = 1
	}
	r.rows[appt.ID] = appt.Clone()
	return appt, nil
}

func (r *AppointmentRepo) FindByID(ctx context.Context, id uuid.UUID) (domain.AppointmentRequest, error) {
	if err := ctx.Err(); err != nil {
		return domain.AppointmentRequest{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	appt, ok := r.rows[id]
	if !ok {
		return domain.AppointmentRequest{}, store.ErrNotFound
	}
	return appt.Clone(), nil
}

func (r *AppointmentRepo) FindConfirmedByCraftsman(ctx context.Context, craftsmanID string, windowStart, windowEnd time.Time) ([]domain.Interval, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Interval, 0)
	for _, appt := range r.rows {
		if appt.CraftsmanID != craftsmanID {
			continue
		}
		iv, ok := appt.ConfirmedInterval()
		if !ok || !domain.Overlaps(iv.Start, iv.End, windowStart, windowEnd) {
			continue
		}
		out = append(out, iv)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Start.Before(out[j].Start)
	})
	return out, nil
}

func (r *AppointmentRepo) InCraftsmanTransaction(ctx context.Context, craftsmanID string, fn func(ctx context.Context, tx store.BookingTx) error) error {
	if err := r.locks.lock(ctx, craftsmanID); err != nil {
		return err
	}
	defer r.locks.unlock(craftsmanID)

	return fn(ctx, bookingTx{repo: r})
}

func (r *AppointmentRepo) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (t bookingTx) FindByID(ctx context.Context, id uuid.UUID) (domain.AppointmentRequest, error) {
	return t.repo.FindByID(ctx, id)
}

func (t bookingTx) FindConfirmedByCraftsman(ctx context.Context, craftsmanID string, windowStart, windowEnd time.Time) ([]domain.Interval, error) {
	return t.repo.FindConfirmedByCraftsman(ctx, craftsmanID, windowStart, windowEnd)
}

func (t bookingTx) Save(ctx context.Context, appt domain.AppointmentRequest) (domain.AppointmentRequest, error) {
	if err := ctx.Err(); err != nil {
		return domain.AppointmentRequest{}, err
	}

	r := t.repo
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.rows[appt.ID]
	if !ok {
		return domain.AppointmentRequest{}, store.ErrNotFound
	}
	if current.Version != appt.Version {
		return domain.AppointmentRequest{}, store.ErrConflict
	}

	if iv, ok := appt.ConfirmedInterval(); ok {
		for id, other := range r.rows {
			if id == appt.ID || other.CraftsmanID != appt.CraftsmanID {
				continue
			}
			if o, ok := other.ConfirmedInterval(); ok && iv.Overlaps(o) {
				return domain.AppointmentRequest{}, store.ErrOverlap
			}
		}
	}

	// Only lifecycle fields change after creation.
	next := current.Clone()
	next.Status = appt.Status
	next.ConfirmedStart = appt.ConfirmedStart
	next.ConfirmedEnd = appt.ConfirmedEnd
	next.CancellationReason = appt.CancellationReason
	next.Version = current.Version + 1
	next.UpdatedAt = r.now()
	next = next.Clone()

	r.rows[appt.ID] = next
	return next.Clone(), nil
}
