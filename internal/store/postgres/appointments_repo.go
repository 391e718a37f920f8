package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"craftbook/backend/internal/domain"
	"craftbook/backend/internal/store"
)

const confirmedOverlapConstraint = "appointment_requests_no_overlap"

type AppointmentRepo struct {
	db *bun.DB
}

func NewAppointmentRepo(db *bun.DB) *AppointmentRepo {
	return &AppointmentRepo{db: db}
}

type bookingTx struct {
	tx bun.Tx
}

func (r *AppointmentRepo) Create(ctx context.Context, appt domain.AppointmentRequest) (domain.AppointmentRequest, error) {
	m := appt.Clone()
	if m.Version == 0 {
		m.Version = 1
	}

	_, err := r.db.NewInsert().Model(&m).Exec(ctx)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			existing, selectErr := r.FindByID(ctx, m.ID)
			if selectErr != nil {
				return domain.AppointmentRequest{}, err
			}
			if !existing.SameFacts(appt) {
				return domain.AppointmentRequest{}, store.ErrIdempotencyConflict
			}
			return existing, nil
		}
		return domain.AppointmentRequest{}, err
	}
	return m, nil
}

func (r *AppointmentRepo) FindByID(ctx context.Context, id uuid.UUID) (domain.AppointmentRequest, error) {
	return findByID(ctx, r.db.NewSelect(), id)
}

func (r *AppointmentRepo) FindConfirmedByCraftsman(ctx context.Context, craftsmanID string, windowStart, windowEnd time.Time) ([]domain.Interval, error) {
	return findConfirmed(ctx, r.db.NewSelect(), craftsmanID, windowStart, windowEnd)
}

// InCraftsmanTransaction takes a transaction-scoped advisory lock on the
// craftsman id, so mutations for one craftsman are serialized across all
// server instances sharing the database.
func (r *AppointmentRepo) InCraftsmanTransaction(ctx context.Context, craftsmanID string, fn func(ctx context.Context, tx store.BookingTx) error) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockCraftsmanCalendar(ctx, tx, craftsmanID); err != nil {
			return err
		}
		return fn(ctx, bookingTx{tx: tx})
	})
}

func (r *AppointmentRepo) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func lockCraftsmanCalendar(ctx context.Context, tx bun.Tx, craftsmanID string) error {
	_, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", craftsmanID).Exec(ctx)
	return err
}

func (t bookingTx) FindByID(ctx context.Context, id uuid.UUID) (domain.AppointmentRequest, error) {
	return findByID(ctx, t.tx.NewSelect().For("UPDATE"), id)
}

func (t bookingTx) FindConfirmedByCraftsman(ctx context.Context, craftsmanID string, windowStart, windowEnd time.Time) ([]domain.Interval, error) {
	return findConfirmed(ctx, t.tx.NewSelect(), craftsmanID, windowStart, windowEnd)
}

func (t bookingTx) Save(ctx context.Context, appt domain.AppointmentRequest) (domain.AppointmentRequest, error) {
	m := appt.Clone()
	m.Version = appt.Version + 1

	res, err := t.tx.NewUpdate().
		Model(&m).
		Column("status", "confirmed_start", "confirmed_end", "cancellation_reason", "version", "updated_at").
		WherePK().
		Where("version = ?", appt.Version).
		Exec(ctx)
	if err != nil {
		return domain.AppointmentRequest{}, mapWriteError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.AppointmentRequest{}, err
	}
	if affected == 0 {
		if _, err := findByID(ctx, t.tx.NewSelect(), appt.ID); err != nil {
			return domain.AppointmentRequest{}, err
		}
		return domain.AppointmentRequest{}, store.ErrConflict
	}
	return m, nil
}

func findByID(ctx context.Context, q *bun.SelectQuery, id uuid.UUID) (domain.AppointmentRequest, error) {
	var out domain.AppointmentRequest
	err := q.Model(&out).Where("id = ?", id).Limit(1).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.AppointmentRequest{}, store.ErrNotFound
		}
		return domain.AppointmentRequest{}, err
	}
	return out, nil
}

func findConfirmed(ctx context.Context, q *bun.SelectQuery, craftsmanID string, windowStart, windowEnd time.Time) ([]domain.Interval, error) {
	var rows []domain.AppointmentRequest
	err := q.
		Model(&rows).
		Column("confirmed_start", "confirmed_end").
		Where("craftsman_id = ?", craftsmanID).
		Where("status = ?", domain.StatusConfirmed).
		Where("confirmed_start < ?", windowEnd).
		Where("confirmed_end > ?", windowStart).
		OrderExpr("confirmed_start ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Interval, 0, len(rows))
	for _, row := range rows {
		if row.ConfirmedStart == nil || row.ConfirmedEnd == nil {
			continue
		}
		out = append(out, domain.Interval{Start: row.ConfirmedStart.UTC(), End: row.ConfirmedEnd.UTC()})
	}
	return out, nil
}

func mapWriteError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == "23P01" && pgErr.ConstraintName == confirmedOverlapConstraint {
			return store.ErrOverlap
		}
	}
	return err
}
