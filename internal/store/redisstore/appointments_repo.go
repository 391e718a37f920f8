// Package redisstore keeps appointment requests in Redis. Mutations for one
// craftsman are serialized with a token lock. Saves are also optimistic:
// they WATCH the request key and the craftsman's confirmed set, compare the
// version and re-check overlap before MULTI, so a lapsed lock cannot lead to
// a double booking.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"craftbook/backend/internal/domain"
	"craftbook/backend/internal/store"
)

const defaultPrefix = "craftbook"

type Options struct {
	Prefix    string
	LockTTL   time.Duration
	LockRetry time.Duration
}

type AppointmentRepo struct {
	client *redis.Client
	prefix string
	locker *craftsmanLocker
	now    func() time.Time
}

func NewAppointmentRepo(client *redis.Client, opts Options) *AppointmentRepo {
	prefix := opts.Prefix
	if prefix == "" {
		prefix = defaultPrefix
	}
	return &AppointmentRepo{
		client: client,
		prefix: prefix,
		locker: newCraftsmanLocker(client, opts.LockTTL, opts.LockRetry),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// keyReader is the read surface shared by *redis.Client and *redis.Tx.
type keyReader interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
	SMembers(ctx context.Context, key string) *redis.StringSliceCmd
}

type bookingTx struct {
	repo *AppointmentRepo
}

func (r *AppointmentRepo) appointmentKey(id uuid.UUID) string {
	return r.prefix + ":appointment:" + id.String()
}

func (r *AppointmentRepo) confirmedKey(craftsmanID string) string {
	return r.prefix + ":craftsman:" + craftsmanID + ":confirmed"
}

func (r *AppointmentRepo) lockKey(craftsmanID string) string {
	return r.prefix + ":lock:craftsman:" + craftsmanID
}

func (r *AppointmentRepo) Create(ctx context.Context, appt domain.AppointmentRequest) (domain.AppointmentRequest, error) {
	if appt.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return domain.AppointmentRequest{}, err
		}
		appt.ID = id
	}
	now := r.now()
	if appt.CreatedAt.IsZero() {
		appt.CreatedAt = now
	}
	appt.UpdatedAt = now
	if appt.Version == 0 {
		appt.Version = 1
	}

	payload, err := json.Marshal(appt)
	if err != nil {
		return domain.AppointmentRequest{}, fmt.Errorf("encode appointment: %w", err)
	}

	ok, err := r.client.SetNX(ctx, r.appointmentKey(appt.ID), payload, 0).Result()
	if err != nil {
		return domain.AppointmentRequest{}, err
	}
	if !ok {
		existing, err := r.FindByID(ctx, appt.ID)
		if err != nil {
			return domain.AppointmentRequest{}, err
		}
		if !existing.SameFacts(appt) {
			return domain.AppointmentRequest{}, store.ErrIdempotencyConflict
		}
		return existing, nil
	}
	return appt, nil
}

func (r *AppointmentRepo) FindByID(ctx context.Context, id uuid.UUID) (domain.AppointmentRequest, error) {
	return r.load(ctx, r.client, id)
}

func (r *AppointmentRepo) FindConfirmedByCraftsman(ctx context.Context, craftsmanID string, windowStart, windowEnd time.Time) ([]domain.Interval, error) {
	confirmed, err := r.confirmed(ctx, r.client, craftsmanID)
	if err != nil {
		return nil, err
	}

	out := make([]domain.Interval, 0, len(confirmed))
	for _, appt := range confirmed {
		iv, _ := appt.ConfirmedInterval()
		if !domain.Overlaps(iv.Start, iv.End, windowStart, windowEnd) {
			continue
		}
		out = append(out, iv)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Start.Before(out[j].Start)
	})
	return out, nil
}

// confirmed loads the members of the craftsman's confirmed set that are
// still CONFIRMED.
func (r *AppointmentRepo) confirmed(ctx context.Context, c keyReader, craftsmanID string) ([]domain.AppointmentRequest, error) {
	members, err := c.SMembers(ctx, r.confirmedKey(craftsmanID)).Result()
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, nil
	}

	keys := make([]string, 0, len(members))
	for _, m := range members {
		id, err := uuid.Parse(m)
		if err != nil {
			continue
		}
		keys = append(keys, r.appointmentKey(id))
	}
	if len(keys) == 0 {
		return nil, nil
	}

	values, err := c.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	out := make([]domain.AppointmentRequest, 0, len(values))
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var appt domain.AppointmentRequest
		if err := json.Unmarshal([]byte(s), &appt); err != nil {
			return nil, fmt.Errorf("decode appointment: %w", err)
		}
		if appt.CraftsmanID != craftsmanID {
			continue
		}
		if _, ok := appt.ConfirmedInterval(); !ok {
			continue
		}
		out = append(out, appt)
	}
	return out, nil
}

func (r *AppointmentRepo) InCraftsmanTransaction(ctx context.Context, craftsmanID string, fn func(ctx context.Context, tx store.BookingTx) error) error {
	release, err := r.locker.acquire(ctx, r.lockKey(craftsmanID))
	if err != nil {
		return err
	}
	defer release()

	return fn(ctx, bookingTx{repo: r})
}

func (r *AppointmentRepo) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (t bookingTx) FindByID(ctx context.Context, id uuid.UUID) (domain.AppointmentRequest, error) {
	return t.repo.FindByID(ctx, id)
}

func (t bookingTx) FindConfirmedByCraftsman(ctx context.Context, craftsmanID string, windowStart, windowEnd time.Time) ([]domain.Interval, error) {
	return t.repo.FindConfirmedByCraftsman(ctx, craftsmanID, windowStart, windowEnd)
}

func (t bookingTx) Save(ctx context.Context, appt domain.AppointmentRequest) (domain.AppointmentRequest, error) {
	r := t.repo
	key := r.appointmentKey(appt.ID)
	setKey := r.confirmedKey(appt.CraftsmanID)

	var out domain.AppointmentRequest
	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := r.load(ctx, tx, appt.ID)
		if err != nil {
			return err
		}
		if current.Version != appt.Version {
			return store.ErrConflict
		}

		next := current.Clone()
		next.Status = appt.Status
		next.ConfirmedStart = appt.ConfirmedStart
		next.ConfirmedEnd = appt.ConfirmedEnd
		next.CancellationReason = appt.CancellationReason
		next.Version = current.Version + 1
		next.UpdatedAt = r.now()

		if iv, ok := next.ConfirmedInterval(); ok {
			others, err := r.confirmed(ctx, tx, next.CraftsmanID)
			if err != nil {
				return err
			}
			for _, other := range others {
				if other.ID == next.ID {
					continue
				}
				o, _ := other.ConfirmedInterval()
				if domain.Overlaps(iv.Start, iv.End, o.Start, o.End) {
					return store.ErrOverlap
				}
			}
		}

		payload, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("encode appointment: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, payload, 0)
			if next.Status == domain.StatusConfirmed {
				p.SAdd(ctx, setKey, next.ID.String())
			} else {
				p.SRem(ctx, setKey, next.ID.String())
			}
			return nil
		})
		if err != nil {
			return err
		}
		out = next
		return nil
	}, key, setKey)
	if errors.Is(err, redis.TxFailedErr) {
		return domain.AppointmentRequest{}, store.ErrConflict
	}
	if err != nil {
		return domain.AppointmentRequest{}, err
	}
	return out, nil
}

func (r *AppointmentRepo) load(ctx context.Context, c keyReader, id uuid.UUID) (domain.AppointmentRequest, error) {
	b, err := c.Get(ctx, r.appointmentKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.AppointmentRequest{}, store.ErrNotFound
		}
		return domain.AppointmentRequest{}, err
	}
	var appt domain.AppointmentRequest
	if err := json.Unmarshal(b, &appt); err != nil {
		return domain.AppointmentRequest{}, fmt.Errorf("decode appointment: %w", err)
	}
	return appt, nil
}
