package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/valetpark/valetpark/internal/model"
	"github.com/valetpark/valetpark/internal/store"
	"github.com/valetpark/valetpark/internal/utils"
)

// Key layout used by ReservationRepo.  The record under reservationKey is
// the source of truth; the index keys exist only to list by status or
// payment status without deserializing every record.  Index values hold the
// reservation id.
const (
	reservationKeyPrefix  = "reservation:"
	statusIndexKeyPrefix  = "index:reservation:status:"
	paymentIndexKeyPrefix = "index:reservation:payment:"
)

func reservationKey(id string) string { return reservationKeyPrefix + id }

func statusIndexKey(s model.Status, id string) string {
	return fmt.Sprintf("%s%s:%s", statusIndexKeyPrefix, s, id)
}

func paymentIndexKey(p model.PaymentStatus, id string) string {
	return fmt.Sprintf("%s%s:%s", paymentIndexKeyPrefix, p, id)
}

// ReservationRepo provides CRUD over reservation records.  A reservation is
// one key in the store, so a status change together with its appended audit
// entry is always a single atomic write.
type ReservationRepo struct {
	store store.Store
}

// NewReservationRepo returns a ReservationRepo bound to the given store.
func NewReservationRepo(s store.Store) *ReservationRepo { return &ReservationRepo{store: s} }

// Create persists a new reservation.  It assigns the id, the human-facing
// booking code and the created/updated timestamps.  Status and the initial
// audit entry are expected to be set by the caller.
func (r *ReservationRepo) Create(ctx context.Context, res *model.Reservation) error {
	if res.ID == "" {
		res.ID = uuid.NewString()
	}
	if res.BookingCode == "" {
		res.BookingCode = utils.NewBookingCode(time.Now().UTC())
	}
	now := time.Now().UTC()
	res.CreatedAt = now
	res.UpdatedAt = now
	return r.write(ctx, res, nil)
}

// GetByID loads a reservation.  ErrNotFound is returned for unknown ids.
func (r *ReservationRepo) GetByID(ctx context.Context, id string) (model.Reservation, error) {
	raw, err := r.store.Get(ctx, reservationKey(id))
	if errors.Is(err, store.ErrKeyNotFound) {
		return model.Reservation{}, ErrNotFound
	}
	if err != nil {
		return model.Reservation{}, err
	}
	var res model.Reservation
	if err := json.Unmarshal(raw, &res); err != nil {
		return model.Reservation{}, fmt.Errorf("decode reservation %s: %w", id, err)
	}
	return res, nil
}

// Update overwrites a reservation record and bumps UpdatedAt.  Index keys
// are moved when status or payment status changed since the last write.
func (r *ReservationRepo) Update(ctx context.Context, res *model.Reservation) error {
	prev, err := r.GetByID(ctx, res.ID)
	if err != nil {
		return err
	}
	res.UpdatedAt = time.Now().UTC()
	return r.write(ctx, res, &prev)
}

// Delete removes a reservation and its index entries.  This is the
// administrative hard delete; lifecycle transitions never call it.
func (r *ReservationRepo) Delete(ctx context.Context, id string) error {
	res, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := r.store.Delete(ctx, statusIndexKey(res.Status, id)); err != nil {
		return err
	}
	if err := r.store.Delete(ctx, paymentIndexKey(res.PaymentStatus, id)); err != nil {
		return err
	}
	return r.store.Delete(ctx, reservationKey(id))
}

// ListAll returns every stored reservation ordered by id.
func (r *ReservationRepo) ListAll(ctx context.Context) ([]model.Reservation, error) {
	raws, err := r.store.ScanPrefix(ctx, reservationKeyPrefix)
	if err != nil {
		return nil, err
	}
	return decodeAll(raws)
}

// ListByStatus returns the reservations currently in the given status.
func (r *ReservationRepo) ListByStatus(ctx context.Context, s model.Status) ([]model.Reservation, error) {
	ids, err := r.store.ScanPrefix(ctx, statusIndexKeyPrefix+string(s)+":")
	if err != nil {
		return nil, err
	}
	return r.resolve(ctx, ids)
}

// ListByPaymentStatus returns the reservations in the given payment status.
func (r *ReservationRepo) ListByPaymentStatus(ctx context.Context, p model.PaymentStatus) ([]model.Reservation, error) {
	ids, err := r.store.ScanPrefix(ctx, paymentIndexKeyPrefix+string(p)+":")
	if err != nil {
		return nil, err
	}
	return r.resolve(ctx, ids)
}

// ListHolding returns all reservations that currently hold capacity, that
// is confirmed or arrived ones.  The capacity evaluator re-reads this set
// on every admission decision; no in-memory copy is authoritative.
func (r *ReservationRepo) ListHolding(ctx context.Context) ([]model.Reservation, error) {
	all, err := r.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	holding := all[:0]
	for _, res := range all {
		if res.Status.HoldsCapacity() {
			holding = append(holding, res)
		}
	}
	return holding, nil
}

// write stores the record and reconciles index keys against prev (nil on
// first write).  The record write happens before index maintenance so a
// failure in between never loses reservation data, only leaves a stale
// index entry behind.
func (r *ReservationRepo) write(ctx context.Context, res *model.Reservation, prev *model.Reservation) error {
	raw, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encode reservation %s: %w", res.ID, err)
	}
	if err := r.store.Set(ctx, reservationKey(res.ID), raw); err != nil {
		return err
	}
	if prev != nil && prev.Status != res.Status {
		if err := r.store.Delete(ctx, statusIndexKey(prev.Status, res.ID)); err != nil {
			return err
		}
	}
	if prev != nil && prev.PaymentStatus != res.PaymentStatus {
		if err := r.store.Delete(ctx, paymentIndexKey(prev.PaymentStatus, res.ID)); err != nil {
			return err
		}
	}
	if err := r.store.Set(ctx, statusIndexKey(res.Status, res.ID), []byte(res.ID)); err != nil {
		return err
	}
	return r.store.Set(ctx, paymentIndexKey(res.PaymentStatus, res.ID), []byte(res.ID))
}

// resolve turns a list of id index values into full records.  Ids whose
// record disappeared since the scan are skipped.
func (r *ReservationRepo) resolve(ctx context.Context, ids [][]byte) ([]model.Reservation, error) {
	out := make([]model.Reservation, 0, len(ids))
	for _, id := range ids {
		res, err := r.GetByID(ctx, string(id))
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, nil
}

func decodeAll(raws [][]byte) ([]model.Reservation, error) {
	out := make([]model.Reservation, 0, len(raws))
	for _, raw := range raws {
		var res model.Reservation
		if err := json.Unmarshal(raw, &res); err != nil {
			return nil, fmt.Errorf("decode reservation: %w", err)
		}
		out = append(out, res)
	}
	return out, nil
}
