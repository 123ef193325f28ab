// Package engine is the reservation lifecycle state machine.  Every status
// change goes through one of its operations: the operation checks the
// caller's permission, verifies the source state, applies the transition
// and appends the matching audit entry, all committed as a single record
// write.
package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/valetpark/valetpark/internal/auth"
	"github.com/valetpark/valetpark/internal/capacity"
	"github.com/valetpark/valetpark/internal/model"
	"github.com/valetpark/valetpark/internal/repository"
)

// Notifier receives the committed reservation after a successful accept.
// Delivery is best effort; a notifier failure never fails the accept.
type Notifier interface {
	ReservationConfirmed(ctx context.Context, res model.Reservation, acceptedBy string) error
}

// transitions is the allowed edge set of the state machine.  Absent
// source states are terminal.
var transitions = map[model.Status]map[model.Status]bool{
	model.StatusNew:       {model.StatusConfirmed: true, model.StatusCancelled: true},
	model.StatusConfirmed: {model.StatusArrived: true, model.StatusNoShow: true, model.StatusCancelled: true},
	model.StatusArrived:   {model.StatusCheckedOut: true},
}

// Engine guards all reservation mutations.  There is exactly one facility,
// so a single mutex serializes the accept path: two concurrent accepts
// could otherwise both observe pre-admission occupancy and jointly breach
// the daily limit.  Transitions that do not re-derive capacity run without
// the lock.
type Engine struct {
	reservations *repository.ReservationRepo
	perms        auth.PermissionTable
	limits       capacity.Limits
	notifier     Notifier
	log          *logrus.Logger

	acceptMu sync.Mutex
	now      func() time.Time
}

// New builds an Engine.  notifier may be nil when no dispatch is wired.
func New(reservations *repository.ReservationRepo, perms auth.PermissionTable, limits capacity.Limits, notifier Notifier, log *logrus.Logger) *Engine {
	return &Engine{
		reservations: reservations,
		perms:        perms,
		limits:       limits,
		notifier:     notifier,
		log:          log,
		now:          time.Now,
	}
}

// SubmitRequest carries the fields supplied by the public booking form.
// Id, booking code, status and the audit trail are assigned here, never by
// the caller.
type SubmitRequest struct {
	Arrival           time.Time
	Departure         time.Time
	VehicleCount      int
	LicensePlates     []string
	PassengerCount    int
	CarKeysHandedOver bool
	PriceCents        int64
	Invoice           *model.Invoice
}

func (r SubmitRequest) validate() error {
	if r.Arrival.IsZero() {
		return &ValidationError{Field: "arrival", Message: "required"}
	}
	if r.Departure.IsZero() {
		return &ValidationError{Field: "departure", Message: "required"}
	}
	if !r.Departure.After(r.Arrival) {
		return &ValidationError{Field: "departure", Message: "must be after arrival"}
	}
	if r.VehicleCount < 1 || r.VehicleCount > 5 {
		return &ValidationError{Field: "vehicle_count", Message: "must be between 1 and 5"}
	}
	if len(r.LicensePlates) != r.VehicleCount {
		return &ValidationError{Field: "license_plates", Message: "one plate per vehicle required"}
	}
	for _, plate := range r.LicensePlates {
		if strings.TrimSpace(plate) == "" {
			return &ValidationError{Field: "license_plates", Message: "plates must not be empty"}
		}
	}
	if r.PassengerCount < 0 {
		return &ValidationError{Field: "passenger_count", Message: "must not be negative"}
	}
	if r.PriceCents < 0 {
		return &ValidationError{Field: "price_cents", Message: "must not be negative"}
	}
	return nil
}

// Submit creates a reservation in status new from a booking submission.
// The initial audit entry is attributed to the system operator since no
// authenticated actor is involved.
func (e *Engine) Submit(ctx context.Context, req SubmitRequest) (model.Reservation, error) {
	if err := req.validate(); err != nil {
		return model.Reservation{}, err
	}
	res := model.Reservation{
		Arrival:           req.Arrival,
		Departure:         req.Departure,
		VehicleCount:      req.VehicleCount,
		LicensePlates:     req.LicensePlates,
		PassengerCount:    req.PassengerCount,
		CarKeysHandedOver: req.CarKeysHandedOver,
		PriceCents:        req.PriceCents,
		PaymentStatus:     model.PaymentUnpaid,
		Status:            model.StatusNew,
		Invoice:           req.Invoice,
		Audit: []model.StatusChangeRecord{{
			To:       model.StatusNew,
			Action:   model.ActionSubmit,
			At:       e.now().UTC(),
			Operator: model.SystemOperator,
		}},
	}
	if err := e.reservations.Create(ctx, &res); err != nil {
		return model.Reservation{}, &StorageError{Op: "submit", Err: err}
	}
	e.log.WithFields(logrus.Fields{
		"reservation_id": res.ID,
		"booking_code":   res.BookingCode,
	}).Info("reservation submitted")
	return res, nil
}

// Accept admits a reservation, moving it from new to confirmed.  The
// capacity evaluator decides admissibility over the reservation's full
// stay; an inadmissible range returns a CapacityConflictError with the
// day-by-day breakdown and leaves the record untouched.  With override set,
// the actor additionally needs the force-accept permission and the
// reservation is admitted above the limit, flagged and audited with the
// days that were over.
func (e *Engine) Accept(ctx context.Context, actor auth.Actor, id string, override bool) (model.Reservation, error) {
	if err := e.requirePerm(actor, auth.PermEditReservations); err != nil {
		return model.Reservation{}, err
	}
	if override {
		if err := e.requirePerm(actor, auth.PermForceAccept); err != nil {
			return model.Reservation{}, err
		}
	}

	// Serialize read-evaluate-write so concurrent accepts cannot both
	// admit against the same free capacity.
	e.acceptMu.Lock()
	defer e.acceptMu.Unlock()

	res, err := e.load(ctx, id)
	if err != nil {
		return model.Reservation{}, err
	}
	if res.Status != model.StatusNew {
		return model.Reservation{}, &InvalidTransitionError{
			ReservationID: id, Current: res.Status, Requested: model.StatusConfirmed,
		}
	}

	holding, err := e.reservations.ListHolding(ctx)
	if err != nil {
		return model.Reservation{}, &StorageError{Op: "accept", Err: err}
	}
	existing := holding[:0]
	for _, h := range holding {
		if h.ID != res.ID {
			existing = append(existing, h)
		}
	}
	eval := capacity.Evaluate(capacity.Request{
		Arrival:           res.Arrival,
		Departure:         res.Departure,
		VehicleCount:      res.VehicleCount,
		CarKeysHandedOver: res.CarKeysHandedOver,
	}, existing, e.limits)

	action := model.ActionAccept
	reason := ""
	if !eval.Admissible {
		if !override {
			return model.Reservation{}, &CapacityConflictError{ReservationID: id, Evaluation: eval}
		}
		res.CapacityOverride = true
		action = model.ActionAcceptWithOverride
		reason = "over limit on " + formatDays(eval.OverLimitDays())
	}

	res.Audit = append(res.Audit, model.StatusChangeRecord{
		From:     model.StatusNew,
		To:       model.StatusConfirmed,
		Action:   action,
		At:       e.now().UTC(),
		Operator: actor.Username,
		Reason:   reason,
	})
	res.Status = model.StatusConfirmed
	if err := e.reservations.Update(ctx, &res); err != nil {
		return model.Reservation{}, &StorageError{Op: "accept", Err: err}
	}

	e.log.WithFields(logrus.Fields{
		"reservation_id": res.ID,
		"action":         action,
		"operator":       actor.Username,
	}).Info("reservation accepted")

	if e.notifier != nil {
		if err := e.notifier.ReservationConfirmed(ctx, res, actor.Username); err != nil {
			e.log.WithError(err).WithField("reservation_id", res.ID).
				Warn("confirmation notification failed")
		}
	}
	return res, nil
}

// Cancel moves a new or confirmed reservation to cancelled.  A non-empty
// reason is mandatory.  Cancelling a confirmed reservation releases its
// capacity, the same way a no-show does.
func (e *Engine) Cancel(ctx context.Context, actor auth.Actor, id, reason string) (model.Reservation, error) {
	if strings.TrimSpace(reason) == "" {
		return model.Reservation{}, &ValidationError{Field: "reason", Message: "required for cancel"}
	}
	return e.transition(ctx, actor, id, model.StatusCancelled, model.ActionCancel, reason, nil)
}

// MarkArrived moves a confirmed reservation to arrived and stamps the
// arrival time once.  No capacity check runs: the spots are held since the
// accept.
func (e *Engine) MarkArrived(ctx context.Context, actor auth.Actor, id string) (model.Reservation, error) {
	return e.transition(ctx, actor, id, model.StatusArrived, model.ActionMarkArrived, "",
		func(res *model.Reservation, now time.Time) {
			if res.ArrivedAt == nil {
				res.ArrivedAt = &now
			}
		})
}

// MarkNoShow moves a confirmed reservation to no-show, releasing its
// capacity.  A non-empty reason is mandatory.
func (e *Engine) MarkNoShow(ctx context.Context, actor auth.Actor, id, reason string) (model.Reservation, error) {
	if strings.TrimSpace(reason) == "" {
		return model.Reservation{}, &ValidationError{Field: "reason", Message: "required for no-show"}
	}
	return e.transition(ctx, actor, id, model.StatusNoShow, model.ActionMarkNoShow, reason, nil)
}

// Checkout moves an arrived reservation to checked-out, stamps the
// checkout time once and releases the capacity.
func (e *Engine) Checkout(ctx context.Context, actor auth.Actor, id string) (model.Reservation, error) {
	return e.transition(ctx, actor, id, model.StatusCheckedOut, model.ActionCheckout, "",
		func(res *model.Reservation, now time.Time) {
			if res.CheckedOutAt == nil {
				res.CheckedOutAt = &now
			}
		})
}

// PreviewCapacity evaluates a hypothetical stay without touching any
// record, for availability displays and pre-submission checks.
func (e *Engine) PreviewCapacity(ctx context.Context, actor auth.Actor, req capacity.Request) (capacity.Evaluation, error) {
	if err := e.requirePerm(actor, auth.PermViewReservations); err != nil {
		return capacity.Evaluation{}, err
	}
	if !req.Departure.After(req.Arrival) {
		return capacity.Evaluation{}, &ValidationError{Field: "departure", Message: "must be after arrival"}
	}
	if req.VehicleCount < 1 {
		return capacity.Evaluation{}, &ValidationError{Field: "vehicle_count", Message: "must be at least 1"}
	}
	holding, err := e.reservations.ListHolding(ctx)
	if err != nil {
		return capacity.Evaluation{}, &StorageError{Op: "preview", Err: err}
	}
	return capacity.Evaluate(req, holding, e.limits), nil
}

// transition applies one guarded state change.  The status update, the
// appended audit entry and any extra mutation land in a single record
// write, so either all of them are observable or none.
func (e *Engine) transition(ctx context.Context, actor auth.Actor, id string, to model.Status, action model.Action, reason string, mutate func(*model.Reservation, time.Time)) (model.Reservation, error) {
	if err := e.requirePerm(actor, auth.PermEditReservations); err != nil {
		return model.Reservation{}, err
	}
	res, err := e.load(ctx, id)
	if err != nil {
		return model.Reservation{}, err
	}
	if !transitions[res.Status][to] {
		return model.Reservation{}, &InvalidTransitionError{
			ReservationID: id, Current: res.Status, Requested: to,
		}
	}

	now := e.now().UTC()
	res.Audit = append(res.Audit, model.StatusChangeRecord{
		From:     res.Status,
		To:       to,
		Action:   action,
		At:       now,
		Operator: actor.Username,
		Reason:   reason,
	})
	res.Status = to
	if mutate != nil {
		mutate(&res, now)
	}
	if err := e.reservations.Update(ctx, &res); err != nil {
		return model.Reservation{}, &StorageError{Op: string(action), Err: err}
	}

	e.log.WithFields(logrus.Fields{
		"reservation_id": res.ID,
		"action":         action,
		"status":         to,
		"operator":       actor.Username,
	}).Info("reservation transitioned")
	return res, nil
}

func (e *Engine) requirePerm(actor auth.Actor, perm auth.Permission) error {
	if !e.perms.Allows(actor.Role, perm) {
		return &auth.AuthorizationError{
			Reason:             "role " + string(actor.Role) + " lacks permission",
			RequiredPermission: perm,
		}
	}
	return nil
}

func (e *Engine) load(ctx context.Context, id string) (model.Reservation, error) {
	res, err := e.reservations.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Reservation{}, &NotFoundError{ReservationID: id}
	}
	if err != nil {
		return model.Reservation{}, &StorageError{Op: "load", Err: err}
	}
	return res, nil
}

func formatDays(days []time.Time) string {
	parts := make([]string, len(days))
	for i, d := range days {
		parts[i] = d.Format("2006-01-02")
	}
	return strings.Join(parts, ", ")
}
