package engine

import (
	"context"
	"errors"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/valetpark/valetpark/internal/auth"
	"github.com/valetpark/valetpark/internal/model"
	"github.com/valetpark/valetpark/internal/repository"
)

// The operations in this file are administrative and sit outside the
// lifecycle state machine: they never change the status field or append
// audit entries, but they go through the same permission gate.

// Get returns a single reservation.
func (e *Engine) Get(ctx context.Context, actor auth.Actor, id string) (model.Reservation, error) {
	if err := e.requirePerm(actor, auth.PermViewReservations); err != nil {
		return model.Reservation{}, err
	}
	return e.load(ctx, id)
}

// List returns reservations, optionally filtered to one status.
func (e *Engine) List(ctx context.Context, actor auth.Actor, status model.Status) ([]model.Reservation, error) {
	if err := e.requirePerm(actor, auth.PermViewReservations); err != nil {
		return nil, err
	}
	var (
		out []model.Reservation
		err error
	)
	if status == "" {
		out, err = e.reservations.ListAll(ctx)
	} else {
		if !status.Valid() {
			return nil, &ValidationError{Field: "status", Message: "unknown status"}
		}
		out, err = e.reservations.ListByStatus(ctx, status)
	}
	if err != nil {
		return nil, &StorageError{Op: "list", Err: err}
	}
	return out, nil
}

// EditRequest carries the administratively editable fields.  Nil pointers
// leave the current value untouched.
type EditRequest struct {
	LicensePlates     []string
	PassengerCount    *int
	CarKeysHandedOver *bool
	PriceCents        *int64
	PaymentStatus     *model.PaymentStatus
	Invoice           *model.Invoice
}

// UpdateDetails applies an administrative edit to a reservation.  Status,
// audit trail and the stay dates are out of reach here; only the demand and
// payment fields can be corrected.
func (e *Engine) UpdateDetails(ctx context.Context, actor auth.Actor, id string, req EditRequest) (model.Reservation, error) {
	if err := e.requirePerm(actor, auth.PermEditReservations); err != nil {
		return model.Reservation{}, err
	}
	res, err := e.load(ctx, id)
	if err != nil {
		return model.Reservation{}, err
	}

	if req.LicensePlates != nil {
		if len(req.LicensePlates) != res.VehicleCount {
			return model.Reservation{}, &ValidationError{Field: "license_plates", Message: "one plate per vehicle required"}
		}
		for _, plate := range req.LicensePlates {
			if strings.TrimSpace(plate) == "" {
				return model.Reservation{}, &ValidationError{Field: "license_plates", Message: "plates must not be empty"}
			}
		}
		res.LicensePlates = req.LicensePlates
	}
	if req.PassengerCount != nil {
		if *req.PassengerCount < 0 {
			return model.Reservation{}, &ValidationError{Field: "passenger_count", Message: "must not be negative"}
		}
		res.PassengerCount = *req.PassengerCount
	}
	if req.CarKeysHandedOver != nil {
		res.CarKeysHandedOver = *req.CarKeysHandedOver
	}
	if req.PriceCents != nil {
		if *req.PriceCents < 0 {
			return model.Reservation{}, &ValidationError{Field: "price_cents", Message: "must not be negative"}
		}
		res.PriceCents = *req.PriceCents
	}
	if req.PaymentStatus != nil {
		if !req.PaymentStatus.Valid() {
			return model.Reservation{}, &ValidationError{Field: "payment_status", Message: "unknown payment status"}
		}
		res.PaymentStatus = *req.PaymentStatus
	}
	if req.Invoice != nil {
		res.Invoice = req.Invoice
	}

	if err := e.reservations.Update(ctx, &res); err != nil {
		return model.Reservation{}, &StorageError{Op: "update", Err: err}
	}
	return res, nil
}

// Delete removes a reservation record entirely.  This is the explicit
// administrative delete; it requires its own permission, which only admins
// hold.
func (e *Engine) Delete(ctx context.Context, actor auth.Actor, id string) error {
	if err := e.requirePerm(actor, auth.PermDeleteReservations); err != nil {
		return err
	}
	err := e.reservations.Delete(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return &NotFoundError{ReservationID: id}
	}
	if err != nil {
		return &StorageError{Op: "delete", Err: err}
	}
	e.log.WithFields(logrus.Fields{
		"reservation_id": id,
		"operator":       actor.Username,
	}).Warn("reservation deleted")
	return nil
}
