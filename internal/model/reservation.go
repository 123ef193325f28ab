package model

import "time"

// Status enumerates the lifecycle states of a reservation.  A reservation
// starts as StatusNew when the booking form is submitted and moves through
// the state machine via engine-guarded transitions only.
//
// Allowed transitions:
//
//	new       -> confirmed | cancelled
//	confirmed -> arrived | no-show | cancelled
//	arrived   -> checked-out
//
// checked-out, no-show and cancelled are terminal.
type Status string

const (
	StatusNew        Status = "new"
	StatusConfirmed  Status = "confirmed"
	StatusArrived    Status = "arrived"
	StatusCheckedOut Status = "checked-out"
	StatusNoShow     Status = "no-show"
	StatusCancelled  Status = "cancelled"
)

// Valid reports whether s is one of the known lifecycle states.
func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusConfirmed, StatusArrived, StatusCheckedOut, StatusNoShow, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition is allowed out of s.
func (s Status) Terminal() bool {
	return s == StatusCheckedOut || s == StatusNoShow || s == StatusCancelled
}

// HoldsCapacity reports whether a reservation in state s occupies parking
// capacity.  Only confirmed and arrived reservations count against the
// daily limits; cancelled and no-show bookings release their spots.
func (s Status) HoldsCapacity() bool {
	return s == StatusConfirmed || s == StatusArrived
}

// Action tags identify which operation produced a status change.  They are
// recorded verbatim in the audit trail.
type Action string

const (
	ActionSubmit             Action = "submit"
	ActionAccept             Action = "accept"
	ActionAcceptWithOverride Action = "accept-with-override"
	ActionCancel             Action = "cancel"
	ActionMarkArrived        Action = "mark-arrived"
	ActionMarkNoShow         Action = "mark-no-show"
	ActionCheckout           Action = "checkout"
)

// PaymentStatus enumerates the payment states tracked on a reservation.
type PaymentStatus string

const (
	PaymentUnpaid  PaymentStatus = "unpaid"
	PaymentPaid    PaymentStatus = "paid"
	PaymentPending PaymentStatus = "pending"
	PaymentFailed  PaymentStatus = "failed"
	PaymentManual  PaymentStatus = "manual"
)

// Valid reports whether p is a known payment status.
func (p PaymentStatus) Valid() bool {
	switch p {
	case PaymentUnpaid, PaymentPaid, PaymentPending, PaymentFailed, PaymentManual:
		return true
	}
	return false
}

// SystemOperator is recorded as the operator of audit entries that were not
// produced by a logged-in user, such as the initial submission.
const SystemOperator = "system"

// StatusChangeRecord is a single append-only entry in a reservation's audit
// trail.  The From field of the very first entry is empty because the
// submission creates the record rather than transitioning it.
type StatusChangeRecord struct {
	From     Status    `json:"from"`
	To       Status    `json:"to"`
	Action   Action    `json:"action"`
	At       time.Time `json:"at"`
	Operator string    `json:"operator"`
	Reason   string    `json:"reason,omitempty"`
}

// Invoice carries the billing details of a reservation.  It is present only
// when the customer asked for an invoice; all fields stay absent otherwise.
type Invoice struct {
	CompanyName string `json:"company_name"`
	VATNumber   string `json:"vat_number,omitempty"`
	Street      string `json:"street"`
	PostalCode  string `json:"postal_code"`
	City        string `json:"city"`
	Country     string `json:"country"`
}

// Reservation is the aggregate stored per booking.  The audit trail is
// embedded in the record so that a status change and its audit entry are
// always written together in one store operation.
type Reservation struct {
	ID          string `json:"id"`
	BookingCode string `json:"booking_code"`

	Arrival   time.Time `json:"arrival"`
	Departure time.Time `json:"departure"`

	VehicleCount      int      `json:"vehicle_count"`
	LicensePlates     []string `json:"license_plates"`
	PassengerCount    int      `json:"passenger_count"`
	CarKeysHandedOver bool     `json:"car_keys_handed_over"`
	CapacityOverride  bool     `json:"capacity_override"`

	PriceCents    int64         `json:"price_cents"`
	PaymentStatus PaymentStatus `json:"payment_status"`

	Status Status               `json:"status"`
	Audit  []StatusChangeRecord `json:"audit"`

	Invoice *Invoice `json:"invoice,omitempty"`

	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	ArrivedAt    *time.Time `json:"arrived_at,omitempty"`
	CheckedOutAt *time.Time `json:"checked_out_at,omitempty"`
}

// ReplayStatus walks the audit trail in order and returns the status it
// reconstructs.  The boolean is false when the trail is empty or the chain
// is broken, that is when an entry's From does not match the To of the
// entry before it.  For a consistent record the result always equals the
// stored Status field.
func (r *Reservation) ReplayStatus() (Status, bool) {
	if len(r.Audit) == 0 {
		return "", false
	}
	if r.Audit[0].From != "" || r.Audit[0].To != StatusNew {
		return "", false
	}
	current := r.Audit[0].To
	for _, rec := range r.Audit[1:] {
		if rec.From != current {
			return "", false
		}
		current = rec.To
	}
	return current, true
}
