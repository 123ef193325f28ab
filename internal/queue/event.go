// Package queue defines the messages exchanged over the broker and the
// publisher/consumer pair around them.
package queue

// ReservationConfirmedEvent is published after an accept has committed.
// It carries everything a downstream notifier needs to format a
// confirmation without reading the primary store.
type ReservationConfirmedEvent struct {
	ReservationID     string   `json:"reservation_id"`
	BookingCode       string   `json:"booking_code"`
	Arrival           string   `json:"arrival"`
	Departure         string   `json:"departure"`
	VehicleCount      int      `json:"vehicle_count"`
	LicensePlates     []string `json:"license_plates"`
	PassengerCount    int      `json:"passenger_count"`
	CarKeysHandedOver bool     `json:"car_keys_handed_over"`
	CapacityOverride  bool     `json:"capacity_override"`
	PriceCents        int64    `json:"price_cents"`
	AcceptedBy        string   `json:"accepted_by"`
	ConfirmedAt       string   `json:"confirmed_at"`
}
