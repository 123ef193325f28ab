package queue

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/valetpark/valetpark/internal/model"
)

const confirmedQueueName = "reservation.confirmed"

// Publisher sends reservation events to RabbitMQ.  It dials per publish,
// which keeps it free of connection state; the accept path tolerates a
// failed publish, so robustness beats throughput here.
type Publisher struct {
	url string
	log *logrus.Logger
}

// NewPublisher returns a Publisher for the given AMQP URL.
func NewPublisher(url string, log *logrus.Logger) *Publisher {
	return &Publisher{url: url, log: log}
}

// ReservationConfirmed publishes a persistent ReservationConfirmedEvent to
// the reservation.confirmed queue.  Errors are logged and returned; the
// caller decides whether to ignore them.
func (p *Publisher) ReservationConfirmed(ctx context.Context, res model.Reservation, acceptedBy string) error {
	event := ReservationConfirmedEvent{
		ReservationID:     res.ID,
		BookingCode:       res.BookingCode,
		Arrival:           res.Arrival.UTC().Format(time.RFC3339),
		Departure:         res.Departure.UTC().Format(time.RFC3339),
		VehicleCount:      res.VehicleCount,
		LicensePlates:     res.LicensePlates,
		PassengerCount:    res.PassengerCount,
		CarKeysHandedOver: res.CarKeysHandedOver,
		CapacityOverride:  res.CapacityOverride,
		PriceCents:        res.PriceCents,
		AcceptedBy:        acceptedBy,
		ConfirmedAt:       res.UpdatedAt.UTC().Format(time.RFC3339),
	}

	conn, err := amqp.Dial(p.url)
	if err != nil {
		p.log.WithError(err).Error("rabbitmq dial failed")
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.log.WithError(err).Error("rabbitmq channel open failed")
		return err
	}
	defer func() { _ = ch.Close() }()

	// Durable so confirmations survive a broker restart.
	if _, err := ch.QueueDeclare(confirmedQueueName, true, false, false, false, nil); err != nil {
		p.log.WithError(err).Error("rabbitmq queue declare failed")
		return err
	}

	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", confirmedQueueName, false, false, pub); err != nil {
		p.log.WithError(err).Error("rabbitmq publish failed")
		return err
	}
	return nil
}
