package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// StartConfirmationConsumer consumes reservation.confirmed events and
// appends a one-line record per confirmation to logs/notifications.log.
// It stands in for the outbound mail dispatcher, which is a separate
// system.  The function runs a reconnect loop with capped backoff and is
// meant to be started in its own goroutine.
func StartConfirmationConsumer(url string, log *logrus.Logger) {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(url)
		if err != nil {
			log.WithError(err).Warnf("confirmation consumer: dial failed, retrying in %s", backoff)
			time.Sleep(backoff)
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		if err := consumeLoop(conn, log); err != nil {
			log.WithError(err).Warn("confirmation consumer: loop ended, reconnecting")
			_ = conn.Close()
			time.Sleep(2 * time.Second)
		}
	}
}

func consumeLoop(conn *amqp.Connection, log *logrus.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(confirmedQueueName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(confirmedQueueName, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for d := range msgs {
		if err := recordConfirmation(d.Body); err != nil {
			log.WithError(err).Warn("confirmation consumer: message rejected")
			_ = d.Nack(false, false) // do not requeue, avoids a tight redelivery loop
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

func recordConfirmation(body []byte) error {
	var ev ReservationConfirmedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if err := os.MkdirAll("logs", 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(filepath.Join("logs", "notifications.log"),
		os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer func() { _ = f.Close() }()

	line := fmt.Sprintf("%s confirmed %s: %s to %s, %d vehicle(s) [%s], accepted by %s",
		ev.ConfirmedAt, ev.BookingCode, ev.Arrival, ev.Departure,
		ev.VehicleCount, strings.Join(ev.LicensePlates, " "), ev.AcceptedBy)
	if ev.CapacityOverride {
		line += " (capacity override)"
	}
	_, err = f.WriteString(line + "\n")
	return err
}
