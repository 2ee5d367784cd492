// Package service holds outbound integrations of the engine.
package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/event-reservation-engine/internal/queue"
)

// AMQPPublisher sends reservation events to RabbitMQ. It dials per publish,
// which keeps it free of connection state at the volume bookings arrive.
type AMQPPublisher struct {
	url   string
	queue string
	log   *logrus.Logger
}

func NewAMQPPublisher(url, queueName string, log *logrus.Logger) *AMQPPublisher {
	if queueName == "" {
		queueName = queue.ReservationCreatedQueue
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &AMQPPublisher{url: url, queue: queueName, log: log}
}

// PublishReservationCreated publishes ev as a persistent JSON message on the
// durable reservation queue. Errors are logged and returned; callers treat
// them as non-fatal.
func (p *AMQPPublisher) PublishReservationCreated(ctx context.Context, ev queue.ReservationCreatedEvent) error {
	log := p.log.WithFields(logrus.Fields{"queue": p.queue, "reservation_id": ev.ReservationID})

	conn, err := amqp.Dial(p.url)
	if err != nil {
		log.WithError(err).Warn("[queue] dial failed")
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.WithError(err).Warn("[queue] channel open failed")
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(
		p.queue, // name
		true,    // durable
		false,   // autoDelete
		false,   // exclusive
		false,   // noWait
		nil,     // args
	); err != nil {
		log.WithError(err).Warn("[queue] queue declare failed")
		return err
	}

	msg, err := newPublishing(ev, time.Now())
	if err != nil {
		log.WithError(err).Warn("[queue] marshal event failed")
		return err
	}
	if err := ch.PublishWithContext(ctx,
		"",      // default exchange
		p.queue, // routing key = queue name
		false,   // mandatory
		false,   // immediate
		msg,
	); err != nil {
		log.WithError(err).Warn("[queue] publish failed")
		return err
	}
	log.WithField("message_id", msg.MessageId).Debug("[queue] reservation event published")
	return nil
}

func newPublishing(ev queue.ReservationCreatedEvent, now time.Time) (amqp.Publishing, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return amqp.Publishing{}, err
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Type:         "reservation.created",
		Timestamp:    now.UTC(),
		Body:         body,
	}, nil
}
