package queue

import (
	"context"
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

// AuditConsumer appends every reservation.created message to a flat audit
// log, one line per reservation.
type AuditConsumer struct {
	URL     string
	Queue   string
	LogPath string
	Log     *logrus.Logger
}

// Run connects to the broker, declares the queue and consumes until ctx is
// cancelled. Connection failures are retried with exponential backoff capped
// at 30s. Messages that cannot be handled are rejected without requeue so a
// poison message cannot spin the loop.
func (a *AuditConsumer) Run(ctx context.Context) error {
	if a.Queue == "" {
		a.Queue = ReservationCreatedQueue
	}
	if a.Log == nil {
		a.Log = logrus.StandardLogger()
	}
	log := a.Log.WithField("queue", a.Queue)

	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := amqp.Dial(a.URL)
		if err != nil {
			log.WithError(err).Warnf("[audit] dial failed; retrying in %s", backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = a.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.WithError(err).Warn("[audit] consume loop ended; reconnecting")
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func (a *AuditConsumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		a.Log.WithError(err).Warn("[audit] set QoS failed")
	}
	if _, err := ch.QueueDeclare(a.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(a.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := a.handle(d.Body); err != nil {
				a.Log.WithError(err).WithField("message_id", d.MessageId).Error("[audit] handle message failed")
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (a *AuditConsumer) handle(body []byte) error {
	var ev ReservationCreatedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.ReservationID == 0 {
		return errors.New("missing reservation_id")
	}
	if dir := filepath.Dir(a.LogPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}
	f, err := os.OpenFile(a.LogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(FormatAuditLine(ev)); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// FormatAuditLine renders ev as a single newline-terminated log line.
func FormatAuditLine(ev ReservationCreatedEvent) string {
	ids := make([]string, len(ev.ProviderIDs))
	for i, id := range ev.ProviderIDs {
		ids[i] = fmt.Sprint(id)
	}
	return fmt.Sprintf("[%s] Reservation created | reservation_id=%d | event_id=%d | invoice_id=%d | user_id=%d | event=%q | window=%s..%s | providers=[%s] | guests=%d | subtotal=%.2f | tax=%.2f | total=%.2f | payment=%s/%s\n",
		ev.CreatedAt, ev.ReservationID, ev.EventID, ev.InvoiceID, ev.UserID, ev.EventName,
		ev.StartsAt, ev.EndsAt, strings.Join(ids, ","), ev.GuestCount,
		ev.Subtotal, ev.Tax, ev.Total, ev.PaymentMethod, ev.PaymentState)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
