// Package queue defines message payloads exchanged over the message broker
// and the audit consumer that records them.
package queue

// ReservationCreatedQueue is the default queue reservation events go to.
const ReservationCreatedQueue = "reservation.created"

// ReservationCreatedEvent is published after a reservation transaction
// commits. It carries enough for downstream consumers to log, notify or
// trigger analytics without querying the primary database.
type ReservationCreatedEvent struct {
	ReservationID uint64   `json:"reservation_id"`
	EventID       uint64   `json:"event_id"`
	InvoiceID     uint64   `json:"invoice_id"`
	UserID        uint64   `json:"user_id"`
	EventName     string   `json:"event_name"`
	StartsAt      string   `json:"starts_at"`
	EndsAt        string   `json:"ends_at"`
	ProviderIDs   []uint64 `json:"provider_ids"`
	GuestCount    int      `json:"guest_count"`
	Subtotal      float64  `json:"subtotal"`
	Tax           float64  `json:"tax"`
	Total         float64  `json:"total"`
	PaymentState  string   `json:"payment_state"`
	PaymentMethod string   `json:"payment_method"`
	CreatedAt     string   `json:"created_at"`
}
