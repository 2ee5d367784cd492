package model

import "time"

// Reservation is the commercial record of a booking. Total always equals
// Subtotal plus Tax.
type Reservation struct {
	ID          uint64    // reservation.id
	EventID     uint64    // reservation.event_id
	UserID      uint64    // reservation.user_id
	IdentityRef string    // reservation.identity_ref (optional column)
	GuestCount  int       // reservation.guest_count (optional column)
	Subtotal    float64   // reservation.subtotal
	Tax         float64   // reservation.tax
	Total       float64   // reservation.total
	CreatedAt   time.Time // reservation.created_at
}
