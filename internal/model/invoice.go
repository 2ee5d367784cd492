package model

import "time"

// Payment states of an invoice.
const (
	PaymentPending  = "pending"
	PaymentPaid     = "paid"
	PaymentCanceled = "canceled"
)

// Invoice is the single financial record of a reservation. ReservationID is
// unique, so writing an invoice twice for one reservation updates it in place.
//
// Fields:
//  AuthorizationNumber – gateway authorisation, or a generated AUTO-… value.
//  PaymentMethod       – display label of the payment method.
//  PaymentState        – pending, paid or canceled.
//  IssuedAt            – issue time in the UTC-5 business zone.
//  PaidAt              – equal to IssuedAt when paid, nil otherwise.
type Invoice struct {
	ID                  uint64     // invoice.id
	ReservationID       uint64     // invoice.reservation_id
	AuthorizationNumber string     // invoice.authorization_number
	PaymentMethod       string     // invoice.payment_method
	Subtotal            float64    // invoice.subtotal
	Tax                 float64    // invoice.tax
	Total               float64    // invoice.total
	PaymentState        string     // invoice.payment_state
	IssuedAt            time.Time  // invoice.issued_at
	PaidAt              *time.Time // invoice.paid_at
}
