// Package invoice turns payment confirmations into the canonical invoice
// of a reservation.
package invoice

import (
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/event-reservation-engine/internal/model"
)

// BusinessZone is the fixed offset invoices are issued in.
var BusinessZone = time.FixedZone("UTC-5", -5*60*60)

// MethodPending labels invoices whose payment method is still unknown.
const MethodPending = "pendiente"

var (
	canceledStatuses = set("cancelado", "cancelada", "rechazado", "rejected", "failed", "fail", "error")
	paidStatuses     = set("paid", "pagado", "pagada", "approved", "aprobado", "aprobada",
		"completed", "completado", "success", "succeeded", "exitoso", "confirmed", "confirmado")
)

// methodRules are checked in order; the first label whose keyword appears
// in a hint wins.
var methodRules = []struct {
	label    string
	keywords []string
}{
	{"PayPal", []string{"paypal"}},
	{"Efectivo", []string{"cash", "efectivo", "deposit", "deposito", "depósito"}},
	{"Transferencia", []string{"transfer"}},
	{"Tarjeta", []string{"card", "tarjeta", "credit", "credito", "crédito", "visa"}},
}

// Result is the canonical outcome of a payment confirmation.
type Result struct {
	AuthorizationNumber string
	Method              string
	State               string
	IssuedAt            time.Time
	PaidAt              *time.Time
}

// Normalize derives the invoice state of reservationID from p at now.
func Normalize(p Payment, reservationID uint64, now time.Time) Result {
	issued := now.In(BusinessZone)
	r := Result{
		AuthorizationNumber: p.AuthorizationNumber,
		Method:              strings.TrimSpace(p.Method),
		State:               State(p),
		IssuedAt:            issued,
	}
	if r.AuthorizationNumber == "" {
		r.AuthorizationNumber = fmt.Sprintf("AUTO-%d-%d", reservationID, now.UnixMilli())
	}
	if r.Method == "" {
		r.Method = InferMethod(p.Hints...)
	}
	if r.State == model.PaymentPaid {
		r.PaidAt = &issued
	}
	return r
}

// State classifies p as canceled, paid or pending, in that precedence.
func State(p Payment) string {
	status := strings.ToLower(strings.TrimSpace(p.Status))
	if _, ok := canceledStatuses[status]; ok {
		return model.PaymentCanceled
	}
	_, paidStatus := paidStatuses[status]
	if (p.Success != nil && *p.Success) || paidStatus || p.ReceiptNumber != "" || p.TransactionID != "" {
		return model.PaymentPaid
	}
	return model.PaymentPending
}

// InferMethod maps free-text hints onto a method label.
func InferMethod(hints ...string) string {
	text := strings.ToLower(strings.Join(hints, " "))
	if strings.TrimSpace(text) == "" {
		return MethodPending
	}
	for _, rule := range methodRules {
		for _, kw := range rule.keywords {
			if strings.Contains(text, kw) {
				return rule.label
			}
		}
	}
	return MethodPending
}

// Build assembles the invoice row of a reservation.
func Build(reservationID uint64, p Payment, subtotal, tax, total float64, now time.Time) model.Invoice {
	r := Normalize(p, reservationID, now)
	return model.Invoice{
		ReservationID:       reservationID,
		AuthorizationNumber: r.AuthorizationNumber,
		PaymentMethod:       r.Method,
		Subtotal:            subtotal,
		Tax:                 tax,
		Total:               total,
		PaymentState:        r.State,
		IssuedAt:            r.IssuedAt,
		PaidAt:              r.PaidAt,
	}
}

func set(vals ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(vals))
	for _, v := range vals {
		m[v] = struct{}{}
	}
	return m
}
