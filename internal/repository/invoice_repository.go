package repository

import (
	"context"

	"github.com/iliyamo/event-reservation-engine/internal/database"
	"github.com/iliyamo/event-reservation-engine/internal/model"
)

var invoiceColumns = []string{
	"reservation_id", "authorization_number", "payment_method",
	"subtotal", "tax", "total", "payment_state", "issued_at", "paid_at",
}

// InvoiceRepo writes the single invoice of a reservation.
type InvoiceRepo struct {
	dialect database.Dialect
}

func NewInvoiceRepo(d database.Dialect) *InvoiceRepo { return &InvoiceRepo{dialect: d} }

// UpsertTx inserts inv, or overwrites every financial and state field of the
// invoice already stored for inv.ReservationID. It sets inv.ID to the id of
// the surviving row.
func (r *InvoiceRepo) UpsertTx(ctx context.Context, tx database.Querier, inv *model.Invoice) error {
	q := insertSQL("invoice", invoiceColumns) + r.dialect.UpsertClause("reservation_id", invoiceColumns[1:])
	var paidAt any
	if inv.PaidAt != nil {
		paidAt = *inv.PaidAt
	}
	_, err := tx.ExecContext(ctx, r.dialect.Rebind(q),
		inv.ReservationID, inv.AuthorizationNumber, inv.PaymentMethod,
		inv.Subtotal, inv.Tax, inv.Total, inv.PaymentState, inv.IssuedAt, paidAt,
	)
	if err != nil {
		return r.dialect.Classify(err)
	}

	// read back the id; on update neither driver reports it reliably
	const sel = `SELECT id FROM invoice WHERE reservation_id = ?`
	if err := tx.QueryRowContext(ctx, r.dialect.Rebind(sel), inv.ReservationID).Scan(&inv.ID); err != nil {
		return r.dialect.Classify(err)
	}
	return nil
}
