package repository

import (
	"context"
	"time"

	"github.com/iliyamo/event-reservation-engine/internal/database"
	"github.com/iliyamo/event-reservation-engine/internal/model"
	"github.com/iliyamo/event-reservation-engine/internal/schema"
)

// ReservationRepo writes the commercial record of a booking. Timestamps are
// stored in UTC.
type ReservationRepo struct {
	dialect database.Dialect
}

func NewReservationRepo(d database.Dialect) *ReservationRepo { return &ReservationRepo{dialect: d} }

// CreateTx inserts res and sets its ID and CreatedAt. identity_ref and
// guest_count are written only when cols flags them.
func (r *ReservationRepo) CreateTx(ctx context.Context, tx database.Querier, res *model.Reservation, cols schema.ReservationColumns) error {
	if res.CreatedAt.IsZero() {
		res.CreatedAt = time.Now().UTC()
	}
	names := []string{"event_id", "user_id", "subtotal", "tax", "total", "created_at"}
	args := []any{res.EventID, res.UserID, res.Subtotal, res.Tax, res.Total, res.CreatedAt.UTC()}
	if cols.IdentityRef && res.IdentityRef != "" {
		names = append(names, "identity_ref")
		args = append(args, res.IdentityRef)
	}
	if cols.GuestCount {
		names = append(names, "guest_count")
		args = append(args, res.GuestCount)
	}

	id, err := r.dialect.InsertReturningID(ctx, tx, insertSQL("reservation", names), args...)
	if err != nil {
		return err
	}
	res.ID = uint64(id)
	return nil
}
