package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/event-reservation-engine/internal/database"
	"github.com/iliyamo/event-reservation-engine/internal/model"
)

// ProviderBookingRepo stores provider line items and answers whether a
// provider is already booked for a window.
type ProviderBookingRepo struct {
	dialect database.Dialect
}

func NewProviderBookingRepo(d database.Dialect) *ProviderBookingRepo {
	return &ProviderBookingRepo{dialect: d}
}

// HasOverlapTx reports whether providerID already has a booking whose
// [starts_at, ends_at) window intersects [start, end). Windows that merely
// touch do not overlap. The read is a locking read so it sees bookings
// committed after a REPEATABLE READ snapshot was taken.
func (r *ProviderBookingRepo) HasOverlapTx(ctx context.Context, tx database.Querier, providerID uint64, start, end time.Time) (bool, error) {
	const q = `SELECT 1 FROM provider_booking
               WHERE provider_id = ?
                 AND starts_at IS NOT NULL AND ends_at IS NOT NULL
                 AND starts_at < ? AND ? < ends_at
               LIMIT 1`
	var one int
	err := tx.QueryRowContext(ctx, r.dialect.Rebind(q+r.dialect.ShareLock()), providerID, end.UTC(), start.UTC()).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, r.dialect.Classify(err)
	}
	return true, nil
}

// CreateTx inserts b with its already fixed price and sets its ID.
func (r *ProviderBookingRepo) CreateTx(ctx context.Context, tx database.Querier, b *model.ProviderBooking) error {
	const q = `INSERT INTO provider_booking (event_id, provider_id, category_type_id, price, starts_at, ends_at) VALUES (?, ?, ?, ?, ?, ?)`
	var typeID any
	if b.CategoryTypeID != nil {
		typeID = *b.CategoryTypeID
	}
	id, err := r.dialect.InsertReturningID(ctx, tx, q,
		b.EventID, b.ProviderID, typeID, b.Price, b.StartsAt.UTC(), b.EndsAt.UTC())
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	return nil
}
