package repository

import (
	"context"

	"github.com/iliyamo/event-reservation-engine/internal/database"
	"github.com/iliyamo/event-reservation-engine/internal/model"
)

type GuestRepo struct {
	dialect database.Dialect
}

func NewGuestRepo(d database.Dialect) *GuestRepo { return &GuestRepo{dialect: d} }

// CreateTx inserts g and sets its ID.
func (r *GuestRepo) CreateTx(ctx context.Context, tx database.Querier, g *model.Guest) error {
	const q = `INSERT INTO guest (event_id, name, email, phone, companions, notes) VALUES (?, ?, ?, ?, ?, ?)`
	id, err := r.dialect.InsertReturningID(ctx, tx, q,
		g.EventID, g.Name, nullable(g.Email), nullable(g.Phone), g.Companions, nullable(g.Notes))
	if err != nil {
		return err
	}
	g.ID = uint64(id)
	return nil
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
