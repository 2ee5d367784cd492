package repository

import (
	"context"
	"strings"

	"github.com/iliyamo/event-reservation-engine/internal/database"
	"github.com/iliyamo/event-reservation-engine/internal/model"
	"github.com/iliyamo/event-reservation-engine/internal/schema"
)

type EventRepo struct {
	dialect database.Dialect
}

func NewEventRepo(d database.Dialect) *EventRepo { return &EventRepo{dialect: d} }

// CreateTx inserts ev and sets its ID. Optional columns are written only when
// cols flags them and the event carries a value; the zero EventColumns
// produces the schema-safe statement with required columns only.
func (r *EventRepo) CreateTx(ctx context.Context, tx database.Querier, ev *model.Event, cols schema.EventColumns) error {
	names := []string{"name", "description", "starts_at", "ends_at", "total_price", "plan_tier", "created_by"}
	args := []any{ev.Name, ev.Description, ev.StartsAt.UTC(), ev.EndsAt.UTC(), ev.TotalPrice, ev.PlanTier, ev.CreatedBy}

	optional := []struct {
		present bool
		column  string
		value   *uint64
	}{
		{cols.CategoryID, "category_id", ev.CategoryID},
		{cols.MusicProviderID, "music_provider_id", ev.MusicProviderID},
		{cols.CateringProviderID, "catering_provider_id", ev.CateringProviderID},
		{cols.DecorProviderID, "decor_provider_id", ev.DecorProviderID},
		{cols.VenueProviderID, "venue_provider_id", ev.VenueProviderID},
	}
	for _, o := range optional {
		if o.present && o.value != nil {
			names = append(names, o.column)
			args = append(args, *o.value)
		}
	}

	id, err := r.dialect.InsertReturningID(ctx, tx, insertSQL("event", names), args...)
	if err != nil {
		return err
	}
	ev.ID = uint64(id)
	return nil
}

// insertSQL renders INSERT INTO table (cols...) VALUES (?, ...).
func insertSQL(table string, cols []string) string {
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	return "INSERT INTO " + table + " (" + strings.Join(cols, ", ") + ") VALUES (" + marks + ")"
}
