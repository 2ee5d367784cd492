package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/iliyamo/event-reservation-engine/internal/database"
	"github.com/iliyamo/event-reservation-engine/internal/model"
	"github.com/iliyamo/event-reservation-engine/internal/schema"
)

// ColumnSource reports and forgets the cached columns of a table.
type ColumnSource interface {
	Columns(ctx context.Context, q database.Querier, table string) (schema.ColumnSet, error)
	Invalidate(ctx context.Context, table string) error
}

// ProviderRepo reads the provider catalogue. Providers are owned by another
// subsystem; this repository never writes them.
type ProviderRepo struct {
	dialect database.Dialect
	columns ColumnSource
}

func NewProviderRepo(d database.Dialect, columns ColumnSource) *ProviderRepo {
	return &ProviderRepo{dialect: d, columns: columns}
}

// FindProvider loads provider id with whichever optional columns the
// deployment has. If a cached column turns out to be missing, the column
// cache is dropped and the lookup retried once with a fresh column set.
func (r *ProviderRepo) FindProvider(ctx context.Context, tx database.Querier, id uint64) (model.Provider, error) {
	set, err := r.columns.Columns(ctx, tx, "provider")
	if err != nil {
		return model.Provider{}, err
	}
	var p model.Provider
	err = database.WithSavepoint(ctx, tx, "provider_lookup", func() error {
		p, err = r.find(ctx, tx, id, schema.ProviderColumnsFrom(set))
		return err
	})
	if !errors.Is(err, database.ErrUndefinedColumn) {
		return p, err
	}

	if err := r.columns.Invalidate(ctx, "provider"); err != nil {
		return model.Provider{}, err
	}
	if set, err = r.columns.Columns(ctx, tx, "provider"); err != nil {
		return model.Provider{}, err
	}
	return r.find(ctx, tx, id, schema.ProviderColumnsFrom(set))
}

func (r *ProviderRepo) find(ctx context.Context, tx database.Querier, id uint64, cols schema.ProviderColumns) (model.Provider, error) {
	sel := []string{"p.id", "p.name", "p.base_price"}
	from := "provider p"
	sel = append(sel, optionalColumn(cols.PerGuestPrice, "p.per_guest_price"))
	switch {
	case cols.Category:
		sel = append(sel, "p.category")
	case cols.CategoryTypeID:
		// label lives in the category table
		sel = append(sel, "pc.name")
		from += " LEFT JOIN provider_category pc ON pc.id = p.category_type_id"
	default:
		sel = append(sel, "NULL")
	}
	sel = append(sel,
		optionalColumn(cols.CategoryTypeID, "p.category_type_id"),
		optionalColumn(cols.PlanTier, "p.plan_tier"),
	)
	q := "SELECT " + strings.Join(sel, ", ") + " FROM " + from + " WHERE p.id = ?"

	var (
		p        model.Provider
		perGuest sql.NullFloat64
		category sql.NullString
		typeID   sql.NullInt64
		planTier sql.NullInt64
	)
	err := tx.QueryRowContext(ctx, r.dialect.Rebind(q), id).Scan(
		&p.ID, &p.Name, &p.BasePrice, &perGuest, &category, &typeID, &planTier,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Provider{}, fmt.Errorf("provider %d: %w", id, ErrProviderNotFound)
	}
	if err != nil {
		return model.Provider{}, r.dialect.Classify(err)
	}
	if perGuest.Valid {
		p.PerGuestPrice = &perGuest.Float64
	}
	if category.Valid {
		p.Category = &category.String
	}
	if typeID.Valid {
		v := uint64(typeID.Int64)
		p.CategoryTypeID = &v
	}
	if planTier.Valid {
		v := int(planTier.Int64)
		p.PlanTier = &v
	}
	return p, nil
}

func optionalColumn(present bool, expr string) string {
	if present {
		return expr
	}
	return "NULL"
}

// LockTx takes a row lock on every provider in ids, in ascending id order so
// two bookings sharing providers cannot deadlock. Holding the locks until
// commit serialises the overlap check and insert of concurrent bookings of
// the same provider.
func (r *ProviderRepo) LockTx(ctx context.Context, tx database.Querier, ids []uint64) error {
	sorted := append([]uint64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	q := r.dialect.Rebind("SELECT id FROM provider WHERE id = ? FOR UPDATE")
	var prev uint64
	for i, id := range sorted {
		if i > 0 && id == prev {
			continue
		}
		prev = id
		var got uint64
		err := tx.QueryRowContext(ctx, q, id).Scan(&got)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("provider %d: %w", id, ErrProviderNotFound)
		}
		if err != nil {
			return fmt.Errorf("lock provider %d: %w", id, r.dialect.Classify(err))
		}
	}
	return nil
}
