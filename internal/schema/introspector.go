package schema

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/event-reservation-engine/internal/database"
)

// DefaultTTL is how long a table's column set is trusted before the catalog
// is consulted again.
const DefaultTTL = 5 * time.Minute

// Introspector answers which columns a table has, reading
// information_schema on a miss and caching the answer per table.
// A caller holding a transaction passes it to Columns so the catalog read
// runs on that connection instead of waiting for a second one from the pool.
type Introspector struct {
	db      database.Querier
	dialect database.Dialect
	cache   Cache
	ttl     time.Duration
	log     *logrus.Logger
}

func NewIntrospector(db database.Querier, dialect database.Dialect, cache Cache, ttl time.Duration, log *logrus.Logger) *Introspector {
	if cache == nil {
		cache = NewMemoryCache()
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Introspector{db: db, dialect: dialect, cache: cache, ttl: ttl, log: log}
}

// Columns returns the column set of table. On a cache miss the catalog is
// read through q, or through the introspector's own pool when q is nil.
func (i *Introspector) Columns(ctx context.Context, q database.Querier, table string) (ColumnSet, error) {
	cols, ok, err := i.cache.Get(ctx, table)
	if err != nil {
		// a broken shared cache must not block bookings
		i.log.WithError(err).WithField("table", table).Warn("[schema] cache read failed")
	}
	if ok {
		return cols, nil
	}

	if q == nil {
		q = i.db
	}
	rows, err := q.QueryContext(ctx, i.dialect.ColumnsQuery(), table)
	if err != nil {
		return nil, fmt.Errorf("introspect %s: %w", table, err)
	}
	defer rows.Close()

	cols = ColumnSet{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("introspect %s: %w", table, err)
		}
		cols[name] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("introspect %s: %w", table, err)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("introspect %s: table not found", table)
	}

	if err := i.cache.Set(ctx, table, cols, i.ttl); err != nil {
		i.log.WithError(err).WithField("table", table).Warn("[schema] cache write failed")
	}
	i.log.WithFields(logrus.Fields{"table": table, "columns": len(cols)}).Debug("[schema] columns loaded")
	return cols, nil
}

// Invalidate drops the cached column set of table so the next Columns call
// reads the catalog again.
func (i *Introspector) Invalidate(ctx context.Context, table string) error {
	i.log.WithField("table", table).Info("[schema] invalidating cached columns")
	return i.cache.Delete(ctx, table)
}

// Warm loads the column sets of tables into the cache.
func (i *Introspector) Warm(ctx context.Context, tables ...string) error {
	for _, t := range tables {
		if _, err := i.Columns(ctx, i.db, t); err != nil {
			return err
		}
	}
	return nil
}
