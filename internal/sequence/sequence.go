// Package sequence keeps identity generators ahead of the rows already stored
// in their tables. After a restore a generator can lag behind MAX(id); the
// next insert would then collide with an existing key.
package sequence

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/event-reservation-engine/internal/database"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Target names an identity column.
type Target struct {
	Table  string
	Column string
}

// Synchronizer advances sequences, never moving them backwards, so repeated
// or concurrent runs are harmless.
type Synchronizer struct {
	dialect database.Dialect
	log     *logrus.Logger
}

func NewSynchronizer(dialect database.Dialect, log *logrus.Logger) *Synchronizer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Synchronizer{dialect: dialect, log: log}
}

// Transactional reports whether Sync may run inside the booking transaction.
// When false the caller runs it on the pool before BEGIN.
func (s *Synchronizer) Transactional() bool { return s.dialect.TransactionalSequences() }

// SyncAll runs Sync for every target in order.
func (s *Synchronizer) SyncAll(ctx context.Context, q database.Querier, targets []Target) error {
	for _, t := range targets {
		if _, err := s.Sync(ctx, q, t.Table, t.Column); err != nil {
			return err
		}
	}
	return nil
}

// Sync moves the generator behind table.idColumn past MAX(idColumn). It
// reports whether an adjustment was made.
func (s *Synchronizer) Sync(ctx context.Context, q database.Querier, table, idColumn string) (bool, error) {
	if !identRe.MatchString(table) || !identRe.MatchString(idColumn) {
		return false, fmt.Errorf("sequence sync: invalid identifier %s.%s", table, idColumn)
	}

	var maxID int64
	if err := q.QueryRowContext(ctx,
		fmt.Sprintf("SELECT COALESCE(MAX(%s), 0) FROM %s", idColumn, table)).Scan(&maxID); err != nil {
		return false, fmt.Errorf("sequence sync %s: max id: %w", table, err)
	}

	var (
		advanced bool
		err      error
	)
	if s.dialect.Name() == database.DriverMySQL {
		advanced, err = s.syncAutoIncrement(ctx, q, table, maxID)
	} else {
		advanced, err = s.syncSerial(ctx, q, table, idColumn, maxID)
	}
	if err != nil {
		return false, fmt.Errorf("sequence sync %s: %w", table, err)
	}
	if advanced {
		s.log.WithFields(logrus.Fields{"table": table, "max_id": maxID}).Warn("[sequence] generator was behind table, advanced")
	}
	return advanced, nil
}

// syncSerial handles Postgres serial and identity columns.
func (s *Synchronizer) syncSerial(ctx context.Context, q database.Querier, table, idColumn string, maxID int64) (bool, error) {
	var seq sql.NullString
	if err := q.QueryRowContext(ctx, "SELECT pg_get_serial_sequence($1, $2)", table, idColumn).Scan(&seq); err != nil {
		return false, err
	}
	if !seq.Valid || seq.String == "" {
		return false, nil // no backing sequence
	}

	var (
		last     int64
		isCalled bool
	)
	if err := q.QueryRowContext(ctx, "SELECT last_value, is_called FROM "+seq.String).Scan(&last, &isCalled); err != nil {
		return false, err
	}
	// next value handed out: last+1 once called, last before the first call
	next := last
	if isCalled {
		next = last + 1
	}
	if maxID < 1 || next > maxID {
		return false, nil
	}
	// Sequences are not transactional: nextval calls made since the read
	// above are already handed out. The write re-reads last_value itself so
	// a concurrent advance is never undone.
	var set int64
	err := q.QueryRowContext(ctx,
		"SELECT setval($1, GREATEST($2, (SELECT last_value FROM "+seq.String+")), true)",
		seq.String, maxID).Scan(&set)
	if err != nil {
		return false, err
	}
	return true, nil
}

// syncAutoIncrement handles MySQL AUTO_INCREMENT counters. The ALTER commits
// implicitly, so q must not be a transaction the caller still needs.
func (s *Synchronizer) syncAutoIncrement(ctx context.Context, q database.Querier, table string, maxID int64) (bool, error) {
	var next sql.NullInt64
	err := q.QueryRowContext(ctx,
		"SELECT AUTO_INCREMENT FROM information_schema.TABLES WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?",
		table).Scan(&next)
	if err != nil {
		return false, err
	}
	if !next.Valid || next.Int64 > maxID {
		return false, nil
	}
	if _, err := q.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s AUTO_INCREMENT = %d", table, maxID+1)); err != nil {
		return false, err
	}
	return true, nil
}
