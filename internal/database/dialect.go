package database

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// Dialect hides the SQL differences between the supported databases.
// Repositories write statements with '?' placeholders and let the dialect
// rebind them.
type Dialect interface {
	Name() string
	DriverName() string
	// Rebind rewrites '?' placeholders into the dialect's native form.
	Rebind(query string) string
	// ColumnsQuery lists the column names of the table given as its only argument.
	ColumnsQuery() string
	// InsertReturningID executes an INSERT and returns the generated id.
	InsertReturningID(ctx context.Context, q Querier, query string, args ...any) (int64, error)
	// UpsertClause renders the conflict clause that overwrites updates when a
	// row with the same conflict key already exists.
	UpsertClause(conflict string, updates []string) string
	// TransactionalSequences reports whether sequence adjustments can run
	// inside a transaction without committing it.
	TransactionalSequences() bool
	// ShareLock is the suffix that turns a SELECT into a locking read of the
	// latest committed rows.
	ShareLock() string
	// Classify wraps recognised driver errors with a package sentinel.
	Classify(err error) error
}

// DialectFor returns the dialect registered for driver.
func DialectFor(driver string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case DriverPostgres, "postgresql", "pgx", "":
		return Postgres{}, nil
	case DriverMySQL, "mariadb":
		return MySQL{}, nil
	}
	return nil, fmt.Errorf("unsupported DB_DRIVER %q", driver)
}

// Postgres implements Dialect for PostgreSQL through pgx.
type Postgres struct{}

func (Postgres) Name() string       { return DriverPostgres }
func (Postgres) DriverName() string { return "pgx" }

func (Postgres) Rebind(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inQuote := false
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			inQuote = !inQuote
			b.WriteByte(c)
		case c == '?' && !inQuote:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func (Postgres) ColumnsQuery() string {
	return `SELECT column_name FROM information_schema.columns
WHERE table_schema = current_schema() AND table_name = $1`
}

func (d Postgres) InsertReturningID(ctx context.Context, q Querier, query string, args ...any) (int64, error) {
	var id int64
	if err := q.QueryRowContext(ctx, d.Rebind(query)+" RETURNING id", args...).Scan(&id); err != nil {
		return 0, d.Classify(err)
	}
	return id, nil
}

func (Postgres) UpsertClause(conflict string, updates []string) string {
	sets := make([]string, len(updates))
	for i, c := range updates {
		sets[i] = c + " = EXCLUDED." + c
	}
	return " ON CONFLICT (" + conflict + ") DO UPDATE SET " + strings.Join(sets, ", ")
}

func (Postgres) TransactionalSequences() bool { return true }

func (Postgres) ShareLock() string { return " FOR SHARE" }

func (Postgres) Classify(err error) error {
	var pgErr *pgconn.PgError
	if err == nil || !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "42703":
		return fmt.Errorf("%w: %w", ErrUndefinedColumn, err)
	case "23505":
		return fmt.Errorf("%w: %w", ErrUniqueViolation, err)
	case "23P01":
		return fmt.Errorf("%w: %w", ErrExclusionViolation, err)
	}
	return err
}

// MySQL implements Dialect for MySQL and MariaDB.
type MySQL struct{}

func (MySQL) Name() string               { return DriverMySQL }
func (MySQL) DriverName() string         { return "mysql" }
func (MySQL) Rebind(query string) string { return query }

func (MySQL) ColumnsQuery() string {
	return `SELECT column_name FROM information_schema.columns
WHERE table_schema = DATABASE() AND table_name = ?`
}

func (d MySQL) InsertReturningID(ctx context.Context, q Querier, query string, args ...any) (int64, error) {
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, d.Classify(err)
	}
	return res.LastInsertId()
}

func (MySQL) UpsertClause(_ string, updates []string) string {
	sets := make([]string, len(updates))
	for i, c := range updates {
		sets[i] = c + " = VALUES(" + c + ")"
	}
	return " ON DUPLICATE KEY UPDATE " + strings.Join(sets, ", ")
}

// ALTER TABLE ... AUTO_INCREMENT commits implicitly.
func (MySQL) TransactionalSequences() bool { return false }

// LOCK IN SHARE MODE is understood by both MySQL 8 and MariaDB.
func (MySQL) ShareLock() string { return " LOCK IN SHARE MODE" }

func (MySQL) Classify(err error) error {
	var myErr *mysql.MySQLError
	if err == nil || !errors.As(err, &myErr) {
		return err
	}
	switch myErr.Number {
	case 1054:
		return fmt.Errorf("%w: %w", ErrUndefinedColumn, err)
	case 1062:
		return fmt.Errorf("%w: %w", ErrUniqueViolation, err)
	}
	return err
}
