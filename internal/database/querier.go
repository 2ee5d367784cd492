package database

import (
	"context"
	"database/sql"
	"fmt"
)

// Querier is the statement surface shared by *sql.DB and *sql.Tx. Repository
// methods accept it so the same SQL runs inside or outside a transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithSavepoint runs fn inside a named savepoint. When fn fails the work done
// since the savepoint is undone and the transaction stays usable, which
// Postgres otherwise refuses after any statement error.
func WithSavepoint(ctx context.Context, q Querier, name string, fn func() error) error {
	if _, err := q.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return fmt.Errorf("savepoint %s: %w", name, err)
	}
	if err := fn(); err != nil {
		if _, rbErr := q.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name); rbErr != nil {
			return fmt.Errorf("rollback to savepoint %s: %v (after %w)", name, rbErr, err)
		}
		return err
	}
	if _, err := q.ExecContext(ctx, "RELEASE SAVEPOINT "+name); err != nil {
		return fmt.Errorf("release savepoint %s: %w", name, err)
	}
	return nil
}
