package database

import (
	"embed"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/iliyamo/event-reservation-engine/internal/config"
)

//go:embed migrations
var migrations embed.FS

// NewMigrator returns a migrate instance over the embedded SQL files of the
// configured driver.
func NewMigrator(cfg config.DBConfig) (*migrate.Migrate, error) {
	dialect, err := DialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}
	src, err := iofs.New(migrations, "migrations/"+dialect.Name())
	if err != nil {
		return nil, fmt.Errorf("load migrations: %w", err)
	}
	return migrate.NewWithSourceInstance("iofs", src, MigrationURL(cfg))
}
