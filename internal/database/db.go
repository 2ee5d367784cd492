package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	"github.com/iliyamo/event-reservation-engine/internal/config"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Open connects to the configured database, verifies the connection and
// returns the dialect matching its driver.
func Open(cfg config.DBConfig) (*sql.DB, Dialect, error) {
	dialect, err := DialectFor(cfg.Driver)
	if err != nil {
		return nil, nil, err
	}
	db, err := sql.Open(dialect.DriverName(), DSN(cfg))
	if err != nil {
		return nil, nil, err
	}

	// Pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	// Ping with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return db, dialect, nil
}

// DSN builds the driver connection string for cfg.
func DSN(cfg config.DBConfig) string {
	if isMySQL(cfg) {
		auth := cfg.User
		if cfg.Pass != "" {
			auth = fmt.Sprintf("%s:%s", cfg.User, cfg.Pass)
		}
		// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
		return fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
			auth, cfg.Host, cfg.Port, cfg.Name)
	}
	return pgURL("postgres", cfg)
}

// MigrationURL returns the golang-migrate database URL for cfg.
func MigrationURL(cfg config.DBConfig) string {
	if isMySQL(cfg) {
		return fmt.Sprintf("mysql://%s:%s@tcp(%s:%s)/%s?multiStatements=true",
			cfg.User, cfg.Pass, cfg.Host, cfg.Port, cfg.Name)
	}
	return pgURL("pgx5", cfg)
}

func isMySQL(cfg config.DBConfig) bool {
	d, err := DialectFor(cfg.Driver)
	return err == nil && d.Name() == DriverMySQL
}

func pgURL(scheme string, cfg config.DBConfig) string {
	u := url.URL{
		Scheme: scheme,
		Host:   cfg.Host + ":" + cfg.Port,
		Path:   "/" + cfg.Name,
	}
	if cfg.Pass != "" {
		u.User = url.UserPassword(cfg.User, cfg.Pass)
	} else {
		u.User = url.User(cfg.User)
	}
	q := url.Values{}
	q.Set("sslmode", cfg.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
