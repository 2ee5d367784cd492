package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/event-reservation-engine/internal/config"
	"github.com/iliyamo/event-reservation-engine/internal/database"
)

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]

	cfg := config.LoadDB()
	log := logrus.New()
	log.WithFields(logrus.Fields{
		"driver": cfg.Driver, "user": cfg.User, "host": cfg.Host, "port": cfg.Port, "db": cfg.Name,
	}).Info("connecting for migrations")

	m, err := database.NewMigrator(cfg)
	if err != nil {
		log.WithError(err).Fatal("could not initialise migrations")
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			log.Warnf("closing migration resources: %v, %v", srcErr, dbErr)
		}
	}()

	switch command {
	case "up":
		if err := m.Up(); errors.Is(err, migrate.ErrNoChange) {
			log.Info("no change: database is up to date")
		} else if err != nil {
			log.WithError(err).Fatal("migrate up failed")
		} else {
			log.Info("migrations applied")
		}

	case "down":
		if err := m.Steps(-1); err != nil {
			log.WithError(err).Fatal("rolling back last migration failed")
		}
		log.Info("last migration rolled back")

	case "goto":
		if len(os.Args) < 3 {
			log.Fatal("goto needs a version number")
		}
		version, err := strconv.ParseUint(os.Args[2], 10, 64)
		if err != nil {
			log.WithError(err).Fatal("invalid version number")
		}
		if err := m.Migrate(uint(version)); errors.Is(err, migrate.ErrNoChange) {
			log.Infof("no change: database already at version %d", version)
		} else if err != nil {
			log.WithError(err).Fatalf("migrating to version %d failed", version)
		} else {
			log.Infof("migrated to version %d", version)
		}

	case "status":
		version, dirty, err := m.Version()
		switch {
		case errors.Is(err, migrate.ErrNilVersion):
			log.Info("no migrations applied yet")
		case err != nil:
			log.WithError(err).Fatal("reading migration version failed")
		default:
			log.WithField("dirty", dirty).Infof("current version: %d", version)
		}

	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("usage: go run ./cmd/migrate [command]")
	fmt.Println("commands:")
	fmt.Println("  up     - apply all pending migrations")
	fmt.Println("  down   - roll back the last migration")
	fmt.Println("  goto N - migrate to version N")
	fmt.Println("  status - print the current migration version")
}
