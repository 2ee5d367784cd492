package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/event-reservation-engine/internal/booking"
	"github.com/iliyamo/event-reservation-engine/internal/config"
	"github.com/iliyamo/event-reservation-engine/internal/database"
	"github.com/iliyamo/event-reservation-engine/internal/handler"
	"github.com/iliyamo/event-reservation-engine/internal/maintenance"
	"github.com/iliyamo/event-reservation-engine/internal/queue"
	"github.com/iliyamo/event-reservation-engine/internal/router"
	"github.com/iliyamo/event-reservation-engine/internal/schema"
	"github.com/iliyamo/event-reservation-engine/internal/sequence"
	"github.com/iliyamo/event-reservation-engine/internal/service"
)

func main() {
	_ = godotenv.Load() // .env is optional

	cfg := config.Load()
	ecfg := config.LoadEngineConfig()
	log := newLogger(cfg)

	db, dialect, err := database.Open(cfg.DB)
	if err != nil {
		log.WithError(err).Fatal("database connection failed")
	}
	defer db.Close()

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Warn("redis unavailable; rate limiting disabled and column cache kept in memory")
	} else {
		defer rdb.Close()
	}

	var cache schema.Cache = schema.NewMemoryCache()
	if ecfg.SchemaCacheBackend == "redis" && rdb != nil {
		cache = schema.NewRedisCache(rdb, ecfg.SchemaCachePrefix)
	}
	columns := schema.NewIntrospector(db, dialect, cache, ecfg.SchemaCacheTTL, log)
	sequences := sequence.NewSynchronizer(dialect, log)
	publisher := service.NewAMQPPublisher(ecfg.AMQPURL, ecfg.ReservationQueue, log)

	targets := make([]sequence.Target, 0, len(ecfg.SequenceTables))
	for _, tc := range ecfg.SequenceTables {
		targets = append(targets, sequence.Target{Table: tc.Table, Column: tc.Column})
	}
	engine := booking.NewEngine(db, dialect, columns, sequences, publisher, log, booking.Options{
		Isolation:         ecfg.Isolation,
		TaxRate:           ecfg.TaxRate,
		PlanTierDefault:   ecfg.PlanTierDefault,
		PlanTierMixed:     ecfg.PlanTierMixed,
		TrustClientTotals: ecfg.TrustClientTotals,
		SequenceTargets:   targets,
		Now:               time.Now,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	warmCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	if err := columns.Warm(warmCtx, maintenance.Tables...); err != nil {
		log.WithError(err).Warn("[schema] warm-up failed; columns load on first use")
	}
	cancel()

	var sched *maintenance.Scheduler
	if ecfg.MaintenanceCron != "" {
		sched, err = maintenance.New(ecfg.MaintenanceCron, db, sequences, columns, targets, log)
		if err != nil {
			log.WithError(err).Fatal("invalid MAINTENANCE_CRON")
		}
		sched.Start()
	}

	if ecfg.AuditConsumerEnabled {
		audit := &queue.AuditConsumer{URL: ecfg.AMQPURL, Queue: ecfg.ReservationQueue, LogPath: ecfg.AuditLogPath, Log: log}
		go func() {
			if err := audit.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.WithError(err).Error("[audit] consumer stopped")
			}
		}()
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(echomw.Logger())
	e.Use(echomw.Recover())
	router.RegisterRoutes(e, router.Deps{
		DB:           db,
		Reservations: handler.NewReservationHandler(engine, log),
		JWTSecret:    cfg.JWTSecret,
		RateLimit:    config.LoadRateLimitConfig(),
		Redis:        rdb,
		Log:          log,
	})

	addr := ":" + cfg.Port
	go func() {
		log.WithFields(logrus.Fields{"addr": addr, "env": cfg.Env, "driver": dialect.Name()}).Info("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if sched != nil {
		sched.Stop(shutdownCtx)
	}
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("shutdown")
	}
}

func newLogger(cfg config.Config) *logrus.Logger {
	log := logrus.New()
	if strings.EqualFold(cfg.Env, "prod") {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)
	return log
}
