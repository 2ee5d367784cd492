// Package router wires handlers and middleware onto an Echo instance.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/event-reservation-engine/internal/config"
	"github.com/iliyamo/event-reservation-engine/internal/handler"
	"github.com/iliyamo/event-reservation-engine/internal/middleware"
)

// Deps are the collaborators the routes need. Redis may be nil, in which
// case the rate limiter is a pass-through.
type Deps struct {
	DB           handler.Pinger
	Reservations *handler.ReservationHandler
	JWTSecret    string
	RateLimit    config.RateLimitConfig
	Redis        *redis.Client
	Log          *logrus.Logger
}

// RegisterRoutes exposes the unauthenticated health check and the
// reservation API under /v1.
func RegisterRoutes(e *echo.Echo, d Deps) {
	e.GET("/healthz", handler.Health(d.DB))

	g := e.Group("/v1", middleware.JWTAuth(d.JWTSecret))
	g.POST("/reservations", d.Reservations.Create, middleware.NewTokenBucket(d.RateLimit, d.Redis, d.Log))
}
