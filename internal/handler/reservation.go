package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/iliyamo/event-reservation-engine/internal/booking"
	"github.com/iliyamo/event-reservation-engine/internal/invoice"
)

const maxBodyBytes = 1 << 20

// Engine creates reservations; *booking.Engine implements it.
type Engine interface {
	CreateReservation(ctx context.Context, req booking.Request) (booking.Result, error)
}

// ReservationHandler exposes the reservation transaction over HTTP.
type ReservationHandler struct {
	Engine Engine
	Log    *logrus.Logger
}

func NewReservationHandler(engine Engine, log *logrus.Logger) *ReservationHandler {
	if engine == nil {
		panic("nil engine passed to NewReservationHandler")
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &ReservationHandler{Engine: engine, Log: log}
}

// Create handles POST /v1/reservations. The caller is always the
// authenticated user; a userId in the body is ignored. The free-form
// "payment" object is parsed separately so any provider payload shape is
// accepted.
func (h *ReservationHandler) Create(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxBodyBytes))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "could not read body"})
	}
	var req booking.Request
	if err := json.Unmarshal(body, &req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid JSON body"})
	}
	req.UserID = uid
	if raw := gjson.GetBytes(body, "payment"); raw.Exists() {
		req.Payment = invoice.ParsePayment([]byte(raw.Raw))
	}

	res, err := h.Engine.CreateReservation(c.Request().Context(), req)
	if err != nil {
		return h.writeError(c, err)
	}
	return c.JSON(http.StatusCreated, res)
}

func (h *ReservationHandler) writeError(c echo.Context, err error) error {
	var (
		ve *booking.ValidationError
		ce *booking.ConflictError
	)
	switch {
	case errors.As(err, &ve):
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error":    booking.CategoryValidation,
			"problems": ve.Problems,
		})
	case errors.As(err, &ce):
		return c.JSON(http.StatusConflict, echo.Map{
			"error":       booking.CategoryConflict,
			"message":     ce.Error(),
			"provider_id": ce.ProviderID,
		})
	}
	h.Log.WithError(err).WithField("path", c.Path()).Error("[handler] reservation failed")
	return c.JSON(http.StatusInternalServerError, echo.Map{
		"error":   booking.CategoryServer,
		"message": "could not create reservation",
	})
}
