// Package handler holds the Echo HTTP handlers.  Handlers decode requests,
// call the booking service or a repository, and translate errors into the
// API's JSON error body:
//
//	{"errors": {"<field>": {"code": "...", "message": "..."}}}
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/barbershop-booking/internal/promo"
	"github.com/iliyamo/barbershop-booking/internal/repository"
	"github.com/iliyamo/barbershop-booking/internal/service"
)

// dbTimeout bounds the database work of a single request.
const dbTimeout = 5 * time.Second

// Error body keys that are not request fields.
const (
	keyConflict  = "appointment_conflict"
	keyPromo     = "promo_code"
	keyNotFound  = "not_found"
	keyRequest   = "request"
	keyServer    = "server"
	keyDuplicate = "duplicate"
)

type fieldError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorBody struct {
	Errors map[string]fieldError `json:"errors"`
}

func fail(c echo.Context, status int, key, code, msg string) error {
	return c.JSON(status, errorBody{Errors: map[string]fieldError{key: {Code: code, Message: msg}}})
}

func badRequest(c echo.Context, msg string) error {
	return fail(c, http.StatusBadRequest, keyRequest, "invalid", msg)
}

func notFound(c echo.Context) error {
	return fail(c, http.StatusNotFound, keyNotFound, "not_found", "El recurso solicitado no existe.")
}

// writeError maps pipeline and repository errors onto HTTP responses.
// Unknown errors are logged and reported as 500 without detail.
func writeError(c echo.Context, log *slog.Logger, err error) error {
	var ve *service.ValidationError
	switch {
	case errors.As(err, &ve):
		return fail(c, http.StatusBadRequest, ve.Field, ve.Code, ve.Message)
	case errors.Is(err, service.ErrSlotAlreadyBooked):
		return fail(c, http.StatusConflict, keyConflict, "slot_taken", service.SlotAlreadyBookedMessage)
	case errors.Is(err, service.ErrBookingConflict):
		return fail(c, http.StatusConflict, keyConflict, "write_failed", service.BookingConflictMessage)
	case errors.Is(err, service.ErrAppointmentNotFound), errors.Is(err, repository.ErrNotFound):
		return notFound(c)
	case errors.Is(err, repository.ErrDuplicate):
		return fail(c, http.StatusConflict, keyDuplicate, "duplicate", "Ya existe un registro con ese valor.")
	case errors.Is(err, context.DeadlineExceeded):
		return fail(c, http.StatusGatewayTimeout, keyServer, "timeout", "La operación tardó demasiado.")
	}
	if pe, ok := promo.AsError(err); ok {
		return fail(c, http.StatusBadRequest, keyPromo, pe.Code, pe.Message)
	}
	if log == nil {
		log = slog.Default()
	}
	log.ErrorContext(c.Request().Context(), "request failed", "path", c.Path(), "err", err)
	return fail(c, http.StatusInternalServerError, keyServer, "internal", "Error interno del servidor.")
}

// pathID parses a positive numeric path parameter.
func pathID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

func requestCtx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), dbTimeout)
}
