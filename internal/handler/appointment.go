package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/barbershop-booking/internal/captcha"
	"github.com/iliyamo/barbershop-booking/internal/model"
	"github.com/iliyamo/barbershop-booking/internal/repository"
	"github.com/iliyamo/barbershop-booking/internal/service"
)

// Booking is the appointment pipeline as seen by HTTP handlers.
// *service.BookingService satisfies it.
type Booking interface {
	CreateAppointment(ctx context.Context, req service.AppointmentRequest) (*service.AppointmentView, error)
	UpdateAppointment(ctx context.Context, id uint64, req service.AppointmentRequest) (*service.AppointmentView, error)
	DeleteAppointment(ctx context.Context, id uint64) error
	DeleteAppointments(ctx context.Context, ids []uint64) (int, error)
	GetAppointment(ctx context.Context, id uint64) (*service.AppointmentView, error)
	ListAppointments(ctx context.Context, f repository.AppointmentFilter) ([]service.AppointmentView, error)
	SearchAppointments(ctx context.Context, term string) ([]service.AppointmentView, error)
	BookedTimes(ctx context.Context, date string) ([]string, error)
}

// AppointmentHandler serves the public booking endpoints and the staff
// appointment administration.
type AppointmentHandler struct {
	Booking Booking
	Captcha captcha.Verifier
	Log     *slog.Logger
}

func NewAppointmentHandler(b Booking, v captcha.Verifier, log *slog.Logger) *AppointmentHandler {
	if v == nil {
		v = captcha.Disabled{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &AppointmentHandler{Booking: b, Captcha: v, Log: log}
}

type appointmentReq struct {
	Date         string `json:"date"`
	Time         string `json:"time"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	Description  string `json:"description"`
	PromoCode    string `json:"promo_code_text"`
	ServiceID    uint64 `json:"service"`
	CaptchaToken string `json:"captchaToken"`
	RemovePromo  bool   `json:"remove_promo_code"`
}

func (r appointmentReq) toService() service.AppointmentRequest {
	return service.AppointmentRequest{
		Date:        r.Date,
		Time:        r.Time,
		Name:        r.Name,
		Email:       r.Email,
		Phone:       r.Phone,
		Description: r.Description,
		PromoCode:   r.PromoCode,
		ServiceID:   r.ServiceID,
		RemovePromo: r.RemovePromo,
	}
}

// Create books an appointment for a client.  The CAPTCHA is checked before
// anything else.
func (h *AppointmentHandler) Create(c echo.Context) error {
	var req appointmentReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Cuerpo de la solicitud inválido.")
	}

	ctx, cancel := requestCtx(c)
	defer cancel()

	if err := h.Captcha.Verify(ctx, req.CaptchaToken, c.RealIP()); err != nil {
		switch {
		case errors.Is(err, captcha.ErrMissingToken):
			h.Log.WarnContext(ctx, "booking without captcha token")
			return fail(c, http.StatusBadRequest, "captcha", "required", "Captcha token no proporcionado.")
		case errors.Is(err, captcha.ErrRejected):
			h.Log.InfoContext(ctx, "captcha rejected", "err", err)
			return fail(c, http.StatusBadRequest, "captcha", "invalid", "Falló la verificación de reCAPTCHA.")
		default:
			h.Log.ErrorContext(ctx, "captcha verification failed", "err", err)
			return fail(c, http.StatusInternalServerError, "captcha", "unavailable", "Error al validar captcha.")
		}
	}

	v, err := h.Booking.CreateAppointment(ctx, req.toService())
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, v)
}

// Booked lists the times already taken on ?date=YYYY-MM-DD.
func (h *AppointmentHandler) Booked(c echo.Context) error {
	date := c.QueryParam("date")
	ctx, cancel := requestCtx(c)
	defer cancel()
	times, err := h.Booking.BookedTimes(ctx, date)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"date": strings.TrimSpace(date), "times": times})
}

// List returns appointments for staff.  ?search= looks up by exact name,
// email or phone; otherwise ?date=, ?limit= and ?offset= filter the list.
func (h *AppointmentHandler) List(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()

	if term := strings.TrimSpace(c.QueryParam("search")); term != "" {
		list, err := h.Booking.SearchAppointments(ctx, term)
		if err != nil {
			return writeError(c, h.Log, err)
		}
		return c.JSON(http.StatusOK, list)
	}

	var f repository.AppointmentFilter
	if d := strings.TrimSpace(c.QueryParam("date")); d != "" {
		day, err := time.Parse(model.DateLayout, d)
		if err != nil {
			return fail(c, http.StatusBadRequest, "date", "invalid", "Fecha inválida, usa el formato AAAA-MM-DD.")
		}
		f.Date = &day
	}
	if v := c.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return badRequest(c, "limit inválido.")
		}
		f.Limit = n
	}
	if v := c.QueryParam("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return badRequest(c, "offset inválido.")
		}
		f.Offset = n
	}
	list, err := h.Booking.ListAppointments(ctx, f)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, list)
}

func (h *AppointmentHandler) Get(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return notFound(c)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	v, err := h.Booking.GetAppointment(ctx, id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, v)
}

// Update replaces an appointment.  Staff edits skip the CAPTCHA.
func (h *AppointmentHandler) Update(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return notFound(c)
	}
	var req appointmentReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Cuerpo de la solicitud inválido.")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	v, err := h.Booking.UpdateAppointment(ctx, id, req.toService())
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, v)
}

// Delete cancels one appointment.  The client is emailed first when the
// address is readable.
func (h *AppointmentHandler) Delete(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return notFound(c)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	if err := h.Booking.DeleteAppointment(ctx, id); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

type bulkDeleteReq struct {
	IDs []uint64 `json:"ids"`
}

// BulkDelete cancels several appointments and reports how many were
// removed.  Unknown ids are ignored.
func (h *AppointmentHandler) BulkDelete(c echo.Context) error {
	var req bulkDeleteReq
	if err := c.Bind(&req); err != nil || len(req.IDs) == 0 {
		return badRequest(c, "Indica al menos un id en \"ids\".")
	}
	// Each delete may send an email, so the whole batch gets more time.
	ctx, cancel := context.WithTimeout(c.Request().Context(), time.Duration(len(req.IDs))*dbTimeout)
	defer cancel()
	n, err := h.Booking.DeleteAppointments(ctx, req.IDs)
	if err != nil {
		h.Log.ErrorContext(ctx, "bulk delete partially failed", "deleted", n, "err", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{
			"deleted": n,
			"errors":  map[string]fieldError{keyServer: {Code: "partial", Message: "Algunas citas no se pudieron eliminar."}},
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"deleted": n})
}
