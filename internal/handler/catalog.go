package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/barbershop-booking/internal/model"
	"github.com/iliyamo/barbershop-booking/internal/repository"
)

// ServiceStore is the service catalog persistence.
type ServiceStore interface {
	GetByID(ctx context.Context, id uint64) (*model.Service, error)
	List(ctx context.Context) ([]model.Service, error)
	Create(ctx context.Context, svc *model.Service) error
	Update(ctx context.Context, svc *model.Service) error
	Delete(ctx context.Context, id uint64) error
}

// PromoAdminStore is the promo code persistence used by staff.
type PromoAdminStore interface {
	GetByID(ctx context.Context, id uint64) (*model.PromoCode, error)
	List(ctx context.Context) ([]model.PromoCode, error)
	Create(ctx context.Context, p *model.PromoCode) error
	Update(ctx context.Context, p *model.PromoCode) error
	Delete(ctx context.Context, id uint64) error
}

// ScheduleStore is the weekday and working hours persistence.
type ScheduleStore interface {
	ListWeekdays(ctx context.Context, enabledOnly bool) ([]model.Weekday, error)
	CreateWeekday(ctx context.Context, w *model.Weekday) error
	UpdateWeekday(ctx context.Context, w *model.Weekday) error
	DeleteWeekday(ctx context.Context, id uint64) error
	ListHours(ctx context.Context, weekdayID uint64) ([]model.WorkingHours, error)
	CreateHours(ctx context.Context, h *model.WorkingHours) error
	UpdateHours(ctx context.Context, h *model.WorkingHours) error
	DeleteHours(ctx context.Context, id uint64) error
}

// CatalogHandler serves services, promo codes and the opening schedule.
type CatalogHandler struct {
	Services ServiceStore
	Promos   PromoAdminStore
	Schedule ScheduleStore
	Log      *slog.Logger
}

func NewCatalogHandler(s ServiceStore, p PromoAdminStore, sch ScheduleStore, log *slog.Logger) *CatalogHandler {
	if log == nil {
		log = slog.Default()
	}
	return &CatalogHandler{Services: s, Promos: p, Schedule: sch, Log: log}
}

// maxServicePrice fits DECIMAL(6,2).
var maxServicePrice = decimal.RequireFromString("9999.99")

type serviceDTO struct {
	ID              uint64          `json:"id"`
	Name            string          `json:"name"`
	DurationMinutes int             `json:"duration_minutes"`
	Price           decimal.Decimal `json:"price"`
	Description     string          `json:"description"`
	ImageURL        *string         `json:"image_url"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

func toServiceDTO(s model.Service) serviceDTO {
	return serviceDTO{
		ID:              s.ID,
		Name:            s.Name,
		DurationMinutes: s.DurationMinutes,
		Price:           s.Price.Round(2),
		Description:     s.Description,
		ImageURL:        s.ImageURL,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
	}
}

type serviceReq struct {
	Name            string          `json:"name"`
	DurationMinutes int             `json:"duration_minutes"`
	Price           decimal.Decimal `json:"price"`
	Description     string          `json:"description"`
	ImageURL        *string         `json:"image_url"`
}

func (r serviceReq) validate() (field, code, msg string) {
	name := strings.TrimSpace(r.Name)
	switch {
	case name == "":
		return "name", "required", "El nombre es obligatorio."
	case utf8.RuneCountInString(name) > 100:
		return "name", "max_length", "El nombre no puede tener más de 100 caracteres."
	case r.DurationMinutes <= 0:
		return "duration_minutes", "invalid", "La duración debe ser mayor que cero."
	case r.Price.IsNegative() || r.Price.GreaterThan(maxServicePrice):
		return "price", "invalid", "El precio debe estar entre 0 y 9999.99."
	}
	return "", "", ""
}

func (r serviceReq) apply(s *model.Service) {
	s.Name = strings.TrimSpace(r.Name)
	s.DurationMinutes = r.DurationMinutes
	s.Price = r.Price.Round(2)
	s.Description = strings.TrimSpace(r.Description)
	s.ImageURL = nil
	if r.ImageURL != nil && strings.TrimSpace(*r.ImageURL) != "" {
		u := strings.TrimSpace(*r.ImageURL)
		s.ImageURL = &u
	}
}

func (h *CatalogHandler) ListServices(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()
	list, err := h.Services.List(ctx)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	out := make([]serviceDTO, 0, len(list))
	for _, s := range list {
		out = append(out, toServiceDTO(s))
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CatalogHandler) GetService(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return notFound(c)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	s, err := h.Services.GetByID(ctx, id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, toServiceDTO(*s))
}

func (h *CatalogHandler) CreateService(c echo.Context) error {
	var req serviceReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Cuerpo de la solicitud inválido.")
	}
	if field, code, msg := req.validate(); field != "" {
		return fail(c, http.StatusBadRequest, field, code, msg)
	}
	var s model.Service
	req.apply(&s)
	ctx, cancel := requestCtx(c)
	defer cancel()
	if err := h.Services.Create(ctx, &s); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, toServiceDTO(s))
}

func (h *CatalogHandler) UpdateService(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return notFound(c)
	}
	var req serviceReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Cuerpo de la solicitud inválido.")
	}
	if field, code, msg := req.validate(); field != "" {
		return fail(c, http.StatusBadRequest, field, code, msg)
	}
	s := model.Service{ID: id}
	req.apply(&s)
	ctx, cancel := requestCtx(c)
	defer cancel()
	if err := h.Services.Update(ctx, &s); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, toServiceDTO(s))
}

// DeleteService removes a service and, through the foreign key, all of
// its appointments.
func (h *CatalogHandler) DeleteService(c echo.Context) error {
	return h.deleteByID(c, h.Services.Delete)
}

type promoDTO struct {
	ID                 uint64          `json:"id"`
	Code               string          `json:"code"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
	ValidFrom          time.Time       `json:"valid_from"`
	ValidTo            time.Time       `json:"valid_to"`
	Active             bool            `json:"active"`
	CurrentUses        uint64          `json:"current_uses"`
}

func toPromoDTO(p model.PromoCode) promoDTO {
	return promoDTO{
		ID:                 p.ID,
		Code:               p.Code,
		DiscountPercentage: p.DiscountPercentage,
		ValidFrom:          p.ValidFrom,
		ValidTo:            p.ValidTo,
		Active:             p.Active,
		CurrentUses:        p.CurrentUses,
	}
}

type promoReq struct {
	Code               string          `json:"code"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
	ValidFrom          time.Time       `json:"valid_from"`
	ValidTo            time.Time       `json:"valid_to"`
	Active             *bool           `json:"active"`
}

var hundred = decimal.NewFromInt(100)

func (r promoReq) validate() (field, code, msg string) {
	c := strings.TrimSpace(r.Code)
	switch {
	case c == "":
		return "code", "required", "El código es obligatorio."
	case utf8.RuneCountInString(c) > 20:
		return "code", "max_length", "El código no puede tener más de 20 caracteres."
	case !r.DiscountPercentage.IsInteger():
		return "discount_percentage", "invalid", "El descuento debe ser un número entero."
	case r.DiscountPercentage.IsNegative() || r.DiscountPercentage.GreaterThan(hundred):
		return "discount_percentage", "invalid", "El descuento debe estar entre 0 y 100."
	case r.ValidFrom.IsZero() || r.ValidTo.IsZero():
		return "valid_from", "required", "Las fechas de vigencia son obligatorias."
	case r.ValidTo.Before(r.ValidFrom):
		return "valid_to", "invalid", "La fecha final debe ser posterior a la inicial."
	}
	return "", "", ""
}

func (r promoReq) toModel(id uint64) model.PromoCode {
	active := true
	if r.Active != nil {
		active = *r.Active
	}
	return model.PromoCode{
		ID:                 id,
		Code:               strings.TrimSpace(r.Code),
		DiscountPercentage: r.DiscountPercentage,
		ValidFrom:          r.ValidFrom.UTC(),
		ValidTo:            r.ValidTo.UTC(),
		Active:             active,
	}
}

func (h *CatalogHandler) ListPromos(c echo.Context) error {
	ctx, cancel := requestCtx(c)
	defer cancel()
	list, err := h.Promos.List(ctx)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	out := make([]promoDTO, 0, len(list))
	for _, p := range list {
		out = append(out, toPromoDTO(p))
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CatalogHandler) GetPromo(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return notFound(c)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	p, err := h.Promos.GetByID(ctx, id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, toPromoDTO(*p))
}

func (h *CatalogHandler) CreatePromo(c echo.Context) error {
	var req promoReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Cuerpo de la solicitud inválido.")
	}
	if field, code, msg := req.validate(); field != "" {
		return fail(c, http.StatusBadRequest, field, code, msg)
	}
	p := req.toModel(0)
	ctx, cancel := requestCtx(c)
	defer cancel()
	if err := h.Promos.Create(ctx, &p); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return fail(c, http.StatusConflict, "code", "duplicate", "Ya existe un código promocional con ese nombre.")
		}
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, toPromoDTO(p))
}

func (h *CatalogHandler) UpdatePromo(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return notFound(c)
	}
	var req promoReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Cuerpo de la solicitud inválido.")
	}
	if field, code, msg := req.validate(); field != "" {
		return fail(c, http.StatusBadRequest, field, code, msg)
	}
	p := req.toModel(id)
	ctx, cancel := requestCtx(c)
	defer cancel()
	if err := h.Promos.Update(ctx, &p); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return fail(c, http.StatusConflict, "code", "duplicate", "Ya existe un código promocional con ese nombre.")
		}
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, toPromoDTO(p))
}

// DeletePromo removes a code; appointments that used it keep their row
// with the reference cleared.
func (h *CatalogHandler) DeletePromo(c echo.Context) error {
	return h.deleteByID(c, h.Promos.Delete)
}

type weekdayDTO struct {
	ID      uint64 `json:"id"`
	Day     string `json:"day"`
	Enabled bool   `json:"status"`
}

type weekdayReq struct {
	Day     string `json:"day"`
	Enabled *bool  `json:"status"`
}

func (r weekdayReq) toModel(id uint64) (model.Weekday, bool) {
	day := strings.TrimSpace(r.Day)
	if day == "" || utf8.RuneCountInString(day) > 10 {
		return model.Weekday{}, false
	}
	enabled := true
	if r.Enabled != nil {
		enabled = *r.Enabled
	}
	return model.Weekday{ID: id, Day: day, Enabled: enabled}, true
}

// ListWeekdays returns the enabled days for the public calendar.
func (h *CatalogHandler) ListWeekdays(c echo.Context) error {
	return h.listWeekdays(c, true)
}

// ListAllWeekdays includes disabled days, for staff.
func (h *CatalogHandler) ListAllWeekdays(c echo.Context) error {
	return h.listWeekdays(c, false)
}

func (h *CatalogHandler) listWeekdays(c echo.Context, enabledOnly bool) error {
	ctx, cancel := requestCtx(c)
	defer cancel()
	list, err := h.Schedule.ListWeekdays(ctx, enabledOnly)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	out := make([]weekdayDTO, 0, len(list))
	for _, w := range list {
		out = append(out, weekdayDTO{ID: w.ID, Day: w.Day, Enabled: w.Enabled})
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CatalogHandler) CreateWeekday(c echo.Context) error {
	var req weekdayReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Cuerpo de la solicitud inválido.")
	}
	w, ok := req.toModel(0)
	if !ok {
		return fail(c, http.StatusBadRequest, "day", "invalid", "El día es obligatorio (máximo 10 caracteres).")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	if err := h.Schedule.CreateWeekday(ctx, &w); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, weekdayDTO{ID: w.ID, Day: w.Day, Enabled: w.Enabled})
}

func (h *CatalogHandler) UpdateWeekday(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return notFound(c)
	}
	var req weekdayReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Cuerpo de la solicitud inválido.")
	}
	w, ok := req.toModel(id)
	if !ok {
		return fail(c, http.StatusBadRequest, "day", "invalid", "El día es obligatorio (máximo 10 caracteres).")
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	if err := h.Schedule.UpdateWeekday(ctx, &w); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, weekdayDTO{ID: w.ID, Day: w.Day, Enabled: w.Enabled})
}

func (h *CatalogHandler) DeleteWeekday(c echo.Context) error {
	return h.deleteByID(c, h.Schedule.DeleteWeekday)
}

type hoursDTO struct {
	ID        uint64 `json:"id"`
	WeekdayID uint64 `json:"day"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type hoursReq hoursDTO

func (r hoursReq) toModel(id uint64) (model.WorkingHours, string, string) {
	if r.WeekdayID == 0 {
		return model.WorkingHours{}, "day", "El día es obligatorio."
	}
	start, err := model.ParseClock(r.StartTime)
	if err != nil {
		return model.WorkingHours{}, "start_time", "Hora inválida, usa el formato HH:MM."
	}
	end, err := model.ParseClock(r.EndTime)
	if err != nil {
		return model.WorkingHours{}, "end_time", "Hora inválida, usa el formato HH:MM."
	}
	// HH:MM:SS strings order the same way as the times they denote.
	if end <= start {
		return model.WorkingHours{}, "end_time", "La hora final debe ser posterior a la inicial."
	}
	return model.WorkingHours{ID: id, WeekdayID: r.WeekdayID, StartTime: start, EndTime: end}, "", ""
}

// ListHours returns working hours, all of them or those of ?weekday=id.
func (h *CatalogHandler) ListHours(c echo.Context) error {
	var weekday uint64
	if v := c.QueryParam("weekday"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return badRequest(c, "weekday inválido.")
		}
		weekday = n
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	list, err := h.Schedule.ListHours(ctx, weekday)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	out := make([]hoursDTO, 0, len(list))
	for _, wh := range list {
		out = append(out, hoursDTO(wh))
	}
	return c.JSON(http.StatusOK, out)
}

func (h *CatalogHandler) CreateHours(c echo.Context) error {
	return h.saveHours(c, 0, http.StatusCreated, h.Schedule.CreateHours)
}

func (h *CatalogHandler) UpdateHours(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return notFound(c)
	}
	return h.saveHours(c, id, http.StatusOK, h.Schedule.UpdateHours)
}

func (h *CatalogHandler) saveHours(c echo.Context, id uint64, status int,
	save func(context.Context, *model.WorkingHours) error) error {
	var req hoursReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "Cuerpo de la solicitud inválido.")
	}
	wh, field, msg := req.toModel(id)
	if field != "" {
		return fail(c, http.StatusBadRequest, field, "invalid", msg)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	if err := save(ctx, &wh); err != nil {
		if errors.Is(err, repository.ErrMissingParent) {
			return fail(c, http.StatusBadRequest, "day", "not_found", "El día indicado no existe.")
		}
		return writeError(c, h.Log, err)
	}
	return c.JSON(status, hoursDTO(wh))
}

func (h *CatalogHandler) DeleteHours(c echo.Context) error {
	return h.deleteByID(c, h.Schedule.DeleteHours)
}

func (h *CatalogHandler) deleteByID(c echo.Context, del func(context.Context, uint64) error) error {
	id, ok := pathID(c, "id")
	if !ok {
		return notFound(c)
	}
	ctx, cancel := requestCtx(c)
	defer cancel()
	if err := del(ctx, id); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}
