package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/barbershop-booking/internal/middleware"
	"github.com/iliyamo/barbershop-booking/internal/model"
)

// RegisterAdmin registers back-office endpoints under /v1/admin.  Every
// route requires a valid JWT; ADMIN and STAFF manage appointments, while
// catalog writes are reserved to ADMIN and purge the public cache.
func RegisterAdmin(v1 *echo.Group, d Deps) {
	g := v1.Group(
		"/admin",
		middleware.JWTAuth(d.JWTSecret),
		middleware.RequireRole(model.RoleAdmin, model.RoleStaff),
	)
	a, c := d.Appointments, d.Catalog

	// ---- Appointments ----
	g.GET("/appointments", a.List)
	g.GET("/appointments/:id", a.Get)
	g.PUT("/appointments/:id", a.Update)
	g.DELETE("/appointments/:id", a.Delete)
	g.POST("/appointments/bulk-delete", a.BulkDelete)

	// ---- Catalog reads ----
	g.GET("/services", c.ListServices)
	g.GET("/services/:id", c.GetService)
	g.GET("/promo-codes", c.ListPromos)
	g.GET("/promo-codes/:id", c.GetPromo)
	g.GET("/weekdays", c.ListAllWeekdays)
	g.GET("/working-hours", c.ListHours)

	write := []echo.MiddlewareFunc{
		middleware.RequireRole(model.RoleAdmin),
		middleware.InvalidateCache(d.Cache, d.Redis, d.Log),
	}

	// ---- Services ----
	g.POST("/services", c.CreateService, write...)
	g.PUT("/services/:id", c.UpdateService, write...)
	g.DELETE("/services/:id", c.DeleteService, write...)

	// ---- Promo codes ----
	g.POST("/promo-codes", c.CreatePromo, write...)
	g.PUT("/promo-codes/:id", c.UpdatePromo, write...)
	g.DELETE("/promo-codes/:id", c.DeletePromo, write...)

	// ---- Schedule ----
	g.POST("/weekdays", c.CreateWeekday, write...)
	g.PUT("/weekdays/:id", c.UpdateWeekday, write...)
	g.DELETE("/weekdays/:id", c.DeleteWeekday, write...)
	g.POST("/working-hours", c.CreateHours, write...)
	g.PUT("/working-hours/:id", c.UpdateHours, write...)
	g.DELETE("/working-hours/:id", c.DeleteHours, write...)
}
