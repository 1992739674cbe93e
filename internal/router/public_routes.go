package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/barbershop-booking/internal/middleware"
)

// RegisterPublic registers the unauthenticated client endpoints: catalog
// reads (cached in Redis), the booked-times lookup and the booking form.
// Booking submissions pass a second, tighter per-IP bucket.
func RegisterPublic(v1 *echo.Group, d Deps) {
	cached := middleware.NewRedisCache(d.Cache, d.Redis)

	v1.GET("/services", d.Catalog.ListServices, cached)
	v1.GET("/services/:id", d.Catalog.GetService, cached)
	v1.GET("/weekdays", d.Catalog.ListWeekdays, cached)
	v1.GET("/working-hours", d.Catalog.ListHours, cached)

	v1.GET("/appointments/booked", d.Appointments.Booked)
	v1.POST("/appointments", d.Appointments.Create,
		middleware.NewTokenBucket(d.RateLimit.Booking(), d.Redis, d.Log))
}
