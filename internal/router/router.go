package router // package router defines how HTTP routes are registered for the API

import (
	"log/slog"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/barbershop-booking/internal/config"
	"github.com/iliyamo/barbershop-booking/internal/handler"
	"github.com/iliyamo/barbershop-booking/internal/middleware"
	"github.com/iliyamo/barbershop-booking/internal/model"
)

// Deps collects what the route tables need.  Redis may be nil, in which
// case rate limiting and the response cache are disabled.
type Deps struct {
	Appointments *handler.AppointmentHandler
	Catalog      *handler.CatalogHandler
	Auth         *handler.AuthHandler
	DB           handler.Pinger
	Redis        *redis.Client
	RateLimit    config.RateLimitConfig
	Cache        config.CacheConfig
	JWTSecret    string
	Log          *slog.Logger
}

// New builds the Echo instance with every route registered.
func New(d Deps) *echo.Echo {
	if d.Log == nil {
		d.Log = slog.Default()
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.RequestID(), middleware.AccessLog(d.Log), echomw.Recover())

	RegisterRoutes(e, d.DB)

	// Every API route shares the general bucket.
	v1 := e.Group("/v1", middleware.NewTokenBucket(d.RateLimit, d.Redis, d.Log))
	RegisterPublic(v1, d)
	RegisterAuth(v1, d.Auth, d.JWTSecret)
	RegisterAdmin(v1, d)
	return e
}

// RegisterRoutes registers routes that do not require authentication and
// sit outside the API prefix.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health(db))
}

// RegisterAuth registers staff authentication routes.  Login and refresh
// live under /v1/auth and need no session; logout and /v1/me require a
// valid access token.
func RegisterAuth(v1 *echo.Group, a *handler.AuthHandler, jwtSecret string) {
	session := []echo.MiddlewareFunc{
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin, model.RoleStaff),
	}

	g := v1.Group("/auth")
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh) // rotates the refresh token
	g.POST("/logout", a.Logout, session...)

	v1.GET("/me", a.Me, session...)
}
