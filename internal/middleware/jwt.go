package middleware // reusable HTTP middleware for the booking API

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/barbershop-booking/internal/logger"
	"github.com/iliyamo/barbershop-booking/internal/utils"
)

// JWTAuth returns an Echo middleware that validates a Bearer access token
// and stores the staff user id (uint64) and role (string) in the context
// under "user_id" and "role".  The user id is also attached to the request
// context so log records carry it.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return authError(c, http.StatusUnauthorized, "missing_token", "Falta el token de acceso.")
			}
			claims, err := utils.ParseAccessToken(secret, strings.TrimPrefix(auth, "Bearer "))
			if err != nil {
				return authError(c, http.StatusUnauthorized, "invalid_token", "Token de acceso inválido o expirado.")
			}
			// ParseAccessToken has already checked the subject.
			uid, _ := claims.UserID()

			c.Set("user_id", uid)
			c.Set("role", claims.Role)
			req := c.Request()
			c.SetRequest(req.WithContext(logger.WithUserID(req.Context(), uid)))
			return next(c)
		}
	}
}

// authError writes the API error body under the "auth" key.
func authError(c echo.Context, status int, code, msg string) error {
	return c.JSON(status, echo.Map{"errors": echo.Map{"auth": echo.Map{"code": code, "message": msg}}})
}
