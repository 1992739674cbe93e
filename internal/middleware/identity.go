package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// UserID returns the staff user id stored by JWTAuth.
func UserID(c echo.Context) (uint64, bool) {
	id, ok := c.Get("user_id").(uint64)
	return id, ok && id != 0
}

// identity is the rate limit key component for the caller: the staff id
// when authenticated, "anon" otherwise.
func identity(c echo.Context) string {
	if id, ok := UserID(c); ok {
		return strconv.FormatUint(id, 10)
	}
	return "anon"
}
