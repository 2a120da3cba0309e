package middleware

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// UserIDKey is the context key under which JWTAuth stores the caller's id.
const UserIDKey = "user_id"

// UserID returns the authenticated caller, if any.
func UserID(c echo.Context) (uint64, bool) {
	id, ok := c.Get(UserIDKey).(uint64)
	return id, ok && id != 0
}

// RequireSelf allows the request only when the authenticated caller is the
// user named by the :id path parameter.  It must run after JWTAuth.
func RequireSelf() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			caller, ok := UserID(c)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "message": "unauthorized", "data": nil})
			}
			target, err := strconv.ParseUint(c.Param("id"), 10, 64)
			if err != nil || target != caller {
				return c.JSON(http.StatusForbidden, echo.Map{"success": false, "message": "forbidden", "data": nil})
			}
			return next(c)
		}
	}
}

func rateSubject(c echo.Context) string {
	if id, ok := UserID(c); ok {
		return strconv.FormatUint(id, 10)
	}
	return "anon"
}
