package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/avanzo/foodshare/internal/utils"
)

// JWTAuth validates a Bearer access token and stores its subject under
// UserIDKey.  The secret must match the one used when issuing tokens.
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "message": "missing bearer token", "data": nil})
			}
			id, err := utils.ParseAccessToken(secret, strings.TrimPrefix(auth, "Bearer "))
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"success": false, "message": "invalid token", "data": nil})
			}
			c.Set(UserIDKey, id)
			return next(c)
		}
	}
}

// BearerSubject stores the subject of a valid bearer token under UserIDKey
// and never rejects the request.  It runs ahead of the rate limiter so
// per-user buckets see the caller; JWTAuth still guards the routes that
// require a token.
func BearerSubject(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			if secret == "" || !strings.HasPrefix(auth, "Bearer ") {
				return next(c)
			}
			if id, err := utils.ParseAccessToken(secret, strings.TrimPrefix(auth, "Bearer ")); err == nil {
				c.Set(UserIDKey, id)
			}
			return next(c)
		}
	}
}
