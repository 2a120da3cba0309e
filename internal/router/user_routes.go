package router

import (
	"github.com/labstack/echo/v4"

	"github.com/avanzo/foodshare/internal/middleware"
)

// RegisterUser registers the routes scoped to one user under /users/:id.
// When auth is required every route needs a bearer token for that user.
func RegisterUser(e *echo.Echo, h Handlers) {
	var mw []echo.MiddlewareFunc
	if h.AuthRequired {
		mw = append(mw, middleware.JWTAuth(h.JWTSecret), middleware.RequireSelf())
	}
	g := e.Group("/users/:id", mw...)

	g.GET("", h.User.Profile)
	g.PATCH("/picture", h.User.EditPicture)
	g.POST("/mail", h.User.SendVerification)
	g.POST("/verify", h.User.Verify)
	g.PATCH("/profile", h.User.EditProfile)
	g.DELETE("/profile", h.User.Deactivate)

	g.GET("/donations", h.Food.ListByOwner)

	g.GET("/reservations", h.Reservation.List)
	g.POST("/reserve", h.Reservation.Reserve)
	g.GET("/reserve", h.Reservation.Active)
	g.DELETE("/reserve", h.Reservation.Cancel)
}
