// Package router registers the HTTP routes of the API.
package router

import (
	"github.com/labstack/echo/v4"

	"github.com/avanzo/foodshare/internal/handler"
	"github.com/avanzo/foodshare/internal/middleware"
)

// Handlers bundles everything the routes dispatch to.
type Handlers struct {
	Health       echo.HandlerFunc
	Food         *handler.FoodHandler
	User         *handler.UserHandler
	Reservation  *handler.ReservationHandler
	Cache        *middleware.ResponseCache
	AuthRequired bool
	JWTSecret    string
}

// RegisterRoutes registers health, food browsing and writes, registration
// and login.  Food reads go through the response cache.  When auth is
// required, food writes need a bearer token and the handlers check that
// the caller owns the listing.
func RegisterRoutes(e *echo.Echo, h Handlers) {
	e.GET("/healthz", h.Health)

	cached := h.Cache.Middleware()
	e.GET("/foods", h.Food.List, cached)
	e.GET("/foods/:id", h.Food.Get, cached)

	var owner []echo.MiddlewareFunc
	if h.AuthRequired {
		owner = append(owner, middleware.JWTAuth(h.JWTSecret))
	}
	e.POST("/foods", h.Food.Create, owner...)
	e.DELETE("/foods/:id", h.Food.Delete, owner...)
	e.PATCH("/donations", h.Food.UpdateDonation, owner...)
	e.GET("/donations/:id/active", h.Food.ListActiveByOwner)

	e.POST("/users", h.User.Register)
	e.POST("/login", h.User.Login)

	RegisterUser(e, h)
}
