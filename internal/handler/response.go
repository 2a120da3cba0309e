package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/avanzo/foodshare/internal/mail"
	"github.com/avanzo/foodshare/internal/middleware"
	"github.com/avanzo/foodshare/internal/repository"
)

// Envelope is the body of every API response.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

func success(c echo.Context, msg string, data any) error {
	return c.JSON(http.StatusOK, Envelope{Success: true, Message: msg, Data: data})
}

func failure(c echo.Context, status int, msg string) error {
	return c.JSON(status, Envelope{Success: false, Message: msg})
}

// responder maps errors to envelopes.  Outside production the text of an
// unexpected error is appended to the message.
type responder struct {
	production bool
}

func (r responder) fail(c echo.Context, err error, fallback string) error {
	switch {
	case errors.Is(err, repository.ErrUserNotFound):
		return failure(c, http.StatusNotFound, "user not found")
	case errors.Is(err, repository.ErrFoodNotFound):
		return failure(c, http.StatusNotFound, "food not found")
	case errors.Is(err, repository.ErrReservationNotFound):
		return failure(c, http.StatusNotFound, "reservation not found")
	case errors.Is(err, repository.ErrForbidden):
		return failure(c, http.StatusForbidden, "forbidden")
	case errors.Is(err, repository.ErrEmailExists):
		return failure(c, http.StatusConflict, "email already exists")
	case errors.Is(err, repository.ErrAlreadyReserved):
		return failure(c, http.StatusNotAcceptable, "user already has a reservation")
	case errors.Is(err, repository.ErrConflict):
		return failure(c, http.StatusNotAcceptable, "food is not available")
	case errors.Is(err, mail.ErrSend):
		return r.internal(c, http.StatusBadGateway, fallback, err)
	default:
		return r.internal(c, http.StatusInternalServerError, fallback, err)
	}
}

func (r responder) internal(c echo.Context, status int, msg string, err error) error {
	middleware.Logger(c).Error(msg, zap.Error(err), zap.String("path", c.Path()))
	if !r.production {
		msg += ": " + err.Error()
	}
	return failure(c, status, msg)
}

// bind decodes and validates the request body into v.  On failure it
// returns the message for a 400 response.
func bind(c echo.Context, v any) (string, bool) {
	if err := c.Bind(v); err != nil {
		return "invalid request body", false
	}
	if err := c.Validate(v); err != nil {
		return err.Error(), false
	}
	return "", true
}

func pathID(c echo.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	return id, err == nil && id != 0
}
