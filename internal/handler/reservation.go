package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/avanzo/foodshare/internal/model"
	"github.com/avanzo/foodshare/internal/queue"
	"github.com/avanzo/foodshare/internal/repository"
)

// EventPublisher delivers reservation events after commit.  Failures are
// logged by the publisher and never reach the client.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.ReservationEvent) error
}

// ReservationHandler owns the reservation lifecycle: a user's has_reserve
// flag is only written here, in the transaction that changes the
// reservation itself.
type ReservationHandler struct {
	responder
	Users        *repository.UserRepo
	Foods        *repository.FoodRepo
	Reservations *repository.ReservationRepo
	Events       EventPublisher
}

func NewReservationHandler(production bool, users *repository.UserRepo, foods *repository.FoodRepo,
	reservations *repository.ReservationRepo, events EventPublisher) *ReservationHandler {
	return &ReservationHandler{
		responder:    responder{production: production},
		Users:        users,
		Foods:        foods,
		Reservations: reservations,
		Events:       events,
	}
}

type reserveReq struct {
	FoodID uint64 `json:"food_id" validate:"required"`
}

func (h *ReservationHandler) publish(c echo.Context, ev queue.ReservationEvent) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request().Context()), 5*time.Second)
	defer cancel()
	_ = h.Events.Publish(ctx, ev)
}

// Reserve handles POST /users/:id/reserve.
func (h *ReservationHandler) Reserve(c echo.Context) error {
	userID, ok := pathID(c)
	if !ok {
		return failure(c, http.StatusBadRequest, "invalid user id")
	}
	var req reserveReq
	if msg, ok := bind(c, &req); !ok {
		return failure(c, http.StatusBadRequest, msg)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	tx, err := h.Reservations.DB().BeginTx(ctx, nil)
	if err != nil {
		return h.fail(c, err, "failed to start transaction")
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	// the user row lock serializes concurrent reserve/cancel for one user
	if err := h.Users.LockActiveTx(ctx, tx, userID); err != nil {
		return h.fail(c, err, "failed to lock user")
	}
	has, err := h.Reservations.UserHasActiveReservationTx(ctx, tx, userID)
	if err != nil {
		return h.fail(c, err, "failed to check reservations")
	}
	if has {
		return h.fail(c, repository.ErrAlreadyReserved, "")
	}
	status, err := h.Foods.StatusTx(ctx, tx, req.FoodID)
	if err != nil {
		return h.fail(c, err, "failed to read food")
	}
	if status != model.FoodActive {
		return h.fail(c, repository.ErrConflict, "")
	}
	resID, err := h.Reservations.CreateTx(ctx, tx, userID, req.FoodID)
	if err != nil {
		return h.fail(c, err, "failed to create reservation")
	}
	if err := h.Users.MarkUserReservedTx(ctx, tx, userID, true); err != nil {
		return h.fail(c, err, "failed to mark user reserved")
	}
	details, err := h.Reservations.GetDetailsTx(ctx, tx, resID)
	if err != nil {
		return h.fail(c, err, "failed to read reservation")
	}
	if err := tx.Commit(); err != nil {
		return h.fail(c, err, "failed to commit transaction")
	}
	committed = true

	h.publish(c, queue.Created(details))
	return success(c, "reservation created", details)
}

// Cancel handles DELETE /users/:id/reserve.  Only the caller's active
// reservation on the given food is cancelled.
func (h *ReservationHandler) Cancel(c echo.Context) error {
	userID, ok := pathID(c)
	if !ok {
		return failure(c, http.StatusBadRequest, "invalid user id")
	}
	var req reserveReq
	if msg, ok := bind(c, &req); !ok {
		return failure(c, http.StatusBadRequest, msg)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	tx, err := h.Reservations.DB().BeginTx(ctx, nil)
	if err != nil {
		return h.fail(c, err, "failed to start transaction")
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := h.Reservations.CancelTx(ctx, tx, userID, req.FoodID); err != nil {
		return h.fail(c, err, "failed to cancel reservation")
	}
	if err := h.Users.MarkUserReservedTx(ctx, tx, userID, false); err != nil {
		return h.fail(c, err, "failed to clear reservation flag")
	}
	if err := tx.Commit(); err != nil {
		return h.fail(c, err, "failed to commit transaction")
	}
	committed = true

	h.publish(c, queue.Cancelled(userID, req.FoodID, time.Now()))
	return success(c, "reservation cancelled", nil)
}

// List handles GET /users/:id/reservations.
func (h *ReservationHandler) List(c echo.Context) error {
	userID, ok := pathID(c)
	if !ok {
		return failure(c, http.StatusBadRequest, "invalid user id")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	list, err := h.Reservations.ListForUser(ctx, userID)
	if err != nil {
		return h.fail(c, err, "failed to list reservations")
	}
	return success(c, "reservations", list)
}

// Active handles GET /users/:id/reserve.
func (h *ReservationHandler) Active(c echo.Context) error {
	userID, ok := pathID(c)
	if !ok {
		return failure(c, http.StatusBadRequest, "invalid user id")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	res, err := h.Reservations.GetActiveForUser(ctx, userID)
	if err != nil {
		return h.fail(c, err, "failed to get active reservation")
	}
	return success(c, "active reservation", res)
}
