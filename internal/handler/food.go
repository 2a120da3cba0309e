package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/avanzo/foodshare/internal/middleware"
	"github.com/avanzo/foodshare/internal/model"
	"github.com/avanzo/foodshare/internal/repository"
)

const dbTimeout = 5 * time.Second

// CachePurger drops cached food responses after a write.
type CachePurger interface {
	Purge(ctx context.Context) error
}

// FoodHandler serves the food listing and donation endpoints.
type FoodHandler struct {
	responder
	Users        *repository.UserRepo
	Foods        *repository.FoodRepo
	Reservations *repository.ReservationRepo
	Cache        CachePurger
}

func NewFoodHandler(production bool, users *repository.UserRepo, foods *repository.FoodRepo,
	reservations *repository.ReservationRepo, cache CachePurger) *FoodHandler {
	return &FoodHandler{
		responder:    responder{production: production},
		Users:        users,
		Foods:        foods,
		Reservations: reservations,
		Cache:        cache,
	}
}

// foodReq is the writable part of a listing.  Image arrives base64
// encoded and is decoded by encoding/json.
type foodReq struct {
	Title         string `json:"title" validate:"required,max=255"`
	Description   string `json:"description" validate:"required"`
	IsFree        bool   `json:"is_free"`
	PickupTime    string `json:"pickup_time" validate:"required,max=255"`
	PickupAddress string `json:"pickup_address" validate:"required,max=255"`
	Image         []byte `json:"image"`
}

func (r foodReq) detail() model.FoodDetail {
	return model.FoodDetail{
		Title:         r.Title,
		Description:   r.Description,
		IsFree:        r.IsFree,
		PickupTime:    r.PickupTime,
		PickupAddress: r.PickupAddress,
		Image:         r.Image,
	}
}

type createFoodReq struct {
	foodReq
	UserID uint64 `json:"user_id" validate:"required"`
}

type updateDonationReq struct {
	foodReq
	FoodID uint64 `json:"food_id" validate:"required"`
}

// authorize checks that an authenticated caller owns foodID.  Without
// authentication every caller is accepted.
func (h *FoodHandler) authorize(ctx context.Context, c echo.Context, foodID uint64) error {
	caller, ok := middleware.UserID(c)
	if !ok {
		return nil
	}
	owner, err := h.Foods.OwnerID(ctx, foodID)
	if err != nil {
		return err
	}
	if owner != caller {
		return repository.ErrForbidden
	}
	return nil
}

func (h *FoodHandler) purge(c echo.Context) {
	if err := h.Cache.Purge(context.WithoutCancel(c.Request().Context())); err != nil {
		middleware.Logger(c).Warn("cache purge failed", zap.Error(err))
	}
}

// List handles GET /foods.
func (h *FoodHandler) List(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	foods, err := h.Foods.ListAll(ctx)
	if err != nil {
		return h.fail(c, err, "failed to list food")
	}
	return success(c, "food list", foods)
}

// Get handles GET /foods/:id.
func (h *FoodHandler) Get(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return failure(c, http.StatusBadRequest, "invalid food id")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	food, err := h.Foods.GetByID(ctx, id)
	if err != nil {
		return h.fail(c, err, "failed to get food")
	}
	return success(c, "food detail", food)
}

// Create handles POST /foods.  An authenticated caller may only post as
// itself.  The insert and the owner's counter bump
// commit together; an unknown or deactivated owner rolls both back.
func (h *FoodHandler) Create(c echo.Context) error {
	var req createFoodReq
	if msg, ok := bind(c, &req); !ok {
		return failure(c, http.StatusBadRequest, msg)
	}
	if caller, ok := middleware.UserID(c); ok && caller != req.UserID {
		return h.fail(c, repository.ErrForbidden, "")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	tx, err := h.Foods.DB().BeginTx(ctx, nil)
	if err != nil {
		return h.fail(c, err, "failed to start transaction")
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	id, err := h.Foods.InsertTx(ctx, tx, req.UserID, req.detail())
	if err != nil {
		return h.fail(c, err, "failed to add food")
	}
	if err := h.Users.IncrementFoodCountTx(ctx, tx, req.UserID); err != nil {
		return h.fail(c, err, "failed to update food count")
	}
	if err := tx.Commit(); err != nil {
		return h.fail(c, err, "failed to commit transaction")
	}
	committed = true

	h.purge(c)
	return success(c, "food added", echo.Map{"id": id})
}

// Delete handles DELETE /foods/:id.  Reservations of the food are removed
// and their holders released in the same transaction.
func (h *FoodHandler) Delete(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return failure(c, http.StatusBadRequest, "invalid food id")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	if err := h.authorize(ctx, c, id); err != nil {
		return h.fail(c, err, "failed to read food")
	}

	tx, err := h.Foods.DB().BeginTx(ctx, nil)
	if err != nil {
		return h.fail(c, err, "failed to start transaction")
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := h.Reservations.ReleaseFoodTx(ctx, tx, id); err != nil {
		return h.fail(c, err, "failed to release reservations")
	}
	if err := h.Foods.DeleteTx(ctx, tx, id); err != nil {
		return h.fail(c, err, "failed to delete food")
	}
	if err := tx.Commit(); err != nil {
		return h.fail(c, err, "failed to commit transaction")
	}
	committed = true

	h.purge(c)
	return success(c, "food deleted", nil)
}

// UpdateDonation handles PATCH /donations.
func (h *FoodHandler) UpdateDonation(c echo.Context) error {
	var req updateDonationReq
	if msg, ok := bind(c, &req); !ok {
		return failure(c, http.StatusBadRequest, msg)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	if err := h.authorize(ctx, c, req.FoodID); err != nil {
		return h.fail(c, err, "failed to read food")
	}
	if err := h.Foods.UpdateDonation(ctx, req.FoodID, req.detail()); err != nil {
		return h.fail(c, err, "failed to update donation")
	}
	h.purge(c)
	return success(c, "donation updated", nil)
}

// ListByOwner handles GET /users/:id/donations.
func (h *FoodHandler) ListByOwner(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return failure(c, http.StatusBadRequest, "invalid user id")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	foods, err := h.Foods.ListByOwner(ctx, id)
	if err != nil {
		return h.fail(c, err, "failed to list donations")
	}
	return success(c, "donations", foods)
}

// ListActiveByOwner handles GET /donations/:id/active.
func (h *FoodHandler) ListActiveByOwner(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return failure(c, http.StatusBadRequest, "invalid user id")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	foods, err := h.Foods.ListActiveByOwner(ctx, id)
	if err != nil {
		return h.fail(c, err, "failed to list active donations")
	}
	return success(c, "active donations", foods)
}
