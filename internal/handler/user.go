package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/avanzo/foodshare/internal/config"
	"github.com/avanzo/foodshare/internal/mail"
	"github.com/avanzo/foodshare/internal/model"
	"github.com/avanzo/foodshare/internal/repository"
	"github.com/avanzo/foodshare/internal/utils"
)

const mailTimeout = 30 * time.Second

// UserHandler serves registration, login, profile and verification.
type UserHandler struct {
	responder
	Cfg          config.Config
	Users        *repository.UserRepo
	Reservations *repository.ReservationRepo
	Mail         mail.Sender

	// dummyHash is verified when the login email is unknown, so both
	// failure paths pay for one argon2 computation.
	dummyHash string
}

func NewUserHandler(cfg config.Config, users *repository.UserRepo, reservations *repository.ReservationRepo,
	sender mail.Sender) (*UserHandler, error) {
	dummy, err := utils.HashPassword("login-timing-equalizer")
	if err != nil {
		return nil, err
	}
	return &UserHandler{
		responder:    responder{production: cfg.Production()},
		Cfg:          cfg,
		Users:        users,
		Reservations: reservations,
		Mail:         sender,
		dummyHash:    dummy,
	}, nil
}

type registerReq struct {
	Email     string  `json:"email" validate:"required,email,max=255"`
	Password  string  `json:"password" validate:"required,max=1024"`
	FirstName *string `json:"first_name" validate:"omitempty,max=100"`
	LastName  *string `json:"last_name" validate:"omitempty,max=100"`
}

type loginReq struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResp struct {
	User   model.UserProfile  `json:"user"`
	Access *utils.AccessToken `json:"access,omitempty"`
}

type pictureReq struct {
	ProfileImage []byte `json:"profile_image"`
}

type profileReq struct {
	FirstName string `json:"first_name" validate:"required,max=100"`
	LastName  string `json:"last_name" validate:"required,max=100"`
	Email     string `json:"email" validate:"required,email,max=255"`
}

type deactivateReq struct {
	UserEmail string `json:"user_email" validate:"required,email"`
}

// Register handles POST /users.  Deactivated accounts do not block reuse
// of their email.
func (h *UserHandler) Register(c echo.Context) error {
	var req registerReq
	if msg, ok := bind(c, &req); !ok {
		return failure(c, http.StatusBadRequest, msg)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	exists, err := h.Users.EmailExists(ctx, req.Email)
	if err != nil {
		return h.fail(c, err, "failed to check email")
	}
	if exists {
		return h.fail(c, repository.ErrEmailExists, "")
	}
	id, err := h.Users.Create(ctx, model.NewUser{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		return h.fail(c, err, "failed to create user")
	}
	return success(c, "user created", echo.Map{"id": id})
}

// Login handles POST /login.  An unknown email and a wrong password get
// the same response.
func (h *UserHandler) Login(c echo.Context) error {
	var req loginReq
	if msg, ok := bind(c, &req); !ok {
		return failure(c, http.StatusBadRequest, msg)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	u, err := h.Users.GetActiveByEmail(ctx, req.Email)
	if errors.Is(err, repository.ErrUserNotFound) {
		utils.VerifyPassword(h.dummyHash, req.Password)
		return failure(c, http.StatusUnauthorized, "incorrect password")
	}
	if err != nil {
		return h.fail(c, err, "failed to log in")
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return failure(c, http.StatusUnauthorized, "incorrect password")
	}

	resp := loginResp{User: u.Profile()}
	if h.Cfg.JWTSecret != "" {
		tok, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, h.Cfg.AccessTTLMin)
		if err != nil {
			return h.fail(c, err, "failed to issue token")
		}
		resp.Access = &tok
	}
	return success(c, "login successful", resp)
}

// Profile handles GET /users/:id.
func (h *UserHandler) Profile(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return failure(c, http.StatusBadRequest, "invalid user id")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	u, err := h.Users.GetByID(ctx, id)
	if err != nil {
		return h.fail(c, err, "failed to get user")
	}
	return success(c, "user profile", u.Profile())
}

// EditPicture handles PATCH /users/:id/picture.  A null or empty image
// clears it.
func (h *UserHandler) EditPicture(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return failure(c, http.StatusBadRequest, "invalid user id")
	}
	var req pictureReq
	if msg, ok := bind(c, &req); !ok {
		return failure(c, http.StatusBadRequest, msg)
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()
	if err := h.Users.EditProfilePicture(ctx, id, req.ProfileImage); err != nil {
		return h.fail(c, err, "failed to update picture")
	}
	return success(c, "profile picture updated", nil)
}

// EditProfile handles PATCH /users/:id/profile.  Changing the email
// resets email_verified in the same transaction.
func (h *UserHandler) EditProfile(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return failure(c, http.StatusBadRequest, "invalid user id")
	}
	var req profileReq
	if msg, ok := bind(c, &req); !ok {
		return failure(c, http.StatusBadRequest, msg)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	tx, err := h.Users.DB().BeginTx(ctx, nil)
	if err != nil {
		return h.fail(c, err, "failed to start transaction")
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	unchanged, err := h.Users.EmailUnchangedTx(ctx, tx, id, req.Email)
	if err != nil {
		return h.fail(c, err, "failed to read user")
	}
	edit := model.ProfileEdit{UserID: id, FirstName: req.FirstName, LastName: req.LastName, Email: req.Email}
	if err := h.Users.EditUserProfileTx(ctx, tx, edit); err != nil {
		return h.fail(c, err, "failed to update profile")
	}
	if !unchanged {
		if err := h.Users.SetEmailVerifiedTx(ctx, tx, req.Email, false); err != nil {
			return h.fail(c, err, "failed to reset verification")
		}
	}
	if err := tx.Commit(); err != nil {
		return h.fail(c, err, "failed to commit transaction")
	}
	committed = true
	return success(c, "profile updated", echo.Map{"email_verified_reset": !unchanged})
}

// Deactivate handles DELETE /users/:id/profile.  A reservation the user
// still holds is cancelled in the same transaction, so the food becomes
// available again.  The account stays deactivated even when the farewell
// mail cannot be sent.
func (h *UserHandler) Deactivate(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return failure(c, http.StatusBadRequest, "invalid user id")
	}
	var req deactivateReq
	if msg, ok := bind(c, &req); !ok {
		return failure(c, http.StatusBadRequest, msg)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	tx, err := h.Users.DB().BeginTx(ctx, nil)
	if err != nil {
		return h.fail(c, err, "failed to start transaction")
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if err := h.Users.DeactivateTx(ctx, tx, id, req.UserEmail); err != nil {
		return h.fail(c, err, "failed to deactivate user")
	}
	if err := h.Reservations.CancelActiveForUserTx(ctx, tx, id); err != nil {
		return h.fail(c, err, "failed to release reservation")
	}
	if err := tx.Commit(); err != nil {
		return h.fail(c, err, "failed to commit transaction")
	}
	committed = true

	mctx, mcancel := context.WithTimeout(c.Request().Context(), mailTimeout)
	defer mcancel()
	if err := h.Mail.SendFarewellEmail(mctx, req.UserEmail); err != nil {
		return h.fail(c, err, "account deactivated but the farewell email could not be sent")
	}
	return success(c, "account deactivated", nil)
}

// SendVerification handles POST /users/:id/mail.  A failed send leaves the
// new code stored; the next request replaces it.
func (h *UserHandler) SendVerification(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return failure(c, http.StatusBadRequest, "invalid user id")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	email, err := h.Users.GetEmail(ctx, id)
	if err != nil {
		return h.fail(c, err, "failed to get user")
	}
	code, err := utils.GenerateVerificationCode()
	if err != nil {
		return h.fail(c, err, "failed to generate code")
	}
	if err := h.Users.StoreVerificationCode(ctx, id, code); err != nil {
		return h.fail(c, err, "failed to store code")
	}

	mctx, mcancel := context.WithTimeout(c.Request().Context(), mailTimeout)
	defer mcancel()
	if err := h.Mail.SendVerificationEmail(mctx, email, code); err != nil {
		return h.fail(c, err, "failed to send verification email")
	}
	return success(c, "verification email sent", nil)
}

type verifyReq struct {
	Code string `json:"code" validate:"required,len=6,numeric"`
}

// Verify handles POST /users/:id/verify.  A wrong code is rejected and
// left in place.
func (h *UserHandler) Verify(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return failure(c, http.StatusBadRequest, "invalid user id")
	}
	var req verifyReq
	if msg, ok := bind(c, &req); !ok {
		return failure(c, http.StatusBadRequest, msg)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
	defer cancel()

	tx, err := h.Users.DB().BeginTx(ctx, nil)
	if err != nil {
		return h.fail(c, err, "failed to start transaction")
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	email, match, err := h.Users.VerifyCodeTx(ctx, tx, id, req.Code)
	if err != nil {
		return h.fail(c, err, "failed to verify code")
	}
	if !match {
		return failure(c, http.StatusNotAcceptable, "wrong code")
	}
	if err := h.Users.SetEmailVerifiedTx(ctx, tx, email, true); err != nil {
		return h.fail(c, err, "failed to verify email")
	}
	if err := h.Users.ClearVerificationCodeTx(ctx, tx, email); err != nil {
		return h.fail(c, err, "failed to clear code")
	}
	if err := tx.Commit(); err != nil {
		return h.fail(c, err, "failed to commit transaction")
	}
	committed = true
	return success(c, "email verified", nil)
}
