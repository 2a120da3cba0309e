package router

import (
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/avanzo/foodshare/internal/config"
	"github.com/avanzo/foodshare/internal/handler"
	"github.com/avanzo/foodshare/internal/middleware"
	"github.com/avanzo/foodshare/internal/repository"
	"github.com/avanzo/foodshare/internal/utils"
)

const secret = "router-secret"

func newServer(t *testing.T, authRequired bool) (*echo.Echo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := config.Config{Env: "dev", JWTSecret: secret, AccessTTLMin: 5, AuthRequired: authRequired}
	users := repository.NewUserRepo(db)
	foods := repository.NewFoodRepo(db)
	reservations := repository.NewReservationRepo(db)
	cache := middleware.NewResponseCache(config.CacheConfig{}, nil, zap.NewNop())

	uh, err := handler.NewUserHandler(cfg, users, reservations, nil)
	require.NoError(t, err)

	e := echo.New()
	e.Validator = handler.NewRequestValidator()
	RegisterRoutes(e, Handlers{
		Health:       handler.Health(db),
		Food:         handler.NewFoodHandler(false, users, foods, reservations, cache),
		User:         uh,
		Reservation:  handler.NewReservationHandler(false, users, foods, reservations, nil),
		Cache:        cache,
		AuthRequired: authRequired,
		JWTSecret:    secret,
	})
	return e, mock
}

func get(e *echo.Echo, target, bearer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	if bearer != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func profileRows() *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{"id", "email", "password_hash", "first_name", "last_name",
		"num_of_food_added", "num_of_food_taken", "profile_image", "email_verified", "code_pass",
		"has_reserve", "status", "created_at", "updated_at"}).
		AddRow(1, "ada@example.com", "x", nil, nil, 0, 0, nil, false, "", false, "active", now, now)
}

func TestUserRoutes_AuthRequired(t *testing.T) {
	e, mock := newServer(t, true)

	assert.Equal(t, http.StatusUnauthorized, get(e, "/users/1", "").Code)

	other, err := utils.NewAccessToken(secret, 2, 5)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, get(e, "/users/1", other.Token).Code)

	self, err := utils.NewAccessToken(secret, 1, 5)
	require.NoError(t, err)
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = ?")).WithArgs(1).WillReturnRows(profileRows())
	assert.Equal(t, http.StatusOK, get(e, "/users/1", self.Token).Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRoutes_Open(t *testing.T) {
	e, mock := newServer(t, false)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = ?")).WithArgs(1).WillReturnRows(profileRows())
	assert.Equal(t, http.StatusOK, get(e, "/users/1", "").Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPublicRoutes(t *testing.T) {
	e, mock := newServer(t, true)

	mock.ExpectQuery(regexp.QuoteMeta("FROM foods ORDER BY id DESC")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	assert.Equal(t, http.StatusOK, get(e, "/foods", "").Code)
	assert.Equal(t, http.StatusNotFound, get(e, "/nope", "").Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFoodWrites_AuthRequired(t *testing.T) {
	e, _ := newServer(t, true)

	for _, tc := range []struct{ method, target, body string }{
		{http.MethodPost, "/foods", `{"title":"Bread"}`},
		{http.MethodDelete, "/foods/3", ""},
		{http.MethodPatch, "/donations", `{"food_id":3}`},
	} {
		req := httptest.NewRequest(tc.method, tc.target, strings.NewReader(tc.body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, tc.target)
	}
}
