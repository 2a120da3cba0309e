package handler

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avanzo/foodshare/internal/config"
	"github.com/avanzo/foodshare/internal/mail"
	"github.com/avanzo/foodshare/internal/middleware"
	"github.com/avanzo/foodshare/internal/queue"
	"github.com/avanzo/foodshare/internal/repository"
)

var q = regexp.QuoteMeta

type fakeMail struct {
	verifyTo   string
	code       string
	farewellTo string
	err        error
}

func (m *fakeMail) SendVerificationEmail(_ context.Context, to, code string) error {
	if m.err != nil {
		return m.err
	}
	m.verifyTo, m.code = to, code
	return nil
}

func (m *fakeMail) SendFarewellEmail(_ context.Context, to string) error {
	if m.err != nil {
		return m.err
	}
	m.farewellTo = to
	return nil
}

type recordingPublisher struct{ events []queue.ReservationEvent }

func (p *recordingPublisher) Publish(_ context.Context, ev queue.ReservationEvent) error {
	p.events = append(p.events, ev)
	return nil
}

type countingPurger struct{ n int }

func (p *countingPurger) Purge(context.Context) error {
	p.n++
	return nil
}

type testEnv struct {
	e      *echo.Echo
	mock   sqlmock.Sqlmock
	mail   *fakeMail
	events *recordingPublisher
	purger *countingPurger
}

func newTestEnv(t *testing.T, cfg config.Config) *testEnv {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})

	env := &testEnv{mock: mock, mail: &fakeMail{}, events: &recordingPublisher{}, purger: &countingPurger{}}
	users := repository.NewUserRepo(db)
	foods := repository.NewFoodRepo(db)
	reservations := repository.NewReservationRepo(db)

	fh := NewFoodHandler(cfg.Production(), users, foods, reservations, env.purger)
	uh, err := NewUserHandler(cfg, users, reservations, env.mail)
	require.NoError(t, err)
	rh := NewReservationHandler(cfg.Production(), users, foods, reservations, env.events)

	e := echo.New()
	e.Validator = NewRequestValidator()
	e.Use(asCaller)
	e.GET("/healthz", Health(db))
	e.GET("/foods", fh.List)
	e.GET("/foods/:id", fh.Get)
	e.POST("/foods", fh.Create)
	e.DELETE("/foods/:id", fh.Delete)
	e.PATCH("/donations", fh.UpdateDonation)
	e.GET("/donations/:id/active", fh.ListActiveByOwner)
	e.POST("/users", uh.Register)
	e.POST("/login", uh.Login)
	e.GET("/users/:id", uh.Profile)
	e.PATCH("/users/:id/picture", uh.EditPicture)
	e.POST("/users/:id/mail", uh.SendVerification)
	e.POST("/users/:id/verify", uh.Verify)
	e.PATCH("/users/:id/profile", uh.EditProfile)
	e.DELETE("/users/:id/profile", uh.Deactivate)
	e.GET("/users/:id/donations", fh.ListByOwner)
	e.GET("/users/:id/reservations", rh.List)
	e.POST("/users/:id/reserve", rh.Reserve)
	e.GET("/users/:id/reserve", rh.Active)
	e.DELETE("/users/:id/reserve", rh.Cancel)
	env.e = e
	return env
}

type response struct {
	Code    int
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Raw     string
}

func (env *testEnv) do(t *testing.T, method, target, body string) response {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)

	r := response{Code: rec.Code, Raw: rec.Body.String()}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &r), rec.Body.String())
	return r
}

// callerHeader names the user a test request is authenticated as.
const callerHeader = "X-Test-Caller"

func asCaller(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if v := c.Request().Header.Get(callerHeader); v != "" {
			id, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return err
			}
			c.Set(middleware.UserIDKey, id)
		}
		return next(c)
	}
}

func (env *testEnv) doAs(t *testing.T, caller uint64, method, target, body string) response {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set(callerHeader, strconv.FormatUint(caller, 10))
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)

	r := response{Code: rec.Code, Raw: rec.Body.String()}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &r), rec.Body.String())
	return r
}

// captureArg matches any string argument and remembers it.
type captureArg struct{ v *string }

func (a captureArg) Match(v driver.Value) bool {
	s, ok := v.(string)
	*a.v = s
	return ok
}

func devConfig() config.Config { return config.Config{Env: "dev"} }

func TestHealth(t *testing.T) {
	env := newTestEnv(t, devConfig())
	env.mock.ExpectPing()

	r := env.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, r.Code)
	assert.True(t, r.Success)
}

func TestErrorDetail_HiddenInProduction(t *testing.T) {
	for _, tc := range []struct {
		env  string
		want string
	}{
		{"dev", "failed to list food: " + assert.AnError.Error()},
		{"production", "failed to list food"},
	} {
		t.Run(tc.env, func(t *testing.T) {
			env := newTestEnv(t, config.Config{Env: tc.env})
			env.mock.ExpectQuery(q("FROM foods ORDER BY id DESC")).WillReturnError(assert.AnError)

			r := env.do(t, http.MethodGet, "/foods", "")
			assert.Equal(t, http.StatusInternalServerError, r.Code)
			assert.False(t, r.Success)
			assert.Equal(t, tc.want, r.Message)
		})
	}
}

func TestValidation_RejectedBeforeStore(t *testing.T) {
	env := newTestEnv(t, devConfig())

	r := env.do(t, http.MethodPost, "/users", `{"email":"not-an-email","password":"pw"}`)
	assert.Equal(t, http.StatusBadRequest, r.Code)
	assert.Contains(t, r.Message, "email")

	r = env.do(t, http.MethodPost, "/users/1/verify", `{"code":"12ab"}`)
	assert.Equal(t, http.StatusBadRequest, r.Code)

	r = env.do(t, http.MethodPost, "/foods", `{"title":"bread"`)
	assert.Equal(t, http.StatusBadRequest, r.Code)
	assert.Equal(t, "invalid request body", r.Message)
}

func TestBadPathID(t *testing.T) {
	env := newTestEnv(t, devConfig())
	for _, target := range []string{"/foods/abc", "/foods/0", "/users/-1", "/users/x/reservations"} {
		r := env.do(t, http.MethodGet, target, "")
		assert.Equal(t, http.StatusBadRequest, r.Code, target)
	}
}

var _ mail.Sender = (*fakeMail)(nil)
