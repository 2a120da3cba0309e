package handler

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avanzo/foodshare/internal/model"
	"github.com/avanzo/foodshare/internal/queue"
)

func (env *testEnv) expectReservePrelude(userID uint64, hasActive bool) {
	env.mock.ExpectBegin()
	env.mock.ExpectQuery(q("SELECT id FROM users WHERE id = ? AND status = 'active' FOR UPDATE")).WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(userID))
	env.mock.ExpectQuery(q("SELECT EXISTS(SELECT 1 FROM reservations")).WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(hasActive))
}

func TestReserve(t *testing.T) {
	env := newTestEnv(t, devConfig())
	at := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

	env.expectReservePrelude(7, false)
	env.mock.ExpectQuery(q("SELECT status FROM foods WHERE id = ? LOCK IN SHARE MODE")).WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("active"))
	env.mock.ExpectExec(q("INSERT INTO reservations")).WithArgs(7, 3).
		WillReturnResult(sqlmock.NewResult(11, 1))
	env.mock.ExpectExec(q("UPDATE users SET has_reserve = ?")).WithArgs(true, 7).
		WillReturnResult(sqlmock.NewResult(0, 1))
	env.mock.ExpectQuery(q("SELECT id, user_id, food_id, status, reserved_at FROM reservations WHERE id = ?")).
		WithArgs(11).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "food_id", "status", "reserved_at"}).
			AddRow(11, 7, 3, "active", at))
	env.mock.ExpectCommit()

	r := env.do(t, http.MethodPost, "/users/7/reserve", `{"food_id":3}`)
	require.Equal(t, http.StatusOK, r.Code, r.Raw)

	var got model.ReservationDetails
	require.NoError(t, json.Unmarshal(r.Data, &got))
	assert.Equal(t, model.ReservationDetails{
		ID: 11, UserID: 7, FoodID: 3, ReservedAt: "2025-03-14 09:26:53", Status: model.ReservationActive,
	}, got)

	require.Len(t, env.events.events, 1)
	ev := env.events.events[0]
	assert.Equal(t, queue.EventReservationCreated, ev.Type)
	assert.Equal(t, uint64(11), ev.ReservationID)
	assert.Equal(t, uint64(7), ev.UserID)
}

func TestReserve_AlreadyReserved(t *testing.T) {
	env := newTestEnv(t, devConfig())

	env.expectReservePrelude(7, true)
	env.mock.ExpectRollback()

	r := env.do(t, http.MethodPost, "/users/7/reserve", `{"food_id":3}`)
	assert.Equal(t, http.StatusNotAcceptable, r.Code)
	assert.Equal(t, "user already has a reservation", r.Message)
	assert.Empty(t, env.events.events)
}

func TestReserve_UniqueIndexRace(t *testing.T) {
	env := newTestEnv(t, devConfig())

	env.expectReservePrelude(7, false)
	env.mock.ExpectQuery(q("SELECT status FROM foods")).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("active"))
	env.mock.ExpectExec(q("INSERT INTO reservations")).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})
	env.mock.ExpectRollback()

	r := env.do(t, http.MethodPost, "/users/7/reserve", `{"food_id":3}`)
	assert.Equal(t, http.StatusNotAcceptable, r.Code)
	assert.Empty(t, env.events.events)
}

func TestReserve_InactiveFood(t *testing.T) {
	env := newTestEnv(t, devConfig())

	env.expectReservePrelude(7, false)
	env.mock.ExpectQuery(q("SELECT status FROM foods")).
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("inactive"))
	env.mock.ExpectRollback()

	r := env.do(t, http.MethodPost, "/users/7/reserve", `{"food_id":3}`)
	assert.Equal(t, http.StatusNotAcceptable, r.Code)
	assert.Equal(t, "food is not available", r.Message)
}

func TestReserve_UnknownFood(t *testing.T) {
	env := newTestEnv(t, devConfig())

	env.expectReservePrelude(7, false)
	env.mock.ExpectQuery(q("SELECT status FROM foods")).WillReturnRows(sqlmock.NewRows([]string{"status"}))
	env.mock.ExpectRollback()

	r := env.do(t, http.MethodPost, "/users/7/reserve", `{"food_id":99}`)
	assert.Equal(t, http.StatusNotFound, r.Code)
	assert.Equal(t, "food not found", r.Message)
}

func TestReserve_InactiveUser(t *testing.T) {
	env := newTestEnv(t, devConfig())

	env.mock.ExpectBegin()
	env.mock.ExpectQuery(q("SELECT id FROM users")).WithArgs(7).WillReturnRows(sqlmock.NewRows([]string{"id"}))
	env.mock.ExpectRollback()

	r := env.do(t, http.MethodPost, "/users/7/reserve", `{"food_id":3}`)
	assert.Equal(t, http.StatusNotFound, r.Code)
}

func TestCancel(t *testing.T) {
	env := newTestEnv(t, devConfig())

	env.mock.ExpectBegin()
	env.mock.ExpectExec(q("UPDATE reservations SET status = 'cancelled'")).WithArgs(7, 3).
		WillReturnResult(sqlmock.NewResult(0, 1))
	env.mock.ExpectExec(q("UPDATE users SET has_reserve = ?")).WithArgs(false, 7).
		WillReturnResult(sqlmock.NewResult(0, 1))
	env.mock.ExpectCommit()

	r := env.do(t, http.MethodDelete, "/users/7/reserve", `{"food_id":3}`)
	require.Equal(t, http.StatusOK, r.Code, r.Raw)
	require.Len(t, env.events.events, 1)
	assert.Equal(t, queue.EventReservationCancelled, env.events.events[0].Type)
	assert.Equal(t, uint64(3), env.events.events[0].FoodID)
}

func TestCancel_NoActiveReservation(t *testing.T) {
	env := newTestEnv(t, devConfig())

	env.mock.ExpectBegin()
	env.mock.ExpectExec(q("UPDATE reservations SET status = 'cancelled'")).WithArgs(7, 4).
		WillReturnResult(sqlmock.NewResult(0, 0))
	env.mock.ExpectRollback()

	r := env.do(t, http.MethodDelete, "/users/7/reserve", `{"food_id":4}`)
	assert.Equal(t, http.StatusNotFound, r.Code)
	assert.Equal(t, "reservation not found", r.Message)
	assert.Empty(t, env.events.events)
}

func TestListReservations(t *testing.T) {
	env := newTestEnv(t, devConfig())
	at := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)

	env.mock.ExpectQuery(q("FROM reservations r")).WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"id", "food_id", "title", "description", "first_name",
			"image", "status", "reserved_at"}).
			AddRow(12, 4, "Soup", "Lentils", "Bea", nil, "active", at).
			AddRow(11, 3, "Bread", "Rye", nil, nil, "cancelled", at.Add(-time.Hour)))

	r := env.do(t, http.MethodGet, "/users/7/reservations", "")
	require.Equal(t, http.StatusOK, r.Code, r.Raw)

	var list []model.ReservationSummary
	require.NoError(t, json.Unmarshal(r.Data, &list))
	require.Len(t, list, 2)
	assert.Equal(t, "Bea", *list[0].FirstName)
	assert.Nil(t, list[1].FirstName)
	assert.Equal(t, model.ReservationCancelled, list[1].Status)
	assert.Equal(t, "2025-03-14 08:00:00", list[1].ReservedAt)
}

func TestActiveReservation_None(t *testing.T) {
	env := newTestEnv(t, devConfig())
	env.mock.ExpectQuery(q("WHERE r.user_id = ? AND u.has_reserve = 1 AND r.status = 'active'")).WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	r := env.do(t, http.MethodGet, "/users/7/reserve", "")
	assert.Equal(t, http.StatusNotFound, r.Code)
}
