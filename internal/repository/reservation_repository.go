package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/avanzo/foodshare/internal/model"
)

// ReservationRepo provides access to reservations.  All timestamps are
// stored in UTC.
type ReservationRepo struct{ db *sql.DB }

func NewReservationRepo(db *sql.DB) *ReservationRepo { return &ReservationRepo{db: db} }

func (r *ReservationRepo) DB() *sql.DB { return r.db }

// UserHasActiveReservationTx reports whether the user currently holds an
// active reservation.  This is the source of truth behind users.has_reserve.
func (r *ReservationRepo) UserHasActiveReservationTx(ctx context.Context, tx *sql.Tx, userID uint64) (bool, error) {
	var exists bool
	err := tx.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM reservations WHERE user_id = ? AND status = 'active')", userID).Scan(&exists)
	return exists, err
}

// CreateTx inserts an active reservation.  The unique index on active
// reservations turns a concurrent second claim into ErrAlreadyReserved.
func (r *ReservationRepo) CreateTx(ctx context.Context, tx *sql.Tx, userID, foodID uint64) (uint64, error) {
	res, err := tx.ExecContext(ctx,
		"INSERT INTO reservations (user_id, food_id, status) VALUES (?, ?, 'active')", userID, foodID)
	if err != nil {
		if isDuplicate(err) {
			return 0, ErrAlreadyReserved
		}
		if isMissingParent(err) {
			return 0, ErrFoodNotFound
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetDetailsTx reads back a reservation inside the creating transaction.
func (r *ReservationRepo) GetDetailsTx(ctx context.Context, tx *sql.Tx, id uint64) (model.ReservationDetails, error) {
	var res model.Reservation
	err := tx.QueryRowContext(ctx,
		"SELECT id, user_id, food_id, status, reserved_at FROM reservations WHERE id = ?", id).
		Scan(&res.ID, &res.UserID, &res.FoodID, &res.Status, &res.ReservedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ReservationDetails{}, ErrReservationNotFound
	}
	if err != nil {
		return model.ReservationDetails{}, err
	}
	return res.Details(), nil
}

// ListForUser returns the user's reservation history, newest first, joined
// with the reserved food and the reserving user's first name.
func (r *ReservationRepo) ListForUser(ctx context.Context, userID uint64) ([]model.ReservationSummary, error) {
	const q = `SELECT r.id, r.food_id, f.title, f.description, u.first_name, f.image, r.status, r.reserved_at
		FROM reservations r
		INNER JOIN foods f ON f.id = r.food_id
		INNER JOIN users u ON u.id = r.user_id
		WHERE r.user_id = ?
		ORDER BY r.reserved_at DESC, r.id DESC`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.ReservationSummary, 0)
	for rows.Next() {
		var s model.ReservationSummary
		var at time.Time
		if err := rows.Scan(&s.ID, &s.FoodID, &s.Title, &s.Description, &s.FirstName,
			&s.Image, &s.Status, &at); err != nil {
			return nil, err
		}
		s.ReservedAt = at.UTC().Format(model.ReservedAtLayout)
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetActiveForUser returns the user's single active reservation with
// pickup information, or ErrReservationNotFound.
func (r *ReservationRepo) GetActiveForUser(ctx context.Context, userID uint64) (model.ActiveReservation, error) {
	const q = `SELECT r.id, r.food_id, f.title, f.description, u.first_name, f.image,
		f.pickup_time, f.pickup_address, r.reserved_at
		FROM reservations r
		INNER JOIN foods f ON f.id = r.food_id
		INNER JOIN users u ON u.id = r.user_id
		WHERE r.user_id = ? AND u.has_reserve = 1 AND r.status = 'active'
		LIMIT 1`
	var a model.ActiveReservation
	var at time.Time
	err := r.db.QueryRowContext(ctx, q, userID).Scan(&a.ID, &a.FoodID, &a.Title, &a.Description,
		&a.FirstName, &a.Image, &a.PickupTime, &a.PickupAddress, &at)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ActiveReservation{}, ErrReservationNotFound
	}
	if err != nil {
		return model.ActiveReservation{}, err
	}
	a.ReservedAt = at.UTC().Format(model.ReservedAtLayout)
	return a, nil
}

// CancelTx cancels the user's active reservation on foodID.  Only a row
// matching both ids is touched; other users' reservations of the same food
// are left alone.
func (r *ReservationRepo) CancelTx(ctx context.Context, tx *sql.Tx, userID, foodID uint64) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE reservations SET status = 'cancelled' WHERE user_id = ? AND food_id = ? AND status = 'active'",
		userID, foodID)
	if err != nil {
		return err
	}
	return expectRow(res, ErrReservationNotFound)
}

// CancelActiveForUserTx cancels whatever reservation userID still holds
// and clears the flag.  It is a no-op for a user without one.
func (r *ReservationRepo) CancelActiveForUserTx(ctx context.Context, tx *sql.Tx, userID uint64) error {
	if _, err := tx.ExecContext(ctx,
		"UPDATE reservations SET status = 'cancelled' WHERE user_id = ? AND status = 'active'", userID); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, "UPDATE users SET has_reserve = 0 WHERE id = ?", userID)
	return err
}

// ReleaseFoodTx clears has_reserve for every user holding an active
// reservation on foodID and removes all reservations of that food, so a
// following delete leaves nothing dangling.
func (r *ReservationRepo) ReleaseFoodTx(ctx context.Context, tx *sql.Tx, foodID uint64) error {
	if _, err := tx.ExecContext(ctx,
		`UPDATE users u INNER JOIN reservations r ON r.user_id = u.id
		 SET u.has_reserve = 0 WHERE r.food_id = ? AND r.status = 'active'`, foodID); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, "DELETE FROM reservations WHERE food_id = ?", foodID)
	return err
}
