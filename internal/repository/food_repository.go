package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/avanzo/foodshare/internal/model"
)

const foodColumns = "id, title, description, is_free, pickup_time, pickup_address, image, user_id, status, created_at"

// FoodRepo provides access to donated food listings.
type FoodRepo struct{ db *sql.DB }

func NewFoodRepo(db *sql.DB) *FoodRepo { return &FoodRepo{db: db} }

func (r *FoodRepo) DB() *sql.DB { return r.db }

func scanFood(row interface{ Scan(...any) error }) (model.Food, error) {
	var f model.Food
	err := row.Scan(&f.ID, &f.Title, &f.Description, &f.IsFree, &f.PickupTime,
		&f.PickupAddress, &f.Image, &f.UserID, &f.Status, &f.CreatedAt)
	return f, err
}

func (r *FoodRepo) list(ctx context.Context, query string, args ...any) ([]model.Food, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	foods := make([]model.Food, 0)
	for rows.Next() {
		f, err := scanFood(rows)
		if err != nil {
			return nil, err
		}
		foods = append(foods, f)
	}
	return foods, rows.Err()
}

// InsertTx adds a listing owned by ownerID.  An unknown owner surfaces as
// ErrUserNotFound through the foreign key.
func (r *FoodRepo) InsertTx(ctx context.Context, tx *sql.Tx, ownerID uint64, d model.FoodDetail) (uint64, error) {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO foods (title, description, is_free, pickup_time, pickup_address, image, user_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.Title, d.Description, d.IsFree, d.PickupTime, d.PickupAddress, blob(d.Image), ownerID)
	if err != nil {
		if isMissingParent(err) {
			return 0, ErrUserNotFound
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// ListAll returns every listing, newest first.
func (r *FoodRepo) ListAll(ctx context.Context) ([]model.Food, error) {
	return r.list(ctx, "SELECT "+foodColumns+" FROM foods ORDER BY id DESC")
}

func (r *FoodRepo) GetByID(ctx context.Context, id uint64) (model.Food, error) {
	f, err := scanFood(r.db.QueryRowContext(ctx, "SELECT "+foodColumns+" FROM foods WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Food{}, ErrFoodNotFound
	}
	return f, err
}

// ListByOwner returns all donations of a user regardless of status.
func (r *FoodRepo) ListByOwner(ctx context.Context, ownerID uint64) ([]model.Food, error) {
	return r.list(ctx, "SELECT "+foodColumns+" FROM foods WHERE user_id = ? ORDER BY id DESC", ownerID)
}

func (r *FoodRepo) ListActiveByOwner(ctx context.Context, ownerID uint64) ([]model.Food, error) {
	return r.list(ctx,
		"SELECT "+foodColumns+" FROM foods WHERE user_id = ? AND status = 'active' ORDER BY id DESC", ownerID)
}

// UpdateDonation overwrites the writable fields of a listing.
func (r *FoodRepo) UpdateDonation(ctx context.Context, id uint64, d model.FoodDetail) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE foods SET title = ?, description = ?, is_free = ?, pickup_time = ?, pickup_address = ?, image = ?
		 WHERE id = ?`,
		d.Title, d.Description, d.IsFree, d.PickupTime, d.PickupAddress, blob(d.Image), id)
	if err != nil {
		return err
	}
	return expectRow(res, ErrFoodNotFound)
}

// OwnerID returns the id of the user who posted the listing.
func (r *FoodRepo) OwnerID(ctx context.Context, id uint64) (uint64, error) {
	var owner uint64
	err := r.db.QueryRowContext(ctx, "SELECT user_id FROM foods WHERE id = ?", id).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrFoodNotFound
	}
	return owner, err
}

// StatusTx reads the status of a listing under a shared lock so it cannot
// be deleted while a reservation is being taken.
func (r *FoodRepo) StatusTx(ctx context.Context, tx *sql.Tx, id uint64) (model.FoodStatus, error) {
	var st model.FoodStatus
	err := tx.QueryRowContext(ctx, "SELECT status FROM foods WHERE id = ? LOCK IN SHARE MODE", id).Scan(&st)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrFoodNotFound
	}
	return st, err
}

// DeleteTx removes the listing.  Its reservations must be released first
// in the same transaction (ReservationRepo.ReleaseFoodTx).
func (r *FoodRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	res, err := tx.ExecContext(ctx, "DELETE FROM foods WHERE id = ?", id)
	if err != nil {
		return err
	}
	return expectRow(res, ErrFoodNotFound)
}
