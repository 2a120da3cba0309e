package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/avanzo/foodshare/internal/model"
	"github.com/avanzo/foodshare/internal/utils"
)

const userColumns = `id, email, password_hash, first_name, last_name, num_of_food_added,
	num_of_food_taken, profile_image, email_verified, code_pass, has_reserve, status,
	created_at, updated_at`

// UserRepo reads and writes the users table.  Every lookup except the
// deactivation match is restricted to active accounts.
type UserRepo struct{ db *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{db: db} }

// DB exposes the pool so handlers can open transactions spanning repos.
func (r *UserRepo) DB() *sql.DB { return r.db }

func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName,
		&u.NumFoodAdded, &u.NumFoodTaken, &u.ProfileImage, &u.EmailVerified,
		&u.CodePass, &u.HasReserve, &u.Status, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// EmailExists reports whether an active user already uses email.
func (r *UserRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM users WHERE email = ? AND status = 'active')",
		normalizeEmail(email)).Scan(&exists)
	return exists, err
}

// Create hashes the password and inserts the user, returning its id.  A
// concurrent registration that wins the unique index yields ErrEmailExists.
func (r *UserRepo) Create(ctx context.Context, nu model.NewUser) (uint64, error) {
	hash, err := utils.HashPassword(nu.Password)
	if err != nil {
		return 0, err
	}
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO users (email, password_hash, first_name, last_name) VALUES (?, ?, ?, ?)",
		normalizeEmail(nu.Email), hash, nu.FirstName, nu.LastName)
	if err != nil {
		if isDuplicate(err) {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetActiveByEmail fetches the active account for login.
func (r *UserRepo) GetActiveByEmail(ctx context.Context, email string) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email = ? AND status = 'active' LIMIT 1",
		normalizeEmail(email))
	return scanUser(row)
}

// GetByID fetches an active user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = ? AND status = 'active' LIMIT 1", id)
	return scanUser(row)
}

// GetEmail returns the email of an active user.
func (r *UserRepo) GetEmail(ctx context.Context, id uint64) (string, error) {
	var email string
	err := r.db.QueryRowContext(ctx,
		"SELECT email FROM users WHERE id = ? AND status = 'active'", id).Scan(&email)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrUserNotFound
	}
	return email, err
}

// EditProfilePicture replaces the picture; an empty image clears it.
func (r *UserRepo) EditProfilePicture(ctx context.Context, id uint64, image []byte) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE users SET profile_image = ? WHERE id = ? AND status = 'active'", blob(image), id)
	if err != nil {
		return err
	}
	return expectRow(res, ErrUserNotFound)
}

// EmailUnchangedTx locks the user row and reports whether candidate equals
// the stored email.
func (r *UserRepo) EmailUnchangedTx(ctx context.Context, tx *sql.Tx, id uint64, candidate string) (bool, error) {
	var current string
	err := tx.QueryRowContext(ctx,
		"SELECT email FROM users WHERE id = ? AND status = 'active' FOR UPDATE", id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrUserNotFound
	}
	if err != nil {
		return false, err
	}
	return current == normalizeEmail(candidate), nil
}

// EditUserProfileTx writes names and email.
func (r *UserRepo) EditUserProfileTx(ctx context.Context, tx *sql.Tx, edit model.ProfileEdit) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE users SET first_name = ?, last_name = ?, email = ? WHERE id = ? AND status = 'active'",
		edit.FirstName, edit.LastName, normalizeEmail(edit.Email), edit.UserID)
	if err != nil {
		if isDuplicate(err) {
			return ErrEmailExists
		}
		return err
	}
	return expectRow(res, ErrUserNotFound)
}

// SetEmailVerifiedTx flips the verified flag of the active owner of email.
func (r *UserRepo) SetEmailVerifiedTx(ctx context.Context, tx *sql.Tx, email string, verified bool) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE users SET email_verified = ? WHERE email = ? AND status = 'active'",
		verified, normalizeEmail(email))
	if err != nil {
		return err
	}
	return expectRow(res, ErrUserNotFound)
}

// StoreVerificationCode overwrites any pending code.
func (r *UserRepo) StoreVerificationCode(ctx context.Context, id uint64, code string) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE users SET code_pass = ? WHERE id = ? AND status = 'active'", code, id)
	if err != nil {
		return err
	}
	return expectRow(res, ErrUserNotFound)
}

func (r *UserRepo) ClearVerificationCodeTx(ctx context.Context, tx *sql.Tx, email string) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE users SET code_pass = '' WHERE email = ? AND status = 'active'", normalizeEmail(email))
	return err
}

// VerifyCodeTx locks the user row and compares code with the stored one.
// It returns the user's email so the caller can finish verification in
// the same transaction.
func (r *UserRepo) VerifyCodeTx(ctx context.Context, tx *sql.Tx, id uint64, code string) (string, bool, error) {
	var email, stored string
	err := tx.QueryRowContext(ctx,
		"SELECT email, code_pass FROM users WHERE id = ? AND status = 'active' FOR UPDATE", id).
		Scan(&email, &stored)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, ErrUserNotFound
	}
	if err != nil {
		return "", false, err
	}
	return email, utils.CodesEqual(code, stored), nil
}

// DeactivateTx soft-deletes the account.  Both id and email must match.
func (r *UserRepo) DeactivateTx(ctx context.Context, tx *sql.Tx, id uint64, email string) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE users SET status = 'deactivated' WHERE id = ? AND email = ? AND status = 'active'",
		id, normalizeEmail(email))
	if err != nil {
		return err
	}
	return expectRow(res, ErrUserNotFound)
}

// IncrementFoodCountTx bumps num_of_food_added of an active owner.
func (r *UserRepo) IncrementFoodCountTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE users SET num_of_food_added = num_of_food_added + 1 WHERE id = ? AND status = 'active'", id)
	if err != nil {
		return err
	}
	return expectRow(res, ErrUserNotFound)
}

// LockActiveTx takes a row lock on an active user, serializing
// reservation changes for that user.
func (r *UserRepo) LockActiveTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	var got uint64
	err := tx.QueryRowContext(ctx,
		"SELECT id FROM users WHERE id = ? AND status = 'active' FOR UPDATE", id).Scan(&got)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrUserNotFound
	}
	return err
}

// MarkUserReservedTx sets has_reserve.  It is only called inside the
// transaction that changes the user's reservation status.
func (r *UserRepo) MarkUserReservedTx(ctx context.Context, tx *sql.Tx, id uint64, reserved bool) error {
	_, err := tx.ExecContext(ctx, "UPDATE users SET has_reserve = ? WHERE id = ?", reserved, id)
	return err
}
