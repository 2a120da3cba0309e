// Package repository holds the SQL data access of the service.  The
// sentinel errors below let handlers distinguish failure scenarios
// without inspecting driver errors.
package repository

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrFoodNotFound        = errors.New("food not found")
	ErrReservationNotFound = errors.New("reservation not found")

	// ErrEmailExists is returned when an active user already owns the email.
	ErrEmailExists = errors.New("email already exists")

	// ErrAlreadyReserved is returned when the user holds an active
	// reservation, whether caught by the pre-check or by the unique index.
	ErrAlreadyReserved = errors.New("user already has a reservation")

	// ErrForbidden is returned when the caller does not own the row.
	ErrForbidden = errors.New("forbidden")

	// ErrConflict signals that the target row is in a state that forbids
	// the operation, e.g. reserving an inactive food item.
	ErrConflict = errors.New("conflict")
)

const (
	mysqlDuplicateEntry = 1062
	mysqlNoReferenced   = 1452
)

func mysqlErrNumber(err error) uint16 {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number
	}
	return 0
}

func isDuplicate(err error) bool { return mysqlErrNumber(err) == mysqlDuplicateEntry }

func isMissingParent(err error) bool { return mysqlErrNumber(err) == mysqlNoReferenced }

// blob binds an image column; an empty image is stored as NULL.
func blob(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

// expectRow turns a zero-row update into notFound.  The DSN sets
// clientFoundRows, so RowsAffected counts matched rows and an update that
// leaves the values unchanged still reports one.
func expectRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
