// Package repository holds the MySQL repositories of the API server and
// the sentinel errors handlers translate into HTTP statuses.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrEmailExists is returned by UserRepo.Create for a duplicate email.
// Handlers answer 409.
var ErrEmailExists = errors.New("email already exists")

// ErrBookingNotFound is returned when a booking does not exist or belongs
// to another user. Handlers answer 404 in both cases so ids of other
// users' bookings are not disclosed.
var ErrBookingNotFound = errors.New("booking not found")

// ErrBookingExists is returned when a booking id is already taken.
var ErrBookingExists = errors.New("booking already exists")

// isDuplicate reports a MySQL duplicate-key error (1062).
func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}
