// Package repository holds the MySQL data access code.  Errors shared by
// several repositories are declared here so that higher layers can tell
// failure kinds apart without inspecting driver errors themselves.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a lookup by id or key matches no row.
var ErrNotFound = errors.New("not found")

// ErrSlotTaken is returned when the (date, time) unique key on
// appointments rejects a write.  It is the persistence-side twin of the
// booking pre-check and must be reported to clients the same way.
var ErrSlotTaken = errors.New("appointment slot already taken")

// ErrDuplicate is returned when any other unique key rejects a write
// (promo code, weekday name, staff email).
var ErrDuplicate = errors.New("duplicate entry")

// ErrConflict is returned when a write cannot be applied because of the
// current state of related rows, such as an increment on a promo code
// that was deleted concurrently.
var ErrConflict = errors.New("conflict")

// ErrMissingParent is returned when a foreign key points at a row that
// does not exist, such as working hours for an unknown weekday.
var ErrMissingParent = errors.New("referenced row does not exist")

const (
	mysqlDuplicateEntry  = 1062
	mysqlNoReferencedRow = 1452
)

// isDuplicateKey reports whether err is a MySQL unique-key violation.
func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}

// isMissingParent reports whether err is a MySQL foreign-key violation on
// insert or update of a child row.
func isMissingParent(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlNoReferencedRow
}
