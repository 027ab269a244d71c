// Package repository holds the MySQL-backed stores.  Every tenant-owned
// table is read and written through a Scope, so a query can never run
// without a tenant filter.
//
// The sentinel errors below let services distinguish failure modes without
// knowing about SQL.
package repository

import (
	"database/sql"
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when a row does not exist, or exists outside the
// caller's scope.  Handlers translate it into a 404.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert or update hits a unique key.
var ErrDuplicate = errors.New("duplicate")

// ErrUnscoped is returned when a tenant-scoped method receives the zero
// Scope.  It always indicates a programming error.
var ErrUnscoped = errors.New("repository call without tenant scope")

// ErrForbidden is returned when the caller attempts an operation on a
// resource they do not own.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when an update cannot be applied because of
// conflicting state.
var ErrConflict = errors.New("conflict")

const mysqlDuplicateEntry = 1062

// isDuplicate reports whether err is a MySQL duplicate-key error.
func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}

// notFound maps sql.ErrNoRows to ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
