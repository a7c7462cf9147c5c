package store

import (
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

// StorageError is a store-layer failure, surfaced to the caller of the
// operation that hit it.
type StorageError struct {
	// Op is the store operation: "upsert", "delete", "delete_all", "query".
	Op string

	// Constraint is true when SQLite rejected the write on a constraint
	// (NOT NULL, CHECK, PRIMARY KEY).
	Constraint bool

	Err error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	if e.Constraint {
		return fmt.Sprintf("storage %s: constraint violation: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsStorageError returns true if err is or wraps a StorageError.
func IsStorageError(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}

// IsConstraintError returns true if err is a StorageError caused by a
// constraint violation.
func IsConstraintError(err error) bool {
	var se *StorageError
	return errors.As(err, &se) && se.Constraint
}

func storageError(op string, err error) *StorageError {
	var sqliteErr sqlite3.Error
	constraint := errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint
	return &StorageError{Op: op, Constraint: constraint, Err: err}
}
