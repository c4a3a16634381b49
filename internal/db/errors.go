package db

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

// Sentinel errors. Check with errors.Is.
var (
	// ErrNotFound indicates the requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a unique-constraint violation on insert.
	ErrConflict = errors.New("conflict")
)

// notFound maps sql.ErrNoRows onto the package sentinel.
func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// isUniqueViolation checks for a Postgres unique-constraint violation.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

// conflict maps unique-constraint violations onto the package sentinel.
func conflict(err error) error {
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

// isRetryable reports whether the error is a transient contention failure
// (serialization failure or deadlock) worth retrying.
func isRetryable(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "40001" || pqErr.Code == "40P01"
	}
	return false
}
