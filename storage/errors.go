package storage

import (
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

var (
	// ErrConflict matches any insert rejected by a unique constraint.
	ErrConflict = errors.New("conflict")
	// ErrNotFound is returned by lookups that match no row.
	ErrNotFound = errors.New("not found")
)

// ConflictError is returned when an insert hits a unique constraint, whatever
// the database engine.
type ConflictError struct {
	Table string
	Key   string
	Err   error
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %q already exists", e.Table, e.Key)
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

func (e *ConflictError) Unwrap() error { return e.Err }

// isUniqueViolation recognizes unique and primary key violations from both
// supported drivers.
func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint &&
			(sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
				sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

func classifyInsertError(err error, table, key string) error {
	if isUniqueViolation(err) {
		return &ConflictError{Table: table, Key: key, Err: err}
	}
	return fmt.Errorf("failed to insert into %s: %w", table, err)
}
