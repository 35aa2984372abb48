package db

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
)

// Store error kinds. Callers branch with errors.Is; the concrete driver
// error stays wrapped underneath for logging.
var (
	ErrNotFound     = errors.New("store: no rows")
	ErrConflict     = errors.New("store: unique constraint violation")
	ErrAccessDenied = errors.New("store: access denied")
	ErrTimeout      = errors.New("store: timeout")
)

// QueryError wraps a failed store operation with the operation name so log
// lines can say what was being attempted.
type QueryError struct {
	Op  string
	Err error
}

func (e *QueryError) Error() string {
	return "store: " + e.Op + ": " + e.Err.Error()
}

func (e *QueryError) Unwrap() error { return e.Err }

// classify maps a gorm/sqlite error onto a store error kind, keeping the
// cause wrapped. A context deadline counts as a timeout regardless of where
// in the driver it surfaced.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	kind := err
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		kind = ErrNotFound
	case errors.Is(err, context.DeadlineExceeded):
		kind = ErrTimeout
	case isConflict(err):
		kind = ErrConflict
	case isAccessDenied(err):
		kind = ErrAccessDenied
	default:
		return &QueryError{Op: op, Err: err}
	}
	return &QueryError{Op: op, Err: errors.Join(kind, err)}
}

func isConflict(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "constraint failed: UNIQUE")
}

func isAccessDenied(err error) bool {
	msg := err.Error()
	// SQLITE_READONLY / SQLITE_AUTH / SQLITE_PERM all mean the calling
	// identity may not touch the table.
	return strings.Contains(msg, "readonly database") ||
		strings.Contains(msg, "access denied") ||
		strings.Contains(msg, "not authorized") ||
		strings.Contains(msg, "authorization denied")
}
