package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// IsBusyError checks if the error is a SQLITE_BUSY or "database is locked"
// error. Both are concurrency errors that warrant a retry.
func IsBusyError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// isConstraintError checks if SQLite refused the statement on a constraint.
func isConstraintError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "constraint failed") || strings.Contains(msg, "SQLITE_CONSTRAINT")
}

// classify wraps err with ErrUnavailable or ErrRejected so callers can decide
// whether a retry makes sense.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrUnavailable) || errors.Is(err, ErrRejected) || errors.Is(err, ErrAssociationMismatch) {
		return fmt.Errorf("%s: %w", op, err)
	}
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, sql.ErrConnDone), IsBusyError(err):
		return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
	case isConstraintError(err):
		return fmt.Errorf("%s: %w: %w", op, ErrRejected, err)
	default:
		return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
	}
}
