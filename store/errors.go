package store

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"

	models "retail-pos/model"

	"github.com/lib/pq"
)

// translate maps driver errors onto the model's error kinds.
func translate(op, kind string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", kind, models.ErrNotFound)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%s: %w: %s", kind, models.ErrConflict, pqErr.Message)
		case "23503": // foreign_key_violation
			return fmt.Errorf("%s: %w: still referenced", kind, models.ErrConflict)
		case "23514": // check_violation
			return fmt.Errorf("%s: %w: %s", kind, models.ErrInvalidInput, pqErr.Message)
		}
	}
	return models.NewOpError(op, kind, err)
}

// IsTransient reports whether a failed commit may succeed if run again.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", // serialization_failure
			"40P01", // deadlock_detected
			"55P03", // lock_not_available
			"57P01", // admin_shutdown
			"08006", // connection_failure
			"08003": // connection_does_not_exist
			return true
		}
	}
	return false
}
