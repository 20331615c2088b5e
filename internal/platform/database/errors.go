package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"etatcivil/pkg/platform/sentinel"
)

const uniqueViolation = "23505"

// Translate maps driver errors onto store sentinels: missing rows become
// sentinel.ErrNotFound and unique violations sentinel.ErrConflict.
func Translate(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, sentinel.ErrNotFound)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
		return fmt.Errorf("%s: %w", op, sentinel.ErrConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}
