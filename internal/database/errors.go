package database

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrLanguageNotFound is returned when no subtitle language row exists.
	ErrLanguageNotFound = errors.New("subtitle language not found")

	// ErrVersionNotFound is returned when no subtitle version row exists.
	ErrVersionNotFound = errors.New("subtitle version not found")

	// ErrVersionConflict is returned when an insert loses the race on the
	// (language_id, version_number) uniqueness constraint. The pipeline
	// recomputes the version number and retries once; callers never see it.
	ErrVersionConflict = errors.New("version number conflict")
)

// uniqueViolation is the Postgres error code for unique_violation.
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation
	}
	return false
}
