package repository

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/stemsi/elearn-backend/internal/exam"
)

// notFound translates pgx's missing-row error into the domain sentinel.
func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return exam.ErrNotFound
	}
	return err
}
