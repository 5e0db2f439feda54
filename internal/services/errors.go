package services

import (
	"errors"

	"github.com/jackc/pgx/v5"

	"inspecta-backend/internal/repository"
)

// Custom errors
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string { return "Validation error" }

type ConflictError struct{ Message string }

func (e *ConflictError) Error() string { return e.Message }

type NotFoundError struct{ Message string }

func (e *NotFoundError) Error() string { return e.Message }

type UnauthorizedError struct{ Message string }

func (e *UnauthorizedError) Error() string { return e.Message }

type ForbiddenError struct{ Message string }

func (e *ForbiddenError) Error() string { return e.Message }

type RateLimitError struct{ Message string }

func (e *RateLimitError) Error() string { return e.Message }

// notFound maps a missing row to a NotFoundError and passes anything else
// through.
func notFound(err error, message string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return &NotFoundError{Message: message}
	}
	return err
}

// storeError maps constraint violations from the repository layer to
// service errors.
func storeError(err error, conflict, missing string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return &NotFoundError{Message: missing}
	case repository.IsUniqueViolation(err):
		return &ConflictError{Message: conflict}
	case repository.IsForeignKeyViolation(err):
		return &ConflictError{Message: "Referenced record does not exist or is still in use"}
	}
	return err
}
