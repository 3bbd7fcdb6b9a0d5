package inventory

import (
	"errors"
	"fmt"

	"github.com/warp/scaffold-engine/ledger"
)

var (
	// ErrNotFound is returned when a referenced entity doesn't exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateDescription is returned when an equipment description is taken.
	ErrDuplicateDescription = errors.New("duplicate equipment description")

	// ErrConstraintViolation is returned when a delete would orphan dependent rows.
	ErrConstraintViolation = errors.New("constraint violation")

	// ErrInvalidInput is returned for malformed entity fields.
	ErrInvalidInput = errors.New("invalid input")
)

// NotFoundError names the missing entity.
type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// DuplicateDescriptionError carries the normalized description that clashed.
type DuplicateDescriptionError struct {
	Description string
}

func (e *DuplicateDescriptionError) Error() string {
	return fmt.Sprintf("equipment %q already exists", e.Description)
}

func (e *DuplicateDescriptionError) Unwrap() error {
	return ErrDuplicateDescription
}

// InUseError is returned when deleting an entity still referenced elsewhere.
type InUseError struct {
	Entity string
	ID     int64
}

func (e *InUseError) Error() string {
	return fmt.Sprintf("%s %d is still referenced and cannot be deleted", e.Entity, e.ID)
}

func (e *InUseError) Unwrap() error {
	return ErrConstraintViolation
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// IsNotFound returns true for missing entities, equipment or sites.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || ledger.IsNotFound(err)
}

// IsConflict returns true when the request clashes with existing state.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateDescription) ||
		errors.Is(err, ErrConstraintViolation) ||
		errors.Is(err, ledger.ErrDuplicateIdempotencyKey)
}

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		ledger.IsClientError(err)
}
