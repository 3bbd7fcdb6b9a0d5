/*
errors.go - Error types for the movement ledger

ERROR CATEGORIES:
  1. Input errors      - malformed proposals (kind, quantity, missing site)
  2. Rejections        - quantity rules violated (RejectionError)
  3. Lookup errors     - unknown equipment or site
  4. Ledger errors     - idempotency conflicts

SEE ALSO:
  - validator.go: Produces RejectionError
  - recorder.go: Produces input and idempotency errors
*/
package ledger

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrRejected is returned when a movement violates a quantity rule.
	ErrRejected = errors.New("movement rejected")

	// ErrInvalidKind is returned for an unknown movement kind.
	ErrInvalidKind = errors.New("invalid movement kind")

	// ErrInvalidQuantity is returned when a quantity is not in 1..MaxQuantity.
	ErrInvalidQuantity = errors.New("invalid quantity")

	// ErrSiteRequired is returned when a send or return names no site.
	ErrSiteRequired = errors.New("site is required for sends and returns")

	// ErrEquipmentNotFound is returned when a movement references unknown equipment.
	ErrEquipmentNotFound = errors.New("equipment not found")

	// ErrSiteNotFound is returned when a movement references an unknown site.
	ErrSiteNotFound = errors.New("site not found")

	// ErrDuplicateIdempotencyKey is returned when a key was already recorded.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// ErrEmptyBatch is returned for a batch with no items.
	ErrEmptyBatch = errors.New("batch has no items")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// RejectionError explains why a proposal was refused. Reason is meant for
// operators and names both the requested quantity and the current limit.
type RejectionError struct {
	Kind        Kind
	EquipmentID EquipmentID
	Requested   int
	Limit       int
	Reason      string

	cause error
}

func (e *RejectionError) Error() string {
	return e.Reason
}

// Unwrap matches ErrRejected, plus ErrSiteRequired for returns without a site.
func (e *RejectionError) Unwrap() []error {
	if e.cause != nil {
		return []error{ErrRejected, e.cause}
	}
	return []error{ErrRejected}
}

func reject(p Proposal, limit int, format string, args ...any) *RejectionError {
	return &RejectionError{
		Kind:        p.Kind,
		EquipmentID: p.EquipmentID,
		Requested:   p.Quantity,
		Limit:       limit,
		Reason:      fmt.Sprintf(format, args...),
	}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrRejected) ||
		errors.Is(err, ErrInvalidKind) ||
		errors.Is(err, ErrInvalidQuantity) ||
		errors.Is(err, ErrSiteRequired) ||
		errors.Is(err, ErrDuplicateIdempotencyKey) ||
		errors.Is(err, ErrEmptyBatch)
}

// IsNotFound returns true if the error indicates a missing equipment or site.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEquipmentNotFound) ||
		errors.Is(err, ErrSiteNotFound)
}

// Rejection extracts the RejectionError from err, if any.
func Rejection(err error) (*RejectionError, bool) {
	var re *RejectionError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}
