package ledger

import (
	"context"
	"fmt"
)

// Validator decides whether a proposed movement respects the quantity rules.
// It only reads.
type Validator struct {
	calc *Calculator
}

// NewValidator creates a validator that reads from store.
func NewValidator(store Store) *Validator {
	return &Validator{calc: NewCalculator(store)}
}

// Validate returns nil when the proposal is accepted. A refusal is a
// *RejectionError. Malformed proposals and unknown equipment return the
// matching sentinel error.
func (v *Validator) Validate(ctx context.Context, p Proposal) error {
	if err := checkProposal(p); err != nil {
		return err
	}
	pos, err := v.calc.Position(ctx, p.EquipmentID)
	if err != nil {
		return err
	}
	return Check(pos, p)
}

// Check applies the rule for p.Kind against an already folded position.
//
//	send               quantity <= available
//	return             site given, quantity <= sent to that site
//	maintenance        quantity <= available
//	return_maintenance quantity <= in maintenance
//	return_loss        quantity <= lost
//	loss               always accepted
func Check(pos Position, p Proposal) error {
	switch p.Kind {
	case KindSend:
		if available := pos.Available(); p.Quantity > available {
			return reject(p, available,
				"insufficient available quantity: requested %d, available %d", p.Quantity, available)
		}
	case KindReturn:
		if p.SiteID == nil {
			re := reject(p, 0, "site is required for returns")
			re.cause = ErrSiteRequired
			return re
		}
		if sent := pos.SentToSite(*p.SiteID); p.Quantity > sent {
			return reject(p, sent,
				"return exceeds quantity sent to site: requested %d, sent %d", p.Quantity, sent)
		}
	case KindMaintenance:
		if available := pos.Available(); p.Quantity > available {
			return reject(p, available,
				"insufficient available quantity for maintenance: requested %d, available %d", p.Quantity, available)
		}
	case KindReturnMaintenance:
		if inMaintenance := pos.InMaintenance(); p.Quantity > inMaintenance {
			return reject(p, inMaintenance,
				"insufficient quantity in maintenance: requested %d, in maintenance %d", p.Quantity, inMaintenance)
		}
	case KindReturnLoss:
		if lost := pos.Lost(); p.Quantity > lost {
			return reject(p, lost,
				"insufficient lost quantity: requested %d, lost %d", p.Quantity, lost)
		}
	case KindLoss:
		// Loss is recorded as observed.
	default:
		return fmt.Errorf("%w: %q", ErrInvalidKind, p.Kind)
	}
	return nil
}

func checkProposal(p Proposal) error {
	if !p.Kind.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidKind, p.Kind)
	}
	if p.Quantity <= 0 || p.Quantity > MaxQuantity {
		return fmt.Errorf("%w: got %d, must be between 1 and %d", ErrInvalidQuantity, p.Quantity, MaxQuantity)
	}
	return nil
}
