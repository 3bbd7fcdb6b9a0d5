/*
types.go - Core types for the movement ledger

PURPOSE:
  Defines the movement log vocabulary: equipment and site identifiers,
  the six movement kinds and the movement record itself.

MOVEMENT KINDS:
  send               warehouse -> site           (needs a site)
  return             site -> warehouse           (needs a site)
  maintenance        warehouse -> maintenance
  return_maintenance maintenance -> warehouse
  loss               units written off
  return_loss        written-off units recovered

  Kinds come in pairs. Each pair produces one "net" quantity:
    sent_net        = sum(send)        - sum(return)
    maintenance_net = sum(maintenance) - sum(return_maintenance)
    loss_net        = sum(loss)        - sum(return_loss)

SEE ALSO:
  - balance.go: Folds movements into a Position
  - validator.go: Quantity rules per kind
*/
package ledger

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

// MaxQuantity is the largest quantity a single movement may carry.
const MaxQuantity = math.MaxInt32

// EquipmentID identifies an equipment type (a fungible pool of units).
type EquipmentID int64

// SiteID identifies a construction site.
type SiteID int64

// MovementID identifies a movement row. Assigned by the store.
type MovementID int64

// =============================================================================
// MOVEMENT KIND
// =============================================================================

// Kind is the type of a movement.
type Kind string

const (
	KindSend              Kind = "send"
	KindReturn            Kind = "return"
	KindMaintenance       Kind = "maintenance"
	KindReturnMaintenance Kind = "return_maintenance"
	KindLoss              Kind = "loss"
	KindReturnLoss        Kind = "return_loss"
)

// Kinds lists every movement kind in display order.
var Kinds = []Kind{
	KindSend,
	KindReturn,
	KindMaintenance,
	KindReturnMaintenance,
	KindLoss,
	KindReturnLoss,
}

// Valid reports whether k is one of the six known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindSend, KindReturn, KindMaintenance, KindReturnMaintenance, KindLoss, KindReturnLoss:
		return true
	}
	return false
}

// RequiresSite reports whether a movement of this kind must name a site.
func (k Kind) RequiresSite() bool {
	return k == KindSend || k == KindReturn
}

// ParseKind parses a kind name. Matching is case-insensitive.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
	}
	return k, nil
}

// =============================================================================
// MOVEMENT
// =============================================================================

// Movement is one immutable entry of the ledger.
type Movement struct {
	ID          MovementID
	Kind        Kind
	EquipmentID EquipmentID
	SiteID      *SiteID // nil for warehouse-only movements
	Quantity    int     // always > 0
	OccurredAt  time.Time
	Responsible string
	Notes       string

	// ReferenceID groups the movements written by one batch.
	ReferenceID string
	// IdempotencyKey is optional. A key can be recorded at most once.
	IdempotencyKey string

	CreatedAt time.Time

	// Filled by list queries for display.
	EquipmentDescription string
	SiteName             string
}

// AtSite reports whether the movement names the given site.
func (m Movement) AtSite(site SiteID) bool {
	return m.SiteID != nil && *m.SiteID == site
}

// Proposal is a candidate movement submitted for validation.
type Proposal struct {
	Kind        Kind
	EquipmentID EquipmentID
	SiteID      *SiteID
	Quantity    int
}

// Entry is a movement to be recorded.
type Entry struct {
	Proposal
	Responsible string
	Notes       string
	// OccurredAt defaults to the recorder's clock when nil. Past values are
	// stored as given.
	OccurredAt     *time.Time
	ReferenceID    string
	IdempotencyKey string
}

// Filter narrows a movement listing. Zero values mean "no filter".
type Filter struct {
	Kind        Kind
	EquipmentID EquipmentID
	SiteID      SiteID
	From        time.Time // inclusive
	To          time.Time // exclusive
	Limit       int
}

// Matches reports whether m passes every set criterion of f.
func (f Filter) Matches(m Movement) bool {
	if f.Kind != "" && m.Kind != f.Kind {
		return false
	}
	if f.EquipmentID != 0 && m.EquipmentID != f.EquipmentID {
		return false
	}
	if f.SiteID != 0 && !m.AtSite(f.SiteID) {
		return false
	}
	if !f.From.IsZero() && m.OccurredAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !m.OccurredAt.Before(f.To) {
		return false
	}
	return true
}

// SiteRef returns a pointer to id, for building proposals inline.
func SiteRef(id SiteID) *SiteID {
	return &id
}
