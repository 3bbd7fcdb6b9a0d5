/*
balance.go - Derived quantities from the movement log

PURPOSE:
  Nothing about where units are is stored. Every quantity is computed
  by folding the complete movement log of one equipment:

    available       = owned - (sent_net + maintenance_net + loss_net)
    sent_to_site(S) = sum(send at S) - sum(return at S)
    in_maintenance  = maintenance_net
    lost            = loss_net

  Derived values are clamped to 0..owned and sums saturate at the int
  bounds. The raw nets are kept on the Position so audits can see when
  the log went negative.

SEE ALSO:
  - validator.go: Uses Position to enforce quantity rules
  - audit.go: Reports raw nets that break the owned bound
*/
package ledger

import (
	"context"
	"fmt"
	"math"
	"sort"
)

// =============================================================================
// POSITION - Folded state of one equipment
// =============================================================================

// Position is where the units of one equipment are, as derived from its log.
type Position struct {
	EquipmentID EquipmentID
	Owned       int

	// Raw nets, not clamped.
	SentNet        int
	MaintenanceNet int
	LossNet        int

	// BySite holds the raw send-minus-return net per site.
	BySite map[SiteID]int
}

// Fold computes the position of one equipment from its movements.
// Movements of other equipment are ignored.
func Fold(equipmentID EquipmentID, owned int, movements []Movement) Position {
	p := Position{
		EquipmentID: equipmentID,
		Owned:       owned,
		BySite:      make(map[SiteID]int),
	}
	for _, m := range movements {
		if m.EquipmentID != equipmentID {
			continue
		}
		switch m.Kind {
		case KindSend:
			p.SentNet = addSat(p.SentNet, m.Quantity)
			if m.SiteID != nil {
				p.BySite[*m.SiteID] = addSat(p.BySite[*m.SiteID], m.Quantity)
			}
		case KindReturn:
			p.SentNet = subSat(p.SentNet, m.Quantity)
			if m.SiteID != nil {
				p.BySite[*m.SiteID] = subSat(p.BySite[*m.SiteID], m.Quantity)
			}
		case KindMaintenance:
			p.MaintenanceNet = addSat(p.MaintenanceNet, m.Quantity)
		case KindReturnMaintenance:
			p.MaintenanceNet = subSat(p.MaintenanceNet, m.Quantity)
		case KindLoss:
			p.LossNet = addSat(p.LossNet, m.Quantity)
		case KindReturnLoss:
			p.LossNet = subSat(p.LossNet, m.Quantity)
		}
	}
	return p
}

// Outstanding is the raw number of units away from the warehouse.
func (p Position) Outstanding() int {
	return addSat(addSat(p.SentNet, p.MaintenanceNet), p.LossNet)
}

// Available is the number of units in the warehouse, never more than owned.
func (p Position) Available() int {
	return min(nonNegative(subSat(p.Owned, p.Outstanding())), nonNegative(p.Owned))
}

// Sent is the number of units out at any site.
func (p Position) Sent() int {
	return nonNegative(p.SentNet)
}

// SentToSite is the number of units currently at one site.
func (p Position) SentToSite(site SiteID) int {
	return nonNegative(p.BySite[site])
}

// InMaintenance is the number of units in maintenance.
func (p Position) InMaintenance() int {
	return nonNegative(p.MaintenanceNet)
}

// Lost is the number of units written off.
func (p Position) Lost() int {
	return nonNegative(p.LossNet)
}

func nonNegative(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

// addSat and subSat saturate at the int bounds instead of wrapping.
func addSat(a, b int) int {
	s := a + b
	if b > 0 && s < a {
		return math.MaxInt
	}
	if b < 0 && s > a {
		return math.MinInt
	}
	return s
}

func subSat(a, b int) int {
	s := a - b
	if b < 0 && s < a {
		return math.MaxInt
	}
	if b > 0 && s > a {
		return math.MinInt
	}
	return s
}

// =============================================================================
// CALCULATOR - Store-backed queries
// =============================================================================

// SiteHolding is one line of a site overview.
type SiteHolding struct {
	EquipmentID EquipmentID
	Description string
	Quantity    int
}

// Calculator answers quantity queries by reading and folding the log.
// It keeps no state between calls.
type Calculator struct {
	store Store
}

// NewCalculator creates a calculator over store.
func NewCalculator(store Store) *Calculator {
	return &Calculator{store: store}
}

// Position folds the full log of one equipment.
func (c *Calculator) Position(ctx context.Context, equipmentID EquipmentID) (Position, error) {
	owned, err := c.store.QuantityOwned(ctx, equipmentID)
	if err != nil {
		return Position{}, err
	}
	movements, err := c.store.Movements(ctx, equipmentID)
	if err != nil {
		return Position{}, fmt.Errorf("load movements for equipment %d: %w", equipmentID, err)
	}
	return Fold(equipmentID, owned, movements), nil
}

func (c *Calculator) Available(ctx context.Context, equipmentID EquipmentID) (int, error) {
	p, err := c.Position(ctx, equipmentID)
	if err != nil {
		return 0, err
	}
	return p.Available(), nil
}

func (c *Calculator) SentToSite(ctx context.Context, equipmentID EquipmentID, site SiteID) (int, error) {
	p, err := c.Position(ctx, equipmentID)
	if err != nil {
		return 0, err
	}
	return p.SentToSite(site), nil
}

func (c *Calculator) InMaintenance(ctx context.Context, equipmentID EquipmentID) (int, error) {
	p, err := c.Position(ctx, equipmentID)
	if err != nil {
		return 0, err
	}
	return p.InMaintenance(), nil
}

func (c *Calculator) Lost(ctx context.Context, equipmentID EquipmentID) (int, error) {
	p, err := c.Position(ctx, equipmentID)
	if err != nil {
		return 0, err
	}
	return p.Lost(), nil
}

// SiteOverview lists the equipment currently at a site, sorted by
// description. Equipment whose net at the site is zero or negative is
// left out. An unknown site yields an empty overview.
func (c *Calculator) SiteOverview(ctx context.Context, site SiteID) ([]SiteHolding, error) {
	movements, err := c.store.SiteMovements(ctx, site)
	if err != nil {
		return nil, fmt.Errorf("load movements for site %d: %w", site, err)
	}

	nets := make(map[EquipmentID]*SiteHolding)
	for _, m := range movements {
		if !m.AtSite(site) {
			continue
		}
		h, ok := nets[m.EquipmentID]
		if !ok {
			h = &SiteHolding{EquipmentID: m.EquipmentID, Description: m.EquipmentDescription}
			nets[m.EquipmentID] = h
		}
		switch m.Kind {
		case KindSend:
			h.Quantity += m.Quantity
		case KindReturn:
			h.Quantity -= m.Quantity
		}
	}

	result := make([]SiteHolding, 0, len(nets))
	for _, h := range nets {
		if h.Quantity > 0 {
			result = append(result, *h)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Description != result[j].Description {
			return result[i].Description < result[j].Description
		}
		return result[i].EquipmentID < result[j].EquipmentID
	})
	return result, nil
}
