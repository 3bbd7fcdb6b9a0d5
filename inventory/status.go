package inventory

import "github.com/warp/scaffold-engine/ledger"

// DerivedStatus summarizes a position as a single tag. Units in the
// warehouse win; otherwise the first non-empty bucket of sent, maintenance
// and lost decides.
func DerivedStatus(p ledger.Position) EquipmentStatus {
	switch {
	case p.Available() > 0:
		return EquipmentAvailable
	case p.Sent() > 0:
		return EquipmentSent
	case p.InMaintenance() > 0:
		return EquipmentMaintenance
	case p.Lost() > 0:
		return EquipmentLost
	}
	return EquipmentAvailable
}

// Position is an equipment together with its derived quantities.
type Position struct {
	Equipment     Equipment
	Available     int
	Sent          int
	InMaintenance int
	Lost          int
	DerivedStatus EquipmentStatus
}

func newPosition(e Equipment, p ledger.Position) Position {
	return Position{
		Equipment:     e,
		Available:     p.Available(),
		Sent:          p.Sent(),
		InMaintenance: p.InMaintenance(),
		Lost:          p.Lost(),
		DerivedStatus: DerivedStatus(p),
	}
}
