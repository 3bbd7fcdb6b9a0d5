/*
types.go - Inventory entities

PURPOSE:
  Clients own sites. Sites receive equipment. Equipment is a pool of
  interchangeable units (e.g. "TUBE 3M", 400 owned). Checklists and
  maintenance records are observations attached to a site or an
  equipment; they never move units. Only ledger movements do.

SEE ALSO:
  - ledger/types.go: Movement kinds
  - service.go: Operations over these entities
*/
package inventory

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/scaffold-engine/ledger"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type ClientID int64

type ChecklistID int64

type MaintenanceID int64

// =============================================================================
// STATUS ENUMS
// =============================================================================

// EquipmentStatus is the stored tag on an equipment. Informational only;
// see DerivedStatus for the ledger view.
type EquipmentStatus string

const (
	EquipmentAvailable   EquipmentStatus = "available"
	EquipmentSent        EquipmentStatus = "sent"
	EquipmentMaintenance EquipmentStatus = "maintenance"
	EquipmentLost        EquipmentStatus = "lost"
)

func (s EquipmentStatus) Valid() bool {
	switch s {
	case EquipmentAvailable, EquipmentSent, EquipmentMaintenance, EquipmentLost:
		return true
	}
	return false
}

type SiteStatus string

const (
	SiteActive    SiteStatus = "active"
	SiteCompleted SiteStatus = "completed"
	SitePaused    SiteStatus = "paused"
)

func (s SiteStatus) Valid() bool {
	switch s {
	case SiteActive, SiteCompleted, SitePaused:
		return true
	}
	return false
}

type ChecklistKind string

const (
	ChecklistAssembly    ChecklistKind = "assembly"
	ChecklistDisassembly ChecklistKind = "disassembly"
	ChecklistInspection  ChecklistKind = "inspection"
)

func (k ChecklistKind) Valid() bool {
	switch k {
	case ChecklistAssembly, ChecklistDisassembly, ChecklistInspection:
		return true
	}
	return false
}

type ChecklistStatus string

const (
	ChecklistPending  ChecklistStatus = "pending"
	ChecklistApproved ChecklistStatus = "approved"
	ChecklistRejected ChecklistStatus = "rejected"
)

func (s ChecklistStatus) Valid() bool {
	switch s {
	case ChecklistPending, ChecklistApproved, ChecklistRejected:
		return true
	}
	return false
}

type MaintenanceStatus string

const (
	MaintenancePending    MaintenanceStatus = "pending"
	MaintenanceInProgress MaintenanceStatus = "in_progress"
	MaintenanceCompleted  MaintenanceStatus = "completed"
)

func (s MaintenanceStatus) Valid() bool {
	switch s {
	case MaintenancePending, MaintenanceInProgress, MaintenanceCompleted:
		return true
	}
	return false
}

// =============================================================================
// ENTITIES
// =============================================================================

type Client struct {
	ID        ClientID
	Name      string
	Contact   string
	Phone     string
	Email     string
	Address   string
	CreatedAt time.Time
}

type Site struct {
	ID          ledger.SiteID
	Name        string
	ClientID    *ClientID
	ClientName  string // filled on reads
	Address     string
	Responsible string
	Phone       string
	StartDate   *time.Time
	EndDate     *time.Time
	Status      SiteStatus
	CreatedAt   time.Time
}

// Equipment is an equipment type. Description is unique and upper-case.
type Equipment struct {
	ID            ledger.EquipmentID
	Description   string
	Code          string
	Measure       string
	QuantityOwned int
	Status        EquipmentStatus
	Notes         string
	CreatedAt     time.Time
}

// Checklist is an inspection record for a site. Only Status changes after
// creation.
type Checklist struct {
	ID          ChecklistID
	Kind        ChecklistKind
	SiteID      ledger.SiteID
	SiteName    string // filled on reads
	Responsible string
	Items       []ChecklistItem
	Notes       string
	Status      ChecklistStatus
	CreatedAt   time.Time
}

// MaintenanceRecord documents work done on an equipment. Cost is recorded
// as given and may be absent.
type MaintenanceRecord struct {
	ID                   MaintenanceID
	EquipmentID          ledger.EquipmentID
	EquipmentDescription string // filled on reads
	Kind                 string
	Description          string
	Responsible          string
	Cost                 *decimal.Decimal
	Status               MaintenanceStatus
	CreatedAt            time.Time
}

// =============================================================================
// FILTERS
// =============================================================================

type EquipmentFilter struct {
	Status EquipmentStatus
}

type SiteFilter struct {
	Status   SiteStatus
	ClientID ClientID
}

type ChecklistFilter struct {
	SiteID ledger.SiteID
	Kind   ChecklistKind
	Status ChecklistStatus
}

type MaintenanceFilter struct {
	EquipmentID ledger.EquipmentID
	Status      MaintenanceStatus
	From        time.Time // inclusive
	To          time.Time // exclusive
}

// NormalizeDescription trims and upper-cases an equipment description.
func NormalizeDescription(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
