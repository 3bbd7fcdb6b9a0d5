package inventory

import (
	"context"

	"github.com/warp/scaffold-engine/ledger"
)

// Store persists inventory entities and the movement log.
//
// Get methods return (nil, nil) when the row does not exist. Delete methods
// return *InUseError when other rows still reference the entity.
type Store interface {
	ledger.TxStore

	CreateClient(ctx context.Context, c *Client) error
	GetClient(ctx context.Context, id ClientID) (*Client, error)
	ListClients(ctx context.Context) ([]Client, error)
	UpdateClient(ctx context.Context, c Client) error
	DeleteClient(ctx context.Context, id ClientID) error

	CreateSite(ctx context.Context, s *Site) error
	GetSite(ctx context.Context, id ledger.SiteID) (*Site, error)
	ListSites(ctx context.Context, f SiteFilter) ([]Site, error)
	UpdateSite(ctx context.Context, s Site) error
	DeleteSite(ctx context.Context, id ledger.SiteID) error

	CreateEquipment(ctx context.Context, e *Equipment) error
	GetEquipment(ctx context.Context, id ledger.EquipmentID) (*Equipment, error)
	ListEquipment(ctx context.Context, f EquipmentFilter) ([]Equipment, error)
	UpdateEquipment(ctx context.Context, e Equipment) error
	DeleteEquipment(ctx context.Context, id ledger.EquipmentID) error
	// DescriptionTaken reports whether another equipment than exclude
	// already uses the normalized description.
	DescriptionTaken(ctx context.Context, description string, exclude ledger.EquipmentID) (bool, error)

	CreateChecklist(ctx context.Context, c *Checklist) error
	GetChecklist(ctx context.Context, id ChecklistID) (*Checklist, error)
	ListChecklists(ctx context.Context, f ChecklistFilter) ([]Checklist, error)
	SetChecklistStatus(ctx context.Context, id ChecklistID, status ChecklistStatus) error

	CreateMaintenance(ctx context.Context, m *MaintenanceRecord) error
	GetMaintenance(ctx context.Context, id MaintenanceID) (*MaintenanceRecord, error)
	ListMaintenance(ctx context.Context, f MaintenanceFilter) ([]MaintenanceRecord, error)
	SetMaintenanceStatus(ctx context.Context, id MaintenanceID, status MaintenanceStatus) error
}
