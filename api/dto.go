/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Domain types carry no
  json tags; everything on the wire goes through these types.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

TYPES:
  Entities:
    EquipmentDTO, PositionDTO, SiteDTO, ClientDTO
    EquipmentRequest, SiteRequest, ClientRequest

  Ledger:
    MovementDTO, MovementRequest, ValidationDTO
    BatchRequest, BatchResultDTO, SiteHoldingDTO

  Observations:
    ChecklistDTO, ChecklistRequest, TemplatesDTO
    MaintenanceDTO, MaintenanceRequest, StatusRequest

  Reports:
    DashboardDTO, StatusSummaryDTO, MaintenanceSummaryDTO,
    MonthlyLossDTO, AnomalyDTO

DATES:
  Calendar dates (site start/end) are "YYYY-MM-DD". Timestamps are RFC 3339.
  Costs are decimal strings ("150.50").

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/scaffold-engine/inventory"
	"github.com/warp/scaffold-engine/ledger"
)

// =============================================================================
// ENTITIES
// =============================================================================

// EquipmentDTO represents an equipment type in API responses.
type EquipmentDTO struct {
	ID            int64     `json:"id"`
	Description   string    `json:"description"`
	Code          string    `json:"code,omitempty"`
	Measure       string    `json:"measure,omitempty"`
	QuantityOwned int       `json:"quantity_owned"`
	Status        string    `json:"status"`
	Notes         string    `json:"notes,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// EquipmentRequest is the body for creating or updating equipment.
type EquipmentRequest struct {
	Description   string `json:"description"`
	Code          string `json:"code"`
	Measure       string `json:"measure"`
	QuantityOwned int    `json:"quantity_owned"`
	Status        string `json:"status"`
	Notes         string `json:"notes"`
}

func (r EquipmentRequest) toEquipment() inventory.Equipment {
	return inventory.Equipment{
		Description:   r.Description,
		Code:          r.Code,
		Measure:       r.Measure,
		QuantityOwned: r.QuantityOwned,
		Status:        inventory.EquipmentStatus(r.Status),
		Notes:         r.Notes,
	}
}

// PositionDTO is an equipment with its ledger-derived quantities.
type PositionDTO struct {
	EquipmentDTO
	Available     int    `json:"available"`
	Sent          int    `json:"sent"`
	InMaintenance int    `json:"in_maintenance"`
	Lost          int    `json:"lost"`
	DerivedStatus string `json:"derived_status"`
}

// SiteDTO represents a construction site.
type SiteDTO struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	ClientID    *int64    `json:"client_id,omitempty"`
	ClientName  string    `json:"client_name,omitempty"`
	Address     string    `json:"address,omitempty"`
	Responsible string    `json:"responsible,omitempty"`
	Phone       string    `json:"phone,omitempty"`
	StartDate   string    `json:"start_date,omitempty"`
	EndDate     string    `json:"end_date,omitempty"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

// SiteRequest is the body for creating or updating a site.
type SiteRequest struct {
	Name        string `json:"name"`
	ClientID    *int64 `json:"client_id"`
	Address     string `json:"address"`
	Responsible string `json:"responsible"`
	Phone       string `json:"phone"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	Status      string `json:"status"`
}

func (r SiteRequest) toSite() (inventory.Site, error) {
	site := inventory.Site{
		Name:        r.Name,
		Address:     r.Address,
		Responsible: r.Responsible,
		Phone:       r.Phone,
		Status:      inventory.SiteStatus(r.Status),
	}
	if r.ClientID != nil {
		id := inventory.ClientID(*r.ClientID)
		site.ClientID = &id
	}
	var err error
	if site.StartDate, err = parseOptionalDate("start_date", r.StartDate); err != nil {
		return site, err
	}
	if site.EndDate, err = parseOptionalDate("end_date", r.EndDate); err != nil {
		return site, err
	}
	return site, nil
}

// ClientDTO represents a client.
type ClientDTO struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Contact   string    `json:"contact,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	Email     string    `json:"email,omitempty"`
	Address   string    `json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ClientRequest is the body for creating or updating a client.
type ClientRequest struct {
	Name    string `json:"name"`
	Contact string `json:"contact"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
	Address string `json:"address"`
}

func (r ClientRequest) toClient() inventory.Client {
	return inventory.Client{
		Name:    r.Name,
		Contact: r.Contact,
		Phone:   r.Phone,
		Email:   r.Email,
		Address: r.Address,
	}
}

// =============================================================================
// LEDGER
// =============================================================================

// MovementDTO represents one ledger entry.
type MovementDTO struct {
	ID             int64     `json:"id"`
	Kind           string    `json:"kind"`
	EquipmentID    int64     `json:"equipment_id"`
	Equipment      string    `json:"equipment,omitempty"`
	SiteID         *int64    `json:"site_id,omitempty"`
	Site           string    `json:"site,omitempty"`
	Quantity       int       `json:"quantity"`
	OccurredAt     time.Time `json:"occurred_at"`
	Responsible    string    `json:"responsible,omitempty"`
	Notes          string    `json:"notes,omitempty"`
	ReferenceID    string    `json:"reference_id,omitempty"`
	IdempotencyKey string    `json:"idempotency_key,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// MovementRequest is the body for recording or validating a movement.
type MovementRequest struct {
	Kind           string     `json:"kind"`
	EquipmentID    int64      `json:"equipment_id"`
	SiteID         *int64     `json:"site_id"`
	Quantity       int        `json:"quantity"`
	OccurredAt     *time.Time `json:"occurred_at"`
	Responsible    string     `json:"responsible"`
	Notes          string     `json:"notes"`
	IdempotencyKey string     `json:"idempotency_key"`
}

func (r MovementRequest) toProposal() (ledger.Proposal, error) {
	kind, err := ledger.ParseKind(r.Kind)
	if err != nil {
		return ledger.Proposal{}, err
	}
	return ledger.Proposal{
		Kind:        kind,
		EquipmentID: ledger.EquipmentID(r.EquipmentID),
		SiteID:      siteRef(r.SiteID),
		Quantity:    r.Quantity,
	}, nil
}

func (r MovementRequest) toEntry() (ledger.Entry, error) {
	p, err := r.toProposal()
	if err != nil {
		return ledger.Entry{}, err
	}
	return ledger.Entry{
		Proposal:       p,
		Responsible:    r.Responsible,
		Notes:          r.Notes,
		OccurredAt:     r.OccurredAt,
		IdempotencyKey: r.IdempotencyKey,
	}, nil
}

// ValidationDTO is the outcome of a dry-run validation. Requested and Limit
// are set for rejections.
type ValidationDTO struct {
	Valid     bool   `json:"valid"`
	Reason    string `json:"reason,omitempty"`
	Requested int    `json:"requested,omitempty"`
	Limit     *int   `json:"limit,omitempty"`
}

// BatchRequest records several equipment types with shared header fields.
type BatchRequest struct {
	Kind        string             `json:"kind"`
	SiteID      *int64             `json:"site_id"`
	Responsible string             `json:"responsible"`
	Notes       string             `json:"notes"`
	OccurredAt  *time.Time         `json:"occurred_at"`
	Items       []BatchItemRequest `json:"items"`
}

type BatchItemRequest struct {
	EquipmentID int64 `json:"equipment_id"`
	Quantity    int   `json:"quantity"`
}

func (r BatchRequest) toBatch() (ledger.Batch, error) {
	kind, err := ledger.ParseKind(r.Kind)
	if err != nil {
		return ledger.Batch{}, err
	}
	b := ledger.Batch{
		Kind:        kind,
		SiteID:      siteRef(r.SiteID),
		Responsible: r.Responsible,
		Notes:       r.Notes,
		OccurredAt:  r.OccurredAt,
		Items:       make([]ledger.BatchItem, 0, len(r.Items)),
	}
	for _, item := range r.Items {
		b.Items = append(b.Items, ledger.BatchItem{
			EquipmentID: ledger.EquipmentID(item.EquipmentID),
			Quantity:    item.Quantity,
		})
	}
	return b, nil
}

// BatchResultDTO lists every batch item as recorded or failed.
type BatchResultDTO struct {
	ReferenceID string            `json:"reference_id"`
	Succeeded   []BatchSuccessDTO `json:"succeeded"`
	Failed      []BatchFailureDTO `json:"failed"`
}

type BatchSuccessDTO struct {
	EquipmentID int64 `json:"equipment_id"`
	Quantity    int   `json:"quantity"`
	MovementID  int64 `json:"movement_id"`
}

type BatchFailureDTO struct {
	EquipmentID int64  `json:"equipment_id"`
	Quantity    int    `json:"quantity"`
	Reason      string `json:"reason"`
}

// SiteHoldingDTO is one equipment line of a site overview.
type SiteHoldingDTO struct {
	EquipmentID int64  `json:"equipment_id"`
	Description string `json:"description"`
	Quantity    int    `json:"quantity"`
}

// SentToSiteDTO is the net quantity of one equipment at one site.
type SentToSiteDTO struct {
	EquipmentID int64 `json:"equipment_id"`
	SiteID      int64 `json:"site_id"`
	Quantity    int   `json:"quantity"`
}

// =============================================================================
// CHECKLISTS AND MAINTENANCE
// =============================================================================

type ChecklistItemDTO struct {
	Text  string `json:"text"`
	State string `json:"state"`
}

// ChecklistDTO represents a stored checklist.
type ChecklistDTO struct {
	ID          int64              `json:"id"`
	Kind        string             `json:"kind"`
	SiteID      int64              `json:"site_id"`
	Site        string             `json:"site,omitempty"`
	Responsible string             `json:"responsible"`
	Items       []ChecklistItemDTO `json:"items"`
	Notes       string             `json:"notes,omitempty"`
	Status      string             `json:"status"`
	CreatedAt   time.Time          `json:"created_at"`
}

// ChecklistRequest creates a checklist. Either Items is given verbatim, or
// the lines come from the kind's default template with Checked marking the
// verified ones and Extras appended.
type ChecklistRequest struct {
	Kind        string             `json:"kind"`
	SiteID      int64              `json:"site_id"`
	Responsible string             `json:"responsible"`
	Notes       string             `json:"notes"`
	Items       []ChecklistItemDTO `json:"items"`
	Checked     []string           `json:"checked"`
	Extras      []string           `json:"extras"`
}

// StatusRequest changes the status of a checklist or maintenance record.
type StatusRequest struct {
	Status string `json:"status"`
}

// TemplatesDTO lists the default items and named templates per kind.
type TemplatesDTO struct {
	Defaults map[string][]string  `json:"defaults"`
	Named    []inventory.Template `json:"named"`
}

// MaintenanceDTO represents a maintenance record.
type MaintenanceDTO struct {
	ID          int64            `json:"id"`
	EquipmentID int64            `json:"equipment_id"`
	Equipment   string           `json:"equipment,omitempty"`
	Kind        string           `json:"kind,omitempty"`
	Description string           `json:"description"`
	Responsible string           `json:"responsible,omitempty"`
	Cost        *decimal.Decimal `json:"cost,omitempty"`
	Status      string           `json:"status"`
	CreatedAt   time.Time        `json:"created_at"`
}

// MaintenanceRequest creates a maintenance record. Cost accepts a JSON
// number or a decimal string.
type MaintenanceRequest struct {
	EquipmentID int64            `json:"equipment_id"`
	Kind        string           `json:"kind"`
	Description string           `json:"description"`
	Responsible string           `json:"responsible"`
	Cost        *decimal.Decimal `json:"cost"`
	Status      string           `json:"status"`
}

// =============================================================================
// REPORTS
// =============================================================================

type StatusSummaryDTO struct {
	Available     int            `json:"available"`
	Sent          int            `json:"sent"`
	InMaintenance int            `json:"in_maintenance"`
	Lost          int            `json:"lost"`
	ByStatus      map[string]int `json:"by_status"`
}

type SiteSummaryDTO struct {
	Site           SiteDTO `json:"site"`
	Units          int     `json:"units"`
	EquipmentTypes int     `json:"equipment_types"`
}

// DashboardDTO holds the headline numbers. Site is present only when the
// request named a site.
type DashboardDTO struct {
	TotalOwned     int              `json:"total_owned"`
	EquipmentTypes int              `json:"equipment_types"`
	Clients        int              `json:"clients"`
	ActiveSites    int              `json:"active_sites"`
	Movements      int              `json:"movements"`
	Status         StatusSummaryDTO `json:"status"`
	Site           *SiteSummaryDTO  `json:"site,omitempty"`
}

type MaintenanceSummaryDTO struct {
	Records   int             `json:"records"`
	Pending   int             `json:"pending"`
	TotalCost decimal.Decimal `json:"total_cost"`
}

type MonthlyLossDTO struct {
	Month    string `json:"month"`
	Quantity int    `json:"quantity"`
}

// AnomalyDTO is an equipment whose log disagrees with its owned quantity.
type AnomalyDTO struct {
	EquipmentID int64    `json:"equipment_id"`
	Owned       int      `json:"owned"`
	SentNet     int      `json:"sent_net"`
	Maintenance int      `json:"maintenance_net"`
	LossNet     int      `json:"loss_net"`
	Problems    []string `json:"problems"`
}

// ScenarioDTO describes a demo data set.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest selects the scenario to load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func toEquipmentDTO(e inventory.Equipment) EquipmentDTO {
	return EquipmentDTO{
		ID:            int64(e.ID),
		Description:   e.Description,
		Code:          e.Code,
		Measure:       e.Measure,
		QuantityOwned: e.QuantityOwned,
		Status:        string(e.Status),
		Notes:         e.Notes,
		CreatedAt:     e.CreatedAt,
	}
}

func toPositionDTO(p inventory.Position) PositionDTO {
	return PositionDTO{
		EquipmentDTO:  toEquipmentDTO(p.Equipment),
		Available:     p.Available,
		Sent:          p.Sent,
		InMaintenance: p.InMaintenance,
		Lost:          p.Lost,
		DerivedStatus: string(p.DerivedStatus),
	}
}

func toSiteDTO(s inventory.Site) SiteDTO {
	dto := SiteDTO{
		ID:          int64(s.ID),
		Name:        s.Name,
		ClientName:  s.ClientName,
		Address:     s.Address,
		Responsible: s.Responsible,
		Phone:       s.Phone,
		Status:      string(s.Status),
		CreatedAt:   s.CreatedAt,
	}
	if s.ClientID != nil {
		id := int64(*s.ClientID)
		dto.ClientID = &id
	}
	if s.StartDate != nil {
		dto.StartDate = s.StartDate.Format(time.DateOnly)
	}
	if s.EndDate != nil {
		dto.EndDate = s.EndDate.Format(time.DateOnly)
	}
	return dto
}

func toClientDTO(c inventory.Client) ClientDTO {
	return ClientDTO{
		ID:        int64(c.ID),
		Name:      c.Name,
		Contact:   c.Contact,
		Phone:     c.Phone,
		Email:     c.Email,
		Address:   c.Address,
		CreatedAt: c.CreatedAt,
	}
}

func toMovementDTO(m ledger.Movement) MovementDTO {
	dto := MovementDTO{
		ID:             int64(m.ID),
		Kind:           string(m.Kind),
		EquipmentID:    int64(m.EquipmentID),
		Equipment:      m.EquipmentDescription,
		Site:           m.SiteName,
		Quantity:       m.Quantity,
		OccurredAt:     m.OccurredAt,
		Responsible:    m.Responsible,
		Notes:          m.Notes,
		ReferenceID:    m.ReferenceID,
		IdempotencyKey: m.IdempotencyKey,
		CreatedAt:      m.CreatedAt,
	}
	if m.SiteID != nil {
		id := int64(*m.SiteID)
		dto.SiteID = &id
	}
	return dto
}

func toMovementDTOs(ms []ledger.Movement) []MovementDTO {
	dtos := make([]MovementDTO, 0, len(ms))
	for _, m := range ms {
		dtos = append(dtos, toMovementDTO(m))
	}
	return dtos
}

func toBatchResultDTO(r ledger.BatchResult) BatchResultDTO {
	dto := BatchResultDTO{
		ReferenceID: r.ReferenceID,
		Succeeded:   make([]BatchSuccessDTO, 0, len(r.Succeeded)),
		Failed:      make([]BatchFailureDTO, 0, len(r.Failed)),
	}
	for _, s := range r.Succeeded {
		dto.Succeeded = append(dto.Succeeded, BatchSuccessDTO{
			EquipmentID: int64(s.EquipmentID),
			Quantity:    s.Quantity,
			MovementID:  int64(s.MovementID),
		})
	}
	for _, f := range r.Failed {
		dto.Failed = append(dto.Failed, BatchFailureDTO{
			EquipmentID: int64(f.EquipmentID),
			Quantity:    f.Quantity,
			Reason:      f.Reason,
		})
	}
	return dto
}

func toChecklistDTO(c inventory.Checklist) ChecklistDTO {
	items := make([]ChecklistItemDTO, 0, len(c.Items))
	for _, item := range c.Items {
		items = append(items, ChecklistItemDTO{Text: item.Text, State: string(item.State)})
	}
	return ChecklistDTO{
		ID:          int64(c.ID),
		Kind:        string(c.Kind),
		SiteID:      int64(c.SiteID),
		Site:        c.SiteName,
		Responsible: c.Responsible,
		Items:       items,
		Notes:       c.Notes,
		Status:      string(c.Status),
		CreatedAt:   c.CreatedAt,
	}
}

func toMaintenanceDTO(m inventory.MaintenanceRecord) MaintenanceDTO {
	return MaintenanceDTO{
		ID:          int64(m.ID),
		EquipmentID: int64(m.EquipmentID),
		Equipment:   m.EquipmentDescription,
		Kind:        m.Kind,
		Description: m.Description,
		Responsible: m.Responsible,
		Cost:        m.Cost,
		Status:      string(m.Status),
		CreatedAt:   m.CreatedAt,
	}
}

func toStatusSummaryDTO(s inventory.StatusSummary) StatusSummaryDTO {
	byStatus := make(map[string]int, len(s.ByStatus))
	for status, n := range s.ByStatus {
		byStatus[string(status)] = n
	}
	return StatusSummaryDTO{
		Available:     s.Available,
		Sent:          s.Sent,
		InMaintenance: s.InMaintenance,
		Lost:          s.Lost,
		ByStatus:      byStatus,
	}
}

func toDashboardDTO(d inventory.Dashboard) DashboardDTO {
	dto := DashboardDTO{
		TotalOwned:     d.TotalOwned,
		EquipmentTypes: d.EquipmentTypes,
		Clients:        d.Clients,
		ActiveSites:    d.ActiveSites,
		Movements:      d.Movements,
		Status:         toStatusSummaryDTO(d.Status),
	}
	if d.Site != nil {
		dto.Site = &SiteSummaryDTO{
			Site:           toSiteDTO(d.Site.Site),
			Units:          d.Site.Units,
			EquipmentTypes: d.Site.EquipmentTypes,
		}
	}
	return dto
}

func toAnomalyDTO(a ledger.Anomaly) AnomalyDTO {
	return AnomalyDTO{
		EquipmentID: int64(a.Position.EquipmentID),
		Owned:       a.Position.Owned,
		SentNet:     a.Position.SentNet,
		Maintenance: a.Position.MaintenanceNet,
		LossNet:     a.Position.LossNet,
		Problems:    a.Problems,
	}
}

func siteRef(id *int64) *ledger.SiteID {
	if id == nil {
		return nil
	}
	return ledger.SiteRef(ledger.SiteID(*id))
}

func parseOptionalDate(field, s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be YYYY-MM-DD", inventory.ErrInvalidInput, field)
	}
	return &t, nil
}
