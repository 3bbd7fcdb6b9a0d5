/*
service.go - Inventory operations

PURPOSE:
  Service is the operation set the presentation layer calls: entity
  CRUD with normalization and reference checks, plus pass-through to
  the movement ledger. Site-scoped reads take the site as an argument;
  there is no ambient "current site".

SEE ALSO:
  - ledger/ledger.go: Movement queries and commands
  - report.go: Read-only summaries
*/
package inventory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/scaffold-engine/ledger"
)

// Service implements the inventory operations over a Store.
type Service struct {
	store     Store
	ledger    *ledger.Ledger
	templates *TemplateSet
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithTemplates replaces the built-in checklist templates.
func WithTemplates(ts *TemplateSet) Option {
	return func(s *Service) {
		s.templates = ts
	}
}

// WithClock sets the clock used for creation and movement timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a Service over store.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:     store,
		templates: DefaultTemplates(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ledger = ledger.New(store, ledger.WithClock(func() time.Time { return s.now() }))
	return s
}

// =============================================================================
// EQUIPMENT
// =============================================================================

func (s *Service) ListEquipment(ctx context.Context, f EquipmentFilter) ([]Equipment, error) {
	return s.store.ListEquipment(ctx, f)
}

func (s *Service) GetEquipment(ctx context.Context, id ledger.EquipmentID) (*Equipment, error) {
	e, err := s.store.GetEquipment(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get equipment %d: %w", id, err)
	}
	if e == nil {
		return nil, &NotFoundError{Entity: "equipment", ID: int64(id)}
	}
	return e, nil
}

// AddEquipment normalizes the description, checks it is unused and creates
// the equipment.
func (s *Service) AddEquipment(ctx context.Context, e Equipment) (*Equipment, error) {
	if err := s.prepareEquipment(ctx, &e, 0); err != nil {
		return nil, err
	}
	e.CreatedAt = s.now()
	if err := s.store.CreateEquipment(ctx, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// UpdateEquipment replaces the editable fields of an existing equipment.
// The description may stay the same; it may not clash with another one.
// An empty status keeps the stored tag.
func (s *Service) UpdateEquipment(ctx context.Context, e Equipment) (*Equipment, error) {
	existing, err := s.GetEquipment(ctx, e.ID)
	if err != nil {
		return nil, err
	}
	if e.Status == "" {
		e.Status = existing.Status
	}
	if err := s.prepareEquipment(ctx, &e, e.ID); err != nil {
		return nil, err
	}
	e.CreatedAt = existing.CreatedAt
	if err := s.store.UpdateEquipment(ctx, e); err != nil {
		return nil, err
	}
	return &e, nil
}

// DeleteEquipment removes an equipment that no movement or maintenance
// record references.
func (s *Service) DeleteEquipment(ctx context.Context, id ledger.EquipmentID) error {
	if _, err := s.GetEquipment(ctx, id); err != nil {
		return err
	}
	return s.store.DeleteEquipment(ctx, id)
}

func (s *Service) prepareEquipment(ctx context.Context, e *Equipment, exclude ledger.EquipmentID) error {
	e.Description = NormalizeDescription(e.Description)
	e.Code = strings.TrimSpace(e.Code)
	e.Measure = strings.TrimSpace(e.Measure)
	if e.Description == "" {
		return invalid("description is required")
	}
	if e.QuantityOwned < 0 {
		return invalid("quantity owned must not be negative, got %d", e.QuantityOwned)
	}
	if e.Status == "" {
		e.Status = EquipmentAvailable
	}
	if !e.Status.Valid() {
		return invalid("unknown equipment status %q", e.Status)
	}
	taken, err := s.store.DescriptionTaken(ctx, e.Description, exclude)
	if err != nil {
		return fmt.Errorf("check description: %w", err)
	}
	if taken {
		return &DuplicateDescriptionError{Description: e.Description}
	}
	return nil
}

// =============================================================================
// SITES
// =============================================================================

func (s *Service) ListSites(ctx context.Context, f SiteFilter) ([]Site, error) {
	return s.store.ListSites(ctx, f)
}

func (s *Service) GetSite(ctx context.Context, id ledger.SiteID) (*Site, error) {
	site, err := s.store.GetSite(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get site %d: %w", id, err)
	}
	if site == nil {
		return nil, &NotFoundError{Entity: "site", ID: int64(id)}
	}
	return site, nil
}

func (s *Service) AddSite(ctx context.Context, site Site) (*Site, error) {
	if err := s.prepareSite(ctx, &site); err != nil {
		return nil, err
	}
	site.CreatedAt = s.now()
	if err := s.store.CreateSite(ctx, &site); err != nil {
		return nil, err
	}
	return &site, nil
}

func (s *Service) UpdateSite(ctx context.Context, site Site) (*Site, error) {
	existing, err := s.GetSite(ctx, site.ID)
	if err != nil {
		return nil, err
	}
	if site.Status == "" {
		site.Status = existing.Status
	}
	if err := s.prepareSite(ctx, &site); err != nil {
		return nil, err
	}
	site.CreatedAt = existing.CreatedAt
	if err := s.store.UpdateSite(ctx, site); err != nil {
		return nil, err
	}
	return &site, nil
}

// DeleteSite removes a site that no movement or checklist references.
func (s *Service) DeleteSite(ctx context.Context, id ledger.SiteID) error {
	if _, err := s.GetSite(ctx, id); err != nil {
		return err
	}
	return s.store.DeleteSite(ctx, id)
}

func (s *Service) prepareSite(ctx context.Context, site *Site) error {
	site.Name = strings.TrimSpace(site.Name)
	if site.Name == "" {
		return invalid("site name is required")
	}
	if site.Status == "" {
		site.Status = SiteActive
	}
	if !site.Status.Valid() {
		return invalid("unknown site status %q", site.Status)
	}
	if site.StartDate != nil && site.EndDate != nil && site.EndDate.Before(*site.StartDate) {
		return invalid("end date %s is before start date %s",
			site.EndDate.Format(time.DateOnly), site.StartDate.Format(time.DateOnly))
	}
	if site.ClientID != nil {
		client, err := s.GetClient(ctx, *site.ClientID)
		if err != nil {
			return err
		}
		site.ClientName = client.Name
	}
	return nil
}

// =============================================================================
// CLIENTS
// =============================================================================

func (s *Service) ListClients(ctx context.Context) ([]Client, error) {
	return s.store.ListClients(ctx)
}

func (s *Service) GetClient(ctx context.Context, id ClientID) (*Client, error) {
	c, err := s.store.GetClient(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get client %d: %w", id, err)
	}
	if c == nil {
		return nil, &NotFoundError{Entity: "client", ID: int64(id)}
	}
	return c, nil
}

func (s *Service) AddClient(ctx context.Context, c Client) (*Client, error) {
	if err := prepareClient(&c); err != nil {
		return nil, err
	}
	c.CreatedAt = s.now()
	if err := s.store.CreateClient(ctx, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Service) UpdateClient(ctx context.Context, c Client) (*Client, error) {
	existing, err := s.GetClient(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	if err := prepareClient(&c); err != nil {
		return nil, err
	}
	c.CreatedAt = existing.CreatedAt
	if err := s.store.UpdateClient(ctx, c); err != nil {
		return nil, err
	}
	return &c, nil
}

// DeleteClient removes a client that owns no sites.
func (s *Service) DeleteClient(ctx context.Context, id ClientID) error {
	if _, err := s.GetClient(ctx, id); err != nil {
		return err
	}
	return s.store.DeleteClient(ctx, id)
}

func prepareClient(c *Client) error {
	c.Name = strings.TrimSpace(c.Name)
	c.Email = strings.TrimSpace(c.Email)
	if c.Name == "" {
		return invalid("client name is required")
	}
	return nil
}

// =============================================================================
// LEDGER
// =============================================================================

// Position returns an equipment with its derived quantities.
func (s *Service) Position(ctx context.Context, id ledger.EquipmentID) (Position, error) {
	e, err := s.GetEquipment(ctx, id)
	if err != nil {
		return Position{}, err
	}
	p, err := s.ledger.Position(ctx, id)
	if err != nil {
		return Position{}, err
	}
	return newPosition(*e, p), nil
}

// Positions returns the derived quantities of every equipment matching f.
func (s *Service) Positions(ctx context.Context, f EquipmentFilter) ([]Position, error) {
	equipment, err := s.store.ListEquipment(ctx, f)
	if err != nil {
		return nil, err
	}
	positions := make([]Position, 0, len(equipment))
	for _, e := range equipment {
		p, err := s.ledger.Position(ctx, e.ID)
		if err != nil {
			return nil, err
		}
		positions = append(positions, newPosition(e, p))
	}
	return positions, nil
}

func (s *Service) Available(ctx context.Context, id ledger.EquipmentID) (int, error) {
	return s.ledger.Available(ctx, id)
}

func (s *Service) InMaintenance(ctx context.Context, id ledger.EquipmentID) (int, error) {
	return s.ledger.InMaintenance(ctx, id)
}

func (s *Service) Lost(ctx context.Context, id ledger.EquipmentID) (int, error) {
	return s.ledger.Lost(ctx, id)
}

func (s *Service) SentToSite(ctx context.Context, id ledger.EquipmentID, site ledger.SiteID) (int, error) {
	return s.ledger.SentToSite(ctx, id, site)
}

// EquipmentSentOverview lists the equipment currently at a site.
func (s *Service) EquipmentSentOverview(ctx context.Context, site ledger.SiteID) ([]ledger.SiteHolding, error) {
	if _, err := s.GetSite(ctx, site); err != nil {
		return nil, err
	}
	return s.ledger.SiteOverview(ctx, site)
}

func (s *Service) ValidateMovement(ctx context.Context, p ledger.Proposal) error {
	return s.ledger.Validate(ctx, p)
}

func (s *Service) RecordMovement(ctx context.Context, e ledger.Entry) (ledger.Movement, error) {
	return s.ledger.Record(ctx, e)
}

func (s *Service) RecordMovementsBatch(ctx context.Context, b ledger.Batch) (ledger.BatchResult, error) {
	return s.ledger.RecordBatch(ctx, b)
}

func (s *Service) ListMovements(ctx context.Context, f ledger.Filter) ([]ledger.Movement, error) {
	return s.ledger.Movements(ctx, f)
}

// =============================================================================
// CHECKLISTS
// =============================================================================

// AddChecklist stores a new checklist for a site. It always starts pending.
func (s *Service) AddChecklist(ctx context.Context, c Checklist) (*Checklist, error) {
	if !c.Kind.Valid() {
		return nil, invalid("unknown checklist kind %q", c.Kind)
	}
	c.Responsible = strings.TrimSpace(c.Responsible)
	if c.Responsible == "" {
		return nil, invalid("checklist responsible is required")
	}
	site, err := s.GetSite(ctx, c.SiteID)
	if err != nil {
		return nil, err
	}
	c.SiteName = site.Name
	c.Status = ChecklistPending
	c.CreatedAt = s.now()
	if err := s.store.CreateChecklist(ctx, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Service) GetChecklist(ctx context.Context, id ChecklistID) (*Checklist, error) {
	c, err := s.store.GetChecklist(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get checklist %d: %w", id, err)
	}
	if c == nil {
		return nil, &NotFoundError{Entity: "checklist", ID: int64(id)}
	}
	return c, nil
}

func (s *Service) ListChecklists(ctx context.Context, f ChecklistFilter) ([]Checklist, error) {
	return s.store.ListChecklists(ctx, f)
}

// SetChecklistStatus moves a checklist to any of pending, approved or rejected.
func (s *Service) SetChecklistStatus(ctx context.Context, id ChecklistID, status ChecklistStatus) (*Checklist, error) {
	if !status.Valid() {
		return nil, invalid("unknown checklist status %q", status)
	}
	c, err := s.GetChecklist(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status == status {
		return c, nil
	}
	if err := s.store.SetChecklistStatus(ctx, id, status); err != nil {
		return nil, err
	}
	c.Status = status
	return c, nil
}

// ChecklistTemplates returns the configured templates.
func (s *Service) ChecklistTemplates() *TemplateSet {
	return s.templates
}

// =============================================================================
// MAINTENANCE RECORDS
// =============================================================================

func (s *Service) AddMaintenanceRecord(ctx context.Context, m MaintenanceRecord) (*MaintenanceRecord, error) {
	e, err := s.GetEquipment(ctx, m.EquipmentID)
	if err != nil {
		return nil, err
	}
	m.Description = strings.TrimSpace(m.Description)
	m.Kind = strings.TrimSpace(m.Kind)
	if m.Description == "" {
		return nil, invalid("maintenance description is required")
	}
	if m.Cost != nil && m.Cost.IsNegative() {
		return nil, invalid("maintenance cost must not be negative, got %s", m.Cost)
	}
	if m.Status == "" {
		m.Status = MaintenancePending
	}
	if !m.Status.Valid() {
		return nil, invalid("unknown maintenance status %q", m.Status)
	}
	m.EquipmentDescription = e.Description
	m.CreatedAt = s.now()
	if err := s.store.CreateMaintenance(ctx, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Service) ListMaintenanceRecords(ctx context.Context, f MaintenanceFilter) ([]MaintenanceRecord, error) {
	return s.store.ListMaintenance(ctx, f)
}

func (s *Service) SetMaintenanceStatus(ctx context.Context, id MaintenanceID, status MaintenanceStatus) (*MaintenanceRecord, error) {
	if !status.Valid() {
		return nil, invalid("unknown maintenance status %q", status)
	}
	m, err := s.store.GetMaintenance(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get maintenance record %d: %w", id, err)
	}
	if m == nil {
		return nil, &NotFoundError{Entity: "maintenance record", ID: int64(id)}
	}
	if err := s.store.SetMaintenanceStatus(ctx, id, status); err != nil {
		return nil, err
	}
	m.Status = status
	return m, nil
}

// TotalCost sums the recorded costs, skipping records without one.
func TotalCost(records []MaintenanceRecord) decimal.Decimal {
	total := decimal.Zero
	for _, r := range records {
		if r.Cost != nil {
			total = total.Add(*r.Cost)
		}
	}
	return total
}
