/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	yard data. Each scenario creates clients, sites, equipment, movements
	and observations through inventory.Service, so every movement passes
	the same validation as a real one.

AVAILABLE SCENARIOS:

	empty:        Schema only
	small-yard:   One client, one site, three equipment types
	busy-season:  Several sites with batches, maintenance, losses, checklists

HOW SCENARIOS WORK:
 1. Reset database (migrate down, then up)
 2. Create clients and sites
 3. Create equipment
 4. Record movements, backdated relative to now

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "busy-season"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Handler
  - cmd/server/main.go: "scenario load" command
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/scaffold-engine/inventory"
	"github.com/warp/scaffold-engine/ledger"
)

// ErrUnknownScenario is returned by Seed for an unlisted scenario ID.
var ErrUnknownScenario = errors.New("unknown scenario")

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "empty",
		Name:        "Empty Yard",
		Description: "Fresh schema with no data",
	},
	{
		ID:          "small-yard",
		Name:        "Small Yard",
		Description: "One client, one active site, three equipment types with sends and a return",
	},
	{
		ID:          "busy-season",
		Name:        "Busy Season",
		Description: "Three sites, batch sends, maintenance, a loss and checklists",
	},
}

// Scenarios returns the available scenarios.
func Scenarios() []ScenarioDTO {
	return append([]ScenarioDTO(nil), scenarios...)
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.Seed(r.Context(), req.ScenarioID); err != nil {
		if errors.Is(err, ErrUnknownScenario) {
			writeError(w, http.StatusBadRequest, "Unknown scenario", err)
			return
		}
		h.logger.Error("scenario load failed", "scenario", req.ScenarioID, "error", err)
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()

	h.logger.Warn("database reset")
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Seed resets the database and loads scenario id.
func (h *Handler) Seed(ctx context.Context, id string) error {
	var load func(*seeder) error
	switch id {
	case "empty":
		load = func(*seeder) error { return nil }
	case "small-yard":
		load = loadSmallYardScenario
	case "busy-season":
		load = loadBusySeasonScenario
	default:
		return fmt.Errorf("%w: %q", ErrUnknownScenario, id)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.Store.Reset(ctx); err != nil {
		return fmt.Errorf("reset database: %w", err)
	}
	h.currentScenario = ""

	s := newSeeder(ctx, h.Service)
	if err := load(s); err != nil {
		return fmt.Errorf("scenario %s: %w", id, err)
	}
	h.currentScenario = id
	h.logger.Info("scenario loaded", "scenario", id)
	return nil
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func loadSmallYardScenario(s *seeder) error {
	client, err := s.client("Harbor Builders", "Dana Reyes")
	if err != nil {
		return err
	}
	if err := s.site("Pier 4 Warehouse", client, inventory.SiteActive, 30); err != nil {
		return err
	}

	for _, e := range []struct {
		desc, code string
		owned      int
	}{
		{"TUBE 3M", "T3", 400},
		{"COUPLER", "CP", 1200},
		{"BASE PLATE", "BP", 300},
	} {
		if err := s.equipment(e.desc, e.code, "unit", e.owned); err != nil {
			return err
		}
	}

	// TUBE 3M ends with 300 available and 100 at the pier.
	moves := []move{
		{ledger.KindSend, "TUBE 3M", "Pier 4 Warehouse", 120, 10},
		{ledger.KindSend, "COUPLER", "Pier 4 Warehouse", 300, 10},
		{ledger.KindSend, "BASE PLATE", "Pier 4 Warehouse", 40, 9},
		{ledger.KindReturn, "TUBE 3M", "Pier 4 Warehouse", 20, 2},
	}
	for _, m := range moves {
		if err := s.record(m, "Sam Ortiz"); err != nil {
			return err
		}
	}
	return nil
}

func loadBusySeasonScenario(s *seeder) error {
	northgate, err := s.client("Northgate Construction", "Lee Park")
	if err != nil {
		return err
	}
	riverside, err := s.client("Riverside Homes", "Ana Silva")
	if err != nil {
		return err
	}

	sites := []struct {
		name   string
		client inventory.ClientID
		status inventory.SiteStatus
		start  int
	}{
		{"Northgate Tower", northgate, inventory.SiteActive, 60},
		{"Riverside Block C", riverside, inventory.SiteActive, 45},
		{"Old Mill Facade", riverside, inventory.SiteCompleted, 120},
	}
	for _, st := range sites {
		if err := s.site(st.name, st.client, st.status, st.start); err != nil {
			return err
		}
	}

	for _, e := range []struct {
		desc, code, measure string
		owned               int
	}{
		{"TUBE 3M", "T3", "unit", 400},
		{"TUBE 6M", "T6", "unit", 250},
		{"COUPLER", "CP", "unit", 1200},
		{"STEEL PLANK", "SP", "unit", 180},
		{"GUARDRAIL 2M", "GR", "unit", 150},
		{"LADDER", "LD", "unit", 20},
	} {
		if err := s.equipment(e.desc, e.code, e.measure, e.owned); err != nil {
			return err
		}
	}

	if err := s.batch(ledger.KindSend, "Northgate Tower", 40, []batchLine{
		{"TUBE 3M", 150},
		{"TUBE 6M", 80},
		{"COUPLER", 500},
		{"STEEL PLANK", 60},
	}); err != nil {
		return err
	}
	if err := s.batch(ledger.KindSend, "Riverside Block C", 30, []batchLine{
		{"TUBE 3M", 100},
		{"GUARDRAIL 2M", 40},
		{"COUPLER", 300},
	}); err != nil {
		return err
	}

	moves := []move{
		{ledger.KindSend, "LADDER", "Old Mill Facade", 20, 110},
		{ledger.KindReturn, "LADDER", "Old Mill Facade", 20, 15},
		{ledger.KindReturn, "TUBE 3M", "Northgate Tower", 50, 7},
		{ledger.KindMaintenance, "STEEL PLANK", "", 10, 6},
		{ledger.KindReturnMaintenance, "STEEL PLANK", "", 4, 2},
		{ledger.KindLoss, "COUPLER", "Riverside Block C", 6, 3},
	}
	for _, m := range moves {
		if err := s.record(m, "Kim Novak"); err != nil {
			return err
		}
	}

	if err := s.checklist(inventory.ChecklistAssembly, "Northgate Tower", inventory.ChecklistApproved); err != nil {
		return err
	}
	if err := s.checklist(inventory.ChecklistInspection, "Riverside Block C", inventory.ChecklistPending); err != nil {
		return err
	}

	if err := s.maintenance("STEEL PLANK", "Replaced cracked boards", "450.00", inventory.MaintenanceCompleted); err != nil {
		return err
	}
	return s.maintenance("TUBE 6M", "Straightening", "120.50", inventory.MaintenancePending)
}

// =============================================================================
// SEEDER
// =============================================================================

type move struct {
	kind     ledger.Kind
	desc     string
	site     string
	quantity int
	daysAgo  int
}

type batchLine struct {
	desc     string
	quantity int
}

// seeder creates scenario data by name and remembers the assigned IDs.
type seeder struct {
	ctx      context.Context
	svc      *inventory.Service
	now      time.Time
	equipIDs map[string]ledger.EquipmentID
	siteIDs  map[string]ledger.SiteID
}

func newSeeder(ctx context.Context, svc *inventory.Service) *seeder {
	return &seeder{
		ctx:      ctx,
		svc:      svc,
		now:      time.Now().UTC(),
		equipIDs: make(map[string]ledger.EquipmentID),
		siteIDs:  make(map[string]ledger.SiteID),
	}
}

func (s *seeder) daysAgo(n int) *time.Time {
	t := s.now.AddDate(0, 0, -n)
	return &t
}

func (s *seeder) client(name, contact string) (inventory.ClientID, error) {
	c, err := s.svc.AddClient(s.ctx, inventory.Client{Name: name, Contact: contact})
	if err != nil {
		return 0, err
	}
	return c.ID, nil
}

func (s *seeder) site(name string, client inventory.ClientID, status inventory.SiteStatus, startDaysAgo int) error {
	site, err := s.svc.AddSite(s.ctx, inventory.Site{
		Name:      name,
		ClientID:  &client,
		StartDate: s.daysAgo(startDaysAgo),
		Status:    status,
	})
	if err != nil {
		return err
	}
	s.siteIDs[name] = site.ID
	return nil
}

func (s *seeder) equipment(desc, code, measure string, owned int) error {
	e, err := s.svc.AddEquipment(s.ctx, inventory.Equipment{
		Description:   desc,
		Code:          code,
		Measure:       measure,
		QuantityOwned: owned,
	})
	if err != nil {
		return err
	}
	s.equipIDs[e.Description] = e.ID
	return nil
}

func (s *seeder) siteRef(name string) *ledger.SiteID {
	if name == "" {
		return nil
	}
	return ledger.SiteRef(s.siteIDs[name])
}

func (s *seeder) record(m move, responsible string) error {
	_, err := s.svc.RecordMovement(s.ctx, ledger.Entry{
		Proposal: ledger.Proposal{
			Kind:        m.kind,
			EquipmentID: s.equipIDs[m.desc],
			SiteID:      s.siteRef(m.site),
			Quantity:    m.quantity,
		},
		Responsible: responsible,
		OccurredAt:  s.daysAgo(m.daysAgo),
	})
	if err != nil {
		return fmt.Errorf("%s %d %s: %w", m.kind, m.quantity, m.desc, err)
	}
	return nil
}

func (s *seeder) batch(kind ledger.Kind, site string, daysAgo int, lines []batchLine) error {
	b := ledger.Batch{
		Kind:        kind,
		SiteID:      s.siteRef(site),
		Responsible: "Yard Office",
		Notes:       "Initial delivery",
		OccurredAt:  s.daysAgo(daysAgo),
	}
	for _, l := range lines {
		b.Items = append(b.Items, ledger.BatchItem{EquipmentID: s.equipIDs[l.desc], Quantity: l.quantity})
	}
	result, err := s.svc.RecordMovementsBatch(s.ctx, b)
	if err != nil {
		return err
	}
	if len(result.Failed) > 0 {
		return fmt.Errorf("batch to %s: %s", site, result.Failed[0].Reason)
	}
	return nil
}

func (s *seeder) checklist(kind inventory.ChecklistKind, site string, status inventory.ChecklistStatus) error {
	template := s.svc.ChecklistTemplates().DefaultItems(kind)
	checked := make(map[string]bool, len(template))
	for i, item := range template {
		checked[item] = i%3 != 2
	}
	c, err := s.svc.AddChecklist(s.ctx, inventory.Checklist{
		Kind:        kind,
		SiteID:      s.siteIDs[site],
		Responsible: "Kim Novak",
		Items:       inventory.BuildItems(template, checked, []string{"Access route cleared"}),
	})
	if err != nil {
		return err
	}
	if status != inventory.ChecklistPending {
		_, err = s.svc.SetChecklistStatus(s.ctx, c.ID, status)
	}
	return err
}

func (s *seeder) maintenance(desc, work, cost string, status inventory.MaintenanceStatus) error {
	amount, err := decimal.NewFromString(cost)
	if err != nil {
		return err
	}
	_, err = s.svc.AddMaintenanceRecord(s.ctx, inventory.MaintenanceRecord{
		EquipmentID: s.equipIDs[desc],
		Kind:        "repair",
		Description: work,
		Responsible: "Workshop",
		Cost:        &amount,
		Status:      status,
	})
	return err
}
