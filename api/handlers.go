/*
handlers.go - HTTP API handlers for the scaffolding yard

PURPOSE:
  Exposes the inventory service via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to inventory.Service.

ENDPOINTS:
  Equipment:
    GET    /api/equipment                      List (?status=, ?positions=true)
    POST   /api/equipment                      Create
    GET    /api/equipment/{id}                 Get
    PUT    /api/equipment/{id}                 Update
    DELETE /api/equipment/{id}                 Delete (refused while referenced)
    GET    /api/equipment/{id}/position        Derived quantities
    GET    /api/equipment/{id}/sites/{siteID}  Net quantity at a site

  Sites and clients:
    GET/POST /api/sites, GET/PUT/DELETE /api/sites/{id}
    GET      /api/sites/{id}/equipment         Equipment currently at the site
    GET/POST /api/clients, GET/PUT/DELETE /api/clients/{id}

  Movements:
    GET    /api/movements                      Newest first (?kind=&equipment_id=&site_id=&from=&to=&limit=)
    POST   /api/movements                      Validate and record one movement
    POST   /api/movements/validate             Dry run
    POST   /api/movements/batch                Best-effort multi-equipment form

  Checklists and maintenance:
    GET/POST /api/checklists, GET /api/checklists/{id}
    PUT      /api/checklists/{id}/status
    GET      /api/checklists/templates
    GET/POST /api/maintenance, PUT /api/maintenance/{id}/status

  Reports:
    GET /api/reports/{dashboard,status,maintenance,losses,recent,audit}

DATE RANGES:
  from and to are calendar dates (YYYY-MM-DD). Both days are included.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Invalid input (kind, quantity, missing site, malformed body)
  - 404: Resource not found
  - 409: Conflict (duplicate description, idempotency key, delete in use)
  - 422: Movement rejected by a quantity rule; error carries the reason
  - 500: Internal errors

SECURITY NOTE:
  No authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/warp/scaffold-engine/inventory"
	"github.com/warp/scaffold-engine/ledger"
	"github.com/warp/scaffold-engine/store/sqlite"
)

// Handler holds all HTTP handler dependencies.
type Handler struct {
	Service *inventory.Service
	Store   *sqlite.Store
	logger  *slog.Logger

	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler over store. A nil logger uses slog.Default.
func NewHandler(store *sqlite.Store, svc *inventory.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		Service: svc,
		Store:   store,
		logger:  logger,
	}
}

// =============================================================================
// EQUIPMENT ENDPOINTS
// =============================================================================

// ListEquipment returns all equipment, or their positions with ?positions=true.
func (h *Handler) ListEquipment(w http.ResponseWriter, r *http.Request) {
	f := inventory.EquipmentFilter{Status: inventory.EquipmentStatus(r.URL.Query().Get("status"))}

	if r.URL.Query().Get("positions") == "true" {
		positions, err := h.Service.Positions(r.Context(), f)
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		dtos := make([]PositionDTO, 0, len(positions))
		for _, p := range positions {
			dtos = append(dtos, toPositionDTO(p))
		}
		writeJSON(w, http.StatusOK, dtos)
		return
	}

	equipment, err := h.Service.ListEquipment(r.Context(), f)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	dtos := make([]EquipmentDTO, 0, len(equipment))
	for _, e := range equipment {
		dtos = append(dtos, toEquipmentDTO(e))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetEquipment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	e, err := h.Service.GetEquipment(r.Context(), ledger.EquipmentID(id))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEquipmentDTO(*e))
}

func (h *Handler) CreateEquipment(w http.ResponseWriter, r *http.Request) {
	var req EquipmentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	e, err := h.Service.AddEquipment(r.Context(), req.toEquipment())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.logger.Info("equipment created", "id", e.ID, "description", e.Description, "quantity_owned", e.QuantityOwned)
	writeJSON(w, http.StatusCreated, toEquipmentDTO(*e))
}

func (h *Handler) UpdateEquipment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req EquipmentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	e := req.toEquipment()
	e.ID = ledger.EquipmentID(id)
	updated, err := h.Service.UpdateEquipment(r.Context(), e)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEquipmentDTO(*updated))
}

func (h *Handler) DeleteEquipment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.Service.DeleteEquipment(r.Context(), ledger.EquipmentID(id)); err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.logger.Info("equipment deleted", "id", id)
	w.WriteHeader(http.StatusNoContent)
}

// GetPosition returns available, sent, in-maintenance and lost quantities.
func (h *Handler) GetPosition(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	p, err := h.Service.Position(r.Context(), ledger.EquipmentID(id))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPositionDTO(p))
}

func (h *Handler) GetSentToSite(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	siteID, ok := pathID(w, r, "siteID")
	if !ok {
		return
	}
	if _, err := h.Service.GetEquipment(r.Context(), ledger.EquipmentID(id)); err != nil {
		h.writeServiceError(w, err)
		return
	}
	qty, err := h.Service.SentToSite(r.Context(), ledger.EquipmentID(id), ledger.SiteID(siteID))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, SentToSiteDTO{EquipmentID: id, SiteID: siteID, Quantity: qty})
}

// =============================================================================
// SITE ENDPOINTS
// =============================================================================

func (h *Handler) ListSites(w http.ResponseWriter, r *http.Request) {
	clientID, ok := queryInt(w, r, "client_id")
	if !ok {
		return
	}
	sites, err := h.Service.ListSites(r.Context(), inventory.SiteFilter{
		Status:   inventory.SiteStatus(r.URL.Query().Get("status")),
		ClientID: inventory.ClientID(clientID),
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	dtos := make([]SiteDTO, 0, len(sites))
	for _, s := range sites {
		dtos = append(dtos, toSiteDTO(s))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetSite(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	site, err := h.Service.GetSite(r.Context(), ledger.SiteID(id))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSiteDTO(*site))
}

func (h *Handler) CreateSite(w http.ResponseWriter, r *http.Request) {
	var req SiteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	site, err := req.toSite()
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	created, err := h.Service.AddSite(r.Context(), site)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.logger.Info("site created", "id", created.ID, "name", created.Name)
	writeJSON(w, http.StatusCreated, toSiteDTO(*created))
}

func (h *Handler) UpdateSite(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req SiteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	site, err := req.toSite()
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	site.ID = ledger.SiteID(id)
	updated, err := h.Service.UpdateSite(r.Context(), site)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSiteDTO(*updated))
}

func (h *Handler) DeleteSite(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.Service.DeleteSite(r.Context(), ledger.SiteID(id)); err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.logger.Info("site deleted", "id", id)
	w.WriteHeader(http.StatusNoContent)
}

// SiteEquipment lists the equipment currently held at a site.
func (h *Handler) SiteEquipment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	holdings, err := h.Service.EquipmentSentOverview(r.Context(), ledger.SiteID(id))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	dtos := make([]SiteHoldingDTO, 0, len(holdings))
	for _, hd := range holdings {
		dtos = append(dtos, SiteHoldingDTO{
			EquipmentID: int64(hd.EquipmentID),
			Description: hd.Description,
			Quantity:    hd.Quantity,
		})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// CLIENT ENDPOINTS
// =============================================================================

func (h *Handler) ListClients(w http.ResponseWriter, r *http.Request) {
	clients, err := h.Service.ListClients(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	dtos := make([]ClientDTO, 0, len(clients))
	for _, c := range clients {
		dtos = append(dtos, toClientDTO(c))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetClient(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	c, err := h.Service.GetClient(r.Context(), inventory.ClientID(id))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toClientDTO(*c))
}

func (h *Handler) CreateClient(w http.ResponseWriter, r *http.Request) {
	var req ClientRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := h.Service.AddClient(r.Context(), req.toClient())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.logger.Info("client created", "id", c.ID, "name", c.Name)
	writeJSON(w, http.StatusCreated, toClientDTO(*c))
}

func (h *Handler) UpdateClient(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req ClientRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	c := req.toClient()
	c.ID = inventory.ClientID(id)
	updated, err := h.Service.UpdateClient(r.Context(), c)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toClientDTO(*updated))
}

func (h *Handler) DeleteClient(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.Service.DeleteClient(r.Context(), inventory.ClientID(id)); err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.logger.Info("client deleted", "id", id)
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// MOVEMENT ENDPOINTS
// =============================================================================

// ListMovements returns movements newest first.
func (h *Handler) ListMovements(w http.ResponseWriter, r *http.Request) {
	f := ledger.Filter{}
	if k := r.URL.Query().Get("kind"); k != "" {
		kind, err := ledger.ParseKind(k)
		if err != nil {
			h.writeServiceError(w, err)
			return
		}
		f.Kind = kind
	}
	equipmentID, ok := queryInt(w, r, "equipment_id")
	if !ok {
		return
	}
	siteID, ok := queryInt(w, r, "site_id")
	if !ok {
		return
	}
	limit, ok := queryInt(w, r, "limit")
	if !ok {
		return
	}
	from, to, ok := dateRange(w, r)
	if !ok {
		return
	}
	f.EquipmentID = ledger.EquipmentID(equipmentID)
	f.SiteID = ledger.SiteID(siteID)
	f.Limit = int(limit)
	f.From, f.To = from, to

	movements, err := h.Service.ListMovements(r.Context(), f)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMovementDTOs(movements))
}

// RecordMovement validates and appends one movement atomically.
func (h *Handler) RecordMovement(w http.ResponseWriter, r *http.Request) {
	var req MovementRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	entry, err := req.toEntry()
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	m, err := h.Service.RecordMovement(r.Context(), entry)
	if err != nil {
		if re, ok := ledger.Rejection(err); ok {
			countRejected(entry.Kind, 1)
			h.logger.Warn("movement rejected",
				"kind", entry.Kind, "equipment_id", entry.EquipmentID,
				"requested", re.Requested, "limit", re.Limit)
		}
		h.writeServiceError(w, err)
		return
	}

	countRecorded(m.Kind, 1)
	h.logger.Info("movement recorded",
		"id", m.ID, "kind", m.Kind, "equipment_id", m.EquipmentID, "quantity", m.Quantity)
	writeJSON(w, http.StatusCreated, toMovementDTO(m))
}

// ValidateMovement checks a proposal without recording it. A rejection is a
// normal answer here, so it comes back as 200 with valid=false.
func (h *Handler) ValidateMovement(w http.ResponseWriter, r *http.Request) {
	var req MovementRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := req.toProposal()
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	err = h.Service.ValidateMovement(r.Context(), p)
	if err == nil {
		writeJSON(w, http.StatusOK, ValidationDTO{Valid: true})
		return
	}
	if re, ok := ledger.Rejection(err); ok {
		limit := re.Limit
		writeJSON(w, http.StatusOK, ValidationDTO{
			Reason:    re.Reason,
			Requested: re.Requested,
			Limit:     &limit,
		})
		return
	}
	h.writeServiceError(w, err)
}

// RecordBatch records each item independently and reports per-item outcome.
func (h *Handler) RecordBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	b, err := req.toBatch()
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	result, err := h.Service.RecordMovementsBatch(r.Context(), b)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}

	rejected := 0
	for _, f := range result.Failed {
		if errors.Is(f.Err, ledger.ErrRejected) {
			rejected++
		}
	}
	countRecorded(b.Kind, len(result.Succeeded))
	countRejected(b.Kind, rejected)
	h.logger.Info("batch recorded",
		"reference_id", result.ReferenceID, "kind", b.Kind,
		"succeeded", len(result.Succeeded), "failed", len(result.Failed))

	writeJSON(w, http.StatusOK, toBatchResultDTO(result))
}

// =============================================================================
// CHECKLIST ENDPOINTS
// =============================================================================

func (h *Handler) ListChecklists(w http.ResponseWriter, r *http.Request) {
	siteID, ok := queryInt(w, r, "site_id")
	if !ok {
		return
	}
	checklists, err := h.Service.ListChecklists(r.Context(), inventory.ChecklistFilter{
		SiteID: ledger.SiteID(siteID),
		Kind:   inventory.ChecklistKind(r.URL.Query().Get("kind")),
		Status: inventory.ChecklistStatus(r.URL.Query().Get("status")),
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	dtos := make([]ChecklistDTO, 0, len(checklists))
	for _, c := range checklists {
		dtos = append(dtos, toChecklistDTO(c))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetChecklist(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	c, err := h.Service.GetChecklist(r.Context(), inventory.ChecklistID(id))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toChecklistDTO(*c))
}

func (h *Handler) CreateChecklist(w http.ResponseWriter, r *http.Request) {
	var req ChecklistRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	kind := inventory.ChecklistKind(req.Kind)

	var items []inventory.ChecklistItem
	if len(req.Items) > 0 {
		for _, item := range req.Items {
			items = append(items, inventory.ChecklistItem{Text: item.Text, State: inventory.ItemState(item.State)})
		}
	} else {
		checked := make(map[string]bool, len(req.Checked))
		for _, text := range req.Checked {
			checked[text] = true
		}
		items = inventory.BuildItems(h.Service.ChecklistTemplates().DefaultItems(kind), checked, req.Extras)
	}

	c, err := h.Service.AddChecklist(r.Context(), inventory.Checklist{
		Kind:        kind,
		SiteID:      ledger.SiteID(req.SiteID),
		Responsible: req.Responsible,
		Items:       items,
		Notes:       req.Notes,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.logger.Info("checklist created", "id", c.ID, "kind", c.Kind, "site_id", c.SiteID)
	writeJSON(w, http.StatusCreated, toChecklistDTO(*c))
}

func (h *Handler) SetChecklistStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req StatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := h.Service.SetChecklistStatus(r.Context(), inventory.ChecklistID(id), inventory.ChecklistStatus(req.Status))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.logger.Info("checklist status changed", "id", c.ID, "status", c.Status)
	writeJSON(w, http.StatusOK, toChecklistDTO(*c))
}

// ChecklistTemplates returns the default items per kind and the named templates.
func (h *Handler) ChecklistTemplates(w http.ResponseWriter, r *http.Request) {
	ts := h.Service.ChecklistTemplates()
	dto := TemplatesDTO{
		Defaults: make(map[string][]string),
		Named:    ts.Templates(""),
	}
	for _, kind := range []inventory.ChecklistKind{
		inventory.ChecklistAssembly,
		inventory.ChecklistDisassembly,
		inventory.ChecklistInspection,
	} {
		dto.Defaults[string(kind)] = ts.DefaultItems(kind)
	}
	if dto.Named == nil {
		dto.Named = []inventory.Template{}
	}
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// MAINTENANCE ENDPOINTS
// =============================================================================

func (h *Handler) ListMaintenance(w http.ResponseWriter, r *http.Request) {
	equipmentID, ok := queryInt(w, r, "equipment_id")
	if !ok {
		return
	}
	from, to, ok := dateRange(w, r)
	if !ok {
		return
	}
	records, err := h.Service.ListMaintenanceRecords(r.Context(), inventory.MaintenanceFilter{
		EquipmentID: ledger.EquipmentID(equipmentID),
		Status:      inventory.MaintenanceStatus(r.URL.Query().Get("status")),
		From:        from,
		To:          to,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	dtos := make([]MaintenanceDTO, 0, len(records))
	for _, m := range records {
		dtos = append(dtos, toMaintenanceDTO(m))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateMaintenance(w http.ResponseWriter, r *http.Request) {
	var req MaintenanceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	m, err := h.Service.AddMaintenanceRecord(r.Context(), inventory.MaintenanceRecord{
		EquipmentID: ledger.EquipmentID(req.EquipmentID),
		Kind:        req.Kind,
		Description: req.Description,
		Responsible: req.Responsible,
		Cost:        req.Cost,
		Status:      inventory.MaintenanceStatus(req.Status),
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.logger.Info("maintenance record created", "id", m.ID, "equipment_id", m.EquipmentID)
	writeJSON(w, http.StatusCreated, toMaintenanceDTO(*m))
}

func (h *Handler) SetMaintenanceStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req StatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	m, err := h.Service.SetMaintenanceStatus(r.Context(), inventory.MaintenanceID(id), inventory.MaintenanceStatus(req.Status))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMaintenanceDTO(*m))
}

// =============================================================================
// REPORT ENDPOINTS
// =============================================================================

// Dashboard returns headline numbers, scoped to ?site_id= when given.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	siteID, ok := queryInt(w, r, "site_id")
	if !ok {
		return
	}
	from, to, ok := dateRange(w, r)
	if !ok {
		return
	}
	d, err := h.Service.Dashboard(r.Context(), inventory.DashboardQuery{
		SiteID: ledger.SiteID(siteID),
		From:   from,
		To:     to,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDashboardDTO(d))
}

func (h *Handler) StatusReport(w http.ResponseWriter, r *http.Request) {
	s, err := h.Service.StatusSummary(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toStatusSummaryDTO(s))
}

func (h *Handler) MaintenanceReport(w http.ResponseWriter, r *http.Request) {
	from, to, ok := dateRange(w, r)
	if !ok {
		return
	}
	s, err := h.Service.MaintenanceSummary(r.Context(), from, to)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MaintenanceSummaryDTO{
		Records:   s.Records,
		Pending:   s.Pending,
		TotalCost: s.TotalCost,
	})
}

func (h *Handler) LossReport(w http.ResponseWriter, r *http.Request) {
	from, to, ok := dateRange(w, r)
	if !ok {
		return
	}
	losses, err := h.Service.LossesByMonth(r.Context(), from, to)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	dtos := make([]MonthlyLossDTO, 0, len(losses))
	for _, l := range losses {
		dtos = append(dtos, MonthlyLossDTO{Month: l.Month, Quantity: l.Quantity})
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) RecentMovements(w http.ResponseWriter, r *http.Request) {
	limit, ok := queryInt(w, r, "limit")
	if !ok {
		return
	}
	movements, err := h.Service.RecentMovements(r.Context(), int(limit))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toMovementDTOs(movements))
}

// AuditReport lists equipment whose log is inconsistent with ownership.
func (h *Handler) AuditReport(w http.ResponseWriter, r *http.Request) {
	anomalies, err := h.Service.Audit(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	dtos := make([]AnomalyDTO, 0, len(anomalies))
	for _, a := range anomalies {
		dtos = append(dtos, toAnomalyDTO(a))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// Healthz pings the database.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "Database unavailable", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

// writeServiceError maps domain errors to HTTP statuses.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	if re, ok := ledger.Rejection(err); ok {
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error: re.Reason,
			Code:  "rejected",
			Details: map[string]int{
				"requested": re.Requested,
				"limit":     re.Limit,
			},
		})
		return
	}
	switch {
	case inventory.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case inventory.IsConflict(err):
		writeError(w, http.StatusConflict, "Conflict", err)
	case inventory.IsClientError(err):
		writeError(w, http.StatusBadRequest, "Invalid request", err)
	default:
		h.logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid %s", name), err)
		return 0, false
	}
	return id, true
}

// queryInt reads an optional non-negative integer parameter. Absent is 0.
func queryInt(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return 0, true
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid %s", name), err)
		return 0, false
	}
	return n, true
}

// dateRange reads ?from= and ?to= as calendar dates and returns the
// half-open interval [from, to+1 day).
func dateRange(w http.ResponseWriter, r *http.Request) (from, to time.Time, ok bool) {
	parse := func(name string) (time.Time, bool) {
		s := strings.TrimSpace(r.URL.Query().Get(name))
		if s == "" {
			return time.Time{}, true
		}
		t, err := time.ParseInLocation(time.DateOnly, s, time.UTC)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid %s, expected YYYY-MM-DD", name), err)
			return time.Time{}, false
		}
		return t, true
	}
	if from, ok = parse("from"); !ok {
		return
	}
	if to, ok = parse("to"); !ok {
		return
	}
	if !to.IsZero() {
		to = to.AddDate(0, 0, 1)
	}
	return from, to, true
}
