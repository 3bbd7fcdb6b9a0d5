/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     Request logging
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. Metrics:    Prometheus request counters and durations
  5. CORS:       Cross-origin requests for the frontend

ROUTE GROUPS:
  /api/equipment/*     Equipment types and their positions
  /api/sites/*         Construction sites
  /api/clients/*       Clients
  /api/movements/*     Ledger reads and writes
  /api/checklists/*    Site checklists
  /api/maintenance/*   Maintenance records
  /api/reports/*       Read-only summaries
  /api/scenarios/*     Demo scenarios (dev only)
  /metrics             Prometheus
  /healthz             Liveness

SECURITY NOTE:
  No authentication middleware. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultOrigins are allowed when no CORS origins are configured.
var DefaultOrigins = []string{"http://localhost:5173", "http://localhost:8080"}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, origins []string) *chi.Mux {
	if len(origins) == 0 {
		origins = DefaultOrigins
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(Metrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", h.Healthz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/equipment", func(r chi.Router) {
			r.Get("/", h.ListEquipment)
			r.Post("/", h.CreateEquipment)
			r.Get("/{id}", h.GetEquipment)
			r.Put("/{id}", h.UpdateEquipment)
			r.Delete("/{id}", h.DeleteEquipment)
			r.Get("/{id}/position", h.GetPosition)
			r.Get("/{id}/sites/{siteID}", h.GetSentToSite)
		})

		r.Route("/sites", func(r chi.Router) {
			r.Get("/", h.ListSites)
			r.Post("/", h.CreateSite)
			r.Get("/{id}", h.GetSite)
			r.Put("/{id}", h.UpdateSite)
			r.Delete("/{id}", h.DeleteSite)
			r.Get("/{id}/equipment", h.SiteEquipment)
		})

		r.Route("/clients", func(r chi.Router) {
			r.Get("/", h.ListClients)
			r.Post("/", h.CreateClient)
			r.Get("/{id}", h.GetClient)
			r.Put("/{id}", h.UpdateClient)
			r.Delete("/{id}", h.DeleteClient)
		})

		r.Route("/movements", func(r chi.Router) {
			r.Get("/", h.ListMovements)
			r.Post("/", h.RecordMovement)
			r.Post("/validate", h.ValidateMovement)
			r.Post("/batch", h.RecordBatch)
		})

		r.Route("/checklists", func(r chi.Router) {
			r.Get("/", h.ListChecklists)
			r.Post("/", h.CreateChecklist)
			r.Get("/templates", h.ChecklistTemplates)
			r.Get("/{id}", h.GetChecklist)
			r.Put("/{id}/status", h.SetChecklistStatus)
		})

		r.Route("/maintenance", func(r chi.Router) {
			r.Get("/", h.ListMaintenance)
			r.Post("/", h.CreateMaintenance)
			r.Put("/{id}/status", h.SetMaintenanceStatus)
		})

		r.Route("/reports", func(r chi.Router) {
			r.Get("/dashboard", h.Dashboard)
			r.Get("/status", h.StatusReport)
			r.Get("/maintenance", h.MaintenanceReport)
			r.Get("/losses", h.LossReport)
			r.Get("/recent", h.RecentMovements)
			r.Get("/audit", h.AuditReport)
		})

		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetDatabase)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Route not found", nil)
	})

	return r
}
