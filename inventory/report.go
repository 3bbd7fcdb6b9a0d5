package inventory

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/scaffold-engine/ledger"
)

// DashboardQuery scopes the dashboard. A zero SiteID means no site section;
// zero From/To means all time.
type DashboardQuery struct {
	SiteID ledger.SiteID
	From   time.Time
	To     time.Time
}

// Dashboard holds the headline numbers of the yard.
type Dashboard struct {
	TotalOwned     int
	EquipmentTypes int
	Clients        int
	ActiveSites    int
	Movements      int
	Status         StatusSummary
	Site           *SiteSummary
}

// SiteSummary is the dashboard section for one site.
type SiteSummary struct {
	Site           Site
	Units          int
	EquipmentTypes int
}

// StatusSummary counts units per ledger bucket and equipment types per
// derived status.
type StatusSummary struct {
	Available     int
	Sent          int
	InMaintenance int
	Lost          int
	ByStatus      map[EquipmentStatus]int
}

type MaintenanceSummary struct {
	Records   int
	Pending   int
	TotalCost decimal.Decimal
}

// MonthlyLoss is the quantity lost in a calendar month ("2006-01").
type MonthlyLoss struct {
	Month    string
	Quantity int
}

func (s *Service) Dashboard(ctx context.Context, q DashboardQuery) (Dashboard, error) {
	var d Dashboard

	positions, err := s.Positions(ctx, EquipmentFilter{})
	if err != nil {
		return d, err
	}
	d.EquipmentTypes = len(positions)
	for _, p := range positions {
		d.TotalOwned += p.Equipment.QuantityOwned
	}
	d.Status = summarize(positions)

	clients, err := s.store.ListClients(ctx)
	if err != nil {
		return d, err
	}
	d.Clients = len(clients)

	active, err := s.store.ListSites(ctx, SiteFilter{Status: SiteActive})
	if err != nil {
		return d, err
	}
	d.ActiveSites = len(active)

	movements, err := s.ledger.Movements(ctx, ledger.Filter{From: q.From, To: q.To})
	if err != nil {
		return d, err
	}
	d.Movements = len(movements)

	if q.SiteID != 0 {
		site, err := s.GetSite(ctx, q.SiteID)
		if err != nil {
			return d, err
		}
		holdings, err := s.ledger.SiteOverview(ctx, q.SiteID)
		if err != nil {
			return d, err
		}
		summary := &SiteSummary{Site: *site, EquipmentTypes: len(holdings)}
		for _, h := range holdings {
			summary.Units += h.Quantity
		}
		d.Site = summary
	}
	return d, nil
}

// StatusSummary derives the unit split from the ledger, not the stored tags.
func (s *Service) StatusSummary(ctx context.Context) (StatusSummary, error) {
	positions, err := s.Positions(ctx, EquipmentFilter{})
	if err != nil {
		return StatusSummary{}, err
	}
	return summarize(positions), nil
}

func summarize(positions []Position) StatusSummary {
	summary := StatusSummary{ByStatus: make(map[EquipmentStatus]int)}
	for _, p := range positions {
		summary.Available += p.Available
		summary.Sent += p.Sent
		summary.InMaintenance += p.InMaintenance
		summary.Lost += p.Lost
		summary.ByStatus[p.DerivedStatus]++
	}
	return summary
}

func (s *Service) MaintenanceSummary(ctx context.Context, from, to time.Time) (MaintenanceSummary, error) {
	records, err := s.store.ListMaintenance(ctx, MaintenanceFilter{From: from, To: to})
	if err != nil {
		return MaintenanceSummary{}, err
	}
	summary := MaintenanceSummary{Records: len(records), TotalCost: TotalCost(records)}
	for _, r := range records {
		if r.Status == MaintenancePending {
			summary.Pending++
		}
	}
	return summary, nil
}

// LossesByMonth groups loss movements by month, oldest month first.
// Recoveries are not subtracted.
func (s *Service) LossesByMonth(ctx context.Context, from, to time.Time) ([]MonthlyLoss, error) {
	losses, err := s.ledger.Movements(ctx, ledger.Filter{Kind: ledger.KindLoss, From: from, To: to})
	if err != nil {
		return nil, err
	}
	byMonth := make(map[string]int)
	for _, m := range losses {
		byMonth[m.OccurredAt.Format("2006-01")] += m.Quantity
	}
	result := make([]MonthlyLoss, 0, len(byMonth))
	for month, qty := range byMonth {
		result = append(result, MonthlyLoss{Month: month, Quantity: qty})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Month < result[j].Month })
	return result, nil
}

// RecentMovements returns the latest movements. limit <= 0 means 10.
func (s *Service) RecentMovements(ctx context.Context, limit int) ([]ledger.Movement, error) {
	if limit <= 0 {
		limit = 10
	}
	return s.ledger.Movements(ctx, ledger.Filter{Limit: limit})
}

// Audit checks the log of every equipment against its owned quantity.
func (s *Service) Audit(ctx context.Context) ([]ledger.Anomaly, error) {
	equipment, err := s.store.ListEquipment(ctx, EquipmentFilter{})
	if err != nil {
		return nil, err
	}
	ids := make([]ledger.EquipmentID, 0, len(equipment))
	for _, e := range equipment {
		ids = append(ids, e.ID)
	}
	return s.ledger.Audit(ctx, ids)
}
