package ledger

import (
	"context"
	"fmt"
	"sort"
)

// Anomaly is a position whose log breaks the owned bound or went negative.
type Anomaly struct {
	Position Position
	Problems []string
}

// Inspect lists what is inconsistent about p. An empty result means the
// log is coherent: no net is negative and outstanding units fit within
// the owned quantity.
func Inspect(p Position) []string {
	var problems []string
	if p.SentNet < 0 {
		problems = append(problems, fmt.Sprintf("returned %d more than sent", -p.SentNet))
	}
	sites := make([]SiteID, 0, len(p.BySite))
	for site := range p.BySite {
		sites = append(sites, site)
	}
	sort.Slice(sites, func(i, j int) bool { return sites[i] < sites[j] })
	for _, site := range sites {
		if net := p.BySite[site]; net < 0 {
			problems = append(problems, fmt.Sprintf("site %d: returned %d more than sent", site, -net))
		}
	}
	if p.MaintenanceNet < 0 {
		problems = append(problems, fmt.Sprintf("returned %d more from maintenance than sent", -p.MaintenanceNet))
	}
	if p.LossNet < 0 {
		problems = append(problems, fmt.Sprintf("recovered %d more than lost", -p.LossNet))
	}
	if out := p.Outstanding(); out > p.Owned {
		problems = append(problems, fmt.Sprintf("outstanding %d exceeds owned %d", out, p.Owned))
	}
	return problems
}

// Audit folds each equipment and returns the ones with problems.
func (l *Ledger) Audit(ctx context.Context, ids []EquipmentID) ([]Anomaly, error) {
	var anomalies []Anomaly
	for _, id := range ids {
		p, err := l.calc.Position(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("audit equipment %d: %w", id, err)
		}
		if problems := Inspect(p); len(problems) > 0 {
			anomalies = append(anomalies, Anomaly{Position: p, Problems: problems})
		}
	}
	return anomalies, nil
}
