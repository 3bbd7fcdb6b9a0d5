/*
scheduler.go - Periodic ledger audit

PURPOSE:
  Periodically folds every equipment's movement log and reports positions
  that disagree with the owned quantity (more returned than sent,
  outstanding above owned). Nothing is corrected; anomalies are logged and
  exported as a gauge for alerting.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Runs once immediately on Start
  - Stop waits for an in-flight audit to finish

CONFIGURATION:
  - Interval: How often to check (SCAFFOLD_AUDIT_INTERVAL, 0 disables)

USAGE:
  scheduler := NewAuditScheduler(svc, time.Hour, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - ledger/audit.go: Inspect
  - handlers.go: AuditReport endpoint (on demand)
*/
package api

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/warp/scaffold-engine/inventory"
	"github.com/warp/scaffold-engine/ledger"
)

var ledgerAnomalies = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "scaffold_ledger_anomalies",
	Help: "Equipment whose movement log disagrees with the owned quantity, as of the last audit",
})

// AuditScheduler runs the ledger audit on a ticker.
type AuditScheduler struct {
	Service  *inventory.Service
	Interval time.Duration

	logger *slog.Logger
	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewAuditScheduler creates a new scheduler. A non-positive interval
// disables it.
func NewAuditScheduler(svc *inventory.Service, interval time.Duration, logger *slog.Logger) *AuditScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditScheduler{
		Service:  svc,
		Interval: interval,
		logger:   logger.With("component", "audit"),
	}
}

// Start begins the scheduler.
func (as *AuditScheduler) Start() {
	as.mu.Lock()
	defer as.mu.Unlock()

	if as.Interval <= 0 {
		as.logger.Info("audit scheduler disabled")
		return
	}
	if as.ticker != nil {
		return
	}

	as.ticker = time.NewTicker(as.Interval)
	as.stop = make(chan struct{})
	as.wg.Add(1)
	go as.run()

	as.logger.Info("audit scheduler started", "interval", as.Interval)
}

// Stop stops the scheduler.
func (as *AuditScheduler) Stop() {
	as.mu.Lock()
	defer as.mu.Unlock()

	if as.ticker == nil {
		return
	}
	as.ticker.Stop()
	close(as.stop)
	as.wg.Wait()
	as.ticker = nil
	as.logger.Info("audit scheduler stopped")
}

func (as *AuditScheduler) run() {
	defer as.wg.Done()

	as.RunOnce(context.Background())
	for {
		select {
		case <-as.ticker.C:
			as.RunOnce(context.Background())
		case <-as.stop:
			return
		}
	}
}

// RunOnce audits the ledger now and returns the anomalies found.
func (as *AuditScheduler) RunOnce(ctx context.Context) []ledger.Anomaly {
	anomalies, err := as.Service.Audit(ctx)
	if err != nil {
		as.logger.Error("audit failed", "error", err)
		return nil
	}

	ledgerAnomalies.Set(float64(len(anomalies)))
	for _, a := range anomalies {
		as.logger.Warn("ledger anomaly",
			"equipment_id", a.Position.EquipmentID,
			"owned", a.Position.Owned,
			"problems", a.Problems)
	}
	if len(anomalies) == 0 {
		as.logger.Debug("audit clean")
	}

	return anomalies
}
