/*
ledger.go - Movement ledger facade

PURPOSE:
  The Ledger is the source of truth for where equipment is. Every
  send, return, maintenance, loss and recovery is one Movement row;
  quantities are always recomputed from those rows.

CRITICAL INVARIANTS:
  1. APPEND-ONLY: movements are never edited or deleted
  2. DERIVED: available / sent / in maintenance / lost are never stored
  3. GUARDED: a movement is only appended after its rule passed, in the
     same transaction

SEE ALSO:
  - balance.go: Derivations
  - validator.go: Rules
  - recorder.go: Atomic append
  - batch.go: Best-effort multi-item recording
*/
package ledger

import (
	"context"
	"time"
)

// Ledger combines the query engine, validator and recorder over one store.
type Ledger struct {
	store     TxStore
	calc      *Calculator
	validator *Validator
	recorder  *Recorder
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock sets the clock used for default timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		l.recorder.now = now
	}
}

// New creates a Ledger over store.
func New(store TxStore, opts ...Option) *Ledger {
	l := &Ledger{
		store:     store,
		calc:      NewCalculator(store),
		validator: NewValidator(store),
		recorder:  NewRecorder(store),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// =============================================================================
// QUERIES
// =============================================================================

func (l *Ledger) Position(ctx context.Context, equipmentID EquipmentID) (Position, error) {
	return l.calc.Position(ctx, equipmentID)
}

func (l *Ledger) Available(ctx context.Context, equipmentID EquipmentID) (int, error) {
	return l.calc.Available(ctx, equipmentID)
}

func (l *Ledger) SentToSite(ctx context.Context, equipmentID EquipmentID, site SiteID) (int, error) {
	return l.calc.SentToSite(ctx, equipmentID, site)
}

func (l *Ledger) InMaintenance(ctx context.Context, equipmentID EquipmentID) (int, error) {
	return l.calc.InMaintenance(ctx, equipmentID)
}

func (l *Ledger) Lost(ctx context.Context, equipmentID EquipmentID) (int, error) {
	return l.calc.Lost(ctx, equipmentID)
}

func (l *Ledger) SiteOverview(ctx context.Context, site SiteID) ([]SiteHolding, error) {
	return l.calc.SiteOverview(ctx, site)
}

// Movements lists movements matching f, newest first.
func (l *Ledger) Movements(ctx context.Context, f Filter) ([]Movement, error) {
	return l.store.List(ctx, f)
}

// =============================================================================
// COMMANDS
// =============================================================================

// Validate checks a proposal without writing anything.
func (l *Ledger) Validate(ctx context.Context, p Proposal) error {
	return l.validator.Validate(ctx, p)
}

// Record validates and appends one movement atomically.
func (l *Ledger) Record(ctx context.Context, e Entry) (Movement, error) {
	return l.recorder.Record(ctx, e)
}

// RecordBatch records the items of b one by one, collecting failures.
func (l *Ledger) RecordBatch(ctx context.Context, b Batch) (BatchResult, error) {
	return l.recorder.RecordBatch(ctx, b)
}
