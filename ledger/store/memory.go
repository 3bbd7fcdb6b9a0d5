// Package store provides in-memory ledger stores.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/warp/scaffold-engine/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu          sync.RWMutex
	movements   []ledger.Movement
	equipment   map[ledger.EquipmentID]equipment
	sites       map[ledger.SiteID]string
	idempotency map[string]bool
	nextID      ledger.MovementID
}

type equipment struct {
	description string
	owned       int
}

func NewMemory() *Memory {
	return &Memory{
		equipment:   make(map[ledger.EquipmentID]equipment),
		sites:       make(map[ledger.SiteID]string),
		idempotency: make(map[string]bool),
	}
}

// AddEquipment registers an equipment type with its owned quantity.
func (m *Memory) AddEquipment(id ledger.EquipmentID, description string, owned int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.equipment[id] = equipment{description: description, owned: owned}
}

// AddSite registers a site.
func (m *Memory) AddSite(id ledger.SiteID, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sites[id] = name
}

// Append adds a movement. Append-only.
func (m *Memory) Append(_ context.Context, mv ledger.Movement) (ledger.MovementID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendLocked(mv)
}

func (m *Memory) appendLocked(mv ledger.Movement) (ledger.MovementID, error) {
	if mv.IdempotencyKey != "" && m.idempotency[mv.IdempotencyKey] {
		return 0, ledger.ErrDuplicateIdempotencyKey
	}
	m.nextID++
	mv.ID = m.nextID
	m.movements = append(m.movements, mv)
	if mv.IdempotencyKey != "" {
		m.idempotency[mv.IdempotencyKey] = true
	}
	return mv.ID, nil
}

func (m *Memory) Movements(_ context.Context, equipmentID ledger.EquipmentID) ([]ledger.Movement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.movementsLocked(equipmentID), nil
}

func (m *Memory) movementsLocked(equipmentID ledger.EquipmentID) []ledger.Movement {
	var result []ledger.Movement
	for _, mv := range m.movements {
		if mv.EquipmentID == equipmentID {
			result = append(result, m.decorate(mv))
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].OccurredAt.Before(result[j].OccurredAt)
	})
	return result
}

func (m *Memory) SiteMovements(_ context.Context, siteID ledger.SiteID) ([]ledger.Movement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.siteMovementsLocked(siteID), nil
}

func (m *Memory) siteMovementsLocked(siteID ledger.SiteID) []ledger.Movement {
	var result []ledger.Movement
	for _, mv := range m.movements {
		if mv.AtSite(siteID) {
			result = append(result, m.decorate(mv))
		}
	}
	return result
}

func (m *Memory) List(_ context.Context, f ledger.Filter) ([]ledger.Movement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listLocked(f), nil
}

func (m *Memory) listLocked(f ledger.Filter) []ledger.Movement {
	var result []ledger.Movement
	for _, mv := range m.movements {
		if f.Matches(mv) {
			result = append(result, m.decorate(mv))
		}
	}
	sortNewestFirst(result)
	if f.Limit > 0 && len(result) > f.Limit {
		result = result[:f.Limit]
	}
	return result
}

func (m *Memory) QuantityOwned(_ context.Context, equipmentID ledger.EquipmentID) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ownedLocked(equipmentID)
}

func (m *Memory) ownedLocked(equipmentID ledger.EquipmentID) (int, error) {
	e, ok := m.equipment[equipmentID]
	if !ok {
		return 0, fmt.Errorf("%w: %d", ledger.ErrEquipmentNotFound, equipmentID)
	}
	return e.owned, nil
}

func (m *Memory) SiteExists(_ context.Context, siteID ledger.SiteID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.sites[siteID]
	return ok, nil
}

func (m *Memory) Exists(_ context.Context, idempotencyKey string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.idempotency[idempotencyKey], nil
}

func (m *Memory) decorate(mv ledger.Movement) ledger.Movement {
	mv.EquipmentDescription = m.equipment[mv.EquipmentID].description
	if mv.SiteID != nil {
		mv.SiteName = m.sites[*mv.SiteID]
	}
	return mv
}

func sortNewestFirst(movements []ledger.Movement) {
	sort.SliceStable(movements, func(i, j int) bool {
		a, b := movements[i], movements[j]
		if !a.OccurredAt.Equal(b.OccurredAt) {
			return a.OccurredAt.After(b.OccurredAt)
		}
		return a.ID > b.ID
	})
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory

	// OnTx, when set, runs inside every transaction before fn.
	// Tests use it to widen race windows.
	OnTx func()
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
func (tm *TxMemory) WithTx(_ context.Context, fn func(ledger.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	if tm.OnTx != nil {
		tm.OnTx()
	}

	snapshot := tm.snapshot()
	if err := fn(&txMemoryView{parent: tm}); err != nil {
		tm.restore(snapshot)
		return err
	}
	return nil
}

func (tm *TxMemory) snapshot() memorySnapshot {
	idempCopy := make(map[string]bool, len(tm.idempotency))
	for k, v := range tm.idempotency {
		idempCopy[k] = v
	}
	return memorySnapshot{
		movements:   append([]ledger.Movement{}, tm.movements...),
		idempotency: idempCopy,
		nextID:      tm.nextID,
	}
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.movements = s.movements
	tm.idempotency = s.idempotency
	tm.nextID = s.nextID
}

type memorySnapshot struct {
	movements   []ledger.Movement
	idempotency map[string]bool
	nextID      ledger.MovementID
}

// txMemoryView reads and writes the parent without locking; WithTx holds the lock.
type txMemoryView struct {
	parent *TxMemory
}

func (tv *txMemoryView) Append(_ context.Context, mv ledger.Movement) (ledger.MovementID, error) {
	return tv.parent.appendLocked(mv)
}

func (tv *txMemoryView) Movements(_ context.Context, equipmentID ledger.EquipmentID) ([]ledger.Movement, error) {
	return tv.parent.movementsLocked(equipmentID), nil
}

func (tv *txMemoryView) SiteMovements(_ context.Context, siteID ledger.SiteID) ([]ledger.Movement, error) {
	return tv.parent.siteMovementsLocked(siteID), nil
}

func (tv *txMemoryView) List(_ context.Context, f ledger.Filter) ([]ledger.Movement, error) {
	return tv.parent.listLocked(f), nil
}

func (tv *txMemoryView) QuantityOwned(_ context.Context, equipmentID ledger.EquipmentID) (int, error) {
	return tv.parent.ownedLocked(equipmentID)
}

func (tv *txMemoryView) SiteExists(_ context.Context, siteID ledger.SiteID) (bool, error) {
	_, ok := tv.parent.sites[siteID]
	return ok, nil
}

func (tv *txMemoryView) Exists(_ context.Context, idempotencyKey string) (bool, error) {
	return tv.parent.idempotency[idempotencyKey], nil
}
