package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/scaffold-engine/inventory"
)

// =============================================================================
// MAINTENANCE RECORDS
// =============================================================================

const maintenanceColumns = `
	r.id, r.equipment_id, e.description, r.kind, r.description, r.responsible,
	r.cost, r.status, r.created_at
	FROM maintenance_records r
	JOIN equipment e ON e.id = r.equipment_id`

// CreateMaintenance inserts a maintenance record. Cost is stored as decimal text.
func (s *Store) CreateMaintenance(ctx context.Context, m *inventory.MaintenanceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var cost decimal.NullDecimal
	if m.Cost != nil {
		cost = decimal.NewNullDecimal(*m.Cost)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO maintenance_records
		(equipment_id, kind, description, responsible, cost, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		m.EquipmentID, m.Kind, m.Description, m.Responsible, cost, m.Status,
		formatTime(m.CreatedAt),
	)
	if err != nil {
		if isForeignKeyError(err) {
			return &inventory.NotFoundError{Entity: "equipment", ID: int64(m.EquipmentID)}
		}
		return fmt.Errorf("failed to create maintenance record: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	m.ID = inventory.MaintenanceID(id)
	return nil
}

// GetMaintenance retrieves a record by ID. Returns (nil, nil) if missing.
func (s *Store) GetMaintenance(ctx context.Context, id inventory.MaintenanceID) (*inventory.MaintenanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list, err := s.queryMaintenance(ctx, "SELECT"+maintenanceColumns+" WHERE r.id = ?", id)
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return &list[0], nil
}

// ListMaintenance returns maintenance records newest first.
func (s *Store) ListMaintenance(ctx context.Context, f inventory.MaintenanceFilter) ([]inventory.MaintenanceRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		where []string
		args  []any
	)
	if f.EquipmentID != 0 {
		where = append(where, "r.equipment_id = ?")
		args = append(args, f.EquipmentID)
	}
	if f.Status != "" {
		where = append(where, "r.status = ?")
		args = append(args, f.Status)
	}
	if !f.From.IsZero() {
		where = append(where, "r.created_at >= ?")
		args = append(args, formatTime(f.From))
	}
	if !f.To.IsZero() {
		where = append(where, "r.created_at < ?")
		args = append(args, formatTime(f.To))
	}
	query := "SELECT" + maintenanceColumns
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY r.created_at DESC, r.id DESC"
	return s.queryMaintenance(ctx, query, args...)
}

// SetMaintenanceStatus changes the status of a maintenance record.
func (s *Store) SetMaintenanceStatus(ctx context.Context, id inventory.MaintenanceID, status inventory.MaintenanceStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "UPDATE maintenance_records SET status = ? WHERE id = ?", status, id)
	if err != nil {
		return fmt.Errorf("failed to update maintenance record: %w", err)
	}
	return rowsAffected(res, "maintenance record", int64(id))
}

func (s *Store) queryMaintenance(ctx context.Context, query string, args ...any) ([]inventory.MaintenanceRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query maintenance records: %w", err)
	}
	defer rows.Close()

	var records []inventory.MaintenanceRecord
	for rows.Next() {
		var (
			r         inventory.MaintenanceRecord
			cost      decimal.NullDecimal
			createdAt string
		)
		err := rows.Scan(&r.ID, &r.EquipmentID, &r.EquipmentDescription, &r.Kind, &r.Description,
			&r.Responsible, &cost, &r.Status, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan maintenance record: %w", err)
		}
		if cost.Valid {
			c := cost.Decimal
			r.Cost = &c
		}
		r.CreatedAt = parseTime(createdAt)
		records = append(records, r)
	}
	return records, rows.Err()
}
