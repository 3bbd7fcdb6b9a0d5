package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/warp/scaffold-engine/inventory"
	"github.com/warp/scaffold-engine/ledger"
)

// =============================================================================
// EQUIPMENT
// =============================================================================

const equipmentColumns = `id, description, code, measure, quantity_owned, status, notes, created_at`

// CreateEquipment inserts an equipment. The description must already be
// normalized; a clash returns *inventory.DuplicateDescriptionError.
func (s *Store) CreateEquipment(ctx context.Context, e *inventory.Equipment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO equipment (description, code, measure, quantity_owned, status, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.Description, e.Code, e.Measure, e.QuantityOwned, e.Status, e.Notes,
		formatTime(e.CreatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return &inventory.DuplicateDescriptionError{Description: e.Description}
		}
		return fmt.Errorf("failed to create equipment: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	e.ID = ledger.EquipmentID(id)
	return nil
}

// GetEquipment retrieves an equipment by ID. Returns (nil, nil) if missing.
func (s *Store) GetEquipment(ctx context.Context, id ledger.EquipmentID) (*inventory.Equipment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, "SELECT "+equipmentColumns+" FROM equipment WHERE id = ?", id)
	e, err := scanEquipment(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ListEquipment returns equipment by description.
func (s *Store) ListEquipment(ctx context.Context, f inventory.EquipmentFilter) ([]inventory.Equipment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT " + equipmentColumns + " FROM equipment"
	var args []any
	if f.Status != "" {
		query += " WHERE status = ?"
		args = append(args, f.Status)
	}
	query += " ORDER BY description"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var equipment []inventory.Equipment
	for rows.Next() {
		e, err := scanEquipment(rows)
		if err != nil {
			return nil, err
		}
		equipment = append(equipment, e)
	}
	return equipment, rows.Err()
}

func (s *Store) UpdateEquipment(ctx context.Context, e inventory.Equipment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE equipment
		SET description = ?, code = ?, measure = ?, quantity_owned = ?, status = ?, notes = ?
		WHERE id = ?`,
		e.Description, e.Code, e.Measure, e.QuantityOwned, e.Status, e.Notes, e.ID,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return &inventory.DuplicateDescriptionError{Description: e.Description}
		}
		return fmt.Errorf("failed to update equipment: %w", err)
	}
	return rowsAffected(res, "equipment", int64(e.ID))
}

// DeleteEquipment removes an equipment with no movements or maintenance records.
func (s *Store) DeleteEquipment(ctx context.Context, id ledger.EquipmentID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM equipment WHERE id = ?", id)
	if err != nil {
		if isForeignKeyError(err) {
			return &inventory.InUseError{Entity: "equipment", ID: int64(id)}
		}
		return fmt.Errorf("failed to delete equipment: %w", err)
	}
	return rowsAffected(res, "equipment", int64(id))
}

// DescriptionTaken reports whether an equipment other than exclude uses description.
func (s *Store) DescriptionTaken(ctx context.Context, description string, exclude ledger.EquipmentID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM equipment WHERE description = ? AND id != ?",
		description, exclude,
	).Scan(&count)
	return count > 0, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEquipment(row scanner) (inventory.Equipment, error) {
	var (
		e         inventory.Equipment
		createdAt string
	)
	err := row.Scan(&e.ID, &e.Description, &e.Code, &e.Measure, &e.QuantityOwned, &e.Status, &e.Notes, &createdAt)
	if err != nil {
		return e, err
	}
	e.CreatedAt = parseTime(createdAt)
	return e, nil
}
