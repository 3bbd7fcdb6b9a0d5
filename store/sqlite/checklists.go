package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/warp/scaffold-engine/inventory"
)

// =============================================================================
// CHECKLISTS
// =============================================================================

const checklistColumns = `
	c.id, c.kind, c.site_id, COALESCE(s.name, ''), c.responsible, c.items, c.notes,
	c.status, c.created_at
	FROM checklists c
	LEFT JOIN sites s ON s.id = c.site_id`

// CreateChecklist inserts a checklist. Items are stored one per line.
func (s *Store) CreateChecklist(ctx context.Context, c *inventory.Checklist) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO checklists (kind, site_id, responsible, items, notes, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.Kind, c.SiteID, c.Responsible, inventory.EncodeItems(c.Items), c.Notes, c.Status,
		formatTime(c.CreatedAt),
	)
	if err != nil {
		if isForeignKeyError(err) {
			return &inventory.NotFoundError{Entity: "site", ID: int64(c.SiteID)}
		}
		return fmt.Errorf("failed to create checklist: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = inventory.ChecklistID(id)
	return nil
}

// GetChecklist retrieves a checklist by ID. Returns (nil, nil) if missing.
func (s *Store) GetChecklist(ctx context.Context, id inventory.ChecklistID) (*inventory.Checklist, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list, err := s.queryChecklists(ctx, "SELECT"+checklistColumns+" WHERE c.id = ?", id)
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return &list[0], nil
}

// ListChecklists returns checklists newest first.
func (s *Store) ListChecklists(ctx context.Context, f inventory.ChecklistFilter) ([]inventory.Checklist, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		where []string
		args  []any
	)
	if f.SiteID != 0 {
		where = append(where, "c.site_id = ?")
		args = append(args, f.SiteID)
	}
	if f.Kind != "" {
		where = append(where, "c.kind = ?")
		args = append(args, f.Kind)
	}
	if f.Status != "" {
		where = append(where, "c.status = ?")
		args = append(args, f.Status)
	}
	query := "SELECT" + checklistColumns
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY c.created_at DESC, c.id DESC"
	return s.queryChecklists(ctx, query, args...)
}

// SetChecklistStatus changes the status of a checklist.
func (s *Store) SetChecklistStatus(ctx context.Context, id inventory.ChecklistID, status inventory.ChecklistStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "UPDATE checklists SET status = ? WHERE id = ?", status, id)
	if err != nil {
		return fmt.Errorf("failed to update checklist: %w", err)
	}
	return rowsAffected(res, "checklist", int64(id))
}

func (s *Store) queryChecklists(ctx context.Context, query string, args ...any) ([]inventory.Checklist, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query checklists: %w", err)
	}
	defer rows.Close()

	var list []inventory.Checklist
	for rows.Next() {
		var (
			c                inventory.Checklist
			items, createdAt string
		)
		err := rows.Scan(&c.ID, &c.Kind, &c.SiteID, &c.SiteName, &c.Responsible, &items, &c.Notes, &c.Status, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan checklist: %w", err)
		}
		c.Items = inventory.DecodeItems(items)
		c.CreatedAt = parseTime(createdAt)
		list = append(list, c)
	}
	return list, rows.Err()
}
