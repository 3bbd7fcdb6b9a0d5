package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/warp/scaffold-engine/inventory"
	"github.com/warp/scaffold-engine/ledger"
)

// =============================================================================
// SITES
// =============================================================================

const siteColumns = `
	s.id, s.name, s.client_id, COALESCE(c.name, ''), s.address, s.responsible,
	s.phone, s.start_date, s.end_date, s.status, s.created_at
	FROM sites s
	LEFT JOIN clients c ON c.id = s.client_id`

func (s *Store) CreateSite(ctx context.Context, site *inventory.Site) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO sites
		(name, client_id, address, responsible, phone, start_date, end_date, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		site.Name, clientRef(site.ClientID), site.Address, site.Responsible, site.Phone,
		formatDate(site.StartDate), formatDate(site.EndDate), site.Status,
		formatTime(site.CreatedAt),
	)
	if err != nil {
		if isForeignKeyError(err) {
			return &inventory.NotFoundError{Entity: "client", ID: int64(*site.ClientID)}
		}
		return fmt.Errorf("failed to create site: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	site.ID = ledger.SiteID(id)
	return nil
}

// GetSite retrieves a site by ID. Returns (nil, nil) if missing.
func (s *Store) GetSite(ctx context.Context, id ledger.SiteID) (*inventory.Site, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, "SELECT"+siteColumns+" WHERE s.id = ?", id)
	if err != nil {
		return nil, err
	}
	sites, err := scanSites(rows)
	if err != nil || len(sites) == 0 {
		return nil, err
	}
	return &sites[0], nil
}

// ListSites returns sites by name, optionally filtered by status or client.
func (s *Store) ListSites(ctx context.Context, f inventory.SiteFilter) ([]inventory.Site, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		where = append(where, "s.status = ?")
		args = append(args, f.Status)
	}
	if f.ClientID != 0 {
		where = append(where, "s.client_id = ?")
		args = append(args, f.ClientID)
	}
	query := "SELECT" + siteColumns
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY s.name, s.id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return scanSites(rows)
}

func (s *Store) UpdateSite(ctx context.Context, site inventory.Site) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE sites SET name = ?, client_id = ?, address = ?, responsible = ?, phone = ?,
			start_date = ?, end_date = ?, status = ?
		WHERE id = ?`,
		site.Name, clientRef(site.ClientID), site.Address, site.Responsible, site.Phone,
		formatDate(site.StartDate), formatDate(site.EndDate), site.Status, site.ID,
	)
	if err != nil {
		if isForeignKeyError(err) {
			return &inventory.NotFoundError{Entity: "client", ID: int64(*site.ClientID)}
		}
		return fmt.Errorf("failed to update site: %w", err)
	}
	return rowsAffected(res, "site", int64(site.ID))
}

// DeleteSite removes a site that no movement or checklist references.
func (s *Store) DeleteSite(ctx context.Context, id ledger.SiteID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM sites WHERE id = ?", id)
	if err != nil {
		if isForeignKeyError(err) {
			return &inventory.InUseError{Entity: "site", ID: int64(id)}
		}
		return fmt.Errorf("failed to delete site: %w", err)
	}
	return rowsAffected(res, "site", int64(id))
}

func scanSites(rows *sql.Rows) ([]inventory.Site, error) {
	defer rows.Close()

	var sites []inventory.Site
	for rows.Next() {
		var (
			site               inventory.Site
			clientID           sql.NullInt64
			startDate, endDate sql.NullString
			createdAt          string
		)
		err := rows.Scan(
			&site.ID, &site.Name, &clientID, &site.ClientName, &site.Address,
			&site.Responsible, &site.Phone, &startDate, &endDate, &site.Status, &createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan site: %w", err)
		}
		if clientID.Valid {
			id := inventory.ClientID(clientID.Int64)
			site.ClientID = &id
		}
		site.StartDate = parseDate(startDate)
		site.EndDate = parseDate(endDate)
		site.CreatedAt = parseTime(createdAt)
		sites = append(sites, site)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sites, nil
}

func clientRef(id *inventory.ClientID) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*id), Valid: true}
}
