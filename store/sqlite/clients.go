package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/warp/scaffold-engine/inventory"
)

// =============================================================================
// CLIENTS
// =============================================================================

// CreateClient inserts a client and sets its ID.
func (s *Store) CreateClient(ctx context.Context, c *inventory.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO clients (name, contact, phone, email, address, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		c.Name, c.Contact, c.Phone, c.Email, c.Address, formatTime(c.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = inventory.ClientID(id)
	return nil
}

// GetClient retrieves a client by ID. Returns (nil, nil) if missing.
func (s *Store) GetClient(ctx context.Context, id inventory.ClientID) (*inventory.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		c         inventory.Client
		createdAt string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, contact, phone, email, address, created_at FROM clients WHERE id = ?",
		id,
	).Scan(&c.ID, &c.Name, &c.Contact, &c.Phone, &c.Email, &c.Address, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.CreatedAt = parseTime(createdAt)
	return &c, nil
}

// ListClients returns all clients by name.
func (s *Store) ListClients(ctx context.Context) ([]inventory.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, contact, phone, email, address, created_at FROM clients ORDER BY name, id",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clients []inventory.Client
	for rows.Next() {
		var (
			c         inventory.Client
			createdAt string
		)
		if err := rows.Scan(&c.ID, &c.Name, &c.Contact, &c.Phone, &c.Email, &c.Address, &createdAt); err != nil {
			return nil, err
		}
		c.CreatedAt = parseTime(createdAt)
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

// UpdateClient replaces the editable fields of a client.
func (s *Store) UpdateClient(ctx context.Context, c inventory.Client) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE clients SET name = ?, contact = ?, phone = ?, email = ?, address = ?
		WHERE id = ?`,
		c.Name, c.Contact, c.Phone, c.Email, c.Address, c.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update client: %w", err)
	}
	return rowsAffected(res, "client", int64(c.ID))
}

// DeleteClient removes a client that owns no sites.
func (s *Store) DeleteClient(ctx context.Context, id inventory.ClientID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM clients WHERE id = ?", id)
	if err != nil {
		if isForeignKeyError(err) {
			return &inventory.InUseError{Entity: "client", ID: int64(id)}
		}
		return fmt.Errorf("failed to delete client: %w", err)
	}
	return rowsAffected(res, "client", int64(id))
}
