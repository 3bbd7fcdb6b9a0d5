package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/warp/scaffold-engine/ledger"
)

// =============================================================================
// MOVEMENT LOG (ledger.Store interface)
// =============================================================================

// Append adds a movement to the log.
func (s *Store) Append(ctx context.Context, m ledger.Movement) (ledger.MovementID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return movementLog{q: s.db}.Append(ctx, m)
}

// Movements returns the log of one equipment, oldest first.
func (s *Store) Movements(ctx context.Context, equipmentID ledger.EquipmentID) ([]ledger.Movement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return movementLog{q: s.db}.Movements(ctx, equipmentID)
}

// SiteMovements returns every movement naming a site.
func (s *Store) SiteMovements(ctx context.Context, siteID ledger.SiteID) ([]ledger.Movement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return movementLog{q: s.db}.SiteMovements(ctx, siteID)
}

// List returns filtered movements, newest first.
func (s *Store) List(ctx context.Context, f ledger.Filter) ([]ledger.Movement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return movementLog{q: s.db}.List(ctx, f)
}

// QuantityOwned returns the owned quantity of an equipment.
func (s *Store) QuantityOwned(ctx context.Context, equipmentID ledger.EquipmentID) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return movementLog{q: s.db}.QuantityOwned(ctx, equipmentID)
}

// SiteExists reports whether a site is registered.
func (s *Store) SiteExists(ctx context.Context, siteID ledger.SiteID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return movementLog{q: s.db}.SiteExists(ctx, siteID)
}

// Exists checks if an idempotency key exists.
func (s *Store) Exists(ctx context.Context, idempotencyKey string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return movementLog{q: s.db}.Exists(ctx, idempotencyKey)
}

// movementLog runs the movement queries against a connection or a
// transaction. It does no locking.
type movementLog struct {
	q querier
}

const movementColumns = `
	m.id, m.kind, m.equipment_id, m.site_id, m.quantity, m.occurred_at,
	m.responsible, m.notes, m.reference_id, m.idempotency_key, m.created_at,
	e.description, COALESCE(s.name, '')`

const movementFrom = `
	FROM movements m
	JOIN equipment e ON e.id = m.equipment_id
	LEFT JOIN sites s ON s.id = m.site_id`

func (l movementLog) Append(ctx context.Context, m ledger.Movement) (ledger.MovementID, error) {
	var site sql.NullInt64
	if m.SiteID != nil {
		site = sql.NullInt64{Int64: int64(*m.SiteID), Valid: true}
	}

	res, err := l.q.ExecContext(ctx, `
		INSERT INTO movements
		(kind, equipment_id, site_id, quantity, occurred_at, responsible, notes,
		 reference_id, idempotency_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.Kind, m.EquipmentID, site, m.Quantity, formatTime(m.OccurredAt),
		m.Responsible, m.Notes,
		nullString(m.ReferenceID), nullString(m.IdempotencyKey),
		formatTime(m.CreatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return 0, ledger.ErrDuplicateIdempotencyKey
		}
		if isForeignKeyError(err) {
			return 0, fmt.Errorf("movement references unknown equipment or site: %w", err)
		}
		return 0, fmt.Errorf("failed to append movement: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return ledger.MovementID(id), nil
}

func (l movementLog) Movements(ctx context.Context, equipmentID ledger.EquipmentID) ([]ledger.Movement, error) {
	return l.query(ctx,
		"SELECT"+movementColumns+movementFrom+`
		WHERE m.equipment_id = ?
		ORDER BY m.occurred_at ASC, m.id ASC`,
		equipmentID)
}

func (l movementLog) SiteMovements(ctx context.Context, siteID ledger.SiteID) ([]ledger.Movement, error) {
	return l.query(ctx,
		"SELECT"+movementColumns+movementFrom+`
		WHERE m.site_id = ?
		ORDER BY m.occurred_at ASC, m.id ASC`,
		siteID)
}

func (l movementLog) List(ctx context.Context, f ledger.Filter) ([]ledger.Movement, error) {
	var (
		where []string
		args  []any
	)
	if f.Kind != "" {
		where = append(where, "m.kind = ?")
		args = append(args, f.Kind)
	}
	if f.EquipmentID != 0 {
		where = append(where, "m.equipment_id = ?")
		args = append(args, f.EquipmentID)
	}
	if f.SiteID != 0 {
		where = append(where, "m.site_id = ?")
		args = append(args, f.SiteID)
	}
	if !f.From.IsZero() {
		where = append(where, "m.occurred_at >= ?")
		args = append(args, formatTime(f.From))
	}
	if !f.To.IsZero() {
		where = append(where, "m.occurred_at < ?")
		args = append(args, formatTime(f.To))
	}

	query := "SELECT" + movementColumns + movementFrom
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY m.occurred_at DESC, m.id DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	return l.query(ctx, query, args...)
}

func (l movementLog) QuantityOwned(ctx context.Context, equipmentID ledger.EquipmentID) (int, error) {
	var owned int
	err := l.q.QueryRowContext(ctx,
		"SELECT quantity_owned FROM equipment WHERE id = ?", equipmentID,
	).Scan(&owned)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %d", ledger.ErrEquipmentNotFound, equipmentID)
	}
	return owned, err
}

func (l movementLog) SiteExists(ctx context.Context, siteID ledger.SiteID) (bool, error) {
	var count int
	err := l.q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sites WHERE id = ?", siteID,
	).Scan(&count)
	return count > 0, err
}

func (l movementLog) Exists(ctx context.Context, idempotencyKey string) (bool, error) {
	var count int
	err := l.q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM movements WHERE idempotency_key = ?", idempotencyKey,
	).Scan(&count)
	return count > 0, err
}

func (l movementLog) query(ctx context.Context, query string, args ...any) ([]ledger.Movement, error) {
	rows, err := l.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query movements: %w", err)
	}
	defer rows.Close()

	var movements []ledger.Movement
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, err
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

func scanMovement(rows *sql.Rows) (ledger.Movement, error) {
	var (
		m              ledger.Movement
		site           sql.NullInt64
		occurredAt     string
		referenceID    sql.NullString
		idempotencyKey sql.NullString
		createdAt      string
	)
	err := rows.Scan(
		&m.ID, &m.Kind, &m.EquipmentID, &site, &m.Quantity, &occurredAt,
		&m.Responsible, &m.Notes, &referenceID, &idempotencyKey, &createdAt,
		&m.EquipmentDescription, &m.SiteName,
	)
	if err != nil {
		return m, fmt.Errorf("failed to scan movement: %w", err)
	}
	if site.Valid {
		m.SiteID = ledger.SiteRef(ledger.SiteID(site.Int64))
	}
	m.OccurredAt = parseTime(occurredAt)
	m.CreatedAt = parseTime(createdAt)
	m.ReferenceID = referenceID.String
	m.IdempotencyKey = idempotencyKey.String
	return m, nil
}
