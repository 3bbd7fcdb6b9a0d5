/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements inventory.Store (and through it ledger.TxStore) on SQLite:
  clients, sites, equipment, checklists, maintenance records and the
  append-only movement log.

APPEND-ONLY ENFORCEMENT:
  - No UPDATE or DELETE statement on movements exists in this package
  - Triggers abort any UPDATE or DELETE on the movements table
  - Corrections are counterpart movements (a return undoes a send)

REFERENTIAL INTEGRITY:
  Foreign keys are on and declared ON DELETE RESTRICT. Deleting an
  equipment, site or client that is still referenced returns
  *inventory.InUseError.

CONCURRENCY:
  One connection (SetMaxOpenConns(1)) guarded by a sync.RWMutex: reads
  share the lock, writes and WithTx hold it exclusively. Transactions
  start with BEGIN IMMEDIATE (_txlock=immediate) so a second process
  waits for the write lock instead of failing mid-transaction.

MIGRATION:
  Schema lives in migrations/*.sql, embedded and applied with
  golang-migrate on New(). Open() skips migration for the CLI.

USAGE:
  store, err := sqlite.New("./data/scaffold.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := inventory.NewService(store)

SEE ALSO:
  - ledger/store.go: Movement log interface
  - inventory/store.go: Entity interface
  - ledger/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/warp/scaffold-engine/inventory"
	"github.com/warp/scaffold-engine/ledger"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ inventory.Store = (*Store)(nil)

// New opens the database at dbPath and applies pending migrations.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	store, err := Open(dbPath)
	if err != nil {
		return nil, err
	}
	if err := store.MigrateUp(); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Open opens the database without touching the schema.
func Open(dbPath string) (*Store, error) {
	dsn := dbPath + "?_foreign_keys=on&_journal_mode=WAL&_txlock=immediate&_busy_timeout=5000"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes
	// writers inside the process.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.db.PingContext(ctx)
}

// =============================================================================
// TRANSACTIONAL STORE (ledger.TxStore interface)
// =============================================================================

// WithTx executes fn within a database transaction. The store passed to fn
// reads and writes through the transaction only.
func (s *Store) WithTx(ctx context.Context, fn func(store ledger.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(movementLog{q: sqlTx}); err != nil {
		return err
	}
	return sqlTx.Commit()
}

// =============================================================================
// HELPERS
// =============================================================================

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Timestamps are stored as fixed-width UTC text so they sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		t, _ = time.Parse(time.RFC3339Nano, s)
	}
	return t
}

func formatDate(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(time.DateOnly), Valid: true}
}

func parseDate(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t, err := time.Parse(time.DateOnly, ns.String)
	if err != nil {
		return nil
	}
	return &t
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func constraintCode(err error) sqlite3.ErrNoExtended {
	var se sqlite3.Error
	if errors.As(err, &se) && se.Code == sqlite3.ErrConstraint {
		return se.ExtendedCode
	}
	return 0
}

func isUniqueConstraintError(err error) bool {
	code := constraintCode(err)
	return code == sqlite3.ErrConstraintUnique || code == sqlite3.ErrConstraintPrimaryKey
}

func isForeignKeyError(err error) bool {
	return constraintCode(err) == sqlite3.ErrConstraintForeignKey
}

func rowsAffected(res sql.Result, entity string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return &inventory.NotFoundError{Entity: entity, ID: id}
	}
	return nil
}
