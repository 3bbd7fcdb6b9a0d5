/*
store.go - Persistence interface for the movement log

APPEND-ONLY CONTRACT:
  Append() is the only write. There is no Update or Delete for movements;
  a mistaken movement is corrected by recording its counterpart kind
  (a wrong send is undone by a return to the same site).

TRANSACTIONS:
  TxStore.WithTx runs fn against a Store bound to one database
  transaction. The recorder validates and appends inside the same
  WithTx call, so no other write can slip between the check and the act.

IMPLEMENTATIONS:
  - store/sqlite: SQLite, used by the server
  - ledger/store: in-memory, used by tests
*/
package ledger

import "context"

// Store persists and reads movements. Reads never mutate.
type Store interface {
	// Append persists a movement and returns its assigned ID.
	Append(ctx context.Context, m Movement) (MovementID, error)

	// Movements returns the full log of one equipment, oldest first.
	Movements(ctx context.Context, equipmentID EquipmentID) ([]Movement, error)

	// SiteMovements returns every movement naming the site, with
	// EquipmentDescription filled.
	SiteMovements(ctx context.Context, siteID SiteID) ([]Movement, error)

	// List returns movements matching f, newest first.
	List(ctx context.Context, f Filter) ([]Movement, error)

	// QuantityOwned returns the owned quantity of an equipment.
	// Returns ErrEquipmentNotFound for unknown equipment.
	QuantityOwned(ctx context.Context, equipmentID EquipmentID) (int, error)

	// SiteExists reports whether the site is registered.
	SiteExists(ctx context.Context, siteID SiteID) (bool, error)

	// Exists reports whether an idempotency key was already recorded.
	Exists(ctx context.Context, idempotencyKey string) (bool, error)
}

// TxStore is a Store that can run a function atomically.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back; otherwise it is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
