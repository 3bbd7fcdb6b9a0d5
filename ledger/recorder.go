/*
recorder.go - Atomic validate-and-append

PURPOSE:
  Record() is the only way movements enter the ledger. Inside a single
  TxStore.WithTx call it:
    1. rejects a reused idempotency key
    2. checks the referenced site exists
    3. folds the equipment log and applies the quantity rule
    4. appends the movement

  Two callers racing to send the last units cannot both pass step 3:
  the second one sees the first one's movement.

TIMESTAMPS:
  OccurredAt defaults to the recorder clock. A caller-supplied value is
  stored as given, including dates in the past.
*/
package ledger

import (
	"context"
	"fmt"
	"time"
)

// Recorder validates and persists movements.
type Recorder struct {
	store TxStore
	now   func() time.Time
}

// NewRecorder creates a recorder over store using the wall clock.
func NewRecorder(store TxStore) *Recorder {
	return &Recorder{store: store, now: time.Now}
}

// Record validates e and appends it atomically. On rejection nothing is
// written and the *RejectionError is returned.
func (r *Recorder) Record(ctx context.Context, e Entry) (Movement, error) {
	if err := checkEntry(e); err != nil {
		return Movement{}, err
	}

	var recorded Movement
	err := r.store.WithTx(ctx, func(s Store) error {
		m, err := r.recordIn(ctx, s, e)
		if err != nil {
			return err
		}
		recorded = m
		return nil
	})
	if err != nil {
		return Movement{}, err
	}
	return recorded, nil
}

func (r *Recorder) recordIn(ctx context.Context, s Store, e Entry) (Movement, error) {
	if e.IdempotencyKey != "" {
		exists, err := s.Exists(ctx, e.IdempotencyKey)
		if err != nil {
			return Movement{}, fmt.Errorf("check idempotency key: %w", err)
		}
		if exists {
			return Movement{}, fmt.Errorf("%w: %s", ErrDuplicateIdempotencyKey, e.IdempotencyKey)
		}
	}

	if e.SiteID != nil {
		ok, err := s.SiteExists(ctx, *e.SiteID)
		if err != nil {
			return Movement{}, fmt.Errorf("check site %d: %w", *e.SiteID, err)
		}
		if !ok {
			return Movement{}, fmt.Errorf("%w: %d", ErrSiteNotFound, *e.SiteID)
		}
	}

	if err := NewValidator(s).Validate(ctx, e.Proposal); err != nil {
		return Movement{}, err
	}

	now := r.now()
	occurredAt := now
	if e.OccurredAt != nil {
		occurredAt = *e.OccurredAt
	}
	m := Movement{
		Kind:           e.Kind,
		EquipmentID:    e.EquipmentID,
		SiteID:         e.SiteID,
		Quantity:       e.Quantity,
		OccurredAt:     occurredAt,
		Responsible:    e.Responsible,
		Notes:          e.Notes,
		ReferenceID:    e.ReferenceID,
		IdempotencyKey: e.IdempotencyKey,
		CreatedAt:      now,
	}
	id, err := s.Append(ctx, m)
	if err != nil {
		return Movement{}, fmt.Errorf("append movement: %w", err)
	}
	m.ID = id
	return m, nil
}

func checkEntry(e Entry) error {
	if err := checkProposal(e.Proposal); err != nil {
		return err
	}
	if e.Kind.RequiresSite() && e.SiteID == nil {
		return ErrSiteRequired
	}
	return nil
}
