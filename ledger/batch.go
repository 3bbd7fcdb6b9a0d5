package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Batch is one form submission moving several equipment types at once.
// Kind, site, responsible, timestamp and notes are shared by every item.
type Batch struct {
	Kind        Kind
	SiteID      *SiteID
	Responsible string
	Notes       string
	OccurredAt  *time.Time
	Items       []BatchItem
}

// BatchItem is one (equipment, quantity) line of a batch.
type BatchItem struct {
	EquipmentID EquipmentID
	Quantity    int
}

// BatchSuccess is an item that was recorded.
type BatchSuccess struct {
	EquipmentID EquipmentID
	Quantity    int
	MovementID  MovementID
}

// BatchFailure is an item that was refused, with the reason.
type BatchFailure struct {
	EquipmentID EquipmentID
	Quantity    int
	Reason      string
	Err         error
}

// BatchResult reports every item of a batch as either succeeded or failed.
type BatchResult struct {
	ReferenceID string
	Succeeded   []BatchSuccess
	Failed      []BatchFailure
}

// RecordBatch records each item in its own transaction. Processing is
// best-effort: a refused item is reported in Failed and the rest continue.
// Earlier successes are never rolled back.
//
// The whole batch is refused up front, with nothing written, when it has
// no items, an invalid kind, or a send/return without a site. An error
// other than a client or lookup error stops processing and is returned
// alongside the partial result.
func (r *Recorder) RecordBatch(ctx context.Context, b Batch) (BatchResult, error) {
	if len(b.Items) == 0 {
		return BatchResult{}, ErrEmptyBatch
	}
	if !b.Kind.Valid() {
		return BatchResult{}, checkProposal(Proposal{Kind: b.Kind, Quantity: 1})
	}
	if b.Kind.RequiresSite() && b.SiteID == nil {
		return BatchResult{}, ErrSiteRequired
	}

	occurredAt := r.now()
	if b.OccurredAt != nil {
		occurredAt = *b.OccurredAt
	}

	result := BatchResult{ReferenceID: uuid.NewString()}
	for _, item := range b.Items {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		m, err := r.Record(ctx, Entry{
			Proposal: Proposal{
				Kind:        b.Kind,
				EquipmentID: item.EquipmentID,
				SiteID:      b.SiteID,
				Quantity:    item.Quantity,
			},
			Responsible: b.Responsible,
			Notes:       b.Notes,
			OccurredAt:  &occurredAt,
			ReferenceID: result.ReferenceID,
		})
		if err != nil {
			if !IsClientError(err) && !IsNotFound(err) {
				return result, err
			}
			result.Failed = append(result.Failed, BatchFailure{
				EquipmentID: item.EquipmentID,
				Quantity:    item.Quantity,
				Reason:      failureReason(err),
				Err:         err,
			})
			continue
		}
		result.Succeeded = append(result.Succeeded, BatchSuccess{
			EquipmentID: item.EquipmentID,
			Quantity:    item.Quantity,
			MovementID:  m.ID,
		})
	}
	return result, nil
}

func failureReason(err error) string {
	var re *RejectionError
	if errors.As(err, &re) {
		return re.Reason
	}
	return err.Error()
}
