package ledger_test

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/scaffold-engine/ledger"
	"github.com/warp/scaffold-engine/ledger/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var now = time.Date(2025, time.June, 2, 14, 30, 0, 0, time.UTC)

const (
	tubes  ledger.EquipmentID = 1
	clamps ledger.EquipmentID = 2
	planks ledger.EquipmentID = 3
	plates ledger.EquipmentID = 4

	siteA ledger.SiteID = 10
	siteB ledger.SiteID = 11
)

func newTestLedger(t *testing.T) (*ledger.Ledger, *store.TxMemory) {
	t.Helper()
	mem := store.NewTxMemory()
	mem.AddEquipment(tubes, "TUBE 3M", 100)
	mem.AddEquipment(clamps, "CLAMP", 40)
	mem.AddEquipment(planks, "PLANK", 5)
	mem.AddEquipment(plates, "BASE PLATE", 10)
	mem.AddSite(siteA, "Harbour Tower")
	mem.AddSite(siteB, "North School")
	return ledger.New(mem, ledger.WithClock(func() time.Time { return now })), mem
}

func send(eq ledger.EquipmentID, site ledger.SiteID, qty int) ledger.Entry {
	return ledger.Entry{Proposal: ledger.Proposal{
		Kind: ledger.KindSend, EquipmentID: eq, SiteID: ledger.SiteRef(site), Quantity: qty,
	}}
}

func back(eq ledger.EquipmentID, site ledger.SiteID, qty int) ledger.Entry {
	e := send(eq, site, qty)
	e.Kind = ledger.KindReturn
	return e
}

func entry(kind ledger.Kind, eq ledger.EquipmentID, qty int) ledger.Entry {
	return ledger.Entry{Proposal: ledger.Proposal{Kind: kind, EquipmentID: eq, Quantity: qty}}
}

func mustRecord(t *testing.T, l *ledger.Ledger, e ledger.Entry) ledger.Movement {
	t.Helper()
	m, err := l.Record(context.Background(), e)
	require.NoError(t, err)
	return m
}

// =============================================================================
// SCENARIO TESTS
// =============================================================================

func TestLedger_SendReturnScenario(t *testing.T) {
	// GIVEN: 100 tubes owned
	// WHEN: send 30 to A, return 10 from A, 5 to maintenance, 2 lost
	// THEN: available 73, at A 20, maintenance 5, lost 2
	l, _ := newTestLedger(t)
	ctx := context.Background()

	mustRecord(t, l, send(tubes, siteA, 30))
	ret := send(tubes, siteA, 10)
	ret.Kind = ledger.KindReturn
	mustRecord(t, l, ret)
	mustRecord(t, l, entry(ledger.KindMaintenance, tubes, 5))
	mustRecord(t, l, entry(ledger.KindLoss, tubes, 2))

	available, err := l.Available(ctx, tubes)
	require.NoError(t, err)
	assert.Equal(t, 73, available)

	atA, err := l.SentToSite(ctx, tubes, siteA)
	require.NoError(t, err)
	assert.Equal(t, 20, atA)

	inMaintenance, err := l.InMaintenance(ctx, tubes)
	require.NoError(t, err)
	assert.Equal(t, 5, inMaintenance)

	lost, err := l.Lost(ctx, tubes)
	require.NoError(t, err)
	assert.Equal(t, 2, lost)

	// Over-send is refused and changes nothing.
	_, err = l.Record(ctx, send(tubes, siteB, 74))
	var re *ledger.RejectionError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, 73, re.Limit)

	available, err = l.Available(ctx, tubes)
	require.NoError(t, err)
	assert.Equal(t, 73, available)
}

func TestLedger_SendFourReturnOne(t *testing.T) {
	// GIVEN: 10 base plates owned
	// WHEN: send 4 to A
	// THEN: available 6, at A 4
	// WHEN: return 1 from A
	// THEN: available 7, at A 3
	l, _ := newTestLedger(t)
	ctx := context.Background()

	mustRecord(t, l, send(plates, siteA, 4))
	available, err := l.Available(ctx, plates)
	require.NoError(t, err)
	atA, err := l.SentToSite(ctx, plates, siteA)
	require.NoError(t, err)
	assert.Equal(t, 6, available)
	assert.Equal(t, 4, atA)

	mustRecord(t, l, back(plates, siteA, 1))
	available, err = l.Available(ctx, plates)
	require.NoError(t, err)
	atA, err = l.SentToSite(ctx, plates, siteA)
	require.NoError(t, err)
	assert.Equal(t, 7, available)
	assert.Equal(t, 3, atA)
}

func TestLedger_FullReturnRestoresPosition(t *testing.T) {
	// GIVEN: some history on tubes
	// WHEN: send 25 to B, then return 25 from B
	// THEN: available and at-B are back to their values before the send
	l, _ := newTestLedger(t)
	ctx := context.Background()
	mustRecord(t, l, send(tubes, siteB, 7))
	mustRecord(t, l, entry(ledger.KindMaintenance, tubes, 3))

	beforeAvailable, err := l.Available(ctx, tubes)
	require.NoError(t, err)
	beforeAtB, err := l.SentToSite(ctx, tubes, siteB)
	require.NoError(t, err)

	mustRecord(t, l, send(tubes, siteB, 25))
	mustRecord(t, l, back(tubes, siteB, 25))

	afterAvailable, err := l.Available(ctx, tubes)
	require.NoError(t, err)
	afterAtB, err := l.SentToSite(ctx, tubes, siteB)
	require.NoError(t, err)
	assert.Equal(t, beforeAvailable, afterAvailable)
	assert.Equal(t, beforeAtB, afterAtB)
	assert.Equal(t, 90, afterAvailable)
	assert.Equal(t, 7, afterAtB)
}

func TestLedger_QueriesAreRepeatable(t *testing.T) {
	// GIVEN: a mixed log
	// WHEN: querying twice with no write in between
	// THEN: both answers are identical
	l, _ := newTestLedger(t)
	ctx := context.Background()
	mustRecord(t, l, send(clamps, siteA, 12))
	mustRecord(t, l, back(clamps, siteA, 2))
	mustRecord(t, l, entry(ledger.KindLoss, clamps, 1))

	first, err := l.Available(ctx, clamps)
	require.NoError(t, err)
	second, err := l.Available(ctx, clamps)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 29, first)

	p1, err := l.Position(ctx, clamps)
	require.NoError(t, err)
	p2, err := l.Position(ctx, clamps)
	require.NoError(t, err)
	assert.Equal(t, p1, p2)
}

func TestLedger_ReturnMaintenanceReasonCitesLimit(t *testing.T) {
	// GIVEN: 2 clamps in maintenance
	// WHEN: validating a return_maintenance of 3
	// THEN: rejected, and the reason names 3 requested and 2 in maintenance
	l, _ := newTestLedger(t)
	ctx := context.Background()
	mustRecord(t, l, entry(ledger.KindMaintenance, clamps, 2))

	err := l.Validate(ctx, ledger.Proposal{Kind: ledger.KindReturnMaintenance, EquipmentID: clamps, Quantity: 3})

	re, ok := ledger.Rejection(err)
	require.True(t, ok, "expected rejection, got %v", err)
	assert.Equal(t, 3, re.Requested)
	assert.Equal(t, 2, re.Limit)
	assert.Equal(t, "insufficient quantity in maintenance: requested 3, in maintenance 2", re.Reason)
}

func TestLedger_OwnedBoundHoldsOverMixedLog(t *testing.T) {
	// GIVEN: 10 base plates and a long run of mixed proposals
	// WHEN: each is recorded if accepted
	// THEN: available + maintenance_net + loss_net <= owned after every step
	l, _ := newTestLedger(t)
	ctx := context.Background()
	kinds := []ledger.Kind{
		ledger.KindSend, ledger.KindMaintenance, ledger.KindReturn,
		ledger.KindLoss, ledger.KindReturnMaintenance, ledger.KindReturnLoss,
	}
	sites := []ledger.SiteID{siteA, siteB}

	accepted := 0
	for i := 0; i < 200; i++ {
		e := entry(kinds[i%len(kinds)], plates, 1+(i*5)%4)
		e.SiteID = ledger.SiteRef(sites[(i/len(kinds))%len(sites)])
		_, err := l.Record(ctx, e)
		if err == nil {
			accepted++
		} else {
			require.ErrorIs(t, err, ledger.ErrRejected, "step %d", i)
		}

		p, err := l.Position(ctx, plates)
		require.NoError(t, err)
		require.LessOrEqual(t, p.Available()+p.MaintenanceNet+p.LossNet, p.Owned, "step %d", i)
		require.GreaterOrEqual(t, p.MaintenanceNet, 0)
		require.GreaterOrEqual(t, p.LossNet, 0)
		require.GreaterOrEqual(t, p.SentNet, 0)
	}
	assert.Positive(t, accepted)
}

func TestLedger_OversizedLossCannotInflateAvailable(t *testing.T) {
	// GIVEN: 10 base plates
	// WHEN: a loss of math.MaxInt is recorded
	// THEN: it is refused as an invalid quantity
	// WHEN: two losses of the largest allowed quantity are recorded
	// THEN: nothing is available and a send of 12 is rejected
	l, _ := newTestLedger(t)
	ctx := context.Background()

	_, err := l.Record(ctx, entry(ledger.KindLoss, plates, math.MaxInt))
	require.ErrorIs(t, err, ledger.ErrInvalidQuantity)

	mustRecord(t, l, entry(ledger.KindLoss, plates, ledger.MaxQuantity))
	mustRecord(t, l, entry(ledger.KindLoss, plates, ledger.MaxQuantity))

	available, err := l.Available(ctx, plates)
	require.NoError(t, err)
	assert.Equal(t, 0, available)

	_, err = l.Record(ctx, send(plates, siteA, 12))
	assert.ErrorIs(t, err, ledger.ErrRejected)
	atA, err := l.SentToSite(ctx, plates, siteA)
	require.NoError(t, err)
	assert.Equal(t, 0, atA)
}

func TestLedger_SendBoundary(t *testing.T) {
	// GIVEN: available is exactly 5
	// WHEN: proposing sends of 5 and 6
	// THEN: 5 is accepted, 6 is rejected
	l, _ := newTestLedger(t)
	ctx := context.Background()

	p := ledger.Proposal{Kind: ledger.KindSend, EquipmentID: planks, Quantity: 5}
	assert.NoError(t, l.Validate(ctx, p))

	p.Quantity = 6
	assert.ErrorIs(t, l.Validate(ctx, p), ledger.ErrRejected)
}

func TestLedger_ValidateDoesNotWrite(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	require.NoError(t, l.Validate(ctx, ledger.Proposal{Kind: ledger.KindLoss, EquipmentID: tubes, Quantity: 3}))

	movements, err := l.Movements(ctx, ledger.Filter{})
	require.NoError(t, err)
	assert.Empty(t, movements)
}

func TestLedger_MaintenanceRoundTrip(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	mustRecord(t, l, entry(ledger.KindMaintenance, clamps, 4))
	mustRecord(t, l, entry(ledger.KindReturnMaintenance, clamps, 4))

	available, err := l.Available(ctx, clamps)
	require.NoError(t, err)
	assert.Equal(t, 40, available)

	_, err = l.Record(ctx, entry(ledger.KindReturnMaintenance, clamps, 1))
	assert.ErrorIs(t, err, ledger.ErrRejected)
}

func TestLedger_LossRecovery(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	mustRecord(t, l, entry(ledger.KindLoss, clamps, 3))
	mustRecord(t, l, entry(ledger.KindReturnLoss, clamps, 2))

	lost, err := l.Lost(ctx, clamps)
	require.NoError(t, err)
	assert.Equal(t, 1, lost)

	_, err = l.Record(ctx, entry(ledger.KindReturnLoss, clamps, 2))
	assert.ErrorIs(t, err, ledger.ErrRejected)
}

// =============================================================================
// RECORDER TESTS
// =============================================================================

func TestRecord_DefaultsTimestampToClock(t *testing.T) {
	l, _ := newTestLedger(t)

	m := mustRecord(t, l, send(tubes, siteA, 1))

	assert.Equal(t, now, m.OccurredAt)
	assert.NotZero(t, m.ID)
}

func TestRecord_BackdatedTimestampStoredVerbatim(t *testing.T) {
	// GIVEN: a movement dated two weeks ago
	// THEN: it is stored with that date, not the clock
	l, _ := newTestLedger(t)
	ctx := context.Background()
	past := now.AddDate(0, 0, -14)

	e := send(tubes, siteA, 2)
	e.OccurredAt = &past
	mustRecord(t, l, e)

	movements, err := l.Movements(ctx, ledger.Filter{EquipmentID: tubes})
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Equal(t, past, movements[0].OccurredAt)
}

func TestRecord_InputErrors(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		entry ledger.Entry
		want  error
	}{
		{"zero quantity", entry(ledger.KindLoss, tubes, 0), ledger.ErrInvalidQuantity},
		{"negative quantity", entry(ledger.KindLoss, tubes, -1), ledger.ErrInvalidQuantity},
		{"quantity above maximum", entry(ledger.KindLoss, tubes, ledger.MaxQuantity+1), ledger.ErrInvalidQuantity},
		{"unknown kind", entry("transfer", tubes, 1), ledger.ErrInvalidKind},
		{"send without site", entry(ledger.KindSend, tubes, 1), ledger.ErrSiteRequired},
		{"return without site", entry(ledger.KindReturn, tubes, 1), ledger.ErrSiteRequired},
		{"unknown equipment", entry(ledger.KindLoss, 999, 1), ledger.ErrEquipmentNotFound},
		{"unknown site", send(tubes, 999, 1), ledger.ErrSiteNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := l.Record(ctx, tt.entry)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	movements, err := l.Movements(ctx, ledger.Filter{})
	require.NoError(t, err)
	assert.Empty(t, movements)
}

func TestRecord_DuplicateIdempotencyKey(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	e := send(tubes, siteA, 1)
	e.IdempotencyKey = "form-42"
	mustRecord(t, l, e)

	_, err := l.Record(ctx, e)
	assert.ErrorIs(t, err, ledger.ErrDuplicateIdempotencyKey)

	atA, err := l.SentToSite(ctx, tubes, siteA)
	require.NoError(t, err)
	assert.Equal(t, 1, atA)
}

func TestRecord_ConcurrentSendsNeverOverdraw(t *testing.T) {
	// GIVEN: 5 planks available
	// WHEN: 20 goroutines each try to send 1
	// THEN: exactly 5 succeed
	l, mem := newTestLedger(t)
	ctx := context.Background()
	mem.OnTx = func() { time.Sleep(time.Millisecond) }

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.Record(ctx, send(planks, siteA, 1)); err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, accepted)
	available, err := l.Available(ctx, planks)
	require.NoError(t, err)
	assert.Equal(t, 0, available)
}

// =============================================================================
// BATCH TESTS
// =============================================================================

func TestRecordBatch_PartialFailure(t *testing.T) {
	// GIVEN: 100 tubes, 40 clamps, 5 planks
	// WHEN: a batch sends 10 tubes, 50 clamps and 5 planks to A
	// THEN: tubes and planks succeed, clamps fail with a reason
	l, _ := newTestLedger(t)
	ctx := context.Background()

	result, err := l.RecordBatch(ctx, ledger.Batch{
		Kind:        ledger.KindSend,
		SiteID:      ledger.SiteRef(siteA),
		Responsible: "Carla",
		Items: []ledger.BatchItem{
			{EquipmentID: tubes, Quantity: 10},
			{EquipmentID: clamps, Quantity: 50},
			{EquipmentID: planks, Quantity: 5},
		},
	})
	require.NoError(t, err)

	require.Len(t, result.Succeeded, 2)
	assert.Equal(t, tubes, result.Succeeded[0].EquipmentID)
	assert.Equal(t, planks, result.Succeeded[1].EquipmentID)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, clamps, result.Failed[0].EquipmentID)
	assert.Contains(t, result.Failed[0].Reason, "requested 50, available 40")
	assert.NotEmpty(t, result.ReferenceID)

	movements, err := l.Movements(ctx, ledger.Filter{SiteID: siteA})
	require.NoError(t, err)
	require.Len(t, movements, 2)
	for _, m := range movements {
		assert.Equal(t, result.ReferenceID, m.ReferenceID)
		assert.Equal(t, "Carla", m.Responsible)
		assert.Equal(t, now, m.OccurredAt)
	}
}

func TestRecordBatch_UnknownEquipmentIsReportedNotFatal(t *testing.T) {
	l, _ := newTestLedger(t)

	result, err := l.RecordBatch(context.Background(), ledger.Batch{
		Kind:  ledger.KindMaintenance,
		Items: []ledger.BatchItem{{EquipmentID: 999, Quantity: 1}, {EquipmentID: tubes, Quantity: 1}},
	})
	require.NoError(t, err)

	assert.Len(t, result.Succeeded, 1)
	require.Len(t, result.Failed, 1)
	assert.ErrorIs(t, result.Failed[0].Err, ledger.ErrEquipmentNotFound)
}

func TestRecordBatch_WholeBatchRefused(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	_, err := l.RecordBatch(ctx, ledger.Batch{
		Kind:  ledger.KindSend,
		Items: []ledger.BatchItem{{EquipmentID: tubes, Quantity: 1}},
	})
	assert.ErrorIs(t, err, ledger.ErrSiteRequired)

	_, err = l.RecordBatch(ctx, ledger.Batch{Kind: ledger.KindLoss})
	assert.ErrorIs(t, err, ledger.ErrEmptyBatch)

	movements, err := l.Movements(ctx, ledger.Filter{})
	require.NoError(t, err)
	assert.Empty(t, movements)
}

// =============================================================================
// QUERY TESTS
// =============================================================================

func TestSiteOverview_ExcludesReturnedEquipment(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	mustRecord(t, l, send(tubes, siteA, 12))
	mustRecord(t, l, send(clamps, siteA, 3))
	ret := send(clamps, siteA, 3)
	ret.Kind = ledger.KindReturn
	mustRecord(t, l, ret)
	mustRecord(t, l, send(planks, siteB, 2))

	overview, err := l.SiteOverview(ctx, siteA)
	require.NoError(t, err)

	assert.Equal(t, []ledger.SiteHolding{
		{EquipmentID: tubes, Description: "TUBE 3M", Quantity: 12},
	}, overview)
}

func TestMovements_NewestFirstAndFiltered(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	day := func(d int) *time.Time {
		ts := time.Date(2025, time.May, d, 8, 0, 0, 0, time.UTC)
		return &ts
	}
	e1 := send(tubes, siteA, 1)
	e1.OccurredAt = day(3)
	e2 := entry(ledger.KindLoss, tubes, 1)
	e2.OccurredAt = day(1)
	e3 := send(clamps, siteB, 1)
	e3.OccurredAt = day(5)
	mustRecord(t, l, e1)
	mustRecord(t, l, e2)
	mustRecord(t, l, e3)

	all, err := l.Movements(ctx, ledger.Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, *day(5), all[0].OccurredAt)
	assert.Equal(t, *day(3), all[1].OccurredAt)
	assert.Equal(t, *day(1), all[2].OccurredAt)

	sends, err := l.Movements(ctx, ledger.Filter{Kind: ledger.KindSend})
	require.NoError(t, err)
	assert.Len(t, sends, 2)

	ranged, err := l.Movements(ctx, ledger.Filter{From: *day(2), To: *day(4)})
	require.NoError(t, err)
	require.Len(t, ranged, 1)
	assert.Equal(t, tubes, ranged[0].EquipmentID)
	assert.Equal(t, "Harbour Tower", ranged[0].SiteName)
}

func TestAudit_ReportsOverCommittedEquipment(t *testing.T) {
	l, _ := newTestLedger(t)
	ctx := context.Background()

	mustRecord(t, l, send(planks, siteA, 5))
	mustRecord(t, l, entry(ledger.KindLoss, planks, 2))
	mustRecord(t, l, send(tubes, siteA, 5))

	anomalies, err := l.Audit(ctx, []ledger.EquipmentID{tubes, clamps, planks})
	require.NoError(t, err)

	require.Len(t, anomalies, 1)
	assert.Equal(t, planks, anomalies[0].Position.EquipmentID)
	assert.Equal(t, []string{"outstanding 7 exceeds owned 5"}, anomalies[0].Problems)
}
