package sqlite

import (
	"context"
	"math"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/scaffold-engine/inventory"
	"github.com/warp/scaffold-engine/ledger"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var created = time.Date(2025, time.April, 1, 8, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func seedEquipment(t *testing.T, s *Store, description string, owned int) ledger.EquipmentID {
	t.Helper()
	e := &inventory.Equipment{
		Description:   description,
		QuantityOwned: owned,
		Status:        inventory.EquipmentAvailable,
		CreatedAt:     created,
	}
	require.NoError(t, s.CreateEquipment(context.Background(), e))
	return e.ID
}

func seedSite(t *testing.T, s *Store, name string) ledger.SiteID {
	t.Helper()
	site := &inventory.Site{Name: name, Status: inventory.SiteActive, CreatedAt: created}
	require.NoError(t, s.CreateSite(context.Background(), site))
	return site.ID
}

func appendMovement(t *testing.T, s *Store, m ledger.Movement) ledger.MovementID {
	t.Helper()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = created
	}
	id, err := s.Append(context.Background(), m)
	require.NoError(t, err)
	return id
}

// =============================================================================
// SCHEMA
// =============================================================================

func TestNew_AppliesMigrations(t *testing.T) {
	s := newTestStore(t)

	version, dirty, err := s.SchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)

	// Applying again is a no-op.
	assert.NoError(t, s.MigrateUp())
}

func TestReset_ClearsEverything(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	eq := seedEquipment(t, s, "TUBE", 10)
	appendMovement(t, s, ledger.Movement{Kind: ledger.KindLoss, EquipmentID: eq, Quantity: 1, OccurredAt: created})

	require.NoError(t, s.Reset(ctx))

	equipment, err := s.ListEquipment(ctx, inventory.EquipmentFilter{})
	require.NoError(t, err)
	assert.Empty(t, equipment)
	movements, err := s.List(ctx, ledger.Filter{})
	require.NoError(t, err)
	assert.Empty(t, movements)
}

func TestMovements_AreAppendOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	eq := seedEquipment(t, s, "TUBE", 10)
	id := appendMovement(t, s, ledger.Movement{Kind: ledger.KindLoss, EquipmentID: eq, Quantity: 1, OccurredAt: created})

	_, err := s.db.ExecContext(ctx, "UPDATE movements SET quantity = 5 WHERE id = ?", id)
	assert.ErrorContains(t, err, "append-only")

	_, err = s.db.ExecContext(ctx, "DELETE FROM movements WHERE id = ?", id)
	assert.ErrorContains(t, err, "append-only")
}

// =============================================================================
// ENTITIES
// =============================================================================

func TestEquipment_CRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id := seedEquipment(t, s, "TUBE 3M", 100)

	got, err := s.GetEquipment(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "TUBE 3M", got.Description)
	assert.Equal(t, 100, got.QuantityOwned)
	assert.True(t, created.Equal(got.CreatedAt))

	got.QuantityOwned = 120
	got.Notes = "new batch"
	require.NoError(t, s.UpdateEquipment(ctx, *got))

	got, err = s.GetEquipment(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 120, got.QuantityOwned)
	assert.Equal(t, "new batch", got.Notes)

	require.NoError(t, s.DeleteEquipment(ctx, id))
	got, err = s.GetEquipment(ctx, id)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestEquipment_UniqueDescription(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seedEquipment(t, s, "CLAMP", 10)
	other := seedEquipment(t, s, "PLANK", 10)

	err := s.CreateEquipment(ctx, &inventory.Equipment{Description: "CLAMP", Status: inventory.EquipmentAvailable, CreatedAt: created})
	assert.ErrorIs(t, err, inventory.ErrDuplicateDescription)

	err = s.UpdateEquipment(ctx, inventory.Equipment{ID: other, Description: "CLAMP", Status: inventory.EquipmentAvailable})
	assert.ErrorIs(t, err, inventory.ErrDuplicateDescription)

	taken, err := s.DescriptionTaken(ctx, "PLANK", other)
	require.NoError(t, err)
	assert.False(t, taken, "an equipment does not clash with itself")
}

func TestDelete_ReferencedEntitiesAreProtected(t *testing.T) {
	// GIVEN: a client with a site that received equipment
	// WHEN: deleting the client, the site or the equipment
	// THEN: every delete fails with InUseError and nothing is removed
	s := newTestStore(t)
	ctx := context.Background()

	client := &inventory.Client{Name: "Acme", CreatedAt: created}
	require.NoError(t, s.CreateClient(ctx, client))
	site := &inventory.Site{Name: "Tower", ClientID: &client.ID, Status: inventory.SiteActive, CreatedAt: created}
	require.NoError(t, s.CreateSite(ctx, site))
	eq := seedEquipment(t, s, "TUBE", 10)
	appendMovement(t, s, ledger.Movement{
		Kind: ledger.KindSend, EquipmentID: eq, SiteID: ledger.SiteRef(site.ID), Quantity: 2, OccurredAt: created,
	})

	var inUse *inventory.InUseError
	assert.ErrorAs(t, s.DeleteClient(ctx, client.ID), &inUse)
	assert.ErrorIs(t, s.DeleteSite(ctx, site.ID), inventory.ErrConstraintViolation)
	assert.ErrorIs(t, s.DeleteEquipment(ctx, eq), inventory.ErrConstraintViolation)

	got, err := s.GetSite(ctx, site.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Acme", got.ClientName)
}

func TestDelete_Missing(t *testing.T) {
	s := newTestStore(t)

	assert.ErrorIs(t, s.DeleteClient(context.Background(), 42), inventory.ErrNotFound)
}

func TestSites_DatesAndFilter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	start := time.Date(2025, time.January, 6, 0, 0, 0, 0, time.UTC)
	done := &inventory.Site{Name: "Old Mill", Status: inventory.SiteCompleted, StartDate: &start, CreatedAt: created}
	require.NoError(t, s.CreateSite(ctx, done))
	seedSite(t, s, "Bridge")

	active, err := s.ListSites(ctx, inventory.SiteFilter{Status: inventory.SiteActive})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "Bridge", active[0].Name)

	got, err := s.GetSite(ctx, done.ID)
	require.NoError(t, err)
	require.NotNil(t, got.StartDate)
	assert.True(t, start.Equal(*got.StartDate))
	assert.Nil(t, got.EndDate)
	assert.Nil(t, got.ClientID)
}

func TestChecklists_ItemsAndStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	site := seedSite(t, s, "Tower")
	items := []inventory.ChecklistItem{
		{Text: "Base level and stable", State: inventory.ItemChecked},
		{Text: "Guardrail installed", State: inventory.ItemUnchecked},
		{Text: "Crane clearance", State: inventory.ItemExtra},
	}
	c := &inventory.Checklist{
		Kind: inventory.ChecklistAssembly, SiteID: site, Responsible: "Rui",
		Items: items, Status: inventory.ChecklistPending, CreatedAt: created,
	}
	require.NoError(t, s.CreateChecklist(ctx, c))

	require.NoError(t, s.SetChecklistStatus(ctx, c.ID, inventory.ChecklistApproved))

	got, err := s.GetChecklist(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, items, got.Items)
	assert.Equal(t, inventory.ChecklistApproved, got.Status)
	assert.Equal(t, "Tower", got.SiteName)

	list, err := s.ListChecklists(ctx, inventory.ChecklistFilter{Status: inventory.ChecklistPending})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestMaintenance_CostRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	eq := seedEquipment(t, s, "HOIST", 2)
	cost := decimal.RequireFromString("1250.40")

	withCost := &inventory.MaintenanceRecord{
		EquipmentID: eq, Kind: "corrective", Description: "Replace cable",
		Cost: &cost, Status: inventory.MaintenancePending, CreatedAt: created,
	}
	require.NoError(t, s.CreateMaintenance(ctx, withCost))
	noCost := &inventory.MaintenanceRecord{
		EquipmentID: eq, Description: "Visual check",
		Status: inventory.MaintenanceCompleted, CreatedAt: created.Add(time.Hour),
	}
	require.NoError(t, s.CreateMaintenance(ctx, noCost))

	records, err := s.ListMaintenance(ctx, inventory.MaintenanceFilter{EquipmentID: eq})
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "Visual check", records[0].Description)
	assert.Nil(t, records[0].Cost)
	require.NotNil(t, records[1].Cost)
	assert.True(t, cost.Equal(*records[1].Cost))
	assert.Equal(t, "HOIST", records[1].EquipmentDescription)
}

// =============================================================================
// MOVEMENT LOG
// =============================================================================

func TestMovements_RoundTripAndOrdering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	eq := seedEquipment(t, s, "TUBE", 50)
	site := seedSite(t, s, "Tower")

	day := func(d int) time.Time { return time.Date(2025, time.May, d, 10, 0, 0, 0, time.UTC) }
	appendMovement(t, s, ledger.Movement{
		Kind: ledger.KindSend, EquipmentID: eq, SiteID: ledger.SiteRef(site), Quantity: 5,
		OccurredAt: day(2), Responsible: "Ana", ReferenceID: "batch-1", IdempotencyKey: "k-1",
	})
	appendMovement(t, s, ledger.Movement{Kind: ledger.KindMaintenance, EquipmentID: eq, Quantity: 1, OccurredAt: day(4)})
	appendMovement(t, s, ledger.Movement{Kind: ledger.KindLoss, EquipmentID: eq, Quantity: 1, OccurredAt: day(1)})

	log, err := s.Movements(ctx, eq)
	require.NoError(t, err)
	require.Len(t, log, 3)
	assert.Equal(t, ledger.KindLoss, log[0].Kind, "equipment log is oldest first")

	list, err := s.List(ctx, ledger.Filter{})
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, ledger.KindMaintenance, list[0].Kind, "listing is newest first")

	send := list[1]
	assert.True(t, day(2).Equal(send.OccurredAt))
	require.NotNil(t, send.SiteID)
	assert.Equal(t, site, *send.SiteID)
	assert.Equal(t, "Tower", send.SiteName)
	assert.Equal(t, "TUBE", send.EquipmentDescription)
	assert.Equal(t, "batch-1", send.ReferenceID)
	assert.Equal(t, "Ana", send.Responsible)

	ranged, err := s.List(ctx, ledger.Filter{From: day(2), To: day(4)})
	require.NoError(t, err)
	require.Len(t, ranged, 1)
	assert.Equal(t, ledger.KindSend, ranged[0].Kind)

	limited, err := s.List(ctx, ledger.Filter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	exists, err := s.Exists(ctx, "k-1")
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = s.Append(ctx, ledger.Movement{
		Kind: ledger.KindLoss, EquipmentID: eq, Quantity: 1, OccurredAt: day(5), IdempotencyKey: "k-1", CreatedAt: created,
	})
	assert.ErrorIs(t, err, ledger.ErrDuplicateIdempotencyKey)
}

func TestQuantityOwned_UnknownEquipment(t *testing.T) {
	s := newTestStore(t)

	_, err := s.QuantityOwned(context.Background(), 99)
	assert.ErrorIs(t, err, ledger.ErrEquipmentNotFound)
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	eq := seedEquipment(t, s, "TUBE", 10)

	err := s.WithTx(ctx, func(tx ledger.Store) error {
		_, err := tx.Append(ctx, ledger.Movement{
			Kind: ledger.KindLoss, EquipmentID: eq, Quantity: 1, OccurredAt: created, CreatedAt: created,
		})
		require.NoError(t, err)
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)

	log, err := s.Movements(ctx, eq)
	require.NoError(t, err)
	assert.Empty(t, log)
}

func TestLedger_ConcurrentSendsNeverOverdraw(t *testing.T) {
	// GIVEN: a file database with 10 units
	// WHEN: 30 goroutines each record a send of 1
	// THEN: exactly 10 are accepted and available is 0
	s, err := New(filepath.Join(t.TempDir(), "race.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	ctx := context.Background()

	eq := seedEquipment(t, s, "TUBE", 10)
	site := seedSite(t, s, "Tower")
	l := ledger.New(s)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Record(ctx, ledger.Entry{Proposal: ledger.Proposal{
				Kind: ledger.KindSend, EquipmentID: eq, SiteID: ledger.SiteRef(site), Quantity: 1,
			}})
			if err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, accepted)
	available, err := l.Available(ctx, eq)
	require.NoError(t, err)
	assert.Equal(t, 0, available)
	atSite, err := l.SentToSite(ctx, eq, site)
	require.NoError(t, err)
	assert.Equal(t, 10, atSite)
}

// =============================================================================
// LEDGER PROPERTIES ON SQLITE
// =============================================================================

func movementEntry(kind ledger.Kind, eq ledger.EquipmentID, site ledger.SiteID, qty int) ledger.Entry {
	e := ledger.Entry{Proposal: ledger.Proposal{Kind: kind, EquipmentID: eq, Quantity: qty}}
	if site != 0 {
		e.SiteID = ledger.SiteRef(site)
	}
	return e
}

func TestLedger_SendFourReturnOne(t *testing.T) {
	// GIVEN: 10 units owned
	// WHEN: send 4 to the site, then return 1
	// THEN: 6 available and 4 at site, then 7 and 3
	s := newTestStore(t)
	ctx := context.Background()
	eq := seedEquipment(t, s, "BASE PLATE", 10)
	site := seedSite(t, s, "Tower")
	l := ledger.New(s)

	_, err := l.Record(ctx, movementEntry(ledger.KindSend, eq, site, 4))
	require.NoError(t, err)
	p, err := l.Position(ctx, eq)
	require.NoError(t, err)
	assert.Equal(t, 6, p.Available())
	assert.Equal(t, 4, p.SentToSite(site))

	_, err = l.Record(ctx, movementEntry(ledger.KindReturn, eq, site, 1))
	require.NoError(t, err)
	p, err = l.Position(ctx, eq)
	require.NoError(t, err)
	assert.Equal(t, 7, p.Available())
	assert.Equal(t, 3, p.SentToSite(site))
}

func TestLedger_FullReturnAndRepeatableQueries(t *testing.T) {
	// GIVEN: 50 units, 5 already at the site
	// WHEN: send 20 more and return 20
	// THEN: available and at-site match the values before the send
	// AND: repeated queries with no write in between agree
	s := newTestStore(t)
	ctx := context.Background()
	eq := seedEquipment(t, s, "TUBE", 50)
	site := seedSite(t, s, "Tower")
	l := ledger.New(s)
	_, err := l.Record(ctx, movementEntry(ledger.KindSend, eq, site, 5))
	require.NoError(t, err)

	before, err := l.Position(ctx, eq)
	require.NoError(t, err)

	_, err = l.Record(ctx, movementEntry(ledger.KindSend, eq, site, 20))
	require.NoError(t, err)
	_, err = l.Record(ctx, movementEntry(ledger.KindReturn, eq, site, 20))
	require.NoError(t, err)

	after, err := l.Position(ctx, eq)
	require.NoError(t, err)
	assert.Equal(t, before.Available(), after.Available())
	assert.Equal(t, before.SentToSite(site), after.SentToSite(site))

	first, err := l.Available(ctx, eq)
	require.NoError(t, err)
	second, err := l.Available(ctx, eq)
	require.NoError(t, err)
	assert.Equal(t, 45, first)
	assert.Equal(t, first, second)
}

func TestLedger_ReturnMaintenanceReason(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	eq := seedEquipment(t, s, "CLAMP", 10)
	l := ledger.New(s)
	_, err := l.Record(ctx, movementEntry(ledger.KindMaintenance, eq, 0, 2))
	require.NoError(t, err)

	err = l.Validate(ctx, ledger.Proposal{Kind: ledger.KindReturnMaintenance, EquipmentID: eq, Quantity: 3})

	re, ok := ledger.Rejection(err)
	require.True(t, ok, "expected rejection, got %v", err)
	assert.Equal(t, 2, re.Limit)
	assert.Equal(t, "insufficient quantity in maintenance: requested 3, in maintenance 2", re.Reason)
}

func TestLedger_OwnedBoundHoldsOverMixedLog(t *testing.T) {
	// GIVEN: 10 units and a run of mixed proposals against two sites
	// THEN: available + maintenance_net + loss_net <= owned after every step
	s := newTestStore(t)
	ctx := context.Background()
	eq := seedEquipment(t, s, "PLANK", 10)
	sites := []ledger.SiteID{seedSite(t, s, "North"), seedSite(t, s, "South")}
	l := ledger.New(s)
	kinds := []ledger.Kind{
		ledger.KindSend, ledger.KindMaintenance, ledger.KindReturn,
		ledger.KindLoss, ledger.KindReturnMaintenance, ledger.KindReturnLoss,
	}

	for i := 0; i < 90; i++ {
		e := movementEntry(kinds[i%len(kinds)], eq, sites[(i/len(kinds))%len(sites)], 1+(i*5)%4)
		if _, err := l.Record(ctx, e); err != nil {
			require.ErrorIs(t, err, ledger.ErrRejected, "step %d", i)
		}

		p, err := l.Position(ctx, eq)
		require.NoError(t, err)
		require.LessOrEqual(t, p.Available()+p.MaintenanceNet+p.LossNet, p.Owned, "step %d", i)
		require.GreaterOrEqual(t, p.MaintenanceNet, 0)
		require.GreaterOrEqual(t, p.LossNet, 0)
		require.GreaterOrEqual(t, p.SentNet, 0)
	}
}

func TestLedger_OversizedQuantities(t *testing.T) {
	// GIVEN: 10 units owned
	// WHEN: recording a loss of math.MaxInt
	// THEN: refused before reaching the table
	// AND: the table itself refuses a raw insert above the maximum
	s := newTestStore(t)
	ctx := context.Background()
	eq := seedEquipment(t, s, "LADDER", 10)
	site := seedSite(t, s, "Tower")
	l := ledger.New(s)

	_, err := l.Record(ctx, movementEntry(ledger.KindLoss, eq, 0, math.MaxInt))
	require.ErrorIs(t, err, ledger.ErrInvalidQuantity)

	_, err = s.Append(ctx, ledger.Movement{
		Kind: ledger.KindLoss, EquipmentID: eq, Quantity: ledger.MaxQuantity + 1,
		OccurredAt: created, CreatedAt: created,
	})
	assert.Error(t, err)

	for range 2 {
		_, err = l.Record(ctx, movementEntry(ledger.KindLoss, eq, 0, ledger.MaxQuantity))
		require.NoError(t, err)
	}
	available, err := l.Available(ctx, eq)
	require.NoError(t, err)
	assert.Equal(t, 0, available)

	_, err = l.Record(ctx, movementEntry(ledger.KindSend, eq, site, 12))
	assert.ErrorIs(t, err, ledger.ErrRejected)
}
