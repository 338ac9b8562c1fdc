package transfer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/marcus/cadence/internal/db"
	"github.com/marcus/cadence/internal/models"
	"github.com/marcus/cadence/internal/snapshot"
)

type fixture struct {
	db     *db.DB
	scope  *models.Scope
	source *models.Iteration
	dest   *models.Iteration
}

// newFixture sets up a finished source iteration and an open destination.
// now in the tests is 2026-08-20, between the two.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	database, err := db.Initialize(t.TempDir())
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	scope := &models.Scope{Name: "eng", Timezone: "UTC"}
	if err := database.CreateScope(scope); err != nil {
		t.Fatal(err)
	}

	srcStart := time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC)
	srcEnd := time.Date(2026, 8, 16, 23, 59, 59, 0, time.UTC)
	source := &models.Iteration{ScopeID: scope.ID, StartAt: &srcStart, EndAt: &srcEnd, Timezone: "UTC"}
	if err := database.CreateIteration(source); err != nil {
		t.Fatal(err)
	}

	dstStart := time.Date(2026, 8, 17, 0, 0, 0, 0, time.UTC)
	dstEnd := time.Date(2026, 8, 30, 23, 59, 59, 0, time.UTC)
	dest := &models.Iteration{ScopeID: scope.ID, StartAt: &dstStart, EndAt: &dstEnd, Timezone: "UTC"}
	if err := database.CreateIteration(dest); err != nil {
		t.Fatal(err)
	}

	return &fixture{db: database, scope: scope, source: source, dest: dest}
}

func (f *fixture) addItem(t *testing.T, group models.StateGroup) *models.Item {
	t.Helper()
	item := &models.Item{ScopeID: f.scope.ID, Title: "work", StateGroup: group}
	if err := f.db.CreateItem(item); err != nil {
		t.Fatal(err)
	}
	if _, err := f.db.BulkEnsureMemberships(f.source.ID, []string{item.ID}); err != nil {
		t.Fatal(err)
	}
	return item
}

func (f *fixture) request() Request {
	return Request{
		ScopeID:       f.scope.ID,
		SourceID:      f.source.ID,
		DestinationID: f.dest.ID,
		ActorID:       "ana",
	}
}

var testNow = time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)

func TestTransferMovesUnfinished(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 6; i++ {
		f.addItem(t, models.GroupCompleted)
	}
	var open []*models.Item
	for i := 0; i < 4; i++ {
		open = append(open, f.addItem(t, models.GroupStarted))
	}

	o := New(f.db, nil)
	res, err := o.Transfer(context.Background(), f.request(), testNow)
	if err != nil {
		t.Fatalf("Transfer failed: %v", err)
	}

	if res.Moved != 4 {
		t.Errorf("Moved = %d, want 4", res.Moved)
	}
	if res.Snapshot.TotalIssues != 10 || res.Snapshot.CompletedIssues != 6 {
		t.Errorf("snapshot counts = %d total / %d completed, want 10 / 6", res.Snapshot.TotalIssues, res.Snapshot.CompletedIssues)
	}

	// The unfinished items now live in the destination; completed ones stay.
	destItems, err := f.db.FindItemsByMembership(f.dest.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(destItems) != 4 {
		t.Errorf("destination items = %d, want 4", len(destItems))
	}
	srcItems, err := f.db.FindItemsByMembership(f.source.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(srcItems) != 6 {
		t.Errorf("source items after transfer = %d, want 6", len(srcItems))
	}

	// Membership rows moved in place, one per open item.
	for _, item := range open {
		ms, err := f.db.MembershipsForItem(item.ID)
		if err != nil {
			t.Fatal(err)
		}
		if len(ms) != 1 || ms[0].IterationID != f.dest.ID {
			t.Errorf("item %s memberships = %+v", item.ID, ms)
		}
	}

	// The snapshot is frozen onto the source.
	src, err := f.db.GetIteration(f.source.ID)
	if err != nil {
		t.Fatal(err)
	}
	if _, frozen, err := snapshot.Unmarshal(src.ProgressSnapshot); err != nil || !frozen {
		t.Errorf("snapshot not frozen: ok=%v err=%v", frozen, err)
	}

	// Audit recorded one move per carried item.
	entries, err := f.db.GetAuditSince(testNow.Add(-time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 4 {
		t.Fatalf("audit entries = %d, want 4", len(entries))
	}
	if entries[0].EventType != "memberships.move" || entries[0].ActorID != "ana" {
		t.Errorf("audit entry = %+v", entries[0])
	}
}

func TestTransferSkipsIneligible(t *testing.T) {
	f := newFixture(t)
	f.addItem(t, models.GroupCancelled)

	draft := &models.Item{ScopeID: f.scope.ID, Title: "draft", StateGroup: models.GroupStarted, IsDraft: true}
	if err := f.db.CreateItem(draft); err != nil {
		t.Fatal(err)
	}
	if _, err := f.db.BulkEnsureMemberships(f.source.ID, []string{draft.ID}); err != nil {
		t.Fatal(err)
	}

	archived := f.addItem(t, models.GroupStarted)
	if err := f.db.SetItemArchived(archived.ID, testNow); err != nil {
		t.Fatal(err)
	}

	eligible := f.addItem(t, models.GroupBacklog)

	o := New(f.db, nil)
	res, err := o.Transfer(context.Background(), f.request(), testNow)
	if err != nil {
		t.Fatalf("Transfer failed: %v", err)
	}
	if res.Moved != 1 {
		t.Errorf("Moved = %d, want only the eligible backlog item", res.Moved)
	}
	destItems, err := f.db.FindItemsByMembership(f.dest.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(destItems) != 1 || destItems[0].ID != eligible.ID {
		t.Errorf("destination items = %+v", destItems)
	}
}

func TestTransferValidation(t *testing.T) {
	f := newFixture(t)
	f.addItem(t, models.GroupStarted)
	o := New(f.db, nil)

	// Before the source's end date the transfer is rejected.
	early := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)
	var notCompleted *SourceNotCompletedError
	if _, err := o.Transfer(context.Background(), f.request(), early); !errors.As(err, &notCompleted) {
		t.Errorf("early transfer: err = %v, want SourceNotCompletedError", err)
	}

	// After the destination's end date it is also rejected.
	late := time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC)
	var destClosed *DestinationClosedError
	if _, err := o.Transfer(context.Background(), f.request(), late); !errors.As(err, &destClosed) {
		t.Errorf("late transfer: err = %v, want DestinationClosedError", err)
	}

	// A scope mismatch reads as not found, not as a leak of the other scope.
	req := f.request()
	req.ScopeID = "sc-other"
	if _, err := o.Transfer(context.Background(), req, testNow); !errors.Is(err, db.ErrNotFound) {
		t.Errorf("scope mismatch: err = %v, want ErrNotFound", err)
	}

	// Failed validation mutates nothing.
	src, err := f.db.GetIteration(f.source.ID)
	if err != nil {
		t.Fatal(err)
	}
	if src.ProgressSnapshot != "" {
		t.Error("validation failure froze a snapshot")
	}
	destItems, err := f.db.FindItemsByMembership(f.dest.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(destItems) != 0 {
		t.Errorf("validation failure moved %d items", len(destItems))
	}
}

func TestTransferRetryReusesFrozenSnapshot(t *testing.T) {
	f := newFixture(t)
	f.addItem(t, models.GroupCompleted)
	f.addItem(t, models.GroupStarted)

	o := New(f.db, nil)
	first, err := o.Transfer(context.Background(), f.request(), testNow)
	if err != nil {
		t.Fatal(err)
	}
	if first.Snapshot.TotalIssues != 2 {
		t.Fatalf("first snapshot total = %d, want 2", first.Snapshot.TotalIssues)
	}

	// After the first run the started item has left the source. The retry
	// must report the frozen counts, not recount the shrunken set.
	second, err := o.Transfer(context.Background(), f.request(), testNow)
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if second.Moved != 0 {
		t.Errorf("retry moved %d items, want 0", second.Moved)
	}
	if second.Snapshot.TotalIssues != 2 || second.Snapshot.StartedIssues != 1 {
		t.Errorf("retry snapshot = %+v, want the frozen counts", second.Snapshot)
	}
}
