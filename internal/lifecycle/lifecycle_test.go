package lifecycle

import (
	"errors"
	"testing"
	"time"

	"github.com/marcus/cadence/internal/db"
	"github.com/marcus/cadence/internal/models"
)

func newTestManager(t *testing.T) (*Manager, *db.DB, *models.Scope) {
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
	return New(database), database, scope
}

func datedIteration(t *testing.T, database *db.DB, scopeID string, start, end time.Time) *models.Iteration {
	t.Helper()
	it := &models.Iteration{ScopeID: scopeID, StartAt: &start, EndAt: &end, Timezone: "UTC"}
	if err := database.CreateIteration(it); err != nil {
		t.Fatal(err)
	}
	return it
}

func TestArchiveIterationGate(t *testing.T) {
	m, database, scope := newTestManager(t)

	start := time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 8, 16, 23, 59, 59, 0, time.UTC)
	it := datedIteration(t, database, scope.ID, start, end)

	// Still current: the gate rejects.
	during := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)
	var notAllowed *ArchiveNotAllowedError
	err := m.ArchiveIteration(it.ID, during)
	if !errors.As(err, &notAllowed) {
		t.Fatalf("err = %v, want ArchiveNotAllowedError", err)
	}
	if notAllowed.Status != "current" {
		t.Errorf("Status = %q, want current", notAllowed.Status)
	}

	// After the end date the same call succeeds.
	after := end.Add(time.Hour)
	if err := m.ArchiveIteration(it.ID, after); err != nil {
		t.Fatalf("ArchiveIteration failed: %v", err)
	}
	got, err := database.GetIteration(it.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ArchivedAt == nil {
		t.Error("ArchivedAt not set")
	}

	if err := m.UnarchiveIteration(it.ID); err != nil {
		t.Fatalf("UnarchiveIteration failed: %v", err)
	}
	got, err = database.GetIteration(it.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ArchivedAt != nil {
		t.Error("ArchivedAt not cleared")
	}
}

func TestArchiveDraftIterationNeverAllowed(t *testing.T) {
	m, database, scope := newTestManager(t)

	it := &models.Iteration{ScopeID: scope.ID}
	if err := database.CreateIteration(it); err != nil {
		t.Fatal(err)
	}

	var notAllowed *ArchiveNotAllowedError
	err := m.ArchiveIteration(it.ID, time.Now().UTC())
	if !errors.As(err, &notAllowed) {
		t.Fatalf("err = %v, want ArchiveNotAllowedError", err)
	}
	if notAllowed.Status != "draft" {
		t.Errorf("Status = %q, want draft", notAllowed.Status)
	}
}

func TestArchiveIterationRemovesFavorites(t *testing.T) {
	m, database, scope := newTestManager(t)

	start := time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 8, 16, 23, 59, 59, 0, time.UTC)
	it := datedIteration(t, database, scope.ID, start, end)

	fav := &models.Favorite{EntityType: "iteration", EntityID: it.ID, ScopeID: scope.ID, UserID: "ana"}
	if err := database.AddFavorite(fav); err != nil {
		t.Fatal(err)
	}

	if err := m.ArchiveIteration(it.ID, end.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}
	favs, err := database.ListFavorites(scope.ID, "ana")
	if err != nil {
		t.Fatal(err)
	}
	if len(favs) != 0 {
		t.Errorf("favorites survived the archive: %d", len(favs))
	}
}

func TestArchiveEpicGate(t *testing.T) {
	m, database, scope := newTestManager(t)

	epic := &models.Epic{ScopeID: scope.ID, Title: "billing", Status: models.EpicStarted}
	if err := database.CreateEpic(epic); err != nil {
		t.Fatal(err)
	}

	now := time.Now().UTC()
	var notAllowed *ArchiveNotAllowedError
	if err := m.ArchiveEpic(epic.ID, now); !errors.As(err, &notAllowed) {
		t.Fatalf("started epic: err = %v, want ArchiveNotAllowedError", err)
	}

	// Cancelled passes the gate, same as completed.
	if err := database.SetEpicStatus(epic.ID, models.EpicCancelled); err != nil {
		t.Fatal(err)
	}
	if err := m.ArchiveEpic(epic.ID, now); err != nil {
		t.Fatalf("ArchiveEpic failed: %v", err)
	}

	if err := m.UnarchiveEpic(epic.ID); err != nil {
		t.Fatalf("UnarchiveEpic failed: %v", err)
	}
	got, err := database.GetEpic(epic.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.ArchivedAt != nil {
		t.Error("ArchivedAt not cleared")
	}
}

func TestArchiveMissingEntities(t *testing.T) {
	m, _, _ := newTestManager(t)

	if err := m.ArchiveIteration("it-nope", time.Now().UTC()); !errors.Is(err, db.ErrNotFound) {
		t.Errorf("iteration: err = %v, want ErrNotFound", err)
	}
	if err := m.ArchiveEpic("ep-nope", time.Now().UTC()); !errors.Is(err, db.ErrNotFound) {
		t.Errorf("epic: err = %v, want ErrNotFound", err)
	}
}
