// Package lifecycle enforces the archive gate: only a finished iteration (or
// a completed/cancelled epic) may be archived. Archiving also removes any
// bookmarks pointing at the entity; unarchiving is unconditional.
package lifecycle

import (
	"fmt"
	"time"

	"github.com/marcus/cadence/internal/db"
	"github.com/marcus/cadence/internal/models"
)

// ArchiveNotAllowedError signals that the entity's status does not permit
// archiving. An iteration with no dates (draft) can never pass the gate.
type ArchiveNotAllowedError struct {
	EntityType string
	EntityID   string
	Status     string
}

func (e *ArchiveNotAllowedError) Error() string {
	return fmt.Sprintf("cannot archive %s %s with status %s", e.EntityType, e.EntityID, e.Status)
}

// Manager applies archive rules against the store.
type Manager struct {
	db *db.DB
}

// New returns a Manager over the given store.
func New(database *db.DB) *Manager {
	return &Manager{db: database}
}

// ArchiveIteration archives the iteration if its derived status is completed
// as of now. On success any favorites referencing it are removed.
func (m *Manager) ArchiveIteration(iterationID string, now time.Time) error {
	it, err := m.db.GetIteration(iterationID)
	if err != nil {
		return err
	}

	status := models.ResolveStatus(it.StartAt, it.EndAt, now)
	if status != models.StatusCompleted {
		return &ArchiveNotAllowedError{
			EntityType: "iteration",
			EntityID:   it.ID,
			Status:     string(status),
		}
	}

	if err := m.db.SetIterationArchived(it.ID, now); err != nil {
		return err
	}
	return m.db.RemoveFavoritesByEntity("iteration", it.ID, it.ScopeID)
}

// UnarchiveIteration clears the archive mark. No status re-check: an archived
// iteration can always be brought back.
func (m *Manager) UnarchiveIteration(iterationID string) error {
	return m.db.ClearIterationArchived(iterationID)
}

// ArchiveEpic archives the epic if its manually-set status is completed or
// cancelled. Same gate pattern as iterations, different status source.
func (m *Manager) ArchiveEpic(epicID string, now time.Time) error {
	epic, err := m.db.GetEpic(epicID)
	if err != nil {
		return err
	}

	if epic.Status != models.EpicCompleted && epic.Status != models.EpicCancelled {
		return &ArchiveNotAllowedError{
			EntityType: "epic",
			EntityID:   epic.ID,
			Status:     string(epic.Status),
		}
	}

	if err := m.db.SetEpicArchived(epic.ID, now); err != nil {
		return err
	}
	return m.db.RemoveFavoritesByEntity("epic", epic.ID, epic.ScopeID)
}

// UnarchiveEpic clears the archive mark unconditionally.
func (m *Manager) UnarchiveEpic(epicID string) error {
	return m.db.ClearEpicArchived(epicID)
}
