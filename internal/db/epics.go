package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/marcus/cadence/internal/models"
)

// CreateEpic inserts an epic with a manually-managed status.
func (db *DB) CreateEpic(epic *models.Epic) error {
	if epic.Status == "" {
		epic.Status = models.EpicBacklog
	}
	if !models.ValidEpicStatus(epic.Status) {
		return fmt.Errorf("invalid epic status %q", epic.Status)
	}

	id, err := generateEpicID()
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	epic.ID = id
	epic.CreatedAt = now
	epic.UpdatedAt = now

	_, err = db.conn.Exec(`
		INSERT INTO epics (id, scope_id, title, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, epic.ID, epic.ScopeID, epic.Title, string(epic.Status), epic.CreatedAt, epic.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert epic: %w", err)
	}
	return nil
}

// GetEpic returns a non-deleted epic by id.
func (db *DB) GetEpic(id string) (*models.Epic, error) {
	row := db.conn.QueryRow(`
		SELECT id, scope_id, title, status, archived_at, created_at, updated_at, deleted_at
		FROM epics WHERE id = ? AND deleted_at IS NULL
	`, id)

	var e models.Epic
	var status string
	var archived, deleted sql.NullTime
	err := row.Scan(&e.ID, &e.ScopeID, &e.Title, &status, &archived, &e.CreatedAt, &e.UpdatedAt, &deleted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("epic %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get epic: %w", err)
	}
	e.Status = models.EpicStatus(status)
	e.ArchivedAt = timePtr(archived)
	e.DeletedAt = timePtr(deleted)
	return &e, nil
}

// ListEpics returns a scope's non-deleted epics.
func (db *DB) ListEpics(scopeID string) ([]*models.Epic, error) {
	rows, err := db.conn.Query(`
		SELECT id, scope_id, title, status, archived_at, created_at, updated_at, deleted_at
		FROM epics WHERE scope_id = ? AND deleted_at IS NULL ORDER BY created_at
	`, scopeID)
	if err != nil {
		return nil, fmt.Errorf("list epics: %w", err)
	}
	defer rows.Close()

	var epics []*models.Epic
	for rows.Next() {
		var e models.Epic
		var status string
		var archived, deleted sql.NullTime
		if err := rows.Scan(&e.ID, &e.ScopeID, &e.Title, &status, &archived, &e.CreatedAt, &e.UpdatedAt, &deleted); err != nil {
			return nil, fmt.Errorf("scan epic: %w", err)
		}
		e.Status = models.EpicStatus(status)
		e.ArchivedAt = timePtr(archived)
		e.DeletedAt = timePtr(deleted)
		epics = append(epics, &e)
	}
	return epics, rows.Err()
}

// SetEpicStatus updates the epic's manual status.
func (db *DB) SetEpicStatus(id string, status models.EpicStatus) error {
	if !models.ValidEpicStatus(status) {
		return fmt.Errorf("invalid epic status %q", status)
	}
	res, err := db.conn.Exec(`
		UPDATE epics SET status = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL
	`, string(status), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set epic status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("epic %s: %w", id, ErrNotFound)
	}
	return nil
}

// SetEpicArchived stamps archived_at on an epic.
func (db *DB) SetEpicArchived(id string, at time.Time) error {
	res, err := db.conn.Exec(`
		UPDATE epics SET archived_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL
	`, at.UTC(), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("archive epic: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("epic %s: %w", id, ErrNotFound)
	}
	return nil
}

// ClearEpicArchived clears archived_at unconditionally.
func (db *DB) ClearEpicArchived(id string) error {
	res, err := db.conn.Exec(`
		UPDATE epics SET archived_at = NULL, updated_at = ? WHERE id = ? AND deleted_at IS NULL
	`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("unarchive epic: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("epic %s: %w", id, ErrNotFound)
	}
	return nil
}
