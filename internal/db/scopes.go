package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/marcus/cadence/internal/models"
)

// CreateScope inserts a new scope. Timezone defaults to UTC when empty; the
// anchor date is left unset until first provisioning.
func (db *DB) CreateScope(scope *models.Scope) error {
	if scope.Timezone == "" {
		scope.Timezone = "UTC"
	}
	if _, err := time.LoadLocation(scope.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", scope.Timezone, err)
	}

	id, err := generateScopeID()
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	scope.ID = id
	scope.CreatedAt = now
	scope.UpdatedAt = now

	_, err = db.conn.Exec(`
		INSERT INTO scopes (id, name, timezone, anchor_date, external_id, external_source, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, scope.ID, scope.Name, scope.Timezone, nullTime(scope.AnchorDate),
		scope.ExternalID, scope.ExternalSource, scope.CreatedAt, scope.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("scope %s/%s: %w", scope.ExternalSource, scope.ExternalID, ErrDuplicateExternalID)
		}
		return fmt.Errorf("insert scope: %w", err)
	}
	return nil
}

// GetScope returns a non-deleted scope by id.
func (db *DB) GetScope(id string) (*models.Scope, error) {
	row := db.conn.QueryRow(`
		SELECT id, name, timezone, anchor_date, external_id, external_source, created_at, updated_at, deleted_at
		FROM scopes WHERE id = ? AND deleted_at IS NULL
	`, id)

	var s models.Scope
	var anchor, deleted sql.NullTime
	err := row.Scan(&s.ID, &s.Name, &s.Timezone, &anchor, &s.ExternalID, &s.ExternalSource,
		&s.CreatedAt, &s.UpdatedAt, &deleted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("scope %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get scope: %w", err)
	}
	s.AnchorDate = timePtr(anchor)
	s.DeletedAt = timePtr(deleted)
	return &s, nil
}

// ListScopes returns all non-deleted scopes ordered by creation time.
func (db *DB) ListScopes() ([]*models.Scope, error) {
	rows, err := db.conn.Query(`
		SELECT id, name, timezone, anchor_date, external_id, external_source, created_at, updated_at, deleted_at
		FROM scopes WHERE deleted_at IS NULL ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("list scopes: %w", err)
	}
	defer rows.Close()

	var scopes []*models.Scope
	for rows.Next() {
		var s models.Scope
		var anchor, deleted sql.NullTime
		if err := rows.Scan(&s.ID, &s.Name, &s.Timezone, &anchor, &s.ExternalID, &s.ExternalSource,
			&s.CreatedAt, &s.UpdatedAt, &deleted); err != nil {
			return nil, fmt.Errorf("scan scope: %w", err)
		}
		s.AnchorDate = timePtr(anchor)
		s.DeletedAt = timePtr(deleted)
		scopes = append(scopes, &s)
	}
	return scopes, rows.Err()
}

// SetScopeAnchor persists the scope's anchor date, but only if no anchor has
// been set yet. The anchor is a one-time default: once chosen it is never
// recomputed, so concurrent provisioners converge on whichever write landed
// first.
func (db *DB) SetScopeAnchor(scopeID string, anchor time.Time) error {
	_, err := db.conn.Exec(`
		UPDATE scopes SET anchor_date = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL AND anchor_date IS NULL
	`, anchor.UTC(), time.Now().UTC(), scopeID)
	if err != nil {
		return fmt.Errorf("set scope anchor: %w", err)
	}
	return nil
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure from
// the sqlite driver.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
