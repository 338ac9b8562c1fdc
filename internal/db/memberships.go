package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/marcus/cadence/internal/models"
)

// Move records one membership reassignment performed by BulkEnsureMemberships.
type Move struct {
	ItemID         string
	MembershipID   string
	OldIterationID string
	NewIterationID string
}

// BulkEnsureMemberships links each item to the iteration. An item with an
// active membership on a different iteration is moved by mutating that row's
// iteration reference in place, so the row's identity (and anything pointing
// at it, such as audit entries) survives the move. Duplicate item ids in the
// input are collapsed; an item already linked to this iteration is a no-op.
//
// Returns the moves performed. Concurrent calls racing on the same item are
// resolved by the partial unique index on (iteration_id, item_id): the losing
// insert is ignored and the final state wins on reread.
func (db *DB) BulkEnsureMemberships(iterationID string, itemIDs []string) ([]Move, error) {
	if _, err := db.GetIteration(iterationID); err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(itemIDs))
	var moves []Move

	for _, itemID := range itemIDs {
		if itemID == "" || seen[itemID] {
			continue
		}
		seen[itemID] = true

		existing, err := db.activeMembershipForItem(itemID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return moves, err
		}

		now := time.Now().UTC()
		if existing != nil {
			if existing.IterationID == iterationID {
				continue
			}
			if err := db.MoveMembership(existing.ID, iterationID); err != nil {
				return moves, err
			}
			moves = append(moves, Move{
				ItemID:         itemID,
				MembershipID:   existing.ID,
				OldIterationID: existing.IterationID,
				NewIterationID: iterationID,
			})
			continue
		}

		id, err := generateMembershipID()
		if err != nil {
			return moves, err
		}
		// The insert races with concurrent linkers; the partial unique index
		// makes the duplicate a no-op rather than an error.
		if _, err := db.conn.Exec(`
			INSERT INTO memberships (id, iteration_id, item_id, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(iteration_id, item_id) WHERE deleted_at IS NULL DO NOTHING
		`, id, iterationID, itemID, now, now); err != nil {
			return moves, fmt.Errorf("link item %s: %w", itemID, err)
		}
	}

	return moves, nil
}

// MoveMembership reassigns an existing membership row to another iteration.
// This is deliberately distinct from delete-and-recreate: the row id is the
// anchor for the item's iteration history.
func (db *DB) MoveMembership(membershipID, newIterationID string) error {
	res, err := db.conn.Exec(`
		UPDATE memberships SET iteration_id = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`, newIterationID, time.Now().UTC(), membershipID)
	if err != nil {
		return fmt.Errorf("move membership %s: %w", membershipID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("membership %s: %w", membershipID, ErrNotFound)
	}
	return nil
}

// UnlinkMembership soft-deletes the active membership between an item and an
// iteration. Removal is always allowed, even on a closed iteration.
func (db *DB) UnlinkMembership(iterationID, itemID string) error {
	res, err := db.conn.Exec(`
		UPDATE memberships SET deleted_at = ?, updated_at = ?
		WHERE iteration_id = ? AND item_id = ? AND deleted_at IS NULL
	`, time.Now().UTC(), time.Now().UTC(), iterationID, itemID)
	if err != nil {
		return fmt.Errorf("unlink membership: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("membership of %s in %s: %w", itemID, iterationID, ErrNotFound)
	}
	return nil
}

// ListActiveMemberships returns the iteration's non-deleted membership rows.
func (db *DB) ListActiveMemberships(iterationID string) ([]*models.Membership, error) {
	rows, err := db.conn.Query(`
		SELECT id, iteration_id, item_id, created_at, updated_at, deleted_at
		FROM memberships WHERE iteration_id = ? AND deleted_at IS NULL
		ORDER BY created_at
	`, iterationID)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	defer rows.Close()

	var memberships []*models.Membership
	for rows.Next() {
		var m models.Membership
		var deleted sql.NullTime
		if err := rows.Scan(&m.ID, &m.IterationID, &m.ItemID, &m.CreatedAt, &m.UpdatedAt, &deleted); err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		m.DeletedAt = timePtr(deleted)
		memberships = append(memberships, &m)
	}
	return memberships, rows.Err()
}

// FindItemsByMembership returns the non-deleted items actively linked to the
// iteration, joined for aggregation.
func (db *DB) FindItemsByMembership(iterationID string) ([]*models.Item, error) {
	rows, err := db.conn.Query(`
		SELECT i.id, i.scope_id, i.title, i.state, i.state_group, i.assignees, i.labels,
			i.points, i.is_draft, i.archived_at, i.created_at, i.updated_at, i.deleted_at
		FROM items i
		JOIN memberships m ON m.item_id = i.id
		WHERE m.iteration_id = ? AND m.deleted_at IS NULL AND i.deleted_at IS NULL
		ORDER BY i.created_at
	`, iterationID)
	if err != nil {
		return nil, fmt.Errorf("find items by membership: %w", err)
	}
	defer rows.Close()

	var items []*models.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// MembershipsForItem returns every membership row an item has accumulated,
// including soft-deleted history, newest first.
func (db *DB) MembershipsForItem(itemID string) ([]*models.Membership, error) {
	rows, err := db.conn.Query(`
		SELECT id, iteration_id, item_id, created_at, updated_at, deleted_at
		FROM memberships WHERE item_id = ? ORDER BY created_at DESC
	`, itemID)
	if err != nil {
		return nil, fmt.Errorf("memberships for item: %w", err)
	}
	defer rows.Close()

	var memberships []*models.Membership
	for rows.Next() {
		var m models.Membership
		var deleted sql.NullTime
		if err := rows.Scan(&m.ID, &m.IterationID, &m.ItemID, &m.CreatedAt, &m.UpdatedAt, &deleted); err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		m.DeletedAt = timePtr(deleted)
		memberships = append(memberships, &m)
	}
	return memberships, rows.Err()
}

// activeMembershipForItem returns the item's single active membership, or
// ErrNotFound if it is not linked anywhere.
func (db *DB) activeMembershipForItem(itemID string) (*models.Membership, error) {
	row := db.conn.QueryRow(`
		SELECT id, iteration_id, item_id, created_at, updated_at, deleted_at
		FROM memberships WHERE item_id = ? AND deleted_at IS NULL
	`, itemID)

	var m models.Membership
	var deleted sql.NullTime
	err := row.Scan(&m.ID, &m.IterationID, &m.ItemID, &m.CreatedAt, &m.UpdatedAt, &deleted)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("membership for item %s: %w", itemID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("active membership: %w", err)
	}
	m.DeletedAt = timePtr(deleted)
	return &m, nil
}
