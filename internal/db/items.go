package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/marcus/cadence/internal/models"
)

const itemCols = `id, scope_id, title, state, state_group, assignees, labels,
	points, is_draft, archived_at, created_at, updated_at, deleted_at`

// CreateItem inserts a work item. StateGroup defaults to unstarted.
func (db *DB) CreateItem(item *models.Item) error {
	if item.StateGroup == "" {
		item.StateGroup = models.GroupUnstarted
	}
	if !models.ValidStateGroup(item.StateGroup) {
		return fmt.Errorf("invalid state group %q", item.StateGroup)
	}
	if item.State == "" {
		item.State = string(item.StateGroup)
	}

	id, err := generateItemID()
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	item.ID = id
	item.CreatedAt = now
	item.UpdatedAt = now

	_, err = db.conn.Exec(`
		INSERT INTO items (id, scope_id, title, state, state_group, assignees, labels, points, is_draft, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, item.ID, item.ScopeID, item.Title, item.State, string(item.StateGroup),
		joinList(item.Assignees), joinList(item.Labels), item.Points, boolToInt(item.IsDraft),
		item.CreatedAt, item.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert item: %w", err)
	}
	return nil
}

// GetItem returns a non-deleted item by id.
func (db *DB) GetItem(id string) (*models.Item, error) {
	row := db.conn.QueryRow(`SELECT `+itemCols+` FROM items WHERE id = ? AND deleted_at IS NULL`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("item %s: %w", id, ErrNotFound)
	}
	return item, err
}

// ListItems returns a scope's non-deleted items ordered by creation time.
func (db *DB) ListItems(scopeID string) ([]*models.Item, error) {
	rows, err := db.conn.Query(`
		SELECT `+itemCols+` FROM items WHERE scope_id = ? AND deleted_at IS NULL ORDER BY created_at
	`, scopeID)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
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

// UpdateItemState sets the fine-grained state and its coarse group together.
func (db *DB) UpdateItemState(id, state string, group models.StateGroup) error {
	if !models.ValidStateGroup(group) {
		return fmt.Errorf("invalid state group %q", group)
	}
	res, err := db.conn.Exec(`
		UPDATE items SET state = ?, state_group = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`, state, string(group), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update item state: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("item %s: %w", id, ErrNotFound)
	}
	return nil
}

// SetItemArchived stamps archived_at on an item.
func (db *DB) SetItemArchived(id string, at time.Time) error {
	res, err := db.conn.Exec(`
		UPDATE items SET archived_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`, at.UTC(), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("archive item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("item %s: %w", id, ErrNotFound)
	}
	return nil
}

// SoftDeleteItem soft-deletes the item and cascades to its active memberships.
func (db *DB) SoftDeleteItem(id string) error {
	now := time.Now().UTC()

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		UPDATE items SET deleted_at = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL
	`, now, now, id)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("item %s: %w", id, ErrNotFound)
	}

	if _, err := tx.Exec(`
		UPDATE memberships SET deleted_at = ?, updated_at = ?
		WHERE item_id = ? AND deleted_at IS NULL
	`, now, now, id); err != nil {
		return fmt.Errorf("delete item memberships: %w", err)
	}

	return tx.Commit()
}

func scanItem(row interface{ Scan(...interface{}) error }) (*models.Item, error) {
	var item models.Item
	var group, assignees, labels string
	var isDraft int
	var archived, deleted sql.NullTime
	err := row.Scan(&item.ID, &item.ScopeID, &item.Title, &item.State, &group, &assignees, &labels,
		&item.Points, &isDraft, &archived, &item.CreatedAt, &item.UpdatedAt, &deleted)
	if err != nil {
		return nil, err
	}
	item.StateGroup = models.StateGroup(group)
	item.Assignees = splitList(assignees)
	item.Labels = splitList(labels)
	item.IsDraft = isDraft != 0
	item.ArchivedAt = timePtr(archived)
	item.DeletedAt = timePtr(deleted)
	return &item, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
