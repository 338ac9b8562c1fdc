package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/marcus/cadence/internal/models"
)

const iterationCols = `id, scope_id, number, title, start_at, end_at, timezone,
	progress_snapshot, external_id, external_source, archived_at, created_at, updated_at, deleted_at`

// validateIterationDates enforces the both-or-neither invariant on every
// iteration write path.
func validateIterationDates(start, end *time.Time) error {
	if (start == nil) != (end == nil) {
		return ErrInvalidDateRange
	}
	if start != nil && end.Before(*start) {
		return fmt.Errorf("end date before start date: %w", ErrInvalidDateRange)
	}
	return nil
}

// CreateIteration inserts a manually-dated iteration. A zero Number is
// assigned from NextNumber so manual iterations still occupy a slot in the
// scope's contiguous sequence.
func (db *DB) CreateIteration(it *models.Iteration) error {
	if err := validateIterationDates(it.StartAt, it.EndAt); err != nil {
		return err
	}

	scope, err := db.GetScope(it.ScopeID)
	if err != nil {
		return err
	}
	if it.Timezone == "" {
		it.Timezone = scope.Timezone
	}
	if it.Number == 0 {
		n, err := db.NextNumber(it.ScopeID)
		if err != nil {
			return err
		}
		it.Number = n
	}

	id, err := generateIterationID()
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	it.ID = id
	it.CreatedAt = now
	it.UpdatedAt = now
	if it.Title == "" {
		it.Title = fmt.Sprintf("Iteration %d", it.Number)
	}

	_, err = db.conn.Exec(`
		INSERT INTO iterations (id, scope_id, number, title, start_at, end_at, timezone,
			progress_snapshot, external_id, external_source, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, '', ?, ?, ?, ?)
	`, it.ID, it.ScopeID, it.Number, it.Title, nullTime(it.StartAt), nullTime(it.EndAt),
		it.Timezone, it.ExternalID, it.ExternalSource, it.CreatedAt, it.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) && strings.Contains(err.Error(), "external") {
			return fmt.Errorf("iteration %s/%s: %w", it.ExternalSource, it.ExternalID, ErrDuplicateExternalID)
		}
		return fmt.Errorf("insert iteration: %w", err)
	}
	return nil
}

// GetOrCreateIteration inserts an iteration keyed on (scope, number), or
// returns the existing row if one is already there. Concurrent callers racing
// on the same number are resolved by the UNIQUE(scope_id, number) constraint:
// the losing insert is a no-op, never an error.
func (db *DB) GetOrCreateIteration(scopeID string, number int, startAt, endAt time.Time, tz string) (*models.Iteration, bool, error) {
	id, err := generateIterationID()
	if err != nil {
		return nil, false, err
	}

	now := time.Now().UTC()
	res, err := db.conn.Exec(`
		INSERT INTO iterations (id, scope_id, number, title, start_at, end_at, timezone,
			progress_snapshot, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, '', ?, ?)
		ON CONFLICT(scope_id, number) DO NOTHING
	`, id, scopeID, number, fmt.Sprintf("Iteration %d", number),
		startAt.UTC(), endAt.UTC(), tz, now, now)
	if err != nil {
		return nil, false, fmt.Errorf("get-or-create iteration %d: %w", number, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("rows affected: %w", err)
	}

	it, err := db.GetIterationByNumber(scopeID, number)
	if err != nil {
		return nil, false, err
	}
	return it, affected > 0, nil
}

// GetIteration returns a non-deleted iteration by id.
func (db *DB) GetIteration(id string) (*models.Iteration, error) {
	row := db.conn.QueryRow(`
		SELECT `+iterationCols+` FROM iterations WHERE id = ? AND deleted_at IS NULL
	`, id)
	it, err := scanIteration(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("iteration %s: %w", id, ErrNotFound)
	}
	return it, err
}

// GetIterationByNumber returns a non-deleted iteration by its number within a
// scope.
func (db *DB) GetIterationByNumber(scopeID string, number int) (*models.Iteration, error) {
	row := db.conn.QueryRow(`
		SELECT `+iterationCols+` FROM iterations
		WHERE scope_id = ? AND number = ? AND deleted_at IS NULL
	`, scopeID, number)
	it, err := scanIteration(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("iteration %d in scope %s: %w", number, scopeID, ErrNotFound)
	}
	return it, err
}

// ListIterations returns a scope's non-deleted iterations ordered by number.
func (db *DB) ListIterations(scopeID string) ([]*models.Iteration, error) {
	rows, err := db.conn.Query(`
		SELECT `+iterationCols+` FROM iterations
		WHERE scope_id = ? AND deleted_at IS NULL ORDER BY number
	`, scopeID)
	if err != nil {
		return nil, fmt.Errorf("list iterations: %w", err)
	}
	defer rows.Close()

	var iterations []*models.Iteration
	for rows.Next() {
		it, err := scanIteration(rows)
		if err != nil {
			return nil, err
		}
		iterations = append(iterations, it)
	}
	return iterations, rows.Err()
}

// NextNumber returns max(existing numbers) + 1 for the scope. Deleted rows
// still count: a number is never reused, keeping the sequence gap-free from
// the registry's point of view.
func (db *DB) NextNumber(scopeID string) (int, error) {
	var next int
	err := db.conn.QueryRow(`
		SELECT COALESCE(MAX(number), 0) + 1 FROM iterations WHERE scope_id = ?
	`, scopeID).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("next iteration number: %w", err)
	}
	return next, nil
}

// UpdateIterationDates replaces both boundary dates, holding the
// both-or-neither invariant.
func (db *DB) UpdateIterationDates(id string, startAt, endAt *time.Time) error {
	if err := validateIterationDates(startAt, endAt); err != nil {
		return err
	}
	res, err := db.conn.Exec(`
		UPDATE iterations SET start_at = ?, end_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`, nullTime(startAt), nullTime(endAt), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update iteration dates: %w", err)
	}
	return requireRow(res, id)
}

// FreezeSnapshot writes the progress snapshot in a single update. The
// snapshot is written once per close-out and is authoritative for historical
// stats afterwards.
func (db *DB) FreezeSnapshot(id, snapshotJSON string) error {
	res, err := db.conn.Exec(`
		UPDATE iterations SET progress_snapshot = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`, snapshotJSON, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("freeze snapshot: %w", err)
	}
	return requireRow(res, id)
}

// SetIterationArchived stamps archived_at. The status gate lives in the
// lifecycle layer, not here.
func (db *DB) SetIterationArchived(id string, at time.Time) error {
	res, err := db.conn.Exec(`
		UPDATE iterations SET archived_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`, at.UTC(), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("archive iteration: %w", err)
	}
	return requireRow(res, id)
}

// ClearIterationArchived clears archived_at unconditionally.
func (db *DB) ClearIterationArchived(id string) error {
	res, err := db.conn.Exec(`
		UPDATE iterations SET archived_at = NULL, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("unarchive iteration: %w", err)
	}
	return requireRow(res, id)
}

// SoftDeleteIteration soft-deletes the iteration and cascades to its active
// memberships. The row itself survives so membership history keeps a valid
// reference.
func (db *DB) SoftDeleteIteration(id string) error {
	now := time.Now().UTC()

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin delete: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		UPDATE iterations SET deleted_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`, now, now, id)
	if err != nil {
		return fmt.Errorf("delete iteration: %w", err)
	}
	if err := requireRow(res, id); err != nil {
		return err
	}

	if _, err := tx.Exec(`
		UPDATE memberships SET deleted_at = ?, updated_at = ?
		WHERE iteration_id = ? AND deleted_at IS NULL
	`, now, now, id); err != nil {
		return fmt.Errorf("delete iteration memberships: %w", err)
	}

	return tx.Commit()
}

// scanIteration reads one iteration row from either a Row or Rows.
func scanIteration(row interface{ Scan(...interface{}) error }) (*models.Iteration, error) {
	var it models.Iteration
	var start, end, archived, deleted sql.NullTime
	err := row.Scan(&it.ID, &it.ScopeID, &it.Number, &it.Title, &start, &end, &it.Timezone,
		&it.ProgressSnapshot, &it.ExternalID, &it.ExternalSource, &archived,
		&it.CreatedAt, &it.UpdatedAt, &deleted)
	if err != nil {
		return nil, err
	}
	it.StartAt = timePtr(start)
	it.EndAt = timePtr(end)
	it.ArchivedAt = timePtr(archived)
	it.DeletedAt = timePtr(deleted)
	return &it, nil
}

// requireRow converts a zero-row update into ErrNotFound.
func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("iteration %s: %w", id, ErrNotFound)
	}
	return nil
}
