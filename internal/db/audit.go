package db

import (
	"fmt"
	"time"
)

// AuditEntry is one structured event recorded for the webhook sink and for
// local inspection.
type AuditEntry struct {
	ID         string    `json:"id"`
	ActorID    string    `json:"actor_id"`
	EventType  string    `json:"event_type"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Payload    string    `json:"payload,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// InsertAuditEntries appends a batch of audit entries in one transaction.
// IDs and timestamps are assigned here.
func (db *DB) InsertAuditEntries(entries []*AuditEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin audit batch: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for _, e := range entries {
		id, err := generateAuditID()
		if err != nil {
			return err
		}
		e.ID = id
		e.CreatedAt = now
		if _, err := tx.Exec(`
			INSERT INTO audit_log (id, actor_id, event_type, entity_type, entity_id, payload, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, e.ID, e.ActorID, e.EventType, e.EntityType, e.EntityID, e.Payload, e.CreatedAt); err != nil {
			return fmt.Errorf("insert audit entry: %w", err)
		}
	}

	return tx.Commit()
}

// GetAuditSince returns audit entries created at or after the given instant,
// oldest first. The webhook dispatcher uses this to build its payload.
func (db *DB) GetAuditSince(since time.Time) ([]*AuditEntry, error) {
	rows, err := db.conn.Query(`
		SELECT id, actor_id, event_type, entity_type, entity_id, payload, created_at
		FROM audit_log WHERE created_at >= ? ORDER BY created_at
	`, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}
	defer rows.Close()

	var entries []*AuditEntry
	for rows.Next() {
		var e AuditEntry
		if err := rows.Scan(&e.ID, &e.ActorID, &e.EventType, &e.EntityType, &e.EntityID, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

// GetAuditForEntity returns an entity's audit trail, newest first.
func (db *DB) GetAuditForEntity(entityType, entityID string) ([]*AuditEntry, error) {
	rows, err := db.conn.Query(`
		SELECT id, actor_id, event_type, entity_type, entity_id, payload, created_at
		FROM audit_log WHERE entity_type = ? AND entity_id = ? ORDER BY created_at DESC
	`, entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}
	defer rows.Close()

	var entries []*AuditEntry
	for rows.Next() {
		var e AuditEntry
		if err := rows.Scan(&e.ID, &e.ActorID, &e.EventType, &e.EntityType, &e.EntityID, &e.Payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
