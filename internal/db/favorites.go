package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/marcus/cadence/internal/models"
)

// AddFavorite bookmarks an entity for a user.
func (db *DB) AddFavorite(fav *models.Favorite) error {
	id, err := generateFavoriteID()
	if err != nil {
		return err
	}

	fav.ID = id
	fav.CreatedAt = time.Now().UTC()

	_, err = db.conn.Exec(`
		INSERT INTO favorites (id, entity_type, entity_id, scope_id, user_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, fav.ID, fav.EntityType, fav.EntityID, fav.ScopeID, fav.UserID, fav.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert favorite: %w", err)
	}
	return nil
}

// RemoveFavoritesByEntity soft-deletes every favorite referencing the entity
// within the scope. Removing zero rows is fine; archive does not care whether
// anyone had bookmarked the entity.
func (db *DB) RemoveFavoritesByEntity(entityType, entityID, scopeID string) error {
	now := time.Now().UTC()
	_, err := db.conn.Exec(`
		UPDATE favorites SET deleted_at = ?
		WHERE entity_type = ? AND entity_id = ? AND scope_id = ? AND deleted_at IS NULL
	`, now, entityType, entityID, scopeID)
	if err != nil {
		return fmt.Errorf("remove favorites: %w", err)
	}
	return nil
}

// ListFavorites returns a user's active favorites in a scope.
func (db *DB) ListFavorites(scopeID, userID string) ([]*models.Favorite, error) {
	rows, err := db.conn.Query(`
		SELECT id, entity_type, entity_id, scope_id, user_id, created_at, deleted_at
		FROM favorites WHERE scope_id = ? AND user_id = ? AND deleted_at IS NULL
		ORDER BY created_at
	`, scopeID, userID)
	if err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}
	defer rows.Close()

	var favorites []*models.Favorite
	for rows.Next() {
		var f models.Favorite
		var deleted sql.NullTime
		if err := rows.Scan(&f.ID, &f.EntityType, &f.EntityID, &f.ScopeID, &f.UserID, &f.CreatedAt, &deleted); err != nil {
			return nil, fmt.Errorf("scan favorite: %w", err)
		}
		f.DeletedAt = timePtr(deleted)
		favorites = append(favorites, &f)
	}
	return favorites, rows.Err()
}
