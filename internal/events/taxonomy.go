// Package events defines the audit event taxonomy for the iteration engine
// and the sinks that deliver events to external consumers.
//
// The taxonomy provides:
//   - Canonical entity and action types
//   - Normalization of singular/plural entity names
//   - Validation of entity+action combinations
//
// Events are fire-and-forget: the engine records them locally and hands them
// to a Sink without waiting on delivery.
package events

import "strings"

// EntityType represents the canonical entity types in the audit stream.
type EntityType string

// ActionType represents the canonical action types for events.
type ActionType string

// Canonical entity types
const (
	EntityScopes      EntityType = "scopes"
	EntityIterations  EntityType = "iterations"
	EntityItems       EntityType = "items"
	EntityMemberships EntityType = "memberships"
	EntityEpics       EntityType = "epics"
	EntityFavorites   EntityType = "favorites"
)

// Canonical action types
const (
	ActionCreate    ActionType = "create"
	ActionUpdate    ActionType = "update"
	ActionMove      ActionType = "move"
	ActionTransfer  ActionType = "transfer"
	ActionArchive   ActionType = "archive"
	ActionUnarchive ActionType = "unarchive"
	ActionDelete    ActionType = "soft_delete"
	ActionRestore   ActionType = "restore"
)

// AllEntityTypes returns all valid entity types.
func AllEntityTypes() map[EntityType]bool {
	return map[EntityType]bool{
		EntityScopes:      true,
		EntityIterations:  true,
		EntityItems:       true,
		EntityMemberships: true,
		EntityEpics:       true,
		EntityFavorites:   true,
	}
}

// IsValidEntityType checks if the given entity type string is valid.
func IsValidEntityType(et string) bool {
	return AllEntityTypes()[EntityType(et)]
}

// NormalizeEntityType normalizes an entity type string to its canonical form.
// Handles both singular and plural forms.
func NormalizeEntityType(entityType string) (EntityType, bool) {
	switch strings.ToLower(entityType) {
	case "scope", "scopes":
		return EntityScopes, true
	case "iteration", "iterations", "sprint", "sprints":
		return EntityIterations, true
	case "item", "items", "issue", "issues":
		return EntityItems, true
	case "membership", "memberships":
		return EntityMemberships, true
	case "epic", "epics":
		return EntityEpics, true
	case "favorite", "favorites":
		return EntityFavorites, true
	default:
		return "", false
	}
}

// ValidEntityActionCombinations defines which entity types can have which
// action types.
func ValidEntityActionCombinations() map[EntityType]map[ActionType]bool {
	return map[EntityType]map[ActionType]bool{
		EntityScopes: {
			ActionCreate: true,
			ActionUpdate: true,
			ActionDelete: true,
		},
		EntityIterations: {
			ActionCreate:    true,
			ActionUpdate:    true,
			ActionTransfer:  true,
			ActionArchive:   true,
			ActionUnarchive: true,
			ActionDelete:    true,
			ActionRestore:   true,
		},
		EntityItems: {
			ActionCreate:  true,
			ActionUpdate:  true,
			ActionArchive: true,
			ActionDelete:  true,
			ActionRestore: true,
		},
		EntityMemberships: {
			ActionCreate: true,
			ActionMove:   true,
			ActionDelete: true,
		},
		EntityEpics: {
			ActionCreate:    true,
			ActionUpdate:    true,
			ActionArchive:   true,
			ActionUnarchive: true,
			ActionDelete:    true,
		},
		EntityFavorites: {
			ActionCreate: true,
			ActionDelete: true,
		},
	}
}

// IsValidEntityActionCombination checks if an entity type can have a given
// action type.
func IsValidEntityActionCombination(entity EntityType, action ActionType) bool {
	if actionMap, ok := ValidEntityActionCombinations()[entity]; ok {
		return actionMap[action]
	}
	return false
}

// EventType joins entity and action into the dotted form stored in the audit
// log, e.g. "memberships.move".
func EventType(entity EntityType, action ActionType) string {
	return string(entity) + "." + string(action)
}
