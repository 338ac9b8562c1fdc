package events

import "testing"

func TestNormalizeEntityType(t *testing.T) {
	tests := []struct {
		in   string
		want EntityType
		ok   bool
	}{
		{"iteration", EntityIterations, true},
		{"iterations", EntityIterations, true},
		{"sprint", EntityIterations, true},
		{"Sprint", EntityIterations, true},
		{"issue", EntityItems, true},
		{"items", EntityItems, true},
		{"membership", EntityMemberships, true},
		{"epic", EntityEpics, true},
		{"favorite", EntityFavorites, true},
		{"scope", EntityScopes, true},
		{"widget", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := NormalizeEntityType(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("NormalizeEntityType(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestEntityActionCombinations(t *testing.T) {
	valid := []struct {
		entity EntityType
		action ActionType
	}{
		{EntityMemberships, ActionMove},
		{EntityIterations, ActionTransfer},
		{EntityIterations, ActionArchive},
		{EntityEpics, ActionUnarchive},
		{EntityItems, ActionRestore},
		{EntityFavorites, ActionDelete},
	}
	for _, c := range valid {
		if !IsValidEntityActionCombination(c.entity, c.action) {
			t.Errorf("%s.%s should be valid", c.entity, c.action)
		}
	}

	invalid := []struct {
		entity EntityType
		action ActionType
	}{
		{EntityScopes, ActionMove},
		{EntityItems, ActionTransfer},
		{EntityMemberships, ActionArchive},
		{EntityFavorites, ActionUpdate},
		{EntityType("widgets"), ActionCreate},
	}
	for _, c := range invalid {
		if IsValidEntityActionCombination(c.entity, c.action) {
			t.Errorf("%s.%s should be invalid", c.entity, c.action)
		}
	}

	// Every combination entry references a known entity type.
	for entity := range ValidEntityActionCombinations() {
		if !IsValidEntityType(string(entity)) {
			t.Errorf("combination table has unknown entity %q", entity)
		}
	}
}

func TestEventType(t *testing.T) {
	if got := EventType(EntityMemberships, ActionMove); got != "memberships.move" {
		t.Errorf("EventType = %q", got)
	}
	if got := EventType(EntityIterations, ActionTransfer); got != "iterations.transfer" {
		t.Errorf("EventType = %q", got)
	}
}
