package models

import "time"

// ResolveStatus maps an iteration's dates and a sampled instant to its
// lifecycle status. It is a pure function: callers sample "now" once and pass
// it in, so a batch listing classifies every row against the same instant.
//
// StartAt/EndAt are absolute instants, so no timezone conversion happens
// here; the scope's timezone only matters earlier, when bare local dates are
// turned into instants.
func ResolveStatus(startAt, endAt *time.Time, now time.Time) Status {
	if startAt == nil && endAt == nil {
		return StatusDraft
	}
	if startAt != nil && endAt != nil {
		if !now.Before(*startAt) && !now.After(*endAt) {
			return StatusCurrent
		}
	}
	if startAt != nil && startAt.After(now) {
		return StatusUpcoming
	}
	if endAt != nil && endAt.Before(now) {
		return StatusCompleted
	}
	// Unreachable while the both-or-neither date invariant holds.
	return StatusDraft
}

// ValidStateGroup reports whether s names a known state group.
func ValidStateGroup(s StateGroup) bool {
	switch s {
	case GroupBacklog, GroupUnstarted, GroupStarted, GroupCompleted, GroupCancelled:
		return true
	}
	return false
}

// ValidEpicStatus reports whether s names a known epic status.
func ValidEpicStatus(s EpicStatus) bool {
	switch s {
	case EpicBacklog, EpicStarted, EpicCompleted, EpicCancelled:
		return true
	}
	return false
}
