package models

import "time"

// Status is the derived lifecycle state of an iteration. It is never stored;
// it is always recomputed from the iteration's dates and a sampled "now".
type Status string

const (
	StatusDraft     Status = "draft"
	StatusUpcoming  Status = "upcoming"
	StatusCurrent   Status = "current"
	StatusCompleted Status = "completed"
)

// StateGroup is the coarse bucket a work item's fine-grained state maps to.
// Carry-over eligibility and snapshot aggregation both operate on groups,
// not on fine-grained states.
type StateGroup string

const (
	GroupBacklog   StateGroup = "backlog"
	GroupUnstarted StateGroup = "unstarted"
	GroupStarted   StateGroup = "started"
	GroupCompleted StateGroup = "completed"
	GroupCancelled StateGroup = "cancelled"
)

// EpicStatus is the manually-set status of an epic, unlike iteration status
// which is derived from dates.
type EpicStatus string

const (
	EpicBacklog   EpicStatus = "backlog"
	EpicStarted   EpicStatus = "started"
	EpicCompleted EpicStatus = "completed"
	EpicCancelled EpicStatus = "cancelled"
)

// Scope owns a numbering sequence of iterations and defines the timezone used
// for all of their local-date math.
type Scope struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Timezone       string     `json:"timezone"`
	AnchorDate     *time.Time `json:"anchor_date,omitempty"`
	ExternalID     string     `json:"external_id,omitempty"`
	ExternalSource string     `json:"external_source,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`
}

// Iteration is one time-boxed work period within a scope.
//
// StartAt and EndAt are either both nil (a draft iteration) or both set,
// never exactly one. Every write path enforces this.
type Iteration struct {
	ID               string     `json:"id"`
	ScopeID          string     `json:"scope_id"`
	Number           int        `json:"number"`
	Title            string     `json:"title,omitempty"`
	StartAt          *time.Time `json:"start_at,omitempty"`
	EndAt            *time.Time `json:"end_at,omitempty"`
	Timezone         string     `json:"timezone"`
	ProgressSnapshot string     `json:"progress_snapshot,omitempty"`
	ExternalID       string     `json:"external_id,omitempty"`
	ExternalSource   string     `json:"external_source,omitempty"`
	ArchivedAt       *time.Time `json:"archived_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	DeletedAt        *time.Time `json:"deleted_at,omitempty"`
}

// Closed reports whether the iteration's end date has passed. A draft
// iteration (no dates) is never closed.
func (it *Iteration) Closed(now time.Time) bool {
	return it.EndAt != nil && it.EndAt.Before(now)
}

// Item is the slice of a work item the iteration engine needs: its coarse
// state, assignees and labels for aggregation, and the flags that gate
// carry-over eligibility.
type Item struct {
	ID         string     `json:"id"`
	ScopeID    string     `json:"scope_id"`
	Title      string     `json:"title"`
	State      string     `json:"state"`
	StateGroup StateGroup `json:"state_group"`
	Assignees  []string   `json:"assignees,omitempty"`
	Labels     []string   `json:"labels,omitempty"`
	Points     int        `json:"points"`
	IsDraft    bool       `json:"is_draft"`
	ArchivedAt *time.Time `json:"archived_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	DeletedAt  *time.Time `json:"deleted_at,omitempty"`
}

// CarriesOver reports whether the item is eligible to be moved to a successor
// iteration during close-out: not archived, not a draft, and still unfinished.
func (i *Item) CarriesOver() bool {
	if i.ArchivedAt != nil || i.IsDraft {
		return false
	}
	switch i.StateGroup {
	case GroupBacklog, GroupUnstarted, GroupStarted:
		return true
	}
	return false
}

// Membership is the join row linking one work item to one iteration. The row
// has its own id so a carry-over move (which mutates IterationID in place)
// preserves any external references to the row, e.g. from the audit log.
type Membership struct {
	ID          string     `json:"id"`
	IterationID string     `json:"iteration_id"`
	ItemID      string     `json:"item_id"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}

// Epic groups work items under a manually-managed status. Epics share the
// archive gate pattern with iterations but source their status from this
// field rather than from dates.
type Epic struct {
	ID         string     `json:"id"`
	ScopeID    string     `json:"scope_id"`
	Title      string     `json:"title"`
	Status     EpicStatus `json:"status"`
	ArchivedAt *time.Time `json:"archived_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	DeletedAt  *time.Time `json:"deleted_at,omitempty"`
}

// Favorite is a bookmark on an entity. Archiving an entity removes its
// favorites.
type Favorite struct {
	ID         string     `json:"id"`
	EntityType string     `json:"entity_type"`
	EntityID   string     `json:"entity_id"`
	ScopeID    string     `json:"scope_id"`
	UserID     string     `json:"user_id"`
	CreatedAt  time.Time  `json:"created_at"`
	DeletedAt  *time.Time `json:"deleted_at,omitempty"`
}

// Config holds workspace-level preferences persisted as JSON alongside the
// database. Per-scope settings (timezone, anchor date) live in the scopes
// table because they are data shared by every viewer of the scope.
type Config struct {
	ActiveScopeID  string `json:"active_scope_id,omitempty"`
	ActorID        string `json:"actor_id,omitempty"`
	WebhookURL     string `json:"webhook_url,omitempty"`
	WebhookSecret  string `json:"webhook_secret,omitempty"`
	WebhookEnabled bool   `json:"webhook_enabled,omitempty"`
}
