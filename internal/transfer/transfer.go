// Package transfer implements the close-out protocol for a finished
// iteration: validate, snapshot, freeze, move, audit. The snapshot is read
// and frozen before any membership moves, so it reflects exactly the item set
// being carried over.
package transfer

import (
	"context"
	"fmt"
	"time"

	"github.com/marcus/cadence/internal/db"
	"github.com/marcus/cadence/internal/events"
	"github.com/marcus/cadence/internal/snapshot"
)

// Request identifies the source and destination of a carry-over.
type Request struct {
	ScopeID       string
	SourceID      string
	DestinationID string
	ActorID       string
}

// Result reports what a successful carry-over did.
type Result struct {
	Moved    int
	Snapshot snapshot.Snapshot
}

// Orchestrator runs the carry-over protocol against the store and emits audit
// events to a sink.
type Orchestrator struct {
	db   *db.DB
	sink events.Sink
}

// New returns an Orchestrator. A nil sink means events are recorded locally
// but not forwarded.
func New(database *db.DB, sink events.Sink) *Orchestrator {
	if sink == nil {
		sink = events.NoopSink{}
	}
	return &Orchestrator{db: database, sink: sink}
}

// Transfer closes out the source iteration and carries its unfinished items
// to the destination.
//
// The five steps run in order: validation (no mutation on failure), snapshot
// of the source's current membership set, freezing that snapshot onto the
// source, moving eligible memberships, and audit emission. Steps after
// validation are not wrapped in one cross-table transaction; re-invoking the
// whole operation is the recovery path after a crash, and an already-frozen
// snapshot is reused rather than recomputed so a retry cannot freeze counts
// from an already-partially-moved set.
func (o *Orchestrator) Transfer(ctx context.Context, req Request, now time.Time) (*Result, error) {
	// Step 1: validate. Both iterations must exist in the request's scope;
	// the source must be finished and the destination still open.
	source, err := o.db.GetIteration(req.SourceID)
	if err != nil {
		return nil, err
	}
	if source.ScopeID != req.ScopeID {
		return nil, fmt.Errorf("iteration %s not in scope %s: %w", req.SourceID, req.ScopeID, db.ErrNotFound)
	}
	dest, err := o.db.GetIteration(req.DestinationID)
	if err != nil {
		return nil, err
	}
	if dest.ScopeID != req.ScopeID {
		return nil, fmt.Errorf("iteration %s not in scope %s: %w", req.DestinationID, req.ScopeID, db.ErrNotFound)
	}
	if dest.Closed(now) {
		return nil, &DestinationClosedError{IterationID: dest.ID}
	}
	if !source.Closed(now) {
		return nil, &SourceNotCompletedError{IterationID: source.ID}
	}

	// Step 2: snapshot the source's current membership set, before anything
	// moves. A retry after a partial run finds the snapshot already frozen
	// and reuses it; rebuilding from live data would count a shrunken set.
	items, err := o.db.FindItemsByMembership(source.ID)
	if err != nil {
		return nil, err
	}

	snap, frozen, err := snapshot.Unmarshal(source.ProgressSnapshot)
	if err != nil {
		return nil, fmt.Errorf("parse frozen snapshot: %w", err)
	}
	if !frozen {
		snap = snapshot.Build(items, source.StartAt, source.EndAt, now, source.Timezone)

		// Step 3: freeze in a single update, strictly before any move.
		raw, err := snapshot.Marshal(snap)
		if err != nil {
			return nil, fmt.Errorf("marshal snapshot: %w", err)
		}
		if err := o.db.FreezeSnapshot(source.ID, raw); err != nil {
			return nil, err
		}
	}

	// Step 4: move unfinished, non-archived, non-draft items. Completed and
	// cancelled items stay linked to the source as historical record.
	var carry []string
	for _, item := range items {
		if item.CarriesOver() {
			carry = append(carry, item.ID)
		}
	}

	moves, err := o.db.BulkEnsureMemberships(dest.ID, carry)
	if err != nil {
		return nil, err
	}

	// Step 5: audit, one moved event per item, recorded locally then handed
	// to the sink without blocking on delivery.
	if err := o.audit(ctx, req, moves, now); err != nil {
		return nil, err
	}

	return &Result{Moved: len(moves), Snapshot: snap}, nil
}

func (o *Orchestrator) audit(ctx context.Context, req Request, moves []db.Move, now time.Time) error {
	if len(moves) == 0 {
		return nil
	}

	entries := make([]*db.AuditEntry, 0, len(moves))
	evs := make([]events.Event, 0, len(moves))
	for _, mv := range moves {
		payload := fmt.Sprintf(`{"item_id":%q,"old_iteration_id":%q,"new_iteration_id":%q}`,
			mv.ItemID, mv.OldIterationID, mv.NewIterationID)
		entries = append(entries, &db.AuditEntry{
			ActorID:    req.ActorID,
			EventType:  events.EventType(events.EntityMemberships, events.ActionMove),
			EntityType: string(events.EntityMemberships),
			EntityID:   mv.MembershipID,
			Payload:    payload,
		})
		evs = append(evs, events.Event{
			Entity:  events.EntityMemberships,
			Action:  events.ActionMove,
			ActorID: req.ActorID,
			At:      now,
			Payload: map[string]any{
				"item_id":          mv.ItemID,
				"membership_id":    mv.MembershipID,
				"old_iteration_id": mv.OldIterationID,
				"new_iteration_id": mv.NewIterationID,
			},
		})
	}

	if err := o.db.InsertAuditEntries(entries); err != nil {
		return err
	}

	// Fire and forget; delivery failures are the sink's problem, not the
	// transfer's.
	go o.sink.Emit(context.WithoutCancel(ctx), evs)

	return nil
}
