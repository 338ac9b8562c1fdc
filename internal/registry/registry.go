// Package registry provisions and numbers iterations. Provisioning is lazy:
// every "list iterations" call backfills missing numbers up to the current
// period plus a lookahead, relying on the storage layer's get-or-create to
// stay idempotent under concurrent callers.
package registry

import (
	"errors"
	"fmt"
	"time"

	"github.com/marcus/cadence/internal/clock"
	"github.com/marcus/cadence/internal/db"
	"github.com/marcus/cadence/internal/models"
)

// PeriodDays is the fixed iteration length. Not configurable per call; every
// scope runs the same cadence.
const PeriodDays = 14

// DefaultLookahead is how many future iterations a listing keeps provisioned.
const DefaultLookahead = 3

// ErrIterationClosed is returned when items are added to an iteration whose
// end date has passed. Removal from a closed iteration is always allowed.
var ErrIterationClosed = errors.New("iteration is closed to new items")

// Registry provisions iterations against the backing store.
type Registry struct {
	db *db.DB
}

// New returns a Registry over the given store.
func New(database *db.DB) *Registry {
	return &Registry{db: database}
}

// EnsureProvisioned backfills the scope's iterations so that numbers
// 1..currentNumber+lookahead all exist, where currentNumber is derived from
// the elapsed whole periods since the scope's anchor date.
//
// A scope with no anchor gets the most recent Monday (in the scope's zone) as
// a one-time default; the first writer wins and the choice is never
// recomputed. Each number is get-or-created independently, so a retry after a
// crash mid-loop simply fills in whatever is still missing.
//
// Returns the number of iterations created by this call.
func (r *Registry) EnsureProvisioned(scopeID string, lookahead int, now time.Time) (int, error) {
	scope, err := r.db.GetScope(scopeID)
	if err != nil {
		return 0, err
	}
	if lookahead < 0 {
		lookahead = 0
	}

	if scope.AnchorDate == nil {
		anchor, err := clock.MostRecentMonday(now, scope.Timezone)
		if err != nil {
			return 0, err
		}
		if err := r.db.SetScopeAnchor(scope.ID, anchor); err != nil {
			return 0, err
		}
		// Reread in case a concurrent provisioner won the anchor write.
		scope, err = r.db.GetScope(scopeID)
		if err != nil {
			return 0, err
		}
		if scope.AnchorDate == nil {
			return 0, fmt.Errorf("scope %s: anchor date not persisted", scopeID)
		}
	}

	anchor := *scope.AnchorDate
	period := PeriodDays * 24 * time.Hour

	elapsed := 0
	if now.After(anchor) {
		elapsed = int(now.Sub(anchor) / period)
	}
	currentNumber := elapsed + 1

	created := 0
	for n := 1; n <= currentNumber+lookahead; n++ {
		startAt, endAt, err := r.periodBounds(anchor, scope.Timezone, n)
		if err != nil {
			return created, err
		}
		_, didCreate, err := r.db.GetOrCreateIteration(scope.ID, n, startAt, endAt, scope.Timezone)
		if err != nil {
			return created, err
		}
		if didCreate {
			created++
		}
	}
	return created, nil
}

// periodBounds computes iteration n's boundaries: the start is the anchor
// plus (n-1) periods at local midnight, the end is one second before the next
// period starts. Date math runs on local civil dates so boundaries stay at
// local midnight across DST changes.
func (r *Registry) periodBounds(anchor time.Time, tz string, n int) (time.Time, time.Time, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("load timezone %q: %w", tz, err)
	}

	anchorLocal := anchor.In(loc)
	startLocal := anchorLocal.AddDate(0, 0, (n-1)*PeriodDays)
	nextLocal := anchorLocal.AddDate(0, 0, n*PeriodDays)

	startAt, err := clock.ToUTC(startLocal.Year(), startLocal.Month(), startLocal.Day(), tz, false)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	nextStart, err := clock.ToUTC(nextLocal.Year(), nextLocal.Month(), nextLocal.Day(), tz, false)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return startAt, nextStart.Add(-time.Second), nil
}

// CreateManual creates an iteration with caller-supplied boundary dates (or
// none, for a draft). It occupies the next number in the scope's sequence so
// numbering stays contiguous alongside auto-provisioned iterations. Dates are
// bare local dates: the start is floored to local midnight and the end pushed
// to end-of-day in the scope's zone.
func (r *Registry) CreateManual(scopeID, title string, startDate, endDate *time.Time) (*models.Iteration, error) {
	scope, err := r.db.GetScope(scopeID)
	if err != nil {
		return nil, err
	}
	if (startDate == nil) != (endDate == nil) {
		return nil, db.ErrInvalidDateRange
	}

	it := &models.Iteration{
		ScopeID:  scope.ID,
		Title:    title,
		Timezone: scope.Timezone,
	}
	if startDate != nil {
		start, err := clock.DateToUTC(*startDate, scope.Timezone, false)
		if err != nil {
			return nil, err
		}
		end, err := clock.DateToUTC(*endDate, scope.Timezone, true)
		if err != nil {
			return nil, err
		}
		it.StartAt = &start
		it.EndAt = &end
	}

	if err := r.db.CreateIteration(it); err != nil {
		return nil, err
	}
	return it, nil
}

// AddItems links items to an iteration, enforcing the closed-iteration guard:
// a closed iteration is read-only for additions. The guard lives here, on the
// calling side, not in the membership store, so the carry-over move into a
// still-open destination goes through the store unimpeded.
func (r *Registry) AddItems(iterationID string, itemIDs []string, now time.Time) ([]db.Move, error) {
	it, err := r.db.GetIteration(iterationID)
	if err != nil {
		return nil, err
	}
	if it.Closed(now) {
		return nil, fmt.Errorf("iteration %s: %w", iterationID, ErrIterationClosed)
	}
	return r.db.BulkEnsureMemberships(iterationID, itemIDs)
}

// List provisions the scope and returns its iterations, each classified
// against the single sampled now.
func (r *Registry) List(scopeID string, lookahead int, now time.Time) ([]*models.Iteration, error) {
	if _, err := r.EnsureProvisioned(scopeID, lookahead, now); err != nil {
		return nil, err
	}
	return r.db.ListIterations(scopeID)
}
