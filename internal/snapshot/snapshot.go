// Package snapshot computes the frozen statistical summary written onto an
// iteration at close-out. Building is pure aggregation over an item set; the
// caller decides when to sample and when to persist.
package snapshot

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/marcus/cadence/internal/models"
)

// Snapshot is the point-in-time summary of an iteration's items. Once frozen
// onto an iteration it is authoritative for historical stats, even if the
// underlying items change later.
type Snapshot struct {
	TotalIssues     int          `json:"total_issues"`
	BacklogIssues   int          `json:"backlog_issues"`
	UnstartedIssues int          `json:"unstarted_issues"`
	StartedIssues   int          `json:"started_issues"`
	CompletedIssues int          `json:"completed_issues"`
	CancelledIssues int          `json:"cancelled_issues"`
	Distribution    Distribution `json:"distribution"`
}

// Distribution breaks the item set down by label, assignee, and elapsed time.
type Distribution struct {
	Labels          []LabelStat    `json:"labels"`
	Assignees       []AssigneeStat `json:"assignees"`
	CompletionChart map[string]int `json:"completion_chart"`
}

// LabelStat is the per-label slice of the distribution. Unlabeled items are
// aggregated under an empty label.
type LabelStat struct {
	Label     string `json:"label"`
	Total     int    `json:"total"`
	Completed int    `json:"completed"`
	Points    int    `json:"points"`
}

// AssigneeStat is the per-assignee slice of the distribution. Unassigned
// items are aggregated under an empty assignee.
type AssigneeStat struct {
	Assignee  string `json:"assignee"`
	Total     int    `json:"total"`
	Completed int    `json:"completed"`
	Points    int    `json:"points"`
}

// Build aggregates the given item set as of now. The completion chart has one
// point per elapsed local day between the iteration's start and its end (or
// now, if the iteration is still open), valued at the number of items still
// pending at the close of that day. Completion time is approximated by the
// item's last update, which the engine touches whenever state changes.
//
// Draft and archived items still count toward the totals: the snapshot
// records what the iteration held, not what carries over.
func Build(items []*models.Item, startAt, endAt *time.Time, now time.Time, tz string) Snapshot {
	s := Snapshot{
		Distribution: Distribution{
			Labels:          []LabelStat{},
			Assignees:       []AssigneeStat{},
			CompletionChart: map[string]int{},
		},
	}

	labelStats := map[string]*LabelStat{}
	assigneeStats := map[string]*AssigneeStat{}

	for _, item := range items {
		s.TotalIssues++
		done := false
		switch item.StateGroup {
		case models.GroupBacklog:
			s.BacklogIssues++
		case models.GroupUnstarted:
			s.UnstartedIssues++
		case models.GroupStarted:
			s.StartedIssues++
		case models.GroupCompleted:
			s.CompletedIssues++
			done = true
		case models.GroupCancelled:
			s.CancelledIssues++
			done = true
		}

		labels := item.Labels
		if len(labels) == 0 {
			labels = []string{""}
		}
		for _, label := range labels {
			st := labelStats[label]
			if st == nil {
				st = &LabelStat{Label: label}
				labelStats[label] = st
			}
			st.Total++
			st.Points += item.Points
			if done {
				st.Completed++
			}
		}

		assignees := item.Assignees
		if len(assignees) == 0 {
			assignees = []string{""}
		}
		for _, assignee := range assignees {
			st := assigneeStats[assignee]
			if st == nil {
				st = &AssigneeStat{Assignee: assignee}
				assigneeStats[assignee] = st
			}
			st.Total++
			st.Points += item.Points
			if done {
				st.Completed++
			}
		}
	}

	for _, st := range labelStats {
		s.Distribution.Labels = append(s.Distribution.Labels, *st)
	}
	sort.Slice(s.Distribution.Labels, func(i, j int) bool {
		return s.Distribution.Labels[i].Label < s.Distribution.Labels[j].Label
	})

	for _, st := range assigneeStats {
		s.Distribution.Assignees = append(s.Distribution.Assignees, *st)
	}
	sort.Slice(s.Distribution.Assignees, func(i, j int) bool {
		return s.Distribution.Assignees[i].Assignee < s.Distribution.Assignees[j].Assignee
	})

	s.Distribution.CompletionChart = completionChart(items, startAt, endAt, now, tz)
	return s
}

// completionChart walks local days from start through min(end, now) and
// counts the items still pending at the close of each day.
func completionChart(items []*models.Item, startAt, endAt *time.Time, now time.Time, tz string) map[string]int {
	chart := map[string]int{}
	if startAt == nil || endAt == nil {
		return chart
	}

	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.UTC
	}

	last := *endAt
	if now.Before(last) {
		last = now
	}
	if last.Before(*startAt) {
		return chart
	}

	day := startAt.In(loc)
	day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
	lastLocal := last.In(loc)

	for !day.After(lastLocal) {
		endOfDay := time.Date(day.Year(), day.Month(), day.Day(), 23, 59, 59, 999999000, loc)
		pending := 0
		for _, item := range items {
			settled := item.StateGroup == models.GroupCompleted || item.StateGroup == models.GroupCancelled
			if settled && !item.UpdatedAt.After(endOfDay.UTC()) {
				continue
			}
			pending++
		}
		chart[day.Format("2006-01-02")] = pending
		day = day.AddDate(0, 0, 1)
	}
	return chart
}

// Marshal renders the snapshot as the JSON stored in progress_snapshot.
func Marshal(s Snapshot) (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Unmarshal parses a stored progress_snapshot. Empty input returns a zero
// snapshot and ok=false, meaning the iteration has never been closed out.
func Unmarshal(raw string) (Snapshot, bool, error) {
	if raw == "" {
		return Snapshot{}, false, nil
	}
	var s Snapshot
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return Snapshot{}, false, err
	}
	return s, true, nil
}
