// Package board derives presentation view models from in-memory issue
// and sprint snapshots: board columns, backlog groups, epic progress and
// roadmap bar geometry. Everything here is pure; callers re-derive after
// each mutation rather than patching incrementally.
package board

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/zulandar/waybill/internal/enums"
	"github.com/zulandar/waybill/internal/models"
)

// Column is one status column of the board.
type Column struct {
	Status   string
	Label    string
	WIPLimit int // 0 = no limit; advisory only, never blocks a move
	Issues   []models.Issue
}

// Count returns the number of issues displayed in the column.
func (c Column) Count() int { return len(c.Issues) }

// OverWIP reports whether the column exceeds its advisory limit.
func (c Column) OverWIP() bool { return c.WIPLimit > 0 && len(c.Issues) > c.WIPLimit }

// Columns partitions issues by status into the fixed ordered column set.
// Issues still in backlog status are not shown on the board. wipLimits
// maps status to limit and may be nil.
func Columns(issues []models.Issue, wipLimits map[string]int) []Column {
	cols := make([]Column, 0, 4)
	for _, status := range enums.BoardColumns() {
		col := Column{
			Status:   status,
			Label:    enums.Lookup(enums.IssueStatuses, status).Label,
			WIPLimit: wipLimits[status],
		}
		for _, iss := range issues {
			if iss.Status == status {
				col.Issues = append(col.Issues, iss)
			}
		}
		cols = append(cols, col)
	}
	return cols
}

// Group is one backlog section: a non-completed sprint or the residual
// backlog.
type Group struct {
	Sprint      *models.Sprint // nil for the residual backlog group
	Name        string
	Issues      []models.Issue
	StoryPoints int
}

// GroupBacklog partitions issues into one group per non-completed sprint
// (active sprints first, then planning, each in creation order) plus a
// residual "Backlog" group for issues with no sprint. Issues attached to
// a completed sprint stay out of the backlog view entirely. Every other
// issue lands in exactly one group.
func GroupBacklog(issues []models.Issue, sprints []models.Sprint) []Group {
	var groups []Group
	for _, wantStatus := range []string{"active", "planning"} {
		for i := range sprints {
			if sprints[i].Status != wantStatus {
				continue
			}
			groups = append(groups, Group{Sprint: &sprints[i], Name: sprints[i].Name})
		}
	}
	backlog := Group{Name: "Backlog"}

	completed := make(map[uint]bool)
	for _, s := range sprints {
		if s.Status == "completed" {
			completed[s.ID] = true
		}
	}

	for _, iss := range issues {
		if iss.SprintID == nil {
			backlog.Issues = append(backlog.Issues, iss)
			continue
		}
		if completed[*iss.SprintID] {
			continue
		}
		for gi := range groups {
			if groups[gi].Sprint != nil && groups[gi].Sprint.ID == *iss.SprintID {
				groups[gi].Issues = append(groups[gi].Issues, iss)
				break
			}
		}
	}

	groups = append(groups, backlog)
	for gi := range groups {
		total := 0
		for _, iss := range groups[gi].Issues {
			if iss.StoryPoints != nil {
				total += *iss.StoryPoints
			}
		}
		groups[gi].StoryPoints = total
	}
	return groups
}

// Progress summarizes an epic's child completion.
type Progress struct {
	Total   int
	Done    int
	Percent int // 0 when Total is 0; render "no child issues" instead
}

// EpicProgress computes the done-child rollup for an epic over the full
// issue snapshot.
func EpicProgress(epic models.Issue, issues []models.Issue) Progress {
	var p Progress
	for _, iss := range issues {
		if iss.ParentID == nil || *iss.ParentID != epic.ID {
			continue
		}
		p.Total++
		if iss.Status == enums.StatusDone {
			p.Done++
		}
	}
	if p.Total > 0 {
		p.Percent = int(math.Round(100 * float64(p.Done) / float64(p.Total)))
	}
	return p
}

// Bar is the horizontal geometry of one roadmap row, in percent of the
// visible window.
type Bar struct {
	Unscheduled bool
	LeftPct     float64
	WidthPct    float64
}

// minWidthPct keeps zero-duration items visible on the timeline.
const minWidthPct = 2.0

// defaultSpan is the synthesized duration when only a start date exists.
const defaultSpan = 14 * 24 * time.Hour

// BarGeometry computes the roadmap bar for an issue inside the visible
// window. Issues with neither date are unscheduled; a missing start is
// synthesized as now, a missing end as start plus fourteen days. Offsets
// clamp to the window.
func BarGeometry(iss models.Issue, windowStart, windowEnd, now time.Time) Bar {
	if iss.StartDate == nil && iss.DueDate == nil {
		return Bar{Unscheduled: true}
	}

	var start, end time.Time
	switch {
	case iss.StartDate == nil:
		start = now
		end = *iss.DueDate
	case iss.DueDate == nil:
		start = *iss.StartDate
		end = start.Add(defaultSpan)
	default:
		start = *iss.StartDate
		end = *iss.DueDate
	}

	windowDays := windowEnd.Sub(windowStart).Hours() / 24
	if windowDays <= 0 {
		return Bar{Unscheduled: true}
	}

	startDays := clamp(start.Sub(windowStart).Hours()/24, 0, windowDays)
	endDays := clamp(end.Sub(windowStart).Hours()/24, 0, windowDays)
	if endDays < startDays {
		endDays = startDays
	}

	left := 100 * startDays / windowDays
	width := 100 * (endDays - startDays) / windowDays
	if width < minWidthPct {
		width = minWidthPct
	}
	return Bar{LeftPct: left, WidthPct: width}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Filter is a conjunctive issue filter: an issue matches only when it
// matches every non-empty criterion.
type Filter struct {
	Type     string
	Status   string
	Priority string
	// Assignee is a user ID as text, or "unassigned" to match issues
	// with no assignee.
	Assignee string
	// Text matches case-insensitively against the title or the display
	// key (e.g. "WEBS-17").
	Text string
}

// Matches applies the filter to one issue. projectKey is needed to build
// the display key for text search.
func (f Filter) Matches(iss models.Issue, projectKey string) bool {
	if f.Type != "" && iss.Type != f.Type {
		return false
	}
	if f.Status != "" && iss.Status != f.Status {
		return false
	}
	if f.Priority != "" && iss.Priority != f.Priority {
		return false
	}
	if f.Assignee != "" {
		if f.Assignee == "unassigned" {
			if iss.AssigneeID != nil {
				return false
			}
		} else if iss.AssigneeID == nil || strconv.FormatUint(uint64(*iss.AssigneeID), 10) != f.Assignee {
			return false
		}
	}
	if f.Text != "" {
		needle := strings.ToLower(f.Text)
		title := strings.ToLower(iss.Title)
		key := strings.ToLower(models.DisplayKey(projectKey, iss.IssueNumber))
		if !strings.Contains(title, needle) && !strings.Contains(key, needle) {
			return false
		}
	}
	return true
}

// Apply filters a snapshot down to the matching issues.
func (f Filter) Apply(issues []models.Issue, projectKey string) []models.Issue {
	out := make([]models.Issue, 0, len(issues))
	for _, iss := range issues {
		if f.Matches(iss, projectKey) {
			out = append(out, iss)
		}
	}
	return out
}
