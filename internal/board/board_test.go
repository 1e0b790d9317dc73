package board

import (
	"testing"
	"time"

	"github.com/zulandar/waybill/internal/models"
)

func uintPtr(v uint) *uint { return &v }
func intPtr(v int) *int    { return &v }
func timePtr(t time.Time) *time.Time {
	return &t
}

func day(d int) time.Time {
	return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, d)
}

func TestColumns_PartitionCoversAllBoardIssues(t *testing.T) {
	issues := []models.Issue{
		{ID: 1, Status: "todo"},
		{ID: 2, Status: "todo"},
		{ID: 3, Status: "in_progress"},
		{ID: 4, Status: "in_review"},
		{ID: 5, Status: "done"},
	}
	cols := Columns(issues, nil)

	total := 0
	for _, c := range cols {
		total += c.Count()
	}
	if total != len(issues) {
		t.Errorf("sum of column counts = %d, want %d", total, len(issues))
	}

	want := map[string]int{"todo": 2, "in_progress": 1, "in_review": 1, "done": 1}
	for _, c := range cols {
		if c.Count() != want[c.Status] {
			t.Errorf("column %s count = %d, want %d", c.Status, c.Count(), want[c.Status])
		}
	}
}

func TestColumns_WIPLimitAdvisoryOnly(t *testing.T) {
	issues := []models.Issue{
		{ID: 1, Status: "in_progress"},
		{ID: 2, Status: "in_progress"},
		{ID: 3, Status: "in_progress"},
	}
	cols := Columns(issues, map[string]int{"in_progress": 2})

	for _, c := range cols {
		if c.Status != "in_progress" {
			continue
		}
		// All issues stay displayed; the limit only flags.
		if c.Count() != 3 {
			t.Errorf("count = %d, want 3 (WIP limit must not drop issues)", c.Count())
		}
		if !c.OverWIP() {
			t.Error("OverWIP() = false, want true")
		}
	}
}

func TestGroupBacklog_PartitionNoDuplicationNoOmission(t *testing.T) {
	sprints := []models.Sprint{
		{ID: 1, Name: "Sprint 1", Status: "active"},
		{ID: 2, Name: "Sprint 2", Status: "planning"},
	}
	issues := []models.Issue{
		{ID: 1, SprintID: uintPtr(1)},
		{ID: 2, SprintID: uintPtr(1)},
		{ID: 3, SprintID: uintPtr(2)},
		{ID: 4},
		{ID: 5},
	}
	groups := GroupBacklog(issues, sprints)

	seen := map[uint]int{}
	total := 0
	for _, g := range groups {
		for _, iss := range g.Issues {
			seen[iss.ID]++
			total++
		}
	}
	if total != len(issues) {
		t.Errorf("grouped %d issues, want %d", total, len(issues))
	}
	for id, n := range seen {
		if n != 1 {
			t.Errorf("issue %d appears in %d groups", id, n)
		}
	}
}

func TestGroupBacklog_ActiveSprintsFirstThenPlanningThenBacklog(t *testing.T) {
	sprints := []models.Sprint{
		{ID: 1, Name: "Planned", Status: "planning"},
		{ID: 2, Name: "Running", Status: "active"},
	}
	groups := GroupBacklog(nil, sprints)

	if len(groups) != 3 {
		t.Fatalf("groups = %d, want 3", len(groups))
	}
	if groups[0].Name != "Running" || groups[1].Name != "Planned" || groups[2].Name != "Backlog" {
		t.Errorf("group order = %s, %s, %s", groups[0].Name, groups[1].Name, groups[2].Name)
	}
	if groups[2].Sprint != nil {
		t.Error("residual backlog group should have no sprint")
	}
}

func TestGroupBacklog_CompletedSprintIssuesExcluded(t *testing.T) {
	sprints := []models.Sprint{
		{ID: 1, Name: "Done sprint", Status: "completed"},
	}
	issues := []models.Issue{
		{ID: 1, SprintID: uintPtr(1), Status: "done"},
		{ID: 2},
	}
	groups := GroupBacklog(issues, sprints)

	if len(groups) != 1 {
		t.Fatalf("groups = %d, want only the residual backlog", len(groups))
	}
	if len(groups[0].Issues) != 1 || groups[0].Issues[0].ID != 2 {
		t.Errorf("backlog issues = %v, want only issue 2", groups[0].Issues)
	}
}

func TestGroupBacklog_StoryPointSubtotals(t *testing.T) {
	sprints := []models.Sprint{{ID: 1, Name: "Sprint 1", Status: "active"}}
	issues := []models.Issue{
		{ID: 1, SprintID: uintPtr(1), StoryPoints: intPtr(5)},
		{ID: 2, SprintID: uintPtr(1), StoryPoints: intPtr(3)},
		{ID: 3, SprintID: uintPtr(1)}, // nil counts as 0
		{ID: 4, StoryPoints: intPtr(8)},
	}
	groups := GroupBacklog(issues, sprints)

	if groups[0].StoryPoints != 8 {
		t.Errorf("sprint subtotal = %d, want 8", groups[0].StoryPoints)
	}
	if groups[1].StoryPoints != 8 {
		t.Errorf("backlog subtotal = %d, want 8", groups[1].StoryPoints)
	}
}

func TestEpicProgress(t *testing.T) {
	epic := models.Issue{ID: 10, Type: "epic"}
	issues := []models.Issue{
		epic,
		{ID: 11, ParentID: uintPtr(10), Status: "done"},
		{ID: 12, ParentID: uintPtr(10), Status: "done"},
		{ID: 13, ParentID: uintPtr(10), Status: "in_progress"},
		{ID: 14, ParentID: uintPtr(99), Status: "done"}, // other epic
	}
	p := EpicProgress(epic, issues)

	if p.Total != 3 || p.Done != 2 {
		t.Errorf("progress = %d/%d, want 2/3", p.Done, p.Total)
	}
	if p.Percent != 67 {
		t.Errorf("percent = %d, want 67", p.Percent)
	}
}

func TestEpicProgress_NoChildren(t *testing.T) {
	epic := models.Issue{ID: 10, Type: "epic"}
	p := EpicProgress(epic, []models.Issue{epic})

	if p.Total != 0 || p.Percent != 0 {
		t.Errorf("childless epic = %+v, want zero total and percent", p)
	}
}

func TestEpicProgress_PercentBounds(t *testing.T) {
	epic := models.Issue{ID: 1}
	for done := 0; done <= 5; done++ {
		var issues []models.Issue
		for i := 0; i < 5; i++ {
			status := "todo"
			if i < done {
				status = "done"
			}
			issues = append(issues, models.Issue{ID: uint(10 + i), ParentID: uintPtr(1), Status: status})
		}
		p := EpicProgress(epic, issues)
		if p.Percent < 0 || p.Percent > 100 {
			t.Errorf("percent = %d out of bounds with %d done", p.Percent, done)
		}
	}
}

func TestBarGeometry_Unscheduled(t *testing.T) {
	bar := BarGeometry(models.Issue{}, day(0), day(30), day(5))
	if !bar.Unscheduled {
		t.Error("issue with no dates should be unscheduled")
	}
}

func TestBarGeometry_BothDates(t *testing.T) {
	iss := models.Issue{StartDate: timePtr(day(10)), DueDate: timePtr(day(20))}
	bar := BarGeometry(iss, day(0), day(30), day(0))

	if bar.Unscheduled {
		t.Fatal("scheduled issue marked unscheduled")
	}
	if bar.LeftPct < 33.2 || bar.LeftPct > 33.4 {
		t.Errorf("left = %f, want ~33.3", bar.LeftPct)
	}
	if bar.WidthPct < 33.2 || bar.WidthPct > 33.4 {
		t.Errorf("width = %f, want ~33.3", bar.WidthPct)
	}
}

func TestBarGeometry_OnlyDueDateSynthesizesStartNow(t *testing.T) {
	iss := models.Issue{DueDate: timePtr(day(20))}
	bar := BarGeometry(iss, day(0), day(30), day(15))

	if bar.Unscheduled {
		t.Fatal("marked unscheduled")
	}
	if bar.LeftPct != 50 {
		t.Errorf("left = %f, want 50 (start synthesized as now)", bar.LeftPct)
	}
}

func TestBarGeometry_OnlyStartDateSynthesizesFourteenDays(t *testing.T) {
	iss := models.Issue{StartDate: timePtr(day(0))}
	bar := BarGeometry(iss, day(0), day(28), day(0))

	if bar.WidthPct != 50 {
		t.Errorf("width = %f, want 50 (14 of 28 days)", bar.WidthPct)
	}
}

func TestBarGeometry_ClampsToWindow(t *testing.T) {
	iss := models.Issue{StartDate: timePtr(day(-10)), DueDate: timePtr(day(40))}
	bar := BarGeometry(iss, day(0), day(30), day(0))

	if bar.LeftPct != 0 {
		t.Errorf("left = %f, want 0", bar.LeftPct)
	}
	if bar.WidthPct != 100 {
		t.Errorf("width = %f, want 100", bar.WidthPct)
	}
}

func TestBarGeometry_MinimumWidth(t *testing.T) {
	iss := models.Issue{StartDate: timePtr(day(5)), DueDate: timePtr(day(5))}
	bar := BarGeometry(iss, day(0), day(30), day(0))

	if bar.WidthPct != 2 {
		t.Errorf("width = %f, want floor of 2", bar.WidthPct)
	}
}

func TestFilter_ConjunctiveMatch(t *testing.T) {
	iss := models.Issue{
		ID: 1, IssueNumber: 17, Title: "Fix login crash",
		Type: "bug", Status: "in_progress", Priority: "high",
		AssigneeID: uintPtr(4),
	}

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"empty matches", Filter{}, true},
		{"status match", Filter{Status: "in_progress"}, true},
		{"status mismatch", Filter{Status: "done"}, false},
		{"all dimensions", Filter{Type: "bug", Status: "in_progress", Priority: "high", Assignee: "4"}, true},
		{"one dimension off", Filter{Type: "bug", Status: "in_progress", Priority: "low"}, false},
		{"assignee match", Filter{Assignee: "4"}, true},
		{"assignee mismatch", Filter{Assignee: "5"}, false},
		{"unassigned mismatch", Filter{Assignee: "unassigned"}, false},
		{"text in title", Filter{Text: "login"}, true},
		{"text in key", Filter{Text: "webs-17"}, true},
		{"text miss", Filter{Text: "payments"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.filter.Matches(iss, "WEBS")
			if got != tt.want {
				t.Errorf("Matches = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFilter_UnassignedMatchesNilAssignee(t *testing.T) {
	iss := models.Issue{ID: 1, Title: "floating"}
	if !(Filter{Assignee: "unassigned"}).Matches(iss, "WEBS") {
		t.Error("unassigned filter should match nil assignee")
	}
}

func TestFilter_Apply(t *testing.T) {
	issues := []models.Issue{
		{ID: 1, Status: "done", Title: "a"},
		{ID: 2, Status: "in_progress", Title: "b"},
		{ID: 3, Status: "done", Title: "c"},
	}
	got := (Filter{Status: "done"}).Apply(issues, "WEBS")
	if len(got) != 2 {
		t.Fatalf("Apply returned %d issues, want 2", len(got))
	}
	for _, iss := range got {
		if iss.Status != "done" {
			t.Errorf("issue %d status = %s", iss.ID, iss.Status)
		}
	}
}
