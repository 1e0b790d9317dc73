// Package enums defines the closed value sets used across Waybill and
// their display metadata.
package enums

// Meta holds display metadata for an enum value.
type Meta struct {
	Label string
	Color string
}

// neutralColor is used when an unknown key is looked up.
const neutralColor = "#6b778c"

// Issue statuses, in board-column order. Backlog is a status but not a
// visible board column.
const (
	StatusBacklog    = "backlog"
	StatusTodo       = "todo"
	StatusInProgress = "in_progress"
	StatusInReview   = "in_review"
	StatusDone       = "done"
)

// IssueStatuses maps each status to its display metadata.
var IssueStatuses = map[string]Meta{
	StatusBacklog:    {Label: "Backlog", Color: "#6b778c"},
	StatusTodo:       {Label: "To Do", Color: "#42526e"},
	StatusInProgress: {Label: "In Progress", Color: "#0052cc"},
	StatusInReview:   {Label: "In Review", Color: "#5243aa"},
	StatusDone:       {Label: "Done", Color: "#00875a"},
}

// statusOrder is the canonical ordering of all statuses.
var statusOrder = []string{StatusBacklog, StatusTodo, StatusInProgress, StatusInReview, StatusDone}

// IssueTypes maps each issue type to its display metadata.
var IssueTypes = map[string]Meta{
	"epic":     {Label: "Epic", Color: "#904ee2"},
	"story":    {Label: "Story", Color: "#36b37e"},
	"task":     {Label: "Task", Color: "#4bade8"},
	"bug":      {Label: "Bug", Color: "#e5493a"},
	"sub_task": {Label: "Sub-task", Color: "#4bade8"},
}

// Priorities maps each priority to its display metadata.
var Priorities = map[string]Meta{
	"highest": {Label: "Highest", Color: "#cd1316"},
	"high":    {Label: "High", Color: "#e9494a"},
	"medium":  {Label: "Medium", Color: "#e97f33"},
	"low":     {Label: "Low", Color: "#2d8738"},
	"lowest":  {Label: "Lowest", Color: "#57a55a"},
}

// LinkTypes maps each issue link type to its display metadata.
var LinkTypes = map[string]Meta{
	"blocks":     {Label: "Blocks", Color: "#e5493a"},
	"blocked_by": {Label: "Blocked by", Color: "#e5493a"},
	"relates_to": {Label: "Relates to", Color: "#4bade8"},
	"duplicates": {Label: "Duplicates", Color: "#6b778c"},
}

// SprintStatuses maps each sprint lifecycle state to its display metadata.
var SprintStatuses = map[string]Meta{
	"planning":  {Label: "Planning", Color: "#6b778c"},
	"active":    {Label: "Active", Color: "#0052cc"},
	"completed": {Label: "Completed", Color: "#00875a"},
}

// VersionStatuses maps each release state to its display metadata.
var VersionStatuses = map[string]Meta{
	"unreleased": {Label: "Unreleased", Color: "#6b778c"},
	"released":   {Label: "Released", Color: "#00875a"},
	"archived":   {Label: "Archived", Color: "#42526e"},
}

// ProjectRoles maps each membership role to its display metadata.
var ProjectRoles = map[string]Meta{
	"admin":  {Label: "Administrator", Color: "#0052cc"},
	"member": {Label: "Member", Color: "#36b37e"},
	"viewer": {Label: "Viewer", Color: "#6b778c"},
}

// Lookup returns display metadata for key in the given registry. Unknown
// keys fall back to the raw key with a neutral color; Lookup is total and
// never panics.
func Lookup(registry map[string]Meta, key string) Meta {
	if m, ok := registry[key]; ok {
		return m
	}
	return Meta{Label: key, Color: neutralColor}
}

// BoardColumns returns the visible board columns in display order. This
// excludes backlog, which is browsed through the backlog view instead.
func BoardColumns() []string {
	cols := make([]string, 0, len(statusOrder)-1)
	for _, s := range statusOrder {
		if s != StatusBacklog {
			cols = append(cols, s)
		}
	}
	return cols
}

// AllStatuses returns every issue status in canonical order.
func AllStatuses() []string {
	out := make([]string, len(statusOrder))
	copy(out, statusOrder)
	return out
}

// ValidIssueStatus reports whether s is a known issue status.
func ValidIssueStatus(s string) bool {
	_, ok := IssueStatuses[s]
	return ok
}

// ValidIssueType reports whether t is a known issue type.
func ValidIssueType(t string) bool {
	_, ok := IssueTypes[t]
	return ok
}

// ValidPriority reports whether p is a known priority.
func ValidPriority(p string) bool {
	_, ok := Priorities[p]
	return ok
}

// ValidLinkType reports whether lt is a known link type.
func ValidLinkType(lt string) bool {
	_, ok := LinkTypes[lt]
	return ok
}

// ValidProjectRole reports whether r is a known membership role.
func ValidProjectRole(r string) bool {
	_, ok := ProjectRoles[r]
	return ok
}
