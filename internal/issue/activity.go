package issue

import (
	"fmt"
	"time"

	"github.com/zulandar/waybill/internal/models"
)

// fieldChange is one (field, old, new) triple destined for the activity log.
type fieldChange struct {
	field    string
	oldValue string
	newValue string
}

// oldValueFor extracts the current value of a loggable field as a display
// string. Unknown fields return ok=false and are not logged.
var oldValueFor = map[string]func(*models.Issue) string{
	"title":          func(i *models.Issue) string { return i.Title },
	"description":    func(i *models.Issue) string { return i.Description },
	"type":           func(i *models.Issue) string { return i.Type },
	"priority":       func(i *models.Issue) string { return i.Priority },
	"status":         func(i *models.Issue) string { return i.Status },
	"assignee_id":    func(i *models.Issue) string { return uintPtrString(i.AssigneeID) },
	"reporter_id":    func(i *models.Issue) string { return uintPtrString(i.ReporterID) },
	"parent_id":      func(i *models.Issue) string { return uintPtrString(i.ParentID) },
	"sprint_id":      func(i *models.Issue) string { return uintPtrString(i.SprintID) },
	"story_points":   func(i *models.Issue) string { return intPtrString(i.StoryPoints) },
	"fix_version_id": func(i *models.Issue) string { return uintPtrString(i.FixVersionID) },
	"start_date":     func(i *models.Issue) string { return timePtrString(i.StartDate) },
	"due_date":       func(i *models.Issue) string { return timePtrString(i.DueDate) },
}

// diffForLog builds the activity entries for an update set, skipping
// fields whose rendered value did not change.
func diffForLog(iss *models.Issue, updates map[string]interface{}) []fieldChange {
	var changes []fieldChange
	for field, newVal := range updates {
		getter, ok := oldValueFor[field]
		if !ok {
			continue
		}
		oldStr := getter(iss)
		newStr := valueString(newVal)
		if oldStr == newStr {
			continue
		}
		changes = append(changes, fieldChange{field: field, oldValue: oldStr, newValue: newStr})
	}
	return changes
}

func valueString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case *time.Time:
		return timePtrString(t)
	case time.Time:
		return t.Format("2006-01-02")
	case *uint:
		return uintPtrString(t)
	case *int:
		return intPtrString(t)
	default:
		return fmt.Sprint(t)
	}
}

func uintPtrString(v *uint) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(*v)
}

func intPtrString(v *int) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(*v)
}

func timePtrString(v *time.Time) string {
	if v == nil {
		return ""
	}
	return v.Format("2006-01-02")
}

// stringField fetches a string-typed update value.
func stringField(updates map[string]interface{}, key string) (string, bool) {
	v, ok := updates[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// toInt normalizes the numeric types JSON decoding and callers produce.
func toInt(v interface{}) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int64:
		return int(t), true
	case uint:
		return int(t), true
	case float64:
		return int(t), true
	case *int:
		if t == nil {
			return 0, false
		}
		return *t, true
	default:
		return 0, false
	}
}

// toUint normalizes reference IDs from JSON numbers and pointer types.
func toUint(v interface{}) (uint, bool) {
	switch t := v.(type) {
	case uint:
		return t, true
	case int:
		if t < 0 {
			return 0, false
		}
		return uint(t), true
	case int64:
		if t < 0 {
			return 0, false
		}
		return uint(t), true
	case float64:
		if t < 0 {
			return 0, false
		}
		return uint(t), true
	case *uint:
		if t == nil {
			return 0, false
		}
		return *t, true
	default:
		return 0, false
	}
}
