// Package issue provides issue lifecycle operations.
package issue

import (
	"errors"
	"fmt"
	"time"

	"github.com/zulandar/waybill/internal/apperr"
	"github.com/zulandar/waybill/internal/enums"
	"github.com/zulandar/waybill/internal/models"
	"github.com/zulandar/waybill/internal/workflow"
	"gorm.io/gorm"
)

// Story point bounds enforced at the service boundary.
const (
	MinStoryPoints = 0
	MaxStoryPoints = 100
)

// CreateOpts holds parameters for creating a new issue. The issue number
// is always assigned server-side.
type CreateOpts struct {
	ProjectID        uint
	Title            string
	Description      string
	Type             string // epic, story, task, bug, sub_task
	Priority         string // highest .. lowest
	Status           string // defaults to backlog
	AssigneeID       *uint
	ReporterID       *uint
	ParentID         *uint
	SprintID         *uint
	StoryPoints      *int
	OriginalEstimate int // minutes
	StartDate        *time.Time
	DueDate          *time.Time
	SortOrder        int
	SourceRef        string
}

// ListFilters holds optional filters for listing issues.
type ListFilters struct {
	ProjectID  uint
	SprintID   *uint
	Backlog    bool // only issues with no sprint
	Status     string
	Type       string
	Priority   string
	AssigneeID *uint
	Unassigned bool
}

// Create creates a new issue, assigning the next per-project issue number
// inside a transaction so numbers stay monotonic and are never reused.
func Create(db *gorm.DB, opts CreateOpts) (*models.Issue, error) {
	if err := validateCreate(db, &opts); err != nil {
		return nil, err
	}

	iss := models.Issue{
		ProjectID:        opts.ProjectID,
		Title:            opts.Title,
		Description:      opts.Description,
		Type:             opts.Type,
		Priority:         opts.Priority,
		Status:           opts.Status,
		AssigneeID:       opts.AssigneeID,
		ReporterID:       opts.ReporterID,
		ParentID:         opts.ParentID,
		SprintID:         opts.SprintID,
		StoryPoints:      opts.StoryPoints,
		OriginalEstimate: opts.OriginalEstimate,
		TimeRemaining:    opts.OriginalEstimate,
		StartDate:        opts.StartDate,
		DueDate:          opts.DueDate,
		SortOrder:        opts.SortOrder,
		SourceRef:        opts.SourceRef,
	}

	err := db.Transaction(func(tx *gorm.DB) error {
		var maxNumber int
		err := tx.Model(&models.Issue{}).
			Where("project_id = ?", opts.ProjectID).
			Select("COALESCE(MAX(issue_number), 0)").
			Scan(&maxNumber).Error
		if err != nil {
			return fmt.Errorf("issue: next number for project %d: %w", opts.ProjectID, err)
		}
		iss.IssueNumber = maxNumber + 1
		if err := tx.Create(&iss).Error; err != nil {
			return fmt.Errorf("issue: create: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &iss, nil
}

func validateCreate(db *gorm.DB, opts *CreateOpts) error {
	if opts.Title == "" {
		return fmt.Errorf("issue: title is required: %w", apperr.ErrInvalid)
	}
	if opts.Type == "" {
		opts.Type = "task"
	}
	if !enums.ValidIssueType(opts.Type) {
		return fmt.Errorf("issue: unknown type %q: %w", opts.Type, apperr.ErrInvalid)
	}
	if opts.Priority == "" {
		opts.Priority = "medium"
	}
	if !enums.ValidPriority(opts.Priority) {
		return fmt.Errorf("issue: unknown priority %q: %w", opts.Priority, apperr.ErrInvalid)
	}
	if opts.Status == "" {
		opts.Status = enums.StatusBacklog
	}
	if !enums.ValidIssueStatus(opts.Status) {
		return fmt.Errorf("issue: unknown status %q: %w", opts.Status, apperr.ErrInvalid)
	}
	if opts.StoryPoints != nil && (*opts.StoryPoints < MinStoryPoints || *opts.StoryPoints > MaxStoryPoints) {
		return fmt.Errorf("issue: story points %d outside %d-%d: %w", *opts.StoryPoints, MinStoryPoints, MaxStoryPoints, apperr.ErrInvalid)
	}
	if opts.OriginalEstimate < 0 {
		return fmt.Errorf("issue: negative estimate: %w", apperr.ErrInvalid)
	}

	var count int64
	if err := db.Model(&models.Project{}).Where("id = ?", opts.ProjectID).Count(&count).Error; err != nil {
		return fmt.Errorf("issue: check project %d: %w", opts.ProjectID, err)
	}
	if count == 0 {
		return fmt.Errorf("project %d: %w", opts.ProjectID, apperr.ErrNotFound)
	}

	if opts.ParentID != nil {
		var parent models.Issue
		if err := db.First(&parent, *opts.ParentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("parent issue %d: %w", *opts.ParentID, apperr.ErrNotFound)
			}
			return fmt.Errorf("issue: check parent %d: %w", *opts.ParentID, err)
		}
		if parent.ProjectID != opts.ProjectID {
			return fmt.Errorf("issue: parent %d belongs to another project: %w", *opts.ParentID, apperr.ErrInvalid)
		}
	}

	if opts.SprintID != nil {
		var sprint models.Sprint
		if err := db.First(&sprint, *opts.SprintID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("sprint %d: %w", *opts.SprintID, apperr.ErrNotFound)
			}
			return fmt.Errorf("issue: check sprint %d: %w", *opts.SprintID, err)
		}
		if sprint.ProjectID != opts.ProjectID {
			return fmt.Errorf("issue: sprint %d belongs to another project: %w", *opts.SprintID, apperr.ErrInvalid)
		}
	}
	return nil
}

// Get retrieves an issue by ID.
func Get(db *gorm.DB, id uint) (*models.Issue, error) {
	var iss models.Issue
	if err := db.First(&iss, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("issue %d: %w", id, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("issue: get %d: %w", id, err)
	}
	return &iss, nil
}

// GetByKey resolves a display key like "WEBS-17" to its issue.
func GetByKey(db *gorm.DB, projectKey string, number int) (*models.Issue, error) {
	var p models.Project
	if err := db.Where("`key` = ?", projectKey).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("project %q: %w", projectKey, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("issue: resolve project %q: %w", projectKey, err)
	}
	var iss models.Issue
	if err := db.Where("project_id = ? AND issue_number = ?", p.ID, number).First(&iss).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("issue %s-%d: %w", projectKey, number, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("issue: get %s-%d: %w", projectKey, number, err)
	}
	return &iss, nil
}

// List returns issues matching the given filters, ordered by manual sort
// order then creation time.
func List(db *gorm.DB, filters ListFilters) ([]models.Issue, error) {
	q := db.Model(&models.Issue{})

	if filters.ProjectID != 0 {
		q = q.Where("project_id = ?", filters.ProjectID)
	}
	if filters.Backlog {
		q = q.Where("sprint_id IS NULL")
	} else if filters.SprintID != nil {
		q = q.Where("sprint_id = ?", *filters.SprintID)
	}
	if filters.Status != "" {
		q = q.Where("status = ?", filters.Status)
	}
	if filters.Type != "" {
		q = q.Where("type = ?", filters.Type)
	}
	if filters.Priority != "" {
		q = q.Where("priority = ?", filters.Priority)
	}
	if filters.Unassigned {
		q = q.Where("assignee_id IS NULL")
	} else if filters.AssigneeID != nil {
		q = q.Where("assignee_id = ?", *filters.AssigneeID)
	}

	var issues []models.Issue
	if err := q.Order("sort_order ASC, created_at ASC").Find(&issues).Error; err != nil {
		return nil, fmt.Errorf("issue: list: %w", err)
	}
	return issues, nil
}

// immutableFields may never appear in an update set.
var immutableFields = map[string]bool{
	"id":           true,
	"project_id":   true,
	"issue_number": true,
	"created_at":   true,
	"source_ref":   true,
}

// Update applies a partial field update. Enum fields are validated, a
// status change must pass the project workflow, UpdatedAt is always
// refreshed, and each changed field is recorded in the activity log.
// actorID attributes the change and may be nil.
func Update(db *gorm.DB, id uint, actorID *uint, updates map[string]interface{}) (*models.Issue, error) {
	for f := range immutableFields {
		if _, ok := updates[f]; ok {
			return nil, fmt.Errorf("issue: field %q is immutable: %w", f, apperr.ErrInvalid)
		}
	}

	iss, err := Get(db, id)
	if err != nil {
		return nil, err
	}

	if err := validateUpdates(db, iss, updates); err != nil {
		return nil, err
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		changes := diffForLog(iss, updates)
		if err := tx.Model(&models.Issue{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return fmt.Errorf("issue: update %d: %w", id, err)
		}
		// Updates with a map skips gorm's auto-timestamps when the map
		// omits it, so refresh explicitly.
		if _, ok := updates["updated_at"]; !ok {
			if err := tx.Model(&models.Issue{}).Where("id = ?", id).Update("updated_at", time.Now()).Error; err != nil {
				return fmt.Errorf("issue: touch %d: %w", id, err)
			}
		}
		for _, ch := range changes {
			entry := models.ActivityLog{
				IssueID:  id,
				UserID:   actorID,
				Field:    ch.field,
				OldValue: ch.oldValue,
				NewValue: ch.newValue,
			}
			// Activity is best-effort but shares the transaction so a
			// failed update leaves no stray rows.
			if err := tx.Create(&entry).Error; err != nil {
				return fmt.Errorf("issue: log %s change: %w", ch.field, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	updated, err := Get(db, id)
	if err != nil {
		return nil, err
	}

	if newAssignee, ok := updates["assignee_id"]; ok {
		notifyAssignment(db, updated, newAssignee)
	}
	return updated, nil
}

func validateUpdates(db *gorm.DB, iss *models.Issue, updates map[string]interface{}) error {
	if t, ok := stringField(updates, "type"); ok && !enums.ValidIssueType(t) {
		return fmt.Errorf("issue: unknown type %q: %w", t, apperr.ErrInvalid)
	}
	if p, ok := stringField(updates, "priority"); ok && !enums.ValidPriority(p) {
		return fmt.Errorf("issue: unknown priority %q: %w", p, apperr.ErrInvalid)
	}
	if sp, ok := updates["story_points"]; ok && sp != nil {
		points, ok := toInt(sp)
		if !ok || points < MinStoryPoints || points > MaxStoryPoints {
			return fmt.Errorf("issue: story points outside %d-%d: %w", MinStoryPoints, MaxStoryPoints, apperr.ErrInvalid)
		}
	}
	if s, ok := stringField(updates, "status"); ok {
		if !enums.ValidIssueStatus(s) {
			return fmt.Errorf("issue: unknown status %q: %w", s, apperr.ErrInvalid)
		}
		if s != iss.Status {
			allowed, err := workflow.Allowed(db, iss.ProjectID, iss.Status, s)
			if err != nil {
				return err
			}
			if !allowed {
				return fmt.Errorf("issue: transition %s -> %s is not allowed by the project workflow: %w", iss.Status, s, apperr.ErrConflict)
			}
		}
	}
	if sid, ok := updates["sprint_id"]; ok && sid != nil {
		sprintID, ok := toUint(sid)
		if !ok {
			return fmt.Errorf("issue: bad sprint reference: %w", apperr.ErrInvalid)
		}
		var sprint models.Sprint
		if err := db.First(&sprint, sprintID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("sprint %d: %w", sprintID, apperr.ErrNotFound)
			}
			return fmt.Errorf("issue: check sprint %d: %w", sprintID, err)
		}
		if sprint.ProjectID != iss.ProjectID {
			return fmt.Errorf("issue: sprint %d belongs to another project: %w", sprintID, apperr.ErrInvalid)
		}
	}
	return nil
}

// Delete removes an issue and its owned rows. Children of a deleted issue
// are detached, not deleted.
func Delete(db *gorm.DB, id uint) error {
	if _, err := Get(db, id); err != nil {
		return err
	}

	return db.Transaction(func(tx *gorm.DB) error {
		owned := []interface{}{
			&models.Comment{}, &models.WorkLog{}, &models.Attachment{},
			&models.Watcher{}, &models.ActivityLog{}, &models.IssueLabel{},
			&models.IssueComponent{}, &models.Notification{},
		}
		for _, m := range owned {
			if err := tx.Where("issue_id = ?", id).Delete(m).Error; err != nil {
				return fmt.Errorf("issue: cascade %T: %w", m, err)
			}
		}
		if err := tx.Where("source_id = ? OR target_id = ?", id, id).Delete(&models.IssueLink{}).Error; err != nil {
			return fmt.Errorf("issue: cascade links: %w", err)
		}
		if err := tx.Model(&models.Issue{}).Where("parent_id = ?", id).Update("parent_id", nil).Error; err != nil {
			return fmt.Errorf("issue: detach children of %d: %w", id, err)
		}
		if err := tx.Delete(&models.Issue{}, id).Error; err != nil {
			return fmt.Errorf("issue: delete %d: %w", id, err)
		}
		return nil
	})
}

// LogWork records minutes spent against an issue, growing TimeSpent and
// shrinking TimeRemaining, floored at zero.
func LogWork(db *gorm.DB, issueID, userID uint, minutes int, note string) (*models.WorkLog, error) {
	if minutes <= 0 {
		return nil, fmt.Errorf("issue: worklog minutes must be positive: %w", apperr.ErrInvalid)
	}
	iss, err := Get(db, issueID)
	if err != nil {
		return nil, err
	}

	wl := models.WorkLog{IssueID: issueID, UserID: userID, Minutes: minutes, Note: note}
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&wl).Error; err != nil {
			return fmt.Errorf("issue: create worklog: %w", err)
		}
		remaining := iss.TimeRemaining - minutes
		if remaining < 0 {
			remaining = 0
		}
		updates := map[string]interface{}{
			"time_spent":     iss.TimeSpent + minutes,
			"time_remaining": remaining,
			"updated_at":     time.Now(),
		}
		if err := tx.Model(&models.Issue{}).Where("id = ?", issueID).Updates(updates).Error; err != nil {
			return fmt.Errorf("issue: apply worklog to %d: %w", issueID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &wl, nil
}

// notifyAssignment writes an inbox notification for a newly assigned
// user. Best-effort: failures are ignored, the update already succeeded.
func notifyAssignment(db *gorm.DB, iss *models.Issue, newAssignee interface{}) {
	assigneeID, ok := toUint(newAssignee)
	if !ok || assigneeID == 0 {
		return
	}
	n := models.Notification{
		UserID:  assigneeID,
		IssueID: &iss.ID,
		Kind:    "assigned",
		Message: fmt.Sprintf("You were assigned %q", iss.Title),
	}
	db.Create(&n)
}
