// Package sprint provides the sprint lifecycle: planning -> active ->
// completed, strictly forward.
package sprint

import (
	"errors"
	"fmt"
	"time"

	"github.com/zulandar/waybill/internal/apperr"
	"github.com/zulandar/waybill/internal/enums"
	"github.com/zulandar/waybill/internal/models"
	"gorm.io/gorm"
)

// Sprint lifecycle states.
const (
	StatusPlanning  = "planning"
	StatusActive    = "active"
	StatusCompleted = "completed"
)

// CreateOpts holds parameters for creating a new sprint.
type CreateOpts struct {
	ProjectID uint
	Name      string
	Goal      string
	StartDate *time.Time
	EndDate   *time.Time
}

// Create creates a sprint in planning state.
func Create(db *gorm.DB, opts CreateOpts) (*models.Sprint, error) {
	if opts.Name == "" {
		return nil, fmt.Errorf("sprint: name is required: %w", apperr.ErrInvalid)
	}
	var count int64
	if err := db.Model(&models.Project{}).Where("id = ?", opts.ProjectID).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("sprint: check project %d: %w", opts.ProjectID, err)
	}
	if count == 0 {
		return nil, fmt.Errorf("project %d: %w", opts.ProjectID, apperr.ErrNotFound)
	}
	if opts.StartDate != nil && opts.EndDate != nil && opts.EndDate.Before(*opts.StartDate) {
		return nil, fmt.Errorf("sprint: end date before start date: %w", apperr.ErrInvalid)
	}

	s := models.Sprint{
		ProjectID: opts.ProjectID,
		Name:      opts.Name,
		Goal:      opts.Goal,
		Status:    StatusPlanning,
		StartDate: opts.StartDate,
		EndDate:   opts.EndDate,
	}
	if err := db.Create(&s).Error; err != nil {
		return nil, fmt.Errorf("sprint: create: %w", err)
	}
	return &s, nil
}

// Get retrieves a sprint by ID.
func Get(db *gorm.DB, id uint) (*models.Sprint, error) {
	var s models.Sprint
	if err := db.First(&s, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("sprint %d: %w", id, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("sprint: get %d: %w", id, err)
	}
	return &s, nil
}

// List returns a project's sprints, newest first.
func List(db *gorm.DB, projectID uint) ([]models.Sprint, error) {
	var sprints []models.Sprint
	if err := db.Where("project_id = ?", projectID).Order("created_at DESC").Find(&sprints).Error; err != nil {
		return nil, fmt.Errorf("sprint: list for project %d: %w", projectID, err)
	}
	return sprints, nil
}

// Update modifies name, goal or dates. Status never changes through
// Update; use Start and Complete.
func Update(db *gorm.DB, id uint, updates map[string]interface{}) (*models.Sprint, error) {
	for _, f := range []string{"status", "project_id", "completed_at"} {
		if _, ok := updates[f]; ok {
			return nil, fmt.Errorf("sprint: field %q cannot be set directly: %w", f, apperr.ErrInvalid)
		}
	}
	s, err := Get(db, id)
	if err != nil {
		return nil, err
	}
	if err := db.Model(s).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("sprint: update %d: %w", id, err)
	}
	return Get(db, id)
}

// Start activates a planning sprint. It fails without side effects when
// the sprint is not in planning, or when the project already has an
// active sprint; the single-active invariant is enforced here because
// the schema does not guarantee it.
func Start(db *gorm.DB, id uint) (*models.Sprint, error) {
	err := db.Transaction(func(tx *gorm.DB) error {
		s, err := Get(tx, id)
		if err != nil {
			return err
		}
		if s.Status != StatusPlanning {
			return fmt.Errorf("sprint: cannot start a %s sprint: %w", s.Status, apperr.ErrConflict)
		}

		var active int64
		err = tx.Model(&models.Sprint{}).
			Where("project_id = ? AND status = ?", s.ProjectID, StatusActive).
			Count(&active).Error
		if err != nil {
			return fmt.Errorf("sprint: check active sprints for project %d: %w", s.ProjectID, err)
		}
		if active > 0 {
			return fmt.Errorf("sprint: project %d already has an active sprint: %w", s.ProjectID, apperr.ErrConflict)
		}

		updates := map[string]interface{}{
			"status":     StatusActive,
			"updated_at": time.Now(),
		}
		if s.StartDate == nil {
			updates["start_date"] = time.Now()
		}
		if err := tx.Model(&models.Sprint{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return fmt.Errorf("sprint: start %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return Get(db, id)
}

// Complete finishes an active sprint. Issues not yet done return to the
// backlog (sprint reference cleared); done issues keep the association
// for velocity and burndown history. Completion is irreversible and
// all-or-nothing.
func Complete(db *gorm.DB, id uint) (*models.Sprint, error) {
	err := db.Transaction(func(tx *gorm.DB) error {
		s, err := Get(tx, id)
		if err != nil {
			return err
		}
		if s.Status != StatusActive {
			return fmt.Errorf("sprint: cannot complete a %s sprint: %w", s.Status, apperr.ErrConflict)
		}

		now := time.Now()
		err = tx.Model(&models.Issue{}).
			Where("sprint_id = ? AND status != ?", id, enums.StatusDone).
			Updates(map[string]interface{}{"sprint_id": nil, "updated_at": now}).Error
		if err != nil {
			return fmt.Errorf("sprint: move unfinished issues out of %d: %w", id, err)
		}

		updates := map[string]interface{}{
			"status":       StatusCompleted,
			"completed_at": now,
			"updated_at":   now,
		}
		if err := tx.Model(&models.Sprint{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return fmt.Errorf("sprint: complete %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return Get(db, id)
}

// Velocity sums story points of done issues still attached to a
// completed sprint.
func Velocity(db *gorm.DB, id uint) (int, error) {
	s, err := Get(db, id)
	if err != nil {
		return 0, err
	}
	if s.Status != StatusCompleted {
		return 0, fmt.Errorf("sprint: velocity requires a completed sprint: %w", apperr.ErrConflict)
	}
	var total *int
	err = db.Model(&models.Issue{}).
		Where("sprint_id = ? AND status = ?", id, enums.StatusDone).
		Select("SUM(story_points)").
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("sprint: velocity for %d: %w", id, err)
	}
	if total == nil {
		return 0, nil
	}
	return *total, nil
}
