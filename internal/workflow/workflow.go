// Package workflow manages the per-project matrix of allowed status
// transitions. Storage is sparse: only allowed (from, to) pairs exist as
// rows. A project with no rows falls back to the default of every
// from != to pair being allowed; once any pair is configured, absent
// pairs are disallowed.
package workflow

import (
	"fmt"

	"github.com/zulandar/waybill/internal/apperr"
	"github.com/zulandar/waybill/internal/enums"
	"github.com/zulandar/waybill/internal/models"
	"gorm.io/gorm"
)

// Pair is one allowed status transition.
type Pair struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Allowed reports whether the projectID may move an issue from one status
// to another. Self-transitions are never allowed.
func Allowed(db *gorm.DB, projectID uint, from, to string) (bool, error) {
	if from == to {
		return false, nil
	}
	if !enums.ValidIssueStatus(from) || !enums.ValidIssueStatus(to) {
		return false, nil
	}

	var count int64
	if err := db.Model(&models.WorkflowTransition{}).Where("project_id = ?", projectID).Count(&count).Error; err != nil {
		return false, fmt.Errorf("workflow: count rows for project %d: %w", projectID, err)
	}
	if count == 0 {
		// No configured workflow: every distinct pair is permitted.
		return true, nil
	}

	var match int64
	err := db.Model(&models.WorkflowTransition{}).
		Where("project_id = ? AND from_status = ? AND to_status = ?", projectID, from, to).
		Count(&match).Error
	if err != nil {
		return false, fmt.Errorf("workflow: look up %s->%s for project %d: %w", from, to, projectID, err)
	}
	return match > 0, nil
}

// Pairs returns the configured allow-list for a project, empty when the
// project uses the implicit default.
func Pairs(db *gorm.DB, projectID uint) ([]Pair, error) {
	var rows []models.WorkflowTransition
	err := db.Where("project_id = ?", projectID).
		Order("from_status ASC, to_status ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("workflow: list for project %d: %w", projectID, err)
	}
	pairs := make([]Pair, len(rows))
	for i, r := range rows {
		pairs[i] = Pair{From: r.FromStatus, To: r.ToStatus}
	}
	return pairs, nil
}

// Replace swaps the project's allow-list for the given pairs in one
// transaction. Passing no pairs removes the configured workflow and
// restores the implicit default.
func Replace(db *gorm.DB, projectID uint, pairs []Pair) error {
	seen := make(map[Pair]bool, len(pairs))
	for _, p := range pairs {
		if p.From == p.To {
			return fmt.Errorf("workflow: self-transition %s->%s is not allowed: %w", p.From, p.To, apperr.ErrInvalid)
		}
		if !enums.ValidIssueStatus(p.From) || !enums.ValidIssueStatus(p.To) {
			return fmt.Errorf("workflow: unknown status in %s->%s: %w", p.From, p.To, apperr.ErrInvalid)
		}
		if seen[p] {
			return fmt.Errorf("workflow: duplicate pair %s->%s: %w", p.From, p.To, apperr.ErrInvalid)
		}
		seen[p] = true
	}

	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("project_id = ?", projectID).Delete(&models.WorkflowTransition{}).Error; err != nil {
			return fmt.Errorf("workflow: clear project %d: %w", projectID, err)
		}
		for _, p := range pairs {
			row := models.WorkflowTransition{ProjectID: projectID, FromStatus: p.From, ToStatus: p.To}
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("workflow: store %s->%s: %w", p.From, p.To, err)
			}
		}
		return nil
	})
}

// Matrix materializes the dense grid for the editor: every (from, to)
// status combination mapped to whether it is currently allowed. The grid
// is derived; the sparse pair list stays canonical.
func Matrix(db *gorm.DB, projectID uint) (map[string]map[string]bool, error) {
	statuses := enums.AllStatuses()
	grid := make(map[string]map[string]bool, len(statuses))

	pairs, err := Pairs(db, projectID)
	if err != nil {
		return nil, err
	}

	allowed := make(map[Pair]bool, len(pairs))
	for _, p := range pairs {
		allowed[p] = true
	}
	useDefault := len(pairs) == 0

	for _, from := range statuses {
		grid[from] = make(map[string]bool, len(statuses))
		for _, to := range statuses {
			switch {
			case from == to:
				grid[from][to] = false
			case useDefault:
				grid[from][to] = true
			default:
				grid[from][to] = allowed[Pair{From: from, To: to}]
			}
		}
	}
	return grid, nil
}
