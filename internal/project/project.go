// Package project provides project lifecycle and membership operations.
package project

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/zulandar/waybill/internal/apperr"
	"github.com/zulandar/waybill/internal/enums"
	"github.com/zulandar/waybill/internal/models"
	"gorm.io/gorm"
)

// keyRe is the shape of a valid project key.
var keyRe = regexp.MustCompile(`^[A-Z]{2,10}$`)

// letterRe strips everything that is not a letter when deriving a key.
var letterRe = regexp.MustCompile(`[^A-Za-z]`)

// CreateOpts holds parameters for creating a new project.
type CreateOpts struct {
	Name        string
	Key         string // derived from Name when empty
	Description string
	LeadID      *uint
	Color       string
}

// DeriveKey builds a project key from a display name: non-letters
// stripped, uppercased, truncated to four letters. "Website Redesign"
// becomes "WEBS".
func DeriveKey(name string) string {
	letters := strings.ToUpper(letterRe.ReplaceAllString(name, ""))
	if len(letters) > 4 {
		letters = letters[:4]
	}
	return letters
}

// ValidKey reports whether key matches the 2-10 uppercase letter shape.
func ValidKey(key string) bool {
	return keyRe.MatchString(key)
}

// Create creates a new project, deriving the key from the name when none
// is supplied.
func Create(db *gorm.DB, opts CreateOpts) (*models.Project, error) {
	if opts.Name == "" {
		return nil, fmt.Errorf("project: name is required: %w", apperr.ErrInvalid)
	}
	if opts.Key == "" {
		opts.Key = DeriveKey(opts.Name)
	}
	if !ValidKey(opts.Key) {
		return nil, fmt.Errorf("project: key %q must be 2-10 uppercase letters: %w", opts.Key, apperr.ErrInvalid)
	}

	var count int64
	if err := db.Model(&models.Project{}).Where("`key` = ?", opts.Key).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("project: check key %q: %w", opts.Key, err)
	}
	if count > 0 {
		return nil, fmt.Errorf("project: key %q already in use: %w", opts.Key, apperr.ErrConflict)
	}

	p := models.Project{
		Name:        opts.Name,
		Key:         opts.Key,
		Description: opts.Description,
		LeadID:      opts.LeadID,
		Color:       opts.Color,
	}
	if err := db.Create(&p).Error; err != nil {
		return nil, fmt.Errorf("project: create: %w", err)
	}
	return &p, nil
}

// Get retrieves a project by ID.
func Get(db *gorm.DB, id uint) (*models.Project, error) {
	var p models.Project
	if err := db.First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("project %d: %w", id, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("project: get %d: %w", id, err)
	}
	return &p, nil
}

// List returns all projects ordered by name.
func List(db *gorm.DB) ([]models.Project, error) {
	var projects []models.Project
	if err := db.Order("name ASC").Find(&projects).Error; err != nil {
		return nil, fmt.Errorf("project: list: %w", err)
	}
	return projects, nil
}

// Update modifies project fields. The key is immutable after creation.
func Update(db *gorm.DB, id uint, updates map[string]interface{}) (*models.Project, error) {
	if _, ok := updates["key"]; ok {
		return nil, fmt.Errorf("project: key is immutable: %w", apperr.ErrInvalid)
	}
	p, err := Get(db, id)
	if err != nil {
		return nil, err
	}
	if err := db.Model(p).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("project: update %d: %w", id, err)
	}
	return Get(db, id)
}

// Delete removes a project and everything it owns: issues with their
// comments, worklogs, attachments, watchers, activity, links and join
// rows, plus sprints, labels, components, versions, members, workflow
// rows, board config and saved filters. One transaction, all or nothing.
func Delete(db *gorm.DB, id uint) error {
	if _, err := Get(db, id); err != nil {
		return err
	}

	return db.Transaction(func(tx *gorm.DB) error {
		var issueIDs []uint
		if err := tx.Model(&models.Issue{}).Where("project_id = ?", id).Pluck("id", &issueIDs).Error; err != nil {
			return fmt.Errorf("project: collect issues for %d: %w", id, err)
		}

		if len(issueIDs) > 0 {
			perIssue := []interface{}{
				&models.Comment{}, &models.WorkLog{}, &models.Attachment{},
				&models.Watcher{}, &models.ActivityLog{}, &models.IssueLabel{},
				&models.IssueComponent{}, &models.Notification{},
			}
			for _, m := range perIssue {
				if err := tx.Where("issue_id IN ?", issueIDs).Delete(m).Error; err != nil {
					return fmt.Errorf("project: cascade %T: %w", m, err)
				}
			}
			if err := tx.Where("source_id IN ? OR target_id IN ?", issueIDs, issueIDs).Delete(&models.IssueLink{}).Error; err != nil {
				return fmt.Errorf("project: cascade links: %w", err)
			}
			if err := tx.Where("id IN ?", issueIDs).Delete(&models.Issue{}).Error; err != nil {
				return fmt.Errorf("project: delete issues: %w", err)
			}
		}

		perProject := []interface{}{
			&models.Sprint{}, &models.Label{}, &models.Component{},
			&models.Version{}, &models.ProjectMember{},
			&models.WorkflowTransition{}, &models.BoardConfig{},
			&models.SavedFilter{},
		}
		for _, m := range perProject {
			if err := tx.Where("project_id = ?", id).Delete(m).Error; err != nil {
				return fmt.Errorf("project: cascade %T: %w", m, err)
			}
		}

		if err := tx.Delete(&models.Project{}, id).Error; err != nil {
			return fmt.Errorf("project: delete %d: %w", id, err)
		}
		return nil
	})
}

// AddMember adds or updates a user's role in a project.
func AddMember(db *gorm.DB, projectID, userID uint, role string) error {
	if role == "" {
		role = "member"
	}
	if !enums.ValidProjectRole(role) {
		return fmt.Errorf("project: unknown role %q: %w", role, apperr.ErrInvalid)
	}
	if _, err := Get(db, projectID); err != nil {
		return err
	}

	var existing models.ProjectMember
	err := db.Where("project_id = ? AND user_id = ?", projectID, userID).First(&existing).Error
	switch {
	case err == nil:
		if err := db.Model(&existing).Update("role", role).Error; err != nil {
			return fmt.Errorf("project: update member role: %w", err)
		}
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		m := models.ProjectMember{ProjectID: projectID, UserID: userID, Role: role}
		if err := db.Create(&m).Error; err != nil {
			return fmt.Errorf("project: add member: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("project: look up member: %w", err)
	}
}

// RemoveMember drops a user from a project.
func RemoveMember(db *gorm.DB, projectID, userID uint) error {
	res := db.Where("project_id = ? AND user_id = ?", projectID, userID).Delete(&models.ProjectMember{})
	if res.Error != nil {
		return fmt.Errorf("project: remove member: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("project %d member %d: %w", projectID, userID, apperr.ErrNotFound)
	}
	return nil
}

// Members lists a project's memberships.
func Members(db *gorm.DB, projectID uint) ([]models.ProjectMember, error) {
	var members []models.ProjectMember
	if err := db.Where("project_id = ?", projectID).Order("user_id ASC").Find(&members).Error; err != nil {
		return nil, fmt.Errorf("project: list members: %w", err)
	}
	return members, nil
}
