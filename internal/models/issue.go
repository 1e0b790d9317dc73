package models

import (
	"fmt"
	"time"
)

// Issue is the core work item in Waybill.
type Issue struct {
	ID          uint   `gorm:"primaryKey"`
	ProjectID   uint   `gorm:"not null;index;uniqueIndex:uniq_project_issue_number"`
	IssueNumber int    `gorm:"not null;uniqueIndex:uniq_project_issue_number"`
	Title       string `gorm:"not null"`
	Description string `gorm:"type:text"`
	Type        string `gorm:"size:16;default:task"`
	Priority    string `gorm:"size:16;default:medium"`
	Status      string `gorm:"size:16;default:backlog;index"`
	AssigneeID  *uint
	ReporterID  *uint
	ParentID    *uint
	SprintID    *uint `gorm:"index"`
	StoryPoints *int

	FixVersionID     *uint
	AffectsVersionID *uint

	// Time tracking, all integer minutes.
	OriginalEstimate int `gorm:"default:0"`
	TimeSpent        int `gorm:"default:0"`
	TimeRemaining    int `gorm:"default:0"`

	StartDate *time.Time
	DueDate   *time.Time
	SortOrder int `gorm:"default:0"`

	// SourceRef marks issues imported from an external tracker,
	// e.g. "github:owner/repo#42". Used for idempotent re-imports.
	SourceRef string `gorm:"size:128;index"`

	CreatedAt time.Time
	UpdatedAt time.Time

	Parent   *Issue  `gorm:"foreignKey:ParentID"`
	Children []Issue `gorm:"foreignKey:ParentID"`
	Project  Project `gorm:"foreignKey:ProjectID"`
}

// DisplayKey composes the human-facing issue key, e.g. "WEBS-17".
func DisplayKey(projectKey string, issueNumber int) string {
	return fmt.Sprintf("%s-%d", projectKey, issueNumber)
}

// IssueLink relates two issues (blocks, relates_to, duplicates).
type IssueLink struct {
	ID        uint   `gorm:"primaryKey"`
	SourceID  uint   `gorm:"not null;index"`
	TargetID  uint   `gorm:"not null;index"`
	LinkType  string `gorm:"size:16;default:relates_to"`
	CreatedAt time.Time

	Source Issue `gorm:"foreignKey:SourceID"`
	Target Issue `gorm:"foreignKey:TargetID"`
}
