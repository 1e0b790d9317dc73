package models

import "time"

// WorkflowTransition is one allowed (from, to) status pair for a project.
// The matrix is stored sparse: only allowed pairs exist as rows. A project
// with no rows uses the implicit default of every from != to pair.
type WorkflowTransition struct {
	ID         uint   `gorm:"primaryKey"`
	ProjectID  uint   `gorm:"not null;index;uniqueIndex:uniq_workflow_pair"`
	FromStatus string `gorm:"size:16;not null;uniqueIndex:uniq_workflow_pair"`
	ToStatus   string `gorm:"size:16;not null;uniqueIndex:uniq_workflow_pair"`
	CreatedAt  time.Time
}

// BoardConfig holds per-project board presentation settings. Presentation
// only; it never affects issue validity.
type BoardConfig struct {
	ID         uint   `gorm:"primaryKey"`
	ProjectID  uint   `gorm:"uniqueIndex;not null"`
	SwimlaneBy string `gorm:"size:16;default:none"`
	// ColumnOrder and WIPLimits are JSON: a string array of statuses and
	// a status -> int map respectively.
	ColumnOrder string `gorm:"type:json"`
	WIPLimits   string `gorm:"type:json"`
	UpdatedAt   time.Time
}
