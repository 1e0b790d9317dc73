package models

import "time"

// Label is a project-scoped tag, many-to-many with issues.
type Label struct {
	ID        uint   `gorm:"primaryKey"`
	ProjectID uint   `gorm:"not null;index"`
	Name      string `gorm:"size:64;not null"`
	Color     string `gorm:"size:16"`
	CreatedAt time.Time
}

// IssueLabel joins issues to labels.
type IssueLabel struct {
	IssueID uint `gorm:"primaryKey"`
	LabelID uint `gorm:"primaryKey"`
}

// Component is a project subdivision (e.g. "api", "billing").
type Component struct {
	ID          uint   `gorm:"primaryKey"`
	ProjectID   uint   `gorm:"not null;index"`
	Name        string `gorm:"size:64;not null"`
	Description string `gorm:"type:text"`
	CreatedAt   time.Time
}

// IssueComponent joins issues to components.
type IssueComponent struct {
	IssueID     uint `gorm:"primaryKey"`
	ComponentID uint `gorm:"primaryKey"`
}

// Version is a project release marker; issues point at it via
// FixVersionID or AffectsVersionID.
type Version struct {
	ID          uint   `gorm:"primaryKey"`
	ProjectID   uint   `gorm:"not null;index"`
	Name        string `gorm:"size:64;not null"`
	Description string `gorm:"type:text"`
	Status      string `gorm:"size:16;default:unreleased"`
	ReleaseDate *time.Time
	CreatedAt   time.Time
}
