package models

import "time"

// Project is the top-level container for issues, sprints and metadata.
type Project struct {
	ID          uint   `gorm:"primaryKey"`
	Name        string `gorm:"not null"`
	Key         string `gorm:"size:10;uniqueIndex;not null"`
	Description string `gorm:"type:text"`
	LeadID      *uint
	Color       string `gorm:"size:16"`
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Issues  []Issue         `gorm:"foreignKey:ProjectID"`
	Sprints []Sprint        `gorm:"foreignKey:ProjectID"`
	Members []ProjectMember `gorm:"foreignKey:ProjectID"`
}

// ProjectMember assigns a user a role within a project.
type ProjectMember struct {
	ProjectID uint   `gorm:"primaryKey"`
	UserID    uint   `gorm:"primaryKey"`
	Role      string `gorm:"size:16;default:member"`
	CreatedAt time.Time
}

// User is a minimal account row. Authentication lives outside this service.
type User struct {
	ID          uint   `gorm:"primaryKey"`
	Username    string `gorm:"size:64;uniqueIndex;not null"`
	DisplayName string `gorm:"size:128"`
	Email       string `gorm:"size:128"`
	AvatarColor string `gorm:"size:16"`
	CreatedAt   time.Time
}
