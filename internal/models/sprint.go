package models

import "time"

// Sprint is a time-boxed container of issues with a linear
// planning -> active -> completed lifecycle.
type Sprint struct {
	ID          uint   `gorm:"primaryKey"`
	ProjectID   uint   `gorm:"not null;index"`
	Name        string `gorm:"not null"`
	Goal        string `gorm:"type:text"`
	Status      string `gorm:"size:16;default:planning;index"`
	StartDate   *time.Time
	EndDate     *time.Time
	CompletedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time

	Issues []Issue `gorm:"foreignKey:SprintID"`
}
