package models

import "time"

// Comment is an append-only note on an issue.
type Comment struct {
	ID        uint   `gorm:"primaryKey"`
	IssueID   uint   `gorm:"not null;index"`
	AuthorID  uint   `gorm:"not null"`
	Body      string `gorm:"type:text;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// WorkLog records time spent against an issue, in integer minutes.
type WorkLog struct {
	ID        uint   `gorm:"primaryKey"`
	IssueID   uint   `gorm:"not null;index"`
	UserID    uint   `gorm:"not null"`
	Minutes   int    `gorm:"not null"`
	Note      string `gorm:"type:text"`
	CreatedAt time.Time
}

// Attachment stores file metadata for an issue. Blob storage is external.
type Attachment struct {
	ID          uint   `gorm:"primaryKey"`
	IssueID     uint   `gorm:"not null;index"`
	UploaderID  uint   `gorm:"not null"`
	Filename    string `gorm:"size:255;not null"`
	ContentType string `gorm:"size:128"`
	Size        int64  `gorm:"default:0"`
	CreatedAt   time.Time
}

// Watcher subscribes a user to an issue's notifications.
type Watcher struct {
	IssueID   uint `gorm:"primaryKey"`
	UserID    uint `gorm:"primaryKey"`
	CreatedAt time.Time
}

// Notification is a per-user inbox entry.
type Notification struct {
	ID        uint `gorm:"primaryKey"`
	UserID    uint `gorm:"not null;index"`
	IssueID   *uint
	Kind      string `gorm:"size:32"`
	Message   string `gorm:"type:text"`
	Read      bool   `gorm:"default:false"`
	CreatedAt time.Time
}

// ActivityLog records a field change on an issue, best-effort.
type ActivityLog struct {
	ID        uint `gorm:"primaryKey"`
	IssueID   uint `gorm:"not null;index"`
	UserID    *uint
	Field     string `gorm:"size:64;not null"`
	OldValue  string `gorm:"type:text"`
	NewValue  string `gorm:"type:text"`
	CreatedAt time.Time
}

// SavedFilter is a named, reusable issue filter owned by a user.
type SavedFilter struct {
	ID        uint `gorm:"primaryKey"`
	UserID    uint `gorm:"not null;index"`
	ProjectID *uint
	Name      string `gorm:"size:128;not null"`
	Criteria  string `gorm:"type:json"`
	CreatedAt time.Time
}
