package db

import (
	"errors"
	"fmt"

	"github.com/zulandar/waybill/internal/models"
	"gorm.io/gorm"
)

// AllModels returns every GORM model for migration, parents before
// children.
func AllModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Project{},
		&models.ProjectMember{},
		&models.Sprint{},
		&models.Issue{},
		&models.IssueLink{},
		&models.Label{},
		&models.IssueLabel{},
		&models.Component{},
		&models.IssueComponent{},
		&models.Version{},
		&models.Comment{},
		&models.WorkLog{},
		&models.Attachment{},
		&models.Watcher{},
		&models.Notification{},
		&models.ActivityLog{},
		&models.SavedFilter{},
		&models.WorkflowTransition{},
		&models.BoardConfig{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// SeedSystemUser ensures the "system" account used for automated
// activity (imports, digests) exists.
func SeedSystemUser(db *gorm.DB) (*models.User, error) {
	var u models.User
	err := db.Where("username = ?", "system").First(&u).Error
	if err == nil {
		return &u, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("db: look up system user: %w", err)
	}
	u = models.User{Username: "system", DisplayName: "Waybill"}
	if err := db.Create(&u).Error; err != nil {
		return nil, fmt.Errorf("db: seed system user: %w", err)
	}
	return &u, nil
}
