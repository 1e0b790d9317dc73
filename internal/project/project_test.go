package project

import (
	"errors"
	"testing"

	"github.com/zulandar/waybill/internal/apperr"
	"github.com/zulandar/waybill/internal/issue"
	"github.com/zulandar/waybill/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	err = db.AutoMigrate(
		&models.Project{}, &models.ProjectMember{}, &models.Sprint{},
		&models.Issue{}, &models.Comment{}, &models.WorkLog{},
		&models.Attachment{}, &models.Watcher{}, &models.ActivityLog{},
		&models.Notification{}, &models.Label{}, &models.IssueLabel{},
		&models.Component{}, &models.IssueComponent{}, &models.Version{},
		&models.IssueLink{}, &models.WorkflowTransition{},
		&models.BoardConfig{}, &models.SavedFilter{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestDeriveKey(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Website Redesign", "WEBS"},
		{"API", "API"},
		{"3rd Party Integrations", "RDPA"},
		{"Go", "GO"},
		{"a-b-c-d-e", "ABCD"},
	}
	for _, tc := range tests {
		if got := DeriveKey(tc.name); got != tc.want {
			t.Errorf("DeriveKey(%q) = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestCreate_DerivesKey(t *testing.T) {
	db := openTestDB(t)

	p, err := Create(db, CreateOpts{Name: "Website Redesign"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if p.Key != "WEBS" {
		t.Fatalf("key = %q, want WEBS", p.Key)
	}
}

func TestCreate_Validation(t *testing.T) {
	db := openTestDB(t)

	tests := []struct {
		name string
		opts CreateOpts
		want error
	}{
		{"empty name", CreateOpts{}, apperr.ErrInvalid},
		{"lowercase key", CreateOpts{Name: "X", Key: "webs"}, apperr.ErrInvalid},
		{"short key", CreateOpts{Name: "X", Key: "A"}, apperr.ErrInvalid},
		{"long key", CreateOpts{Name: "X", Key: "ABCDEFGHIJK"}, apperr.ErrInvalid},
		{"digits in key", CreateOpts{Name: "X", Key: "AB1"}, apperr.ErrInvalid},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Create(db, tc.opts); !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestCreate_DuplicateKey(t *testing.T) {
	db := openTestDB(t)

	if _, err := Create(db, CreateOpts{Name: "Website Redesign"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err := Create(db, CreateOpts{Name: "Web Store", Key: "WEBS"})
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
}

func TestUpdate_KeyImmutable(t *testing.T) {
	db := openTestDB(t)

	p, err := Create(db, CreateOpts{Name: "Website Redesign"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err = Update(db, p.ID, map[string]interface{}{"key": "OTHER"})
	if !errors.Is(err, apperr.ErrInvalid) {
		t.Fatalf("err = %v, want ErrInvalid", err)
	}

	updated, err := Update(db, p.ID, map[string]interface{}{"name": "Renamed"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Name != "Renamed" || updated.Key != "WEBS" {
		t.Fatalf("after update: name=%q key=%q", updated.Name, updated.Key)
	}
}

func TestDelete_Cascades(t *testing.T) {
	db := openTestDB(t)

	p, err := Create(db, CreateOpts{Name: "Website Redesign"})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	other, err := Create(db, CreateOpts{Name: "Mobile App"})
	if err != nil {
		t.Fatalf("create other project: %v", err)
	}

	iss, err := issue.Create(db, issue.CreateOpts{ProjectID: p.ID, Title: "Task"})
	if err != nil {
		t.Fatalf("create issue: %v", err)
	}
	kept, err := issue.Create(db, issue.CreateOpts{ProjectID: other.ID, Title: "Survivor"})
	if err != nil {
		t.Fatalf("create kept issue: %v", err)
	}

	seed := []interface{}{
		&models.Comment{IssueID: iss.ID, AuthorID: 1, Body: "note"},
		&models.WorkLog{IssueID: iss.ID, UserID: 1, Minutes: 30},
		&models.Watcher{IssueID: iss.ID, UserID: 1},
		&models.Sprint{ProjectID: p.ID, Name: "Sprint 1", Status: "planning"},
		&models.Label{ProjectID: p.ID, Name: "frontend"},
		&models.WorkflowTransition{ProjectID: p.ID, FromStatus: "todo", ToStatus: "done"},
		&models.IssueLink{SourceID: iss.ID, TargetID: kept.ID, LinkType: "blocks"},
	}
	for _, row := range seed {
		if err := db.Create(row).Error; err != nil {
			t.Fatalf("seed %T: %v", row, err)
		}
	}

	if err := Delete(db, p.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	counts := map[string]interface{}{
		"issues":   &models.Issue{},
		"comments": &models.Comment{},
		"worklogs": &models.WorkLog{},
		"watchers": &models.Watcher{},
		"sprints":  &models.Sprint{},
		"labels":   &models.Label{},
		"workflow": &models.WorkflowTransition{},
		"links":    &models.IssueLink{},
	}
	for name, model := range counts {
		var n int64
		if err := db.Model(model).Count(&n).Error; err != nil {
			t.Fatalf("count %s: %v", name, err)
		}
		want := int64(0)
		if name == "issues" {
			want = 1 // the other project's issue survives
		}
		if n != want {
			t.Errorf("%s remaining = %d, want %d", name, n, want)
		}
	}

	if _, err := Get(db, p.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("get after delete: %v, want ErrNotFound", err)
	}
	if _, err := issue.Get(db, kept.ID); err != nil {
		t.Fatalf("other project's issue was deleted: %v", err)
	}
}

func TestMembers(t *testing.T) {
	db := openTestDB(t)

	p, err := Create(db, CreateOpts{Name: "Website Redesign"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := AddMember(db, p.ID, 1, ""); err != nil {
		t.Fatalf("add default role: %v", err)
	}
	if err := AddMember(db, p.ID, 2, "admin"); err != nil {
		t.Fatalf("add admin: %v", err)
	}
	if err := AddMember(db, p.ID, 3, "overlord"); !errors.Is(err, apperr.ErrInvalid) {
		t.Fatalf("bad role err = %v, want ErrInvalid", err)
	}

	// Re-adding updates the role instead of duplicating the row.
	if err := AddMember(db, p.ID, 1, "viewer"); err != nil {
		t.Fatalf("update role: %v", err)
	}

	members, err := Members(db, p.ID)
	if err != nil {
		t.Fatalf("members: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("members = %d, want 2", len(members))
	}
	if members[0].UserID != 1 || members[0].Role != "viewer" {
		t.Fatalf("member 1 = %+v", members[0])
	}

	if err := RemoveMember(db, p.ID, 2); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := RemoveMember(db, p.ID, 2); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("double remove err = %v, want ErrNotFound", err)
	}
}
