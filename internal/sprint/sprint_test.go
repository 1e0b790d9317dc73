package sprint

import (
	"errors"
	"testing"

	"github.com/zulandar/waybill/internal/apperr"
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
	if err := db.AutoMigrate(&models.Project{}, &models.Sprint{}, &models.Issue{}); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return db
}

func seedProject(t *testing.T, db *gorm.DB) *models.Project {
	t.Helper()
	p := models.Project{Name: "Website", Key: "WEBS"}
	if err := db.Create(&p).Error; err != nil {
		t.Fatalf("seed project: %v", err)
	}
	return &p
}

func seedIssue(t *testing.T, db *gorm.DB, projectID uint, number int, status string, sprintID *uint, points *int) *models.Issue {
	t.Helper()
	iss := models.Issue{
		ProjectID: projectID, IssueNumber: number, Title: "issue",
		Type: "task", Priority: "medium", Status: status,
		SprintID: sprintID, StoryPoints: points,
	}
	if err := db.Create(&iss).Error; err != nil {
		t.Fatalf("seed issue: %v", err)
	}
	return &iss
}

func intPtr(v int) *int { return &v }

func TestCreate_StartsInPlanning(t *testing.T) {
	db := openTestDB(t)
	p := seedProject(t, db)

	s, err := Create(db, CreateOpts{ProjectID: p.ID, Name: "Sprint 1", Goal: "ship it"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if s.Status != StatusPlanning {
		t.Errorf("status = %q, want planning", s.Status)
	}
}

func TestCreate_Validation(t *testing.T) {
	db := openTestDB(t)
	p := seedProject(t, db)

	if _, err := Create(db, CreateOpts{ProjectID: p.ID}); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("missing name error = %v, want ErrInvalid", err)
	}
	if _, err := Create(db, CreateOpts{ProjectID: 999, Name: "S"}); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing project error = %v, want ErrNotFound", err)
	}
}

func TestStart_ActivatesAndStampsStartDate(t *testing.T) {
	db := openTestDB(t)
	p := seedProject(t, db)
	s, _ := Create(db, CreateOpts{ProjectID: p.ID, Name: "Sprint 1"})

	started, err := Start(db, s.ID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if started.Status != StatusActive {
		t.Errorf("status = %q, want active", started.Status)
	}
	if started.StartDate == nil {
		t.Error("StartDate not stamped")
	}
}

func TestStart_KeepsExplicitStartDate(t *testing.T) {
	db := openTestDB(t)
	p := seedProject(t, db)
	s, _ := Create(db, CreateOpts{ProjectID: p.ID, Name: "Sprint 1"})

	explicit := s.CreatedAt.AddDate(0, 0, 7)
	if _, err := Update(db, s.ID, map[string]interface{}{"start_date": explicit}); err != nil {
		t.Fatalf("Update: %v", err)
	}

	started, err := Start(db, s.ID)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if started.StartDate == nil || !started.StartDate.Equal(explicit) {
		t.Errorf("StartDate = %v, want explicit %v preserved", started.StartDate, explicit)
	}
}

func TestStart_RejectsSecondActiveSprint(t *testing.T) {
	db := openTestDB(t)
	p := seedProject(t, db)
	first, _ := Create(db, CreateOpts{ProjectID: p.ID, Name: "Sprint 1"})
	second, _ := Create(db, CreateOpts{ProjectID: p.ID, Name: "Sprint 2"})

	if _, err := Start(db, first.ID); err != nil {
		t.Fatalf("Start first: %v", err)
	}
	_, err := Start(db, second.ID)
	if !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("second start error = %v, want ErrConflict", err)
	}

	// Neither sprint mutated by the failed start.
	got1, _ := Get(db, first.ID)
	got2, _ := Get(db, second.ID)
	if got1.Status != StatusActive {
		t.Errorf("first sprint status = %q, want active", got1.Status)
	}
	if got2.Status != StatusPlanning {
		t.Errorf("second sprint status = %q, want planning", got2.Status)
	}
}

func TestStart_AllowsActivePerProject(t *testing.T) {
	db := openTestDB(t)
	a := seedProject(t, db)
	b := models.Project{Name: "Mobile", Key: "MOB"}
	if err := db.Create(&b).Error; err != nil {
		t.Fatalf("seed project: %v", err)
	}

	sa, _ := Create(db, CreateOpts{ProjectID: a.ID, Name: "A1"})
	sb, _ := Create(db, CreateOpts{ProjectID: b.ID, Name: "B1"})

	if _, err := Start(db, sa.ID); err != nil {
		t.Fatalf("Start A: %v", err)
	}
	if _, err := Start(db, sb.ID); err != nil {
		t.Errorf("Start in a different project should succeed: %v", err)
	}
}

func TestStart_RejectsNonPlanning(t *testing.T) {
	db := openTestDB(t)
	p := seedProject(t, db)
	s, _ := Create(db, CreateOpts{ProjectID: p.ID, Name: "Sprint 1"})

	if _, err := Start(db, s.ID); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := Start(db, s.ID); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("re-start error = %v, want ErrConflict", err)
	}

	if _, err := Complete(db, s.ID); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if _, err := Start(db, s.ID); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("start completed error = %v, want ErrConflict", err)
	}
}

func TestComplete_MovesUnfinishedIssuesToBacklog(t *testing.T) {
	db := openTestDB(t)
	p := seedProject(t, db)
	s, _ := Create(db, CreateOpts{ProjectID: p.ID, Name: "Sprint 1"})
	if _, err := Start(db, s.ID); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Five issues: three done, two not.
	seedIssue(t, db, p.ID, 1, "done", &s.ID, intPtr(3))
	seedIssue(t, db, p.ID, 2, "done", &s.ID, intPtr(5))
	seedIssue(t, db, p.ID, 3, "done", &s.ID, nil)
	seedIssue(t, db, p.ID, 4, "in_progress", &s.ID, intPtr(8))
	seedIssue(t, db, p.ID, 5, "todo", &s.ID, intPtr(2))

	completed, err := Complete(db, s.ID)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if completed.Status != StatusCompleted {
		t.Errorf("status = %q, want completed", completed.Status)
	}
	if completed.CompletedAt == nil {
		t.Error("CompletedAt not stamped")
	}

	var stillIn, backlogged int64
	db.Model(&models.Issue{}).Where("sprint_id = ?", s.ID).Count(&stillIn)
	db.Model(&models.Issue{}).Where("sprint_id IS NULL").Count(&backlogged)
	if stillIn != 3 {
		t.Errorf("issues still in sprint = %d, want the 3 done", stillIn)
	}
	if backlogged != 2 {
		t.Errorf("backlog gained %d issues, want 2", backlogged)
	}

	var moved []models.Issue
	db.Where("sprint_id IS NULL").Find(&moved)
	for _, iss := range moved {
		if iss.Status == "done" {
			t.Errorf("done issue %d lost its sprint association", iss.ID)
		}
	}
}

func TestComplete_RejectsNonActive(t *testing.T) {
	db := openTestDB(t)
	p := seedProject(t, db)
	s, _ := Create(db, CreateOpts{ProjectID: p.ID, Name: "Sprint 1"})

	if _, err := Complete(db, s.ID); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("complete planning error = %v, want ErrConflict", err)
	}

	// A failed complete leaves issues untouched.
	seedIssue(t, db, p.ID, 1, "todo", &s.ID, nil)
	if _, err := Complete(db, s.ID); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("complete planning error = %v, want ErrConflict", err)
	}
	var stillIn int64
	db.Model(&models.Issue{}).Where("sprint_id = ?", s.ID).Count(&stillIn)
	if stillIn != 1 {
		t.Errorf("failed complete mutated issues: %d left in sprint, want 1", stillIn)
	}
}

func TestComplete_Irreversible(t *testing.T) {
	db := openTestDB(t)
	p := seedProject(t, db)
	s, _ := Create(db, CreateOpts{ProjectID: p.ID, Name: "Sprint 1"})

	if _, err := Start(db, s.ID); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := Complete(db, s.ID); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if _, err := Complete(db, s.ID); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("re-complete error = %v, want ErrConflict", err)
	}
}

func TestVelocity(t *testing.T) {
	db := openTestDB(t)
	p := seedProject(t, db)
	s, _ := Create(db, CreateOpts{ProjectID: p.ID, Name: "Sprint 1"})
	if _, err := Start(db, s.ID); err != nil {
		t.Fatalf("Start: %v", err)
	}
	seedIssue(t, db, p.ID, 1, "done", &s.ID, intPtr(5))
	seedIssue(t, db, p.ID, 2, "done", &s.ID, intPtr(3))
	seedIssue(t, db, p.ID, 3, "todo", &s.ID, intPtr(13))

	if _, err := Velocity(db, s.ID); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("velocity before completion error = %v, want ErrConflict", err)
	}

	if _, err := Complete(db, s.ID); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	got, err := Velocity(db, s.ID)
	if err != nil {
		t.Fatalf("Velocity: %v", err)
	}
	if got != 8 {
		t.Errorf("velocity = %d, want 8 (unfinished points excluded)", got)
	}
}

func TestUpdate_StatusCannotBeSetDirectly(t *testing.T) {
	db := openTestDB(t)
	p := seedProject(t, db)
	s, _ := Create(db, CreateOpts{ProjectID: p.ID, Name: "Sprint 1"})

	if _, err := Update(db, s.ID, map[string]interface{}{"status": "active"}); !errors.Is(err, apperr.ErrInvalid) {
		t.Errorf("direct status update error = %v, want ErrInvalid", err)
	}
}
