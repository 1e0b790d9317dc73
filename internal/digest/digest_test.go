package digest

import (
	"context"
	"testing"
	"time"

	"github.com/zulandar/waybill/internal/models"
	"github.com/zulandar/waybill/internal/notify"
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
	if err := db.AutoMigrate(&models.Issue{}, &models.Watcher{}, &models.Notification{}); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	return db
}

// recordingAdapter captures published events.
type recordingAdapter struct {
	events []notify.Event
}

func (r *recordingAdapter) Name() string { return "recording" }
func (r *recordingAdapter) Send(ctx context.Context, ev notify.Event) error {
	r.events = append(r.events, ev)
	return nil
}
func (r *recordingAdapter) Close() error { return nil }

func seedDueIssue(t *testing.T, db *gorm.DB, number int, due time.Time, status string, assignee *uint) *models.Issue {
	t.Helper()
	iss := models.Issue{
		ProjectID: 1, IssueNumber: number, Title: "due item",
		Type: "task", Priority: "medium", Status: status,
		DueDate: &due, AssigneeID: assignee,
	}
	if err := db.Create(&iss).Error; err != nil {
		t.Fatalf("seed issue: %v", err)
	}
	return &iss
}

func uintPtr(v uint) *uint { return &v }

func TestRun_NothingDue(t *testing.T) {
	db := openTestDB(t)
	rec := &recordingAdapter{}
	d := New(Opts{DB: db, Dispatcher: notify.NewDispatcher(rec)})

	now := time.Now()
	future := now.Add(72 * time.Hour)
	seedDueIssue(t, db, 1, future, "todo", nil)

	n, err := d.Run(context.Background(), now)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n != 0 {
		t.Errorf("flagged = %d, want 0", n)
	}
	if len(rec.events) != 0 {
		t.Error("summary published with nothing due")
	}
}

func TestRun_FlagsOverdueAndDueSoon(t *testing.T) {
	db := openTestDB(t)
	rec := &recordingAdapter{}
	d := New(Opts{DB: db, Dispatcher: notify.NewDispatcher(rec), DueSoonHours: 24})

	now := time.Now()
	seedDueIssue(t, db, 1, now.Add(-2*time.Hour), "in_progress", uintPtr(5)) // overdue
	seedDueIssue(t, db, 2, now.Add(6*time.Hour), "todo", uintPtr(5))         // due soon
	seedDueIssue(t, db, 3, now.Add(-1*time.Hour), "done", uintPtr(5))        // done, skipped
	seedDueIssue(t, db, 4, now.Add(90*time.Hour), "todo", uintPtr(5))        // beyond window

	n, err := d.Run(context.Background(), now)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n != 2 {
		t.Errorf("flagged = %d, want 2", n)
	}
	if len(rec.events) != 1 {
		t.Fatalf("events = %d, want 1 summary", len(rec.events))
	}
	if rec.events[0].Kind != "due_digest" {
		t.Errorf("event kind = %q", rec.events[0].Kind)
	}

	var kinds []string
	db.Model(&models.Notification{}).Where("user_id = ?", 5).Order("kind ASC").Pluck("kind", &kinds)
	if len(kinds) != 2 || kinds[0] != "due_soon" || kinds[1] != "overdue" {
		t.Errorf("notification kinds = %v, want [due_soon overdue]", kinds)
	}
}

func TestRun_NotifiesWatchers(t *testing.T) {
	db := openTestDB(t)
	d := New(Opts{DB: db})

	now := time.Now()
	iss := seedDueIssue(t, db, 1, now.Add(-time.Hour), "todo", uintPtr(1))
	db.Create(&models.Watcher{IssueID: iss.ID, UserID: 2})
	db.Create(&models.Watcher{IssueID: iss.ID, UserID: 3})

	if _, err := d.Run(context.Background(), now); err != nil {
		t.Fatalf("Run: %v", err)
	}

	var count int64
	db.Model(&models.Notification{}).Where("issue_id = ?", iss.ID).Count(&count)
	if count != 3 {
		t.Errorf("notifications = %d, want assignee plus 2 watchers", count)
	}
}

func TestRun_NoDuplicateUnreadNotifications(t *testing.T) {
	db := openTestDB(t)
	d := New(Opts{DB: db})

	now := time.Now()
	seedDueIssue(t, db, 1, now.Add(-time.Hour), "todo", uintPtr(5))

	for i := 0; i < 3; i++ {
		if _, err := d.Run(context.Background(), now); err != nil {
			t.Fatalf("Run %d: %v", i, err)
		}
	}

	var count int64
	db.Model(&models.Notification{}).Where("user_id = ?", 5).Count(&count)
	if count != 1 {
		t.Errorf("notifications = %d, want 1 despite repeated sweeps", count)
	}
}

func TestSchedule_RejectsBadExpression(t *testing.T) {
	d := New(Opts{DB: openTestDB(t)})
	if _, err := d.Schedule("not a cron line"); err == nil {
		t.Error("expected error for malformed schedule")
	}
}

func TestSchedule_StartsAndStops(t *testing.T) {
	d := New(Opts{DB: openTestDB(t)})
	stop, err := d.Schedule("0 9 * * *")
	if err != nil {
		t.Fatalf("Schedule: %v", err)
	}
	stop()
}
