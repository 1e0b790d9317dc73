// Package digest runs the scheduled due-date sweep: issues that are
// overdue or due soon produce inbox notifications for their assignees and
// watchers, plus one summary push through the notify dispatcher.
package digest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/zulandar/waybill/internal/enums"
	"github.com/zulandar/waybill/internal/models"
	"github.com/zulandar/waybill/internal/notify"
	"gorm.io/gorm"
)

// Opts holds parameters for creating a Digest.
type Opts struct {
	DB           *gorm.DB
	Dispatcher   *notify.Dispatcher
	DueSoonHours int
	Logger       *slog.Logger
}

// Digest scans for due and overdue issues.
type Digest struct {
	db           *gorm.DB
	dispatcher   *notify.Dispatcher
	dueSoonHours int
	logger       *slog.Logger
}

// New creates a Digest.
func New(opts Opts) *Digest {
	if opts.DueSoonHours <= 0 {
		opts.DueSoonHours = 24
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Digest{
		db:           opts.DB,
		dispatcher:   opts.Dispatcher,
		dueSoonHours: opts.DueSoonHours,
		logger:       opts.Logger,
	}
}

// Run performs one sweep at the given time and returns the number of
// issues flagged. The chat summary is suppressed when nothing is due.
func (d *Digest) Run(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.Add(time.Duration(d.dueSoonHours) * time.Hour)

	var due []models.Issue
	err := d.db.Where("due_date IS NOT NULL AND due_date <= ? AND status != ?", cutoff, enums.StatusDone).
		Order("due_date ASC").
		Find(&due).Error
	if err != nil {
		return 0, fmt.Errorf("digest: scan due issues: %w", err)
	}
	if len(due) == 0 {
		return 0, nil
	}

	overdue := 0
	for _, iss := range due {
		if iss.DueDate.Before(now) {
			overdue++
		}
		d.notifyRecipients(iss, now)
	}

	if d.dispatcher != nil {
		ev := notify.Event{
			Kind:  "due_digest",
			Title: fmt.Sprintf("%d issues need attention", len(due)),
			Body:  fmt.Sprintf("%d overdue, %d due within %dh", overdue, len(due)-overdue, d.dueSoonHours),
		}
		d.dispatcher.Publish(ctx, ev)
	}
	return len(due), nil
}

// notifyRecipients writes inbox rows for the assignee and watchers,
// skipping anyone who already has an unread due notification for the
// issue. Best-effort: row failures are logged and the sweep continues.
func (d *Digest) notifyRecipients(iss models.Issue, now time.Time) {
	recipients := map[uint]bool{}
	if iss.AssigneeID != nil {
		recipients[*iss.AssigneeID] = true
	}
	var watchers []models.Watcher
	if err := d.db.Where("issue_id = ?", iss.ID).Find(&watchers).Error; err != nil {
		d.logger.Error("digest: load watchers", "issue", iss.ID, "error", err)
	}
	for _, w := range watchers {
		recipients[w.UserID] = true
	}

	kind := "due_soon"
	verb := "is due soon"
	if iss.DueDate.Before(now) {
		kind = "overdue"
		verb = "is overdue"
	}

	for userID := range recipients {
		var existing int64
		err := d.db.Model(&models.Notification{}).
			Where("user_id = ? AND issue_id = ? AND kind = ? AND `read` = ?", userID, iss.ID, kind, false).
			Count(&existing).Error
		if err != nil {
			d.logger.Error("digest: check existing notification", "issue", iss.ID, "user", userID, "error", err)
			continue
		}
		if existing > 0 {
			continue
		}
		n := models.Notification{
			UserID:  userID,
			IssueID: &iss.ID,
			Kind:    kind,
			Message: fmt.Sprintf("%q %s (%s)", iss.Title, verb, iss.DueDate.Format("2006-01-02")),
		}
		if err := d.db.Create(&n).Error; err != nil {
			d.logger.Error("digest: create notification", "issue", iss.ID, "user", userID, "error", err)
		}
	}
}

// Schedule registers the sweep on a standard 5-field cron expression and
// starts the scheduler. The returned stop function halts it.
func (d *Digest) Schedule(schedule string) (func(), error) {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		n, err := d.Run(context.Background(), time.Now())
		if err != nil {
			d.logger.Error("digest: sweep failed", "error", err)
			return
		}
		d.logger.Info("digest: sweep complete", "flagged", n)
	})
	if err != nil {
		return nil, fmt.Errorf("digest: bad schedule %q: %w", schedule, err)
	}
	c.Start()
	return func() { c.Stop() }, nil
}
