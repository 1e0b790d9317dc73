// Package github imports open GitHub issues into a Waybill project.
package github

import (
	"context"
	"errors"
	"fmt"
	"strings"

	gh "github.com/google/go-github/v68/github"
	"github.com/zulandar/waybill/internal/issue"
	"github.com/zulandar/waybill/internal/models"
	"golang.org/x/oauth2"
	"gorm.io/gorm"
)

// issueLister abstracts the GitHub issues API we use, enabling test mocks.
type issueLister interface {
	ListByRepo(ctx context.Context, owner, repo string, opts *gh.IssueListByRepoOptions) ([]*gh.Issue, *gh.Response, error)
}

// Importer pulls open issues from a GitHub repository.
type Importer struct {
	issues issueLister
}

// New creates an Importer authenticated with the given token. An empty
// token uses unauthenticated access and its lower rate limit.
func New(ctx context.Context, token string) *Importer {
	var client *gh.Client
	if token == "" {
		client = gh.NewClient(nil)
	} else {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		client = gh.NewClient(oauth2.NewClient(ctx, ts))
	}
	return &Importer{issues: client.Issues}
}

// NewWithLister creates an Importer over a custom lister, used by tests.
func NewWithLister(lister issueLister) *Importer {
	return &Importer{issues: lister}
}

// Result summarizes one import run.
type Result struct {
	Imported int
	Skipped  int // already imported or pull requests
}

// sourceRef builds the idempotency key stored on imported issues.
func sourceRef(owner, repo string, number int) string {
	return fmt.Sprintf("github:%s/%s#%d", owner, repo, number)
}

// Import copies the repository's open issues into the project as tasks
// (bugs when labelled as such). Re-running skips issues already imported,
// keyed by their source reference. GitHub labels become project labels.
func (im *Importer) Import(ctx context.Context, db *gorm.DB, projectID uint, owner, repo string) (*Result, error) {
	res := &Result{}
	opts := &gh.IssueListByRepoOptions{
		State:       "open",
		ListOptions: gh.ListOptions{PerPage: 100},
	}

	for {
		page, resp, err := im.issues.ListByRepo(ctx, owner, repo, opts)
		if err != nil {
			return nil, fmt.Errorf("github: list %s/%s: %w", owner, repo, err)
		}
		for _, ghIssue := range page {
			if ghIssue.IsPullRequest() {
				res.Skipped++
				continue
			}
			ref := sourceRef(owner, repo, ghIssue.GetNumber())

			var existing int64
			if err := db.Model(&models.Issue{}).Where("source_ref = ?", ref).Count(&existing).Error; err != nil {
				return nil, fmt.Errorf("github: check %s: %w", ref, err)
			}
			if existing > 0 {
				res.Skipped++
				continue
			}

			created, err := issue.Create(db, issue.CreateOpts{
				ProjectID:   projectID,
				Title:       ghIssue.GetTitle(),
				Description: ghIssue.GetBody(),
				Type:        issueType(ghIssue),
				SourceRef:   ref,
			})
			if err != nil {
				return nil, fmt.Errorf("github: import %s: %w", ref, err)
			}
			if err := attachLabels(db, projectID, created.ID, ghIssue.Labels); err != nil {
				return nil, err
			}
			res.Imported++
		}

		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return res, nil
}

// issueType maps a GitHub issue to a Waybill type by its labels.
func issueType(ghIssue *gh.Issue) string {
	for _, l := range ghIssue.Labels {
		if strings.EqualFold(l.GetName(), "bug") {
			return "bug"
		}
	}
	return "task"
}

// attachLabels mirrors GitHub labels as project labels and joins them to
// the imported issue.
func attachLabels(db *gorm.DB, projectID, issueID uint, ghLabels []*gh.Label) error {
	for _, l := range ghLabels {
		name := l.GetName()
		if name == "" {
			continue
		}

		var label models.Label
		err := db.Where("project_id = ? AND name = ?", projectID, name).First(&label).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			color := ""
			if l.GetColor() != "" {
				color = "#" + l.GetColor()
			}
			label = models.Label{ProjectID: projectID, Name: name, Color: color}
			err = db.Create(&label).Error
		}
		if err != nil {
			return fmt.Errorf("github: label %q: %w", name, err)
		}

		join := models.IssueLabel{IssueID: issueID, LabelID: label.ID}
		if err := db.Create(&join).Error; err != nil {
			return fmt.Errorf("github: attach label %q: %w", name, err)
		}
	}
	return nil
}
