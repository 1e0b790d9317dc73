package server

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/waybill/internal/apperr"
	"github.com/zulandar/waybill/internal/duration"
	"github.com/zulandar/waybill/internal/enums"
	"github.com/zulandar/waybill/internal/issue"
	"github.com/zulandar/waybill/internal/models"
	"github.com/zulandar/waybill/internal/notify"
	"github.com/zulandar/waybill/internal/project"
)

type createIssueRequest struct {
	Title            string     `json:"title" binding:"required"`
	Description      string     `json:"description"`
	Type             string     `json:"type"`
	Priority         string     `json:"priority"`
	Status           string     `json:"status"`
	AssigneeID       *uint      `json:"assigneeId"`
	ReporterID       *uint      `json:"reporterId"`
	ParentID         *uint      `json:"parentId"`
	SprintID         *uint      `json:"sprintId"`
	StoryPoints      *int       `json:"storyPoints"`
	OriginalEstimate string     `json:"originalEstimate"` // "2h 30m"
	StartDate        *time.Time `json:"startDate"`
	DueDate          *time.Time `json:"dueDate"`
	SortOrder        int        `json:"sortOrder"`
}

type updateIssueRequest struct {
	Title            *string    `json:"title"`
	Description      *string    `json:"description"`
	Type             *string    `json:"type"`
	Priority         *string    `json:"priority"`
	Status           *string    `json:"status"`
	AssigneeID       *uint      `json:"assigneeId"`
	ParentID         *uint      `json:"parentId"`
	SprintID         *uint      `json:"sprintId"`
	StoryPoints      *int       `json:"storyPoints"`
	OriginalEstimate *string    `json:"originalEstimate"`
	TimeRemaining    *string    `json:"timeRemaining"`
	StartDate        *time.Time `json:"startDate"`
	DueDate          *time.Time `json:"dueDate"`
	SortOrder        *int       `json:"sortOrder"`
	FixVersionID     *uint      `json:"fixVersionId"`
	AffectsVersionID *uint      `json:"affectsVersionId"`

	// Clear flags reset nullable references; a JSON null in the pointer
	// fields above is indistinguishable from an omitted field.
	ClearAssignee *bool `json:"clearAssignee"`
	ClearSprint   *bool `json:"clearSprint"`
	ClearParent   *bool `json:"clearParent"`
}

// issueView is an issue decorated for clients: display key plus enum
// labels and colors.
type issueView struct {
	models.Issue
	Key            string     `json:"key"`
	StatusMeta     enums.Meta `json:"statusMeta"`
	TypeMeta       enums.Meta `json:"typeMeta"`
	PriorityMeta   enums.Meta `json:"priorityMeta"`
	TimeSpentText  string     `json:"timeSpentText"`
	TimeLeftText   string     `json:"timeLeftText"`
	EstimateText   string     `json:"estimateText"`
	DisplaySummary string     `json:"displaySummary"`
}

func newIssueView(iss models.Issue, projectKey string) issueView {
	key := models.DisplayKey(projectKey, iss.IssueNumber)
	return issueView{
		Issue:          iss,
		Key:            key,
		StatusMeta:     enums.Lookup(enums.IssueStatuses, iss.Status),
		TypeMeta:       enums.Lookup(enums.IssueTypes, iss.Type),
		PriorityMeta:   enums.Lookup(enums.Priorities, iss.Priority),
		TimeSpentText:  duration.Format(iss.TimeSpent),
		TimeLeftText:   duration.Format(iss.TimeRemaining),
		EstimateText:   duration.Format(iss.OriginalEstimate),
		DisplaySummary: key + " " + iss.Title,
	}
}

func (s *Server) handleListIssues(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	p, err := project.Get(s.db, id)
	if err != nil {
		s.respondError(c, err)
		return
	}

	filters := issue.ListFilters{
		ProjectID: id,
		Status:    c.Query("status"),
		Type:      c.Query("type"),
		Priority:  c.Query("priority"),
	}
	if c.Query("backlog") == "true" {
		filters.Backlog = true
	}
	if raw := c.Query("sprint"); raw != "" {
		sid, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			badRequest(c, fmt.Errorf("bad sprint filter: %w", apperr.ErrInvalid))
			return
		}
		u := uint(sid)
		filters.SprintID = &u
	}
	switch raw := c.Query("assignee"); raw {
	case "":
	case "unassigned":
		filters.Unassigned = true
	default:
		aid, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			badRequest(c, fmt.Errorf("bad assignee filter: %w", apperr.ErrInvalid))
			return
		}
		u := uint(aid)
		filters.AssigneeID = &u
	}

	issues, err := issue.List(s.db, filters)
	if err != nil {
		s.respondError(c, err)
		return
	}
	views := make([]issueView, 0, len(issues))
	for _, iss := range issues {
		views = append(views, newIssueView(iss, p.Key))
	}
	c.JSON(http.StatusOK, views)
}

func (s *Server) handleCreateIssue(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	p, err := project.Get(s.db, id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	var req createIssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	estimate := 0
	if req.OriginalEstimate != "" {
		minutes, ok := duration.Parse(req.OriginalEstimate)
		if !ok {
			badRequest(c, fmt.Errorf("bad duration %q: %w", req.OriginalEstimate, apperr.ErrInvalid))
			return
		}
		estimate = minutes
	}

	iss, err := issue.Create(s.db, issue.CreateOpts{
		ProjectID:        id,
		Title:            req.Title,
		Description:      req.Description,
		Type:             req.Type,
		Priority:         req.Priority,
		Status:           req.Status,
		AssigneeID:       req.AssigneeID,
		ReporterID:       req.ReporterID,
		ParentID:         req.ParentID,
		SprintID:         req.SprintID,
		StoryPoints:      req.StoryPoints,
		OriginalEstimate: estimate,
		StartDate:        req.StartDate,
		DueDate:          req.DueDate,
		SortOrder:        req.SortOrder,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newIssueView(*iss, p.Key))
}

func (s *Server) handleGetIssue(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	iss, err := issue.Get(s.db, id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	p, err := project.Get(s.db, iss.ProjectID)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newIssueView(*iss, p.Key))
}

func (s *Server) handleUpdateIssue(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req updateIssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	updates := map[string]interface{}{}
	if req.Title != nil {
		updates["title"] = *req.Title
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Type != nil {
		updates["type"] = *req.Type
	}
	if req.Priority != nil {
		updates["priority"] = *req.Priority
	}
	if req.Status != nil {
		updates["status"] = *req.Status
	}
	if req.AssigneeID != nil {
		updates["assignee_id"] = *req.AssigneeID
	}
	if req.ParentID != nil {
		updates["parent_id"] = *req.ParentID
	}
	if req.SprintID != nil {
		updates["sprint_id"] = *req.SprintID
	}
	if req.StoryPoints != nil {
		updates["story_points"] = *req.StoryPoints
	}
	if req.OriginalEstimate != nil {
		minutes, ok := duration.Parse(*req.OriginalEstimate)
		if !ok {
			badRequest(c, fmt.Errorf("bad duration %q: %w", *req.OriginalEstimate, apperr.ErrInvalid))
			return
		}
		updates["original_estimate"] = minutes
	}
	if req.TimeRemaining != nil {
		minutes, ok := duration.Parse(*req.TimeRemaining)
		if !ok {
			badRequest(c, fmt.Errorf("bad duration %q: %w", *req.TimeRemaining, apperr.ErrInvalid))
			return
		}
		updates["time_remaining"] = minutes
	}
	if req.StartDate != nil {
		updates["start_date"] = *req.StartDate
	}
	if req.DueDate != nil {
		updates["due_date"] = *req.DueDate
	}
	if req.SortOrder != nil {
		updates["sort_order"] = *req.SortOrder
	}
	if req.FixVersionID != nil {
		updates["fix_version_id"] = *req.FixVersionID
	}
	if req.AffectsVersionID != nil {
		updates["affects_version_id"] = *req.AffectsVersionID
	}
	if req.ClearAssignee != nil && *req.ClearAssignee {
		updates["assignee_id"] = nil
	}
	if req.ClearSprint != nil && *req.ClearSprint {
		updates["sprint_id"] = nil
	}
	if req.ClearParent != nil && *req.ClearParent {
		updates["parent_id"] = nil
	}

	iss, err := issue.Update(s.db, id, actorFrom(c), updates)
	if err != nil {
		s.respondError(c, err)
		return
	}
	p, err := project.Get(s.db, iss.ProjectID)
	if err != nil {
		s.respondError(c, err)
		return
	}

	if req.AssigneeID != nil {
		s.dispatcher.Publish(c.Request.Context(), notify.Event{
			Kind:     "assigned",
			Title:    "Issue assigned",
			Body:     iss.Title,
			IssueKey: models.DisplayKey(p.Key, iss.IssueNumber),
		})
	}
	c.JSON(http.StatusOK, newIssueView(*iss, p.Key))
}

func (s *Server) handleDeleteIssue(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := issue.Delete(s.db, id); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// actorFrom resolves the acting user from the X-User-ID header. Identity
// is asserted by the frontend; authentication lives outside this service.
func actorFrom(c *gin.Context) *uint {
	raw := c.GetHeader("X-User-ID")
	if raw == "" {
		return nil
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return nil
	}
	u := uint(id)
	return &u
}
