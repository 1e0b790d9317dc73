package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/waybill/internal/apperr"
	"github.com/zulandar/waybill/internal/board"
	"github.com/zulandar/waybill/internal/enums"
	"github.com/zulandar/waybill/internal/issue"
	"github.com/zulandar/waybill/internal/models"
	"github.com/zulandar/waybill/internal/project"
	"github.com/zulandar/waybill/internal/sprint"
	"github.com/zulandar/waybill/internal/workflow"
)

type createProjectRequest struct {
	Name        string `json:"name" binding:"required"`
	Key         string `json:"key"`
	Description string `json:"description"`
	LeadID      *uint  `json:"leadId"`
	Color       string `json:"color"`
}

type updateProjectRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	LeadID      *uint   `json:"leadId"`
	Color       *string `json:"color"`
}

func (s *Server) handleListProjects(c *gin.Context) {
	projects, err := project.List(s.db)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, projects)
}

func (s *Server) handleCreateProject(c *gin.Context) {
	var req createProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	p, err := project.Create(s.db, project.CreateOpts{
		Name:        req.Name,
		Key:         req.Key,
		Description: req.Description,
		LeadID:      req.LeadID,
		Color:       req.Color,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (s *Server) handleGetProject(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	p, err := project.Get(s.db, id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) handleUpdateProject(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req updateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.LeadID != nil {
		updates["lead_id"] = *req.LeadID
	}
	if req.Color != nil {
		updates["color"] = *req.Color
	}

	p, err := project.Update(s.db, id, updates)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (s *Server) handleDeleteProject(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := project.Delete(s.db, id); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type addMemberRequest struct {
	UserID uint   `json:"userId" binding:"required"`
	Role   string `json:"role"`
}

func (s *Server) handleListMembers(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	members, err := project.Members(s.db, id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, members)
}

func (s *Server) handleAddMember(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req addMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := project.AddMember(s.db, id, req.UserID, req.Role); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleRemoveMember(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	userID, ok := parseID(c, "userID")
	if !ok {
		return
	}
	if err := project.RemoveMember(s.db, id, userID); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type workflowRequest struct {
	Pairs []workflow.Pair `json:"pairs"`
}

func (s *Server) handleGetWorkflow(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if _, err := project.Get(s.db, id); err != nil {
		s.respondError(c, err)
		return
	}
	pairs, err := workflow.Pairs(s.db, id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	matrix, err := workflow.Matrix(s.db, id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"pairs": pairs, "matrix": matrix})
}

func (s *Server) handleReplaceWorkflow(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if _, err := project.Get(s.db, id); err != nil {
		s.respondError(c, err)
		return
	}
	var req workflowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := workflow.Replace(s.db, id, req.Pairs); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type boardConfigRequest struct {
	SwimlaneBy  *string        `json:"swimlaneBy"`
	ColumnOrder []string       `json:"columnOrder"`
	WIPLimits   map[string]int `json:"wipLimits"`
}

func (s *Server) handleGetBoardConfig(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if _, err := project.Get(s.db, id); err != nil {
		s.respondError(c, err)
		return
	}
	cfg, err := loadBoardConfig(s, id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func (s *Server) handlePutBoardConfig(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if _, err := project.Get(s.db, id); err != nil {
		s.respondError(c, err)
		return
	}
	var req boardConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	cfg, err := loadBoardConfig(s, id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if req.SwimlaneBy != nil {
		cfg.SwimlaneBy = *req.SwimlaneBy
	}
	if req.ColumnOrder != nil {
		raw, err := json.Marshal(req.ColumnOrder)
		if err != nil {
			badRequest(c, err)
			return
		}
		cfg.ColumnOrder = string(raw)
	}
	if req.WIPLimits != nil {
		raw, err := json.Marshal(req.WIPLimits)
		if err != nil {
			badRequest(c, err)
			return
		}
		cfg.WIPLimits = string(raw)
	}
	if err := s.db.Save(cfg).Error; err != nil {
		s.respondError(c, fmt.Errorf("server: save board config: %w", err))
		return
	}
	c.JSON(http.StatusOK, cfg)
}

// loadBoardConfig returns the project's board config, creating the
// default row on first access.
func loadBoardConfig(s *Server, projectID uint) (*models.BoardConfig, error) {
	var cfg models.BoardConfig
	err := s.db.Where("project_id = ?", projectID).First(&cfg).Error
	if err == nil {
		return &cfg, nil
	}
	cfg = models.BoardConfig{ProjectID: projectID, SwimlaneBy: "none"}
	if err := s.db.Create(&cfg).Error; err != nil {
		return nil, fmt.Errorf("server: init board config: %w", err)
	}
	return &cfg, nil
}

// boardResponse is the derived board view for a project.
type boardResponse struct {
	Project *models.Project `json:"project"`
	Sprint  *models.Sprint  `json:"sprint,omitempty"`
	Columns []boardColumn   `json:"columns"`
}

type boardColumn struct {
	Status   string         `json:"status"`
	Label    string         `json:"label"`
	WIPLimit int            `json:"wipLimit"`
	Count    int            `json:"count"`
	OverWIP  bool           `json:"overWip"`
	Issues   []models.Issue `json:"issues"`
}

// handleBoard serves the board view: the active sprint's issues (or the
// whole project when no sprint is active) partitioned into status
// columns. Query params type, status, priority, assignee and q filter
// cards conjunctively.
func (s *Server) handleBoard(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	p, err := project.Get(s.db, id)
	if err != nil {
		s.respondError(c, err)
		return
	}

	filters := issue.ListFilters{ProjectID: id}
	var active *models.Sprint
	var activeSprint models.Sprint
	err = s.db.Where("project_id = ? AND status = ?", id, sprint.StatusActive).First(&activeSprint).Error
	if err == nil {
		active = &activeSprint
		filters.SprintID = &activeSprint.ID
	}

	issues, err := issue.List(s.db, filters)
	if err != nil {
		s.respondError(c, err)
		return
	}

	f := board.Filter{
		Type:     c.Query("type"),
		Status:   c.Query("status"),
		Priority: c.Query("priority"),
		Assignee: c.Query("assignee"),
		Text:     c.Query("q"),
	}
	issues = f.Apply(issues, p.Key)

	cfg, err := loadBoardConfig(s, id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	limits := map[string]int{}
	if cfg.WIPLimits != "" {
		json.Unmarshal([]byte(cfg.WIPLimits), &limits)
	}

	cols := board.Columns(issues, limits)
	resp := boardResponse{Project: p, Sprint: active}
	for _, col := range cols {
		issuesOut := col.Issues
		if issuesOut == nil {
			issuesOut = []models.Issue{}
		}
		resp.Columns = append(resp.Columns, boardColumn{
			Status:   col.Status,
			Label:    col.Label,
			WIPLimit: col.WIPLimit,
			Count:    col.Count(),
			OverWIP:  col.OverWIP(),
			Issues:   issuesOut,
		})
	}
	c.JSON(http.StatusOK, resp)
}

// backlogResponse is the derived backlog view: sprint groups plus the
// residual backlog.
type backlogResponse struct {
	Project *models.Project `json:"project"`
	Groups  []backlogGroup  `json:"groups"`
}

type backlogGroup struct {
	Sprint      *models.Sprint `json:"sprint,omitempty"`
	Name        string         `json:"name"`
	StoryPoints int            `json:"storyPoints"`
	Issues      []models.Issue `json:"issues"`
}

func (s *Server) handleBacklog(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	p, err := project.Get(s.db, id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	issues, err := issue.List(s.db, issue.ListFilters{ProjectID: id})
	if err != nil {
		s.respondError(c, err)
		return
	}
	sprints, err := sprint.List(s.db, id)
	if err != nil {
		s.respondError(c, err)
		return
	}

	groups := board.GroupBacklog(issues, sprints)
	resp := backlogResponse{Project: p}
	for _, g := range groups {
		issuesOut := g.Issues
		if issuesOut == nil {
			issuesOut = []models.Issue{}
		}
		resp.Groups = append(resp.Groups, backlogGroup{
			Sprint:      g.Sprint,
			Name:        g.Name,
			StoryPoints: g.StoryPoints,
			Issues:      issuesOut,
		})
	}
	c.JSON(http.StatusOK, resp)
}

// roadmapRow is one epic on the timeline with its bar geometry and
// child progress.
type roadmapRow struct {
	Epic        models.Issue `json:"epic"`
	Unscheduled bool         `json:"unscheduled"`
	LeftPct     float64      `json:"leftPct"`
	WidthPct    float64      `json:"widthPct"`
	Total       int          `json:"total"`
	Done        int          `json:"done"`
	Percent     int          `json:"percent"`
}

// handleRoadmap serves the epic timeline. The window defaults to three
// months back and nine forward from today; start and end query params
// (YYYY-MM-DD) override it.
func (s *Server) handleRoadmap(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if _, err := project.Get(s.db, id); err != nil {
		s.respondError(c, err)
		return
	}
	issues, err := issue.List(s.db, issue.ListFilters{ProjectID: id})
	if err != nil {
		s.respondError(c, err)
		return
	}

	now := time.Now()
	windowStart := now.AddDate(0, -3, 0)
	windowEnd := now.AddDate(0, 9, 0)
	if raw := c.Query("start"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			badRequest(c, fmt.Errorf("bad start date: %w", apperr.ErrInvalid))
			return
		}
		windowStart = t
	}
	if raw := c.Query("end"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			badRequest(c, fmt.Errorf("bad end date: %w", apperr.ErrInvalid))
			return
		}
		windowEnd = t
	}

	rows := []roadmapRow{}
	for _, iss := range issues {
		if iss.Type != "epic" {
			continue
		}
		bar := board.BarGeometry(iss, windowStart, windowEnd, now)
		prog := board.EpicProgress(iss, issues)
		rows = append(rows, roadmapRow{
			Epic:        iss,
			Unscheduled: bar.Unscheduled,
			LeftPct:     bar.LeftPct,
			WidthPct:    bar.WidthPct,
			Total:       prog.Total,
			Done:        prog.Done,
			Percent:     prog.Percent,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"windowStart": windowStart.Format("2006-01-02"),
		"windowEnd":   windowEnd.Format("2006-01-02"),
		"rows":        rows,
	})
}

// handleListLabels and friends manage project-scoped taxonomy.
func (s *Server) handleListLabels(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if _, err := project.Get(s.db, id); err != nil {
		s.respondError(c, err)
		return
	}
	var labels []models.Label
	if err := s.db.Where("project_id = ?", id).Order("name ASC").Find(&labels).Error; err != nil {
		s.respondError(c, fmt.Errorf("server: list labels: %w", err))
		return
	}
	c.JSON(http.StatusOK, labels)
}

type createLabelRequest struct {
	Name  string `json:"name" binding:"required"`
	Color string `json:"color"`
}

func (s *Server) handleCreateLabel(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if _, err := project.Get(s.db, id); err != nil {
		s.respondError(c, err)
		return
	}
	var req createLabelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	l := models.Label{ProjectID: id, Name: req.Name, Color: req.Color}
	if err := s.db.Create(&l).Error; err != nil {
		s.respondError(c, fmt.Errorf("server: create label: %w", err))
		return
	}
	c.JSON(http.StatusCreated, l)
}

func (s *Server) handleListComponents(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if _, err := project.Get(s.db, id); err != nil {
		s.respondError(c, err)
		return
	}
	var components []models.Component
	if err := s.db.Where("project_id = ?", id).Order("name ASC").Find(&components).Error; err != nil {
		s.respondError(c, fmt.Errorf("server: list components: %w", err))
		return
	}
	c.JSON(http.StatusOK, components)
}

type createComponentRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

func (s *Server) handleCreateComponent(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if _, err := project.Get(s.db, id); err != nil {
		s.respondError(c, err)
		return
	}
	var req createComponentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	comp := models.Component{ProjectID: id, Name: req.Name, Description: req.Description}
	if err := s.db.Create(&comp).Error; err != nil {
		s.respondError(c, fmt.Errorf("server: create component: %w", err))
		return
	}
	c.JSON(http.StatusCreated, comp)
}

func (s *Server) handleListVersions(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if _, err := project.Get(s.db, id); err != nil {
		s.respondError(c, err)
		return
	}
	var versions []models.Version
	if err := s.db.Where("project_id = ?", id).Order("created_at ASC").Find(&versions).Error; err != nil {
		s.respondError(c, fmt.Errorf("server: list versions: %w", err))
		return
	}
	c.JSON(http.StatusOK, versions)
}

type createVersionRequest struct {
	Name        string     `json:"name" binding:"required"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	ReleaseDate *time.Time `json:"releaseDate"`
}

func (s *Server) handleCreateVersion(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if _, err := project.Get(s.db, id); err != nil {
		s.respondError(c, err)
		return
	}
	var req createVersionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.Status == "" {
		req.Status = "unreleased"
	}
	if !validVersionStatus(req.Status) {
		badRequest(c, fmt.Errorf("unknown version status %q: %w", req.Status, apperr.ErrInvalid))
		return
	}
	v := models.Version{
		ProjectID:   id,
		Name:        req.Name,
		Description: req.Description,
		Status:      req.Status,
		ReleaseDate: req.ReleaseDate,
	}
	if err := s.db.Create(&v).Error; err != nil {
		s.respondError(c, fmt.Errorf("server: create version: %w", err))
		return
	}
	c.JSON(http.StatusCreated, v)
}

func validVersionStatus(s string) bool {
	_, ok := enums.VersionStatuses[s]
	return ok
}
