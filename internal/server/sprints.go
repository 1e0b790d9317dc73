package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/waybill/internal/notify"
	"github.com/zulandar/waybill/internal/project"
	"github.com/zulandar/waybill/internal/sprint"
)

type createSprintRequest struct {
	Name      string     `json:"name" binding:"required"`
	Goal      string     `json:"goal"`
	StartDate *time.Time `json:"startDate"`
	EndDate   *time.Time `json:"endDate"`
}

type updateSprintRequest struct {
	Name      *string    `json:"name"`
	Goal      *string    `json:"goal"`
	StartDate *time.Time `json:"startDate"`
	EndDate   *time.Time `json:"endDate"`
}

func (s *Server) handleListSprints(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if _, err := project.Get(s.db, id); err != nil {
		s.respondError(c, err)
		return
	}
	sprints, err := sprint.List(s.db, id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sprints)
}

func (s *Server) handleCreateSprint(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if _, err := project.Get(s.db, id); err != nil {
		s.respondError(c, err)
		return
	}
	var req createSprintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	sp, err := sprint.Create(s.db, sprint.CreateOpts{
		ProjectID: id,
		Name:      req.Name,
		Goal:      req.Goal,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sp)
}

func (s *Server) handleGetSprint(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	sp, err := sprint.Get(s.db, id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sp)
}

func (s *Server) handleUpdateSprint(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req updateSprintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Goal != nil {
		updates["goal"] = *req.Goal
	}
	if req.StartDate != nil {
		updates["start_date"] = *req.StartDate
	}
	if req.EndDate != nil {
		updates["end_date"] = *req.EndDate
	}

	sp, err := sprint.Update(s.db, id, updates)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sp)
}

func (s *Server) handleStartSprint(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	sp, err := sprint.Start(s.db, id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.dispatcher.Publish(c.Request.Context(), notify.Event{
		Kind:  "sprint_started",
		Title: "Sprint started",
		Body:  sp.Name,
	})
	c.JSON(http.StatusOK, sp)
}

func (s *Server) handleCompleteSprint(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	sp, err := sprint.Complete(s.db, id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.dispatcher.Publish(c.Request.Context(), notify.Event{
		Kind:  "sprint_completed",
		Title: "Sprint completed",
		Body:  sp.Name,
	})
	c.JSON(http.StatusOK, sp)
}

func (s *Server) handleSprintVelocity(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	points, err := sprint.Velocity(s.db, id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sprintId": id, "storyPoints": points})
}
