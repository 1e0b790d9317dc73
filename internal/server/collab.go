package server

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/waybill/internal/apperr"
	"github.com/zulandar/waybill/internal/duration"
	"github.com/zulandar/waybill/internal/enums"
	"github.com/zulandar/waybill/internal/issue"
	"github.com/zulandar/waybill/internal/models"
)

type createCommentRequest struct {
	AuthorID uint   `json:"authorId" binding:"required"`
	Body     string `json:"body" binding:"required"`
}

func (s *Server) handleListComments(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if _, err := issue.Get(s.db, id); err != nil {
		s.respondError(c, err)
		return
	}
	var comments []models.Comment
	if err := s.db.Where("issue_id = ?", id).Order("created_at ASC").Find(&comments).Error; err != nil {
		s.respondError(c, fmt.Errorf("server: list comments: %w", err))
		return
	}
	c.JSON(http.StatusOK, comments)
}

func (s *Server) handleCreateComment(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if _, err := issue.Get(s.db, id); err != nil {
		s.respondError(c, err)
		return
	}
	var req createCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	comment := models.Comment{IssueID: id, AuthorID: req.AuthorID, Body: req.Body}
	if err := s.db.Create(&comment).Error; err != nil {
		s.respondError(c, fmt.Errorf("server: create comment: %w", err))
		return
	}
	c.JSON(http.StatusCreated, comment)
}

type createWorkLogRequest struct {
	UserID uint   `json:"userId" binding:"required"`
	Spent  string `json:"spent" binding:"required"` // "2h 30m"
	Note   string `json:"note"`
}

// workLogView decorates a worklog with the formatted duration.
type workLogView struct {
	models.WorkLog
	SpentText string `json:"spentText"`
}

func (s *Server) handleListWorkLogs(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if _, err := issue.Get(s.db, id); err != nil {
		s.respondError(c, err)
		return
	}
	var logs []models.WorkLog
	if err := s.db.Where("issue_id = ?", id).Order("created_at ASC").Find(&logs).Error; err != nil {
		s.respondError(c, fmt.Errorf("server: list worklogs: %w", err))
		return
	}
	views := make([]workLogView, 0, len(logs))
	for _, wl := range logs {
		views = append(views, workLogView{WorkLog: wl, SpentText: duration.Format(wl.Minutes)})
	}
	c.JSON(http.StatusOK, views)
}

func (s *Server) handleCreateWorkLog(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req createWorkLogRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	minutes, ok := duration.Parse(req.Spent)
	if !ok {
		badRequest(c, fmt.Errorf("bad duration %q: %w", req.Spent, apperr.ErrInvalid))
		return
	}
	wl, err := issue.LogWork(s.db, id, req.UserID, minutes, req.Note)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, workLogView{WorkLog: *wl, SpentText: duration.Format(wl.Minutes)})
}

type watcherRequest struct {
	UserID uint `json:"userId" binding:"required"`
}

func (s *Server) handleListWatchers(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if _, err := issue.Get(s.db, id); err != nil {
		s.respondError(c, err)
		return
	}
	var watchers []models.Watcher
	if err := s.db.Where("issue_id = ?", id).Order("user_id ASC").Find(&watchers).Error; err != nil {
		s.respondError(c, fmt.Errorf("server: list watchers: %w", err))
		return
	}
	c.JSON(http.StatusOK, watchers)
}

func (s *Server) handleAddWatcher(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if _, err := issue.Get(s.db, id); err != nil {
		s.respondError(c, err)
		return
	}
	var req watcherRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	w := models.Watcher{IssueID: id, UserID: req.UserID}
	var count int64
	s.db.Model(&models.Watcher{}).Where("issue_id = ? AND user_id = ?", id, req.UserID).Count(&count)
	if count == 0 {
		if err := s.db.Create(&w).Error; err != nil {
			s.respondError(c, fmt.Errorf("server: add watcher: %w", err))
			return
		}
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleRemoveWatcher(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	userID, ok := parseID(c, "userID")
	if !ok {
		return
	}
	res := s.db.Where("issue_id = ? AND user_id = ?", id, userID).Delete(&models.Watcher{})
	if res.Error != nil {
		s.respondError(c, fmt.Errorf("server: remove watcher: %w", res.Error))
		return
	}
	if res.RowsAffected == 0 {
		s.respondError(c, fmt.Errorf("watcher %d on issue %d: %w", userID, id, apperr.ErrNotFound))
		return
	}
	c.Status(http.StatusNoContent)
}

type createAttachmentRequest struct {
	UploaderID  uint   `json:"uploaderId" binding:"required"`
	Filename    string `json:"filename" binding:"required"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

func (s *Server) handleListAttachments(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if _, err := issue.Get(s.db, id); err != nil {
		s.respondError(c, err)
		return
	}
	var attachments []models.Attachment
	if err := s.db.Where("issue_id = ?", id).Order("created_at ASC").Find(&attachments).Error; err != nil {
		s.respondError(c, fmt.Errorf("server: list attachments: %w", err))
		return
	}
	c.JSON(http.StatusOK, attachments)
}

func (s *Server) handleCreateAttachment(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if _, err := issue.Get(s.db, id); err != nil {
		s.respondError(c, err)
		return
	}
	var req createAttachmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	a := models.Attachment{
		IssueID:     id,
		UploaderID:  req.UploaderID,
		Filename:    req.Filename,
		ContentType: req.ContentType,
		Size:        req.Size,
	}
	if err := s.db.Create(&a).Error; err != nil {
		s.respondError(c, fmt.Errorf("server: create attachment: %w", err))
		return
	}
	c.JSON(http.StatusCreated, a)
}

type createLinkRequest struct {
	TargetID uint   `json:"targetId" binding:"required"`
	LinkType string `json:"linkType"`
}

func (s *Server) handleListLinks(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if _, err := issue.Get(s.db, id); err != nil {
		s.respondError(c, err)
		return
	}
	var links []models.IssueLink
	if err := s.db.Where("source_id = ? OR target_id = ?", id, id).Order("created_at ASC").Find(&links).Error; err != nil {
		s.respondError(c, fmt.Errorf("server: list links: %w", err))
		return
	}
	c.JSON(http.StatusOK, links)
}

func (s *Server) handleCreateLink(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var req createLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.LinkType == "" {
		req.LinkType = "relates_to"
	}
	if !enums.ValidLinkType(req.LinkType) {
		badRequest(c, fmt.Errorf("unknown link type %q: %w", req.LinkType, apperr.ErrInvalid))
		return
	}
	if req.TargetID == id {
		badRequest(c, fmt.Errorf("an issue cannot link to itself: %w", apperr.ErrInvalid))
		return
	}
	if _, err := issue.Get(s.db, id); err != nil {
		s.respondError(c, err)
		return
	}
	if _, err := issue.Get(s.db, req.TargetID); err != nil {
		s.respondError(c, err)
		return
	}
	link := models.IssueLink{SourceID: id, TargetID: req.TargetID, LinkType: req.LinkType}
	if err := s.db.Create(&link).Error; err != nil {
		s.respondError(c, fmt.Errorf("server: create link: %w", err))
		return
	}
	c.JSON(http.StatusCreated, link)
}

func (s *Server) handleListActivity(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if _, err := issue.Get(s.db, id); err != nil {
		s.respondError(c, err)
		return
	}
	var entries []models.ActivityLog
	if err := s.db.Where("issue_id = ?", id).Order("created_at ASC, id ASC").Find(&entries).Error; err != nil {
		s.respondError(c, fmt.Errorf("server: list activity: %w", err))
		return
	}
	c.JSON(http.StatusOK, entries)
}

type attachLabelRequest struct {
	LabelID uint `json:"labelId" binding:"required"`
}

func (s *Server) handleAttachLabel(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	iss, err := issue.Get(s.db, id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	var req attachLabelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	var label models.Label
	if err := s.db.First(&label, req.LabelID).Error; err != nil {
		s.respondError(c, fmt.Errorf("label %d: %w", req.LabelID, apperr.ErrNotFound))
		return
	}
	if label.ProjectID != iss.ProjectID {
		badRequest(c, fmt.Errorf("label %d belongs to another project: %w", req.LabelID, apperr.ErrInvalid))
		return
	}
	var count int64
	s.db.Model(&models.IssueLabel{}).Where("issue_id = ? AND label_id = ?", id, req.LabelID).Count(&count)
	if count == 0 {
		if err := s.db.Create(&models.IssueLabel{IssueID: id, LabelID: req.LabelID}).Error; err != nil {
			s.respondError(c, fmt.Errorf("server: attach label: %w", err))
			return
		}
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleDetachLabel(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	labelID, ok := parseID(c, "labelID")
	if !ok {
		return
	}
	res := s.db.Where("issue_id = ? AND label_id = ?", id, labelID).Delete(&models.IssueLabel{})
	if res.Error != nil {
		s.respondError(c, fmt.Errorf("server: detach label: %w", res.Error))
		return
	}
	if res.RowsAffected == 0 {
		s.respondError(c, fmt.Errorf("label %d on issue %d: %w", labelID, id, apperr.ErrNotFound))
		return
	}
	c.Status(http.StatusNoContent)
}
