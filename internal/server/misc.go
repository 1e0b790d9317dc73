package server

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/waybill/internal/apperr"
	"github.com/zulandar/waybill/internal/models"
)

type createUserRequest struct {
	Username    string `json:"username" binding:"required"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	AvatarColor string `json:"avatarColor"`
}

func (s *Server) handleListUsers(c *gin.Context) {
	var users []models.User
	if err := s.db.Order("username ASC").Find(&users).Error; err != nil {
		s.respondError(c, fmt.Errorf("server: list users: %w", err))
		return
	}
	c.JSON(http.StatusOK, users)
}

func (s *Server) handleCreateUser(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	var count int64
	if err := s.db.Model(&models.User{}).Where("username = ?", req.Username).Count(&count).Error; err != nil {
		s.respondError(c, fmt.Errorf("server: check username: %w", err))
		return
	}
	if count > 0 {
		s.respondError(c, fmt.Errorf("username %q already taken: %w", req.Username, apperr.ErrConflict))
		return
	}
	u := models.User{
		Username:    req.Username,
		DisplayName: req.DisplayName,
		Email:       req.Email,
		AvatarColor: req.AvatarColor,
	}
	if err := s.db.Create(&u).Error; err != nil {
		s.respondError(c, fmt.Errorf("server: create user: %w", err))
		return
	}
	c.JSON(http.StatusCreated, u)
}

// handleListNotifications serves a user's inbox, unread first, newest
// within each band. The user query param is required.
func (s *Server) handleListNotifications(c *gin.Context) {
	raw := c.Query("user")
	userID, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || userID == 0 {
		badRequest(c, fmt.Errorf("user query param is required: %w", apperr.ErrInvalid))
		return
	}
	var notifications []models.Notification
	if err := s.db.Where("user_id = ?", uint(userID)).
		Order("`read` ASC, created_at DESC").
		Find(&notifications).Error; err != nil {
		s.respondError(c, fmt.Errorf("server: list notifications: %w", err))
		return
	}
	c.JSON(http.StatusOK, notifications)
}

func (s *Server) handleMarkNotificationRead(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	res := s.db.Model(&models.Notification{}).Where("id = ?", id).Update("read", true)
	if res.Error != nil {
		s.respondError(c, fmt.Errorf("server: mark read: %w", res.Error))
		return
	}
	if res.RowsAffected == 0 {
		s.respondError(c, fmt.Errorf("notification %d: %w", id, apperr.ErrNotFound))
		return
	}
	c.Status(http.StatusNoContent)
}

type createFilterRequest struct {
	UserID    uint   `json:"userId" binding:"required"`
	ProjectID *uint  `json:"projectId"`
	Name      string `json:"name" binding:"required"`
	Criteria  string `json:"criteria"`
}

func (s *Server) handleListFilters(c *gin.Context) {
	q := s.db.Model(&models.SavedFilter{})
	if raw := c.Query("user"); raw != "" {
		userID, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			badRequest(c, fmt.Errorf("bad user filter: %w", apperr.ErrInvalid))
			return
		}
		q = q.Where("user_id = ?", uint(userID))
	}
	var filters []models.SavedFilter
	if err := q.Order("name ASC").Find(&filters).Error; err != nil {
		s.respondError(c, fmt.Errorf("server: list filters: %w", err))
		return
	}
	c.JSON(http.StatusOK, filters)
}

func (s *Server) handleCreateFilter(c *gin.Context) {
	var req createFilterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	f := models.SavedFilter{
		UserID:    req.UserID,
		ProjectID: req.ProjectID,
		Name:      req.Name,
		Criteria:  req.Criteria,
	}
	if err := s.db.Create(&f).Error; err != nil {
		s.respondError(c, fmt.Errorf("server: create filter: %w", err))
		return
	}
	c.JSON(http.StatusCreated, f)
}

func (s *Server) handleDeleteFilter(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	res := s.db.Delete(&models.SavedFilter{}, id)
	if res.Error != nil {
		s.respondError(c, fmt.Errorf("server: delete filter: %w", res.Error))
		return
	}
	if res.RowsAffected == 0 {
		s.respondError(c, fmt.Errorf("filter %d: %w", id, apperr.ErrNotFound))
		return
	}
	c.Status(http.StatusNoContent)
}
